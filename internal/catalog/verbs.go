package catalog

import (
	"fmt"
	"strings"

	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/errors"
	"github.com/samber/lo"
)

// Verb is a member of a closed set of action names accepted by the API
type Verb string

func (v Verb) String() string { return string(v) }

// VerbSet is a closed, ordered set of verbs
type VerbSet struct {
	label string
	verbs []Verb
}

// NewVerbSet creates a verb set; label names it in error messages
func NewVerbSet(label string, verbs ...string) VerbSet {
	return VerbSet{
		label: label,
		verbs: lo.Map(verbs, func(v string, _ int) Verb { return Verb(v) }),
	}
}

// Contains reports whether name is a member
func (s VerbSet) Contains(name string) bool {
	return lo.Contains(s.verbs, Verb(name))
}

// Values returns the verbs in declaration order
func (s VerbSet) Values() []string {
	return lo.Map(s.verbs, func(v Verb, _ int) string { return string(v) })
}

// Label names the set
func (s VerbSet) Label() string {
	return s.label
}

var (
	// HostActions are accepted by devices.action
	HostActions = NewVerbSet("host action",
		"contain", "lift_containment", "hide_host", "unhide_host", "detection_suppress", "detection_unsuppress")

	// PreventionActions are accepted by prevention.action
	PreventionActions = NewVerbSet("prevention policy action",
		"enable", "disable", "add-host-group", "remove-host-group")

	// AlertStatuses are accepted by the update_status alert action parameter
	AlertStatuses = NewVerbSet("alert status",
		"new", "in_progress", "reopened", "closed")

	// IOCActions are the actions an indicator may carry
	IOCActions = NewVerbSet("IOC action",
		"no_action", "allow", "prevent_no_ui", "prevent", "detect")

	// IOCTypes are the indicator types the connector pushes
	IOCTypes = NewVerbSet("IOC type",
		"sha256", "md5", "domain", "ipv4", "ipv6")

	// IOCSeverities are the indicator severities
	IOCSeverities = NewVerbSet("IOC severity",
		"informational", "low", "medium", "high", "critical")

	// IOCPlatforms are the platforms an indicator applies to
	IOCPlatforms = NewVerbSet("IOC platform",
		"windows", "mac", "linux")
)

// Host action verbs used directly by handlers
const (
	HostContain         Verb = "contain"
	HostLiftContainment Verb = "lift_containment"
)

// ParseVerb validates name against allowed without any network access
func ParseVerb(name string, allowed VerbSet) (Verb, error) {
	if !allowed.Contains(name) {
		return "", errors.InvalidArgumentError(fmt.Sprintf("Invalid %s: %q. Valid values: %s",
			allowed.label, name, strings.Join(allowed.Values(), ", ")))
	}
	return Verb(name), nil
}
