package catalog

import (
	"testing"

	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerb(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		set     VerbSet
		wantErr bool
	}{
		{"host contain", "contain", HostActions, false},
		{"host lift", "lift_containment", HostActions, false},
		{"host unknown", "reboot", HostActions, true},
		{"case sensitive", "Contain", HostActions, true},
		{"empty", "", HostActions, true},
		{"prevention", "add-host-group", PreventionActions, false},
		{"prevention underscore", "add_host_group", PreventionActions, true},
		{"alert status", "in_progress", AlertStatuses, false},
		{"alert status unknown", "ignored", AlertStatuses, true},
		{"ioc action", "prevent_no_ui", IOCActions, false},
		{"ioc type", "sha256", IOCTypes, false},
		{"ioc type unknown", "sha1", IOCTypes, true},
		{"ioc severity", "critical", IOCSeverities, false},
		{"ioc platform", "linux", IOCPlatforms, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verb, err := ParseVerb(tt.input, tt.set)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsInvalidArgument(err))
				assert.Empty(t, verb)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Verb(tt.input), verb)
		})
	}
}

func TestParseVerb_MessageListsValidValues(t *testing.T) {
	_, err := ParseVerb("reboot", HostActions)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host action")
	assert.Contains(t, err.Error(), "contain, lift_containment, hide_host, unhide_host, detection_suppress, detection_unsuppress")
}

func TestVerbSet(t *testing.T) {
	set := NewVerbSet("color", "red", "green")
	assert.Equal(t, "color", set.Label())
	assert.Equal(t, []string{"red", "green"}, set.Values())
	assert.True(t, set.Contains("red"))
	assert.False(t, set.Contains("blue"))
	assert.Equal(t, "contain", HostContain.String())
}
