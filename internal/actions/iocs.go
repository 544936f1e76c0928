package actions

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/catalog"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/errors"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/logging"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/dispatch"
	"github.com/samber/lo"
)

// Indicator is the body of a custom IOC create request
type Indicator struct {
	Type            string   `json:"type"`
	Value           string   `json:"value"`
	Action          string   `json:"action"`
	Platforms       []string `json:"platforms"`
	Severity        string   `json:"severity,omitempty"`
	Description     string   `json:"description,omitempty"`
	AppliedGlobally bool     `json:"applied_globally"`
}

// Default severities when the caller leaves severity empty
const (
	defaultBlockSeverity  = "high"
	defaultDetectSeverity = "medium"
)

const (
	iocPrevent catalog.Verb = "prevent"
	iocDetect  catalog.Verb = "detect"
)

type iocArgs struct {
	Type        string   `json:"type" validate:"required,ioc_type"`
	Value       string   `json:"value" validate:"required,notblank"`
	Platforms   []string `json:"platforms" validate:"dive,ioc_platform"`
	Severity    string   `json:"severity" validate:"omitempty,ioc_severity"`
	Description string   `json:"description"`
}

type iocEntry struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type pushIOCsArgs struct {
	IOCs        []iocEntry `json:"iocs"`
	Platforms   []string   `json:"platforms" validate:"dive,ioc_platform"`
	Severity    string     `json:"severity" validate:"omitempty,ioc_severity"`
	Description string     `json:"description"`
}

type indicatorsArgs struct {
	Indicators []map[string]interface{} `json:"indicators"`
}

type indicatorSearchArgs struct {
	Filter string   `json:"filter"`
	Types  []string `json:"types" validate:"dive,ioc_type"`
	Value  string   `json:"value"`
	Sort   string   `json:"sort"`
	Limit  int      `json:"limit" validate:"gte=0"`
}

type iocActionsArgs struct {
	IDs []string `json:"ids" validate:"dive,notblank"`
}

type reportSearch struct {
	Filter string `json:"filter,omitempty"`
	Query  string `json:"query,omitempty"`
	Sort   string `json:"sort,omitempty"`
}

type reportArgs struct {
	Search       *reportSearch `json:"search"`
	ReportFormat string        `json:"report_format" validate:"omitempty,oneof=csv json"`
}

func iocActions() []Action {
	return []Action{
		singleIOC("block_ioc", "Block a single IOC on hosts", iocPrevent, defaultBlockSeverity),
		singleIOC("monitor_ioc", "Detect a single IOC on hosts", iocDetect, defaultDetectSeverity),
		pushIOCs("push_iocs_block", "Block a list of IOCs", iocPrevent, defaultBlockSeverity),
		pushIOCs("push_iocs_detect", "Detect a list of IOCs", iocDetect, defaultDetectSeverity),

		fetchByIDs("ioc_get_indicators", "Get custom indicators", catalog.IOCsGet, "indicators", "indicators"),

		define("ioc_delete_indicators", "Delete custom indicators",
			func(ctx context.Context, r *Runner, args idArgs) (Result, error) {
				if err := requireIDs(args.IDs); err != nil {
					return nil, err
				}
				r.log(ctx).Info("Deleting indicators", logging.Field{Key: "indicators", Value: len(args.IDs)})
				return drain(r.dispatcher.Dispatch(ctx, catalog.IOCsDelete, args.IDs, dispatch.Params{}))
			}),

		writeIndicators("ioc_create_indicators", "Create custom indicators", catalog.IOCsCreate),
		writeIndicators("ioc_update_indicators", "Update custom indicators", catalog.IOCsUpdate),

		define("ioc_search_indicators", "Search indicator IDs with an FQL filter",
			func(ctx context.Context, r *Runner, args indicatorSearchArgs) (Result, error) {
				terms := catalog.NewFilter().In("type", args.Types...)
				if args.Value != "" {
					terms.Eq("value", args.Value)
				}
				filter := withFilter(args.Filter, terms)

				query := url.Values{}
				if filter != "" {
					query.Set("filter", filter)
				}
				if args.Sort != "" {
					query.Set("sort", args.Sort)
				}

				r.log(ctx).Info("Searching indicators", logging.Field{Key: "filter", Value: filter})
				return collect(r.dispatcher.Query(ctx, catalog.IOCsQuery, dispatch.Params{
					Query:    query,
					MaxItems: args.Limit,
				}), "indicator_ids")
			}),

		define("ioc_get_actions", "Get IOC actions, or every available action when no IDs are given",
			func(ctx context.Context, r *Runner, args iocActionsArgs) (Result, error) {
				ids := args.IDs
				if len(ids) == 0 {
					var err error
					ids, err = queryIDs(r.dispatcher.Query(ctx, catalog.IOCsActionsQuery, dispatch.Params{}))
					if err != nil {
						return nil, err
					}
					if len(ids) == 0 {
						return Result{"actions": []dispatch.Record{}}, nil
					}
				}
				return collect(r.dispatcher.Dispatch(ctx, catalog.IOCsActions, ids, dispatch.Params{}), "actions")
			}),

		define("ioc_get_indicators_report", "Launch an indicators report",
			func(ctx context.Context, r *Runner, args reportArgs) (Result, error) {
				body := map[string]interface{}{"report_format": lo.Ternary(args.ReportFormat == "", "csv", args.ReportFormat)}
				if args.Search != nil {
					body["search"] = args.Search
				}
				return collect(r.dispatcher.Query(ctx, catalog.IOCsReport, dispatch.Params{Body: body}), "reports")
			}),
	}
}

func singleIOC(name, description string, action catalog.Verb, defaultSeverity string) Action {
	return define(name, description, func(ctx context.Context, r *Runner, args iocArgs) (Result, error) {
		opts := indicatorOptions{
			platforms:   args.Platforms,
			severity:    lo.Ternary(args.Severity == "", defaultSeverity, args.Severity),
			description: args.Description,
		}
		indicator := newIndicator(args.Type, args.Value, action, opts)
		if indicator.Action != action.String() {
			r.log(ctx).Warn("IOC type cannot be prevented, detecting instead", logging.Field{Key: "type", Value: indicator.Type})
		}

		r.log(ctx).Info("Pushing IOC",
			logging.Field{Key: "type", Value: indicator.Type},
			logging.Field{Key: "action", Value: indicator.Action},
		)
		return collect(r.dispatcher.DispatchResources(ctx, catalog.IOCsCreate, []interface{}{indicator}, dispatch.Params{}), "indicators")
	})
}

func pushIOCs(name, description string, action catalog.Verb, defaultSeverity string) Action {
	return define(name, description, func(ctx context.Context, r *Runner, args pushIOCsArgs) (Result, error) {
		if len(args.IOCs) == 0 {
			return nil, errors.InvalidArgumentError("List of IOCs should not be empty.")
		}

		opts := indicatorOptions{
			platforms:   args.Platforms,
			severity:    lo.Ternary(args.Severity == "", defaultSeverity, args.Severity),
			description: args.Description,
		}

		indicators := make([]Indicator, 0, len(args.IOCs))
		seen := make(map[string]bool, len(args.IOCs))
		skipped := 0
		for _, entry := range args.IOCs {
			typ := strings.ToLower(strings.TrimSpace(entry.Type))
			if !catalog.IOCTypes.Contains(typ) || strings.TrimSpace(entry.Value) == "" {
				skipped++
				continue
			}
			indicator := newIndicator(typ, entry.Value, action, opts)
			key := indicator.Type + ":" + indicator.Value
			if seen[key] {
				continue
			}
			seen[key] = true
			indicators = append(indicators, indicator)
		}

		if skipped > 0 {
			r.log(ctx).Warn("Skipped unsupported IOCs", logging.Field{Key: "skipped", Value: skipped})
		}
		if len(indicators) == 0 {
			return nil, errors.InvalidArgumentError("No supported IOCs to push.")
		}

		r.log(ctx).Info("Pushing IOCs",
			logging.Field{Key: "count", Value: len(indicators)},
			logging.Field{Key: "action", Value: action.String()},
		)
		return collect(r.dispatcher.DispatchResources(ctx, catalog.IOCsCreate, toInterfaces(indicators), dispatch.Params{}), "indicators")
	})
}

func writeIndicators(name, description, opName string) Action {
	return define(name, description, func(ctx context.Context, r *Runner, args indicatorsArgs) (Result, error) {
		if err := requireResources(args.Indicators); err != nil {
			return nil, err
		}
		r.log(ctx).Info(description, logging.Field{Key: "indicators", Value: len(args.Indicators)})
		return collect(r.dispatcher.DispatchResources(ctx, opName, toInterfaces(args.Indicators), dispatch.Params{}), "indicators")
	})
}

type indicatorOptions struct {
	platforms   []string
	severity    string
	description string
}

// newIndicator normalizes value. Falcon only prevents hashes, so other types are detected.
func newIndicator(typ, value string, action catalog.Verb, opts indicatorOptions) Indicator {
	value = strings.ToLower(strings.TrimSpace(value))
	if action == iocPrevent && typ != "sha256" && typ != "md5" {
		action = iocDetect
	}

	platforms := opts.platforms
	if len(platforms) == 0 {
		platforms = catalog.IOCPlatforms.Values()
	}

	return Indicator{
		Type:            typ,
		Value:           value,
		Action:          action.String(),
		Platforms:       platforms,
		Severity:        opts.severity,
		Description:     opts.description,
		AppliedGlobally: true,
	}
}

// queryIDs collects a query whose resources are plain ID strings
func queryIDs(seq dispatchSeq) ([]string, error) {
	records, err := dispatch.Collect(seq)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(records))
	for _, record := range records {
		var id string
		if err := json.Unmarshal(record, &id); err != nil {
			return nil, errors.TransportError("query returned a non-string id", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
