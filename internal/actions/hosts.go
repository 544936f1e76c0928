package actions

import (
	"context"
	"net/url"
	"strings"

	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/catalog"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/errors"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/logging"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/dispatch"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/transport"
)

type hostActionArgs struct {
	IDs        []string `json:"ids" validate:"dive,notblank"`
	ActionName string   `json:"action_name"`
}

// deviceFilterArgs narrows a device query with a raw FQL filter and structured fields
type deviceFilterArgs struct {
	Filter        string   `json:"filter"`
	Hostname      string   `json:"hostname"`
	PlatformName  []string `json:"platform_name" validate:"dive,notblank"`
	Status        string   `json:"status"`
	LastSeenSince string   `json:"last_seen_since"`
}

func (a deviceFilterArgs) fql() string {
	terms := catalog.NewFilter().In("platform_name", a.PlatformName...)
	if a.Hostname != "" {
		terms.Eq("hostname", a.Hostname)
	}
	if a.Status != "" {
		terms.Eq("status", a.Status)
	}
	if a.LastSeenSince != "" {
		terms.Compare("last_seen", ">=", a.LastSeenSince)
	}
	return withFilter(a.Filter, terms)
}

type deviceQueryArgs struct {
	deviceFilterArgs
	Sort   string           `json:"sort"`
	Limit  int              `json:"limit" validate:"gte=0"`
	Offset transport.Cursor `json:"offset"`
}

type deviceAssetArgs struct {
	deviceFilterArgs
	Limit int `json:"limit" validate:"gte=0"`
}

func hostActions() []Action {
	return []Action{
		containment("isolate_hosts", "Network-contain hosts", catalog.HostContain),
		containment("deisolate_hosts", "Lift network containment from hosts", catalog.HostLiftContainment),

		define("perform_host_action", "Apply a host action verb to hosts",
			func(ctx context.Context, r *Runner, args hostActionArgs) (Result, error) {
				if err := requireIDs(args.IDs); err != nil {
					return nil, err
				}
				if strings.TrimSpace(args.ActionName) == "" {
					return nil, errors.InvalidArgumentError("Action name should not be empty.")
				}
				verb, err := catalog.ParseVerb(args.ActionName, catalog.HostActions)
				if err != nil {
					return nil, err
				}

				r.log(ctx).Info("Applying host action",
					logging.Field{Key: "action_name", Value: verb.String()},
					logging.Field{Key: "hosts", Value: len(args.IDs)},
				)
				return collect(r.dispatcher.Dispatch(ctx, catalog.DevicesAction, args.IDs, hostActionParams(verb)), "resources")
			}),

		fetchByIDs("get_device_details", "Get device details", catalog.DevicesGet, "devices", "devices"),
		fetchByIDs("query_device_login_history", "Get recent logins on devices", catalog.DevicesLoginHistory, "history", "devices"),
		fetchByIDs("get_online_state", "Get device online state", catalog.DevicesOnlineState, "states", "devices"),

		define("query_devices_by_filter", "Search device IDs with an FQL filter",
			func(ctx context.Context, r *Runner, args deviceQueryArgs) (Result, error) {
				filter := args.fql()
				query := url.Values{}
				if filter != "" {
					query.Set("filter", filter)
				}
				if args.Sort != "" {
					query.Set("sort", args.Sort)
				}
				if args.Offset != "" {
					query.Set("offset", string(args.Offset))
				}

				r.log(ctx).Info("Querying devices by filter", logging.Field{Key: "filter", Value: filter})
				return collect(r.dispatcher.Query(ctx, catalog.DevicesQuery, dispatch.Params{
					Query:    query,
					MaxItems: args.Limit,
				}), "device_ids")
			}),

		define("get_device_assets", "Collect details of every device matching a filter",
			func(ctx context.Context, r *Runner, args deviceAssetArgs) (Result, error) {
				query := url.Values{}
				if filter := args.fql(); filter != "" {
					query.Set("filter", filter)
				}

				ids, err := queryIDs(r.dispatcher.Query(ctx, catalog.DevicesQuery, dispatch.Params{
					Query:    query,
					MaxItems: args.Limit,
				}))
				if err != nil {
					return nil, err
				}
				if len(ids) == 0 {
					return Result{"devices": []dispatch.Record{}}, nil
				}

				r.log(ctx).Info("Collecting device assets", logging.Field{Key: "devices", Value: len(ids)})
				return collect(r.dispatcher.Dispatch(ctx, catalog.DevicesGet, ids, dispatch.Params{}), "devices")
			}),
	}
}

// containment builds isolate_hosts and deisolate_hosts, which only differ by verb
func containment(name, description string, verb catalog.Verb) Action {
	return define(name, description, func(ctx context.Context, r *Runner, args idArgs) (Result, error) {
		if err := requireIDs(args.IDs); err != nil {
			return nil, err
		}

		r.log(ctx).Info("Applying host action",
			logging.Field{Key: "action_name", Value: verb.String()},
			logging.Strings("hosts", args.IDs),
		)
		result, err := drain(r.dispatcher.Dispatch(ctx, catalog.DevicesAction, args.IDs, hostActionParams(verb)))
		if err != nil {
			return nil, err
		}
		r.log(ctx).Info("Action applied to hosts")
		return result, nil
	})
}

func hostActionParams(verb catalog.Verb) dispatch.Params {
	return dispatch.Params{Query: url.Values{"action_name": {verb.String()}}}
}
