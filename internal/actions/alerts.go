package actions

import (
	"context"
	"strings"

	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/catalog"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/errors"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/logging"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/dispatch"
)

// ActionParameter is one name/value pair of an action_parameters body field
type ActionParameter struct {
	Name  string `json:"name" validate:"required"`
	Value string `json:"value"`
}

type alertStatusArgs struct {
	IDs       []string `json:"ids" validate:"dive,notblank"`
	NewStatus string   `json:"new_status"`
}

type alertCommentArgs struct {
	IDs     []string `json:"ids" validate:"dive,notblank"`
	Comment string   `json:"comment"`
}

func alertActions() []Action {
	return []Action{
		define("alert_update_status", "Change the status of alerts",
			func(ctx context.Context, r *Runner, args alertStatusArgs) (Result, error) {
				if err := requireIDs(args.IDs); err != nil {
					return nil, err
				}
				status, err := catalog.ParseVerb(args.NewStatus, catalog.AlertStatuses)
				if err != nil {
					return nil, err
				}

				r.log(ctx).Info("Updating alert status",
					logging.Field{Key: "status", Value: status.String()},
					logging.Field{Key: "alerts", Value: len(args.IDs)},
				)
				return drain(updateAlerts(ctx, r, args.IDs, ActionParameter{Name: "update_status", Value: status.String()}))
			}),

		define("alert_add_comment", "Append a comment to alerts",
			func(ctx context.Context, r *Runner, args alertCommentArgs) (Result, error) {
				if err := requireIDs(args.IDs); err != nil {
					return nil, err
				}
				if strings.TrimSpace(args.Comment) == "" {
					return nil, errors.InvalidArgumentError("Comment should not be empty.")
				}

				r.log(ctx).Info("Commenting alerts", logging.Field{Key: "alerts", Value: len(args.IDs)})
				return drain(updateAlerts(ctx, r, args.IDs, ActionParameter{Name: "append_comment", Value: args.Comment}))
			}),

		fetchByIDs("get_alerts_v2", "Get alert details by composite ID", catalog.AlertsGet, "alerts", "alerts"),
	}
}

func updateAlerts(ctx context.Context, r *Runner, ids []string, param ActionParameter) dispatchSeq {
	return r.dispatcher.Dispatch(ctx, catalog.AlertsUpdate, ids, dispatch.Params{
		Body: map[string]interface{}{"action_parameters": []ActionParameter{param}},
	})
}
