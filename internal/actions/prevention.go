package actions

import (
	"context"
	"net/url"
	"strings"

	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/catalog"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/errors"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/logging"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/dispatch"
)

type preventionActionArgs struct {
	IDs              []string          `json:"ids" validate:"dive,notblank"`
	ActionName       string            `json:"action_name"`
	ActionParameters []ActionParameter `json:"action_parameters" validate:"dive"`
}

type policyResourcesArgs struct {
	Resources []map[string]interface{} `json:"resources"`
}

func preventionActions() []Action {
	return []Action{
		define("perform_prevention_policy_action", "Enable, disable or regroup prevention policies",
			func(ctx context.Context, r *Runner, args preventionActionArgs) (Result, error) {
				if err := requireIDs(args.IDs); err != nil {
					return nil, err
				}
				if strings.TrimSpace(args.ActionName) == "" {
					return nil, errors.InvalidArgumentError("Action name should not be empty.")
				}
				verb, err := catalog.ParseVerb(args.ActionName, catalog.PreventionActions)
				if err != nil {
					return nil, err
				}

				params := dispatch.Params{Query: url.Values{"action_name": {verb.String()}}}
				if len(args.ActionParameters) > 0 {
					params.Body = map[string]interface{}{"action_parameters": args.ActionParameters}
				}

				r.log(ctx).Info("Performing prevention policy action",
					logging.Field{Key: "action_name", Value: verb.String()},
					logging.Field{Key: "policies", Value: len(args.IDs)},
				)
				return collect(r.dispatcher.Dispatch(ctx, catalog.PreventionAction, args.IDs, params), "resources")
			}),

		fetchByIDs("get_prevention_policies", "Get prevention policies", catalog.PreventionGet, "policies", "prevention policies"),

		define("delete_prevention_policies", "Delete prevention policies",
			func(ctx context.Context, r *Runner, args idArgs) (Result, error) {
				if err := requireIDs(args.IDs); err != nil {
					return nil, err
				}
				r.log(ctx).Info("Deleting prevention policies", logging.Field{Key: "policies", Value: len(args.IDs)})
				result, err := drain(r.dispatcher.Dispatch(ctx, catalog.PreventionDelete, args.IDs, dispatch.Params{}))
				if err != nil {
					return nil, err
				}
				r.log(ctx).Info("Prevention policies deleted")
				return result, nil
			}),

		writePolicies("create_prevention_policies", "Create prevention policies", catalog.PreventionCreate),
		writePolicies("update_prevention_policies", "Update prevention policies", catalog.PreventionUpdate),
	}
}

func writePolicies(name, description, opName string) Action {
	return define(name, description, func(ctx context.Context, r *Runner, args policyResourcesArgs) (Result, error) {
		if err := requireResources(args.Resources); err != nil {
			return nil, err
		}
		r.log(ctx).Info(description, logging.Field{Key: "policies", Value: len(args.Resources)})
		return collect(r.dispatcher.DispatchResources(ctx, opName, toInterfaces(args.Resources), dispatch.Params{}), "policies")
	})
}
