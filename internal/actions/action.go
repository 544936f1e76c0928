// Package actions implements the connector's named actions on top of the dispatcher.
//
// Every action decodes its JSON arguments into a typed struct, validates them
// with struct tags, refuses empty ID and resource lists before any network
// call, and returns a Result keyed by the action's output vocabulary.
package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"time"

	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/catalog"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/errors"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/logging"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/registry"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/validation"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/dispatch"
	xoauth2 "golang.org/x/oauth2"
)

// Result is an action's output payload
type Result map[string]interface{}

type dispatchSeq = iter.Seq2[dispatch.Record, error]

// Dispatcher is the part of dispatch.Dispatcher the actions use
type Dispatcher interface {
	Dispatch(ctx context.Context, opName string, ids []string, params dispatch.Params) iter.Seq2[dispatch.Record, error]
	DispatchResources(ctx context.Context, opName string, resources []interface{}, params dispatch.Params) iter.Seq2[dispatch.Record, error]
	Query(ctx context.Context, opName string, params dispatch.Params) iter.Seq2[dispatch.Record, error]
}

// Tokens exposes the credential cache as an x/oauth2 token source
type Tokens interface {
	TokenSource(ctx context.Context) xoauth2.TokenSource
}

// Action is a named, self-validating unit of work
type Action struct {
	name        string
	description string
	run         func(ctx context.Context, r *Runner, raw json.RawMessage) (Result, error)
}

// Name returns the action name
func (a Action) Name() string { return a.name }

// Description returns a one-line summary
func (a Action) Description() string { return a.description }

// define builds an Action whose arguments decode into A
func define[A any](name, description string, fn func(ctx context.Context, r *Runner, args A) (Result, error)) Action {
	return Action{
		name:        name,
		description: description,
		run: func(ctx context.Context, r *Runner, raw json.RawMessage) (Result, error) {
			var args A
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			if err := r.validator.ValidateStruct(args); err != nil {
				return nil, err
			}
			return fn(ctx, r, args)
		},
	}
}

func decodeArgs(raw json.RawMessage, v interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.InvalidArgumentError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}

// Runner resolves actions by name and runs them against a dispatcher
type Runner struct {
	actions    *registry.Registry[Action]
	dispatcher Dispatcher
	tokens     Tokens
	validator  *validation.CentralizedValidator
	logger     logging.Logger
}

// NewRunner registers every built-in action
func NewRunner(d Dispatcher, tokens Tokens, logger logging.Logger) (*Runner, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	v := validation.NewCentralizedValidator()
	enums := map[string]catalog.VerbSet{
		"ioc_type":     catalog.IOCTypes,
		"ioc_severity": catalog.IOCSeverities,
		"ioc_platform": catalog.IOCPlatforms,
	}
	for tag, set := range enums {
		if err := v.RegisterEnum(tag, set.Values(), verbMessage(set)); err != nil {
			return nil, err
		}
	}

	r := &Runner{
		actions:    registry.New[Action](),
		dispatcher: d,
		tokens:     tokens,
		validator:  v,
		logger:     logger,
	}
	for _, group := range [][]Action{hostActions(), alertActions(), incidentActions(), preventionActions(), iocActions(), accountActions()} {
		for _, action := range group {
			r.actions.Register(action)
		}
	}
	return r, nil
}

// Names lists the registered actions
func (r *Runner) Names() []string {
	return r.actions.Names()
}

// Lookup returns the named action
func (r *Runner) Lookup(name string) (Action, error) {
	return r.actions.Get(name)
}

// Run executes the named action with raw JSON arguments
func (r *Runner) Run(ctx context.Context, name string, raw json.RawMessage) (Result, error) {
	action, err := r.actions.Get(name)
	if err != nil {
		return nil, err
	}

	logger := r.logger.WithContext(ctx).WithFields(logging.Field{Key: "action", Value: name})
	start := time.Now()

	result, err := action.run(ctx, r, raw)
	if err != nil {
		logger.Warn("Action failed",
			logging.Field{Key: "error_type", Value: string(errors.GetType(err))},
			logging.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
			logging.Err(err),
		)
		return nil, err
	}

	logger.Info("Action completed", logging.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()})
	if result == nil {
		result = Result{}
	}
	return result, nil
}

func (r *Runner) log(ctx context.Context) logging.Logger {
	return r.logger.WithContext(ctx)
}

// verbMessage reuses ParseVerb's wording for tag validation failures
func verbMessage(set catalog.VerbSet) func(field, value string) string {
	return func(field, value string) string {
		_, err := catalog.ParseVerb(value, set)
		if appErr, ok := errors.As(err); ok {
			return appErr.Message
		}
		return fmt.Sprintf("field '%s' has invalid value %q", field, value)
	}
}

func requireIDs(ids []string) error {
	if len(ids) == 0 {
		return errors.InvalidArgumentError("List of IDs should not be empty.")
	}
	return nil
}

func requireResources[T any](resources []T) error {
	if len(resources) == 0 {
		return errors.InvalidArgumentError("List of resources should not be empty.")
	}
	return nil
}

// collect drains seq into Result{key: records}
func collect(seq dispatchSeq, key string) (Result, error) {
	records, err := dispatch.Collect(seq)
	if err != nil {
		return nil, err
	}
	return Result{key: records}, nil
}

// drain consumes seq for its side effects
func drain(seq dispatchSeq) (Result, error) {
	if _, err := dispatch.Collect(seq); err != nil {
		return nil, err
	}
	return Result{}, nil
}

func toInterfaces[T any](items []T) []interface{} {
	out := make([]interface{}, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

// withFilter combines a caller's raw FQL expression with structured terms
func withFilter(raw string, terms *catalog.Filter) string {
	structured := terms.String()
	switch {
	case structured == "":
		return raw
	case raw == "":
		return structured
	}
	return catalog.NewFilter().Group(raw).Raw(structured).String()
}

// idArgs is the argument shape shared by every ID-list action
type idArgs struct {
	IDs []string `json:"ids" validate:"dive,notblank"`
}

// fetchByIDs builds the common "look these IDs up" action
func fetchByIDs(name, description, opName, key, noun string) Action {
	return define(name, description, func(ctx context.Context, r *Runner, args idArgs) (Result, error) {
		if err := requireIDs(args.IDs); err != nil {
			return nil, err
		}
		r.log(ctx).Info(fmt.Sprintf("Retrieving details for %d %s", len(args.IDs), noun))
		return collect(r.dispatcher.Dispatch(ctx, opName, args.IDs, dispatch.Params{}), key)
	})
}
