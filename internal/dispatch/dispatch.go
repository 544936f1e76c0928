// Package dispatch turns caller-level ID lists and queries into batched,
// paginated Falcon API calls and streams the resulting resources.
//
// Every sequence returned here is lazy and single-pass: no request is sent
// until the caller ranges over it, requests are sent one chunk or page at a
// time, and breaking out of the loop stops further calls. Ranging over the
// same sequence twice yields an InvalidArgument error.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/url"
	"strconv"
	"sync/atomic"

	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/catalog"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/errors"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/logging"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/transport"
	"github.com/samber/lo"
)

// Record is one element of a response's resources array
type Record = json.RawMessage

// Caller executes a single operation call
type Caller interface {
	Call(ctx context.Context, op catalog.Operation, req transport.Request) (*transport.Response, error)
}

// Params are the non-batched parts of a dispatch
type Params struct {
	PathParams map[string]string
	Query      url.Values
	// Body fields sent alongside the batched key
	Body map[string]interface{}
	// MaxItems caps how many records a paginated read yields; zero means all
	MaxItems int
}

// Dispatcher resolves operations and drives the transport
type Dispatcher struct {
	catalog *catalog.Catalog
	caller  Caller
	logger  logging.Logger
}

// New creates a dispatcher
func New(c *catalog.Catalog, caller Caller, logger logging.Logger) *Dispatcher {
	if c == nil {
		c = catalog.Default()
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Dispatcher{catalog: c, caller: caller, logger: logger}
}

// Dispatch sends ids to opName in ordered chunks of at most the operation's batch limit
func (d *Dispatcher) Dispatch(ctx context.Context, opName string, ids []string, params Params) iter.Seq2[Record, error] {
	op, err := d.catalog.Resolve(opName)
	if err != nil {
		return fail(err)
	}
	if op.IDs != catalog.BodyIDs && op.IDs != catalog.QueryIDs {
		return fail(errors.InvalidArgumentError(fmt.Sprintf("operation %s does not take ids", op.Name)))
	}
	if len(ids) == 0 {
		return fail(errors.InvalidArgumentError("List of IDs should not be empty."))
	}

	return batches(ctx, d, op, lo.Chunk(ids, op.MaxBatch), params)
}

// DispatchResources sends resource objects to opName in ordered chunks
func (d *Dispatcher) DispatchResources(ctx context.Context, opName string, resources []interface{}, params Params) iter.Seq2[Record, error] {
	op, err := d.catalog.Resolve(opName)
	if err != nil {
		return fail(err)
	}
	if op.IDs != catalog.BodyResources {
		return fail(errors.InvalidArgumentError(fmt.Sprintf("operation %s does not take resources", op.Name)))
	}
	if len(resources) == 0 {
		return fail(errors.InvalidArgumentError("List of resources should not be empty."))
	}

	return batches(ctx, d, op, lo.Chunk(resources, op.MaxBatch), params)
}

// Query runs a read without batched values, following pagination when the operation has it
func (d *Dispatcher) Query(ctx context.Context, opName string, params Params) iter.Seq2[Record, error] {
	op, err := d.catalog.Resolve(opName)
	if err != nil {
		return fail(err)
	}
	if op.Batched() {
		return fail(errors.InvalidArgumentError(fmt.Sprintf("operation %s requires batched values", op.Name)))
	}
	if params.MaxItems < 0 {
		return fail(errors.InvalidArgumentError(fmt.Sprintf("limit must not be negative, got %d", params.MaxItems)))
	}

	return once(func(yield func(Record, error) bool) {
		d.pages(ctx, op, params, yield)
	})
}

// batches issues one call per chunk, sequentially, stopping at the first failure
func batches[T any](ctx context.Context, d *Dispatcher, op catalog.Operation, chunks [][]T, params Params) iter.Seq2[Record, error] {
	return once(func(yield func(Record, error) bool) {
		for i, chunk := range chunks {
			req := transport.Request{PathParams: params.PathParams}
			body := cloneBody(params.Body)

			if op.IDs == catalog.QueryIDs {
				req.Query = cloneQuery(params.Query)
				req.Query[op.IDKey] = lo.Map(chunk, func(id T, _ int) string { return fmt.Sprint(id) })
			} else {
				req.Query = params.Query
				body[op.IDKey] = chunk
			}
			if len(body) > 0 {
				req.Body = body
			}

			d.logger.WithContext(ctx).Debug("Dispatching batch",
				logging.Field{Key: "operation", Value: op.Name},
				logging.Field{Key: "batch", Value: i + 1},
				logging.Field{Key: "batches", Value: len(chunks)},
				logging.Field{Key: "size", Value: len(chunk)},
			)

			resp, err := d.caller.Call(ctx, op, req)
			if err != nil {
				yield(nil, fmt.Errorf("%s batch %d/%d: %w", op.Name, i+1, len(chunks), err))
				return
			}
			for _, item := range resp.Envelope.Resources {
				if !yield(item, nil) {
					return
				}
			}
		}
	})
}

// pages walks an offset or cursor paginated read until an empty page, a missing cursor or the item cap
func (d *Dispatcher) pages(ctx context.Context, op catalog.Operation, params Params, yield func(Record, error) bool) {
	query := cloneQuery(params.Query)
	pageSize := op.Pagination.PageSize
	if params.MaxItems > 0 && (pageSize == 0 || params.MaxItems < pageSize) {
		pageSize = params.MaxItems
	}
	if op.Paginated() && pageSize > 0 && query.Get("limit") == "" {
		query.Set("limit", strconv.Itoa(pageSize))
	}

	var body interface{}
	if len(params.Body) > 0 {
		body = params.Body
	}

	offset := 0
	if op.Pagination.Style == catalog.OffsetPagination {
		if start, err := strconv.Atoi(query.Get(op.Pagination.CursorParam)); err == nil {
			offset = start
		}
	}

	seen := make(map[string]bool)
	fetched, yielded := 0, 0
	for page := 1; ; page++ {
		resp, err := d.caller.Call(ctx, op, transport.Request{
			PathParams: params.PathParams,
			Query:      cloneQuery(query),
			Body:       body,
		})
		if err != nil {
			yield(nil, fmt.Errorf("%s page %d: %w", op.Name, page, err))
			return
		}

		items := resp.Envelope.Resources
		for _, item := range items {
			if params.MaxItems > 0 && yielded >= params.MaxItems {
				return
			}
			if !yield(item, nil) {
				return
			}
			yielded++
		}
		// position counts from the start of the result set, including a caller-supplied offset
		fetched += len(items)
		position := fetched
		if op.Pagination.Style == catalog.OffsetPagination {
			offset += len(items)
			position = offset
		}

		if !op.Paginated() || len(items) == 0 {
			return
		}
		if params.MaxItems > 0 && yielded >= params.MaxItems {
			return
		}

		info := resp.Envelope.Meta.Pagination
		if info == nil {
			return
		}
		if info.Total > 0 && position >= info.Total {
			return
		}

		var next string
		switch op.Pagination.Style {
		case catalog.OffsetPagination:
			next = strconv.Itoa(offset)
		case catalog.CursorPagination:
			if op.Pagination.CursorParam == "after" {
				next = info.After
			} else {
				next = string(info.Offset)
			}
		}
		if next == "" {
			return
		}
		if seen[next] {
			d.logger.WithContext(ctx).Warn("Pagination cursor repeated, stopping",
				logging.Field{Key: "operation", Value: op.Name},
				logging.Field{Key: "page", Value: page},
			)
			return
		}
		seen[next] = true
		query.Set(op.Pagination.CursorParam, next)
	}
}

// Collect drains seq, returning every record received before the first error
func Collect(seq iter.Seq2[Record, error]) ([]Record, error) {
	records := []Record{}
	for record, err := range seq {
		if err != nil {
			return records, err
		}
		records = append(records, record)
	}
	return records, nil
}

// once makes seq single-pass
func once(seq iter.Seq2[Record, error]) iter.Seq2[Record, error] {
	var consumed atomic.Bool
	return func(yield func(Record, error) bool) {
		if !consumed.CompareAndSwap(false, true) {
			yield(nil, errors.InvalidArgumentError("result sequence already consumed"))
			return
		}
		seq(yield)
	}
}

// fail returns a single-pass sequence yielding only err
func fail(err error) iter.Seq2[Record, error] {
	return once(func(yield func(Record, error) bool) {
		yield(nil, err)
	})
}

func cloneQuery(q url.Values) url.Values {
	out := make(url.Values, len(q)+1)
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func cloneBody(b map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(b)+1)
	for k, v := range b {
		out[k] = v
	}
	return out
}
