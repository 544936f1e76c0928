// Package catalog describes the Falcon API operations the connector can call.
//
// Every operation is a static descriptor: HTTP method, path template, default
// query, where batched IDs go, the per-call batch limit and the pagination
// style. Descriptors are read-only once a Catalog is built.
package catalog

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/errors"
)

// IDLocation says where an operation expects its batched values
type IDLocation int

const (
	// NoIDs operations take no batched values
	NoIDs IDLocation = iota
	// BodyIDs operations take a JSON body {Key: [ids...]}
	BodyIDs
	// QueryIDs operations take repeated query parameters Key=id
	QueryIDs
	// BodyResources operations take a JSON body {Key: [objects...]}
	BodyResources
)

func (l IDLocation) String() string {
	switch l {
	case BodyIDs:
		return "body"
	case QueryIDs:
		return "query"
	case BodyResources:
		return "resources"
	default:
		return "none"
	}
}

// PaginationStyle is how a read operation walks through pages
type PaginationStyle int

const (
	// NoPagination operations return everything in one response
	NoPagination PaginationStyle = iota
	// OffsetPagination uses a numeric offset and stops at meta.pagination.total
	OffsetPagination
	// CursorPagination passes back an opaque cursor until the service returns an empty one
	CursorPagination
)

func (p PaginationStyle) String() string {
	switch p {
	case OffsetPagination:
		return "offset"
	case CursorPagination:
		return "cursor"
	default:
		return "none"
	}
}

// Pagination configures a paginated read
type Pagination struct {
	Style PaginationStyle
	// CursorParam is the query parameter carrying the offset or cursor
	CursorParam string
	// PageSize is sent as "limit" when the caller didn't set one
	PageSize int
}

// Operation is a static description of one remote endpoint
type Operation struct {
	Name         string
	Method       string
	PathTemplate string
	DefaultQuery url.Values
	IDs          IDLocation
	// IDKey is the body key or query parameter carrying batched values
	IDKey      string
	MaxBatch   int
	Pagination Pagination
}

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// BuildPath substitutes {name} placeholders with path-escaped values
func (o Operation) BuildPath(params map[string]string) (string, error) {
	var missing []string
	path := placeholderPattern.ReplaceAllStringFunc(o.PathTemplate, func(m string) string {
		name := m[1 : len(m)-1]
		value, ok := params[name]
		if !ok || value == "" {
			missing = append(missing, name)
			return m
		}
		return url.PathEscape(value)
	})
	if len(missing) > 0 {
		return "", errors.InvalidArgumentError(fmt.Sprintf("missing path parameter(s) %s for %s", strings.Join(missing, ", "), o.Name))
	}
	return path, nil
}

// BuildQuery merges the default query with extra, extra taking precedence per key.
// The returned values are a fresh copy.
func (o Operation) BuildQuery(extra url.Values) url.Values {
	query := url.Values{}
	for key, values := range o.DefaultQuery {
		query[key] = append([]string(nil), values...)
	}
	for key, values := range extra {
		query[key] = append([]string(nil), values...)
	}
	return query
}

// Batched reports whether the operation carries batched values
func (o Operation) Batched() bool {
	return o.IDs != NoIDs
}

// Paginated reports whether the operation walks pages
func (o Operation) Paginated() bool {
	return o.Pagination.Style != NoPagination
}

// Catalog is an immutable set of operations keyed by name
type Catalog struct {
	ops map[string]Operation
}

// New builds a catalog, rejecting duplicate or malformed descriptors
func New(ops ...Operation) (*Catalog, error) {
	c := &Catalog{ops: make(map[string]Operation, len(ops))}
	for _, op := range ops {
		if err := validate(op); err != nil {
			return nil, err
		}
		if _, exists := c.ops[op.Name]; exists {
			return nil, errors.ConfigError(fmt.Sprintf("duplicate operation %q", op.Name))
		}
		c.ops[op.Name] = op
	}
	return c, nil
}

func validate(op Operation) error {
	switch {
	case op.Name == "":
		return errors.ConfigError("operation name is required")
	case op.Method == "":
		return errors.ConfigError(fmt.Sprintf("operation %q has no method", op.Name))
	case !strings.HasPrefix(op.PathTemplate, "/"):
		return errors.ConfigError(fmt.Sprintf("operation %q path must start with /", op.Name))
	case op.Batched() && op.IDKey == "":
		return errors.ConfigError(fmt.Sprintf("operation %q has batched values but no key", op.Name))
	case op.Batched() && op.MaxBatch <= 0:
		return errors.ConfigError(fmt.Sprintf("operation %q has batched values but no batch limit", op.Name))
	case op.Paginated() && op.Pagination.CursorParam == "":
		return errors.ConfigError(fmt.Sprintf("operation %q is paginated but has no cursor parameter", op.Name))
	}
	return nil
}

// Resolve returns the named operation
func (c *Catalog) Resolve(name string) (Operation, error) {
	op, ok := c.ops[name]
	if !ok {
		return Operation{}, errors.UnknownOperationError(name)
	}
	return op, nil
}

// Names returns the operation names in sorted order
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.ops))
	for name := range c.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
