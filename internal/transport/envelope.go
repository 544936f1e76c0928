package transport

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Envelope is the body shape shared by Falcon API responses
type Envelope struct {
	Meta      Meta       `json:"meta"`
	Resources Resources  `json:"resources"`
	Errors    []APIError `json:"errors"`
}

// Meta carries query metadata
type Meta struct {
	QueryTime  float64   `json:"query_time,omitempty"`
	TraceID    string    `json:"trace_id,omitempty"`
	Pagination *PageInfo `json:"pagination,omitempty"`
}

// PageInfo describes where a paginated read stands
type PageInfo struct {
	Offset    Cursor `json:"offset"`
	Limit     int    `json:"limit"`
	Total     int    `json:"total"`
	After     string `json:"after,omitempty"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

// APIError is one entry of the envelope errors array
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

// Cursor holds meta.pagination.offset, which is a number for offset
// pagination and an opaque string for scroll endpoints
type Cursor string

// UnmarshalJSON accepts a JSON string, number or null
func (c *Cursor) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*c = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Cursor(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*c = Cursor(n.String())
	}
	return nil
}

// Int returns the cursor as a numeric offset
func (c Cursor) Int() (int, bool) {
	n, err := strconv.Atoi(string(c))
	return n, err == nil
}

// Resources is the envelope resources array, kept as raw JSON items
type Resources []json.RawMessage

// UnmarshalJSON accepts an array, null, or a single value treated as one item
func (r *Resources) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*r = nil
	case len(data) > 0 && data[0] == '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*r = items
	default:
		*r = Resources{json.RawMessage(append([]byte(nil), data...))}
	}
	return nil
}
