package catalog

import (
	"strings"
)

// Filter builds Falcon Query Language expressions.
// Terms added with And are joined with "+", groups built by Or with ",".
type Filter struct {
	terms []string
}

// NewFilter starts an empty filter
func NewFilter() *Filter {
	return &Filter{}
}

// Eq adds field:'value'
func (f *Filter) Eq(field, value string) *Filter {
	f.terms = append(f.terms, field+":"+quote(value))
	return f
}

// NotEq adds field:!'value'
func (f *Filter) NotEq(field, value string) *Filter {
	f.terms = append(f.terms, field+":!"+quote(value))
	return f
}

// In adds field:['a','b']
func (f *Filter) In(field string, values ...string) *Filter {
	if len(values) == 0 {
		return f
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = quote(v)
	}
	f.terms = append(f.terms, field+":["+strings.Join(quoted, ",")+"]")
	return f
}

// Compare adds field:>=value style range terms; op is one of >, >=, <, <=
func (f *Filter) Compare(field, op, value string) *Filter {
	f.terms = append(f.terms, field+":"+op+quote(value))
	return f
}

// Raw appends an expression as-is
func (f *Filter) Raw(expr string) *Filter {
	if expr != "" {
		f.terms = append(f.terms, expr)
	}
	return f
}

// Group appends expr in parentheses so its ',' alternatives bind before '+'
func (f *Filter) Group(expr string) *Filter {
	if expr != "" {
		f.terms = append(f.terms, "("+expr+")")
	}
	return f
}

// Or appends a parenthesised disjunction of the given filters
func (f *Filter) Or(filters ...*Filter) *Filter {
	parts := make([]string, 0, len(filters))
	for _, other := range filters {
		if s := other.String(); s != "" {
			parts = append(parts, s)
		}
	}
	switch len(parts) {
	case 0:
	case 1:
		f.terms = append(f.terms, parts[0])
	default:
		f.terms = append(f.terms, "("+strings.Join(parts, ",")+")")
	}
	return f
}

// String renders the filter
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return strings.Join(f.terms, "+")
}

func quote(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `'`, `\'`)
	return "'" + value + "'"
}
