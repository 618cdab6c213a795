package httpclient

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Operator is a PostgREST comparison operator.
type Operator string

const (
	OpEq    Operator = "eq"
	OpNeq   Operator = "neq"
	OpGt    Operator = "gt"
	OpGte   Operator = "gte"
	OpLt    Operator = "lt"
	OpLte   Operator = "lte"
	OpLike  Operator = "like"
	OpILike Operator = "ilike"
	OpIs    Operator = "is"
	OpIn    Operator = "in"
)

// Filter is one of Equals, In or Compare.
type Filter interface {
	isFilter()
}

// Equals matches a column against a single scalar.
type Equals struct {
	Value any
}

// In matches a column against any of Values.
type In struct {
	Values []any
}

// Compare applies Op to the column with Value as operand.
type Compare struct {
	Op    Operator
	Value any
}

func (Equals) isFilter()  {}
func (In) isFilter()      {}
func (Compare) isFilter() {}

func Eq(v any) Filter {
	return Equals{Value: v}
}

// OneOf builds an In filter from a typed slice.
func OneOf[T any](values ...T) Filter {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return In{Values: vs}
}

func Cmp(op Operator, v any) Filter {
	return Compare{Op: op, Value: v}
}

// Filters maps a column name to the filter applied to it.
type Filters map[string]Filter

// Merge returns a copy of f with every entry of other applied on top.
func (f Filters) Merge(other Filters) Filters {
	out := make(Filters, len(f)+len(other))
	for k, v := range f {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Condition pairs a column with a filter, used inside or=(...) groups.
type Condition struct {
	Column string
	Filter Filter
}

// EncodeFilter renders the right-hand side of column=operator.value.
func EncodeFilter(f Filter) string {
	return encodeFilter(f, false)
}

// encodeFilter renders f; grouped quotes scalar operands that would otherwise
// split an or=(...) group.
func encodeFilter(f Filter, grouped bool) string {
	scalar := formatValue
	if grouped {
		scalar = func(v any) string { return quoteReserved(formatValue(v)) }
	}
	switch f := f.(type) {
	case Equals:
		return string(OpEq) + "." + scalar(f.Value)
	case In:
		return string(OpIn) + "." + formatList(f.Values)
	case Compare:
		if f.Op == OpIn {
			return string(OpIn) + "." + formatList(toSlice(f.Value))
		}
		return string(f.Op) + "." + scalar(f.Value)
	}
	return ""
}

// EncodeOr renders conditions as a PostgREST or-group, e.g. (a.eq.1,b.ilike.*x*).
func EncodeOr(conds []Condition) string {
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		parts = append(parts, c.Column+"."+encodeFilter(c.Filter, true))
	}
	return "(" + strings.Join(parts, ",") + ")"
}

func formatList(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = quoteReserved(formatValue(v))
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// quoteReserved double-quotes a list or group operand containing PostgREST
// delimiters, backslash-escaping embedded quotes and backslashes.
func quoteReserved(s string) string {
	if !strings.ContainsAny(s, `,()"\`) {
		return s
	}
	return `"` + quoteEscaper.Replace(s) + `"`
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func toSlice(v any) []any {
	if vs, ok := v.([]any); ok {
		return vs
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{v}
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

type queryPair struct {
	key   string
	value string
}

// buildQuery serializes plain params and column filters into a query string
// without the leading '?'. Keys are sorted so equal inputs give equal URLs.
func buildQuery(params map[string]any, filters Filters) string {
	pairs := make([]queryPair, 0, len(params)+len(filters))
	for k, v := range params {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			pairs = append(pairs, queryPair{k, s})
			continue
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			for _, item := range toSlice(v) {
				pairs = append(pairs, queryPair{k, formatValue(item)})
			}
			continue
		}
		if rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				continue
			}
			v = rv.Elem().Interface()
		}
		pairs = append(pairs, queryPair{k, formatValue(v)})
	}
	for k, f := range filters {
		if f == nil {
			continue
		}
		pairs = append(pairs, queryPair{k, EncodeFilter(f)})
	}
	if len(pairs) == 0 {
		return ""
	}

	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(escapeValue(p.value))
	}
	return b.String()
}

// PostgREST grammar characters stay readable in the query string.
var grammarUnescaper = strings.NewReplacer("%28", "(", "%29", ")", "%2C", ",", "%2A", "*")

func escapeValue(s string) string {
	return grammarUnescaper.Replace(url.QueryEscape(s))
}
