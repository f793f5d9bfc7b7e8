package models

import (
	"fmt"
	"sort"
	"strings"
)

// Scope is a set of attribute values partitioning the store into
// independent forests. The empty scope is the single default forest.
type Scope map[string]string

// Key is the canonical encoding of the scope stored in the scope column:
// attributes sorted by name, joined as "name=value" pairs with ';'.
func (s Scope) Key() string {
	if len(s) == 0 {
		return ""
	}
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)

	var sb strings.Builder
	for i, k := range names {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(s[k])
	}
	return sb.String()
}

// ParseScope parses "menu_id=1;site=a" (',' is accepted as a separator as
// well). An empty string is the default scope.
func ParseScope(s string) (Scope, error) {
	out := Scope{}
	s = strings.TrimSpace(s)
	if s == "" {
		return out, nil
	}
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' }) {
		k, v, ok := strings.Cut(part, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid scope attribute %q: expected name=value", part)
		}
		if strings.ContainsAny(v, ";,=") {
			return nil, fmt.Errorf("invalid scope value for %q", k)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}
