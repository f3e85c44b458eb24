package registry

import (
	"strings"
)

// CallSpec is the argument bundle distinguishing one parametric instance
// from its siblings. Keys preserves insertion order.
type CallSpec struct {
	Keys []string
	Args map[string]string
	ID   string
	Tags []string

	// customID records that ID was user-supplied rather than synthesized
	// from the rendered arguments.
	customID bool
}

// Empty reports whether the spec carries no arguments and no id.
func (c *CallSpec) Empty() bool {
	return c == nil || (len(c.Keys) == 0 && c.ID == "")
}

// Render produces the canonical parenthesized tail: (id) when an id is
// present, else (key='value', ...) in key order.
func (c *CallSpec) Render() string {
	if c.Empty() {
		return ""
	}
	if c.ID != "" {
		return "(" + c.ID + ")"
	}
	var sb strings.Builder
	sb.WriteByte('(')
	for i, k := range c.Keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteString("='")
		sb.WriteString(c.Args[k])
		sb.WriteByte('\'')
	}
	sb.WriteByte(')')
	return sb.String()
}

// ParseName splits a canonical instance name into its base and call spec.
// Names without a parenthesized tail return a nil spec. The parser accepts
// both single- and double-quoted values, so names produced by other tools
// compare equal to ours.
func ParseName(name string) (base string, spec *CallSpec, ok bool) {
	open := strings.IndexByte(name, '(')
	if open < 0 || !strings.HasSuffix(name, ")") {
		return name, nil, true
	}
	base = name[:open]
	inner := name[open+1 : len(name)-1]

	spec = &CallSpec{Args: map[string]string{}}
	fields, ok := splitArgs(inner)
	if !ok {
		return "", nil, false
	}

	for _, f := range fields {
		eq := strings.IndexByte(f, '=')
		if eq < 0 {
			// Not a key=value bundle: the whole tail is a custom id.
			return base, &CallSpec{ID: inner}, true
		}
		k := strings.TrimSpace(f[:eq])
		v, unquoted := unquote(strings.TrimSpace(f[eq+1:]))
		if !unquoted {
			return base, &CallSpec{ID: inner}, true
		}
		spec.Keys = append(spec.Keys, k)
		spec.Args[k] = v
	}
	return base, spec, true
}

// NamesEqual compares two canonical names under the argument-bundle
// equality rule: tests(x='1') == tests(x="1").
func NamesEqual(a, b string) bool {
	if a == b {
		return true
	}
	baseA, specA, okA := ParseName(a)
	baseB, specB, okB := ParseName(b)
	if !okA || !okB || baseA != baseB {
		return false
	}
	return specsEqual(specA, specB)
}

func specsEqual(a, b *CallSpec) bool {
	if a.Empty() || b.Empty() {
		return a.Empty() == b.Empty()
	}
	if a.ID != "" || b.ID != "" {
		return a.ID == b.ID
	}
	if len(a.Keys) != len(b.Keys) {
		return false
	}
	for i, k := range a.Keys {
		if b.Keys[i] != k || a.Args[k] != b.Args[k] {
			return false
		}
	}
	return true
}

// splitArgs splits on commas that are not inside quotes.
func splitArgs(s string) ([]string, bool) {
	var (
		out   []string
		start int
		quote byte
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == ',':
			out = append(out, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if quote != 0 {
		return nil, false
	}
	if last := strings.TrimSpace(s[start:]); last != "" {
		out = append(out, last)
	}
	return out, true
}

func unquote(s string) (string, bool) {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1], true
		}
	}
	// Bare values are tolerated on input.
	return s, true
}
