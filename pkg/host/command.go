package host

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/shell"
)

// Chain is a backend preference chain that decodes from either a single
// backend name, a "uv|virtualenv" pipe-separated string, or an array.
type Chain []string

func (c *Chain) UnmarshalTOML(v interface{}) error {
	switch t := v.(type) {
	case string:
		var out []string
		for _, part := range strings.Split(t, "|") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*c = out
		return nil
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return fmt.Errorf("backend names must be strings, got %T", e)
			}
			out = append(out, s)
		}
		*c = out
		return nil
	default:
		return fmt.Errorf("backend must be a string or an array of strings, got %T", v)
	}
}

// Command is an argv vector that decodes from either a TOML string (split
// with POSIX shell word rules, so quoting behaves the way users expect) or
// an explicit array of arguments.
type Command []string

func (c *Command) UnmarshalTOML(v interface{}) error {
	switch t := v.(type) {
	case string:
		fields, err := shell.Fields(t, nil)
		if err != nil {
			return fmt.Errorf("parsing command %q: %w", t, err)
		}
		*c = fields
		return nil
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return fmt.Errorf("command arguments must be strings, got %T", e)
			}
			out = append(out, s)
		}
		*c = out
		return nil
	default:
		return fmt.Errorf("command must be a string or an array of strings, got %T", v)
	}
}
