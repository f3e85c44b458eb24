package selector

import (
	"path"

	"github.com/taskground/taskground/pkg/api"
	"github.com/taskground/taskground/pkg/config"
	"github.com/taskground/taskground/pkg/registry"

	"github.com/hashicorp/go-multierror"
)

// Select filters the expanded instance list per the invocation options,
// keeping the user-given order for explicit name selections (duplicates run
// twice) and declaration order otherwise.
func Select(instances []*registry.Instance, opts *config.Options) ([]*registry.Instance, error) {
	selected := instances

	if len(opts.Sessions) > 0 {
		var (
			out  []*registry.Instance
			merr *multierror.Error
		)
		for _, pattern := range opts.Sessions {
			matches := matchPattern(instances, pattern)
			if len(matches) == 0 {
				merr = multierror.Append(merr, api.Errorf(api.KindInvalidSession,
					"session %q not found", pattern))
				continue
			}
			out = append(out, matches...)
		}
		if err := merr.ErrorOrNil(); err != nil {
			return nil, err
		}
		selected = out
	} else {
		// Bare invocation: keep default-selected declarations.
		out := make([]*registry.Instance, 0, len(selected))
		for _, in := range selected {
			if in.Decl.Default {
				out = append(out, in)
			}
		}
		selected = out
	}

	if len(opts.Pythons) > 0 {
		out := selected[:0:0]
		for _, in := range selected {
			for _, p := range opts.Pythons {
				if in.Python == p {
					out = append(out, in)
					break
				}
			}
		}
		selected = out
	}

	if opts.Keywords != "" {
		expr, err := ParseKeywords(opts.Keywords)
		if err != nil {
			return nil, err
		}
		out := selected[:0:0]
		for _, in := range selected {
			if expr.eval(in.Name, tagSet(in.Tags)) {
				out = append(out, in)
			}
		}
		selected = out
	}

	if len(opts.Tags) > 0 {
		out := selected[:0:0]
		for _, in := range selected {
			if intersects(in.Tags, opts.Tags) {
				out = append(out, in)
			}
		}
		selected = out
	}

	return selected, nil
}

// matchPattern returns the instances matching one selection pattern, in
// instance order. A pattern matches the full canonical name, the
// python-suffixed name, or the bare name; matching a base form includes all
// of its parametric expansions. Shell-style wildcards are honored.
func matchPattern(instances []*registry.Instance, pattern string) []*registry.Instance {
	var out []*registry.Instance
	for _, in := range instances {
		if registry.NamesEqual(in.Name, pattern) ||
			in.PythonName == pattern ||
			in.BareName == pattern ||
			globMatch(pattern, in.Name) ||
			globMatch(pattern, in.PythonName) ||
			globMatch(pattern, in.BareName) {
			out = append(out, in)
		}
	}
	return out
}

func globMatch(pattern, name string) bool {
	if ok, err := path.Match(pattern, name); err == nil && ok {
		return true
	}
	return false
}

func tagSet(tags []string) map[string]struct{} {
	m := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		m[t] = struct{}{}
	}
	return m
}

func intersects(a, b []string) bool {
	set := tagSet(a)
	for _, t := range b {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}
