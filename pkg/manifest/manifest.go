package manifest

import (
	"strings"

	"github.com/taskground/taskground/pkg/api"
	"github.com/taskground/taskground/pkg/registry"
)

// Manifest is the ordered, mutable queue of session instances the runner
// will execute. Membership checks are O(1) by canonical name. The universe
// holds every expanded instance, so notify and requires can pull in
// instances that were not selected.
type Manifest struct {
	entries  []*registry.Instance
	queued   map[string]struct{}
	done     map[string]api.Status
	universe []*registry.Instance
}

// New builds a manifest from the selected instances over the full expanded
// universe.
func New(selected, universe []*registry.Instance) *Manifest {
	m := &Manifest{
		queued:   make(map[string]struct{}, len(selected)),
		done:     make(map[string]api.Status),
		universe: universe,
	}
	for _, in := range selected {
		m.append(in)
	}
	return m
}

func (m *Manifest) append(in *registry.Instance) {
	m.entries = append(m.entries, in)
	m.queued[in.Name] = struct{}{}
}

// Len returns the current queue length; it may grow during a run via
// Notify.
func (m *Manifest) Len() int { return len(m.entries) }

// At returns the i-th queued instance.
func (m *Manifest) At(i int) *registry.Instance { return m.entries[i] }

// Queued reports whether an instance with the given canonical name is in
// the queue.
func (m *Manifest) Queued(name string) bool {
	if _, ok := m.queued[name]; ok {
		return true
	}
	// Fall back to bundle equality so quoting variants still match.
	for queued := range m.queued {
		if registry.NamesEqual(queued, name) {
			return true
		}
	}
	return false
}

// MarkDone records the final status of an executed instance.
func (m *Manifest) MarkDone(name string, status api.Status) {
	m.done[name] = status
}

// Done returns the recorded status for a name, if any.
func (m *Manifest) Done(name string) (api.Status, bool) {
	s, ok := m.done[name]
	return s, ok
}

// Notify appends a fresh copy of the target instance to the end of the
// queue. Already-queued and already-completed targets are a no-op. Unknown
// targets are an error.
func (m *Manifest) Notify(target string, posargs []string) error {
	in := m.lookup(target)
	if in == nil {
		return api.Errorf(api.KindInvalidSession, "notify target %q not found", target)
	}
	if m.Queued(in.Name) {
		return nil
	}
	if _, completed := m.done[in.Name]; completed {
		return nil
	}
	cp := *in
	if posargs != nil {
		cp.SetPosargs(posargs)
	}
	m.append(&cp)
	return nil
}

// lookup finds the first universe instance matching a target: by canonical
// name under bundle equality, by python-suffixed name, or by bare name.
func (m *Manifest) lookup(target string) *registry.Instance {
	for _, in := range m.universe {
		if registry.NamesEqual(in.Name, target) || in.PythonName == target || in.BareName == target {
			return in
		}
	}
	return nil
}

// ResolveRequires expands the requires edges of every queued instance,
// inserting required instances before their first dependent, and verifies
// the graph is acyclic. The result preserves the user's requested order
// wherever dependencies allow.
func (m *Manifest) ResolveRequires() error {
	var (
		ordered []*registry.Instance
		emitted = map[string]struct{}{}
		visit   func(in *registry.Instance, chain []string) error
	)

	visit = func(in *registry.Instance, chain []string) error {
		if _, ok := emitted[in.Name]; ok {
			return nil
		}
		for _, seen := range chain {
			if seen == in.Name {
				return api.Errorf(api.KindRequiresCycle,
					"requires cycle: %s", strings.Join(append(chain, in.Name), " -> "))
			}
		}
		chain = append(chain, in.Name)

		for _, tmpl := range in.Decl.Requires {
			target := strings.ReplaceAll(tmpl, "{python}", in.Python)
			dep := m.lookup(target)
			if dep == nil {
				return api.Errorf(api.KindRequiresMissing,
					"session %q requires %q, which matches no session", in.Name, target)
			}
			if err := visit(dep, chain); err != nil {
				return err
			}
		}

		emitted[in.Name] = struct{}{}
		ordered = append(ordered, in)
		return nil
	}

	for _, in := range m.entries {
		if _, ok := emitted[in.Name]; ok {
			// An explicitly duplicated selection runs again; its
			// requirements are already queued.
			ordered = append(ordered, in)
			continue
		}
		if err := visit(in, nil); err != nil {
			return err
		}
	}

	m.entries = ordered
	m.queued = make(map[string]struct{}, len(ordered))
	for _, in := range ordered {
		m.queued[in.Name] = struct{}{}
	}
	return nil
}

// UnsatisfiedRequires returns the names of requirements of in that ran and
// did not succeed. Topological ordering guarantees requirements ran before
// their dependents.
func (m *Manifest) UnsatisfiedRequires(in *registry.Instance) []string {
	var out []string
	for _, tmpl := range in.Decl.Requires {
		target := strings.ReplaceAll(tmpl, "{python}", in.Python)
		dep := m.lookup(target)
		if dep == nil {
			continue
		}
		if st, ok := m.done[dep.Name]; ok && st != api.StatusSuccess {
			out = append(out, dep.Name)
		}
	}
	return out
}

// RequiredBy returns the queued dependents of the named instance, direct or
// transitive.
func (m *Manifest) RequiredBy(name string) []*registry.Instance {
	var out []*registry.Instance
	for _, in := range m.entries {
		for _, tmpl := range in.Decl.Requires {
			target := strings.ReplaceAll(tmpl, "{python}", in.Python)
			if dep := m.lookup(target); dep != nil && dep.Name == name {
				out = append(out, in)
				out = append(out, m.RequiredBy(in.Name)...)
			}
		}
	}
	return out
}
