package registry

import (
	"strings"
	"sync"

	"github.com/taskground/taskground/pkg/api"
	"github.com/taskground/taskground/pkg/config"
	"github.com/taskground/taskground/pkg/logging"
	"github.com/taskground/taskground/pkg/session"
)

// ParamEntry is one bundle of values for a parametrization layer. Values is
// parallel to the layer's Keys.
type ParamEntry struct {
	Values []string
	ID     string
	Tags   []string
}

// ParamLayer is one stacked parametrization: a set of argument names and the
// entries to expand them with. Stacked layers compose by Cartesian product
// in declaration order.
type ParamLayer struct {
	Keys    []string
	Entries []ParamEntry
}

// Decl is the immutable declaration captured from the configuration script.
type Decl struct {
	Name string
	Func session.Func
	Doc  string

	// Python holds a single interpreter spec; Pythons a list. When Pythons
	// is set, expansion suffixes the session name per interpreter. NoVenv
	// means "no backend; run on host".
	Python  string
	Pythons []string
	NoVenv  bool

	Reuse         config.ReusePolicy
	Backends      []string
	BackendParams []string
	Tags          []string
	Default       bool
	Requires      []string

	Layers []ParamLayer
}

// Registry collects session declarations during configuration evaluation.
// Registration is side-effectful; after evaluation the registry is
// snapshotted and cleared.
type Registry struct {
	mu    sync.Mutex
	decls []*Decl
	seen  map[string]struct{}
}

func New() *Registry {
	return &Registry{seen: make(map[string]struct{})}
}

// Session starts a declaration for fn under the given name. The returned
// builder must be finished with Register.
func (r *Registry) Session(name string, fn session.Func) *Builder {
	return &Builder{r: r, d: &Decl{Name: name, Func: fn, Default: true}}
}

// Snapshot returns the declarations registered so far, in declaration order,
// and clears the registry.
func (r *Registry) Snapshot() []*Decl {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.decls
	r.decls = nil
	r.seen = make(map[string]struct{})
	return out
}

func (r *Registry) add(d *Decl) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.seen[d.Name]; dup {
		// A duplicate is a warning today; it becomes a hard error after the
		// deprecation window.
		logging.S().Warnf("session %q is declared more than once; this will become an error", d.Name)
	}
	r.seen[d.Name] = struct{}{}
	r.decls = append(r.decls, d)
	return nil
}

// Builder assembles a Decl. Methods mirror the registration surface of the
// configuration host; each returns the builder for chaining.
type Builder struct {
	r   *Registry
	d   *Decl
	err error
}

func (b *Builder) Python(spec string) *Builder {
	b.d.Python = spec
	return b
}

func (b *Builder) Pythons(specs ...string) *Builder {
	b.d.Pythons = specs
	return b
}

// NoVenv declares a host-run session with no backing environment.
func (b *Builder) NoVenv() *Builder {
	b.d.NoVenv = true
	return b
}

func (b *Builder) Reuse(p config.ReusePolicy) *Builder {
	b.d.Reuse = p
	return b
}

// Backend sets the backend preference chain; the first available wins.
func (b *Builder) Backend(chain ...string) *Builder {
	b.d.Backends = chain
	return b
}

func (b *Builder) BackendParams(params ...string) *Builder {
	b.d.BackendParams = params
	return b
}

func (b *Builder) Tags(tags ...string) *Builder {
	b.d.Tags = append(b.d.Tags, tags...)
	return b
}

// NotDefault excludes the session from bare invocations.
func (b *Builder) NotDefault() *Builder {
	b.d.Default = false
	return b
}

func (b *Builder) Requires(targets ...string) *Builder {
	b.d.Requires = append(b.d.Requires, targets...)
	return b
}

func (b *Builder) Doc(doc string) *Builder {
	b.d.Doc = doc
	return b
}

// Parametrize stacks a parametrization layer. keys is one argument name or
// several comma-separated names; each entry's Values must match.
func (b *Builder) Parametrize(keys string, entries ...ParamEntry) *Builder {
	layer := ParamLayer{Keys: splitKeys(keys), Entries: entries}
	for _, e := range entries {
		if len(e.Values) != len(layer.Keys) {
			b.err = api.Errorf(api.KindInvalidSession,
				"session %q: parametrize %q expects %d value(s) per entry, got %d",
				b.d.Name, keys, len(layer.Keys), len(e.Values))
			return b
		}
	}
	b.d.Layers = append(b.d.Layers, layer)
	return b
}

// Values is a convenience for single-key parametrizations without ids.
func Values(vals ...string) []ParamEntry {
	out := make([]ParamEntry, len(vals))
	for i, v := range vals {
		out[i] = ParamEntry{Values: []string{v}}
	}
	return out
}

// Param wraps one value bundle with an id and tags, mirroring the host's
// param(value, id, tags) wrapper.
func Param(values []string, id string, tags ...string) ParamEntry {
	return ParamEntry{Values: values, ID: id, Tags: tags}
}

// Register finalizes the declaration.
func (b *Builder) Register() error {
	if b.err != nil {
		return b.err
	}
	if b.d.Name == "" {
		return api.Errorf(api.KindInvalidSession, "session declared without a name")
	}
	if (b.d.Python != "" || len(b.d.Pythons) > 0) && b.d.NoVenv {
		return api.Errorf(api.KindInvalidSession,
			"session %q: cannot combine an interpreter with no-venv", b.d.Name)
	}
	for _, l := range b.d.Layers {
		for _, k := range l.Keys {
			if k == "python" && (b.d.Python != "" || len(b.d.Pythons) > 0) {
				return api.Errorf(api.KindInvalidSession,
					"session %q: parametrizing python requires an empty interpreter list", b.d.Name)
			}
		}
	}
	return b.r.add(b.d)
}

// ShortDoc returns the first line of the docstring.
func (d *Decl) ShortDoc() string {
	for i := 0; i < len(d.Doc); i++ {
		if d.Doc[i] == '\n' {
			return d.Doc[:i]
		}
	}
	return d.Doc
}

func splitKeys(keys string) []string {
	var out []string
	for _, k := range strings.Split(keys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
