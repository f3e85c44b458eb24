package registry

import (
	"strings"

	"github.com/taskground/taskground/pkg/api"
	"github.com/taskground/taskground/pkg/logging"
)

// Instance is one expanded, runnable unit with a canonical name.
type Instance struct {
	// Name is the full canonical name, e.g. "lint-3.12(django='2.0')".
	Name string
	// BareName is the declaration name with no suffix and no arguments.
	BareName string
	// PythonName is the declaration name plus the interpreter suffix, when
	// the python axis produced one.
	PythonName string

	Python string
	NoVenv bool

	Spec *CallSpec
	Tags []string
	Decl *Decl

	// Posargs is the per-instance copy of trailing CLI arguments; instances
	// never share the backing array.
	Posargs []string
}

// CallArgs returns the call spec as a plain map copy for reporting.
func (in *Instance) CallArgs() map[string]string {
	if in.Spec.Empty() || len(in.Spec.Keys) == 0 {
		return nil
	}
	out := make(map[string]string, len(in.Spec.Keys))
	for _, k := range in.Spec.Keys {
		out[k] = in.Spec.Args[k]
	}
	return out
}

// SetPosargs installs a fresh copy of args on the instance.
func (in *Instance) SetPosargs(args []string) {
	in.Posargs = append([]string(nil), args...)
}

type pythonAxis struct {
	python string
	suffix bool
}

// Expand applies the expansion pipeline to a snapshot of declarations:
// the python axis first, then the parameter Cartesian product, then the
// python-in-parametrize rule. forcePython replaces every declared axis;
// extraPythons append suffixed copies to it.
func Expand(decls []*Decl, forcePython string, extraPythons []string) ([]*Instance, error) {
	var out []*Instance
	seen := make(map[string]string)

	for _, d := range decls {
		axes := pythonAxes(d, forcePython, extraPythons)

		for _, ax := range axes {
			combos, err := expandLayers(d)
			if err != nil {
				return nil, err
			}

			for _, c := range combos {
				inst := &Instance{
					BareName: d.Name,
					Python:   ax.python,
					NoVenv:   d.NoVenv,
					Spec:     c.spec,
					Decl:     d,
				}

				suffix := ax.suffix
				// A parameter literally named "python" selects the
				// interpreter instead of becoming a call argument.
				if c.spec != nil {
					if py, ok := c.spec.Args["python"]; ok {
						inst.Python = py
						dropKey(c.spec, "python")
						suffix = true
					}
				}

				inst.PythonName = d.Name
				if suffix && inst.Python != "" {
					inst.PythonName += "-" + inst.Python
				}
				inst.Name = inst.PythonName + c.spec.Render()

				inst.Tags = append(append([]string(nil), d.Tags...), c.tags...)

				if prev, dup := seen[inst.Name]; dup {
					logging.S().Warnf(
						"sessions %q and %q expand to the same canonical name %q; this will become an error",
						prev, d.Name, inst.Name)
				}
				seen[inst.Name] = d.Name

				out = append(out, inst)
			}
		}
	}
	return out, nil
}

func pythonAxes(d *Decl, forcePython string, extraPythons []string) []pythonAxis {
	if d.NoVenv {
		return []pythonAxis{{python: "", suffix: false}}
	}
	if forcePython != "" {
		return []pythonAxis{{python: forcePython, suffix: false}}
	}

	var axes []pythonAxis
	switch {
	case len(d.Pythons) > 0:
		for _, p := range d.Pythons {
			axes = append(axes, pythonAxis{python: p, suffix: true})
		}
		for _, p := range extraPythons {
			axes = append(axes, pythonAxis{python: p, suffix: true})
		}
	case d.Python != "":
		axes = append(axes, pythonAxis{python: d.Python, suffix: false})
		for _, p := range extraPythons {
			axes = append(axes, pythonAxis{python: p, suffix: true})
		}
	default:
		// No interpreter declared: run with the current one.
		axes = append(axes, pythonAxis{python: "", suffix: false})
	}
	return axes
}

type combo struct {
	spec *CallSpec
	tags []string
}

// expandLayers computes the Cartesian product of the declaration's stacked
// parametrization layers, preserving declaration order.
func expandLayers(d *Decl) ([]combo, error) {
	combos := []combo{{}}

	for _, layer := range d.Layers {
		next := make([]combo, 0, len(combos)*len(layer.Entries))
		for _, c := range combos {
			for _, e := range layer.Entries {
				nc := combo{
					spec: cloneSpec(c.spec),
					tags: append(append([]string(nil), c.tags...), e.Tags...),
				}
				if nc.spec == nil {
					nc.spec = &CallSpec{Args: map[string]string{}}
				}
				for i, k := range layer.Keys {
					if _, dup := nc.spec.Args[k]; dup {
						return nil, api.Errorf(api.KindInvalidSession,
							"session %q: parameter %q provided by more than one parametrization", d.Name, k)
					}
					nc.spec.Keys = append(nc.spec.Keys, k)
					nc.spec.Args[k] = e.Values[i]
				}
				nc.spec.Tags = append(nc.spec.Tags, e.Tags...)
				appendIDPart(nc.spec, layer, e)
				next = append(next, nc)
			}
		}
		combos = next
	}

	// Materialize joined ids only when at least one layer supplied a custom
	// id; otherwise the rendered arguments are the name.
	for i := range combos {
		s := combos[i].spec
		if s != nil && s.ID != "" && !s.customID {
			s.ID = ""
		}
	}
	return combos, nil
}

// appendIDPart accumulates the stacked id: a custom id when the entry has
// one, else the rendered fragment for the entry's arguments.
func appendIDPart(s *CallSpec, layer ParamLayer, e ParamEntry) {
	part := e.ID
	if part == "" {
		frags := make([]string, len(layer.Keys))
		for i, k := range layer.Keys {
			frags[i] = k + "='" + e.Values[i] + "'"
		}
		part = strings.Join(frags, ", ")
	} else {
		s.customID = true
	}
	if s.ID != "" {
		s.ID += ", "
	}
	s.ID += part
}

func cloneSpec(s *CallSpec) *CallSpec {
	if s == nil {
		return nil
	}
	c := &CallSpec{
		Keys:     append([]string(nil), s.Keys...),
		Args:     make(map[string]string, len(s.Args)),
		ID:       s.ID,
		Tags:     append([]string(nil), s.Tags...),
		customID: s.customID,
	}
	for k, v := range s.Args {
		c.Args[k] = v
	}
	return c
}

func dropKey(s *CallSpec, key string) {
	delete(s.Args, key)
	keys := s.Keys[:0]
	for _, k := range s.Keys {
		if k != key {
			keys = append(keys, k)
		}
	}
	s.Keys = keys
}
