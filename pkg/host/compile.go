package host

import (
	"time"

	"github.com/taskground/taskground/pkg/api"
	"github.com/taskground/taskground/pkg/config"
	"github.com/taskground/taskground/pkg/registry"
	"github.com/taskground/taskground/pkg/session"
)

// PosargsToken is the placeholder spliced with the session's posargs when
// it appears as an argument of a declared command.
const PosargsToken = "{posargs}"

// Register compiles every declared session into a function and registers it.
func (f *File) Register(reg *registry.Registry) error {
	for i := range f.Sessions {
		sd := &f.Sessions[i]

		b := reg.Session(sd.Name, compileSteps(sd.Steps)).Doc(sd.Description)

		switch {
		case sd.NoVenv:
			b.NoVenv()
		case len(sd.Pythons) > 0:
			b.Pythons(sd.Pythons...)
		case sd.Python != "":
			b.Python(sd.Python)
		}

		if sd.Reuse != "" {
			b.Reuse(config.ReusePolicy(sd.Reuse))
		}
		if len(sd.Backend) > 0 {
			b.Backend(sd.Backend...)
		}
		if len(sd.VenvParams) > 0 {
			b.BackendParams(sd.VenvParams...)
		}
		if len(sd.Tags) > 0 {
			b.Tags(sd.Tags...)
		}
		if len(sd.Requires) > 0 {
			b.Requires(sd.Requires...)
		}
		if sd.Default != nil && !*sd.Default {
			b.NotDefault()
		}

		for _, p := range sd.Parametrize {
			entries, err := p.entries(sd.Name)
			if err != nil {
				return err
			}
			b.Parametrize(p.Keys, entries...)
		}

		if err := b.Register(); err != nil {
			return err
		}
	}
	return nil
}

// entries normalizes the short values/ids form and the long entry form.
func (p *Parametrize) entries(sessionName string) ([]registry.ParamEntry, error) {
	if len(p.Entries) > 0 {
		if len(p.Values) > 0 || len(p.IDs) > 0 {
			return nil, api.Errorf(api.KindConfigLoad,
				"session %q: parametrize %q mixes the values and entry forms", sessionName, p.Keys)
		}
		out := make([]registry.ParamEntry, len(p.Entries))
		for i, e := range p.Entries {
			out[i] = registry.ParamEntry{Values: e.Values, ID: e.ID, Tags: e.Tags}
		}
		return out, nil
	}

	if len(p.IDs) > 0 && len(p.IDs) != len(p.Values) {
		return nil, api.Errorf(api.KindConfigLoad,
			"session %q: parametrize %q has %d ids for %d values",
			sessionName, p.Keys, len(p.IDs), len(p.Values))
	}
	out := make([]registry.ParamEntry, len(p.Values))
	for i, v := range p.Values {
		out[i] = registry.ParamEntry{Values: []string{v}}
		if len(p.IDs) > 0 {
			out[i].ID = p.IDs[i]
		}
	}
	return out, nil
}

func compileSteps(steps []Step) session.Func {
	return func(s *session.Session) error {
		for i := range steps {
			if err := execStep(s, &steps[i]); err != nil {
				return err
			}
		}
		return nil
	}
}

func execStep(s *session.Session, st *Step) error {
	opts, err := st.runOptions()
	if err != nil {
		return err
	}

	switch {
	case st.Skip != "":
		return s.Skip("%s", st.Skip)
	case st.Fail != "":
		return s.Error("%s", st.Fail)
	case st.Chdir != "":
		// Declared chdir applies to the remainder of the session.
		_, err := s.Chdir(st.Chdir)
		return err
	case st.Notify != "":
		return s.Notify(st.Notify, st.NotifyArgs...)
	case len(st.Install) > 0:
		return s.Install(splicePosargs(st.Install, s.Posargs()), opts...)
	case len(st.CondaInstall) > 0:
		return s.CondaInstall(st.CondaInstall, st.Channels, opts...)
	case st.Script != "":
		return s.RunScript(st.Script, opts...)
	case len(st.RunInstall) > 0:
		return s.RunInstall(splicePosargs(st.RunInstall, s.Posargs()), opts...)
	default:
		return s.Run(splicePosargs(st.Run, s.Posargs()), opts...)
	}
}

func (st *Step) runOptions() ([]session.RunOption, error) {
	var opts []session.RunOption
	if len(st.Env) > 0 {
		opts = append(opts, session.WithEnv(st.Env))
	}
	if st.External {
		opts = append(opts, session.External())
	}
	if st.Silent {
		opts = append(opts, session.Silent())
	}
	if len(st.SuccessCodes) > 0 {
		opts = append(opts, session.SuccessCodes(st.SuccessCodes...))
	}
	if st.Timeout != "" {
		d, err := time.ParseDuration(st.Timeout)
		if err != nil {
			return nil, api.Wrap(api.KindConfigLoad, err, "invalid step timeout %q", st.Timeout)
		}
		opts = append(opts, session.WithTimeout(d))
	}
	return opts, nil
}

func splicePosargs(argv, posargs []string) []string {
	out := make([]string, 0, len(argv)+len(posargs))
	for _, a := range argv {
		if a == PosargsToken {
			out = append(out, posargs...)
			continue
		}
		out = append(out, a)
	}
	return out
}
