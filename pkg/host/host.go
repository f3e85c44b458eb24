// Package host evaluates the user's configuration file and feeds the
// resulting session declarations into the registry. The configuration is
// declarative TOML; programmatic users register sessions through the
// registry API directly and never go through this package.
package host

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	goversion "github.com/hashicorp/go-version"

	"github.com/taskground/taskground/pkg/api"
	"github.com/taskground/taskground/pkg/config"
)

// DefaultFileName is the canonical configuration file name searched for
// when no explicit path is given.
const DefaultFileName = "taskground.toml"

// File is the decoded configuration document.
type File struct {
	NeedsVersion string         `toml:"needs-version"`
	Options      config.Options `toml:"options"`
	Sessions     []SessionDecl  `toml:"session" validate:"dive"`

	// Dir is the directory containing the file. Sessions and the env root
	// resolve relative to the invocation directory, not to Dir.
	Dir string `toml:"-"`
}

// SessionDecl is one [[session]] block.
type SessionDecl struct {
	Name        string   `toml:"name" validate:"required"`
	Description string   `toml:"description"`
	Python      string   `toml:"python"`
	Pythons     []string `toml:"pythons"`
	NoVenv      bool     `toml:"no-venv"`
	Reuse       string   `toml:"reuse" validate:"omitempty,oneof=always yes no never"`
	Backend     Chain    `toml:"backend"`
	VenvParams  []string `toml:"venv-params"`
	Tags        []string `toml:"tags"`
	Default     *bool    `toml:"default"`
	Requires    []string `toml:"requires"`

	Parametrize []Parametrize `toml:"parametrize" validate:"dive"`
	Steps       []Step        `toml:"steps"`
}

// Parametrize is one stacked [[session.parametrize]] layer. The short form
// gives values (with optional parallel ids) for a single key; the long form
// enumerates [[session.parametrize.entry]] tables.
type Parametrize struct {
	Keys    string       `toml:"keys" validate:"required"`
	Values  []string     `toml:"values"`
	IDs     []string     `toml:"ids"`
	Entries []ParamEntry `toml:"entry"`
}

type ParamEntry struct {
	Values []string `toml:"values"`
	ID     string   `toml:"id"`
	Tags   []string `toml:"tags"`
}

// Step is one [[session.steps]] action. Exactly one action key must be
// set; the remaining keys modify the action.
type Step struct {
	Run          Command  `toml:"run"`
	RunInstall   Command  `toml:"run-install"`
	Install      []string `toml:"install"`
	CondaInstall []string `toml:"conda-install"`
	Channels     []string `toml:"channels"`
	Script       string   `toml:"script"`
	Chdir        string   `toml:"chdir"`
	Notify       string   `toml:"notify"`
	NotifyArgs   []string `toml:"notify-posargs"`
	Skip         string   `toml:"skip"`
	Fail         string   `toml:"fail"`

	Env          map[string]string `toml:"env"`
	External     bool              `toml:"external"`
	Silent       bool              `toml:"silent"`
	SuccessCodes []int             `toml:"success-codes"`
	Timeout      string            `toml:"timeout"`
}

// Locate finds the configuration file: an explicit path is used verbatim;
// otherwise the invocation directory and its parents are scanned for the
// canonical file name.
func Locate(explicit, invokedFrom string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", api.Wrap(api.KindConfigLoad, err, "configuration file %s", explicit)
		}
		return explicit, nil
	}

	dir := invokedFrom
	for {
		cand := filepath.Join(dir, DefaultFileName)
		if fi, err := os.Stat(cand); err == nil && !fi.IsDir() {
			return cand, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", api.Errorf(api.KindConfigLoad,
				"no %s found in %s or any parent directory", DefaultFileName, invokedFrom)
		}
		dir = parent
	}
}

var fileValidator = validator.New()

// Load decodes and validates the configuration file at path.
func Load(path string) (*File, error) {
	f := &File{}
	md, err := toml.DecodeFile(path, f)
	if err != nil {
		return nil, api.Wrap(api.KindConfigLoad, err, "parsing %s", path)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return nil, api.Errorf(api.KindConfigLoad,
			"%s: unrecognized key %q", path, undec[0].String())
	}

	f.Dir = filepath.Dir(path)
	f.Options.SessionsSet = md.IsDefined("options", "sessions")

	if err := fileValidator.Struct(f); err != nil {
		return nil, api.Wrap(api.KindConfigLoad, err, "validating %s", path)
	}
	for i := range f.Sessions {
		if err := validateSteps(&f.Sessions[i]); err != nil {
			return nil, err
		}
	}

	if f.NeedsVersion != "" {
		if err := checkVersion(f.NeedsVersion); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func validateSteps(sd *SessionDecl) error {
	for i, st := range sd.Steps {
		actions := 0
		for _, set := range []bool{
			len(st.Run) > 0,
			len(st.RunInstall) > 0,
			len(st.Install) > 0,
			len(st.CondaInstall) > 0,
			st.Script != "",
			st.Chdir != "",
			st.Notify != "",
			st.Skip != "",
			st.Fail != "",
		} {
			if set {
				actions++
			}
		}
		if actions != 1 {
			return api.Errorf(api.KindConfigLoad,
				"session %q: step %d must declare exactly one action", sd.Name, i+1)
		}
	}
	return nil
}

// checkVersion asserts the running driver satisfies a version constraint,
// failing fast before anything else happens.
func checkVersion(constraint string) error {
	c, err := goversion.NewConstraint(constraint)
	if err != nil {
		return api.Wrap(api.KindConfigLoad, err, "invalid needs-version constraint %q", constraint)
	}
	v := goversion.Must(goversion.NewVersion(api.Version))
	if !c.Check(v) {
		return api.Errorf(api.KindVersionMismatch,
			"this configuration needs driver version %q, running %s", constraint, api.Version)
	}
	return nil
}
