package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/taskground/taskground/pkg/api"

	"github.com/imdario/mergo"
	"golang.org/x/term"
)

// ReusePolicy controls environment rebuild behavior.
type ReusePolicy string

const (
	// ReuseAlways reuses an existing environment without a staleness check.
	ReuseAlways ReusePolicy = "always"
	// ReuseYes reuses an existing environment when its digest is fresh.
	ReuseYes ReusePolicy = "yes"
	// ReuseNo recreates the environment on every run.
	ReuseNo ReusePolicy = "no"
	// ReuseNever recreates the environment even when otherwise reusable.
	ReuseNever ReusePolicy = "never"
)

// DownloadPolicy controls interpreter auto-download.
type DownloadPolicy string

const (
	DownloadAuto   DownloadPolicy = "auto"
	DownloadAlways DownloadPolicy = "always"
	DownloadNever  DownloadPolicy = "never"
)

// ScriptMode controls the configuration evaluator's own dependency handling.
type ScriptMode string

const (
	ScriptModeReuse ScriptMode = "reuse"
	ScriptModeFresh ScriptMode = "fresh"
	ScriptModeNone  ScriptMode = "none"
)

// ExternalPolicy controls commands resolved outside the environment bin dir.
type ExternalPolicy string

const (
	ExternalAllow  ExternalPolicy = "allow"
	ExternalWarn   ExternalPolicy = "warn"
	ExternalStrict ExternalPolicy = "strict"
)

// Options is the invocation options record. One instance per layer (CLI,
// environment, configuration file); the layers merge with Merge, highest
// precedence first. Tri-state fields are pointers so that "explicitly false"
// survives the merge.
type Options struct {
	ConfigFile string   `toml:"-"`
	EnvDir     string   `toml:"envdir"`
	Sessions   []string `toml:"sessions"`
	// SessionsSet distinguishes an explicitly empty session selection from
	// no selection at all: the former lists and runs nothing.
	SessionsSet bool `toml:"-"`
	Pythons    []string `toml:"pythons"`
	Keywords   string   `toml:"keywords"`
	Tags       []string `toml:"tags"`

	DefaultBackend string      `toml:"default-venv-backend"`
	ForceBackend   string      `toml:"force-venv-backend"`
	Reuse          ReusePolicy `toml:"reuse-venv"`
	NoInstall      *bool       `toml:"no-install"`

	StopOnFirstError          *bool `toml:"stop-on-first-error"`
	ErrorOnMissingInterpreter *bool `toml:"error-on-missing-interpreters"`
	ErrorOnExternalRun        *bool `toml:"error-on-external-run"`

	DownloadPython DownloadPolicy `toml:"download-python"`
	ReportPath     string         `toml:"report"`

	Verbose        *bool `toml:"verbose"`
	NonInteractive *bool `toml:"non-interactive"`
	NoColor        *bool `toml:"no-color"`
	ForceColor     *bool `toml:"force-color"`
	AddTimestamp   *bool `toml:"add-timestamp"`
	InstallOnly    *bool `toml:"install-only"`

	ScriptMode        ScriptMode `toml:"script-mode"`
	ScriptVenvBackend string     `toml:"script-venv-backend"`

	ExtraPythons []string `toml:"-"`
	ForcePython  string   `toml:"-"`

	// Posargs are the trailing CLI arguments after "--"; never sourced from
	// a lower layer.
	Posargs []string `toml:"-"`

	// InvokedFrom is the working directory at invocation time.
	InvokedFrom string `toml:"-"`
}

// Merge combines option layers with decreasing precedence: layers[0] wins
// over layers[1], and so on. The first layer is mutated and returned.
func Merge(layers ...*Options) (*Options, error) {
	if len(layers) == 0 {
		return &Options{}, nil
	}
	dst := layers[0]
	for _, src := range layers[1:] {
		if src == nil {
			continue
		}
		if err := mergo.Merge(dst, src, mergo.WithoutDereference); err != nil {
			return nil, api.Wrap(api.KindInvalidOption, err, "merging option layers")
		}
	}
	dst.applyDefaults()
	return dst, dst.validate()
}

func (o *Options) applyDefaults() {
	if o.EnvDir == "" {
		o.EnvDir = ".taskground"
	}
	if o.Reuse == "" {
		o.Reuse = ReuseNo
	}
	if o.DownloadPython == "" {
		o.DownloadPython = DownloadAuto
	}
	if o.ScriptMode == "" {
		o.ScriptMode = ScriptModeReuse
	}
	if o.InvokedFrom == "" {
		o.InvokedFrom, _ = os.Getwd()
	}
}

func (o *Options) validate() error {
	switch o.Reuse {
	case ReuseAlways, ReuseYes, ReuseNo, ReuseNever:
	default:
		return api.Errorf(api.KindInvalidOption, "invalid reuse policy %q", o.Reuse)
	}
	switch o.DownloadPython {
	case DownloadAuto, DownloadAlways, DownloadNever:
	default:
		return api.Errorf(api.KindInvalidOption, "invalid download-python policy %q", o.DownloadPython)
	}
	switch o.ScriptMode {
	case ScriptModeReuse, ScriptModeFresh, ScriptModeNone:
	default:
		return api.Errorf(api.KindInvalidOption, "invalid script-mode %q", o.ScriptMode)
	}
	return nil
}

// CacheDir is the shared cross-session cache below the env root.
func (o *Options) CacheDir() string {
	return filepath.Join(o.EnvDir, ".cache")
}

// ExternalRunPolicy derives the command-runner policy from the
// error-on-external-run toggle.
func (o *Options) ExternalRunPolicy() ExternalPolicy {
	if o.ErrorOnExternalRun != nil && *o.ErrorOnExternalRun {
		return ExternalStrict
	}
	return ExternalWarn
}

// MissingInterpreterIsError resolves the missing-interpreter policy. The
// default flips from skip to error when a CI environment is detected.
func (o *Options) MissingInterpreterIsError() bool {
	if o.ErrorOnMissingInterpreter != nil {
		return *o.ErrorOnMissingInterpreter
	}
	return RunningOnCI()
}

// Interactive reports whether sessions may prompt: stdin must be a terminal
// and --non-interactive must not be set.
func (o *Options) Interactive() bool {
	if o.NonInteractive != nil && *o.NonInteractive {
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// RunningOnCI reports whether a well-known CI environment variable is set.
func RunningOnCI() bool {
	v, ok := os.LookupEnv("CI")
	if !ok {
		return false
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return v != ""
}

// Bool returns a pointer for literal tri-state assignments.
func Bool(v bool) *bool { return &v }

// IsTrue dereferences a tri-state with a false default.
func IsTrue(p *bool) bool { return p != nil && *p }

// FromEnv maps TASKGROUND_* variables onto option fields.
func FromEnv() (*Options, error) {
	o := &Options{}
	var err error

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv("TASKGROUND_" + key); ok {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := os.LookupEnv("TASKGROUND_" + key); ok {
			*dst = splitList(v)
		}
	}
	boolp := func(key string, dst **bool) {
		v, ok := os.LookupEnv("TASKGROUND_" + key)
		if !ok {
			return
		}
		b, perr := strconv.ParseBool(v)
		if perr != nil {
			err = api.Errorf(api.KindInvalidOption, "TASKGROUND_%s: not a boolean: %q", key, v)
			return
		}
		*dst = &b
	}

	str("ENVDIR", &o.EnvDir)
	list("SESSIONS", &o.Sessions)
	list("PYTHONS", &o.Pythons)
	str("KEYWORDS", &o.Keywords)
	list("TAGS", &o.Tags)
	str("DEFAULT_VENV_BACKEND", &o.DefaultBackend)
	str("FORCE_VENV_BACKEND", &o.ForceBackend)
	str("REUSE_VENV", (*string)(&o.Reuse))
	boolp("NO_INSTALL", &o.NoInstall)
	boolp("STOP_ON_FIRST_ERROR", &o.StopOnFirstError)
	boolp("ERROR_ON_MISSING_INTERPRETERS", &o.ErrorOnMissingInterpreter)
	boolp("ERROR_ON_EXTERNAL_RUN", &o.ErrorOnExternalRun)
	str("DOWNLOAD_PYTHON", (*string)(&o.DownloadPython))
	str("REPORT", &o.ReportPath)
	boolp("VERBOSE", &o.Verbose)
	boolp("NON_INTERACTIVE", &o.NonInteractive)
	boolp("INSTALL_ONLY", &o.InstallOnly)
	str("SCRIPT_MODE", (*string)(&o.ScriptMode))
	str("SCRIPT_VENV_BACKEND", &o.ScriptVenvBackend)

	// NO_COLOR / FORCE_COLOR follow the wider convention rather than the
	// TASKGROUND_ prefix.
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		o.NoColor = Bool(true)
	}
	if _, ok := os.LookupEnv("FORCE_COLOR"); ok {
		o.ForceColor = Bool(true)
	}

	return o, err
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
