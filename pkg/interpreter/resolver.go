// Package interpreter maps user-facing version strings to concrete
// executables: "3.12", "3.12-32", "pypy-3.10", "python3.12t", a bare tool
// name, or an absolute path.
package interpreter

import (
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/taskground/taskground/pkg/api"
	"github.com/taskground/taskground/pkg/config"
	"github.com/taskground/taskground/pkg/writer"
)

var versionRe = regexp.MustCompile(`^\d+(\.\d+){0,2}(-(32|64))?$`)

// Candidates returns the executable names to probe for a version spec, in
// preference order. Exported separately from Resolve so the mapping is
// testable without touching the filesystem.
func Candidates(spec string) []string {
	switch {
	case spec == "":
		return []string{"python3", "python"}

	case filepath.IsAbs(spec) || strings.ContainsRune(spec, filepath.Separator):
		return []string{spec}

	case strings.HasPrefix(spec, "pypy"):
		// pypy-3.10 and pypy3.10 both resolve to the dashless executable.
		name := "pypy" + strings.TrimPrefix(strings.TrimPrefix(spec, "pypy"), "-")
		return []string{name}

	case versionRe.MatchString(spec):
		version, _, _ := strings.Cut(spec, "-")
		if runtime.GOOS == "windows" {
			// The py launcher resolves plain versions and the -32/-64 arch
			// suffix forms itself.
			return []string{"py", "python" + version}
		}
		// No fallback to a bare python3 here: it may be a different
		// version than the one the session asked for.
		return []string{"python" + version}

	default:
		// python3.12t and friends, or any other tool name: probe verbatim.
		return []string{spec}
	}
}

// Resolver locates interpreters, optionally downloading missing ones into
// the shared cache per the download policy.
type Resolver struct {
	Policy   config.DownloadPolicy
	CacheDir string
	LookPath func(string) (string, error)
}

func NewResolver(policy config.DownloadPolicy, cacheDir string) *Resolver {
	return &Resolver{Policy: policy, CacheDir: cacheDir, LookPath: exec.LookPath}
}

// Resolve maps a version spec to an executable path.
func (r *Resolver) Resolve(spec string, ow *writer.Output) (string, error) {
	if r.Policy == config.DownloadAlways && versionRe.MatchString(spec) {
		return r.download(spec, ow)
	}

	for _, cand := range Candidates(spec) {
		if path, err := r.LookPath(cand); err == nil {
			return path, nil
		}
	}

	if r.Policy == config.DownloadAuto && versionRe.MatchString(spec) {
		if path, err := r.download(spec, ow); err == nil {
			return path, nil
		}
	}

	return "", api.Errorf(api.KindInterpreterMissing, "no interpreter found for %q", spec)
}
