package interpreter

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/gofrs/flock"
	getter "github.com/hashicorp/go-getter"

	"github.com/taskground/taskground/pkg/api"
	"github.com/taskground/taskground/pkg/writer"
)

// Standalone CPython builds, relocatable, one archive per version/platform.
const downloadURLTemplate = "https://github.com/astral-sh/python-build-standalone/releases/latest/download/cpython-%s-%s-%s-install_only.tar.gz"

// download fetches a standalone interpreter build into the shared cache.
// The cache is shared across sessions, so creation takes an advisory file
// lock; readers need none.
func (r *Resolver) download(spec string, ow *writer.Output) (string, error) {
	dest := filepath.Join(r.CacheDir, "pythons", spec)
	bin := downloadedInterpreter(dest)

	if _, err := os.Stat(bin); err == nil {
		return bin, nil
	}

	if err := os.MkdirAll(filepath.Join(r.CacheDir, "pythons"), 0o755); err != nil {
		return "", api.Wrap(api.KindInterpreterMissing, err, "creating interpreter cache")
	}

	lock := flock.New(dest + ".lock")
	if err := lock.Lock(); err != nil {
		return "", api.Wrap(api.KindInterpreterMissing, err, "locking interpreter cache for %s", spec)
	}
	defer func() { _ = lock.Unlock() }()

	// Another invocation may have finished the download while we waited.
	if _, err := os.Stat(bin); err == nil {
		return bin, nil
	}

	url := fmt.Sprintf(downloadURLTemplate, spec, runtime.GOARCH, runtime.GOOS)
	ow.Infow("downloading interpreter", "spec", spec, "url", url)

	client := &getter.Client{
		Src:  url,
		Dst:  dest,
		Mode: getter.ClientModeDir,
	}
	if err := client.Get(); err != nil {
		return "", api.Wrap(api.KindInterpreterMissing, err, "downloading interpreter %s", spec)
	}

	if _, err := os.Stat(bin); err != nil {
		return "", api.Errorf(api.KindInterpreterMissing,
			"downloaded archive for %s did not contain %s", spec, bin)
	}
	return bin, nil
}

func downloadedInterpreter(dest string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(dest, "python", "python.exe")
	}
	return filepath.Join(dest, "python", "bin", "python3")
}
