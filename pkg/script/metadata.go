// Package script parses the inline metadata block of runnable scripts: a
// comment block delimited by `# /// script` and `# ///`, whose body is a
// small key = value document declaring requires-python and dependencies.
package script

import (
	"bufio"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/taskground/taskground/pkg/api"
)

// Metadata is the declared requirements block of a script.
type Metadata struct {
	RequiresPython string   `toml:"requires-python"`
	Dependencies   []string `toml:"dependencies"`
}

// ParseFile reads path and extracts its metadata block. A script without a
// block yields a zero Metadata and no error.
func ParseFile(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, api.Wrap(api.KindCommandFailed, err, "opening script %s", path)
	}
	defer f.Close()

	var (
		sc      = bufio.NewScanner(f)
		inBlock bool
		closed  bool
		body    strings.Builder
	)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case !inBlock:
			if strings.TrimSpace(line) == "# /// script" {
				inBlock = true
			}
		case strings.TrimSpace(line) == "# ///":
			closed = true
		default:
			if closed {
				continue
			}
			content, ok := strings.CutPrefix(line, "# ")
			if !ok {
				if content, ok = strings.CutPrefix(line, "#"); !ok {
					return nil, api.Errorf(api.KindCommandFailed,
						"script %s: metadata block contains a non-comment line", path)
				}
			}
			body.WriteString(content)
			body.WriteByte('\n')
		}
		if closed {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, api.Wrap(api.KindCommandFailed, err, "reading script %s", path)
	}
	if inBlock && !closed {
		return nil, api.Errorf(api.KindCommandFailed, "script %s: unterminated metadata block", path)
	}

	md := &Metadata{}
	if body.Len() == 0 {
		return md, nil
	}
	if err := toml.Unmarshal([]byte(body.String()), md); err != nil {
		return nil, api.Wrap(api.KindCommandFailed, err, "script %s: invalid metadata", path)
	}
	return md, nil
}
