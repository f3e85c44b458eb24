// Package reporter renders the human status table and the machine-readable
// JSON artifacts.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/logrusorgru/aurora"
	"github.com/mitchellh/go-wordwrap"

	"github.com/taskground/taskground/pkg/api"
	"github.com/taskground/taskground/pkg/registry"
)

// New returns a reporter writing human output to w. colored toggles ANSI
// codes.
func New(w io.Writer, colored bool) *Reporter {
	return &Reporter{w: w, au: aurora.NewAurora(colored)}
}

type Reporter struct {
	w  io.Writer
	au aurora.Aurora
}

// PrintSummary writes the concluding per-session status table and the
// status counts.
func (r *Reporter) PrintSummary(report *api.Report) {
	fmt.Fprintf(r.w, "\nRan %d session(s):\n", len(report.Sessions))

	counts := map[api.Status]int{}
	for _, s := range report.Sessions {
		counts[s.Status]++
		line := fmt.Sprintf("* %s: %s", s.Name, r.colorStatus(s.Status))
		if s.Reason != "" {
			line += " (" + s.Reason + ")"
		}
		if s.Duration > 0 {
			line += fmt.Sprintf(" in %.1fs", s.Duration.Round(100*time.Millisecond).Seconds())
		}
		fmt.Fprintln(r.w, line)
	}

	fmt.Fprintf(r.w, "\n%d successful, %d failed, %d skipped, %d aborted\n",
		counts[api.StatusSuccess], counts[api.StatusFailed],
		counts[api.StatusSkipped], counts[api.StatusAborted])
}

func (r *Reporter) colorStatus(s api.Status) aurora.Value {
	switch s {
	case api.StatusSuccess:
		return r.au.Green(string(s))
	case api.StatusFailed:
		return r.au.Red(string(s))
	case api.StatusSkipped:
		return r.au.Yellow(string(s))
	default:
		return r.au.Magenta(string(s))
	}
}

// ListEntry is one row of `list --json`.
type ListEntry struct {
	Session     string            `json:"session"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Python      string            `json:"python"`
	Tags        []string          `json:"tags"`
	CallSpec    map[string]string `json:"call_spec"`
}

// ListEntries converts instances to their list representation.
func ListEntries(instances []*registry.Instance) []ListEntry {
	out := make([]ListEntry, 0, len(instances))
	for _, in := range instances {
		entry := ListEntry{
			Session:     in.Name,
			Name:        in.BareName,
			Description: in.Decl.ShortDoc(),
			Python:      in.Python,
			Tags:        in.Tags,
			CallSpec:    in.CallArgs(),
		}
		if entry.Tags == nil {
			entry.Tags = []string{}
		}
		if entry.CallSpec == nil {
			entry.CallSpec = map[string]string{}
		}
		out = append(out, entry)
	}
	return out
}

// PrintList renders the selected sessions, as JSON when asked.
func (r *Reporter) PrintList(instances []*registry.Instance, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(r.w)
		enc.SetIndent("", "  ")
		return enc.Encode(ListEntries(instances))
	}

	fmt.Fprintln(r.w, "Sessions defined in this configuration:")
	for _, in := range instances {
		line := "* " + fmt.Sprint(r.au.Cyan(in.Name))
		if doc := in.Decl.ShortDoc(); doc != "" {
			line += " -> " + wordwrap.WrapString(doc, 100)
		}
		fmt.Fprintln(r.w, line)
	}
	return nil
}

// WriteJSON writes the machine-readable report to path.
func WriteJSON(path string, report *api.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return api.Wrap(api.KindCommandFailed, err, "encoding report")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return api.Wrap(api.KindCommandFailed, err, "writing report to %s", path)
	}
	return nil
}
