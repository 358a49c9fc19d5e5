// Package render writes pipeline results for people and for programs.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/rx-reader/pkg/types"
)

// Format is an output format for results
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat maps a flag value to a Format
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown output format: %s (expected text, json or yaml)", s)
	}
}

// OutputTo writes result to w in the given format
func OutputTo(w io.Writer, format Format, result *types.Result) error {
	switch format {
	case FormatText, "":
		return Text(w, result)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(result)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

// Text renders every stage of a run the way the upload form shows it
func Text(w io.Writer, result *types.Result) error {
	ew := &errWriter{w: w}

	ew.printf("Prescription: %s", result.Image.Source)
	if result.Image.Width > 0 {
		ew.printf(" (%dx%d)", result.Image.Width, result.Image.Height)
	}
	ew.printf("\nRun: %s\n", result.RunID)

	ew.printf("\n=== Model Interpretations ===\n")
	if len(result.Interpretations) == 0 {
		ew.printf("No interpretations were produced.\n")
	}
	for _, interp := range result.Interpretations {
		ew.printf("\nInterpretation %d (temperature: %.1f)\n", interp.Pass, interp.Temperature)
		ew.printf("%s\n", strings.TrimSpace(interp.Text))
	}
	if result.FailedPasses > 0 {
		ew.printf("\n%d interpretation pass(es) failed and were dropped.\n", result.FailedPasses)
	}
	for _, s := range result.LineStats {
		if s.Unmatched > 0 {
			ew.printf("Interpretation %d: %d line(s) matched, %d ignored\n", s.Pass, s.Matched, s.Unmatched)
		}
	}

	if len(result.Groups) > 0 {
		ew.printf("\n=== Medicine Name Groups ===\n\n")
		for _, g := range result.Groups {
			ew.printf("%s\n", g.Summary)
		}
	}

	if len(result.Verifications) > 0 {
		ew.printf("\n=== Verification Results ===\n")
		for _, v := range result.Verifications {
			header := fmt.Sprintf("Medicine Position %d", v.Position)
			if v.Key != "" {
				header += ": " + v.Key
			}
			ew.printf("\n--- %s ---\n%s\n", header, strings.TrimSpace(v.Text))
		}
	}

	ew.printf("\n=== Final Prescription ===\n\n%s\n", strings.TrimSpace(result.FinalReport))

	t := result.Timings
	ew.printf("\nCompleted in %s (interpretation %s, verification %s, synthesis %s)\n",
		round(t.Total), round(t.Interpretation), round(t.Verification), round(t.Synthesis))
	return ew.err
}

func round(d time.Duration) time.Duration {
	return d.Round(10 * time.Millisecond)
}

// errWriter keeps the first write error so Text can print without checking each call
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
