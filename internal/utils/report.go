package utils

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// ReportSuffix is appended to the image stem to form a report file name
const ReportSuffix = "_report.txt"

const fallbackStem = "prescription"

// ReportNamer hands out report file names for one read run. Names are taken
// from the image path relative to the run's root, with directories flattened
// into the name, so scans/a/rx.jpg becomes a_rx_report.txt. A name that is
// already taken gets a numeric suffix.
type ReportNamer struct {
	root string
	used map[string]bool
}

// NewReportNamer creates a namer for images under root. An empty root names
// reports after the image's base name only.
func NewReportNamer(root string) *ReportNamer {
	return &ReportNamer{root: root, used: make(map[string]bool)}
}

// Name returns the report file name for source, a file path or an http(s) URL
func (n *ReportNamer) Name(source string) string {
	stem := n.stem(source)
	name := stem + ReportSuffix
	for i := 2; n.used[name]; i++ {
		name = fmt.Sprintf("%s_%d%s", stem, i, ReportSuffix)
	}
	n.used[name] = true
	return name
}

// Path is Name joined to outDir
func (n *ReportNamer) Path(outDir, source string) string {
	return filepath.Join(outDir, n.Name(source))
}

func (n *ReportNamer) stem(source string) string {
	var rel string
	if u, err := url.Parse(source); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		rel = path.Base(u.Path)
		if rel == "/" || rel == "." {
			rel = ""
		}
	} else {
		rel = filepath.Base(source)
		if n.root != "" {
			if r, err := filepath.Rel(n.root, source); err == nil && r != "." && !strings.HasPrefix(r, "..") {
				rel = r
			}
		}
	}

	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	rel = strings.ReplaceAll(filepath.ToSlash(rel), "/", "_")
	if stem := SanitizeFilename(rel); stem != "" {
		return stem
	}
	return fallbackStem
}
