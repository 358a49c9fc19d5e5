package types

import "time"

// Image is an uploaded prescription photo carried opaquely through the pipeline
type Image struct {
	Data     []byte `json:"-" yaml:"-"`
	MIMEType string `json:"mime_type" yaml:"mime_type"`
	Source   string `json:"source" yaml:"source"`
	Width    int    `json:"width" yaml:"width"`
	Height   int    `json:"height" yaml:"height"`
}

// Interpretation is the full text of one interpretation pass
type Interpretation struct {
	Pass        int     `json:"pass" yaml:"pass"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	Text        string  `json:"text" yaml:"text"`
}

// Candidate is one medicine name parsed from one line of an interpretation
type Candidate struct {
	Name       string `json:"name" yaml:"name"`
	Confidence int    `json:"confidence" yaml:"confidence"`
	Position   int    `json:"position" yaml:"position"`
}

// Group holds every candidate that shares a position
type Group struct {
	Position   int         `json:"position" yaml:"position"`
	Candidates []Candidate `json:"candidates" yaml:"candidates"`
	Summary    string      `json:"summary" yaml:"summary"`
}

// VerificationResult is the search-backed model answer for one group or name.
// When the call failed Text holds the captured error string and Failed is set.
type VerificationResult struct {
	Position int    `json:"position" yaml:"position"`
	Key      string `json:"key" yaml:"key"`
	Text     string `json:"text" yaml:"text"`
	Failed   bool   `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// LineStats counts how many non-empty lines of one interpretation matched
// the candidate grammar
type LineStats struct {
	Pass      int `json:"pass" yaml:"pass"`
	Matched   int `json:"matched" yaml:"matched"`
	Unmatched int `json:"unmatched" yaml:"unmatched"`
}

// Timings records wall-clock time spent in each fan-out stage
type Timings struct {
	Interpretation time.Duration `json:"interpretation" yaml:"interpretation"`
	Verification   time.Duration `json:"verification" yaml:"verification"`
	Synthesis      time.Duration `json:"synthesis" yaml:"synthesis"`
	Total          time.Duration `json:"total" yaml:"total"`
}

// Result is everything produced by one pipeline run
type Result struct {
	RunID           string               `json:"run_id" yaml:"run_id"`
	Image           Image                `json:"image" yaml:"image"`
	State           string               `json:"state" yaml:"state"`
	Interpretations []Interpretation     `json:"interpretations" yaml:"interpretations"`
	FailedPasses    int                  `json:"failed_passes" yaml:"failed_passes"`
	Candidates      []Candidate          `json:"candidates" yaml:"candidates"`
	LineStats       []LineStats          `json:"line_stats" yaml:"line_stats"`
	Groups          []Group              `json:"groups" yaml:"groups"`
	Verifications   []VerificationResult `json:"verifications" yaml:"verifications"`
	FinalReport     string               `json:"final_report" yaml:"final_report"`
	NoMedicines     bool                 `json:"no_medicines,omitempty" yaml:"no_medicines,omitempty"`
	Timings         Timings              `json:"timings" yaml:"timings"`
}
