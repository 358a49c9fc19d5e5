package pipeline

import (
	"fmt"

	"github.com/menta2k/rx-reader/pkg/grouping"
)

// VerifyBy selects what one verification request covers
type VerifyBy string

const (
	// VerifyByGroup sends one request per position group
	VerifyByGroup VerifyBy = "group"
	// VerifyByName sends one request per distinct extracted name
	VerifyByName VerifyBy = "name"
)

// GroupingMode selects how candidates are partitioned
type GroupingMode string

const (
	// GroupByPosition uses the number the model printed
	GroupByPosition GroupingMode = "position"
	// GroupBySimilarity clusters names by edit distance
	GroupBySimilarity GroupingMode = "similarity"
)

// Options controls one pipeline run
type Options struct {
	Passes          int
	BaseTemperature float64
	TemperatureStep float64

	VerifyTemperature     float64
	NameVerifyTemperature float64
	FinalTemperature      float64
	VerifyBy              VerifyBy
	MaxVerifyWorkers      int

	Grouping            GroupingMode
	SimilarityThreshold float64

	// QueriesPerItem caps the web queries attached to one verification request
	QueriesPerItem int
	// Region is appended to every web query
	Region string
}

// DefaultOptions returns five passes from 0.7 in steps of 0.2, group
// verification at 0.2, name verification and the final report at 0.1
func DefaultOptions() Options {
	return Options{
		Passes:                5,
		BaseTemperature:       0.7,
		TemperatureStep:       0.2,
		VerifyTemperature:     0.2,
		NameVerifyTemperature: 0.1,
		FinalTemperature:      0.1,
		VerifyBy:              VerifyByGroup,
		MaxVerifyWorkers:      6,
		Grouping:              GroupByPosition,
		SimilarityThreshold:   grouping.DefaultSimilarityThreshold,
		QueriesPerItem:        3,
		Region:                "Bangladesh",
	}
}

// Temperature returns the sampling temperature of pass i
func (o Options) Temperature(i int) float64 {
	return o.BaseTemperature + float64(i)*o.TemperatureStep
}

// Validate checks the enumerated options
func (o Options) Validate() error {
	switch o.VerifyBy {
	case VerifyByGroup, VerifyByName:
	default:
		return fmt.Errorf("invalid verify_by %q (expected group or name)", o.VerifyBy)
	}
	switch o.Grouping {
	case GroupByPosition, GroupBySimilarity:
	default:
		return fmt.Errorf("invalid grouping %q (expected position or similarity)", o.Grouping)
	}
	if o.Passes < 0 {
		return fmt.Errorf("passes must not be negative, got %d", o.Passes)
	}
	return nil
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.Passes == 0 {
		o.Passes = d.Passes
	}
	if o.VerifyBy == "" {
		o.VerifyBy = d.VerifyBy
	}
	if o.Grouping == "" {
		o.Grouping = d.Grouping
	}
	if o.MaxVerifyWorkers <= 0 {
		o.MaxVerifyWorkers = d.MaxVerifyWorkers
	}
	if o.SimilarityThreshold <= 0 {
		o.SimilarityThreshold = d.SimilarityThreshold
	}
	if o.QueriesPerItem <= 0 {
		o.QueriesPerItem = d.QueriesPerItem
	}
	return o
}
