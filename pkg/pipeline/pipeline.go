package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/rx-reader/pkg/client"
	"github.com/menta2k/rx-reader/pkg/extraction"
	"github.com/menta2k/rx-reader/pkg/grouping"
	"github.com/menta2k/rx-reader/pkg/prompts"
	"github.com/menta2k/rx-reader/pkg/types"
)

// ErrNoGenerator is returned by New without a model backend
var ErrNoGenerator = errors.New("pipeline: generator is required")

// StageHook is called on every state transition of a run
type StageHook func(runID string, stage Stage)

// Pipeline reads prescriptions through interpretation, extraction, grouping,
// verification and synthesis. It holds no per-run state and is safe for
// concurrent use.
type Pipeline struct {
	gen    client.Generator
	opts   Options
	logger *slog.Logger
	hook   StageHook
}

// New creates a pipeline over gen. Zero-valued counts and modes in opts take
// their defaults.
func New(gen client.Generator, opts Options, logger *slog.Logger) (*Pipeline, error) {
	if gen == nil {
		return nil, ErrNoGenerator
	}
	opts = opts.normalized()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{gen: gen, opts: opts, logger: logger}, nil
}

// WithStageHook returns a copy of the pipeline that reports transitions to fn
func (p *Pipeline) WithStageHook(fn StageHook) *Pipeline {
	cp := *p
	cp.hook = fn
	return &cp
}

// Options returns the effective options
func (p *Pipeline) Options() Options {
	return p.opts
}

// Run executes the whole pipeline for one image. A final synthesis failure is
// returned together with the partial result.
func (p *Pipeline) Run(ctx context.Context, img types.Image) (*types.Result, error) {
	runID := uuid.NewString()
	run := *p
	run.logger = p.logger.With("run_id", runID)

	result := &types.Result{RunID: runID, Image: img}
	start := time.Now()
	defer func() { result.Timings.Total = time.Since(start) }()

	run.enter(result, Idle)
	run.logger.Info("starting prescription read",
		"source", img.Source,
		"passes", run.opts.Passes,
		"verify_by", run.opts.VerifyBy,
		"grouping", run.opts.Grouping)

	run.enter(result, Interpreting)
	stageStart := time.Now()
	interpretations, failed := run.Interpret(ctx, img)
	result.Interpretations = interpretations
	result.FailedPasses = failed
	result.Timings.Interpretation = time.Since(stageStart)

	run.enter(result, Extracting)
	candidates, stats := extraction.Extract(interpretations)
	result.Candidates = candidates
	result.LineStats = stats
	for _, s := range stats {
		if s.Unmatched > 0 {
			run.logger.Debug("unmatched interpretation lines", "pass", s.Pass, "matched", s.Matched, "unmatched", s.Unmatched)
		}
	}
	if len(candidates) == 0 {
		result.NoMedicines = true
		result.FinalReport = prompts.NoMedicinesReport
		run.enter(result, NoMedicinesFound)
		run.logger.Warn("no medicines identified", "interpretations", len(interpretations), "failed_passes", failed)
		return result, nil
	}

	run.enter(result, Grouping)
	result.Groups = run.Group(candidates)

	run.enter(result, Verifying)
	stageStart = time.Now()
	result.Verifications = run.Verify(ctx, result.Groups)
	result.Timings.Verification = time.Since(stageStart)

	run.enter(result, Synthesizing)
	stageStart = time.Now()
	report, err := run.Synthesize(ctx, result.Groups, result.Verifications)
	result.Timings.Synthesis = time.Since(stageStart)
	if err != nil {
		run.logger.Error("final synthesis failed", "error", err)
		return result, fmt.Errorf("final synthesis: %w", err)
	}
	result.FinalReport = report

	run.enter(result, Done)
	run.logger.Info("prescription read complete",
		"groups", len(result.Groups),
		"candidates", len(candidates),
		"duration", time.Since(start))
	return result, nil
}

func (p *Pipeline) enter(result *types.Result, stage Stage) {
	result.State = stage.String()
	p.logger.Debug("stage", "stage", stage.String())
	if p.hook != nil {
		p.hook(result.RunID, stage)
	}
}

// Interpret runs every pass concurrently and waits for all of them. Results
// are ordered by temperature; failed passes are dropped and counted.
func (p *Pipeline) Interpret(ctx context.Context, img types.Image) ([]types.Interpretation, int) {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []types.Interpretation
		failed  int
	)

	for i := 0; i < p.opts.Passes; i++ {
		wg.Add(1)
		go func(pass int) {
			defer wg.Done()
			temp := p.opts.Temperature(pass)
			text, err := p.gen.Generate(ctx, client.Request{
				Prompt:      prompts.Interpretation,
				Image:       &img,
				Temperature: temp,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				p.logger.Warn("interpretation pass failed", "pass", pass+1, "temperature", temp, "error", err)
				return
			}
			results = append(results, types.Interpretation{Pass: pass + 1, Temperature: temp, Text: text})
			p.logger.Info("interpretation pass complete", "pass", pass+1, "temperature", temp)
		}(i)
	}
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Temperature != results[j].Temperature {
			return results[i].Temperature < results[j].Temperature
		}
		return results[i].Pass < results[j].Pass
	})
	return results, failed
}

// Group partitions candidates according to the configured grouping mode
func (p *Pipeline) Group(candidates []types.Candidate) []types.Group {
	if p.opts.Grouping == GroupBySimilarity {
		return grouping.BySimilarity(candidates, p.opts.SimilarityThreshold)
	}
	return grouping.ByPosition(candidates)
}

// verifyTask is one verification request and the slot its result goes to
type verifyTask struct {
	position    int
	key         string
	prompt      string
	queries     []string
	temperature float64
}

// Verify sends one search-backed request per group, or per distinct name.
// It always returns one result per request; failures carry the error text.
func (p *Pipeline) Verify(ctx context.Context, groups []types.Group) []types.VerificationResult {
	tasks := p.verifyTasks(groups)
	results := make([]types.VerificationResult, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(min(p.opts.MaxVerifyWorkers, len(tasks)))

	for i, task := range tasks {
		g.Go(func() error {
			text, err := p.gen.Generate(ctx, client.Request{
				Prompt:        task.prompt,
				Tools:         []client.Tool{client.ToolWebSearch},
				Temperature:   task.temperature,
				SearchQueries: task.queries,
			})
			r := types.VerificationResult{Position: task.position, Key: task.key, Text: text}
			if err != nil {
				r.Text = "Error: " + err.Error()
				r.Failed = true
				p.logger.Warn("verification failed", "position", task.position, "key", task.key, "error", err)
			} else {
				p.logger.Info("verification complete", "position", task.position, "key", task.key)
			}
			results[i] = r
			return nil
		})
	}
	// Failures are recorded in their result slot, no task returns an error
	g.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Position < results[j].Position
	})
	return results
}

func (p *Pipeline) verifyTasks(groups []types.Group) []verifyTask {
	var tasks []verifyTask
	switch p.opts.VerifyBy {
	case VerifyByName:
		seen := make(map[string]struct{})
		for _, g := range groups {
			for _, name := range grouping.DistinctNames(g.Candidates) {
				key := grouping.Normalize(name)
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				tasks = append(tasks, verifyTask{
					position:    g.Position,
					key:         name,
					prompt:      prompts.NameVerification(name),
					queries:     []string{prompts.SearchQuery(name, p.opts.Region)},
					temperature: p.opts.NameVerifyTemperature,
				})
			}
		}
	default:
		for _, g := range groups {
			names := grouping.DistinctNames(g.Candidates)
			if len(names) > p.opts.QueriesPerItem {
				names = names[:p.opts.QueriesPerItem]
			}
			queries := make([]string, len(names))
			for i, name := range names {
				queries[i] = prompts.SearchQuery(name, p.opts.Region)
			}
			tasks = append(tasks, verifyTask{
				position:    g.Position,
				prompt:      prompts.GroupVerification(g),
				queries:     queries,
				temperature: p.opts.VerifyTemperature,
			})
		}
	}
	return tasks
}

// Synthesize asks for the final report. The model output is returned verbatim.
func (p *Pipeline) Synthesize(ctx context.Context, groups []types.Group, results []types.VerificationResult) (string, error) {
	var queries []string
	for _, g := range groups {
		if best, ok := grouping.Best(g); ok {
			queries = append(queries, prompts.SearchQuery(best.Name, p.opts.Region))
		}
	}

	return p.gen.Generate(ctx, client.Request{
		Prompt:        prompts.Final(results),
		Tools:         []client.Tool{client.ToolWebSearch},
		Temperature:   p.opts.FinalTemperature,
		SearchQueries: queries,
	})
}
