package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/menta2k/rx-reader/pkg/client"
	"github.com/menta2k/rx-reader/pkg/prompts"
	"github.com/menta2k/rx-reader/pkg/types"
)

// stubGenerator answers interpretation requests by temperature and every
// other request through verify
type stubGenerator struct {
	interpret func(temp float64) (string, error)
	verify    func(req client.Request) (string, error)
	final     func(req client.Request) (string, error)
	jitter    time.Duration

	mu   sync.Mutex
	reqs []client.Request
}

func (s *stubGenerator) Generate(ctx context.Context, req client.Request) (string, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()

	if s.jitter > 0 {
		time.Sleep(time.Duration(rand.Int63n(int64(s.jitter))))
	}

	switch {
	case req.Image != nil:
		return s.interpret(req.Temperature)
	case strings.HasPrefix(req.Prompt, "You are a medical prescription expert"):
		if s.final == nil {
			return "FINAL PRESCRIPTION MEDICINES:\n\n1. Napa", nil
		}
		return s.final(req)
	default:
		if s.verify == nil {
			return "verified", nil
		}
		return s.verify(req)
	}
}

func (s *stubGenerator) requests(pred func(client.Request) bool) []client.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []client.Request
	for _, r := range s.reqs {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPipeline(t *testing.T, gen client.Generator, opts Options) *Pipeline {
	t.Helper()
	p, err := New(gen, opts, quietLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

const twoMedicines = "1. Napa: 90%\n2. Seclo: 80%\n"

func TestInterpretOrdersByTemperature(t *testing.T) {
	gen := &stubGenerator{
		jitter: 5 * time.Millisecond,
		interpret: func(temp float64) (string, error) {
			return fmt.Sprintf("%.1f", temp), nil
		},
	}
	p := newTestPipeline(t, gen, DefaultOptions())

	for round := 0; round < 5; round++ {
		got, failed := p.Interpret(context.Background(), types.Image{Source: "rx.jpg"})
		if failed != 0 {
			t.Fatalf("unexpected failures: %d", failed)
		}
		want := []string{"0.7", "0.9", "1.1", "1.3", "1.5"}
		if len(got) != len(want) {
			t.Fatalf("expected %d interpretations, got %d", len(want), len(got))
		}
		for i, interp := range got {
			if interp.Text != want[i] {
				t.Errorf("round %d: interpretation %d = %q, want %q", round, i, interp.Text, want[i])
			}
			if interp.Pass != i+1 {
				t.Errorf("round %d: pass %d, want %d", round, interp.Pass, i+1)
			}
		}
	}
}

func TestInterpretDropsFailures(t *testing.T) {
	gen := &stubGenerator{
		interpret: func(temp float64) (string, error) {
			if temp > 1.0 && temp < 1.2 {
				return "", errors.New("quota exceeded")
			}
			return twoMedicines, nil
		},
	}
	p := newTestPipeline(t, gen, DefaultOptions())

	got, failed := p.Interpret(context.Background(), types.Image{})
	if failed != 1 || len(got) != 4 {
		t.Fatalf("expected 4 interpretations and 1 failure, got %d and %d", len(got), failed)
	}
	for _, interp := range got {
		if interp.Temperature > 1.0 && interp.Temperature < 1.2 {
			t.Errorf("failed pass should be dropped: %+v", interp)
		}
	}
}

func TestVerifyCapturesErrors(t *testing.T) {
	gen := &stubGenerator{
		jitter: 3 * time.Millisecond,
		verify: func(req client.Request) (string, error) {
			if strings.Contains(req.Prompt, "position #2") {
				return "", errors.New("search unavailable")
			}
			return "ok", nil
		},
	}
	opts := DefaultOptions()
	opts.MaxVerifyWorkers = 2
	p := newTestPipeline(t, gen, opts)

	var groups []types.Group
	for pos := 1; pos <= 8; pos++ {
		groups = append(groups, types.Group{
			Position:   pos,
			Candidates: []types.Candidate{{Name: fmt.Sprintf("Med%d", pos), Confidence: 50, Position: pos}},
		})
	}

	results := p.Verify(context.Background(), groups)
	if len(results) != len(groups) {
		t.Fatalf("expected %d results, got %d", len(groups), len(results))
	}
	for i, r := range results {
		if r.Position != i+1 {
			t.Errorf("result %d has position %d", i, r.Position)
		}
		if r.Position == 2 {
			if !r.Failed || r.Text != "Error: search unavailable" {
				t.Errorf("expected captured error, got %+v", r)
			}
		} else if r.Failed || r.Text != "ok" {
			t.Errorf("unexpected result %+v", r)
		}
	}

	for _, req := range gen.requests(func(r client.Request) bool { return true }) {
		if !req.HasTool(client.ToolWebSearch) {
			t.Error("verification must declare web search")
		}
		if req.Temperature != 0.2 {
			t.Errorf("verification temperature = %v", req.Temperature)
		}
		if len(req.SearchQueries) != 1 || !strings.HasSuffix(req.SearchQueries[0], "medicine Bangladesh") {
			t.Errorf("unexpected queries %v", req.SearchQueries)
		}
	}
}

func TestVerifyByName(t *testing.T) {
	gen := &stubGenerator{}
	opts := DefaultOptions()
	opts.VerifyBy = VerifyByName
	p := newTestPipeline(t, gen, opts)

	groups := []types.Group{
		{Position: 1, Candidates: []types.Candidate{{Name: "Napa", Position: 1}, {Name: "napa", Position: 1}, {Name: "Nafa", Position: 1}}},
		{Position: 2, Candidates: []types.Candidate{{Name: "Seclo", Position: 2}, {Name: "Napa", Position: 2}}},
	}
	results := p.Verify(context.Background(), groups)

	var keys []string
	for _, r := range results {
		keys = append(keys, fmt.Sprintf("%d:%s", r.Position, r.Key))
	}
	if got := strings.Join(keys, ","); got != "1:Napa,1:Nafa,2:Seclo" {
		t.Errorf("unexpected verification keys %s", got)
	}
	for _, req := range gen.requests(func(client.Request) bool { return true }) {
		if req.Temperature != 0.1 {
			t.Errorf("name verification temperature = %v, want 0.1", req.Temperature)
		}
	}

	byGroup := &stubGenerator{}
	newTestPipeline(t, byGroup, DefaultOptions()).Verify(context.Background(), groups)
	for _, req := range byGroup.requests(func(client.Request) bool { return true }) {
		if req.Temperature != 0.2 {
			t.Errorf("group verification temperature = %v, want 0.2", req.Temperature)
		}
	}
}

func TestVerifyEmpty(t *testing.T) {
	p := newTestPipeline(t, &stubGenerator{}, DefaultOptions())
	if got := p.Verify(context.Background(), nil); len(got) != 0 {
		t.Errorf("expected no results, got %v", got)
	}
}

func TestRun(t *testing.T) {
	gen := &stubGenerator{
		jitter: 2 * time.Millisecond,
		interpret: func(temp float64) (string, error) {
			if temp > 1.4 {
				return "1. Naap: 60%\n2. Seclo 20: 70%\n3. Ace: 40%\n", nil
			}
			return twoMedicines, nil
		},
		verify: func(req client.Request) (string, error) {
			return "checked", nil
		},
	}

	var (
		mu     sync.Mutex
		stages []Stage
	)
	p := newTestPipeline(t, gen, DefaultOptions()).WithStageHook(func(runID string, s Stage) {
		mu.Lock()
		defer mu.Unlock()
		stages = append(stages, s)
	})

	result, err := p.Run(context.Background(), types.Image{Source: "rx.jpg"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.RunID == "" {
		t.Error("missing run id")
	}
	if result.State != Done.String() {
		t.Errorf("State = %q", result.State)
	}
	if len(result.Interpretations) != 5 || len(result.Candidates) != 11 {
		t.Errorf("got %d interpretations and %d candidates", len(result.Interpretations), len(result.Candidates))
	}
	if len(result.Groups) != 3 || len(result.Verifications) != 3 {
		t.Fatalf("got %d groups and %d verifications", len(result.Groups), len(result.Verifications))
	}
	wantSummary := "Medicine 1: [Napa: 90%, Napa: 90%, Napa: 90%, Napa: 90%, Naap: 60%]"
	if result.Groups[0].Summary != wantSummary {
		t.Errorf("group summary = %q", result.Groups[0].Summary)
	}
	if result.FinalReport != "FINAL PRESCRIPTION MEDICINES:\n\n1. Napa" {
		t.Errorf("FinalReport = %q", result.FinalReport)
	}
	if result.Timings.Total <= 0 {
		t.Error("total timing not recorded")
	}

	want := []Stage{Idle, Interpreting, Extracting, Grouping, Verifying, Synthesizing, Done}
	if fmt.Sprint(stages) != fmt.Sprint(want) {
		t.Errorf("stages = %v, want %v", stages, want)
	}

	finals := gen.requests(func(r client.Request) bool {
		return strings.HasPrefix(r.Prompt, "You are a medical prescription expert")
	})
	if len(finals) != 1 {
		t.Fatalf("expected one final request, got %d", len(finals))
	}
	final := finals[0]
	if final.Temperature != 0.1 || !final.HasTool(client.ToolWebSearch) {
		t.Errorf("unexpected final request settings %+v", final)
	}
	if strings.Count(final.Prompt, "--- Medicine Position") != 3 {
		t.Errorf("final prompt should embed every verification:\n%s", final.Prompt)
	}
	if final.SearchQueries[0] != "Napa medicine Bangladesh" {
		t.Errorf("final queries = %v", final.SearchQueries)
	}
}

func TestRunNoMedicines(t *testing.T) {
	gen := &stubGenerator{
		interpret: func(temp float64) (string, error) {
			return "I cannot read this prescription.", nil
		},
	}
	var stages []Stage
	p := newTestPipeline(t, gen, Options{Passes: 3}).WithStageHook(func(_ string, s Stage) {
		stages = append(stages, s)
	})

	result, err := p.Run(context.Background(), types.Image{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.NoMedicines || result.FinalReport != prompts.NoMedicinesReport {
		t.Errorf("unexpected result %+v", result)
	}
	if result.State != NoMedicinesFound.String() {
		t.Errorf("State = %q", result.State)
	}
	if stages[len(stages)-1] != NoMedicinesFound || len(stages) != 4 {
		t.Errorf("stages = %v", stages)
	}
	if len(gen.requests(func(r client.Request) bool { return r.Image == nil })) != 0 {
		t.Error("no verification or final request should be sent")
	}
	if len(result.LineStats) != 3 || result.LineStats[0].Unmatched != 1 {
		t.Errorf("line stats = %+v", result.LineStats)
	}
}

func TestRunAllPassesFail(t *testing.T) {
	gen := &stubGenerator{
		interpret: func(temp float64) (string, error) { return "", errors.New("down") },
	}
	result, err := newTestPipeline(t, gen, DefaultOptions()).Run(context.Background(), types.Image{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.FailedPasses != 5 || !result.NoMedicines {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestRunFinalFailure(t *testing.T) {
	gen := &stubGenerator{
		interpret: func(temp float64) (string, error) { return twoMedicines, nil },
		final:     func(req client.Request) (string, error) { return "", errors.New("model overloaded") },
	}
	result, err := newTestPipeline(t, gen, DefaultOptions()).Run(context.Background(), types.Image{})
	if err == nil || !strings.HasPrefix(err.Error(), "final synthesis: ") {
		t.Fatalf("expected wrapped final synthesis error, got %v", err)
	}
	if result == nil || len(result.Verifications) != 2 {
		t.Fatalf("partial result should be returned, got %+v", result)
	}
	if result.State != Synthesizing.String() {
		t.Errorf("State = %q", result.State)
	}
}

func TestRunSimilarityGrouping(t *testing.T) {
	gen := &stubGenerator{
		interpret: func(temp float64) (string, error) {
			if temp < 0.8 {
				return "1. Napa: 90%\n2. Seclo: 80%\n", nil
			}
			return "1. Seclo: 75%\n2. Napa: 85%\n", nil
		},
	}
	opts := DefaultOptions()
	opts.Passes = 2
	opts.Grouping = GroupBySimilarity
	result, err := newTestPipeline(t, gen, opts).Run(context.Background(), types.Image{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.Groups) != 2 {
		t.Fatalf("expected 2 clusters, got %+v", result.Groups)
	}
	for _, g := range result.Groups {
		if len(g.Candidates) != 2 || g.Candidates[0].Name != g.Candidates[1].Name {
			t.Errorf("cluster mixes names: %+v", g)
		}
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(nil, DefaultOptions(), nil); !errors.Is(err, ErrNoGenerator) {
		t.Errorf("expected ErrNoGenerator, got %v", err)
	}
	opts := DefaultOptions()
	opts.VerifyBy = "everything"
	if _, err := New(&stubGenerator{}, opts, nil); err == nil {
		t.Error("expected invalid verify_by error")
	}

	p := newTestPipeline(t, &stubGenerator{}, Options{})
	if got := p.Options(); got.Passes != 5 || got.MaxVerifyWorkers != 6 || got.VerifyBy != VerifyByGroup {
		t.Errorf("defaults not applied: %+v", got)
	}
}

func TestStageString(t *testing.T) {
	if Verifying.String() != "verifying" || Stage(42).String() != "unknown" {
		t.Error("unexpected stage names")
	}
	if !Done.Terminal() || !NoMedicinesFound.Terminal() || Grouping.Terminal() {
		t.Error("unexpected terminal states")
	}
}
