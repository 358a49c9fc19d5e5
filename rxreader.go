// Package rxreader reads medicine names from photographs of handwritten
// prescriptions.
//
// A prescription is interpreted several times by a vision model at different
// sampling temperatures. Lines of the form "1. Name: 85%" are extracted from
// every interpretation, grouped by the number the model printed, checked
// against web search one group at a time, and finally merged into a single
// report by one more search-backed model call.
//
// Basic usage:
//
//	gen, err := ollama.NewClient(ollama.DefaultURL, ollama.DefaultModel, 0)
//	if err != nil {
//		log.Fatal(err)
//	}
//	reader, err := rxreader.New(search.NewAugmenter(gen, search.NewDuckDuckGo(""), 0, nil), nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	result, err := reader.ReadFile(ctx, "prescription.jpg")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(result.FinalReport)
//
// The package consists of these components:
//
//  1. Processing (pkg/processing): loads files, URLs and uploads and enforces the type filter
//  2. Extraction (pkg/extraction): parses candidate lines out of model text
//  3. Grouping (pkg/grouping): groups candidates by position or name similarity
//  4. Pipeline (pkg/pipeline): runs the interpretation, verification and synthesis fan-outs
//  5. Search (pkg/search): fulfils the web search capability for any backend
package rxreader

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/menta2k/rx-reader/internal/utils"
	"github.com/menta2k/rx-reader/pkg/client"
	"github.com/menta2k/rx-reader/pkg/pipeline"
	"github.com/menta2k/rx-reader/pkg/processing"
	"github.com/menta2k/rx-reader/pkg/types"
)

// Version of the prescription reader
const Version = "1.0.0"

// Reader provides a high-level interface over ingestion and the pipeline
type Reader struct {
	processor *processing.Processor
	pipeline  *pipeline.Pipeline
	logger    *slog.Logger
}

// New creates a Reader with default ingestion and pipeline options
func New(gen client.Generator, logger *slog.Logger) (*Reader, error) {
	return NewWithConfig(gen, processing.DefaultConfig(), pipeline.DefaultOptions(), logger)
}

// NewWithConfig creates a Reader with custom configuration
func NewWithConfig(gen client.Generator, ingest processing.Config, opts pipeline.Options, logger *slog.Logger) (*Reader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p, err := pipeline.New(gen, opts, logger)
	if err != nil {
		return nil, err
	}
	return &Reader{
		processor: processing.NewProcessorWithConfig(ingest),
		pipeline:  p,
		logger:    logger,
	}, nil
}

// Processor returns the image processor used for ingestion
func (r *Reader) Processor() *processing.Processor {
	return r.processor
}

// Pipeline returns the underlying pipeline
func (r *Reader) Pipeline() *pipeline.Pipeline {
	return r.pipeline
}

// ReadFile reads a prescription image from disk
func (r *Reader) ReadFile(ctx context.Context, path string) (*types.Result, error) {
	img, err := r.processor.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	return r.ReadImage(ctx, img)
}

// ReadSource reads a prescription from a file path or an http(s) URL
func (r *Reader) ReadSource(ctx context.Context, source string) (*types.Result, error) {
	img, err := r.processor.LoadSmart(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	return r.ReadImage(ctx, img)
}

// ReadBytes reads an uploaded prescription. filename drives the type filter.
func (r *Reader) ReadBytes(ctx context.Context, data []byte, filename string) (*types.Result, error) {
	img, err := r.processor.FromBytes(data, filename)
	if err != nil {
		return nil, err
	}
	return r.ReadImage(ctx, img)
}

// ReadImage runs the pipeline on an already loaded image
func (r *Reader) ReadImage(ctx context.Context, img types.Image) (*types.Result, error) {
	return r.pipeline.Run(ctx, img)
}

// FileResult pairs one file of a directory run with its outcome
type FileResult struct {
	Path   string
	Result *types.Result
	Err    error
}

// ReadDirectory reads every supported image under dir, one at a time. A
// failing file does not stop the run; its error is recorded in its FileResult.
func (r *Reader) ReadDirectory(ctx context.Context, dir string) ([]FileResult, error) {
	files, err := utils.ListImageFiles(dir, r.processor.Config().SupportedFormats...)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no supported images found in %s", dir)
	}

	results := make([]FileResult, 0, len(files))
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		r.logger.Info("reading prescription", "file", path, "index", i+1, "total", len(files))
		res, err := r.ReadFile(ctx, path)
		if err != nil {
			r.logger.Error("prescription read failed", "file", path, "error", err)
		}
		results = append(results, FileResult{Path: path, Result: res, Err: err})
	}
	return results, nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
