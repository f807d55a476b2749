package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/common"
	"github.com/joseph-ayodele/receipt-extractor/internal/llm"
)

// Config is the orchestrator's construction-time configuration.
type Config struct {
	RequestTimeout time.Duration // bound on one strategy call; default 30s
	Normalizer     NormalizerConfig
}

// Orchestrator is the pipeline's entry point. It holds no per-request state
// and is safe for concurrent use.
type Orchestrator struct {
	strategies map[constants.FileKind]Strategy
	normalizer *Normalizer
	timeout    time.Duration
	logger     *slog.Logger
}

type options struct {
	read       ReadFunc
	renderer   PageRenderer
	now        func() time.Time
	strategies map[constants.FileKind]Strategy
}

type Option func(*options)

// WithReader sets how stored uploads are read.
func WithReader(read ReadFunc) Option {
	return func(o *options) { o.read = read }
}

// WithRenderer enables the vision path for image-only PDFs.
func WithRenderer(r PageRenderer) Option {
	return func(o *options) { o.renderer = r }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithStrategy replaces the strategy used for kind.
func WithStrategy(kind constants.FileKind, s Strategy) Option {
	return func(o *options) { o.strategies[kind] = s }
}

func NewOrchestrator(client llm.ModelClient, cfg Config, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	o := options{strategies: map[constants.FileKind]Strategy{}}
	for _, opt := range opts {
		opt(&o)
	}

	strategies := map[constants.FileKind]Strategy{
		constants.FileKindImage: NewImageExtractor(client, o.read, logger),
		constants.FileKindPDF:   NewPdfExtractor(client, o.read, o.renderer, logger),
		constants.FileKindText:  NewTextExtractor(client, o.read, logger),
	}
	for kind, s := range o.strategies {
		strategies[kind] = s
	}

	return &Orchestrator{
		strategies: strategies,
		normalizer: NewNormalizer(cfg.Normalizer, o.now, logger),
		timeout:    cfg.RequestTimeout,
		logger:     logger,
	}
}

// Result is the full outcome of one run.
type Result struct {
	Record    TransactionRecord
	Succeeded bool
	// Stage is the state the run ended in: StageDone, or the state that failed.
	Stage  constants.Stage
	Fields map[string]any // decoded model object; nil when parsing never succeeded
	Err    error          // why the fallback path was taken
}

// ProcessUploadedFile classifies, extracts, parses and normalizes one upload.
// It never returns an error: on any failure it returns a flagged fallback
// record and false.
func (o *Orchestrator) ProcessUploadedFile(ctx context.Context, filePath, originalFilename string) (TransactionRecord, bool) {
	res := o.Process(ctx, filePath, originalFilename)
	return res.Record, res.Succeeded
}

// Process is ProcessUploadedFile with diagnostics.
func (o *Orchestrator) Process(ctx context.Context, filePath, originalFilename string) (res Result) {
	start := time.Now()
	name := strings.TrimSpace(originalFilename)
	if name == "" {
		name = filepath.Base(filePath)
	}
	logger := common.LoggerWithRequest(ctx, o.logger).With("source_file", name)

	stage := constants.StageClassifying
	defer func() {
		if r := recover(); r != nil {
			res = o.fallback(logger, name, stage, fmt.Errorf("panic: %v", r), start)
		}
	}()

	var (
		strategy   Strategy
		extraction Extraction
		fields     map[string]any
		record     TransactionRecord
	)
	for {
		switch stage {
		case constants.StageClassifying:
			kind := Classify(name)
			logger.Debug("extract.classify", "kind", kind)
			s, ok := o.strategies[kind]
			if !ok {
				err := newUnsupported(fmt.Sprintf("unsupported file type %q", filepath.Ext(name)), nil)
				return o.fallback(logger, name, stage, err, start)
			}
			strategy = s
			stage = constants.StageExtracting

		case constants.StageExtracting:
			var err error
			extraction, err = o.extract(ctx, strategy, filePath)
			if err != nil {
				return o.fallback(logger, name, stage, err, start)
			}
			stage = constants.StageParsing

		case constants.StageParsing:
			var err error
			fields, err = ParseResponse(extraction.Raw)
			if err != nil {
				return o.fallback(logger, name, stage, err, start)
			}
			stage = constants.StageNormalizing

		case constants.StageNormalizing:
			record = o.normalizer.Normalize(fields, extraction.Method, name)
			stage = constants.StageDone

		case constants.StageDone:
			logger.Info("extract.done",
				"method", record.ExtractionMethod,
				"vendor", record.Vendor,
				"total", record.Total,
				"confidence", record.ConfidenceScore,
				"flagged", record.Flagged,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return Result{Record: record, Succeeded: true, Stage: stage, Fields: fields}
		}
	}
}

// extract runs the strategy under the request timeout. The strategy runs in
// its own goroutine so a call that ignores ctx still cannot hold the caller
// past the deadline; panics inside it surface as ExternalServiceError.
func (o *Orchestrator) extract(ctx context.Context, s Strategy, path string) (Extraction, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	type outcome struct {
		ext Extraction
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: newExternal(ctx, "strategy", fmt.Errorf("panic: %v", r))}
			}
		}()
		ext, err := s.Extract(ctx, path)
		done <- outcome{ext: ext, err: err}
	}()

	select {
	case out := <-done:
		return out.ext, out.err
	case <-ctx.Done():
		return Extraction{}, newExternal(ctx, "strategy", ctx.Err())
	}
}

func (o *Orchestrator) fallback(logger *slog.Logger, name string, stage constants.Stage, err error, start time.Time) Result {
	logger.Warn("extract.fallback",
		"stage", stage,
		"code", ErrorCode(err),
		"error", err,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Result{
		Record:    o.normalizer.Fallback(name),
		Succeeded: false,
		Stage:     stage,
		Err:       err,
	}
}
