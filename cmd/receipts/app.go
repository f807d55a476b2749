package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/receipt-extractor/internal/common"
	"github.com/joseph-ayodele/receipt-extractor/internal/export"
	"github.com/joseph-ayodele/receipt-extractor/internal/extract"
	"github.com/joseph-ayodele/receipt-extractor/internal/ingest"
	"github.com/joseph-ayodele/receipt-extractor/internal/llm"
	"github.com/joseph-ayodele/receipt-extractor/internal/llm/gemini"
	"github.com/joseph-ayodele/receipt-extractor/internal/llm/openai"
	"github.com/joseph-ayodele/receipt-extractor/internal/ocr"
	repo "github.com/joseph-ayodele/receipt-extractor/internal/repository"
)

// app is everything a command may need, wired from config.
type app struct {
	cfg    *common.Config
	logger *slog.Logger
	db     *repo.DB
	txs    repo.TransactionRepository
}

func (f *rootFlags) user() *int64 {
	if f.userID <= 0 {
		return nil
	}
	id := f.userID
	return &id
}

func openApp(ctx context.Context, flags *rootFlags) (*app, error) {
	cfg, err := common.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.dsn != "" {
		cfg.Database.DSN = flags.dsn
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := common.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	db, err := repo.Open(ctx, repo.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		txs:    repo.NewTransactionRepository(db, logger),
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("database close error", "error", err)
	}
}

// modelClient builds the configured provider. A missing API key yields a nil
// client: every extraction then ends in a flagged fallback record.
func (a *app) modelClient(ctx context.Context) (llm.ModelClient, error) {
	if err := a.cfg.RequireLLM(); err != nil {
		a.logger.Warn("no model credentials; uploads will produce fallback records", "error", err)
		return nil, nil
	}
	lc := a.cfg.LLM
	switch lc.Provider {
	case common.ProviderGemini:
		model := lc.ModelName
		if model == common.DefaultModel {
			model = ""
		}
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:      lc.APIKey,
			Model:       model,
			Temperature: lc.Temperature,
			MaxTokens:   lc.MaxTokens,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return openai.NewClient(openai.Config{
			APIKey:      lc.APIKey,
			BaseURL:     lc.BaseURL,
			Model:       lc.ModelName,
			Temperature: lc.Temperature,
			MaxTokens:   lc.MaxTokens,
			Timeout:     lc.RequestTimeout(),
		}, a.logger), nil
	}
}

func (a *app) orchestrator(ctx context.Context) (*extract.Orchestrator, error) {
	client, err := a.modelClient(ctx)
	if err != nil {
		return nil, err
	}
	var opts []extract.Option
	if a.cfg.Extraction.PDFRenderer != "" {
		opts = append(opts, extract.WithRenderer(ocr.NewRenderer(ocr.RendererConfig{Pdftoppm: a.cfg.Extraction.PDFRenderer}, a.logger)))
	}
	return extract.NewOrchestrator(client, extract.Config{
		RequestTimeout: a.cfg.LLM.RequestTimeout(),
		Normalizer: extract.NormalizerConfig{
			ConfidenceFlagThreshold: a.cfg.Extraction.ConfidenceFlagThreshold,
			TotalTolerance:          a.cfg.Extraction.TotalTolerance,
		},
	}, a.logger, opts...), nil
}

func (a *app) ingestService(ctx context.Context) (*ingest.Service, error) {
	orch, err := a.orchestrator(ctx)
	if err != nil {
		return nil, err
	}
	return ingest.NewService(orch, a.txs, ingest.Config{
		UploadDir:      a.cfg.Storage.UploadDir,
		MaxUploadBytes: int64(a.cfg.Extraction.MaxUploadMB) << 20,
		Workers:        a.cfg.Workers.Count,
	}, a.logger), nil
}

func (a *app) exportService() *export.Service {
	return export.NewService(a.txs, a.logger)
}

func contextWithTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = time.Minute
	}
	return context.WithTimeout(context.Background(), d)
}
