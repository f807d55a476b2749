package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/receipt-extractor/internal/extract"
	"github.com/joseph-ayodele/receipt-extractor/internal/repository"
)

// Processor runs the extraction pipeline on a stored file.
type Processor interface {
	Process(ctx context.Context, filePath, originalFilename string) extract.Result
}

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	TransactionID int64
	Record        extract.TransactionRecord
	Succeeded     bool
	StoredPath    string
	SourcePath    string
	Err           string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned   uint32
	Matched   uint32
	Succeeded uint32
	Fallback  uint32
	Failed    uint32
}

type Config struct {
	UploadDir      string
	MaxUploadBytes int64
	Workers        int
}

type Service struct {
	processor Processor
	repo      repository.TransactionRepository
	cfg       Config
	now       func() time.Time
	logger    *slog.Logger
}

func NewService(processor Processor, repo repository.TransactionRepository, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 16 << 20
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Service{
		processor: processor,
		repo:      repo,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger,
	}
}
