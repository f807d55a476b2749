package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-extractor/internal/common"
	"github.com/joseph-ayodele/receipt-extractor/internal/entity"
	"github.com/joseph-ayodele/receipt-extractor/internal/extract"
)

// Upload stores src under the upload directory, runs extraction and persists
// the resulting transaction. A failed extraction still persists the flagged
// fallback record; only storage and database problems return an error.
func (s *Service) Upload(ctx context.Context, src io.Reader, filename string, userID *int64) (IngestionResult, error) {
	logger := common.LoggerWithRequest(ctx, s.logger)

	name := SanitizeFilename(filename)
	if name == "" {
		logger.Warn("ingest.upload.rejected", "filename", filename, "reason", "empty name")
		return IngestionResult{}, common.InvalidInputError("no usable filename in %q", filename)
	}
	if !AllowedExt(filepath.Ext(name)) {
		logger.Warn("ingest.upload.rejected", "filename", filename, "reason", "unsupported type")
		return IngestionResult{}, common.InvalidInputError("unsupported file type %q; upload JPG, PNG, GIF, WEBP, PDF or TXT", filepath.Ext(name))
	}

	stored, err := s.store(src, name)
	if err != nil {
		logger.Error("ingest.upload.store_failed", "filename", name, "error", err)
		return IngestionResult{}, err
	}
	logger.Info("ingest.upload.stored", "path", stored)

	return s.processAndSave(ctx, stored, name, userID)
}

// IngestPath processes a file already on local disk without copying it.
func (s *Service) IngestPath(ctx context.Context, path string, userID *int64) (IngestionResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return IngestionResult{SourcePath: path}, fmt.Errorf("abs path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return IngestionResult{SourcePath: path}, err
	}
	if info.IsDir() {
		return IngestionResult{SourcePath: path}, common.InvalidInputError("%s is a directory", path)
	}
	if info.Size() > s.cfg.MaxUploadBytes {
		return IngestionResult{SourcePath: path}, fmt.Errorf("%s: %d bytes: %w", path, info.Size(), common.ErrTooLarge)
	}

	res, err := s.processAndSave(ctx, abs, filepath.Base(abs), userID)
	res.SourcePath = path
	return res, err
}

func (s *Service) processAndSave(ctx context.Context, path, name string, userID *int64) (IngestionResult, error) {
	if userID == nil {
		if id, ok := common.UserIDFromContext(ctx); ok {
			userID = &id
		}
	}

	res := s.processor.Process(ctx, path, name)
	out := IngestionResult{
		Record:     res.Record,
		Succeeded:  res.Succeeded,
		StoredPath: path,
		SourcePath: path,
	}
	if res.Err != nil {
		out.Err = res.Err.Error()
	}

	tx, err := ToEntity(res, userID)
	if err != nil {
		return out, err
	}
	id, err := s.repo.Save(ctx, tx)
	if err != nil {
		return out, err
	}
	out.TransactionID = id
	return out, nil
}

// ToEntity converts a pipeline result into a storable transaction. The raw
// model object is kept when parsing got that far.
func ToEntity(res extract.Result, userID *int64) (*entity.Transaction, error) {
	rec := res.Record
	items := make([]entity.Item, 0, len(rec.Items))
	for _, it := range rec.Items {
		items = append(items, entity.Item{Name: it.Name, Price: it.Price})
	}

	var raw json.RawMessage
	if res.Fields != nil {
		b, err := json.Marshal(res.Fields)
		if err != nil {
			return nil, fmt.Errorf("encode raw data: %w", err)
		}
		raw = b
	}

	return &entity.Transaction{
		UserID:           userID,
		Vendor:           rec.Vendor,
		Date:             rec.Date,
		Amount:           rec.Total,
		Category:         string(rec.Category),
		Items:            items,
		Subtotal:         rec.Subtotal,
		Tax:              rec.Tax,
		PaymentMethod:    rec.PaymentMethod,
		RawData:          raw,
		ConfidenceScore:  rec.ConfidenceScore,
		Flagged:          rec.Flagged,
		ExtractionMethod: string(rec.ExtractionMethod),
		SourceFile:       rec.SourceFile,
	}, nil
}

// store copies src to <upload_dir>/<YYYYMMDD_HHMMSS>_<uuid8>_<name>, enforcing the size cap.
func (s *Service) store(src io.Reader, name string) (string, error) {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	stamp := s.now().Format("20060102_150405")
	short := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	path := filepath.Join(s.cfg.UploadDir, stamp+"_"+short+"_"+name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	n, copyErr := io.Copy(f, io.LimitReader(src, s.cfg.MaxUploadBytes+1))
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		err = fmt.Errorf("write upload: %w", copyErr)
	case closeErr != nil:
		err = fmt.Errorf("close upload: %w", closeErr)
	case n > s.cfg.MaxUploadBytes:
		err = fmt.Errorf("upload exceeds %d bytes: %w", s.cfg.MaxUploadBytes, common.ErrTooLarge)
	}
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			s.logger.Warn("ingest.upload.cleanup_failed", "path", path, "error", rmErr)
		}
		return "", err
	}
	return path, nil
}
