package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/common"
	"github.com/joseph-ayodele/receipt-extractor/internal/extract"
	"github.com/joseph-ayodele/receipt-extractor/internal/llm"
	"github.com/joseph-ayodele/receipt-extractor/internal/repository"
)

const receiptJSON = `Here you go: {"vendor":"Corner Market","date":"2025-03-10","items":[{"name":"Milk","price":3.5}],"subtotal":10,"tax":1,"category":"groceries","payment_method":"Card","confidence_score":91}`

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

type stubClient struct {
	resp  string
	err   error
	calls atomic.Int32
}

func (c *stubClient) Complete(_ context.Context, _ llm.CompletionRequest) (string, error) {
	c.calls.Add(1)
	return c.resp, c.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, client llm.ModelClient, cfg Config) (*Service, repository.TransactionRepository) {
	t.Helper()
	logger := discardLogger()
	db, err := repository.Open(context.Background(), repository.Config{DSN: filepath.Join(t.TempDir(), "ingest.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Init(context.Background()))

	repo := repository.NewTransactionRepository(db, logger)
	orch := extract.NewOrchestrator(client, extract.Config{RequestTimeout: time.Second, Normalizer: extract.DefaultNormalizerConfig()}, logger,
		extract.WithClock(func() time.Time { return fixedNow }))

	if cfg.UploadDir == "" {
		cfg.UploadDir = filepath.Join(t.TempDir(), "uploads")
	}
	svc := NewService(orch, repo, cfg, logger)
	svc.now = func() time.Time { return fixedNow }
	return svc, repo
}

func TestUpload_Success(t *testing.T) {
	client := &stubClient{resp: receiptJSON}
	svc, repo := newTestService(t, client, Config{})
	ctx := context.Background()

	user := int64(3)
	res, err := svc.Upload(ctx, strings.NewReader("CORNER MARKET\nMilk 3.50\nTOTAL 11.00"), "my receipt.txt", &user)
	require.NoError(t, err)
	assert.True(t, res.Succeeded)
	assert.Positive(t, res.TransactionID)
	assert.Equal(t, "Corner Market", res.Record.Vendor)
	assert.InDelta(t, 11.0, res.Record.Total, 1e-9)
	assert.Equal(t, "my_receipt.txt", res.Record.SourceFile)

	assert.Regexp(t, regexp.MustCompile(`^20250314_093000_[0-9a-f]{8}_my_receipt\.txt$`), filepath.Base(res.StoredPath))
	data, err := os.ReadFile(res.StoredPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "CORNER MARKET")

	tx, err := repo.Get(ctx, res.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, "Corner Market", tx.Vendor)
	assert.InDelta(t, 11.0, tx.Amount, 1e-9)
	assert.Equal(t, "groceries", tx.Category)
	assert.Equal(t, "card", tx.PaymentMethod)
	assert.Equal(t, string(constants.MethodText), tx.ExtractionMethod)
	require.NotNil(t, tx.UserID)
	assert.Equal(t, int64(3), *tx.UserID)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(tx.RawData, &raw))
	assert.Equal(t, "Corner Market", raw["vendor"])
}

func TestUpload_FallbackIsPersisted(t *testing.T) {
	client := &stubClient{resp: "I could not read this receipt."}
	svc, repo := newTestService(t, client, Config{})
	ctx := common.WithUserID(context.Background(), 9)

	res, err := svc.Upload(ctx, strings.NewReader("smudged"), "smudged.txt", nil)
	require.NoError(t, err)
	assert.False(t, res.Succeeded)
	assert.NotEmpty(t, res.Err)
	assert.True(t, res.Record.IsFallback())

	tx, err := repo.Get(ctx, res.TransactionID)
	require.NoError(t, err)
	assert.True(t, tx.Flagged)
	assert.Equal(t, string(constants.MethodFallback), tx.ExtractionMethod)
	assert.Nil(t, tx.RawData)
	require.NotNil(t, tx.UserID)
	assert.Equal(t, int64(9), *tx.UserID)
}

func TestUpload_Rejections(t *testing.T) {
	client := &stubClient{resp: receiptJSON}
	svc, repo := newTestService(t, client, Config{MaxUploadBytes: 16})
	ctx := context.Background()

	_, err := svc.Upload(ctx, strings.NewReader("MZ"), "tool.exe", nil)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	_, err = svc.Upload(ctx, strings.NewReader("x"), "../..", nil)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	_, err = svc.Upload(ctx, bytes.NewReader(bytes.Repeat([]byte("a"), 17)), "big.txt", nil)
	assert.True(t, errors.Is(err, common.ErrTooLarge))

	entries, err := os.ReadDir(svc.cfg.UploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "oversized upload must be removed")

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Zero(t, client.calls.Load())
}

func TestIngestPath(t *testing.T) {
	client := &stubClient{resp: receiptJSON}
	svc, _ := newTestService(t, client, Config{})

	path := filepath.Join(t.TempDir(), "r.txt")
	require.NoError(t, os.WriteFile(path, []byte("TOTAL 11.00"), 0o600))

	res, err := svc.IngestPath(context.Background(), path, nil)
	require.NoError(t, err)
	assert.True(t, res.Succeeded)
	assert.Equal(t, path, res.SourcePath)
	assert.Equal(t, "r.txt", res.Record.SourceFile)

	_, err = svc.IngestPath(context.Background(), filepath.Join(t.TempDir(), "missing.txt"), nil)
	assert.Error(t, err)
}

func TestIngestDirectory(t *testing.T) {
	client := &stubClient{resp: receiptJSON}
	svc, repo := newTestService(t, client, Config{Workers: 2})

	root := t.TempDir()
	write := func(rel, body string) {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	}
	write("a.txt", "TOTAL 11.00")
	write("nested/b.txt", "TOTAL 11.00")
	write("nested/empty.txt", "")
	write("notes.md", "ignored")
	write(".hidden.txt", "ignored")
	write(".cache/c.txt", "ignored")

	results, stats, err := svc.IngestDirectory(context.Background(), root, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), stats.Scanned)
	assert.Equal(t, uint32(3), stats.Matched)
	assert.Equal(t, uint32(2), stats.Succeeded)
	assert.Equal(t, uint32(1), stats.Fallback)
	assert.Zero(t, stats.Failed)
	require.Len(t, results, 3)

	all, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, int32(2), client.calls.Load())

	_, _, err = svc.IngestDirectory(context.Background(), "  ", nil)
	assert.Error(t, err)
}

func TestToEntity(t *testing.T) {
	res := extract.Result{
		Record: extract.TransactionRecord{
			Vendor:           "Cafe",
			Date:             "2025-01-02",
			Items:            []extract.Item{{Name: "Latte", Price: 4.5}},
			Subtotal:         4.5,
			Tax:              0.5,
			Total:            5,
			Category:         constants.Dining,
			PaymentMethod:    "cash",
			ConfidenceScore:  80,
			ExtractionMethod: constants.MethodVision,
			SourceFile:       "latte.jpg",
		},
		Succeeded: true,
		Fields:    map[string]any{"vendor": "Cafe", "total": json.Number("5")},
	}
	tx, err := ToEntity(res, nil)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, tx.Amount, 1e-9)
	assert.Equal(t, "dining", tx.Category)
	assert.Equal(t, "vision_model", tx.ExtractionMethod)
	assert.JSONEq(t, `{"vendor":"Cafe","total":5}`, string(tx.RawData))
	require.Len(t, tx.Items, 1)
	assert.Equal(t, "Latte", tx.Items[0].Name)
}
