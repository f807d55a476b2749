package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/common"
	"github.com/joseph-ayodele/receipt-extractor/internal/entity"
)

// timestamps are stored as fixed-width UTC text so they sort lexically on both dialects
const timestampLayout = "2006-01-02T15:04:05.000000Z"

type TransactionRepository interface {
	Save(ctx context.Context, tx *entity.Transaction) (int64, error)
	Get(ctx context.Context, id int64) (*entity.Transaction, error)
	List(ctx context.Context) ([]*entity.Transaction, error)
	ListByUser(ctx context.Context, userID int64) ([]*entity.Transaction, error)
	Update(ctx context.Context, id int64, patch TransactionPatch) (*entity.Transaction, error)
	Delete(ctx context.Context, id int64) error
}

// TransactionPatch holds the fields a reviewer may correct. Nil means unchanged.
type TransactionPatch struct {
	Vendor        *string
	Date          *string
	Category      *string
	PaymentMethod *string
	Subtotal      *float64
	Tax           *float64
	Amount        *float64
	Flagged       *bool
}

func (p TransactionPatch) validate() error {
	v := common.NewValidator()
	if p.Vendor != nil {
		v.Field("vendor", p.Vendor, common.Required)
	}
	if p.Date != nil {
		if _, err := time.Parse(constants.DateLayout, *p.Date); err != nil {
			v.Field("date", *p.Date, func(field string, value interface{}) *common.ValidationError {
				return &common.ValidationError{Field: field, Value: value, Message: "must be YYYY-MM-DD"}
			})
		}
	}
	if p.Category != nil {
		v.Field("category", p.Category, common.OneOf(constants.AsStringSlice()...))
	}
	v.Field("subtotal", p.Subtotal, common.NonNegative).
		Field("tax", p.Tax, common.NonNegative).
		Field("amount", p.Amount, common.NonNegative)
	return v.Error()
}

type transactionRepository struct {
	db     *DB
	now    func() time.Time
	logger *slog.Logger
}

func NewTransactionRepository(db *DB, logger *slog.Logger) TransactionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &transactionRepository{db: db, now: time.Now, logger: logger}
}

const selectColumns = `id, user_id, vendor, date, amount, category, items_json, subtotal, tax,
	payment_method, raw_data_json, confidence_score, flagged, extraction_method, source_file, timestamp`

func (r *transactionRepository) Save(ctx context.Context, tx *entity.Transaction) (int64, error) {
	items := tx.Items
	if items == nil {
		items = []entity.Item{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return 0, fmt.Errorf("encode items: %w", err)
	}
	var raw any
	if len(tx.RawData) > 0 {
		raw = string(tx.RawData)
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = r.now()
	}
	tx.Timestamp = tx.Timestamp.UTC()

	q := r.db.Rebind(`INSERT INTO transactions (user_id, vendor, date, amount, category, items_json, subtotal, tax,
		payment_method, raw_data_json, confidence_score, flagged, extraction_method, source_file, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)

	var id int64
	err = r.db.QueryRowContext(ctx, q,
		tx.UserID, tx.Vendor, tx.Date, tx.Amount, tx.Category, string(itemsJSON), tx.Subtotal, tx.Tax,
		tx.PaymentMethod, raw, tx.ConfidenceScore, tx.Flagged, tx.ExtractionMethod, tx.SourceFile,
		tx.Timestamp.Format(timestampLayout),
	).Scan(&id)
	if err != nil {
		r.logger.Error("failed to save transaction", "vendor", tx.Vendor, "error", err)
		return 0, common.NewAppError("DB_ERROR", "save transaction", errors.Join(common.ErrDatabase, err))
	}
	tx.ID = id
	r.logger.Info("transaction saved", "id", id, "vendor", tx.Vendor, "amount", tx.Amount)
	return id, nil
}

func (r *transactionRepository) Get(ctx context.Context, id int64) (*entity.Transaction, error) {
	row := r.db.QueryRowContext(ctx, r.db.Rebind(`SELECT `+selectColumns+` FROM transactions WHERE id = ?`), id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundError("transaction %d", id)
	}
	if err != nil {
		r.logger.Error("failed to get transaction", "id", id, "error", err)
		return nil, err
	}
	return tx, nil
}

func (r *transactionRepository) List(ctx context.Context) ([]*entity.Transaction, error) {
	return r.query(ctx, `SELECT `+selectColumns+` FROM transactions ORDER BY "timestamp" DESC, id DESC`)
}

func (r *transactionRepository) ListByUser(ctx context.Context, userID int64) ([]*entity.Transaction, error) {
	return r.query(ctx, `SELECT `+selectColumns+` FROM transactions WHERE user_id = ? ORDER BY "timestamp" DESC, id DESC`, userID)
}

func (r *transactionRepository) query(ctx context.Context, q string, args ...any) ([]*entity.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		r.logger.Error("failed to list transactions", "error", err)
		return nil, err
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			r.logger.Warn("rows close error", "error", err)
		}
	}(rows)

	var out []*entity.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *transactionRepository) Update(ctx context.Context, id int64, patch TransactionPatch) (*entity.Transaction, error) {
	if err := patch.validate(); err != nil {
		return nil, err
	}

	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if patch.Vendor != nil {
		add("vendor", strings.TrimSpace(*patch.Vendor))
	}
	if patch.Date != nil {
		add("date", *patch.Date)
	}
	if patch.Category != nil {
		add("category", *patch.Category)
	}
	if patch.PaymentMethod != nil {
		add("payment_method", strings.ToLower(strings.TrimSpace(*patch.PaymentMethod)))
	}
	if patch.Subtotal != nil {
		add("subtotal", *patch.Subtotal)
	}
	if patch.Tax != nil {
		add("tax", *patch.Tax)
	}
	if patch.Amount != nil {
		add("amount", *patch.Amount)
	}
	if patch.Flagged != nil {
		add("flagged", *patch.Flagged)
	}
	if len(sets) == 0 {
		return r.Get(ctx, id)
	}

	args = append(args, id)
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE transactions SET `+strings.Join(sets, ", ")+` WHERE id = ?`), args...)
	if err != nil {
		r.logger.Error("failed to update transaction", "id", id, "error", err)
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, common.NotFoundError("transaction %d", id)
	}
	r.logger.Info("transaction updated", "id", id, "fields", len(sets))
	return r.Get(ctx, id)
}

func (r *transactionRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM transactions WHERE id = ?`), id)
	if err != nil {
		r.logger.Error("failed to delete transaction", "id", id, "error", err)
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NotFoundError("transaction %d", id)
	}
	r.logger.Info("transaction deleted", "id", id)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (*entity.Transaction, error) {
	var (
		tx        entity.Transaction
		userID    sql.NullInt64
		itemsJSON string
		raw       sql.NullString
		ts        string
	)
	err := s.Scan(&tx.ID, &userID, &tx.Vendor, &tx.Date, &tx.Amount, &tx.Category, &itemsJSON,
		&tx.Subtotal, &tx.Tax, &tx.PaymentMethod, &raw, &tx.ConfidenceScore, &tx.Flagged,
		&tx.ExtractionMethod, &tx.SourceFile, &ts)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		id := userID.Int64
		tx.UserID = &id
	}
	if err := json.Unmarshal([]byte(itemsJSON), &tx.Items); err != nil {
		return nil, fmt.Errorf("decode items_json for transaction %d: %w", tx.ID, err)
	}
	if raw.Valid && raw.String != "" {
		tx.RawData = json.RawMessage(raw.String)
	}
	if t, err := time.Parse(timestampLayout, ts); err == nil {
		tx.Timestamp = t
	}
	return &tx, nil
}
