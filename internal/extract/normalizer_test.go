package extract

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-extractor/constants"
)

func normalize(t *testing.T, raw string) TransactionRecord {
	t.Helper()
	fields, err := ParseResponse(raw)
	require.NoError(t, err)
	n := NewNormalizer(NormalizerConfig{ConfidenceFlagThreshold: 50, TotalTolerance: 0.01}, fixedClock, discardLogger())
	return n.Normalize(fields, constants.MethodText, "receipt.txt")
}

func TestNormalize_DerivesTotal(t *testing.T) {
	rec := normalize(t, `{"vendor":"Acme","subtotal":10,"tax":1,"confidence_score":90}`)
	assert.Equal(t, "Acme", rec.Vendor)
	assert.Equal(t, 10.0, rec.Subtotal)
	assert.Equal(t, 1.0, rec.Tax)
	assert.Equal(t, 11.0, rec.Total)
	assert.Equal(t, 90, rec.ConfidenceScore)
	assert.False(t, rec.Flagged)
	assert.Equal(t, constants.MethodText, rec.ExtractionMethod)
	assert.Equal(t, "receipt.txt", rec.SourceFile)
}

func TestNormalize_MinimalResponseIsFlaggedForLowConfidence(t *testing.T) {
	rec := normalize(t, `{"vendor":"Acme","subtotal":10,"tax":1}`)
	assert.Equal(t, 11.0, rec.Total)
	assert.Equal(t, 0, rec.ConfidenceScore)
	assert.True(t, rec.Flagged)
}

func TestNormalize_Defaults(t *testing.T) {
	rec := normalize(t, `{}`)
	assert.Equal(t, constants.DefaultVendor, rec.Vendor)
	assert.Equal(t, "2025-03-14", rec.Date)
	assert.NotNil(t, rec.Items)
	assert.Empty(t, rec.Items)
	assert.Zero(t, rec.Subtotal)
	assert.Zero(t, rec.Tax)
	assert.Zero(t, rec.Total)
	assert.Equal(t, constants.Other, rec.Category)
	assert.Equal(t, constants.DefaultPaymentMethod, rec.PaymentMethod)
	assert.True(t, rec.Flagged)
}

func TestNormalize_Confidence(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{`{"confidence_score":150}`, 100},
		{`{"confidence_score":-5}`, 0},
		{`{"confidence_score":"85%"}`, 85},
		{`{"confidence_score":72.6}`, 73},
		{`{"confidence":0.9}`, 1},
		{`{"confidence_score":0.4}`, 0},
		{`{"confidence_score":1e60000000}`, 0},
		{`{"confidence_score":"high"}`, 0},
		{`{"confidence_score":100}`, 100},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			rec := normalize(t, tt.raw)
			assert.Equal(t, tt.want, rec.ConfidenceScore)
			assert.GreaterOrEqual(t, rec.ConfidenceScore, 0)
			assert.LessOrEqual(t, rec.ConfidenceScore, 100)
		})
	}
}

func TestNormalize_FlagThreshold(t *testing.T) {
	assert.False(t, normalize(t, `{"confidence_score":50}`).Flagged)
	assert.True(t, normalize(t, `{"confidence_score":49}`).Flagged)
	assert.True(t, normalize(t, `{"confidence":0.9}`).Flagged)
}

func TestNormalize_ZeroThresholdFlagsOnlyFallbacks(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{ConfidenceFlagThreshold: 0}, fixedClock, discardLogger())
	fields, err := ParseResponse(`{"vendor":"Acme","total":3,"confidence_score":0}`)
	require.NoError(t, err)

	assert.False(t, n.Normalize(fields, constants.MethodText, "r.txt").Flagged)
	assert.True(t, n.Fallback("r.txt").Flagged)
}

func TestNormalize_NegativeThresholdUsesDefault(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{ConfidenceFlagThreshold: -1}, fixedClock, discardLogger())
	fields, err := ParseResponse(`{"vendor":"Acme","total":3,"confidence_score":49}`)
	require.NoError(t, err)

	assert.True(t, n.Normalize(fields, constants.MethodText, "r.txt").Flagged)
	assert.Equal(t, 50, DefaultNormalizerConfig().ConfidenceFlagThreshold)
}

func TestNormalize_Amounts(t *testing.T) {
	tests := []struct {
		name                 string
		raw                  string
		subtotal, tax, total float64
	}{
		{"currency strings", `{"subtotal":"$1,234.50","tax":"USD 98.76","total":"$1,333.26"}`, 1234.50, 98.76, 1333.26},
		{"decimal comma", `{"subtotal":"12,50 €","tax":"0,50","total":"13,00"}`, 12.50, 0.50, 13.00},
		{"subtotal from total", `{"total":20,"tax":2}`, 18, 2, 20},
		{"subtotal floored", `{"total":1,"tax":5}`, 0, 1, 1},
		{"tax from total", `{"subtotal":9,"total":10}`, 9, 1, 10},
		{"total only", `{"total":"7.25"}`, 7.25, 0, 7.25},
		{"negatives floored", `{"subtotal":-3,"tax":-1}`, 0, 0, 0},
		{"mismatch keeps total", `{"subtotal":10,"tax":1,"total":15}`, 14, 1, 15},
		{"within tolerance kept", `{"subtotal":10,"tax":1,"total":11.01}`, 10, 1, 11.01},
		{"subtotal from items", `{"items":[{"name":"a","price":2.5},{"name":"b","price":"$1.50"}],"tax":0.4}`, 4, 0.4, 4.4},
		{"garbage amount", `{"subtotal":"n/a","tax":1,"total":5}`, 4, 1, 5},
		{"overflowing total", `{"subtotal":10,"tax":1,"total":1e400}`, 10, 1, 11},
		{"huge exponent total", `{"subtotal":10,"tax":1,"total":1e60000000}`, 10, 1, 11},
		{"tiny exponent tax", `{"subtotal":10,"tax":1e-60000000,"total":11}`, 10, 1, 11},
		{"too many digits", `{"subtotal":"12345678901234567890","tax":1,"total":3}`, 2, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := normalize(t, tt.raw)
			assert.InDelta(t, tt.subtotal, rec.Subtotal, 0.0001)
			assert.InDelta(t, tt.tax, rec.Tax, 0.0001)
			assert.InDelta(t, tt.total, rec.Total, 0.0001)
			assert.InDelta(t, rec.Subtotal+rec.Tax, rec.Total, 0.01+1e-9)
			assert.GreaterOrEqual(t, rec.Subtotal, 0.0)
			assert.GreaterOrEqual(t, rec.Tax, 0.0)
			assert.GreaterOrEqual(t, rec.Total, 0.0)
		})
	}
}

func TestNormalize_Items(t *testing.T) {
	rec := normalize(t, `{"items":[{"name":"  Milk  2L ","price":"$3.49"},"stray",{"description":"Bread","price":-2},{"price":1},42],"total":5}`)
	require.Len(t, rec.Items, 3)
	assert.Equal(t, Item{Name: "Milk 2L", Price: 3.49}, rec.Items[0])
	assert.Equal(t, Item{Name: "Bread", Price: 0}, rec.Items[1])
	assert.Equal(t, Item{Name: constants.DefaultItemName, Price: 1}, rec.Items[2])
}

func TestNormalize_Strings(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		vendor   string
		date     string
		category constants.Category
		payment  string
	}{
		{"canonical", `{"vendor":"Whole Foods","date":"2024-12-01","category":"groceries","payment_method":"VISA"}`,
			"Whole Foods", "2024-12-01", constants.Groceries, "visa"},
		{"synonyms", `{"merchant":"Shell","date":"2024-02-29T10:00:00Z","category":"Transport","payment_method":" Credit  Card "}`,
			"Shell", "2024-02-29", constants.Transportation, "credit card"},
		{"bad values", `{"vendor":"   ","date":"12/01/2024","category":"crypto","payment_method":42}`,
			constants.DefaultVendor, "2025-03-14", constants.Other, constants.DefaultPaymentMethod},
		{"impossible date", `{"vendor":"X","date":"2024-02-30","category":"DINING"}`,
			"X", "2025-03-14", constants.Dining, constants.DefaultPaymentMethod},
		{"non-string vendor", `{"vendor":{"name":"Acme"},"category":null}`,
			constants.DefaultVendor, "2025-03-14", constants.Other, constants.DefaultPaymentMethod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := normalize(t, tt.raw)
			assert.Equal(t, tt.vendor, rec.Vendor)
			assert.Equal(t, tt.date, rec.Date)
			assert.Equal(t, tt.category, rec.Category)
			assert.Equal(t, tt.payment, rec.PaymentMethod)
		})
	}
}

func TestNormalize_OutOfRangeValuesStaySerialisable(t *testing.T) {
	fields, err := ParseResponse(`{"vendor":"Acme","items":[{"name":"a","price":1e400},{"name":"b","price":1e60000000}],"total":1e60000000,"confidence_score":1e400}`)
	require.NoError(t, err)
	n := NewNormalizer(DefaultNormalizerConfig(), fixedClock, discardLogger())

	done := make(chan TransactionRecord, 1)
	go func() { done <- n.Normalize(fields, constants.MethodText, "receipt.txt") }()

	var rec TransactionRecord
	select {
	case rec = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("normalize did not finish")
	}
	require.Len(t, rec.Items, 2)
	assert.Zero(t, rec.Items[0].Price)
	assert.Zero(t, rec.Items[1].Price)
	assert.Zero(t, rec.Total)
	assert.Equal(t, 0, rec.ConfidenceScore)
	assert.True(t, rec.Flagged)
	_, err = json.Marshal(rec)
	assert.NoError(t, err)
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	fields := map[string]any{"merchant": "Acme", "total": json.Number("5")}
	n := NewNormalizer(NormalizerConfig{}, fixedClock, discardLogger())
	_ = n.Normalize(fields, constants.MethodText, "a.txt")
	assert.Equal(t, map[string]any{"merchant": "Acme", "total": json.Number("5")}, fields)
}

func TestFallback(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{}, fixedClock, discardLogger())
	a := n.Fallback("lunch.jpg")
	b := n.Fallback("lunch.jpg")

	assert.Equal(t, a, b)
	assert.Equal(t, constants.FallbackVendor, a.Vendor)
	assert.Equal(t, "2025-03-14", a.Date)
	require.Len(t, a.Items, 1)
	assert.Contains(t, a.Items[0].Name, "lunch.jpg")
	assert.Equal(t, constants.MethodFallback, a.ExtractionMethod)
	assert.Equal(t, 0, a.ConfidenceScore)
	assert.True(t, a.Flagged)
	assert.True(t, a.IsFallback())
	assert.Equal(t, "lunch.jpg", a.SourceFile)
	assert.Equal(t, constants.Other, a.Category)
}

func TestRecordMap(t *testing.T) {
	rec := normalize(t, `{"vendor":"Acme","items":[{"name":"a","price":1}],"total":1,"confidence_score":80}`)
	m := rec.Map()
	for _, key := range []string{"vendor", "date", "items", "subtotal", "tax", "total", "category",
		"payment_method", "confidence_score", "extraction_method", "source_file", "flagged"} {
		assert.Contains(t, m, key)
	}
	assert.Equal(t, "text_model", m["extraction_method"])
}
