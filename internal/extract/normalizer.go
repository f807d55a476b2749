package extract

import (
	"encoding/json"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/llm"
)

// NormalizerConfig holds the review policy.
type NormalizerConfig struct {
	// ConfidenceFlagThreshold flags records scoring below it. 0 flags only
	// fallbacks; a negative value selects DefaultConfidenceFlagThreshold.
	ConfidenceFlagThreshold int
	TotalTolerance          float64 // allowed |total-(subtotal+tax)|; default 0.01
}

const (
	DefaultConfidenceFlagThreshold = 50
	DefaultTotalTolerance          = 0.01
)

// DefaultNormalizerConfig returns the review policy used when nothing is configured.
func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{
		ConfidenceFlagThreshold: DefaultConfidenceFlagThreshold,
		TotalTolerance:          DefaultTotalTolerance,
	}
}

// Normalizer turns an untrusted decoded model object into a complete
// TransactionRecord. It never fails; bad fields fall back to defaults.
type Normalizer struct {
	cfg       NormalizerConfig
	tolerance decimal.Decimal
	now       func() time.Time
	logger    *slog.Logger
}

func NewNormalizer(cfg NormalizerConfig, now func() time.Time, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	if cfg.ConfidenceFlagThreshold < 0 {
		cfg.ConfidenceFlagThreshold = DefaultConfidenceFlagThreshold
	}
	if cfg.TotalTolerance <= 0 {
		cfg.TotalTolerance = DefaultTotalTolerance
	}
	return &Normalizer{
		cfg:       cfg,
		tolerance: decimal.NewFromFloat(cfg.TotalTolerance),
		now:       now,
		logger:    logger,
	}
}

// field aliases models use instead of the canonical names, in priority order.
var aliases = map[string][]string{
	"vendor":           {"vendor", "merchant", "merchant_name", "store", "store_name"},
	"date":             {"date", "transaction_date", "tx_date", "purchase_date"},
	"items":            {"items", "line_items"},
	"subtotal":         {"subtotal", "sub_total"},
	"tax":              {"tax", "tax_amount", "vat"},
	"total":            {"total", "total_amount", "grand_total", "amount"},
	"category":         {"category"},
	"payment_method":   {"payment_method", "payment"},
	"confidence_score": {"confidence_score", "confidence"},
}

func lookup(fields map[string]any, canonical string) (any, bool) {
	for _, k := range aliases[canonical] {
		if v, ok := fields[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// Normalize builds the record for a real extraction. The input map is not modified.
func (n *Normalizer) Normalize(fields map[string]any, method constants.ExtractionMethod, sourceFile string) TransactionRecord {
	if err := llm.ValidateTransaction(fields); err != nil {
		n.logger.Warn("extract.normalize.schema_mismatch", "source_file", sourceFile, "error", err)
	}

	rec := TransactionRecord{
		Vendor:           n.vendor(fields),
		Date:             n.date(fields),
		Items:            n.items(fields),
		Category:         n.category(fields),
		PaymentMethod:    n.paymentMethod(fields),
		ConfidenceScore:  n.confidence(fields),
		ExtractionMethod: method,
		SourceFile:       sourceFile,
	}
	rec.Subtotal, rec.Tax, rec.Total = n.amounts(fields, rec.Items, sourceFile)
	rec.Flagged = n.flagged(rec.ExtractionMethod, rec.ConfidenceScore)
	return rec
}

func (n *Normalizer) flagged(method constants.ExtractionMethod, confidence int) bool {
	return method == constants.MethodFallback || confidence < n.cfg.ConfidenceFlagThreshold
}

func (n *Normalizer) today() string {
	return n.now().Format(constants.DateLayout)
}

func (n *Normalizer) vendor(fields map[string]any) string {
	v, _ := lookup(fields, "vendor")
	if s := collapse(asString(v)); s != "" {
		return s
	}
	return constants.DefaultVendor
}

var dateLayouts = []string{
	constants.DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (n *Normalizer) date(fields map[string]any) string {
	v, _ := lookup(fields, "date")
	s := strings.TrimSpace(asString(v))
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(constants.DateLayout)
		}
	}
	return n.today()
}

func (n *Normalizer) items(fields map[string]any) []Item {
	v, _ := lookup(fields, "items")
	list, _ := v.([]any)
	out := make([]Item, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		name := ""
		for _, k := range []string{"name", "description", "item"} {
			if name = collapse(asString(m[k])); name != "" {
				break
			}
		}
		if name == "" {
			name = constants.DefaultItemName
		}
		price := decimal.Zero
		for _, k := range []string{"price", "amount", "total"} {
			if d, ok := toDecimal(m[k]); ok {
				price = money(d)
				break
			}
		}
		out = append(out, Item{Name: name, Price: price.InexactFloat64()})
	}
	return out
}

func (n *Normalizer) category(fields map[string]any) constants.Category {
	v, _ := lookup(fields, "category")
	cat, _ := constants.Canonicalize(asString(v))
	return cat
}

func (n *Normalizer) paymentMethod(fields map[string]any) string {
	v, _ := lookup(fields, "payment_method")
	s := collapse(asString(v))
	if s == "" {
		return constants.DefaultPaymentMethod
	}
	return cases.Lower(language.Und).String(s)
}

var hundred = decimal.NewFromInt(100)

func (n *Normalizer) confidence(fields map[string]any) int {
	v, _ := lookup(fields, "confidence_score")
	d, ok := toDecimal(v)
	if !ok {
		return 0
	}
	switch {
	case d.IsNegative():
		return 0
	case d.GreaterThan(hundred):
		return 100
	}
	return int(d.Round(0).IntPart())
}

// amounts coerces subtotal/tax/total, derives the missing ones and enforces
// total == subtotal + tax within tolerance. total, the amount paid, wins.
func (n *Normalizer) amounts(fields map[string]any, items []Item, sourceFile string) (float64, float64, float64) {
	get := func(name string) (decimal.Decimal, bool) {
		v, ok := lookup(fields, name)
		if !ok {
			return decimal.Zero, false
		}
		d, ok := toDecimal(v)
		if !ok {
			return decimal.Zero, false
		}
		return money(d), true
	}
	sub, subOK := get("subtotal")
	tax, taxOK := get("tax")
	total, totalOK := get("total")

	if !subOK && !totalOK && len(items) > 0 {
		sum := decimal.Zero
		for _, it := range items {
			sum = sum.Add(decimal.NewFromFloat(it.Price))
		}
		sub, subOK = money(sum), true
	}
	if !taxOK && subOK && totalOK {
		tax = money(total.Sub(sub))
	}
	switch {
	case !totalOK:
		total = sub.Add(tax)
	case !subOK:
		sub = money(total.Sub(tax))
	}

	if total.Sub(sub.Add(tax)).Abs().GreaterThan(n.tolerance) {
		n.logger.Warn("extract.normalize.total_mismatch",
			"source_file", sourceFile,
			"subtotal", sub.String(), "tax", tax.String(), "total", total.String(),
		)
		if tax.GreaterThan(total) {
			tax = total
		}
		sub = total.Sub(tax)
	}
	return sub.InexactFloat64(), tax.InexactFloat64(), total.InexactFloat64()
}

// money rounds to cents and floors at zero.
func money(d decimal.Decimal) decimal.Decimal {
	d = d.Round(2)
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Amounts beyond this many integer digits, or with more fractional digits
// than maxScale, are not plausible receipt values and are treated as missing.
const (
	maxIntegerDigits = 15
	maxScale         = 20
)

// plausible rejects values that cannot be a finite receipt amount.
func plausible(d decimal.Decimal) (decimal.Decimal, bool) {
	if d.Exponent() < -maxScale {
		return decimal.Zero, false
	}
	if d.IsZero() {
		return decimal.Zero, true
	}
	if d.Exponent() > maxIntegerDigits || d.NumDigits()+int(d.Exponent()) > maxIntegerDigits {
		return decimal.Zero, false
	}
	f := d.InexactFloat64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return decimal.Zero, false
	}
	return d, true
}

var (
	reNonNumeric   = regexp.MustCompile(`[^0-9.,\-]`)
	reDecimalComma = regexp.MustCompile(`^-?\d+,\d{1,2}$`)
	reSpaces       = regexp.MustCompile(`\s+`)
)

// toDecimal coerces JSON numbers and numeric strings such as "$1,234.50" or "12,99 €".
// Values outside plausible money range are rejected.
func toDecimal(v any) (decimal.Decimal, bool) {
	d, ok := coerceDecimal(v)
	if !ok {
		return decimal.Zero, false
	}
	return plausible(d)
}

func coerceDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case float64:
		if math.IsInf(t, 0) || math.IsNaN(t) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case string:
		s := reNonNumeric.ReplaceAllString(strings.TrimSpace(t), "")
		if reDecimalComma.MatchString(s) {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
		s = strings.TrimSuffix(s, ".")
		if strings.HasPrefix(s, ".") {
			s = "0" + s
		}
		if s == "" || s == "-" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	}
	return decimal.Zero, false
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func collapse(s string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}
