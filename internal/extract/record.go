package extract

import (
	"github.com/joseph-ayodele/receipt-extractor/constants"
)

type Item struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// TransactionRecord is the canonical output of the pipeline. Every field is
// populated and every amount is non-negative once it leaves the orchestrator.
type TransactionRecord struct {
	Vendor           string                     `json:"vendor"`
	Date             string                     `json:"date"` // YYYY-MM-DD
	Items            []Item                     `json:"items"`
	Subtotal         float64                    `json:"subtotal"`
	Tax              float64                    `json:"tax"`
	Total            float64                    `json:"total"`
	Category         constants.Category         `json:"category"`
	PaymentMethod    string                     `json:"payment_method"`
	ConfidenceScore  int                        `json:"confidence_score"`
	ExtractionMethod constants.ExtractionMethod `json:"extraction_method"`
	SourceFile       string                     `json:"source_file"`
	Flagged          bool                       `json:"flagged"`
}

// IsFallback reports whether the record is a placeholder.
func (r TransactionRecord) IsFallback() bool {
	return r.ExtractionMethod == constants.MethodFallback
}

// Map returns the record as a plain JSON-compatible mapping.
func (r TransactionRecord) Map() map[string]any {
	items := make([]any, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, map[string]any{"name": it.Name, "price": it.Price})
	}
	return map[string]any{
		"vendor":            r.Vendor,
		"date":              r.Date,
		"items":             items,
		"subtotal":          r.Subtotal,
		"tax":               r.Tax,
		"total":             r.Total,
		"category":          string(r.Category),
		"payment_method":    r.PaymentMethod,
		"confidence_score":  r.ConfidenceScore,
		"extraction_method": string(r.ExtractionMethod),
		"source_file":       r.SourceFile,
		"flagged":           r.Flagged,
	}
}
