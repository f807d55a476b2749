package entity

import (
	"encoding/json"
	"time"
)

type Item struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Transaction is a stored receipt extraction. Amount is the receipt total.
type Transaction struct {
	ID               int64           `json:"id"`
	UserID           *int64          `json:"user_id,omitempty"`
	Vendor           string          `json:"vendor"`
	Date             string          `json:"date"`
	Amount           float64         `json:"amount"`
	Category         string          `json:"category"`
	Items            []Item          `json:"items"`
	Subtotal         float64         `json:"subtotal"`
	Tax              float64         `json:"tax"`
	PaymentMethod    string          `json:"payment_method"`
	RawData          json.RawMessage `json:"raw_data,omitempty"`
	ConfidenceScore  int             `json:"confidence_score"`
	Flagged          bool            `json:"flagged"`
	ExtractionMethod string          `json:"extraction_method"`
	SourceFile       string          `json:"source_file"`
	Timestamp        time.Time       `json:"timestamp"`
}
