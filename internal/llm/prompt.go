package llm

import (
	"strings"

	"github.com/joseph-ayodele/receipt-extractor/constants"
)

// ExtractionPrompt is shared by every strategy so the parser sees one JSON contract.
var ExtractionPrompt = "You are a financial OCR expert. Extract data from this receipt and return ONLY valid JSON " +
	"with these exact fields: vendor, date (YYYY-MM-DD), items (array of {name, price}), subtotal, tax, total, " +
	"category (" + strings.Join(constants.AsStringSlice(), "/") + "), payment_method, confidence_score (0-100). " +
	"Use plain numbers for money, without currency symbols. No markdown, no explanation, just JSON."

// BuildTextPrompt appends receipt text to the extraction prompt.
func BuildTextPrompt(text string) string {
	var b strings.Builder
	b.WriteString(ExtractionPrompt)
	b.WriteString("\n\nReceipt text to analyze:\n")
	b.WriteString(text)
	return b.String()
}
