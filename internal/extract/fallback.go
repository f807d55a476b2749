package extract

import (
	"strings"

	"github.com/joseph-ayodele/receipt-extractor/constants"
)

// Fallback builds the placeholder record used whenever extraction fails.
// Its content depends only on sourceFile and the normalizer's clock.
func (n *Normalizer) Fallback(sourceFile string) TransactionRecord {
	name := strings.TrimSpace(sourceFile)
	if name == "" {
		name = "unknown file"
	}
	return TransactionRecord{
		Vendor:           constants.FallbackVendor,
		Date:             n.today(),
		Items:            []Item{{Name: constants.FallbackItemPrefix + name, Price: 0}},
		Subtotal:         0,
		Tax:              0,
		Total:            0,
		Category:         constants.Other,
		PaymentMethod:    constants.DefaultPaymentMethod,
		ConfidenceScore:  0,
		ExtractionMethod: constants.MethodFallback,
		SourceFile:       sourceFile,
		Flagged:          true,
	}
}
