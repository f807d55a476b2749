package constants

// ExtractionMethod tags the provenance of a TransactionRecord.
// Stable values; they are stored in the transactions table.
type ExtractionMethod string

const (
	MethodVision   ExtractionMethod = "vision_model"
	MethodPDFText  ExtractionMethod = "pdf_text_model"
	MethodText     ExtractionMethod = "text_model"
	MethodFallback ExtractionMethod = "fallback"
)

// Stage is a state of the extraction state machine.
type Stage string

const (
	StageClassifying Stage = "classifying"
	StageExtracting  Stage = "extracting"
	StageParsing     Stage = "parsing"
	StageNormalizing Stage = "normalizing"
	StageDone        Stage = "done"
)

const (
	DefaultVendor        = "Unknown Vendor"
	DefaultPaymentMethod = "unknown"
	DefaultItemName      = "Item"

	FallbackVendor     = "Unable to extract — manual entry required"
	FallbackItemPrefix = "Manual entry required: "

	DateLayout = "2006-01-02"
)
