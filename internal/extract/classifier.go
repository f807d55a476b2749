package extract

import (
	"path/filepath"

	"github.com/joseph-ayodele/receipt-extractor/constants"
)

// Classify maps a file name or path to the kind of strategy that handles it.
func Classify(name string) constants.FileKind {
	return constants.KindForExt(filepath.Ext(name))
}
