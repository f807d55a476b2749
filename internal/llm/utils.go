package llm

import (
	"encoding/base64"
)

// DataURL encodes data as "data:<mime>;base64,<payload>".
func DataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
