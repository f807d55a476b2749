package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when a provider answers without any content.
var ErrEmptyResponse = errors.New("empty model response")

// ImageInput is an image attached to a completion request.
type ImageInput struct {
	MIMEType string
	Data     []byte
}

// DataURL renders the image as a base64 data URL.
func (i ImageInput) DataURL() string {
	return DataURL(i.MIMEType, i.Data)
}

// CompletionRequest is a single-turn prompt, optionally with one image.
type CompletionRequest struct {
	Prompt string
	Image  *ImageInput
}

// ModelClient is the external model the extraction strategies depend on.
// Implementations must be safe for concurrent use.
type ModelClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// StatusError is a non-2xx answer from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s status %d: %s", e.Provider, e.StatusCode, e.Message)
}

func (e *StatusError) IsAuth() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

func (e *StatusError) IsQuota() bool {
	return e.StatusCode == 429
}
