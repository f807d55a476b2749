package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/joseph-ayodele/receipt-extractor/internal/common"
	"github.com/joseph-ayodele/receipt-extractor/internal/llm"
)

const (
	CodeUnsupportedContent = "UNSUPPORTED_CONTENT"
	CodeExternalService    = "EXTERNAL_SERVICE"
	CodeMalformedResponse  = "MALFORMED_RESPONSE"
)

// UnsupportedContentError: the file type or its content cannot be prepared for the model.
type UnsupportedContentError struct {
	*common.AppError
}

// ExternalServiceError: the model call failed, timed out, was refused or returned nothing.
type ExternalServiceError struct {
	*common.AppError
	Reason string // timeout | auth | quota | empty | upstream
}

// MalformedResponseError: the model output holds no decodable JSON object.
type MalformedResponseError struct {
	*common.AppError
	Raw string
}

func newUnsupported(message string, cause error) *UnsupportedContentError {
	return &UnsupportedContentError{AppError: common.NewAppError(CodeUnsupportedContent, message, cause)}
}

func newMalformed(message, raw string, cause error) *MalformedResponseError {
	if len(raw) > 512 {
		raw = raw[:512]
	}
	return &MalformedResponseError{AppError: common.NewAppError(CodeMalformedResponse, message, cause), Raw: raw}
}

const (
	ReasonTimeout  = "timeout"
	ReasonAuth     = "auth"
	ReasonQuota    = "quota"
	ReasonEmpty    = "empty"
	ReasonUpstream = "upstream"
)

// newExternal classifies a model-call failure. ctx is the call's context so
// an expired deadline is reported as a timeout whatever the client returned.
func newExternal(ctx context.Context, op string, cause error) *ExternalServiceError {
	reason := ReasonUpstream
	var status *llm.StatusError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(cause, context.DeadlineExceeded):
		reason = ReasonTimeout
	case errors.Is(cause, llm.ErrEmptyResponse):
		reason = ReasonEmpty
	case errors.As(cause, &status) && status.IsAuth():
		reason = ReasonAuth
	case errors.As(cause, &status) && status.IsQuota():
		reason = ReasonQuota
	}
	return &ExternalServiceError{
		AppError: common.NewAppError(CodeExternalService, fmt.Sprintf("%s: %s", op, reason), cause),
		Reason:   reason,
	}
}

// ErrorCode returns the extraction error code carried by err, or "" for other errors.
func ErrorCode(err error) string {
	var (
		unsupported *UnsupportedContentError
		external    *ExternalServiceError
		malformed   *MalformedResponseError
	)
	switch {
	case errors.As(err, &unsupported):
		return CodeUnsupportedContent
	case errors.As(err, &external):
		return CodeExternalService
	case errors.As(err, &malformed):
		return CodeMalformedResponse
	}
	return ""
}
