package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	ErrUploadInitFailed      ErrorKind = "UploadInitFailed"
	ErrUploadTransferFailed  ErrorKind = "UploadTransferFailed"
	ErrUnsupportedFormat     ErrorKind = "UnsupportedFormat"
	ErrPdfConversionFailed   ErrorKind = "PdfConversionFailed"
	ErrProviderRequestFailed ErrorKind = "ProviderRequestFailed"
	// ErrMalformedChunk never leaves the stream decoder.
	ErrMalformedChunk ErrorKind = "MalformedChunk"
)

// PipelineError is the error type of every stage of a fact-check stream.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *PipelineError) Unwrap() error { return e.Err }

// NewError builds a PipelineError. err may be nil.
func NewError(kind ErrorKind, message string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Err: err}
}

// Errorf builds a PipelineError with a formatted message and no cause.
func Errorf(kind ErrorKind, format string, args ...any) *PipelineError {
	return &PipelineError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsPipelineError returns err as a PipelineError, wrapping foreign errors
// as ProviderRequestFailed.
func AsPipelineError(err error) *PipelineError {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}
	return &PipelineError{Kind: ErrProviderRequestFailed, Message: err.Error()}
}

// KindOf reports the kind of err.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	return AsPipelineError(err).Kind
}
