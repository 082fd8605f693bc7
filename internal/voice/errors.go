package voice

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/snditnz/verbumcare-demo-sub002/internal/transcriber"
)

// Kind classifies pipeline failures so callers can pick the right recovery
// action without matching on message text
type Kind string

const (
	// KindValidation is a rejected input (empty take, negative duration)
	KindValidation Kind = "validation"
	// KindNotFound is a missing recording or note
	KindNotFound Kind = "not_found"
	// KindState is an operation invalid for the current status
	KindState Kind = "state"
	// KindPermission is a role violation, rejected before any mutation
	KindPermission Kind = "permission"
	// KindNetwork is a transport failure; the same input may be retried
	KindNetwork Kind = "network"
	// KindTimeout is an elapsed deadline; the same input may be retried
	KindTimeout Kind = "timeout"
	// KindTranscriber is a transcription-service failure; the audio likely
	// needs re-recording, not a retry of the same upload
	KindTranscriber Kind = "transcriber"
	// KindCategorizer is a note-structuring failure
	KindCategorizer Kind = "categorizer"
)

// Error is a classified pipeline error
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether re-invoking the failed operation with the same
// input is sensible
func (e *Error) Retryable() bool {
	return e.Kind == KindNetwork || e.Kind == KindTimeout
}

// NewError creates a classified error
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError wraps an underlying error with a classification
func WrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the classification from an error, defaulting to network
// for unclassified transport-level failures
func KindOf(err error) Kind {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Kind
	}
	return KindNetwork
}

// classifyTranscribeError maps a transcriber client failure to an error kind
func classifyTranscribeError(err error) *Error {
	var svcErr *transcriber.ServiceError
	if errors.As(err, &svcErr) {
		return WrapError(KindTranscriber, "transcription service rejected the recording", err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return WrapError(KindTimeout, "transcription request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return WrapError(KindTimeout, "transcription request timed out", err)
	}

	return WrapError(KindNetwork, "failed to reach transcription service", err)
}

// classifyStructureError maps a structuring failure to an error kind
func classifyStructureError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return WrapError(KindTimeout, "note structuring timed out", err)
	}
	return WrapError(KindCategorizer, "failed to structure note", err)
}
