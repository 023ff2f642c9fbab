package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrQualityGate   = errors.New("quality gate failed")
	ErrTransient     = errors.New("transient failure")
	ErrConfiguration = errors.New("configuration error")
	ErrFatal         = errors.New("fatal error")
)

// ErrorKind is the machine-checkable classification surfaced to callers.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindNotFound      ErrorKind = "not_found"
	KindQualityGate   ErrorKind = "quality_gate"
	KindTransient     ErrorKind = "transient"
	KindConfiguration ErrorKind = "configuration"
	KindFatal         ErrorKind = "fatal"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrFatal
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// KindOf classifies err. Anything without a known marker is fatal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrQualityGate):
		return KindQualityGate
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindFatal
	}
}

// Retryable reports whether err may succeed on a later attempt.
func Retryable(err error) bool {
	return err != nil && KindOf(err) == KindTransient
}

// Details summarizes an error for logging and API responses.
type Details struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// DetailsOf extracts the classification and a human-readable message.
func DetailsOf(err error) Details {
	if err == nil {
		return Details{}
	}
	return Details{
		Kind:    KindOf(err),
		Message: strings.TrimSpace(err.Error()),
		Cause:   errors.Unwrap(err),
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
