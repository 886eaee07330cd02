package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInput         = errors.New("invalid input")
	ErrIntegrity     = errors.New("integrity failure")
	ErrState         = errors.New("illegal state")
	ErrTransient     = errors.New("transient failure")
	ErrTimeout       = errors.New("timeout")
	ErrExternalTool  = errors.New("external tool error")
	ErrNotFound      = errors.New("not found")
	ErrConfiguration = errors.New("configuration error")
)

// Kind names an error class for logging and retry decisions.
type Kind string

const (
	KindInput         Kind = "input"
	KindIntegrity     Kind = "integrity"
	KindState         Kind = "state"
	KindTransient     Kind = "transient"
	KindTimeout       Kind = "timeout"
	KindExternalTool  Kind = "external_tool"
	KindNotFound      Kind = "not_found"
	KindConfiguration Kind = "configuration"
	KindUnknown       Kind = "unknown"
)

var markerKinds = []struct {
	marker error
	kind   Kind
}{
	{ErrInput, KindInput},
	{ErrIntegrity, KindIntegrity},
	{ErrState, KindState},
	{ErrTimeout, KindTimeout},
	{ErrExternalTool, KindExternalTool},
	{ErrNotFound, KindNotFound},
	{ErrConfiguration, KindConfiguration},
	{ErrTransient, KindTransient},
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify returns the error kind derived from the sentinel marker in err's chain.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, mk := range markerKinds {
		if errors.Is(err, mk.marker) {
			return mk.kind
		}
	}
	return KindUnknown
}

// IsTransient reports whether a stage error is safe to retry. Input,
// integrity, and state errors are terminal; tool and timing failures get
// another attempt. Unclassified errors are not retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return errorsIsAny(err, ErrTransient, ErrTimeout, ErrExternalTool)
}

func errorsIsAny(err error, markers ...error) bool {
	for _, marker := range markers {
		if errors.Is(err, marker) {
			return true
		}
	}
	return false
}

// ErrorDetails carries the classified pieces of a stage error for logging and
// for the persisted job error message.
type ErrorDetails struct {
	Kind    Kind
	Message string
	Cause   error
}

// Details extracts classification and a human-readable message from a stage
// error. The message strips the sentinel prefix so persisted errors read as
// "validation: verify hash: file hash mismatch" rather than leading with the
// marker text.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{Kind: KindUnknown}
	}
	details := ErrorDetails{Kind: Classify(err), Message: err.Error(), Cause: errors.Unwrap(err)}
	for _, mk := range markerKinds {
		if errors.Is(err, mk.marker) {
			details.Message = strings.TrimPrefix(details.Message, mk.marker.Error()+": ")
			break
		}
	}
	return details
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
