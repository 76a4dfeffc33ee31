package application

import (
	"errors"
	"fmt"

	"specbook/internal/domain"
)

// Sentinel errors for common conditions
var (
	ErrScanInProgress    = errors.New("scan already in progress")
	ErrObjectNotFound    = errors.New("object not found")
	ErrProvider          = errors.New("provider error")
	ErrMalformedResponse = errors.New("malformed response")
	ErrUnresolved        = errors.New("unresolved object reference")
	ErrPersistence       = errors.New("persistence error")
)

// ValidationError represents a validation failure with details
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ProviderError wraps a network, auth or rate-limit failure of the AI call
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error: %v", e.Err)
}

func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// MalformedResponseError is returned when the provider answer is not a JSON
// array of objects. Raw keeps the text as received.
type MalformedResponseError struct {
	Reason string
	Raw    string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response: %s", e.Reason)
}

func (e *MalformedResponseError) Is(target error) bool {
	return target == ErrMalformedResponse
}

// UnresolvedReferenceError describes a record that matched no feature.
// It is logged and the record dropped; the scan goes on.
type UnresolvedReferenceError struct {
	ObjectID    string
	ObjectTitle string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("no feature matches id %q / title %q", e.ObjectID, e.ObjectTitle)
}

func (e *UnresolvedReferenceError) Is(target error) bool {
	return target == ErrUnresolved
}

// PersistenceError is returned when the index could not be written.
// The previous snapshot stays authoritative.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s mapping index: %v", e.Op, e.Err)
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ScanError is the failure of a whole scan run. ObjectID is empty for full
// scans. Diagnostics carry the verbatim prompts and response when available.
type ScanError struct {
	ObjectID    string
	Diagnostics domain.Diagnostics
	Err         error
}

func (e *ScanError) Error() string {
	if e.ObjectID != "" {
		return fmt.Sprintf("scan of %s failed: %v", e.ObjectID, e.Err)
	}
	return fmt.Sprintf("scan failed: %v", e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// DiagnosticsOf extracts scan diagnostics from err, if any
func DiagnosticsOf(err error) (domain.Diagnostics, bool) {
	var scanErr *ScanError
	if errors.As(err, &scanErr) {
		return scanErr.Diagnostics, true
	}
	return domain.Diagnostics{}, false
}
