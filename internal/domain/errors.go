package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrProductNotFound is returned when a product is absent from the catalog
	ErrProductNotFound = errors.New("product not found")

	// ErrGroupNotFound is returned when a variant group does not exist
	ErrGroupNotFound = errors.New("variant group not found")

	// ErrSuggestionNotFound is returned when a suggestion ID is unknown to the
	// current detection pass
	ErrSuggestionNotFound = errors.New("suggestion not found")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when the cache backend is unreachable
	ErrCacheUnavailable = errors.New("cache service unavailable")

	// ErrPassSuperseded is returned when a detection pass is cancelled because
	// a newer pass started; its partial output is discarded
	ErrPassSuperseded = errors.New("detection pass superseded")

	// ErrNoDetectionResult is returned when suggestions are requested before
	// any detection pass has completed
	ErrNoDetectionResult = errors.New("no detection pass has completed")

	// ErrDetectorUnavailable is returned when the remote detection service
	// cannot be reached
	ErrDetectorUnavailable = errors.New("detection service unavailable")
)

// ValidationError reports invalid caller input, such as a manual group with
// fewer than two members or a pass configuration out of range.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConflictError reports a membership conflict: an operation tried to place a
// product into a group while it already belongs to another. Conflicts are
// never resolved silently.
type ConflictError struct {
	ProductID string
	GroupID   string
	Message   string
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("product %s already belongs to group %s", e.ProductID, e.GroupID)
}

// NewConflictError builds a ConflictError for a product held by groupID.
func NewConflictError(productID, groupID string) *ConflictError {
	return &ConflictError{ProductID: productID, GroupID: groupID}
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// AnalysisTimeoutError reports that a detection pass exhausted its
// MaxAnalysisTime budget. The pass still returns whatever it completed;
// the accompanying result is flagged incomplete.
type AnalysisTimeoutError struct {
	Budget  time.Duration
	Elapsed time.Duration
}

func (e *AnalysisTimeoutError) Error() string {
	return fmt.Sprintf("analysis exceeded %s budget after %s; returning partial results", e.Budget, e.Elapsed)
}

// IsAnalysisTimeout reports whether err is (or wraps) an AnalysisTimeoutError.
func IsAnalysisTimeout(err error) bool {
	var te *AnalysisTimeoutError
	return errors.As(err, &te)
}
