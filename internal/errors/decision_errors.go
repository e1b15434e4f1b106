package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCategory represents the kinds of failure a decision cycle can meet
type ErrorCategory string

const (
	// Fatal to the current cycle only
	ErrorCategoryStalePrice       ErrorCategory = "STALE_PRICE"
	ErrorCategoryInvalidRiskInput ErrorCategory = "INVALID_RISK_INPUT"

	// Degrade the affected input
	ErrorCategoryDataSource ErrorCategory = "DATA_SOURCE"
	ErrorCategoryTimeout    ErrorCategory = "TIMEOUT"

	// Routed to a rejected decision
	ErrorCategoryRiskLimit ErrorCategory = "RISK_LIMIT"

	// Fatal at startup
	ErrorCategoryConfiguration ErrorCategory = "CONFIG"

	ErrorCategoryCycle ErrorCategory = "CYCLE"
)

// Sentinels for errors.Is matching by category
var (
	ErrStalePrice        = &DecisionError{Category: ErrorCategoryStalePrice}
	ErrInvalidRiskInput  = &DecisionError{Category: ErrorCategoryInvalidRiskInput}
	ErrDataSource        = &DecisionError{Category: ErrorCategoryDataSource}
	ErrRiskLimitExceeded = &DecisionError{Category: ErrorCategoryRiskLimit}
	ErrConfiguration     = &DecisionError{Category: ErrorCategoryConfiguration}
)

// DecisionError represents a categorized error with context
type DecisionError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}
	Retryable  bool
}

// Error implements the error interface
func (e *DecisionError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *DecisionError) Unwrap() error {
	return e.Underlying
}

// Is matches any DecisionError of the same category. A timeout is also a data source failure.
func (e *DecisionError) Is(target error) bool {
	t, ok := target.(*DecisionError)
	if !ok {
		return false
	}
	if t.Category == e.Category {
		return true
	}
	return t.Category == ErrorCategoryDataSource && e.Category == ErrorCategoryTimeout
}

// IsRetryable returns whether a collaborator may retry the failed call
func (e *DecisionError) IsRetryable() bool {
	return e.Retryable
}

// IsFatal returns whether this error should stop the process
func (e *DecisionError) IsFatal() bool {
	return e.Category == ErrorCategoryConfiguration
}

// WithContext adds context information to the error
func (e *DecisionError) WithContext(key string, value interface{}) *DecisionError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRetryable sets the retryable flag
func (e *DecisionError) WithRetryable(retryable bool) *DecisionError {
	e.Retryable = retryable
	return e
}

// NewDecisionError creates a new categorized error
func NewDecisionError(category ErrorCategory, component, operation, message string) *DecisionError {
	return &DecisionError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
		Retryable: isRetryableCategory(category),
	}
}

// WrapError wraps an existing error with decision error context
func WrapError(err error, category ErrorCategory, component, operation string) *DecisionError {
	if err == nil {
		return nil
	}

	return &DecisionError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
		Context:    make(map[string]interface{}),
		Retryable:  isRetryableCategory(category),
	}
}

func isRetryableCategory(category ErrorCategory) bool {
	switch category {
	case ErrorCategoryDataSource, ErrorCategoryTimeout:
		return true
	default:
		return false
	}
}

// NewStalePriceError reports that every quote fell outside the freshness window
func NewStalePriceError(symbol string, excluded int) *DecisionError {
	return NewDecisionError(ErrorCategoryStalePrice, "consensus", "verify",
		fmt.Sprintf("all %d quotes for %s are stale", excluded, symbol)).
		WithContext("symbol", symbol)
}

// NewInvalidRiskInputError reports a non-positive or non-finite risk input
func NewInvalidRiskInputError(field string, value float64) *DecisionError {
	return NewDecisionError(ErrorCategoryInvalidRiskInput, "risk", "assess",
		fmt.Sprintf("%s must be positive, got %v", field, value)).
		WithContext(field, value)
}

// NewRiskLimitError reports a risk limit that routes a decision to rejection
func NewRiskLimitError(reason string) *DecisionError {
	return NewDecisionError(ErrorCategoryRiskLimit, "risk", "assess", reason)
}

// NewConfigurationError reports a configuration problem found at startup
func NewConfigurationError(component, operation, message string) *DecisionError {
	return NewDecisionError(ErrorCategoryConfiguration, component, operation, message)
}

// NewDataSourceError classifies a collaborator failure. Context deadlines become timeouts;
// client-side failures (4xx, decode errors) are not retryable.
func NewDataSourceError(component, operation string, err error) *DecisionError {
	if err == nil {
		return nil
	}

	var existing *DecisionError
	if stderrors.As(err, &existing) && (existing.Category == ErrorCategoryDataSource || existing.Category == ErrorCategoryTimeout) {
		return existing
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return WrapError(err, ErrorCategoryTimeout, component, operation)
	}

	wrapped := WrapError(err, ErrorCategoryDataSource, component, operation)
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "status 4") || strings.Contains(msg, "decode") ||
		strings.Contains(msg, "unmarshal") || strings.Contains(msg, "unsupported") {
		wrapped.Retryable = false
	}
	if stderrors.Is(err, context.Canceled) {
		wrapped.Retryable = false
	}
	return wrapped
}

// IsRetryable reports whether err is a retryable DecisionError
func IsRetryable(err error) bool {
	var de *DecisionError
	if stderrors.As(err, &de) {
		return de.Retryable
	}
	return false
}

// RecoveryAction is what a decision cycle does with an error of a given category
type RecoveryAction string

const (
	RecoveryActionHold    RecoveryAction = "HOLD"
	RecoveryActionDegrade RecoveryAction = "DEGRADE"
	RecoveryActionReject  RecoveryAction = "REJECT"
	RecoveryActionStop    RecoveryAction = "STOP"
	RecoveryActionSkip    RecoveryAction = "SKIP"
)

// GetRecoveryAction maps the error category onto the cycle's handling policy
func (e *DecisionError) GetRecoveryAction() RecoveryAction {
	switch e.Category {
	case ErrorCategoryStalePrice, ErrorCategoryInvalidRiskInput:
		return RecoveryActionHold
	case ErrorCategoryDataSource, ErrorCategoryTimeout:
		return RecoveryActionDegrade
	case ErrorCategoryRiskLimit:
		return RecoveryActionReject
	case ErrorCategoryConfiguration:
		return RecoveryActionStop
	default:
		return RecoveryActionSkip
	}
}

// RecoveryFor returns the recovery action for any error, SKIP for uncategorized ones
func RecoveryFor(err error) RecoveryAction {
	var de *DecisionError
	if stderrors.As(err, &de) {
		return de.GetRecoveryAction()
	}
	return RecoveryActionSkip
}

// Category returns the category of err or "" when it is not a DecisionError
func Category(err error) ErrorCategory {
	var de *DecisionError
	if stderrors.As(err, &de) {
		return de.Category
	}
	return ""
}
