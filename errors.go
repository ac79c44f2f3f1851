package placescout

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for specific failure types
const (
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeDisambiguation  = "DISAMBIGUATION"
	ErrCodeExternalService = "EXTERNAL_SERVICE_ERROR"
	ErrCodeIterationLimit  = "ITERATION_LIMIT_EXCEEDED"
	ErrCodeUnknownTool     = "UNKNOWN_TOOL"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeConfiguration   = "CONFIGURATION_ERROR"
	ErrCodeCancelled       = "EXECUTION_CANCELLED"
	ErrCodeTimeout         = "EXECUTION_TIMEOUT"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

var (
	// ErrIterationLimitExceeded is matched by errors.Is when a run used every round without an answer.
	ErrIterationLimitExceeded = errors.New("max iterations reached without final response")
	// ErrArticleNotFound reports a missing encyclopedia article.
	ErrArticleNotFound = errors.New("article not found")
	// ErrUnknownTool reports a tool name outside the catalog.
	ErrUnknownTool = errors.New("unknown tool")
)

// PlaceScoutError is the error type returned by the orchestration loop and its collaborators.
type PlaceScoutError struct {
	Code    string // A machine-readable error code (e.g., ErrCodeIterationLimit)
	Message string // A human-readable message
	Stage   string // The stage where the error occurred (e.g., "requesting", "dispatching")
	Cause   error  // The underlying error, if any
}

// Error implements the error interface.
func (e *PlaceScoutError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Stage, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Stage, e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error, allowing for error chaining.
func (e *PlaceScoutError) Unwrap() error {
	return e.Cause
}

// NewError creates a new PlaceScoutError.
func NewError(code, stage, message string, cause error) *PlaceScoutError {
	return &PlaceScoutError{
		Code:    code,
		Stage:   stage,
		Message: message,
		Cause:   cause,
	}
}

// IsPlaceScoutError reports whether err (or anything it wraps) is a *PlaceScoutError.
func IsPlaceScoutError(err error) bool {
	var target *PlaceScoutError
	return errors.As(err, &target)
}

// ErrorCode returns the code of the first *PlaceScoutError in err's chain, or "".
func ErrorCode(err error) string {
	var target *PlaceScoutError
	if errors.As(err, &target) {
		return target.Code
	}
	return ""
}

// Specific error constructors

func NewIterationLimitError(stage string, rounds int) *PlaceScoutError {
	return NewError(ErrCodeIterationLimit, stage, fmt.Sprintf("no final answer after %d rounds", rounds), ErrIterationLimitExceeded)
}

func NewExternalServiceError(stage, service string, cause error) *PlaceScoutError {
	return NewError(ErrCodeExternalService, stage, fmt.Sprintf("%s request failed", service), cause)
}

func NewUnknownToolError(stage, toolName string) *PlaceScoutError {
	return NewError(ErrCodeUnknownTool, stage, fmt.Sprintf("tool '%s' not found", toolName), ErrUnknownTool)
}

func NewValidationError(stage, message string, cause error) *PlaceScoutError {
	return NewError(ErrCodeValidation, stage, message, cause)
}

func NewConfigurationError(message string, cause error) *PlaceScoutError {
	return NewError(ErrCodeConfiguration, "initialization", message, cause)
}

func NewNotFoundError(stage, title string) *PlaceScoutError {
	return NewError(ErrCodeNotFound, stage, fmt.Sprintf("no article titled '%s'", title), ErrArticleNotFound)
}

func NewCancelledError(stage string, cause error) *PlaceScoutError {
	msg := "execution cancelled"
	if cause != nil && cause.Error() != "" && cause.Error() != "context canceled" {
		msg = fmt.Sprintf("execution cancelled: %v", cause)
	}
	return NewError(ErrCodeCancelled, stage, msg, cause)
}

func NewTimeoutError(stage string, cause error) *PlaceScoutError {
	return NewError(ErrCodeTimeout, stage, "execution timed out", cause)
}

func NewInternalError(stage, message string, cause error) *PlaceScoutError {
	return NewError(ErrCodeInternal, stage, message, cause)
}

// DisambiguationError signals that a title maps to several distinct articles.
type DisambiguationError struct {
	Title   string
	Options []string
}

func (e *DisambiguationError) Error() string {
	return fmt.Sprintf("%q may refer to: %s", e.Title, strings.Join(e.Options, ", "))
}
