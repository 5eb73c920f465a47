package errors

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryFile          ErrorCategory = "file"
	CategoryParse         ErrorCategory = "parse"
	CategoryValidation    ErrorCategory = "validation"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryCleaning      ErrorCategory = "cleaning"
	CategoryLookup        ErrorCategory = "lookup"
	CategoryNetwork       ErrorCategory = "network"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// File errors
	CodeFileNotFound   ErrorCode = "file_not_found"
	CodeFilePermission ErrorCode = "file_permission"
	CodeFileCorrupted  ErrorCode = "file_corrupted"

	// Parse errors
	CodeInvalidFormat ErrorCode = "invalid_format"
	CodeMissingColumn ErrorCode = "missing_column"
	CodeInvalidData   ErrorCode = "invalid_data"
	CodeEncodingError ErrorCode = "encoding_error"

	// Validation errors
	CodeInvalidAmount ErrorCode = "invalid_amount"
	CodeInvalidDate   ErrorCode = "invalid_date"
	CodeMissingField  ErrorCode = "missing_field"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Cleaning errors
	CodeRuleFailed ErrorCode = "rule_failed"

	// Lookup errors
	CodeCompanyNotFound ErrorCode = "company_not_found"

	// Network errors
	CodeConnectionFailed   ErrorCode = "connection_failed"
	CodeTimeout            ErrorCode = "timeout"
	CodeServiceUnavailable ErrorCode = "service_unavailable"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// InsightsError is the base error type for all application errors
type InsightsError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *InsightsError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *InsightsError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate process exit code for the error
func (e *InsightsError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryCleaning, CategoryInternal:
		return 5
	case CategoryNetwork:
		return 6
	default:
		return 1
	}
}

// HTTPStatus returns the HTTP status code appropriate for the error
func (e *InsightsError) HTTPStatus() int {
	switch e.Category {
	case CategoryLookup:
		return http.StatusNotFound
	case CategoryValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WithContext adds context information to the error
func (e *InsightsError) WithContext(key string, value interface{}) *InsightsError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *InsightsError) WithSuggestion(suggestion string) *InsightsError {
	e.Suggestion = suggestion
	return e
}

// New creates a new InsightsError
func New(category ErrorCategory, code ErrorCode, message string) *InsightsError {
	return &InsightsError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with InsightsError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *InsightsError {
	if err == nil {
		return nil
	}

	return &InsightsError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Specific error constructors

// FileError creates a file-related error
func FileError(code ErrorCode, path string, err error) *InsightsError {
	var message string
	var suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	case CodeFileCorrupted:
		message = fmt.Sprintf("file appears to be corrupted: %s", path)
		suggestion = "verify the file integrity and try using a backup copy"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	var result *InsightsError
	if err != nil {
		result = Wrap(err, CategoryFile, code, message)
	} else {
		result = New(CategoryFile, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("file_path", path)
}

// ParseError creates a parsing-related error
func ParseError(code ErrorCode, file string, line int, column string, value string, err error) *InsightsError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidFormat:
		message = fmt.Sprintf("invalid format in file %s at line %d, column '%s': '%s'", file, line, column, value)
		suggestion = "check the data format and ensure it matches the expected structure"
	case CodeMissingColumn:
		message = fmt.Sprintf("missing required column '%s' in file %s", column, file)
		suggestion = "verify the file has all required columns with correct headers"
	case CodeInvalidData:
		message = fmt.Sprintf("invalid data in file %s at line %d, column '%s': '%s'", file, line, column, value)
		suggestion = "correct the data format or remove the invalid entry"
	case CodeEncodingError:
		message = fmt.Sprintf("encoding error in file %s at line %d", file, line)
		suggestion = "ensure the file is saved in UTF-8 encoding"
	default:
		message = fmt.Sprintf("parse error in file %s at line %d", file, line)
		suggestion = "check the file format and data integrity"
	}

	var result *InsightsError
	if err != nil {
		result = Wrap(err, CategoryParse, code, message)
	} else {
		result = New(CategoryParse, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("file", file).
		WithContext("line", line).
		WithContext("column", column).
		WithContext("value", value)
}

// ValidationError creates a validation-related error
func ValidationError(code ErrorCode, field string, value interface{}, err error) *InsightsError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount in field '%s': %v", field, value)
		suggestion = "ensure amounts are valid decimal numbers (e.g., '12.34')"
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date in field '%s': %v", field, value)
		suggestion = "use date format YYYY-MM-DD"
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	var result *InsightsError
	if err != nil {
		result = Wrap(err, CategoryValidation, code, message)
	} else {
		result = New(CategoryValidation, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *InsightsError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this configuration setting or use a config file"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	var result *InsightsError
	if err != nil {
		result = Wrap(err, CategoryConfiguration, code, message)
	} else {
		result = New(CategoryConfiguration, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// CleaningError creates a cleaning-pipeline error
func CleaningError(code ErrorCode, rule string, err error) *InsightsError {
	message := fmt.Sprintf("cleaning rule '%s' failed", rule)
	suggestion := "review the input data and rule configuration"

	var result *InsightsError
	if err != nil {
		result = Wrap(err, CategoryCleaning, code, message)
	} else {
		result = New(CategoryCleaning, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("rule", rule)
}

// CompanyNotFoundError creates a lookup error for an unknown company identifier
func CompanyNotFoundError(companyID string) *InsightsError {
	return New(CategoryLookup, CodeCompanyNotFound,
		fmt.Sprintf("company not found: %s", companyID)).
		WithSuggestion("use GET /companies to list known company identifiers").
		WithContext("company_id", companyID)
}

// NetworkError creates a network-related error
func NetworkError(code ErrorCode, endpoint string, err error) *InsightsError {
	var message string
	var suggestion string

	switch code {
	case CodeConnectionFailed:
		message = fmt.Sprintf("connection failed to %s", endpoint)
		suggestion = "check network connectivity and endpoint availability"
	case CodeTimeout:
		message = fmt.Sprintf("timeout connecting to %s", endpoint)
		suggestion = "increase timeout setting or check network speed"
	case CodeServiceUnavailable:
		message = fmt.Sprintf("service unavailable: %s", endpoint)
		suggestion = "try again later or contact service administrator"
	default:
		message = fmt.Sprintf("network error: %s", endpoint)
		suggestion = "check network connection and try again"
	}

	var result *InsightsError
	if err != nil {
		result = Wrap(err, CategoryNetwork, code, message)
	} else {
		result = New(CategoryNetwork, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("endpoint", endpoint)
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *InsightsError {
	message := fmt.Sprintf("internal error during %s", operation)
	suggestion := "try again or contact support if the problem persists"

	var result *InsightsError
	if err != nil {
		result = Wrap(err, CategoryInternal, code, message)
	} else {
		result = New(CategoryInternal, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// Utility functions

// IsInsightsError checks if an error is an InsightsError
func IsInsightsError(err error) bool {
	_, ok := err.(*InsightsError)
	return ok
}

// AsInsightsError extracts an InsightsError from an error chain
func AsInsightsError(err error) (*InsightsError, bool) {
	var insightsErr *InsightsError
	if errors.As(err, &insightsErr) {
		return insightsErr, true
	}
	return nil, false
}

// WrapIfNeeded wraps an error if it's not already an InsightsError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *InsightsError {
	if err == nil {
		return nil
	}

	if insightsErr, ok := AsInsightsError(err); ok {
		return insightsErr
	}

	return Wrap(err, category, code, message)
}
