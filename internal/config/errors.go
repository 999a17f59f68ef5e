package config

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigurationError represents a fatal problem with the agent's configuration.
// It is the only error class that is surfaced to the process boundary.
type ConfigurationError struct {
	FilePath    string   `json:"filePath,omitempty"` // File that caused the error, if any
	ErrorType   string   `json:"errorType"`          // parse, io or validation
	Message     string   `json:"message"`            // Human-readable error message
	LineNumber  int      `json:"lineNumber,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`

	cause error
}

// Error implements the error interface
func (ce ConfigurationError) Error() string {
	if ce.FilePath != "" {
		return fmt.Sprintf("configuration %s error in %s: %s", ce.ErrorType, ce.FilePath, ce.Message)
	}
	return fmt.Sprintf("configuration %s error: %s", ce.ErrorType, ce.Message)
}

func (ce ConfigurationError) Unwrap() error {
	return ce.cause
}

// DetailedError returns a detailed error message with all context
func (ce ConfigurationError) DetailedError() string {
	var parts []string

	parts = append(parts, "Configuration Error")
	if ce.FilePath != "" {
		parts = append(parts, fmt.Sprintf("  File: %s", ce.FilePath))
	}
	parts = append(parts, fmt.Sprintf("  Type: %s", ce.ErrorType))

	if ce.LineNumber > 0 {
		parts = append(parts, fmt.Sprintf("  Line: %d", ce.LineNumber))
	}

	parts = append(parts, fmt.Sprintf("  Error: %s", ce.Message))

	if len(ce.Suggestions) > 0 {
		parts = append(parts, "  Suggestions:")
		for _, suggestion := range ce.Suggestions {
			parts = append(parts, fmt.Sprintf("    - %s", suggestion))
		}
	}

	return strings.Join(parts, "\n")
}

// NewConfigurationError creates a new configuration error with basic information
func NewConfigurationError(filePath, errorType, message string) ConfigurationError {
	return ConfigurationError{
		FilePath:  filePath,
		ErrorType: errorType,
		Message:   message,
	}
}

// newValidationFailure wraps collected validation errors.
func newValidationFailure(errs ValidationErrors) ConfigurationError {
	var suggestions []string
	for _, e := range errs {
		if e.Suggestion != "" {
			suggestions = append(suggestions, e.Suggestion)
		}
	}
	return ConfigurationError{
		ErrorType:   "validation",
		Message:     errs.Error(),
		Suggestions: suggestions,
		cause:       errs,
	}
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce ConfigurationError
	return errors.As(err, &ce)
}
