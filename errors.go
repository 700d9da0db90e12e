package mailservice

import (
	"errors"
	"fmt"

	"github.com/lattiq/mailservice/internal/transport"
)

// Predefined sentinel errors for common cases.
var (
	// ErrServiceClosed indicates the service has been closed.
	ErrServiceClosed = errors.New("mail service closed")

	// ErrConfigNotFound indicates no configuration file was discovered.
	ErrConfigNotFound = errors.New("configuration not found")

	// ErrInvalidConfiguration indicates a configuration that fails validation.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// Transport selection errors. They are absorbed by the fallback to the log
// transport and only reach callers through logs and Service.TransportOutcome.
type (
	UnknownTransportError     = transport.UnknownError
	TransportUnavailableError = transport.UnavailableError
)

// ConfigError describes a configuration source that could not be used. The
// service logs it and continues with the default configuration.
type ConfigError struct {
	// Source is the file or loader that failed.
	Source string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("config error: %v", e.Cause)
	}
	return fmt.Sprintf("config error in %s: %v", e.Source, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// ContentRequiredError is returned when a request yields neither HTML nor text
// content. No transport is contacted.
type ContentRequiredError struct {
	// Template is the requested template, if any.
	Template string
}

// Error implements the error interface.
func (e *ContentRequiredError) Error() string {
	if e.Template != "" {
		return fmt.Sprintf("content required: template %q rendered no content and no html, body or text was given", e.Template)
	}
	return "content required: one of html, body, text or template must be provided"
}

// Is implements error matching for errors.Is.
func (e *ContentRequiredError) Is(target error) bool {
	_, ok := target.(*ContentRequiredError)
	return ok
}

// DeliveryError wraps a failure reported by the active transport. The
// transport's own error, usually a *ProviderError, is available through
// errors.As.
type DeliveryError struct {
	// Transport is the name of the transport that failed.
	Transport string

	// Cause is the transport's error.
	Cause error
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery via %s failed: %v", e.Transport, e.Cause)
}

// Unwrap returns the underlying error.
func (e *DeliveryError) Unwrap() error {
	return e.Cause
}

// Temporary reports whether the transport marked the failure as temporary.
func (e *DeliveryError) Temporary() bool {
	return IsTemporary(e.Cause)
}

// TemplateError represents an error in template processing.
type TemplateError struct {
	// Template is the name of the template that caused the error.
	Template string

	// Operation is the operation that failed (e.g., "render").
	Operation string

	// Message is the error message.
	Message string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *TemplateError) Error() string {
	return fmt.Sprintf("template error in %s during %s: %s", e.Template, e.Operation, e.Message)
}

// Unwrap returns the underlying error.
func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// NewTemplateError creates a new template error.
func NewTemplateError(template, operation, message string, cause error) *TemplateError {
	return &TemplateError{
		Template:  template,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}
