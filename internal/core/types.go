package core

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/mail"
	"path/filepath"
	"strings"
	"time"
)

// Transport delivers fully composed messages to a mail network or provider API.
// Implementations must be safe for concurrent use.
type Transport interface {
	// Send attempts a single delivery of msg.
	Send(ctx context.Context, msg *Message) (*Result, error)

	// Name returns the transport identifier reported in results and logs.
	Name() string
}

// ProviderSettings holds transport credentials and connection settings.
type ProviderSettings map[string]string

// Get retrieves a configuration value by key.
func (ps ProviderSettings) Get(key string) string {
	return ps[key]
}

// Set sets a configuration value.
func (ps ProviderSettings) Set(key, value string) {
	ps[key] = value
}

// Missing returns the keys that are absent or blank, in the order given.
func (ps ProviderSettings) Missing(keys ...string) []string {
	var missing []string
	for _, key := range keys {
		if strings.TrimSpace(ps[key]) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// Address represents an email address with optional display name.
type Address struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"required,email"`
}

// String returns the formatted email address.
// If Name is provided, returns "Name <email@domain.com>"
// Otherwise returns just "email@domain.com"
func (a Address) String() string {
	if a.Name != "" {
		return mime.QEncoding.Encode("UTF-8", a.Name) + " <" + a.Email + ">"
	}
	return a.Email
}

// ParseAddress parses "user@host" or "Name <user@host>".
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, errors.New("empty address")
	}
	parsed, err := mail.ParseAddress(s)
	if err != nil {
		return Address{}, err
	}
	return Address{Name: parsed.Name, Email: parsed.Address}, nil
}

// ParseAddressList parses every entry of list, reporting the index of the first invalid one.
func ParseAddressList(field string, list []string) ([]Address, error) {
	out := make([]Address, 0, len(list))
	for i, raw := range list {
		addr, err := ParseAddress(raw)
		if err != nil {
			return nil, NewValidationErrorWithValue(field, fmt.Sprintf("invalid address at index %d", i), raw)
		}
		out = append(out, addr)
	}
	return out, nil
}

// Brand identifies the sender organisation shown in the layout.
type Brand struct {
	Name         string `json:"name"`
	SupportEmail string `json:"support_email"`
}

// Recipient carries the personalisation details of the primary recipient.
type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Rendered is the subject and the two body renditions of one message.
type Rendered struct {
	HTML    string
	Text    string
	Subject string
}

// Attachment represents a file attachment to be included with the email.
type Attachment struct {
	// Filename is the name of the file as it will appear in the email.
	Filename string `json:"filename" validate:"required"`

	// ContentType is the MIME content type of the file.
	// If empty, it will be detected from the filename extension.
	ContentType string `json:"content_type"`

	// Content holds the raw file bytes.
	Content []byte `json:"content"`

	// Inline attachments can be referenced in HTML content using cid:<ContentID>.
	Inline    bool   `json:"inline"`
	ContentID string `json:"content_id"`
}

// DetectContentType attempts to detect the content type from the filename.
func (a *Attachment) DetectContentType() string {
	if a.ContentType != "" {
		return a.ContentType
	}

	switch strings.ToLower(filepath.Ext(a.Filename)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".txt":
		return "text/plain"
	case ".html", ".htm":
		return "text/html"
	case ".csv":
		return "text/csv"
	case ".ics":
		return "text/calendar"
	case ".zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}

// Message is the normalized outbound message handed to a transport.
// To is never empty and CC/BCC are never nil once built by the service.
type Message struct {
	From        Address           `json:"from"`
	To          []Address         `json:"to" validate:"required,min=1,dive"`
	CC          []Address         `json:"cc" validate:"dive"`
	BCC         []Address         `json:"bcc" validate:"dive"`
	ReplyTo     *Address          `json:"reply_to" validate:"omitempty"`
	Subject     string            `json:"subject" validate:"notblank"`
	Text        string            `json:"text" validate:"required_without=HTML"`
	HTML        string            `json:"html" validate:"required_without=Text"`
	Attachments []Attachment      `json:"attachments" validate:"dive"`
	Headers     map[string]string `json:"headers"`
	Metadata    map[string]string `json:"metadata"`
}

// TotalRecipients returns the total number of recipients (To + CC + BCC).
func (m *Message) TotalRecipients() int {
	return len(m.To) + len(m.CC) + len(m.BCC)
}

// HasAttachments returns true if the message has any attachments.
func (m *Message) HasAttachments() bool {
	return len(m.Attachments) > 0
}

// Result describes the outcome of one send.
type Result struct {
	// Success is true when the message was accepted or suppressed as a duplicate.
	Success bool `json:"success"`

	// Transport is the name of the transport that handled the message.
	Transport string `json:"transport"`

	// MessageID is the identifier assigned by the transport.
	MessageID string `json:"message_id,omitempty"`

	// Duplicate is set when the send was suppressed by the duplicate guard.
	Duplicate bool `json:"duplicate,omitempty"`

	// Timestamp when the message was accepted.
	Timestamp time.Time `json:"timestamp"`

	// Metadata contains transport-specific information.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ValidationError represents a validation error with specific field information.
type ValidationError struct {
	// Field is the name of the field that failed validation.
	Field string

	// Message is the validation error message.
	Message string

	// Value is the invalid value (optional).
	Value any
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation error in %s: %s (value: %v)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Is implements error matching for errors.Is.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// ProviderError represents an error reported by a delivery backend.
type ProviderError struct {
	// Provider is the name of the transport that generated the error.
	Provider string

	// Code is the transport-specific error code.
	Code string

	// Message is the error message from the provider.
	Message string

	// StatusCode is the HTTP status code (for HTTP-based providers).
	StatusCode int

	// IsTemporary indicates the same request may succeed later.
	IsTemporary bool

	// Cause is the underlying error that caused this provider error.
	Cause error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s error [%s] (status: %d): %s",
			e.Provider, e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %s error [%s]: %s", e.Provider, e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for errors.Is.
func (e *ProviderError) Is(target error) bool {
	pe, ok := target.(*ProviderError)
	if !ok {
		return false
	}
	return e.Provider == pe.Provider && e.Code == pe.Code
}

// Temporary implements TemporaryError for ProviderError.
func (e *ProviderError) Temporary() bool {
	return e.IsTemporary
}

// TemporaryError interface indicates whether an error is temporary.
type TemporaryError interface {
	Temporary() bool
}

// NewProviderError creates a new provider error.
func NewProviderError(provider, code, message string) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Code:     code,
		Message:  message,
	}
}

// NewProviderErrorWithCause creates a provider error wrapping cause.
func NewProviderErrorWithCause(provider, code string, cause error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Code:     code,
		Message:  cause.Error(),
		Cause:    cause,
	}
}

// NewTemporaryProviderError creates a new temporary provider error.
func NewTemporaryProviderError(provider, code, message string) *ProviderError {
	return &ProviderError{
		Provider:    provider,
		Code:        code,
		Message:     message,
		IsTemporary: true,
	}
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewValidationErrorWithValue creates a new validation error with a value.
func NewValidationErrorWithValue(field, message string, value any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// IsTemporary checks if an error is temporary.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}

	var te TemporaryError
	if errors.As(err, &te) {
		return te.Temporary()
	}

	return false
}
