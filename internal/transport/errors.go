package transport

import (
	"fmt"
	"strings"
)

// UnknownError reports a transport name outside the registry.
type UnknownError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownError) Error() string {
	return fmt.Sprintf("unknown transport %q", e.Name)
}

// UnavailableError reports a known transport that could not be constructed,
// either for missing settings or because its factory failed.
type UnavailableError struct {
	Transport string
	Missing   []string
	Cause     error
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("transport %s unavailable: missing %s", e.Transport, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("transport %s unavailable: %v", e.Transport, e.Cause)
}

// Unwrap returns the underlying error.
func (e *UnavailableError) Unwrap() error {
	return e.Cause
}
