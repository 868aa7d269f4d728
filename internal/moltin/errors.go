package moltin

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the commerce platform reports a missing entity.
var ErrNotFound = errors.New("moltin: not found")

// ErrAmbiguousCustomer is returned when a customer lookup matches zero or
// more than one record. Callers recover by re-prompting the user for email.
type ErrAmbiguousCustomer struct {
	Matches int
}

func (e *ErrAmbiguousCustomer) Error() string {
	return fmt.Sprintf("moltin: expected exactly 1 customer, got %d", e.Matches)
}

// AuthError indicates the credential issuance request was rejected.
// It is fatal for the current request.
type AuthError struct {
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("moltin: token request rejected with status %d: %s", e.Status, e.Body)
}

// UpstreamError wraps any other non-2xx commerce platform response.
type UpstreamError struct {
	Status int
	Path   string
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("moltin: %s returned status %d: %s", e.Path, e.Status, e.Body)
}

// IsRecoverable reports whether the error is an expected caller-correctable
// outcome rather than a platform fault.
func IsRecoverable(err error) bool {
	var ambiguous *ErrAmbiguousCustomer
	return errors.As(err, &ambiguous)
}
