package gateway

import (
	"fmt"
	"net/http"
)

// apiError is a sentinel with an HTTP status. The status travels with the
// error so the response layer can map it without knowing this package.
type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string { return e.msg }

// HTTPStatus reports the response status for the failure.
func (e *apiError) HTTPStatus() int { return e.status }

var (
	// ErrNotFound indicates the record does not exist remotely.
	ErrNotFound error = &apiError{status: http.StatusNotFound, msg: "gateway: not found"}
	// ErrNoSession indicates no remote auth session exists for the token.
	ErrNoSession error = &apiError{status: http.StatusUnauthorized, msg: "gateway: no session"}
	// ErrPermissionDenied wraps a remote authorization failure. The remote
	// message is preserved verbatim; it is actionable for the user.
	ErrPermissionDenied error = &apiError{status: http.StatusForbidden, msg: "gateway: permission denied"}
	// ErrHardDeleteOnly indicates a soft delete was requested for a kind
	// without an active flag.
	ErrHardDeleteOnly error = &apiError{status: http.StatusBadRequest, msg: "gateway: kind has no soft-delete semantics"}
)

// SchemaError reports a payload that does not match the declared schema of
// its entity kind. It replaces the silent missing-field behavior of a
// dynamic payload with a typed failure at the gateway boundary.
type SchemaError struct {
	Kind   Kind
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("gateway: schema violation on %s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("gateway: schema violation on %s.%s: %s", e.Kind, e.Field, e.Reason)
}

// HTTPStatus reports the response status for a schema violation.
func (e *SchemaError) HTTPStatus() int { return http.StatusUnprocessableEntity }
