package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for the API layer.
var (
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// statusError is implemented by errors that know their response status.
// Core packages attach the status to the error instead of importing this
// one; the remote message rides along in Error() and stays intact, which
// matters for authorization denials the user can act on.
type statusError interface {
	error
	HTTPStatus() int
}

// RespondError maps an error to an HTTP response. Errors carrying a status
// keep their full message as the problem detail; anything unrecognized
// collapses to a blank 500.
func RespondError(w http.ResponseWriter, err error) {
	var se statusError
	switch {
	case errors.As(err, &se):
		Problem(w, se.HTTPStatus(), http.StatusText(se.HTTPStatus()), err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
