package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

type statusedError struct {
	status int
	msg    string
}

func (e *statusedError) Error() string   { return e.msg }
func (e *statusedError) HTTPStatus() int { return e.status }

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"carried not found", &statusedError{status: http.StatusNotFound, msg: "no such row"}, http.StatusNotFound},
		{"carried denial", &statusedError{status: http.StatusForbidden, msg: "denied upstream"}, http.StatusForbidden},
		{"validation", ErrValidation, http.StatusBadRequest},
		{"forbidden", ErrForbidden, http.StatusForbidden},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, tc.err)
			if rec.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rec.Code)
			}
		})
	}
}

func TestRespondErrorUnwrapsCarriedStatus(t *testing.T) {
	inner := &statusedError{status: http.StatusConflict, msg: "version clash"}
	wrapped := fmt.Errorf("saving draft: %w", inner)
	rec := httptest.NewRecorder()
	RespondError(rec, wrapped)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status from wrapped error, got %d", rec.Code)
	}
	var problem ProblemDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &problem); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if problem.Detail != wrapped.Error() {
		t.Fatalf("expected full wrapped message, got %q", problem.Detail)
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("pq: connection refused at 10.0.0.5"))

	var problem ProblemDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &problem); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if problem.Detail != "" {
		t.Fatalf("internal error detail must be empty, got %q", problem.Detail)
	}
}
