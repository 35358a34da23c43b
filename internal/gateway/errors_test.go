package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/meridian-crm/meridian/internal/platform/httpx"
)

func TestErrorsCarryHTTPStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", ErrNotFound, http.StatusNotFound},
		{"no session", ErrNoSession, http.StatusUnauthorized},
		{"permission denied", ErrPermissionDenied, http.StatusForbidden},
		{"hard delete only", ErrHardDeleteOnly, http.StatusBadRequest},
		{"schema violation", &SchemaError{Kind: KindLeads, Field: "name", Reason: "required field missing"}, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			httpx.RespondError(rec, tc.err)
			if rec.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rec.Code)
			}
		})
	}
}

func TestWrappedSentinelsKeepIdentityAndStatus(t *testing.T) {
	wrapped := fmt.Errorf("entity: remove leads: %w", ErrNotFound)
	if !errors.Is(wrapped, ErrNotFound) {
		t.Fatalf("wrapped sentinel lost identity")
	}
	rec := httptest.NewRecorder()
	httpx.RespondError(rec, wrapped)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 through wrapping, got %d", rec.Code)
	}
}

func TestRemoteDenialMessageSurvivesMapping(t *testing.T) {
	remote := fmt.Errorf("%w: editing finance records requires the finance role", ErrPermissionDenied)
	rec := httptest.NewRecorder()
	httpx.RespondError(rec, remote)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	var problem httpx.ProblemDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &problem); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if problem.Detail != remote.Error() {
		t.Fatalf("expected remote message preserved, got %q", problem.Detail)
	}
}
