package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func viewerRequest(t *testing.T, viewer *Viewer) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/rules", nil)
	if viewer != nil {
		req = req.WithContext(ContextWithViewer(req.Context(), *viewer))
	}
	return req
}

func TestViewerContextRoundTrip(t *testing.T) {
	viewer := Viewer{
		Principal:   Principal{ID: uuid.New(), Role: "Sales", Active: true},
		Permissions: NewPermissionSet(map[Module]Actions{ModulePipeline: {View: true}}, nil),
		Token:       "tok-1",
	}
	req := viewerRequest(t, &viewer)

	got, ok := ViewerFromContext(req.Context())
	require.True(t, ok)
	require.Equal(t, viewer.Principal.ID, got.Principal.ID)
	require.Equal(t, "tok-1", got.Token)
	require.True(t, Check(got.Permissions, ModulePipeline, ActionView))

	_, ok = ViewerFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	require.False(t, ok)
}

func TestRequireRejectsMissingViewer(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a viewer")
	})
	rec := httptest.NewRecorder()
	Middleware{}.Require(ModuleAdmin, ActionEdit)(next).ServeHTTP(rec, viewerRequest(t, nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRejectsMissingPermission(t *testing.T) {
	viewer := Viewer{
		Principal:   Principal{ID: uuid.New(), Role: "Sales", Active: true},
		Permissions: NewPermissionSet(map[Module]Actions{ModulePipeline: {View: true}}, nil),
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without the permission")
	})
	rec := httptest.NewRecorder()
	Middleware{}.Require(ModuleAdmin, ActionEdit)(next).ServeHTTP(rec, viewerRequest(t, &viewer))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequirePassesAuthorizedViewer(t *testing.T) {
	viewer := Viewer{
		Principal:   Principal{ID: uuid.New(), Role: AdminRole, Admin: true, Active: true},
		Permissions: BypassSet(),
	}
	var called bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	})
	rec := httptest.NewRecorder()
	Middleware{}.Require(ModuleAdmin, ActionEdit)(next).ServeHTTP(rec, viewerRequest(t, &viewer))
	require.True(t, called)
	require.Equal(t, http.StatusNoContent, rec.Code)
}
