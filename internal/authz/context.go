package authz

import "context"

// Viewer is the authenticated principal attached to a request, with the
// effective permission set resolved for it.
type Viewer struct {
	Principal   Principal
	Permissions PermissionSet
	Token       string
}

type viewerContextKey struct{}

// ContextWithViewer stores the viewer in context.
func ContextWithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, viewerContextKey{}, v)
}

// ViewerFromContext extracts the viewer from context.
func ViewerFromContext(ctx context.Context) (Viewer, bool) {
	v, ok := ctx.Value(viewerContextKey{}).(Viewer)
	return v, ok
}
