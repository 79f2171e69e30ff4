package testutil

import (
	"net/http"

	id "licensure/pkg/domain"
	"licensure/pkg/requestcontext"
)

// WithActor attaches an authenticated actor to the request context,
// simulating what the auth middleware does for authenticated requests.
func WithActor(req *http.Request, actor id.Actor) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actor))
}

// WithRole attaches a fresh actor with the given role to the request context.
func WithRole(req *http.Request, role id.Role) *http.Request {
	return WithActor(req, id.Actor{ID: id.NewUserID(), Role: role})
}
