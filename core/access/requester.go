/*
Package access provides authentication and role based access control.

The authentication middleware resolves the credentials of a request, either a
basic authorization header or a JWT, to a Requester and adds it to the request
context. Handlers retrieve it with

	requester := access.RequesterFromContext(ctx)

and ask the permission policy what the requester may do with a record:

	decision := access.Check(requester, core.OperationUpdate, "issues", record)
*/
package access

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/harman-mundh/localcommunity/core"
	"github.com/harman-mundh/localcommunity/core/logger"
)

// contextKey is the type for context keys. Go linter does not like plain strings
type contextKey string

const (
	contextKeyRequester contextKey = "_requester_"
)

// the roles known to the permission policy
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Requester is the authenticated principal making a request. It is derived
// per request and never persisted.
type Requester struct {
	ID             int64     `json:"ID"`
	Role           string    `json:"role"`
	Username       string    `json:"username"`
	Email          string    `json:"email,omitempty"`
	AvatarURL      string    `json:"avatarURL,omitempty"`
	DateRegistered time.Time `json:"dateRegistered"`
}

// RequesterFromRecord builds a requester from a users row. An empty role
// defaults to user.
func RequesterFromRecord(r core.Record) *Requester {
	req := &Requester{
		ID:        r.ID(),
		Role:      r.String("role"),
		Username:  r.String("username"),
		Email:     r.String("email"),
		AvatarURL: r.String("avatarURL"),
	}
	if req.Role == "" {
		req.Role = RoleUser
	}
	if t, ok := r["dateRegistered"].(time.Time); ok {
		req.DateRegistered = t
	}
	return req
}

// HasRole returns true if the requester has the role. A nil requester has no role.
func (r *Requester) HasRole(role string) bool {
	return r != nil && r.Role == role
}

// ContextWithRequester returns a new context with the requester added to it
func ContextWithRequester(ctx context.Context, r *Requester) context.Context {
	return context.WithValue(ctx, contextKeyRequester, r)
}

// RequesterFromContext retrieves the requester from the context, or nil for
// anonymous requests.
func RequesterFromContext(ctx context.Context) *Requester {
	r, _ := ctx.Value(contextKeyRequester).(*Requester)
	return r
}

// RequireRequester returns the requester of the context or an unauthorized error
func RequireRequester(ctx context.Context) (*Requester, error) {
	r := RequesterFromContext(ctx)
	if r == nil {
		return nil, core.Unauthorized()
	}
	return r, nil
}

// HandleAuthorizationRoute adds a route /authorization GET to the router
//
// The route returns the requester resolved from the request's credentials.
func HandleAuthorizationRoute(router *mux.Router) {
	logger.Default().Debugln("  handle route: /authorization GET")
	router.HandleFunc("/authorization", func(w http.ResponseWriter, r *http.Request) {
		requester := RequesterFromContext(r.Context())
		if requester == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		jsonData, _ := json.MarshalIndent(requester, "", " ")
		w.Header().Set("Content-Type", "application/json")
		w.Write(jsonData)
	}).Methods(http.MethodGet)
}
