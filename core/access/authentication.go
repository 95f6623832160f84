package access

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/harman-mundh/localcommunity/core"
	"github.com/harman-mundh/localcommunity/core/logger"
)

// UserLookup finds users rows. Both methods return an error matching
// core.ErrNotFound when there is no such user.
type UserLookup interface {
	FindByID(ctx context.Context, id int64) (core.Record, error)
	FindByUsername(ctx context.Context, username string) (core.Record, error)
}

// AuthenticationBuilder is a helper builder for the authentication middleware
type AuthenticationBuilder struct {
	Users  UserLookup
	Tokens *Tokens
}

// JWTQueryParameter carries a token for clients that cannot set headers
const JWTQueryParameter = "jwt"

// NewAuthenticationMiddleware returns a middleware resolving the request's
// credentials to a Requester.
//
// Two schemes are accepted: "Authorization: Basic" with username and password,
// and a JWT given as "Authorization: Bearer" header or as "jwt" query
// parameter. Requests without credentials pass anonymously. Credentials that
// are present but invalid are rejected with http.StatusUnauthorized.
//
// The user is loaded from the database on every request, so role changes and
// deletions take effect immediately.
func NewAuthenticationMiddleware(ab *AuthenticationBuilder) mux.MiddlewareFunc {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if RequesterFromContext(r.Context()) != nil {
				h.ServeHTTP(w, r)
				return
			}
			rlog := logger.FromContext(r.Context())

			var (
				record core.Record
				err    error
			)
			authorization := r.Header.Get("Authorization")
			switch {
			case len(authorization) > 6 && strings.EqualFold(authorization[:6], "basic "):
				record, err = ab.basic(r)
			case len(authorization) > 7 && strings.EqualFold(authorization[:7], "bearer "):
				record, err = ab.bearer(r.Context(), authorization[7:])
			case r.URL.Query().Get(JWTQueryParameter) != "":
				record, err = ab.bearer(r.Context(), r.URL.Query().Get(JWTQueryParameter))
			default:
				h.ServeHTTP(w, r) // no credentials, moving on
				return
			}

			if err != nil {
				if errors.Is(err, core.ErrUnauthorized) {
					rlog.WithError(err).Infoln("authentication failed")
					writeUnauthorized(w)
					return
				}
				rlog.WithError(err).Errorf("Error 4723: cannot look up requester")
				http.Error(w, "Error 4723", http.StatusInternalServerError)
				return
			}

			requester := RequesterFromRecord(record)
			ctx := ContextWithRequester(r.Context(), requester)
			ctx, _ = logger.ContextWithLoggerIdentity(ctx, requester.Username)
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (ab *AuthenticationBuilder) basic(r *http.Request) (core.Record, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return nil, core.Unauthorized()
	}
	record, err := ab.Users.FindByUsername(r.Context(), username)
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.Unauthorized()
	}
	if err != nil {
		return nil, err
	}
	if !VerifyPassword(password, record.String("password")) {
		return nil, core.Unauthorized()
	}
	return record, nil
}

func (ab *AuthenticationBuilder) bearer(ctx context.Context, token string) (core.Record, error) {
	if ab.Tokens == nil {
		return nil, core.Unauthorized()
	}
	claims, err := ab.Tokens.Parse(strings.TrimSpace(token))
	if err != nil {
		return nil, &core.Error{Kind: core.KindUnauthorized, Message: "invalid token", Err: err}
	}
	record, err := ab.Users.FindByID(ctx, claims.ID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.Unauthorized()
	}
	return record, err
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="community"`)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized"}`))
}
