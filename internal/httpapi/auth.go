package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

// ErrInvalidToken is returned by TokenVerifier implementations for tokens
// that are missing, malformed or expired.
var ErrInvalidToken = errors.New("invalid or expired token")

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UserID uuid.UUID
	Admin  bool
}

// TokenVerifier is the boundary to the auth collaborator. The core never
// issues or refreshes tokens; it only asks who a bearer token belongs to.
type TokenVerifier interface {
	Verify(token string) (Identity, error)
}

// StaticTokenVerifier maps fixed tokens to identities. Useful for tests and
// local development.
type StaticTokenVerifier map[string]Identity

func (v StaticTokenVerifier) Verify(token string) (Identity, error) {
	id, ok := v[token]
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	return id, nil
}

type contextKey string

const identityKey contextKey = "identity"

func identityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// authenticate resolves the bearer token and stores the identity on the
// request context. A 401 here is the signal clients use for session teardown,
// so the body is kept machine-readable.
func authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				respondWithError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			id, err := verifier.Verify(token)
			if err != nil {
				log.Debug().Err(err).Msg("httpapi: token rejected")
				respondWithError(w, http.StatusUnauthorized, "session expired")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
		})
	}
}

// requireOwner restricts a /users/{userId}/... route to that user or an admin.
func requireOwner(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identityFrom(r.Context())
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		userID, err := uuid.FromString(chi.URLParam(r, "userId"))
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid user id")
			return
		}

		if !id.Admin && id.UserID != userID {
			// Another user's resources look absent, not forbidden.
			respondWithError(w, http.StatusNotFound, "not found")
			return
		}

		next(w, r)
	}
}

func requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identityFrom(r.Context())
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !id.Admin {
			respondWithError(w, http.StatusForbidden, "admin access required")
			return
		}
		next(w, r)
	}
}
