package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Moadams/ProjectTracker/internal/audit"
	"github.com/Moadams/ProjectTracker/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "

	anonymousActor = "anonymous"
)

// Authenticator turns a bearer token into a caller identity.
type Authenticator interface {
	Authenticate(token string) (auth.Identity, error)
}

// Authenticate rejects requests without a valid access token. Rejections are
// audited as UNAUTHORIZED_ACCESS without blocking the response.
func Authenticate(authn Authenticator, sink *audit.Sink) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token, err := extractBearerToken(r.Header.Get(authHeader))
			var id auth.Identity
			if err == nil {
				id, err = authn.Authenticate(token)
			}
			if err != nil {
				sink.Append(r.Context(), audit.Entry{
					Action:     audit.ActionUnauthorizedAccess,
					EntityType: audit.EntityUser,
					Payload:    fmt.Sprintf("Unauthorized access to %s %s. Reason: %v", r.Method, r.URL.Path, err),
					Actor:      anonymousActor,
				})
				writeError(w, r, http.StatusUnauthorized, "authentication required")
				return
			}

			ctx := auth.ContextWithIdentity(r.Context(), id)
			ctx = auth.ContextWithToken(ctx, token)
			ctx = audit.WithActor(ctx, id.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole admits callers holding any of roles. Others get 403 and an
// ACCESS_DENIED audit record. Must run after Authenticate.
func RequireRole(sink *audit.Sink, roles ...auth.RoleName) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "authentication required")
				return
			}
			if !id.HasRole(roles...) {
				sink.Append(r.Context(), audit.Entry{
					Action:     audit.ActionAccessDenied,
					EntityType: audit.EntityUser,
					Payload:    fmt.Sprintf("Access denied for user: %s to %s %s. Role %s", id.Subject, r.Method, r.URL.Path, id.Role),
					Actor:      id.Subject,
				})
				writeError(w, r, http.StatusForbidden, "access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
