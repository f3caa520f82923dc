package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/chatapi/backend/internal/auth"
	"github.com/chatapi/backend/internal/logging"
	"github.com/chatapi/backend/internal/models"
	"github.com/chatapi/backend/internal/repositories"
)

// AccessVerifier validates a bearer access token into a user id.
type AccessVerifier interface {
	VerifyAccess(tokenString string) (string, error)
}

// UserResolver loads the user record behind a verified subject id.
type UserResolver interface {
	FindByID(ctx context.Context, id string) (models.User, error)
}

// PresenceRecorder receives best-effort last-seen touches for users that
// authenticated successfully.
type PresenceRecorder interface {
	Touch(userID string)
}

// Authenticate resolves the request identity from the Authorization header.
//
// A missing, malformed or invalid bearer token leaves the request anonymous
// rather than rejecting it; per-route policies (RequireUser and friends)
// decide whether anonymous access is acceptable. When a user is resolved it
// is attached to the request context and a presence touch is scheduled.
func Authenticate(tokens AccessVerifier, users UserResolver, presence PresenceRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			logger := logging.FromContext(ctx)

			userID, err := tokens.VerifyAccess(token)
			if err != nil {
				logger.Debug("bearer token rejected", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.FindByID(ctx, userID)
			if err != nil {
				if !errors.Is(err, repositories.ErrNotFound) {
					logger.Error("resolve authenticated user", "userId", userID, "error", err)
				}
				next.ServeHTTP(w, r)
				return
			}

			if presence != nil {
				presence.Touch(user.ID)
			}

			next.ServeHTTP(w, r.WithContext(auth.WithUser(ctx, user)))
		})
	}
}

// RequireUser rejects requests that did not resolve to a real user.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.UserFromContext(r.Context()); !ok {
			respondUnauthenticated(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUserUnlessSafe lets safe (read-only) methods through anonymously
// while still demanding a resolved user for mutating methods.
func RequireUserUnlessSafe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isSafeMethod(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := auth.UserFromContext(r.Context()); !ok {
			respondUnauthenticated(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func respondUnauthenticated(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
}
