package middlewares

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/oauth"

	"github.com/mbolis/leadform/httpx"
	"github.com/mbolis/leadform/log"
)

type ctxKey struct{}

var userIDKey = ctxKey{}

// UserID returns the authenticated owner put in the context by Owner or APIToken.
func UserID(r *http.Request) int {
	id, _ := r.Context().Value(userIDKey).(int)
	return id
}

func WithUserID(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// Owner checks for an OAuth bearer token carrying the 'owner' role.
func Owner(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return chi.Chain(oauth.Authorize(secret, nil), owner).Handler(next)
	}
}

func owner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := r.Context().Value(oauth.ClaimsContext).(map[string]string)

		isOwner := false
		if rolesClaim, ok := claims[httpx.ClaimRoles]; ok {
			roles := strings.Split(rolesClaim, ",")
			for _, role := range roles {
				if role == httpx.RoleOwner {
					isOwner = true
					break
				}
			}
		}
		if !isOwner {
			httpx.LogStatus(w, http.StatusForbidden, log.DebugLevel, "auth.owner.role")
			return
		}

		id, err := strconv.Atoi(claims[httpx.ClaimUserID])
		if err != nil || id <= 0 {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "auth.owner.uid")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
	})
}

// APIToken checks for a JWT issued to an integration (Zapier, CRM pulls).
func APIToken(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return chi.Chain(jwtauth.Verifier(ja), jwtauth.Authenticator, apiToken).Handler(next)
	}
}

func apiToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "auth.api_token")
			return
		}

		uid, _ := claims[httpx.ClaimUserID].(string)
		id, err := strconv.Atoi(uid)
		if err != nil || id <= 0 {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "auth.api_token.uid")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
	})
}
