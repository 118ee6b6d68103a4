package httpapi

import (
	"net/http"
	"strings"

	"peopledesk.org/internal/auth"
)

func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// withAuth resolves the session token into a principal and stores it in the
// request context.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		p, err := a.deps.Resolver.Resolve(r.Context(), token)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		ctx := auth.ContextWithPrincipal(r.Context(), p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withAPIAuth verifies a public-API bearer token. Scope checks stay in the
// individual handlers; this middleware only establishes the claims.
func (a *API) withAPIAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		claims, err := auth.ParseAPIToken(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := auth.ContextWithAPIClaims(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireScope checks a public-API scope and returns the claims on success.
func requireScope(w http.ResponseWriter, r *http.Request, scope string) (*auth.APIClaims, bool) {
	claims, ok := auth.APIClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	if !claims.HasScope(scope) {
		writeError(w, r, http.StatusForbidden, "missing scope "+scope)
		return nil, false
	}
	return claims, true
}
