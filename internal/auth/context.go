package auth

import "context"

type ctxKey string

const (
	principalKey ctxKey = "auth_principal"
	apiClaimsKey ctxKey = "auth_api_claims"
)

// ContextWithPrincipal stores the resolved principal in the context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext extracts the resolved principal, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	if !ok || p.ID == "" {
		return Principal{}, false
	}
	return p, true
}

// ContextWithAPIClaims stores verified public-API token claims in the context.
func ContextWithAPIClaims(ctx context.Context, claims *APIClaims) context.Context {
	return context.WithValue(ctx, apiClaimsKey, claims)
}

// APIClaimsFromContext extracts verified public-API token claims, if any.
func APIClaimsFromContext(ctx context.Context) (*APIClaims, bool) {
	claims, ok := ctx.Value(apiClaimsKey).(*APIClaims)
	if !ok || claims == nil {
		return nil, false
	}
	return claims, true
}
