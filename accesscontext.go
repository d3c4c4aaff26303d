package protect

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource supplies an identity-bound access token. Implementations
// perform whatever network exchange the token issuer requires; this package
// only consumes the result, and only when an operation executes.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// AccessContext binds an operation to a caller identity: an opaque access
// token plus claim strings the engine enforces policy against. Attaching a
// context to an operation stores it; nothing is fetched or validated until
// the operation's terminal call.
type AccessContext struct {
	token  string
	source TokenSource
	claims []string
}

// ResolvedAccess is the token/claims pair handed to the engine after
// resolution succeeds.
type ResolvedAccess struct {
	Token  string   `json:"accessToken"`
	Claims []string `json:"claims,omitempty"`
}

// NewAccessContext wraps an already retrieved token. The token is read-only
// from here on.
func NewAccessContext(token string, claims ...string) *AccessContext {
	return &AccessContext{token: token, claims: claims}
}

// AccessContextFrom defers token retrieval to a TokenSource. The source is
// invoked once per Execute, at execution time.
func AccessContextFrom(source TokenSource, claims ...string) *AccessContext {
	return &AccessContext{source: source, claims: claims}
}

// resolve produces the engine-facing token/claims pair. This is the single
// point where deferred work happens: the source fetch (if any) runs here, and
// the token's expiry is checked here. Failures are *ContextError so callers
// can distinguish re-authentication from encryption failures.
func (a *AccessContext) resolve(ctx context.Context) (*ResolvedAccess, error) {
	token := a.token
	if a.source != nil {
		fetched, err := a.source.AccessToken(ctx)
		if err != nil {
			return nil, &ContextError{Message: "token retrieval failed", Err: err}
		}
		token = fetched
	}
	if token == "" {
		return nil, &ContextError{Message: "empty access token"}
	}
	if err := checkTokenExpiry(token, time.Now()); err != nil {
		return nil, err
	}
	return &ResolvedAccess{Token: token, Claims: a.claims}, nil
}

// checkTokenExpiry inspects a JWT's registered claims without verifying the
// signature (verification belongs to the issuer and the engine). A token the
// issuer has already let expire fails fast, before any engine call.
// Non-JWT tokens pass through untouched.
func checkTokenExpiry(token string, now time.Time) error {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		// Opaque (non-JWT) tokens are legal; the engine decides their fate.
		return nil
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(now) {
		return &ContextError{Message: "access token expired at " + claims.ExpiresAt.UTC().Format(time.RFC3339)}
	}
	return nil
}
