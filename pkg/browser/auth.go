package browser

import (
	"context"
	"fmt"
	"strconv"
)

// AuthStrategy injects the bearer token into a browsing context. Exactly one
// strategy is active per session, selected by AuthMode; strategies are never
// mixed.
type AuthStrategy interface {
	Name() string
	Apply(ctx context.Context, bctx Context, token string) error
}

// NewAuthStrategy returns the strategy for the given mode. An empty mode
// selects header injection, the default.
func NewAuthStrategy(mode AuthMode) (AuthStrategy, error) {
	switch mode {
	case "", AuthHeader:
		return headerAuth{}, nil
	case AuthCookie:
		return cookieAuth{name: "authToken"}, nil
	case AuthStorage:
		return storageAuth{key: "authToken"}, nil
	default:
		return nil, fmt.Errorf("invalid auth mode %q: must be one of %q, %q, %q",
			mode, AuthHeader, AuthCookie, AuthStorage)
	}
}

// headerAuth sets a default Authorization header on the context. It persists
// for every subsequent request automatically; it is not re-applied per
// navigation.
type headerAuth struct{}

func (headerAuth) Name() string { return string(AuthHeader) }

func (headerAuth) Apply(ctx context.Context, bctx Context, token string) error {
	return bctx.SetDefaultHeaders(ctx, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// cookieAuth stores the token in a session cookie. Requires the engine to
// expose the CookieSetter capability.
type cookieAuth struct {
	name string
}

func (cookieAuth) Name() string { return string(AuthCookie) }

func (a cookieAuth) Apply(ctx context.Context, bctx Context, token string) error {
	setter, ok := bctx.(CookieSetter)
	if !ok {
		return fmt.Errorf("engine does not support cookie injection")
	}
	return setter.SetCookie(ctx, a.name, token)
}

// storageAuth writes the token into localStorage on every new document.
// Requires the engine to expose the ScriptInjector capability.
type storageAuth struct {
	key string
}

func (storageAuth) Name() string { return string(AuthStorage) }

func (a storageAuth) Apply(ctx context.Context, bctx Context, token string) error {
	injector, ok := bctx.(ScriptInjector)
	if !ok {
		return fmt.Errorf("engine does not support storage injection")
	}
	// strconv.Quote produces valid JS string literals for both values.
	script := fmt.Sprintf("localStorage.setItem(%s, %s);",
		strconv.Quote(a.key), strconv.Quote(token))
	return injector.InjectOnNewDocument(ctx, script)
}
