package zapi

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// inspectToken peeks at the bearer token's claims without verifying the
// signature (verification is the server's job) and warns when the token is
// expired or about to expire. Opaque tokens are accepted silently.
func inspectToken(token string, logger *zap.Logger) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		logger.Debug("Bearer token is not a parseable JWT; skipping expiry check")
		return
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return
	}

	remaining := time.Until(exp.Time)
	switch {
	case remaining <= 0:
		logger.Warn("Bearer token is already expired; requests will be rejected",
			zap.Time("expired_at", exp.Time))
	case remaining < 5*time.Minute:
		logger.Warn("Bearer token expires soon",
			zap.Duration("remaining", remaining.Round(time.Second)))
	default:
		logger.Debug("Bearer token expiry checked",
			zap.Time("expires_at", exp.Time))
	}
}
