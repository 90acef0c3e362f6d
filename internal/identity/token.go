package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpired reports whether the bearer token is a JWT whose expiry already
// passed. The upstream issues JWTs, but the token is treated as opaque
// everywhere else: anything that does not parse, or parses without an exp
// claim, is assumed live and left for the upstream to reject.
func TokenExpired(token string, now time.Time) bool {
	if token == "" {
		return true
	}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return now.After(exp.Time)
}
