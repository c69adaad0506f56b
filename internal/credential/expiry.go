// ABOUTME: Local expiry check for JWT bearer credentials
// ABOUTME: Lets the session skip the identity request when the token is already expired

package credential

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Expired reports whether token is a JWT whose exp claim is at or before now.
// The signature is not verified; the service remains the authority. Tokens
// that are not JWTs, or carry no exp claim, are never considered expired.
func Expired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
