// Package auth issues and verifies the bearer credentials of the chat
// service.
//
// # Tokens
//
// Credentials are HS256-signed JWTs whose "sub" claim is the user id:
//
//	v := NewJWTVerifier(secret)
//	token, err := v.Generate(userID, 24*time.Hour)
//	userID, err := v.Verify(token)
//
// # HTTP
//
// HTTPAuthMiddleware guards the REST endpoints. It reads
// "Authorization: Bearer <token>", verifies it, checks the user exists and
// stores the user id in the request context (see UserFromContext).
// Failures answer 401 with a {"message": "..."} body.
package auth
