// Package jwt signs and validates the RS256 JSON Web Tokens used by the
// Momoso API.
//
// Two token types are issued from one key pair. Access tokens are short
// lived (30 minutes by default) and travel in the Authorization header or
// the access_token cookie. Refresh tokens live for 7 days, carry a random
// jti, and are only accepted by the refresh endpoint and the auth
// middleware's reissue path. The typ claim tells them apart:
//
//	svc, err := jwt.NewService(jwt.Config{
//	    PrivateKeyPath: "./keys/private.pem",
//	    Issuer:         "momoso",
//	})
//
//	access, err := svc.Sign(jwt.Claims{UserID: id, TokenType: jwt.TypeAccess})
//	claims, err := svc.ValidateType(access, jwt.TypeAccess)
//
// Validation checks the signature, exp, nbf and issuer. A refresh token
// presented where an access token is expected fails with ErrWrongTokenType.
package jwt
