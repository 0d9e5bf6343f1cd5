// Package middleware provides HTTP middleware for the Momoso API.
//
// # Available Middleware
//
//   - RequestID, Logger, Recovery: request identity, access log, panics
//   - CORS: echoes allowed origins with credentials for cookie auth
//   - Compress: gzip, skipped for WebSocket upgrades
//   - RateLimit: fixed-window counters in Redis
//   - Idempotency: Idempotency-Key replay backed by Redis
//   - Auth, OptionalAuth: access token from the Authorization header or
//     the access_token cookie, with reissue from the refresh_token cookie
//
// # Authentication
//
//	protected := middleware.Auth(tokenService, cookies)
//	mux.Handle("GET /v1/auth/me", protected(http.HandlerFunc(h.Me)))
//
// After authentication, handlers read the caller from the context:
//
//	userID := middleware.GetUserID(r.Context())
//
// # Context Values
//
//   - GetUserID: authenticated user ID
//   - GetUserEmail: authenticated user email
//   - GetClaims: the validated JWT claims
//   - GetRequestID: unique request identifier
package middleware
