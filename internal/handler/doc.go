// Package handler provides HTTP request handlers for the Momoso API.
//
// Each handler struct holds the services one feature area needs
// (authentication, novels, discussions, the relay) and exposes one method
// per endpoint.
//
// # Handler Pattern
//
//   - Constructor function (NewXxxHandler) accepts a config struct with dependencies
//   - Methods handle specific HTTP endpoints
//   - Response helpers from response.go standardize output format
//   - Service errors go through MapServiceError to RFC 9457 Problem Details
//
// # Response Format
//
// Successful responses are wrapped as {"data": ..., "_links": {...}}.
// Errors are written as application/problem+json.
//
// # Authentication
//
// Protected routes sit behind middleware.Auth; handlers read the caller
// with middleware.GetUserID(r.Context()).
//
// # Example Usage
//
//	novels := NewNovelHandler(NovelHandlerConfig{NovelService: novelService})
//	mux.Handle("POST /v1/novels", auth(http.HandlerFunc(novels.Create)))
//	mux.Handle("GET /v1/novels/{id}", auth(http.HandlerFunc(novels.Get)))
package handler
