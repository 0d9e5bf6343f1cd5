// Package provider holds the clients for third-party identity services:
// Twilio Verify for SMS codes, SMTP for mail, and Google for OAuth.
//
// Failures talking to a provider wrap ErrProviderError. Answers the
// provider gives on purpose (a wrong code, a bad id token) have their own
// results or sentinels.
package provider

import "errors"

var (
	// ErrProviderError indicates the upstream service failed or rejected the call.
	ErrProviderError = errors.New("identity provider error")

	// ErrInvalidIDToken indicates an OAuth id token could not be read or
	// was issued for someone else.
	ErrInvalidIDToken = errors.New("invalid ID token")
)
