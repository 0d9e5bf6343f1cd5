// Package service implements the business logic layer for the Momoso API.
//
// The service package holds the account flows, token rotation, OTP
// verification, LLM-backed novel generation, discussions and the
// retrieval assistant. Services sit between HTTP handlers and the
// repositories, cache and external providers.
//
// # Service Pattern
//
// All services follow a consistent pattern:
//
//   - Constructor function (NewXxxService) accepts a config struct with its dependencies
//   - Methods implement business operations with validation
//   - Errors are returned as sentinel errors or wrapped errors for context
//   - Context is passed through for cancellation and request-scoped values
//
// # Dependency Interfaces
//
// Services declare the repository and provider interfaces they consume
// (UserRepository, SMSSender, Mailer, ...). The concrete SurrealDB
// repositories, the Redis store and the Twilio/SMTP/Google/AI clients
// satisfy them, and tests substitute hand-written fakes.
//
// # Error Handling
//
// Services return domain-specific errors defined in errors.go:
//
//	var (
//	    ErrNovelNotFound = errors.New("novel not found")
//	    ErrNotNovelOwner = errors.New("only the novel owner can do this")
//	)
//
// Upstream failures from the AI and provider packages are wrapped with %w
// so handlers can still recognise them with errors.Is.
//
// # Example Usage
//
//	novels := NewNovelService(NovelServiceConfig{
//	    NovelRepo:   novelRepository,
//	    EpisodeRepo: episodeRepository,
//	    Generator:   aiProvider,
//	})
//	novel, err := novels.RecommendWorldview(ctx, userID, novelID)
package service
