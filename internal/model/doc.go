// Package model defines domain entities and data structures for the Momoso API.
//
// The model package contains the struct definitions shared by every layer:
// domain objects, request types with their validation, and error types.
//
// # Domain Entities
//
//   - User, Identity: accounts and linked OAuth providers
//   - Novel, Character, Episode: a draft filled in by generation steps
//   - Discussion, Note, Transcript: scheduled voice discussions, their
//     recognized speech and generated meeting notes
//   - Passage: an embedded slice of episode text used for retrieval
//
// # Validation
//
// Request types expose Validate() []FieldError. An empty result means the
// request is valid; handlers turn a non-empty one into a 422 response:
//
//	if errs := req.Validate(); len(errs) > 0 {
//	    WriteError(w, model.NewValidationError(errs))
//	    return
//	}
//
// # Error Types
//
// RFC 9457 Problem Details errors are defined in errors.go.
package model
