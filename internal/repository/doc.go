// Package repository implements the data access layer for the Momoso API.
//
// Each repository struct wraps a database.Database and handles one
// domain entity with parameterized SurrealQL:
//
//   - UserRepository, IdentityRepository: accounts and OAuth links
//   - NovelRepository, EpisodeRepository: drafts and generated chapters
//   - DiscussionRepository, NoteRepository, TranscriptRepository
//   - PassageRepository: embedded passages with cosine similarity search
//
// Record links are stored with type::record() and come back as
// "table:id" strings on the model structs.
//
// Get methods return (nil, nil) when the record does not exist; services
// translate that into their own not-found errors.
package repository
