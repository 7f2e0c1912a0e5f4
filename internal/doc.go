// Package internal documents the gatherline server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, pagination, problem responses, and routing
// - domain: business logic for users, events, and attendance
// - storage: Postgres repositories and migrations (pgx)
// - auth, cache, config, metrics, telemetry: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
