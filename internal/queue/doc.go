// Package queue persists classification jobs in SQLite and exposes helpers
// for driving their lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, stuck-job recovery, and status transitions. Every status change
// flows through Update, which validates the transition against a closed
// table and fans out a TransitionRecord to registered observers after the
// write commits. Jobs capture the source file, the suggested library
// destination, grouping membership, and retry bookkeeping so the worker and
// the organizer can coordinate without additional state.
//
// The database is treated as transient storage for in-flight jobs rather
// than a long-term archive. Schema changes bump the version in schema.go;
// users clear the database to adopt the new schema.
//
// Treat this package as the single source of truth for queue semantics; when
// you add new statuses or fields, update schema.sql and bump schemaVersion.
package queue
