// Package logging constructs the slog loggers used across curator.
//
// It offers a console handler that renders compact key=value lines for
// interactive use and a JSON handler for machine-readable output, plus attr
// helpers and context-derived field extraction so job IDs and correlation
// identifiers follow a request through every component.
package logging
