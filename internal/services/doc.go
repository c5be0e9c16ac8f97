// Package services defines shared utilities consumed by the workflow
// components and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, component names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent job statuses (retryable vs permanent vs deferral).
//
// Use these helpers when wiring new processing logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
