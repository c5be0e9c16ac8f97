// Package api defines transport-friendly DTOs shared by the IPC surface and
// the CLI renderers, plus conversions from the internal models.
package api
