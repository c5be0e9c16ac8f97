// Package notifications pushes classification and organization events to an
// ntfy topic. Notifications are best-effort: failures never block the
// pipeline, and repeated identical messages inside the dedup window are
// suppressed.
package notifications
