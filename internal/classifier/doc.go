// Package classifier asks an AI service where detected files belong in the
// library.
//
// The Gateway contract takes a batch of entries (one per file, with optional
// per-entry custom instructions) and returns per-path suggestions with a
// 0-100 confidence. A missing result for a requested path is a partial
// failure for that file only; the worker decides what to do with it.
//
// The default implementation speaks the OpenAI-compatible chat-completions
// protocol: one prompt covers the whole batch, the model is instructed to
// answer with strict JSON, and the response parser tolerates code fences and
// wrapped output. Transport failures, timeouts, and 408/429/5xx responses
// classify as transient; malformed payloads after a successful call classify
// as permanent. DryRun is an offline stand-in that routes everything under
// the unsorted directory.
package classifier
