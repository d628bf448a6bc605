// Package snapshot dereferences source references into evaluated package
// sets. The HTTP evaluator fetches snapshot indexes from a forge host
// with bounded retry; the caching evaluator serves pinned references
// from a local SQLite store so re-resolution of a pinned descriptor
// needs no network access.
package snapshot
