// Package linkvault provides an ephemeral content store with pluggable record
// and blob storage backends.
//
// A caller deposits inline text or a binary blob and receives a handle. Any
// holder of the handle can read the content until one of its access gates
// closes: expiry time, password, maximum view count or one-time view.
// Implementations of repositories (memory, SQLite, Postgres) and blob stores
// (memory, filesystem, S3) are provided under subpackages.
//
// Read Gate
//
// Every read of a handle runs under a per-handle critical section and checks,
// in order: existence, expiry, view ceiling, password. Expired and exhausted
// records are removed as soon as a read observes them; the Sweeper removes
// the ones nobody touches. A read that consumes a record removes it before
// the payload is delivered and defers blob removal to ReadResult.Finish.
package linkvault
