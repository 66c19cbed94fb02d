// Package transfer executes file transfers between backend adapters with
// bounded retry and integrity verification.
//
// Each attempt writes the source stream to a temporary name next to the
// destination, verifies the stored size and checksum against the
// expectations carried by the references, and only then renames the
// temporary object onto the destination. A failed attempt deletes its
// temporary object, so readers of the destination observe either its
// previous content or the fully verified new content.
//
// A Task moves through an explicit state machine:
//
//	pending -> attempting -> succeeded
//	                      -> retry-wait -> attempting
//	                      -> failed
//
// Cancellation is checked before every attempt and during every backoff
// wait. Transient failures and checksum mismatches are retried up to the
// configured number of attempts; permanent failures (missing source, access
// denied, capacity exhausted, unsupported scheme) fail the task at once.
package transfer
