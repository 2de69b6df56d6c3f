// Package deaddrop implements an ephemeral file-drop service for
// client-side-encrypted blobs.
//
// A client uploads an already-encrypted blob and receives an opaque id.
// Reaching the download limit, or the expiry of the record's TTL, destroys
// the blob and its metadata permanently. The server never sees plaintext or
// encryption keys; blobs are opaque bytes.
//
// # Key Components
//
//   - Service: the lifecycle coordinator orchestrating the upload and
//     download sagas across the two stores
//   - MetadataStore: TTL-backed record store (Redis, SQLite, Postgres, or
//     in-memory implementations under metadata/)
//   - BlobStore: durable byte storage (filesystem implementation with atomic
//     temp-and-rename writes)
//   - Reaper: background worker that destroys blob and metadata once a
//     download limit is reached
//   - NewRetryingStore: decorator applying bounded exponential-backoff retry
//     to transient metadata failures
//
// # Consistency model
//
// There is no cross-store transaction. Uploads write the blob first and
// compensate with a blob delete when the metadata write fails. Downloads
// verify blob existence before counting, clean up orphaned metadata, and
// count downloads with a single atomic conditional update in the store, so
// a file with a download limit of one is served exactly once even under
// concurrent requests.
//
// See the http package for the REST API and cmd/deaddrop for the server
// binary.
package deaddrop
