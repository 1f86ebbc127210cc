// Package blobstore abstracts where snapshot blobs live.
//
// Built-in backends:
//   - LocalStore: a directory on the local filesystem, with atomic
//     write-then-rename puts.
//   - MemoryStore: in-memory, for tests and ephemeral stores.
//
// Remote backends live in subpackages (minio, s3) so their SDKs are only
// linked when used.
package blobstore
