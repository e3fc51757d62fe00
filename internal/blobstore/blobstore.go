// Package blobstore hands out references to the externally-encrypted letter
// bodies. The server never reads or writes blob contents itself: clients
// upload and download ciphertext directly through presigned URLs, and this
// core treats the storage key as opaque.
package blobstore

import "context"

// BlobStore issues presigned access to the ciphertext blobs.
type BlobStore interface {
	// PresignPut returns a fresh storage key and a URL the client can
	// upload the encrypted body to.
	PresignPut(ctx context.Context) (key string, url string, err error)

	// PresignGet returns a download URL for an existing blob.
	PresignGet(ctx context.Context, key string) (url string, err error)
}
