// Package storage abstracts the blob store holding ciphertext payloads.
// The rest of the server only ever hands it opaque storage keys.
package storage

import "context"

// BlobStore reads, writes and deletes ciphertext blobs by opaque key.
// A missing key on Read yields common.ErrorNotFound.
type BlobStore interface {
	Write(ctx context.Context, key string, data []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
