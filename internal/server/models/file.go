package models

import "time"

// File describes server-side metadata for one uploaded ciphertext blob.
// The blob itself lives in object storage under StoredFilename, which is
// treated as an opaque storage key. EncryptionIV, EncryptionKey and AuthTag
// hold the AES-GCM key material in the serialized byte-array form clients
// upload; they are parsed with cryptox.ParseKeyMaterial when needed.
type File struct {
	ID               string
	UserID           string
	OriginalFilename string
	StoredFilename   string
	FileSize         int64
	FileType         string
	EncryptionIV     string
	EncryptionKey    string
	AuthTag          string
	UploadedAt       time.Time
}
