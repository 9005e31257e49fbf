// Package cryptox implements the AES-GCM envelope operations used when a
// share link is redeemed, plus strict parsing of the serialized key material
// stored alongside each file record.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/avolkov/filevault/internal/common"
)

// TagSize is the GCM authentication tag length in bytes.
const TagSize = 16

// Decrypt recovers plaintext from an AES-GCM envelope. The authentication tag
// is verified before any plaintext is returned; every failure mode (bad key
// or IV length, tag mismatch, corrupted ciphertext) collapses into
// common.ErrorAuthenticationFailed so callers cannot build a decryption
// oracle out of the responses.
func Decrypt(ciphertext, iv, key, tag []byte) ([]byte, error) {
	if len(iv) == 0 || len(tag) != TagSize {
		return nil, common.ErrorAuthenticationFailed
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, common.ErrorAuthenticationFailed
	}

	aesgcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		return nil, common.ErrorAuthenticationFailed
	}

	// crypto/cipher expects the tag appended to the ciphertext.
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aesgcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, common.ErrorAuthenticationFailed
	}
	return plaintext, nil
}

// Encrypt seals plaintext under key with the given IV and returns the
// ciphertext and authentication tag separately, mirroring how clients
// produce uploads.
func Encrypt(plaintext, iv, key []byte) (ciphertext, tag []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}

	aesgcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		return nil, nil, err
	}

	sealed := aesgcm.Seal(nil, iv, plaintext, nil)
	n := len(sealed) - TagSize
	return sealed[:n], sealed[n:], nil
}

// ParseKeyMaterial parses the serialized byte-array form clients upload and
// the database stores, e.g. "[12,255,0]". Each element must be an integer in
// [0, 255]; anything else is rejected with common.ErrorMalformed. This is a
// strict structured parse, never expression evaluation.
func ParseKeyMaterial(s string) ([]byte, error) {
	var values []int
	if err := json.Unmarshal([]byte(s), &values); err != nil {
		return nil, common.ErrorMalformed
	}
	out := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, common.ErrorMalformed
		}
		out[i] = byte(v)
	}
	return out, nil
}

// SerializeKeyMaterial renders raw bytes in the same wire form
// ParseKeyMaterial accepts.
func SerializeKeyMaterial(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = strconv.Itoa(int(v))
	}
	return "[" + strings.Join(parts, ",") + "]"
}
