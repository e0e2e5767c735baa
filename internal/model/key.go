package model

import (
	"crypto/sha256"
	"encoding/hex"
	"github.com/zeebo/xxh3"
	"unsafe"
)

// Key identifies an image URL in both cache tiers.
// Digest is a sha256 hex string (file name on disk), v is a shard selector derived from it.
type Key struct {
	digest string
	v      uint64
}

func NewKey(url string) Key {
	digest := DeriveKey(url)
	return Key{digest: digest, v: xxh3.HashString(digest)}
}

// DeriveKey returns the lowercase hex sha256 of url bytes.
func DeriveKey(url string) string {
	sum := sha256.Sum256(unsafe.Slice(unsafe.StringData(url), len(url)))
	return hex.EncodeToString(sum[:])
}

func (k Key) Digest() string { return k.digest }
func (k Key) Value() uint64  { return k.v }
func (k Key) String() string { return k.digest }

func (k Key) IsTheSame(another Key) bool {
	return k.v == another.v && k.digest == another.digest
}
