package model

import (
	"fmt"
	"github.com/stretchr/testify/require"
	"testing"
)

// TestDeriveKey_KnownDigest matches the reference sha256 of a URL.
func TestDeriveKey_KnownDigest(t *testing.T) {
	// sha256("abc")
	require.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", DeriveKey("abc"))
}

// TestDeriveKey_Deterministic returns identical keys for repeated calls.
func TestDeriveKey_Deterministic(t *testing.T) {
	url := "https://x/a.jpg"
	first := DeriveKey(url)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, DeriveKey(url))
	}
	require.Len(t, first, 64)
}

// TestDeriveKey_NoCollisions checks a representative corpus of URLs.
func TestDeriveKey_NoCollisions(t *testing.T) {
	seen := make(map[string]string, 10_000)
	for i := 0; i < 10_000; i++ {
		url := fmt.Sprintf("https://cdn.example.com/images/%d/thumb.jpg?w=%d", i, i%7)
		key := DeriveKey(url)
		prev, dup := seen[key]
		require.False(t, dup, "collision between %s and %s", prev, url)
		seen[key] = url
	}
}

// TestNewKey_SameURLSameKey produces equal digests and shard values.
func TestNewKey_SameURLSameKey(t *testing.T) {
	a := NewKey("https://x/a.jpg")
	b := NewKey("https://x/a.jpg")
	c := NewKey("https://x/b.jpg")

	require.True(t, a.IsTheSame(b))
	require.Equal(t, a.Value(), b.Value())
	require.False(t, a.IsTheSame(c))
	require.Equal(t, DeriveKey("https://x/a.jpg"), a.Digest())
}
