package cryptox_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aussiebroadwan/docgate/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

var testMasterKey = []byte("0123456789abcdef0123456789abcdef")

func newCipher(t *testing.T, version uint16) *cryptox.DocumentCipher {
	t.Helper()
	c, err := cryptox.NewDocumentCipher(testMasterKey, version)
	require.NoError(t, err)
	return c
}

func TestNewDocumentCipher_Validation(t *testing.T) {
	_, err := cryptox.NewDocumentCipher([]byte("short"), cryptox.DefaultVersion)
	require.ErrorIs(t, err, cryptox.ErrWeakMasterKey)

	_, err = cryptox.NewDocumentCipher(testMasterKey, 99)
	require.ErrorIs(t, err, cryptox.ErrUnsupportedVersion)
}

func TestDocumentCipher_RoundTrip(t *testing.T) {
	meta := cryptox.BlobMeta{ContentType: "application/pdf", Filename: "result.pdf"}

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"empty", []byte{}},
		{"short", []byte("hello")},
		{"binary", bytes.Repeat([]byte{0x00, 0xff, 0x7f}, 1000)},
		{"large", bytes.Repeat([]byte("a"), 1<<20)},
	}

	for _, version := range []uint16{cryptox.VersionAESGCM, cryptox.VersionXChaCha} {
		c := newCipher(t, version)
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				blob, err := c.Encrypt(tt.plaintext, "ORDER-1", meta)
				require.NoError(t, err)
				require.Equal(t, version, blob.Version)
				require.Len(t, blob.AuthTag, 16)
				require.Equal(t, "application/pdf", blob.OriginalContentType)
				require.Equal(t, "result.pdf", blob.OriginalFilename)

				out, err := c.Decrypt(blob, "ORDER-1")
				require.NoError(t, err)
				require.True(t, bytes.Equal(tt.plaintext, out))
			})
		}
	}
}

func TestDocumentCipher_NonceSizes(t *testing.T) {
	blob, err := newCipher(t, cryptox.VersionAESGCM).Encrypt([]byte("x"), "doc", cryptox.BlobMeta{})
	require.NoError(t, err)
	require.Len(t, blob.Nonce, 12)

	blob, err = newCipher(t, cryptox.VersionXChaCha).Encrypt([]byte("x"), "doc", cryptox.BlobMeta{})
	require.NoError(t, err)
	require.Len(t, blob.Nonce, 24)
}

func TestDocumentCipher_FreshNonceEveryCall(t *testing.T) {
	c := newCipher(t, cryptox.DefaultVersion)
	plaintext := []byte("same plaintext")

	a, err := c.Encrypt(plaintext, "ORDER-1", cryptox.BlobMeta{})
	require.NoError(t, err)
	b, err := c.Encrypt(plaintext, "ORDER-1", cryptox.BlobMeta{})
	require.NoError(t, err)

	require.NotEqual(t, a.Nonce, b.Nonce)
	require.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestDocumentCipher_WrongDocumentID(t *testing.T) {
	c := newCipher(t, cryptox.DefaultVersion)

	blob, err := c.Encrypt([]byte("secret"), "ORDER-1", cryptox.BlobMeta{})
	require.NoError(t, err)

	out, err := c.Decrypt(blob, "ORDER-2")
	require.ErrorIs(t, err, cryptox.ErrDecryptFailed)
	require.Nil(t, out)
}

func TestDocumentCipher_WrongMasterKey(t *testing.T) {
	blob, err := newCipher(t, cryptox.DefaultVersion).Encrypt([]byte("secret"), "ORDER-1", cryptox.BlobMeta{})
	require.NoError(t, err)

	other, err := cryptox.NewDocumentCipher([]byte(strings.Repeat("z", 32)), cryptox.DefaultVersion)
	require.NoError(t, err)

	_, err = other.Decrypt(blob, "ORDER-1")
	require.ErrorIs(t, err, cryptox.ErrDecryptFailed)
}

func TestDocumentCipher_TamperDetection(t *testing.T) {
	c := newCipher(t, cryptox.DefaultVersion)
	meta := cryptox.BlobMeta{ContentType: "application/pdf", Filename: "result.pdf"}

	fresh := func(t *testing.T) cryptox.EncryptedBlob {
		blob, err := c.Encrypt([]byte("confidential lab result"), "ORDER-1", meta)
		require.NoError(t, err)
		return blob
	}

	flip := func(b []byte, i int) []byte {
		out := append([]byte(nil), b...)
		out[i] ^= 0x01
		return out
	}

	tests := []struct {
		name   string
		mutate func(b *cryptox.EncryptedBlob)
	}{
		{"ciphertext first byte", func(b *cryptox.EncryptedBlob) { b.Ciphertext = flip(b.Ciphertext, 0) }},
		{"ciphertext last byte", func(b *cryptox.EncryptedBlob) { b.Ciphertext = flip(b.Ciphertext, len(b.Ciphertext)-1) }},
		{"nonce", func(b *cryptox.EncryptedBlob) { b.Nonce = flip(b.Nonce, 3) }},
		{"auth tag", func(b *cryptox.EncryptedBlob) { b.AuthTag = flip(b.AuthTag, 15) }},
		{"truncated tag", func(b *cryptox.EncryptedBlob) { b.AuthTag = b.AuthTag[:8] }},
		{"content type", func(b *cryptox.EncryptedBlob) { b.OriginalContentType = "text/html" }},
		{"filename", func(b *cryptox.EncryptedBlob) { b.OriginalFilename = "result.pdE" }},
		{"version to other suite", func(b *cryptox.EncryptedBlob) { b.Version = cryptox.VersionXChaCha }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob := fresh(t)
			tt.mutate(&blob)

			out, err := c.Decrypt(blob, "ORDER-1")
			require.ErrorIs(t, err, cryptox.ErrDecryptFailed)
			require.Nil(t, out)
		})
	}
}

func TestDocumentCipher_EveryCiphertextByte(t *testing.T) {
	c := newCipher(t, cryptox.DefaultVersion)

	blob, err := c.Encrypt([]byte("0123456789"), "ORDER-1", cryptox.BlobMeta{})
	require.NoError(t, err)

	for i := range blob.Ciphertext {
		mutated := blob
		mutated.Ciphertext = append([]byte(nil), blob.Ciphertext...)
		mutated.Ciphertext[i] ^= 0x80

		_, err := c.Decrypt(mutated, "ORDER-1")
		require.ErrorIs(t, err, cryptox.ErrDecryptFailed, "byte %d", i)
	}
}

func TestDocumentCipher_UnknownVersion(t *testing.T) {
	c := newCipher(t, cryptox.DefaultVersion)

	blob, err := c.Encrypt([]byte("secret"), "ORDER-1", cryptox.BlobMeta{})
	require.NoError(t, err)

	blob.Version = 42
	_, err = c.Decrypt(blob, "ORDER-1")
	require.ErrorIs(t, err, cryptox.ErrUnsupportedVersion)
	require.NotErrorIs(t, err, cryptox.ErrDecryptFailed)
}

func TestDocumentCipher_OpensOlderVersions(t *testing.T) {
	v1 := newCipher(t, cryptox.VersionAESGCM)
	v2 := newCipher(t, cryptox.VersionXChaCha)

	blob, err := v1.Encrypt([]byte("sealed under v1"), "ORDER-1", cryptox.BlobMeta{})
	require.NoError(t, err)

	out, err := v2.Decrypt(blob, "ORDER-1")
	require.NoError(t, err)
	require.Equal(t, []byte("sealed under v1"), out)
}

func TestDocumentCipher_MetadataRoundTrip(t *testing.T) {
	c := newCipher(t, cryptox.DefaultVersion)
	meta := cryptox.BlobMeta{ContentType: "application/pdf", Filename: "result.pdf"}

	blob, err := c.Encrypt([]byte("payload"), "ORDER-1", meta)
	require.NoError(t, err)

	raw, err := blob.MarshalMetadata()
	require.NoError(t, err)
	require.NotContains(t, string(raw), "payload")

	restored, err := cryptox.UnmarshalMetadata(raw)
	require.NoError(t, err)
	require.Nil(t, restored.Ciphertext)

	restored.Ciphertext = blob.Ciphertext
	out, err := c.Decrypt(restored, "ORDER-1")
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), out)

	_, err = cryptox.UnmarshalMetadata([]byte("{"))
	require.Error(t, err)
}

func TestDocumentCipher_RequiresDocumentID(t *testing.T) {
	_, err := newCipher(t, cryptox.DefaultVersion).Encrypt([]byte("x"), "", cryptox.BlobMeta{})
	require.Error(t, err)
}
