package cryptox_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/xs2a/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestIDCipherRoundTrip(t *testing.T) {
	c, err := cryptox.NewIDCipher([]byte("test-key-material"))
	require.NoError(t, err)

	id := []byte("01JA0000000000000000000000")

	sealed1, err := c.Seal(id)
	require.NoError(t, err)
	sealed2, err := c.Seal(id)
	require.NoError(t, err)
	require.NotEqual(t, sealed1, sealed2, "random nonce must produce distinct ciphertexts")

	for _, sealed := range [][]byte{sealed1, sealed2} {
		opened, err := c.Open(sealed)
		require.NoError(t, err)
		require.Equal(t, id, opened)
	}
}

func TestIDCipherRejectsForeignKey(t *testing.T) {
	a, err := cryptox.NewIDCipher([]byte("key-a"))
	require.NoError(t, err)
	b, err := cryptox.NewIDCipher([]byte("key-b"))
	require.NoError(t, err)

	sealed, err := a.Seal([]byte("consent-1"))
	require.NoError(t, err)

	_, err = b.Open(sealed)
	require.ErrorIs(t, err, cryptox.ErrCiphertext)
}

func TestIDCipherRejectsTampering(t *testing.T) {
	c, err := cryptox.NewIDCipher([]byte("key"))
	require.NoError(t, err)

	sealed, err := c.Seal([]byte("payment-1"))
	require.NoError(t, err)

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0xFF

	_, err = c.Open(tampered)
	require.ErrorIs(t, err, cryptox.ErrCiphertext)

	_, err = c.Open([]byte("short"))
	require.ErrorIs(t, err, cryptox.ErrCiphertext)
}

func TestNewIDCipherEmptyKey(t *testing.T) {
	_, err := cryptox.NewIDCipher(nil)
	require.Error(t, err)
}

func TestLoadKeyMaterial(t *testing.T) {
	t.Run("file wins", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "id.key")
		require.NoError(t, os.WriteFile(path, []byte("from-file"), 0600))
		t.Setenv("XS2A_TEST_ID_KEY", "from-env")

		material, ephemeral, err := cryptox.LoadKeyMaterial(path, "XS2A_TEST_ID_KEY")
		require.NoError(t, err)
		require.False(t, ephemeral)
		require.Equal(t, []byte("from-file"), material)
	})

	t.Run("env fallback", func(t *testing.T) {
		t.Setenv("XS2A_TEST_ID_KEY", "from-env")

		material, ephemeral, err := cryptox.LoadKeyMaterial("", "XS2A_TEST_ID_KEY")
		require.NoError(t, err)
		require.False(t, ephemeral)
		require.Equal(t, []byte("from-env"), material)
	})

	t.Run("ephemeral", func(t *testing.T) {
		material, ephemeral, err := cryptox.LoadKeyMaterial("", "")
		require.NoError(t, err)
		require.True(t, ephemeral)
		require.Len(t, material, 32)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := cryptox.LoadKeyMaterial(filepath.Join(t.TempDir(), "nope"), "")
		require.Error(t, err)
	})
}
