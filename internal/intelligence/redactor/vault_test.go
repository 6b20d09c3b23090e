package redactor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaselens/leaselens/pkg/errors"
)

func newTestKeyStore(t *testing.T) *KeyStore {
	t.Helper()
	ks, err := OpenKeyStore(filepath.Join(t.TempDir(), "pii_keys.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ks.Close() })
	return ks
}

func TestKeyStoreGetOrCreateStable(t *testing.T) {
	ctx := context.Background()
	ks := newTestKeyStore(t)

	first, err := ks.GetOrCreate(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, first, 32)

	second, err := ks.GetOrCreate(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := ks.GetOrCreate(ctx, "doc-2")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestKeyStoreGetUnknownIsHardError(t *testing.T) {
	ks := newTestKeyStore(t)

	_, err := ks.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeKeyNotFound))
}

func TestKeyStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pii_keys.db")

	ks, err := OpenKeyStore(path)
	require.NoError(t, err)
	key, err := ks.GetOrCreate(ctx, "doc-1")
	require.NoError(t, err)
	require.NoError(t, ks.Close())

	reopened, err := OpenKeyStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, key, got)
}

func TestKeyStoreDelete(t *testing.T) {
	ctx := context.Background()
	ks := newTestKeyStore(t)

	_, err := ks.GetOrCreate(ctx, "doc-1")
	require.NoError(t, err)
	require.NoError(t, ks.Delete(ctx, "doc-1"))

	_, err = ks.Get(ctx, "doc-1")
	assert.True(t, errors.IsCode(err, errors.ErrCodeKeyNotFound))
}

func TestVaultRoundTrip(t *testing.T) {
	ctx := context.Background()
	vault := NewVault(newTestKeyStore(t))

	mapping := Mapping{
		CategorySSN:        {"123-45-6789"},
		CategoryPersonName: {"John Smith", "Mary Jones"},
	}

	sealed, err := vault.EncryptMapping(ctx, "doc-1", mapping)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "123-45-6789")

	got, err := vault.DecryptMapping(ctx, "doc-1", sealed)
	require.NoError(t, err)
	assert.Equal(t, mapping, got)
}

func TestVaultDecryptUnknownDocument(t *testing.T) {
	ctx := context.Background()
	vault := NewVault(newTestKeyStore(t))

	sealed, err := vault.EncryptMapping(ctx, "doc-1", Mapping{CategoryEmail: {"a@b.co"}})
	require.NoError(t, err)

	_, err = vault.DecryptMapping(ctx, "doc-other", sealed)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeKeyNotFound))
}

func TestVaultDecryptTamperedCiphertext(t *testing.T) {
	ctx := context.Background()
	vault := NewVault(newTestKeyStore(t))

	sealed, err := vault.EncryptMapping(ctx, "doc-1", Mapping{CategoryPhone: {"(617) 555-0134"}})
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0xFF
	_, err = vault.DecryptMapping(ctx, "doc-1", sealed)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDecryptionFailed))
}

func TestVaultDecryptTruncatedCiphertext(t *testing.T) {
	ctx := context.Background()
	vault := NewVault(newTestKeyStore(t))

	_, err := vault.EncryptMapping(ctx, "doc-1", Mapping{})
	require.NoError(t, err)

	_, err = vault.DecryptMapping(ctx, "doc-1", []byte{0x01, 0x02})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDecryptionFailed))
}
