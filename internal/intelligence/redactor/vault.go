package redactor

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"

	"github.com/leaselens/leaselens/pkg/errors"
)

// Vault encrypts redaction mappings with per-document AES-256-GCM keys
// from a KeyStore. Ciphertexts are nonce||sealed-JSON.
type Vault struct {
	keys *KeyStore
}

// NewVault wraps a key store in a mapping vault.
func NewVault(keys *KeyStore) *Vault {
	return &Vault{keys: keys}
}

// EncryptMapping serializes and encrypts a mapping under the document's
// key, creating the key on first use.
func (v *Vault) EncryptMapping(ctx context.Context, documentID string, mapping Mapping) ([]byte, error) {
	key, err := v.keys.GetOrCreate(ctx, documentID)
	if err != nil {
		return nil, err
	}

	plaintext, err := json.Marshal(mapping)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEncryptionFailed, "marshal mapping")
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEncryptionFailed, "generate nonce")
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// DecryptMapping recovers a mapping previously sealed for documentID.
// An unknown document id fails hard rather than returning an empty mapping.
func (v *Vault) DecryptMapping(ctx context.Context, documentID string, ciphertext []byte) (Mapping, error) {
	key, err := v.keys.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New(errors.ErrCodeDecryptionFailed, "ciphertext shorter than nonce")
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDecryptionFailed, "open ciphertext")
	}

	var mapping Mapping
	if err := json.Unmarshal(plaintext, &mapping); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDecryptionFailed, "unmarshal mapping")
	}
	return mapping, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEncryptionFailed, "init cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEncryptionFailed, "init gcm")
	}
	return gcm, nil
}
