package infra

// vault.go: symmetric encryption of SUNAT credentials at rest.
// AES-256-GCM with a key derived once per vault through PBKDF2-SHA256.
// Stored format: base64(nonce || ciphertext+tag).

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/pbkdf2"
)

const (
	vaultIterations = 100_000
	vaultKeyLen     = 32
	vaultNonceLen   = 12
)

// ErrCiphertextTooShort is returned when the decoded payload cannot hold a nonce.
var ErrCiphertextTooShort = errors.New("vault: ciphertext too short")

// Vault encrypts and decrypts short secrets with a passphrase-derived key.
// Safe for concurrent use.
type Vault struct {
	passphrase string
	salt       string

	once sync.Once
	aead cipher.AEAD
	err  error
}

func NewVault(passphrase, salt string) *Vault {
	return &Vault{passphrase: passphrase, salt: salt}
}

// cipher derives the key on first use; PBKDF2 is deliberately slow.
func (v *Vault) cipher() (cipher.AEAD, error) {
	v.once.Do(func() {
		key := pbkdf2.Key([]byte(v.passphrase), []byte(v.salt), vaultIterations, vaultKeyLen, sha256.New)
		block, err := aes.NewCipher(key)
		if err != nil {
			v.err = fmt.Errorf("vault: new cipher: %w", err)
			return
		}
		v.aead, v.err = cipher.NewGCMWithNonceSize(block, vaultNonceLen)
	})
	return v.aead, v.err
}

// Encrypt returns base64(nonce || ciphertext). Empty input yields "".
func (v *Vault) Encrypt(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	aead, err := v.cipher()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, vaultNonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("vault: nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Any failure (bad encoding, wrong key, tampering)
// is logged and yields "" so a corrupt credential never blocks a listing.
func (v *Vault) Decrypt(encoded string) string {
	if encoded == "" {
		return ""
	}
	plain, err := v.open(encoded)
	if err != nil {
		log.Error().Err(err).Msg("vault: decrypt failed")
		return ""
	}
	return plain
}

func (v *Vault) open(encoded string) (string, error) {
	aead, err := v.cipher()
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("vault: decode: %w", err)
	}
	if len(raw) < vaultNonceLen+aead.Overhead() {
		return "", ErrCiphertextTooShort
	}
	nonce, sealed := raw[:vaultNonceLen], raw[vaultNonceLen:]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("vault: open: %w", err)
	}
	return string(plain), nil
}
