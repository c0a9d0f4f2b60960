package cache

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Key derivation parameters are fixed so a passphrase always yields the same
// key across restarts.
const (
	keySize       = 32
	kdfIterations = 100_000
)

var kdfSalt = []byte("foxess_mcp_cache_salt_v1")

// ErrDecrypt is returned when a payload cannot be authenticated or decoded,
// typically because the key changed since the payload was written.
var ErrDecrypt = errors.New("cache: decrypt failed")

// Cipher encrypts and decrypts disk-cache payloads with AES-256-GCM.
// A random nonce is prepended to each ciphertext.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from a 32-byte key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("cache: key must be %d bytes, got %d", keySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

// NewCipherFromPassphrase derives a key from an operator passphrase with
// PBKDF2-SHA256 and a static salt, so the same passphrase re-opens an
// existing cache.
func NewCipherFromPassphrase(passphrase string) (*Cipher, error) {
	if passphrase == "" {
		return nil, errors.New("cache: empty passphrase")
	}
	key := pbkdf2.Key([]byte(passphrase), kdfSalt, kdfIterations, keySize, sha256.New)
	return NewCipher(key)
}

// NewEphemeralCipher generates a random session key. Cached payloads written
// with it do not survive a restart.
func NewEphemeralCipher() (*Cipher, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return NewCipher(key)
}

// Encrypt seals plain and returns nonce||ciphertext.
func (c *Cipher) Encrypt(plain []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, plain, nil), nil
}

// Decrypt opens nonce||ciphertext. Any tampering or key mismatch yields
// ErrDecrypt.
func (c *Cipher) Decrypt(blob []byte) ([]byte, error) {
	if len(blob) < c.aead.NonceSize() {
		return nil, ErrDecrypt
	}
	nonce, ciphertext := blob[:c.aead.NonceSize()], blob[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plain, nil
}
