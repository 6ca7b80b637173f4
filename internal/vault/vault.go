// Package vault seals small secrets with a key derived from a passphrase.
package vault

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	saltSize  = 16
	keySize   = chacha20poly1305.KeySize
	argonTime = 1
	argonMem  = 64 * 1024
	argonPar  = 4
)

// ErrOpen is returned when a sealed value cannot be opened, either because
// the passphrase is wrong or the data was altered.
var ErrOpen = errors.New("vault: cannot open sealed value")

// Vault seals and opens values with one passphrase.
type Vault struct {
	passphrase []byte
}

// New returns a vault for the passphrase. An empty passphrase is an error.
func New(passphrase string) (*Vault, error) {
	if passphrase == "" {
		return nil, errors.New("vault: passphrase is required")
	}
	return &Vault{passphrase: []byte(passphrase)}, nil
}

func (v *Vault) deriveKey(salt []byte) []byte {
	return argon2.IDKey(v.passphrase, salt, argonTime, argonMem, argonPar, keySize)
}

// Seal encrypts plaintext with a fresh salt and nonce.
// Output is base64 of [16-byte salt][24-byte nonce][XChaCha20-Poly1305 ciphertext].
func (v *Vault) Seal(plaintext []byte) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	aead, err := chacha20poly1305.NewX(v.deriveKey(salt))
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, saltSize+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plaintext, salt)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal.
func (v *Vault) Open(sealed string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	if len(data) < saltSize+chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("%w: sealed value too small", ErrOpen)
	}

	salt := data[:saltSize]
	nonce := data[saltSize : saltSize+chacha20poly1305.NonceSizeX]
	ciphertext := data[saltSize+chacha20poly1305.NonceSizeX:]

	aead, err := chacha20poly1305.NewX(v.deriveKey(salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, salt)
	if err != nil {
		return nil, ErrOpen
	}
	return plaintext, nil
}
