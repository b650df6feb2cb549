package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// prefix marks values written by this cipher; anything else is plaintext.
	prefix  = "enc:v1:"
	saltLen = 16
	keyLen  = 32
)

var (
	ErrMasterKeyTooShort = errors.New("encryption master key must be at least 32 characters")
	ErrCiphertext        = errors.New("invalid ciphertext")
)

// Cipher encrypts free text with AES-256-GCM. Each value carries its own salt;
// the key is derived from the master key with PBKDF2-SHA512.
type Cipher struct {
	masterKey  []byte
	iterations int
}

func NewCipher(masterKey string, iterations int) (*Cipher, error) {
	if len(masterKey) < 32 {
		return nil, ErrMasterKeyTooShort
	}
	if iterations <= 0 {
		iterations = 100000
	}
	return &Cipher{masterKey: []byte(masterKey), iterations: iterations}, nil
}

// Encrypt returns "" for blank input.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if strings.TrimSpace(plaintext) == "" {
		return "", nil
	}
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	aead, err := c.aead(salt)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}

	out := make([]byte, 0, saltLen+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, []byte(plaintext), nil)
	return prefix + base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt returns values without the cipher prefix unchanged.
func (c *Cipher) Decrypt(value string) (string, error) {
	encoded, ok := strings.CutPrefix(value, prefix)
	if !ok {
		return value, nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertext, err)
	}
	if len(raw) < saltLen {
		return "", ErrCiphertext
	}
	aead, err := c.aead(raw[:saltLen])
	if err != nil {
		return "", err
	}
	rest := raw[saltLen:]
	if len(rest) < aead.NonceSize()+aead.Overhead() {
		return "", ErrCiphertext
	}
	nonce, sealed := rest[:aead.NonceSize()], rest[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertext, err)
	}
	return string(plain), nil
}

func (c *Cipher) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(c.masterKey, salt, c.iterations, keyLen, sha512.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
