// Package cipher hides player moves at rest with AES-256-GCM.
//
// A ciphertext is the unpadded base64url encoding of nonce || sealed, where
// the nonce is freshly drawn for every call, so the same move never encrypts
// to the same string twice.
package cipher

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"rps_arena/internal/domain"
)

const KeySize = 32

var (
	ErrEncryption = errors.New("move encryption failed")
	ErrDecryption = errors.New("move decryption failed")
)

var encoding = base64.RawURLEncoding

// MoveCipher encrypts and decrypts moves with a single static key.
type MoveCipher struct {
	aead gocipher.AEAD
	rand io.Reader
}

// New builds a cipher from a raw 32 byte key.
func New(key []byte) (*MoveCipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", ErrEncryption, KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryption, err)
	}
	aead, err := gocipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryption, err)
	}
	return &MoveCipher{aead: aead, rand: rand.Reader}, nil
}

// NewFromBase64 decodes a standard or url-safe base64 key, as stored in MOVE_CIPHER_KEY.
func NewFromBase64(encoded string) (*MoveCipher, error) {
	encoded = strings.TrimSpace(encoded)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if key, err := enc.DecodeString(encoded); err == nil {
			return New(key)
		}
	}
	return nil, fmt.Errorf("%w: key is not valid base64", ErrEncryption)
}

// GenerateKey returns a new random key encoded for MOVE_CIPHER_KEY.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Encrypt seals move under a fresh nonce.
func (c *MoveCipher) Encrypt(move domain.Move) (domain.CipherText, error) {
	if !move.Valid() {
		return "", fmt.Errorf("%w: %w", ErrEncryption, domain.ErrInvalidMove)
	}
	nonceSize := c.aead.NonceSize()
	buf := make([]byte, nonceSize, nonceSize+len(move)+c.aead.Overhead())
	if _, err := io.ReadFull(c.rand, buf); err != nil {
		return "", fmt.Errorf("%w: nonce: %v", ErrEncryption, err)
	}
	sealed := c.aead.Seal(buf, buf[:nonceSize], []byte(move), nil)
	return domain.CipherText(encoding.EncodeToString(sealed)), nil
}

// Decrypt opens ct. Any malformed, foreign or tampered input fails with ErrDecryption.
func (c *MoveCipher) Decrypt(ct domain.CipherText) (domain.Move, error) {
	raw, err := encoding.DecodeString(string(ct))
	if err != nil {
		return "", fmt.Errorf("%w: malformed ciphertext", ErrDecryption)
	}
	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize+c.aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryption)
	}
	plain, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrDecryption)
	}
	move := domain.Move(plain)
	if !move.Valid() {
		return "", fmt.Errorf("%w: %w", ErrDecryption, domain.ErrInvalidMove)
	}
	return move, nil
}
