package cipher

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"

	"rps_arena/internal/domain"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, KeySize)
}

func mustCipher(t *testing.T, key []byte) *MoveCipher {
	t.Helper()
	c, err := New(key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestRoundTrip(t *testing.T) {
	c := mustCipher(t, testKey(1))
	for _, m := range []domain.Move{domain.MoveRock, domain.MovePaper, domain.MoveScissors} {
		ct, err := c.Encrypt(m)
		if err != nil {
			t.Fatalf("encrypt %s: %v", m, err)
		}
		got, err := c.Decrypt(ct)
		if err != nil {
			t.Fatalf("decrypt %s: %v", m, err)
		}
		if got != m {
			t.Fatalf("round trip: want %s got %s", m, got)
		}
	}
}

func TestNonceFreshness(t *testing.T) {
	c := mustCipher(t, testKey(2))
	a, err := c.Encrypt(domain.MoveRock)
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Encrypt(domain.MoveRock)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatalf("two encryptions of the same move produced identical ciphertext")
	}
}

func TestTamperedByteFails(t *testing.T) {
	c := mustCipher(t, testKey(3))
	ct, err := c.Encrypt(domain.MovePaper)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(string(ct))
	if err != nil {
		t.Fatal(err)
	}
	for i := range raw {
		mutated := append([]byte(nil), raw...)
		mutated[i] ^= 0x01
		_, err := c.Decrypt(domain.CipherText(base64.RawURLEncoding.EncodeToString(mutated)))
		if !errors.Is(err, ErrDecryption) {
			t.Fatalf("byte %d: expected ErrDecryption, got %v", i, err)
		}
	}
}

func TestDecryptRejects(t *testing.T) {
	c := mustCipher(t, testKey(4))
	foreign := mustCipher(t, testKey(5))
	foreignCT, err := foreign.Encrypt(domain.MoveScissors)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		in   domain.CipherText
	}{
		{"empty", ""},
		{"not base64", "***"},
		{"too short", domain.CipherText(base64.RawURLEncoding.EncodeToString([]byte("short")))},
		{"foreign key", foreignCT},
	}
	for _, tc := range cases {
		if _, err := c.Decrypt(tc.in); !errors.Is(err, ErrDecryption) {
			t.Fatalf("%s: expected ErrDecryption, got %v", tc.name, err)
		}
	}
}

func TestDecryptRejectsNonMovePlaintext(t *testing.T) {
	c := mustCipher(t, testKey(6))
	nonce := make([]byte, c.aead.NonceSize())
	sealed := c.aead.Seal(nonce, nonce, []byte("lizard"), nil)
	_, err := c.Decrypt(domain.CipherText(base64.RawURLEncoding.EncodeToString(sealed)))
	if !errors.Is(err, ErrDecryption) {
		t.Fatalf("expected ErrDecryption, got %v", err)
	}
}

func TestBadKey(t *testing.T) {
	if _, err := New([]byte("short")); !errors.Is(err, ErrEncryption) {
		t.Fatalf("expected ErrEncryption, got %v", err)
	}
	if _, err := NewFromBase64("!!not-base64!!"); !errors.Is(err, ErrEncryption) {
		t.Fatalf("expected ErrEncryption, got %v", err)
	}
}

func TestGenerateKeyUsable(t *testing.T) {
	k, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewFromBase64(k); err != nil {
		t.Fatalf("generated key rejected: %v", err)
	}
}

func TestEncryptInvalidMove(t *testing.T) {
	c := mustCipher(t, testKey(7))
	if _, err := c.Encrypt(domain.Move("lizard")); !errors.Is(err, ErrEncryption) {
		t.Fatalf("expected ErrEncryption, got %v", err)
	}
}
