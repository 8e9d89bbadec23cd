package crypto

import (
	"bytes"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func TestNewEncryptor(t *testing.T) {
	tests := []struct {
		name    string
		keyLen  int
		wantErr error
	}{
		{"valid 32 byte key", 32, nil},
		{"short key", 16, ErrInvalidKey},
		{"long key", 64, ErrInvalidKey},
		{"empty key", 0, ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEncryptor(make([]byte, tt.keyLen))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewEncryptor() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	enc, err := NewEncryptor(testKey(1))
	if err != nil {
		t.Fatalf("NewEncryptor() error = %v", err)
	}

	for _, secret := range []string{"sk-live-abc123", "r8:with:colons", "unicode ключ", ""} {
		ciphertext, err := enc.Encrypt(secret)
		if err != nil {
			t.Fatalf("Encrypt(%q) error = %v", secret, err)
		}
		if secret != "" && ciphertext == secret {
			t.Errorf("Encrypt(%q) returned plaintext", secret)
		}
		got, err := enc.Decrypt(ciphertext)
		if err != nil {
			t.Fatalf("Decrypt() error = %v", err)
		}
		if got != secret {
			t.Errorf("roundtrip = %q, want %q", got, secret)
		}
	}
}

func TestEncryptProducesUniqueCiphertexts(t *testing.T) {
	enc, _ := NewEncryptor(testKey(2))

	a, _ := enc.Encrypt("same secret")
	b, _ := enc.Encrypt("same secret")
	if a == b {
		t.Error("two encryptions of the same secret should differ (random nonce)")
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	enc1, _ := NewEncryptor(testKey(3))
	enc2, _ := NewEncryptor(testKey(4))

	ciphertext, _ := enc1.Encrypt("secret")
	if _, err := enc2.Decrypt(ciphertext); err == nil {
		t.Error("Decrypt() with wrong key should fail")
	}
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	enc, _ := NewEncryptor(testKey(5))
	ciphertext, _ := enc.Encrypt("secret")

	raw, _ := base64.StdEncoding.DecodeString(ciphertext)
	raw[len(raw)-1] ^= 0xff
	if _, err := enc.Decrypt(base64.StdEncoding.EncodeToString(raw)); err == nil {
		t.Error("Decrypt() of tampered ciphertext should fail")
	}
}

func TestDecryptInvalidInput(t *testing.T) {
	enc, _ := NewEncryptor(testKey(6))

	if _, err := enc.Decrypt("not base64!!"); err == nil {
		t.Error("Decrypt() of invalid base64 should fail")
	}
	short := base64.StdEncoding.EncodeToString([]byte("tiny"))
	if _, err := enc.Decrypt(short); !errors.Is(err, ErrInvalidCipher) {
		t.Errorf("Decrypt() of short input error = %v, want ErrInvalidCipher", err)
	}
}

func TestGenerateKey(t *testing.T) {
	a, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	b, _ := GenerateKey()
	if len(a) != 32 {
		t.Errorf("key length = %d, want 32", len(a))
	}
	if bytes.Equal(a, b) {
		t.Error("GenerateKey() should return different keys")
	}
}

func TestMask(t *testing.T) {
	tests := map[string]string{
		"sk-live-abcdwxyz": "****wxyz",
		"abcd":             "****",
		"":                 "****",
	}
	for in, want := range tests {
		if got := Mask(in); got != want {
			t.Errorf("Mask(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConcurrentEncryptDecrypt(t *testing.T) {
	enc, _ := NewEncryptor(testKey(7))

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			secret := "secret-" + string(rune('a'+i))
			ct, err := enc.Encrypt(secret)
			if err != nil {
				t.Errorf("Encrypt() error = %v", err)
				return
			}
			pt, err := enc.Decrypt(ct)
			if err != nil || pt != secret {
				t.Errorf("roundtrip = %q, %v", pt, err)
			}
		}(i)
	}
	wg.Wait()
}
