package itemcrypto_test

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/sharelock/sharelock-go/internal/components/share/itemcrypto"
	"github.com/sharelock/sharelock-go/internal/components/share/spec"
)

// seal encrypts plaintext with AES-256-GCM into a wire blob.
func seal(t *testing.T, key, plaintext []byte) spec.EncryptedBlob {
	t.Helper()

	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		t.Fatalf("NewGCM: %v", err)
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		t.Fatalf("rand: %v", err)
	}

	return spec.EncryptedBlob{
		Enc:  itemcrypto.EncA256GCM,
		IV:   base64.RawURLEncoding.EncodeToString(iv),
		Data: base64.RawURLEncoding.EncodeToString(gcm.Seal(nil, iv, plaintext, nil)),
	}
}

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestDecrypt_RoundTrip(t *testing.T) {
	key := testKey()
	overview := []byte(`{"title":"Staging DB","url":"https://db.example.com"}`)
	details := []byte(`{"notesPlain":"rotate quarterly","sections":[{"title":"credentials","fields":[{"n":"username","k":"string","v":"admin"},{"n":"port","k":"string","v":5432}]}]}`)

	item, err := itemcrypto.NewDecryptor().Decrypt(seal(t, key, overview), seal(t, key, details), key)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}

	if item.Title != "Staging DB" {
		t.Errorf("expected title 'Staging DB', got %q", item.Title)
	}
	if len(item.URLs) != 1 || item.URLs[0] != "https://db.example.com" {
		t.Errorf("unexpected urls: %v", item.URLs)
	}
	if item.Notes != "rotate quarterly" {
		t.Errorf("unexpected notes: %q", item.Notes)
	}
	if len(item.Sections) != 1 || len(item.Sections[0].Fields) != 2 {
		t.Fatalf("unexpected sections: %+v", item.Sections)
	}
	// numeric field value coerced to string
	if got := item.Sections[0].Fields[1].Value; got != "5432" {
		t.Errorf("expected port value '5432', got %q", got)
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	key := testKey()
	other := make([]byte, 32)
	copy(other, key)
	other[0] ^= 0xff

	overview := seal(t, key, []byte(`{"title":"x"}`))
	details := seal(t, key, []byte(`{}`))

	if _, err := itemcrypto.NewDecryptor().Decrypt(overview, details, other); !errors.Is(err, itemcrypto.ErrDecryptFailed) {
		t.Errorf("expected ErrDecryptFailed, got %v", err)
	}
}

func TestDecrypt_TamperedCiphertext(t *testing.T) {
	key := testKey()
	overview := seal(t, key, []byte(`{"title":"x"}`))

	data, _ := base64.RawURLEncoding.DecodeString(overview.Data)
	data[0] ^= 0x01
	overview.Data = base64.RawURLEncoding.EncodeToString(data)

	if _, err := itemcrypto.NewDecryptor().Decrypt(overview, seal(t, key, []byte(`{}`)), key); !errors.Is(err, itemcrypto.ErrDecryptFailed) {
		t.Errorf("expected ErrDecryptFailed, got %v", err)
	}
}

func TestOpen_UnsupportedEnc(t *testing.T) {
	blob := seal(t, testKey(), []byte(`{}`))
	blob.Enc = "A128CBC"

	if _, err := itemcrypto.Open(blob, testKey()); !errors.Is(err, itemcrypto.ErrUnsupportedEnc) {
		t.Errorf("expected ErrUnsupportedEnc, got %v", err)
	}
}

func TestOpen_MalformedBlob(t *testing.T) {
	blob := seal(t, testKey(), []byte(`{}`))
	blob.IV = "!not-base64!"

	if _, err := itemcrypto.Open(blob, testKey()); !errors.Is(err, itemcrypto.ErrBadBlob) {
		t.Errorf("expected ErrBadBlob, got %v", err)
	}
}

func TestDecrypt_NonJSONPlaintext(t *testing.T) {
	key := testKey()
	overview := seal(t, key, []byte("not json"))
	details := seal(t, key, []byte(`{}`))

	if _, err := itemcrypto.NewDecryptor().Decrypt(overview, details, key); err == nil {
		t.Error("expected error for non-JSON plaintext")
	}
}
