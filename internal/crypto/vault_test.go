package crypto

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/vantorre/backlogiq-backend/internal/apierr"
	"github.com/vantorre/backlogiq-backend/internal/logger"
)

func testVault(t *testing.T) *Vault {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return NewVault(Config{Key: key}, log)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v := testVault(t)
	cases := []struct {
		name      string
		plaintext string
	}{
		{name: "json_credentials", plaintext: `{"baseUrl":"https://acme.atlassian.net","email":"a@b.c","apiToken":"tok"}`},
		{name: "single_char", plaintext: "x"},
		{name: "unicode", plaintext: "pät-«secret»-密钥"},
		{name: "long", plaintext: strings.Repeat("credential-", 200)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token, err := v.Encrypt(tc.plaintext)
			if err != nil {
				t.Fatalf("encrypt: %v", err)
			}
			parts := strings.Split(token, ":")
			if len(parts) != 4 || parts[0] != "v1" {
				t.Fatalf("token %q is not v1:iv:data:tag", token)
			}
			got, err := v.Decrypt(token)
			if err != nil {
				t.Fatalf("decrypt: %v", err)
			}
			if got != tc.plaintext {
				t.Fatalf("round trip mismatch: got %q want %q", got, tc.plaintext)
			}
		})
	}
}

func TestDecryptRejectsTamperedToken(t *testing.T) {
	v := testVault(t)
	token, err := v.Encrypt("super-secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	parts := strings.Split(token, ":")

	flip := func(b64 string) string {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			t.Fatalf("decode segment: %v", err)
		}
		raw[0] ^= 0x01
		return base64.StdEncoding.EncodeToString(raw)
	}

	cases := []struct {
		name  string
		token string
	}{
		{name: "flipped_iv", token: strings.Join([]string{parts[0], flip(parts[1]), parts[2], parts[3]}, ":")},
		{name: "flipped_data", token: strings.Join([]string{parts[0], parts[1], flip(parts[2]), parts[3]}, ":")},
		{name: "flipped_tag", token: strings.Join([]string{parts[0], parts[1], parts[2], flip(parts[3])}, ":")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := v.Decrypt(tc.token)
			if err == nil {
				t.Fatalf("decrypt of tampered token succeeded with %q", got)
			}
			if !apierr.Is(err, apierr.CodeCrypto) {
				t.Fatalf("want crypto error, got %v", err)
			}
		})
	}
}

func TestDecryptRejectsUnsupportedVersion(t *testing.T) {
	v := testVault(t)
	token, err := v.Encrypt("super-secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	parts := strings.Split(token, ":")
	parts[0] = "v9"
	if _, err := v.Decrypt(strings.Join(parts, ":")); err == nil {
		t.Fatal("decrypt of v9 token succeeded")
	} else if !apierr.Is(err, apierr.CodeCrypto) {
		t.Fatalf("want crypto error, got %v", err)
	}
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	v := testVault(t)
	token, err := v.Encrypt("super-secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	log, _ := logger.New("test")
	other := NewVault(Config{Key: make([]byte, 32)}, log)
	if got, err := other.Decrypt(token); err == nil {
		t.Fatalf("decrypt with wrong key succeeded with %q", got)
	}
}

func TestDisabledVaultPassesThrough(t *testing.T) {
	log, _ := logger.New("test")
	v := NewVault(Config{Disabled: true}, log)
	if v.Enabled() {
		t.Fatal("disabled vault reports enabled")
	}
	token, err := v.Encrypt(`{"apiToken":"tok"}`)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if token != `{"apiToken":"tok"}` {
		t.Fatalf("disabled vault altered value: %q", token)
	}
	got, err := v.Decrypt(token)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got != token {
		t.Fatalf("disabled vault altered value on decrypt: %q", got)
	}
}
