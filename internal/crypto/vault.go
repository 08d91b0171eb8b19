package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/vantorre/backlogiq-backend/internal/apierr"
	"github.com/vantorre/backlogiq-backend/internal/logger"
)

const (
	tokenVersion = "v1"
	gcmTagSize   = 16
	keySize      = 32

	pbkdf2Iterations = 210000
)

// Config is the process-wide encryption configuration, built once in main
// and injected into the vault. Disabled means no key was configured: secrets
// are stored as the plaintext the caller handed in. That degraded mode is
// deliberate for local/dev setups and callers must not assume ciphertext.
type Config struct {
	Key      []byte
	Disabled bool
}

// ConfigFromEnv reads CREDENTIALS_ENCRYPTION_KEY (base64, 32 raw bytes) or,
// failing that, derives a key from CREDENTIALS_ENCRYPTION_PASSPHRASE and
// CREDENTIALS_ENCRYPTION_SALT via PBKDF2. Neither set yields the disabled
// config.
func ConfigFromEnv(log *logger.Logger) (Config, error) {
	raw := strings.TrimSpace(os.Getenv("CREDENTIALS_ENCRYPTION_KEY"))
	if raw != "" {
		key, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return Config{}, fmt.Errorf("CREDENTIALS_ENCRYPTION_KEY is not valid base64: %w", err)
		}
		if len(key) != keySize {
			return Config{}, fmt.Errorf("CREDENTIALS_ENCRYPTION_KEY must decode to %d bytes, got %d", keySize, len(key))
		}
		return Config{Key: key}, nil
	}
	passphrase := strings.TrimSpace(os.Getenv("CREDENTIALS_ENCRYPTION_PASSPHRASE"))
	if passphrase != "" {
		salt := strings.TrimSpace(os.Getenv("CREDENTIALS_ENCRYPTION_SALT"))
		if salt == "" {
			return Config{}, fmt.Errorf("CREDENTIALS_ENCRYPTION_SALT is required when using a passphrase")
		}
		key := pbkdf2.Key([]byte(passphrase), []byte(salt), pbkdf2Iterations, keySize, sha256.New)
		return Config{Key: key}, nil
	}
	if log != nil {
		log.Warn("No credentials encryption key configured, secrets will be stored in plaintext")
	}
	return Config{Disabled: true}, nil
}

// Vault encrypts and decrypts credential blobs with AES-256-GCM. Tokens are
// self-describing: version:ivBase64:dataBase64:tagBase64, so rotated keys or
// a future algorithm change can coexist with old rows.
type Vault struct {
	cfg Config
	log *logger.Logger
}

func NewVault(cfg Config, baseLog *logger.Logger) *Vault {
	return &Vault{cfg: cfg, log: baseLog.With("service", "Vault")}
}

// Enabled reports whether encryption is configured. Callers that must not
// run in the degraded plaintext mode check this at startup.
func (v *Vault) Enabled() bool { return !v.cfg.Disabled }

func (v *Vault) Encrypt(plaintext string) (string, error) {
	if v.cfg.Disabled {
		return plaintext, nil
	}
	if len(v.cfg.Key) != keySize {
		return "", apierr.Crypto("encryption key is misconfigured")
	}
	block, err := aes.NewCipher(v.cfg.Key)
	if err != nil {
		return "", apierr.Crypto("init cipher: %v", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", apierr.Crypto("init gcm: %v", err)
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return "", apierr.Crypto("generate iv: %v", err)
	}
	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	data := sealed[:len(sealed)-gcmTagSize]
	tag := sealed[len(sealed)-gcmTagSize:]
	return strings.Join([]string{
		tokenVersion,
		base64.StdEncoding.EncodeToString(iv),
		base64.StdEncoding.EncodeToString(data),
		base64.StdEncoding.EncodeToString(tag),
	}, ":"), nil
}

func (v *Vault) Decrypt(token string) (string, error) {
	if v.cfg.Disabled {
		return token, nil
	}
	if len(v.cfg.Key) != keySize {
		return "", apierr.Crypto("encryption key is misconfigured")
	}
	parts := strings.Split(token, ":")
	if len(parts) != 4 {
		return "", apierr.Crypto("malformed credential token")
	}
	if parts[0] != tokenVersion {
		return "", apierr.Crypto("unsupported credential token version %q", parts[0])
	}
	iv, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", apierr.Crypto("malformed credential token iv")
	}
	data, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return "", apierr.Crypto("malformed credential token data")
	}
	tag, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return "", apierr.Crypto("malformed credential token tag")
	}
	block, err := aes.NewCipher(v.cfg.Key)
	if err != nil {
		return "", apierr.Crypto("init cipher: %v", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", apierr.Crypto("init gcm: %v", err)
	}
	if len(iv) != gcm.NonceSize() {
		return "", apierr.Crypto("malformed credential token iv")
	}
	plaintext, err := gcm.Open(nil, iv, append(data, tag...), nil)
	if err != nil {
		// Wrong key or a tampered token. GCM gives no further detail.
		return "", apierr.Crypto("credential token failed authentication")
	}
	return string(plaintext), nil
}
