package db

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"strings"

	"github.com/go-faster/errors"
)

// EncryptionKeyEnv names the environment variable holding the at-rest key.
const EncryptionKeyEnv = "CREDENTIAL_ENCRYPTION_KEY"

var encryptionKey []byte

// InitEncryptionKey installs the base64-encoded 32-byte key used to seal API
// keys at rest. An empty value disables encryption.
func InitEncryptionKey(raw string) error {
	if raw == "" {
		encryptionKey = nil
		return nil
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(key) != 32 {
		return errors.Errorf("%s must be 32 bytes base64-encoded (got %d bytes)", EncryptionKeyEnv, len(key))
	}
	encryptionKey = key
	return nil
}

// EncryptionEnabled reports whether API keys are sealed on save.
func EncryptionEnabled() bool { return len(encryptionKey) > 0 }

const encryptionVersion = "v1"

// encrypt encrypts plaintext with AES-256-GCM.
// Returns "v1:" + base64-encoded nonce+ciphertext.
func encrypt(plaintext []byte) (string, error) {
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, plaintext, nil) // nonce || ciphertext || tag
	return encryptionVersion + ":" + base64.StdEncoding.EncodeToString(sealed), nil
}

// decrypt decrypts a "v1:base64data" string.
func decrypt(ciphertext string) ([]byte, error) {
	data := strings.TrimPrefix(ciphertext, encryptionVersion+":")

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}
	return gcm.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
}

func isSealed(v string) bool {
	return strings.HasPrefix(v, encryptionVersion+":")
}

// SealAPIKey returns the stored form of an API key. Without a key installed
// the value is stored as is.
func SealAPIKey(apiKey string) (string, error) {
	if !EncryptionEnabled() || isSealed(apiKey) {
		return apiKey, nil
	}
	return encrypt([]byte(apiKey))
}

// OpenAPIKey reverses SealAPIKey. Plaintext values pass through so stores
// written before encryption was enabled keep loading.
func OpenAPIKey(stored string) (string, error) {
	if !isSealed(stored) {
		return stored, nil
	}
	if !EncryptionEnabled() {
		return "", errors.Errorf("API key is encrypted but %s is not set", EncryptionKeyEnv)
	}
	plain, err := decrypt(stored)
	if err != nil {
		return "", errors.Wrap(err, "decrypt API key")
	}
	return string(plain), nil
}
