package symmetric

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"sealed_socket/internal/cryptographic/encryption"
	"sealed_socket/internal/cryptographic/kdf"
)

const (
	AES128GCMDriver        = "aes-128-gcm"
	AES256GCMDriver        = "aes-256-gcm"
	ChaCha20Poly1305Driver = "chacha20-poly1305"

	saltSize = 16

	pbkdf2Iterations = 32767
)

var hkdfInfo = []byte("sealed_socket symmetric key")

type (
	deriveFunc func(passphrase, salt []byte) ([]byte, error)

	// passphraseCipher derives a fresh key per message from the passphrase
	// and a random salt. Ciphertext layout is salt || nonce || sealed.
	passphraseCipher struct {
		name   string
		derive deriveFunc
		aead   encryption.AEADFactory
	}
)

func NewAES128GCM() (Cipher, error) {
	return &passphraseCipher{
		name:   AES128GCMDriver,
		derive: pbkdf2Derive(16),
		aead:   encryption.NewAESGCM,
	}, nil
}

func NewAES256GCM() (Cipher, error) {
	return &passphraseCipher{
		name:   AES256GCMDriver,
		derive: pbkdf2Derive(32),
		aead:   encryption.NewAESGCM,
	}, nil
}

func NewChaCha20Poly1305() (Cipher, error) {
	return &passphraseCipher{
		name:   ChaCha20Poly1305Driver,
		derive: hkdfDerive(32),
		aead:   encryption.NewChaCha20Poly1305,
	}, nil
}

func pbkdf2Derive(keyLen int) deriveFunc {
	return func(passphrase, salt []byte) ([]byte, error) {
		return kdf.PBKDF2(passphrase, salt, pbkdf2Iterations, keyLen), nil
	}
}

func hkdfDerive(keyLen int) deriveFunc {
	return func(passphrase, salt []byte) ([]byte, error) {
		key := make([]byte, keyLen)
		if _, err := kdf.HKDF(passphrase, salt, hkdfInfo, key); err != nil {
			return nil, err
		}
		return key, nil
	}
}

func (c *passphraseCipher) GenerateKey(length int) (string, error) {
	return GenerateKey(length)
}

func (c *passphraseCipher) Encrypt(key, plaintext string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%s: key cannot be empty", c.name)
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("%s: salt: %w", c.name, err)
	}

	raw, err := c.derive([]byte(key), salt)
	if err != nil {
		return "", fmt.Errorf("%s: derive: %w", c.name, err)
	}

	ct, err := encryption.AEADEncrypt(c.aead, raw, []byte(plaintext), salt)
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.name, err)
	}
	return base64.StdEncoding.EncodeToString(append(salt, ct...)), nil
}

func (c *passphraseCipher) Decrypt(key, ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.name, err)
	}
	if len(data) < saltSize {
		return "", fmt.Errorf("%s: ciphertext too short", c.name)
	}
	salt := data[:saltSize]

	raw, err := c.derive([]byte(key), salt)
	if err != nil {
		return "", fmt.Errorf("%s: derive: %w", c.name, err)
	}

	pt, err := encryption.AEADDecrypt(c.aead, raw, data[saltSize:], salt)
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.name, err)
	}
	return string(pt), nil
}
