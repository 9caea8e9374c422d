package asymmetric

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"

	"sealed_socket/internal/model"
)

const (
	AgeDriver = "age"

	ageBits           = 256
	ageIdentityPrefix = "AGE-SECRET-KEY-"
)

type (
	// Age seals with age X25519 recipients (age1...) and opens with age
	// identities (AGE-SECRET-KEY-1...). Ciphertext is base64 of the binary
	// age file.
	Age struct{}
)

func NewAge(bits uint) (Cipher, error) {
	if bits != ageBits {
		return nil, fmt.Errorf("age: bits must be %d", ageBits)
	}
	return &Age{}, nil
}

func (c *Age) SymmetricKeyCapacity() int {
	return ageBits / 8
}

func (c *Age) Encrypt(publicKey, plaintext string) (string, error) {
	recipient, err := age.ParseX25519Recipient(strings.TrimSpace(publicKey))
	if err != nil {
		return "", fmt.Errorf("age recipient: %w", err)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return "", fmt.Errorf("age encrypt: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("age encrypt: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("age encrypt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (c *Age) Decrypt(privateKey, ciphertext string) (string, error) {
	identity, err := age.ParseX25519Identity(strings.TrimSpace(privateKey))
	if err != nil {
		return "", fmt.Errorf("age identity: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("age decrypt: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(raw), identity)
	if err != nil {
		return "", fmt.Errorf("age decrypt: %w", err)
	}
	pt, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("age decrypt: %w", err)
	}
	return string(pt), nil
}

func (c *Age) GenerateKeyPair() (model.KeyPair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return model.KeyPair{}, fmt.Errorf("age generate: %w", err)
	}
	return model.KeyPair{
		PublicKey:  identity.Recipient().String(),
		PrivateKey: identity.String(),
	}, nil
}

func (c *Age) ValidateKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	sample := strings.Repeat("0", c.SymmetricKeyCapacity())

	if !strings.HasPrefix(key, ageIdentityPrefix) {
		_, err := c.Encrypt(key, sample)
		return err
	}

	identity, err := age.ParseX25519Identity(key)
	if err != nil {
		return fmt.Errorf("age identity: %w", err)
	}
	ct, err := c.Encrypt(identity.Recipient().String(), sample)
	if err != nil {
		return err
	}
	pt, err := c.Decrypt(key, ct)
	if err != nil {
		return err
	}
	if pt != sample {
		return fmt.Errorf("age: round trip mismatch")
	}
	return nil
}
