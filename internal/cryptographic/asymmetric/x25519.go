package asymmetric

import (
	"encoding/base64"
	"fmt"
	"strings"

	"sealed_socket/internal/cryptographic/dh"
	"sealed_socket/internal/cryptographic/encryption"
	"sealed_socket/internal/cryptographic/kdf"
	"sealed_socket/internal/model"
)

const (
	X25519Driver = "x25519"

	x25519Bits = 256
)

var x25519Info = []byte("sealed_socket x25519 seal")

type (
	// X25519 seals to a Curve25519 public key with a one-off sender key:
	// the shared secret is expanded with HKDF into an AES-256-GCM key.
	// Ciphertext layout is ephemeralPub || nonce || sealed.
	X25519 struct{}
)

func NewX25519(bits uint) (Cipher, error) {
	if bits != x25519Bits {
		return nil, fmt.Errorf("x25519: bits must be %d", x25519Bits)
	}
	return &X25519{}, nil
}

func (c *X25519) SymmetricKeyCapacity() int {
	return x25519Bits / 8
}

func (c *X25519) Encrypt(publicKey, plaintext string) (string, error) {
	recipient, err := decodeX25519Key(publicKey)
	if err != nil {
		return "", err
	}

	ephPriv, ephPub, err := dh.NewX25519KeyPair()
	if err != nil {
		return "", err
	}

	key, err := x25519SealKey(ephPriv, ephPub, recipient)
	if err != nil {
		return "", err
	}

	ct, err := encryption.AEADEncrypt(encryption.NewAESGCM, key, []byte(plaintext), ephPub[:])
	if err != nil {
		return "", fmt.Errorf("x25519 encrypt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(append(ephPub[:], ct...)), nil
}

func (c *X25519) Decrypt(privateKey, ciphertext string) (string, error) {
	priv, err := decodeX25519Key(privateKey)
	if err != nil {
		return "", err
	}
	pub, err := dh.PublicKey(priv)
	if err != nil {
		return "", fmt.Errorf("x25519 decrypt: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("x25519 decrypt: %w", err)
	}
	if len(raw) < dh.KeySize {
		return "", fmt.Errorf("x25519 decrypt: ciphertext too short")
	}
	ephPub := [dh.KeySize]byte(raw[:dh.KeySize])

	shared, err := dh.X25519SharedSecret(priv, ephPub)
	if err != nil {
		return "", fmt.Errorf("x25519 decrypt: %w", err)
	}
	key, err := x25519DeriveKey(shared, ephPub, pub)
	if err != nil {
		return "", err
	}

	pt, err := encryption.AEADDecrypt(encryption.NewAESGCM, key, raw[dh.KeySize:], ephPub[:])
	if err != nil {
		return "", fmt.Errorf("x25519 decrypt: %w", err)
	}
	return string(pt), nil
}

func (c *X25519) GenerateKeyPair() (model.KeyPair, error) {
	priv, pub, err := dh.NewX25519KeyPair()
	if err != nil {
		return model.KeyPair{}, err
	}
	return model.KeyPair{
		PublicKey:  base64.StdEncoding.EncodeToString(pub[:]),
		PrivateKey: base64.StdEncoding.EncodeToString(priv[:]),
	}, nil
}

// ValidateKey seals a capacity-sized sample to key. Public and private
// X25519 keys share an encoding, so the check treats key as a recipient.
func (c *X25519) ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("key cannot be empty")
	}
	_, err := c.Encrypt(key, strings.Repeat("0", c.SymmetricKeyCapacity()))
	return err
}

func x25519SealKey(ephPriv, ephPub, recipient [dh.KeySize]byte) ([]byte, error) {
	shared, err := dh.X25519SharedSecret(ephPriv, recipient)
	if err != nil {
		return nil, fmt.Errorf("x25519 encrypt: %w", err)
	}
	return x25519DeriveKey(shared, ephPub, recipient)
}

func x25519DeriveKey(shared []byte, ephPub, recipient [dh.KeySize]byte) ([]byte, error) {
	salt := make([]byte, 0, 2*dh.KeySize)
	salt = append(salt, ephPub[:]...)
	salt = append(salt, recipient[:]...)

	key := make([]byte, 32)
	if _, err := kdf.HKDF(shared, salt, x25519Info, key); err != nil {
		return nil, fmt.Errorf("x25519 kdf: %w", err)
	}
	return key, nil
}

func decodeX25519Key(key string) ([dh.KeySize]byte, error) {
	var out [dh.KeySize]byte
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(key))
	if err != nil {
		return out, fmt.Errorf("x25519 key: %w", err)
	}
	if len(raw) != dh.KeySize {
		return out, fmt.Errorf("x25519 key: %w", ErrInvalidKey)
	}
	copy(out[:], raw)
	return out, nil
}
