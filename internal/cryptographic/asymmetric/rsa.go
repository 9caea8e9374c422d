package asymmetric

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"sealed_socket/internal/model"
)

const (
	RSADriver = "rsa"

	rsaMinBits = 1024
	rsaMaxBits = 16384
	// OAEP with SHA-256 spends 2*32+2 bytes of the modulus on padding.
	rsaOAEPOverhead = 2*sha256.Size + 2
)

var ErrInvalidKey = errors.New("invalid key")

type (
	RSA struct {
		bits uint
	}
)

func NewRSA(bits uint) (Cipher, error) {
	if bits < rsaMinBits {
		return nil, fmt.Errorf("rsa: bits cannot be lower than %d", rsaMinBits)
	}
	if bits > rsaMaxBits {
		return nil, fmt.Errorf("rsa: bits cannot be higher than %d", rsaMaxBits)
	}
	return &RSA{bits: bits}, nil
}

func (c *RSA) SymmetricKeyCapacity() int {
	return int(c.bits/8) - rsaOAEPOverhead
}

func (c *RSA) Encrypt(publicKey, plaintext string) (string, error) {
	pub, err := parseRSAPublicKey(publicKey)
	if err != nil {
		return "", err
	}
	ct, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, []byte(plaintext), nil)
	if err != nil {
		return "", fmt.Errorf("rsa encrypt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ct), nil
}

func (c *RSA) Decrypt(privateKey, ciphertext string) (string, error) {
	priv, err := parseRSAPrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	ct, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("rsa decrypt: %w", err)
	}
	pt, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, ct, nil)
	if err != nil {
		return "", fmt.Errorf("rsa decrypt: %w", err)
	}
	return string(pt), nil
}

func (c *RSA) GenerateKeyPair() (model.KeyPair, error) {
	key, err := rsa.GenerateKey(rand.Reader, int(c.bits))
	if err != nil {
		return model.KeyPair{}, fmt.Errorf("rsa generate: %w", err)
	}

	pubASN1, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return model.KeyPair{}, err
	}

	return model.KeyPair{
		PublicKey:  string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubASN1})),
		PrivateKey: string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})),
	}, nil
}

// ValidateKey accepts a public or a private key. A public key must seal a
// capacity-sized message; a private key must also open what its public half
// sealed.
func (c *RSA) ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("key cannot be empty")
	}

	sample := strings.Repeat("0", c.SymmetricKeyCapacity())

	if priv, err := parseRSAPrivateKey(key); err == nil {
		pubASN1, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
		if err != nil {
			return err
		}
		pub := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubASN1}))
		ct, err := c.Encrypt(pub, sample)
		if err != nil {
			return err
		}
		pt, err := c.Decrypt(key, ct)
		if err != nil {
			return err
		}
		if pt != sample {
			return fmt.Errorf("rsa: round trip mismatch")
		}
		return nil
	}

	_, err := c.Encrypt(key, sample)
	return err
}

func parseRSAPublicKey(key string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(key))
	if block == nil {
		return nil, fmt.Errorf("rsa public key: %w", ErrInvalidKey)
	}

	if block.Type == "RSA PUBLIC KEY" {
		return x509.ParsePKCS1PublicKey(block.Bytes)
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("rsa public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("rsa public key: %w", ErrInvalidKey)
	}
	return rsaPub, nil
}

func parseRSAPrivateKey(key string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(key))
	if block == nil {
		return nil, fmt.Errorf("rsa private key: %w", ErrInvalidKey)
	}

	if priv, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return priv, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("rsa private key: %w", err)
	}
	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("rsa private key: %w", ErrInvalidKey)
	}
	return priv, nil
}
