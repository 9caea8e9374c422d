// Package asymmetric holds the public-key ciphers that seal ephemeral
// symmetric keys. Keys and ciphertexts are exchanged as strings.
package asymmetric

import (
	"sealed_socket/internal/cryptographic/registry"
	"sealed_socket/internal/model"
)

type (
	Cipher interface {
		Encrypt(publicKey, plaintext string) (string, error)
		Decrypt(privateKey, ciphertext string) (string, error)
		GenerateKeyPair() (model.KeyPair, error)
		// SymmetricKeyCapacity is the longest symmetric key, in characters,
		// this cipher can seal at its configured size.
		SymmetricKeyCapacity() int
		// ValidateKey runs a round trip through the cipher with key.
		ValidateKey(key string) error
	}

	Factory func(bits uint) (Cipher, error)
)

var drivers = registry.New[Factory]("asymmetric")

func init() {
	Register(RSADriver, NewRSA)
	Register(X25519Driver, NewX25519)
	Register(AgeDriver, NewAge)
}

func Register(name string, f Factory) {
	drivers.Register(name, f)
}

func IsValid(name string) bool {
	return drivers.IsValid(name)
}

func Drivers() []string {
	return drivers.Names()
}

// New resolves name and builds a cipher for the given key size.
func New(name string, bits uint) (Cipher, error) {
	f, err := drivers.Lookup(name)
	if err != nil {
		return nil, err
	}
	return f(bits)
}
