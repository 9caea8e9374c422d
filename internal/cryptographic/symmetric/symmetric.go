// Package symmetric holds the ciphers that encrypt payloads under an
// ephemeral passphrase. The passphrase is a random string whose length is
// set by the asymmetric cipher; each driver derives its raw key from it.
package symmetric

import (
	"sealed_socket/internal/cryptographic/registry"
	"sealed_socket/internal/utils/random"
)

type (
	Cipher interface {
		Encrypt(key, plaintext string) (string, error)
		Decrypt(key, ciphertext string) (string, error)
		GenerateKey(length int) (string, error)
	}

	Factory func() (Cipher, error)
)

var drivers = registry.New[Factory]("symmetric")

func init() {
	Register(AES128GCMDriver, NewAES128GCM)
	Register(AES256GCMDriver, NewAES256GCM)
	Register(ChaCha20Poly1305Driver, NewChaCha20Poly1305)
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

func New(name string) (Cipher, error) {
	f, err := drivers.Lookup(name)
	if err != nil {
		return nil, err
	}
	return f()
}

// GenerateKey returns a random alphanumeric passphrase.
func GenerateKey(length int) (string, error) {
	return random.String(length)
}
