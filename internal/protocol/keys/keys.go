// Package keys owns key material for the lifetime of a process or a
// connection: the server's static private key and each client
// connection's ephemeral keypair.
package keys

import (
	"fmt"
	"strings"
	"sync"

	"sealed_socket/internal/cryptographic/asymmetric"
	"sealed_socket/internal/errs"
	"sealed_socket/internal/model"
)

type (
	// Ephemeral is a client's keypair for one connection. Replies from the
	// server are sealed to its public half.
	Ephemeral struct {
		mu   sync.RWMutex
		pair model.KeyPair
	}

	// Static holds the server's long-lived private key. Its public half is
	// distributed to clients out of band.
	Static struct {
		privateKey string
	}
)

// Rotate replaces the current pair with a fresh one for enc. With
// encryption disabled the pair becomes empty.
func (e *Ephemeral) Rotate(enc model.EncryptionConfig) (model.KeyPair, error) {
	var pair model.KeyPair

	if !enc.Disabled {
		c, err := asymmetric.New(enc.Asymmetric.Driver, enc.Asymmetric.Bits)
		if err != nil {
			return model.KeyPair{}, errs.Wrap(errs.KindConfig, err, "encryption.asymmetric")
		}
		pair, err = c.GenerateKeyPair()
		if err != nil {
			return model.KeyPair{}, errs.Wrap(errs.KindCrypto, err, "generate ephemeral keypair")
		}
	}

	e.mu.Lock()
	e.pair = pair
	e.mu.Unlock()
	return pair, nil
}

func (e *Ephemeral) PublicKey() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pair.PublicKey
}

func (e *Ephemeral) PrivateKey() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pair.PrivateKey
}

// Discard forgets the pair once the connection ends.
func (e *Ephemeral) Discard() {
	e.mu.Lock()
	e.pair = model.KeyPair{}
	e.mu.Unlock()
}

func NewStatic(privateKey string) (*Static, error) {
	if strings.TrimSpace(privateKey) == "" {
		return nil, errs.Config("key cannot be empty")
	}
	return &Static{privateKey: privateKey}, nil
}

func (s *Static) PrivateKey() string {
	return s.privateKey
}

// Generate creates a keypair for an asymmetric driver, for provisioning a
// server's static key.
func Generate(driver string, bits uint) (model.KeyPair, error) {
	c, err := asymmetric.New(driver, bits)
	if err != nil {
		return model.KeyPair{}, fmt.Errorf("generate %s keypair: %w", driver, err)
	}
	return c.GenerateKeyPair()
}
