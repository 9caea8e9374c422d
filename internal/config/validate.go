package config

import (
	"strings"

	"sealed_socket/internal/cryptographic/asymmetric"
	"sealed_socket/internal/cryptographic/compress"
	"sealed_socket/internal/cryptographic/symmetric"
	"sealed_socket/internal/errs"
	"sealed_socket/internal/model"
	"sealed_socket/internal/protocol/handshake"
	"sealed_socket/internal/transport"
)

const maxPort = 65535

func (s *Server) Validate() error {
	if s.Port <= 0 || s.Port > maxPort {
		return errs.Config("port %d is out of range", s.Port)
	}
	if strings.TrimSpace(s.Key) == "" {
		return errs.Config("key cannot be empty")
	}
	if !handshake.Policy(s.OnFailedAuthentication).Valid() {
		return errs.Config("on_failed_authentication %q must be %q or %q",
			s.OnFailedAuthentication, handshake.PolicyKeep, handshake.PolicyDisconnect)
	}
	if !transport.IsValid(s.Transport.Driver) {
		return errs.Config("transport.driver %q is invalid", s.Transport.Driver)
	}
	if s.Presence.TTL < 0 {
		return errs.Config("presence.ttl cannot be negative")
	}
	return nil
}

func (c *Client) Validate() error {
	if c.Connection.Token == "" {
		return errs.Config("connection.token cannot be empty")
	}
	if c.Connection.Address == "" {
		return errs.Config("connection.address cannot be empty")
	}
	if !transport.IsValid(c.Connection.Driver) {
		return errs.Config("connection.driver %q is invalid", c.Connection.Driver)
	}
	if err := ValidateEncryption(c.Encryption); err != nil {
		return err
	}
	return ValidateCompression(c.Compression)
}

// ValidateEncryption checks driver names and runs the asymmetric key
// through its driver.
func ValidateEncryption(enc model.EncryptionConfig) error {
	if enc.Disabled {
		return nil
	}

	a := enc.Asymmetric
	if !asymmetric.IsValid(a.Driver) {
		return errs.Config("encryption.asymmetric.driver %q is not valid", a.Driver)
	}
	if a.Bits == 0 {
		return errs.Config("encryption.asymmetric.bits cannot be zero")
	}
	if strings.TrimSpace(a.Key) == "" {
		return errs.Config("encryption.asymmetric.key cannot be empty")
	}

	c, err := asymmetric.New(a.Driver, a.Bits)
	if err != nil {
		return errs.Wrap(errs.KindConfig, err, "encryption.asymmetric")
	}
	if err := c.ValidateKey(a.Key); err != nil {
		return errs.Wrap(errs.KindConfig, err, "encryption.asymmetric.key is not valid")
	}

	if !symmetric.IsValid(enc.Symmetric.Driver) {
		return errs.Config("encryption.symmetric.driver %q is not valid", enc.Symmetric.Driver)
	}
	return nil
}

func ValidateCompression(comp model.CompressionConfig) error {
	if comp.Disabled {
		return nil
	}
	if !compress.IsValid(comp.Driver) {
		return errs.Config("compression.driver %q is invalid", comp.Driver)
	}
	return nil
}
