package model

type (
	AsymmetricConfig struct {
		Driver string `yaml:"driver"`
		Bits   uint   `yaml:"bits"`
		// Key is the public key messages are sealed to.
		Key string `yaml:"key"`
	}

	SymmetricConfig struct {
		Driver string `yaml:"driver"`
	}

	// EncryptionConfig selects how outgoing payloads are sealed. When
	// Disabled is set the driver sections are ignored.
	EncryptionConfig struct {
		Disabled   bool             `yaml:"disable"`
		Asymmetric AsymmetricConfig `yaml:"asymmetric"`
		Symmetric  SymmetricConfig  `yaml:"symmetric"`
	}

	CompressionConfig struct {
		Disabled bool   `yaml:"disable"`
		Driver   string `yaml:"driver"`
	}
)

// Describe returns the header form of the configuration, which never
// includes the public key.
func (c EncryptionConfig) Describe() EncryptionDescriptor {
	if c.Disabled {
		return EncryptionDescriptor{Disabled: true}
	}
	return EncryptionDescriptor{
		Asymmetric: &AsymmetricDescriptor{Driver: c.Asymmetric.Driver, Bits: c.Asymmetric.Bits},
		Symmetric:  &SymmetricDescriptor{Driver: c.Symmetric.Driver},
	}
}

func (c CompressionConfig) Describe() CompressionDescriptor {
	return CompressionDescriptor{Disabled: c.Disabled, Driver: c.Driver}
}

// EncryptionFor rebuilds a sealing configuration from received headers,
// targeting publicKey.
func EncryptionFor(d EncryptionDescriptor, publicKey string) EncryptionConfig {
	if d.Disabled || d.Asymmetric == nil || d.Symmetric == nil {
		return EncryptionConfig{Disabled: true}
	}
	return EncryptionConfig{
		Asymmetric: AsymmetricConfig{Driver: d.Asymmetric.Driver, Bits: d.Asymmetric.Bits, Key: publicKey},
		Symmetric:  SymmetricConfig{Driver: d.Symmetric.Driver},
	}
}

func CompressionFor(d CompressionDescriptor) CompressionConfig {
	return CompressionConfig{Disabled: d.Disabled, Driver: d.Driver}
}
