package model

type (
	// KeyPair is owned by the party that generated it. PrivateKey never
	// leaves that process.
	KeyPair struct {
		PublicKey  string
		PrivateKey string
	}
)

func (k KeyPair) Empty() bool {
	return k.PublicKey == "" && k.PrivateKey == ""
}
