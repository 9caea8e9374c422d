package model

type (
	AsymmetricDescriptor struct {
		Driver string `json:"driver"`
		Bits   uint   `json:"bits"`
	}

	SymmetricDescriptor struct {
		Driver string `json:"driver"`
	}

	// EncryptionDescriptor tells the receiver which drivers sealed a payload.
	// It has no field for a key: the peer's public key is bound to the
	// connection during the handshake and never travels with a message.
	EncryptionDescriptor struct {
		Disabled   bool                  `json:"disabled"`
		Asymmetric *AsymmetricDescriptor `json:"asymmetric,omitempty"`
		Symmetric  *SymmetricDescriptor  `json:"symmetric,omitempty"`
	}

	CompressionDescriptor struct {
		Disabled bool   `json:"disabled"`
		Driver   string `json:"driver"`
	}

	Headers struct {
		Encryption  EncryptionDescriptor  `json:"encryption"`
		Compression CompressionDescriptor `json:"compression"`
	}

	// Envelope is the unit handed to the transport. Data is empty only when
	// the sealed message carried no data.
	Envelope struct {
		Data    string  `json:"data,omitempty"`
		Headers Headers `json:"headers"`
	}

	// Opened is the result of decoding an envelope.
	Opened struct {
		Data    string
		Headers Headers
	}
)

// Clone returns a deep copy so callers can keep headers beyond the lifetime
// of the message they arrived with.
func (h Headers) Clone() Headers {
	out := h
	if h.Encryption.Asymmetric != nil {
		a := *h.Encryption.Asymmetric
		out.Encryption.Asymmetric = &a
	}
	if h.Encryption.Symmetric != nil {
		s := *h.Encryption.Symmetric
		out.Encryption.Symmetric = &s
	}
	return out
}
