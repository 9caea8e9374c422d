// Package envelope seals outgoing payloads into self-describing envelopes
// and opens incoming ones.
//
// Sealing encrypts first and compresses second. When encryption is enabled
// the payload is encrypted under a fresh passphrase whose length is the
// asymmetric cipher's capacity, and the passphrase is sealed to the
// configured public key. The headers describe the drivers used but never
// carry that public key.
package envelope

import (
	"encoding/json"
	"fmt"

	"sealed_socket/internal/cryptographic/asymmetric"
	"sealed_socket/internal/cryptographic/compress"
	"sealed_socket/internal/cryptographic/symmetric"
	"sealed_socket/internal/errs"
	"sealed_socket/internal/model"
)

type (
	encrypted struct {
		Data string `json:"data_enc"`
		Key  string `json:"key_enc"`
	}

	compressed struct {
		Compressed *string `json:"compressed"`
	}

	wireHeaders struct {
		Encryption  *model.EncryptionDescriptor  `json:"encryption"`
		Compression *model.CompressionDescriptor `json:"compression"`
	}

	wireEnvelope struct {
		Data    string       `json:"data"`
		Headers *wireHeaders `json:"headers"`
	}
)

// Describe returns the headers a seal with enc and comp produces.
func Describe(enc model.EncryptionConfig, comp model.CompressionConfig) model.Headers {
	return model.Headers{
		Encryption:  enc.Describe(),
		Compression: comp.Describe(),
	}
}

// Seal wraps data. An empty data produces an envelope without payload.
func Seal(data string, enc model.EncryptionConfig, comp model.CompressionConfig) (*model.Envelope, error) {
	env := &model.Envelope{Headers: Describe(enc, comp)}
	if data == "" {
		return env, nil
	}

	p := data

	if !enc.Disabled {
		asym, err := asymmetric.New(enc.Asymmetric.Driver, enc.Asymmetric.Bits)
		if err != nil {
			return nil, errs.Wrap(errs.KindConfig, err, "encryption.asymmetric")
		}
		sym, err := symmetric.New(enc.Symmetric.Driver)
		if err != nil {
			return nil, errs.Wrap(errs.KindConfig, err, "encryption.symmetric")
		}

		key, err := sym.GenerateKey(asym.SymmetricKeyCapacity())
		if err != nil {
			return nil, errs.Wrap(errs.KindCrypto, err, "generate symmetric key")
		}

		dataEnc, err := sym.Encrypt(key, p)
		if err != nil {
			return nil, errs.Wrap(errs.KindCrypto, err, "encrypt data")
		}
		keyEnc, err := asym.Encrypt(enc.Asymmetric.Key, key)
		if err != nil {
			return nil, errs.Wrap(errs.KindCrypto, err, "encrypt key")
		}

		raw, err := json.Marshal(encrypted{Data: dataEnc, Key: keyEnc})
		if err != nil {
			return nil, fmt.Errorf("marshal encrypted payload: %w", err)
		}
		p = string(raw)
	}

	if !comp.Disabled {
		c, err := compress.New(comp.Driver)
		if err != nil {
			return nil, errs.Wrap(errs.KindConfig, err, "compression")
		}
		packed, err := c.Compress(p)
		if err != nil {
			return nil, fmt.Errorf("compress payload: %w", err)
		}

		raw, err := json.Marshal(compressed{Compressed: &packed})
		if err != nil {
			return nil, fmt.Errorf("marshal compressed payload: %w", err)
		}
		p = string(raw)
	}

	env.Data = p
	return env, nil
}

// SealString seals and serializes in one step.
func SealString(data string, enc model.EncryptionConfig, comp model.CompressionConfig) (string, error) {
	env, err := Seal(data, enc, comp)
	if err != nil {
		return "", err
	}
	return Marshal(env)
}

func Marshal(env *model.Envelope) (string, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return string(raw), nil
}

// Open decodes a serialized envelope. privateKey is only used when the
// headers announce encryption.
func Open(serialized string, privateKey string) (*model.Opened, error) {
	if serialized == "" {
		return nil, errs.Decode("no data has been passed")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(serialized), &fields); err != nil {
		return nil, errs.Wrap(errs.KindDecode, err, "parse envelope")
	}
	if len(fields) == 0 {
		return nil, errs.Decode("no data has been passed")
	}

	var env wireEnvelope
	if err := json.Unmarshal([]byte(serialized), &env); err != nil {
		return nil, errs.Wrap(errs.KindDecode, err, "parse envelope")
	}

	headers, err := validateHeaders(env.Headers)
	if err != nil {
		return nil, err
	}

	out := &model.Opened{Headers: headers}
	if env.Data == "" {
		return out, nil
	}

	p := env.Data

	if !headers.Compression.Disabled {
		c, err := compress.New(headers.Compression.Driver)
		if err != nil {
			return nil, errs.Wrap(errs.KindDecode, err, "invalid compression driver")
		}

		var box compressed
		if err := json.Unmarshal([]byte(p), &box); err != nil {
			return nil, errs.Wrap(errs.KindDecode, err, "parse compressed payload")
		}
		if box.Compressed == nil {
			return nil, errs.Decode("compressed payload is missing")
		}

		p, err = c.Decompress(*box.Compressed)
		if err != nil {
			return nil, errs.Wrap(errs.KindDecode, err, "decompress payload")
		}
	}

	if !headers.Encryption.Disabled {
		asymDesc := headers.Encryption.Asymmetric
		asym, err := asymmetric.New(asymDesc.Driver, asymDesc.Bits)
		if err != nil {
			return nil, errs.Wrap(errs.KindDecode, err, "invalid encryption.asymmetric driver")
		}
		sym, err := symmetric.New(headers.Encryption.Symmetric.Driver)
		if err != nil {
			return nil, errs.Wrap(errs.KindDecode, err, "invalid encryption.symmetric driver")
		}

		var box encrypted
		if err := json.Unmarshal([]byte(p), &box); err != nil {
			return nil, errs.Wrap(errs.KindDecode, err, "parse encrypted payload")
		}

		key, err := asym.Decrypt(privateKey, box.Key)
		if err != nil {
			return nil, errs.Wrap(errs.KindCrypto, err, "decrypt key")
		}
		p, err = sym.Decrypt(key, box.Data)
		if err != nil {
			return nil, errs.Wrap(errs.KindCrypto, err, "decrypt data")
		}
	}

	out.Data = p
	return out, nil
}

func validateHeaders(h *wireHeaders) (model.Headers, error) {
	invalid := errs.Decode("invalid headers")

	if h == nil || h.Encryption == nil || h.Compression == nil {
		return model.Headers{}, invalid
	}

	enc := *h.Encryption
	if enc.Disabled {
		enc = model.EncryptionDescriptor{Disabled: true}
	} else {
		if enc.Asymmetric == nil || enc.Asymmetric.Driver == "" || enc.Asymmetric.Bits == 0 {
			return model.Headers{}, invalid
		}
		if enc.Symmetric == nil || enc.Symmetric.Driver == "" {
			return model.Headers{}, invalid
		}
		if _, err := asymmetric.New(enc.Asymmetric.Driver, enc.Asymmetric.Bits); err != nil {
			return model.Headers{}, errs.Wrap(errs.KindDecode, err, "invalid encryption.asymmetric driver")
		}
		if _, err := symmetric.New(enc.Symmetric.Driver); err != nil {
			return model.Headers{}, errs.Wrap(errs.KindDecode, err, "invalid encryption.symmetric driver")
		}
	}

	comp := *h.Compression
	if !comp.Disabled {
		if comp.Driver == "" {
			return model.Headers{}, invalid
		}
		if _, err := compress.New(comp.Driver); err != nil {
			return model.Headers{}, errs.Wrap(errs.KindDecode, err, "invalid compression driver")
		}
	}

	return model.Headers{Encryption: enc, Compression: comp}, nil
}
