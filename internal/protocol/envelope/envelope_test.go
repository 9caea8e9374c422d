package envelope

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealed_socket/internal/cryptographic/asymmetric"
	"sealed_socket/internal/errs"
	"sealed_socket/internal/model"
	"sealed_socket/internal/testutil"
)

func x25519Encryption(t *testing.T) (model.EncryptionConfig, model.KeyPair) {
	t.Helper()
	c, err := asymmetric.New(asymmetric.X25519Driver, 256)
	require.NoError(t, err)
	keys, err := c.GenerateKeyPair()
	require.NoError(t, err)

	return model.EncryptionConfig{
		Asymmetric: model.AsymmetricConfig{Driver: asymmetric.X25519Driver, Bits: 256, Key: keys.PublicKey},
		Symmetric:  model.SymmetricConfig{Driver: "chacha20-poly1305"},
	}, keys
}

func TestRoundTrip(t *testing.T) {
	x25519, x25519Keys := x25519Encryption(t)

	encryptions := map[string]struct {
		cfg  model.EncryptionConfig
		priv string
	}{
		"none":   {model.EncryptionConfig{Disabled: true}, ""},
		"rsa":    {testutil.RSAEncryption(), testutil.RSA2048.PrivateKey},
		"x25519": {x25519, x25519Keys.PrivateKey},
	}
	compressions := map[string]model.CompressionConfig{
		"none": testutil.NoCompression(),
		"gzip": {Driver: "gzip"},
		"zstd": {Driver: "zstd"},
		"lz4":  {Driver: "lz4"},
		"s2":   {Driver: "s2"},
	}
	plaintexts := []string{"Hello, dino", `{"nested":"json","n":1}`, strings.Repeat("ü", 300)}

	for encName, enc := range encryptions {
		for compName, comp := range compressions {
			t.Run(encName+"/"+compName, func(t *testing.T) {
				for _, p := range plaintexts {
					raw, err := SealString(p, enc.cfg, comp)
					require.NoError(t, err)

					opened, err := Open(raw, enc.priv)
					require.NoError(t, err)
					assert.Equal(t, p, opened.Data)
					assert.Equal(t, Describe(enc.cfg, comp), opened.Headers)
				}
			})
		}
	}
}

func TestSealEncryptedHelloDino(t *testing.T) {
	raw, err := SealString("Hello, dino", testutil.RSAEncryption(), testutil.NoCompression())
	require.NoError(t, err)
	assert.NotContains(t, raw, "Hello, dino")

	opened, err := Open(raw, testutil.RSA2048.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, "Hello, dino", opened.Data)
}

func TestHeadersNeverCarryPublicKey(t *testing.T) {
	enc := testutil.RSAEncryption()
	for _, data := range []string{"", "payload"} {
		env, err := Seal(data, enc, model.CompressionConfig{Driver: "gzip"})
		require.NoError(t, err)

		headers, err := json.Marshal(env.Headers)
		require.NoError(t, err)
		assert.NotContains(t, string(headers), "PUBLIC KEY")
		assert.NotContains(t, string(headers), "MIIBIjANBgkqhkiG9w0BAQEFAAOCAQ8AMIIBCgKCAQEApKm8TWe2")
	}
}

func TestSealWithoutData(t *testing.T) {
	enc := testutil.RSAEncryption()
	env, err := Seal("", enc, testutil.NoCompression())
	require.NoError(t, err)
	assert.Empty(t, env.Data)

	raw, err := Marshal(env)
	require.NoError(t, err)
	assert.NotContains(t, raw, `"data"`)

	opened, err := Open(raw, "")
	require.NoError(t, err)
	assert.Empty(t, opened.Data)
	assert.Equal(t, Describe(enc, testutil.NoCompression()), opened.Headers)
}

func TestOpenUnregisteredCompressionDriver(t *testing.T) {
	raw := `{"data":"{\"compressed\":\"AAAA\"}","headers":{"encryption":{"disabled":true},"compression":{"disabled":false,"driver":"zz"}}}`

	_, err := Open(raw, "")
	assert.ErrorIs(t, err, errs.ErrDecode)
}

func TestOpenUnregisteredEncryptionDrivers(t *testing.T) {
	tests := map[string]string{
		"asymmetric": `{"data":"x","headers":{"encryption":{"disabled":false,"asymmetric":{"driver":"zz","bits":1024},"symmetric":{"driver":"aes-128-gcm"}},"compression":{"disabled":true,"driver":""}}}`,
		"symmetric":  `{"data":"x","headers":{"encryption":{"disabled":false,"asymmetric":{"driver":"rsa","bits":1024},"symmetric":{"driver":"zz"}},"compression":{"disabled":true,"driver":""}}}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Open(raw, testutil.RSA2048.PrivateKey)
			assert.ErrorIs(t, err, errs.ErrDecode)
		})
	}
}

func TestOpenRejectsOutOfRangeBits(t *testing.T) {
	for _, data := range []string{"hi", ""} {
		raw, err := SealString(data, testutil.RSAEncryption(), testutil.NoCompression())
		require.NoError(t, err)
		require.Contains(t, raw, `"bits":2048`)

		for _, bits := range []string{"4611686018427387904", "16385", "512"} {
			t.Run(bits, func(t *testing.T) {
				_, err := Open(strings.Replace(raw, `"bits":2048`, `"bits":`+bits, 1), testutil.RSA2048.PrivateKey)
				assert.ErrorIs(t, err, errs.ErrDecode)
			})
		}
	}
}

func TestOpenMalformed(t *testing.T) {
	tests := map[string]string{
		"empty":                   "",
		"not json":                "hello",
		"empty object":            "{}",
		"array":                   "[1,2]",
		"missing headers":         `{"data":"x"}`,
		"missing compression":     `{"data":"x","headers":{"encryption":{"disabled":true}}}`,
		"missing encryption":      `{"data":"x","headers":{"compression":{"disabled":true}}}`,
		"missing asymmetric":      `{"headers":{"encryption":{"disabled":false,"symmetric":{"driver":"aes-128-gcm"}},"compression":{"disabled":true}}}`,
		"missing bits":            `{"headers":{"encryption":{"disabled":false,"asymmetric":{"driver":"rsa"},"symmetric":{"driver":"aes-128-gcm"}},"compression":{"disabled":true}}}`,
		"missing symmetric":       `{"headers":{"encryption":{"disabled":false,"asymmetric":{"driver":"rsa","bits":1024}},"compression":{"disabled":true}}}`,
		"missing compress driver": `{"headers":{"encryption":{"disabled":true},"compression":{"disabled":false}}}`,
		"compressed not wrapped":  `{"data":"plain","headers":{"encryption":{"disabled":true},"compression":{"disabled":false,"driver":"gzip"}}}`,
		"encrypted not wrapped":   `{"data":"plain","headers":{"encryption":{"disabled":false,"asymmetric":{"driver":"rsa","bits":1024},"symmetric":{"driver":"aes-128-gcm"}},"compression":{"disabled":true}}}`,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Open(raw, testutil.RSA2048.PrivateKey)
			assert.ErrorIs(t, err, errs.ErrDecode)
		})
	}
}

func TestOpenWithWrongKey(t *testing.T) {
	raw, err := SealString("secret", testutil.RSAEncryption(), testutil.NoCompression())
	require.NoError(t, err)

	rsa, err := asymmetric.New(asymmetric.RSADriver, 1024)
	require.NoError(t, err)
	other, err := rsa.GenerateKeyPair()
	require.NoError(t, err)

	_, err = Open(raw, other.PrivateKey)
	assert.ErrorIs(t, err, errs.ErrCrypto)
	assert.NotErrorIs(t, err, errs.ErrDecode)
}

func TestOpenCorruptedCiphertext(t *testing.T) {
	env, err := Seal("secret", testutil.RSAEncryption(), testutil.NoCompression())
	require.NoError(t, err)

	var box encrypted
	require.NoError(t, json.Unmarshal([]byte(env.Data), &box))
	box.Data = box.Data[:len(box.Data)-8] + "AAAAAAA="
	raw, err := json.Marshal(box)
	require.NoError(t, err)
	env.Data = string(raw)

	serialized, err := Marshal(env)
	require.NoError(t, err)

	_, err = Open(serialized, testutil.RSA2048.PrivateKey)
	assert.ErrorIs(t, err, errs.ErrCrypto)
}

func TestSealUnregisteredDriver(t *testing.T) {
	enc := testutil.RSAEncryption()
	enc.Symmetric.Driver = "zz"
	_, err := Seal("x", enc, testutil.NoCompression())
	assert.ErrorIs(t, err, errs.ErrConfig)

	_, err = Seal("x", model.EncryptionConfig{Disabled: true}, model.CompressionConfig{Driver: "zz"})
	assert.ErrorIs(t, err, errs.ErrConfig)
}

func TestSealBadPublicKey(t *testing.T) {
	enc := testutil.RSAEncryption()
	enc.Asymmetric.Key = "garbage"
	_, err := Seal("x", enc, testutil.NoCompression())
	assert.ErrorIs(t, err, errs.ErrCrypto)
}
