package encryption

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAEADRoundTrip(t *testing.T) {
	factories := map[string]AEADFactory{
		"aes-gcm":           NewAESGCM,
		"chacha20-poly1305": NewChaCha20Poly1305,
	}
	key := bytes.Repeat([]byte{7}, 32)

	for name, f := range factories {
		t.Run(name, func(t *testing.T) {
			ct, err := AEADEncrypt(f, key, []byte("hello"), []byte("aad"))
			require.NoError(t, err)

			pt, err := AEADDecrypt(f, key, ct, []byte("aad"))
			require.NoError(t, err)
			assert.Equal(t, []byte("hello"), pt)

			_, err = AEADDecrypt(f, key, ct, []byte("other"))
			assert.Error(t, err)

			_, err = AEADDecrypt(f, key, ct[:4], nil)
			assert.Error(t, err)
		})
	}
}
