package server

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealed_socket/internal/cryptographic/asymmetric"
	"sealed_socket/internal/model"
	"sealed_socket/internal/protocol/envelope"
	"sealed_socket/internal/protocol/handshake"
	"sealed_socket/internal/protocol/keys"
	"sealed_socket/internal/protocol/messaging"
	"sealed_socket/internal/transport"
)

type fakeRaw struct {
	mu       sync.Mutex
	acks     []transport.AckFunc
	handlers map[string][]transport.Handler
	done     chan struct{}
}

func newFakeRaw() *fakeRaw {
	return &fakeRaw{handlers: make(map[string][]transport.Handler), done: make(chan struct{})}
}

func (f *fakeRaw) Emit(_, _ string, ack transport.AckFunc, _ model.EmitFlags) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks = append(f.acks, ack)
	return nil
}

func (f *fakeRaw) On(event string, h transport.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = append(f.handlers[event], h)
}

func (f *fakeRaw) Off(event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, event)
}

func (f *fakeRaw) ConnectData() string   { return "" }
func (f *fakeRaw) Address() string       { return "127.0.0.1:4242" }
func (f *fakeRaw) Disconnect() error     { return nil }
func (f *fakeRaw) Done() <-chan struct{} { return f.done }
func (f *fakeRaw) Resume()               {}
func (f *fakeRaw) lastAck() transport.AckFunc {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acks[len(f.acks)-1]
}

func (f *fakeRaw) deliver(event, data string) {
	f.mu.Lock()
	hs := append([]transport.Handler(nil), f.handlers[event]...)
	f.mu.Unlock()
	for _, h := range hs {
		h(data, nil)
	}
}

// establishedSocket returns a socket that negotiated gzip, and the
// encryption a client uses to reach it.
func establishedSocket(t *testing.T, raw transport.Socket) (*Socket, model.EncryptionConfig) {
	t.Helper()

	serverPair, err := keys.Generate(asymmetric.X25519Driver, 256)
	require.NoError(t, err)
	static, err := keys.NewStatic(serverPair.PrivateKey)
	require.NoError(t, err)
	peer, err := keys.Generate(asymmetric.X25519Driver, 256)
	require.NoError(t, err)

	enc := model.EncryptionConfig{
		Asymmetric: model.AsymmetricConfig{Driver: asymmetric.X25519Driver, Bits: 256, Key: serverPair.PublicKey},
		Symmetric:  model.SymmetricConfig{Driver: "aes-256-gcm"},
	}

	sock := newSocket(raw, static)
	sock.settle(handshake.Outcome{
		State:   handshake.Established,
		Auth:    model.AuthContext{RemoteID: "ivy", PeerPublicKey: peer.PublicKey},
		Headers: envelope.Describe(enc, model.CompressionConfig{Driver: "gzip"}),
	})
	return sock, enc
}

func TestAckKeepsNegotiatedHeaders(t *testing.T) {
	raw := newFakeRaw()
	sock, enc := establishedSocket(t, raw)

	var acked string
	require.NoError(t, sock.Emit("q", "question", func(data string, err error) {
		require.NoError(t, err)
		acked = data
	}))

	reply, err := envelope.SealString("answer", enc, model.CompressionConfig{Driver: "lz4"})
	require.NoError(t, err)
	raw.lastAck()(reply, nil)

	assert.Equal(t, "answer", acked)
	assert.Equal(t, "gzip", sock.Headers().Compression.Driver)

	var note string
	sock.On("note", func(data string, _ messaging.Reply, err error) {
		require.NoError(t, err)
		note = data
	})
	raw.deliver("note", reply)

	assert.Equal(t, "answer", note)
	assert.Equal(t, "lz4", sock.Headers().Compression.Driver)
}

func TestSettleKeepsKeySetDuringVerification(t *testing.T) {
	sock := newSocket(newFakeRaw(), nil)
	auth := model.AuthContext{RemoteID: "jill", PeerPublicKey: "first"}
	headers := model.Headers{Encryption: model.EncryptionDescriptor{Disabled: true}}

	sock.establish(auth, headers)
	sock.SetPeerPublicKey("rotated")
	sock.settle(handshake.Outcome{State: handshake.Established, Auth: auth, Headers: headers})

	assert.Equal(t, handshake.Established, sock.State())
	assert.Equal(t, "rotated", sock.Auth().PeerPublicKey)
	assert.Equal(t, "jill", sock.ID())
}

func TestSettleTakesOutcomeAuthOnRejection(t *testing.T) {
	sock := newSocket(newFakeRaw(), nil)
	auth := model.AuthContext{RemoteID: "kim", PeerPublicKey: "first"}

	sock.establish(auth, model.Headers{})
	sock.SetPeerPublicKey("rotated")
	sock.settle(handshake.Outcome{State: handshake.Rejected, Auth: auth})

	assert.Equal(t, handshake.Rejected, sock.State())
	assert.Equal(t, "first", sock.Auth().PeerPublicKey)
}
