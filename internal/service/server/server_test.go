package server

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"sealed_socket/internal/config"
	"sealed_socket/internal/cryptographic/asymmetric"
	"sealed_socket/internal/errs"
	"sealed_socket/internal/model"
	"sealed_socket/internal/protocol/envelope"
	"sealed_socket/internal/protocol/handshake"
	"sealed_socket/internal/protocol/keys"
	"sealed_socket/internal/protocol/messaging"
	"sealed_socket/internal/service/client"
	"sealed_socket/internal/transport"
	"sealed_socket/internal/transport/websocket"
)

const wait = 3 * time.Second

type outcome struct {
	sock *Socket
	err  error
}

type fakeAudit struct {
	mu       sync.Mutex
	attempts []model.AuthAttempt
}

func (f *fakeAudit) Record(_ context.Context, a *model.AuthAttempt) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = primitive.NewObjectID()
	f.attempts = append(f.attempts, *a)
	return a.ID, nil
}

func (f *fakeAudit) states() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var states []string
	for _, a := range f.attempts {
		states = append(states, a.State)
	}
	return states
}

type fixture struct {
	server    *Server
	url       string
	serverPub string
	outcomes  chan outcome
	audit     *fakeAudit
}

func newFixture(t *testing.T, mutate func(*config.Server)) *fixture {
	t.Helper()

	pair, err := keys.Generate(asymmetric.X25519Driver, 256)
	require.NoError(t, err)

	cfg := config.Server{Port: 3000, Key: pair.PrivateKey}
	if mutate != nil {
		mutate(&cfg)
	}

	l, err := websocket.NewServer(transport.ServerOptions{})
	require.NoError(t, err)
	ts := httptest.NewServer(l.(*websocket.Server).Handler())

	audit := &fakeAudit{}
	srv, err := New(cfg, WithListener(l), WithAudit(audit))
	require.NoError(t, err)

	f := &fixture{
		server:    srv,
		url:       ts.URL,
		serverPub: pair.PublicKey,
		outcomes:  make(chan outcome, 8),
		audit:     audit,
	}
	srv.OnConnection(func(s *Socket, err error) {
		f.outcomes <- outcome{s, err}
	})

	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return f
}

func (f *fixture) clientConfig(token string) config.Client {
	return config.Client{
		Connection: config.Connection{Token: token, Address: f.url},
		Encryption: model.EncryptionConfig{
			Asymmetric: model.AsymmetricConfig{Driver: asymmetric.X25519Driver, Bits: 256, Key: f.serverPub},
			Symmetric:  model.SymmetricConfig{Driver: "aes-256-gcm"},
		},
		Compression: model.CompressionConfig{Driver: "gzip"},
	}
}

func (f *fixture) connect(t *testing.T, token, id string) *client.Client {
	t.Helper()
	c, err := client.New(f.clientConfig(token))
	require.NoError(t, err)
	require.NoError(t, c.Connect(context.Background(), id))
	t.Cleanup(func() { c.Disconnect() })
	return c
}

func (f *fixture) next(t *testing.T) outcome {
	t.Helper()
	select {
	case o := <-f.outcomes:
		return o
	case <-time.After(wait):
		t.Fatal("no connection outcome")
		return outcome{}
	}
}

func disconnected(c *client.Client) <-chan string {
	ch := make(chan string, 1)
	c.On(transport.EventDisconnect, func(reason string, _ messaging.Reply, _ error) {
		select {
		case ch <- reason:
		default:
		}
	})
	return ch
}

func TestNewInvalidConfig(t *testing.T) {
	_, err := New(config.Server{Port: 3000})
	assert.ErrorIs(t, err, errs.ErrConfig)

	_, err = New(config.Server{Port: 3000, Key: "k", OnFailedAuthentication: "shrug"})
	assert.ErrorIs(t, err, errs.ErrConfig)
}

func TestEstablished(t *testing.T) {
	f := newFixture(t, nil)
	f.server.SetConnectVerification(func(_ context.Context, s *Socket) (bool, error) {
		return s.Token() == "12345", nil
	})

	c, err := client.New(f.clientConfig("12345"))
	require.NoError(t, err)
	c.SetExtra("hello there")
	require.NoError(t, c.Connect(context.Background(), "alice"))
	defer c.Disconnect()
	assert.Equal(t, handshake.Connected, c.State())

	o := f.next(t)
	require.NoError(t, o.err)
	assert.Equal(t, handshake.Established, o.sock.State())
	assert.Equal(t, "alice", o.sock.ID())
	assert.Equal(t, "hello there", o.sock.Extra())
	assert.NotEmpty(t, o.sock.Auth().PeerPublicKey)
	assert.Equal(t, "gzip", o.sock.Headers().Compression.Driver)

	addr, ok, err := f.server.Online(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, o.sock.Address(), addr)
	assert.Equal(t, []string{"established"}, f.audit.states())
}

func TestRefuseUnsignedID(t *testing.T) {
	f := newFixture(t, func(cfg *config.Server) { cfg.RefuseUnsignedID = true })

	c, err := client.New(f.clientConfig("t"))
	require.NoError(t, err)
	gone := disconnected(c)
	require.NoError(t, c.Connect(context.Background(), ""))
	defer c.Disconnect()

	o := f.next(t)
	require.Error(t, o.err)
	assert.ErrorIs(t, o.err, errs.ErrAuth)
	assert.Equal(t, handshake.AuthFailed, o.sock.State())

	select {
	case <-gone:
	case <-time.After(wait):
		t.Fatal("client was not disconnected")
	}
	assert.Equal(t, []string{"auth_failed"}, f.audit.states())
}

func TestGeneratedID(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t, "t", "")

	o := f.next(t)
	require.NoError(t, o.err)
	assert.Len(t, o.sock.ID(), 16)
}

func TestTokenVerification(t *testing.T) {
	tests := []struct {
		token   string
		wantErr bool
	}{
		{"12345", false},
		{"54321", true},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			f := newFixture(t, nil)
			f.server.SetConnectVerification(func(_ context.Context, s *Socket) (bool, error) {
				return s.Token() == "12345", nil
			})

			c, err := client.New(f.clientConfig(tt.token))
			require.NoError(t, err)
			gone := disconnected(c)
			require.NoError(t, c.Connect(context.Background(), "bob"))
			defer c.Disconnect()

			o := f.next(t)
			if !tt.wantErr {
				require.NoError(t, o.err)
				return
			}

			assert.ErrorIs(t, o.err, errs.ErrAuth)
			assert.Equal(t, handshake.Rejected, o.sock.State())
			select {
			case <-gone:
			case <-time.After(wait):
				t.Fatal("rejected client was not disconnected")
			}
		})
	}
}

func TestVerificationErrorKeepPolicy(t *testing.T) {
	f := newFixture(t, func(cfg *config.Server) { cfg.OnFailedAuthentication = "keep" })
	f.server.SetConnectVerification(func(context.Context, *Socket) (bool, error) {
		return false, errors.New("token store down")
	})

	c := f.connect(t, "t", "carol")
	o := f.next(t)
	assert.ErrorIs(t, o.err, errs.ErrAuth)
	assert.Contains(t, o.err.Error(), "token store down")

	// the socket stays open and still speaks the protocol
	got := make(chan string, 1)
	o.sock.On("ping", func(data string, reply messaging.Reply, err error) {
		assert.NoError(t, err)
		got <- data
	})
	require.NoError(t, c.Emit("ping", "still here", nil))
	select {
	case data := <-got:
		assert.Equal(t, "still here", data)
	case <-time.After(wait):
		t.Fatal("kept socket did not receive")
	}
}

func TestRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	f.server.OnConnection(func(s *Socket, err error) {
		if err != nil {
			return
		}
		s.On("echo", func(data string, reply messaging.Reply, err error) {
			if assert.NoError(t, err) && assert.NotNil(t, reply) {
				assert.NoError(t, reply("echo: "+data))
			}
		})
	})

	c := f.connect(t, "t", "dave")
	pushed := make(chan string, 1)
	c.On("push", func(data string, _ messaging.Reply, err error) {
		assert.NoError(t, err)
		pushed <- data
	})

	o := f.next(t)
	require.NoError(t, o.err)

	acks := make(chan string, 1)
	require.NoError(t, c.Emit("echo", "Hello, dino", func(data string, err error) {
		assert.NoError(t, err)
		acks <- data
	}))
	select {
	case data := <-acks:
		assert.Equal(t, "echo: Hello, dino", data)
	case <-time.After(wait):
		t.Fatal("no ack")
	}

	require.NoError(t, o.sock.Emit("push", "from server", nil))
	select {
	case data := <-pushed:
		assert.Equal(t, "from server", data)
	case <-time.After(wait):
		t.Fatal("no push")
	}
}

func TestAckTimeout(t *testing.T) {
	f := newFixture(t, nil)
	f.server.OnConnection(func(s *Socket, err error) {
		s.On("ignored", func(string, messaging.Reply, error) {})
	})

	c := f.connect(t, "t", "erin")
	require.NoError(t, f.next(t).err)

	timeouts := make(chan error, 1)
	require.NoError(t, c.Timeout(200*time.Millisecond).Emit("ignored", "anyone?", func(data string, err error) {
		assert.Empty(t, data)
		timeouts <- err
	}))

	select {
	case err := <-timeouts:
		assert.ErrorIs(t, err, transport.ErrAckTimeout)
	case <-time.After(wait):
		t.Fatal("ack did not time out")
	}
}

func TestPeerKeyRotation(t *testing.T) {
	f := newFixture(t, nil)
	c := f.connect(t, "t", "frank")

	o := f.next(t)
	require.NoError(t, o.err)

	rotated, err := keys.Generate(asymmetric.X25519Driver, 256)
	require.NoError(t, err)
	o.sock.SetPeerPublicKey(rotated.PublicKey)

	type received struct {
		data string
		err  error
	}
	got := make(chan received, 1)
	c.On("rotated", func(data string, _ messaging.Reply, err error) {
		got <- received{data, err}
	})
	require.NoError(t, o.sock.Emit("rotated", "secret", nil))

	select {
	case r := <-got:
		// the client no longer holds the key the payload was sealed to
		assert.ErrorIs(t, r.err, errs.ErrCrypto)
		opened, err := envelope.Open(r.data, rotated.PrivateKey)
		require.NoError(t, err)
		assert.Equal(t, "secret", opened.Data)
	case <-time.After(wait):
		t.Fatal("no message")
	}
}

func TestHeadersFollowLastMessage(t *testing.T) {
	f := newFixture(t, nil)
	received := make(chan struct{}, 1)
	f.server.OnConnection(func(s *Socket, err error) {
		s.On("note", func(string, messaging.Reply, error) { received <- struct{}{} })
	})

	cfg := f.clientConfig("t")
	cfg.Compression = model.CompressionConfig{Driver: "zstd"}
	c, err := client.New(cfg)
	require.NoError(t, err)
	require.NoError(t, c.Connect(context.Background(), "gina"))
	defer c.Disconnect()

	o := f.next(t)
	require.NoError(t, o.err)
	assert.Equal(t, "zstd", o.sock.Headers().Compression.Driver)

	require.NoError(t, c.Emit("note", "x", nil))
	select {
	case <-received:
	case <-time.After(wait):
		t.Fatal("no message")
	}
	assert.Equal(t, "zstd", o.sock.Headers().Compression.Driver)
	assert.False(t, o.sock.Headers().Encryption.Disabled)
}

func TestPresenceClearedOnDisconnect(t *testing.T) {
	f := newFixture(t, nil)
	c := f.connect(t, "t", "hank")
	require.NoError(t, f.next(t).err)

	require.NoError(t, c.Disconnect())
	assert.Eventually(t, func() bool {
		_, ok, err := f.server.Online(context.Background(), "hank")
		return err == nil && !ok
	}, wait, 10*time.Millisecond)
}

func TestMemoryPresence(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPresence()

	_, ok, err := p.Get(ctx, "x")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.Set(ctx, "x", "1.2.3.4:5"))
	addr, ok, err := p.Get(ctx, "x")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1.2.3.4:5", addr)

	require.NoError(t, p.Delete(ctx, "x", "9.9.9.9:9"))
	_, ok, _ = p.Get(ctx, "x")
	assert.True(t, ok)

	require.NoError(t, p.Delete(ctx, "x", "1.2.3.4:5"))
	_, ok, _ = p.Get(ctx, "x")
	assert.False(t, ok)
}

type watchedPresence struct {
	*MemoryPresence
	deleted chan string
}

func (w *watchedPresence) Delete(ctx context.Context, id, address string) error {
	err := w.MemoryPresence.Delete(ctx, id, address)
	w.deleted <- address
	return err
}

func TestPresenceSurvivesReplacedSocket(t *testing.T) {
	pair, err := keys.Generate(asymmetric.X25519Driver, 256)
	require.NoError(t, err)

	l, err := websocket.NewServer(transport.ServerOptions{})
	require.NoError(t, err)
	ts := httptest.NewServer(l.(*websocket.Server).Handler())
	defer ts.Close()

	presence := &watchedPresence{MemoryPresence: NewMemoryPresence(), deleted: make(chan string, 4)}
	srv, err := New(config.Server{Port: 3000, Key: pair.PrivateKey}, WithListener(l), WithPresence(presence))
	require.NoError(t, err)
	defer srv.Close()

	f := &fixture{server: srv, url: ts.URL, serverPub: pair.PublicKey, outcomes: make(chan outcome, 8)}
	srv.OnConnection(func(s *Socket, err error) {
		f.outcomes <- outcome{s, err}
	})

	first := f.connect(t, "t", "ivy")
	o1 := f.next(t)
	require.NoError(t, o1.err)

	f.connect(t, "t", "ivy")
	o2 := f.next(t)
	require.NoError(t, o2.err)
	require.NotEqual(t, o1.sock.Address(), o2.sock.Address())

	require.NoError(t, first.Disconnect())
	select {
	case addr := <-presence.deleted:
		assert.Equal(t, o1.sock.Address(), addr)
	case <-time.After(wait):
		t.Fatal("first socket was not cleaned up")
	}

	addr, ok, err := srv.Online(context.Background(), "ivy")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, o2.sock.Address(), addr)
}

func TestVerifierRotatesPeerKey(t *testing.T) {
	f := newFixture(t, nil)
	rotated, err := keys.Generate(asymmetric.X25519Driver, 256)
	require.NoError(t, err)

	f.server.SetConnectVerification(func(_ context.Context, s *Socket) (bool, error) {
		s.SetPeerPublicKey(rotated.PublicKey)
		return true, nil
	})

	f.connect(t, "t", "jill")
	o := f.next(t)
	require.NoError(t, o.err)
	assert.Equal(t, rotated.PublicKey, o.sock.Auth().PeerPublicKey)
}
