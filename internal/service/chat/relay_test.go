package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"sealed_socket/internal/config"
	"sealed_socket/internal/cryptographic/asymmetric"
	"sealed_socket/internal/model"
	"sealed_socket/internal/protocol/keys"
	"sealed_socket/internal/protocol/messaging"
	"sealed_socket/internal/service/client"
	"sealed_socket/internal/service/server"
	"sealed_socket/internal/transport"
	"sealed_socket/internal/transport/websocket"
	"sealed_socket/internal/utils/log"
)

const wait = 3 * time.Second

func TestRelay(t *testing.T) {
	pair, err := keys.Generate(asymmetric.RSADriver, 1024)
	require.NoError(t, err)

	l, err := websocket.NewServer(transport.ServerOptions{})
	require.NoError(t, err)
	ts := httptest.NewServer(l.(*websocket.Server).Handler())
	defer ts.Close()

	srv, err := server.New(config.Server{Port: 3000, Key: pair.PrivateKey}, server.WithListener(l))
	require.NoError(t, err)
	defer srv.Close()

	relay := NewRelay()
	relay.Attach(srv)
	established := make(chan struct{}, 2)
	srv.OnConnection(func(_ *server.Socket, err error) {
		if err == nil {
			established <- struct{}{}
		}
	})

	dial := func(id string) *client.Client {
		c, err := client.New(config.Client{
			Connection: config.Connection{Token: "t", Address: ts.URL},
			Encryption: model.EncryptionConfig{
				Asymmetric: model.AsymmetricConfig{Driver: asymmetric.RSADriver, Bits: 1024, Key: pair.PublicKey},
				Symmetric:  model.SymmetricConfig{Driver: "chacha20-poly1305"},
			},
			Compression: model.CompressionConfig{Driver: "s2"},
		})
		require.NoError(t, err)
		require.NoError(t, c.Connect(context.Background(), id))
		t.Cleanup(func() { c.Disconnect() })

		select {
		case <-established:
		case <-time.After(wait):
			t.Fatalf("%s not established", id)
		}
		return c
	}

	alice := dial("alice")
	bob := dial("bob")
	assert.Equal(t, 2, relay.Count())

	inbox := make(chan Message, 1)
	bob.On(EventMessage, func(data string, _ messaging.Reply, err error) {
		var m Message
		if assert.NoError(t, err) && assert.NoError(t, json.Unmarshal([]byte(data), &m)) {
			inbox <- m
		}
	})
	alice.On(EventMessage, func(data string, _ messaging.Reply, _ error) {
		t.Errorf("sender received its own message %q", data)
	})

	acks := make(chan string, 1)
	require.NoError(t, alice.Timeout(wait).Emit(EventMessage, "Hello, dino", func(data string, err error) {
		assert.NoError(t, err)
		acks <- data
	}))

	select {
	case m := <-inbox:
		assert.Equal(t, Message{From: "alice", Text: "Hello, dino"}, m)
	case <-time.After(wait):
		t.Fatal("bob got nothing")
	}
	select {
	case ack := <-acks:
		assert.Equal(t, AckDelivered, ack)
	case <-time.After(wait):
		t.Fatal("alice got no ack")
	}

	require.NoError(t, bob.Disconnect())
	assert.Eventually(t, func() bool { return relay.Count() == 1 }, wait, 10*time.Millisecond)
}

func TestAcknowledgeLogsFailedReply(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := log.L()
	log.Set(zap.New(core))
	t.Cleanup(func() { log.Set(prev) })

	for _, status := range []string{AckRejected, AckDelivered} {
		acknowledge("lee", func(string) error { return errors.New("gone") }, status)
	}
	acknowledge("lee", nil, AckRejected)

	entries := logs.FilterMessage("ack failed").All()
	require.Len(t, entries, 2)
	assert.Equal(t, AckRejected, entries[0].ContextMap()["status"])
	assert.Equal(t, AckDelivered, entries[1].ContextMap()["status"])
	assert.Equal(t, "lee", entries[0].ContextMap()["id"])
}
