// Package client connects to a sealed socket server and exchanges sealed
// events with it.
package client

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"sealed_socket/internal/config"
	"sealed_socket/internal/errs"
	"sealed_socket/internal/model"
	"sealed_socket/internal/protocol/handshake"
	"sealed_socket/internal/protocol/keys"
	"sealed_socket/internal/protocol/messaging"
	"sealed_socket/internal/transport"
	"sealed_socket/internal/utils/log"
)

type (
	Client struct {
		cfg  config.Client
		conn transport.ClientConn
		keys *keys.Ephemeral
		hs   *handshake.Client
		ch   *messaging.Channel

		mu    sync.RWMutex
		extra string
	}
)

// New validates cfg and prepares a client. Nothing is dialed until
// Connect.
func New(cfg config.Client) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	conn, err := transport.NewClient(cfg.Connection.Driver, transport.ClientOptions{
		Address: cfg.Connection.Address,
		Path:    cfg.Connection.Path,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindConfig, err, "connection")
	}

	c := &Client{
		cfg:  cfg,
		conn: conn,
		keys: &keys.Ephemeral{},
	}
	c.hs = handshake.NewClient(cfg.Connection.Token, cfg.Encryption, cfg.Compression, c.keys)
	c.ch = messaging.NewChannel(conn, messaging.Options{
		Target:     c.target,
		PrivateKey: c.keys.PrivateKey,
	})

	c.bindLifecycle(transport.EventConnect)
	c.bindLifecycle(transport.EventDisconnect)
	return c, nil
}

func (c *Client) bindLifecycle(event string) {
	switch event {
	case transport.EventConnect:
		c.conn.On(event, func(string, transport.Responder) {
			if err := c.hs.Acknowledge(); err != nil {
				log.Debug("unexpected connect", zap.Error(err))
			}
		})
	case transport.EventDisconnect:
		c.conn.On(event, func(reason string, _ transport.Responder) {
			log.Debug("disconnected", zap.String("reason", reason))
			c.hs.Close()
		})
	}
}

func (c *Client) target() (model.EncryptionConfig, model.CompressionConfig) {
	return c.cfg.Encryption, c.cfg.Compression
}

// SetExtra sets a string sent to the server with every later hello.
func (c *Client) SetExtra(extra string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.extra = extra
}

// Connect generates a fresh keypair and opens a connection, identifying
// as id. An empty id asks the server to assign one.
func (c *Client) Connect(ctx context.Context, id string) error {
	c.mu.RLock()
	extra := c.extra
	c.mu.RUnlock()

	hello, err := c.hs.Begin(id, extra)
	if err != nil {
		return err
	}

	if err := c.conn.Connect(ctx, hello); err != nil {
		c.hs.Reset()
		return err
	}
	return nil
}

func (c *Client) Disconnect() error {
	err := c.conn.Disconnect()
	c.hs.Reset()
	return err
}

func (c *Client) State() handshake.State {
	return c.hs.State()
}

// Emit seals data and sends it under event. ack, when set, receives the
// opened reply.
func (c *Client) Emit(event, data string, ack messaging.AckFunc) error {
	return c.ch.Emit(event, data, ack, model.EmitFlags{})
}

// Timeout bounds the ack wait of the emit it prefixes.
func (c *Client) Timeout(d time.Duration) messaging.Emitter {
	return c.ch.Timeout(d)
}

// Volatile drops the emit it prefixes if the connection is not ready.
func (c *Client) Volatile() messaging.Emitter {
	return c.ch.Volatile()
}

func (c *Client) On(event string, h messaging.Handler) {
	c.ch.On(event, h)
}

// Off removes handlers for event, or all handlers when event is empty.
// The client's own lifecycle bookkeeping is restored afterwards.
func (c *Client) Off(event string) {
	c.ch.Off(event)
	if event == "" {
		c.bindLifecycle(transport.EventConnect)
		c.bindLifecycle(transport.EventDisconnect)
		return
	}
	c.bindLifecycle(event)
}
