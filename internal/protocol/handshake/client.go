package handshake

import (
	"encoding/json"
	"fmt"
	"sync"

	"sealed_socket/internal/model"
	"sealed_socket/internal/protocol/envelope"
	"sealed_socket/internal/protocol/keys"
)

type (
	// Client drives Idle -> KeyReady -> HelloSent -> Connected for one
	// connection attempt at a time.
	Client struct {
		token string
		enc   model.EncryptionConfig
		comp  model.CompressionConfig
		keys  *keys.Ephemeral

		mu    sync.Mutex
		state State
	}
)

func NewClient(token string, enc model.EncryptionConfig, comp model.CompressionConfig, ring *keys.Ephemeral) *Client {
	return &Client{
		token: token,
		enc:   enc,
		comp:  comp,
		keys:  ring,
		state: Idle,
	}
}

// Begin generates the connection's ephemeral keypair and returns the
// serialized hello envelope sealed to the server's static key.
func (c *Client) Begin(id, extra string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = Idle
	pair, err := c.keys.Rotate(c.enc)
	if err != nil {
		return "", err
	}
	c.state = KeyReady

	hello := model.Hello{
		ID:    id,
		Token: c.token,
		Extra: extra,
	}
	if !c.enc.Disabled {
		hello.Key = pair.PublicKey
	}

	raw, err := json.Marshal(hello)
	if err != nil {
		return "", fmt.Errorf("marshal hello: %w", err)
	}

	sealed, err := envelope.SealString(string(raw), c.enc, c.comp)
	if err != nil {
		c.keys.Discard()
		c.state = Idle
		return "", err
	}

	c.state = HelloSent
	return sealed, nil
}

// Acknowledge records the transport's connect acknowledgement.
func (c *Client) Acknowledge() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != HelloSent {
		return fmt.Errorf("handshake: connect acknowledged in state %s", c.state)
	}
	c.state = Connected
	return nil
}

// Close ends a Connected handshake. A disconnect seen in any other state
// belongs to an earlier connection and is ignored.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Connected {
		return
	}
	c.keys.Discard()
	c.state = Idle
}

// Reset returns to Idle and forgets the ephemeral keypair.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.keys.Discard()
	c.state = Idle
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
