// Package messaging layers the envelope codec over a transport endpoint:
// outgoing payloads and replies are sealed, incoming payloads and acks
// are opened.
package messaging

import (
	"time"

	"sealed_socket/internal/model"
	"sealed_socket/internal/protocol/envelope"
	"sealed_socket/internal/transport"
)

type (
	// Reply answers an event whose sender asked for an ack. The argument is
	// sealed before it is sent.
	Reply func(data string) error

	// Handler receives an opened payload. When opening fails data is the
	// raw envelope and err says why. reply is nil when no ack was asked.
	Handler func(data string, reply Reply, err error)

	// AckFunc receives the opened ack. On a transport error data is empty;
	// on a decode error data is the raw ack envelope.
	AckFunc func(data string, err error)

	// Target returns the configuration outgoing payloads are sealed with.
	// It is called once per send.
	Target func() (model.EncryptionConfig, model.CompressionConfig)

	Options struct {
		Target Target
		// PrivateKey opens incoming payloads and acks.
		PrivateKey func() string
		// Opened, when set, sees the headers of every inbound event that
		// opened successfully. Acks do not reach it.
		Opened func(model.Headers)
	}

	Channel struct {
		ep   transport.Endpoint
		opts Options
	}

	// Emitter carries flags for a single emit.
	Emitter struct {
		ch    *Channel
		flags model.EmitFlags
	}
)

func NewChannel(ep transport.Endpoint, opts Options) *Channel {
	return &Channel{ep: ep, opts: opts}
}

func (c *Channel) privateKey() string {
	if c.opts.PrivateKey == nil {
		return ""
	}
	return c.opts.PrivateKey()
}

func (c *Channel) seal(data string) (string, error) {
	enc, comp := c.opts.Target()
	return envelope.SealString(data, enc, comp)
}

func (c *Channel) open(data string, notify bool) (string, error) {
	opened, err := envelope.Open(data, c.privateKey())
	if err != nil {
		return data, err
	}
	if notify && c.opts.Opened != nil {
		c.opts.Opened(opened.Headers)
	}
	return opened.Data, nil
}

// Emit seals data and sends it under event.
func (c *Channel) Emit(event, data string, ack AckFunc, flags model.EmitFlags) error {
	out, err := c.seal(data)
	if err != nil {
		return err
	}

	var rawAck transport.AckFunc
	if ack != nil {
		rawAck = func(data string, err error) {
			if err != nil {
				ack("", err)
				return
			}
			ack(c.open(data, false))
		}
	}
	return c.ep.Emit(event, out, rawAck, flags)
}

// On registers h for event. Reserved transport events reach h unopened.
func (c *Channel) On(event string, h Handler) {
	if transport.IsReserved(event) {
		c.ep.On(event, func(data string, _ transport.Responder) {
			h(data, nil, nil)
		})
		return
	}

	c.ep.On(event, func(data string, respond transport.Responder) {
		var reply Reply
		if respond != nil {
			reply = func(data string) error {
				out, err := c.seal(data)
				if err != nil {
					return err
				}
				return respond(out)
			}
		}

		plain, err := c.open(data, true)
		h(plain, reply, err)
	})
}

// Off removes the handlers of event, or every handler when event is empty.
func (c *Channel) Off(event string) {
	c.ep.Off(event)
}

func (c *Channel) Timeout(d time.Duration) Emitter {
	return Emitter{ch: c}.Timeout(d)
}

func (c *Channel) Volatile() Emitter {
	return Emitter{ch: c}.Volatile()
}

func (e Emitter) Timeout(d time.Duration) Emitter {
	e.flags.Timeout = d
	return e
}

func (e Emitter) Volatile() Emitter {
	e.flags.Volatile = true
	return e
}

func (e Emitter) Emit(event, data string, ack AckFunc) error {
	return e.ch.Emit(event, data, ack, e.flags)
}

func (e Emitter) Flags() model.EmitFlags {
	return e.flags
}
