// Package websocket is the default transport driver: JSON frames over a
// gorilla/websocket connection, with the client's connect data carried
// in an upgrade header.
package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"sealed_socket/internal/model"
	"sealed_socket/internal/transport"
	"sealed_socket/internal/utils/log"
)

const (
	DriverName = "websocket"

	// HeaderConnData carries the client's serialized hello on the upgrade
	// request.
	HeaderConnData = "X-Conn-Data"

	DefaultPath = "/socket"

	frameEvent = "event"
	frameAck   = "ack"

	inboxSize  = 64
	closeGrace = time.Second
)

var errAckSent = errors.New("ack already sent")

func init() {
	transport.RegisterClient(DriverName, NewClient)
	transport.RegisterServer(DriverName, NewServer)
}

type (
	frame struct {
		Type  string `json:"type"`
		ID    string `json:"id,omitempty"`
		Event string `json:"event,omitempty"`
		Data  string `json:"data"`
		Ack   bool   `json:"ack,omitempty"`
	}

	pendingAck struct {
		fn    transport.AckFunc
		timer *time.Timer
	}

	// endpoint holds the handlers of one side of a connection. Handlers
	// outlive individual links so a client may reconnect.
	endpoint struct {
		mu       sync.RWMutex
		handlers map[string][]transport.Handler
	}

	// link is a single websocket connection.
	link struct {
		ws      *websocket.Conn
		writeMu sync.Mutex

		pendingMu sync.Mutex
		pending   map[string]*pendingAck

		inbox     chan frame
		ready     chan struct{}
		readyOnce sync.Once
		done      chan struct{}
		closeOnce sync.Once
		reason    string

		// superseded reports whether a newer link replaced this one, in
		// which case its disconnect is not announced.
		superseded func() bool
	}
)

func newEndpoint() *endpoint {
	return &endpoint{handlers: make(map[string][]transport.Handler)}
}

func (e *endpoint) On(event string, h transport.Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[event] = append(e.handlers[event], h)
}

func (e *endpoint) Off(event string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if event == "" {
		e.handlers = make(map[string][]transport.Handler)
		return
	}
	delete(e.handlers, event)
}

func (e *endpoint) fire(event, data string, reply transport.Responder) {
	e.mu.RLock()
	hs := append([]transport.Handler(nil), e.handlers[event]...)
	e.mu.RUnlock()

	for _, h := range hs {
		h(data, reply)
	}
}

func newLink(ws *websocket.Conn) *link {
	return &link{
		ws:      ws,
		pending: make(map[string]*pendingAck),
		inbox:   make(chan frame, inboxSize),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (l *link) resume() {
	l.readyOnce.Do(func() { close(l.ready) })
}

func (l *link) write(f frame) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	return l.ws.WriteJSON(f)
}

func (l *link) emit(event, data string, ack transport.AckFunc, flags model.EmitFlags) error {
	if transport.IsReserved(event) {
		return fmt.Errorf("emit %q: %w", event, transport.ErrReservedEvent)
	}

	select {
	case <-l.done:
		if flags.Volatile {
			return nil
		}
		return transport.ErrClosed
	default:
	}

	f := frame{Type: frameEvent, Event: event, Data: data}
	if ack != nil {
		f.ID = uuid.NewString()
		f.Ack = true
		l.expect(f.ID, ack, flags.Timeout)
	}

	if err := l.write(f); err != nil {
		if f.Ack {
			l.take(f.ID)
		}
		if flags.Volatile {
			log.Debug("volatile emit dropped", zap.String("event", event), zap.Error(err))
			return nil
		}
		return fmt.Errorf("emit %q: %w", event, err)
	}
	return nil
}

func (l *link) expect(id string, fn transport.AckFunc, timeout time.Duration) {
	p := &pendingAck{fn: fn}

	l.pendingMu.Lock()
	l.pending[id] = p
	if timeout > 0 {
		p.timer = time.AfterFunc(timeout, func() {
			if p := l.take(id); p != nil {
				p.fn("", transport.ErrAckTimeout)
			}
		})
	}
	l.pendingMu.Unlock()
}

func (l *link) take(id string) *pendingAck {
	l.pendingMu.Lock()
	defer l.pendingMu.Unlock()

	p, ok := l.pending[id]
	if !ok {
		return nil
	}
	delete(l.pending, id)
	if p.timer != nil {
		p.timer.Stop()
	}
	return p
}

func (l *link) failPending(err error) {
	l.pendingMu.Lock()
	pending := l.pending
	l.pending = make(map[string]*pendingAck)
	l.pendingMu.Unlock()

	for _, p := range pending {
		if p.timer != nil {
			p.timer.Stop()
		}
		p.fn("", err)
	}
}

// close ends the link once; the first reason wins.
func (l *link) close(reason string) {
	l.closeOnce.Do(func() {
		l.reason = reason
		close(l.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		_ = l.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		l.ws.Close()
		l.failPending(transport.ErrClosed)
	})
}

// run reads frames until the connection ends and dispatches events to e
// once the link is resumed.
func (l *link) run(e *endpoint) {
	go l.dispatch(e)

	reason := "transport close"
	defer func() {
		l.close(reason)
		close(l.inbox)
	}()

	for {
		_, data, err := l.ws.ReadMessage()
		if err != nil {
			log.Debug("websocket closed", zap.Error(err))
			var ce *websocket.CloseError
			switch {
			case errors.As(err, &ce) && ce.Text != "":
				reason = ce.Text
			case ce == nil:
				reason = "transport error"
			}
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Debug("drop malformed frame", zap.Error(err))
			continue
		}

		switch f.Type {
		case frameAck:
			if p := l.take(f.ID); p != nil {
				p.fn(f.Data, nil)
			}
		case frameEvent:
			select {
			case l.inbox <- f:
			case <-l.done:
				return
			}
		default:
			log.Debug("drop unknown frame", zap.String("type", f.Type))
		}
	}
}

func (l *link) dispatch(e *endpoint) {
	select {
	case <-l.ready:
	case <-l.done:
		select {
		case <-l.ready:
		default:
			return
		}
	}

	for f := range l.inbox {
		e.fire(f.Event, f.Data, l.responder(f))
	}
	if l.superseded != nil && l.superseded() {
		return
	}
	e.fire(transport.EventDisconnect, l.reason, nil)
}

func (l *link) responder(f frame) transport.Responder {
	if !f.Ack {
		return nil
	}

	var once sync.Once
	return func(data string) error {
		err := errAckSent
		once.Do(func() {
			err = l.write(frame{Type: frameAck, ID: f.ID, Data: data})
		})
		return err
	}
}
