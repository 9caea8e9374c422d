// Package chat relays text messages between the sockets of one server.
package chat

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"sealed_socket/internal/protocol/messaging"
	"sealed_socket/internal/service/server"
	"sealed_socket/internal/transport"
	"sealed_socket/internal/utils/log"
)

const (
	EventMessage = "message"

	AckDelivered = "delivered"
	AckRejected  = "rejected"
)

type (
	Message struct {
		From string `json:"from"`
		Text string `json:"text"`
	}

	Relay struct {
		mu      sync.RWMutex
		sockets map[*server.Socket]struct{}
	}
)

func NewRelay() *Relay {
	return &Relay{
		sockets: make(map[*server.Socket]struct{}),
	}
}

// Attach relays between every socket srv establishes from now on.
func (r *Relay) Attach(srv *server.Server) {
	srv.OnConnection(r.handle)
}

func (r *Relay) handle(s *server.Socket, err error) {
	if err != nil {
		return
	}

	r.mu.Lock()
	r.sockets[s] = struct{}{}
	r.mu.Unlock()

	s.On(transport.EventDisconnect, func(string, messaging.Reply, error) {
		r.mu.Lock()
		delete(r.sockets, s)
		r.mu.Unlock()
	})

	s.On(EventMessage, func(text string, reply messaging.Reply, err error) {
		if err != nil {
			log.Warn("drop unreadable message", zap.String("id", s.ID()), zap.Error(err))
			acknowledge(s.ID(), reply, AckRejected)
			return
		}

		r.broadcast(s, text)
		acknowledge(s.ID(), reply, AckDelivered)
	})
}

func acknowledge(id string, reply messaging.Reply, status string) {
	if reply == nil {
		return
	}
	if err := reply(status); err != nil {
		log.Debug("ack failed", zap.String("id", id), zap.String("status", status), zap.Error(err))
	}
}

func (r *Relay) broadcast(from *server.Socket, text string) {
	data, err := json.Marshal(Message{From: from.ID(), Text: text})
	if err != nil {
		log.Error("marshal message failed", zap.Error(err))
		return
	}

	r.mu.RLock()
	targets := make([]*server.Socket, 0, len(r.sockets))
	for s := range r.sockets {
		if s != from {
			targets = append(targets, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range targets {
		if err := s.Volatile().Emit(EventMessage, string(data), nil); err != nil {
			log.Error("relay message failed", zap.String("to", s.ID()), zap.Error(err))
		}
	}
}

// Count returns the number of sockets currently relayed between.
func (r *Relay) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sockets)
}
