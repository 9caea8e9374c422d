package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type (
	// Hello is the first payload a client sends.
	Hello struct {
		ID    string `json:"id,omitempty"`
		Token string `json:"token"`
		Extra string `json:"extra,omitempty"`
		Key   string `json:"key,omitempty"`
	}

	// AuthContext is fixed once the handshake populates it, except for
	// PeerPublicKey which may be rotated; every server reply is sealed to
	// the value it holds at send time.
	AuthContext struct {
		RemoteID      string
		Token         string
		Extra         string
		PeerPublicKey string
	}

	AuthAttempt struct {
		ID        primitive.ObjectID `bson:"_id,omitempty"`
		RemoteID  string             `bson:"remote_id"`
		Address   string             `bson:"address"`
		State     string             `bson:"state"`
		Error     string             `bson:"error,omitempty"`
		CreatedAt time.Time          `bson:"created_at"`
	}
)
