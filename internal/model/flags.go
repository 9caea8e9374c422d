package model

import "time"

type (
	// EmitFlags apply to exactly one emit call.
	EmitFlags struct {
		// Timeout bounds the ack round-trip. Zero waits indefinitely.
		Timeout time.Duration
		// Volatile drops the message instead of failing when the
		// connection is not ready.
		Volatile bool
	}
)
