//go:generate go run go.uber.org/mock/mockgen -source=participant.go -destination=../mocks/mock_participant.go -package=mocks
// Package domain contains core concepts of the chat relay.
// This file defines Participant entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"context"
	"time"
)

// DefaultLanguage is used whenever a client omits its language.
// The browser client applies the same fallback.
const DefaultLanguage = "en"

// Handle identifies one live connection. It is the true identity key of a
// Participant, names are display-only.
type Handle string

// Sink is the outbound side of a connection, owned by the connection supervisor.
// Open reports whether the connection still accepts frames.
type Sink interface {
	Handle() Handle
	Open() bool
	Send(ctx context.Context, frame OutboundFrame) error
}

// Participant is a joined connection with its chosen output language.
// Seq is the join sequence number and orders every fan-out.
type Participant struct {
	Handle   Handle
	Name     string
	Lang     string
	Seq      uint64
	JoinedAt time.Time
	Sink     Sink
}

// Send writes a frame to the participant's connection.
func (p Participant) Send(ctx context.Context, frame OutboundFrame) error {
	return p.Sink.Send(ctx, frame)
}
