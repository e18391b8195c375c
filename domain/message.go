// Package domain contains core concepts of the chat relay.
// This file defines ChatMessage values.
// Messages are immutable and only live for the duration of one relay.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is the ephemeral value relayed to every other participant.
type ChatMessage struct {
	ID         uuid.UUID
	Sender     Participant
	Text       string
	SourceLang string
	CreatedAt  time.Time
}

func NewChatMessage(sender Participant, text, sourceLang string) ChatMessage {
	return ChatMessage{
		ID:         uuid.New(),
		Sender:     sender,
		Text:       text,
		SourceLang: sourceLang,
		CreatedAt:  time.Now().UTC(),
	}
}
