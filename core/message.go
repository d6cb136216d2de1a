package core

import (
	"fmt"
	"time"
)

// Role identifies who authored a dialogue turn.
type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
)

// Message is one turn of dialogue as observed from the chat platform.
// Messages are immutable once stored; an edit produces a new message
// referencing the original via EditedFrom rather than mutating a row.
type Message struct {
	// Role is the speaker role: user, model, or system.
	Role Role

	// Content is the message text.
	Content string

	// AuthorID is the platform identity of the author.
	AuthorID string

	// MessageID is the platform-assigned message identifier.
	MessageID string

	// Timestamp is when the message was created.
	Timestamp time.Time

	// EditedFrom is the message id this one supersedes, if any.
	EditedFrom string
}

// Key returns the message's unique storage key under an owner scope.
// The key is deterministic per (owner, message id, timestamp), which is
// what makes re-ingestion idempotent: inserting the same triple again
// collides on this key and is ignored by the store.
func (m Message) Key(ownerID string) string {
	return fmt.Sprintf("%s_%s_%s", ownerID, m.MessageID, m.Timestamp.UTC().Format(time.RFC3339Nano))
}
