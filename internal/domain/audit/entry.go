package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Actor is the opaque identity context passed through the engine. The engine
// never interprets permissions; actors exist only so audit entries can name
// who triggered a write.
type Actor struct {
	UserID   string
	Username string
	Role     string
}

// ActionType classifies an audited engine operation.
type ActionType string

const (
	ActionSubmitFact ActionType = "SUBMIT_FACT"
	ActionDeleteFact ActionType = "DELETE_FACT"
	ActionRecompute  ActionType = "RECOMPUTE"
)

// Entry is one audit log record. Entries are written best-effort: a failed
// audit write is logged but never blocks the operation it describes.
type Entry struct {
	ID        uuid.UUID
	Username  string
	Role      string
	Action    ActionType
	Details   string
	CreatedAt time.Time
}

// NewEntry creates an audit entry for the actor and action.
func NewEntry(actor Actor, action ActionType, details string) *Entry {
	username := actor.Username
	if username == "" {
		username = actor.UserID
	}
	return &Entry{
		ID:        uuid.New(),
		Username:  username,
		Role:      actor.Role,
		Action:    action,
		Details:   details,
		CreatedAt: time.Now(),
	}
}

// Repository persists audit entries.
type Repository interface {
	Save(ctx context.Context, entry *Entry) error
}
