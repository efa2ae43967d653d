package session

import (
	"context"
	"errors"
	"time"

	"lumina/internal/cart"
	"lumina/internal/domain"
	"lumina/internal/view"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

// Session is everything one visitor owns: UI state, cart and chat transcript
type Session struct {
	ID         string               `json:"id"`
	View       view.State           `json:"view"`
	Cart       cart.Ledger          `json:"cart"`
	Transcript []domain.ChatMessage `json:"transcript"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`

	// ChatPendingSince is when the pending stylist reply was requested
	ChatPendingSince time.Time `json:"chat_pending_since"`
}

// New starts a session scoped to the whole catalog with Luna's greeting
func New(allIDs []string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:   uuid.NewString(),
		View: view.Initial(allIDs),
		Cart: cart.Ledger{},
		Transcript: []domain.ChatMessage{
			{Role: domain.RoleModel, Text: domain.StylistGreeting},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Store persists sessions for the lifetime of the deployment
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
