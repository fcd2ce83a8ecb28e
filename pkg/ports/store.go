package ports

import (
	"context"

	"github.com/aretw0/concierge/pkg/domain"
)

// SessionStore defines the interface for persisting conversation sessions.
// Implementations hold no business logic; serialization of access to one key
// is the caller's job (see session.Manager).
type SessionStore interface {
	// Save persists the session under the given key.
	Save(ctx context.Context, key string, session *domain.Session) error

	// Load retrieves the session for a key.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, key string) (*domain.Session, error)

	// Delete removes the session for a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the keys of all live sessions.
	List(ctx context.Context) ([]string, error)
}
