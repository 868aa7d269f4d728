// Package store persists conversation state and cached menus across restarts.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence contract shared by the memory and postgres
// backends. Keys are platform-scoped chat ids.
type Store interface {
	// State returns the saved conversation state name for a chat.
	State(ctx context.Context, chatID string) (string, error)
	// SetState saves the conversation state name for a chat.
	SetState(ctx context.Context, chatID, state string) error

	// Menu returns the cached serialized menu page for a category.
	Menu(ctx context.Context, categoryID string) ([]byte, error)
	// SetMenu caches the serialized menu page for a category.
	SetMenu(ctx context.Context, categoryID string, payload []byte) error
	// DropMenus invalidates every cached menu page.
	DropMenus(ctx context.Context) error

	// Images returns the cached serialized product image set.
	Images(ctx context.Context) ([]byte, error)
	// SetImages caches the serialized product image set.
	SetImages(ctx context.Context, payload []byte) error

	// Close releases backend resources.
	Close() error
}
