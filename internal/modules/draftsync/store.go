package draftsync

import (
	"context"
	"errors"

	"github.com/mx-space/blockdraft/internal/models"
)

var (
	// ErrNotFound is returned by RemoteStore.Load for unknown identities.
	ErrNotFound = errors.New("draft not found")
	// ErrNoRemote is returned when a manager has no remote store configured.
	ErrNoRemote = errors.New("no remote draft store configured")
)

// SaveRequest is the save-draft contract. A nil ID creates a draft and lets
// the store mint the canonical identity; nil optional fields are left as is.
type SaveRequest struct {
	ID          *string
	UserID      string
	Title       *string
	Description *string
	Blocks      []models.Block
	Status      *models.DraftStatus
	CategoryID  *string
	CoAuthorID  *string
}

// SaveResult is what the store reports back after a save.
type SaveResult struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
	Created bool   `json:"created"`
}

// LoadedDraft is the load-draft contract.
type LoadedDraft struct {
	ID          string
	Title       string
	Description string
	Blocks      []models.Block
	Locked      bool
	Status      models.DraftStatus
	CoAuthorID  *string
	CategoryID  *string
}

// RemoteStore is the remote draft store as seen by the editor core.
// Save must be idempotent under retry with the same ID.
type RemoteStore interface {
	Load(ctx context.Context, id string) (*LoadedDraft, error)
	Save(ctx context.Context, req SaveRequest) (SaveResult, error)
}
