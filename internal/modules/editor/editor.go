package editor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mx-space/blockdraft/internal/models"
	"github.com/mx-space/blockdraft/internal/modules/draftsync"
	"github.com/mx-space/blockdraft/internal/modules/registry"
)

// Options configures an Editor.
type Options struct {
	// Manager mirrors the document into the cache and owns its identity.
	Manager *draftsync.Manager
	// Registry supplies per-type defaults; nil means registry.Default().
	Registry *registry.Registry
	// OnChange is called after every successful mutation with a copy of the
	// new sequence.
	OnChange func([]models.Block)
	Logger   *zap.Logger
	// Now is the clock used for LastModified.
	Now func() time.Time
}

// Editor is the document state of one editing session. Mutations are
// serialized; each successful one resolves the identity on the first real
// content, writes the cache and then notifies OnChange, in that order.
type Editor struct {
	manager  *draftsync.Manager
	registry *registry.Registry
	onChange func([]models.Block)
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	blocks   []models.Block
	modified time.Time
}

// New creates an editor with an empty sequence.
func New(opts Options) *Editor {
	if opts.Manager == nil {
		opts.Manager = draftsync.NewManager(draftsync.Options{})
	}
	if opts.Registry == nil {
		opts.Registry = registry.Default()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Editor{
		manager:  opts.Manager,
		registry: opts.Registry,
		onChange: opts.OnChange,
		logger:   opts.Logger,
		now:      opts.Now,
		blocks:   []models.Block{},
	}
}

// Manager returns the sync manager of the session.
func (e *Editor) Manager() *draftsync.Manager { return e.manager }

// Registry returns the editor registry used for type defaults.
func (e *Editor) Registry() *registry.Registry { return e.registry }

// Blocks returns a copy of the current sequence.
func (e *Editor) Blocks() []models.Block {
	e.mu.Lock()
	defer e.mu.Unlock()
	return models.CloneBlocks(e.blocks)
}

// Len returns the number of blocks.
func (e *Editor) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.blocks)
}

// Document returns the current document with the session identity.
func (e *Editor) Document() models.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, _ := e.manager.Identity()
	return models.Document{
		ID:           models.StringPtr(id),
		Blocks:       models.CloneBlocks(e.blocks),
		LastModified: e.modified,
	}
}

// Load replaces the sequence without writing the cache or notifying. It is
// used to seed a session from a cached snapshot or a remote draft.
func (e *Editor) Load(blocks []models.Block, modified time.Time) {
	e.mu.Lock()
	e.blocks = models.CloneBlocks(blocks)
	e.modified = modified
	e.mu.Unlock()
}

// InsertBlock inserts a new block of type t at index with type defaults applied.
func (e *Editor) InsertBlock(ctx context.Context, t models.BlockType, index int, initial string) bool {
	fresh := e.registry.NewBlock(t, initial)
	return e.mutate(ctx, "insert", func(blocks []models.Block) ([]models.Block, bool) {
		return Insert(blocks, index, fresh)
	})
}

// UpdateBlock replaces the data or the name of the block at index.
func (e *Editor) UpdateBlock(ctx context.Context, index int, value string, field Field) bool {
	return e.mutate(ctx, "update", func(blocks []models.Block) ([]models.Block, bool) {
		return Update(blocks, index, value, field)
	})
}

// ReplaceBlock swaps the block at index, e.g. after a structured editor
// encoded its working value.
func (e *Editor) ReplaceBlock(ctx context.Context, index int, block models.Block) bool {
	return e.mutate(ctx, "replace", func(blocks []models.Block) ([]models.Block, bool) {
		return Replace(blocks, index, block)
	})
}

// RetypeBlockAt replaces the block at index with a fresh block of type t,
// keeping its name.
func (e *Editor) RetypeBlockAt(ctx context.Context, index int, t models.BlockType) bool {
	fresh := e.registry.NewBlock(t, "")
	return e.mutate(ctx, "retype", func(blocks []models.Block) ([]models.Block, bool) {
		return Retype(blocks, index, fresh)
	})
}

// RemoveBlock deletes the block at index; out of range is a no-op.
func (e *Editor) RemoveBlock(ctx context.Context, index int) bool {
	return e.mutate(ctx, "remove", func(blocks []models.Block) ([]models.Block, bool) {
		return Remove(blocks, index)
	})
}

// MoveBlock moves the block at from to the insertion point to.
func (e *Editor) MoveBlock(ctx context.Context, from, to int) bool {
	return e.mutate(ctx, "move", func(blocks []models.Block) ([]models.Block, bool) {
		return Move(blocks, from, to)
	})
}

func (e *Editor) mutate(ctx context.Context, op string, apply func([]models.Block) ([]models.Block, bool)) bool {
	e.mu.Lock()
	next, changed := apply(e.blocks)
	if !changed {
		e.mu.Unlock()
		e.logger.Debug("editor no-op", zap.String("op", op))
		return false
	}
	e.blocks = next
	e.modified = e.now()

	var id string
	if hasRealContent(next) {
		id = e.manager.EnsureIdentity(ctx)
	} else {
		id, _ = e.manager.Identity()
	}
	e.manager.PersistLocally(ctx, models.Document{
		ID:           models.StringPtr(id),
		Blocks:       next,
		LastModified: e.modified,
	})
	snapshot := models.CloneBlocks(next)
	onChange := e.onChange
	e.mu.Unlock()

	if onChange != nil {
		onChange(snapshot)
	}
	return true
}

func hasRealContent(blocks []models.Block) bool {
	for _, b := range blocks {
		if b.HasContent() {
			return true
		}
	}
	return false
}
