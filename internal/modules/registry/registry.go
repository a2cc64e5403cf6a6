// Package registry maps block types to their editing widgets. Editing is an
// opt-in lookup table: a type without a dedicated editor falls back to the
// generic text area. Previews are not looked up here, see package render.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mx-space/blockdraft/internal/models"
)

// ErrValueType is returned by Encode when handed a value of the wrong type.
var ErrValueType = errors.New("unexpected editor value type")

// Editor is the editing contract of one block type. Decode turns stored block
// data into the editor's working value and Encode writes a working value back
// as plain block data.
type Editor interface {
	Type() models.BlockType
	Default(initial string) models.Block
	Decode(b models.Block) (any, error)
	Encode(v any, b models.Block) (models.Block, error)
}

// Registry is the type -> editor table.
type Registry struct {
	mu      sync.RWMutex
	editors map[models.BlockType]Editor
}

// New returns an empty registry; every lookup falls back to a text area.
func New() *Registry {
	return &Registry{editors: make(map[models.BlockType]Editor)}
}

// Default returns the stock registry with all dedicated editors registered.
func Default() *Registry {
	r := New()
	r.Register(TableEditor{})
	r.Register(GalleryEditor{})
	r.Register(TimelineEditor{})
	r.Register(CodeEditor{})
	r.Register(VideoEditor{})
	r.Register(LinkPreviewEditor{})
	r.Register(HeadingEditor{})
	r.Register(SpacingEditor{})
	r.Register(ImageEditor{})
	return r
}

// Register opts a block type into a dedicated editor, replacing any previous one.
func (r *Registry) Register(e Editor) {
	r.mu.Lock()
	r.editors[e.Type()] = e
	r.mu.Unlock()
}

// Editor returns the editor for t, or a text area bound to t.
func (r *Registry) Editor(t models.BlockType) Editor {
	r.mu.RLock()
	e, ok := r.editors[t]
	r.mu.RUnlock()
	if ok {
		return e
	}
	return TextAreaEditor{BlockType: t}
}

// Dedicated reports whether t has its own editor.
func (r *Registry) Dedicated(t models.BlockType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.editors[t]
	return ok
}

// Types lists the types with a dedicated editor, sorted.
func (r *Registry) Types() []models.BlockType {
	r.mu.RLock()
	out := make([]models.BlockType, 0, len(r.editors))
	for t := range r.editors {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NewBlock builds a fresh block of type t with its type defaults applied.
func (r *Registry) NewBlock(t models.BlockType, initial string) models.Block {
	return r.Editor(t).Default(initial)
}

// Apply decodes b, runs edit on the working value and encodes the result.
func (r *Registry) Apply(b models.Block, edit func(v any) (any, error)) (models.Block, error) {
	e := r.Editor(b.Type)
	v, err := e.Decode(b)
	if err != nil {
		return b, fmt.Errorf("decode %s block: %w", b.Type, err)
	}
	v, err = edit(v)
	if err != nil {
		return b, err
	}
	return e.Encode(v, b)
}

func valueError(t models.BlockType, want string, got any) error {
	return fmt.Errorf("%w: %s editor wants %s, got %T", ErrValueType, t, want, got)
}
