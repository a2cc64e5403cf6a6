package registry

import (
	"strings"
	"sync"

	"github.com/mx-space/blockdraft/internal/models"
	"github.com/mx-space/blockdraft/internal/pkg/highlight"
)

// CodeValue is the working value of the code editor.
type CodeValue struct {
	Source   string
	Language string
}

// CodeEditor edits source and language. Encode refreshes the cached
// highlighted markup; a highlighting failure only clears the cache.
type CodeEditor struct{}

func (CodeEditor) Type() models.BlockType { return models.BlockCode }

func (CodeEditor) Default(initial string) models.Block {
	return models.Block{
		Type:        models.BlockCode,
		Data:        initial,
		Language:    highlight.DefaultLanguage,
		Highlighted: "",
	}
}

func (CodeEditor) Decode(b models.Block) (any, error) {
	return CodeValue{Source: b.Data, Language: highlight.Normalize(b.Language)}, nil
}

func (CodeEditor) Encode(v any, b models.Block) (models.Block, error) {
	cv, ok := v.(CodeValue)
	if !ok {
		return b, valueError(models.BlockCode, "CodeValue", v)
	}
	b.Data = cv.Source
	b.Language = highlight.Normalize(cv.Language)
	b.Highlighted = ""
	if strings.TrimSpace(cv.Source) != "" {
		if out, err := highlight.Code(cv.Source, b.Language); err == nil {
			b.Highlighted = out
		}
	}
	return b, nil
}

// CodeMode is whether a code block shows its source or its rendering.
type CodeMode int

const (
	CodeModeEdit CodeMode = iota
	CodeModePreview
)

func (m CodeMode) String() string {
	if m == CodeModePreview {
		return "preview"
	}
	return "edit"
}

// ModeStore keeps the edit/preview mode of code blocks across re-renders.
// It is owned by the caller (one per editing session) and keyed by whatever
// stable key the caller assigns to a block.
type ModeStore struct {
	mu    sync.Mutex
	modes map[string]CodeMode
}

func NewModeStore() *ModeStore {
	return &ModeStore{modes: make(map[string]CodeMode)}
}

// Mode returns the mode for key; unknown keys are in edit mode.
func (s *ModeStore) Mode(key string) CodeMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modes[key]
}

func (s *ModeStore) Set(key string, mode CodeMode) {
	s.mu.Lock()
	s.modes[key] = mode
	s.mu.Unlock()
}

// Toggle flips the mode for key and returns the new mode.
func (s *ModeStore) Toggle(key string) CodeMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := CodeModePreview
	if s.modes[key] == CodeModePreview {
		next = CodeModeEdit
	}
	s.modes[key] = next
	return next
}

func (s *ModeStore) Forget(key string) {
	s.mu.Lock()
	delete(s.modes, key)
	s.mu.Unlock()
}

// Rekey moves every stored mode to the key remap returns. Modes whose key
// remap rejects are dropped.
func (s *ModeStore) Rekey(remap func(key string) (string, bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string]CodeMode, len(s.modes))
	for k, mode := range s.modes {
		if nk, ok := remap(k); ok {
			next[nk] = mode
		}
	}
	s.modes = next
}
