// Package session hosts editor sessions on the server so a thin client can
// drive the block editor over HTTP. One session exists per user and
// document key; it survives requests and is rebuilt from the local cache
// after a restart.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mx-space/blockdraft/internal/models"
	"github.com/mx-space/blockdraft/internal/modules/draftsync"
	"github.com/mx-space/blockdraft/internal/modules/editor"
	"github.com/mx-space/blockdraft/internal/modules/registry"
	"github.com/mx-space/blockdraft/internal/pkg/localcache"
)

var (
	ErrInvalidKey       = errors.New("invalid document key")
	ErrUnknownBlockType = errors.New("unknown block type")
	ErrNotCodeBlock     = errors.New("block is not a code block")
	ErrIndexOutOfRange  = errors.New("block index out of range")
)

// Config holds the session settings taken from the editor config section.
type Config struct {
	ActiveKey     string
	AutosaveDelay time.Duration
	// Autosave disables background saves when false.
	Autosave bool
}

// OpenOptions are the identity sources a client supplies when opening a
// document.
type OpenOptions struct {
	ExplicitID string
	ContextID  string
	UserID     string
}

// Session is one server-hosted editing session.
type Session struct {
	key     string
	userID  string
	editor  *editor.Editor
	manager *draftsync.Manager
	modes   *registry.ModeStore
	log     *zap.Logger

	// ops serializes read-modify-write operations on the editor.
	ops sync.Mutex

	mu          sync.Mutex
	title       string
	description string
	touched     time.Time
}

// Hub owns the open sessions.
type Hub struct {
	cache    localcache.Store
	remote   draftsync.RemoteStore
	registry *registry.Registry
	cfg      Config
	log      *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewHub(cache localcache.Store, remote draftsync.RemoteStore, reg *registry.Registry, cfg Config, log *zap.Logger) *Hub {
	if cache == nil {
		cache = localcache.NewMemoryStore()
	}
	if reg == nil {
		reg = registry.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if strings.TrimSpace(cfg.ActiveKey) == "" {
		cfg.ActiveKey = draftsync.DefaultActiveKey
	}
	return &Hub{
		cache:    cache,
		remote:   remote,
		registry: reg,
		cfg:      cfg,
		log:      log.Named("EditorSession"),
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

func cacheKey(userID, key string) string {
	return "doc:" + userID + ":" + key
}

// Open returns the session for key, creating it on first use. A new session
// is seeded from the cached snapshot, or from the remote draft named by the
// explicit identity when nothing is cached.
func (h *Hub) Open(ctx context.Context, key string, opts OpenOptions) (*Session, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.ContainsAny(key, ":/ ") {
		return nil, ErrInvalidKey
	}
	ck := cacheKey(opts.UserID, key)

	h.mu.Lock()
	if s, ok := h.sessions[ck]; ok {
		h.mu.Unlock()
		s.touch(h.now())
		return s, nil
	}
	h.mu.Unlock()

	// seeding may hit the remote store, so it runs without the hub lock
	s, err := h.newSession(ctx, key, ck, opts)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.sessions[ck]; ok {
		s.manager.Close()
		existing.touch(h.now())
		return existing, nil
	}
	h.sessions[ck] = s
	s.log.Info("editor session opened", zap.Int("blocks", s.editor.Len()))
	return s, nil
}

func (h *Hub) newSession(ctx context.Context, key, ck string, opts OpenOptions) (*Session, error) {
	explicit := strings.TrimSpace(opts.ExplicitID)
	contextual := strings.TrimSpace(opts.ContextID)
	log := h.log.With(zap.String("key", key), zap.String("user", opts.UserID))
	manager := draftsync.NewManager(draftsync.Options{
		CacheKey:  ck,
		ActiveKey: h.cfg.ActiveKey + ":" + opts.UserID,
		Cache:     h.cache,
		Remote:    h.remote,
		Sources: draftsync.Sources{
			Explicit:   func() string { return explicit },
			Contextual: func() string { return contextual },
		},
		Logger:        log,
		AutosaveDelay: h.cfg.AutosaveDelay,
	})

	s := &Session{
		key:     key,
		userID:  opts.UserID,
		manager: manager,
		modes:   registry.NewModeStore(),
		log:     log,
		touched: h.now(),
	}
	s.editor = editor.New(editor.Options{
		Manager:  manager,
		Registry: h.registry,
		Logger:   log,
		OnChange: func([]models.Block) {
			if h.cfg.Autosave {
				manager.ScheduleAutosave(s.saveRequest)
			}
		},
	})

	if snap, ok := manager.CachedSnapshot(ctx); ok {
		doc := snap.Document()
		s.editor.Load(doc.Blocks, doc.LastModified)
	} else if explicit != "" && h.remote != nil {
		d, err := manager.Load(ctx, explicit)
		switch {
		case err == nil:
			s.editor.Load(d.Blocks, h.now())
			s.title, s.description = d.Title, d.Description
		case errors.Is(err, draftsync.ErrNotFound):
			// a client-minted id the store has not seen yet
		default:
			return nil, err
		}
	}
	return s, nil
}

// Close ends a session. With discard the cached snapshot and the active
// identity are dropped as well, so the next session starts fresh.
func (h *Hub) Close(ctx context.Context, userID, key string, discard bool) bool {
	ck := cacheKey(userID, key)
	h.mu.Lock()
	s, ok := h.sessions[ck]
	delete(h.sessions, ck)
	h.mu.Unlock()

	if !ok {
		if discard {
			m := draftsync.NewManager(draftsync.Options{CacheKey: ck, ActiveKey: h.cfg.ActiveKey + ":" + userID, Cache: h.cache})
			m.Discard(ctx)
			m.ForgetActive(ctx)
		}
		return false
	}
	s.manager.Close()
	if discard {
		s.manager.Discard(ctx)
		s.manager.ForgetActive(ctx)
	}
	s.log.Info("editor session closed", zap.Bool("discard", discard))
	return true
}

// Reap closes sessions idle for longer than maxIdle and returns how many
// were closed. Their cached snapshots stay.
func (h *Hub) Reap(maxIdle time.Duration) int {
	cutoff := h.now().Add(-maxIdle)
	h.mu.Lock()
	var idle []*Session
	for ck, s := range h.sessions {
		if s.lastTouched().Before(cutoff) {
			idle = append(idle, s)
			delete(h.sessions, ck)
		}
	}
	h.mu.Unlock()

	for _, s := range idle {
		s.manager.Close()
	}
	return len(idle)
}

// Shutdown stops all pending autosaves.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ck, s := range h.sessions {
		s.manager.Close()
		delete(h.sessions, ck)
	}
}

// Len returns the number of open sessions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.touched = now
	s.mu.Unlock()
}

func (s *Session) lastTouched() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

func (s *Session) Key() string { return s.key }

func (s *Session) Editor() *editor.Editor { return s.editor }

func (s *Session) Manager() *draftsync.Manager { return s.manager }

// State is the client-facing view of a session.
type State struct {
	Key          string            `json:"key"`
	ID           *string           `json:"id"`
	Identity     string            `json:"identity"`
	Minted       bool              `json:"minted"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Blocks       []models.Block    `json:"blocks"`
	Modes        map[string]string `json:"modes,omitempty"`
	LastModified *time.Time        `json:"lastModified"`
}

func (s *Session) State() State {
	doc := s.editor.Document()
	id, state := s.manager.Identity()
	s.mu.Lock()
	title, description := s.title, s.description
	s.mu.Unlock()

	st := State{
		Key:         s.key,
		ID:          models.StringPtr(id),
		Identity:    state.String(),
		Minted:      s.manager.Minted(),
		Title:       title,
		Description: description,
		Blocks:      doc.Blocks,
	}
	if !doc.LastModified.IsZero() {
		modified := doc.LastModified
		st.LastModified = &modified
	}
	for i, b := range doc.Blocks {
		if b.Type != models.BlockCode {
			continue
		}
		if st.Modes == nil {
			st.Modes = make(map[string]string)
		}
		k := strconv.Itoa(i)
		st.Modes[k] = s.modes.Mode(k).String()
	}
	return st
}

// Insert adds a block of type t at index; a negative index appends.
func (s *Session) Insert(ctx context.Context, t models.BlockType, index int, initial string) (bool, error) {
	if !t.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownBlockType, t)
	}
	s.ops.Lock()
	defer s.ops.Unlock()
	if index < 0 {
		index = s.editor.Len()
	}
	changed := s.editor.InsertBlock(ctx, t, index, initial)
	if changed {
		s.shiftModes(func(i int) (int, bool) {
			if i >= index {
				return i + 1, true
			}
			return i, true
		})
	}
	return changed, nil
}

// Update sets a field of the block at index. Code blocks go through their
// editor so the cached highlighting follows the source.
func (s *Session) Update(ctx context.Context, index int, value string, field editor.Field) (bool, error) {
	s.ops.Lock()
	defer s.ops.Unlock()

	blocks := s.editor.Blocks()
	if index < 0 || index >= len(blocks) {
		return false, ErrIndexOutOfRange
	}
	b := blocks[index]
	if field != editor.FieldData || b.Type != models.BlockCode {
		return s.editor.UpdateBlock(ctx, index, value, field), nil
	}
	next, err := s.editor.Registry().Apply(b, func(v any) (any, error) {
		cv := v.(registry.CodeValue)
		cv.Source = value
		return cv, nil
	})
	if err != nil {
		return false, err
	}
	return s.editor.ReplaceBlock(ctx, index, next), nil
}

// SetLanguage changes the language of the code block at index.
func (s *Session) SetLanguage(ctx context.Context, index int, language string) (bool, error) {
	s.ops.Lock()
	defer s.ops.Unlock()

	blocks := s.editor.Blocks()
	if index < 0 || index >= len(blocks) {
		return false, ErrIndexOutOfRange
	}
	if blocks[index].Type != models.BlockCode {
		return false, ErrNotCodeBlock
	}
	next, err := s.editor.Registry().Apply(blocks[index], func(v any) (any, error) {
		cv := v.(registry.CodeValue)
		cv.Language = language
		return cv, nil
	})
	if err != nil {
		return false, err
	}
	return s.editor.ReplaceBlock(ctx, index, next), nil
}

// ToggleMode flips the edit/preview mode of the code block at index.
func (s *Session) ToggleMode(index int) (registry.CodeMode, error) {
	blocks := s.editor.Blocks()
	if index < 0 || index >= len(blocks) {
		return registry.CodeModeEdit, ErrIndexOutOfRange
	}
	if blocks[index].Type != models.BlockCode {
		return registry.CodeModeEdit, ErrNotCodeBlock
	}
	return s.modes.Toggle(strconv.Itoa(index)), nil
}

func (s *Session) Retype(ctx context.Context, index int, t models.BlockType) (bool, error) {
	if !t.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownBlockType, t)
	}
	s.ops.Lock()
	defer s.ops.Unlock()
	changed := s.editor.RetypeBlockAt(ctx, index, t)
	if changed {
		s.modes.Forget(strconv.Itoa(index))
	}
	return changed, nil
}

func (s *Session) Remove(ctx context.Context, index int) bool {
	s.ops.Lock()
	defer s.ops.Unlock()
	changed := s.editor.RemoveBlock(ctx, index)
	if changed {
		s.shiftModes(func(i int) (int, bool) {
			switch {
			case i == index:
				return 0, false
			case i > index:
				return i - 1, true
			}
			return i, true
		})
	}
	return changed
}

func (s *Session) Move(ctx context.Context, from, to int) bool {
	s.ops.Lock()
	defer s.ops.Unlock()
	changed := s.editor.MoveBlock(ctx, from, to)
	if changed {
		s.shiftModes(func(i int) (int, bool) {
			return movedIndex(i, from, to), true
		})
	}
	return changed
}

// shiftModes keeps code block modes attached to their blocks when indices
// shift.
func (s *Session) shiftModes(remap func(int) (int, bool)) {
	s.modes.Rekey(func(key string) (string, bool) {
		i, err := strconv.Atoi(key)
		if err != nil {
			return "", false
		}
		next, ok := remap(i)
		return strconv.Itoa(next), ok
	})
}

// movedIndex is where the block at i ends up after editor.Move(from, to).
func movedIndex(i, from, to int) int {
	if from < to {
		to--
	}
	switch {
	case i == from:
		return to
	case from < i && i <= to:
		return i - 1
	case to <= i && i < from:
		return i + 1
	}
	return i
}

// SetMeta updates the title and description sent with the next save. Nil
// leaves a field unchanged.
func (s *Session) SetMeta(title, description *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if title != nil {
		s.title = strings.TrimSpace(*title)
	}
	if description != nil {
		s.description = *description
	}
}

func (s *Session) saveRequest() draftsync.SaveRequest {
	s.mu.Lock()
	title, description := s.title, s.description
	s.mu.Unlock()
	return draftsync.SaveRequest{
		UserID:      s.userID,
		Title:       &title,
		Description: &description,
		Blocks:      s.editor.Blocks(),
	}
}

// Save is the explicit save: the pending autosave is superseded and a
// failure is returned to the caller.
func (s *Session) Save(ctx context.Context) (draftsync.SaveResult, error) {
	return s.save(ctx, nil)
}

// Publish saves the document and marks it published.
func (s *Session) Publish(ctx context.Context) (draftsync.SaveResult, error) {
	status := models.DraftStatusPublished
	return s.save(ctx, &status)
}

func (s *Session) save(ctx context.Context, status *models.DraftStatus) (draftsync.SaveResult, error) {
	s.ops.Lock()
	defer s.ops.Unlock()

	s.manager.Close()
	req := s.saveRequest()
	req.Status = status
	return s.manager.PersistRemotely(ctx, req)
}
