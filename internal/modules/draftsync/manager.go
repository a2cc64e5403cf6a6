package draftsync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mx-space/blockdraft/internal/models"
	"github.com/mx-space/blockdraft/internal/pkg/localcache"
	"github.com/mx-space/blockdraft/internal/pkg/ulid"
)

// DefaultActiveKey is the single cache key that remembers the draft identity
// currently being edited, independent of the per-document cache key. The
// entry records which document wrote it and is only honored for that one.
const DefaultActiveKey = "active-draft-id"

// State is the identity lifecycle of one editing session.
type State int

const (
	StateUnidentified State = iota
	StateResolving
	StateIdentified
)

func (s State) String() string {
	switch s {
	case StateUnidentified:
		return "unidentified"
	case StateResolving:
		return "resolving"
	case StateIdentified:
		return "identified"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Sources are the identity sources outside the cache. Either may be nil.
type Sources struct {
	// Explicit is an identity the caller already knows.
	Explicit func() string
	// Contextual is an identity carried by the navigation context.
	Contextual func() string
}

// Options configures a Manager.
type Options struct {
	CacheKey      string
	ActiveKey     string
	Cache         localcache.Store
	Remote        RemoteStore
	Sources       Sources
	Logger        *zap.Logger
	AutosaveDelay time.Duration
}

// Manager resolves and mints the identity of one document, mirrors the
// document into the local cache and saves it to the remote draft store.
type Manager struct {
	cacheKey  string
	activeKey string
	cache     localcache.Store
	remote    RemoteStore
	sources   Sources
	logger    *zap.Logger
	delay     time.Duration

	mu       sync.Mutex
	state    State
	identity string
	minted   bool

	// issued counts remote saves started; applied is the sequence of the
	// newest response whose outcome was applied.
	issued  uint64
	applied uint64

	timerMu  sync.Mutex
	autosave *time.Timer
}

// NewManager creates a manager for the document stored under opts.CacheKey.
func NewManager(opts Options) *Manager {
	if opts.Cache == nil {
		opts.Cache = localcache.NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if strings.TrimSpace(opts.ActiveKey) == "" {
		opts.ActiveKey = DefaultActiveKey
	}
	if opts.AutosaveDelay <= 0 {
		opts.AutosaveDelay = 2 * time.Second
	}
	return &Manager{
		cacheKey:  opts.CacheKey,
		activeKey: opts.ActiveKey,
		cache:     opts.Cache,
		remote:    opts.Remote,
		sources:   opts.Sources,
		logger:    opts.Logger.With(zap.String("cache_key", opts.CacheKey)),
		delay:     opts.AutosaveDelay,
	}
}

// CacheKey returns the per-document cache key.
func (m *Manager) CacheKey() string { return m.cacheKey }

// Identity returns the session identity and the lifecycle state.
func (m *Manager) Identity() (string, State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity, m.state
}

// Minted reports whether the session identity was generated locally.
func (m *Manager) Minted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.minted
}

// ResolveIdentity reads the identity sources in precedence order: explicit,
// contextual, cached active identity, identity of the cached snapshot.
// It never mutates state.
func (m *Manager) ResolveIdentity(ctx context.Context) (string, bool) {
	if id := call(m.sources.Explicit); id != "" {
		return id, true
	}
	if id := call(m.sources.Contextual); id != "" {
		return id, true
	}
	if id := m.cachedActive(ctx); id != "" {
		return id, true
	}
	if snap, ok := m.CachedSnapshot(ctx); ok && snap.ID != nil && strings.TrimSpace(*snap.ID) != "" {
		return strings.TrimSpace(*snap.ID), true
	}
	return "", false
}

// MintIdentity generates a new identity without touching state.
func (m *Manager) MintIdentity() string {
	return ulid.New()
}

// EnsureIdentity runs the identity state machine once: resolve, and mint if
// nothing was found. Later calls return the same identity.
func (m *Manager) EnsureIdentity(ctx context.Context) string {
	m.mu.Lock()
	if m.state == StateIdentified {
		id := m.identity
		m.mu.Unlock()
		return id
	}
	m.state = StateResolving
	m.mu.Unlock()

	id, found := m.ResolveIdentity(ctx)
	minted := false
	if !found {
		id = m.MintIdentity()
		minted = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// a remote save may have assigned an identity while resolving
	if m.state == StateIdentified {
		return m.identity
	}
	m.identity = id
	m.minted = minted
	m.state = StateIdentified
	m.logger.Info("draft identity assigned",
		zap.String("id", id),
		zap.Bool("minted", minted),
	)
	return id
}

// PersistLocally writes the document snapshot and the active identity to the
// cache. Failures are logged and swallowed.
func (m *Manager) PersistLocally(ctx context.Context, doc models.Document) {
	id := strings.TrimSpace(models.Deref(doc.ID))
	if id == "" {
		id, _ = m.Identity()
	}
	if id == "" {
		// a missing identity falls back to whatever the cache already holds
		id, _ = m.ResolveIdentity(ctx)
	}
	doc.ID = models.StringPtr(id)

	raw, err := json.Marshal(models.SnapshotOf(doc))
	if err != nil {
		m.logger.Warn("encode cache snapshot", zap.Error(err))
		return
	}
	if err := m.cache.Set(ctx, m.cacheKey, string(raw)); err != nil {
		m.logger.Warn("write cache snapshot", zap.Error(err))
		return
	}
	if id != "" {
		m.writeActive(ctx, id)
	}
}

// CachedSnapshot reads the snapshot stored under the cache key. A corrupt
// entry is logged and treated as absent.
func (m *Manager) CachedSnapshot(ctx context.Context) (models.Snapshot, bool) {
	raw, ok, err := m.cache.Get(ctx, m.cacheKey)
	if err != nil {
		m.logger.Warn("read cache snapshot", zap.Error(err))
		return models.Snapshot{}, false
	}
	if !ok {
		return models.Snapshot{}, false
	}
	var snap models.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		m.logger.Warn("decode cache snapshot", zap.Error(err))
		return models.Snapshot{}, false
	}
	return snap, true
}

// ForgetActive clears the active identity key so the next session for a new
// document does not pick up the previous draft. An entry written by another
// document is left alone.
func (m *Manager) ForgetActive(ctx context.Context) {
	if entry, ok := m.readActive(ctx); ok && !m.owns(entry) {
		return
	}
	if err := m.cache.Delete(ctx, m.activeKey); err != nil {
		m.logger.Warn("clear active draft id", zap.Error(err))
	}
}

// Discard removes the cached snapshot for this document.
func (m *Manager) Discard(ctx context.Context) {
	if err := m.cache.Delete(ctx, m.cacheKey); err != nil {
		m.logger.Warn("discard cache snapshot", zap.Error(err))
	}
}

// Load fetches a draft from the remote store.
func (m *Manager) Load(ctx context.Context, id string) (*LoadedDraft, error) {
	if m.remote == nil {
		return nil, ErrNoRemote
	}
	d, err := m.remote.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load draft %s: %w", id, err)
	}
	return d, nil
}

// PersistRemotely saves the document to the remote store. The session (or
// resolved) identity is attached when the request carries none. A server-assigned
// identity is adopted only by an identity-less session and only from a
// response that is not older than the last applied one.
func (m *Manager) PersistRemotely(ctx context.Context, req SaveRequest) (SaveResult, error) {
	if m.remote == nil {
		return SaveResult{}, ErrNoRemote
	}

	m.mu.Lock()
	m.issued++
	seq := m.issued
	current := m.identity
	m.mu.Unlock()

	if req.ID == nil {
		if current == "" {
			current, _ = m.ResolveIdentity(ctx)
		}
		req.ID = models.StringPtr(current)
	}

	res, err := m.remote.Save(ctx, req)
	if err != nil {
		m.logger.Error("remote draft save failed", zap.Uint64("seq", seq), zap.Error(err))
		return SaveResult{}, fmt.Errorf("save draft: %w", err)
	}

	adopted := m.applySaveResult(seq, res)
	if adopted != "" {
		m.propagateIdentity(ctx, adopted)
	}

	m.mu.Lock()
	if m.identity != "" {
		res.ID = m.identity
	}
	m.mu.Unlock()
	return res, nil
}

func (m *Manager) applySaveResult(seq uint64, res SaveResult) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if seq < m.applied {
		m.logger.Debug("ignoring stale save response",
			zap.Uint64("seq", seq),
			zap.Uint64("applied", m.applied),
		)
		return ""
	}
	m.applied = seq

	if m.state == StateIdentified || strings.TrimSpace(res.ID) == "" {
		return ""
	}
	m.identity = res.ID
	m.state = StateIdentified
	m.logger.Info("draft identity assigned by server", zap.String("id", res.ID))
	return res.ID
}

func (m *Manager) propagateIdentity(ctx context.Context, id string) {
	snap, ok := m.CachedSnapshot(ctx)
	if ok && models.Deref(snap.ID) != id {
		doc := snap.Document()
		doc.ID = &id
		m.PersistLocally(ctx, doc)
		return
	}
	m.writeActive(ctx, id)
}

// ScheduleAutosave debounces a background remote save: bursts collapse into
// one save after the configured delay. build is called when the timer fires.
// Failures are only logged.
func (m *Manager) ScheduleAutosave(build func() SaveRequest) {
	if m.remote == nil {
		return
	}
	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	if m.autosave != nil {
		m.autosave.Stop()
	}
	m.autosave = time.AfterFunc(m.delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := m.PersistRemotely(ctx, build()); err != nil {
			m.logger.Warn("autosave failed", zap.Error(err))
		}
	})
}

// Close stops a pending autosave.
func (m *Manager) Close() {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	if m.autosave != nil {
		m.autosave.Stop()
		m.autosave = nil
	}
}

// activeEntry is the value kept under the active key. Key names the cache
// key of the document that wrote it.
type activeEntry struct {
	Key string `json:"key"`
	ID  string `json:"id"`
}

func (m *Manager) writeActive(ctx context.Context, id string) {
	raw, err := json.Marshal(activeEntry{Key: m.cacheKey, ID: id})
	if err != nil {
		m.logger.Warn("encode active draft id", zap.Error(err))
		return
	}
	if err := m.cache.Set(ctx, m.activeKey, string(raw)); err != nil {
		m.logger.Warn("write active draft id", zap.Error(err))
	}
}

func (m *Manager) readActive(ctx context.Context) (activeEntry, bool) {
	raw, ok, err := m.cache.Get(ctx, m.activeKey)
	if err != nil {
		m.logger.Warn("read active draft id", zap.Error(err))
		return activeEntry{}, false
	}
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return activeEntry{}, false
	}
	if !strings.HasPrefix(raw, "{") {
		return activeEntry{ID: raw}, true
	}
	var entry activeEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		m.logger.Warn("decode active draft id", zap.Error(err))
		return activeEntry{}, false
	}
	entry.ID = strings.TrimSpace(entry.ID)
	return entry, true
}

// cachedActive returns the active identity when it belongs to this document.
// A bare id without an owning key is accepted for any document.
func (m *Manager) cachedActive(ctx context.Context) string {
	entry, ok := m.readActive(ctx)
	if !ok || !m.owns(entry) {
		return ""
	}
	return entry.ID
}

func (m *Manager) owns(entry activeEntry) bool {
	return entry.Key == "" || entry.Key == m.cacheKey
}

func call(f func() string) string {
	if f == nil {
		return ""
	}
	return strings.TrimSpace(f())
}
