package draftsync

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mx-space/blockdraft/internal/models"
	"github.com/mx-space/blockdraft/internal/pkg/localcache"
	"github.com/mx-space/blockdraft/internal/pkg/ulid"
)

const (
	mintedID = "01HF53Z4RCVPRANKFBZYMS72QW"
	cacheKey = "post-editor"
)

func TestMain(m *testing.M) {
	ulid.MockGenerator(mintedID)
	code := m.Run()
	ulid.ResetGenerator()
	os.Exit(code)
}

// fakeRemote records saves and answers with a fixed or per-call identity.
type fakeRemote struct {
	mu      sync.Mutex
	saves   []SaveRequest
	drafts  map[string]*LoadedDraft
	nextIDs []string
	fail    error
	gate    map[int]chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{drafts: map[string]*LoadedDraft{}, gate: map[int]chan struct{}{}}
}

func (f *fakeRemote) Load(_ context.Context, id string) (*LoadedDraft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drafts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func (f *fakeRemote) Save(_ context.Context, req SaveRequest) (SaveResult, error) {
	f.mu.Lock()
	call := len(f.saves)
	f.saves = append(f.saves, req)
	gate := f.gate[call]
	fail := f.fail
	id := models.Deref(req.ID)
	created := false
	if id == "" && len(f.nextIDs) > 0 {
		id = f.nextIDs[0]
		f.nextIDs = f.nextIDs[1:]
		created = true
	}
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if fail != nil {
		return SaveResult{}, fail
	}
	return SaveResult{ID: id, Version: call + 1, Created: created}, nil
}

func (f *fakeRemote) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func fixed(id string) func() string { return func() string { return id } }

func seedSnapshot(t *testing.T, cache localcache.Store, key string, id *string) {
	raw, err := json.Marshal(models.Snapshot{ID: id, Blocks: []models.Block{{Type: models.BlockText, Data: "cached"}}})
	require.NoError(t, err)
	require.NoError(t, cache.Set(context.Background(), key, string(raw)))
}

func TestResolveIdentityPrecedence(t *testing.T) {
	ctx := context.Background()
	snapID := "from-snapshot"

	tests := []struct {
		name       string
		explicit   string
		contextual string
		active     string
		snapshot   *string
		expected   string
		found      bool
	}{
		{"explicit wins", "explicit", "contextual", "active", &snapID, "explicit", true},
		{"contextual when no explicit", "", "contextual", "active", &snapID, "contextual", true},
		{"cached active when no explicit or contextual", "", "", "active", &snapID, "active", true},
		{"snapshot identity last", "", "", "", &snapID, "from-snapshot", true},
		{"nothing anywhere", "", "", "", nil, "", false},
		{"blank values are absent", "  ", "\t", "", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := localcache.NewMemoryStore()
			if tt.active != "" {
				require.NoError(t, cache.Set(ctx, DefaultActiveKey, tt.active))
			}
			seedSnapshot(t, cache, cacheKey, tt.snapshot)

			m := NewManager(Options{
				CacheKey: cacheKey,
				Cache:    cache,
				Sources:  Sources{Explicit: fixed(tt.explicit), Contextual: fixed(tt.contextual)},
			})
			id, found := m.ResolveIdentity(ctx)
			assert.Equal(t, tt.expected, id)
			assert.Equal(t, tt.found, found)

			_, state := m.Identity()
			assert.Equal(t, StateUnidentified, state, "resolve must not change state")
		})
	}
}

func TestEnsureIdentityMintsOnce(t *testing.T) {
	ctx := context.Background()
	defer ulid.MockGenerator(mintedID)
	ulid.SequenceGenerator(mintedID, "01HF53Z4RCVPRANKFBZYMS72QX")

	m := NewManager(Options{CacheKey: cacheKey})

	id := m.EnsureIdentity(ctx)
	assert.Equal(t, mintedID, id)
	assert.True(t, m.Minted())

	for i := 0; i < 5; i++ {
		assert.Equal(t, mintedID, m.EnsureIdentity(ctx))
	}
	got, state := m.Identity()
	assert.Equal(t, mintedID, got)
	assert.Equal(t, StateIdentified, state)
	assert.Equal(t, "identified", state.String())
}

func TestEnsureIdentityUsesResolvedIdentity(t *testing.T) {
	m := NewManager(Options{CacheKey: cacheKey, Sources: Sources{Contextual: fixed("ctx-id")}})
	assert.Equal(t, "ctx-id", m.EnsureIdentity(context.Background()))
	assert.False(t, m.Minted())
}

func TestPersistLocallyWritesSnapshotAndActiveKey(t *testing.T) {
	ctx := context.Background()
	cache := localcache.NewMemoryStore()
	m := NewManager(Options{CacheKey: cacheKey, Cache: cache})
	m.EnsureIdentity(ctx)

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.PersistLocally(ctx, models.Document{
		Blocks:       []models.Block{{Type: models.BlockHeading, Data: "Intro"}},
		LastModified: now,
	})

	snap, ok := m.CachedSnapshot(ctx)
	require.True(t, ok)
	assert.Equal(t, mintedID, models.Deref(snap.ID))
	assert.Equal(t, "2026-01-02T03:04:05Z", snap.LastModified)
	require.Len(t, snap.Blocks, 1)

	_, ok, err := cache.Get(ctx, DefaultActiveKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, mintedID, m.cachedActive(ctx))
}

func TestActiveIdentityStaysWithItsDocument(t *testing.T) {
	ctx := context.Background()
	cache := localcache.NewMemoryStore()
	first := NewManager(Options{CacheKey: "doc:u1:a", Cache: cache})
	first.EnsureIdentity(ctx)
	first.PersistLocally(ctx, models.Document{Blocks: []models.Block{{Type: models.BlockText, Data: "a"}}})

	second := NewManager(Options{CacheKey: "doc:u1:b", Cache: cache})
	_, found := second.ResolveIdentity(ctx)
	assert.False(t, found)

	second.ForgetActive(ctx)
	reopened := NewManager(Options{CacheKey: "doc:u1:a", Cache: cache})
	id, found := reopened.ResolveIdentity(ctx)
	assert.True(t, found)
	assert.Equal(t, mintedID, id)
}

func TestPersistLocallyNeverErasesCachedIdentity(t *testing.T) {
	ctx := context.Background()
	cache := localcache.NewMemoryStore()
	existing := "cached-id"
	seedSnapshot(t, cache, cacheKey, &existing)

	m := NewManager(Options{CacheKey: cacheKey, Cache: cache})
	m.PersistLocally(ctx, models.Document{Blocks: []models.Block{{Type: models.BlockText}}})

	snap, ok := m.CachedSnapshot(ctx)
	require.True(t, ok)
	assert.Equal(t, "cached-id", models.Deref(snap.ID))
}

func TestPersistLocallySwallowsFailures(t *testing.T) {
	cache := localcache.NewMemoryStore()
	cache.SetFailing(true)
	m := NewManager(Options{CacheKey: cacheKey, Cache: cache})

	assert.NotPanics(t, func() {
		m.PersistLocally(context.Background(), models.Document{})
	})
	_, ok := m.CachedSnapshot(context.Background())
	assert.False(t, ok)
}

func TestCorruptSnapshotIsIgnored(t *testing.T) {
	ctx := context.Background()
	cache := localcache.NewMemoryStore()
	require.NoError(t, cache.Set(ctx, cacheKey, "{not json"))

	m := NewManager(Options{CacheKey: cacheKey, Cache: cache})
	_, ok := m.CachedSnapshot(ctx)
	assert.False(t, ok)
	_, found := m.ResolveIdentity(ctx)
	assert.False(t, found)
}

func TestPersistRemotelyAdoptsServerIdentity(t *testing.T) {
	ctx := context.Background()
	cache := localcache.NewMemoryStore()
	remote := newFakeRemote()
	remote.nextIDs = []string{"server-id"}

	m := NewManager(Options{CacheKey: cacheKey, Cache: cache, Remote: remote})
	m.PersistLocally(ctx, models.Document{Blocks: []models.Block{{Type: models.BlockText}}})

	res, err := m.PersistRemotely(ctx, SaveRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "server-id", res.ID)
	assert.True(t, res.Created)

	id, state := m.Identity()
	assert.Equal(t, "server-id", id)
	assert.Equal(t, StateIdentified, state)

	snap, ok := m.CachedSnapshot(ctx)
	require.True(t, ok)
	assert.Equal(t, "server-id", models.Deref(snap.ID))

	assert.Equal(t, "server-id", m.cachedActive(ctx))
}

func TestPersistRemotelyKeepsSessionIdentity(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	m := NewManager(Options{CacheKey: cacheKey, Remote: remote})
	id := m.EnsureIdentity(ctx)

	for i := 0; i < 3; i++ {
		res, err := m.PersistRemotely(ctx, SaveRequest{UserID: "u1"})
		require.NoError(t, err)
		assert.Equal(t, id, res.ID)
	}

	require.Equal(t, 3, remote.saveCount())
	for _, req := range remote.saves {
		assert.Equal(t, id, models.Deref(req.ID))
	}
}

func TestPersistRemotelyIgnoresStaleResponse(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.nextIDs = []string{"older", "newer"}
	release := make(chan struct{})
	remote.gate[0] = release

	m := NewManager(Options{CacheKey: cacheKey, Remote: remote})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := m.PersistRemotely(ctx, SaveRequest{})
		assert.NoError(t, err)
	}()
	require.Eventually(t, func() bool { return remote.saveCount() == 1 }, time.Second, time.Millisecond)

	res, err := m.PersistRemotely(ctx, SaveRequest{})
	require.NoError(t, err)
	assert.Equal(t, "newer", res.ID)

	close(release)
	<-done

	id, _ := m.Identity()
	assert.Equal(t, "newer", id)
}

func TestPersistRemotelyFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.fail = errors.New("boom")
	m := NewManager(Options{CacheKey: cacheKey, Remote: remote})

	_, err := m.PersistRemotely(context.Background(), SaveRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	_, state := m.Identity()
	assert.Equal(t, StateUnidentified, state)
}

func TestNoRemote(t *testing.T) {
	m := NewManager(Options{CacheKey: cacheKey})
	_, err := m.PersistRemotely(context.Background(), SaveRequest{})
	assert.ErrorIs(t, err, ErrNoRemote)
	_, err = m.Load(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoRemote)
}

func TestLoad(t *testing.T) {
	remote := newFakeRemote()
	remote.drafts["d1"] = &LoadedDraft{ID: "d1", Title: "Hello"}
	m := NewManager(Options{CacheKey: cacheKey, Remote: remote})

	d, err := m.Load(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "Hello", d.Title)

	_, err = m.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScheduleAutosaveDebounces(t *testing.T) {
	remote := newFakeRemote()
	m := NewManager(Options{CacheKey: cacheKey, Remote: remote, AutosaveDelay: 20 * time.Millisecond})
	defer m.Close()

	for i := 0; i < 5; i++ {
		m.ScheduleAutosave(func() SaveRequest { return SaveRequest{UserID: "u1"} })
	}

	require.Eventually(t, func() bool { return remote.saveCount() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, remote.saveCount())
}

func TestForgetActiveAndDiscard(t *testing.T) {
	ctx := context.Background()
	cache := localcache.NewMemoryStore()
	m := NewManager(Options{CacheKey: cacheKey, Cache: cache})
	m.EnsureIdentity(ctx)
	m.PersistLocally(ctx, models.Document{})

	m.ForgetActive(ctx)
	m.Discard(ctx)

	_, ok, _ := cache.Get(ctx, DefaultActiveKey)
	assert.False(t, ok)
	_, ok = m.CachedSnapshot(ctx)
	assert.False(t, ok)
}
