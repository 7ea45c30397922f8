package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"execdash/internal/config"
	dbpkg "execdash/internal/db"
	"execdash/internal/snapshot"
	"execdash/internal/store"
	"execdash/internal/testutil"
)

type recordingPublisher struct {
	mu   sync.Mutex
	got  []snapshot.Snapshot
	fail error
}

func (p *recordingPublisher) Publish(_ context.Context, s snapshot.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, s)
	return p.fail
}

func (p *recordingPublisher) published() []snapshot.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]snapshot.Snapshot(nil), p.got...)
}

type fixture struct {
	*store.Store
	db    *gorm.DB
	clock *testutil.Clock
	pub   *recordingPublisher
}

func newStore(t *testing.T, opts ...store.Option) fixture {
	t.Helper()
	f := fixture{
		db:    testutil.NewDB(t),
		clock: testutil.NewClock(),
		pub:   &recordingPublisher{},
	}
	all := append([]store.Option{store.WithClock(f.clock), store.WithPublisher(f.pub)}, opts...)
	f.Store = store.New(f.db, all...)
	return f
}

func TestGetLatest_EmptyIsNotFound(t *testing.T) {
	s := newStore(t)

	_, err := s.GetLatest(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	assert.False(t, errors.Is(err, store.ErrTransport))
}

func TestGetLatest_ClosedDatabaseIsTransportError(t *testing.T) {
	db := testutil.NewDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = store.New(db).GetLatest(context.Background())
	assert.True(t, errors.Is(err, store.ErrTransport))
}

func TestUpsert_RoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	want := snapshot.Default()
	want.PeopleServed = 7777777
	want.ScenarioFactors["economicGrowth"] = 2.5
	want.GlobalIndicators["custom"] = 1.25

	stored, err := s.Upsert(ctx, want.Partial())
	require.NoError(t, err)
	require.NotZero(t, stored.ID)

	got, err := s.GetLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, got.ID)
	assert.True(t, stored.UpdatedAt.Equal(got.UpdatedAt))
	for _, f := range snapshot.Fields {
		w, _ := want.Value(f.Key)
		g, _ := got.Value(f.Key)
		assert.Equal(t, w, g, f.Key)
	}
	assert.Equal(t, want.ScenarioFactors, got.ScenarioFactors)
	assert.Equal(t, want.ChartDeltas, got.ChartDeltas)
	assert.Equal(t, want.GlobalIndicators, got.GlobalIndicators)
}

func TestUpsert_ByIDReplacesRow(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	first, err := s.Upsert(ctx, snapshot.Default().Partial())
	require.NoError(t, err)

	s.clock.Advance(time.Minute)
	next := first
	next.Revenue = 1
	second, err := s.Upsert(ctx, next.Partial())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.CreatedAt.Equal(first.CreatedAt))
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))

	var count int64
	require.NoError(t, s.db.Model(&dbpkg.ExecutiveMetrics{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpsert_AppendModeKeepsHistory(t *testing.T) {
	s := newStore(t, store.WithWriteMode(config.WriteModeAppend))
	ctx := context.Background()
	start := s.clock.Now()

	var last snapshot.Snapshot
	for i := 1; i <= 3; i++ {
		p := snapshot.Default().Partial()
		require.NoError(t, p.Set("revenue", float64(i)))
		stored, err := s.Upsert(ctx, p)
		require.NoError(t, err)
		last = stored
		s.clock.Advance(time.Hour)
	}

	got, err := s.GetLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, last.ID, got.ID)
	assert.Equal(t, float64(3), got.Revenue)

	hist, err := s.History(ctx, start, 0)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, float64(3), hist[0].Revenue)
	assert.Equal(t, float64(1), hist[2].Revenue)
}

func TestUpsert_UpdatedAtMonotonicWhenClockGoesBack(t *testing.T) {
	s := newStore(t, store.WithWriteMode(config.WriteModeAppend))
	ctx := context.Background()

	first, err := s.Upsert(ctx, snapshot.Default().Partial())
	require.NoError(t, err)

	s.clock.Set(s.clock.Now().Add(-time.Hour))
	p := snapshot.Default().Partial()
	require.NoError(t, p.Set("people_served", 1))
	second, err := s.Upsert(ctx, p)
	require.NoError(t, err)

	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	got, err := s.GetLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, int64(1), got.PeopleServed)
}

func TestUpsert_UnsetFieldsAreNotMergedWithPrevious(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, snapshot.Default().Partial())
	require.NoError(t, err)

	var p snapshot.Partial
	require.NoError(t, p.Set("revenue", 5))
	stored, err := s.Upsert(ctx, p)
	require.NoError(t, err)

	assert.Equal(t, float64(5), stored.Revenue)
	assert.Zero(t, stored.PeopleServed)
	assert.Contains(t, stored.GlobalIndicators, "egyptInflation")
}

func TestUpsert_PublishesOnceAfterCommit(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	stored, err := s.Upsert(ctx, snapshot.Default().Partial())
	require.NoError(t, err)

	got := s.pub.published()
	require.Len(t, got, 1)
	assert.Equal(t, stored.ID, got[0].ID)
}

func TestUpsert_PublishFailureDoesNotFailWrite(t *testing.T) {
	s := newStore(t)
	s.pub.fail = errors.New("feed down")

	stored, err := s.Upsert(context.Background(), snapshot.Default().Partial())
	require.NoError(t, err)
	assert.NotZero(t, stored.ID)
}

func TestUpsert_WritesAuditRows(t *testing.T) {
	s := newStore(t)
	ctx := store.WithActor(context.Background(), "alice")

	first, err := s.Upsert(ctx, snapshot.Default().Partial())
	require.NoError(t, err)
	s.clock.Advance(time.Second)
	_, err = s.Upsert(ctx, first.Partial())
	require.NoError(t, err)

	rows, err := dbpkg.ListAuditLogs(s.db, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "UPDATE", rows[0].Action)
	assert.Equal(t, "alice", rows[0].Actor)
	assert.Equal(t, "executive_metrics", rows[0].Table)
	assert.NotEmpty(t, rows[0].OldData)

	assert.Equal(t, "INSERT", rows[1].Action)
	assert.Empty(t, rows[1].OldData)
}

func TestSeed(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	seeded, wrote, err := s.Seed(ctx)
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, snapshot.Default().PeopleServed, seeded.PeopleServed)

	_, wrote, err = s.Seed(ctx)
	require.NoError(t, err)
	assert.False(t, wrote)
}

func TestActorFrom(t *testing.T) {
	assert.Equal(t, store.SystemActor, store.ActorFrom(context.Background()))
	assert.Equal(t, "bob", store.ActorFrom(store.WithActor(context.Background(), "bob")))
}
