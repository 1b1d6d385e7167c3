package ingest

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skpttrack/tracker/internal/analytics"
	"github.com/skpttrack/tracker/internal/apperr"
	"github.com/skpttrack/tracker/internal/cache"
	"github.com/skpttrack/tracker/internal/db"
	"github.com/skpttrack/tracker/internal/dedupe"
	"github.com/skpttrack/tracker/internal/models"
)

type recordingQueue struct {
	mu  sync.Mutex
	ids []int64
}

func (q *recordingQueue) Push(id int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
}

// blockingQueue stands in for a downstream that never answers.
type blockingQueue struct{ release chan struct{} }

func (q blockingQueue) Push(int64) {
	go func() { <-q.release }()
}

type env struct {
	db    *sql.DB
	cache *cache.LinkCache
	link  *models.TrackingLink
	queue *recordingQueue
	p     *Pipeline
}

func setup(t *testing.T) *env {
	t.Helper()
	database, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	ctx := context.Background()
	u := &models.User{Email: "a@example.com", BotID: "bot-1", BotToken: "secret"}
	require.NoError(t, models.CreateUser(ctx, database, u))
	l := &models.TrackingLink{UserID: u.ID, CampaignID: "camp-1", TrackingURL: "https://t/track?token=abc123", BotID: "bot-1", Token: "abc123"}
	require.NoError(t, models.CreateLink(ctx, database, l))

	c, err := cache.New(10, cache.DefaultTTL)
	require.NoError(t, err)
	q := &recordingQueue{}
	return &env{
		db:    database,
		cache: c,
		link:  l,
		queue: q,
		p:     New(database, c, analytics.NewEnricher(nil, nil), nil, q, nil),
	}
}

func eventCount(t *testing.T, d *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, d.QueryRow(`SELECT COUNT(*) FROM tracking_events`).Scan(&n))
	return n
}

func TestIngest_ClickStoresOnePendingRow(t *testing.T) {
	e := setup(t)

	res, err := e.p.Ingest(context.Background(), Request{
		Token:     "abc123",
		EventType: "click",
		Client:    analytics.Client{IP: "203.0.113.7", UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0"},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Event)

	assert.Equal(t, 1, eventCount(t, e.db))
	got, err := models.GetEvent(context.Background(), e.db, res.Event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, "camp-1", got.CampaignID)
	assert.Equal(t, "203.0.113.7", got.IP)
	assert.Nil(t, got.SaleValueCents)
	assert.Equal(t, []int64{res.Event.ID}, e.queue.ids)
}

func TestIngest_SlowDownstreamDoesNotBlock(t *testing.T) {
	e := setup(t)
	release := make(chan struct{})
	defer close(release)
	e.p.queue = blockingQueue{release: release}

	done := make(chan error, 1)
	go func() {
		_, err := e.p.Ingest(context.Background(), Request{Token: "abc123", EventType: "click"})
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ingest waited on delivery")
	}
	assert.Equal(t, 1, eventCount(t, e.db))
}

func TestIngest_UnknownToken(t *testing.T) {
	e := setup(t)

	_, err := e.p.Ingest(context.Background(), Request{Token: "nosuchtoken", EventType: "click"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	assert.Equal(t, 0, eventCount(t, e.db))

	_, err = e.p.Ingest(context.Background(), Request{Token: "", EventType: "click"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestIngest_NegativeSale(t *testing.T) {
	e := setup(t)

	_, err := e.p.Ingest(context.Background(), Request{Token: "abc123", EventType: "sale", Value: "-5"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	assert.Equal(t, 0, eventCount(t, e.db))
}

func TestIngest_Validation(t *testing.T) {
	e := setup(t)
	cases := []Request{
		{Token: "abc123", EventType: ""},
		{Token: "abc123", EventType: "refund"},
		{Token: "abc123", EventType: "sale"},
		{Token: "abc123", EventType: "sale", Value: "lots"},
		{Token: "abc123", EventType: "lead", Value: "-1"},
	}
	for _, req := range cases {
		_, err := e.p.Ingest(context.Background(), req)
		assert.ErrorIs(t, err, apperr.ErrInvalidInput, "request %+v", req)
	}
	assert.Equal(t, 0, eventCount(t, e.db))
}

func TestIngest_SaleValueAndCampaignOverride(t *testing.T) {
	e := setup(t)

	res, err := e.p.Ingest(context.Background(), Request{Token: "abc123", EventType: "SALE", Value: "49.90", CampaignID: "camp-2"})
	require.NoError(t, err)
	require.NotNil(t, res.Event.SaleValueCents)
	assert.Equal(t, int64(4990), *res.Event.SaleValueCents)
	assert.Equal(t, models.EventSale, res.Event.EventType)
	assert.Equal(t, "camp-2", res.Event.CampaignID)
}

func TestIngest_DeactivatedLink(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	_, err := e.p.Ingest(ctx, Request{Token: "abc123", EventType: "click"})
	require.NoError(t, err)

	require.NoError(t, models.DeactivateLink(ctx, e.db, e.link.ID, e.link.UserID))
	e.cache.Invalidate("abc123")

	_, err = e.p.Ingest(ctx, Request{Token: "abc123", EventType: "click"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	assert.Equal(t, 1, eventCount(t, e.db))
}

func TestIngest_CachedLinkExpiresAfterOutsideDeactivation(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	c, err := cache.New(10, 50*time.Millisecond)
	require.NoError(t, err)
	e.p = New(e.db, c, analytics.NewEnricher(nil, nil), nil, e.queue, nil)

	_, err = e.p.Ingest(ctx, Request{Token: "abc123", EventType: "click"})
	require.NoError(t, err)

	// Deactivated by another writer, so this cache is never invalidated.
	require.NoError(t, models.DeactivateLink(ctx, e.db, e.link.ID, e.link.UserID))
	time.Sleep(150 * time.Millisecond)

	_, err = e.p.Ingest(ctx, Request{Token: "abc123", EventType: "click"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	assert.Equal(t, 1, eventCount(t, e.db))
}

func TestIngest_StoreUnavailable(t *testing.T) {
	e := setup(t)
	e.db.Close()

	_, err := e.p.Ingest(context.Background(), Request{Token: "abc123", EventType: "click"})
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
}

func TestIngest_NoStore(t *testing.T) {
	p := New(nil, nil, nil, nil, nil, nil)
	_, err := p.Ingest(context.Background(), Request{Token: "abc123", EventType: "click"})
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
}

func TestIngest_DuplicateEventID(t *testing.T) {
	e := setup(t)
	mr := miniredis.RunT(t)
	f, err := dedupe.NewRedisFilter(context.Background(), "redis://"+mr.Addr(), time.Hour)
	require.NoError(t, err)
	defer f.Close()
	e.p.dedupe = f

	req := Request{Token: "abc123", EventType: "lead", EventID: "order-42"}
	first, err := e.p.Ingest(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := e.p.Ingest(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, 1, eventCount(t, e.db))
}

func TestIngest_DedupeDownFailsOpen(t *testing.T) {
	e := setup(t)
	mr := miniredis.RunT(t)
	f, err := dedupe.NewRedisFilter(context.Background(), "redis://"+mr.Addr(), time.Hour)
	require.NoError(t, err)
	defer f.Close()
	e.p.dedupe = f
	mr.Close()

	_, err = e.p.Ingest(context.Background(), Request{Token: "abc123", EventType: "lead", EventID: "order-42"})
	require.NoError(t, err)
	assert.Equal(t, 1, eventCount(t, e.db))
}
