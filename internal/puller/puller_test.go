package puller

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skinarb/internal/fetcher"
	"skinarb/internal/models"
	"skinarb/internal/storage"
)

type fakeStore struct {
	items          []models.Item
	listErr        error
	steamSnapshots []models.SteamSnapshot
	buffSnapshots  []models.BuffSnapshot
	fetchLogs      []models.FetchLog
	goodsIDUpdates map[uint]int64
}

func newFakeStore(items ...models.Item) *fakeStore {
	return &fakeStore{items: items, goodsIDUpdates: map[uint]int64{}}
}

func (s *fakeStore) GetOrCreateItem(name string, buffGoodsID *int64) (*models.Item, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) SetBuffGoodsID(itemID uint, goodsID int64) error {
	s.goodsIDUpdates[itemID] = goodsID
	return nil
}

func (s *fakeStore) GetItem(itemID uint) (*models.Item, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) ListItems(ids []uint) ([]models.Item, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]models.Item, len(s.items))
	copy(out, s.items)
	return out, nil
}

func (s *fakeStore) InsertSteamSnapshot(snap *models.SteamSnapshot) (uint, error) {
	s.steamSnapshots = append(s.steamSnapshots, *snap)
	return uint(len(s.steamSnapshots)), nil
}

func (s *fakeStore) InsertBuffSnapshot(snap *models.BuffSnapshot) (uint, error) {
	s.buffSnapshots = append(s.buffSnapshots, *snap)
	return uint(len(s.buffSnapshots)), nil
}

func (s *fakeStore) LogFetch(entry *models.FetchLog) error {
	s.fetchLogs = append(s.fetchLogs, *entry)
	return nil
}

func (s *fakeStore) LatestQuotes(itemID *uint) ([]storage.ItemQuotes, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) PriceHistory(itemID uint, windowDays int) (*storage.History, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) Close() error { return nil }

type fakeSteam struct {
	results map[string]fetcher.FetchResult
	calls   []string
}

var _ fetcher.QuoteFetcher = (*fakeSteam)(nil)

func (f *fakeSteam) FetchQuote(ctx context.Context, name string) fetcher.FetchResult {
	f.calls = append(f.calls, name)
	if r, ok := f.results[name]; ok {
		return r
	}
	return fetcher.FetchResult{Outcome: fetcher.Failure("no fixture", nil, nil)}
}

type fakeBuff struct {
	searchResults map[string]fetcher.SearchResult
	orderResults  map[int64]fetcher.FetchResult
	searchCalls   []string
	orderCalls    []int64
}

func (f *fakeBuff) Search(ctx context.Context, term string) fetcher.SearchResult {
	f.searchCalls = append(f.searchCalls, term)
	if r, ok := f.searchResults[term]; ok {
		return r
	}
	return fetcher.SearchResult{Outcome: fetcher.Failure("no fixture", nil, nil)}
}

func (f *fakeBuff) FetchSellOrders(ctx context.Context, goodsID int64) fetcher.FetchResult {
	f.orderCalls = append(f.orderCalls, goodsID)
	if r, ok := f.orderResults[goodsID]; ok {
		return r
	}
	return fetcher.FetchResult{Outcome: fetcher.Failure("no fixture", nil, nil)}
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
func int64Ptr(v int64) *int64     { return &v }

func steamSuccess(ask float64) fetcher.FetchResult {
	status := 200
	latency := int64(40)
	return fetcher.FetchResult{
		Outcome: fetcher.Outcome{Success: true, StatusCode: &status, LatencyMS: &latency},
		Observation: &fetcher.Observation{
			Source:      fetcher.SourceSteam,
			BestAsk:     floatPtr(ask),
			LowestPrice: floatPtr(ask),
			Raw:         json.RawMessage(`{"success":true}`),
		},
	}
}

func buffOrdersSuccess(ask float64, count int) fetcher.FetchResult {
	status := 200
	latency := int64(55)
	return fetcher.FetchResult{
		Outcome: fetcher.Outcome{Success: true, StatusCode: &status, LatencyMS: &latency},
		Observation: &fetcher.Observation{
			Source:     fetcher.SourceBuff,
			BestAsk:    floatPtr(ask),
			OrderCount: intPtr(count),
			Raw:        json.RawMessage(`{"data":{}}`),
		},
	}
}

func buffSearchSuccess(candidates ...fetcher.Candidate) fetcher.SearchResult {
	status := 200
	latency := int64(60)
	return fetcher.SearchResult{
		Outcome:    fetcher.Outcome{Success: true, StatusCode: &status, LatencyMS: &latency},
		Candidates: candidates,
	}
}

func TestRunOnceHappyPath(t *testing.T) {
	goodsID := int64(33915)
	store := newFakeStore(
		models.Item{ID: 1, MarketHashName: "AK-47 | Redline (Field-Tested)", BuffGoodsID: &goodsID},
	)
	steam := &fakeSteam{results: map[string]fetcher.FetchResult{
		"AK-47 | Redline (Field-Tested)": steamSuccess(10.0),
	}}
	buff := &fakeBuff{orderResults: map[int64]fetcher.FetchResult{
		goodsID: buffOrdersSuccess(62.5, 3),
	}}

	p := New(Config{CurrencyID: 1}, store, steam, buff, testLogger())
	require.NoError(t, p.RunOnce(context.Background()))

	require.Len(t, store.steamSnapshots, 1)
	assert.Equal(t, uint(1), store.steamSnapshots[0].ItemID)
	assert.Equal(t, 10.0, *store.steamSnapshots[0].BestAsk)
	assert.Equal(t, 1, store.steamSnapshots[0].CurrencyID)
	assert.False(t, store.steamSnapshots[0].Timestamp.IsZero())

	require.Len(t, store.buffSnapshots, 1)
	assert.Equal(t, 62.5, *store.buffSnapshots[0].BestAsk)
	assert.Equal(t, 3, *store.buffSnapshots[0].SellOrderCount)
	assert.Equal(t, "CNY", store.buffSnapshots[0].Currency)

	// No search call: the goods ID was already cached.
	assert.Empty(t, buff.searchCalls)
	assert.Equal(t, []int64{goodsID}, buff.orderCalls)

	require.Len(t, store.fetchLogs, 2)
	assert.True(t, store.fetchLogs[0].Success)
	assert.Equal(t, fetcher.SourceSteam, store.fetchLogs[0].Source)
	assert.True(t, store.fetchLogs[1].Success)
	assert.Equal(t, fetcher.EndpointSellOrders, store.fetchLogs[1].Endpoint)
}

func TestRunOnceResolvesGoodsID(t *testing.T) {
	store := newFakeStore(models.Item{ID: 7, MarketHashName: "AWP | Asiimov (Field-Tested)"})
	steam := &fakeSteam{results: map[string]fetcher.FetchResult{
		"AWP | Asiimov (Field-Tested)": steamSuccess(80.0),
	}}
	buff := &fakeBuff{
		searchResults: map[string]fetcher.SearchResult{
			"AWP | Asiimov (Field-Tested)": buffSearchSuccess(
				fetcher.Candidate{ID: 34001, Name: "AWP | Asiimov (Field-Tested)"},
				fetcher.Candidate{ID: 34002, Name: "AWP | Asiimov (Well-Worn)"},
			),
		},
		orderResults: map[int64]fetcher.FetchResult{
			34001: buffOrdersSuccess(520.0, 12),
		},
	}

	p := New(Config{}, store, steam, buff, testLogger())
	require.NoError(t, p.RunOnce(context.Background()))

	// First candidate wins and the resolution is persisted.
	assert.Equal(t, int64(34001), store.goodsIDUpdates[7])
	assert.Equal(t, []int64{34001}, buff.orderCalls)
	require.Len(t, store.buffSnapshots, 1)
	assert.Equal(t, 520.0, *store.buffSnapshots[0].BestAsk)

	// Steam success, search success, sell-order success.
	require.Len(t, store.fetchLogs, 3)
	assert.Equal(t, fetcher.EndpointSearch, store.fetchLogs[1].Endpoint)
	assert.True(t, store.fetchLogs[1].Success)
}

func TestRunOnceEmptySearchSkipsBuff(t *testing.T) {
	store := newFakeStore(models.Item{ID: 3, MarketHashName: "Nonexistent Skin"})
	steam := &fakeSteam{results: map[string]fetcher.FetchResult{
		"Nonexistent Skin": steamSuccess(1.0),
	}}
	buff := &fakeBuff{
		searchResults: map[string]fetcher.SearchResult{
			"Nonexistent Skin": buffSearchSuccess(),
		},
	}

	p := New(Config{}, store, steam, buff, testLogger())
	require.NoError(t, p.RunOnce(context.Background()))

	assert.Empty(t, buff.orderCalls)
	assert.Empty(t, store.buffSnapshots)
	assert.Empty(t, store.goodsIDUpdates)

	// The empty search is logged as a failure with a reason.
	require.Len(t, store.fetchLogs, 2)
	searchLog := store.fetchLogs[1]
	assert.Equal(t, fetcher.EndpointSearch, searchLog.Endpoint)
	assert.False(t, searchLog.Success)
	require.NotNil(t, searchLog.ErrorMessage)
	assert.Equal(t, "no goods matched search", *searchLog.ErrorMessage)
}

func TestRunOnceFailureIsolation(t *testing.T) {
	goodsA := int64(100)
	goodsB := int64(200)
	store := newFakeStore(
		models.Item{ID: 1, MarketHashName: "Item A", BuffGoodsID: &goodsA},
		models.Item{ID: 2, MarketHashName: "Item B", BuffGoodsID: &goodsB},
	)
	// Item A fails on both sources; item B succeeds on both.
	steam := &fakeSteam{results: map[string]fetcher.FetchResult{
		"Item A": {Outcome: fetcher.Failure("HTTP 429", intPtr(429), int64Ptr(10))},
		"Item B": steamSuccess(25.0),
	}}
	buff := &fakeBuff{orderResults: map[int64]fetcher.FetchResult{
		goodsA: {Outcome: fetcher.Failure("HTTP 500", intPtr(500), int64Ptr(20))},
		goodsB: buffOrdersSuccess(150.0, 8),
	}}

	p := New(Config{}, store, steam, buff, testLogger())
	require.NoError(t, p.RunOnce(context.Background()))

	// Item A's failures never blocked item B.
	require.Len(t, store.steamSnapshots, 1)
	assert.Equal(t, uint(2), store.steamSnapshots[0].ItemID)
	require.Len(t, store.buffSnapshots, 1)
	assert.Equal(t, uint(2), store.buffSnapshots[0].ItemID)

	// Every attempt is audited, failed ones included.
	require.Len(t, store.fetchLogs, 4)
	assert.False(t, store.fetchLogs[0].Success)
	require.NotNil(t, store.fetchLogs[0].StatusCode)
	assert.Equal(t, 429, *store.fetchLogs[0].StatusCode)
	assert.False(t, store.fetchLogs[1].Success)
	assert.True(t, store.fetchLogs[2].Success)
	assert.True(t, store.fetchLogs[3].Success)
}

func TestRunOnceSearchFailureSkipsOrders(t *testing.T) {
	store := newFakeStore(models.Item{ID: 5, MarketHashName: "Item C"})
	steam := &fakeSteam{results: map[string]fetcher.FetchResult{
		"Item C": steamSuccess(5.0),
	}}
	buff := &fakeBuff{
		searchResults: map[string]fetcher.SearchResult{
			"Item C": {Outcome: fetcher.Failure("HTTP 403", intPtr(403), int64Ptr(30))},
		},
	}

	p := New(Config{}, store, steam, buff, testLogger())
	require.NoError(t, p.RunOnce(context.Background()))

	assert.Empty(t, buff.orderCalls)
	assert.Empty(t, store.goodsIDUpdates)
}

func TestRunOnceNoItems(t *testing.T) {
	store := newFakeStore()
	p := New(Config{}, store, &fakeSteam{}, &fakeBuff{}, testLogger())
	require.NoError(t, p.RunOnce(context.Background()))
	assert.Empty(t, store.fetchLogs)
}

func TestRunOnceListError(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("database locked")
	p := New(Config{}, store, &fakeSteam{}, &fakeBuff{}, testLogger())
	assert.Error(t, p.RunOnce(context.Background()))
}

func TestRunStopsOnCancel(t *testing.T) {
	goodsID := int64(1)
	store := newFakeStore(models.Item{ID: 1, MarketHashName: "Item", BuffGoodsID: &goodsID})
	steam := &fakeSteam{results: map[string]fetcher.FetchResult{"Item": steamSuccess(1.0)}}
	buff := &fakeBuff{orderResults: map[int64]fetcher.FetchResult{1: buffOrdersSuccess(6.0, 1)}}

	ctx, cancel := context.WithCancel(context.Background())
	p := New(Config{Interval: time.Hour}, store, steam, buff, testLogger())

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
