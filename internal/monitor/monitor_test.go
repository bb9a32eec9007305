package monitor

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"tipscore/internal/config"
	"tipscore/internal/database"
	"tipscore/internal/model"
	"tipscore/internal/pricefeed"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ListOutstandingTips(ctx context.Context) ([]model.Tip, error) {
	args := m.Called(ctx)
	tips, _ := args.Get(0).([]model.Tip)
	return tips, args.Error(1)
}

func (m *MockRepository) ListResolvedTips(ctx context.Context, creatorID int64) ([]model.ResolvedTip, error) {
	args := m.Called(ctx, creatorID)
	tips, _ := args.Get(0).([]model.ResolvedTip)
	return tips, args.Error(1)
}

func (m *MockRepository) ListCreatorIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]int64)
	return ids, args.Error(1)
}

func (m *MockRepository) ApplyTransition(ctx context.Context, tr model.Transition) error {
	args := m.Called(ctx, tr)
	return args.Error(0)
}

func (m *MockRepository) UpdateLastPrice(ctx context.Context, symbol string, price float64, seenAt time.Time) error {
	args := m.Called(ctx, symbol, price, seenAt)
	return args.Error(0)
}

func (m *MockRepository) WriteCreatorScore(ctx context.Context, score model.CreatorScore) error {
	args := m.Called(ctx, score)
	return args.Error(0)
}

func (m *MockRepository) FlagTip(ctx context.Context, tipID int64, reason string) error {
	args := m.Called(ctx, tipID, reason)
	return args.Error(0)
}

// stubSource serves canned quotes and counts lookups per symbol.
type stubSource struct {
	mu     sync.Mutex
	quotes map[string]pricefeed.Quote
	calls  map[string]int
}

func newStubSource(quotes map[string]pricefeed.Quote) *stubSource {
	return &stubSource{quotes: quotes, calls: make(map[string]int)}
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Current(ctx context.Context, symbol, exchangeHint string) (pricefeed.Quote, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[symbol]++
	q, ok := s.quotes[symbol]
	return q, ok, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Monitor: config.MonitorConfig{
			IntervalSeconds:     300,
			Concurrency:         4,
			PriceTimeoutSeconds: 5,
			CryptoVenue:         "BINANCE",
			CommodityVenue:      "COMEX",
		},
	}
}

func newTestMonitor(repo *MockRepository, source pricefeed.Source) *Monitor {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	m := NewMonitor(logger, repo, source, testConfig())
	m.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return m
}

func outstandingTip(id int64, symbol string) model.Tip {
	return model.Tip{
		ID:         id,
		CreatorID:  id * 10,
		Symbol:     symbol,
		Exchange:   "NASDAQ",
		AssetClass: model.AssetStock,
		Direction:  model.DirectionBuy,
		EntryPrice: 100,
		StopLoss:   90,
		Target1:    110,
		Timeframe:  model.TimeframeSwing,
		CreatedAt:  time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		ExpiresAt:  time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		Status:     model.StatusActive,
	}
}

func TestMonitor_PartialPriceFailure(t *testing.T) {
	repo := new(MockRepository)
	source := newStubSource(map[string]pricefeed.Quote{
		"AAPL": {Price: 110, At: time.Now()}, // target hit
		"MSFT": {Price: 100, At: time.Now()}, // no change
		// TSLA missing: lookup fails
	})

	tips := []model.Tip{
		outstandingTip(1, "AAPL"),
		outstandingTip(2, "MSFT"),
		outstandingTip(3, "TSLA"),
	}
	repo.On("ListOutstandingTips", mock.Anything).Return(tips, nil).Once()
	repo.On("ApplyTransition", mock.Anything, mock.MatchedBy(func(tr model.Transition) bool {
		return tr.TipID == 1 && tr.To == model.StatusAllTargetsHit
	})).Return(nil).Once()
	repo.On("UpdateLastPrice", mock.Anything, "AAPL", 110.0, mock.Anything).Return(nil).Once()
	repo.On("UpdateLastPrice", mock.Anything, "MSFT", 100.0, mock.Anything).Return(nil).Once()

	applied, err := newTestMonitor(repo, source).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, applied, 1)
	assert.Equal(t, int64(1), applied[0].TipID)
	assert.Equal(t, model.StatusActive, applied[0].From)
	assert.Equal(t, model.StatusAllTargetsHit, applied[0].To)
	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "UpdateLastPrice", mock.Anything, "TSLA", mock.Anything, mock.Anything)
}

func TestMonitor_DeduplicatesLookupsPerSymbol(t *testing.T) {
	repo := new(MockRepository)
	source := newStubSource(map[string]pricefeed.Quote{
		"AAPL": {Price: 100, At: time.Now()},
	})

	tips := []model.Tip{
		outstandingTip(1, "AAPL"),
		outstandingTip(2, "AAPL"),
		outstandingTip(3, "AAPL"),
	}
	repo.On("ListOutstandingTips", mock.Anything).Return(tips, nil).Once()
	repo.On("UpdateLastPrice", mock.Anything, "AAPL", 100.0, mock.Anything).Return(nil).Once()

	applied, err := newTestMonitor(repo, source).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, applied)
	assert.Equal(t, 1, source.calls["AAPL"])
	repo.AssertExpectations(t)
}

func TestMonitor_CryptoVenueOverrideCollapsesGroups(t *testing.T) {
	repo := new(MockRepository)
	source := newStubSource(map[string]pricefeed.Quote{
		"BTCUSDT": {Price: 50000, At: time.Now()},
	})

	a := outstandingTip(1, "BTCUSDT")
	a.AssetClass = model.AssetCrypto
	a.Exchange = "COINBASE"
	a.EntryPrice, a.StopLoss, a.Target1 = 48000, 45000, 60000
	b := outstandingTip(2, "BTCUSDT")
	b.AssetClass = model.AssetCrypto
	b.Exchange = "KRAKEN"
	b.EntryPrice, b.StopLoss, b.Target1 = 48000, 45000, 60000

	repo.On("ListOutstandingTips", mock.Anything).Return([]model.Tip{a, b}, nil).Once()
	repo.On("UpdateLastPrice", mock.Anything, "BTCUSDT", 50000.0, mock.Anything).Return(nil).Once()

	_, err := newTestMonitor(repo, source).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls["BTCUSDT"], "native exchanges must collapse to the crypto venue")
}

func TestMonitor_FlagsMalformedTips(t *testing.T) {
	repo := new(MockRepository)
	source := newStubSource(map[string]pricefeed.Quote{})

	bad := outstandingTip(9, "AAPL")
	bad.EntryPrice = 0

	repo.On("ListOutstandingTips", mock.Anything).Return([]model.Tip{bad}, nil).Once()
	repo.On("FlagTip", mock.Anything, int64(9), mock.Anything).Return(nil).Once()

	applied, err := newTestMonitor(repo, source).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, applied)
	assert.Zero(t, source.calls["AAPL"], "flagged tips must not trigger price lookups")
	repo.AssertExpectations(t)
}

func TestMonitor_ContinuesPastWriteFailure(t *testing.T) {
	repo := new(MockRepository)
	source := newStubSource(map[string]pricefeed.Quote{
		"AAPL": {Price: 110, At: time.Now()},
		"MSFT": {Price: 121, At: time.Now()},
	})

	a := outstandingTip(1, "AAPL")
	b := outstandingTip(2, "MSFT")
	b.EntryPrice, b.StopLoss, b.Target1 = 110, 100, 121

	repo.On("ListOutstandingTips", mock.Anything).Return([]model.Tip{a, b}, nil).Once()
	repo.On("ApplyTransition", mock.Anything, mock.MatchedBy(func(tr model.Transition) bool {
		return tr.TipID == 1
	})).Return(assert.AnError).Once()
	repo.On("ApplyTransition", mock.Anything, mock.MatchedBy(func(tr model.Transition) bool {
		return tr.TipID == 2
	})).Return(nil).Once()
	repo.On("UpdateLastPrice", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Twice()

	applied, err := newTestMonitor(repo, source).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, int64(2), applied[0].TipID)
	repo.AssertExpectations(t)
}

func TestMonitor_DroppedTransitionOnResolvedTip(t *testing.T) {
	repo := new(MockRepository)
	source := newStubSource(map[string]pricefeed.Quote{
		"AAPL": {Price: 110, At: time.Now()},
	})

	repo.On("ListOutstandingTips", mock.Anything).Return([]model.Tip{outstandingTip(1, "AAPL")}, nil).Once()
	repo.On("ApplyTransition", mock.Anything, mock.Anything).Return(database.ErrTipResolved).Once()
	repo.On("UpdateLastPrice", mock.Anything, "AAPL", 110.0, mock.Anything).Return(nil).Once()

	applied, err := newTestMonitor(repo, source).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, applied, "a write-once conflict is dropped, not surfaced")
	repo.AssertExpectations(t)
}
