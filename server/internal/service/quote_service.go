package service

import (
	"errors"
	"fmt"

	"skinarb/internal/models"
	"skinarb/internal/risk"
	"skinarb/internal/storage"
)

// ErrNoQuotes is returned when an item has no usable observation on one
// of the sources yet.
var ErrNoQuotes = errors.New("no quotes available for item")

// RiskParams holds the risk model settings the service evaluates with.
type RiskParams struct {
	SteamSaleFee         float64
	HoldDays             int
	Simulations          int
	Drift                float64
	ExecutionProbability float64
	RiskAversion         float64
	MinPnL               float64
	MinProbPositive      float64
	HistoryWindowDays    int
}

// ItemAssessment is the full risk evaluation of one item at its current
// quotes.
type ItemAssessment struct {
	Item       models.Item     `json:"item"`
	SteamPrice float64         `json:"steam_price"`
	BuffPrice  float64         `json:"buff_price"`
	SpreadPct  float64         `json:"spread_pct"`
	Volatility float64         `json:"daily_volatility"`
	Risk       risk.Assessment `json:"risk"`
	Score      float64         `json:"score"`
	Action     risk.Action     `json:"action"`
}

// QuoteService reads stored observations and evaluates spreads. It
// never triggers fetches; the puller owns all network traffic.
type QuoteService struct {
	store  storage.Store
	params RiskParams
}

func NewQuoteService(store storage.Store, params RiskParams) *QuoteService {
	return &QuoteService{store: store, params: params}
}

func (s *QuoteService) ListItems() ([]models.Item, error) {
	return s.store.ListItems(nil)
}

func (s *QuoteService) GetItem(itemID uint) (*models.Item, error) {
	return s.store.GetItem(itemID)
}

// LatestQuotes returns the most recent snapshot per source for each
// item, or for a single item when itemID is non-nil.
func (s *QuoteService) LatestQuotes(itemID *uint) ([]storage.ItemQuotes, error) {
	return s.store.LatestQuotes(itemID)
}

// AssessItem evaluates the current Steam/Buff spread for one item under
// the forced holding period. Volatility comes from the stored Steam
// price history within the configured window.
func (s *QuoteService) AssessItem(itemID uint) (*ItemAssessment, error) {
	item, err := s.store.GetItem(itemID)
	if err != nil {
		return nil, err
	}

	quotes, err := s.store.LatestQuotes(&itemID)
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, ErrNoQuotes
	}

	q := quotes[0]
	if q.Steam == nil || q.Steam.BestAsk == nil {
		return nil, fmt.Errorf("%w: no steam price", ErrNoQuotes)
	}
	if q.Buff == nil || q.Buff.BestAsk == nil {
		return nil, fmt.Errorf("%w: no buff price", ErrNoQuotes)
	}

	steamPrice := *q.Steam.BestAsk
	buffPrice := *q.Buff.BestAsk

	history, err := s.store.PriceHistory(itemID, s.params.HistoryWindowDays)
	if err != nil {
		return nil, err
	}
	prices := make([]float64, 0, len(history.Steam))
	for _, snap := range history.Steam {
		if snap.BestAsk != nil {
			prices = append(prices, *snap.BestAsk)
		}
	}
	vol := risk.Volatility(prices, risk.LogReturns)

	assessment := risk.AssessHoldPeriodRisk(
		steamPrice, buffPrice, vol,
		s.params.HoldDays, s.params.Simulations, s.params.Drift,
		s.params.SteamSaleFee, nil,
	)

	score := risk.RiskAdjustedScore(
		assessment.ExpectedPnL, assessment.ProbPositive, assessment.VaR95,
		s.params.ExecutionProbability, s.params.RiskAversion,
	)
	action := risk.RecommendAction(
		assessment.CurrentPnL, assessment.ProbPositive, assessment.ExpectedPnL,
		s.params.MinPnL, s.params.MinProbPositive,
	)

	return &ItemAssessment{
		Item:       *item,
		SteamPrice: steamPrice,
		BuffPrice:  buffPrice,
		SpreadPct:  risk.SpreadPct(assessment.CurrentPnL, buffPrice),
		Volatility: vol,
		Risk:       assessment,
		Score:      score,
		Action:     action,
	}, nil
}
