// Package risk computes holding-period risk metrics for cross-market
// opportunities: volatility estimation from price history, Monte Carlo
// simulation of the holding period under a log-normal model, and a
// risk-adjusted score with an action recommendation.
//
// Everything here is pure computation; nothing is persisted.
package risk

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// VolatilityMethod selects how per-step returns are computed.
type VolatilityMethod string

const (
	// LogReturns uses ln(P_t / P_{t-1}).
	LogReturns VolatilityMethod = "log_returns"

	// SimpleReturns uses (P_t - P_{t-1}) / P_{t-1}.
	SimpleReturns VolatilityMethod = "simple_returns"
)

// Action is the recommendation for an opportunity.
type Action string

const (
	// ActionSkip means the current spread is insufficient.
	ActionSkip Action = "skip"

	// ActionMonitor means the spread clears the bar but the simulated
	// outcome does not.
	ActionMonitor Action = "monitor"

	// ActionCandidate means both the current spread and the simulated
	// outcome clear the bar.
	ActionCandidate Action = "candidate"
)

// Assessment holds the risk metrics for one item at one instant.
// Computed on demand and discarded; never persisted.
type Assessment struct {
	// CurrentPnL is the non-simulated spread PnL right now.
	CurrentPnL float64 `json:"current_pnl"`

	// ProbPositive is the fraction of simulated draws with PnL > 0.
	ProbPositive float64 `json:"prob_positive"`

	// ExpectedPnL is the mean simulated PnL.
	ExpectedPnL float64 `json:"expected_pnl"`

	// VaR95 is the 5th percentile of the simulated PnL distribution.
	// Negative values denote loss.
	VaR95 float64 `json:"var_95"`

	// VaR99 is the 1st percentile of the simulated PnL distribution.
	VaR99 float64 `json:"var_99"`

	// WorstCase is the minimum simulated PnL.
	WorstCase float64 `json:"worst_case"`
}

// SpreadPnL is the profit from buying at buyAsk and selling at sellBid
// net of the sell-side fee.
func SpreadPnL(sellBid, buyAsk, sellFeeRate float64) float64 {
	return sellBid*(1-sellFeeRate) - buyAsk
}

// SpreadPct expresses a PnL as a percentage of the buy-side ask.
func SpreadPct(pnl, buyAsk float64) float64 {
	if buyAsk == 0 {
		return 0
	}
	return pnl / buyAsk * 100
}

// Volatility estimates per-period volatility as the sample standard
// deviation of per-step returns. Fewer than two prices (or fewer than
// two computable returns) yields 0. The result is per-period, not
// annualized.
func Volatility(prices []float64, method VolatilityMethod) float64 {
	if len(prices) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		switch method {
		case SimpleReturns:
			returns = append(returns, (prices[i]-prices[i-1])/prices[i-1])
		default:
			returns = append(returns, math.Log(prices[i]/prices[i-1]))
		}
	}

	if len(returns) < 2 {
		return 0
	}
	return stat.StdDev(returns, nil)
}

// SimulateHoldingPeriod draws n terminal prices after holdDays under a
// discrete-time log-normal (GBM) model:
//
//	P_T = P_0 * exp(drift*T - 0.5*sigma^2*T + sigma*sqrt(T)*Z)
//
// where drift and dailyVolatility share daily units with holdDays. The
// full vector is returned so callers can derive arbitrary percentile
// or probability metrics. A nil src uses the global random source.
func SimulateHoldingPeriod(currentPrice, dailyVolatility float64, holdDays, n int, drift float64, src rand.Source) []float64 {
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	days := float64(holdDays)

	prices := make([]float64, n)
	for i := range prices {
		z := normal.Rand()
		prices[i] = currentPrice * math.Exp(
			drift*days-0.5*dailyVolatility*dailyVolatility*days+dailyVolatility*math.Sqrt(days)*z,
		)
	}
	return prices
}

// AssessHoldPeriodRisk simulates the sell-side quote over the holding
// period, applies the fee-adjusted spread against the static buy-side
// ask, and summarizes the simulated PnL distribution.
func AssessHoldPeriodRisk(sellBid, buyAsk, dailyVolatility float64, holdDays, n int, drift, sellFeeRate float64, src rand.Source) Assessment {
	simulated := SimulateHoldingPeriod(sellBid, dailyVolatility, holdDays, n, drift, src)

	pnls := make([]float64, len(simulated))
	positive := 0
	for i, price := range simulated {
		pnls[i] = price*(1-sellFeeRate) - buyAsk
		if pnls[i] > 0 {
			positive++
		}
	}

	sorted := make([]float64, len(pnls))
	copy(sorted, pnls)
	sort.Float64s(sorted)

	return Assessment{
		CurrentPnL:   SpreadPnL(sellBid, buyAsk, sellFeeRate),
		ProbPositive: float64(positive) / float64(len(pnls)),
		ExpectedPnL:  stat.Mean(pnls, nil),
		VaR95:        stat.Quantile(0.05, stat.LinInterp, sorted, nil),
		VaR99:        stat.Quantile(0.01, stat.LinInterp, sorted, nil),
		WorstCase:    sorted[0],
	}
}

// RiskAdjustedScore weighs the expected PnL by execution probability
// and subtracts a VaR penalty scaled by risk aversion. Higher is
// better.
func RiskAdjustedScore(expectedPnL, probPositive, var95, executionProbability, riskAversion float64) float64 {
	baseScore := expectedPnL * executionProbability
	riskPenalty := math.Abs(var95) * (1 - probPositive) * riskAversion
	return baseScore - riskPenalty
}

// RecommendAction decides in order: an insufficient current spread is a
// skip regardless of simulated metrics; then the simulated probability
// and expected PnL each demote to monitor; otherwise candidate.
func RecommendAction(pnlNow, probPositive, expectedPnL, minPnL, minProbPositive float64) Action {
	if pnlNow < minPnL {
		return ActionSkip
	}
	if probPositive < minProbPositive {
		return ActionMonitor
	}
	if expectedPnL < minPnL {
		return ActionMonitor
	}
	return ActionCandidate
}
