package backtest

import (
	"fmt"
	"math/rand"
	"time"

	"cryptobrain/internal/indicators"
	"cryptobrain/internal/ledger"
	"cryptobrain/internal/market"
	"cryptobrain/internal/strategy"
)

// Config bounds one optimization batch.
type Config struct {
	Ticks          int     // Synthetic series length
	Candidates     int     // Weight vectors evaluated
	Seed           int64   // Deterministic RNG seed
	InitialBalance float64 // Starting cash per candidate
	FeeRate        float64 // Proportional fee per fill
}

// DefaultConfig returns a batch sized for an interactive request.
func DefaultConfig() Config {
	return Config{
		Ticks:          2000,
		Candidates:     16,
		Seed:           42,
		InitialBalance: 10000,
		FeeRate:        0.001,
	}
}

// PricePoint is one sample of the winning candidate's equity curve.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Result summarizes the winning candidate of a batch.
type Result struct {
	TotalTrades int              `json:"totalTrades"`
	WinRate     float64          `json:"winRate"`
	TotalProfit float64          `json:"totalProfit"`
	MaxDrawdown float64          `json:"maxDrawdown"` // Negative percent from peak equity
	BestWeights strategy.Weights `json:"bestWeights"`
	History     []PricePoint     `json:"history"`
}

// tickObs is one step of the pre-generated synthetic series with the
// indicator readings the scorer needs.
type tickObs struct {
	price     float64
	rsi       float64
	percentB  float64
	bandwidth float64
	macdHist  float64
	atr       float64
	vol       float64 // Rolling absolute sigma(20), the MACD scale
	trend     market.Trend
	regime    market.Regime
	high10    float64
}

// Run replays a seeded synthetic market against a set of perturbed
// weight vectors and returns the best performer. Identical configs
// produce identical results.
func Run(cfg Config) (*Result, error) {
	if cfg.Ticks <= 0 {
		return nil, fmt.Errorf("ticks must be positive, got %d", cfg.Ticks)
	}
	if cfg.Candidates <= 0 {
		return nil, fmt.Errorf("candidates must be positive, got %d", cfg.Candidates)
	}
	if cfg.InitialBalance <= 0 {
		return nil, fmt.Errorf("initial balance must be positive, got %v", cfg.InitialBalance)
	}
	if cfg.FeeRate <= 0 {
		cfg.FeeRate = 0.001
	}

	series := generateSeries(cfg.Ticks, cfg.Seed)

	var best *candidateResult
	for i := 0; i < cfg.Candidates; i++ {
		weights := perturbWeights(rand.New(rand.NewSource(cfg.Seed + int64(i) + 1)))
		res := evaluate(series, weights, cfg)
		if best == nil || res.totalProfit > best.totalProfit {
			best = res
		}
	}

	return &Result{
		TotalTrades: best.trades,
		WinRate:     best.winRate,
		TotalProfit: best.totalProfit,
		MaxDrawdown: best.maxDrawdown,
		BestWeights: best.weights,
		History:     downsample(best.equity, 50),
	}, nil
}

// generateSeries runs the market simulator offline and captures the
// per-tick observations once, shared by every candidate.
func generateSeries(ticks int, seed int64) []tickObs {
	sim := market.NewSimulator(market.DefaultConfig(), rand.New(rand.NewSource(seed)))
	series := make([]tickObs, 0, ticks)
	recent := make([]float64, 0, 10)

	for i := 0; i < ticks; i++ {
		snap, _ := sim.Tick()

		recent = append(recent, snap.Price)
		if len(recent) > 10 {
			recent = recent[1:]
		}
		high := 0.0
		for _, p := range recent {
			if p > high {
				high = p
			}
		}

		series = append(series, tickObs{
			price:     snap.Price,
			rsi:       snap.Indicators.RSI,
			percentB:  snap.Indicators.PercentB,
			bandwidth: snap.Indicators.Bandwidth,
			macdHist:  snap.Indicators.MACDHist,
			atr:       snap.Indicators.ATR,
			vol:       indicators.Volatility(snap.History, 20),
			trend:     snap.Trend,
			regime:    snap.Regime,
			high10:    high,
		})
	}
	return series
}

// perturbWeights jitters each default weight within ±50%.
func perturbWeights(rng *rand.Rand) strategy.Weights {
	base := strategy.DefaultWeights()
	jitter := func(v float64) float64 {
		return v * (0.5 + rng.Float64())
	}
	return strategy.Weights{
		RSI:       jitter(base.RSI),
		MACD:      jitter(base.MACD),
		Stoch:     jitter(base.Stoch),
		Bollinger: jitter(base.Bollinger),
		Trend:     jitter(base.Trend),
		Volume:    jitter(base.Volume),
		Depth:     jitter(base.Depth),
	}
}

type candidateResult struct {
	weights     strategy.Weights
	trades      int
	winRate     float64
	totalProfit float64
	maxDrawdown float64
	equity      []float64
}

// evaluate replays the series with one weight vector driving a single
// scalp-profile account.
func evaluate(series []tickObs, w strategy.Weights, cfg Config) *candidateResult {
	profile := strategy.ProfileFor(strategy.Scalp)
	bias := profile.Bias
	acc := ledger.NewAccount(cfg.InitialBalance)

	equity := make([]float64, 0, len(series))
	peak := cfg.InitialBalance
	maxDD := 0.0
	wins, closed := 0, 0

	for _, obs := range series {
		score := scoreTick(obs, w, bias)

		if acc.Holdings > 1e-6 {
			levels := strategy.Stops(strategy.Scalp, obs.regime, obs.price, obs.high10, obs.atr, true)
			exit := obs.price <= levels.StopLoss ||
				(levels.TakeProfit > 0 && obs.price >= levels.TakeProfit) ||
				score < profile.ExitThreshold
			if exit {
				if rec, err := acc.Sell("BACKTEST", obs.price, cfg.FeeRate); err == nil {
					closed++
					if rec.RealizedPnL > 0 {
						wins++
					}
				}
			}
		} else if score > profile.EntryThreshold && acc.Balance > 100 {
			kelly := ledger.KellyFraction(acc.WinRate, "MEDIUM")
			notional := acc.Balance * kelly
			acc.Buy("BACKTEST", obs.price, notional, cfg.FeeRate)
		}

		eq := acc.Equity(obs.price)
		equity = append(equity, eq)
		if eq > peak {
			peak = eq
		}
		if peak > 0 {
			dd := (peak - eq) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	winRate := 100.0
	if closed > 0 {
		winRate = float64(wins) / float64(closed) * 100
	}

	final := equity[len(equity)-1]
	return &candidateResult{
		weights:     w,
		trades:      acc.TradesCount,
		winRate:     winRate,
		totalProfit: final - cfg.InitialBalance,
		maxDrawdown: -maxDD,
		equity:      equity,
	}
}

// scoreTick mirrors the live composite score for a scalp profile.
func scoreTick(obs tickObs, w strategy.Weights, bias strategy.WeightBias) float64 {
	sigRSI := (50 - obs.rsi) / 50
	sigBB := clamp((0.5 - obs.percentB) * 2)
	sigMACD := clamp(obs.macdHist / maxf(obs.vol, 1))
	sigTrend := 0.0
	switch obs.trend {
	case market.TrendUp:
		sigTrend = 1
	case market.TrendDown:
		sigTrend = -1
	}

	raw := sigRSI*w.RSI*bias.RSI + sigBB*w.Bollinger*bias.BB + sigMACD*w.MACD*bias.MACD + sigTrend*w.Trend
	total := w.RSI*bias.RSI + w.Bollinger*bias.BB + w.MACD*bias.MACD + w.Trend + 0.1
	return raw / total * 100
}

func clamp(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// downsample reduces the equity curve to at most n evenly spaced
// points, timestamped backwards from now one minute apart.
func downsample(equity []float64, n int) []PricePoint {
	if len(equity) == 0 {
		return []PricePoint{}
	}
	step := len(equity) / n
	if step < 1 {
		step = 1
	}
	now := time.Now()
	points := make([]PricePoint, 0, n)
	for i := 0; i < len(equity) && len(points) < n; i += step {
		points = append(points, PricePoint{
			Timestamp: now.Add(-time.Duration(len(equity)-i) * time.Minute),
			Value:     equity[i],
		})
	}
	return points
}
