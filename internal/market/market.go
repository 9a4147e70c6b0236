package market

import (
	"math/rand"
	"time"

	"cryptobrain/internal/indicators"
)

// Regime classifies the synthetic market's current personality.
type Regime string

const (
	RegimeBull  Regime = "BULL"
	RegimeBear  Regime = "BEAR"
	RegimeCrab  Regime = "CRAB"
	RegimePump  Regime = "PUMP"
	RegimeCrash Regime = "CRASH"
)

// Trend is the short-horizon price direction.
type Trend string

const (
	TrendUp   Trend = "UP"
	TrendDown Trend = "DOWN"
	TrendFlat Trend = "FLAT"
)

// Venue identifies a simulated liquidity pool.
type Venue string

const (
	VenueBinance Venue = "BINANCE"
	VenueOKX     Venue = "OKX"
	VenueKraken  Venue = "KRAKEN"
	VenueMEXC    Venue = "MEXC"
)

// divergenceFactor scales how far a venue's price can drift from the
// reference price. Deeper books drift less.
func divergenceFactor(v Venue) float64 {
	switch v {
	case VenueBinance:
		return 0.0005
	case VenueOKX:
		return 0.001
	case VenueKraken:
		return 0.0015
	case VenueMEXC:
		return 0.003
	default:
		return 0
	}
}

// Indicators bundles the per-tick global indicator readings.
type Indicators struct {
	RSI       float64 `json:"rsi"`
	PercentB  float64 `json:"percentB"`
	Bandwidth float64 `json:"bandwidth"`
	MACDHist  float64 `json:"macdHistogram"`
	ATR       float64 `json:"atr"`
	VWAP      float64 `json:"vwap"`
}

// Snapshot is the externally visible market state for one tick.
type Snapshot struct {
	Symbol     string     `json:"symbol"`
	Price      float64    `json:"price"`
	Trend      Trend      `json:"trend"`
	Volatility float64    `json:"volatility"` // σ(20) as percent of price
	Timestamp  time.Time  `json:"timestamp"`
	Regime     Regime     `json:"globalRegime"`
	Sentiment  float64    `json:"sentimentIndex"`
	History    []float64  `json:"history"`
	Indicators Indicators `json:"indicators"`
}

// Config controls the synthetic price walk.
type Config struct {
	Symbol      string
	SeedPrice   float64
	PriceFloor  float64
	HistorySize int
	SeedLength  int // Number of seed prices pre-filling the history
}

// DefaultConfig matches the live engine's tuning.
func DefaultConfig() Config {
	return Config{
		Symbol:      "BTC/USDT",
		SeedPrice:   64200,
		PriceFloor:  100,
		HistorySize: 100,
		SeedLength:  60,
	}
}

// Simulator drives the regime-conditioned random walk that stands in
// for a live feed. Not safe for concurrent use; the engine serializes
// access behind its own mutex.
type Simulator struct {
	cfg     Config
	rng     *rand.Rand
	history []float64
	regime  Regime
	snap    Snapshot
}

// NewSimulator seeds the history with SeedLength copies of SeedPrice so
// indicators have a warm window from the first tick.
func NewSimulator(cfg Config, rng *rand.Rand) *Simulator {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	if cfg.SeedLength <= 0 || cfg.SeedLength > cfg.HistorySize {
		cfg.SeedLength = cfg.HistorySize * 3 / 5
	}
	s := &Simulator{
		cfg:    cfg,
		rng:    rng,
		regime: RegimeCrab,
	}
	s.seed(cfg.SeedPrice)
	return s
}

func (s *Simulator) seed(price float64) {
	s.history = make([]float64, s.cfg.SeedLength)
	for i := range s.history {
		s.history[i] = price
	}
	s.regime = RegimeCrab
	s.snap = Snapshot{
		Symbol:    s.cfg.Symbol,
		Price:     price,
		Trend:     TrendFlat,
		Regime:    RegimeCrab,
		Sentiment: 50,
		Timestamp: time.Now(),
	}
}

// Reset returns the simulator to its seeded state.
func (s *Simulator) Reset() {
	s.seed(s.cfg.SeedPrice)
}

// Restore replaces the history with a persisted series, falling back to
// a fresh seed when the series is unusable.
func (s *Simulator) Restore(history []float64, regime Regime) {
	if len(history) == 0 {
		s.seed(s.cfg.SeedPrice)
		return
	}
	s.history = append([]float64(nil), history...)
	if len(s.history) > s.cfg.HistorySize {
		s.history = s.history[len(s.history)-s.cfg.HistorySize:]
	}
	s.snap.Price = s.history[len(s.history)-1]
	if regime != "" {
		s.regime = regime
		s.snap.Regime = regime
	}
}

// noiseAmplitude widens the walk in explosive regimes and pins it down
// while the market crabs sideways.
func (s *Simulator) noiseAmplitude() float64 {
	switch s.regime {
	case RegimePump:
		return 30
	case RegimeCrab:
		return 4
	default:
		return 10
	}
}

// Tick advances the reference price one step and reclassifies the
// regime. The returned bool reports a regime shift.
func (s *Simulator) Tick() (Snapshot, bool) {
	noise := (s.rng.Float64() - 0.5) * s.noiseAmplitude()
	bias := 0.0
	switch s.regime {
	case RegimeBull:
		bias = 2
	case RegimeBear:
		bias = -2
	}

	price := s.snap.Price + noise + bias
	if price < s.cfg.PriceFloor {
		price = s.cfg.PriceFloor
	}

	s.history = append(s.history, price)
	if len(s.history) > s.cfg.HistorySize {
		s.history = s.history[len(s.history)-s.cfg.HistorySize:]
	}

	rsi := indicators.RSI(s.history, 14)
	vol := indicators.Volatility(s.history, 20)
	bb := indicators.BollingerBands(s.history, 20, 2)
	macd := indicators.MACDValues(s.history, 12, 26, 9)
	atr := indicators.ATR(s.history, 14)
	vwap := indicators.VWAP(s.history, 50)

	trend := TrendFlat
	if lookback := 10; len(s.history) >= lookback {
		change := price - s.history[len(s.history)-lookback]
		if change > 1 {
			trend = TrendUp
		} else if change < -1 {
			trend = TrendDown
		}
	}

	regime := classify(bb.Bandwidth, rsi, macd.Histogram)
	shifted := regime != s.regime
	s.regime = regime

	volPct := 0.0
	if price != 0 {
		volPct = vol / price * 100
	}

	s.snap = Snapshot{
		Symbol:     s.cfg.Symbol,
		Price:      price,
		Trend:      trend,
		Volatility: volPct,
		Timestamp:  time.Now(),
		Regime:     regime,
		Sentiment:  rsi,
		Indicators: Indicators{
			RSI:       rsi,
			PercentB:  bb.PercentB,
			Bandwidth: bb.Bandwidth,
			MACDHist:  macd.Histogram,
			ATR:       atr,
			VWAP:      vwap,
		},
	}
	return s.Snapshot(), shifted
}

// classify applies the ordered regime rules: explosive bandwidth wins,
// then momentum, then sideways.
func classify(bandwidth, rsi, macdHist float64) Regime {
	switch {
	case bandwidth > 0.05 && rsi > 70:
		return RegimePump
	case bandwidth > 0.05 && rsi < 30:
		return RegimeCrash
	case macdHist > 0 && rsi > 55:
		return RegimeBull
	case macdHist < 0 && rsi < 45:
		return RegimeBear
	default:
		return RegimeCrab
	}
}

// Snapshot returns a copy of the current state with its own history
// slice, safe to hand outside the engine lock.
func (s *Simulator) Snapshot() Snapshot {
	snap := s.snap
	snap.History = append([]float64(nil), s.history...)
	return snap
}

// History exposes the live series for indicator reuse inside the engine.
func (s *Simulator) History() []float64 {
	return s.history
}

// Regime returns the current classification.
func (s *Simulator) Regime() Regime {
	return s.regime
}

// VenuePrice derives an exchange-local price from the reference price
// by applying a bounded random divergence.
func (s *Simulator) VenuePrice(base float64, v Venue) float64 {
	deviation := (s.rng.Float64() - 0.5) * divergenceFactor(v)
	return base * (1 + deviation)
}
