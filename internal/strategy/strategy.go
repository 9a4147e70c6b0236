package strategy

import "cryptobrain/internal/market"

// Type identifies a trading strategy personality.
type Type string

const (
	Scalp     Type = "SCALP_1M"
	Swing     Type = "SWING_15M"
	Trend     Type = "TREND_4H"
	Arbitrage Type = "ARBITRAGE"
	Hedge     Type = "HEDGE"
)

// Valid reports whether t names a known strategy.
func (t Type) Valid() bool {
	switch t {
	case Scalp, Swing, Trend, Arbitrage, Hedge:
		return true
	}
	return false
}

// WeightBias scales how strongly a profile listens to each signal
// family on top of the agent's own weights.
type WeightBias struct {
	RSI  float64 `json:"rsi"`
	BB   float64 `json:"bb"`
	MACD float64 `json:"macd"`
}

// Profile is the immutable tuning of one strategy: entry/exit score
// thresholds, ATR-multiple stop distances and signal biases.
type Profile struct {
	Name           string     `json:"name"`
	EntryThreshold float64    `json:"entryThreshold"`
	ExitThreshold  float64    `json:"exitThreshold"`
	StopATRMult    float64    `json:"stopAtrMult"`
	TPATRMult      float64    `json:"tpAtrMult"` // 0 disables the target
	Bias           WeightBias `json:"weightsBias"`
	SizeMultiplier float64    `json:"sizeMultiplier"`
}

var profiles = map[Type]Profile{
	Scalp: {
		Name:           "SCALP",
		EntryThreshold: 40,
		ExitThreshold:  -25,
		StopATRMult:    1.0,
		TPATRMult:      1.5,
		Bias:           WeightBias{RSI: 2.0, BB: 1.5, MACD: 0.5},
		SizeMultiplier: 1.0,
	},
	Swing: {
		Name:           "SWING",
		EntryThreshold: 55,
		ExitThreshold:  -40,
		StopATRMult:    2.0,
		TPATRMult:      3.0,
		Bias:           WeightBias{RSI: 1.0, BB: 2.0, MACD: 1.2},
		SizeMultiplier: 1.0,
	},
	Trend: {
		Name:           "TREND",
		EntryThreshold: 65,
		ExitThreshold:  -50,
		StopATRMult:    4.0,
		TPATRMult:      0, // Ride the wave, trailing stop only
		Bias:           WeightBias{RSI: 0.5, BB: 0.5, MACD: 3.0},
		SizeMultiplier: 1.0,
	},
	Arbitrage: {
		Name:           "ARBITRAGE",
		EntryThreshold: 30,
		ExitThreshold:  -15,
		StopATRMult:    1.5,
		TPATRMult:      1.0,
		Bias:           WeightBias{RSI: 0.5, BB: 3.5, MACD: 0.0},
		SizeMultiplier: 1.0,
	},
	Hedge: {
		Name:           "HEDGE",
		EntryThreshold: 85,
		ExitThreshold:  -10,
		StopATRMult:    0.8,
		TPATRMult:      1.0,
		Bias:           WeightBias{RSI: 3.0, BB: 2.0, MACD: 0.0},
		SizeMultiplier: 0.5,
	},
}

// ProfileFor returns the profile for t, falling back to SCALP for an
// unknown type so a corrupted state file cannot stall an agent.
func ProfileFor(t Type) Profile {
	if p, ok := profiles[t]; ok {
		return p
	}
	return profiles[Scalp]
}

// Weights are an agent's per-signal multipliers.
type Weights struct {
	RSI       float64 `json:"rsi"`
	MACD      float64 `json:"macd"`
	Stoch     float64 `json:"stoch"`
	Bollinger float64 `json:"bollinger"`
	Trend     float64 `json:"trend"`
	Volume    float64 `json:"volume"`
	Depth     float64 `json:"depth"`
}

// DefaultWeights is the baseline every agent starts from before its
// personality overrides.
func DefaultWeights() Weights {
	return Weights{RSI: 1.5, MACD: 2.0, Stoch: 1.0, Bollinger: 1.5, Trend: 2.5, Volume: 1.0, Depth: 1.0}
}

// Recommend maps a market regime to the strategy each venue
// personality should run.
func Recommend(regime market.Regime, venue market.Venue) Type {
	switch regime {
	case market.RegimeCrash:
		// Everyone goes defensive, except the degen harvesting volatility.
		if venue == market.VenueMEXC {
			return Arbitrage
		}
		return Hedge
	case market.RegimePump:
		if venue == market.VenueBinance {
			return Trend
		}
		return Scalp
	case market.RegimeBull:
		if venue == market.VenueBinance {
			return Trend
		}
		if venue == market.VenueKraken {
			return Swing
		}
		return Scalp
	case market.RegimeBear:
		if venue == market.VenueMEXC {
			return Arbitrage
		}
		if venue == market.VenueBinance {
			return Hedge
		}
		return Scalp
	case market.RegimeCrab:
		if venue == market.VenueMEXC {
			return Arbitrage
		}
		if venue == market.VenueBinance {
			return Swing
		}
		return Scalp
	}
	return Scalp
}

// StopLevels are the per-tick dynamic exit prices. A zero TakeProfit
// means no target is armed.
type StopLevels struct {
	StopLoss   float64 `json:"stopLoss"`
	TakeProfit float64 `json:"takeProfit"`
}

// Stops derives the ATR-scaled exit levels. While holding, the stop
// trails from the recent high water mark instead of the current price.
// Regime adjustments: a pumping trend gets room to run, a bear-market
// scalp tightens, and a trend strategy re-arms its target in a bear so
// bounces get banked.
func Stops(t Type, regime market.Regime, price, recentHigh, atr float64, holding bool) StopLevels {
	p := ProfileFor(t)

	trailBase := price
	if holding && recentHigh > 0 {
		trailBase = recentHigh
	}

	stopMult := p.StopATRMult
	if regime == market.RegimePump && t == Trend {
		stopMult *= 1.5
	}
	if regime == market.RegimeBear && t == Scalp {
		stopMult *= 0.8
	}

	levels := StopLevels{StopLoss: trailBase - atr*stopMult}
	if p.TPATRMult > 0 {
		levels.TakeProfit = price + atr*p.TPATRMult
	}
	if t == Trend && regime == market.RegimeBear {
		levels.TakeProfit = price + atr*2.0
	}
	return levels
}
