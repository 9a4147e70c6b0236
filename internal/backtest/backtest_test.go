package backtest

import (
	"testing"

	"cryptobrain/internal/strategy"
)

func TestRun_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero ticks", Config{Ticks: 0, Candidates: 4, InitialBalance: 1000}},
		{"zero candidates", Config{Ticks: 100, Candidates: 0, InitialBalance: 1000}},
		{"zero balance", Config{Ticks: 100, Candidates: 4, InitialBalance: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Run(tt.cfg); err == nil {
				t.Error("Run accepted an invalid config")
			}
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	cfg := Config{Ticks: 500, Candidates: 8, Seed: 42, InitialBalance: 10000, FeeRate: 0.001}

	a, err := Run(cfg)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	b, err := Run(cfg)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if a.TotalTrades != b.TotalTrades {
		t.Errorf("trades differ: %d vs %d", a.TotalTrades, b.TotalTrades)
	}
	if a.TotalProfit != b.TotalProfit {
		t.Errorf("profit differs: %v vs %v", a.TotalProfit, b.TotalProfit)
	}
	if a.BestWeights != b.BestWeights {
		t.Errorf("best weights differ: %+v vs %+v", a.BestWeights, b.BestWeights)
	}
	if a.MaxDrawdown != b.MaxDrawdown {
		t.Errorf("drawdown differs: %v vs %v", a.MaxDrawdown, b.MaxDrawdown)
	}
}

func TestRun_DifferentSeedsDiverge(t *testing.T) {
	base := Config{Ticks: 500, Candidates: 8, InitialBalance: 10000, FeeRate: 0.001}

	a := base
	a.Seed = 1
	b := base
	b.Seed = 2

	ra, err := Run(a)
	if err != nil {
		t.Fatal(err)
	}
	rb, err := Run(b)
	if err != nil {
		t.Fatal(err)
	}

	if ra.TotalProfit == rb.TotalProfit && ra.TotalTrades == rb.TotalTrades && ra.BestWeights == rb.BestWeights {
		t.Error("different seeds produced identical results")
	}
}

func TestRun_ResultShape(t *testing.T) {
	res, err := Run(Config{Ticks: 1000, Candidates: 4, Seed: 7, InitialBalance: 10000, FeeRate: 0.001})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.WinRate < 0 || res.WinRate > 100 {
		t.Errorf("win rate %v outside [0, 100]", res.WinRate)
	}
	if res.MaxDrawdown > 0 {
		t.Errorf("max drawdown = %v, want <= 0", res.MaxDrawdown)
	}
	if len(res.History) == 0 || len(res.History) > 50 {
		t.Errorf("history has %d points, want 1..50", len(res.History))
	}
	if res.BestWeights.RSI <= 0 || res.BestWeights.Trend <= 0 {
		t.Errorf("best weights look unset: %+v", res.BestWeights)
	}
	// Weight jitter stays within ±50% of the defaults.
	if res.BestWeights.RSI < 1.5*0.5 || res.BestWeights.RSI > 1.5*1.5 {
		t.Errorf("RSI weight %v outside jitter range", res.BestWeights.RSI)
	}
}

func TestScoreTick_MACDScaledByVolatility(t *testing.T) {
	w := strategy.DefaultWeights()
	bias := strategy.ProfileFor(strategy.Scalp).Bias
	base := tickObs{price: 64200, rsi: 50, percentB: 0.5, macdHist: 10, vol: 5, atr: 900}

	// The ATR places stops; the score scales MACD by rolling sigma only.
	other := base
	other.atr = 1
	if scoreTick(base, w, bias) != scoreTick(other, w, bias) {
		t.Error("ATR leaked into the MACD scaling")
	}

	damped := base
	damped.vol = 100
	if scoreTick(damped, w, bias) >= scoreTick(base, w, bias) {
		t.Error("higher volatility did not damp the MACD signal")
	}
}

func TestDownsample(t *testing.T) {
	equity := make([]float64, 500)
	for i := range equity {
		equity[i] = float64(i)
	}
	points := downsample(equity, 50)
	if len(points) != 50 {
		t.Errorf("downsampled to %d points, want 50", len(points))
	}

	if got := downsample(nil, 50); len(got) != 0 {
		t.Errorf("empty input downsampled to %d points", len(got))
	}

	short := downsample([]float64{1, 2, 3}, 50)
	if len(short) != 3 {
		t.Errorf("short input downsampled to %d points, want 3", len(short))
	}
}
