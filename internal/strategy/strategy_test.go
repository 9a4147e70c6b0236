package strategy

import (
	"testing"

	"cryptobrain/internal/market"
)

func TestProfileFor_KnownTypes(t *testing.T) {
	tests := []struct {
		typ       Type
		entry     float64
		exit      float64
		stopMult  float64
		tpMult    float64
		sizeMult  float64
	}{
		{Scalp, 40, -25, 1.0, 1.5, 1.0},
		{Swing, 55, -40, 2.0, 3.0, 1.0},
		{Trend, 65, -50, 4.0, 0, 1.0},
		{Arbitrage, 30, -15, 1.5, 1.0, 1.0},
		{Hedge, 85, -10, 0.8, 1.0, 0.5},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			p := ProfileFor(tt.typ)
			if p.EntryThreshold != tt.entry || p.ExitThreshold != tt.exit {
				t.Errorf("thresholds = (%v, %v), want (%v, %v)", p.EntryThreshold, p.ExitThreshold, tt.entry, tt.exit)
			}
			if p.StopATRMult != tt.stopMult || p.TPATRMult != tt.tpMult {
				t.Errorf("ATR mults = (%v, %v), want (%v, %v)", p.StopATRMult, p.TPATRMult, tt.stopMult, tt.tpMult)
			}
			if p.SizeMultiplier != tt.sizeMult {
				t.Errorf("size multiplier = %v, want %v", p.SizeMultiplier, tt.sizeMult)
			}
		})
	}
}

func TestProfileFor_UnknownFallsBackToScalp(t *testing.T) {
	p := ProfileFor(Type("MARTINGALE"))
	if p.Name != "SCALP" {
		t.Errorf("fallback profile = %s, want SCALP", p.Name)
	}
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		regime market.Regime
		venue  market.Venue
		want   Type
	}{
		{market.RegimeCrash, market.VenueMEXC, Arbitrage},
		{market.RegimeCrash, market.VenueBinance, Hedge},
		{market.RegimeCrash, market.VenueOKX, Hedge},
		{market.RegimePump, market.VenueBinance, Trend},
		{market.RegimePump, market.VenueKraken, Scalp},
		{market.RegimeBull, market.VenueBinance, Trend},
		{market.RegimeBull, market.VenueKraken, Swing},
		{market.RegimeBull, market.VenueOKX, Scalp},
		{market.RegimeBear, market.VenueMEXC, Arbitrage},
		{market.RegimeBear, market.VenueBinance, Hedge},
		{market.RegimeBear, market.VenueKraken, Scalp},
		{market.RegimeCrab, market.VenueMEXC, Arbitrage},
		{market.RegimeCrab, market.VenueBinance, Swing},
		{market.RegimeCrab, market.VenueOKX, Scalp},
	}
	for _, tt := range tests {
		if got := Recommend(tt.regime, tt.venue); got != tt.want {
			t.Errorf("Recommend(%s, %s) = %s, want %s", tt.regime, tt.venue, got, tt.want)
		}
	}
}

func TestStops_FlatUsesCurrentPrice(t *testing.T) {
	levels := Stops(Scalp, market.RegimeCrab, 100, 120, 2, false)
	if levels.StopLoss != 98 {
		t.Errorf("flat stop = %v, want 98 (price - ATR×1.0)", levels.StopLoss)
	}
	if levels.TakeProfit != 103 {
		t.Errorf("flat TP = %v, want 103 (price + ATR×1.5)", levels.TakeProfit)
	}
}

func TestStops_HoldingTrailsFromHighWaterMark(t *testing.T) {
	levels := Stops(Scalp, market.RegimeCrab, 100, 120, 2, true)
	if levels.StopLoss != 118 {
		t.Errorf("trailing stop = %v, want 118 (high - ATR×1.0)", levels.StopLoss)
	}
}

func TestStops_PumpTrendWidensStop(t *testing.T) {
	levels := Stops(Trend, market.RegimePump, 100, 0, 2, false)
	// 4.0 × 1.5 = 6 ATR multiples
	if levels.StopLoss != 88 {
		t.Errorf("pump trend stop = %v, want 88", levels.StopLoss)
	}
	if levels.TakeProfit != 0 {
		t.Errorf("trend TP = %v, want 0 (disabled)", levels.TakeProfit)
	}
}

func TestStops_BearScalpTightens(t *testing.T) {
	levels := Stops(Scalp, market.RegimeBear, 100, 0, 10, false)
	// 1.0 × 0.8 = 0.8 ATR multiples
	if levels.StopLoss != 92 {
		t.Errorf("bear scalp stop = %v, want 92", levels.StopLoss)
	}
}

func TestStops_TrendBearRearmsTakeProfit(t *testing.T) {
	levels := Stops(Trend, market.RegimeBear, 100, 0, 3, false)
	if levels.TakeProfit != 106 {
		t.Errorf("bear trend TP = %v, want 106 (price + ATR×2.0)", levels.TakeProfit)
	}
}

func TestDefaultWeights(t *testing.T) {
	w := DefaultWeights()
	if w.RSI != 1.5 || w.MACD != 2.0 || w.Trend != 2.5 {
		t.Errorf("unexpected default weights: %+v", w)
	}
}

func TestTypeValid(t *testing.T) {
	if !Scalp.Valid() || !Hedge.Valid() {
		t.Error("known types reported invalid")
	}
	if Type("YOLO").Valid() {
		t.Error("unknown type reported valid")
	}
}
