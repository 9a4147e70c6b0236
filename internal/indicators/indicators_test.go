package indicators

import (
	"math"
	"testing"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		fallback float64
		expected float64
	}{
		{"NaN", math.NaN(), 50, 50},
		{"PosInf", math.Inf(1), 0, 0},
		{"NegInf", math.Inf(-1), 0.5, 0.5},
		{"Finite", 42.5, 0, 42.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.value, tt.fallback); got != tt.expected {
				t.Errorf("Sanitize(%v, %v) = %v, want %v", tt.value, tt.fallback, got, tt.expected)
			}
		})
	}
}

func TestSMA(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5}

	if got := SMA(prices, 5); got != 3 {
		t.Errorf("SMA period 5 = %v, want 3", got)
	}
	if got := SMA(prices, 2); got != 4.5 {
		t.Errorf("SMA period 2 = %v, want 4.5", got)
	}
	// Period longer than series averages what exists
	if got := SMA(prices[:2], 10); got != 1.5 {
		t.Errorf("SMA short series = %v, want 1.5", got)
	}
	if got := SMA(nil, 5); got != 0 {
		t.Errorf("SMA empty = %v, want 0", got)
	}
}

func TestRSI_Neutral(t *testing.T) {
	// Fewer than period+1 samples -> neutral 50
	if got := RSI([]float64{100, 101, 102}, 14); got != 50 {
		t.Errorf("RSI short series = %v, want 50", got)
	}
}

func TestRSI_AllGains(t *testing.T) {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	if got := RSI(prices, 14); got != 100 {
		t.Errorf("RSI monotone up = %v, want 100", got)
	}
}

func TestRSI_AllLosses(t *testing.T) {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 200 - float64(i)
	}
	got := RSI(prices, 14)
	if !almostEqual(got, 0, 1e-9) {
		t.Errorf("RSI monotone down = %v, want 0", got)
	}
}

func TestRSI_Bounded(t *testing.T) {
	prices := []float64{100, 103, 99, 104, 98, 105, 97, 106, 96, 107, 95, 108, 94, 109, 93, 110}
	got := RSI(prices, 14)
	if got < 0 || got > 100 {
		t.Errorf("RSI out of range: %v", got)
	}
}

func TestBollingerBands_Neutral(t *testing.T) {
	bb := BollingerBands([]float64{100, 101}, 20, 2)
	if bb.PercentB != 0.5 {
		t.Errorf("short series %%B = %v, want 0.5", bb.PercentB)
	}
	if bb.Bandwidth != 0 {
		t.Errorf("short series bandwidth = %v, want 0", bb.Bandwidth)
	}
}

func TestBollingerBands_FlatSeries(t *testing.T) {
	prices := make([]float64, 25)
	for i := range prices {
		prices[i] = 100
	}
	bb := BollingerBands(prices, 20, 2)
	if bb.Bandwidth != 0 {
		t.Errorf("flat series bandwidth = %v, want 0", bb.Bandwidth)
	}
	if bb.PercentB != 0.5 {
		t.Errorf("flat series %%B = %v, want 0.5", bb.PercentB)
	}
	if bb.Upper != 100 || bb.Lower != 100 {
		t.Errorf("flat series bands = (%v, %v), want (100, 100)", bb.Upper, bb.Lower)
	}
}

func TestBollingerBands_PriceAtUpperBand(t *testing.T) {
	// Alternate around 100 then spike; last price should sit high in the band
	prices := make([]float64, 20)
	for i := range prices {
		if i%2 == 0 {
			prices[i] = 99
		} else {
			prices[i] = 101
		}
	}
	prices[len(prices)-1] = 104
	bb := BollingerBands(prices, 20, 2)
	if bb.PercentB <= 0.5 {
		t.Errorf("spiked price %%B = %v, want > 0.5", bb.PercentB)
	}
	if bb.Bandwidth <= 0 {
		t.Errorf("bandwidth = %v, want > 0", bb.Bandwidth)
	}
}

func TestMACD_Neutral(t *testing.T) {
	prices := make([]float64, 10)
	for i := range prices {
		prices[i] = 100
	}
	m := MACDValues(prices, 12, 26, 9)
	if m.Line != 0 || m.Signal != 0 || m.Histogram != 0 {
		t.Errorf("short series MACD = %+v, want zeros", m)
	}
}

func TestMACD_TrendingUp(t *testing.T) {
	prices := make([]float64, 60)
	for i := range prices {
		prices[i] = 100 + float64(i)*2
	}
	m := MACDValues(prices, 12, 26, 9)
	if m.Line <= 0 {
		t.Errorf("uptrend MACD line = %v, want > 0", m.Line)
	}
	if m.Histogram == 0 && m.Line != m.Signal {
		t.Errorf("histogram inconsistent: %+v", m)
	}
	if !almostEqual(m.Histogram, m.Line-m.Signal, 1e-9) {
		t.Errorf("histogram = %v, want line-signal = %v", m.Histogram, m.Line-m.Signal)
	}
}

func TestATR_FlatSeriesFallback(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 200
	}
	got := ATR(prices, 14)
	if !almostEqual(got, 2.0, 1e-9) {
		t.Errorf("flat series ATR = %v, want 2.0 (1%% of price)", got)
	}
}

func TestATR_ConstantMoves(t *testing.T) {
	prices := make([]float64, 40)
	for i := range prices {
		prices[i] = 100 + float64(i)*5
	}
	got := ATR(prices, 14)
	if !almostEqual(got, 5, 1e-6) {
		t.Errorf("constant-move ATR = %v, want ~5", got)
	}
}

func TestVolatility(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 500
	}
	if got := Volatility(prices, 20); got != 0 {
		t.Errorf("flat series volatility = %v, want 0", got)
	}

	// Alternating +/-10 around 100: sigma should be 10
	varied := make([]float64, 30)
	for i := range varied {
		if i%2 == 0 {
			varied[i] = 90
		} else {
			varied[i] = 110
		}
	}
	got := Volatility(varied, 20)
	if !almostEqual(got, 10, 1e-9) {
		t.Errorf("alternating volatility = %v, want 10", got)
	}
}

func TestVWAP(t *testing.T) {
	if got := VWAP(nil, 50); got != 0 {
		t.Errorf("empty VWAP = %v, want 0", got)
	}
	if got := VWAP([]float64{123}, 50); got != 123 {
		t.Errorf("single VWAP = %v, want 123", got)
	}

	// Flat series: every synthetic volume is the base 100, VWAP = price
	prices := make([]float64, 60)
	for i := range prices {
		prices[i] = 250
	}
	if got := VWAP(prices, 50); !almostEqual(got, 250, 1e-9) {
		t.Errorf("flat VWAP = %v, want 250", got)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		lo, hi, v, want float64
	}{
		{-1, 1, 5, 1},
		{-1, 1, -5, -1},
		{-1, 1, 0.3, 0.3},
		{0.05, 0.40, 0.01, 0.05},
		{0.05, 0.40, 0.9, 0.40},
	}
	for _, tt := range tests {
		if got := Clamp(tt.lo, tt.hi, tt.v); got != tt.want {
			t.Errorf("Clamp(%v, %v, %v) = %v, want %v", tt.lo, tt.hi, tt.v, got, tt.want)
		}
	}
}
