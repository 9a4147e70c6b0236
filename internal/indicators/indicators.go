package indicators

import "math"

// Sanitize maps NaN and Inf to a fallback so a degenerate series can
// never poison downstream arithmetic.
func Sanitize(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

// Clamp bounds v to [lo, hi].
func Clamp(lo, hi, v float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SMA returns the simple moving average of the last period values.
// With fewer than period samples it averages what is available; an
// empty series returns 0.
func SMA(prices []float64, period int) float64 {
	if len(prices) == 0 || period <= 0 {
		return 0
	}
	if period > len(prices) {
		period = len(prices)
	}
	sum := 0.0
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return Sanitize(sum/float64(period), 0)
}

// EMA returns the exponential moving average of the whole series with
// smoothing 2/(period+1), seeded from the first value.
func EMA(prices []float64, period int) float64 {
	if len(prices) == 0 || period <= 0 {
		return 0
	}
	k := 2.0 / (float64(period) + 1)
	ema := prices[0]
	for _, p := range prices[1:] {
		ema = p*k + ema*(1-k)
	}
	return Sanitize(ema, 0)
}

// EMASeries returns the running EMA at every index. Used by MACD which
// needs aligned fast/slow series rather than a single endpoint.
func EMASeries(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	if len(prices) == 0 || period <= 0 {
		return out
	}
	k := 2.0 / (float64(period) + 1)
	out[0] = prices[0]
	for i := 1; i < len(prices); i++ {
		out[i] = prices[i]*k + out[i-1]*(1-k)
	}
	return out
}

// RSI computes Wilder's relative strength index over the given period.
// Below period+1 samples it returns the neutral 50; a loss-free window
// returns 100.
func RSI(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period+1 {
		return 50
	}
	window := prices[len(prices)-period-1:]
	gains, losses := 0.0, 0.0
	for i := 1; i < len(window); i++ {
		delta := window[i] - window[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return Sanitize(100-100/(1+rs), 50)
}

// Bollinger holds the band values for the most recent price.
type Bollinger struct {
	Upper     float64
	Middle    float64
	Lower     float64
	PercentB  float64 // Position of price within the bands, 0.5 = middle
	Bandwidth float64 // (Upper-Lower)/Middle, a volatility proxy
}

// BollingerBands computes 20-period, k-sigma bands with population
// standard deviation. Below period samples the neutral band is
// returned: %B 0.5, bandwidth 0, all bands at the last price.
func BollingerBands(prices []float64, period int, k float64) Bollinger {
	last := 0.0
	if len(prices) > 0 {
		last = prices[len(prices)-1]
	}
	if period <= 0 || len(prices) < period {
		return Bollinger{Upper: last, Middle: last, Lower: last, PercentB: 0.5, Bandwidth: 0}
	}
	window := prices[len(prices)-period:]
	mean := 0.0
	for _, p := range window {
		mean += p
	}
	mean /= float64(period)
	variance := 0.0
	for _, p := range window {
		variance += (p - mean) * (p - mean)
	}
	sigma := math.Sqrt(variance / float64(period))

	upper := mean + k*sigma
	lower := mean - k*sigma

	pctB := 0.5
	if upper != lower {
		pctB = (last - lower) / (upper - lower)
	}
	bw := 0.0
	if mean != 0 {
		bw = (upper - lower) / mean
	}
	return Bollinger{
		Upper:     Sanitize(upper, last),
		Middle:    Sanitize(mean, last),
		Lower:     Sanitize(lower, last),
		PercentB:  Sanitize(pctB, 0.5),
		Bandwidth: Sanitize(bw, 0),
	}
}

// MACD holds the 12/26/9 convergence-divergence values.
type MACD struct {
	Line      float64
	Signal    float64
	Histogram float64
}

// MACDValues computes MACD from aligned fast/slow EMA series and an EMA
// of the MACD line for the signal. Below slow-period samples all three
// values are neutral 0.
func MACDValues(prices []float64, fast, slow, signal int) MACD {
	if len(prices) < slow {
		return MACD{}
	}
	fastSeries := EMASeries(prices, fast)
	slowSeries := EMASeries(prices, slow)
	macdSeries := make([]float64, len(prices))
	for i := range prices {
		macdSeries[i] = fastSeries[i] - slowSeries[i]
	}
	signalSeries := EMASeries(macdSeries, signal)

	line := macdSeries[len(macdSeries)-1]
	sig := signalSeries[len(signalSeries)-1]
	return MACD{
		Line:      Sanitize(line, 0),
		Signal:    Sanitize(sig, 0),
		Histogram: Sanitize(line-sig, 0),
	}
}

// ATR approximates the average true range as an EMA of absolute
// tick-to-tick moves. A flat or too-short series falls back to 1% of
// the last price so stop distances stay meaningful.
func ATR(prices []float64, period int) float64 {
	last := 0.0
	if len(prices) > 0 {
		last = prices[len(prices)-1]
	}
	fallback := last * 0.01
	if period <= 0 || len(prices) < 2 {
		return fallback
	}
	ranges := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		ranges = append(ranges, math.Abs(prices[i]-prices[i-1]))
	}
	atr := EMA(ranges, period)
	if atr == 0 {
		return fallback
	}
	return Sanitize(atr, fallback)
}

// Volatility returns the rolling population standard deviation of the
// last period prices, as an absolute price amount.
func Volatility(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < 2 {
		return 0
	}
	if period > len(prices) {
		period = len(prices)
	}
	window := prices[len(prices)-period:]
	mean := 0.0
	for _, p := range window {
		mean += p
	}
	mean /= float64(len(window))
	variance := 0.0
	for _, p := range window {
		variance += (p - mean) * (p - mean)
	}
	return Sanitize(math.Sqrt(variance/float64(len(window))), 0)
}

// VWAP computes a volume-weighted average over the last period prices
// using synthetic volume |Δp|×1000+100, since the simulator has no
// real volume feed.
func VWAP(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	last := prices[len(prices)-1]
	if len(prices) < 2 || period <= 0 {
		return last
	}
	if period > len(prices)-1 {
		period = len(prices) - 1
	}
	start := len(prices) - period
	sumPV, sumV := 0.0, 0.0
	for i := start; i < len(prices); i++ {
		vol := math.Abs(prices[i]-prices[i-1])*1000 + 100
		sumPV += prices[i] * vol
		sumV += vol
	}
	if sumV == 0 {
		return last
	}
	return Sanitize(sumPV/sumV, last)
}
