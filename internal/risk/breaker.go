package risk

import (
	"math"
	"sync"
	"time"
)

// BreakerState represents the circuit breaker state
type BreakerState string

const (
	StateArmed   BreakerState = "armed"   // Normal operation
	StateTripped BreakerState = "tripped" // Trading halted until explicit reset
)

// Config bounds the portfolio's daily realized loss.
type Config struct {
	Enabled       bool    `json:"enabled"`
	DrawdownLimit float64 `json:"drawdown_limit"` // Absolute quote-currency loss per UTC day
}

// DefaultConfig returns the default drawdown guard.
func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		DrawdownLimit: 500,
	}
}

// Snapshot is the externally visible breaker state.
type Snapshot struct {
	DailyRealizedPnL float64    `json:"dailyRealizedPnL"`
	DrawdownLimit    float64    `json:"drawdownLimit"`
	Tripped          bool       `json:"tripped"`
	LastTripTime     *time.Time `json:"lastTripTime,omitempty"`
}

// Breaker accumulates realized PnL across all agents within the
// current UTC day and trips once the aggregate loss exceeds the limit.
// A trip is one-way: only an explicit Reset re-arms it, regardless of
// later winning trades or the day rolling over.
type Breaker struct {
	mu           sync.RWMutex
	config       *Config
	state        BreakerState
	dailyPnL     float64
	dayStart     time.Time
	lastTripTime time.Time
	onTrip       func(dailyPnL, limit float64)
}

// NewBreaker creates an armed breaker anchored to the current UTC day.
func NewBreaker(config *Config) *Breaker {
	if config == nil {
		config = DefaultConfig()
	}
	return &Breaker{
		config:   config,
		state:    StateArmed,
		dayStart: utcDayStart(time.Now()),
	}
}

func utcDayStart(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// OnTrip sets the callback invoked once when the breaker trips.
func (b *Breaker) OnTrip(handler func(dailyPnL, limit float64)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onTrip = handler
}

// CanTrade reports whether new entries are allowed.
func (b *Breaker) CanTrade() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.config.Enabled || b.state == StateArmed
}

// RecordPnL folds one realized trade result into the day window and
// trips when the aggregate loss crosses the limit. NaN/Inf values are
// dropped so a degenerate fill cannot wedge the guard.
func (b *Breaker) RecordPnL(pnl float64) {
	if math.IsNaN(pnl) || math.IsInf(pnl, 0) {
		return
	}

	b.mu.Lock()

	b.rollDayIfNeeded()
	b.dailyPnL += pnl

	tripped := false
	var daily, limit float64
	if b.config.Enabled && b.state == StateArmed && -b.dailyPnL > b.config.DrawdownLimit {
		b.state = StateTripped
		b.lastTripTime = time.Now()
		tripped = true
		daily, limit = b.dailyPnL, b.config.DrawdownLimit
	}
	handler := b.onTrip
	b.mu.Unlock()

	if tripped && handler != nil {
		handler(daily, limit)
	}
}

// rollDayIfNeeded zeroes the accumulator at the UTC day boundary. A
// tripped breaker stays tripped across the boundary.
func (b *Breaker) rollDayIfNeeded() {
	today := utcDayStart(time.Now())
	if today.After(b.dayStart) {
		b.dayStart = today
		b.dailyPnL = 0
	}
}

// Reset re-arms the breaker and clears the day accumulator.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateArmed
	b.dailyPnL = 0
	b.dayStart = utcDayStart(time.Now())
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Snapshot returns a copy of the breaker's externally visible state.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollDayIfNeeded()
	snap := Snapshot{
		DailyRealizedPnL: b.dailyPnL,
		DrawdownLimit:    b.config.DrawdownLimit,
		Tripped:          b.state == StateTripped,
	}
	if !b.lastTripTime.IsZero() {
		t := b.lastTripTime
		snap.LastTripTime = &t
	}
	return snap
}

// Restore rehydrates the breaker from a persisted snapshot so a trip
// survives a process restart. The day accumulator re-anchors to the
// current UTC day; the tripped state carries over regardless, since the
// trip is one-way until an explicit Reset.
func (b *Breaker) Restore(snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.dailyPnL = snap.DailyRealizedPnL
	b.dayStart = utcDayStart(time.Now())
	if snap.Tripped {
		b.state = StateTripped
		if snap.LastTripTime != nil {
			b.lastTripTime = *snap.LastTripTime
		}
	}
}

// SetLimit updates the drawdown limit; a non-positive value is ignored.
func (b *Breaker) SetLimit(limit float64) {
	if limit <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.config.DrawdownLimit = limit
}
