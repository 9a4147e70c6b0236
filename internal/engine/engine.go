package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"cryptobrain/internal/events"
	"cryptobrain/internal/indicators"
	"cryptobrain/internal/ledger"
	"cryptobrain/internal/logging"
	"cryptobrain/internal/market"
	"cryptobrain/internal/risk"
	"cryptobrain/internal/strategy"
)

const maxLogEntries = 50

// Notifier receives human-readable broadcast messages. Implementations
// must not block; the engine calls it while holding its lock.
type Notifier interface {
	Notify(message, level string)
}

// Config tunes the decision engine.
type Config struct {
	TickInterval   time.Duration
	FeeRate        float64
	MinCashToTrade float64
	RiskLevel      string
}

// DefaultConfig matches the live tuning: 500ms heartbeat, 0.1% fees.
func DefaultConfig() Config {
	return Config{
		TickInterval:   500 * time.Millisecond,
		FeeRate:        0.001,
		MinCashToTrade: 100,
		RiskLevel:      "MEDIUM",
	}
}

// Engine owns all mutable simulation state behind a single mutex. One
// goroutine advances it on a timer; everyone else reads deep-copied
// snapshots.
type Engine struct {
	mu  sync.Mutex
	cfg Config

	sim      *market.Simulator
	breaker  *risk.Breaker
	bus      *events.EventBus
	notifier Notifier
	log      *logging.Logger

	agents     []Agent
	settings   Settings
	global     GlobalSettings
	executions []ledger.ExecutionRecord
	logs       []LogEntry
	swot       Swot

	tickCounter int64
	tripApplied bool

	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New wires an engine around its collaborators. The notifier may be nil.
func New(cfg Config, sim *market.Simulator, breaker *risk.Breaker, bus *events.EventBus, notifier Notifier, log *logging.Logger) *Engine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 500 * time.Millisecond
	}
	if cfg.FeeRate <= 0 {
		cfg.FeeRate = 0.001
	}
	if cfg.MinCashToTrade <= 0 {
		cfg.MinCashToTrade = 100
	}
	if cfg.RiskLevel == "" {
		cfg.RiskLevel = "MEDIUM"
	}
	if log == nil {
		log = logging.Default().WithComponent("engine")
	}

	e := &Engine{
		cfg:      cfg,
		sim:      sim,
		breaker:  breaker,
		bus:      bus,
		notifier: notifier,
		log:      log,
		agents:   SeedAgents(),
		settings: DefaultSettings(),
	}
	e.settings.RiskLevel = cfg.RiskLevel

	// The trip handler only touches the bus and notifier, so it is safe
	// to fire from inside a tick.
	breaker.OnTrip(func(dailyPnL, limit float64) {
		if e.bus != nil {
			e.bus.PublishBreakerTripped(dailyPnL, limit)
		}
	})

	return e
}

// Start launches the tick loop. It is a no-op when already running.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	e.mu.Unlock()

	e.log.Info("engine started", "tick_interval", e.cfg.TickInterval.String())
	if e.bus != nil {
		e.bus.Publish(events.Event{Type: events.EventEngineStarted, Data: map[string]interface{}{}})
	}

	go e.run(ctx)
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

// Stop halts the tick loop and waits for the in-flight tick to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	cancel()
	<-done

	e.log.Info("engine stopped")
	if e.bus != nil {
		e.bus.Publish(events.Event{Type: events.EventEngineStopped, Data: map[string]interface{}{}})
	}
}

// Tick advances the simulation one step. A panic inside the step is
// recovered and logged; the next tick proceeds from consistent state.
func (e *Engine) Tick() {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("tick panic recovered", "panic", fmt.Sprintf("%v", r))
			if e.bus != nil {
				e.bus.PublishError("engine", "tick panic recovered", fmt.Errorf("%v", r))
			}
		}
	}()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.tickCounter++

	prevRegime := e.sim.Regime()
	snap, shifted := e.sim.Tick()
	if shifted {
		e.addLog(fmt.Sprintf("MARKET REGIME SHIFT: %s", snap.Regime), "WARNING", "BRAIN")
		if e.bus != nil {
			e.bus.PublishRegimeShift(string(prevRegime), string(snap.Regime), snap.Price)
		}
	}

	for i := range e.agents {
		e.processAgent(&e.agents[i], snap)
	}

	// Drawdown guard: the trip latches until an explicit reset.
	if !e.breaker.CanTrade() && !e.tripApplied {
		e.tripApplied = true
		e.settings.AutoTrade = false
		for i := range e.agents {
			e.agents[i].Status = StatusHalted
			e.agents[i].LastAction = "HALTED (Drawdown Limit)"
		}
		rs := e.breaker.Snapshot()
		e.addLog(fmt.Sprintf("CIRCUIT BREAKER: Daily loss $%.2f exceeded limit $%.2f. ALL AGENTS HALTED.",
			-rs.DailyRealizedPnL, rs.DrawdownLimit), "CRITICAL", "RISK_MGR")
	}

	// SWOT refresh is throttled to every 5th tick.
	if e.tickCounter%5 == 0 {
		e.swot = generateSwot(snap, e.agents, e.settings)
	}

	if e.settings.AutoTrade && e.tickCounter%20 == 0 {
		e.thoughtStream(snap)
	}

	if e.bus != nil {
		e.bus.Publish(events.Event{
			Type: events.EventTick,
			Data: map[string]interface{}{
				"price":  snap.Price,
				"regime": string(snap.Regime),
				"tick":   e.tickCounter,
			},
		})
	}
}

// processAgent runs one agent's full decision cycle against the fresh
// market snapshot. Caller holds the engine lock.
func (e *Engine) processAgent(a *Agent, snap market.Snapshot) {
	regime := snap.Regime

	// Strategy adaptation: never switch mid-position unless the market
	// is crashing and the defensive profile must take over.
	if e.settings.AutoTrade && a.Status != StatusHalted {
		optimal := strategy.Recommend(regime, a.ID)
		if optimal != a.ActiveStrategy && (!a.Holding() || regime == market.RegimeCrash) {
			e.log.Debug("strategy adapted", "agent", string(a.ID), "from", string(a.ActiveStrategy), "to", string(optimal), "regime", string(regime))
			a.ActiveStrategy = optimal
		}
	}

	price := e.sim.VenuePrice(snap.Price, a.ID)
	a.CurrentPrice = price
	spreadPct := (price - snap.Price) / snap.Price * 100

	profile := strategy.ProfileFor(a.ActiveStrategy)
	score := e.score(a, profile, snap, spreadPct)
	a.PredictionScore = score
	a.Confidence = math.Min(100, math.Abs(score)+snap.Indicators.Bandwidth*500)

	// HALTED is sticky: only reset paths leave it.
	if a.Status == StatusHalted {
		return
	}

	if !e.settings.AutoTrade {
		a.Status = StatusIdle
		return
	}

	e.execute(a, profile, snap, price, spreadPct, score)

	switch {
	case regime == market.RegimeCrash:
		a.Status = StatusDefensive
	case a.Holding():
		a.Status = StatusExecuting
	default:
		a.Status = StatusScanning
	}
}

// score computes the weighted composite prediction score in [-100, 100]
// plus strategy-specific overrides.
func (e *Engine) score(a *Agent, profile strategy.Profile, snap market.Snapshot, spreadPct float64) float64 {
	ind := snap.Indicators

	sigRSI := (50 - ind.RSI) / 50
	sigBB := indicators.Clamp(-1, 1, (0.5-ind.PercentB)*2)

	volAbs := indicators.Volatility(e.sim.History(), 20)
	macdScale := volAbs
	if macdScale <= 0 {
		macdScale = 1
	}
	sigMACD := indicators.Clamp(-1, 1, ind.MACDHist/macdScale)

	sigTrend := 0.0
	switch snap.Trend {
	case market.TrendUp:
		sigTrend = 1
	case market.TrendDown:
		sigTrend = -1
	}

	w := a.Weights
	bias := profile.Bias

	raw := sigRSI*w.RSI*bias.RSI +
		sigBB*w.Bollinger*bias.BB +
		sigMACD*w.MACD*bias.MACD +
		sigTrend*w.Trend

	// Arbitrage trades the venue spread, not the indicators: a cheap
	// venue is a buy, an expensive one a sell.
	if a.ActiveStrategy == strategy.Arbitrage {
		if spreadPct < -0.15 {
			raw += 60
		} else if spreadPct > 0.15 {
			raw -= 60
		}
	}

	// Hedge panic-buys extreme fear.
	if a.ActiveStrategy == strategy.Hedge && ind.RSI < 25 {
		raw += 100
	}

	total := w.RSI*bias.RSI + w.Bollinger*bias.BB + w.MACD*bias.MACD + w.Trend + 0.1
	return indicators.Sanitize(raw/total*100, 0)
}

// execute applies the action precedence: protective exits first, then
// entries, then score-driven exits.
func (e *Engine) execute(a *Agent, profile strategy.Profile, snap market.Snapshot, price, spreadPct, score float64) {
	history := e.sim.History()
	recentHigh := 0.0
	for _, p := range history[max(0, len(history)-10):] {
		if p > recentHigh {
			recentHigh = p
		}
	}
	levels := strategy.Stops(a.ActiveStrategy, snap.Regime, price, recentHigh, snap.Indicators.ATR, a.Holding())

	switch {
	case a.Holding() && price <= levels.StopLoss:
		e.closePosition(a, price, "STOP LOSS")

	case a.Holding() && levels.TakeProfit > 0 && price >= levels.TakeProfit:
		e.closePosition(a, price, "TAKE PROFIT")

	case !a.Holding() && score > profile.EntryThreshold && a.Balance > e.cfg.MinCashToTrade && e.breaker.CanTrade():
		e.openPosition(a, profile, price, spreadPct, score)

	case a.Holding() && score < profile.ExitThreshold:
		e.closePosition(a, price, "SELL")

	case a.Holding():
		a.LastAction = fmt.Sprintf("HOLD (PnL: %.2f%%)", a.UnrealizedPnLPercent(price)*100)

	default:
		a.LastAction = fmt.Sprintf("SCANNING (Score: %.0f)", score)
	}
}

func (e *Engine) openPosition(a *Agent, profile strategy.Profile, price, spreadPct, score float64) {
	kelly := ledger.KellyFraction(a.WinRate, e.settings.RiskLevel)
	notional := a.Balance * kelly * profile.SizeMultiplier

	rec, err := a.Buy(string(a.ID), price, notional, e.cfg.FeeRate)
	if err != nil {
		e.log.Warn("buy rejected", "agent", string(a.ID), "error", err)
		return
	}
	e.executions = append(e.executions, rec)

	tradeType := "BUY"
	if a.ActiveStrategy == strategy.Arbitrage {
		tradeType = fmt.Sprintf("ARBITRAGE BUY (Spread: %.2f%%)", spreadPct)
	}
	a.LastAction = fmt.Sprintf("%s @ $%.0f", tradeType, price)

	e.addLog(fmt.Sprintf("BUY (%s): %s. Net Invest: $%.2f (Fee: $%.2f)",
		a.ID, tradeType, notional-rec.Fees, rec.Fees), "SUCCESS", string(a.ID))
	if e.bus != nil {
		e.bus.PublishTradeOpened(a.Name, string(a.ID), string(a.ActiveStrategy), price, rec.Amount)
	}
}

func (e *Engine) closePosition(a *Agent, price float64, reason string) {
	rec, err := a.Sell(string(a.ID), price, e.cfg.FeeRate)
	if err != nil {
		e.log.Warn("sell rejected", "agent", string(a.ID), "error", err)
		return
	}
	e.executions = append(e.executions, rec)
	e.breaker.RecordPnL(rec.RealizedPnL)

	a.LastAction = fmt.Sprintf("%s @ $%.0f", reason, price)

	switch reason {
	case "STOP LOSS":
		e.addLog(fmt.Sprintf("STOP LOSS (%s): Trailing stop hit. Net PnL: $%.2f", a.ID, rec.RealizedPnL), "ERROR", "RISK_MGR")
	case "TAKE PROFIT":
		e.addLog(fmt.Sprintf("TAKE PROFIT (%s): Target hit. Net PnL: $%.2f", a.ID, rec.RealizedPnL), "SUCCESS", string(a.ID))
	default:
		logType := "WARNING"
		if rec.RealizedPnL > 0 {
			logType = "SUCCESS"
		}
		e.addLog(fmt.Sprintf("SELL (%s): Net PnL: $%.2f (Fee: $%.2f)", a.ID, rec.RealizedPnL, rec.Fees), logType, string(a.ID))
	}

	if e.bus != nil {
		e.bus.PublishTradeClosed(a.Name, string(a.ID), reason, price, rec.Amount, rec.RealizedPnL)
	}
}

var thoughts = []string{
	"MACD histogram momentum check...",
	"Analyzing price divergence across 4 liquidity pools...",
	"Evaluating global RSI against regime structure...",
	"Calculating statistical arbitrage opportunities...",
}

// thoughtStream emits a rotating status line so the log feed shows the
// brain is alive between trades.
func (e *Engine) thoughtStream(snap market.Snapshot) {
	idx := int(e.tickCounter/20) % len(thoughts)
	msg := thoughts[idx]
	if idx == 2 {
		msg = fmt.Sprintf("Global RSI %.1f. Regime: %s.", snap.Indicators.RSI, snap.Regime)
	}
	e.addLog(msg, "INFO", "BRAIN")
}

// addLog appends to the bounded in-state feed and forwards broadcast-
// worthy lines to the notifier. Caller holds the engine lock.
func (e *Engine) addLog(message, logType, source string) {
	e.logs = append(e.logs, LogEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Message:   message,
		Type:      logType,
		Source:    source,
	})
	if len(e.logs) > maxLogEntries {
		e.logs = e.logs[len(e.logs)-maxLogEntries:]
	}

	if e.notifier != nil {
		if logType == "SUCCESS" || logType == "CRITICAL" || (logType == "WARNING" && source == "RISK_MGR") {
			e.notifier.Notify(message, logType)
		}
	}
}

// Snapshot returns a deep copy of the full state, safe to serialize or
// mutate without touching the engine.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() State {
	agents := make([]Agent, len(e.agents))
	copy(agents, e.agents)

	return State{
		Agents:     agents,
		Market:     e.sim.Snapshot(),
		Swot:       copySwot(e.swot),
		Settings:   e.settings,
		Global:     e.global,
		Executions: append([]ledger.ExecutionRecord(nil), e.executions...),
		Logs:       append([]LogEntry(nil), e.logs...),
		Risk:       e.breaker.Snapshot(),
	}
}

func copySwot(s Swot) Swot {
	return Swot{
		Strengths:     append([]SwotItem(nil), s.Strengths...),
		Weaknesses:    append([]SwotItem(nil), s.Weaknesses...),
		Opportunities: append([]SwotItem(nil), s.Opportunities...),
		Threats:       append([]SwotItem(nil), s.Threats...),
		Timestamp:     s.Timestamp,
	}
}

// ApplyUpdate merges a partial state overwrite. While the trading mode
// is LIVE, edits to agent balances or holdings are rejected atomically
// and the state is left untouched.
func (e *Engine) ApplyUpdate(u StateUpdate) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.settings.TradingMode == ModeLive && u.Agents != nil {
		current := make(map[market.Venue]*Agent, len(e.agents))
		for i := range e.agents {
			current[e.agents[i].ID] = &e.agents[i]
		}
		for _, in := range u.Agents {
			cur, ok := current[in.ID]
			if !ok {
				return fmt.Errorf("unknown agent %q", in.ID)
			}
			if in.Balance != cur.Balance || in.Holdings != cur.Holdings {
				return fmt.Errorf("agent %s: balance/holdings edits are not allowed in LIVE mode", in.ID)
			}
		}
	}

	if u.Agents != nil {
		e.agents = make([]Agent, len(u.Agents))
		copy(e.agents, u.Agents)
	}
	if u.Settings != nil {
		e.settings = *u.Settings
	}
	if u.Global != nil {
		e.global = *u.Global
	}
	if u.Executions != nil {
		e.executions = append([]ledger.ExecutionRecord(nil), u.Executions...)
	}
	return nil
}

// Reset restores the factory state: seeded agents, empty trade log,
// autotrade off, re-armed breaker, reseeded market.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.agents = SeedAgents()
	e.executions = nil
	e.logs = nil
	e.settings.AutoTrade = false
	e.sim.Reset()
	e.breaker.Reset()
	e.tripApplied = false
	e.swot = Swot{}

	e.addLog("FACTORY RESET INITIATED.", "CRITICAL", "SYSTEM")
	if e.bus != nil {
		e.bus.Publish(events.Event{Type: events.EventReset, Data: map[string]interface{}{}})
	}
}

// PanicStop is the emergency flatten: autotrade off, every position
// zeroed, every agent halted until a reset.
func (e *Engine) PanicStop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.settings.AutoTrade = false
	for i := range e.agents {
		e.agents[i].Holdings = 0
		e.agents[i].AvgBuyPrice = 0
		e.agents[i].Status = StatusHalted
	}

	e.addLog("PANIC BUTTON PRESSED. ALL POSITIONS LIQUIDATED.", "CRITICAL", "RISK_MGR")
	if e.bus != nil {
		e.bus.Publish(events.Event{Type: events.EventPanic, Data: map[string]interface{}{}})
	}
}

// Restore replaces state from a persisted snapshot, keeping seeds for
// any section the snapshot lacks.
func (e *Engine) Restore(st State) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(st.Agents) > 0 {
		e.agents = make([]Agent, len(st.Agents))
		copy(e.agents, st.Agents)
	}
	if st.Settings.RiskLevel != "" {
		e.settings = st.Settings
	}
	e.global = st.Global
	if st.Executions != nil {
		e.executions = append([]ledger.ExecutionRecord(nil), st.Executions...)
	}
	if st.Logs != nil {
		e.logs = append([]LogEntry(nil), st.Logs...)
	}
	e.sim.Restore(st.Market.History, st.Market.Regime)

	// A tripped breaker stays tripped across a restart; the latch keeps
	// the next tick from re-announcing the halt.
	e.breaker.Restore(st.Risk)
	e.tripApplied = st.Risk.Tripped
}
