package engine

import (
	"cryptobrain/internal/ledger"
	"cryptobrain/internal/market"
	"cryptobrain/internal/strategy"
)

// AgentStatus is the lifecycle state of one venue agent.
type AgentStatus string

const (
	StatusIdle      AgentStatus = "IDLE"      // Autotrade off
	StatusScanning  AgentStatus = "SCANNING"  // Autotrade on, flat
	StatusExecuting AgentStatus = "EXECUTING" // Autotrade on, holding
	StatusDefensive AgentStatus = "DEFENSIVE" // Market in CRASH
	StatusHalted    AgentStatus = "HALTED"    // Sticky until reset
)

// Agent is one autonomous trading personality bound to a venue. Its
// account fields flatten into the same wire shape the dashboard reads.
type Agent struct {
	ID             market.Venue  `json:"id"`
	Name           string        `json:"name"`
	StableCoin     string        `json:"stableCoin"`
	Status         AgentStatus   `json:"status"`
	ActiveStrategy strategy.Type `json:"activeStrategy"`
	ledger.Account
	LastAction      string           `json:"lastAction"`
	Color           string           `json:"color"`
	PredictionScore float64          `json:"predictionScore"`
	Confidence      float64          `json:"confidence"`
	Weights         strategy.Weights `json:"neuralWeights"`
	CurrentPrice    float64          `json:"currentPrice"`
	Streak          int              `json:"streak"`
}

// Holding reports whether the agent has an open position. The epsilon
// absorbs float dust left by full exits.
func (a *Agent) Holding() bool {
	return a.Holdings > 1e-6
}

// SeedAgents returns the four venue personalities in their initial
// state: a fast scalper, a spread harvester, a patient whale and a
// conservative swing trader.
func SeedAgents() []Agent {
	scalper := strategy.DefaultWeights()
	scalper.RSI = 4.0
	scalper.Bollinger = 3.5
	scalper.Trend = 0.5

	degen := strategy.DefaultWeights()
	degen.Trend = 4.0
	degen.Volume = 3.0

	whale := strategy.DefaultWeights()
	whale.Depth = 3.0

	guard := strategy.DefaultWeights()
	guard.Bollinger = 3.0

	return []Agent{
		{
			ID:             market.VenueOKX,
			Name:           "OKX Sniper",
			StableCoin:     "USDC",
			Status:         StatusIdle,
			ActiveStrategy: strategy.Scalp,
			Account:        ledger.NewAccount(10000),
			LastAction:     "System Ready",
			Color:          "border-blue-500",
			Weights:        scalper,
		},
		{
			ID:             market.VenueMEXC,
			Name:           "MEXC Degen",
			StableCoin:     "USDT",
			Status:         StatusIdle,
			ActiveStrategy: strategy.Arbitrage,
			Account:        ledger.NewAccount(5000),
			LastAction:     "System Ready",
			Color:          "border-green-500",
			Weights:        degen,
		},
		{
			ID:             market.VenueBinance,
			Name:           "Binance Whale",
			StableCoin:     "USDC",
			Status:         StatusIdle,
			ActiveStrategy: strategy.Trend,
			Account:        ledger.NewAccount(25000),
			LastAction:     "System Ready",
			Color:          "border-yellow-500",
			Weights:        whale,
		},
		{
			ID:             market.VenueKraken,
			Name:           "Kraken Safe",
			StableCoin:     "USDC",
			Status:         StatusIdle,
			ActiveStrategy: strategy.Swing,
			Account:        ledger.NewAccount(12000),
			LastAction:     "System Ready",
			Color:          "border-purple-500",
			Weights:        guard,
		},
	}
}
