package engine

import (
	"time"

	"cryptobrain/internal/ledger"
	"cryptobrain/internal/market"
	"cryptobrain/internal/risk"
)

// TradingMode distinguishes simulated from credentialed operation.
const (
	ModePaper = "PAPER"
	ModeLive  = "LIVE"
)

// Settings is the operator-tunable runtime configuration.
type Settings struct {
	RiskLevel   string `json:"riskLevel"`
	Strategy    string `json:"strategy"`
	AutoTrade   bool   `json:"autoTrade"`
	ActivePair  string `json:"activePair"`
	TradingMode string `json:"tradingMode"`
}

// DefaultSettings matches the factory state: adaptive strategy, paper
// mode, autotrade off.
func DefaultSettings() Settings {
	return Settings{
		RiskLevel:   "MEDIUM",
		Strategy:    "AI_ADAPTIVE",
		AutoTrade:   false,
		ActivePair:  "BTCUSDT",
		TradingMode: ModePaper,
	}
}

// GlobalSettings carries operator credentials for outbound channels.
type GlobalSettings struct {
	TelegramBotToken string `json:"telegramBotToken"`
	TelegramChatID   string `json:"telegramChatId"`
}

// LogEntry is one line in the rolling in-state log feed.
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
}

// State is the full externally visible engine state. Snapshot returns
// deep copies of it; the persistence layer serializes it verbatim.
type State struct {
	Agents     []Agent                  `json:"bots"`
	Market     market.Snapshot          `json:"market"`
	Swot       Swot                     `json:"swot"`
	Settings   Settings                 `json:"config"`
	Global     GlobalSettings           `json:"globalSettings"`
	Executions []ledger.ExecutionRecord `json:"executions"`
	Logs       []LogEntry               `json:"logs"`
	Risk       risk.Snapshot            `json:"risk"`
}

// StateUpdate is the partial-overwrite body accepted by POST /state.
// Nil sections are left untouched.
type StateUpdate struct {
	Agents     []Agent                  `json:"bots"`
	Settings   *Settings                `json:"config"`
	Global     *GlobalSettings          `json:"globalSettings"`
	Executions []ledger.ExecutionRecord `json:"executions"`
}
