package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Side is the direction of a fill.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ErrPositionOpen is returned when a BUY arrives while the account
// already holds a position; the single-position cost basis would be
// silently corrupted otherwise.
var ErrPositionOpen = errors.New("position already open")

// ErrNoPosition is returned for a SELL with nothing to sell.
var ErrNoPosition = errors.New("no open position")

// ExecutionRecord is one immutable fill in the append-only trade log.
type ExecutionRecord struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Type        Side      `json:"type"`
	AgentID     string    `json:"botId"`
	Price       float64   `json:"price"`
	Amount      float64   `json:"amount"`
	RealizedPnL float64   `json:"realizedPnL"`
	Fees        float64   `json:"fees"`
}

// KellyFraction returns the capped fractional-Kelly position size for
// the given historical win rate. Reward/risk is fixed at 1.5; the risk
// level scales the raw Kelly down before clamping to [5%, 40%] of cash.
func KellyFraction(winRate float64, riskLevel string) float64 {
	p := winRate / 100
	q := 1 - p
	const b = 1.5
	kelly := (b*p - q) / b

	safety := 0.5
	switch riskLevel {
	case "LOW":
		safety = 0.25
	case "HIGH":
		safety = 0.7
	}

	f := kelly * safety
	if f < 0.05 {
		f = 0.05
	}
	if f > 0.40 {
		f = 0.40
	}
	return f
}

// Account is one agent's cash, position and realized performance.
// Win rate seeds at 100 and is recomputed from closed trades only.
type Account struct {
	Balance      float64 `json:"balanceUsdt"`
	Holdings     float64 `json:"holdingsCrypto"`
	AvgBuyPrice  float64 `json:"avgBuyPrice"`
	TotalProfit  float64 `json:"totalProfit"`
	WinRate      float64 `json:"winRate"`
	TradesCount  int     `json:"tradesCount"`
	WinningSells int     `json:"winningSells"`
	ClosedTrades int     `json:"closedTrades"`
}

// NewAccount returns a flat account with the optimistic seed win rate.
func NewAccount(balance float64) Account {
	return Account{Balance: balance, WinRate: 100}
}

// Equity values the account at the given mark price.
func (a *Account) Equity(price float64) float64 {
	return a.Balance + a.Holdings*price
}

// UnrealizedPnLPercent is the fractional move of price against the
// cost basis, 0 while flat.
func (a *Account) UnrealizedPnLPercent(price float64) float64 {
	if a.AvgBuyPrice <= 0 || a.Holdings <= 0 {
		return 0
	}
	return (price - a.AvgBuyPrice) / a.AvgBuyPrice
}

// Buy opens a position with the given cash notional. The fee comes out
// of the notional before conversion, so the full notional leaves cash
// but only the net amount buys crypto.
func (a *Account) Buy(agentID string, price, notional, feeRate float64) (ExecutionRecord, error) {
	if a.Holdings > 1e-6 {
		return ExecutionRecord{}, ErrPositionOpen
	}
	if price <= 0 {
		return ExecutionRecord{}, fmt.Errorf("invalid price %v", price)
	}
	if notional <= 0 || notional > a.Balance {
		return ExecutionRecord{}, fmt.Errorf("invalid notional %v against balance %v", notional, a.Balance)
	}

	fee := notional * feeRate
	quantity := (notional - fee) / price

	a.Balance -= notional
	a.Holdings += quantity
	a.AvgBuyPrice = price
	a.TradesCount++

	return ExecutionRecord{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Type:      SideBuy,
		AgentID:   agentID,
		Price:     price,
		Amount:    quantity,
		Fees:      fee,
	}, nil
}

// Sell closes the whole position at the given price. Realized PnL is
// net of the sell fee against the simple cost basis; win rate is
// recomputed over all closed trades.
func (a *Account) Sell(agentID string, price, feeRate float64) (ExecutionRecord, error) {
	if a.Holdings <= 1e-6 {
		return ExecutionRecord{}, ErrNoPosition
	}
	if price <= 0 {
		return ExecutionRecord{}, fmt.Errorf("invalid price %v", price)
	}

	quantity := a.Holdings
	gross := quantity * price
	fee := gross * feeRate
	net := gross - fee
	pnl := net - quantity*a.AvgBuyPrice

	a.Balance += net
	a.Holdings = 0
	a.AvgBuyPrice = 0
	a.TotalProfit += pnl
	a.TradesCount++

	a.ClosedTrades++
	if pnl > 0 {
		a.WinningSells++
	}
	a.WinRate = float64(a.WinningSells) / float64(a.ClosedTrades) * 100

	return ExecutionRecord{
		ID:          uuid.NewString(),
		Timestamp:   time.Now(),
		Type:        SideSell,
		AgentID:     agentID,
		Price:       price,
		Amount:      quantity,
		RealizedPnL: pnl,
		Fees:        fee,
	}, nil
}
