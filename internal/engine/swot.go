package engine

import (
	"fmt"
	"time"

	"cryptobrain/internal/market"
)

// SwotItem is one strategic observation with its weight.
type SwotItem struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Impact string `json:"impact"`
}

// Swot is the periodic strategic self-assessment shown on the dashboard.
type Swot struct {
	Strengths     []SwotItem `json:"strengths"`
	Weaknesses    []SwotItem `json:"weaknesses"`
	Opportunities []SwotItem `json:"opportunities"`
	Threats       []SwotItem `json:"threats"`
	Timestamp     time.Time  `json:"timestamp"`
}

// generateSwot derives the assessment from market conditions and the
// agents' aggregate posture. Internal factors feed strengths and
// weaknesses, external ones opportunities and threats.
func generateSwot(snap market.Snapshot, agents []Agent, settings Settings) Swot {
	swot := Swot{
		Strengths:     []SwotItem{},
		Weaknesses:    []SwotItem{},
		Opportunities: []SwotItem{},
		Threats:       []SwotItem{},
		Timestamp:     time.Now(),
	}

	active, halted := 0, 0
	totalPnL, totalCash := 0.0, 0.0
	for _, a := range agents {
		if a.Status == StatusExecuting {
			active++
		}
		if a.Status == StatusHalted {
			halted++
		}
		totalPnL += a.TotalProfit
		totalCash += a.Balance
	}

	if active == len(agents) && len(agents) > 0 {
		swot.Strengths = append(swot.Strengths, SwotItem{ID: "s1", Text: fmt.Sprintf("Full Neural Network Active (%d Nodes)", len(agents)), Impact: "HIGH"})
	}
	if totalPnL > 0 {
		swot.Strengths = append(swot.Strengths, SwotItem{ID: "s2", Text: "Positive PnL Momentum", Impact: "MEDIUM"})
	}
	if settings.AutoTrade {
		swot.Strengths = append(swot.Strengths, SwotItem{ID: "s3", Text: "Autonomous Mode Engaged", Impact: "HIGH"})
	}
	swot.Strengths = append(swot.Strengths, SwotItem{ID: "s4", Text: "Kelly Risk Mgmt Active", Impact: "MEDIUM"})

	if settings.TradingMode == ModePaper {
		swot.Weaknesses = append(swot.Weaknesses, SwotItem{ID: "w1", Text: "Simulation Mode (No Real Profit)", Impact: "LOW"})
	}
	if halted > 0 {
		swot.Weaknesses = append(swot.Weaknesses, SwotItem{ID: "w2", Text: fmt.Sprintf("%d Agents Halted", halted), Impact: "HIGH"})
	}
	if totalCash > 40000 {
		swot.Weaknesses = append(swot.Weaknesses, SwotItem{ID: "w3", Text: "High Cash Drag (Underexposed)", Impact: "MEDIUM"})
	}

	if snap.Volatility > 0.8 && snap.Volatility < 2.0 {
		swot.Opportunities = append(swot.Opportunities, SwotItem{ID: "o1", Text: "Healthy Volatility for Scalping", Impact: "HIGH"})
	}
	if snap.Regime == market.RegimeCrab {
		swot.Opportunities = append(swot.Opportunities, SwotItem{ID: "o2", Text: "Mean Reversion / Arbitrage Zone", Impact: "HIGH"})
	}
	if snap.Indicators.RSI < 30 {
		swot.Opportunities = append(swot.Opportunities, SwotItem{ID: "o3", Text: "Oversold Bounce Likely", Impact: "MEDIUM"})
	}

	if snap.Volatility > 3.0 {
		swot.Threats = append(swot.Threats, SwotItem{ID: "t1", Text: "Extreme Volatility (Slippage Risk)", Impact: "HIGH"})
	}
	if snap.Regime == market.RegimeCrash {
		swot.Threats = append(swot.Threats, SwotItem{ID: "t2", Text: "Cascading Liquidation Detected", Impact: "HIGH"})
	}
	if snap.Regime == market.RegimePump && snap.Indicators.RSI > 85 {
		swot.Threats = append(swot.Threats, SwotItem{ID: "t3", Text: "Blow-off Top Risk", Impact: "MEDIUM"})
	}

	return swot
}
