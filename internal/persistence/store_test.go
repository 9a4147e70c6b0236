package persistence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"cryptobrain/internal/engine"
	"cryptobrain/internal/ledger"
	"cryptobrain/internal/market"
)

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "bot_state.json")
	return NewStore(path, zerolog.Nop()), path
}

func sampleState() engine.State {
	agents := engine.SeedAgents()
	agents[0].Balance = 8500
	agents[0].Holdings = 0.02
	agents[0].AvgBuyPrice = 61000
	return engine.State{
		Agents:   agents,
		Settings: engine.DefaultSettings(),
		Market: market.Snapshot{
			Symbol:  "BTC/USDT",
			Price:   61250,
			Regime:  market.RegimeBull,
			History: []float64{61000, 61100, 61250},
		},
		Executions: []ledger.ExecutionRecord{
			{ID: "abc", Type: ledger.SideBuy, AgentID: "OKX", Price: 61000, Amount: 0.02, Fees: 1.22},
		},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	store, _ := testStore(t)
	want := sampleState()

	if err := store.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(got.Agents) != len(want.Agents) {
		t.Fatalf("loaded %d agents, want %d", len(got.Agents), len(want.Agents))
	}
	if got.Agents[0].Balance != 8500 || got.Agents[0].Holdings != 0.02 {
		t.Errorf("agent account = (%v, %v), want (8500, 0.02)", got.Agents[0].Balance, got.Agents[0].Holdings)
	}
	if got.Market.Price != 61250 || got.Market.Regime != market.RegimeBull {
		t.Errorf("market = (%v, %v), want (61250, BULL)", got.Market.Price, got.Market.Regime)
	}
	if len(got.Executions) != 1 || got.Executions[0].ID != "abc" {
		t.Errorf("executions = %+v, want the saved record", got.Executions)
	}
}

func TestStore_LoadMissingFile(t *testing.T) {
	store, _ := testStore(t)
	if _, err := store.Load(); err == nil {
		t.Error("Load of a missing file succeeded")
	}
}

func TestStore_LoadCorruptFile(t *testing.T) {
	store, path := testStore(t)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(); err == nil {
		t.Error("Load of a corrupt file succeeded")
	}
}

func TestStore_SaveLeavesNoTempFile(t *testing.T) {
	store, path := testStore(t)
	if err := store.Save(sampleState()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after save")
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	store, _ := testStore(t)
	first := sampleState()
	if err := store.Save(first); err != nil {
		t.Fatal(err)
	}

	second := sampleState()
	second.Agents[0].Balance = 999
	if err := store.Save(second); err != nil {
		t.Fatal(err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.Agents[0].Balance != 999 {
		t.Errorf("balance = %v, want the second save's 999", got.Agents[0].Balance)
	}
}
