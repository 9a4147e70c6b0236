package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"cryptobrain/config"
	"cryptobrain/internal/engine"
	"cryptobrain/internal/events"
	"cryptobrain/internal/logging"
	"cryptobrain/internal/market"
	"cryptobrain/internal/risk"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	sim := market.NewSimulator(market.DefaultConfig(), rand.New(rand.NewSource(1)))
	breaker := risk.NewBreaker(risk.DefaultConfig())
	bus := events.NewEventBus()
	log := logging.New(&logging.Config{Level: "ERROR", Output: "stderr", Component: "api-test"})
	eng := engine.New(engine.DefaultConfig(), sim, breaker, bus, nil, log)

	return NewServer(
		config.ServerConfig{Port: 0, Host: "127.0.0.1", AllowedOrigins: "*", ReadTimeout: 5, WriteTimeout: 7},
		config.BacktestConfig{Ticks: 200, Candidates: 2, Seed: 7},
		eng, bus, log,
	)
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) engine.State {
	t.Helper()
	var st engine.State
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decoding state: %v", err)
	}
	return st
}

func TestGetState(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/state", "/state"} {
		w := doRequest(t, s, http.MethodGet, path, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s = %d, want 200", path, w.Code)
		}
		st := decodeState(t, w)
		if len(st.Agents) != 4 {
			t.Errorf("GET %s returned %d agents, want 4", path, len(st.Agents))
		}
		if st.Settings.TradingMode != engine.ModePaper {
			t.Errorf("seed trading mode = %q, want PAPER", st.Settings.TradingMode)
		}
	}
}

func TestPostState_PaperAllowsBalanceEdit(t *testing.T) {
	s := newTestServer(t)

	st := decodeState(t, doRequest(t, s, http.MethodGet, "/api/state", nil))
	st.Agents[0].Balance = 7777

	w := doRequest(t, s, http.MethodPost, "/api/state", engine.StateUpdate{Agents: st.Agents})
	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/state = %d, want 200: %s", w.Code, w.Body.String())
	}

	got := decodeState(t, w)
	if got.Agents[0].Balance != 7777 {
		t.Errorf("balance after update = %v, want 7777", got.Agents[0].Balance)
	}
}

func TestPostState_LiveRejectsBalanceEdit(t *testing.T) {
	s := newTestServer(t)

	settings := engine.DefaultSettings()
	settings.TradingMode = engine.ModeLive
	w := doRequest(t, s, http.MethodPost, "/api/state", engine.StateUpdate{Settings: &settings})
	if w.Code != http.StatusOK {
		t.Fatalf("switching to LIVE = %d, want 200: %s", w.Code, w.Body.String())
	}

	st := decodeState(t, w)
	st.Agents[0].Balance += 1000

	w = doRequest(t, s, http.MethodPost, "/api/state", engine.StateUpdate{Agents: st.Agents})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("balance edit in LIVE = %d, want 400", w.Code)
	}

	// State unchanged after the rejected update.
	after := decodeState(t, doRequest(t, s, http.MethodGet, "/api/state", nil))
	if after.Agents[0].Balance != st.Agents[0].Balance-1000 {
		t.Errorf("balance changed after rejected update: %v", after.Agents[0].Balance)
	}
}

func TestPostState_MalformedBody(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/state", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body = %d, want 400", w.Code)
	}
}

func TestBacktest(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodPost, "/api/backtest", backtestRequest{Ticks: 300, Candidates: 2, Seed: 11})
	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/backtest = %d, want 200: %s", w.Code, w.Body.String())
	}

	var res map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	for _, key := range []string{"totalTrades", "winRate", "maxDrawdown", "bestWeights", "history"} {
		if _, ok := res[key]; !ok {
			t.Errorf("result missing %q", key)
		}
	}
}

func TestBacktest_EmptyBodyUsesDefaults(t *testing.T) {
	s := newTestServer(t)
	w := doRequest(t, s, http.MethodPost, "/api/backtest", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/backtest with no body = %d, want 200: %s", w.Code, w.Body.String())
	}
}

func TestReset(t *testing.T) {
	s := newTestServer(t)

	settings := engine.DefaultSettings()
	settings.AutoTrade = true
	doRequest(t, s, http.MethodPost, "/api/state", engine.StateUpdate{Settings: &settings})

	w := doRequest(t, s, http.MethodPost, "/api/reset", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/reset = %d, want 200", w.Code)
	}

	st := decodeState(t, doRequest(t, s, http.MethodGet, "/api/state", nil))
	if st.Settings.AutoTrade {
		t.Error("auto trade still on after reset")
	}
	if st.Agents[0].Balance != 10000 {
		t.Errorf("balance after reset = %v, want the 10000 seed", st.Agents[0].Balance)
	}
}

func TestPanic(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodPost, "/api/panic", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/panic = %d, want 200", w.Code)
	}

	st := decodeState(t, doRequest(t, s, http.MethodGet, "/api/state", nil))
	for _, a := range st.Agents {
		if a.Status != engine.StatusHalted {
			t.Errorf("agent %s status = %s, want HALTED", a.ID, a.Status)
		}
		if a.Holdings != 0 {
			t.Errorf("agent %s still holds %v after panic", a.ID, a.Holdings)
		}
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := doRequest(t, s, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d, want 200", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("health status = %v, want ok", body["status"])
	}
}

func TestHTTPServerTimeouts(t *testing.T) {
	s := newTestServer(t)
	srv := s.buildHTTPServer()

	if srv.ReadTimeout != 5*time.Second {
		t.Errorf("read timeout = %v, want 5s", srv.ReadTimeout)
	}
	if srv.WriteTimeout != 7*time.Second {
		t.Errorf("write timeout = %v, want 7s", srv.WriteTimeout)
	}
	if srv.Addr != "127.0.0.1:0" {
		t.Errorf("addr = %q, want 127.0.0.1:0", srv.Addr)
	}
}

func TestWSHub_StopEndsRun(t *testing.T) {
	log := logging.New(&logging.Config{Level: "ERROR", Output: "stderr"})
	h := NewWSHub(log)

	done := make(chan struct{})
	go func() {
		h.Run()
		close(done)
	}()

	h.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}

	// Second Stop is a no-op.
	h.Stop()
}

func TestShutdown_StopsHub(t *testing.T) {
	s := newTestServer(t)

	done := make(chan struct{})
	go func() {
		<-s.hub.stop
		close(done)
	}()

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Shutdown did not stop the hub")
	}
}

func TestWebSocket_WelcomeMessage(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading welcome: %v", err)
	}

	var welcome map[string]interface{}
	if err := json.Unmarshal(msg, &welcome); err != nil {
		t.Fatalf("decoding welcome: %v", err)
	}
	if welcome["type"] != "CONNECTED" {
		t.Errorf("welcome type = %v, want CONNECTED", welcome["type"])
	}
	if _, ok := welcome["state"]; !ok {
		t.Error("welcome missing the state snapshot")
	}
}
