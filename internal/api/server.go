package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"cryptobrain/config"
	"cryptobrain/internal/backtest"
	"cryptobrain/internal/engine"
	"cryptobrain/internal/events"
	"cryptobrain/internal/logging"
)

// Server exposes the engine over HTTP and WebSocket.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	engine     *engine.Engine
	hub        *WSHub
	cfg        config.ServerConfig
	btCfg      backtest.Config
	log        *logging.Logger
}

// NewServer builds the router, wires the WebSocket hub to the event
// bus, and registers all routes.
func NewServer(cfg config.ServerConfig, btCfg config.BacktestConfig, eng *engine.Engine, bus *events.EventBus, log *logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.AllowedOrigins == "" || cfg.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(cfg.AllowedOrigins, ",")
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	router.Use(cors.New(corsConfig))

	bt := backtest.DefaultConfig()
	if btCfg.Ticks > 0 {
		bt.Ticks = btCfg.Ticks
	}
	if btCfg.Candidates > 0 {
		bt.Candidates = btCfg.Candidates
	}
	if btCfg.Seed != 0 {
		bt.Seed = btCfg.Seed
	}

	s := &Server{
		router: router,
		engine: eng,
		hub:    NewWSHub(log),
		cfg:    cfg,
		btCfg:  bt,
		log:    log.WithComponent("api"),
	}

	go s.hub.Run()
	bus.SubscribeAll(func(event events.Event) {
		s.hub.BroadcastEvent(event)
	})

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.handleWebSocket)

	// The bare paths mirror the dashboard's original endpoints; the
	// /api prefix is the canonical surface.
	s.router.GET("/state", s.handleGetState)
	s.router.POST("/state", s.handlePostState)

	apiGroup := s.router.Group("/api")
	{
		apiGroup.GET("/state", s.handleGetState)
		apiGroup.POST("/state", s.handlePostState)
		apiGroup.POST("/backtest", s.handleBacktest)
		apiGroup.POST("/reset", s.handleReset)
		apiGroup.POST("/panic", s.handlePanic)
	}
}

// buildHTTPServer applies the configured timeouts. The websocket
// upgrade clears the connection deadlines on hijack, so they only bound
// the REST surface.
func (s *Server) buildHTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: time.Duration(s.cfg.ReadTimeout) * time.Second,
		ReadTimeout:       time.Duration(s.cfg.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.WriteTimeout) * time.Second,
	}
}

// Start blocks serving HTTP until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.httpServer = s.buildHTTPServer()

	s.log.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the websocket hub.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.hub.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"clients":   s.hub.ClientCount(),
		"timestamp": time.Now(),
	})
}

func (s *Server) handleGetState(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handlePostState(c *gin.Context) {
	var update engine.StateUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid state update: %v", err)})
		return
	}

	if err := s.engine.ApplyUpdate(update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, s.engine.Snapshot())
}

// backtestRequest lets the caller override parts of the configured
// batch. Zero values fall back to the server defaults.
type backtestRequest struct {
	Ticks      int   `json:"ticks"`
	Candidates int   `json:"candidates"`
	Seed       int64 `json:"seed"`
}

func (s *Server) handleBacktest(c *gin.Context) {
	cfg := s.btCfg

	var req backtestRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid backtest request: %v", err)})
			return
		}
	}
	if req.Ticks > 0 {
		cfg.Ticks = req.Ticks
	}
	if req.Candidates > 0 {
		cfg.Candidates = req.Candidates
	}
	if req.Seed != 0 {
		cfg.Seed = req.Seed
	}

	result, err := backtest.Run(cfg)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.log.Info("backtest batch completed", "ticks", cfg.Ticks, "candidates", cfg.Candidates, "trades", result.TotalTrades)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleReset(c *gin.Context) {
	s.engine.Reset()
	c.JSON(http.StatusOK, gin.H{"status": "reset", "state": s.engine.Snapshot()})
}

func (s *Server) handlePanic(c *gin.Context) {
	s.engine.PanicStop()
	c.JSON(http.StatusOK, gin.H{"status": "halted", "state": s.engine.Snapshot()})
}
