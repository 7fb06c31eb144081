package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"market-intel-bot/internal/events"
	"market-intel-bot/internal/journal"
	"market-intel-bot/internal/logging"
	"market-intel-bot/internal/scheduler"
	"market-intel-bot/internal/state"
)

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	ProductionMode bool
}

// Server is the HTTP and WebSocket surface over the live state
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	hub        *WSHub

	store    *state.Store
	journal  *journal.Journal
	sched    *scheduler.Scheduler
	eventBus *events.EventBus
	logger   *logging.Logger

	startedAt time.Time
}

// NewServer creates the API server and wires the hub to the event bus
func NewServer(cfg ServerConfig, store *state.Store, jr *journal.Journal, sched *scheduler.Scheduler, bus *events.EventBus, logger *logging.Logger) *Server {
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:    router,
		hub:       NewWSHub(),
		store:     store,
		journal:   jr,
		sched:     sched,
		eventBus:  bus,
		logger:    logger.WithComponent("api"),
		startedAt: time.Now().UTC(),
	}
	s.routes()

	go s.hub.Run()
	bus.SubscribeAll(func(event events.Event) {
		s.hub.BroadcastEvent(event)
	})

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.GET("/ws", s.handleWebSocket)

	apiGroup := s.router.Group("/api")
	{
		apiGroup.GET("/health", s.handleHealth)
		apiGroup.GET("/state", s.handleState)
		apiGroup.GET("/trades", s.handleTrades)
		apiGroup.GET("/scanner", s.handleScanner)
		apiGroup.GET("/alerts", s.handleAlerts)
		apiGroup.POST("/trades/:id/close", s.handleCloseTrade)
	}
}

// Start runs the HTTP server until it fails or is shut down
func (s *Server) Start() error {
	s.logger.Info("api server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	cycles, calls, date := s.sched.Counters()
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptimeSeconds":  int(time.Since(s.startedAt).Seconds()),
		"session":        string(s.sched.CurrentSession()),
		"cycleCount":     cycles,
		"dailyCallCount": calls,
		"budgetDate":     date,
		"withinBudget":   s.sched.IsWithinBudget(),
		"wsClients":      s.hub.GetClientCount(),
	})
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleTrades(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"activeVersion": s.journal.ActiveVersion(),
		"trades":        s.journal.Trades(),
		"stats":         s.journal.Stats(),
	})
}

func (s *Server) handleScanner(c *gin.Context) {
	snap := s.store.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"discoveries": snap.Discoveries,
	})
}

func (s *Server) handleAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"alerts": s.store.Alerts(),
	})
}

// handleCloseTrade manually closes a pending paper trade at the ticker's
// latest known price
func (s *Server) handleCloseTrade(c *gin.Context) {
	id := c.Param("id")

	var price float64
	for _, t := range s.journal.Pending() {
		if t.ID != id {
			continue
		}
		if q := s.store.Quote(t.Ticker); q != nil {
			price = q.Last
		}
		break
	}

	if !s.journal.Close(id, price) {
		c.JSON(http.StatusNotFound, gin.H{"error": "trade not found or already closed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed": id})
}
