// Package server exposes the dialog core over HTTP: the tool callback
// entrypoint used by the AI/telephony layer, the intake query surface the
// dashboard polls, and a websocket feed of domain events.
package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	afterhoursagent "github.com/wireheat/afterhours/agent/agents/afterhours"
	eventsx "github.com/wireheat/afterhours/agent/events"
	intakex "github.com/wireheat/afterhours/agent/intake"
	signalwirex "github.com/wireheat/afterhours/pkg/signalwire"
)

type Config struct {
	Host        string `split_words:"true" default:"0.0.0.0"`
	Port        int    `split_words:"true" default:"5000"`
	PhoneNumber string `split_words:"true"`
	CompanyName string `split_words:"true" default:"Wire Heating and Air"`
}

type Server struct {
	cfg    Config
	engine *gin.Engine

	agent *afterhoursagent.Agent
	repo  intakex.Repository
	hub   *eventsx.Hub
	sw    *signalwirex.Client

	mu          sync.RWMutex
	handlerInfo *signalwirex.HandlerInfo
}

// New wires the routes. sw may be nil when SignalWire credentials are not
// configured; the token and readiness endpoints degrade gracefully.
func New(
	cfg Config,
	agent *afterhoursagent.Agent,
	repo intakex.Repository,
	hub *eventsx.Hub,
	sw *signalwirex.Client,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{
		cfg:    cfg,
		engine: engine,
		agent:  agent,
		repo:   repo,
		hub:    hub,
		sw:     sw,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.health)
	s.engine.GET("/ready", s.ready)

	api := s.engine.Group("/api")
	{
		api.GET("/config", s.getConfig)
		api.GET("/token", s.getToken)
		api.GET("/requests", s.listRequests)
		api.GET("/requests/:id", s.getRequest)
		api.PATCH("/requests/:id/status", s.updateRequestStatus)
		api.GET("/stats", s.getStats)
	}

	flow := s.engine.Group("/afterhours")
	{
		flow.POST("/tool", s.handleTool)
		flow.GET("/sessions/:id", s.getSession)
		flow.DELETE("/sessions/:id", s.endSession)
	}

	s.engine.GET("/ws/events", s.handleEventSocket)
}

// SetHandlerInfo records the registered call handler once platform setup
// finishes; setup runs in the background so startup never blocks on it.
func (s *Server) SetHandlerInfo(info *signalwirex.HandlerInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlerInfo = info
}

func (s *Server) handlerInfoSnapshot() *signalwirex.HandlerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handlerInfo
}

// Engine is exposed for httptest.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	log.Info().Str("addr", addr).Msg("http server listening")
	return s.engine.Run(addr)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	}
}
