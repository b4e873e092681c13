// Package web provides the HTTP status server for the weighbridge daemon.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sweeney/weighbridge/internal/status"
	"github.com/sweeney/weighbridge/internal/store"
)

// History lists stored consumption events, newest first.
type History interface {
	List(ctx context.Context, limit int) ([]store.Record, error)
}

// Tarer zeroes the scale.
type Tarer interface {
	Tare()
}

// Deps are the collaborators the server reads from. Only Tracker is required.
type Deps struct {
	Tracker *status.Tracker
	History History
	Tarer   Tarer
	Log     *zap.SugaredLogger
}

// Server serves the status page, JSON endpoints and the live feed.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	deps       Deps
	log        *zap.SugaredLogger
}

// New creates a Server listening on addr.
func New(addr string, deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Server{deps: deps, log: log}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/", s.handleIndex)
	router.GET("/index.html", s.handleIndex)
	router.GET("/index.json", s.handleJSON)
	router.GET("/health", s.handleHealth)
	router.GET("/ws", s.handleWS)

	api := router.Group("/api")
	{
		api.GET("/consumption", s.handleConsumption)
		api.POST("/tare", s.handleTare)
	}

	s.engine = router
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: router,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(c *gin.Context) {
	snap := s.deps.Tracker.Snapshot()
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := renderHTML(c.Writer, snap); err != nil {
		s.log.Warnw("render index", "error", err)
	}
}

func (s *Server) handleJSON(c *gin.Context) {
	snap := s.deps.Tracker.Snapshot()
	c.Data(http.StatusOK, "application/json", status.FormatJSON(snap))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConsumption(c *gin.Context) {
	if s.deps.History == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history disabled"})
		return
	}

	limit := 0
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	recs, err := s.deps.History.List(c.Request.Context(), limit)
	if err != nil {
		s.log.Errorw("list consumption", "error", err)
		code := http.StatusInternalServerError
		if errors.Is(err, context.Canceled) {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"error": "history unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": recs})
}

func (s *Server) handleTare(c *gin.Context) {
	if s.deps.Tarer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scale unavailable"})
		return
	}
	s.deps.Tarer.Tare()
	s.log.Infow("scale tared over HTTP", "remote", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"tared": true})
}
