// Package api is the HTTP surface of the engine: admin commands, reads,
// collaborator webhooks and the live websocket feed.
package api

import (
	"context"
	"net/http"
	"time"

	"championship-engine/engine"
	"championship-engine/internal/auth"
	"championship-engine/internal/credits"
	"championship-engine/internal/notify"
	"championship-engine/internal/presence"
	"championship-engine/internal/scheduler"
	"championship-engine/internal/store"
	"championship-engine/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Deps are the collaborators the handlers reach. Only Engine and Auth are
// required; routes for a missing dependency answer 501.
type Deps struct {
	Engine    *engine.Engine
	Auth      *auth.Service
	Presence  presence.Tracker
	Store     *store.Store
	Ledger    *credits.Ledger
	Hub       *notify.Hub
	Scheduler *scheduler.Scheduler
	Limiter   *RateLimiter

	CORSOrigins []string
}

// Server is the HTTP and WebSocket front of the engine.
type Server struct {
	deps   Deps
	router *gin.Engine
	http   *http.Server
}

// NewServer creates the server and registers its routes.
func NewServer(deps Deps) *Server {
	s := &Server{deps: deps}
	s.router = s.routes()
	return s
}

// Handler returns the gin router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	if len(s.deps.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     s.deps.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/health", s.health)

	authed := r.Group("/", Authenticate(s.deps.Auth))
	if s.deps.Limiter != nil {
		authed.Use(s.deps.Limiter.Middleware())
	}
	authed.GET("/ws", RequireRole(auth.RoleParticipant), s.websocket)

	v1 := authed.Group("/api/v1")

	read := v1.Group("", RequireRole(auth.RoleParticipant))
	read.GET("/tournaments", s.listTournaments)
	read.GET("/tournaments/:id", s.getTournament)
	read.GET("/tournaments/:id/standings", s.getStandings)
	read.GET("/tournaments/:id/matches", s.getMatches)
	read.GET("/tournaments/:id/bracket", s.getBracket)
	read.GET("/matches/:id", s.getMatch)
	read.GET("/accounts/:participantId", s.getAccount)

	svc := v1.Group("", RequireRole(auth.RoleService))
	svc.POST("/tournaments/:id/participants", s.registerParticipant)
	svc.POST("/presence/:participantId/online", s.participantOnline)
	svc.POST("/presence/:participantId/offline", s.participantOffline)
	svc.POST("/matches/:id/room", s.roomCreated)
	svc.POST("/matches/:id/result", s.matchResult)

	admin := v1.Group("/admin", RequireRole(auth.RoleAdmin))
	admin.POST("/tournaments", s.createTournament)
	admin.POST("/tournaments/:id/open", s.openRegistration)
	admin.POST("/tournaments/:id/start", s.startTournament)
	admin.POST("/tournaments/:id/advance", s.advanceTournament)
	admin.POST("/tournaments/:id/cancel", s.cancelTournament)
	admin.POST("/tournaments/:id/pairings", s.manualPairing)
	admin.POST("/tournaments/:id/matches/:matchId/override", s.overrideMatch)
	admin.GET("/tournaments/:id/overrides", s.listOverrides)
	admin.DELETE("/tournaments/:id", s.evictTournament)
	admin.POST("/sweep", s.sweep)

	return r
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("[API] HTTP server listening on %s", addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("[API] request")
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"tournaments": len(s.deps.Engine.ListTournaments()),
		"time":        time.Now().UTC(),
	})
}

func notImplemented(c *gin.Context, what string) {
	c.JSON(http.StatusNotImplemented, gin.H{"error": what + " is not configured"})
}

func actor(c *gin.Context) string {
	if claims := claimsFrom(c); claims != nil {
		return claims.Subject
	}
	return ""
}

func matchesByRound(matches []models.Match, round int) []models.Match {
	if round <= 0 {
		return matches
	}
	out := make([]models.Match, 0, len(matches))
	for _, m := range matches {
		if m.Round == round {
			out = append(out, m)
		}
	}
	return out
}
