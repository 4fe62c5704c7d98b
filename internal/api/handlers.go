package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"championship-engine/engine"
	"championship-engine/internal/auth"
	"championship-engine/models"

	"github.com/gin-gonic/gin"
)

type createTournamentRequest struct {
	ID               string `json:"id"`
	Name             string `json:"name" binding:"required"`
	EntryFee         int64  `json:"entryFee" binding:"gte=0"`
	OpenRegistration bool   `json:"openRegistration"`

	Capacity              int                `json:"capacity"`
	RegistrationDeadline  *time.Time         `json:"registrationDeadline"`
	MatchWindow           string             `json:"matchWindow"` // "24h", "48h", "72h"
	Format                models.Format      `json:"format"`
	SwissRounds           int                `json:"swissRounds"`
	Qualifiers            int                `json:"qualifiers"`
	ThirdPlaceMatch       bool               `json:"thirdPlaceMatch"`
	PrizeTable            models.PrizeTable  `json:"prizeTable"`
	CreditTable           models.CreditTable `json:"creditTable"`
	ExcludeDoubleForfeits bool               `json:"excludeDoubleForfeits"`
	ReminderLead          string             `json:"reminderLead"`
}

func (r createTournamentRequest) toEngine() (engine.CreateTournamentRequest, error) {
	cfg := models.TournamentConfig{
		Capacity:              r.Capacity,
		Format:                r.Format,
		SwissRounds:           r.SwissRounds,
		Qualifiers:            r.Qualifiers,
		ThirdPlaceMatch:       r.ThirdPlaceMatch,
		PrizeTable:            r.PrizeTable,
		CreditTable:           r.CreditTable,
		ExcludeDoubleForfeits: r.ExcludeDoubleForfeits,
	}
	if r.RegistrationDeadline != nil {
		cfg.RegistrationDeadline = r.RegistrationDeadline.UTC()
	}
	var err error
	if cfg.MatchWindow, err = parseDuration(r.MatchWindow); err != nil {
		return engine.CreateTournamentRequest{}, fmt.Errorf("%w: matchWindow: %v", engine.ErrInvalidConfig, err)
	}
	if cfg.ReminderLead, err = parseDuration(r.ReminderLead); err != nil {
		return engine.CreateTournamentRequest{}, fmt.Errorf("%w: reminderLead: %v", engine.ErrInvalidConfig, err)
	}
	return engine.CreateTournamentRequest{
		ID:               r.ID,
		Name:             r.Name,
		EntryFee:         r.EntryFee,
		Config:           cfg,
		OpenRegistration: r.OpenRegistration,
	}, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

func (s *Server) createTournament(c *gin.Context) {
	var req createTournamentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	engineReq, err := req.toEngine()
	if err != nil {
		respondError(c, err)
		return
	}
	t, err := s.deps.Engine.CreateTournament(c.Request.Context(), engineReq)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (s *Server) listTournaments(c *gin.Context) {
	ctx := c.Request.Context()
	out := make([]models.Tournament, 0)
	for _, id := range s.deps.Engine.ListTournaments() {
		t, err := s.deps.Engine.Tournament(ctx, id)
		if err != nil {
			continue // evicted in between
		}
		if status := c.Query("status"); status != "" && string(t.Status) != status {
			continue
		}
		out = append(out, t)
	}
	c.JSON(http.StatusOK, gin.H{"tournaments": out})
}

// snapshot falls back to the store for tournaments no longer held in memory.
func (s *Server) snapshot(c *gin.Context) (engine.Snapshot, bool) {
	ctx := c.Request.Context()
	id := c.Param("id")
	snap, err := s.deps.Engine.Snapshot(ctx, id)
	if err == nil {
		return snap, true
	}
	if s.deps.Store != nil {
		if st, serr := s.deps.Store.Load(ctx, id); serr == nil {
			return engine.SnapshotOf(st), true
		}
	}
	respondError(c, err)
	return engine.Snapshot{}, false
}

func (s *Server) getTournament(c *gin.Context) {
	if snap, ok := s.snapshot(c); ok {
		c.JSON(http.StatusOK, snap)
	}
}

func (s *Server) getStandings(c *gin.Context) {
	if snap, ok := s.snapshot(c); ok {
		c.JSON(http.StatusOK, gin.H{"standings": snap.Standings, "awards": snap.Awards})
	}
}

func (s *Server) getMatches(c *gin.Context) {
	snap, ok := s.snapshot(c)
	if !ok {
		return
	}
	round, _ := strconv.Atoi(c.Query("round"))
	c.JSON(http.StatusOK, gin.H{"matches": matchesByRound(snap.Matches, round)})
}

func (s *Server) getBracket(c *gin.Context) {
	snap, ok := s.snapshot(c)
	if !ok {
		return
	}
	if snap.Bracket == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "bracket has not been seeded"})
		return
	}
	c.JSON(http.StatusOK, snap.Bracket)
}

func (s *Server) getMatch(c *gin.Context) {
	m, err := s.deps.Engine.Match(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) getAccount(c *gin.Context) {
	if s.deps.Ledger == nil {
		notImplemented(c, "credit ledger")
		return
	}
	ctx := c.Request.Context()
	pid := c.Param("participantId")
	// Participants only see their own ledger.
	if claims := claimsFrom(c); claims == nil || (!claims.Role.Allows(auth.RoleService) && claims.Subject != pid) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	acct, err := s.deps.Ledger.Balance(ctx, pid)
	if err != nil {
		respondError(c, err)
		return
	}
	history, err := s.deps.Ledger.History(ctx, pid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": acct, "history": history})
}

type registerRequest struct {
	ParticipantID string `json:"participantId" binding:"required"`
}

func (s *Server) registerParticipant(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := s.deps.Engine.Register(c.Request.Context(), c.Param("id"), req.ParticipantID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) participantOnline(c *gin.Context) {
	ctx := c.Request.Context()
	pid := c.Param("participantId")
	if s.deps.Presence != nil {
		if err := s.deps.Presence.MarkOnline(ctx, pid); err != nil {
			respondError(c, err)
			return
		}
	}
	s.acknowledge(c, s.deps.Engine.ParticipantOnline(ctx, pid), nil)
}

func (s *Server) participantOffline(c *gin.Context) {
	if s.deps.Presence == nil {
		notImplemented(c, "presence tracking")
		return
	}
	if err := s.deps.Presence.MarkOffline(c.Request.Context(), c.Param("participantId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) roomCreated(c *gin.Context) {
	s.acknowledge(c, s.deps.Engine.RoomCreated(c.Request.Context(), c.Param("id")), nil)
}

type resultRequest struct {
	WinnerID string `json:"winnerId"`
	Draw     bool   `json:"draw"`
}

func (s *Server) matchResult(c *gin.Context) {
	var req resultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.WinnerID == "" && !req.Draw {
		c.JSON(http.StatusBadRequest, gin.H{"error": "winnerId or draw is required"})
		return
	}
	m, err := s.deps.Engine.RecordResult(c.Request.Context(), c.Param("id"), req.WinnerID, req.Draw)
	s.acknowledge(c, err, m)
}

// acknowledge answers collaborator events; stale and duplicate events are
// accepted so the sender stops retrying.
func (s *Server) acknowledge(c *gin.Context, err error, data interface{}) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"ok": true, "data": data})
	case engine.IsIgnorable(err):
		c.JSON(http.StatusAccepted, gin.H{"ok": true, "ignored": true, "reason": err.Error()})
	default:
		respondError(c, err)
	}
}

func (s *Server) openRegistration(c *gin.Context) {
	s.command(c, s.deps.Engine.OpenRegistration(c.Request.Context(), c.Param("id")))
}

func (s *Server) startTournament(c *gin.Context) {
	s.command(c, s.deps.Engine.Start(c.Request.Context(), c.Param("id")))
}

func (s *Server) advanceTournament(c *gin.Context) {
	s.command(c, s.deps.Engine.Advance(c.Request.Context(), c.Param("id")))
}

type cancelRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (s *Server) cancelTournament(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.command(c, s.deps.Engine.Cancel(c.Request.Context(), c.Param("id"), req.Reason))
}

type pairingRequest struct {
	Pairs []engine.Pairing `json:"pairs" binding:"required,min=1"`
}

func (s *Server) manualPairing(c *gin.Context) {
	var req pairingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.command(c, s.deps.Engine.ManualPairing(c.Request.Context(), c.Param("id"), actor(c), req.Pairs))
}

type overrideRequest struct {
	WinnerID      string `json:"winnerId"`
	Draw          bool   `json:"draw"`
	DoubleForfeit bool   `json:"doubleForfeit"`
	Reason        string `json:"reason" binding:"required"`
}

func (s *Server) overrideMatch(c *gin.Context) {
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := s.deps.Engine.OverrideMatch(c.Request.Context(), c.Param("id"), engine.OverrideRequest{
		MatchID:       c.Param("matchId"),
		Actor:         actor(c),
		Reason:        req.Reason,
		WinnerID:      req.WinnerID,
		Draw:          req.Draw,
		DoubleForfeit: req.DoubleForfeit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) listOverrides(c *gin.Context) {
	if s.deps.Store == nil {
		notImplemented(c, "persistent store")
		return
	}
	records, err := s.deps.Store.Overrides(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"overrides": records})
}

func (s *Server) evictTournament(c *gin.Context) {
	s.command(c, s.deps.Engine.Evict(c.Request.Context(), c.Param("id")))
}

func (s *Server) sweep(c *gin.Context) {
	if s.deps.Scheduler == nil {
		c.JSON(http.StatusOK, s.deps.Engine.Sweep(c.Request.Context(), time.Now().UTC()))
		return
	}
	c.JSON(http.StatusOK, s.deps.Scheduler.SweepNow(c.Request.Context()))
}

func (s *Server) websocket(c *gin.Context) {
	if s.deps.Hub == nil {
		notImplemented(c, "live feed")
		return
	}
	participantID := ""
	if claims := claimsFrom(c); claims != nil {
		participantID = claims.Subject
	}
	// on failure the upgrader has already written the HTTP error
	_ = s.deps.Hub.Serve(c.Writer, c.Request, participantID, c.Query("tournament"))
}

// command answers an admin command that returns no data.
func (s *Server) command(c *gin.Context, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	t, terr := s.deps.Engine.Tournament(c.Request.Context(), c.Param("id"))
	if terr != nil {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	c.JSON(http.StatusOK, t)
}
