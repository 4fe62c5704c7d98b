// Package scheduler drives the time-based parts of the engine: the deadline
// sweep and starting tournaments whose registration has closed.
package scheduler

import (
	"context"
	"sync"
	"time"

	"championship-engine/engine"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const DefaultParallelism = 8

// Config holds the cron specs of the scheduler jobs.
type Config struct {
	SweepSpec   string
	StartSpec   string
	// SettleSpec retries completion hooks that failed. Empty disables it.
	SettleSpec  string
	Parallelism int
}

type Scheduler struct {
	cron        *cron.Cron
	engine      *engine.Engine
	clock       engine.Clock
	parallelism int

	mu      sync.Mutex
	lastRun SweepSummary
}

// SweepSummary aggregates one sweep across all tournaments.
type SweepSummary struct {
	At          time.Time          `json:"at"`
	Tournaments int                `json:"tournaments"`
	Report      engine.SweepReport `json:"report"`
	Started     []string           `json:"started,omitempty"`
}

// New creates a scheduler. A nil clock means engine.SystemClock.
func New(e *engine.Engine, clock engine.Clock, parallelism int) *Scheduler {
	if clock == nil {
		clock = engine.SystemClock{}
	}
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	logger := cron.VerbosePrintfLogger(log.StandardLogger())
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		engine:      e,
		clock:       clock,
		parallelism: parallelism,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start(cfg Config) error {
	log.Println("[SCHEDULER] Starting cron scheduler...")
	if _, err := s.cron.AddFunc(cfg.SweepSpec, func() { s.SweepNow(context.Background()) }); err != nil {
		log.Printf("[SCHEDULER] Error scheduling sweep job: %v", err)
		return err
	}
	if _, err := s.cron.AddFunc(cfg.StartSpec, func() { s.StartDueNow(context.Background()) }); err != nil {
		log.Printf("[SCHEDULER] Error scheduling start job: %v", err)
		return err
	}
	if cfg.SettleSpec != "" {
		if _, err := s.cron.AddFunc(cfg.SettleSpec, func() { s.SettleNow(context.Background()) }); err != nil {
			log.Printf("[SCHEDULER] Error scheduling settle job: %v", err)
			return err
		}
	}
	s.cron.Start()
	log.Printf("[SCHEDULER] Sweep %q, start check %q", cfg.SweepSpec, cfg.StartSpec)
	return nil
}

// Stop waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	log.Println("[SCHEDULER] Stopping cron scheduler...")
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		log.Println("[SCHEDULER] WARNING: jobs still running at shutdown")
	}
}

// SweepNow sweeps every tournament with open matches. Tournaments are swept
// concurrently; a slow one never holds up the others' deadlines.
func (s *Scheduler) SweepNow(ctx context.Context) SweepSummary {
	now := s.clock.Now()
	lc := s.engine.Lifecycle()
	ids := lc.OpenTournaments()

	reports := make([]engine.SweepReport, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			reports[i] = lc.SweepTournament(gctx, id, now)
			return nil
		})
	}
	_ = g.Wait()

	summary := SweepSummary{At: now, Tournaments: len(ids)}
	for _, r := range reports {
		summary.Report.Reminded += r.Reminded
		summary.Report.Expired += r.Expired
		summary.Report.RoomRetries += r.RoomRetries
		summary.Report.LostRaces += r.LostRaces
	}
	if summary.Report.Expired > 0 || summary.Report.Reminded > 0 {
		log.WithFields(log.Fields{
			"tournaments": summary.Tournaments,
			"expired":     summary.Report.Expired,
			"reminded":    summary.Report.Reminded,
			"roomRetries": summary.Report.RoomRetries,
		}).Info("[SWEEP] Sweep complete")
	}
	s.record(summary)
	return summary
}

// StartDueNow starts every tournament whose registration deadline passed.
func (s *Scheduler) StartDueNow(ctx context.Context) []string {
	started := s.engine.StartDue(ctx, s.clock.Now())
	if len(started) > 0 {
		log.Printf("[SCHEDULER] Started %d tournament(s): %v", len(started), started)
	}
	return started
}

// SettleNow retries the completion hooks of tournaments that are not
// settled yet.
func (s *Scheduler) SettleNow(ctx context.Context) int {
	settled, err := s.engine.SettlePending(ctx)
	if err != nil {
		log.Printf("[SCHEDULER] Error settling tournaments: %v", err)
	}
	if settled > 0 {
		log.Printf("[SCHEDULER] Settled %d tournament(s)", settled)
	}
	return settled
}

func (s *Scheduler) record(summary SweepSummary) {
	s.mu.Lock()
	s.lastRun = summary
	s.mu.Unlock()
}

// LastSweep returns the summary of the most recent sweep.
func (s *Scheduler) LastSweep() SweepSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}
