package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"championship-engine/engine"
	"championship-engine/internal/api"
	"championship-engine/internal/archive"
	"championship-engine/internal/auth"
	"championship-engine/internal/config"
	"championship-engine/internal/credits"
	"championship-engine/internal/db"
	"championship-engine/internal/locks"
	"championship-engine/internal/notify"
	"championship-engine/internal/presence"
	"championship-engine/internal/redis"
	"championship-engine/internal/scheduler"
	"championship-engine/internal/store"
	"championship-engine/models"
	"championship-engine/server"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()
	cfg.ConfigureLogging()
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(cfg.DB, append(store.Models(), credits.Models()...)...)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer database.Close()

	repo := store.New(database.DB)
	ledger := credits.NewLedger(database.DB)
	hooks := []engine.CompletionHook{ledger}
	if cfg.Archive.Enabled() {
		archiver, err := archive.New(ctx, archive.Config{
			Bucket:    cfg.Archive.Bucket,
			Region:    cfg.Archive.Region,
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Prefix:    cfg.Archive.Prefix,
		})
		if err != nil {
			log.Fatalf("Archive setup failed: %v", err)
		}
		hooks = append(hooks, archiver)
	}

	hub := notify.NewHub(cfg.CORSOrigins)
	// The TCP server needs the engine, so its sink is bound once it exists.
	var tcpServer *server.TCPServer
	sinks := []notify.Sink{
		hub,
		notify.SinkFunc(func(ctx context.Context, event models.Event) error {
			return tcpServer.Deliver(ctx, event)
		}),
	}

	engineCfg := engine.EngineConfig{
		Repository:     repo,
		Hooks:          hooks,
		RoomRetryAfter: cfg.RoomRetryAfter,
	}
	var tracker presence.Tracker
	if cfg.UseRedis {
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			log.Fatalf("Redis connection failed: %v", err)
		}
		defer client.Close()

		publisher := notify.NewRedisPublisher(client)
		sinks = append(sinks, publisher)
		tracker = presence.NewRedisTracker(client, presence.DefaultTTL)
		locker := locks.NewRedisLocker(client)
		engineCfg.Locker = locker
		engineCfg.Rooms = publisher

		// Only one instance owns the tournaments; the others wait as standbys.
		leader, err := locker.Campaign(ctx, locks.DefaultLeaderKey)
		if err != nil {
			log.Printf("Stopped before acquiring leadership: %v", err)
			return
		}
		defer leader.Resign()
		go func() {
			select {
			case <-leader.Lost():
				log.Error("[LEADER] Leadership lost, shutting down")
				stop()
			case <-ctx.Done():
			}
		}()
	} else {
		tracker = presence.NewMemoryTracker(presence.DefaultTTL, nil)
		engineCfg.Locker = engine.NewKeyedMutex()
	}
	engineCfg.Presence = tracker

	dispatcher := notify.NewDispatcher(cfg.NotifyBuffer, sinks...)
	engineCfg.Notifier = dispatcher
	e := engine.NewEngine(engineCfg)

	tcpServer = server.NewTCPServer(":"+cfg.TCPPort, server.NewCommandHandler(e, tracker))
	// The dispatcher outlives the signal so shutdown-time events are delivered.
	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	defer cancelDispatch()
	go dispatcher.Run(dispatchCtx)

	open, err := repo.LoadOpen(ctx)
	if err != nil {
		log.Fatalf("Failed to load open tournaments: %v", err)
	}
	if err := e.Restore(ctx, open); err != nil {
		log.WithError(err).Error("[RESTORE] Some tournaments could not be restored")
	}
	log.Printf("[RESTORE] %d open tournaments loaded", len(open))
	if n, err := e.SettlePending(ctx); err != nil {
		log.WithError(err).Error("[RESTORE] Failed to settle completed tournaments")
	} else if n > 0 {
		log.Printf("[RESTORE] %d completed tournaments settled", n)
	}

	sched := scheduler.New(e, nil, 0)
	if err := sched.Start(scheduler.Config{
		SweepSpec:  cfg.SweepSchedule,
		StartSpec:  cfg.StartSchedule,
		SettleSpec: cfg.SettleSchedule,
	}); err != nil {
		log.Fatalf("Scheduler setup failed: %v", err)
	}

	limiter := api.NewRateLimiter(api.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit,
		BurstSize:         cfg.RateBurst,
		CleanupInterval:   time.Minute,
	})
	httpServer := api.NewServer(api.Deps{
		Engine:      e,
		Auth:        auth.NewService(cfg.JWTSecret),
		Presence:    tracker,
		Store:       repo,
		Ledger:      ledger,
		Hub:         hub,
		Scheduler:   sched,
		Limiter:     limiter,
		CORSOrigins: cfg.CORSOrigins,
	})

	if err := tcpServer.Listen(); err != nil {
		log.Fatalf("Failed to start TCP server: %v", err)
	}
	go func() {
		if err := tcpServer.Serve(); err != nil {
			log.WithError(err).Error("[TCP] Server stopped")
			stop()
		}
	}()
	go func() {
		if err := httpServer.ListenAndServe(":" + cfg.HTTPPort); err != nil {
			log.WithError(err).Error("[API] Server stopped")
			stop()
		}
	}()

	log.Printf("Championship engine running (http :%s, tcp :%s)", cfg.HTTPPort, cfg.TCPPort)
	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("[API] Shutdown incomplete")
	}
	sched.Stop(shutdownCtx)
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("[NOTIFY] Shutdown incomplete")
	}
	cancelDispatch()
	tcpServer.Stop()
	limiter.Stop()
	hub.Close()
}
