// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"collectsync-service/internal/auth"
	"collectsync-service/internal/config"
	"collectsync-service/internal/db"
	"collectsync-service/internal/domain/ledger"
	"collectsync-service/internal/events"
	"collectsync-service/internal/goal"
	authHandler "collectsync-service/internal/handlers/auth"
	companyHandler "collectsync-service/internal/handlers/company"
	customerHandler "collectsync-service/internal/handlers/customer"
	entryHandler "collectsync-service/internal/handlers/entry"
	notifyH "collectsync-service/internal/handlers/notification"
	rosterHandler "collectsync-service/internal/handlers/roster"
	streamHandler "collectsync-service/internal/handlers/stream"
	syncHandler "collectsync-service/internal/handlers/syncstatus"
	"collectsync-service/internal/middleware"
	"collectsync-service/internal/notify"
	"collectsync-service/internal/pkg/logging"
	"collectsync-service/internal/presence"
	"collectsync-service/internal/remote"
	fsremote "collectsync-service/internal/remote/firestore"
	pgremote "collectsync-service/internal/remote/postgres"
	"collectsync-service/internal/session"
	"collectsync-service/internal/store"
	"collectsync-service/internal/syncengine"
	ws "collectsync-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger

	// Held for shutdown.
	cancel    context.CancelFunc
	substrate store.Substrate
	remote    remote.Client
	sync      *syncengine.Engine
	tracker   *presence.Tracker
	validator *session.Validator
	goals     *goal.Service
	scheduler gocron.Scheduler
	stopFresh func()
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	// ----- Logger -----
	logger, err := logging.NewLogger(s.cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	s.logger = logger
	clock := clockwork.NewRealClock()

	// ----- Local durable cache -----
	substrate, err := store.NewSQLiteSubstrate(s.cfg.CachePath)
	if err != nil {
		return fmt.Errorf("failed to open local cache: %w", err)
	}
	s.substrate = substrate

	bus := events.NewBus()
	localStore := store.New(substrate, bus, logger)
	localStore.RegisterGuard(store.CollectionEntries, ledger.Guard())
	localStore.RegisterGuard(store.CollectionExpenses, ledger.Guard())

	// ----- Remote synchronized store -----
	remoteClient, err := s.connectRemote(ctx, logger)
	if err != nil {
		return err
	}
	s.remote = remoteClient

	// ----- Sync engine -----
	engine := syncengine.New(remoteClient, localStore, bus, clock, logger)
	s.sync = engine
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sync engine: %w", err)
	}

	// ----- Session -----
	creds := session.NewStore(substrate, logger)
	idleTimeout := time.Duration(0)
	if s.cfg.IdleLogout {
		idleTimeout = s.cfg.IdleTimeout
	}
	validator := session.NewValidator(localStore, creds, bus, clock, idleTimeout, logger)
	validator.Start(ctx)
	s.validator = validator

	// ----- Presence -----
	tracker := presence.NewTracker(remoteClient, localStore, clock, s.cfg.HeartbeatInterval, logger)
	s.tracker = tracker
	bus.Subscribe(events.TopicSession, func(ev events.Event) {
		switch p := ev.Payload.(type) {
		case events.SessionStarted:
			tracker.Start(ctx, p.StaffID)
		case events.SessionEnded:
			tracker.Stop()
		}
	})
	// Resume heartbeats for a session restored from disk.
	if current, ok := creds.Current(); ok {
		tracker.Start(ctx, current.Staff.ID)
	}

	// ----- Notifications -----
	fanout := notify.NewFanout(localStore, bus, clock, logger)
	s.stopFresh = fanout.Start()

	// ----- Goal progress -----
	goals := goal.NewService(localStore, bus, clock, logger)
	goals.Start()
	s.goals = goals

	// ----- OTP + rate limiting -----
	var otpStore auth.OTPStore
	var limiter auth.RateLimiter
	if s.cfg.RedisAddr != "" {
		redisClient, err := db.NewRedisClient(db.RedisConfig{
			Addr:     s.cfg.RedisAddr,
			Password: s.cfg.RedisPass,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		otpStore = auth.NewRedisOTPStore(redisClient)
		limiter = auth.NewRedisRateLimiter(redisClient, 5, time.Minute)
	} else {
		logger.Info("REDIS_ADDR not set, using in-memory OTP store and rate limiter")
		otpStore = auth.NewMemoryOTPStore()
		limiter = auth.NewMemoryRateLimiter(5, time.Minute)
	}

	// ----- Auth -----
	tokens := auth.NewTokenManager(s.cfg.JWTSecret, s.cfg.JWTTTL)
	authService := auth.NewService(localStore, creds, tokens, otpStore, limiter,
		fanout, bus, clock, s.cfg.OTPRequired, logger)

	// ----- WebSocket hub -----
	hub := ws.NewHub(bus, logger)
	go hub.Run(ctx)

	// ----- Background jobs -----
	scheduler, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return fmt.Errorf("failed to build scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(time.Minute),
		gocron.NewTask(func() { fanout.PurgeExpired(ctx) }),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule notification purge: %w", err)
	}
	scheduler.Start()
	s.scheduler = scheduler

	// ----- Handlers -----
	authHandlerInst := authHandler.NewAuthHandler(authService, logger)
	rosterHandlerInst := rosterHandler.NewRosterHandler(localStore, s.cfg.HeartbeatInterval, logger)
	entryHandlerInst := entryHandler.NewEntryHandler(localStore, logger)
	customerHandlerInst := customerHandler.NewCustomerHandler(localStore, logger)
	notifHandlerInst := notifyH.NewNotificationHandler(fanout)
	companyHandlerInst := companyHandler.NewCompanyHandler(localStore, goals)
	syncHandlerInst := syncHandler.NewSyncHandler(engine, localStore)
	streamHandlerInst := streamHandler.NewStreamHandler(hub, authService, logger)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(authService)
	touch := func(c *gin.Context) {
		validator.Touch()
		c.Next()
	}

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	handlers := &Handlers{
		AuthHandler:     authHandlerInst,
		RosterHandler:   rosterHandlerInst,
		EntryHandler:    entryHandlerInst,
		CustomerHandler: customerHandlerInst,
		NotifHandler:    notifHandlerInst,
		CompanyHandler:  companyHandlerInst,
		SyncHandler:     syncHandlerInst,
		StreamHandler:   streamHandlerInst,
		AuthMiddleware:  authMiddleware,
		Touch:           touch,
	}
	SetupRouter(s.engine, handlers)

	// ----- Start HTTP -----
	logger.Info("server running", zap.String("addr", s.cfg.HTTPAddr))
	return s.engine.Run(s.cfg.HTTPAddr)
}

func (s *Server) connectRemote(ctx context.Context, logger *zap.Logger) (remote.Client, error) {
	switch strings.ToLower(s.cfg.RemoteBackend) {
	case "firestore":
		client, err := fsremote.New(ctx, s.cfg.FirestoreProjectID, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Firestore: %w", err)
		}
		return client, nil
	case "postgres":
		client, err := pgremote.New(ctx, s.cfg.PostgresDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown remote backend %q", s.cfg.RemoteBackend)
	}
}

// Shutdown stops background work and closes the remote connection and the
// local cache.
func (s *Server) Shutdown(ctx context.Context) {
	if s.scheduler != nil {
		_ = s.scheduler.Shutdown()
	}
	if s.stopFresh != nil {
		s.stopFresh()
	}
	if s.goals != nil {
		s.goals.Stop()
	}
	if s.tracker != nil {
		s.tracker.Stop()
	}
	if s.validator != nil {
		s.validator.Stop()
	}
	if s.sync != nil {
		s.sync.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.remote != nil {
		_ = s.remote.Close()
	}
	if s.substrate != nil {
		_ = s.substrate.Close()
	}
	if s.logger != nil {
		_ = s.logger.Sync()
	}
}
