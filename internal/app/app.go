package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/checkstore/internal/config"
	"github.com/MrSnakeDoc/checkstore/internal/httpserver"
	"github.com/MrSnakeDoc/checkstore/internal/httpserver/deps"
	"github.com/MrSnakeDoc/checkstore/internal/index"
	"github.com/MrSnakeDoc/checkstore/internal/logger"
	"github.com/MrSnakeDoc/checkstore/internal/queue"
	"github.com/MrSnakeDoc/checkstore/internal/redis"
	"github.com/MrSnakeDoc/checkstore/internal/router"
	"github.com/MrSnakeDoc/checkstore/internal/scheduler"
	"github.com/MrSnakeDoc/checkstore/internal/store/mysql"
	redisstore "github.com/MrSnakeDoc/checkstore/internal/store/redis"
	"github.com/MrSnakeDoc/checkstore/internal/version"
	"github.com/MrSnakeDoc/checkstore/internal/writeback"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	db          *mysql.Manager
	redisClient *goredis.Client
	source      queue.Source
	loop        *scheduler.Loop
}

func New() (*App, error) {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)
	ctx := context.Background()

	// MySQL is retested by the host loop, a failed first attempt is not fatal.
	db := mysql.New(mysql.Options{
		Host:           cfg.MySQLHost,
		Port:           cfg.MySQLPort,
		User:           cfg.MySQLUser,
		Password:       cfg.MySQLPassword,
		Database:       cfg.MySQLDatabase,
		Charset:        cfg.MySQLCharset,
		ConnectTimeout: cfg.MySQLConnectTimeout,
		RetestInterval: cfg.ConnectionRetest,
	}, loggerClient)
	if err := db.Connect(ctx); err != nil {
		loggerClient.Warn("starting without database, records are skipped until it comes back",
			logger.Error(err))
	}

	var redisClient *goredis.Client
	if cfg.RedisAddr != "" {
		client, err := redis.New(ctx, redis.ConnectOptions{
			Addr:          cfg.RedisAddr,
			User:          cfg.RedisUser,
			Password:      cfg.RedisPassword,
			DB:            cfg.RedisDB,
			DialTimeout:   cfg.RedisDT,
			ReadTimeout:   cfg.RedisRT,
			WriteTimeout:  cfg.RedisWT,
			PoolSize:      cfg.RedisPoolSize,
			Timeout:       cfg.RedisConnectTimeout,
			RetryInterval: cfg.RedisRetryInterval,
			MaxWait:       cfg.RedisMaxWait,
			PingTimeout:   cfg.RedisPingTimeout,
			WarnThreshold: cfg.RedisWarnThreshold,
		}, loggerClient)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		redisClient = client
	}

	cache := index.NewIdentityCache(loggerClient)

	var mirror router.IdentityMirror
	if cfg.IdentityMirror {
		store := redisstore.NewStore(redisClient, cfg.IdentityMirrorTTL)
		syncer := scheduler.NewIdentitySyncer(store, cache, loggerClient)
		if err := syncer.Sync(ctx); err != nil {
			loggerClient.Warn("failed to restore identities from redis, waiting for snapshot events",
				logger.Error(err))
		}
		mirror = store
	}

	pending := writeback.NewQueue(db, loggerClient, cfg.WritebackMaxQueue)
	r := router.New(router.Options{
		Cache:  cache,
		Exec:   db,
		Queue:  pending,
		Mirror: mirror,
		Features: router.Features{
			StateTable:       cfg.RecordStateTable,
			LogEvents:        cfg.RecordLogEvents,
			EntityTable:      cfg.RecordEntityTable,
			Acknowledgements: cfg.RecordAcknowledgements,
			Availability:     cfg.RecordAvailability,
		},
		Location: cfg.TimeZone,
		Logger:   loggerClient,
	})
	loggerClient.Info("record features", logger.Any("features", r.Features()))

	var source queue.Source
	switch cfg.QueueBackend {
	case config.BackendNATS:
		src, err := queue.NewNATSSource(queue.NATSOptions{
			URL:         cfg.NATSURL,
			Subject:     cfg.NATSSubject,
			Buffer:      cfg.NATSBuffer,
			BatchSize:   cfg.BatchSize,
			PollTimeout: cfg.PollTimeout,
		}, loggerClient)
		if err != nil {
			_ = db.Close()
			if redisClient != nil {
				_ = redisClient.Close()
			}
			return nil, fmt.Errorf("failed to subscribe to nats: %w", err)
		}
		source = src
	default:
		source = queue.NewRedisSource(redisClient, cfg.RedisEventsKey, cfg.BatchSize, cfg.PollTimeout, loggerClient)
	}

	loop := scheduler.NewLoop(scheduler.LoopOptions{
		Source:       source,
		Dispatcher:   r,
		Queue:        pending,
		Cache:        cache,
		DB:           db,
		Availability: r.Aggregator(),
		FlushPeriod:  cfg.FlushPeriod,
		FlushMaxRows: cfg.FlushMaxRows,
		Logger:       loggerClient,
	})

	d := deps.Deps{
		Logger:       loggerClient,
		StartTime:    time.Now(),
		Version:      version.Version,
		Commit:       version.Commit,
		BuildDate:    version.BuildDate,
		GoVersion:    version.GoVersion,
		TimeNow:      time.Now,
		AllowedCIDRS: cfg.AllowedCIDRS,
		TrustProxy:   cfg.TrustProxy,
		QueueBackend: cfg.QueueBackend,
		DB:           db,
		Features:     r,
		Loop:         loop.Stats(),
	}

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      httpserver.New(cfg, loggerClient, d),
		db:          db,
		redisClient: redisClient,
		source:      source,
		loop:        loop,
	}, nil
}

func (a *App) Run() error {
	defer func() { _ = a.logger.Sync() }()

	a.logger.Infof("🚀 Starting checkstore %s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- a.loop.Run(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		runErr = err
		stop()
	}

	// The loop finishes its batch and flushes pending log rows.
	if err := <-loopDone; err != nil && runErr == nil {
		runErr = fmt.Errorf("host loop error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	if err := a.source.Close(); err != nil {
		a.logger.Warnf("failed to close event source: %v", err)
	}

	if err := a.db.Close(); err != nil {
		a.logger.Warnf("failed to close mysql: %v", err)
	} else {
		a.logger.Info("✅ MySQL closed cleanly")
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	if runErr == nil {
		a.logger.Info("✅ checkstore stopped cleanly")
	}
	return runErr
}
