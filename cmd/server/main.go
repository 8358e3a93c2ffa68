package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"garrison.ai/internal/config"
	"garrison.ai/internal/logging"
	"garrison.ai/internal/persistence/garrisondb"
	persistlog "garrison.ai/internal/persistence/log"
	"garrison.ai/internal/sim/catalogs"
	"garrison.ai/internal/sim/garrison"
	"garrison.ai/internal/sim/tuning"
	"garrison.ai/internal/sim/world"
	"garrison.ai/internal/transport/fanout"
	"garrison.ai/internal/transport/ws"
)

func main() {
	env, err := config.LoadServer()
	if err != nil {
		panic(err)
	}

	var (
		addr       = flag.String("addr", env.Addr, "http listen address")
		configDir  = flag.String("configs", env.ConfigDir, "config directory")
		dataDir    = flag.String("data", env.DataDir, "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dbDriver   = flag.String("db_driver", env.DBDriver, "garrison store driver: sqlite or postgres")
		dbDSN      = flag.String("db_dsn", env.DBDSN, "garrison store dsn (default: <data>/garrison.sqlite)")
		redisAddr  = flag.String("redis", env.RedisAddr, "redis address for cross-process fan-out (empty to disable)")
	)
	flag.Parse()

	logger, err := logging.New(env.LogLevel, env.LogFormat, "garrison-server")
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatal("load catalogs", zap.Error(err))
	}

	tp := *tuningPath
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatal("load tuning", zap.Error(err))
		}
		logger.Warn("tuning not found; using defaults", zap.String("path", tp))
		tune = tuning.Defaults()
	}

	dsn := *dbDSN
	if dsn == "" && *dbDriver == garrisondb.DriverSQLite {
		dsn = filepath.Join(*dataDir, "garrison.sqlite")
	}
	store, err := garrisondb.Open(*dbDriver, dsn)
	if err != nil {
		logger.Fatal("open garrison store", zap.String("driver", *dbDriver), zap.Error(err))
	}
	defer store.Close()

	auditLog := persistlog.NewAuditLogger(*dataDir)
	sessionLog := persistlog.NewSessionLogger(*dataDir)
	defer auditLog.Close()
	defer sessionLog.Close()

	ctx, cancel := signalContext()
	defer cancel()

	cfg := world.RealmConfig{
		Catalogs:  cats,
		Tuning:    tune,
		Store:     store,
		Tokens:    store,
		Audit:     auditLog,
		Sessions:  sessionLog,
		Abilities: garrison.NewRandomAbilityRoller(uint64(time.Now().UnixNano())),
		Logger:    logger,
	}

	var fan *fanout.Redis
	if *redisAddr != "" {
		client, err := fanout.Dial(ctx, *redisAddr)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer client.Close()
		fan = fanout.New(client, env.RedisPrefix, logger)
		cfg.Fanout = fan
	}

	realm := world.NewRealm(cfg)

	if fan != nil {
		sub, err := fan.Subscribe(ctx)
		if err != nil {
			logger.Fatal("fanout subscribe", zap.Error(err))
		}
		go func() {
			if err := sub.Run(ctx, realm); err != nil && err != context.Canceled {
				logger.Error("fanout stopped", zap.Error(err))
			}
		}()
	}

	go func() {
		if err := realm.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("realm stopped", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           buildMux(realm, cats, ws.NewServer(realm, tune, logger).Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info("listening", zap.String("addr", *addr), zap.String("db_driver", *dbDriver), zap.Bool("fanout", fan != nil))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("ListenAndServe", zap.Error(err))
	}
	// Let the realm flush garrisons before the store closes.
	<-realm.Done()
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
