package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/iliyamo/resource-api/internal/cache"
	"github.com/iliyamo/resource-api/internal/config"
	"github.com/iliyamo/resource-api/internal/database"
	"github.com/iliyamo/resource-api/internal/handler"
	"github.com/iliyamo/resource-api/internal/logging"
	"github.com/iliyamo/resource-api/internal/metrics"
	"github.com/iliyamo/resource-api/internal/middleware"
	"github.com/iliyamo/resource-api/internal/model"
	"github.com/iliyamo/resource-api/internal/repository"
	"github.com/iliyamo/resource-api/internal/router"
	"github.com/iliyamo/resource-api/internal/service"
	"github.com/iliyamo/resource-api/internal/utils"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := database.Open(initCtx, database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName))
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	defer db.Close()

	if cfg.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := database.Migrate(ctx, db, model.All()...)
		cancel()
		if err != nil {
			log.Fatalf("db migrate: %v", err)
		}
	}

	// Without Redis there is no session cache, response cache or rate limit.
	redisCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	rdb, err := config.NewRedisClient(redisCtx, cfg.Redis)
	cancel()
	if err != nil {
		logger.Warn("redis_unavailable", "addr", cfg.Redis.Addr, "error", err)
	} else {
		defer rdb.Close()
	}

	var events service.Publisher
	if cfg.Events.Enabled {
		pub := service.NewAMQPPublisher(cfg.Events.URL, cfg.Events.Queue)
		defer pub.Close()
		events = pub
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	ctlCfg := service.ControllerConfig{
		Timeout: cfg.StorageTimeout,
		Hook:    utils.PasswordHook{Cost: cfg.BcryptCost},
		Events:  events,
		Metrics: m,
	}
	access := map[string]router.Access{
		model.Users.Table():      router.AdminWrites,
		model.UserGroups.Table(): router.Guarded,
	}
	var users *service.Controller
	var resources []router.Resource
	for _, s := range model.All() {
		ctl := service.NewController(s, repository.NewResourceRepo(db, s), ctlCfg)
		if s == model.Users {
			users = ctl
		}
		r := router.Resource{
			Path:    router.PathOf(s.Table()),
			Handler: handler.NewResourceHandler(ctl),
			Access:  access[s.Table()],
		}
		if r.Access == router.PublicReads {
			r.Cache = middleware.NewResponseCache(cfg.ResponseCache, rdb, s.Table())
		}
		resources = append(resources, r)
	}

	authCfg := service.AuthConfig{
		Secret:  cfg.JWTSecret,
		TTL:     cfg.AccessTTL(),
		Timeout: cfg.StorageTimeout,
		Events:  events,
		Metrics: m,
	}
	if rdb != nil && cfg.SessionCache.Enabled {
		authCfg.Cache = cache.NewSessionCache(rdb, cfg.SessionCache.TTL, cfg.SessionCache.Prefix)
	}
	auth := service.NewAuthService(users, repository.NewSessionRepo(db), authCfg)

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))

	guard := middleware.BearerAuth(auth)
	router.RegisterRoutes(e, db, reg)
	router.RegisterAuth(e, handler.NewAuthHandler(auth), guard, middleware.NewTokenBucket(cfg.RateLimit, rdb))
	router.RegisterResources(e, guard, resources...)

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo_shutdown_failed", "error", err)
	}
}
