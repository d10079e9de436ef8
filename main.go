package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/bankdash/bankdash/backend/go-gateway/handlers"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/accounts"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/admin"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/apiclient"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/app"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/auth"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/billers"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/config"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/security"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/sessions"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/storage"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/tokens"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/transactions"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/watchdog"
	"github.com/bankdash/bankdash/backend/go-gateway/pkg/logger"
	"github.com/bankdash/bankdash/backend/go-gateway/pkg/metrics"
	"github.com/bankdash/bankdash/backend/go-gateway/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// initialize logging (can be controlled with LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: backend=%s storage=%s redis=%v watchdog=%v", cfg.API.BaseURL, cfg.Storage.Backend, cfg.Redis.Host != "", cfg.Watchdog.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := app.ConnectRedis(ctx, cfg.Redis)
	backends, err := app.Open(ctx, cfg, rdb)
	if err != nil {
		logger.Fatalf("failed to open persistent store: %v", err)
	}
	defer backends.Close()
	if rdb != nil {
		defer rdb.Close()
	}

	// the page-scoped store belongs to this process only
	page := storage.NewMemoryStore()
	mgr := sessions.NewManager(tokens.NewStore(backends.Persistent, page), page, backends.Revocations, sessions.Options{
		LegacyRefreshFallback: cfg.Session.LegacyRefreshFallback,
		RevocationTTL:         cfg.Session.RevocationTTL,
	})
	client := apiclient.New(mgr, apiclient.Options{
		BaseURL:          cfg.API.BaseURL,
		Timeout:          cfg.API.Timeout,
		ResponseCacheTTL: cfg.API.ResponseCacheTTL,
		PaymentPath:      cfg.API.PaymentPath,
		RefreshPath:      cfg.API.RefreshPath,
		// the redirect itself reaches the UI as the 401 {"redirect": "/login"} body
		// written by the handlers; the gateway only records that it happened
		OnLoginRequired: func(cause error) {
			logger.Warnf("session needs a new login: %v", cause)
		},
	})

	authSvc := auth.NewService(client, mgr, backends.Persistent, page)
	acctSvc := accounts.NewService(client, mgr, cfg.Cache)
	txSvc := transactions.NewService(client, mgr, acctSvc, cfg.Cache)

	var wd *watchdog.Watchdog
	if cfg.Watchdog.Enabled {
		wd = watchdog.New(mgr, backends.Watcher(), cfg.Watchdog.Interval)
	}

	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Environment == "development" {
		gin.SetMode(gin.DebugMode)
	}
	r := gin.New()

	// Lightweight CORS middleware: set common headers and respond to OPTIONS.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length, X-Session-State")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})
	r.Use(gin.Logger(), gin.Recovery())

	// Optional global rate limiter, keyed by client IP at this level
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
		logger.Infof("rate limiter enabled (redis=%v)", cfg.RateLimit.UseRedis && rdb != nil)
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness: the persistent store must answer and Redis must be up when a feature needs it
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{}

		pctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		_, perr := backends.Persistent.Get(pctx, storage.KeyDeviceID)
		deps["storage"] = perr == nil
		if perr != nil {
			ready = false
		}

		needRedis := cfg.Storage.Backend == "redis" || (cfg.RateLimit.Enabled && cfg.RateLimit.UseRedis)
		if needRedis {
			deps["redis"] = rdb != nil && rdb.Ping(pctx).Err() == nil
			if !deps["redis"] {
				ready = false
			}
		} else {
			deps["redis"] = true
		}

		status, label := http.StatusOK, "ready"
		if !ready {
			status, label = http.StatusServiceUnavailable, "not_ready"
		}
		c.JSON(status, gin.H{"status": label, "deps": deps, "session": mgr.State(c.Request.Context()), "uptime": time.Since(startTime).String()})
	})

	handlers.RegisterSwagger(r)
	handlers.RegisterAPI(r, handlers.API{
		Sessions:     mgr,
		Auth:         handlers.NewAuthHandler(authSvc, mgr, wd),
		Accounts:     handlers.NewAccountsHandler(acctSvc),
		Transactions: handlers.NewTransactionsHandler(txSvc),
		Billers:      handlers.NewBillersHandler(billers.NewService(client, mgr, cfg.Cache)),
		Admin:        handlers.NewAdminHandler(admin.NewService(client, authSvc)),
		Security:     handlers.NewSecurityHandler(security.NewService(client)),
	})

	// Expose Prometheus metrics
	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Starting session gateway on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if wd != nil {
		g.Go(func() error {
			wd.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if wd != nil {
			wd.BeforeUnload(shutdownCtx)
		} else {
			mgr.SnapshotBackups(shutdownCtx)
		}
		logger.Infof("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
