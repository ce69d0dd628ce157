package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Windi-Fikriyansyah/healthmate_be/internal/config"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/db"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/handlers"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/logging"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/metrics"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/realtime"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/services/accounts"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/services/analyzer"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/store"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/utils"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	gdb, err := db.Connect(cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		log.WithError(err).Fatal("database connect failed")
	}
	if err := db.Migrate(gdb); err != nil {
		log.WithError(err).Fatal("database migrate failed")
	}

	for _, dir := range []string{cfg.UploadDir, cfg.StaticDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.WithError(err).WithField("dir", dir).Fatal("create directory failed")
		}
	}

	rdb := realtime.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	if rdb != nil {
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable, cache and pub/sub disabled")
			_ = rdb.Close()
			rdb = nil
		} else {
			log.WithField("addr", cfg.RedisAddr).Info("redis connected")
		}
	}

	hasher, err := utils.NewHasher(cfg.PasswordScheme)
	if err != nil {
		log.WithError(err).Fatal("password scheme")
	}

	hub := realtime.NewHub(log)
	go hub.Run()
	notifier := realtime.NewNotifier(hub, rdb, log)

	accountSvc := accounts.NewService(store.NewAccountStore(gdb), hasher, log)
	analyses := store.NewAnalysisStore(gdb)
	analyzerSvc := newAnalyzer(cfg, rdb, log)
	log.WithField("available", analyzerSvc.Available()).Info("prescription analyzer")

	app := fiber.New(fiber.Config{
		BodyLimit: 16 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowOrigins,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: cfg.CORSAllowOrigins != "*",
	}))
	app.Use(logging.RequestLogger(log))
	app.Use(metrics.Middleware())

	app.Static("/static", cfg.StaticDir)
	app.Get("/metrics", metrics.Handler())

	routes := &handlers.Routes{
		JWTSecret: cfg.JWTSecret,
		Auth: &handlers.AuthHandler{
			Accounts:  accountSvc,
			Notifier:  notifier,
			JWTSecret: cfg.JWTSecret,
			Expires:   cfg.JWTExpiresMin,
			Log:       log,
		},
		Google: &handlers.GoogleOAuthHandler{
			Accounts:        accountSvc,
			JWTSecret:       cfg.JWTSecret,
			Expires:         cfg.JWTExpiresMin,
			GoogleClientID:  cfg.GoogleClientID,
			GoogleSecret:    cfg.GoogleSecret,
			GoogleRedirect:  cfg.GoogleRedirect,
			FrontendBaseURL: cfg.FrontendBaseURL,
			Log:             log,
		},
		Dashboard: &handlers.DashboardHandler{
			Accounts: accountSvc,
			Analyses: analyses,
		},
		Analyze: &handlers.AnalyzeHandler{
			Analyzer:  analyzerSvc,
			Analyses:  analyses,
			Notifier:  notifier,
			UploadDir: cfg.UploadDir,
			Log:       log,
		},
		Notifications: &handlers.NotificationHandler{Hub: hub, Log: log},
	}
	routes.Mount(app)

	go func() {
		log.WithField("port", cfg.AppPort).Info("listening")
		if err := app.Listen(":" + cfg.AppPort); err != nil {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	notifier.ServerShutdown()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.WithError(err).Error("shutdown")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}

// newAnalyzer resolves the analysis capability once at startup. The client
// stays an untyped nil when ANALYZER_URL is unset so Available reports false.
func newAnalyzer(cfg config.Config, rdb *redis.Client, log logrus.FieldLogger) *analyzer.Service {
	var client analyzer.Client
	if cfg.AnalyzerURL != "" {
		client = analyzer.NewHTTPClient(cfg.AnalyzerURL, time.Duration(cfg.AnalyzerTimeoutSec)*time.Second)
	}

	var cache analyzer.Cache
	if rdb != nil {
		cache = analyzer.NewRedisCache(rdb)
	}

	return analyzer.NewService(client, cache, time.Duration(cfg.AnalysisCacheTTLMin)*time.Minute, log)
}
