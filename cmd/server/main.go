package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mico/crypto-sentiment-analysis/internal/analytics"
	"github.com/mico/crypto-sentiment-analysis/internal/app"
	"github.com/mico/crypto-sentiment-analysis/internal/bot"
	"github.com/mico/crypto-sentiment-analysis/internal/cache"
	"github.com/mico/crypto-sentiment-analysis/internal/config"
	"github.com/mico/crypto-sentiment-analysis/internal/handler"
	"github.com/mico/crypto-sentiment-analysis/internal/ingest"
	"github.com/mico/crypto-sentiment-analysis/internal/job"
	"github.com/mico/crypto-sentiment-analysis/internal/logger"
	"github.com/mico/crypto-sentiment-analysis/internal/storage/driver"
	"github.com/mico/crypto-sentiment-analysis/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "github.com/mico/crypto-sentiment-analysis/docs"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	credentialsFunc        = func() (config.Credentials, error) { return config.RequireCredentials(os.Getenv) }
	initTracerFunc         = tracing.InitTracer
	openTableFunc          = driver.Open
	connectRedisFunc       = cache.Connect
	newPipelineFunc        = app.NewPipeline
	newBotFunc             = bot.New
	startBotFunc           = func(b *bot.Bot) { b.Start() }
	startJobFunc           = func(j *job.IngestJob, ctx context.Context) { go j.Start(ctx) }
	newRouterFunc          = gin.New
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Crypto Sentiment Analysis API
// @version         1.0
// @description     Coin mention and sentiment analytics over Reddit and CryptoPanic news.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey  ApiKeyAuth
// @in                          header
// @name                        X-API-Key
func main() {
	loadEnvFunc()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = config.DefaultPath
	}
	cfg, err := loadConfigFunc(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	lg := logger.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx, "server")
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	table, err := openTableFunc(ctx, cfg, tracer)
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}
	defer table.Close()

	redisClient, err := connectRedisFunc(ctx, cfg.Redis.URL)
	if err != nil {
		lg.Warn("redis unavailable, analytics cache disabled", "err", err)
	}
	var cacheClient analytics.RedisClient
	if redisClient != nil {
		cacheClient = redisClient
		defer redisClient.Close()
	}

	analyticsService := app.NewAnalytics(cfg, table, cacheClient, tracer, lg)
	h := handler.New(tracer, analyticsService)

	coinTable, err := cfg.CoinTable()
	if err != nil {
		log.Fatalf("invalid coin table: %v", err)
	}

	var notifier *bot.Bot
	if cfg.Telegram.Enabled {
		notifier, err = newBotFunc(cfg.Telegram.BotToken, cfg.Telegram.ChatID, analyticsService, coinTable, lg)
		if err != nil {
			lg.Error("telegram bot disabled", "err", err)
		}
		if notifier != nil {
			startBotFunc(notifier)
		}
	}

	// Ingestion is optional on the server; without Reddit credentials the
	// API stays read-only.
	if creds, err := credentialsFunc(); err != nil {
		lg.Warn("ingestion disabled", "err", err)
	} else {
		pipeline, err := newPipelineFunc(ctx, cfg, creds, table, tracer, lg)
		if err != nil {
			log.Fatalf("failed to wire ingestion: %v", err)
		}
		if redisClient != nil {
			pipeline.Service.WithNotifier(cache.NewInvalidator(redisClient, cache.AnalyticsPrefix, lg))
		}
		if notifier != nil {
			pipeline.Service.WithNotifier(notifier)
		}
		// One guard for the trigger and the schedule: a tick during a
		// manual run is skipped and vice versa.
		runner := ingest.NewExclusiveRunner(pipeline.Service)
		h.SetIngestRunner(runner, cfg.Server.APIKey)
		if cfg.Ingest.Schedule > 0 {
			startJobFunc(job.NewIngestJob(tracer, runner, lg, cfg.Ingest.Schedule), ctx)
		}
	}

	r := newRouterFunc()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(tracing.ServiceName))
	r.Use(handler.RequestLogger(lg))

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()
	lg.Info("server listening", "addr", cfg.Server.Addr)

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	lg.Info("shutting down server")

	cancel()
	if notifier != nil {
		notifier.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	lg.Info("server exiting")
}
