package main

import (
	"context"
	"dealfeed/internal/configuration"
	"dealfeed/internal/dealstore"
	"dealfeed/internal/logger"
	"dealfeed/internal/points"
	"dealfeed/internal/ratelimit"
	"dealfeed/internal/server"
	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v9"
	"io"
	"net/http"
	"os"
	"time"
)

func main() {
	runApp()
	time.Sleep(10 * time.Second)
	os.Exit(1)
}

func runApp() error {
	appContext := context.Background()
	logOutput := io.Writer(os.Stdout)
	appLogger := logger.NewLogger(logger.LevelError, logOutput)

	defer func() {
		if r := recover(); r != nil {
			appLogger.Errorf("APPLICATION CRASHED: %+v", r)
		}
	}()

	config, err := configuration.GetConfig("config.toml")
	if err != nil {
		appLogger.Error("Error getting configuration from config.toml:", err)
		return err
	}

	if config.LogToFile {
		logFile, err := os.OpenFile("dealfeed_backend.log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			appLogger.Error("Error opening log file:", err)
			return err
		}
		defer func() {
			if err := logFile.Close(); err != nil {
				appLogger.Error("Error closing log file:", err)
			}
		}()
		logOutput = io.MultiWriter(logOutput, logFile)
	}
	appLogger = logger.NewLogger(config.LogLevel, logOutput)

	appLogger.Info("Opening deal store at", config.DataDir)
	store, err := dealstore.NewFileStore(config.DataDir, config.AllowReset, appLogger)
	if err != nil {
		appLogger.Error("Error opening deal store:", err)
		return err
	}

	var (
		limiter    ratelimit.Limiter
		duplicates ratelimit.Window
		awarder    points.Awarder
	)
	if config.RedisAddress != "" {
		appLogger.Info("Connecting to Redis at", config.RedisAddress)
		rdb := redis.NewClient(&redis.Options{Addr: config.RedisAddress})
		limiter = ratelimit.RedisLimiter{
			Redis:  rdb,
			Limit:  int(config.SubmitPerMinute),
			Window: time.Minute,
			Logger: appLogger,
		}
		duplicates = ratelimit.RedisWindow{
			Redis:  rdb,
			TTL:    config.DuplicateWindow,
			Logger: appLogger,
		}
		awarder = points.RedisAwarder{Redis: rdb}
		defer func() {
			if err := rdb.Close(); err != nil {
				appLogger.Error("Error closing Redis client:", err)
			}
		}()
	} else {
		appLogger.Info("No redis_address configured, using in-process rate limiting and log-only point awards")
		limiter = ratelimit.NewMemoryLimiter(config.SubmitPerMinute, config.SubmitBurst)
		duplicates = ratelimit.NewMemoryWindow(config.DuplicateWindow)
		awarder = points.LogAwarder{Logger: appLogger}
	}

	srv := server.Server{
		Store:         store,
		Affiliates:    config.Affiliate,
		Limiter:       limiter,
		Duplicates:    duplicates,
		Points:        awarder,
		Validate:      validator.New(),
		Logger:        appLogger,
		AuthSecretKey: config.AuthSecretKey,
		AdminKeyHash:  config.AdminKeyHash,
		ApprovePoints: config.ApprovePoints,
	}

	appLogger.Info("Starting expiry sweeper with interval:", config.SweepInterval)
	go srv.SweepExpiredInInterval(appContext, time.NewTicker(config.SweepInterval))

	httpSrv := &http.Server{
		Handler:      srv.Router(),
		Addr:         config.ServerAddress,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	appLogger.Info("Serving on", httpSrv.Addr)
	return httpSrv.ListenAndServe()
}
