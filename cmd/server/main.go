package main

import (
	"alcyxob/progression/internal/api"
	"alcyxob/progression/internal/config"
	"alcyxob/progression/internal/repository/mongo"
	"alcyxob/progression/internal/service"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Fatal().Err(err).Msg("could not load config")
	}
	logger = configureLogger(logger, cfg.Log)
	logger.Info().Msg("starting progression server")

	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		logger.Fatal().Err(err).Msg("could not connect to MongoDB")
	}
	defer func() {
		if err := mongo.DisconnectDB(dbClient); err != nil {
			logger.Error().Err(err).Msg("failed to disconnect MongoDB")
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	logger.Info().Str("database", cfg.Database.Name).Msg("database connection established")

	// Index creation runs in the background; startup does not block on it.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		mongo.EnsureUserIndexes(ctx, appDB.Collection("users"))
		mongo.EnsureProgramIndexes(ctx, appDB.Collection("programs"))
		logger.Info().Msg("index creation process completed")
	}()

	userRepo := mongo.NewMongoUserRepository(appDB)
	programRepo := mongo.NewMongoProgramRepository(appDB)

	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	programService := service.NewProgramService(programRepo, logger)
	calendarService := service.NewCalendarService()

	// Nightly reconciliation of cycle activation flags against the
	// calendar. Same service path a client can hit over HTTP.
	scheduler := cron.New()
	if spec := cfg.Jobs.ActivationRefreshSpec; spec != "" {
		_, err := scheduler.AddFunc(spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			refreshed, err := programService.RefreshAllCycleActivation(ctx, time.Now())
			if err != nil {
				logger.Error().Err(err).Msg("activation refresh job failed")
				return
			}
			logger.Info().Int("programs", refreshed).Msg("activation refresh job ran")
		})
		if err != nil {
			logger.Fatal().Err(err).Str("spec", spec).Msg("invalid activation refresh schedule")
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(api.RequestLogger(logger), gin.Recovery())

	api.SetupRoutes(router, cfg.JWT.Secret, authService, programService, calendarService)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().Str("address", cfg.Server.Address).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen and serve error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}
	logger.Info().Msg("server exiting")
}

func configureLogger(logger zerolog.Logger, cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level)
	if cfg.Pretty {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger
}
