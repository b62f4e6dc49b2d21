package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/triagify/triagify-backend/internal/analysis"
	"github.com/triagify/triagify-backend/internal/archive"
	"github.com/triagify/triagify-backend/internal/config"
	"github.com/triagify/triagify-backend/internal/database"
	"github.com/triagify/triagify-backend/internal/handler"
	"github.com/triagify/triagify-backend/internal/mailer"
	"github.com/triagify/triagify-backend/internal/middleware"
	"github.com/triagify/triagify-backend/internal/queue"
	"github.com/triagify/triagify-backend/internal/repository"
	"github.com/triagify/triagify-backend/internal/router"
	"github.com/triagify/triagify-backend/internal/seed"
)

func main() {
	// A missing .env is fine; the process environment wins anyway.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:          "triagify",
		Short:        "Clinic pre-visit screening API",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(serveCmd(), workerCmd(), seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume screening events and deliver notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker()
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the administrator and the global question catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context())
		},
	}
}

// bootstrap loads the configuration and builds the root logger.
func bootstrap() (*config.Config, zerolog.Logger, error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	cfg, err := config.Load()
	if err != nil {
		logger.Error().Err(err).Msg("failed to load config")
		return nil, logger, err
	}
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(lvl)
	}
	return cfg, logger, nil
}

func runServer() error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}

	db, err := database.Open(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer db.Close()
	logger.Info().Msg("connected to database")

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		logger.Warn().Str("addr", cfg.Redis.Address()).Msg("redis unavailable; rate limiting and catalog cache disabled")
	} else {
		defer rdb.Close()
	}

	mail, err := mailer.New(cfg.SMTP, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to configure mailer")
		return err
	}
	defer mail.Close()

	exams, err := archive.New(context.Background(), cfg.Archive)
	if err != nil {
		logger.Error().Err(err).Msg("failed to configure exam archive")
		return err
	}

	var notifier queue.Publisher
	if cfg.RabbitMQURL != "" {
		notifier = queue.NewAMQPPublisher(cfg.RabbitMQURL, logger)
		logger.Info().Msg("screening events go through RabbitMQ")
	} else {
		notifier = queue.Inline{Handler: &queue.Handler{
			Mailer:      mail,
			FrontendURL: cfg.FrontendURL,
			AuditPath:   cfg.ReviewAuditLog,
		}}
		logger.Info().Msg("RABBITMQ_URL not set; screening events are handled inline")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	screenings := repository.NewScreeningRepo(db)
	questions := repository.NewQuestionRepo(db)
	associations := repository.NewAssociationRepo(db)

	e := router.New(logger, *cfg)
	router.RegisterRoutes(e, &handler.ReadyHandler{Checks: readinessChecks(db, rdb)})
	router.RegisterAuth(e,
		handler.NewAuthHandler(*cfg, users, tokens, mail),
		handler.NewProfileHandler(*cfg, users, tokens),
		*cfg, rdb)
	router.RegisterScreening(e,
		&handler.ScreeningHandler{
			Cfg:          *cfg,
			Screenings:   screenings,
			Associations: associations,
			Analyzer:     analysis.New(cfg.Gemini),
			Archive:      exams,
			Notifier:     notifier,
		},
		&handler.QuestionHandler{
			Questions:  questions,
			Screenings: screenings,
			InvalidateCatalog: func(ctx context.Context) error {
				return middleware.PurgeCache(ctx, rdb, cfg.Cache.Prefix)
			},
		},
		*cfg, rdb)
	router.RegisterPatients(e, &handler.PatientHandler{Users: users, Associations: associations}, cfg.JWTSecret)
	router.RegisterAdmin(e, &handler.AdminHandler{
		Users:        users,
		Screenings:   screenings,
		Associations: associations,
		Notifier:     notifier,
	}, cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	return shutdown(e, logger)
}

func shutdown(e *echo.Echo, logger zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func readinessChecks(db *sql.DB, rdb *redis.Client) map[string]handler.Check {
	checks := map[string]handler.Check{"database": db.PingContext}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}

func runWorker() error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	if cfg.RabbitMQURL == "" {
		err := errors.New("RABBITMQ_URL is required for the worker")
		logger.Error().Err(err).Send()
		return err
	}

	mail, err := mailer.New(cfg.SMTP, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to configure mailer")
		return err
	}
	defer mail.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := &queue.Consumer{
		URL: cfg.RabbitMQURL,
		Handler: &queue.Handler{
			Mailer:      mail,
			FrontendURL: cfg.FrontendURL,
			AuditPath:   cfg.ReviewAuditLog,
		},
		Log: logger,
	}
	logger.Info().Msg("worker started")
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker stopped")
		return err
	}
	logger.Info().Msg("worker stopped")
	return nil
}

func runSeed(ctx context.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	db, err := database.Open(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer db.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	users := repository.NewUserRepo(db)
	if err := seed.Run(ctx, users, repository.NewQuestionRepo(db), cfg.Seed, cfg.BcryptCost, logger); err != nil {
		logger.Error().Err(err).Msg("seed failed")
		return err
	}
	return nil
}
