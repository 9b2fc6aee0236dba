package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/devs8l/nurture-bridge-tech-backend-sub000/internal/config"
	"github.com/devs8l/nurture-bridge-tech-backend-sub000/internal/domain/assessment"
	"github.com/devs8l/nurture-bridge-tech-backend-sub000/internal/domain/catalog"
	"github.com/devs8l/nurture-bridge-tech-backend-sub000/internal/domain/clinical"
	"github.com/devs8l/nurture-bridge-tech-backend-sub000/internal/domain/report"
	"github.com/devs8l/nurture-bridge-tech-backend-sub000/internal/platform/auth"
	"github.com/devs8l/nurture-bridge-tech-backend-sub000/internal/platform/db"
	"github.com/devs8l/nurture-bridge-tech-backend-sub000/internal/platform/genai"
	"github.com/devs8l/nurture-bridge-tech-backend-sub000/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nurture-server",
		Short: "Developmental assessment and report generation API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.Migrate(ctx, pool); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(auth.Middleware(auth.JWTConfig{
		Issuer:     cfg.JWTIssuer,
		SigningKey: []byte(cfg.JWTSecret),
		DevMode:    cfg.IsDev(),
	}))

	// AI text generator, injected into the services that need it.
	generator := genai.NewClient(genai.ClientConfig{
		BaseURL:     cfg.GenAIBaseURL,
		APIKey:      cfg.GenAIAPIKey,
		Model:       cfg.GenAIModel,
		Temperature: cfg.GenAITemperature,
		MaxTokens:   cfg.GenAIMaxTokens,
		Timeout:     cfg.GenAITimeout(),
	}, logger)
	if !generator.IsAvailable() {
		logger.Warn().Msg("GENAI_API_KEY not set, summary generation will fail until configured")
	}

	// Repositories
	childRepo := clinical.NewChildRepoPG(pool)
	responseRepo := assessment.NewResponseRepoPG(pool)
	answerRepo := assessment.NewAnswerRepoPG(pool)
	logRepo := assessment.NewConversationLogRepoPG(pool)
	summaryRepo := report.NewPoolSummaryRepoPG(pool)
	reportRepo := report.NewFinalReportRepoPG(pool)

	// Services
	catalogSvc := catalog.NewService(
		catalog.NewPoolRepoPG(pool),
		catalog.NewSectionRepoPG(pool),
		catalog.NewQuestionRepoPG(pool),
	)
	clinicalSvc := clinical.NewService(childRepo)
	mapper := assessment.NewAnswerMapper(generator, logger)
	assessmentSvc := assessment.NewService(responseRepo, answerRepo, logRepo, childRepo, catalogSvc, mapper, logger)
	reportSvc := report.NewService(summaryRepo, reportRepo, responseRepo, answerRepo, childRepo, catalogSvc, generator, logger)
	reportSvc.SetTxRunner(func(ctx context.Context, fn func(context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	})
	assessmentSvc.SetCascade(reportSvc)

	// Routes
	api := e.Group("/api/v1")
	catalog.NewHandler(catalogSvc).RegisterRoutes(api)
	clinical.NewHandler(clinicalSvc).RegisterRoutes(api)
	assessment.NewHandler(assessmentSvc).RegisterRoutes(api)
	report.NewHandler(reportSvc).RegisterRoutes(api)

	e.GET("/health/db", db.HealthHandler(pool))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
