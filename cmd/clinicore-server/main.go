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

	"github.com/clinicore/clinicore/internal/config"
	"github.com/clinicore/clinicore/internal/domain/company"
	"github.com/clinicore/clinicore/internal/domain/medhistory"
	"github.com/clinicore/clinicore/internal/domain/patient"
	"github.com/clinicore/clinicore/internal/domain/patientdocs"
	"github.com/clinicore/clinicore/internal/domain/refdata"
	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/blobstore"
	"github.com/clinicore/clinicore/internal/platform/db"
	"github.com/clinicore/clinicore/internal/platform/middleware"
	"github.com/clinicore/clinicore/internal/platform/translate"
	"github.com/clinicore/clinicore/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinicore-server",
		Short: "Clinic management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
}

func migrateCmd() *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}
	migrate.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return db.NewMigrator(cfg.DatabaseURL, migrations.Migrations).Up(cmd.Context())
		},
	})
	migrate.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return db.NewMigrator(cfg.DatabaseURL, migrations.Migrations).Status(cmd.Context())
		},
	})
	return migrate
}

func newFileStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (blobstore.FileStore, error) {
	switch cfg.FileStore {
	case "s3":
		return blobstore.NewS3Store(ctx, blobstore.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	case "memory":
		log.Warn().Msg("using in-memory file store, files will not survive a restart")
		return blobstore.NewInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown file store %q", cfg.FileStore)
	}
}

func runServer(cfg *config.Config) error {
	log := newLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	store, err := newFileStore(ctx, cfg, log)
	if err != nil {
		return err
	}

	outbox := translate.NewOutboxPG(pool)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recovery(log))
	e.Use(echomw.RequestID())
	e.Use(middleware.Logger(log))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodHead, http.MethodPatch},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization, "Upload-Offset", "Upload-Length"},
	}))
	e.Use(middleware.BodyLimit(1<<20, cfg.UploadMaxSize))

	e.GET("/health", db.HealthHandler(pool))

	api := e.Group("/api/v1")
	if cfg.Env == "development" && cfg.JWTSecret == "" {
		log.Warn().Msg("JWT secret not set, using dev auth bypass")
		api.Use(auth.DevAuthMiddleware())
	} else {
		api.Use(auth.JWTMiddleware([]byte(cfg.JWTSecret)))
	}

	// Patients
	patientSvc := patient.NewService(
		patient.NewPatientRepoPG(pool),
		patient.NewPersonalRepoPG(pool),
		patient.NewRiskRepoPG(pool),
		patient.NewNoteRepoPG(pool),
		outbox, pool)
	patient.NewHandler(patientSvc, log).RegisterRoutes(api)

	// Patient documents and insurances
	docsSvc := patientdocs.NewService(
		patientdocs.NewIDDocumentRepoPG(pool),
		patientdocs.NewInsuranceRepoPG(pool),
		store, log)
	patientdocs.NewHandler(docsSvc, log).RegisterRoutes(api)

	// Medical history
	historySvc := medhistory.NewService(
		medhistory.NewEventRepoPG(pool),
		medhistory.NewDocumentRepoPG(pool),
		medhistory.NewDiagnosisRepoPG(pool),
		outbox, store, pool, log)
	medhistory.NewHandler(historySvc, log).RegisterRoutes(api)

	// Companies and examinations
	companySvc := company.NewService(
		company.NewCompanyRepoPG(pool),
		company.NewInfoRepoPG(pool),
		company.NewCategoryRepoPG(pool),
		company.NewExamTypeRepoPG(pool),
		outbox, pool)
	company.NewHandler(companySvc, log).RegisterRoutes(api)

	// Reference data
	refdataSvc := refdata.NewService(
		refdata.NewDocumentTypeRepoPG(pool),
		refdata.NewMedicalDocumentTypeRepoPG(pool),
		refdata.NewProviderRepoPG(pool),
		refdata.NewPlanRepoPG(pool),
		refdata.NewLookupRepoPG(pool),
		outbox, pool)
	refdata.NewHandler(refdataSvc, log).RegisterRoutes(api)

	// File access and resumable uploads
	sessions := blobstore.NewSessionManager(store, cfg.UploadMaxSize, time.Hour)
	blobstore.NewHandler(store, sessions, cfg.SignedURLTTL, log).RegisterRoutes(api)

	// Background translation worker
	translator := translate.NewClient(cfg.TranslateBaseURL, cfg.TranslateAPIKey, cfg.TranslateModel)
	worker := translate.NewWorker(outbox, translator, pool, translate.DefaultTables(), cfg.TranslatePollInterval, log)
	go worker.Run(ctx)

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server listening")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
