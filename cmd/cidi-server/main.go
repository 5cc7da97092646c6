package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/andrelfnavarro/cidi-api/internal/config"
	"github.com/andrelfnavarro/cidi-api/internal/domain/billing"
	"github.com/andrelfnavarro/cidi-api/internal/domain/dentist"
	"github.com/andrelfnavarro/cidi-api/internal/domain/patient"
	"github.com/andrelfnavarro/cidi-api/internal/domain/tenant"
	"github.com/andrelfnavarro/cidi-api/internal/domain/treatment"
	"github.com/andrelfnavarro/cidi-api/internal/platform/auth"
	"github.com/andrelfnavarro/cidi-api/internal/platform/blobstore"
	"github.com/andrelfnavarro/cidi-api/internal/platform/cep"
	"github.com/andrelfnavarro/cidi-api/internal/platform/db"
	"github.com/andrelfnavarro/cidi-api/internal/platform/middleware"
	"github.com/andrelfnavarro/cidi-api/internal/platform/payment"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cidi-server",
		Short: "Dental clinic management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(reconcileCmd())

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
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

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

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

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

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage clinics",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a clinic directly, bypassing checkout",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			slug, _ := cmd.Flags().GetString("slug")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

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

			t, err := tenant.NewService(tenant.NewRepoPG(pool)).Create(ctx, name, slug)
			if err != nil {
				return err
			}
			fmt.Printf("Created clinic %s (slug %s)\n", t.ID, t.Slug)
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Clinic display name")
	createCmd.Flags().String("slug", "", "Intake URL slug (derived from name when empty)")
	cmd.AddCommand(createCmd)

	return cmd
}

// reconcileCmd sweeps every mirrored subscription against the payment
// processor. Run it from cron as a safety net for missed webhook
// deliveries.
func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Resync all subscriptions with the payment processor",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			billingSvc := buildBilling(cfg, pool, logger)
			total, err := billingSvc.Reconcile(ctx)
			if err != nil {
				return err
			}
			logger.Info().Int("subscriptions", total).Msg("reconcile sweep finished")
			return nil
		},
	}
}

func newLogger() zerolog.Logger {
	if os.Getenv("ENV") == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// buildBilling wires the billing service on top of the tenant and dentist
// services so checkout completion and webhook resyncs can materialize
// clinics and owner accounts.
func buildBilling(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) *billing.Service {
	tenantSvc := tenant.NewService(tenant.NewRepoPG(pool))
	dentistSvc := dentist.NewService(
		dentist.NewRepoPG(pool),
		tenantSvc,
		[]byte(cfg.JWTSecret),
		time.Duration(cfg.TokenTTLHours)*time.Hour,
	)
	client := payment.NewHTTPClient(cfg.PaymentAPIURL, cfg.PaymentSecretKey)
	return billing.NewService(billing.NewRepoPG(pool), client, tenantSvc, dentistSvc, logger, cfg.AppBaseURL)
}

// skipPublic applies mw to every request except the public paths the auth
// skipper names (sign-in, intake, signup, webhooks, signed downloads).
func skipPublic(mw echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		protected := mw(next)
		return func(c echo.Context) error {
			if auth.AuthSkipper(c) {
				return next(c)
			}
			return protected(c)
		}
	}
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	store, err := blobstore.NewFilesystemStore(cfg.StorageBucket)
	if err != nil {
		logger.Fatal().Err(err).Str("root", cfg.StorageBucket).Msg("failed to open file storage")
	}
	signer := blobstore.NewURLSigner([]byte(cfg.SignedURLSecret), cfg.AppBaseURL)

	// Services
	tenantSvc := tenant.NewService(tenant.NewRepoPG(pool))
	dentistSvc := dentist.NewService(
		dentist.NewRepoPG(pool),
		tenantSvc,
		[]byte(cfg.JWTSecret),
		time.Duration(cfg.TokenTTLHours)*time.Hour,
	)
	patientSvc := patient.NewService(patient.NewRepoPG(pool))
	treatmentSvc := treatment.NewService(
		treatment.NewRepoPG(pool),
		treatment.NewAnamnesisRepoPG(pool),
		treatment.NewItemRepoPG(pool),
		treatment.NewPaymentRepoPG(pool),
		treatment.NewFileRepoPG(pool),
		patientSvc,
		store,
		signer,
		func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.InTx(ctx, pool, fn)
		},
	)
	paymentClient := payment.NewHTTPClient(cfg.PaymentAPIURL, cfg.PaymentSecretKey)
	billingSvc := billing.NewService(
		billing.NewRepoPG(pool), paymentClient, tenantSvc, dentistSvc, logger, cfg.AppBaseURL,
	)
	cepClient := cep.NewClient(cfg.CEPAPIURL)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.SanitizeWithLogger(logger))
	e.Use(middleware.BodyLimit("1M", "26M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(middleware.AccessLog(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Route groups. Only /api/v1 carries session tokens; intake, signup,
	// webhooks, and signed downloads are reachable without one.
	api := e.Group("/api/v1")
	public := e.Group("/public")
	webhooks := e.Group("/webhooks")

	api.Use(skipPublic(auth.JWTMiddleware([]byte(cfg.JWTSecret))))
	api.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
	public.Use(middleware.RateLimit(middleware.PublicRateLimitConfig()))

	// Handlers
	tenant.NewHandler(tenantSvc).RegisterRoutes(api, public)
	dentist.NewHandler(dentistSvc).RegisterRoutes(api)
	patient.NewHandler(patientSvc, tenantSvc).RegisterRoutes(api, public)
	treatment.NewHandler(treatmentSvc).RegisterRoutes(api)
	billing.NewHandler(billingSvc, cfg.PaymentWebhookSecret, logger).RegisterRoutes(api, public, webhooks)

	api.GET("/cep/:code", cep.Handler(cepClient))
	public.GET("/cep/:code", cep.Handler(cepClient))

	e.GET("/files/*", blobstore.ServeHandler(store, signer))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Start server with graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}
	return nil
}
