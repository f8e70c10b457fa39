package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/familyboard/core/internal/adapters/localstore"
	"github.com/familyboard/core/internal/adapters/notify"
	"github.com/familyboard/core/internal/adapters/repository"
	"github.com/familyboard/core/internal/application/lifecycle"
	"github.com/familyboard/core/internal/application/services"
	"github.com/familyboard/core/internal/infrastructure/config"
	"github.com/familyboard/core/internal/infrastructure/database"
	"github.com/familyboard/core/internal/infrastructure/logger"
	"github.com/familyboard/core/internal/infrastructure/metrics"
	"github.com/familyboard/core/internal/infrastructure/server"
	"github.com/familyboard/core/internal/ports"
)

// Set at build time with -ldflags.
var (
	Version   = "1.0.0"
	BuildDate = "unknown"
	GitCommit = "development"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the family board node",
		Long:  "Start the task lifecycle engine and the HTTP API, including the push relay",
		Run: func(cmd *cobra.Command, args []string) {
			runServer()
		},
	}
}

// NewMigrateCommand creates the migrate command with subcommands
func NewMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  "Manage the shared task store schema (up, down, version)",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Run up migrations",
		Run: func(cmd *cobra.Command, args []string) {
			steps, _ := cmd.Flags().GetInt("steps")
			runMigration("up", steps)
		},
	}
	upCmd.Flags().Int("steps", 0, "Number of migrations to apply (0 = all)")
	migrateCmd.AddCommand(upCmd)

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Run down migrations",
		Run: func(cmd *cobra.Command, args []string) {
			steps, _ := cmd.Flags().GetInt("steps")
			runMigration("down", steps)
		},
	}
	downCmd.Flags().Int("steps", 0, "Number of migrations to revert (0 = all)")
	migrateCmd.AddCommand(downCmd)

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		Run: func(cmd *cobra.Command, args []string) {
			showMigrationVersion()
		},
	})

	return migrateCmd
}

// NewPushCommand creates the push command
func NewPushCommand() *cobra.Command {
	pushCmd := &cobra.Command{
		Use:   "push",
		Short: "Push notification commands",
	}

	sendCmd := &cobra.Command{
		Use:   "send",
		Short: "Send a push notification to a role or a registered identity",
		Run: func(cmd *cobra.Command, args []string) {
			to, _ := cmd.Flags().GetString("to")
			externalID, _ := cmd.Flags().GetString("external-id")
			title, _ := cmd.Flags().GetString("title")
			body, _ := cmd.Flags().GetString("body")
			scheduleAt, _ := cmd.Flags().GetString("schedule-at")

			req := ports.PushRequest{To: to, ExternalID: externalID, Title: title, Body: body}
			if scheduleAt != "" {
				req.ScheduleAt = &scheduleAt
			}
			sendPush(req)
		},
	}

	sendCmd.Flags().String("to", "", "Target role (mother, father, son)")
	sendCmd.Flags().String("external-id", "", "Target external id; takes precedence over --to")
	sendCmd.Flags().String("title", "", "Notification title")
	sendCmd.Flags().String("body", "", "Notification body")
	sendCmd.Flags().String("schedule-at", "", "Deliver at this RFC 3339 time instead of now")

	pushCmd.AddCommand(sendCmd)
	return pushCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print FamilyBoard version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("FamilyBoard v%s\n", Version)
			fmt.Printf("Build Date: %s\n", BuildDate)
			fmt.Printf("Git Commit: %s\n", GitCommit)
		},
	}
}

func runServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	local, err := localstore.Open(cfg.Local.Path)
	if err != nil {
		appLogger.Fatal("Failed to open local store", "error", err, "path", cfg.Local.Path)
	}
	defer local.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	taskRepo := repository.NewTaskRepository(db, appLogger)

	pushClient := notify.NewOneSignalClient(cfg.Push)
	registrar := notify.NewDeferredRegistrar(pushClient)
	registrar.Start(ctx)

	dispatch := services.NewNotificationService(
		notify.NewEmailJSClient(cfg.Email),
		pushClient,
		local,
		cfg.Email,
		m,
		nil,
		appLogger,
	)
	if !cfg.Email.Configured() {
		appLogger.Warn("Email delivery is not configured; reminders will be logged only")
	}
	if !pushClient.Configured() {
		appLogger.Warn("Push delivery is not configured")
	}

	engine := lifecycle.NewEngine(taskRepo, dispatch, local, cfg.Engine, m, nil, appLogger)
	authService := services.NewAuthService(local, registrar, cfg.JWT, cfg.Push, nil, appLogger)

	srv, err := server.New(cfg, server.Dependencies{
		DB:            db,
		Engine:        engine,
		Metrics:       m,
		Auth:          authService,
		Tasks:         services.NewTaskService(taskRepo, engine, local, nil, appLogger),
		Settings:      services.NewSettingsService(local, appLogger),
		Notifications: dispatch,
	}, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize server", "error", err)
	}

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		if err := engine.Run(ctx); err != nil {
			appLogger.Error("Task lifecycle engine failed", "error", err)
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		appLogger.Info("Starting FamilyBoard node",
			"port", cfg.Server.Port,
			"environment", cfg.App.Environment,
		)
		if err := srv.Start(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		appLogger.Error("Server failed", "error", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server shutdown failed", "error", err)
	}
	<-engineDone
	authService.WaitRegistrations()
}

func sendPush(req ports.PushRequest) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	dispatch := services.NewNotificationService(nil, notify.NewOneSignalClient(cfg.Push), nil, cfg.Email, nil, nil, appLogger)

	data, err := dispatch.SendPush(context.Background(), req)
	if err != nil {
		var perr *ports.ProviderError
		if errors.As(err, &perr) {
			log.Fatalf("Push failed: %v: %s", err, perr.Body)
		}
		log.Fatalf("Push failed: %v", err)
	}

	out, _ := json.MarshalIndent(data, "", "  ")
	fmt.Println(string(out))
}

func newMigrator(cfg *config.Config) (*migrate.Migrate, *database.DB) {
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	driver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		log.Fatalf("Failed to create migration driver: %v", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		cfg.Database.MigrationsPath,
		"postgres",
		driver,
	)
	if err != nil {
		log.Fatalf("Failed to create migration instance: %v", err)
	}
	return m, db
}

func runMigration(direction string, steps int) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	m, db := newMigrator(cfg)
	defer db.Close()

	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("Migration failed: %v", err)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("No migrations to run")
	} else {
		fmt.Printf("Migration %s completed successfully\n", direction)
	}
}

func showMigrationVersion() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	m, db := newMigrator(cfg)
	defer db.Close()

	version, dirty, err := m.Version()
	if err != nil {
		log.Fatalf("Failed to get migration version: %v", err)
	}

	fmt.Printf("Current migration version: %d\n", version)
	fmt.Printf("Dirty: %t\n", dirty)
}
