package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/config"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/syncjob"
	appHTTP "github.com/cmlabs-hris/timesheet-backend-go/internal/handler/http"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/attendanceapi"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/attendancexlsx"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/cron"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/database"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/repository/postgresql"
	externalSyncService "github.com/cmlabs-hris/timesheet-backend-go/internal/service/externalsync"
	reconciliationService "github.com/cmlabs-hris/timesheet-backend-go/internal/service/reconciliation"
	syncJobService "github.com/cmlabs-hris/timesheet-backend-go/internal/service/syncjob"
	timesheetService "github.com/cmlabs-hris/timesheet-backend-go/internal/service/timesheet"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgreSQLDB(cfg.DatabaseURL())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	tx := postgresql.NewTransactor(db)
	timesheetRepo := postgresql.NewTimesheetRepository(db)
	entryRepo := postgresql.NewEntryRepository(db)
	employeeRepo := postgresql.NewEmployeeRepository(db)
	syncJobRepo := postgresql.NewSyncJobRepository(db)

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)

	var provider attendance.Provider
	switch cfg.Provider.Type {
	case config.ProviderAPI:
		provider = attendanceapi.NewClient(ctx, attendanceapi.Config{
			BaseURL:      cfg.Provider.BaseURL,
			TokenURL:     cfg.Provider.TokenURL,
			ClientID:     cfg.Provider.ClientID,
			ClientSecret: cfg.Provider.ClientSecret,
			Scopes:       cfg.Provider.Scopes,
		})
	case config.ProviderXLSX:
		provider = attendancexlsx.NewProvider(cfg.Provider.InboxDir)
	}

	reconciliationSvc := reconciliationService.NewReconciliationService(tx, timesheetRepo, entryRepo, employeeRepo)
	timesheetSvc := timesheetService.NewTimesheetService(tx, timesheetRepo, entryRepo, employeeRepo, reconciliationSvc)
	entrySvc := timesheetService.NewEntryService(tx, timesheetRepo, entryRepo, employeeRepo, cfg.Policy.DefaultMaxDailyHours)
	externalSyncSvc := externalSyncService.NewService(tx, provider, timesheetRepo, entryRepo, employeeRepo, reconciliationSvc, cfg.Sync.LookbackDays)

	runners := reconciliationSvc.Runners()
	runners[syncjob.KindExternalSync] = externalSyncSvc
	syncJobSvc := syncJobService.NewSyncJobService(syncJobRepo, runners)
	if err := syncJobSvc.RecoverInterrupted(ctx); err != nil {
		return fmt.Errorf("recovering interrupted jobs: %w", err)
	}

	scheduler := cron.NewScheduler()
	cron.NewTimesheetJobs(reconciliationSvc, syncJobSvc).
		RegisterJobs(scheduler, cfg.Sync.AutoCreateInterval, cfg.Sync.ScheduleInterval)
	scheduler.Start()

	router := appHTTP.NewRouter(
		JWTService,
		appHTTP.RouterOptions{Env: cfg.App.Env, AllowedOrigins: cfg.App.CORSAllowedOrigins},
		appHTTP.NewTimesheetHandler(timesheetSvc),
		appHTTP.NewEntryHandler(entrySvc),
		appHTTP.NewSyncJobHandler(syncJobSvc),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server running", "addr", server.Addr, "env", cfg.App.Env, "provider", provider.Name())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		scheduler.Stop()
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}
	scheduler.Stop()
	if err := syncJobSvc.Wait(shutdownCtx); err != nil {
		slog.Warn("Background jobs still running at shutdown; they will be marked failed on next start", "error", err)
	}
	return nil
}
