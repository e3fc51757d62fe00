// Package server initializes and runs the sealbox server: it opens the
// database, runs migrations, wires repositories, services, and the HTTP
// endpoint, and drives the background reminder dispatcher until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/sealbox/internal/blobstore"
	"github.com/dmitrijs2005/sealbox/internal/familydir"
	"github.com/dmitrijs2005/sealbox/internal/logging"
	"github.com/dmitrijs2005/sealbox/internal/notify"
	"github.com/dmitrijs2005/sealbox/internal/ratelimit"
	"github.com/dmitrijs2005/sealbox/internal/server/config"
	"github.com/dmitrijs2005/sealbox/internal/server/httpapi"
	"github.com/dmitrijs2005/sealbox/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sealbox/internal/server/services"
)

// duplicateSendTTL is how long the advisory limiter remembers a delivered
// reminder. Losing this state only risks one extra mail; at-most-once is
// enforced by the storage layer.
const duplicateSendTTL = 24 * time.Hour

type App struct {
	config          *config.Config
	logger          logging.Logger
	db              *sql.DB
	reminderService *services.ReminderService
	httpServer      *httpapi.Server
}

func NewApp(cfg *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	blobs := blobstore.NewS3Store(blobstore.S3Config{
		RootUser:     cfg.S3RootUser,
		RootPassword: cfg.S3RootPassword,
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
		URLExpiry:    cfg.PresignURLExpiry,
	})

	families, err := loadFamilyDirectory(cfg)
	if err != nil {
		return nil, err
	}

	sender := notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, nil)
	// User ids double as mail addresses here; the identity provider issues
	// them that way.
	notifier := notify.NewEmailReminderNotifier(sender, func(ctx context.Context, userID string) (string, error) {
		return userID, nil
	})

	reminderService := services.NewReminderService(db, rm, notifier, ratelimit.NewTTLLimiter(duplicateSendTTL))
	letterService := services.NewLetterService(db, rm, cfg, blobs, families, reminderService)
	tokenService := services.NewShareTokenService(db, rm, blobs)

	handler := httpapi.NewHandler(letterService, tokenService, []byte(cfg.SecretKey), logger)
	httpServer := httpapi.NewServer(cfg.EndpointAddrHTTP, handler, logger)

	return &App{
		config:          cfg,
		logger:          logger,
		db:              db,
		reminderService: reminderService,
		httpServer:      httpServer,
	}, nil
}

func loadFamilyDirectory(cfg *config.Config) (services.FamilyDirectory, error) {
	if cfg.FamilyDirectoryFile == "" {
		return familydir.New(nil), nil
	}
	d, err := familydir.LoadFile(cfg.FamilyDirectoryFile)
	if err != nil {
		return nil, fmt.Errorf("family directory error: %w", err)
	}
	return d, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) runHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.httpServer.ListenAndServe(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// runReminderDispatcher invokes a dispatch pass on every tick. Overlapping
// or repeated passes are safe; each reminder transition is independently
// atomic.
func (app *App) runReminderDispatcher(ctx context.Context) {
	ticker := time.NewTicker(app.config.ReminderDispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := app.reminderService.DispatchDue(ctx, time.Now(), app.config.ReminderDispatchBatch)
			if err != nil {
				app.logger.Error(ctx, "reminder dispatch failed", "error", err)
				continue
			}
			if stats.Sent > 0 || stats.Failed > 0 || stats.Skipped > 0 {
				app.logger.Info(ctx, "reminder dispatch pass",
					"sent", stats.Sent, "failed", stats.Failed, "skipped", stats.Skipped)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runReminderDispatcher(ctx)
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, err.Error())
	}

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), err.Error())
	}
}
