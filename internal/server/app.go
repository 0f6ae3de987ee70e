// Package server initializes and runs the upload admission server.
// It opens the database, applies migrations, wires the services and
// starts the HTTP front-end with graceful shutdown on OS signals.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/receiptpipe/internal/logging"
	"github.com/dmitrijs2005/receiptpipe/internal/server/config"
	"github.com/dmitrijs2005/receiptpipe/internal/server/httpapi"
	"github.com/dmitrijs2005/receiptpipe/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/receiptpipe/internal/server/services"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	manager    repomanager.RepositoryManager
	httpServer *httpapi.Server
}

func NewApp(c *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	manager, err := repomanager.NewPostgresRepositoryManager(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := manager.RunMigrations(context.Background()); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	presigner := services.NewPresigner(c)
	uploads := services.NewUploadService(presigner, c, logger)
	admission := services.NewAdmissionService(manager, presigner, c, logger)
	jobs := services.NewJobService(manager, logger)
	queue := services.NewQueueService(manager, c.QueueName, logger)
	results := services.NewResultsService(manager, logger)

	httpServer := httpapi.NewServer(c, logger, uploads, admission, jobs, queue, results, presigner)

	return &App{config: c, logger: logger, manager: manager, httpServer: httpServer}, nil
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

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.httpServer.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
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
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.manager.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err.Error())
	}
}
