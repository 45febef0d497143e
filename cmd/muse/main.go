// Command muse runs the media library watch/scan coordinator: it loads
// configuration, connects the database, wires the modules together, and
// watches every enabled library until interrupted.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/castellan/muse/internal/config"
	"github.com/castellan/muse/internal/database"
	"github.com/castellan/muse/internal/events"
	"github.com/castellan/muse/internal/logger"
	"github.com/castellan/muse/internal/modules/librarymodule"
	"github.com/castellan/muse/internal/modules/modulemanager"
	"github.com/castellan/muse/internal/modules/scannermodule"
	"github.com/castellan/muse/internal/modules/watchermodule"
)

func main() {
	cfg, err := config.Load(config.DefaultConfigPath())
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.Logging.Level)

	if err := database.Initialize(cfg.Database); err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	db := database.GetDB()

	eventBus := events.NewEventBus(256)
	if err := eventBus.Start(context.Background()); err != nil {
		logger.Error("failed to start event bus", "error", err)
		os.Exit(1)
	}

	libraryModule := librarymodule.NewModule(db, eventBus, cfg.Library.BaseDir)
	scannerModule := scannermodule.NewModule(db, eventBus, libraryModule, cfg.Scanner, cfg.Tasks.HistoryLimit)
	watcherModule := watchermodule.NewModule(eventBus, libraryModule,
		watchermodule.DispatcherFunc(func(targets []watchermodule.ScanTarget) {
			scannerModule.Manager().Dispatch(targets)
		}), cfg.Watcher)

	if err := modulemanager.LoadAll(db, nil); err != nil {
		logger.Error("failed to load modules", "error", err)
		os.Exit(1)
	}

	coordinator := watcherModule.Coordinator()
	if err := coordinator.StartAll(); err != nil {
		logger.Error("failed to start watchers", "error", err)
		os.Exit(1)
	}

	logger.Info("muse started", "base_dir", cfg.Library.BaseDir)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	coordinator.StopAll()
	scannerModule.Registry().Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := eventBus.Stop(ctx); err != nil {
		logger.Warn("event bus did not stop cleanly", "error", err)
	}
}
