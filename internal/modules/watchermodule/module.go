package watchermodule

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/castellan/muse/internal/config"
	"github.com/castellan/muse/internal/events"
	"github.com/castellan/muse/internal/logger"
	"github.com/castellan/muse/internal/modules/librarymodule"
	"github.com/castellan/muse/internal/modules/modulemanager"
)

const (
	// ModuleID is the unique identifier for the watcher module
	ModuleID = "system.watcher"

	// ModuleName is the display name for the watcher module
	ModuleName = "Change Watcher"
)

// Module implements change detection as a module
type Module struct {
	eventBus   events.EventBus
	libraries  *librarymodule.Module
	dispatcher Dispatcher
	cfg        config.WatcherConfig

	coordinator *Coordinator
}

// NewModule creates a new watcher module. The dispatcher receives the
// coalesced scan targets.
func NewModule(eventBus events.EventBus, libraries *librarymodule.Module, dispatcher Dispatcher, cfg config.WatcherConfig) *Module {
	m := &Module{
		eventBus:   eventBus,
		libraries:  libraries,
		dispatcher: dispatcher,
		cfg:        cfg,
	}
	modulemanager.Register(m)
	return m
}

// ID returns the unique module identifier
func (m *Module) ID() string {
	return ModuleID
}

// Name returns the module display name
func (m *Module) Name() string {
	return ModuleName
}

// Core returns whether this is a core module
func (m *Module) Core() bool {
	return true
}

// Migrate performs any necessary database migrations. The watcher keeps
// all its state in memory; there is nothing to migrate.
func (m *Module) Migrate(db *gorm.DB) error {
	return nil
}

// Init initializes the watcher module
func (m *Module) Init() error {
	if m.libraries.Manager() == nil {
		return fmt.Errorf("watcher module requires the library module")
	}

	m.coordinator = NewCoordinator(m.libraries.Manager(), m.eventBus, m.dispatcher, m.cfg)
	logger.Info("watcher module initialized",
		"debounce_window", m.cfg.DebounceWindow, "poll_interval", m.cfg.PollInterval)
	return nil
}

// Coordinator returns the watch coordinator.
func (m *Module) Coordinator() *Coordinator {
	return m.coordinator
}
