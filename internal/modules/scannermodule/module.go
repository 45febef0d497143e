// Package scannermodule hosts the scan orchestrator that turns coalesced
// change targets into executed library scans.
package scannermodule

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/castellan/muse/internal/config"
	"github.com/castellan/muse/internal/database"
	"github.com/castellan/muse/internal/events"
	"github.com/castellan/muse/internal/logger"
	"github.com/castellan/muse/internal/modules/librarymodule"
	"github.com/castellan/muse/internal/modules/modulemanager"
	"github.com/castellan/muse/internal/modules/scannermodule/scanner"
	"github.com/castellan/muse/internal/tasks"
)

const (
	// ModuleID is the unique identifier for the scanner module
	ModuleID = "system.scanner"

	// ModuleName is the display name for the scanner module
	ModuleName = "Media Scanner"
)

// Module implements the scanner functionality as a module
type Module struct {
	db        *gorm.DB
	eventBus  events.EventBus
	libraries *librarymodule.Module
	cfg       config.ScannerConfig
	taskLimit int

	manager  *scanner.Manager
	registry *tasks.Registry
}

// NewModule creates a new scanner module
func NewModule(db *gorm.DB, eventBus events.EventBus, libraries *librarymodule.Module, cfg config.ScannerConfig, taskLimit int) *Module {
	m := &Module{
		db:        db,
		eventBus:  eventBus,
		libraries: libraries,
		cfg:       cfg,
		taskLimit: taskLimit,
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

// Migrate performs any necessary database migrations
func (m *Module) Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&database.MediaFolder{}, &database.MediaFile{})
}

// Init initializes the scanner module
func (m *Module) Init() error {
	if m.libraries.Manager() == nil || m.libraries.Lifecycle() == nil {
		return fmt.Errorf("scanner module requires the library module")
	}

	m.registry = tasks.NewRegistry(m.taskLimit)
	m.manager = scanner.NewManager(m.db, m.eventBus, m.libraries.Manager(), m.libraries.Lifecycle(), m.registry, m.cfg)

	logger.Info("scanner module initialized", "batch_size", m.cfg.BatchSize)
	return nil
}

// Manager returns the scan orchestrator.
func (m *Module) Manager() *scanner.Manager {
	return m.manager
}

// Registry returns the background task registry.
func (m *Module) Registry() *tasks.Registry {
	return m.registry
}
