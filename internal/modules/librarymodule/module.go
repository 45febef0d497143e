// Package librarymodule owns library records: root validation, scan
// lifecycle state, and CRUD.
package librarymodule

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/castellan/muse/internal/database"
	"github.com/castellan/muse/internal/events"
	"github.com/castellan/muse/internal/logger"
	"github.com/castellan/muse/internal/modules/modulemanager"
)

const (
	// ModuleID is the unique identifier for the library module
	ModuleID = "system.library"

	// ModuleName is the display name for the library module
	ModuleName = "Library Manager"
)

// Module implements library management as a module
type Module struct {
	db        *gorm.DB
	eventBus  events.EventBus
	baseDir   string
	manager   *Manager
	lifecycle *Lifecycle
}

// NewModule creates a new library module
func NewModule(db *gorm.DB, eventBus events.EventBus, baseDir string) *Module {
	m := &Module{
		db:       db,
		eventBus: eventBus,
		baseDir:  baseDir,
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
	return db.AutoMigrate(&database.Library{})
}

// Init initializes the library module
func (m *Module) Init() error {
	boundary, err := NewRootBoundary(m.baseDir)
	if err != nil {
		return fmt.Errorf("library base directory rejected: %w", err)
	}

	m.manager = NewManager(m.db, m.eventBus, boundary)
	m.lifecycle = NewLifecycle(m.db, m.eventBus)

	if err := m.lifecycle.RecoverInterrupted(); err != nil {
		return err
	}

	logger.Info("library module initialized", "base_dir", boundary.Base())
	return nil
}

// Manager returns the library manager.
func (m *Module) Manager() *Manager {
	return m.manager
}

// Lifecycle returns the scan lifecycle tracker.
func (m *Module) Lifecycle() *Lifecycle {
	return m.lifecycle
}
