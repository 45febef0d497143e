// Package modulemanager wires the application's modules together: each
// module registers itself at import time and is migrated and initialized
// in one pass at startup.
package modulemanager

import (
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/castellan/muse/internal/logger"
)

// Module defines the interface that all modules must implement
type Module interface {
	ID() string                // Unique identifier for the module
	Name() string              // Display name for the module
	Core() bool                // Whether this is a core module (cannot be disabled)
	Migrate(db *gorm.DB) error // Run database migrations
	Init() error               // Initialize the module
}

// ModuleRegistry manages module registration and initialization
type ModuleRegistry struct {
	modules         map[string]Module
	order           []string // registration order, also the init order
	disabledModules map[string]bool
	mu              sync.RWMutex
	initialized     bool
}

// Registry is the global module registry
var Registry = &ModuleRegistry{
	modules:         make(map[string]Module),
	disabledModules: make(map[string]bool),
}

// Register adds a module to the registry
func Register(m Module) {
	Registry.Register(m)
}

// Register adds a module to the registry
func (r *ModuleRegistry) Register(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		logger.Warn("module registered after initialization", "module", m.Name(), "id", m.ID())
	}

	if _, ok := r.modules[m.ID()]; !ok {
		r.order = append(r.order, m.ID())
	}
	r.modules[m.ID()] = m
	logger.Debug("module registered", "module", m.Name(), "id", m.ID())
}

// LoadAll migrates and initializes all registered modules
func LoadAll(db *gorm.DB, disabled []string) error {
	return Registry.LoadAll(db, disabled)
}

// LoadAll migrates and initializes all registered modules
func (r *ModuleRegistry) LoadAll(db *gorm.DB, disabled []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		logger.Warn("module system already initialized")
		return nil
	}

	for _, id := range disabled {
		r.disabledModules[id] = true
	}

	logger.Info("loading modules", "count", len(r.modules))

	// Modules load in registration order so later modules can depend on
	// earlier ones being initialized.
	for _, id := range r.order {
		module := r.modules[id]
		if r.disabledModules[id] {
			if module.Core() {
				return fmt.Errorf("attempted to disable core module: %s", id)
			}
			logger.Warn("skipping disabled module", "module", module.Name())
			continue
		}

		if err := module.Migrate(db); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", module.Name(), err)
		}
		if err := module.Init(); err != nil {
			return fmt.Errorf("failed to initialize %s: %w", module.Name(), err)
		}

		logger.Info("module loaded", "module", module.Name())
	}

	r.initialized = true
	return nil
}

// Get returns a registered module by id.
func (r *ModuleRegistry) Get(id string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[id]
	return m, ok
}
