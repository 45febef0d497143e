package librarymodule

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/castellan/muse/internal/database"
	"github.com/castellan/muse/internal/events"
	"github.com/castellan/muse/internal/logger"
)

// Manager owns library records: creation, root updates, watch-mode
// persistence, and lookups. Every root mutation passes through the
// RootBoundary before it touches the database.
type Manager struct {
	db       *gorm.DB
	eventBus events.EventBus
	boundary *RootBoundary
}

// NewManager creates a library manager anchored at the given boundary.
func NewManager(db *gorm.DB, eventBus events.EventBus, boundary *RootBoundary) *Manager {
	return &Manager{db: db, eventBus: eventBus, boundary: boundary}
}

// Boundary exposes the root validator, for collaborators that need to
// re-validate paths.
func (m *Manager) Boundary() *RootBoundary {
	return m.boundary
}

// Create registers a new library after validating its root. The stored
// root is the canonical absolute path.
func (m *Manager) Create(name, rawRoot string, mode database.WatchMode) (*database.Library, error) {
	if name == "" {
		return nil, fmt.Errorf("library name must not be empty")
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("invalid watch mode: %s", mode)
	}

	root, err := m.boundary.Normalize(rawRoot)
	if err != nil {
		return nil, err
	}

	existing, err := m.List()
	if err != nil {
		return nil, err
	}
	if err := m.boundary.CheckDisjoint(root, existing, 0); err != nil {
		return nil, err
	}

	library := database.Library{
		Name:       name,
		RootPath:   root,
		WatchMode:  mode,
		IsEnabled:  true,
		ScanStatus: database.ScanStatusIdle,
	}
	if err := m.db.Create(&library).Error; err != nil {
		return nil, fmt.Errorf("failed to create library: %w", err)
	}

	logger.Info("library created", "library_id", library.ID, "name", name, "root", root)

	if m.eventBus != nil {
		event := events.NewSystemEvent(
			events.EventLibraryCreated,
			"Library Created",
			fmt.Sprintf("Library %q registered at %s", name, root),
		)
		event.Data = map[string]interface{}{
			"library_id": library.ID,
			"root":       root,
			"watch_mode": string(mode),
		}
		m.eventBus.PublishAsync(event)
	}

	return &library, nil
}

// UpdateRoot re-points a library at a new root. This is the only path that
// may change a root, and it repeats the full validation, skipping the
// library itself in the disjointness check so a self-update is allowed.
func (m *Manager) UpdateRoot(libraryID uint32, rawRoot string) (*database.Library, error) {
	library, err := m.Get(libraryID)
	if err != nil {
		return nil, err
	}

	root, err := m.boundary.Normalize(rawRoot)
	if err != nil {
		return nil, err
	}

	existing, err := m.List()
	if err != nil {
		return nil, err
	}
	if err := m.boundary.CheckDisjoint(root, existing, libraryID); err != nil {
		return nil, err
	}

	if err := m.db.Model(&database.Library{}).Where("id = ?", libraryID).
		Update("root_path", root).Error; err != nil {
		return nil, fmt.Errorf("failed to update library root: %w", err)
	}
	library.RootPath = root

	logger.Info("library root updated", "library_id", libraryID, "root", root)

	if m.eventBus != nil {
		event := events.NewSystemEvent(
			events.EventLibraryUpdated,
			"Library Updated",
			fmt.Sprintf("Library %q root moved to %s", library.Name, root),
		)
		event.Data = map[string]interface{}{
			"library_id": libraryID,
			"root":       root,
		}
		m.eventBus.PublishAsync(event)
	}

	return library, nil
}

// SetWatchMode persists a library's change-detection mode. Switching the
// live watcher is the coordinator's job; it calls this to record the mode.
func (m *Manager) SetWatchMode(libraryID uint32, mode database.WatchMode) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid watch mode: %s", mode)
	}

	result := m.db.Model(&database.Library{}).Where("id = ?", libraryID).
		Update("watch_mode", mode)
	if result.Error != nil {
		return fmt.Errorf("failed to persist watch mode: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", ErrLibraryNotFound, libraryID)
	}
	return nil
}

// SetEnabled toggles a library without deleting its records.
func (m *Manager) SetEnabled(libraryID uint32, enabled bool) error {
	result := m.db.Model(&database.Library{}).Where("id = ?", libraryID).
		Update("is_enabled", enabled)
	if result.Error != nil {
		return fmt.Errorf("failed to update library: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", ErrLibraryNotFound, libraryID)
	}
	return nil
}

// Delete removes a library and its folder and file records.
func (m *Manager) Delete(libraryID uint32) error {
	library, err := m.Get(libraryID)
	if err != nil {
		return err
	}

	err = m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("library_id = ?", libraryID).Delete(&database.MediaFile{}).Error; err != nil {
			return err
		}
		if err := tx.Where("library_id = ?", libraryID).Delete(&database.MediaFolder{}).Error; err != nil {
			return err
		}
		return tx.Delete(&database.Library{}, libraryID).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete library %d: %w", libraryID, err)
	}

	logger.Info("library deleted", "library_id", libraryID, "name", library.Name)

	if m.eventBus != nil {
		event := events.NewSystemEvent(
			events.EventLibraryDeleted,
			"Library Deleted",
			fmt.Sprintf("Library %q removed", library.Name),
		)
		event.Data = map[string]interface{}{"library_id": libraryID}
		m.eventBus.PublishAsync(event)
	}

	return nil
}

// Get loads one library.
func (m *Manager) Get(libraryID uint32) (*database.Library, error) {
	var library database.Library
	if err := m.db.First(&library, libraryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrLibraryNotFound, libraryID)
		}
		return nil, fmt.Errorf("failed to load library %d: %w", libraryID, err)
	}
	return &library, nil
}

// List returns every registered library.
func (m *Manager) List() ([]database.Library, error) {
	var libraries []database.Library
	if err := m.db.Order("id").Find(&libraries).Error; err != nil {
		return nil, fmt.Errorf("failed to list libraries: %w", err)
	}
	return libraries, nil
}

// ListWatchable returns the libraries eligible for change detection:
// enabled, with a watch mode other than off.
func (m *Manager) ListWatchable() ([]database.Library, error) {
	var libraries []database.Library
	err := m.db.Where("is_enabled = ? AND watch_mode <> ?", true, database.WatchModeOff).
		Order("id").Find(&libraries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list watchable libraries: %w", err)
	}
	return libraries, nil
}
