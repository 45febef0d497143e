package librarymodule

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/castellan/muse/internal/database"
	"github.com/castellan/muse/internal/events"
	"github.com/castellan/muse/internal/logger"
)

// Lifecycle tracks per-library scan state on the Library row:
// idle -> scanning -> {complete, error}, with complete/error re-entrant
// into scanning. At most one scan per library is admitted at a time.
type Lifecycle struct {
	db       *gorm.DB
	eventBus events.EventBus
}

// NewLifecycle creates a scan lifecycle tracker.
func NewLifecycle(db *gorm.DB, eventBus events.EventBus) *Lifecycle {
	return &Lifecycle{db: db, eventBus: eventBus}
}

// Start transitions the library into scanning. It fails fast with
// ErrScanAlreadyRunning if a scan is already in flight for the library.
func (l *Lifecycle) Start(libraryID uint32, scanType string) error {
	var library database.Library
	if err := l.db.First(&library, libraryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: id %d", ErrLibraryNotFound, libraryID)
		}
		return fmt.Errorf("failed to load library %d: %w", libraryID, err)
	}

	if library.ScanStatus == database.ScanStatusScanning {
		return fmt.Errorf("%w: library %d", ErrScanAlreadyRunning, libraryID)
	}

	updates := map[string]interface{}{
		"scan_status":   database.ScanStatusScanning,
		"scan_progress": 0,
		"scan_total":    0,
		"scan_error":    "",
	}
	if err := l.db.Model(&database.Library{}).Where("id = ?", libraryID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to mark library %d scanning: %w", libraryID, err)
	}

	if l.eventBus != nil {
		event := events.NewSystemEvent(
			events.EventScanStarted,
			"Library Scan Started",
			fmt.Sprintf("Started %s scan for library %q", scanType, library.Name),
		)
		event.Data = map[string]interface{}{
			"library_id": libraryID,
			"scan_type":  scanType,
			"path":       library.RootPath,
		}
		l.eventBus.PublishAsync(event)
	}

	return nil
}

// Progress updates the running counters. It is only valid while the
// library is scanning.
func (l *Lifecycle) Progress(libraryID uint32, processed, total int) error {
	result := l.db.Model(&database.Library{}).
		Where("id = ? AND scan_status = ?", libraryID, database.ScanStatusScanning).
		Updates(map[string]interface{}{
			"scan_progress": processed,
			"scan_total":    total,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update scan progress for library %d: %w", libraryID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("library %d is not scanning", libraryID)
	}

	if l.eventBus != nil {
		event := events.NewSystemEvent(
			events.EventScanProgress,
			"Library Scan Progress",
			fmt.Sprintf("Library %d scanned %d of %d files", libraryID, processed, total),
		)
		event.Data = map[string]interface{}{
			"library_id": libraryID,
			"processed":  processed,
			"total":      total,
		}
		l.eventBus.PublishAsync(event)
	}

	return nil
}

// Complete transitions scanning -> complete, stamps scanned_at, and pins
// the progress counter to the final total.
func (l *Lifecycle) Complete(libraryID uint32, total int) error {
	now := time.Now()
	result := l.db.Model(&database.Library{}).
		Where("id = ? AND scan_status = ?", libraryID, database.ScanStatusScanning).
		Updates(map[string]interface{}{
			"scan_status":   database.ScanStatusComplete,
			"scan_progress": total,
			"scan_total":    total,
			"scanned_at":    &now,
			"scan_error":    "",
		})
	if result.Error != nil {
		return fmt.Errorf("failed to complete scan for library %d: %w", libraryID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("library %d is not scanning", libraryID)
	}

	if l.eventBus != nil {
		event := events.NewSystemEvent(
			events.EventScanCompleted,
			"Library Scan Completed",
			fmt.Sprintf("Scan completed for library %d (%d files)", libraryID, total),
		)
		event.Data = map[string]interface{}{
			"library_id": libraryID,
			"total":      total,
		}
		l.eventBus.PublishAsync(event)
	}

	return nil
}

// Fail transitions scanning -> error and records the failure message.
// Nothing retries automatically; the next Start call is the recovery path.
func (l *Lifecycle) Fail(libraryID uint32, message string) error {
	result := l.db.Model(&database.Library{}).
		Where("id = ? AND scan_status = ?", libraryID, database.ScanStatusScanning).
		Updates(map[string]interface{}{
			"scan_status": database.ScanStatusError,
			"scan_error":  message,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to record scan failure for library %d: %w", libraryID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("library %d is not scanning", libraryID)
	}

	if l.eventBus != nil {
		event := events.NewSystemEvent(
			events.EventScanFailed,
			"Library Scan Failed",
			fmt.Sprintf("Scan failed for library %d: %s", libraryID, message),
		)
		event.Data = map[string]interface{}{
			"library_id": libraryID,
			"error":      message,
		}
		l.eventBus.PublishAsync(event)
	}

	return nil
}

// RecoverInterrupted handles libraries stuck in scanning after a restart.
// Each is logged and returned to idle (not marked failed) so the next scan
// proceeds normally rather than attempting resumption.
func (l *Lifecycle) RecoverInterrupted() error {
	var interrupted []database.Library
	if err := l.db.Where("scan_status = ?", database.ScanStatusScanning).Find(&interrupted).Error; err != nil {
		return fmt.Errorf("failed to query interrupted scans: %w", err)
	}

	for _, lib := range interrupted {
		logger.Warn("library scan was interrupted by restart",
			"library_id", lib.ID, "library", lib.Name,
			"progress", lib.ScanProgress, "total", lib.ScanTotal)

		if err := l.db.Model(&database.Library{}).Where("id = ?", lib.ID).
			Update("scan_status", database.ScanStatusIdle).Error; err != nil {
			return fmt.Errorf("failed to reset interrupted library %d: %w", lib.ID, err)
		}
	}
	return nil
}
