// Package scanner executes scan work: walking library folders, keeping
// file and folder records current, and reporting progress through the
// library scan lifecycle.
package scanner

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/castellan/muse/internal/config"
	"github.com/castellan/muse/internal/database"
	"github.com/castellan/muse/internal/events"
	"github.com/castellan/muse/internal/logger"
	"github.com/castellan/muse/internal/modules/librarymodule"
	"github.com/castellan/muse/internal/modules/watchermodule"
	"github.com/castellan/muse/internal/tasks"
	"github.com/castellan/muse/internal/utils"
)

// ScanStats summarizes one scan pass.
type ScanStats struct {
	FilesSeen      int   `json:"files_seen"`
	FilesUpserted  int   `json:"files_upserted"`
	FilesPruned    int64 `json:"files_pruned"`
	FoldersScanned int   `json:"folders_scanned"`
	FoldersPruned  int64 `json:"folders_pruned"`
	Errors         int   `json:"errors"`
}

// Manager is the scan orchestrator. It validates and serializes scan
// requests per library through the scan lifecycle, and executes the walk
// off the calling goroutine via the task registry.
type Manager struct {
	db        *gorm.DB
	eventBus  events.EventBus
	libraries *librarymodule.Manager
	lifecycle *librarymodule.Lifecycle
	registry  *tasks.Registry
	cache     *FolderCache
	files     *fileScanner
	throttle  *loadThrottle
	cfg       config.ScannerConfig
}

// NewManager creates a scan manager.
func NewManager(
	db *gorm.DB,
	eventBus events.EventBus,
	libraries *librarymodule.Manager,
	lifecycle *librarymodule.Lifecycle,
	registry *tasks.Registry,
	cfg config.ScannerConfig,
) *Manager {
	return &Manager{
		db:        db,
		eventBus:  eventBus,
		libraries: libraries,
		lifecycle: lifecycle,
		registry:  registry,
		cache:     NewFolderCache(db),
		files:     &fileScanner{db: db},
		throttle:  newLoadThrottle(cfg.ThrottleEnabled, cfg.CPUHighWater, cfg.ThrottlePause),
		cfg:       cfg,
	}
}

// Dispatch implements watchermodule.Dispatcher. Targets are grouped by
// library; a library already scanning is skipped (guard rejection, not a
// fault) and its changes will be picked up by a later scan.
func (m *Manager) Dispatch(targets []watchermodule.ScanTarget) {
	byLibrary := make(map[uint32][]string)
	for _, t := range targets {
		byLibrary[t.LibraryID] = append(byLibrary[t.LibraryID], t.FolderPath)
	}

	for libraryID, folders := range byLibrary {
		if _, err := m.StartScan(libraryID, folders); err != nil {
			if errors.Is(err, librarymodule.ErrScanAlreadyRunning) {
				logger.Info("scan already in flight, skipping dispatch", "library_id", libraryID)
				continue
			}
			logger.Error("failed to start scan", "library_id", libraryID, "error", err)
		}
	}
}

// StartScan marks the library scanning and launches the walk as a
// background task. folders holds relative folder scopes; an empty string
// (or an empty slice) means the whole library.
func (m *Manager) StartScan(libraryID uint32, folders []string) (string, error) {
	library, err := m.libraries.Get(libraryID)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(library.RootPath); err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: root %s missing for library %d",
			librarymodule.ErrLibraryNotFound, library.RootPath, library.ID)
	}

	scopes := normalizeScopes(folders)
	scanType := "incremental"
	if len(scopes) == 1 && scopes[0] == "" {
		scanType = "full"
	}

	if err := m.lifecycle.Start(libraryID, scanType); err != nil {
		return "", err
	}

	taskName := fmt.Sprintf("scan:library:%d", libraryID)
	taskID := m.registry.Start(taskName, func() (interface{}, error) {
		stats, err := m.scan(library, scopes)
		if err != nil {
			if failErr := m.lifecycle.Fail(libraryID, err.Error()); failErr != nil {
				logger.Error("failed to record scan failure", "library_id", libraryID, "error", failErr)
			}
			return stats, err
		}
		if err := m.lifecycle.Complete(libraryID, stats.FilesSeen); err != nil {
			logger.Error("failed to record scan completion", "library_id", libraryID, "error", err)
		}
		return stats, nil
	})

	return taskID, nil
}

// ScanSync runs a scan on the calling goroutine. It obeys the same
// lifecycle guard as StartScan.
func (m *Manager) ScanSync(libraryID uint32, folders []string) (*ScanStats, error) {
	library, err := m.libraries.Get(libraryID)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(library.RootPath); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: root %s missing for library %d",
			librarymodule.ErrLibraryNotFound, library.RootPath, library.ID)
	}

	scopes := normalizeScopes(folders)
	if err := m.lifecycle.Start(libraryID, "manual"); err != nil {
		return nil, err
	}

	stats, err := m.scan(library, scopes)
	if err != nil {
		if failErr := m.lifecycle.Fail(libraryID, err.Error()); failErr != nil {
			logger.Error("failed to record scan failure", "library_id", libraryID, "error", failErr)
		}
		return stats, err
	}
	if err := m.lifecycle.Complete(libraryID, stats.FilesSeen); err != nil {
		return stats, err
	}
	return stats, nil
}

// TaskStatus exposes background scan results for polling consumers.
func (m *Manager) TaskStatus(taskID string) (tasks.Result, bool) {
	return m.registry.Status(taskID)
}

// scan walks every scope, then prunes records the walk did not touch.
func (m *Manager) scan(library *database.Library, scopes []string) (*ScanStats, error) {
	start := time.Now()
	stats := &ScanStats{}

	cache, err := m.cache.Load(library.ID)
	if err != nil {
		return stats, err
	}

	total := 0
	for _, scope := range scopes {
		n, err := m.countFiles(library, scope)
		if err != nil {
			return stats, err
		}
		total += n
	}

	processed := 0
	for _, scope := range scopes {
		surviving := make(map[string]struct{})
		if err := m.scanDir(library, scope, cache, stats, surviving, start, &processed, total); err != nil {
			return stats, err
		}

		filesPruned, err := m.files.pruneMissing(library.ID, scope, start)
		if err != nil {
			return stats, err
		}
		stats.FilesPruned += filesPruned

		foldersPruned, err := m.cache.DeleteMissing(library.ID, scope, surviving)
		if err != nil {
			return stats, err
		}
		stats.FoldersPruned += foldersPruned
	}

	logger.Info("scan finished",
		"library_id", library.ID,
		"files_seen", stats.FilesSeen,
		"files_upserted", stats.FilesUpserted,
		"files_pruned", stats.FilesPruned,
		"folders", stats.FoldersScanned,
		"errors", stats.Errors,
		"duration", time.Since(start).String())

	return stats, nil
}

// scanDir processes one folder and recurses into its subfolders. A folder
// whose cached snapshot is unchanged only gets its files' last_seen
// stamped; its subfolders still carry their own snapshots and are visited
// regardless.
func (m *Manager) scanDir(
	library *database.Library,
	rel string,
	cache map[string]database.MediaFolder,
	stats *ScanStats,
	surviving map[string]struct{},
	seenAt time.Time,
	processed *int,
	total int,
) error {
	abs := filepath.Join(library.RootPath, filepath.FromSlash(rel))

	info, err := os.Stat(abs)
	if err != nil {
		// A folder vanished between discovery and the walk; it will be
		// pruned with the rest.
		logger.Debug("folder vanished during scan", "library_id", library.ID, "path", abs)
		stats.Errors++
		return nil
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		logger.Warn("cannot read folder", "library_id", library.ID, "path", abs, "error", err)
		stats.Errors++
		return nil
	}

	var mediaFiles []os.DirEntry
	var subdirs []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			if !strings.HasPrefix(name, ".") {
				subdirs = append(subdirs, name)
			}
			continue
		}
		if utils.IsRelevantChange(name) {
			mediaFiles = append(mediaFiles, entry)
		}
	}

	surviving[rel] = struct{}{}
	stats.FoldersScanned++
	stats.FilesSeen += len(mediaFiles)

	if !m.cache.Changed(cache, rel, info.ModTime(), len(mediaFiles)) {
		if err := m.files.markSeen(library.ID, rel, seenAt); err != nil {
			return err
		}
		*processed += len(mediaFiles)
	} else {
		batch := 0
		for _, entry := range mediaFiles {
			fileAbs := filepath.Join(abs, entry.Name())
			fileInfo, err := entry.Info()
			if err != nil {
				logger.Debug("cannot stat file", "path", fileAbs, "error", err)
				stats.Errors++
				continue
			}

			written, err := m.files.processFile(library.ID, fileAbs, joinRel(rel, entry.Name()), fileInfo, seenAt)
			if err != nil {
				logger.Warn("failed to process file", "path", fileAbs, "error", err)
				stats.Errors++
				continue
			}
			if written {
				stats.FilesUpserted++
			}

			*processed++
			batch++
			if batch >= m.cfg.BatchSize {
				batch = 0
				if err := m.lifecycle.Progress(library.ID, *processed, total); err != nil {
					logger.Debug("progress update rejected", "library_id", library.ID, "error", err)
				}
				m.throttle.maybePause()
			}
		}

		if err := m.cache.Upsert(library.ID, rel, info.ModTime(), len(mediaFiles)); err != nil {
			return err
		}
	}

	sort.Strings(subdirs)
	for _, sub := range subdirs {
		if err := m.scanDir(library, joinRel(rel, sub), cache, stats, surviving, seenAt, processed, total); err != nil {
			return err
		}
	}
	return nil
}

// countFiles sizes a scope up front so progress can be reported against a
// real total.
func (m *Manager) countFiles(library *database.Library, scope string) (int, error) {
	root := filepath.Join(library.RootPath, filepath.FromSlash(scope))
	count := 0
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable entries are handled during the walk proper
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && p != root {
				return filepath.SkipDir
			}
			return nil
		}
		if utils.IsRelevantChange(p) {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to size scan scope %q: %w", scope, err)
	}
	return count, nil
}

// normalizeScopes dedupes the requested folders; a whole-library scope
// absorbs the rest. An empty request means the whole library.
func normalizeScopes(folders []string) []string {
	if len(folders) == 0 {
		return []string{""}
	}
	seen := make(map[string]struct{}, len(folders))
	scopes := make([]string, 0, len(folders))
	for _, f := range folders {
		f = strings.Trim(path.Clean(filepath.ToSlash(f)), "/")
		if f == "." {
			f = ""
		}
		if f == "" {
			return []string{""}
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		scopes = append(scopes, f)
	}
	sort.Strings(scopes)
	return scopes
}

func joinRel(rel, name string) string {
	if rel == "" {
		return name
	}
	return rel + "/" + name
}
