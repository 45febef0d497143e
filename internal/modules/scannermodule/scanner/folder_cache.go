package scanner

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/castellan/muse/internal/database"
)

// FolderCache is the persisted per-library snapshot of folder modification
// times and direct file counts. Quick scans consult it to skip folders
// whose contents have not moved since the last pass.
type FolderCache struct {
	db *gorm.DB
}

// NewFolderCache creates a folder cache over the given database.
func NewFolderCache(db *gorm.DB) *FolderCache {
	return &FolderCache{db: db}
}

// Load returns the cached snapshot for a library keyed by relative folder
// path ("" is the root itself).
func (fc *FolderCache) Load(libraryID uint32) (map[string]database.MediaFolder, error) {
	var rows []database.MediaFolder
	if err := fc.db.Where("library_id = ?", libraryID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load folder cache: %w", err)
	}

	cache := make(map[string]database.MediaFolder, len(rows))
	for _, row := range rows {
		cache[row.RelativePath] = row
	}
	return cache, nil
}

// Changed reports whether a folder differs from its cached snapshot. A
// folder with no cache row counts as changed.
func (fc *FolderCache) Changed(cache map[string]database.MediaFolder, rel string, modTime time.Time, fileCount int) bool {
	row, ok := cache[rel]
	if !ok {
		return true
	}
	return row.FileCount != fileCount || !row.ModTime.Equal(modTime)
}

// Upsert records a folder's current snapshot.
func (fc *FolderCache) Upsert(libraryID uint32, rel string, modTime time.Time, fileCount int) error {
	row := database.MediaFolder{
		LibraryID:    libraryID,
		RelativePath: rel,
		ModTime:      modTime,
		FileCount:    fileCount,
	}
	err := fc.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "library_id"}, {Name: "relative_path"}},
		DoUpdates: clause.AssignmentColumns([]string{"mod_time", "file_count", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert folder cache row: %w", err)
	}
	return nil
}

// DeleteMissing removes cache rows under the given scope whose folders no
// longer exist on disk. surviving holds the relative paths seen by the
// scan; scope "" covers the whole library.
func (fc *FolderCache) DeleteMissing(libraryID uint32, scope string, surviving map[string]struct{}) (int64, error) {
	var rows []database.MediaFolder
	query := fc.db.Where("library_id = ?", libraryID)
	if scope != "" {
		query = query.Where("relative_path = ? OR relative_path LIKE ?", scope, scope+"/%")
	}
	if err := query.Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("failed to list folder cache rows: %w", err)
	}

	var pruned int64
	for _, row := range rows {
		if _, ok := surviving[row.RelativePath]; ok {
			continue
		}
		if err := fc.db.Delete(&database.MediaFolder{}, row.ID).Error; err != nil {
			return pruned, fmt.Errorf("failed to prune folder cache row: %w", err)
		}
		pruned++
	}
	return pruned, nil
}
