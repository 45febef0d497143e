package scanner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"gorm.io/gorm"

	"github.com/castellan/muse/internal/database"
	"github.com/castellan/muse/internal/logger"
	"github.com/castellan/muse/internal/utils"
)

// fileScanner persists individual media files, reading embedded tags from
// audio formats that carry them.
type fileScanner struct {
	db *gorm.DB
}

// processFile brings the MediaFile row for relPath up to date. Unchanged
// files (same size and mtime) only get their last_seen stamped; changed or
// new files are re-read. Returns whether the row was (re)written.
func (fs *fileScanner) processFile(libraryID uint32, absPath, relPath string, info os.FileInfo, seenAt time.Time) (bool, error) {
	var existing database.MediaFile
	err := fs.db.Where("library_id = ? AND path = ?", libraryID, relPath).First(&existing).Error
	switch {
	case err == nil:
		if existing.SizeBytes == info.Size() && existing.ModTime.Equal(info.ModTime()) {
			return false, fs.db.Model(&database.MediaFile{}).Where("id = ?", existing.ID).
				Update("last_seen", seenAt).Error
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// New file, fall through to the full write.
	default:
		return false, fmt.Errorf("failed to look up %s: %w", relPath, err)
	}

	record := database.MediaFile{
		LibraryID: libraryID,
		Path:      relPath,
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
		LastSeen:  seenAt,
	}
	fs.fillMetadata(absPath, &record)

	if existing.ID != 0 {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
		if err := fs.db.Save(&record).Error; err != nil {
			return false, fmt.Errorf("failed to update %s: %w", relPath, err)
		}
		return true, nil
	}

	if err := fs.db.Create(&record).Error; err != nil {
		return false, fmt.Errorf("failed to save %s: %w", relPath, err)
	}
	return true, nil
}

// fillMetadata populates the tag fields. Audio files are read with
// dhowden/tag; anything unreadable falls back to a filename-derived title
// and never fails the scan.
func (fs *fileScanner) fillMetadata(absPath string, record *database.MediaFile) {
	record.Title = titleFromFilename(absPath)

	if !utils.IsAudioFile(absPath) {
		return
	}

	file, err := os.Open(absPath)
	if err != nil {
		logger.Debug("cannot open file for tag reading", "path", absPath, "error", err)
		return
	}
	defer file.Close()

	meta, err := tag.ReadFrom(file)
	if err != nil {
		logger.Debug("no readable tags", "path", absPath, "error", err)
		return
	}

	if title := strings.TrimSpace(meta.Title()); title != "" {
		record.Title = title
	}
	record.Artist = strings.TrimSpace(meta.Artist())
	record.Album = strings.TrimSpace(meta.Album())
	track, _ := meta.Track()
	record.TrackNo = track
}

// markSeen bulk-stamps last_seen for the direct files of a folder whose
// cached snapshot is unchanged, so they survive pruning without per-file
// reads. folder "" addresses files directly under the library root.
func (fs *fileScanner) markSeen(libraryID uint32, folder string, seenAt time.Time) error {
	query := fs.db.Model(&database.MediaFile{}).Where("library_id = ?", libraryID)
	if folder == "" {
		query = query.Where("path NOT LIKE ?", "%/%")
	} else {
		query = query.Where("path LIKE ? AND path NOT LIKE ?", folder+"/%", folder+"/%/%")
	}
	if err := query.Update("last_seen", seenAt).Error; err != nil {
		return fmt.Errorf("failed to mark folder %q seen: %w", folder, err)
	}
	return nil
}

// pruneMissing deletes file rows under scope that the scan did not touch.
func (fs *fileScanner) pruneMissing(libraryID uint32, scope string, seenBefore time.Time) (int64, error) {
	query := fs.db.Where("library_id = ? AND last_seen < ?", libraryID, seenBefore)
	if scope != "" {
		query = query.Where("path LIKE ?", scope+"/%")
	}
	result := query.Delete(&database.MediaFile{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune missing files: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func titleFromFilename(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
