package database

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// WatchMode enumerates per-library change-detection strategies
type WatchMode string

const (
	WatchModeOff   WatchMode = "off"
	WatchModeEvent WatchMode = "event"
	WatchModePoll  WatchMode = "poll"
)

// Valid reports whether the mode is one of the known values.
func (m WatchMode) Valid() bool {
	switch m {
	case WatchModeOff, WatchModeEvent, WatchModePoll:
		return true
	}
	return false
}

func (m WatchMode) Value() (driver.Value, error) {
	return string(m), nil
}

func (m *WatchMode) Scan(value interface{}) error {
	if value == nil {
		*m = ""
		return nil
	}
	switch s := value.(type) {
	case string:
		*m = WatchMode(s)
	case []byte:
		*m = WatchMode(s)
	default:
		return fmt.Errorf("cannot scan %T into WatchMode", value)
	}
	return nil
}

// ScanStatus enumerates the scan lifecycle states of a library
type ScanStatus string

const (
	ScanStatusIdle     ScanStatus = "idle"
	ScanStatusScanning ScanStatus = "scanning"
	ScanStatusComplete ScanStatus = "complete"
	ScanStatusError    ScanStatus = "error"
)

func (s ScanStatus) Value() (driver.Value, error) {
	return string(s), nil
}

func (s *ScanStatus) Scan(value interface{}) error {
	if value == nil {
		*s = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*s = ScanStatus(v)
	case []byte:
		*s = ScanStatus(v)
	default:
		return fmt.Errorf("cannot scan %T into ScanStatus", value)
	}
	return nil
}

// Library represents a named, disjoint directory subtree registered for
// media tracking. RootPath is stored canonical and absolute, always at or
// under the configured base directory, and only changes through an
// overlap-checked update.
type Library struct {
	ID           uint32     `gorm:"primaryKey" json:"id"`
	Name         string     `gorm:"uniqueIndex;not null" json:"name"`
	RootPath     string     `gorm:"not null" json:"root_path"`
	WatchMode    WatchMode  `gorm:"type:text;not null;default:'off'" json:"watch_mode"`
	IsEnabled    bool       `gorm:"not null;default:true" json:"is_enabled"`
	ScanStatus   ScanStatus `gorm:"type:text;not null;default:'idle'" json:"scan_status"`
	ScanProgress int        `gorm:"default:0" json:"scan_progress"`
	ScanTotal    int        `gorm:"default:0" json:"scan_total"`
	ScannedAt    *time.Time `json:"scanned_at,omitempty"`
	ScanError    string     `json:"scan_error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// MediaFolder is the persisted per-folder snapshot used to decide which
// subtrees changed between scans. One row per folder below a library root;
// RelativePath is "" for the root itself.
type MediaFolder struct {
	ID           uint32    `gorm:"primaryKey" json:"id"`
	LibraryID    uint32    `gorm:"not null;uniqueIndex:idx_media_folders_library_path" json:"library_id"`
	RelativePath string    `gorm:"uniqueIndex:idx_media_folders_library_path" json:"relative_path"`
	ModTime      time.Time `gorm:"not null" json:"mod_time"`
	FileCount    int       `gorm:"not null;default:0" json:"file_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MediaFile represents a tracked media file within a library
type MediaFile struct {
	ID        uint32    `gorm:"primaryKey" json:"id"`
	LibraryID uint32    `gorm:"not null;uniqueIndex:idx_media_files_library_path" json:"library_id"`
	Path      string    `gorm:"not null;uniqueIndex:idx_media_files_library_path" json:"path"` // relative to the library root
	SizeBytes int64     `gorm:"not null" json:"size_bytes"`
	ModTime   time.Time `gorm:"not null" json:"mod_time"`
	Title     string    `json:"title,omitempty"`
	Artist    string    `json:"artist,omitempty"`
	Album     string    `json:"album,omitempty"`
	TrackNo   int       `json:"track_no,omitempty"`
	LastSeen  time.Time `gorm:"not null" json:"last_seen"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
