// Package utils contains shared file-classification helpers.
package utils

import (
	"path/filepath"
	"strings"
)

// MediaExtensions contains the file extensions considered relevant for
// library tracking: audio, playlists, and folder artwork.
var MediaExtensions = map[string]bool{
	// Audio formats
	".mp3":  true,
	".flac": true,
	".wav":  true,
	".m4a":  true,
	".aac":  true,
	".ogg":  true,
	".wma":  true,
	".opus": true,
	".aiff": true,
	".ape":  true,

	// Playlists
	".m3u":  true,
	".m3u8": true,
	".pls":  true,

	// Artwork
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// AudioExtensions is the subset of MediaExtensions that carries embedded
// tag metadata.
var AudioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".ogg":  true,
	".wav":  true,
	".aiff": true,
}

// osSentinelFiles are well-known junk files emitted by desktop environments.
var osSentinelFiles = map[string]bool{
	".DS_Store":   true,
	"Thumbs.db":   true,
	"desktop.ini": true,
}

// IsMediaFile reports whether the path has a tracked media extension.
func IsMediaFile(path string) bool {
	return MediaExtensions[strings.ToLower(filepath.Ext(path))]
}

// IsAudioFile reports whether the path has a taggable audio extension.
func IsAudioFile(path string) bool {
	return AudioExtensions[strings.ToLower(filepath.Ext(path))]
}

// IsIgnoredFile reports whether the file should be excluded from change
// tracking: hidden files, editor/download temp files, and OS sentinels.
func IsIgnoredFile(path string) bool {
	name := filepath.Base(path)
	if name == "" {
		return true
	}
	if strings.HasPrefix(name, ".") {
		return true
	}
	if osSentinelFiles[name] {
		return true
	}
	if strings.HasSuffix(name, "~") {
		return true
	}
	if strings.EqualFold(filepath.Ext(name), ".tmp") {
		return true
	}
	return false
}

// IsRelevantChange combines the media allow-list with the ignore rules;
// only paths passing both feed the pending-change set.
func IsRelevantChange(path string) bool {
	return !IsIgnoredFile(path) && IsMediaFile(path)
}
