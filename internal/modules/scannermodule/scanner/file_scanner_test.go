package scanner

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castellan/muse/internal/database"
)

func TestTitleFromFilename(t *testing.T) {
	assert.Equal(t, "song", titleFromFilename("/media/Rock/song.mp3"))
	assert.Equal(t, "01 - Intro", titleFromFilename("01 - Intro.flac"))
	assert.Equal(t, "cover", titleFromFilename("cover.jpg"))
}

func TestProcessFileSkipsUnchangedFiles(t *testing.T) {
	env := newScanEnv(t)
	files := env.manager.files

	dir := t.TempDir()
	abs := filepath.Join(dir, "song.mp3")
	require.NoError(t, os.WriteFile(abs, []byte("audio"), 0644))
	info, err := os.Stat(abs)
	require.NoError(t, err)

	firstSeen := time.Now().Add(-time.Hour)
	written, err := files.processFile(1, abs, "song.mp3", info, firstSeen)
	require.NoError(t, err)
	assert.True(t, written)

	// Same size and mtime: only last_seen moves.
	secondSeen := time.Now()
	written, err = files.processFile(1, abs, "song.mp3", info, secondSeen)
	require.NoError(t, err)
	assert.False(t, written)

	var row database.MediaFile
	require.NoError(t, env.db.Where("library_id = ? AND path = ?", 1, "song.mp3").First(&row).Error)
	assert.True(t, row.LastSeen.After(firstSeen))
	assert.EqualValues(t, 1, env.fileCount(t, 1))
}

func TestMarkSeenStampsOnlyDirectFiles(t *testing.T) {
	env := newScanEnv(t)
	files := env.manager.files
	old := time.Now().Add(-time.Hour)

	seed := []string{"loose.mp3", "Rock/a.mp3", "Rock/Indie/b.mp3", "Rockabilly/c.mp3"}
	for _, p := range seed {
		require.NoError(t, env.db.Create(&database.MediaFile{
			LibraryID: 1, Path: p, LastSeen: old, ModTime: old,
		}).Error)
	}

	now := time.Now()
	require.NoError(t, files.markSeen(1, "Rock", now))

	stamped := func(path string) bool {
		var row database.MediaFile
		require.NoError(t, env.db.Where("library_id = ? AND path = ?", 1, path).First(&row).Error)
		return row.LastSeen.After(old)
	}

	assert.True(t, stamped("Rock/a.mp3"))
	assert.False(t, stamped("Rock/Indie/b.mp3"), "nested files carry their own folder snapshot")
	assert.False(t, stamped("Rockabilly/c.mp3"))
	assert.False(t, stamped("loose.mp3"))

	require.NoError(t, files.markSeen(1, "", now))
	assert.True(t, stamped("loose.mp3"))
	assert.False(t, stamped("Rock/Indie/b.mp3"))
}

func TestPruneMissingScoped(t *testing.T) {
	env := newScanEnv(t)
	files := env.manager.files
	old := time.Now().Add(-time.Hour)
	cutoff := time.Now()

	seed := []string{"loose.mp3", "Rock/a.mp3", "Rock/Indie/b.mp3", "Jazz/c.mp3"}
	for _, p := range seed {
		require.NoError(t, env.db.Create(&database.MediaFile{
			LibraryID: 1, Path: p, LastSeen: old, ModTime: old,
		}).Error)
	}

	pruned, err := files.pruneMissing(1, "Rock", cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 2, pruned)
	assert.EqualValues(t, 2, env.fileCount(t, 1))

	pruned, err = files.pruneMissing(1, "", cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 2, pruned)
	assert.EqualValues(t, 0, env.fileCount(t, 1))
}
