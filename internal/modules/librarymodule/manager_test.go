package librarymodule

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castellan/muse/internal/database"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	boundary, base := newTestBoundary(t)
	return NewManager(newTestDB(t), nil, boundary), base
}

func TestManagerCreateStoresCanonicalRoot(t *testing.T) {
	manager, base := newTestManager(t)
	mkdir(t, base, "music")

	library, err := manager.Create("Music", "music", database.WatchModeEvent)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "music"), library.RootPath)
	assert.Equal(t, database.WatchModeEvent, library.WatchMode)
	assert.True(t, library.IsEnabled)
	assert.Equal(t, database.ScanStatusIdle, library.ScanStatus)

	got, err := manager.Get(library.ID)
	require.NoError(t, err)
	assert.Equal(t, library.RootPath, got.RootPath)
}

func TestManagerCreateValidation(t *testing.T) {
	manager, base := newTestManager(t)
	mkdir(t, base, "music")

	_, err := manager.Create("", "music", database.WatchModeOff)
	assert.Error(t, err)

	_, err = manager.Create("Music", "music", database.WatchMode("sometimes"))
	assert.Error(t, err)

	_, err = manager.Create("Music", "nowhere", database.WatchModeOff)
	assert.ErrorIs(t, err, ErrInvalidRoot)
}

func TestManagerCreateRejectsOverlappingRoots(t *testing.T) {
	manager, base := newTestManager(t)
	mkdir(t, base, "music", "rock", "indie")
	mkdir(t, base, "music", "jazz")

	_, err := manager.Create("Rock", "music/rock", database.WatchModeOff)
	require.NoError(t, err)

	_, err = manager.Create("Indie", "music/rock/indie", database.WatchModeOff)
	assert.ErrorIs(t, err, ErrRootOverlap)

	_, err = manager.Create("Everything", "music", database.WatchModeOff)
	assert.ErrorIs(t, err, ErrRootOverlap)

	_, err = manager.Create("Jazz", "music/jazz", database.WatchModeOff)
	assert.NoError(t, err)
}

func TestManagerUpdateRoot(t *testing.T) {
	manager, base := newTestManager(t)
	mkdir(t, base, "old")
	mkdir(t, base, "new")
	mkdir(t, base, "other")

	library, err := manager.Create("Music", "old", database.WatchModeOff)
	require.NoError(t, err)
	_, err = manager.Create("Other", "other", database.WatchModeOff)
	require.NoError(t, err)

	updated, err := manager.UpdateRoot(library.ID, "new")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "new"), updated.RootPath)

	got, err := manager.Get(library.ID)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "new"), got.RootPath)

	// Moving back onto its own current root is allowed.
	_, err = manager.UpdateRoot(library.ID, "new")
	assert.NoError(t, err)

	// Moving onto another library's root is not.
	_, err = manager.UpdateRoot(library.ID, "other")
	assert.ErrorIs(t, err, ErrRootOverlap)
}

func TestManagerUpdateRootUnknownLibrary(t *testing.T) {
	manager, base := newTestManager(t)
	mkdir(t, base, "music")

	_, err := manager.UpdateRoot(42, "music")
	assert.ErrorIs(t, err, ErrLibraryNotFound)
}

func TestManagerSetWatchMode(t *testing.T) {
	manager, base := newTestManager(t)
	mkdir(t, base, "music")

	library, err := manager.Create("Music", "music", database.WatchModeOff)
	require.NoError(t, err)

	require.NoError(t, manager.SetWatchMode(library.ID, database.WatchModePoll))
	got, err := manager.Get(library.ID)
	require.NoError(t, err)
	assert.Equal(t, database.WatchModePoll, got.WatchMode)

	assert.Error(t, manager.SetWatchMode(library.ID, database.WatchMode("bogus")))
	assert.ErrorIs(t, manager.SetWatchMode(999, database.WatchModeOff), ErrLibraryNotFound)
}

func TestManagerSetEnabled(t *testing.T) {
	manager, base := newTestManager(t)
	mkdir(t, base, "music")

	library, err := manager.Create("Music", "music", database.WatchModeOff)
	require.NoError(t, err)

	require.NoError(t, manager.SetEnabled(library.ID, false))
	got, err := manager.Get(library.ID)
	require.NoError(t, err)
	assert.False(t, got.IsEnabled)

	assert.ErrorIs(t, manager.SetEnabled(999, true), ErrLibraryNotFound)
}

func TestManagerDeleteRemovesRecords(t *testing.T) {
	manager, base := newTestManager(t)
	mkdir(t, base, "music")

	library, err := manager.Create("Music", "music", database.WatchModeOff)
	require.NoError(t, err)

	db := manager.db
	require.NoError(t, db.Create(&database.MediaFolder{
		LibraryID: library.ID, RelativePath: "rock", FileCount: 1,
	}).Error)
	require.NoError(t, db.Create(&database.MediaFile{
		LibraryID: library.ID, Path: "rock/song.mp3", SizeBytes: 1,
	}).Error)

	require.NoError(t, manager.Delete(library.ID))

	_, err = manager.Get(library.ID)
	assert.ErrorIs(t, err, ErrLibraryNotFound)

	var folders, files int64
	require.NoError(t, db.Model(&database.MediaFolder{}).Where("library_id = ?", library.ID).Count(&folders).Error)
	require.NoError(t, db.Model(&database.MediaFile{}).Where("library_id = ?", library.ID).Count(&files).Error)
	assert.Zero(t, folders)
	assert.Zero(t, files)

	assert.ErrorIs(t, manager.Delete(library.ID), ErrLibraryNotFound)
}

func TestManagerListWatchable(t *testing.T) {
	manager, base := newTestManager(t)
	mkdir(t, base, "a")
	mkdir(t, base, "b")
	mkdir(t, base, "c")

	_, err := manager.Create("Off", "a", database.WatchModeOff)
	require.NoError(t, err)
	evented, err := manager.Create("Evented", "b", database.WatchModeEvent)
	require.NoError(t, err)
	polled, err := manager.Create("Polled", "c", database.WatchModePoll)
	require.NoError(t, err)

	require.NoError(t, manager.SetEnabled(polled.ID, false))

	watchable, err := manager.ListWatchable()
	require.NoError(t, err)
	require.Len(t, watchable, 1)
	assert.Equal(t, evented.ID, watchable[0].ID)

	all, err := manager.List()
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
