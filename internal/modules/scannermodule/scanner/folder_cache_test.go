package scanner

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/castellan/muse/internal/database"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	dialector := postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	})
	db, err := gorm.Open(dialector, &gorm.Config{})
	require.NoError(t, err)
	return db, mock
}

func TestFolderCacheLoadKeysByRelativePath(t *testing.T) {
	db, mock := newMockDB(t)
	cache := NewFolderCache(db)

	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "media_folders" WHERE library_id = \$1`).
		WithArgs(uint32(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "library_id", "relative_path", "mod_time", "file_count"}).
			AddRow(1, 7, "", now, 2).
			AddRow(2, 7, "Rock", now, 5))

	loaded, err := cache.Load(7)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, 2, loaded[""].FileCount)
	assert.Equal(t, 5, loaded["Rock"].FileCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFolderCacheChanged(t *testing.T) {
	cache := NewFolderCache(nil)
	now := time.Now()
	snapshot := map[string]database.MediaFolder{
		"Rock": {RelativePath: "Rock", ModTime: now, FileCount: 3},
	}

	assert.False(t, cache.Changed(snapshot, "Rock", now, 3))
	assert.True(t, cache.Changed(snapshot, "Rock", now.Add(time.Second), 3))
	assert.True(t, cache.Changed(snapshot, "Rock", now, 4))
	assert.True(t, cache.Changed(snapshot, "Jazz", now, 0), "unknown folders count as changed")
}

func TestFolderCacheUpsertAndReload(t *testing.T) {
	env := newScanEnv(t)
	cache := env.manager.cache
	modTime := time.Now().Truncate(time.Second)

	require.NoError(t, cache.Upsert(1, "Rock", modTime, 3))
	require.NoError(t, cache.Upsert(1, "Rock", modTime.Add(time.Minute), 4))
	require.NoError(t, cache.Upsert(2, "Rock", modTime, 9))

	loaded, err := cache.Load(1)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, 4, loaded["Rock"].FileCount)
	assert.True(t, loaded["Rock"].ModTime.Equal(modTime.Add(time.Minute)))

	other, err := cache.Load(2)
	require.NoError(t, err)
	assert.Equal(t, 9, other["Rock"].FileCount)
}

func TestFolderCacheDeleteMissingScoped(t *testing.T) {
	env := newScanEnv(t)
	cache := env.manager.cache
	now := time.Now()

	require.NoError(t, cache.Upsert(1, "", now, 0))
	require.NoError(t, cache.Upsert(1, "Rock", now, 1))
	require.NoError(t, cache.Upsert(1, "Rock/Indie", now, 1))
	require.NoError(t, cache.Upsert(1, "Rockabilly", now, 1))
	require.NoError(t, cache.Upsert(1, "Jazz", now, 1))

	surviving := map[string]struct{}{"Rock": {}}
	pruned, err := cache.DeleteMissing(1, "Rock", surviving)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pruned, "only Rock/Indie is in scope and missing")

	loaded, err := cache.Load(1)
	require.NoError(t, err)
	assert.Len(t, loaded, 4)
	_, ok := loaded["Rock/Indie"]
	assert.False(t, ok)
	_, ok = loaded["Rockabilly"]
	assert.True(t, ok, "sibling prefix is out of scope")
}

func TestFolderCacheDeleteMissingWholeLibrary(t *testing.T) {
	env := newScanEnv(t)
	cache := env.manager.cache
	now := time.Now()

	require.NoError(t, cache.Upsert(1, "", now, 0))
	require.NoError(t, cache.Upsert(1, "Rock", now, 1))
	require.NoError(t, cache.Upsert(2, "Rock", now, 1))

	pruned, err := cache.DeleteMissing(1, "", map[string]struct{}{"": {}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, pruned)

	other, err := cache.Load(2)
	require.NoError(t, err)
	assert.Len(t, other, 1, "other libraries are untouched")
}
