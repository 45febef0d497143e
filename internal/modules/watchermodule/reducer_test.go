package watchermodule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReduceTargetsMapsFilesToParentFolders(t *testing.T) {
	targets := ReduceTargets(1, []string{
		"Rock/song1.mp3",
		"Jazz/song2.mp3",
	})

	assert.Equal(t, []ScanTarget{
		{LibraryID: 1, FolderPath: "Jazz"},
		{LibraryID: 1, FolderPath: "Rock"},
	}, targets)
}

func TestReduceTargetsCoalescesBurstInOneFolder(t *testing.T) {
	paths := []string{
		"Rock/song0.mp3", "Rock/song1.mp3", "Rock/song2.mp3",
		"Rock/song3.mp3", "Rock/song4.mp3", "Rock/song5.mp3",
		"Rock/song6.mp3", "Rock/song7.mp3", "Rock/song8.mp3",
		"Rock/song9.mp3",
	}

	targets := ReduceTargets(5, paths)

	assert.Equal(t, []ScanTarget{{LibraryID: 5, FolderPath: "Rock"}}, targets)
}

func TestReduceTargetsAncestorAbsorbsDescendants(t *testing.T) {
	targets := ReduceTargets(1, []string{
		"Rock/cover.jpg",
		"Rock/Indie/song.mp3",
		"Rock/Indie/Shoegaze/song.flac",
		"Jazz/song.mp3",
	})

	assert.Equal(t, []ScanTarget{
		{LibraryID: 1, FolderPath: "Jazz"},
		{LibraryID: 1, FolderPath: "Rock"},
	}, targets)
}

func TestReduceTargetsRootLevelFileMeansWholeLibrary(t *testing.T) {
	targets := ReduceTargets(3, []string{
		"loose-track.mp3",
		"Rock/song.mp3",
		"Jazz/Bebop/song.mp3",
	})

	assert.Equal(t, []ScanTarget{{LibraryID: 3}}, targets)
}

func TestReduceTargetsOrderIndependent(t *testing.T) {
	forward := ReduceTargets(1, []string{"A/x.mp3", "B/C/y.mp3", "B/z.mp3"})
	reverse := ReduceTargets(1, []string{"B/z.mp3", "B/C/y.mp3", "A/x.mp3"})

	assert.Equal(t, forward, reverse)
}

func TestReduceTargetsIdempotent(t *testing.T) {
	paths := []string{"A/x.mp3", "A/x.mp3", "A/x.mp3"}

	targets := ReduceTargets(1, paths)

	assert.Equal(t, []ScanTarget{{LibraryID: 1, FolderPath: "A"}}, targets)
}

func TestReduceTargetsSiblingPrefixNotAbsorbed(t *testing.T) {
	targets := ReduceTargets(1, []string{
		"Rock/a.mp3",
		"Rockabilly/b.mp3",
	})

	assert.Equal(t, []ScanTarget{
		{LibraryID: 1, FolderPath: "Rock"},
		{LibraryID: 1, FolderPath: "Rockabilly"},
	}, targets)
}

func TestReduceTargetsEmptyInput(t *testing.T) {
	assert.Empty(t, ReduceTargets(1, nil))
}

func TestParentFolder(t *testing.T) {
	assert.Equal(t, "", parentFolder("song.mp3"))
	assert.Equal(t, "Rock", parentFolder("Rock/song.mp3"))
	assert.Equal(t, "Rock/Indie", parentFolder("Rock/Indie/song.mp3"))
	assert.Equal(t, "Rock", parentFolder("/Rock/song.mp3/"))
}
