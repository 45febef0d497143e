package tasks

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRecordsSuccess(t *testing.T) {
	registry := NewRegistry(8)

	id := registry.Start("count-files", func() (interface{}, error) {
		return 42, nil
	})
	registry.Wait()

	result, ok := registry.Status(id)
	require.True(t, ok)
	assert.Equal(t, StatusComplete, result.Status)
	assert.Equal(t, "count-files", result.Name)
	assert.Equal(t, 42, result.Value)
	assert.Empty(t, result.Error)
	require.NotNil(t, result.FinishedAt)
	assert.False(t, result.FinishedAt.Before(result.StartedAt))
}

func TestRegistryRecordsFailure(t *testing.T) {
	registry := NewRegistry(8)

	id := registry.Start("doomed", func() (interface{}, error) {
		return nil, errors.New("disk gone")
	})
	registry.Wait()

	result, ok := registry.Status(id)
	require.True(t, ok)
	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, "disk gone", result.Error)
	require.NotNil(t, result.FinishedAt)
}

func TestRegistryReportsRunning(t *testing.T) {
	registry := NewRegistry(8)
	release := make(chan struct{})

	id := registry.Start("slow", func() (interface{}, error) {
		<-release
		return nil, nil
	})

	result, ok := registry.Status(id)
	require.True(t, ok)
	assert.Equal(t, StatusRunning, result.Status)
	assert.Nil(t, result.FinishedAt)

	close(release)
	registry.Wait()

	result, ok = registry.Status(id)
	require.True(t, ok)
	assert.Equal(t, StatusComplete, result.Status)
}

func TestRegistryUnknownID(t *testing.T) {
	registry := NewRegistry(8)

	_, ok := registry.Status("nope")
	assert.False(t, ok)
}

func TestRegistryEvictsOldestFinishedFirst(t *testing.T) {
	registry := NewRegistry(2)

	var ids []string
	for i := 0; i < 4; i++ {
		id := registry.Start("quick", func() (interface{}, error) {
			return nil, nil
		})
		registry.Wait()
		ids = append(ids, id)
	}

	assert.Equal(t, 2, registry.Len())

	_, ok := registry.Status(ids[0])
	assert.False(t, ok, "oldest entry should be evicted")
	_, ok = registry.Status(ids[1])
	assert.False(t, ok)
	_, ok = registry.Status(ids[2])
	assert.True(t, ok)
	_, ok = registry.Status(ids[3])
	assert.True(t, ok)
}

func TestRegistryNeverEvictsRunningTasks(t *testing.T) {
	registry := NewRegistry(2)
	release := make(chan struct{})
	var started sync.WaitGroup

	var running []string
	for i := 0; i < 5; i++ {
		started.Add(1)
		id := registry.Start("held", func() (interface{}, error) {
			started.Done()
			<-release
			return nil, nil
		})
		running = append(running, id)
	}
	started.Wait()

	// Over the cap, but nothing is evictable while every task runs.
	assert.Equal(t, 5, registry.Len())
	for _, id := range running {
		result, ok := registry.Status(id)
		require.True(t, ok)
		assert.Equal(t, StatusRunning, result.Status)
	}

	close(release)
	registry.Wait()

	// Finishing makes them evictable down to the cap.
	assert.Equal(t, 2, registry.Len())
}

func TestRegistryDefaultsLimit(t *testing.T) {
	registry := NewRegistry(0)

	for i := 0; i < 70; i++ {
		registry.Start("quick", func() (interface{}, error) {
			return nil, nil
		})
	}
	registry.Wait()

	assert.LessOrEqual(t, registry.Len(), 64)
}
