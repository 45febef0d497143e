package modulemanager

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeModule struct {
	id       string
	core     bool
	migrated *[]string
	inited   *[]string
	initErr  error
}

func (m *fakeModule) ID() string   { return m.id }
func (m *fakeModule) Name() string { return m.id }
func (m *fakeModule) Core() bool   { return m.core }

func (m *fakeModule) Migrate(db *gorm.DB) error {
	*m.migrated = append(*m.migrated, m.id)
	return nil
}

func (m *fakeModule) Init() error {
	if m.initErr != nil {
		return m.initErr
	}
	*m.inited = append(*m.inited, m.id)
	return nil
}

func newTestRegistry() *ModuleRegistry {
	return &ModuleRegistry{
		modules:         make(map[string]Module),
		disabledModules: make(map[string]bool),
	}
}

func TestLoadAllRunsInRegistrationOrder(t *testing.T) {
	registry := newTestRegistry()
	var migrated, inited []string

	registry.Register(&fakeModule{id: "system.library", core: true, migrated: &migrated, inited: &inited})
	registry.Register(&fakeModule{id: "system.scanner", core: true, migrated: &migrated, inited: &inited})
	registry.Register(&fakeModule{id: "system.watcher", core: true, migrated: &migrated, inited: &inited})

	require.NoError(t, registry.LoadAll(nil, nil))

	want := []string{"system.library", "system.scanner", "system.watcher"}
	assert.Equal(t, want, migrated)
	assert.Equal(t, want, inited)
}

func TestLoadAllSkipsDisabledModules(t *testing.T) {
	registry := newTestRegistry()
	var migrated, inited []string

	registry.Register(&fakeModule{id: "core", core: true, migrated: &migrated, inited: &inited})
	registry.Register(&fakeModule{id: "optional", migrated: &migrated, inited: &inited})

	require.NoError(t, registry.LoadAll(nil, []string{"optional"}))

	assert.Equal(t, []string{"core"}, inited)
}

func TestLoadAllRefusesToDisableCoreModule(t *testing.T) {
	registry := newTestRegistry()
	var migrated, inited []string

	registry.Register(&fakeModule{id: "core", core: true, migrated: &migrated, inited: &inited})

	err := registry.LoadAll(nil, []string{"core"})
	assert.Error(t, err)
}

func TestLoadAllStopsOnInitFailure(t *testing.T) {
	registry := newTestRegistry()
	var migrated, inited []string

	registry.Register(&fakeModule{id: "first", migrated: &migrated, inited: &inited,
		initErr: errors.New("bad state")})
	registry.Register(&fakeModule{id: "second", migrated: &migrated, inited: &inited})

	err := registry.LoadAll(nil, nil)
	require.Error(t, err)
	assert.Empty(t, inited)
	assert.Equal(t, []string{"first"}, migrated)
}

func TestGet(t *testing.T) {
	registry := newTestRegistry()
	var migrated, inited []string

	module := &fakeModule{id: "system.library", migrated: &migrated, inited: &inited}
	registry.Register(module)

	got, ok := registry.Get("system.library")
	require.True(t, ok)
	assert.Equal(t, module, got)

	_, ok = registry.Get("nope")
	assert.False(t, ok)
}

func TestRegisterSameIDReplaces(t *testing.T) {
	registry := newTestRegistry()
	var migrated, inited []string

	registry.Register(&fakeModule{id: "dup", migrated: &migrated, inited: &inited})
	registry.Register(&fakeModule{id: "dup", migrated: &migrated, inited: &inited})

	require.NoError(t, registry.LoadAll(nil, nil))
	assert.Equal(t, []string{"dup"}, inited, "re-registration does not duplicate the init pass")
}
