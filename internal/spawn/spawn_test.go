package spawn

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/realmgo/internal/model"
	"github.com/udisondev/realmgo/internal/world"
)

type flatMap struct{}

func (flatMap) Width() int                                            { return 128 }
func (flatMap) Height() int                                           { return 128 }
func (flatMap) IsDoor(model.Position) bool                            { return false }
func (flatMap) DoorDestination(model.Position) (model.Position, bool) { return model.Position{}, false }

func TestLoadEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spawns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
spawns:
  - {template: 7, name: rat, x: 10, y: 12, hp: 25, exp: 5}
  - {template: 9, name: skeleton, x: 40, y: 41, hp: 80, exp: 20, weapon_level: 2, respawn: 10}
`), 0o644))

	entries, err := LoadEntries(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "rat", entries[0].Name)
	assert.Equal(t, 25, entries[0].HP)
	assert.Equal(t, 2, entries[1].WeaponLevel)
	assert.Equal(t, 10, entries[1].Respawn)
}

func TestLoadEntriesRejectsBadEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spawns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
spawns:
  - {template: 0, name: ghost, x: 1, y: 1, hp: 10}
`), 0o644))

	_, err := LoadEntries(path)
	assert.Error(t, err)
}

func TestSpawnAllPlacesMobs(t *testing.T) {
	w := world.New(flatMap{})
	mgr := NewManager(w, []Entry{
		{Template: 7, Name: "rat", X: 10, Y: 12, HP: 25, Exp: 5},
		{Template: 9, Name: "skeleton", X: 40, Y: 41, HP: 80, Exp: 20, WeaponLevel: 3},
	})

	require.Equal(t, 2, mgr.SpawnAll())

	var mobs []*model.Mob
	for instance := range mgr.byMob {
		mob, ok := w.GetMob(instance)
		require.True(t, ok)
		mobs = append(mobs, mob)
	}
	require.Len(t, mobs, 2)

	for _, mob := range mobs {
		if mob.TemplateID() == 9 {
			assert.Equal(t, 3, mob.WeaponLevel())
			assert.Equal(t, model.Position{X: 40, Y: 41}, mob.Position())
		}
	}
}

func TestExpRewardTracksLiveMobs(t *testing.T) {
	w := world.New(flatMap{})
	mgr := NewManager(w, []Entry{{Template: 7, Name: "rat", X: 10, Y: 12, HP: 25, Exp: 5}})
	mgr.SpawnAll()

	var instance uint32
	for i := range mgr.byMob {
		instance = i
	}
	assert.Equal(t, 5, mgr.ExpReward(instance))
	assert.Equal(t, 0, mgr.ExpReward(999))
}

func TestHandleDeathRespawnsAfterDelay(t *testing.T) {
	w := world.New(flatMap{})
	mgr := NewManager(w, []Entry{{Template: 7, Name: "rat", X: 10, Y: 12, HP: 25, Respawn: 1}})
	mgr.SpawnAll()

	var first uint32
	for i := range mgr.byMob {
		first = i
	}
	w.RemoveEntity(first)
	mgr.HandleDeath(first)

	// Gone immediately, back after the per-entry delay.
	assert.Empty(t, mgr.byMob)
	require.Eventually(t, func() bool {
		mgr.mu.Lock()
		defer mgr.mu.Unlock()
		return len(mgr.byMob) == 1
	}, 3*time.Second, 50*time.Millisecond)

	var second uint32
	mgr.mu.Lock()
	for i := range mgr.byMob {
		second = i
	}
	mgr.mu.Unlock()
	assert.NotEqual(t, first, second, "respawned mob must get a fresh instance")
	_, ok := w.GetMob(second)
	assert.True(t, ok)
}

func TestStopCancelsRespawn(t *testing.T) {
	w := world.New(flatMap{})
	mgr := NewManager(w, []Entry{{Template: 7, Name: "rat", X: 10, Y: 12, HP: 25, Respawn: 1}})
	mgr.SpawnAll()

	var instance uint32
	for i := range mgr.byMob {
		instance = i
	}
	mgr.HandleDeath(instance)
	mgr.Stop()
	mgr.pending.Wait()

	assert.Empty(t, mgr.byMob)
}
