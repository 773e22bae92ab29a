// Package spawn populates the world with mobs and brings them back after
// they die.
package spawn

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/realmgo/internal/model"
	"github.com/udisondev/realmgo/internal/protocol"
	"github.com/udisondev/realmgo/internal/world"
)

// DefaultRespawnDelay applies to entries without an explicit delay.
const DefaultRespawnDelay = 30 * time.Second

// Entry is one spawn point from the spawn list.
type Entry struct {
	Template    int    `yaml:"template"`
	Name        string `yaml:"name"`
	X           int    `yaml:"x"`
	Y           int    `yaml:"y"`
	HP          int    `yaml:"hp"`
	WeaponLevel int    `yaml:"weapon_level"`
	ArmorLevel  int    `yaml:"armor_level"`
	Exp         int    `yaml:"exp"`     // experience granted to the killer
	Drop        int    `yaml:"drop"`    // item id left on death; 0 drops nothing
	Respawn     int    `yaml:"respawn"` // seconds; 0 uses the default
}

type spawnFile struct {
	Spawns []Entry `yaml:"spawns"`
}

// LoadEntries reads the spawn list from a YAML file.
func LoadEntries(path string) ([]Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading spawn list %s: %w", path, err)
	}
	var sf spawnFile
	if err := yaml.Unmarshal(raw, &sf); err != nil {
		return nil, fmt.Errorf("parsing spawn list %s: %w", path, err)
	}
	for i, e := range sf.Spawns {
		if e.Template <= 0 || e.HP <= 0 {
			return nil, fmt.Errorf("spawn entry %d: template and hp must be positive", i)
		}
	}
	return sf.Spawns, nil
}

// Manager owns the live mob population: the initial spawn pass and the
// delayed respawn after each death.
type Manager struct {
	world   *world.World
	entries []Entry

	mu      sync.Mutex
	byMob   map[uint32]Entry // live mob instance → its spawn entry
	stopped atomic.Bool
	pending sync.WaitGroup
}

// NewManager creates a manager for the given spawn list.
func NewManager(w *world.World, entries []Entry) *Manager {
	return &Manager{
		world:   w,
		entries: entries,
		byMob:   make(map[uint32]Entry),
	}
}

// SpawnAll places every entry into the world. Called once at startup.
func (m *Manager) SpawnAll() int {
	for _, e := range m.entries {
		m.spawnEntry(e)
	}
	return len(m.entries)
}

// ExpReward returns the experience granted for killing the mob, or 0 when
// the instance is not a tracked mob.
func (m *Manager) ExpReward(instance uint32) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byMob[instance].Exp
}

// Loot returns the item id the mob leaves on death, or false when the
// instance is not a tracked mob or the entry drops nothing.
func (m *Manager) Loot(instance uint32) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.byMob[instance]
	if !ok || entry.Drop == 0 {
		return 0, false
	}
	return entry.Drop, true
}

// HandleDeath forgets the dead mob and schedules its replacement.
func (m *Manager) HandleDeath(instance uint32) {
	m.mu.Lock()
	entry, ok := m.byMob[instance]
	delete(m.byMob, instance)
	m.mu.Unlock()
	if !ok {
		return
	}

	delay := DefaultRespawnDelay
	if entry.Respawn > 0 {
		delay = time.Duration(entry.Respawn) * time.Second
	}

	m.pending.Add(1)
	time.AfterFunc(delay, func() {
		defer m.pending.Done()
		if m.stopped.Load() {
			return
		}
		m.spawnEntry(entry)
	})
}

// Stop prevents any further respawns. Pending timers drain harmlessly.
func (m *Manager) Stop() {
	m.stopped.Store(true)
}

func (m *Manager) spawnEntry(e Entry) {
	instance := m.world.IDs().NextMob()
	mob := model.NewMob(instance, e.Template, e.Name, model.Position{X: e.X, Y: e.Y}, e.HP)
	if e.WeaponLevel > 0 {
		mob.SetWeaponLevel(e.WeaponLevel)
	}
	if e.ArmorLevel > 0 {
		mob.SetArmorLevel(e.ArmorLevel)
	}

	m.mu.Lock()
	m.byMob[instance] = e
	m.mu.Unlock()

	m.world.AddMob(mob)
	m.world.PushToAdjacentGroups(mob.Group(), protocol.Spawn{
		Instance:    instance,
		ID:          e.Template,
		Kind:        int(model.KindMob),
		X:           e.X,
		Y:           e.Y,
		Orientation: int(model.OrientationDown),
		Name:        e.Name,
	}, 0)
}
