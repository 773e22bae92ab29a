package world

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/udisondev/realmgo/internal/model"
	"github.com/udisondev/realmgo/internal/protocol"
)

// SendFunc delivers one encoded packet to a player's connection. Sends are
// fire-and-forget from the world's perspective; backpressure is the
// transport's concern.
type SendFunc func(data []byte)

// Map is the static tile data the world consults. The tileset format
// itself is outside the core; the world only needs the extent and door
// lookups.
type Map interface {
	// Width and Height return the map extent in tiles.
	Width() int
	Height() int
	// IsDoor reports whether the tile is a door.
	IsDoor(pos model.Position) bool
	// DoorDestination returns where the door leads.
	DoorDestination(pos model.Position) (model.Position, bool)
}

// World owns the entity table and the fixed group partition, and routes
// every outbound message to the connections that should observe it.
//
// Group membership is recomputed on every position change BEFORE the
// movement broadcast goes out, so newly-adjacent observers are included
// and newly-distant ones excluded in the same logical step.
type World struct {
	gamemap Map
	ids     *InstanceGenerator

	groups           [][]*Group
	groupsX, groupsY int

	entities sync.Map // map[uint32]*model.Entity keyed by instance
	players  sync.Map // map[uint32]*model.Player
	mobs     sync.Map // map[uint32]*model.Mob
	senders  sync.Map // map[uint32]SendFunc keyed by player instance
}

// New builds the world with its group partition computed from the map
// extent. Groups are never created or destroyed afterwards.
func New(gamemap Map) *World {
	w := &World{
		gamemap: gamemap,
		ids:     NewInstanceGenerator(),
		groupsX: (gamemap.Width() + GroupSize - 1) >> GroupShift,
		groupsY: (gamemap.Height() + GroupSize - 1) >> GroupShift,
	}

	w.groups = make([][]*Group, w.groupsX)
	for gx := 0; gx < w.groupsX; gx++ {
		w.groups[gx] = make([]*Group, w.groupsY)
		for gy := 0; gy < w.groupsY; gy++ {
			w.groups[gx][gy] = NewGroup(model.GroupID{X: gx, Y: gy})
		}
	}

	for gx := 0; gx < w.groupsX; gx++ {
		for gy := 0; gy < w.groupsY; gy++ {
			w.groups[gx][gy].SetSurrounding(w.surroundingGroups(gx, gy))
		}
	}

	return w
}

// surroundingGroups returns the 3×3 window around (gx, gy), excluding
// out-of-bounds neighbours.
func (w *World) surroundingGroups(gx, gy int) []*Group {
	surrounding := make([]*Group, 0, 9)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			nx, ny := gx+dx, gy+dy
			if w.validGroup(nx, ny) {
				surrounding = append(surrounding, w.groups[nx][ny])
			}
		}
	}
	return surrounding
}

func (w *World) validGroup(gx, gy int) bool {
	return gx >= 0 && gx < w.groupsX && gy >= 0 && gy < w.groupsY
}

// Map returns the static map collaborator.
func (w *World) Map() Map { return w.gamemap }

// IDs returns the instance id generator.
func (w *World) IDs() *InstanceGenerator { return w.ids }

// GroupCount returns the number of groups in the partition.
func (w *World) GroupCount() int { return w.groupsX * w.groupsY }

// GroupAt returns the group with the given id, or nil if out of bounds.
func (w *World) GroupAt(id model.GroupID) *Group {
	if !w.validGroup(id.X, id.Y) {
		return nil
	}
	return w.groups[id.X][id.Y]
}

// GroupFor returns the group covering a tile position, or nil.
func (w *World) GroupFor(pos model.Position) *Group {
	return w.GroupAt(PositionToGroup(pos))
}

// AddPlayer registers a player and its outbound sink, and places it into
// its group.
func (w *World) AddPlayer(p *model.Player, send SendFunc) {
	w.players.Store(p.Instance(), p)
	if send != nil {
		w.senders.Store(p.Instance(), send)
	}
	w.addEntity(p.Entity)
}

// AddMob registers a mob and places it into its group.
func (w *World) AddMob(m *model.Mob) {
	w.mobs.Store(m.Instance(), m)
	w.addEntity(m.Entity)
}

// AddEntity registers a plain entity (items, NPCs, projectiles).
func (w *World) AddEntity(e *model.Entity) {
	w.addEntity(e)
}

func (w *World) addEntity(e *model.Entity) {
	w.entities.Store(e.Instance(), e)
	if group := w.GroupFor(e.Position()); group != nil {
		group.Add(e)
		e.SetGroup(group.ID())
	}
}

// RemoveEntity takes an entity out of the world: entity table, group
// membership, typed indexes and send sink. Safe to call for an instance
// that is already gone.
func (w *World) RemoveEntity(instance uint32) {
	value, ok := w.entities.LoadAndDelete(instance)
	if !ok {
		return
	}
	e := value.(*model.Entity)
	if group := w.GroupAt(e.Group()); group != nil {
		group.Remove(instance)
	}
	w.players.Delete(instance)
	w.mobs.Delete(instance)
	w.senders.Delete(instance)
}

// GetEntity looks up an entity by instance. A missing instance means
// "already gone", never an error.
func (w *World) GetEntity(instance uint32) (*model.Entity, bool) {
	value, ok := w.entities.Load(instance)
	if !ok {
		return nil, false
	}
	return value.(*model.Entity), true
}

// GetPlayer looks up a player by instance.
func (w *World) GetPlayer(instance uint32) (*model.Player, bool) {
	value, ok := w.players.Load(instance)
	if !ok {
		return nil, false
	}
	return value.(*model.Player), true
}

// GetMob looks up a mob by instance.
func (w *World) GetMob(instance uint32) (*model.Mob, bool) {
	value, ok := w.mobs.Load(instance)
	if !ok {
		return nil, false
	}
	return value.(*model.Mob), true
}

// GetCharacter resolves an instance to its combat-capable character,
// whether player or mob.
func (w *World) GetCharacter(instance uint32) (*model.Character, bool) {
	if p, ok := w.GetPlayer(instance); ok {
		return p.Character, true
	}
	if m, ok := w.GetMob(instance); ok {
		return m.Character, true
	}
	return nil, false
}

// PlayerByName finds an online player by case-insensitive name.
func (w *World) PlayerByName(name string) (*model.Player, bool) {
	var found *model.Player
	w.players.Range(func(_, value any) bool {
		p := value.(*model.Player)
		if strings.EqualFold(p.Name(), name) {
			found = p
			return false
		}
		return true
	})
	return found, found != nil
}

// ForEachPlayer iterates all online players.
func (w *World) ForEachPlayer(fn func(*model.Player) bool) {
	w.players.Range(func(_, value any) bool {
		return fn(value.(*model.Player))
	})
}

// HandleMovedEntity re-evaluates group membership after a position
// change. Must be called before broadcasting that movement. Returns true
// if the entity crossed a group boundary.
func (w *World) HandleMovedEntity(e *model.Entity) bool {
	newGroup := w.GroupFor(e.Position())
	if newGroup == nil {
		return false
	}

	oldID := e.Group()
	if oldID == newGroup.ID() {
		return false
	}

	if old := w.GroupAt(oldID); old != nil {
		old.Remove(e.Instance())
	}
	newGroup.Add(e)
	e.SetGroup(newGroup.ID())
	return true
}

// NearbyInstances collects the instances observable from a group: the
// members of the group and its neighbours, excluding the given instance.
func (w *World) NearbyInstances(id model.GroupID, exclude uint32) []uint32 {
	group := w.GroupAt(id)
	if group == nil {
		return nil
	}
	var instances []uint32
	for _, g := range group.Surrounding() {
		g.ForEachMember(func(e *model.Entity) bool {
			if e.Instance() != exclude {
				instances = append(instances, e.Instance())
			}
			return true
		})
	}
	return instances
}

// PushBroadcast sends a message to every connected client.
func (w *World) PushBroadcast(msg protocol.Message) int {
	data, err := protocol.Marshal(msg)
	if err != nil {
		slog.Error("encoding broadcast", "opcode", msg.Op(), "error", err)
		return 0
	}

	sent := 0
	w.senders.Range(func(_, value any) bool {
		value.(SendFunc)(data)
		sent++
		return true
	})
	return sent
}

// PushToAdjacentGroups sends a message to all players in the group and
// its up-to-8 neighbours. exclude skips one instance (0 = none), the
// acting entity, which already has authoritative knowledge.
func (w *World) PushToAdjacentGroups(id model.GroupID, msg protocol.Message, exclude uint32) int {
	if exclude == 0 {
		return w.pushNearby(id, msg, nil)
	}
	return w.pushNearby(id, msg, []uint32{exclude})
}

// PushSelectively is the adjacent-groups broadcast with a set of excluded
// instances (typically the actor and its target).
func (w *World) PushSelectively(id model.GroupID, msg protocol.Message, excludes []uint32) int {
	return w.pushNearby(id, msg, excludes)
}

func (w *World) pushNearby(id model.GroupID, msg protocol.Message, excludes []uint32) int {
	group := w.GroupAt(id)
	if group == nil {
		return 0
	}

	data, err := protocol.Marshal(msg)
	if err != nil {
		slog.Error("encoding group broadcast", "opcode", msg.Op(), "error", err)
		return 0
	}

	sent := 0
	for _, g := range group.Surrounding() {
		g.ForEachMember(func(e *model.Entity) bool {
			instance := e.Instance()
			for _, ex := range excludes {
				if instance == ex {
					return true
				}
			}
			if w.sendTo(instance, data) {
				sent++
			}
			return true
		})
	}
	return sent
}

// PushToPlayer sends a message to a single player.
func (w *World) PushToPlayer(p *model.Player, msg protocol.Message) {
	data, err := protocol.Marshal(msg)
	if err != nil {
		slog.Error("encoding message", "opcode", msg.Op(), "player", p.Name(), "error", err)
		return
	}
	w.sendTo(p.Instance(), data)
}

func (w *World) sendTo(instance uint32, data []byte) bool {
	value, ok := w.senders.Load(instance)
	if !ok {
		return false // not a player, or already disconnected
	}
	value.(SendFunc)(data)
	return true
}

// SpawnProjectile creates a projectile entity between two combatants and
// announces it to the owner's adjacency. The projectile is reconciled on
// the client-reported impact.
func (w *World) SpawnProjectile(owner, target *model.Character, projectileID, damage int) *model.Entity {
	instance := w.ids.NextProjectile()
	proj := model.NewEntity(instance, projectileID, model.KindProjectile, "projectile", owner.Position())
	w.addEntity(proj)

	w.PushToAdjacentGroups(owner.Group(), protocol.Projectile{
		Type:     protocol.ProjectileCreate,
		Instance: instance,
		ID:       projectileID,
		Owner:    owner.Instance(),
		Target:   target.Instance(),
		Damage:   damage,
	}, 0)

	return proj
}

// Despawn removes an entity and tells its adjacency. The broadcast uses
// the entity's last group, computed before removal.
func (w *World) Despawn(e *model.Entity) {
	group := e.Group()
	w.PushToAdjacentGroups(group, protocol.Despawn{Instance: e.Instance()}, e.Instance())
	w.RemoveEntity(e.Instance())
}
