package model

import "sync"

// Kind classifies a world entity. The numeric values travel on the wire in
// Spawn messages, so the table is fixed.
type Kind int

const (
	KindPlayer Kind = iota
	KindMob
	KindNPC
	KindItem
	KindProjectile
)

// Orientation is the facing of an entity on the tile grid.
type Orientation int

const (
	OrientationUp Orientation = iota
	OrientationDown
	OrientationLeft
	OrientationRight
)

// Position is an integer tile coordinate.
type Position struct {
	X, Y int
}

// Distance returns the grid distance between two positions (largest axis
// delta; diagonal steps count as one tile).
func (p Position) Distance(other Position) int {
	dx := p.X - other.X
	if dx < 0 {
		dx = -dx
	}
	dy := p.Y - other.Y
	if dy < 0 {
		dy = -dy
	}
	return max(dx, dy)
}

// AdjacentNonDiagonal reports whether other is exactly one cardinal step
// away. This is the melee proximity rule.
func (p Position) AdjacentNonDiagonal(other Position) bool {
	dx := p.X - other.X
	if dx < 0 {
		dx = -dx
	}
	dy := p.Y - other.Y
	if dy < 0 {
		dy = -dy
	}
	return dx+dy == 1
}

// Entity is the authoritative state shared by everything that exists in the
// world: players, mobs, NPCs, ground items and projectiles.
//
// Instance is the ephemeral per-spawn id used for all lookups; ID is the
// persistent content id (sprite/template). An Entity is never referenced
// after despawn; a missing instance lookup means "already gone".
type Entity struct {
	instance uint32
	id       int
	kind     Kind
	name     string

	mu          sync.RWMutex
	position    Position
	orientation Orientation
	group       GroupID
}

// GroupID identifies the spatial group an entity currently occupies.
type GroupID struct {
	X, Y int
}

// NoGroup marks an entity not yet placed into the group grid.
var NoGroup = GroupID{X: -1, Y: -1}

// NewEntity creates an entity at the given tile.
func NewEntity(instance uint32, id int, kind Kind, name string, pos Position) *Entity {
	return &Entity{
		instance: instance,
		id:       id,
		kind:     kind,
		name:     name,
		position: pos,
		group:    NoGroup,
	}
}

// Instance returns the per-spawn unique id (immutable).
func (e *Entity) Instance() uint32 { return e.instance }

// ID returns the persistent content id (immutable).
func (e *Entity) ID() int { return e.id }

// Kind returns the entity class (immutable).
func (e *Entity) Kind() Kind { return e.kind }

// Name returns the display name.
func (e *Entity) Name() string { return e.name }

// Position returns the current authoritative tile.
func (e *Entity) Position() Position {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.position
}

// SetPosition moves the entity to the given tile.
func (e *Entity) SetPosition(pos Position) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.position = pos
}

// Orientation returns the current facing.
func (e *Entity) Orientation() Orientation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.orientation
}

// SetOrientation updates the facing.
func (e *Entity) SetOrientation(o Orientation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.orientation = o
}

// Group returns the spatial group the entity currently occupies.
func (e *Entity) Group() GroupID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.group
}

// SetGroup records the entity's spatial group. Only the world's membership
// bookkeeping calls this.
func (e *Entity) SetGroup(g GroupID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.group = g
}

// Distance returns the grid distance to another entity.
func (e *Entity) Distance(other *Entity) int {
	return e.Position().Distance(other.Position())
}
