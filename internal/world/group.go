package world

import (
	"sync"

	"github.com/udisondev/realmgo/internal/model"
)

// Group is one fixed spatial bucket of the world partition. Groups are
// created once at startup and never destroyed while the world runs.
type Group struct {
	id model.GroupID

	members sync.Map // map[uint32]*model.Entity keyed by instance

	// 3×3 window including this group, set once during World
	// initialization and immutable afterwards.
	surrounding []*Group
}

// NewGroup creates an empty group.
func NewGroup(id model.GroupID) *Group {
	return &Group{id: id}
}

// ID returns the group's grid index.
func (g *Group) ID() model.GroupID { return g.id }

// Add places an entity into this group.
func (g *Group) Add(e *model.Entity) {
	g.members.Store(e.Instance(), e)
}

// Remove takes an entity out of this group.
func (g *Group) Remove(instance uint32) {
	g.members.Delete(instance)
}

// ForEachMember iterates the group's entities. Iteration stops when fn
// returns false.
func (g *Group) ForEachMember(fn func(*model.Entity) bool) {
	g.members.Range(func(_, value any) bool {
		return fn(value.(*model.Entity))
	})
}

// SetSurrounding sets the 3×3 window. Called once during initialization.
func (g *Group) SetSurrounding(groups []*Group) {
	g.surrounding = groups
}

// Surrounding returns the group plus its up-to-8 neighbours. The returned
// slice is immutable after initialization, do not modify.
func (g *Group) Surrounding() []*Group {
	return g.surrounding
}

// MemberCount returns the number of entities currently in the group.
func (g *Group) MemberCount() int {
	count := 0
	g.members.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}
