package world

import "sync/atomic"

// InstanceGenerator hands out unique instance ids for all spawned
// entities. Ranges keep the entity classes apart so an id's class is
// recoverable without a lookup:
//
//	0x10000000 - 0x1FFFFFFF: players
//	0x20000000 - 0x2FFFFFFF: mobs and NPCs
//	0x30000000 - 0x3FFFFFFF: ground items
//	0x40000000 - 0x4FFFFFFF: projectiles
type InstanceGenerator struct {
	nextPlayer     atomic.Uint32
	nextMob        atomic.Uint32
	nextItem       atomic.Uint32
	nextProjectile atomic.Uint32
}

// NewInstanceGenerator creates a generator with all ranges at their base.
func NewInstanceGenerator() *InstanceGenerator {
	g := &InstanceGenerator{}
	g.nextPlayer.Store(0x10000000)
	g.nextMob.Store(0x20000000)
	g.nextItem.Store(0x30000000)
	g.nextProjectile.Store(0x40000000)
	return g
}

// NextPlayer returns the next player instance id.
func (g *InstanceGenerator) NextPlayer() uint32 { return g.nextPlayer.Add(1) }

// NextMob returns the next mob/NPC instance id.
func (g *InstanceGenerator) NextMob() uint32 { return g.nextMob.Add(1) }

// NextItem returns the next ground item instance id.
func (g *InstanceGenerator) NextItem() uint32 { return g.nextItem.Add(1) }

// NextProjectile returns the next projectile instance id.
func (g *InstanceGenerator) NextProjectile() uint32 { return g.nextProjectile.Add(1) }
