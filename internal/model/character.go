package model

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultAttackRate is the pacing of attack ticks for characters without an
// equipment-derived rate.
const DefaultAttackRate = 1000 * time.Millisecond

// Character is an entity that can fight: players and mobs. It carries the
// vitals and targeting state the combat engine mutates.
//
// The target is a weak reference by instance: resolving it against the
// entity table may legitimately come back empty when the target despawned
// first.
type Character struct {
	*Entity

	mu          sync.RWMutex
	hp, maxHP   int
	mp, maxMP   int
	attackRate  time.Duration
	attackReach int
	ranged      bool
	weaponLevel int
	armorLevel  int

	target atomic.Uint32 // 0 = no target
	moving atomic.Bool
	dead   atomic.Bool

	spawn Position
}

// NewCharacter wraps an entity with combat state. The spawn position is
// recorded so mobs can return home after disengaging.
func NewCharacter(e *Entity, hp, mp int) *Character {
	return &Character{
		Entity:      e,
		hp:          hp,
		maxHP:       hp,
		mp:          mp,
		maxMP:       mp,
		attackRate:  DefaultAttackRate,
		attackReach: 1,
		weaponLevel: 1,
		spawn:       e.Position(),
	}
}

// HP returns current and maximum hit points.
func (c *Character) HP() (current, maximum int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hp, c.maxHP
}

// MP returns current and maximum mana.
func (c *Character) MP() (current, maximum int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mp, c.maxMP
}

// SetVitals replaces the current/max hit points and mana (login, level up).
func (c *Character) SetVitals(hp, maxHP, mp, maxMP int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hp, c.maxHP = hp, maxHP
	c.mp, c.maxMP = mp, maxMP
	if c.hp > 0 {
		c.dead.Store(false)
	}
}

// ApplyDamage reduces hit points and reports whether the character died
// from this hit. Only the first lethal hit reports died=true.
func (c *Character) ApplyDamage(amount int) (remaining int, died bool) {
	c.mu.Lock()
	c.hp -= amount
	if c.hp < 0 {
		c.hp = 0
	}
	remaining = c.hp
	c.mu.Unlock()

	if remaining == 0 {
		died = c.dead.CompareAndSwap(false, true)
	}
	return remaining, died
}

// Heal restores hit points up to the maximum.
func (c *Character) Heal(amount int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hp = min(c.hp+amount, c.maxHP)
}

// RestoreMana restores mana up to the maximum.
func (c *Character) RestoreMana(amount int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mp = min(c.mp+amount, c.maxMP)
}

// IsDead reports whether the character has died and not yet respawned.
func (c *Character) IsDead() bool { return c.dead.Load() }

// Revive clears the dead flag and restores full vitals.
func (c *Character) Revive() {
	c.mu.Lock()
	c.hp = c.maxHP
	c.mp = c.maxMP
	c.mu.Unlock()
	c.dead.Store(false)
}

// Target returns the instance of the current target, or 0.
func (c *Character) Target() uint32 { return c.target.Load() }

// HasTarget reports whether a target is set.
func (c *Character) HasTarget() bool { return c.target.Load() != 0 }

// SetTarget points the character at another entity by instance.
func (c *Character) SetTarget(instance uint32) { c.target.Store(instance) }

// ClearTarget drops the current target.
func (c *Character) ClearTarget() { c.target.Store(0) }

// AttackRate returns the interval between attack ticks.
func (c *Character) AttackRate() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.attackRate
}

// SetAttackRate changes the attack pacing (weapon swaps).
func (c *Character) SetAttackRate(rate time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rate > 0 {
		c.attackRate = rate
	}
}

// AttackRange returns the reach in tiles. Melee characters keep reach 1 and
// use strict adjacency instead.
func (c *Character) AttackRange() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.attackReach
}

// SetRanged marks the character as a ranged attacker with the given reach.
func (c *Character) SetRanged(attackRange int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ranged = true
	c.attackReach = attackRange
}

// SetMelee reverts the character to melee reach.
func (c *Character) SetMelee() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ranged = false
	c.attackReach = 1
}

// IsRanged reports whether the character resolves hits via projectiles.
func (c *Character) IsRanged() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ranged
}

// WeaponLevel returns the offensive power fed into the damage formula.
func (c *Character) WeaponLevel() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.weaponLevel
}

// SetWeaponLevel changes the offensive power (weapon swaps, templates).
func (c *Character) SetWeaponLevel(level int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.weaponLevel = max(level, 1)
}

// ArmorLevel returns the damage absorption fed into the damage formula.
func (c *Character) ArmorLevel() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.armorLevel
}

// SetArmorLevel changes the damage absorption.
func (c *Character) SetArmorLevel(level int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armorLevel = max(level, 0)
}

// Moving reports whether a validated walk is in progress.
func (c *Character) Moving() bool { return c.moving.Load() }

// SetMoving flips the walk-in-progress flag.
func (c *Character) SetMoving(moving bool) { c.moving.Store(moving) }

// Spawn returns the recorded spawn position.
func (c *Character) Spawn() Position {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.spawn
}

// SetSpawn records a new home position.
func (c *Character) SetSpawn(pos Position) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spawn = pos
}

// AtSpawn reports whether the character stands on its spawn tile.
func (c *Character) AtSpawn() bool {
	return c.Position() == c.Spawn()
}
