package model

import (
	"sync"
	"time"
)

// EquipmentSlot indexes the five wearable slots.
type EquipmentSlot int

const (
	SlotArmour EquipmentSlot = iota
	SlotWeapon
	SlotPendant
	SlotRing
	SlotBoots

	EquipmentSlots
)

// Equipment is one equipped item as persisted: content id, stack count and
// the enchantment riding on it. ID -1 means the slot is empty.
type Equipment struct {
	ID           int
	Count        int
	Ability      int
	AbilityLevel int
}

// EmptyEquipment is the sentinel for a bare slot.
var EmptyEquipment = Equipment{ID: -1, Ability: -1, AbilityLevel: -1}

// Equipped reports whether the slot holds an item.
func (e Equipment) Equipped() bool { return e.ID > 0 }

// CharacterRecord is the persisted character sheet: what the persistence
// collaborator loads at login and saves afterwards.
type CharacterRecord struct {
	Name       string
	Kind       int
	Rights     int
	Experience int
	BanUntil   time.Time
	MuteUntil  time.Time
	Membership int
	LastLogin  time.Time
	PvpKills   int
	PvpDeaths  int
	X, Y       int
	Equipment  [EquipmentSlots]Equipment
}

// Player is a logged-in character bound to one connection.
type Player struct {
	*Character

	mu         sync.RWMutex
	rights     int
	experience int
	level      int
	membership int
	banUntil   time.Time
	muteUntil  time.Time
	lastLogin  time.Time
	pvpKills   int
	pvpDeaths  int
	equipment  [EquipmentSlots]Equipment

	// Anti-cheat bookkeeping: where the client asked to go (Request) and
	// where the server projects it will end up.
	potential *Position
	future    *Position

	retaliate bool
	ready     bool
}

// NewPlayer creates a player entity from a spawn instance and name.
func NewPlayer(instance uint32, name string, pos Position) *Player {
	e := NewEntity(instance, 0, KindPlayer, name, pos)
	p := &Player{
		Character: NewCharacter(e, 1, 1),
	}
	for slot := range p.equipment {
		p.equipment[slot] = EmptyEquipment
	}
	return p
}

// Load applies a persisted character record: stats, position, equipment.
func (p *Player) Load(rec CharacterRecord) {
	p.mu.Lock()
	p.rights = rec.Rights
	p.experience = rec.Experience
	p.level = ExpToLevel(rec.Experience)
	p.membership = rec.Membership
	p.banUntil = rec.BanUntil
	p.muteUntil = rec.MuteUntil
	p.lastLogin = rec.LastLogin
	p.pvpKills = rec.PvpKills
	p.pvpDeaths = rec.PvpDeaths
	p.equipment = rec.Equipment
	level := p.level
	p.mu.Unlock()

	p.SetPosition(Position{X: rec.X, Y: rec.Y})
	p.SetSpawn(Position{X: rec.X, Y: rec.Y})
	p.SetVitals(MaxHitPoints(level), MaxHitPoints(level), MaxMana(level), MaxMana(level))
	p.applyWeapon()
	p.applyArmour()
}

// Record snapshots the player back into its persistable form.
func (p *Player) Record() CharacterRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pos := p.Position()
	return CharacterRecord{
		Name:       p.Name(),
		Kind:       int(p.Kind()),
		Rights:     p.rights,
		Experience: p.experience,
		BanUntil:   p.banUntil,
		MuteUntil:  p.muteUntil,
		Membership: p.membership,
		LastLogin:  p.lastLogin,
		PvpKills:   p.pvpKills,
		PvpDeaths:  p.pvpDeaths,
		X:          pos.X,
		Y:          pos.Y,
		Equipment:  p.equipment,
	}
}

// Rights returns the moderation level.
func (p *Player) Rights() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rights
}

// Experience returns total experience points.
func (p *Player) Experience() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.experience
}

// Level returns the current level derived from experience.
func (p *Player) Level() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.level
}

// LastLogin returns the previous successful login time.
func (p *Player) LastLogin() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastLogin
}

// PvpStats returns kills and deaths against other players.
func (p *Player) PvpStats() (kills, deaths int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pvpKills, p.pvpDeaths
}

// AddExperience grants experience and reports whether the player leveled
// up, with the resulting level.
func (p *Player) AddExperience(amount int) (level int, leveled bool) {
	p.mu.Lock()
	p.experience += amount
	newLevel := ExpToLevel(p.experience)
	leveled = newLevel > p.level
	p.level = newLevel
	p.mu.Unlock()

	if leveled {
		p.SetVitals(MaxHitPoints(newLevel), MaxHitPoints(newLevel), MaxMana(newLevel), MaxMana(newLevel))
	}
	return newLevel, leveled
}

// Banned reports whether the ban deadline lies in the future.
func (p *Player) Banned(now time.Time) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.banUntil.After(now)
}

// Muted reports whether the mute deadline lies in the future.
func (p *Player) Muted(now time.Time) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.muteUntil.After(now)
}

// Equipment returns the item in the given slot.
func (p *Player) Equipment(slot EquipmentSlot) Equipment {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.equipment[slot]
}

// AllEquipment returns all five slots in wire order.
func (p *Player) AllEquipment() [EquipmentSlots]Equipment {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.equipment
}

// Equip places an item into a slot and returns the previously equipped
// item, if any.
func (p *Player) Equip(slot EquipmentSlot, item Equipment) (previous Equipment) {
	p.mu.Lock()
	previous = p.equipment[slot]
	p.equipment[slot] = item
	p.mu.Unlock()

	switch slot {
	case SlotWeapon:
		p.applyWeapon()
	case SlotArmour:
		p.applyArmour()
	}
	return previous
}

// applyWeapon derives attack reach and power from the weapon slot. Bows
// and wands carry the ranged ability marker.
func (p *Player) applyWeapon() {
	weapon := p.Equipment(SlotWeapon)
	if weapon.Equipped() && weapon.Ability == AbilityRanged {
		p.SetRanged(RangedAttackRange)
	} else {
		p.SetMelee()
	}
	if weapon.Equipped() {
		p.SetWeaponLevel(1 + weapon.AbilityLevel)
	} else {
		p.SetWeaponLevel(1)
	}
}

// applyArmour derives absorption from the armour slot.
func (p *Player) applyArmour() {
	armour := p.Equipment(SlotArmour)
	if armour.Equipped() {
		p.SetArmorLevel(1 + armour.AbilityLevel)
	} else {
		p.SetArmorLevel(0)
	}
}

// Retaliate reports whether the player fights back automatically when hit.
func (p *Player) Retaliate() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.retaliate
}

// SetRetaliate flips automatic retaliation.
func (p *Player) SetRetaliate(retaliate bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retaliate = retaliate
}

// Ready reports whether the client finished loading the map.
func (p *Player) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ready
}

// SetReady marks the client as loaded.
func (p *Player) SetReady() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ready = true
}

// GuessPosition records where the client asked to walk, for anti-cheat
// correction. It does not move the player.
func (p *Player) GuessPosition(x, y int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.potential = &Position{X: x, Y: y}
}

// FuturePosition records the server's projection of where the walk ends.
func (p *Player) FuturePosition(x, y int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.future = &Position{X: x, Y: y}
}

// Guessed returns the last requested destination, if any.
func (p *Player) Guessed() (Position, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.potential == nil {
		return Position{}, false
	}
	return *p.potential, true
}

const (
	// AbilityRanged on a weapon marks its wearer as a ranged attacker.
	AbilityRanged = 4

	// RangedAttackRange is the reach of ranged weapons in tiles.
	RangedAttackRange = 7
)
