package model

// Mob is a hostile character driven entirely by the combat engine's
// timers. Its spawn position doubles as the anchor it returns to once its
// attacker set empties.
type Mob struct {
	*Character

	templateID   int
	roamDistance int
	returning    bool
}

// DefaultRoamDistance bounds how far a mob chases before giving up.
const DefaultRoamDistance = 7

// NewMob creates a mob from its template id at the spawn tile.
func NewMob(instance uint32, templateID int, name string, pos Position, hp int) *Mob {
	e := NewEntity(instance, templateID, KindMob, name, pos)
	return &Mob{
		Character:    NewCharacter(e, hp, 0),
		templateID:   templateID,
		roamDistance: DefaultRoamDistance,
	}
}

// TemplateID returns the content id of the mob's template.
func (m *Mob) TemplateID() int { return m.templateID }

// RoamDistance returns the maximum chase distance from spawn.
func (m *Mob) RoamDistance() int { return m.roamDistance }

// DistanceToSpawn returns the grid distance from the spawn tile.
func (m *Mob) DistanceToSpawn() int {
	return m.Position().Distance(m.Spawn())
}

// Return marks the mob as walking home and clears combat intent.
func (m *Mob) Return() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.returning = true
}

// Arrived clears the returning flag once the mob reaches spawn.
func (m *Mob) Arrived() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.returning = false
}

// Returning reports whether the mob is walking back to spawn.
func (m *Mob) Returning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.returning
}
