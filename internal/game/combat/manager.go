package combat

import (
	"log/slog"
	"sync"

	"github.com/udisondev/realmgo/internal/model"
	"github.com/udisondev/realmgo/internal/protocol"
	"github.com/udisondev/realmgo/internal/world"
)

// DefaultProjectileID is the content id broadcast for ranged hits when no
// weapon-specific projectile applies.
const DefaultProjectileID = 1

// DeathFunc is called once when a hit kills its target. Wired by the
// server layer to hand out experience, despawn the victim and trigger
// respawn, keeping those concerns out of the engine.
type DeathFunc func(killer, victim *model.Character)

// pendingProjectile is a launched ranged hit waiting for the impact
// report.
type pendingProjectile struct {
	attacker uint32
	target   uint32
	hit      Hit
}

// Manager owns the instance→Combat mapping and the shared collaborators
// every combat needs: the world for lookups and broadcasts, and the
// damage formula.
type Manager struct {
	world *world.World
	calc  DamageCalculator

	combats     sync.Map // map[uint32]*Combat keyed by owner instance
	projectiles sync.Map // map[uint32]pendingProjectile keyed by projectile instance

	deathFn DeathFunc
}

// NewManager creates a combat manager. A nil calculator falls back to the
// default formula.
func NewManager(w *world.World, calc DamageCalculator) *Manager {
	if calc == nil {
		calc = FormulaDamage{}
	}
	return &Manager{world: w, calc: calc}
}

// SetDeathFunc installs the single death subscriber.
func (m *Manager) SetDeathFunc(fn DeathFunc) { m.deathFn = fn }

// For returns the combat owned by the character, creating it lazily.
func (m *Manager) For(ch *model.Character) *Combat {
	if c, ok := m.combats.Load(ch.Instance()); ok {
		return c.(*Combat)
	}
	c, _ := m.combats.LoadOrStore(ch.Instance(), newCombat(ch, m))
	return c.(*Combat)
}

// Lookup finds an existing combat by owner instance.
func (m *Manager) Lookup(instance uint32) (*Combat, bool) {
	c, ok := m.combats.Load(instance)
	if !ok {
		return nil, false
	}
	return c.(*Combat), true
}

// Engage points a character at a target and starts its combat.
func (m *Manager) Engage(ch *model.Character, targetInstance uint32) {
	ch.SetTarget(targetInstance)
	m.For(ch).Start()
}

// ForceAttack restarts the character's combat with an immediate hit, used
// for client-observed events that cannot wait for the next attack tick.
func (m *Manager) ForceAttack(ch *model.Character, targetInstance uint32) {
	ch.SetTarget(targetInstance)
	m.For(ch).ForceAttack()
}

// TriggerHit answers a client-observed swing: start the combat if needed
// and attempt one hit right away. The rate limiter inside hit() is the
// only pacing guard, so spamming triggers cannot exceed the attack rate.
func (m *Manager) TriggerHit(ch *model.Character) {
	target, ok := m.world.GetCharacter(ch.Target())
	if !ok {
		return
	}
	c := m.For(ch)
	c.Start()
	if !InProximity(ch, target) {
		return
	}
	if c.queue.Len() == 0 {
		c.queue.Enqueue(Hit{Kind: protocol.HitDamage, Amount: m.calc.Damage(ch, target)})
	}
	c.hit(target)
}

// AbandonChase makes a mob that strayed too far from its spawn give up
// the fight: attackers forgotten, hits discarded, the end of combat
// announced, and the mob walks home.
func (m *Manager) AbandonChase(mob *model.Mob) {
	if c, ok := m.Lookup(mob.Instance()); ok {
		c.ResetAttackers()
		c.Queue().Clear()
	}
	m.world.PushToAdjacentGroups(mob.Group(), protocol.Combat{
		Type:     protocol.CombatFinish,
		Attacker: int64(mob.Instance()),
		Target:   protocol.NoInstance,
	}, 0)
	m.sendHome(mob)
}

// Release tears down a character's combat on despawn or disconnect. Stale
// references to the released instance elsewhere resolve to "not found"
// and are skipped.
func (m *Manager) Release(instance uint32) {
	c, ok := m.combats.LoadAndDelete(instance)
	if !ok {
		return
	}
	combat := c.(*Combat)
	combat.Stop()
	combat.ResetAttackers()
	combat.Queue().Clear()
}

// StopAll stops every running combat (server shutdown).
func (m *Manager) StopAll() {
	m.combats.Range(func(_, value any) bool {
		value.(*Combat).Stop()
		return true
	})
}

// applyHit lands a resolved hit on the target: mutate vitals, broadcast
// the event to the attacker's adjacency, and keep the reverse attacker
// bookkeeping current.
func (m *Manager) applyHit(attacker, target *model.Character, h Hit) {
	switch h.Kind {
	case protocol.HitHeal:
		target.Heal(h.Amount)
	case protocol.HitMana:
		target.RestoreMana(h.Amount)
	default:
		m.applyDamage(attacker, target, h)
		return
	}

	m.world.PushToAdjacentGroups(attacker.Group(), protocol.Combat{
		Type:     protocol.CombatHit,
		Attacker: int64(attacker.Instance()),
		Target:   int64(target.Instance()),
		Kind:     h.Kind,
		Amount:   h.Amount,
	}, 0)
}

func (m *Manager) applyDamage(attacker, target *model.Character, h Hit) {
	remaining, died := target.ApplyDamage(h.Amount)

	m.world.PushToAdjacentGroups(attacker.Group(), protocol.Combat{
		Type:     protocol.CombatHit,
		Attacker: int64(attacker.Instance()),
		Target:   int64(target.Instance()),
		Kind:     h.Kind,
		Amount:   h.Amount,
	}, 0)

	if died {
		m.finishCombat(attacker, target)
		return
	}

	slog.Debug("hit landed",
		"attacker", attacker.Instance(),
		"target", target.Instance(),
		"amount", h.Amount,
		"remaining", remaining)

	m.retaliate(attacker, target)
}

// retaliate records the attacker against the target and makes the target
// fight back when its nature allows: mobs always, players only with the
// retaliate flag set.
func (m *Manager) retaliate(attacker, target *model.Character) {
	tc := m.For(target)
	tc.AddAttacker(attacker.Instance())

	if _, isMob := m.world.GetMob(target.Instance()); isMob {
		if !target.HasTarget() {
			target.SetTarget(attacker.Instance())
		}
		tc.Start()
		return
	}
	if p, ok := m.world.GetPlayer(target.Instance()); ok && p.Retaliate() {
		if !target.HasTarget() {
			target.SetTarget(attacker.Instance())
		}
		tc.Start()
	}
}

// finishCombat unwinds both sides of a lethal hit and announces it.
func (m *Manager) finishCombat(killer, victim *model.Character) {
	m.world.PushToAdjacentGroups(killer.Group(), protocol.Combat{
		Type:     protocol.CombatFinish,
		Attacker: int64(killer.Instance()),
		Target:   int64(victim.Instance()),
	}, 0)

	if vc, ok := m.Lookup(victim.Instance()); ok {
		vc.Stop()
		vc.ResetAttackers()
		vc.Queue().Clear()
	}
	if kc, ok := m.Lookup(killer.Instance()); ok {
		kc.RemoveAttacker(victim.Instance())
		kc.Queue().Clear()
	}
	killer.ClearTarget()

	if m.deathFn != nil {
		m.deathFn(killer, victim)
	}
}

// launchProjectile resolves a ranged hit: spawn the projectile entity,
// broadcast it, and hold the damage until the impact report reconciles it.
func (m *Manager) launchProjectile(attacker, target *model.Character, h Hit) {
	proj := m.world.SpawnProjectile(attacker, target, m.projectileID(attacker), h.Amount)
	m.projectiles.Store(proj.Instance(), pendingProjectile{
		attacker: attacker.Instance(),
		target:   target.Instance(),
		hit:      h,
	})
}

// ResolveImpact applies the damage held for a projectile once the impact
// is reported. Unknown projectile instances are ignored; either side
// despawning first abandons the hit.
func (m *Manager) ResolveImpact(projectileInstance uint32) {
	value, ok := m.projectiles.LoadAndDelete(projectileInstance)
	if !ok {
		return
	}
	pending := value.(pendingProjectile)

	if proj, ok := m.world.GetEntity(projectileInstance); ok {
		m.world.PushToAdjacentGroups(proj.Group(), protocol.Projectile{
			Type:     protocol.ProjectileImpact,
			Instance: projectileInstance,
		}, 0)
		m.world.RemoveEntity(projectileInstance)
	}

	attacker, ok := m.world.GetCharacter(pending.attacker)
	if !ok {
		return
	}
	target, ok := m.world.GetCharacter(pending.target)
	if !ok {
		return
	}
	m.applyHit(attacker, target, pending.hit)
}

// projectileID picks the projectile content id for a ranged attacker.
func (m *Manager) projectileID(attacker *model.Character) int {
	if p, ok := m.world.GetPlayer(attacker.Instance()); ok {
		if weapon := p.Equipment(model.SlotWeapon); weapon.Equipped() {
			return weapon.ID
		}
	}
	if id := attacker.ID(); id > 0 {
		return id
	}
	return DefaultProjectileID
}

// sendHome disengages a mob and relocates it to its spawn anchor with a
// forced move every observer sees.
func (m *Manager) sendHome(mob *model.Mob) {
	mob.Return()
	mob.ClearTarget()
	m.moveCharacter(mob.Character, mob.Spawn(), true)
}

// moveCharacter applies a server-driven position change: group membership
// is recomputed before the movement broadcast goes out.
func (m *Manager) moveCharacter(ch *model.Character, pos model.Position, forced bool) {
	ch.SetPosition(pos)
	m.world.HandleMovedEntity(ch.Entity)
	m.world.PushToAdjacentGroups(ch.Group(), protocol.Move{
		Instance: ch.Instance(),
		X:        pos.X,
		Y:        pos.Y,
		Forced:   forced,
	}, 0)
}

func (m *Manager) inBounds(pos model.Position) bool {
	gm := m.world.Map()
	return pos.X >= 0 && pos.X < gm.Width() && pos.Y >= 0 && pos.Y < gm.Height()
}
