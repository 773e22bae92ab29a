package combat

import (
	"math/rand"
	"sync"
	"time"

	"github.com/udisondev/realmgo/internal/model"
	"github.com/udisondev/realmgo/internal/protocol"
)

// Tick cadences and liveness windows. Attack pacing comes from the
// character; the rest are fixed.
const (
	followInterval = 400 * time.Millisecond
	checkInterval  = 1000 * time.Millisecond

	// idleTimeout stops a combat that produced no attack action.
	idleTimeout = 5 * time.Second

	// cleanupDelay is how long a stopped combat lingers before the mob
	// forgets its attackers and walks home.
	cleanupDelay = 20 * time.Second

	// recentHitWindow keeps the cleanup from firing while hits still land.
	recentHitWindow = 10 * time.Second
)

// Combat is the per-character state machine driving attack timing, target
// following and attacker bookkeeping. Exactly one Combat exists per
// character; the manager owns the mapping.
//
// One goroutine per active combat advances three due-times (attack,
// follow, liveness check), so all mutation of a combat's tick state is
// serialized without a global lock. Start and Stop are idempotent.
type Combat struct {
	owner *model.Character
	mgr   *Manager

	queue HitQueue

	mu        sync.Mutex
	attackers map[uint32]struct{}
	started   bool
	stopCh    chan struct{}
	lastHit   time.Time
	cleanup   *time.Timer

	lastAction guardedTime
}

// guardedTime is a wall-clock instant readable without the combat lock.
type guardedTime struct {
	mu sync.Mutex
	t  time.Time
}

func (g *guardedTime) set(t time.Time) {
	g.mu.Lock()
	g.t = t
	g.mu.Unlock()
}

func (g *guardedTime) get() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.t
}

func newCombat(owner *model.Character, mgr *Manager) *Combat {
	return &Combat{
		owner:     owner,
		mgr:       mgr,
		attackers: make(map[uint32]struct{}),
	}
}

// Owner returns the character this combat belongs to.
func (c *Combat) Owner() *model.Character { return c.owner }

// Queue exposes the pending-hit buffer.
func (c *Combat) Queue() *HitQueue { return &c.queue }

// Started reports whether the tick loop is running.
func (c *Combat) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// Start launches the tick loop. Starting an already-started combat is a
// no-op; a pending cleanup is cancelled because the fight resumed.
func (c *Combat) Start() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.stopCh = make(chan struct{})
	if c.cleanup != nil {
		c.cleanup.Stop()
		c.cleanup = nil
	}
	stop := c.stopCh
	c.mu.Unlock()

	c.lastAction.set(time.Now())
	go c.run(stop)
}

// Stop halts the tick loop and schedules the grace cleanup. A tick already
// in flight may finish, but no new tick starts after Stop returns.
// Stopping an idle combat mutates nothing.
func (c *Combat) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	close(c.stopCh)
	c.cleanup = time.AfterFunc(cleanupDelay, c.graceCleanup)
	c.mu.Unlock()
}

// run advances the three due-times from a single goroutine. The timer
// always sleeps until the earliest one.
func (c *Combat) run(stop <-chan struct{}) {
	now := time.Now()
	attackDue := now.Add(c.owner.AttackRate())
	followDue := now.Add(followInterval)
	checkDue := now.Add(checkInterval)

	timer := time.NewTimer(time.Until(earliest(attackDue, followDue, checkDue)))
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-timer.C:
			// Stop may have raced the timer fire; never start a new tick
			// after it.
			select {
			case <-stop:
				return
			default:
			}

			if !now.Before(attackDue) {
				c.attackTick()
				attackDue = now.Add(c.owner.AttackRate())
			}
			if !now.Before(followDue) {
				c.followTick()
				followDue = now.Add(followInterval)
			}
			if !now.Before(checkDue) {
				if time.Since(c.lastAction.get()) > idleTimeout {
					c.Stop()
					return
				}
				checkDue = now.Add(checkInterval)
			}

			timer.Reset(time.Until(earliest(attackDue, followDue, checkDue)))
		}
	}
}

func earliest(a, b, e time.Time) time.Time {
	m := a
	if b.Before(m) {
		m = b
	}
	if e.Before(m) {
		m = e
	}
	return m
}

// attackTick drains one queued hit when the target is in reach and queues
// the next one. Losing contact discards the whole queue. A missing target
// silently ends the tick's work.
func (c *Combat) attackTick() {
	target, ok := c.mgr.world.GetCharacter(c.owner.Target())
	if !ok {
		return
	}
	if !InProximity(c.owner, target) {
		c.queue.Clear()
		return
	}

	c.hit(target)
	if !target.IsDead() {
		c.queue.Enqueue(Hit{
			Kind:   protocol.HitDamage,
			Amount: c.mgr.calc.Damage(c.owner, target),
		})
	}
	c.lastAction.set(time.Now())
}

// hit lands the oldest queued hit against the target. Rate-limited: a hit
// applies only if at least attackRate elapsed since the previous one, no
// matter how many triggers race to call it.
func (c *Combat) hit(target *model.Character) bool {
	c.mu.Lock()
	if time.Since(c.lastHit) < c.owner.AttackRate() {
		c.mu.Unlock()
		return false
	}
	h, ok := c.queue.Dequeue()
	if !ok {
		c.mu.Unlock()
		return false
	}
	c.lastHit = time.Now()
	c.mu.Unlock()

	if c.owner.IsRanged() && h.Kind == protocol.HitDamage {
		c.mgr.launchProjectile(c.owner, target, h)
		return true
	}
	c.mgr.applyHit(c.owner, target, h)
	return true
}

// ForceAttack restarts the combat and lands a hit immediately, with a
// second one queued behind it. Used when a client-observed event demands
// an instant reaction instead of waiting for the next attack tick. An
// out-of-reach target is left to the regular follow/attack ticks.
func (c *Combat) ForceAttack() {
	target, ok := c.mgr.world.GetCharacter(c.owner.Target())
	if !ok || !InProximity(c.owner, target) {
		return
	}
	c.Stop()
	c.Start()

	c.mu.Lock()
	c.lastHit = time.Time{} // bypass pacing for the immediate hit
	c.mu.Unlock()

	c.queue.Enqueue(Hit{Kind: protocol.HitDamage, Amount: c.mgr.calc.Damage(c.owner, target)})
	c.queue.Enqueue(Hit{Kind: protocol.HitDamage, Amount: c.mgr.calc.Damage(c.owner, target)})
	c.hit(target)
	c.lastAction.set(time.Now())
}

// followTick keeps the combatant moving relative to its target: follow
// hints for onlookers, mobs disengaging toward spawn, un-stacking two
// combatants on one tile, and chasing an out-of-reach attacker.
func (c *Combat) followTick() {
	owner := c.owner

	if mob, ok := c.mgr.world.GetMob(owner.Instance()); ok {
		if c.mobDisengage(mob) {
			return
		}
	}

	target, ok := c.mgr.world.GetCharacter(owner.Target())
	if !ok {
		return
	}

	c.mgr.world.PushSelectively(owner.Group(), protocol.Follow{
		Instance: owner.Instance(),
		Target:   target.Instance(),
	}, []uint32{owner.Instance(), target.Instance()})

	if owner.Position() == target.Position() {
		c.nudge(target)
		return
	}

	if !InProximity(owner, target) {
		c.chase()
	}
}

// mobDisengage sends an unattacked mob back to its spawn anchor. Reports
// true when the mob is going (or has gone) home so the tick chases no one.
func (c *Combat) mobDisengage(mob *model.Mob) bool {
	if mob.Returning() {
		if mob.AtSpawn() {
			mob.Arrived()
			c.Stop()
		}
		return true
	}
	if c.AttackerCount() == 0 && !mob.AtSpawn() {
		c.mgr.sendHome(mob)
		return true
	}
	return false
}

// nudge moves one of two stacked combatants to a random adjacent tile so
// they never fight from the same square.
func (c *Combat) nudge(target *model.Character) {
	pos := target.Position()
	dirs := [4]model.Position{
		{X: pos.X + 1, Y: pos.Y},
		{X: pos.X - 1, Y: pos.Y},
		{X: pos.X, Y: pos.Y + 1},
		{X: pos.X, Y: pos.Y - 1},
	}
	next := dirs[rand.Intn(len(dirs))]
	if !c.mgr.inBounds(next) {
		return // try again next tick with a fresh roll
	}
	c.mgr.moveCharacter(target, next, true)
}

// chase walks a mob (or a retaliating player) one tile toward its closest
// attacker.
func (c *Combat) chase() {
	owner := c.owner
	_, isMob := c.mgr.world.GetMob(owner.Instance())
	if !isMob {
		p, ok := c.mgr.world.GetPlayer(owner.Instance())
		if !ok || !p.Retaliate() {
			return
		}
	}

	attacker, ok := c.closestAttacker()
	if !ok {
		return
	}
	next := stepToward(owner.Position(), attacker.Position())
	if next == owner.Position() || !c.mgr.inBounds(next) {
		return
	}
	c.mgr.moveCharacter(owner, next, false)
}

// closestAttacker resolves the nearest member of the attacker set.
// Despawned attackers are skipped; they will be pruned by cleanup.
func (c *Combat) closestAttacker() (*model.Character, bool) {
	c.mu.Lock()
	instances := make([]uint32, 0, len(c.attackers))
	for instance := range c.attackers {
		instances = append(instances, instance)
	}
	c.mu.Unlock()

	var closest *model.Character
	best := 0
	for _, instance := range instances {
		ch, ok := c.mgr.world.GetCharacter(instance)
		if !ok {
			continue
		}
		d := c.owner.Position().Distance(ch.Position())
		if closest == nil || d < best {
			closest, best = ch, d
		}
	}
	return closest, closest != nil
}

// graceCleanup runs well after a stop. A mob that took no hit recently
// forgets the fight entirely and heads home.
func (c *Combat) graceCleanup() {
	c.mu.Lock()
	recent := time.Since(c.lastHit) <= recentHitWindow
	c.mu.Unlock()
	if recent {
		return
	}

	mob, ok := c.mgr.world.GetMob(c.owner.Instance())
	if !ok {
		return
	}
	c.ResetAttackers()
	c.owner.ClearTarget()
	c.queue.Clear()
	if !mob.AtSpawn() {
		c.mgr.sendHome(mob)
	}
}

// AddAttacker records an engaged enemy instance.
func (c *Combat) AddAttacker(instance uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attackers[instance] = struct{}{}
}

// RemoveAttacker forgets an enemy instance (death, despawn, disengage).
func (c *Combat) RemoveAttacker(instance uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.attackers, instance)
}

// AttackerCount returns the size of the attacker set.
func (c *Combat) AttackerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.attackers)
}

// ResetAttackers empties the attacker set.
func (c *Combat) ResetAttackers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.attackers)
}

// InProximity applies the attack-range test: ranged attackers reach any
// tile within their weapon range, melee attackers need strict non-diagonal
// adjacency.
func InProximity(attacker, target *model.Character) bool {
	if attacker.IsRanged() {
		return attacker.Position().Distance(target.Position()) <= attacker.AttackRange()
	}
	return attacker.Position().AdjacentNonDiagonal(target.Position())
}

// stepToward returns the next tile on a straight-ish path from a to b,
// moving one axis at a time.
func stepToward(from, to model.Position) model.Position {
	next := from
	switch {
	case to.X > from.X:
		next.X++
	case to.X < from.X:
		next.X--
	case to.Y > from.Y:
		next.Y++
	case to.Y < from.Y:
		next.Y--
	}
	return next
}
