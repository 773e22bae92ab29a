package combat

import (
	"sync"
	"testing"
	"time"

	"github.com/udisondev/realmgo/internal/model"
	"github.com/udisondev/realmgo/internal/world"
)

type flatMap struct{}

func (flatMap) Width() int                                             { return 128 }
func (flatMap) Height() int                                            { return 128 }
func (flatMap) IsDoor(model.Position) bool                             { return false }
func (flatMap) DoorDestination(model.Position) (model.Position, bool)  { return model.Position{}, false }

func newTestManager(t *testing.T, damage int) (*Manager, *world.World) {
	t.Helper()
	w := world.New(flatMap{})
	return NewManager(w, FixedDamage(damage)), w
}

func addFighter(w *world.World, instance uint32, x, y, hp int) *model.Player {
	p := model.NewPlayer(instance, "fighter", model.Position{X: x, Y: y})
	p.SetVitals(hp, hp, 10, 10)
	w.AddPlayer(p, nil)
	return p
}

func addMobAt(w *world.World, instance uint32, x, y, hp int) *model.Mob {
	m := model.NewMob(instance, 7, "rat", model.Position{X: x, Y: y}, hp)
	w.AddMob(m)
	return m
}

func TestStartIsIdempotent(t *testing.T) {
	mgr, w := newTestManager(t, 5)
	p := addFighter(w, 1, 5, 5, 50)

	c := mgr.For(p.Character)
	c.Start()
	first := c.stopCh
	c.Start()

	if !c.Started() {
		t.Fatal("combat not started")
	}
	if c.stopCh != first {
		t.Error("second Start replaced the running loop")
	}
	c.Stop()
	if c.Started() {
		t.Error("combat still started after Stop")
	}
}

func TestStopOnIdleCombatMutatesNothing(t *testing.T) {
	mgr, w := newTestManager(t, 5)
	p := addFighter(w, 1, 5, 5, 50)

	c := mgr.For(p.Character)
	c.Stop()

	if c.Started() {
		t.Error("idle combat reported started after Stop")
	}
	if c.cleanup != nil {
		t.Error("Stop on idle combat scheduled a cleanup")
	}

	// The combat must still be startable afterwards.
	c.Start()
	if !c.Started() {
		t.Error("combat refused to start after an idle Stop")
	}
	c.Stop()
}

// No two applied hits may be separated by less than the attack rate, no
// matter how many triggers race to land one.
func TestHitIsRateLimited(t *testing.T) {
	mgr, w := newTestManager(t, 5)
	attacker := addFighter(w, 1, 5, 5, 50)
	target := addFighter(w, 2, 5, 6, 50)
	attacker.SetTarget(target.Instance())

	c := mgr.For(attacker.Character)
	for i := 0; i < 10; i++ {
		c.queue.Enqueue(Hit{Amount: 5})
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.hit(target.Character)
		}()
	}
	wg.Wait()

	hp, _ := target.HP()
	if hp != 45 {
		t.Errorf("target hp = %d, want 45 (exactly one hit within the rate window)", hp)
	}
}

func TestHitAppliesAgainAfterRateWindow(t *testing.T) {
	mgr, w := newTestManager(t, 5)
	attacker := addFighter(w, 1, 5, 5, 50)
	attacker.SetAttackRate(10 * time.Millisecond)
	target := addFighter(w, 2, 5, 6, 50)
	attacker.SetTarget(target.Instance())

	c := mgr.For(attacker.Character)
	c.queue.Enqueue(Hit{Amount: 5})
	c.queue.Enqueue(Hit{Amount: 5})

	if !c.hit(target.Character) {
		t.Fatal("first hit did not land")
	}
	if c.hit(target.Character) {
		t.Fatal("second hit landed inside the rate window")
	}
	time.Sleep(20 * time.Millisecond)
	if !c.hit(target.Character) {
		t.Fatal("hit did not land after the rate window elapsed")
	}

	hp, _ := target.HP()
	if hp != 40 {
		t.Errorf("target hp = %d, want 40", hp)
	}
}

// Pending hits are discarded the moment the target leaves proximity, and
// nothing lands until contact is regained.
func TestQueueClearsOnLostProximity(t *testing.T) {
	mgr, w := newTestManager(t, 5)
	attacker := addFighter(w, 1, 5, 5, 50)
	target := addFighter(w, 2, 5, 6, 50)
	attacker.SetTarget(target.Instance())

	c := mgr.For(attacker.Character)
	c.queue.Enqueue(Hit{Amount: 5})
	c.queue.Enqueue(Hit{Amount: 5})
	c.queue.Enqueue(Hit{Amount: 5})

	target.SetPosition(model.Position{X: 20, Y: 20})
	c.attackTick()

	if got := c.queue.Len(); got != 0 {
		t.Errorf("queue length = %d after lost proximity, want 0", got)
	}
	if hp, _ := target.HP(); hp != 50 {
		t.Errorf("target hp = %d, want 50 (no hit may land out of reach)", hp)
	}
}

func TestAttackTickLandsAndRequeues(t *testing.T) {
	mgr, w := newTestManager(t, 5)
	attacker := addFighter(w, 1, 5, 5, 50)
	target := addFighter(w, 2, 5, 6, 50)
	attacker.SetTarget(target.Instance())

	c := mgr.For(attacker.Character)
	c.queue.Enqueue(Hit{Amount: 5})
	c.attackTick()

	if hp, _ := target.HP(); hp != 45 {
		t.Errorf("target hp = %d, want 45", hp)
	}
	if got := c.queue.Len(); got != 1 {
		t.Errorf("queue length = %d after tick, want 1 fresh hit", got)
	}
}

func TestMeleeRequiresNonDiagonalAdjacency(t *testing.T) {
	_, w := newTestManager(t, 5)
	attacker := addFighter(w, 1, 5, 5, 50)
	diagonal := addFighter(w, 2, 6, 6, 50)

	if InProximity(attacker.Character, diagonal.Character) {
		t.Error("diagonal neighbour counted as melee proximity")
	}

	ranged := addFighter(w, 3, 10, 10, 50)
	ranged.SetRanged(7)
	far := addFighter(w, 4, 16, 14, 50)
	if !InProximity(ranged.Character, far.Character) {
		t.Error("target within weapon range not counted for ranged attacker")
	}
}

// A mob whose attacker set empties begins returning toward spawn within
// one follow tick.
func TestUnattackedMobReturnsToSpawn(t *testing.T) {
	mgr, w := newTestManager(t, 5)
	mob := addMobAt(w, 100, 10, 10, 30)
	mob.SetPosition(model.Position{X: 14, Y: 10}) // dragged away mid-chase

	c := mgr.For(mob.Character)
	c.followTick()

	if !mob.Returning() {
		t.Fatal("mob did not begin returning after its attacker set emptied")
	}
	if mob.Position() != mob.Spawn() {
		t.Errorf("mob at %v, want back at spawn %v", mob.Position(), mob.Spawn())
	}

	// Next tick it notices arrival and settles down.
	c.followTick()
	if mob.Returning() {
		t.Error("mob still returning after reaching spawn")
	}
}

func TestMobRetaliatesWhenHit(t *testing.T) {
	mgr, w := newTestManager(t, 5)
	attacker := addFighter(w, 1, 5, 5, 50)
	mob := addMobAt(w, 100, 5, 6, 30)
	attacker.SetTarget(mob.Instance())

	c := mgr.For(attacker.Character)
	c.queue.Enqueue(Hit{Amount: 5})
	if !c.hit(mob.Character) {
		t.Fatal("hit did not land")
	}

	mc := mgr.For(mob.Character)
	if mc.AttackerCount() != 1 {
		t.Errorf("mob attacker count = %d, want 1", mc.AttackerCount())
	}
	if mob.Target() != attacker.Instance() {
		t.Error("mob did not target its attacker")
	}
	if !mc.Started() {
		t.Error("mob combat not started by retaliation")
	}
	mc.Stop()
}

func TestLethalHitFinishesBothSides(t *testing.T) {
	mgr, w := newTestManager(t, 30)
	attacker := addFighter(w, 1, 5, 5, 50)
	mob := addMobAt(w, 100, 5, 6, 30)
	attacker.SetTarget(mob.Instance())

	var killed uint32
	mgr.SetDeathFunc(func(killer, victim *model.Character) {
		killed = victim.Instance()
	})

	c := mgr.For(attacker.Character)
	c.queue.Enqueue(Hit{Amount: 30})
	if !c.hit(mob.Character) {
		t.Fatal("hit did not land")
	}

	if killed != mob.Instance() {
		t.Errorf("death hook saw victim %d, want %d", killed, mob.Instance())
	}
	if attacker.HasTarget() {
		t.Error("killer still has a target after the kill")
	}
	if !mob.IsDead() {
		t.Error("mob not marked dead")
	}
}

func TestForceAttackLandsImmediately(t *testing.T) {
	mgr, w := newTestManager(t, 5)
	attacker := addFighter(w, 1, 5, 5, 50)
	target := addFighter(w, 2, 5, 6, 50)

	mgr.ForceAttack(attacker.Character, target.Instance())

	if hp, _ := target.HP(); hp != 45 {
		t.Errorf("target hp = %d, want 45 (one immediate hit)", hp)
	}
	c := mgr.For(attacker.Character)
	if got := c.queue.Len(); got != 1 {
		t.Errorf("queue length = %d after force attack, want 1 follow-up", got)
	}
	if !c.Started() {
		t.Error("force attack did not start the combat")
	}
	c.Stop()
}

func TestForceAttackRequiresProximity(t *testing.T) {
	mgr, w := newTestManager(t, 5)
	attacker := addFighter(w, 1, 5, 5, 50)
	target := addFighter(w, 2, 20, 20, 50)

	mgr.ForceAttack(attacker.Character, target.Instance())

	if hp, _ := target.HP(); hp != 50 {
		t.Errorf("target hp = %d, want 50 (out-of-reach target must not be hit)", hp)
	}
	c := mgr.For(attacker.Character)
	if c.Started() {
		t.Error("force attack started a combat with nothing in reach")
	}
	if got := c.queue.Len(); got != 0 {
		t.Errorf("queue length = %d, want 0", got)
	}
}

func TestForceAttackRestartsTickLoop(t *testing.T) {
	mgr, w := newTestManager(t, 5)
	attacker := addFighter(w, 1, 5, 5, 50)
	target := addFighter(w, 2, 5, 6, 50)
	attacker.SetTarget(target.Instance())

	c := mgr.For(attacker.Character)
	c.Start()
	first := c.stopCh

	mgr.ForceAttack(attacker.Character, target.Instance())

	if !c.Started() {
		t.Fatal("combat not running after force attack")
	}
	c.mu.Lock()
	restarted := c.stopCh != first
	c.mu.Unlock()
	if !restarted {
		t.Error("force attack reused the old tick loop instead of restarting it")
	}
	c.Stop()
}

func TestProjectileImpactReconciliation(t *testing.T) {
	mgr, w := newTestManager(t, 8)
	archer := addFighter(w, 1, 5, 5, 50)
	archer.SetRanged(7)
	target := addFighter(w, 2, 9, 5, 50)
	archer.SetTarget(target.Instance())

	c := mgr.For(archer.Character)
	c.queue.Enqueue(Hit{Amount: 8})
	if !c.hit(target.Character) {
		t.Fatal("ranged hit did not launch")
	}

	// Damage is held until the impact report arrives.
	if hp, _ := target.HP(); hp != 50 {
		t.Fatalf("target hp = %d before impact, want 50", hp)
	}

	var projInstance uint32
	mgr.projectiles.Range(func(key, _ any) bool {
		projInstance = key.(uint32)
		return false
	})
	if projInstance == 0 {
		t.Fatal("no pending projectile recorded")
	}

	mgr.ResolveImpact(projInstance)
	if hp, _ := target.HP(); hp != 42 {
		t.Errorf("target hp = %d after impact, want 42", hp)
	}

	// A second report for the same projectile is ignored.
	mgr.ResolveImpact(projInstance)
	if hp, _ := target.HP(); hp != 42 {
		t.Error("duplicate impact report applied damage twice")
	}
}

func TestReleaseDropsCombat(t *testing.T) {
	mgr, w := newTestManager(t, 5)
	p := addFighter(w, 1, 5, 5, 50)

	c := mgr.For(p.Character)
	c.Start()
	mgr.Release(p.Instance())

	if c.Started() {
		t.Error("released combat still running")
	}
	if _, ok := mgr.Lookup(p.Instance()); ok {
		t.Error("released combat still registered")
	}
}
