package gameserver

import (
	"testing"

	"github.com/udisondev/realmgo/internal/config"
	"github.com/udisondev/realmgo/internal/game/combat"
	"github.com/udisondev/realmgo/internal/model"
	"github.com/udisondev/realmgo/internal/protocol"
	"github.com/udisondev/realmgo/internal/spawn"
	"github.com/udisondev/realmgo/internal/world"
)

type testMap struct {
	doors map[model.Position]model.Position
}

func (testMap) Width() int  { return 128 }
func (testMap) Height() int { return 128 }

func (m testMap) IsDoor(pos model.Position) bool {
	_, ok := m.doors[pos]
	return ok
}

func (m testMap) DoorDestination(pos model.Position) (model.Position, bool) {
	to, ok := m.doors[pos]
	return to, ok
}

// harness bundles a server and its world for handler-level tests. The
// clients run without a transport: packets queue on the send channel.
type harness struct {
	server *Server
	world  *world.World
}

func newHarness(t *testing.T, doors map[model.Position]model.Position) *harness {
	t.Helper()
	if doors == nil {
		doors = map[model.Position]model.Position{}
	}
	w := world.New(testMap{doors: doors})
	cm := combat.NewManager(w, combat.FixedDamage(5))
	sm := spawn.NewManager(w, nil)
	srv := NewServer(config.DefaultGameServer(), w, cm, sm, nil, nil)
	return &harness{server: srv, world: w}
}

// connect binds a fresh logged-in player to a transportless client.
func (h *harness) connect(t *testing.T, name string, x, y int) *Client {
	t.Helper()
	c := newClient(h.server, nil)
	instance := h.world.IDs().NextPlayer()
	p := model.NewPlayer(instance, name, model.Position{X: x, Y: y})
	p.SetVitals(50, 50, 10, 10)
	c.player = p
	h.server.registerClient(c, p)
	h.world.AddPlayer(p, c.Send)
	return c
}

// drain empties the client's queue and returns the decoded messages.
func drain(t *testing.T, c *Client) []protocol.Message {
	t.Helper()
	var msgs []protocol.Message
	for {
		select {
		case data := <-c.send:
			msg, err := protocol.Decode(data)
			if err != nil {
				t.Fatalf("decoding queued packet: %v", err)
			}
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

// Request carrying a client position that disagrees with the server's
// must change nothing and emit nothing.
func TestMoveRequestDesyncRejected(t *testing.T) {
	h := newHarness(t, nil)
	actor := h.connect(t, "alice", 5, 5)
	observer := h.connect(t, "bob", 6, 5)
	drain(t, observer)

	actor.handleMoveRequest(protocol.MoveRequest{
		RequestX: 10, RequestY: 10,
		ClientX: 5, ClientY: 6, // server says (5,5)
	})

	if got := actor.player.Position(); got != (model.Position{X: 5, Y: 5}) {
		t.Errorf("position = %v after desynced request, want (5,5)", got)
	}
	if _, guessed := actor.player.Guessed(); guessed {
		t.Error("desynced request recorded a guessed destination")
	}
	if msgs := drain(t, observer); len(msgs) != 0 {
		t.Errorf("observer received %d messages after a rejected request", len(msgs))
	}
}

func TestMoveRequestRecordsGuessWithoutMoving(t *testing.T) {
	h := newHarness(t, nil)
	actor := h.connect(t, "alice", 5, 5)

	actor.handleMoveRequest(protocol.MoveRequest{
		RequestX: 10, RequestY: 10,
		ClientX: 5, ClientY: 5,
	})

	if got := actor.player.Position(); got != (model.Position{X: 5, Y: 5}) {
		t.Errorf("request moved the player to %v", got)
	}
	guess, ok := actor.player.Guessed()
	if !ok || guess != (model.Position{X: 10, Y: 10}) {
		t.Errorf("guessed = %v, %v; want (10,10), true", guess, ok)
	}
}

func TestMoveStartedSetsMovingOnAgreement(t *testing.T) {
	h := newHarness(t, nil)
	actor := h.connect(t, "alice", 5, 5)

	actor.handleMoveStarted(protocol.MoveStarted{
		SelectedX: 9, SelectedY: 9, ClientX: 5, ClientY: 6,
	})
	if actor.player.Moving() {
		t.Fatal("desynced Started marked the player as moving")
	}

	actor.handleMoveStarted(protocol.MoveStarted{
		SelectedX: 9, SelectedY: 9, ClientX: 5, ClientY: 5,
	})
	if !actor.player.Moving() {
		t.Fatal("validated Started did not mark the player as moving")
	}
}

// A step is trusted only within one tile of the authoritative position.
func TestMoveStepBounded(t *testing.T) {
	h := newHarness(t, nil)
	actor := h.connect(t, "alice", 5, 5)
	observer := h.connect(t, "bob", 6, 5)
	drain(t, observer)

	actor.handleMoveStep(protocol.MoveStep{X: 9, Y: 5}) // 4 tiles away
	if got := actor.player.Position(); got != (model.Position{X: 5, Y: 5}) {
		t.Fatalf("oversized step applied: position = %v", got)
	}
	if msgs := drain(t, observer); len(msgs) != 0 {
		t.Fatal("oversized step was broadcast")
	}

	actor.handleMoveStep(protocol.MoveStep{X: 6, Y: 5})
	if got := actor.player.Position(); got != (model.Position{X: 6, Y: 5}) {
		t.Fatalf("valid step not applied: position = %v", got)
	}

	msgs := drain(t, observer)
	if len(msgs) != 1 {
		t.Fatalf("observer received %d messages, want 1 movement", len(msgs))
	}
	move, ok := msgs[0].(protocol.Move)
	if !ok || move.X != 6 || move.Y != 5 {
		t.Errorf("observer saw %#v, want Move to (6,5)", msgs[0])
	}
	if msgs := drain(t, actor); len(msgs) != 0 {
		t.Error("actor received an echo of its own step")
	}
}

func TestMoveStopThroughDoorTeleports(t *testing.T) {
	door := model.Position{X: 6, Y: 5}
	dest := model.Position{X: 100, Y: 100}
	h := newHarness(t, map[model.Position]model.Position{door: dest})
	actor := h.connect(t, "alice", 5, 5)

	actor.handleMoveStop(protocol.MoveStop{X: 6, Y: 5, Target: protocol.NoInstance})

	if got := actor.player.Position(); got != dest {
		t.Fatalf("position = %v after door stop, want %v", got, dest)
	}
	if actor.player.Moving() {
		t.Error("player still marked moving after stop")
	}
	if got := actor.player.Group(); got != (model.GroupID{X: 6, Y: 6}) {
		t.Errorf("group = %v after teleport, want (6,6)", got)
	}

	var sawTeleport bool
	for _, msg := range drain(t, actor) {
		if tp, ok := msg.(protocol.Teleport); ok && tp.X == dest.X && tp.Y == dest.Y {
			sawTeleport = true
		}
	}
	if !sawTeleport {
		t.Error("player was not told about its own teleport")
	}
}

func TestMoveStopPicksUpItem(t *testing.T) {
	h := newHarness(t, nil)
	actor := h.connect(t, "alice", 5, 5)

	item := model.NewEntity(h.world.IDs().NextItem(), 42, model.KindItem, "flask", model.Position{X: 6, Y: 5})
	h.world.AddEntity(item)

	actor.handleMoveStop(protocol.MoveStop{X: 6, Y: 5, Target: int64(item.Instance())})

	if _, ok := h.world.GetEntity(item.Instance()); ok {
		t.Error("item still in the world after pickup")
	}
}

func TestMoveStopIgnoresItemOnWrongTile(t *testing.T) {
	h := newHarness(t, nil)
	actor := h.connect(t, "alice", 5, 5)

	item := model.NewEntity(h.world.IDs().NextItem(), 42, model.KindItem, "flask", model.Position{X: 30, Y: 30})
	h.world.AddEntity(item)

	actor.handleMoveStop(protocol.MoveStop{X: 6, Y: 5, Target: int64(item.Instance())})

	if _, ok := h.world.GetEntity(item.Instance()); !ok {
		t.Error("item vanished although the player stopped elsewhere")
	}
}

// A mob reported past its roam distance gives up: attackers and target
// gone, Combat Finish announced, and the mob back on its spawn tile.
func TestMobReportBeyondRoamDistanceDisengages(t *testing.T) {
	h := newHarness(t, nil)
	actor := h.connect(t, "alice", 17, 11)
	observer := h.connect(t, "bob", 10, 11)

	mob := model.NewMob(h.world.IDs().NextMob(), 7, "rat", model.Position{X: 10, Y: 10}, 25)
	h.world.AddMob(mob)
	mob.SetTarget(actor.player.Instance())
	cmb := h.server.combat.For(mob.Character)
	cmb.AddAttacker(actor.player.Instance())

	mob.SetPosition(model.Position{X: 17, Y: 10})
	h.world.HandleMovedEntity(mob.Entity)
	drain(t, observer)

	actor.handleMoveEntity(protocol.MoveEntity{Instance: mob.Instance(), X: 18, Y: 10})

	if got := mob.Position(); got != (model.Position{X: 10, Y: 10}) {
		t.Errorf("mob position = %v, want its spawn tile", got)
	}
	if !mob.Returning() {
		t.Error("mob not marked returning after giving up the chase")
	}
	if mob.HasTarget() {
		t.Error("mob kept its target past the roam distance")
	}
	if got := cmb.AttackerCount(); got != 0 {
		t.Errorf("attacker count = %d after giving up, want 0", got)
	}

	var sawFinish bool
	for _, msg := range drain(t, observer) {
		if cb, ok := msg.(protocol.Combat); ok && cb.Type == protocol.CombatFinish {
			sawFinish = true
		}
	}
	if !sawFinish {
		t.Error("observers were not told the fight ended")
	}
}

// A reported mob move that lands in reach of its target swings at once
// instead of waiting for the next attack tick.
func TestMobReportWithTargetSwingsImmediately(t *testing.T) {
	h := newHarness(t, nil)
	actor := h.connect(t, "alice", 5, 5)

	mob := model.NewMob(h.world.IDs().NextMob(), 7, "rat", model.Position{X: 5, Y: 7}, 25)
	h.world.AddMob(mob)
	mob.SetTarget(actor.player.Instance())

	actor.handleMoveEntity(protocol.MoveEntity{Instance: mob.Instance(), X: 5, Y: 6})

	if hp, _ := actor.player.HP(); hp != 45 {
		t.Errorf("player hp = %d, want 45 (one immediate swing)", hp)
	}
	cmb, ok := h.server.combat.Lookup(mob.Instance())
	if !ok || !cmb.Started() {
		t.Error("mob combat not running after the swing")
	}
	if ok {
		cmb.Stop()
	}
}

func TestMoveEntityReportBounded(t *testing.T) {
	h := newHarness(t, nil)
	actor := h.connect(t, "alice", 5, 5)

	mob := model.NewMob(h.world.IDs().NextMob(), 7, "rat", model.Position{X: 10, Y: 10}, 25)
	h.world.AddMob(mob)

	actor.handleMoveEntity(protocol.MoveEntity{Instance: mob.Instance(), X: 90, Y: 90})
	if got := mob.Position(); got != (model.Position{X: 10, Y: 10}) {
		t.Fatalf("oversized mob report applied: %v", got)
	}

	actor.handleMoveEntity(protocol.MoveEntity{Instance: mob.Instance(), X: 11, Y: 10})
	if got := mob.Position(); got != (model.Position{X: 11, Y: 10}) {
		t.Fatalf("valid mob report not applied: %v", got)
	}
}
