package gameserver

import (
	"log/slog"

	"github.com/udisondev/realmgo/internal/model"
	"github.com/udisondev/realmgo/internal/protocol"
)

// maxStepDisplacement bounds one Step to a single tile from the
// authoritative position. Steps jumping further are discarded.
const maxStepDisplacement = 1

// handleMoveRequest validates the client's idea of where it stands
// against the authoritative position. A mismatch is a desync: the request
// is silently discarded, nothing is mutated, and the client learns
// nothing. On success only the guessed destination is recorded; the
// entity does not move yet.
func (c *Client) handleMoveRequest(m protocol.MoveRequest) {
	p := c.player
	if !c.positionsAgree(m.ClientX, m.ClientY) {
		return
	}
	p.GuessPosition(m.RequestX, m.RequestY)
}

// handleMoveStarted marks a validated walk as in progress.
func (c *Client) handleMoveStarted(m protocol.MoveStarted) {
	p := c.player
	if !c.positionsAgree(m.ClientX, m.ClientY) {
		return
	}
	p.SetMoving(true)
	p.FuturePosition(m.SelectedX, m.SelectedY)
}

// handleMoveStep applies one tile of an in-progress walk. The step is
// trusted only within a one-tile displacement of the authoritative
// position; anything larger is discarded and logged.
func (c *Client) handleMoveStep(m protocol.MoveStep) {
	p := c.player
	next := model.Position{X: m.X, Y: m.Y}
	if !c.stepAllowed(next) {
		slog.Warn("discarding oversized step",
			"player", p.Name(),
			"from", p.Position(),
			"to", next)
		return
	}
	c.applyMove(next, false)
}

// handleMoveStop ends the walk: final position, door teleports, and item
// pickup on the destination tile.
func (c *Client) handleMoveStop(m protocol.MoveStop) {
	p := c.player
	final := model.Position{X: m.X, Y: m.Y}
	if !c.inBounds(final) {
		slog.Warn("discarding out-of-bounds stop", "player", p.Name(), "to", final)
		return
	}

	c.applyMove(final, false)
	p.SetMoving(false)

	if m.Target != protocol.NoInstance {
		c.pickupItem(uint32(m.Target), final)
	}

	gamemap := c.server.world.Map()
	if dest, ok := gamemap.DoorDestination(final); ok && gamemap.IsDoor(final) {
		c.teleportThrough(dest)
	}
}

// handleMoveEntity is a client-observed position report for a mob. The
// same one-tile bound applies; players cannot fling mobs across the map.
func (c *Client) handleMoveEntity(m protocol.MoveEntity) {
	mob, ok := c.server.world.GetMob(m.Instance)
	if !ok {
		return // already gone
	}
	next := model.Position{X: m.X, Y: m.Y}
	if !c.inBounds(next) || mob.Position().Distance(next) > maxStepDisplacement {
		slog.Warn("discarding mob move report",
			"player", c.player.Name(),
			"mob", m.Instance,
			"to", next)
		return
	}

	mob.SetPosition(next)
	c.server.world.HandleMovedEntity(mob.Entity)
	c.server.world.PushToAdjacentGroups(mob.Group(), protocol.MoveEntity{
		Instance: m.Instance,
		X:        next.X,
		Y:        next.Y,
	}, c.player.Instance())

	// A mob dragged past its roam distance gives up the chase; one still
	// holding a target swings as soon as the move lands.
	if mob.DistanceToSpawn() > mob.RoamDistance() {
		c.server.combat.AbandonChase(mob)
		return
	}
	if mob.HasTarget() {
		c.server.combat.ForceAttack(mob.Character, mob.Target())
	}
}

// applyMove commits a position change: group membership is recomputed
// before the movement broadcast so the recipient set is never stale.
func (c *Client) applyMove(pos model.Position, teleport bool) {
	p := c.player
	p.SetPosition(pos)
	c.server.world.HandleMovedEntity(p.Entity)
	c.server.world.PushToAdjacentGroups(p.Group(), protocol.Move{
		Instance: p.Instance(),
		X:        pos.X,
		Y:        pos.Y,
		Teleport: teleport,
	}, p.Instance())
}

// teleportThrough relocates the player to a door's destination. The old
// adjacency hears the Teleport before membership is recomputed, then the
// new adjacency learns about the arrival.
func (c *Client) teleportThrough(dest model.Position) {
	p := c.player
	oldGroup := p.Group()

	msg := protocol.Teleport{Instance: p.Instance(), X: dest.X, Y: dest.Y}
	c.server.world.PushToAdjacentGroups(oldGroup, msg, p.Instance())

	p.SetPosition(dest)
	c.server.world.HandleMovedEntity(p.Entity)

	if p.Group() != oldGroup {
		c.server.world.PushToAdjacentGroups(p.Group(), msg, p.Instance())
	}
	c.push(msg)
	c.sendNearbyList()
}

// pickupItem removes a ground item the player stopped on.
func (c *Client) pickupItem(instance uint32, tile model.Position) {
	e, ok := c.server.world.GetEntity(instance)
	if !ok || e.Kind() != model.KindItem {
		return
	}
	if e.Position() != tile {
		return // the item is not where the client claims
	}
	c.server.world.Despawn(e)
}

// positionsAgree is the desync gate for Request and Started.
func (c *Client) positionsAgree(x, y int) bool {
	pos := c.player.Position()
	if pos.X == x && pos.Y == y {
		return true
	}
	slog.Debug("movement desync",
		"player", c.player.Name(),
		"server", pos,
		"client", model.Position{X: x, Y: y})
	return false
}

func (c *Client) stepAllowed(next model.Position) bool {
	if !c.inBounds(next) {
		return false
	}
	return c.player.Position().Distance(next) <= maxStepDisplacement
}

func (c *Client) inBounds(pos model.Position) bool {
	gamemap := c.server.world.Map()
	return pos.X >= 0 && pos.X < gamemap.Width() && pos.Y >= 0 && pos.Y < gamemap.Height()
}
