package gameserver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/udisondev/realmgo/internal/auth"
	"github.com/udisondev/realmgo/internal/db"
	"github.com/udisondev/realmgo/internal/model"
	"github.com/udisondev/realmgo/internal/protocol"
)

// authTimeout bounds the whole login exchange against the provider and
// the character store.
const authTimeout = 10 * time.Second

// dispatch routes one decoded message. Before authentication only Intro
// is accepted; everything else is dropped with a log entry, never a
// disconnect.
func (c *Client) dispatch(msg protocol.Message) {
	if c.rejected {
		return
	}
	if c.player == nil {
		if intro, ok := msg.(protocol.Intro); ok {
			c.handleIntro(intro)
		} else {
			slog.Debug("packet before login", "opcode", msg.Op())
		}
		return
	}

	switch m := msg.(type) {
	case protocol.Ready:
		c.handleReady(m)
	case protocol.MoveRequest:
		c.handleMoveRequest(m)
	case protocol.MoveStarted:
		c.handleMoveStarted(m)
	case protocol.MoveStep:
		c.handleMoveStep(m)
	case protocol.MoveStop:
		c.handleMoveStop(m)
	case protocol.MoveEntity:
		c.handleMoveEntity(m)
	case protocol.Target:
		c.handleTarget(m)
	case protocol.Combat:
		c.handleCombat(m)
	case protocol.Projectile:
		c.handleProjectile(m)
	case protocol.Who:
		c.handleWho(m)
	case protocol.Request:
		c.sendNearbyList()
	case protocol.Equipment:
		c.handleEquipment(m)
	case protocol.Chat:
		c.handleChat(m)
	case protocol.Animation:
		c.handleAnimation(m)
	default:
		slog.Debug("unhandled opcode", "opcode", msg.Op(), "player", c.player.Name())
	}
}

// handleIntro runs the whole login/registration flow. Every failure path
// closes with a specific reason; the session never stays half
// authenticated.
func (c *Client) handleIntro(m protocol.Intro) {
	if m.Version != c.server.cfg.ProtocolVersion {
		slog.Info("client version mismatch", "got", m.Version, "want", c.server.cfg.ProtocolVersion)
		c.closeWith("updated")
		return
	}
	if m.Username == "" {
		c.closeWith("invalidlogin")
		return
	}
	if _, online := c.server.onlineByName(m.Username); online {
		c.closeWith("loggedin")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
	defer cancel()

	result, err := c.server.auth.Authenticate(ctx, auth.Credentials{
		Username: m.Username,
		Password: m.Password,
		Email:    m.Email,
		Register: m.Type == protocol.IntroRegister,
	})
	if err != nil {
		slog.Warn("auth provider", "username", m.Username, "result", result.String(), "error", err)
	}
	if result != auth.ResultOK {
		c.closeWith(result.Notification())
		return
	}

	rec, err := c.loadRecord(ctx, m.Username)
	if err != nil {
		slog.Error("loading character", "name", m.Username, "error", err)
		c.closeWith("error")
		return
	}

	if rec.BanUntil.After(time.Now()) {
		c.closeWith("banned")
		return
	}

	c.spawnPlayer(rec)
}

// loadRecord fetches the sheet, or builds a fresh one at the map start
// tile for first-time characters.
func (c *Client) loadRecord(ctx context.Context, name string) (model.CharacterRecord, error) {
	if c.server.store == nil {
		return c.freshRecord(name), nil
	}
	rec, err := c.server.store.Load(ctx, name)
	if errors.Is(err, db.ErrCharacterNotFound) {
		return c.freshRecord(name), nil
	}
	if err != nil {
		return model.CharacterRecord{}, err
	}
	return rec, nil
}

func (c *Client) freshRecord(name string) model.CharacterRecord {
	rec := model.CharacterRecord{
		Name:      name,
		LastLogin: time.Now(),
	}
	for slot := range rec.Equipment {
		rec.Equipment[slot] = model.EmptyEquipment
	}
	start := c.server.startPosition()
	rec.X, rec.Y = start.X, start.Y
	return rec
}

// spawnPlayer binds the authenticated player to this connection and
// introduces it to the world.
func (c *Client) spawnPlayer(rec model.CharacterRecord) {
	instance := c.server.world.IDs().NextPlayer()
	p := model.NewPlayer(instance, rec.Name, model.Position{X: rec.X, Y: rec.Y})
	p.Load(rec)
	p.SetRetaliate(true)

	c.player = p
	c.server.registerClient(c, p)
	c.server.world.AddPlayer(p, c.Send)

	hp, maxHP := p.HP()
	mp, maxMP := p.MP()
	c.push(protocol.Welcome{
		Instance:  instance,
		Name:      p.Name(),
		X:         rec.X,
		Y:         rec.Y,
		Kind:      int(p.Kind()),
		Rights:    p.Rights(),
		HP:        hp,
		MaxHP:     maxHP,
		MP:        mp,
		MaxMP:     maxMP,
		Exp:       p.Experience(),
		Level:     p.Level(),
		LastLogin: p.LastLogin().Unix(),
		PvpKills:  rec.PvpKills,
		PvpDeaths: rec.PvpDeaths,
	})
	c.push(equipmentBatch(p))

	c.server.world.PushToAdjacentGroups(p.Group(), protocol.Spawn{
		Instance:    instance,
		ID:          p.ID(),
		Kind:        int(p.Kind()),
		X:           rec.X,
		Y:           rec.Y,
		Orientation: int(p.Orientation()),
		Name:        p.Name(),
	}, instance)

	c.server.saveAsync(p)
	slog.Info("player logged in", "name", p.Name(), "instance", instance)
}

func (c *Client) handleReady(m protocol.Ready) {
	if !m.Ready {
		return
	}
	c.player.SetReady()
	c.sendNearbyList()
}

// sendNearbyList tells the client which instances exist around it; the
// client answers with Who for the ones it has no state for.
func (c *Client) sendNearbyList() {
	instances := c.server.world.NearbyInstances(c.player.Group(), c.player.Instance())
	if len(instances) == 0 {
		return
	}
	c.push(protocol.List{Instances: instances})
}

// handleWho re-sends Spawn data for the instances the client asked about.
// Gone instances are skipped silently.
func (c *Client) handleWho(m protocol.Who) {
	for _, instance := range m.Instances {
		e, ok := c.server.world.GetEntity(instance)
		if !ok {
			continue
		}
		pos := e.Position()
		c.push(protocol.Spawn{
			Instance:    instance,
			ID:          e.ID(),
			Kind:        int(e.Kind()),
			X:           pos.X,
			Y:           pos.Y,
			Orientation: int(e.Orientation()),
			Name:        e.Name(),
		})
	}
}

func (c *Client) handleTarget(m protocol.Target) {
	p := c.player
	switch m.Type {
	case protocol.TargetAttack:
		target, ok := c.server.world.GetCharacter(m.Instance)
		if !ok || target.IsDead() {
			return
		}
		c.server.combat.Engage(p.Character, m.Instance)
		c.server.world.PushToAdjacentGroups(p.Group(), protocol.Combat{
			Type:     protocol.CombatInitiate,
			Attacker: int64(p.Instance()),
			Target:   int64(m.Instance),
		}, p.Instance())
	case protocol.TargetTalk:
		p.SetTarget(m.Instance)
	case protocol.TargetNone:
		p.ClearTarget()
	}
}

// handleCombat accepts the client-observed Hit variant; everything else
// on this opcode is server-to-client only.
func (c *Client) handleCombat(m protocol.Combat) {
	if m.Type != protocol.CombatHit {
		slog.Debug("ignoring client combat packet", "type", int(m.Type), "player", c.player.Name())
		return
	}
	if m.Attacker != int64(c.player.Instance()) {
		return // a client may only report its own swings
	}
	c.server.combat.TriggerHit(c.player.Character)
}

// handleProjectile reconciles a client-reported impact.
func (c *Client) handleProjectile(m protocol.Projectile) {
	if m.Type != protocol.ProjectileImpact {
		return
	}
	c.server.combat.ResolveImpact(m.Instance)
}

// handleEquipment applies an equip/unequip request, shows it to nearby
// observers, and persists.
func (c *Client) handleEquipment(m protocol.Equipment) {
	p := c.player
	if m.Slot < 0 || m.Slot >= int(model.EquipmentSlots) {
		slog.Debug("equipment slot out of range", "slot", m.Slot, "player", p.Name())
		return
	}

	switch m.Type {
	case protocol.EquipmentEquip:
		if len(m.Pieces) == 0 {
			return
		}
		piece := m.Pieces[0]
		p.Equip(model.EquipmentSlot(m.Slot), model.Equipment{
			ID:           piece.ID,
			Count:        piece.Count,
			Ability:      piece.Ability,
			AbilityLevel: piece.AbilityLevel,
		})
	case protocol.EquipmentUnequip:
		p.Equip(model.EquipmentSlot(m.Slot), model.EmptyEquipment)
	default:
		return
	}

	c.server.world.PushToAdjacentGroups(p.Group(), m, p.Instance())
	c.server.saveAsync(p)
}

// handleAnimation replays a client action for nearby observers. The
// instance is always the sender's own; clients cannot animate others.
func (c *Client) handleAnimation(m protocol.Animation) {
	p := c.player
	c.server.world.PushToAdjacentGroups(p.Group(), protocol.Animation{
		Instance: p.Instance(),
		Action:   m.Action,
	}, p.Instance())
}

func (c *Client) handleChat(m protocol.Chat) {
	p := c.player
	if p.Muted(time.Now()) {
		c.notify("muted")
		return
	}
	if m.Text == "" {
		return
	}
	c.server.world.PushToAdjacentGroups(p.Group(), protocol.Chat{
		Instance: p.Instance(),
		Text:     m.Text,
	}, 0)
}

// equipmentBatch builds the five-slot wire batch for a player.
func equipmentBatch(p *model.Player) protocol.Equipment {
	all := p.AllEquipment()
	pieces := make([]protocol.EquipmentPiece, 0, len(all))
	for _, item := range all {
		pieces = append(pieces, protocol.EquipmentPiece{
			ID:           item.ID,
			Count:        item.Count,
			Ability:      item.Ability,
			AbilityLevel: item.AbilityLevel,
		})
	}
	return protocol.Equipment{Type: protocol.EquipmentBatch, Pieces: pieces}
}
