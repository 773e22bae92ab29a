// Package gameserver accepts client connections, dispatches their packets
// into the world and combat engine, and carries every outbound message
// back onto the right connections.
package gameserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/udisondev/realmgo/internal/auth"
	"github.com/udisondev/realmgo/internal/config"
	"github.com/udisondev/realmgo/internal/game/combat"
	"github.com/udisondev/realmgo/internal/model"
	"github.com/udisondev/realmgo/internal/protocol"
	"github.com/udisondev/realmgo/internal/spawn"
	"github.com/udisondev/realmgo/internal/world"
)

// CharacterStore is the persistence collaborator. Saves are fire-and-
// forget from the hot path; a failure is logged and never disconnects
// the player.
type CharacterStore interface {
	Load(ctx context.Context, name string) (model.CharacterRecord, error)
	Save(ctx context.Context, rec model.CharacterRecord) error
}

// Server is the realm server: one websocket endpoint, one Client per
// connection.
type Server struct {
	cfg    config.GameServer
	world  *world.World
	combat *combat.Manager
	spawns *spawn.Manager
	auth   auth.Provider
	store  CharacterStore

	upgrader websocket.Upgrader

	clients sync.Map // map[uint32]*Client keyed by player instance
	byName  sync.Map // map[string]*Client keyed by lowercase name, duplicate-login guard

	start model.Position // tile for fresh characters

	httpSrv *http.Server
	mu      sync.Mutex
}

// NewServer wires the server and installs the death hook into the combat
// manager.
func NewServer(cfg config.GameServer, w *world.World, cm *combat.Manager,
	sm *spawn.Manager, provider auth.Provider, store CharacterStore) *Server {

	s := &Server{
		cfg:    cfg,
		world:  w,
		combat: cm,
		spawns: sm,
		auth:   provider,
		store:  store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    4096,
			WriteBufferSize:   4096,
			EnableCompression: true,
			CheckOrigin:       func(*http.Request) bool { return true },
		},
	}
	cm.SetDeathFunc(s.handleDeath)
	return s
}

// Run serves until the context is cancelled, then shuts down and stops
// every running combat.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWS)

	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	s.mu.Lock()
	s.httpSrv = &http.Server{Addr: addr, Handler: mux}
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("realm server listening", "addr", addr)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	go s.runSync(ctx)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.combat.StopAll()
		s.spawns.Stop()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	}
}

// handleWS upgrades the connection and opens the session with a
// Handshake; the client must echo the version in its Intro.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := newClient(s, conn)
	go client.writePump()

	client.push(protocol.Handshake{Version: s.cfg.ProtocolVersion})
	client.readPump()
}

// SetStartPosition sets the tile fresh characters spawn on.
func (s *Server) SetStartPosition(pos model.Position) { s.start = pos }

func (s *Server) startPosition() model.Position { return s.start }

// onlineByName finds a connected client by case-insensitive player name.
func (s *Server) onlineByName(name string) (*Client, bool) {
	value, ok := s.byName.Load(strings.ToLower(name))
	if !ok {
		return nil, false
	}
	return value.(*Client), true
}

func (s *Server) registerClient(c *Client, p *model.Player) {
	s.clients.Store(p.Instance(), c)
	s.byName.Store(strings.ToLower(p.Name()), c)
}

func (s *Server) unregisterClient(p *model.Player) {
	s.clients.Delete(p.Instance())
	s.byName.Delete(strings.ToLower(p.Name()))
}

// handleDeath is the combat manager's death hook: experience to the
// killer, then despawn and respawn for mobs or a spawn-point revival for
// players.
func (s *Server) handleDeath(killer, victim *model.Character) {
	s.rewardKiller(killer, victim)

	if _, ok := s.world.GetMob(victim.Instance()); ok {
		s.dropLoot(victim)
		s.world.Despawn(victim.Entity)
		s.combat.Release(victim.Instance())
		s.spawns.HandleDeath(victim.Instance())
		return
	}

	if p, ok := s.world.GetPlayer(victim.Instance()); ok {
		s.revivePlayer(p)
	}
}

func (s *Server) rewardKiller(killer, victim *model.Character) {
	p, ok := s.world.GetPlayer(killer.Instance())
	if !ok {
		return
	}
	amount := s.spawns.ExpReward(victim.Instance())
	if amount == 0 {
		return
	}

	level, leveled := p.AddExperience(amount)
	s.world.PushToPlayer(p, protocol.Experience{
		Instance: p.Instance(),
		Amount:   amount,
		Level:    level,
	})
	if leveled {
		hp, maxHP := p.HP()
		mp, maxMP := p.MP()
		s.world.PushToAdjacentGroups(p.Group(), protocol.Sync{
			Instance: p.Instance(),
			HP:       hp, MaxHP: maxHP,
			MP: mp, MaxMP: maxMP,
			Exp:   p.Experience(),
			Level: level,
		}, 0)
	}
	s.saveAsync(p)
}

// dropLoot places the mob's loot item on its death tile. Players pick it
// up by ending a walk on the tile.
func (s *Server) dropLoot(victim *model.Character) {
	itemID, ok := s.spawns.Loot(victim.Instance())
	if !ok {
		return
	}
	pos := victim.Position()
	item := model.NewEntity(s.world.IDs().NextItem(), itemID, model.KindItem, "", pos)
	s.world.AddEntity(item)
	s.world.PushToAdjacentGroups(item.Group(), protocol.Drop{
		Instance: item.Instance(),
		ID:       itemID,
		Count:    1,
		X:        pos.X,
		Y:        pos.Y,
	}, 0)
}

// revivePlayer puts a dead player back on its spawn tile at full vitals.
func (s *Server) revivePlayer(p *model.Player) {
	s.combat.Release(p.Instance())
	p.ClearTarget()
	p.Revive()

	spawnPos := p.Spawn()
	p.SetPosition(spawnPos)
	s.world.HandleMovedEntity(p.Entity)

	s.world.PushToAdjacentGroups(p.Group(), protocol.Teleport{
		Instance: p.Instance(),
		X:        spawnPos.X,
		Y:        spawnPos.Y,
	}, 0)

	hp, maxHP := p.HP()
	mp, maxMP := p.MP()
	s.world.PushToPlayer(p, protocol.Sync{
		Instance: p.Instance(),
		HP:       hp, MaxHP: maxHP,
		MP: mp, MaxMP: maxMP,
		Exp:   p.Experience(),
		Level: p.Level(),
	})
}

// saveAsync persists the player off the hot path. Failures are logged and
// never reach gameplay.
func (s *Server) saveAsync(p *model.Player) {
	if s.store == nil {
		return
	}
	rec := p.Record()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.Save(ctx, rec); err != nil {
			slog.Error("saving character", "name", rec.Name, "error", err)
		}
	}()
}

// regen restores a slice of a living player's health each sync tick and
// shows the effect on its client.
func (s *Server) regen(p *model.Player) {
	if p.IsDead() {
		return
	}
	hp, maxHP := p.HP()
	if hp >= maxHP {
		return
	}
	amount := maxHP / 10
	if amount < 1 {
		amount = 1
	}
	if hp+amount > maxHP {
		amount = maxHP - hp
	}
	p.Heal(amount)
	s.world.PushToPlayer(p, protocol.Heal{
		Instance: p.Instance(),
		Kind:     "health",
		Amount:   amount,
	})
}

// runSync periodically refreshes every player's vitals on its own client
// and persists the sheet.
func (s *Server) runSync(ctx context.Context) {
	interval := time.Duration(s.cfg.SyncInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.world.ForEachPlayer(func(p *model.Player) bool {
				s.regen(p)
				hp, maxHP := p.HP()
				mp, maxMP := p.MP()
				s.world.PushToPlayer(p, protocol.Sync{
					Instance: p.Instance(),
					HP:       hp, MaxHP: maxHP,
					MP: mp, MaxMP: maxMP,
					Exp:   p.Experience(),
					Level: p.Level(),
				})
				s.saveAsync(p)
				return true
			})
		}
	}
}
