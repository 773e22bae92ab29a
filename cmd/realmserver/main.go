package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/realmgo/internal/auth"
	"github.com/udisondev/realmgo/internal/config"
	"github.com/udisondev/realmgo/internal/data"
	"github.com/udisondev/realmgo/internal/db"
	"github.com/udisondev/realmgo/internal/game/combat"
	"github.com/udisondev/realmgo/internal/gameserver"
	"github.com/udisondev/realmgo/internal/spawn"
	"github.com/udisondev/realmgo/internal/world"
)

const ConfigPath = "config/realmserver.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := ConfigPath
	if p := os.Getenv("REALMGO_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadGameServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	slog.Info("realm server starting",
		"bind", cfg.BindAddress,
		"port", cfg.Port,
		"offline_mode", cfg.OfflineMode,
		"log_level", cfg.LogLevel)

	gamemap, err := data.LoadMap(cfg.MapPath)
	if err != nil {
		return fmt.Errorf("loading map: %w", err)
	}
	slog.Info("map loaded", "width", gamemap.Width(), "height", gamemap.Height())

	entries, err := spawn.LoadEntries(cfg.SpawnPath)
	if err != nil {
		return fmt.Errorf("loading spawn list: %w", err)
	}

	database, err := db.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()
	slog.Info("database connected")

	if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database migrations applied")

	var provider auth.Provider
	if cfg.OfflineMode {
		provider = auth.NewDBProvider(database.Pool())
	} else {
		provider = auth.NewHTTPProvider(cfg.AuthURL, nil)
	}

	w := world.New(gamemap)
	slog.Info("world initialized", "groups", w.GroupCount())

	combatMgr := combat.NewManager(w, nil)
	spawnMgr := spawn.NewManager(w, entries)
	charRepo := db.NewCharacterRepository(database.Pool())

	server := gameserver.NewServer(cfg, w, combatMgr, spawnMgr, provider, charRepo)
	server.SetStartPosition(gamemap.Start())

	spawned := spawnMgr.SpawnAll()
	slog.Info("world populated", "mobs", spawned)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx)
	})
	return g.Wait()
}
