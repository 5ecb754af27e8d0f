package main

import (
	"fmt"
	"log/slog"

	"github.com/zulandar/sponsormatch/internal/config"
	"github.com/zulandar/sponsormatch/internal/db"
	"github.com/zulandar/sponsormatch/internal/identity"
	"github.com/zulandar/sponsormatch/internal/models"
	"github.com/zulandar/sponsormatch/internal/notify"
	"github.com/zulandar/sponsormatch/internal/reconcile"
	"gorm.io/gorm"
)

// connectFromConfig loads config and returns a GORM DB connection.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		target := cfg.Database.Name
		if cfg.Database.Driver == "sqlite" {
			target = cfg.Database.Path
		}
		return nil, nil, fmt.Errorf("connect to %s: %w", target, err)
	}

	return cfg, gormDB, nil
}

// rolePairs returns the channels seeded by "sm db init".
func rolePairs(gormDB *gorm.DB) ([]reconcile.RolePair, error) {
	if !gormDB.Migrator().HasTable(&models.RolePairConfig{}) {
		return nil, fmt.Errorf("database is not initialized; run \"sm db init\" first")
	}
	seeded, err := db.RolePairs(gormDB)
	if err != nil {
		return nil, err
	}
	if len(seeded) == 0 {
		return nil, fmt.Errorf("no channels configured; run \"sm db init\" first")
	}
	pairs := make([]reconcile.RolePair, len(seeded))
	for i, rp := range seeded {
		pairs[i] = reconcile.RolePair{Kind: rp.Kind, ASide: rp.ASideRole, BSide: rp.BSideRole}
	}
	return pairs, nil
}

// buildSinks creates the notification sinks enabled in config. The in-app
// inbox is always first.
func buildSinks(cfg *config.Config, gormDB *gorm.DB) ([]notify.Notifier, error) {
	sinks := []notify.Notifier{notify.NewStore(gormDB)}
	if cfg.Notify.Command != "" {
		sinks = append(sinks, notify.Command{Template: cfg.Notify.Command})
	}
	if s := cfg.Notify.Slack; s.BotToken != "" {
		sl, err := notify.NewSlack(notify.SlackOpts{BotToken: s.BotToken, ChannelID: s.ChannelID})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sl)
	}
	if d := cfg.Notify.Discord; d.BotToken != "" {
		dc, err := notify.NewDiscord(notify.DiscordOpts{BotToken: d.BotToken, ChannelID: d.ChannelID})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, dc)
	}
	return sinks, nil
}

// buildRegistry wires one engine per seeded channel.
func buildRegistry(gormDB *gorm.DB, ids identity.Resolver, n notify.Notifier, logger *slog.Logger) (*reconcile.Registry, error) {
	pairs, err := rolePairs(gormDB)
	if err != nil {
		return nil, err
	}
	return reconcile.NewRegistry(gormDB, pairs, reconcile.Options{
		Identity: ids,
		Notifier: n,
		Logger:   logger,
	})
}

// openEngines is the one-shot CLI wiring: notifications are delivered
// synchronously before the command exits.
func openEngines(configPath string, logger *slog.Logger) (*reconcile.Registry, error) {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, err
	}
	sinks, err := buildSinks(cfg, gormDB)
	if err != nil {
		return nil, err
	}
	reg, err := buildRegistry(gormDB, identity.NewStore(gormDB), notify.NewDispatcher(logger, sinks...), logger)
	if err != nil {
		return nil, err
	}
	return reg, nil
}
