package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"
	"mafia-server/internal/api"
	"mafia-server/internal/auth"
	"mafia-server/internal/config"
	"mafia-server/internal/core"
	database "mafia-server/internal/db"
	"mafia-server/internal/scheduler"
)

func main() {
	cfg, v, err := config.Load(afero.NewOsFs(), os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	config.ApplyLogging(cfg.Log)
	config.Watch(v, func(c *config.Config) { config.ApplyLogging(c.Log) })

	store, closeStore, err := openStore(cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("store")
	}
	defer closeStore()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	game := core.New(store, core.WithTimings(cfg.Phase))
	defer game.Close()

	go scheduler.New(game, cfg.Scheduler.Interval).Run(ctx)

	server := api.NewServer(game, auth.NewSigner(cfg.Auth.Secret, cfg.Auth.TTL), api.Options{
		RateLimit: rate.Limit(cfg.RateLimit.RPS),
		Burst:     cfg.RateLimit.Burst,
	})
	if err := api.Serve(ctx, cfg.Addr, server.Router()); err != nil {
		log.Error().Err(err).Msg("api stopped")
	}
	log.Info().Msg("shutting down")
}

func openStore(c config.StoreConfig) (database.Store, func(), error) {
	if c.Driver == "sqlite" {
		s, err := database.OpenSQLite(c.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
	s, err := database.NewMemoryStore()
	return s, func() {}, err
}
