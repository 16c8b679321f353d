package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/hungtruong03/SAPromotion/internal/app"
	"github.com/hungtruong03/SAPromotion/internal/config"
	log "github.com/sirupsen/logrus"
)

func main() {
	var cfg config.AppConfig
	flag.StringVar(&cfg.ConfigPath, "config", config.DefaultConfigPath, "path to the YAML config file")
	flag.BoolVar(&cfg.MigrateOnly, "migrate-only", false, "run database migrations and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnly {
		if err := app.Migrate(ctx, cfg); err != nil {
			log.WithError(err).Fatal("migration failed")
		}
		return
	}
	if err := app.RunServer(ctx, cfg); err != nil {
		log.WithError(err).Fatal("promotion service stopped")
	}
}
