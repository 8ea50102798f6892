package main

import (
	"os"
	"os/signal"
	"syscall"

	"mai/config"
	"mai/internal/mediator"

	"github.com/TypeTerrors/gonfig"
	"github.com/charmbracelet/log"
)

func main() {

	cfg, err := gonfig.Load[config.Config](
		gonfig.WithConfigFile("config/config.yaml"),
		gonfig.WithDotenv(".env"), // ignored if missing
		gonfig.WithStrict(),       // fail if ${VAR} has no value/default
	)
	if err != nil {
		log.Fatal("failed to load config", "err", err)
	}

	app, err := mediator.NewApp(cfg)
	if err != nil {
		log.Fatal("failed to build app", "err", err)
	}

	done := make(chan struct{})
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		app.Shutdown()
		close(done)
	}()

	if err := app.Start(); err != nil {
		log.Fatal("server stopped", "err", err)
	}
	<-done
}
