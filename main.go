package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"notesync/engine"
	"notesync/models"
	"notesync/web"

	"github.com/rohanthewiz/logger"
)

func main() {
	logger.SetLogLevel("info")

	cfg, err := engine.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	store, err := models.OpenKV(cfg.DBPath, cfg.StorePassphrase)
	if err != nil {
		log.Fatal("Failed to open store: ", err)
	}
	defer store.Close()

	transport := engine.NewHTTPTransport(cfg.HubURL, cfg.HTTPTimeout, cfg.MsgpackValues)

	eng, err := engine.NewSyncEngine(cfg, store, transport, nil)
	if err != nil {
		log.Fatal("Failed to build sync engine: ", err)
	}
	defer eng.Close()

	// A token from the environment starts syncing immediately; otherwise
	// the engine stays offline until one arrives via the session API.
	if cfg.Token != "" {
		eng.SetToken(cfg.Token)
	}

	// Stop scheduling cleanly on shutdown; an in-flight attempt completes.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("Shutting down")
		eng.Close()
		store.Close()
		os.Exit(0)
	}()

	srv := web.NewServer(cfg.WebAddr, eng)
	logger.Info("Starting notesync", "addr", cfg.WebAddr, "hub", cfg.HubURL)
	log.Fatal(web.Run(srv))
}
