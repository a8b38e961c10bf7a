package main

import (
	"flag"
	"log"
	"os"

	"MealSignal/internal/di"
	"MealSignal/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s data=%s meals=%s signals=%s participants=%d",
		cfg.Environment, cfg.Data.Backend, cfg.Data.MealMode, cfg.Data.SignalBackend, len(cfg.Data.Participants))

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
