package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mzharov/sketchroom/api"
	"github.com/mzharov/sketchroom/config"
	"github.com/mzharov/sketchroom/room"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "."
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	shutdownCtx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	registry := room.NewRegistry(shutdownCtx)
	sketchroomApi := api.New(registry, cfg, shutdownCtx)

	mux := http.NewServeMux()
	sketchroomApi.RegisterRoutes(mux, cfg.Server.Origin)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s\n", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}
