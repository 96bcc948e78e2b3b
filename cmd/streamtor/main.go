package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"streamtor/pkg/api"
	"streamtor/pkg/availability"
	"streamtor/pkg/cache"
	"streamtor/pkg/config"
	"streamtor/pkg/debrid"
	"streamtor/pkg/env"
	"streamtor/pkg/logger"
	"streamtor/pkg/metadata"
	"streamtor/pkg/resolver"
	"streamtor/pkg/stremio"
	"streamtor/pkg/torrents"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	// Load environment variables for logger and bootstrap
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	logger.Init(env.LogLevel())
	defer logger.Close()

	logger.Info("Starting StreamTor", "version", Version)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", "error", err)
	}

	store := cache.NewStore(cfg.MetadataTTL(), cfg.TorrentsTTL(), cfg.StreamsTTL())

	metaClient := metadata.NewClient(cfg.CatalogURL, store)
	torrentClient := torrents.NewClient(cfg.AggregatorURL, store)
	debridClient := debrid.NewClient(cfg.DebridBaseURL, cfg.DebridAPIToken)

	service := resolver.NewService(
		cfg,
		metaClient,
		torrentClient,
		availability.New(debridClient),
		resolver.New(debridClient, store),
	)

	stremioServer, err := stremio.NewServer(cfg, service, Version)
	if err != nil {
		logger.Error("Failed to initialize Stremio server", "error", err)
		os.Exit(1)
	}

	apiServer := api.NewServer(cfg, store, service, Version)
	stremioServer.SetAPIHandler(apiServer.Routes())

	mux := http.NewServeMux()
	stremioServer.SetupRoutes(mux)

	addr := fmt.Sprintf(":%d", cfg.AddonPort)
	logger.Info("Addon listening", "addr", addr,
		"manifest", fmt.Sprintf("http://localhost:%d/manifest.json", cfg.AddonPort))

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("HTTP server failed", "error", err)
	}
}
