package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"microsimview/pkg/config"
	"microsimview/pkg/logging"
	"microsimview/pkg/server"
	"microsimview/pkg/simulate"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "microsim.yaml", "Configuration file (YAML, or TOML with a .toml extension)")
	addr := flag.String("addr", "", "Listen address (overrides server.address)")
	writeConfig := flag.Bool("write-config", false, "Write a default configuration file to -config and exit")
	noGzip := flag.Bool("no-gzip", false, "Disable response compression")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to: %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Logging.SetLogger(); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logging.Shutdown()

	if *addr != "" {
		cfg.Server.Address = *addr
	}
	if *noGzip {
		cfg.Server.Gzip = false
	}

	fmt.Println("================================")
	fmt.Println(server.Title + " " + server.Version)
	fmt.Println("================================")

	srv, err := server.New(simulate.Synthetic{}, server.Options{
		CORSOrigins:  cfg.Server.CORSOrigins,
		PlaneCacheMB: cfg.Server.PlaneCacheMB,
		Gzip:         cfg.Server.Gzip,
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Serving on http://%s (Ctrl-C to stop)\n", cfg.Server.Address)
	if err := srv.ListenAndServe(ctx, cfg.Server.Address); err != nil {
		logging.Criticalf("Server failed: %v\n", err)
		logging.Shutdown()
		os.Exit(1)
	}
	fmt.Println("Server stopped.")
}
