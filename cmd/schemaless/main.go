package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZuoMatthew/schemaless/pkg/config"
	"github.com/ZuoMatthew/schemaless/pkg/schemaless"
	"github.com/ZuoMatthew/schemaless/pkg/server"
	"github.com/ZuoMatthew/schemaless/pkg/storage"
)

func main() {
	// Command line flags
	var (
		configPath = flag.String("config", "", "Path to a YAML config file")
		listen     = flag.String("listen", "", "Listen address (overrides config)")
		dataDir    = flag.String("data-dir", "", "Data directory for storage (overrides config)")
		inMemory   = flag.Bool("in-memory", false, "Run without persistence")
		importPath = flag.String("import", "", "Snapshot file to restore before serving")
		showHelp   = flag.Bool("help", false, "Show help message")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nschemaless is a JSON document store with secondary indexes over an embedded transactional engine.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                  # Start with defaults\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -config schemaless.yaml          # Config with keyspaces and indexes\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -listen :9090 -data-dir /var/db  # Custom address and directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -import snapshot%s             # Restore a snapshot on startup\n", os.Args[0], storage.FileExtension)
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("ERROR: %v", err)
		}
		log.Printf("INFO: Loaded config from %s", *configPath)
	}

	// Flags win over the config file.
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *inMemory {
		cfg.InMemory = true
	}

	var engineOptions []storage.EngineOption
	if cfg.InMemory {
		engineOptions = append(engineOptions, storage.WithInMemory())
		log.Printf("WARN: Running in-memory, data is lost on shutdown")
	} else {
		engineOptions = append(engineOptions, storage.WithDataDir(cfg.DataDir))
		log.Printf("INFO: Using data directory: %s", cfg.DataDir)
	}
	if cfg.SyncWrites {
		engineOptions = append(engineOptions, storage.WithSyncWrites(true))
	}

	db, err := schemaless.Open(engineOptions...)
	if err != nil {
		log.Fatalf("ERROR: Failed to open database: %v", err)
	}
	defer db.Close()

	if *importPath != "" {
		f, err := os.Open(*importPath)
		if err != nil {
			log.Fatalf("ERROR: Failed to open snapshot %s: %v", *importPath, err)
		}
		if err := db.Import(f); err != nil {
			f.Close()
			log.Fatalf("ERROR: Failed to restore snapshot %s: %v", *importPath, err)
		}
		f.Close()
		log.Printf("INFO: Restored snapshot from %s", *importPath)
	}

	// Register configured keyspaces so their indexes backfill before traffic.
	for _, ks := range cfg.KeySpaces {
		if _, err := db.KeySpace(ks.Name, ks.Indexes...); err != nil {
			log.Fatalf("ERROR: Failed to register keyspace '%s': %v", ks.Name, err)
		}
		log.Printf("INFO: Registered keyspace '%s' with %d index(es)", ks.Name, len(ks.Indexes))
	}

	srv := server.NewServer(db)

	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: srv.Router(),
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting schemaless server on %s", cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
