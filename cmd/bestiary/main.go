// Package main implements the bestiary pipeline binary. It reads a source
// dataset, runs the configured stages (ingest, curate, aggregate), and
// leaves the three stores queryable on disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/AntonioDavid333/bestiary/internal/app"
	"github.com/AntonioDavid333/bestiary/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		datasetPath string
		mode        string
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&datasetPath, "dataset", "", "Source dataset file (CSV or JSON)")
	flag.StringVar(&mode, "mode", "", "Pipeline mode: all, ingest, curate, aggregate")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Bestiary - Layered creature record pipeline\n\n")
		fmt.Fprintf(os.Stderr, "Usage: bestiary [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  bestiary --dataset creatures.csv --data-dir /data/bestiary\n")
		fmt.Fprintf(os.Stderr, "  bestiary --mode curate --data-dir /data/bestiary\n")
		fmt.Fprintf(os.Stderr, "  bestiary --config /etc/bestiary/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  BESTIARY_MODE           Pipeline mode (all, ingest, curate, aggregate)\n")
		fmt.Fprintf(os.Stderr, "  BESTIARY_DATA_DIR       Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  BESTIARY_DATASET_PATH   Source dataset file\n")
		fmt.Fprintf(os.Stderr, "  BESTIARY_STORAGE_TYPE   Archive storage type (local, s3)\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if showVersion {
		fmt.Printf("bestiary version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	// A local .env is optional; missing files are fine.
	_ = godotenv.Load()

	cfg, err := loadConfig(configFile, dataDir, datasetPath, mode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	printBanner(cfg)

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	defer application.Close()

	rows, err := readRows(cfg)
	if err != nil {
		log.Fatalf("Failed to read dataset: %v", err)
	}

	if err := application.Run(context.Background(), rows); err != nil {
		log.Fatalf("Pipeline run failed: %v", err)
	}
	log.Printf("Pipeline run complete")
}

// loadConfig loads configuration from file, environment, and command line
// flags, in increasing priority.
func loadConfig(configFile, dataDir, datasetPath, mode string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if datasetPath != "" {
		cfg.DatasetPath = datasetPath
	}
	if mode != "" {
		cfg.Mode = config.Mode(mode)
	}

	return cfg, nil
}

// printBanner prints the startup banner with configuration summary.
func printBanner(cfg *config.Config) {
	log.Printf("╔═══════════════════════════════════════════╗")
	log.Printf("║                 BESTIARY                  ║")
	log.Printf("║     Layered creature record pipeline      ║")
	log.Printf("╚═══════════════════════════════════════════╝")
	log.Printf("")
	log.Printf("Configuration:")
	log.Printf("  Mode:     %s", cfg.Mode)
	log.Printf("  Data Dir: %s", cfg.DataDir)
	log.Printf("  Dataset:  %s", cfg.DatasetPath)
	if cfg.Archive.Enabled {
		log.Printf("  Archive:  %s", cfg.Storage.Type)
	}
	log.Printf("")
}
