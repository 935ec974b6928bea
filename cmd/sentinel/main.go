package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/config"
	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/database"
	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/historian"
	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/pipeline"
	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/storage"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	log        zerolog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "sentinel",
	Short:   "Portfolio risk briefings",
	Long:    "Sentinel scans news for each portfolio holding, matches the situation against historical risk archetypes, and renders a strategic verdict per holding.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// API keys commonly live in a local .env during development.
		_ = godotenv.Load()

		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).With().Timestamp().Logger()

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if lvl, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil && !verbose {
			log = log.Level(lvl)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(archetypesCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("sentinel", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/sentinel/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure search sources, API keys, and the LLM provider.")
		return nil
	},
}

// --- scan command ---

var portfolioPath string

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the portfolio and produce per-holding risk briefings",
	RunE: func(cmd *cobra.Command, args []string) error {
		portfolio, err := loadPortfolio(portfolioPath)
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()

		var archiver storage.Archiver
		if cfg.Archive.Enabled {
			archiver, err = storage.NewS3Archiver(ctx, cfg.Archive.Bucket, cfg.Archive.Region, log)
			if err != nil {
				log.Warn().Err(err).Msg("archival disabled for this run")
				archiver = nil
			}
		}

		pipe := pipeline.New(cfg, archiver, log)
		run, err := pipe.Scan(ctx, portfolio)
		if err != nil {
			return err
		}

		payload, err := json.MarshalIndent(run, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding run: %w", err)
		}

		outPath := filepath.Join(cfg.GetDataDir(), "latest.json")
		if err := os.WriteFile(outPath, payload, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", outPath, err)
		}

		if err := db.InsertRun(database.Run{
			ID:            uuid.NewString(),
			CreatedAt:     run.Timestamp,
			HoldingsCount: len(run.Data.Holdings),
			Report:        payload,
		}); err != nil {
			log.Warn().Err(err).Msg("storing run failed")
		}

		if archiver != nil {
			if err := archiver.ArchiveRun(ctx, run.Timestamp, payload); err != nil {
				log.Warn().Err(err).Msg("archiving run failed")
			}
		}

		printRunSummary(run)
		fmt.Printf("\nBriefing written to %s\n", outPath)
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVarP(&portfolioPath, "portfolio", "p", "portfolio.yaml", "Portfolio file (YAML or JSON)")
}

// loadPortfolio reads a portfolio file: either a bare list of holdings or a
// document with a top-level "portfolio" key.
func loadPortfolio(path string) ([]pipeline.Holding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading portfolio: %w", err)
	}

	var wrapped struct {
		Portfolio []pipeline.Holding `json:"portfolio" yaml:"portfolio"`
	}
	if err := yaml.Unmarshal(data, &wrapped); err == nil && len(wrapped.Portfolio) > 0 {
		return wrapped.Portfolio, nil
	}

	var holdings []pipeline.Holding
	if err := yaml.Unmarshal(data, &holdings); err != nil {
		return nil, fmt.Errorf("parsing portfolio: %w", err)
	}
	if len(holdings) == 0 {
		return nil, fmt.Errorf("portfolio %s has no holdings", path)
	}
	return holdings, nil
}

func printRunSummary(run *pipeline.Run) {
	fmt.Printf("Scan complete at %s\n\n", run.Timestamp)
	for symbol, report := range run.Data.Holdings {
		fmt.Printf("%s\n", symbol)
		summary := report.Summary
		if len(summary) > 120 {
			summary = summary[:120] + "..."
		}
		fmt.Printf("  %s\n", summary)
		fmt.Printf("  Events: %d  Historical matches: %d\n", len(report.Events), len(report.HistoricalContext))
		if report.AdvisorReport != nil && report.AdvisorReport.Verdict != "" {
			fmt.Printf("  Verdict: %s (Confidence: %d%%)\n", report.AdvisorReport.Verdict, report.AdvisorReport.Confidence)
		}
		fmt.Println()
	}
	fmt.Printf("Queries run: %d\n", len(run.Config.QueriesRun))
}

// --- archetypes command ---

var archetypesCmd = &cobra.Command{
	Use:   "archetypes",
	Short: "List the historical risk archetype catalog",
	Run: func(cmd *cobra.Command, args []string) {
		for _, a := range historian.Catalog() {
			fmt.Printf("%s  (%s, %s)\n", a.ID, a.Ticker, strings.ReplaceAll(a.Period, "_to_", " to "))
			fmt.Printf("  %s\n", a.Name)
			fmt.Printf("  Typical impact: %s\n\n", a.TypicalImpact)
		}
	},
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show run history and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Printf("Runs: %d\n", stats.Runs)
		if stats.Runs > 0 {
			fmt.Printf("First run: %s\n", stats.FirstRun)
			fmt.Printf("Last run:  %s\n", stats.LastRun)
		}

		latest, err := db.GetLatestRun()
		if errors.Is(err, sql.ErrNoRows) {
			fmt.Println("\nNo scans recorded yet. Run 'sentinel scan' to get started.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("\nLatest run %s covered %d holding(s).\n", latest.ID, latest.HoldingsCount)
		return nil
	},
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "sentinel.db")
	return database.Open(dbPath)
}
