package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/velasec/newsroom/internal/aggregate"
	"github.com/velasec/newsroom/internal/cache"
	"github.com/velasec/newsroom/internal/config"
	"github.com/velasec/newsroom/internal/feed"
	"github.com/velasec/newsroom/internal/pages"
	"github.com/velasec/newsroom/internal/ratelimit"
	"github.com/velasec/newsroom/internal/rewrite"
	"github.com/velasec/newsroom/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "newsroom",
	Short:   "Cybersecurity news site with a rewriting pipeline",
	Long:    "Newsroom fetches Spanish cybersecurity news, rewrites it with a text generation service, and serves it on the Velasec site.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// API keys commonly live in a .env next to the binary.
		if err := godotenv.Load(); err == nil {
			log.Printf("Loaded environment from .env")
		}

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
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("newsroom", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/newsroom/",
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
		fmt.Println("Edit it to configure the news provider, feeds, and API keys.")
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, agg, err := buildAggregator()
		if err != nil {
			return err
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(store, agg, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

// --- refresh command ---

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run one fetch and rewrite cycle, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, agg, err := buildAggregator()
		if err != nil {
			return err
		}

		before := store.Len()
		if err := agg.Refresh(context.Background()); err != nil {
			return fmt.Errorf("refreshing news: %w", err)
		}

		fmt.Println("Refresh complete:")
		fmt.Printf("  Cached articles: %d (%d new)\n", store.Len(), store.Len()-before)
		fmt.Printf("  Served articles: %d\n", len(agg.Output()))
		fmt.Printf("  Last updated: %s\n", store.LastUpdated())
		return nil
	},
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache status",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := cache.New(cfg.Cache.Path)
		if err := store.Load(); err != nil {
			return fmt.Errorf("loading cache: %w", err)
		}

		fmt.Printf("Cache file: %s\n", cfg.Cache.Path)
		fmt.Printf("  Articles: %d\n", store.Len())
		fmt.Printf("  Last updated: %s\n", store.LastUpdated())

		ttl := time.Duration(cfg.Cache.TTLMinutes) * time.Minute
		last := store.LastUpdatedTime()
		switch {
		case store.Len() == 0:
			fmt.Println("  State: empty")
		case last.IsZero() || time.Since(last) > ttl:
			fmt.Println("  State: stale (next request triggers a refresh)")
		default:
			fmt.Printf("  State: fresh (stale in %s)\n", (ttl - time.Since(last)).Round(time.Second))
		}
		return nil
	},
}

// buildAggregator wires the cache, sources, rate limiter, and rewriter from
// the loaded config.
func buildAggregator() (*cache.Store, *aggregate.Aggregator, error) {
	store := cache.New(cfg.Cache.Path)
	if err := store.Load(); err != nil {
		return nil, nil, fmt.Errorf("loading cache: %w", err)
	}

	provider := feed.NewSerpAPIClient(
		cfg.News.APIKeyEnv,
		cfg.News.Query,
		cfg.News.Language,
		cfg.News.Country,
		cfg.News.Results,
	)

	sources := &feed.Sources{Provider: provider}
	if len(cfg.Sources.Feeds) > 0 {
		feeds := make([]feed.FeedConfig, 0, len(cfg.Sources.Feeds))
		for _, f := range cfg.Sources.Feeds {
			feeds = append(feeds, feed.FeedConfig{URL: f.URL, Name: f.Name})
		}
		sources.Feeds = feed.NewFeedParser(feeds)
	}

	limiter := ratelimit.New(cfg.Limits.MaxConcurrent, time.Duration(cfg.Limits.IntervalMS)*time.Millisecond)
	rewriter := rewrite.New(rewrite.NewOpenAIProvider(cfg.Rewrite.Model, cfg.Rewrite.APIKeyEnv), limiter)

	var pageFetcher aggregate.PageFetcher
	if cfg.Sources.FetchFullContent {
		pageFetcher = pages.NewFetcher(0)
	}

	agg := aggregate.New(store, sources, rewriter, pageFetcher, aggregate.Options{
		StaleAfter:   time.Duration(cfg.Cache.TTLMinutes) * time.Minute,
		ForceRefresh: cfg.Cache.ForceRefresh,
		BatchSize:    cfg.Limits.BatchSize,
		OutputCap:    cfg.Limits.OutputCap,
		FetchContent: cfg.Sources.FetchFullContent,
	})
	return store, agg, nil
}
