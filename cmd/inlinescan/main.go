// inlinescan classifies the methods of a dex corpus as inline candidates.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/colorfulnotion/dexinline/config"
	"github.com/colorfulnotion/dexinline/corpus"
	"github.com/colorfulnotion/dexinline/log"
	"github.com/colorfulnotion/dexinline/scan"
	"github.com/colorfulnotion/dexinline/storage"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// app carries the settings shared by every subcommand.
type app struct {
	configPath string
	cfg        *config.Config

	logLevel     string
	debug        string
	workers      int
	cacheEnabled bool
	cachePath    string
	clearCache   bool
	otlpEndpoint string

	shutdown func(context.Context) error
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "inlinescan",
		Short:         "Find trivially inlinable methods in a dex corpus",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime),
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.shutdown == nil {
				return nil
			}
			return a.shutdown(cmd.Context())
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "TOML config file (default: ./"+config.FileName+" if present)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error, crit)")
	flags.StringVar(&a.debug, "debug", "", "Debug modules to enable (inline_mod,scan_mod,store_mod,corpus_mod or all)")
	flags.IntVarP(&a.workers, "workers", "w", 0, "Concurrent analyses (0: GOMAXPROCS)")
	flags.BoolVar(&a.cacheEnabled, "cache", false, "Reuse outcomes from the result cache")
	flags.StringVar(&a.cachePath, "cache-path", "", "Result cache directory")
	flags.BoolVar(&a.clearCache, "clear-cache", false, "Empty the result cache before scanning (enables the cache)")
	flags.StringVar(&a.otlpEndpoint, "otlp-endpoint", "", "OTLP/HTTP trace collector, e.g. localhost:4318")

	rootCmd.AddCommand(
		a.analyseCmd(),
		a.explainCmd(),
		a.statsCmd(),
		a.checkCmd(),
		a.disasmCmd(),
		a.configCmd(),
	)
	return rootCmd
}

// setup merges the config file with the flags the user set explicitly,
// then installs the logger and the trace exporter.
func (a *app) setup(cmd *cobra.Command) error {
	cfg := config.Default()
	path := a.configPath
	if path == "" {
		if _, err := os.Stat(config.FileName); err == nil {
			path = config.FileName
		}
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("debug") {
		cfg.Log.Modules = a.debug
	}
	if flags.Changed("workers") {
		cfg.Scan.Workers = a.workers
	}
	if flags.Changed("cache") {
		cfg.Cache.Enabled = a.cacheEnabled
	}
	if flags.Changed("cache-path") {
		cfg.Cache.Path = a.cachePath
		cfg.Cache.Enabled = true
	}
	if a.clearCache {
		cfg.Cache.Enabled = true
	}
	if flags.Changed("otlp-endpoint") {
		cfg.Telemetry.OTLPEndpoint = a.otlpEndpoint
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	// Validate has already rejected unknown levels.
	lvl, _ := log.ParseLevel(cfg.Log.Level)
	stderr := cmd.ErrOrStderr()
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(stderr, lvl, stderr == io.Writer(os.Stderr))))
	if cfg.Log.Modules != "" {
		log.EnableModules(cfg.Log.Modules)
	}

	if cfg.Telemetry.OTLPEndpoint != "" {
		shutdown, err := setupTracing(cmd.Context(), cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.Insecure)
		if err != nil {
			return err
		}
		a.shutdown = shutdown
	}
	return nil
}

// scan loads the corpus and runs the scanner over it.
func (a *app) scan(ctx context.Context, corpusPath string) (*corpus.Corpus, *scan.Report, error) {
	c, err := corpus.Load(corpusPath)
	if err != nil {
		return nil, nil, err
	}
	opts := []scan.Option{scan.WithWorkers(a.cfg.Scan.Workers)}
	if a.cfg.Cache.Enabled {
		cache, err := storage.NewResultCache(a.cfg.Cache.Path)
		if err != nil {
			return nil, nil, err
		}
		defer cache.Close()
		if a.clearCache {
			if err := cache.Clear(); err != nil {
				return nil, nil, err
			}
			log.Info(log.StorageMonitoring, "result cache cleared", "path", a.cfg.Cache.Path)
		}
		opts = append(opts, scan.WithCache(cache))
	}
	report, err := scan.New(c, opts...).Run(ctx)
	if err != nil {
		return nil, nil, err
	}
	return c, report, nil
}
