package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pbaille/reportcard/internal/config"
	"github.com/pbaille/reportcard/internal/corpus"
	"github.com/pbaille/reportcard/internal/knowledge"
	"github.com/pbaille/reportcard/internal/logger"
	"github.com/pbaille/reportcard/internal/store"
)

var (
	cfgPath string
	verbose bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:           "reportcard",
		Short:         "Incremental analysis of daycare report cards",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default $CONFIG_PATH or "+config.DefaultPath+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(aggregateCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(kbCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// app holds what every command needs.
type app struct {
	cfg *config.Config
	log logger.Logger
}

func loadApp() (*app, error) {
	path := cfgPath
	if path == "" {
		path = config.Path(config.DefaultPath)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return &app{cfg: cfg, log: log}, nil
}

func (a *app) close() {
	_ = a.log.Sync()
}

func (a *app) corpus() *corpus.Store {
	return corpus.New(a.cfg.DataDir)
}

func (a *app) knowledge() (*knowledge.Base, error) {
	return knowledge.Load(filepath.Join(a.cfg.DataDir, "knowledge"), a.log)
}

func (a *app) ledger() (*store.Store, error) {
	if err := os.MkdirAll(a.cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return store.New(filepath.Join(a.cfg.DataDir, "runs.db"))
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}
