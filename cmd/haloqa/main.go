package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/SwapnilGautama/HaloQuality/internal/config"
	"github.com/SwapnilGautama/HaloQuality/internal/database"
	"github.com/SwapnilGautama/HaloQuality/internal/dataset"
	"github.com/SwapnilGautama/HaloQuality/internal/logger"
	"github.com/SwapnilGautama/HaloQuality/internal/metrics"
	"github.com/SwapnilGautama/HaloQuality/internal/pipeline"
	"github.com/SwapnilGautama/HaloQuality/internal/question"
	"github.com/SwapnilGautama/HaloQuality/internal/render"
	"github.com/SwapnilGautama/HaloQuality/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	log        logger.Logger = logger.NewNop()
)

func main() {
	err := rootCmd.ExecuteContext(context.Background())
	log.Sync()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "haloqa",
	Short:   "Quality questions over case and complaint data",
	Long:    "haloqa imports case and complaint spreadsheets and answers a fixed set of quality questions as JSON, terminal tables or a small dashboard.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
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

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		log, err = logger.New(logger.Config{Level: level, Development: cfg.Logging.Development})
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		log.Debug("Loaded config", logger.String("path", path))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(questionsCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("haloqa", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/haloqa/",
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
		fmt.Println("Edit it to point at your case and complaint spreadsheets.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored snapshot and recent imports",
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
		if len(stats) == 0 {
			fmt.Println("No datasets stored. Run 'haloqa import' first.")
			return nil
		}

		t := newTable()
		t.SetTitle("Datasets")
		t.AppendHeader(table.Row{"Dataset", "Columns", "Rows", "Imported"})
		for _, s := range stats {
			t.AppendRow(table.Row{s.Dataset, s.Columns, s.Rows, deref(s.ImportedAt)})
		}
		t.Render()

		imports, err := db.GetImports(10)
		if err != nil {
			return fmt.Errorf("getting imports: %w", err)
		}
		fmt.Println()
		t = newTable()
		t.SetTitle("Recent imports")
		t.AppendHeader(table.Row{"Import", "Dataset", "Rows", "Skipped", "Sources", "Imported"})
		for _, imp := range imports {
			t.AppendRow(table.Row{shortID(imp.ImportID), imp.Dataset, imp.RowCount, imp.Skipped, len(imp.Sources), deref(imp.ImportedAt)})
		}
		t.Render()
		return nil
	},
}

// --- import command ---

var dryRun bool

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the configured spreadsheets: read -> validate -> store -> report",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe := pipeline.New(cfg.Sources(), db, log)
		ctx := cmd.Context()

		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun(ctx)
		} else {
			result = pipe.Run(ctx)
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/4: %s\n", i+1, step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if result.Failed() {
			return fmt.Errorf("import failed")
		}
		if !dryRun {
			fmt.Println("\nImport complete! Run 'haloqa serve' or 'haloqa ask' to query it.")
		}
		return nil
	},
}

func init() {
	importCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Read and validate without storing")
}

// --- questions command ---

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "List the available questions",
	Run: func(cmd *cobra.Command, args []string) {
		t := newTable()
		t.AppendHeader(table.Row{"Id", "Title", "Datasets"})
		for _, q := range question.Default().Describe() {
			t.AppendRow(table.Row{q.ID, q.Title, strings.Join(q.Datasets, ", ")})
		}
		t.Render()
	},
}

// --- ask command ---

var (
	askJSON   bool
	askParams question.RawParams
)

var askCmd = &cobra.Command{
	Use:   "ask [question-id]",
	Short: "Run one question against the stored snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		snap, err := db.LoadSnapshot(cmd.Context())
		if err != nil {
			return fmt.Errorf("loading snapshot: %w", err)
		}

		engine := newEngine(nil)
		res, err := engine.Run(cmd.Context(), snap, args[0], askParams)
		if err != nil {
			return err
		}

		if askJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res.Value())
		}
		return render.NewTerminal(os.Stdout).Render(res)
	},
}

func init() {
	f := askCmd.Flags()
	f.BoolVar(&askJSON, "json", false, "Print the payload as JSON")
	f.StringVar(&askParams.Month, "month", "", "Focus month (YYYY-MM)")
	f.StringVar(&askParams.GroupBy, "group-by", "", "Comma-separated grouping dimensions")
	f.StringVar(&askParams.Portfolio, "portfolio", "", "Portfolio filter")
	f.StringVar(&askParams.Process, "process", "", "Process filter")
	f.StringVar(&askParams.Start, "start", "", "Range start month (YYYY-MM)")
	f.StringVar(&askParams.End, "end", "", "Range end month (YYYY-MM)")
	f.StringVar(&askParams.LastN, "last-n", "", "Restrict to the last N months")
	f.StringVar(&askParams.TopN, "top-n", "", "Rows to keep in ranked tables")
}

// --- serve command ---

var (
	servePort int
	serveHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		snap, err := db.LoadSnapshot(cmd.Context())
		if err != nil {
			return fmt.Errorf("loading snapshot: %w", err)
		}

		m := metrics.New()
		m.SetDatasetRows(snap.RowCounts())
		store := dataset.NewStore(snap)

		srv, err := server.New(newEngine(m), store, db, m, log)
		if err != nil {
			return err
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		addr := serveHost + ":" + strconv.Itoa(port)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Starting server at http://%s\n", addr)
		fmt.Println("Press Ctrl+C to stop")
		return srv.Serve(ctx, addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on (overrides server.port)")
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Interface to listen on")
}

func newEngine(obs question.Observer) *question.Engine {
	opts := []question.Option{
		question.WithLogger(log),
		question.WithDefaultGroupBy(cfg.Questions.DefaultGroupBy),
	}
	if obs != nil {
		opts = append(opts, question.WithObserver(obs))
	}
	return question.NewEngine(question.Default(), opts...)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	return t
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(cfg.DBPath(), log)
}
