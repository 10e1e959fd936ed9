package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cognicore/obsetl/internal/llm"
	"github.com/cognicore/obsetl/internal/logging"
	"github.com/cognicore/obsetl/pkg/obsetl"
	"github.com/cognicore/obsetl/pkg/obsetl/config"
	"github.com/cognicore/obsetl/pkg/obsetl/enrich"
	"github.com/cognicore/obsetl/pkg/obsetl/normalize"
	"github.com/cognicore/obsetl/pkg/obsetl/pipeline"
	"github.com/cognicore/obsetl/pkg/obsetl/store"
	"github.com/cognicore/obsetl/pkg/obsetl/store/sqlite"
)

// CompleterFactory builds the analysis backend from the loaded config
type CompleterFactory func(cfg *config.Config) (enrich.Completer, error)

// DefaultCompleterFactory talks to the configured chat-completions endpoint
func DefaultCompleterFactory(cfg *config.Config) (enrich.Completer, error) {
	return &llm.Client{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, nil
}

type app struct {
	configPath string
	logLevel   string
	logFormat  string
	storePath  string

	newCompleter CompleterFactory
	stdout       io.Writer
	stderr       io.Writer
}

func newRootCmd(a *app) *cobra.Command {
	if a.newCompleter == nil {
		a.newCompleter = DefaultCompleterFactory
	}
	if a.stdout == nil {
		a.stdout = os.Stdout
	}
	if a.stderr == nil {
		a.stderr = os.Stderr
	}

	root := &cobra.Command{
		Use:           "obsetl",
		Short:         "obsetl - clean and score child observation tables",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "console or json")

	root.AddCommand(a.cleanCmd(), a.reportCmd(), a.runsCmd())
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	return root
}

func (a *app) cleanCmd() *cobra.Command {
	var (
		input, outCSV, outJSON string
		workers                int
	)
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Normalize and enrich a raw observation table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.setup()
			if err != nil {
				return err
			}
			// Credentials are checked before any row is read.
			if err := cfg.RequireCredentials(); err != nil {
				return err
			}
			if cmd.Flags().Changed("workers") {
				cfg.Pipeline.Workers = workers
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			completer, err := a.newCompleter(cfg)
			if err != nil {
				return fmt.Errorf("create analysis client: %w", err)
			}
			var cache *enrich.CachingCompleter
			if cfg.LLM.CacheSize > 0 {
				if cache, err = enrich.NewCachingCompleter(completer, cfg.LLM.CacheSize); err != nil {
					return err
				}
				completer = cache
			}

			pipe := pipeline.New(pipeline.Options{
				Dates: normalize.NewDateParser(cfg.Dates.ReferenceYear, cfg.Dates.SentinelPhrases),
				Enricher: enrich.New(completer, enrich.Options{
					Timeout: time.Duration(cfg.LLM.TimeoutSec) * time.Second,
					Strict:  cfg.LLM.Strict,
					Logger:  logger,
				}),
				Workers:       cfg.Pipeline.Workers,
				ProgressEvery: cfg.Pipeline.ProgressEvery,
				Logger:        logger,
			})

			eng, err := a.engine(cmd.Context(), cfg, pipe, logger)
			if err != nil {
				return err
			}
			defer eng.Close()

			run, err := eng.Clean(cmd.Context(), obsetl.CleanRequest{
				InputPath:  input,
				OutputCSV:  outCSV,
				OutputJSON: outJSON,
			})
			if err != nil {
				return err
			}
			if cache != nil {
				logger.Debug().Int64("hits", cache.Hits()).Int64("misses", cache.Misses()).Msg("reply cache")
			}

			fmt.Fprintf(a.stdout, "run %s: %s rows, %d unknown ids, %d unparseable dates, %d fallback enrichments\n",
				run.ID, humanize.Comma(int64(run.Stats.Rows)), run.Stats.UnknownIDs, run.Stats.UnparseableDates, run.Stats.FallbackEnrichments)
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "raw observation CSV")
	cmd.Flags().StringVar(&outCSV, "output-csv", "", "cleaned CSV output path")
	cmd.Flags().StringVar(&outJSON, "output-json", "", "cleaned JSON output path")
	cmd.Flags().IntVar(&workers, "workers", 1, "rows analyzed concurrently")
	cmd.Flags().StringVar(&a.storePath, "store", "", "SQLite database recording the run")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func (a *app) reportCmd() *cobra.Command {
	var input, runID, outDir string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize cleaned observations per child",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (input == "") == (runID == "") {
				return fmt.Errorf("exactly one of --input or --run is required")
			}
			cfg, logger, err := a.setup()
			if err != nil {
				return err
			}
			eng, err := a.engine(cmd.Context(), cfg, nil, logger)
			if err != nil {
				return err
			}
			defer eng.Close()

			_, err = eng.Report(cmd.Context(), obsetl.ReportRequest{
				InputCSV: input,
				RunID:    runID,
				OutDir:   outDir,
				Table:    a.stdout,
			})
			return err
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "cleaned CSV produced by clean")
	cmd.Flags().StringVar(&runID, "run", "", "stored run id (needs --store)")
	cmd.Flags().StringVar(&outDir, "out-dir", "outputs", "directory for the summary table and charts")
	cmd.Flags().StringVar(&a.storePath, "store", "", "SQLite database holding runs")
	return cmd
}

func (a *app) runsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.setup()
			if err != nil {
				return err
			}
			eng, err := a.engine(cmd.Context(), cfg, nil, logger)
			if err != nil {
				return err
			}
			defer eng.Close()

			runs, err := eng.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, r := range runs {
				fmt.Fprintf(a.stdout, "%s  %s  %s rows  %d fallbacks  %s\n",
					r.ID, humanize.Time(r.StartedAt), humanize.Comma(int64(r.Stats.Rows)), r.Stats.FallbackEnrichments, r.Input)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list (0 for all)")
	cmd.Flags().StringVar(&a.storePath, "store", "", "SQLite database holding runs")
	_ = cmd.MarkFlagRequired("store")
	return cmd
}

// setup loads config with env and flag overrides and builds the logger
func (a *app) setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	cfg.ApplyEnv()
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Logging.Format = a.logFormat
	}
	if a.storePath != "" {
		cfg.Store.Path = a.storePath
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), err
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Out:    a.stderr,
	})
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger, nil
}

func (a *app) engine(ctx context.Context, cfg *config.Config, pipe *pipeline.Pipeline, logger zerolog.Logger) (*obsetl.Engine, error) {
	var st store.Store
	if cfg.Store.Path != "" {
		var err error
		if st, err = sqlite.OpenSQLite(ctx, cfg.Store.Path); err != nil {
			return nil, err
		}
	}
	return obsetl.New(obsetl.Options{
		Store:    st,
		Pipeline: pipe,
		Columns:  cfg.Input.Columns,
		Logger:   logger,
	}), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(&app{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "obsetl:", err)
		stop()
		os.Exit(1)
	}
}
