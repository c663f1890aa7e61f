package supactl

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/edgeflare/supactl/pkg/catalog"
	"github.com/edgeflare/supactl/pkg/config"
	"github.com/edgeflare/supactl/pkg/metrics"
	"github.com/edgeflare/supactl/pkg/supabase"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var cfgFile string
var logLevel string
var cfg *config.Config
var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "supactl",
	Short: "supactl inspects and edits Supabase tables",
	Long: `supactl talks to a Supabase project through its REST API.

Without a subcommand it describes every table, prints a report and writes
the result to supabase_tables_summary.json.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			fmt.Fprintln(cmd.OutOrStdout(), config.Version)
			return nil
		}
		return runReport(cmd, args)
	},
}

func Main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	writeMetrics()
	_ = logger.Sync()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	f := rootCmd.PersistentFlags()
	f.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/supactl.yaml)")
	f.StringVarP(&logLevel, "log-level", "L", "warn", "log at this level (debug, info, warn, error, none)")
	f.BoolP("version", "v", false, "Print the version number")

	f.String("supabase.schema", "", "database schema to use (default public)")
	f.Duration("supabase.timeout", 0, "timeout for each HTTP request (default 30s)")
	f.Int("supabase.retries", 0, "retry failed reads this many times")
	f.String("catalog.dsn", "", "PostgreSQL connection string used to list tables when the RPC is missing")
	f.String("export.dir", "", "directory export files are written to (default .)")
	f.String("metrics.textfile", "", "write Prometheus metrics to this file on exit")
}

func initConfig() {
	loaded, err := config.LoadEnvFiles(config.EnvFiles...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading env file:", err)
		os.Exit(1)
	}

	cfg, err = config.Load(cfgFile, rootCmd.PersistentFlags())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		os.Exit(1)
	}

	logger, err = newLogger(logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("file", cfg.File), zap.Strings("envFiles", loaded))
}

// newLogger builds a production logger at level; "none" disables logging.
func newLogger(level string) (*zap.Logger, error) {
	if level == "none" {
		return zap.NewNop(), nil
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(lvl)
	return zapConfig.Build(zap.AddStacktrace(zap.ErrorLevel))
}

// newClient connects to the project named by the environment. The returned
// func releases the catalog connection, if any.
func newClient() (*supabase.Client, func(), error) {
	creds, err := config.ResolveCredentials()
	if err != nil {
		return nil, nil, err
	}

	opts := []supabase.Option{
		supabase.WithLogger(logger),
		supabase.WithSchema(cfg.Supabase.Schema),
		supabase.WithTimeout(cfg.Supabase.Timeout),
		supabase.WithRetries(cfg.Supabase.Retries),
		supabase.WithRPC(cfg.Supabase.RPC),
	}
	if len(cfg.Supabase.FallbackTables) > 0 {
		opts = append(opts, supabase.WithFallbackTables(cfg.Supabase.FallbackTables...))
	}

	done := func() {}
	if cfg.Catalog.DSN != "" {
		lister, err := catalog.Open(cfg.Catalog.DSN, cfg.Supabase.Schema)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, supabase.WithCatalog(lister))
		done = lister.Close
	}

	client, err := supabase.New(creds, opts...)
	if err != nil {
		done()
		return nil, nil, err
	}
	return client, done, nil
}

func writeMetrics() {
	if cfg == nil || cfg.Metrics.Textfile == "" {
		return
	}
	if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		logger.Warn("could not write metrics", zap.String("file", cfg.Metrics.Textfile), zap.Error(err))
	}
}
