package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/trialscope/internal/config"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/trialscope/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// cliContextKey is the context key for CLIContext.
type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	EnvFile      string
	LogLevel     string
	OutputFormat string
	OutputDir    string
	RowLimit     int
	Verbose      bool
	Timeout      time.Duration
}

// CLIContext carries the loaded configuration and logger through the command
// tree.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	OutputFormat string
	Timeout      time.Duration
}

// NewRootCommand creates the root command with its global flags and every
// subcommand.
func NewRootCommand(f Factories) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "trialscope",
		Short: "trialscope: clinical-trial drug, mechanism and approval enrichment",
		Long: "trialscope resolves drug, disease and target names against ChEMBL, enriches them with\n" +
			"mechanism-of-action, target and approval information and joins them with AACT trials.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./trialscope.yaml when present)")
	pf.StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file with credentials")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level (debug, info, warn, error); overrides config")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "text", "output format (text, json, table)")
	pf.StringVar(&opts.OutputDir, "output-dir", "", "directory for CSV/JSON outputs; overrides config")
	pf.IntVar(&opts.RowLimit, "row-limit", -1, "maximum number of trials to process (0 = all); overrides config")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")
	pf.DurationVar(&opts.Timeout, "timeout", 0, "overall run timeout (0 = none)")

	cmd.AddCommand(
		NewDrugsCmd(f),
		NewDiseaseCmd(f),
		NewTargetCmd(f),
		NewSummaryCmd(f),
		NewApprovalYearCmd(f),
		NewMigrateCmd(f),
		NewCooldownCmd(f),
	)
	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	cfg, err := initConfig(opts)
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger, err := initLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}
	logging.SetDefault(logger)

	cliCtx := &CLIContext{
		Config:       cfg,
		Logger:       logger,
		OutputFormat: opts.OutputFormat,
		Timeout:      opts.Timeout,
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cliCtx))
	return nil
}

// initConfig loads the dotenv file, then the config file (explicit path, else
// ./trialscope.yaml when present, else environment only) and applies flag
// overrides.
func initConfig(opts *RootOptions) (*config.Config, error) {
	if opts.EnvFile != "" {
		if err := config.LoadDotEnv(opts.EnvFile); err != nil {
			return nil, err
		}
	}

	path := opts.ConfigPath
	if path == "" {
		for _, p := range defaultConfigPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	cfg, err := config.LoadAuto(path)
	if err != nil {
		return nil, err
	}

	if opts.OutputDir != "" {
		cfg.Pipeline.OutputDir = opts.OutputDir
	}
	if opts.RowLimit >= 0 {
		cfg.Pipeline.RowLimit = opts.RowLimit
	}
	return cfg, nil
}

func defaultConfigPaths() []string {
	paths := []string{"./trialscope.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".trialscope", "config.yaml"))
	}
	return paths
}

// initLogger creates a console logger writing to stderr so that stdout stays
// free for command output.
func initLogger(cfg *config.Config, opts *RootOptions) (logging.Logger, error) {
	level := cfg.Log.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	if opts.Verbose {
		level = logging.LevelDebug
	}
	return logging.NewLogger(logging.LogConfig{
		Level:            strings.ToLower(level),
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// GetCLIContext extracts CLIContext from a command's context.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.Internal("command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.Internal("CLIContext not found in command context")
	}
	return cliCtx, nil
}

// commandContext returns the command context bounded by the --timeout flag.
func commandContext(cmd *cobra.Command, cc *CLIContext) (context.Context, context.CancelFunc) {
	if cc.Timeout > 0 {
		return context.WithTimeout(cmd.Context(), cc.Timeout)
	}
	return context.WithCancel(cmd.Context())
}

// Execute runs the CLI and prints any error to stderr.
func Execute(f Factories) error {
	rootCmd := NewRootCommand(f)
	if err := rootCmd.Execute(); err != nil {
		PrintError(rootCmd, err)
		return err
	}
	return nil
}

// PrintResult writes data in the format selected by --output.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return printJSON(cmd, data)
	}

	switch strings.ToLower(cliCtx.OutputFormat) {
	case "json":
		return printJSON(cmd, data)
	case "table":
		return printTable(cmd, data)
	default:
		return printText(cmd, data)
	}
}

func printJSON(cmd *cobra.Command, data interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printText(cmd *cobra.Command, data interface{}) error {
	switch v := data.(type) {
	case string:
		fmt.Fprintln(cmd.OutOrStdout(), v)
	case fmt.Stringer:
		fmt.Fprintln(cmd.OutOrStdout(), v.String())
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "%+v\n", v)
	}
	return nil
}

func printTable(cmd *cobra.Command, data interface{}) error {
	type tableProvider interface {
		TableHeaders() []string
		TableRows() [][]string
	}

	if tp, ok := data.(tableProvider); ok {
		fmt.Fprint(cmd.OutOrStdout(), FormatTable(tp.TableHeaders(), tp.TableRows()))
		return nil
	}
	return printText(cmd, data)
}

// PrintError writes err to stderr. Rate-limit errors also name the wait.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())
	if errors.IsRateLimited(err) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Rate limited: retry after %s\n", errors.RetryAfterOf(err).Round(time.Second))
	}
}

// FormatTable renders headers and rows as an aligned text table.
func FormatTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}

	colWidths := make([]int, len(headers))
	for i, h := range headers {
		colWidths[i] = len(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(colWidths); i++ {
			if len(row[i]) > colWidths[i] {
				colWidths[i] = len(row[i])
			}
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		for i := range headers {
			if i > 0 {
				sb.WriteString("  ")
			}
			val := ""
			if i < len(cells) {
				val = cells[i]
			}
			sb.WriteString(padRight(val, colWidths[i]))
		}
		sb.WriteString("\n")
	}

	writeRow(headers)
	seps := make([]string, len(colWidths))
	for i, w := range colWidths {
		seps[i] = strings.Repeat("-", w)
	}
	writeRow(seps)
	for _, row := range rows {
		writeRow(row)
	}
	return sb.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
