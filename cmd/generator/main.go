package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"segment-filter-generator/internal/config"
	"segment-filter-generator/internal/engine"
	"segment-filter-generator/internal/metrics"
	"segment-filter-generator/internal/model"
	"segment-filter-generator/internal/parser"
	"segment-filter-generator/internal/utils"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const generatorName = "segment-filter-generator"

var (
	segmentFiles []string
	hostFiles    []string
	mixedFiles   []string
	fgtFiles     []string
	fgtTag       string
	outFile      string
	dbDriver     string
	dbDSN        string
	dbTable      string
	logLevel     string
	logFile      string
	metricsFile  string
)

// usageError marks command-line mistakes, which exit with status 2.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func newRootCmd(cfg *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   generatorName,
		Short: "Logstash IP address to segment filter creator",
		Long: `segment-filter-generator reads segment, host and mixed address mappings
	and writes a Logstash filter that tags events with the matching segment and
	host names for their source and destination addresses.`,
		Args: noArgs,
		RunE: run,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err}
	})

	addInputFlags(rootCmd, cfg)
	rootCmd.Flags().StringVarP(&outFile, "output", "o", cfg.Output, "Output file (- for stdout)")
	rootCmd.Flags().StringVar(&metricsFile, "metrics-file", cfg.MetricsFile, "Write run metrics in Prometheus text format to this file")

	rootCmd.AddCommand(newCheckCmd(cfg))
	return rootCmd
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return &usageError{fmt.Errorf("unexpected arguments: %s", strings.Join(args, " "))}
	}
	return nil
}

// addInputFlags registers the mapping input, database and logging flags
// shared by every command.
func addInputFlags(cmd *cobra.Command, cfg *config.Config) {
	// -h selects host files, so help is only available as --help.
	cmd.Flags().Bool("help", false, "Help for "+cmd.Name())

	cmd.Flags().StringSliceVarP(&segmentFiles, "segment", "s", nil, "Input segment mapping file(s)")
	cmd.Flags().StringSliceVarP(&hostFiles, "host", "h", nil, "Input host mapping file(s)")
	cmd.Flags().StringSliceVarP(&mixedFiles, "mixed", "m", nil, "Input mixed JSON or YAML mapping file(s)")
	cmd.Flags().StringSliceVar(&fgtFiles, "fortigate", nil, "FortiGate configuration backup(s) to import address objects and groups from as segments")
	cmd.Flags().StringVar(&fgtTag, "fortigate-tag", "", "Tag required by segments imported from FortiGate configs")

	cmd.Flags().StringVar(&dbDriver, "db-driver", cfg.Database.Driver, "Mapping database driver: 'mysql' or 'sqlite3'")
	cmd.Flags().StringVar(&dbDSN, "db", cfg.Database.DSN, "Mapping database connection string")
	cmd.Flags().StringVar(&dbTable, "db-table", cfg.Database.Table, "Mapping database table")

	cmd.Flags().StringVar(&logLevel, "log-level", cfg.LogLevel, "Log level (DEBUG, INFO, WARN, ERROR)")
	cmd.Flags().StringVar(&logFile, "log-file", cfg.LogFile, "Log file path (default: stderr)")
}

// flagConfig collects the parsed flag values.
func flagConfig() *config.Config {
	return &config.Config{
		Output:      outFile,
		LogLevel:    logLevel,
		LogFile:     logFile,
		MetricsFile: metricsFile,
		Database: config.DatabaseConfig{
			Driver: dbDriver,
			DSN:    dbDSN,
			Table:  dbTable,
		},
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	os.Exit(exitCode(newRootCmd(cfg).Execute()))
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var uerr *usageError
	if errors.As(err, &uerr) {
		return 2
	}
	return 1
}

func run(cmd *cobra.Command, args []string) error {
	cfg := flagConfig()
	if err := cfg.Validate(); err != nil {
		return &usageError{err}
	}
	// Past this point failures are not usage mistakes.
	cmd.SilenceUsage = true

	// --- 1. Setup Logging ---
	logger := setupLogger(cfg.LogLevel, cfg.LogFile)
	slog.SetDefault(logger)

	slog.Info("Starting segment filter generator")
	startTime := time.Now()
	recorder := metrics.New()

	// --- 2. Load Mappings ---
	records, err := loadRecords(cmd.Context(), cfg, recorder)
	if err != nil {
		slog.Error("Failed to load mappings", "error", err)
		return err
	}

	// --- 3. Group Mappings ---
	idx := engine.BuildIndex(records)
	slog.Info("Mappings grouped", "records", len(records), "groups", idx.Len())
	if idx.Empty() {
		slog.Info("No valid mappings found, no filter written")
		return writeMetrics(cfg.MetricsFile, recorder)
	}

	// --- 4. Emit Filter ---
	counts, err := writeFilter(cmd.OutOrStdout(), cfg.Output, idx)
	if err != nil {
		slog.Error("Failed to write filter", "output", cfg.Output, "error", err)
		return err
	}
	recorder.ObserveRules(counts, idx.Len())

	slog.Info("Filter written", "output", cfg.Output, "duration", time.Since(startTime))
	return writeMetrics(cfg.MetricsFile, recorder)
}

// loadRecords reads every configured input. Segment files are folded
// first, then host files, mixed files, FortiGate configs and the database.
func loadRecords(ctx context.Context, cfg *config.Config, recorder *metrics.Recorder) ([]model.MappingRecord, error) {
	var records []model.MappingRecord
	collect := func(input string, result *parser.Result) {
		logDiagnostics(input, result.Diagnostics)
		recorder.ObserveResult(input, result)
		records = append(records, result.Records...)
		slog.Info("Mappings loaded", "input", input, "records", len(result.Records), "diagnostics", len(result.Diagnostics))
	}

	if len(segmentFiles) > 0 {
		slog.Info("Loading segment mappings", "files", len(segmentFiles))
		result, err := parser.LoadMappingFiles(model.Segment, segmentFiles)
		if err != nil {
			return nil, err
		}
		collect("segment", result)
	}

	if len(hostFiles) > 0 {
		slog.Info("Loading host mappings", "files", len(hostFiles))
		result, err := parser.LoadMappingFiles(model.Host, hostFiles)
		if err != nil {
			return nil, err
		}
		collect("host", result)
	}

	if len(mixedFiles) > 0 {
		slog.Info("Loading mixed mappings", "files", len(mixedFiles))
		collect("mixed", parser.LoadMixedFiles(mixedFiles))
	}

	if len(fgtFiles) > 0 {
		slog.Info("Loading FortiGate address objects", "files", len(fgtFiles))
		result, err := parser.LoadFortiGateFiles(fgtFiles, model.Tag(fgtTag))
		if err != nil {
			return nil, err
		}
		collect("fortigate", result)
	}

	if cfg.Database.Enabled() {
		slog.Info("Loading database mappings", "driver", cfg.Database.Driver, "table", cfg.Database.Table)
		result, err := parser.LoadDatabase(ctx, cfg.Database.Driver, cfg.Database.DSN, cfg.Database.Table)
		if err != nil {
			return nil, err
		}
		collect("database", result)
	}

	return records, nil
}

func logDiagnostics(input string, diags parser.Diagnostics) {
	for _, d := range diags {
		msg := "Ignoring invalid mapping input"
		switch {
		case errors.Is(d, utils.ErrInvalidAddress):
			msg = "Ignoring invalid address"
		case errors.Is(d, parser.ErrMalformedRecord):
			msg = "Ignoring malformed record"
		case errors.Is(d, parser.ErrUnsupportedObject):
			msg = "Ignoring unsupported address object"
		}
		slog.Warn(msg, "input", input, "source", d.Source, "line", d.Line, "value", d.Value, "error", d.Err)
	}
}

// writeFilter emits the filter to path, or to stdout when path is "-".
// A file output is written next to path and renamed into place, so a
// failed run never leaves a partial filter behind.
func writeFilter(stdout io.Writer, path string, idx *engine.Index) (counts map[string]int, err error) {
	if path == "-" {
		return emitFilter(stdout, idx)
	}

	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("opening output %q: %w", path, err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	if counts, err = emitFilter(f, idx); err != nil {
		return nil, err
	}
	if err = f.Chmod(0644); err != nil {
		return nil, fmt.Errorf("writing output %q: %w", path, err)
	}
	if err = f.Close(); err != nil {
		return nil, fmt.Errorf("closing output %q: %w", path, err)
	}
	if err = os.Rename(f.Name(), path); err != nil {
		return nil, fmt.Errorf("replacing output %q: %w", path, err)
	}
	return counts, nil
}

func emitFilter(w io.Writer, idx *engine.Index) (map[string]int, error) {
	bw := bufio.NewWriter(w)
	emitter := engine.NewEmitter(bw, generatorName)
	if err := emitter.Emit(idx); err != nil {
		return nil, fmt.Errorf("writing filter: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("writing filter: %w", err)
	}
	return emitter.RuleCounts(), nil
}

func writeMetrics(path string, recorder *metrics.Recorder) error {
	if path == "" {
		return nil
	}
	if err := recorder.WriteTextfile(path); err != nil {
		slog.Error("Failed to write metrics", "path", path, "error", err)
		return err
	}
	return nil
}

func setupLogger(level, logFilePath string) *slog.Logger {
	var logWriter io.Writer = os.Stderr
	if logFilePath != "" {
		f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			logWriter = f
		}
		// We don't log an error here because the logger isn't set up yet.
		// It will just fall back to stderr.
	}

	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "INFO":
		lvl = slog.LevelInfo
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(logWriter, &slog.HandlerOptions{Level: lvl}))
}
