package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"refweaver/internal/config"
	"refweaver/internal/logging"
	"refweaver/internal/models"
	"refweaver/internal/pipeline"
	"refweaver/internal/printer"
	"refweaver/internal/project"
	"refweaver/internal/report"
	"refweaver/internal/trace"
	"refweaver/internal/watcher"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var commandHelp = map[string]string{
	pipeline.Insert: "Normalize, then add retain/release instrumentation until nothing changes",
	pipeline.Remove: "Strip instrumentation and generated temporaries",
	pipeline.Verify: "Report every site that is not fully instrumented; writes nothing",
	pipeline.Revert: "Remove only the synthesized support methods",
}

func newCommand(name string) *cobra.Command {
	return &cobra.Command{
		Use:   name + " [source roots or files]",
		Short: commandHelp[name],
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd.Context(), name, args)
		},
	}
}

// loadConfig reads the configuration and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	if formatFlag != "" {
		cfg.Output.Format = formatFlag
	}
	if dryRunFlag {
		cfg.Pipeline.DryRun = true
	}
	if jobsFlag > 0 {
		cfg.Pipeline.MaxWorkers = jobsFlag
		cfg.Pipeline.Parallel = jobsFlag > 1
	}
	if traceFlag != "" {
		cfg.Trace.Enabled = true
		cfg.Trace.Output = traceFlag
	}
	if verboseFlag {
		cfg.Output.Verbose = true
		cfg.Output.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runCommand(ctx context.Context, name string, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(cfg.Output.LogLevel)
	if err != nil {
		return err
	}
	color.NoColor = color.NoColor || !cfg.Output.Colors
	log := logging.NewLogger(os.Stderr, level, cfg.Output.Colors)

	layout, err := project.Resolve(args, log)
	if err != nil {
		return err
	}
	if cfg.Output.Verbose {
		color.Cyan("Running %s on %v\n", name, layout.SourceRoots)
		if configFlag != "" {
			color.Cyan("Using configuration: %s\n", configFlag)
		}
	}

	if watchFlag {
		return watch(ctx, name, cfg, layout, log)
	}
	_, err = runOnce(ctx, name, cfg, layout, log)
	return err
}

// runOnce loads the project, runs the command's pass plan and prints the
// report. The report is printed even when the plan fails.
func runOnce(ctx context.Context, name string, cfg *config.Config, layout project.Layout, log *slog.Logger) (*models.RunResult, error) {
	start := time.Now()
	srcs, err := project.Collect(layout, cfg, log)
	if err != nil {
		return nil, err
	}
	if len(srcs) == 0 {
		color.Yellow("No Java files found\n")
		return nil, nil
	}

	opts := pipeline.Options{
		Conv:          cfg.RefCount,
		Jobs:          cfg.Workers(),
		MaxIterations: cfg.Pipeline.MaxIterations,
		DryRun:        cfg.Pipeline.DryRun,
		Formatter:     printer.Canonical{},
		Log:           log,
	}
	if cfg.Formatter.Command != "" {
		opts.Formatter = printer.NewCommand(cfg.Formatter.Command)
	}
	var tw *trace.Writer
	if cfg.Trace.Enabled {
		if tw, err = trace.Create(cfg.Trace.Output); err != nil {
			return nil, err
		}
		opts.Trace = tw
	}

	result := models.NewRunResult(name)
	runErr := pipeline.Run(ctx, name, pipeline.New(opts, srcs, result))
	result.SortFindings()
	result.Duration = time.Since(start).Round(time.Millisecond).String()

	var traceErr error
	if tw != nil {
		if traceErr = tw.Close(); traceErr == nil {
			log.Info("trace written", "file", cfg.Trace.Output, "records", tw.Count())
		}
	}
	if err := writeReport(cfg, result); err != nil {
		return result, errors.Join(runErr, traceErr, err)
	}
	return result, errors.Join(runErr, traceErr)
}

func writeReport(cfg *config.Config, result *models.RunResult) error {
	out := report.NewGeneratorWithConfig(cfg).Generate(result)
	if cfg.Output.OutputFile == "" {
		fmt.Print(out)
		return nil
	}
	if err := writeReportToFile(out, cfg.Output.OutputFile); err != nil {
		return fmt.Errorf("failed to write report to file: %w", err)
	}
	color.Green("Report saved to: %s\n", cfg.Output.OutputFile)
	return nil
}

func writeReportToFile(report, filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(filePath, []byte(report), 0644)
}

// watch runs the command once, then again after every settled batch of
// source changes until ctx is cancelled.
func watch(ctx context.Context, name string, cfg *config.Config, layout project.Layout, log *slog.Logger) error {
	fw, err := watcher.NewFileWatcher(cfg, log)
	if err != nil {
		return err
	}
	defer fw.Close()

	rerun := func() {
		result, err := runOnce(ctx, name, cfg, layout, log)
		if err != nil {
			color.Red("%v\n", describe(err))
		}
		if result != nil {
			fw.Suppress(result.FilesChanged...)
		}
	}
	rerun()

	var dirs []string
	for _, root := range layout.SourceRoots {
		if info, err := os.Stat(root); err == nil && !info.IsDir() {
			root = filepath.Dir(root)
		}
		dirs = append(dirs, root)
	}
	err = fw.Watch(dirs, func(changed []string) error {
		color.Cyan("\n%d file(s) changed, re-running %s\n", len(changed), name)
		rerun()
		return nil
	})
	if err != nil {
		return err
	}
	color.Cyan("Watching %d directories; press Ctrl-C to stop\n", len(fw.Dirs()))
	<-ctx.Done()
	return nil
}
