package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"refweaver/internal/config"
	"refweaver/internal/index"
	"refweaver/internal/pipeline"
	"refweaver/internal/printer"
	"refweaver/internal/verify"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	formatFlag         string
	watchFlag          bool
	configFlag         string
	generateConfigFlag bool
	dryRunFlag         bool
	jobsFlag           int
	traceFlag          string
	verboseFlag        bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "refweaver",
	Short: "Inserts and removes reference-counting calls in Java sources",
	Long: `refweaver rewrites Java sources whose classes derive from a reference-counted
base type: it adds retain/release calls at argument, field, last-use and
lambda-capture sites, and can strip them again.

Examples:
  refweaver insert src/main/java          # Instrument a source root
  refweaver remove --dry-run .            # Show what removal would change
  refweaver verify                        # Check the project in refweaver.toml
  refweaver insert --watch .              # Re-instrument on every change
  refweaver --generate-config             # Generate sample config file`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if generateConfigFlag {
			return generateConfig()
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		color.Red("%v\n", describe(err))
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&formatFlag, "format", "f", "", "Output format (console, json)")
	flags.BoolVarP(&watchFlag, "watch", "w", false, "Re-run the command whenever a source file changes")
	flags.StringVarP(&configFlag, "config", "c", "", "Path to configuration file")
	flags.BoolVarP(&dryRunFlag, "dry-run", "n", false, "Report changes without writing files")
	flags.IntVarP(&jobsFlag, "jobs", "j", 0, "Files processed in parallel (0 uses the configuration)")
	flags.StringVar(&traceFlag, "trace", "", "Write index trace records to this file")
	flags.BoolVarP(&verboseFlag, "verbose", "v", false, "Verbose output and debug logging")
	rootCmd.Flags().BoolVar(&generateConfigFlag, "generate-config", false, "Generate sample configuration file")

	for _, name := range pipeline.Commands {
		rootCmd.AddCommand(newCommand(name))
	}
}

// describe adds the context a user needs to the fatal error kinds.
func describe(err error) error {
	var dup *index.DuplicateDefinitionError
	var fe *printer.FormatError
	var ve *verify.Error
	switch {
	case errors.As(err, &dup):
		return fmt.Errorf("%w\nthe program declares the same binding twice; fix the sources before rewriting", err)
	case errors.As(err, &fe):
		return fmt.Errorf("%w\nno file was written for this run", err)
	case errors.As(err, &ve):
		return err
	case errors.Is(err, pipeline.ErrNoFixedPoint):
		return fmt.Errorf("%w\nraise pipeline.max_iterations or report the input that does not settle", err)
	}
	return err
}

func generateConfig() error {
	configPath := ".refweaver.yml"
	if err := config.GenerateConfig(configPath); err != nil {
		return fmt.Errorf("failed to generate config file: %w", err)
	}
	color.Green("Generated sample configuration file: %s\n", configPath)
	color.Cyan("Edit this file to customize refweaver behavior\n")
	color.Cyan("Run 'refweaver insert --config=%s .' to use it\n", configPath)
	return nil
}
