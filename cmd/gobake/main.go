// Package main is the entry point for the gobake binary.
// It provides a CLI for composing and running file pipelines from YAML
// definitions.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gobake/gobake"
	"github.com/gobake/gobake/journal"
)

func main() {
	registerBuiltinSteps()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command for gobake
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gobake",
		Short: "File pipeline runner",
		Long: `gobake composes file-transformation steps into pipelines and runs them.

A pipeline definition is a YAML document naming registered step types in
execution order. Boundary files are supplied as tag=path pairs.

Example:
  gobake run -f pipeline.yaml --input raw=/data/raw.csv --output report=/data/out.csv`,
	}

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newSchemaCmd())
	return rootCmd
}

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a pipeline from a YAML definition",
		RunE:  runPipeline,
	}

	runCmd.Flags().StringP("pipeline", "f", "", "Path to the pipeline definition (YAML)")
	runCmd.Flags().StringArray("input", nil, "Input file as tag=path (repeatable)")
	runCmd.Flags().StringArray("output", nil, "Output file as tag=path (repeatable)")
	runCmd.Flags().Bool("overwrite", false, "Permit replacing existing output files")
	runCmd.Flags().Bool("keep-temp", false, "Retain the run's temporary directory for debugging")
	runCmd.Flags().String("temp-root", "", "Root directory for per-run temporary directories")
	runCmd.Flags().String("journal", "", "Path to a SQLite run journal")
	runCmd.Flags().BoolP("verbose", "v", false, "Enable debug logging")
	runCmd.MarkFlagRequired("pipeline")

	return runCmd
}

func runPipeline(cmd *cobra.Command, args []string) error {
	pipelinePath, err := cmd.Flags().GetString("pipeline")
	if err != nil {
		return fmt.Errorf("failed to get pipeline flag: %w", err)
	}

	data, err := os.ReadFile(pipelinePath)
	if err != nil {
		return fmt.Errorf("reading pipeline definition: %w", err)
	}
	def, err := gobake.LoadPipelineDef(data)
	if err != nil {
		return err
	}

	inputs, err := parsePathPairs(cmd, "input")
	if err != nil {
		return err
	}
	outputs, err := parsePathPairs(cmd, "output")
	if err != nil {
		return err
	}

	var opts []gobake.SequenceOption
	if keep, _ := cmd.Flags().GetBool("keep-temp"); keep {
		opts = append(opts, gobake.WithRetainTempDir())
	}
	if tempRoot, _ := cmd.Flags().GetString("temp-root"); tempRoot != "" {
		opts = append(opts, gobake.WithTempRoot(tempRoot))
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := newConsoleLogger(verbose)

	if journalPath, _ := cmd.Flags().GetString("journal"); journalPath != "" {
		j, err := journal.Open(journalPath, journal.WithLogger(logger))
		if err != nil {
			return err
		}
		defer j.Close()
		opts = append(opts, gobake.WithObserver(j))
	}

	pipeline, err := gobake.BuildPipeline(def, opts...)
	if err != nil {
		return err
	}

	overwrite, _ := cmd.Flags().GetBool("overwrite")
	runner := gobake.NewRunner(
		gobake.WithLogger(logger),
		gobake.WithOverwrite(overwrite),
		gobake.WithMiddleware(gobake.LoggingMiddleware()),
	)
	return runner.Execute(cmd.Context(), pipeline, inputs, outputs, logger)
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the pipeline definition format",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := json.MarshalIndent(gobake.PipelineSchema(), "", "  ")
			if err != nil {
				return fmt.Errorf("encoding schema: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

// parsePathPairs collects repeated tag=path flag values into a path map.
func parsePathPairs(cmd *cobra.Command, flag string) (gobake.PathMap, error) {
	pairs, err := cmd.Flags().GetStringArray(flag)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s flag: %w", flag, err)
	}

	paths := gobake.PathMap{}
	for _, pair := range pairs {
		tag, path, ok := strings.Cut(pair, "=")
		if !ok || tag == "" || path == "" {
			return nil, fmt.Errorf("invalid --%s value %q: expected tag=path", flag, pair)
		}
		paths[gobake.Tag(tag)] = path
	}
	return paths, nil
}

// consoleLogger writes pipeline logs to stderr.
type consoleLogger struct {
	verbose bool
}

func newConsoleLogger(verbose bool) *consoleLogger {
	return &consoleLogger{verbose: verbose}
}

func (l *consoleLogger) Debug(format string, args ...interface{}) {
	if l.verbose {
		log.Printf("[DEBUG] "+format, args...)
	}
}

func (l *consoleLogger) Info(format string, args ...interface{}) {
	log.Printf("[INFO] "+format, args...)
}

func (l *consoleLogger) Warn(format string, args ...interface{}) {
	log.Printf("[WARN] "+format, args...)
}

func (l *consoleLogger) Error(format string, args ...interface{}) {
	log.Printf("[ERROR] "+format, args...)
}
