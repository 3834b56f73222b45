// Package main provides the sg-annotator binary: an HTTP annotation and
// evaluation server plus offline evaluation, comparison, export, and
// generation commands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sgannotator/sg-annotator/internal/config"
	"github.com/sgannotator/sg-annotator/internal/dataset"
	"github.com/sgannotator/sg-annotator/internal/evaluation"
	"github.com/sgannotator/sg-annotator/internal/pkg/logger"
	"github.com/sgannotator/sg-annotator/internal/provider"
	"github.com/sgannotator/sg-annotator/internal/server"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Best effort; a missing .env file is fine.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "sg-annotator",
		Short: "Temporal scene-graph annotation and evaluation service",
		Long: `sg-annotator annotates temporal scene-graph datasets and evaluates
predicted scene graphs against ground truth with retrieval-style metrics
(recall@K, mean recall@K, zero-shot recall@K, micro precision/recall/F1).

Examples:
  sg-annotator serve                                   # Start the HTTP API
  sg-annotator evaluate pred.json gt.json              # Evaluate two JSON files
  sg-annotator compare pred.csv gt.csv                 # Evaluate two CSV datasets
  sg-annotator export result.json --format csv         # Convert a saved result
  sg-annotator generate data.csv -o generated.json     # Generate scene graphs`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(
		newServeCmd(),
		newEvaluateCmd(),
		newCompareCmd(),
		newExportCmd(),
		newGenerateCmd(),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and builds a logger honoring the shared flags.
func setup(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	log := logger.New(level, cfg.Log.Format)

	return cfg, log, nil
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the annotation and evaluation HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("port") {
				cfg.Port, _ = cmd.Flags().GetInt("port")
			}
			if cmd.Flags().Changed("host") {
				cfg.Host, _ = cmd.Flags().GetString("host")
			}

			srv, err := server.New(cfg, log)
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				log.Info("shutdown signal received", "signal", sig.String())
			}

			return srv.Stop(context.Background())
		},
	}

	cmd.Flags().Int("port", 5000, "HTTP port")
	cmd.Flags().String("host", "0.0.0.0", "server host")
	return cmd
}

func newEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate <pred.json> <gt.json>",
		Short: "Evaluate a predictions file against a ground truth file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}

			opts, err := evalOptions(cmd)
			if err != nil {
				return err
			}

			evaluator := evaluation.NewEvaluator(cfg.Eval, log)
			result, err := evaluator.EvaluateFiles(args[0], args[1], opts)
			if err != nil {
				return err
			}

			return emitResult(cmd, result)
		},
	}

	addEvalFlags(cmd)
	cmd.Flags().String("align-by", "", "alignment key: index or id")
	cmd.Flags().String("align-mode", "", "length mismatch policy: error, min, gt, or pred")
	return cmd
}

func newCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <pred.csv> <gt.csv>",
		Short: "Evaluate two annotation CSV datasets row by row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}

			opts, err := evalOptions(cmd)
			if err != nil {
				return err
			}

			predRows, err := dataset.LoadCSV(args[0])
			if err != nil {
				return err
			}
			gtRows, err := dataset.LoadCSV(args[1])
			if err != nil {
				return err
			}

			evaluator := evaluation.NewEvaluator(cfg.Eval, log)
			result, err := evaluator.EvaluateRows(predRows, gtRows, opts)
			if err != nil {
				return err
			}

			return emitResult(cmd, result)
		},
	}

	addEvalFlags(cmd)
	return cmd
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <result.json>",
		Short: "Convert a saved evaluation result to csv, text, or json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read result file: %w", err)
			}

			var result evaluation.Result
			if err := json.Unmarshal(data, &result); err != nil {
				return fmt.Errorf("failed to parse result file: %w", err)
			}

			var out []byte
			switch format {
			case "json":
				out, err = evaluation.ExportJSON(&result)
			case "csv":
				out, err = evaluation.ExportCSV(&result)
			case "text":
				out = []byte(evaluation.ExportText(&result))
			default:
				return fmt.Errorf("unknown format: %s (must be json, csv, or text)", format)
			}
			if err != nil {
				return err
			}

			return writeOutput(cmd, output, out)
		},
	}

	cmd.Flags().StringP("format", "f", "text", "output format: json, csv, or text")
	cmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	return cmd
}

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <dataset.csv>",
		Short: "Generate scene graphs for the input column of a CSV dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("provider") {
				cfg.Provider.Type, _ = cmd.Flags().GetString("provider")
			}
			if cmd.Flags().Changed("model") {
				cfg.Provider.Model, _ = cmd.Flags().GetString("model")
			}

			rows, err := dataset.LoadCSV(args[0])
			if err != nil {
				return err
			}

			texts := make([]string, 0, len(rows))
			for _, row := range rows {
				if strings.TrimSpace(row.Input) != "" {
					texts = append(texts, row.Input)
				}
			}
			if len(texts) == 0 {
				return fmt.Errorf("no input texts in %s", args[0])
			}

			gen, err := provider.New(cfg.Provider, log)
			if err != nil {
				return err
			}
			runner := provider.NewRunner(gen, cfg.Provider, log)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.Info("generating scene graphs",
				"provider", gen.Name(), "model", cfg.Provider.Model, "texts", len(texts))
			results := runner.GenerateBatch(ctx, texts)

			succeeded := 0
			for _, res := range results {
				if res.Success() {
					succeeded++
				}
			}
			log.Info("generation finished", "total", len(results), "succeeded", succeeded)

			out, err := json.MarshalIndent(results, "", "  ")
			if err != nil {
				return err
			}

			output, _ := cmd.Flags().GetString("output")
			return writeOutput(cmd, output, out)
		},
	}

	cmd.Flags().String("provider", "", "generation provider: ollama or deepseek")
	cmd.Flags().String("model", "", "model name")
	cmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sg-annotator %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", commit)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", date)
		},
	}
}

func addEvalFlags(cmd *cobra.Command) {
	cmd.Flags().IntSlice("k", nil, "K cutoffs for recall metrics (default from config)")
	cmd.Flags().StringSlice("seen", nil, "seen predicates for zero-shot recall")
	cmd.Flags().StringP("format", "f", "text", "output format: json, csv, or text")
	cmd.Flags().StringP("output", "o", "", "output file (default stdout)")
}

func evalOptions(cmd *cobra.Command) (evaluation.Options, error) {
	ks, _ := cmd.Flags().GetIntSlice("k")
	seen, _ := cmd.Flags().GetStringSlice("seen")

	opts := evaluation.Options{
		KValues:        ks,
		SeenPredicates: seen,
	}

	if cmd.Flags().Lookup("align-by") != nil {
		alignBy, _ := cmd.Flags().GetString("align-by")
		opts.AlignBy = evaluation.AlignBy(alignBy)
	}
	if cmd.Flags().Lookup("align-mode") != nil {
		alignMode, _ := cmd.Flags().GetString("align-mode")
		opts.AlignMode = evaluation.AlignMode(alignMode)
	}

	return opts, nil
}

// emitResult renders an evaluation result per the shared format flags.
func emitResult(cmd *cobra.Command, result *evaluation.Result) error {
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	var (
		out []byte
		err error
	)
	switch format {
	case "json":
		out, err = evaluation.ExportJSON(result)
	case "csv":
		out, err = evaluation.ExportCSV(result)
	case "text", "":
		out = []byte(evaluation.ExportText(result))
	default:
		return fmt.Errorf("unknown format: %s (must be json, csv, or text)", format)
	}
	if err != nil {
		return err
	}

	return writeOutput(cmd, output, out)
}

func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}
