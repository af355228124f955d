package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/blackcoderx/gimmeflow/pkg/httpclient"
	"github.com/blackcoderx/gimmeflow/pkg/secretsafe"
	"github.com/blackcoderx/gimmeflow/pkg/secretsource"
	"github.com/blackcoderx/gimmeflow/pkg/workflow"
	"github.com/blackcoderx/gimmeflow/pkg/workflow/importer"
	"go.uber.org/zap"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "gimmeflow",
		Short: "gimmeflow - declarative HTTP workflow runner",
		Long: `gimmeflow runs YAML-described workflows of HTTP calls, resolving step
dependencies into parallel execution phases, rendering payload templates
against prior step results, and applying retry, circuit breaking, and
auth on every outbound call.`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .gimmeflow/config.yaml)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gimmeflow %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	})
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".gimmeflow")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

func loadWorkflow(path string) (*workflow.Workflow, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file %q: %w", path, err)
	}
	src := secretsource.Chain{secretsource.Env{}}
	return workflow.Load(raw, src, yaml.Unmarshal)
}

func runCmd() *cobra.Command {
	var timeoutFlag string

	cmd := &cobra.Command{
		Use:   "run <workflow.yaml>",
		Short: "Execute a workflow file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := loadWorkflow(args[0])
			if err != nil {
				return err
			}

			ctx := context.Background()
			if timeoutFlag != "" {
				d, err := time.ParseDuration(timeoutFlag)
				if err != nil {
					return fmt.Errorf("invalid --timeout %q: %w", timeoutFlag, err)
				}
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}

			zlog, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer zlog.Sync()
			logger := secretsafe.NewLogger(zlog)

			pool := httpclient.NewPool(httpclient.DefaultPoolLimits())
			defer pool.Close()

			engine := workflow.NewEngine(pool, nil, logger)
			result, err := engine.Execute(ctx, w)
			if err != nil {
				return err
			}

			out, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(out))

			if !result.Success {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&timeoutFlag, "timeout", "", "overall workflow timeout (e.g. 5m)")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <workflow.yaml>",
		Short: "Parse and validate a workflow file without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := loadWorkflow(args[0])
			if err != nil {
				return err
			}
			phases, err := workflow.Resolve(w.Steps)
			if err != nil {
				return err
			}
			fmt.Printf("%s: valid, %d step(s) across %d phase(s)\n", w.Name, len(w.Steps), len(phases))
			return nil
		},
	}
}

func importCmd() *cobra.Command {
	var name, apiBase, out string

	openapiCmd := &cobra.Command{
		Use:   "openapi <spec-file>",
		Short: "Generate a workflow skeleton from an OpenAPI document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			w, err := importer.OpenAPI(raw, name, apiBase)
			if err != nil {
				return err
			}
			return writeImportedWorkflow(w, out)
		},
	}

	postmanCmd := &cobra.Command{
		Use:   "postman <collection-file>",
		Short: "Generate a workflow skeleton from a Postman collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			w, err := importer.PostmanCollection(raw, name, apiBase)
			if err != nil {
				return err
			}
			return writeImportedWorkflow(w, out)
		},
	}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Generate a workflow skeleton from an external API description",
	}
	cmd.PersistentFlags().StringVar(&name, "name", "imported-workflow", "workflow name")
	cmd.PersistentFlags().StringVar(&apiBase, "api-base", "https://api.example.com", "workflow api_base")
	cmd.PersistentFlags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.AddCommand(openapiCmd, postmanCmd)
	return cmd
}

func writeImportedWorkflow(w *workflow.Workflow, out string) error {
	b, err := yaml.Marshal(w)
	if err != nil {
		return fmt.Errorf("failed to render generated workflow: %w", err)
	}
	if out == "" {
		fmt.Println(string(b))
		return nil
	}
	return os.WriteFile(out, b, 0o644)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
