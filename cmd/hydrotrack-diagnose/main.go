package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/HydroTrack/hydrotrack-backend/config"
	"github.com/HydroTrack/hydrotrack-backend/internal/bootstrap"
	"github.com/HydroTrack/hydrotrack-backend/logger"
	"github.com/HydroTrack/hydrotrack-backend/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	outputYAML = "yaml"
	outputJSON = "json"
)

var (
	appContext string
	output     string

	cmd = &cobra.Command{
		Use:           "hydrotrack-diagnose",
		Short:         "Run HydroTrack configuration and connectivity diagnostics",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runDiagnostics,
	}

	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Print the aggregated health status",
		RunE:  runHealth,
	}
)

// errFailed signals a completed run that found failures.
var errFailed = errors.New("diagnostics reported failures")

func init() {
	cmd.PersistentFlags().StringVar(&appContext, "context", "", "Execution context to validate (client or server); defaults to APP_CONTEXT")
	cmd.PersistentFlags().StringVarP(&output, "output", "o", outputYAML, "Output format (yaml or json)")
	cmd.AddCommand(healthCmd)
}

func loadComponents(ctx context.Context) (*bootstrap.Components, error) {
	if output != outputYAML && output != outputJSON {
		return nil, fmt.Errorf("unsupported output format %q", output)
	}

	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if appContext != "" {
		c := config.Context(appContext)
		if c != config.ContextClient && c != config.ContextServer {
			return nil, fmt.Errorf("unknown context %q", appContext)
		}
		cfg.Server.Context = c
	}

	return bootstrap.Build(ctx, cfg, bootstrap.Options{SkipRedis: true, SkipMigrations: true})
}

func runDiagnostics(cmd *cobra.Command, args []string) error {
	components, err := loadComponents(cmd.Context())
	if err != nil {
		return err
	}
	defer components.Close()

	report := components.Diagnostics.Run(cmd.Context())
	if err := writeOutput(cmd.OutOrStdout(), report, output); err != nil {
		return err
	}
	if report.Failed() {
		return errFailed
	}
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	components, err := loadComponents(cmd.Context())
	if err != nil {
		return err
	}
	defer components.Close()

	status := components.Health.CheckHealth(cmd.Context())
	if err := writeOutput(cmd.OutOrStdout(), status, output); err != nil {
		return err
	}
	if status.OverallStatus == types.OverallUnhealthy {
		return errFailed
	}
	return nil
}

func writeOutput(w io.Writer, v interface{}, format string) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

func main() {
	logger.InitLogger()
	defer logger.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		cancel()
		os.Exit(1)
	}
}
