package cli

import (
	"context"
	"fmt"
	"os"

	drepo "UrbanPull/internal/domain/repository"
	"UrbanPull/internal/service/ratelimit"
	"UrbanPull/internal/service/uda"
	"UrbanPull/pkg/config"
	"UrbanPull/pkg/logger"

	"github.com/spf13/cobra"
)

// SourceFactory opens the upstream client for a config file.
type SourceFactory func(configPath string) (drepo.IndicatorSource, error)

// NewRootCommand builds the udactl command tree.
func NewRootCommand(version string) *cobra.Command {
	return newRootCommand(version, openSource)
}

func newRootCommand(version string, open SourceFactory) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "udactl",
		Short: "urbanDataAnalytics indicator client",
		Long: `udactl builds indicator requests for the urbanDataAnalytics API, validates
their mandatory fields and executes them.

Example:
  udactl indicator --indicator s_p --admin-level 3
  udactl indicator --indicator r_g --admin-level 0 --period 2017Q2 --dry-run
  udactl catalog`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")

	root.AddCommand(newIndicatorCommand(&configPath, open))
	root.AddCommand(newCatalogCommand())
	return root
}

// Execute runs the root command and exits non-zero on error.
func Execute(version string) {
	if err := NewRootCommand(version).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "udactl: %v\n", err)
		os.Exit(1)
	}
}

// openSource builds an uncached client from the config file. The CLI always
// wants a live answer, so no response cache is wired.
func openSource(configPath string) (drepo.IndicatorSource, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, err
	}
	l, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: "console", Output: "stderr"})
	if err != nil {
		return nil, err
	}
	client, err := uda.NewClient(uda.Config{
		BaseURL:       cfg.UDA.BaseURL,
		IndicatorPath: cfg.UDA.IndicatorPath,
		APIKey:        cfg.UDA.APIKey,
		AuthHeader:    cfg.UDA.AuthHeader,
		AuthScheme:    cfg.UDA.AuthScheme,
		UserAgent:     cfg.UDA.UserAgent,
		Timeout:       cfg.UDA.Timeout,
		RetryAttempts: cfg.UDA.RetryAttempts,
		RateCapacity:  cfg.UDA.RateLimit.Capacity,
		RateRefill:    cfg.UDA.RateLimit.RefillPerSec,
	}, nil, ratelimit.New(), l)
	if err != nil {
		return nil, err
	}
	return client, nil
}
