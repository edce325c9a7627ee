// Observability contract validator
// Checks spans from live backends or recorded files against YAML contracts
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

const (
	defaultContractsPath = "contracts/observability-contracts.yaml"
	defaultConfigPath    = "contracts/telemetry-config.yaml"
	envPrefix            = "SPANCHECK"
)

// errContractsFailed is returned when validation ran but at least one contract
// failed. It maps to exit status 2.
var errContractsFailed = errors.New("one or more contracts failed")

func main() {
	if err := rootCmd().Execute(); err != nil {
		if errors.Is(err, errContractsFailed) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "spancheck",
		Short:        "Observability contract validator",
		SilenceUsage: true,
	}

	root.AddCommand(validateCmd())
	root.AddCommand(contractsCmd())
	root.AddCommand(recordCmd())
	root.AddCommand(versionCmd())

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "spancheck %s (commit: %s, built: %s)\n", version, commit, buildTime)
		},
	}
}

// flagEnv binds every flag of cmd to a SPANCHECK_* environment variable.
// Explicit flags win over the environment, which wins over flag defaults.
func flagEnv(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}
	return v, nil
}

// parseTime parses an optional RFC 3339 timestamp; empty yields the zero time.
func parseTime(flag, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: expected RFC 3339 time", flag, s)
	}
	return t, nil
}
