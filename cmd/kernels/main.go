// Command kernels inspects the available backends and checks that the device
// backend agrees with the host reference.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/born-ml/kernels/internal/config"
	"github.com/born-ml/kernels/internal/logging"
)

const version = "v0.1.0"

var (
	configFile string
	logLevel   string

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "kernels",
		Short:         "tensor kernel diagnostics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "print version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "kernels %s\n", version)
			},
		},
		devicesCmd(),
		parityCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, failStyle.Render("error:"), err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger shared by subcommands.
func setup() (*config.Config, zerolog.Logger, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, zerolog.Nop(), err
		}
		cfg = loaded
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger, err := logging.Console(cfg.LogLevel)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger, nil
}
