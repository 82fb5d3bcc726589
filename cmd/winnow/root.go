package main

import (
	"fmt"
	"os"

	"github.com/aretw0/winnow"
	"github.com/aretw0/winnow/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "winnow",
	Short: "Winnow is an idea-convergence collaborator for learner projects",
	Long: `Winnow pairs a learner with a reasoning collaborator to narrow many
rough project ideas into one committed artifact, through reflection,
co-design, variant generation, and a final selection.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a winnow.yaml configuration file")
}

// newService wires a Service from the --config flag plus environment.
func newService(cmd *cobra.Command, opts ...winnow.Option) (*winnow.Service, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return winnow.New(cfg, opts...)
}

// loadConfig resolves configuration without wiring the full service.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}
