package cli

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "attractor",
	Short: "Associative basin routing on a Hopfield network",
	Long: "Attractor stores named topic basins as patterns in a single Hopfield network and " +
		"routes content to the basin it resonates with, consulting a semantic oracle only when the network is unsure.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config (default ~/.attractor/config.yaml, or $ATTRACTOR_CONFIG)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(basinCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(reinforceCmd)
	rootCmd.AddCommand(nearestCmd)
	rootCmd.AddCommand(capacityCmd)
	rootCmd.AddCommand(decisionsCmd)
}
