package commands

import (
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if formatOutput == "table" {
			formatOutput = "yaml"
		}
		return output(cfg)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
