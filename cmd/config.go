package cmd

import (
	"github.com/spf13/cobra"
)

func configCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cfg.Encode(cmd.OutOrStdout(), format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "toml", "Output format: toml or yaml")
	return cmd
}
