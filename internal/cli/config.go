package cli

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Example: `  seqlab config
  SEQLAB_BEAM_WIDTH=8 seqlab config -c seqlab.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.cfg.Encode(cmd.OutOrStdout())
		},
	}
}
