package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MrEthical07/twostep"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the engine configuration",
	}

	var defaults bool
	printCmd := &cobra.Command{
		Use:   "print",
		Short: "Print the validated configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := twostep.DefaultConfig()
			if !defaults {
				loaded, err := root.loadConfig()
				if err != nil {
					return err
				}
				cfg = loaded
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg.Redacted()); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	printCmd.Flags().BoolVar(&defaults, "defaults", false, "print the built-in defaults instead of loading")

	cmd.AddCommand(printCmd)
	return cmd
}
