package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quibble-ai/quibble/config"
	"github.com/quibble-ai/quibble/internal/registry"
)

func registryCMD() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Seller registry utilities",
	}

	var cfgPath string
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Lint the seller registry file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			reg, err := registry.Load(cfg.Registry.Path)
			if err != nil {
				return err
			}
			errs := reg.Validate()
			for _, e := range errs {
				fmt.Fprintln(cmd.ErrOrStderr(), e)
			}
			if len(errs) > 0 {
				return fmt.Errorf("%d invalid records in %s", len(errs), cfg.Registry.Path)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d records ok\n", cfg.Registry.Path, len(reg.All()))
			return nil
		},
	}
	validate.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config.json)")

	cmd.AddCommand(validate)
	return cmd
}
