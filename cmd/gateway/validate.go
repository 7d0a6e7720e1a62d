package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func validateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Parse and validate the provider registry without starting the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Printf("config OK: %d provider(s)\n", len(cfg.Providers))
			for _, p := range cfg.Providers {
				fmt.Printf("  %-12s type=%-26s baseURL=%-40s models=%d\n", p.ID, p.Type, p.BaseURL, len(p.Models))
			}
			return nil
		},
	}
}
