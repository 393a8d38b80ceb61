package main

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/infra"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/policy"
)

// featuresCmd глобальный выключатель feature для всех инстансов ledgerd.
func featuresCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "features",
		Short: "Disable or enable a feature for every user",
	}

	toggle := func(use, short string, disabled bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <feature>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := infra.LoadConfig()
				if err != nil {
					return err
				}
				rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
				defer rdb.Close()

				if err := policy.SetFeatureDisabled(cmd.Context(), rdb, args[0], disabled); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: disabled=%t\n", args[0], disabled)
				return nil
			},
		}
	}
	cmd.AddCommand(toggle("disable", "Disable a feature globally", true))
	cmd.AddCommand(toggle("enable", "Re-enable a globally disabled feature", false))
	return cmd
}
