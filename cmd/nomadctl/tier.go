package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"supernomad/internal/subscription"
)

func init() {
	tierCmd := &cobra.Command{Use: "tier", Short: "Subscription tier operations"}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current tier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				return printTier(cmd.OutOrStdout(), a.subs.Current(ctx))
			})
		},
	}
	tierCmd.AddCommand(showCmd)

	setCmd := &cobra.Command{
		Use:   "set TIER",
		Short: "Change the tier (free, premium, lifetime)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier, err := subscription.ParseTier(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				sub, err := a.subs.SetTier(ctx, tier)
				if err != nil {
					return err
				}
				return printTier(cmd.OutOrStdout(), sub)
			})
		},
	}
	tierCmd.AddCommand(setCmd)

	rootCmd.AddCommand(tierCmd)
}

func printTier(out io.Writer, sub subscription.Subscription) error {
	limit := "unlimited"
	if n := sub.Tier.MaxCountries(); n != subscription.Unlimited {
		limit = fmt.Sprintf("%d", n)
	}
	_, err := fmt.Fprintf(out, "tier %s, tracked country limit %s\n", sub.Tier, limit)
	return err
}
