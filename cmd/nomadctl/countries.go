package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"supernomad/internal/tracking/models"
	"supernomad/internal/tracking/registry"
	id "supernomad/pkg/domain"
	"supernomad/pkg/requestcontext"
)

func init() {
	countriesCmd := &cobra.Command{Use: "countries", Short: "Tracked country operations"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked countries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				today := models.DateOf(requestcontext.Now(ctx), a.zone)
				return printCountries(cmd.OutOrStdout(), a.service.ListCountries(ctx), today)
			})
		},
	}
	countriesCmd.AddCommand(listCmd)

	var trackingType string
	var dayLimit int
	var noCount bool
	addCmd := &cobra.Command{
		Use:   "add CODE NAME",
		Short: "Start tracking a country",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				c, err := a.service.AddCountry(ctx, registry.NewCountry{
					Code:            args[0],
					Name:            args[1],
					TrackingType:    models.TrackingType(trackingType),
					DayLimit:        dayLimit,
					CountTravelDays: !noCount,
				})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "tracking %s (%s) as %s, limit %d days, id %s\n",
					c.Name, c.Code, c.TrackingType, c.DayLimit, c.ID)
				return err
			})
		},
	}
	addCmd.Flags().StringVarP(&trackingType, "type", "t", string(models.TrackingTouristVisa), "Tracking type (tourist-visa, schengen, tax-residency, custom)")
	addCmd.Flags().IntVarP(&dayLimit, "limit", "l", 0, "Day limit (defaults by tracking type)")
	addCmd.Flags().BoolVar(&noCount, "no-count", false, "Do not count travel days")
	countriesCmd.AddCommand(addCmd)

	removeCmd := &cobra.Command{
		Use:   "remove COUNTRY_ID",
		Short: "Stop tracking a country",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			countryID, err := id.ParseCountryID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.service.RemoveCountry(ctx, countryID); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "removed", countryID)
				return err
			})
		},
	}
	countriesCmd.AddCommand(removeCmd)

	countriesCmd.AddCommand(countryMutation("reset COUNTRY_ID", "Zero the day counters of a country",
		func(ctx context.Context, a *app, countryID id.CountryID, _ []string) (*models.TrackedCountry, error) {
			return a.service.ResetCountry(ctx, countryID)
		}, 1))
	countriesCmd.AddCommand(countryMutation("toggle COUNTRY_ID", "Flip whether travel days are counted",
		func(ctx context.Context, a *app, countryID id.CountryID, _ []string) (*models.TrackedCountry, error) {
			return a.service.ToggleCounting(ctx, countryID)
		}, 1))
	countriesCmd.AddCommand(countryMutation("limit COUNTRY_ID DAYS", "Change the day limit of a country",
		func(ctx context.Context, a *app, countryID id.CountryID, rest []string) (*models.TrackedCountry, error) {
			days, err := strconv.Atoi(rest[0])
			if err != nil {
				return nil, fmt.Errorf("DAYS must be a number: %w", err)
			}
			return a.service.UpdateLimit(ctx, countryID, days)
		}, 2))

	rootCmd.AddCommand(countriesCmd)
}

type mutateFunc func(ctx context.Context, a *app, countryID id.CountryID, rest []string) (*models.TrackedCountry, error)

func countryMutation(use, short string, fn mutateFunc, nargs int) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			countryID, err := id.ParseCountryID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				c, err := fn(ctx, a, countryID, args[1:])
				if err != nil {
					return err
				}
				today := models.DateOf(requestcontext.Now(ctx), a.zone)
				return printCountries(cmd.OutOrStdout(), []*models.TrackedCountry{c}, today)
			})
		},
	}
}

func printCountries(out io.Writer, countries []*models.TrackedCountry, today models.Date) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCODE\tNAME\tTYPE\tDAYS\tWINDOW\tLIMIT\tYEAR\tCOUNTING")
	for _, c := range countries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%t\n",
			c.ID, c.Code, c.Name, c.TrackingType,
			c.DaysSpent, c.RollingDays(today), c.DayLimit, c.YearlyDaysSpent, c.CountTravelDays)
	}
	return tw.Flush()
}
