package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

func seriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "series",
		Short: "Manage recurring appointment series",
	}
	cmd.AddCommand(seriesCreateCmd())
	cmd.AddCommand(seriesCancelCmd())
	return cmd
}

func seriesCreateCmd() *cobra.Command {
	var (
		patient, branch, provider, start string
		typ, notes, frequency, until     string
		duration, interval, count        int
		skip                             bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Book a recurring series",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkNotes(notes); err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				tmpl, err := appointmentInput(patient, branch, provider, start, "", duration, a)
				if err != nil {
					return err
				}
				tmpl.Type = appointment.Type(typ)
				tmpl.Notes = notes

				req := appointment.SeriesRequest{
					Template:        tmpl,
					Frequency:       appointment.Frequency(frequency),
					Interval:        interval,
					Count:           count,
					SkipUnavailable: skip,
				}
				if until != "" {
					day, err := parseDate(until, a.Config.Location)
					if err != nil {
						return err
					}
					req.Until = day.AddDate(0, 0, 1).Add(-1)
				}

				res, err := a.Service.CreateSeries(ctx, req)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "series", res.SeriesID)
				for i := range res.Created {
					printAppointment(out, &res.Created[i], a.Config.Location)
				}
				for _, s := range res.Skipped {
					fmt.Fprintf(out, "skipped %s: %v\n", s.Start.In(a.Config.Location).Format(outputLayout), s.Reason)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&patient, "patient", "", "patient id")
	cmd.Flags().StringVar(&branch, "branch", "", "branch id")
	cmd.Flags().StringVar(&provider, "provider", "", "provider id")
	cmd.Flags().StringVar(&start, "start", "", "first occurrence start")
	cmd.Flags().IntVar(&duration, "duration", 30, "length of each occurrence in minutes")
	cmd.Flags().StringVar(&typ, "type", "", "appointment type")
	cmd.Flags().StringVar(&notes, "notes", "", "notes copied to each occurrence")
	cmd.Flags().StringVar(&frequency, "frequency", "weekly", "daily, weekly or monthly")
	cmd.Flags().IntVar(&interval, "interval", 1, "repeat every N periods")
	cmd.Flags().IntVar(&count, "count", 0, "number of occurrences")
	cmd.Flags().StringVar(&until, "until", "", "last day inclusive, 2006-01-02")
	cmd.Flags().BoolVar(&skip, "skip-unavailable", false, "skip conflicting or closed occurrences instead of aborting")
	_ = cmd.MarkFlagRequired("patient")
	_ = cmd.MarkFlagRequired("branch")
	_ = cmd.MarkFlagRequired("start")
	cmd.MarkFlagsOneRequired("count", "until")
	return cmd
}

func seriesCancelCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "cancel SERIES_ID",
		Short: "Cancel the future occurrences of a series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("SERIES_ID", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Service.CancelSeries(ctx, id, reason)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled %d occurrence(s).\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "cancellation reason")
	return cmd
}
