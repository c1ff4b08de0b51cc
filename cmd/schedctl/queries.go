package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

func slotsCmd() *cobra.Command {
	var branch, provider, date string
	var duration int
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "List free start times on a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			branchID, err := parseID("--branch", branch)
			if err != nil {
				return err
			}
			providerID, err := parseOptionalID("--provider", provider)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				day, err := parseDate(date, a.Config.Location)
				if err != nil {
					return err
				}
				slots, err := a.Service.GetAvailableSlots(ctx, branchID, providerID, day, duration)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, s := range slots {
					fmt.Fprintln(out, s.In(a.Config.Location).Format(outputLayout))
				}
				fmt.Fprintf(out, "%d free slot(s) of %d minutes\n", len(slots), duration)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&branch, "branch", "", "branch id")
	cmd.Flags().StringVar(&provider, "provider", "", "provider id, empty for the whole branch")
	cmd.Flags().StringVar(&date, "date", "", "day as 2006-01-02")
	cmd.Flags().IntVar(&duration, "duration", 30, "slot length in minutes")
	_ = cmd.MarkFlagRequired("branch")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

type listFlags struct {
	branch, patient, provider, series string
	date, from, to, status            string
	today                             bool
	upcoming                          int
}

func listCmd() *cobra.Command {
	var f listFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List appointments by branch, patient, provider or series",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				appts, err := runList(ctx, a, f)
				if err != nil {
					return err
				}
				return printAppointments(cmd.OutOrStdout(), appts, a.Config.Location)
			})
		},
	}
	cmd.Flags().StringVar(&f.branch, "branch", "", "branch id")
	cmd.Flags().StringVar(&f.patient, "patient", "", "patient id")
	cmd.Flags().StringVar(&f.provider, "provider", "", "provider id")
	cmd.Flags().StringVar(&f.series, "series", "", "recurring series id")
	cmd.Flags().StringVar(&f.date, "date", "", "branch appointments on a day, 2006-01-02")
	cmd.Flags().BoolVar(&f.today, "today", false, "branch appointments today")
	cmd.Flags().IntVar(&f.upcoming, "upcoming", 0, "branch appointments in the next N days")
	cmd.Flags().StringVar(&f.status, "status", "", "branch appointments with this status")
	cmd.Flags().StringVar(&f.from, "from", "", "range start")
	cmd.Flags().StringVar(&f.to, "to", "", "range end")
	cmd.MarkFlagsOneRequired("branch", "patient", "provider", "series")
	cmd.MarkFlagsMutuallyExclusive("branch", "patient", "provider", "series")
	return cmd
}

func runList(ctx context.Context, a *app.App, f listFlags) ([]appointment.Appointment, error) {
	loc := a.Config.Location
	svc := a.Service

	var from, to time.Time
	var err error
	if f.from != "" {
		if from, err = parseTime(f.from, loc); err != nil {
			return nil, err
		}
	}
	if f.to != "" {
		if to, err = parseTime(f.to, loc); err != nil {
			return nil, err
		}
	}

	switch {
	case f.patient != "":
		id, err := parseID("--patient", f.patient)
		if err != nil {
			return nil, err
		}
		return svc.ListByPatient(ctx, id)
	case f.provider != "":
		id, err := parseID("--provider", f.provider)
		if err != nil {
			return nil, err
		}
		return svc.ListByProvider(ctx, id, from, to)
	case f.series != "":
		id, err := parseID("--series", f.series)
		if err != nil {
			return nil, err
		}
		return svc.ListSeries(ctx, id)
	}

	branchID, err := parseID("--branch", f.branch)
	if err != nil {
		return nil, err
	}
	switch {
	case f.date != "":
		day, err := parseDate(f.date, loc)
		if err != nil {
			return nil, err
		}
		return svc.ListByDate(ctx, branchID, day)
	case f.today:
		return svc.ListToday(ctx, branchID)
	case f.upcoming > 0:
		return svc.ListUpcoming(ctx, branchID, f.upcoming)
	case f.status != "":
		return svc.ListByStatus(ctx, branchID, appointment.Status(f.status))
	case !from.IsZero() || !to.IsZero():
		if from.IsZero() || to.IsZero() {
			return nil, errors.New("--from and --to go together")
		}
		return svc.ListByDateRange(ctx, branchID, from, to)
	}
	return svc.ListByBranch(ctx, branchID)
}

func statsCmd() *cobra.Command {
	var branch, from, to string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise a branch over a period",
		RunE: func(cmd *cobra.Command, args []string) error {
			branchID, err := parseID("--branch", branch)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				start, err := parseDate(from, a.Config.Location)
				if err != nil {
					return err
				}
				end := start.AddDate(0, 1, 0)
				if to != "" {
					if end, err = parseDate(to, a.Config.Location); err != nil {
						return err
					}
					end = end.AddDate(0, 0, 1)
				}
				st, err := a.Service.Statistics(ctx, branchID, start, end)
				if err != nil {
					return err
				}
				return printStatistics(cmd.OutOrStdout(), st)
			})
		},
	}
	cmd.Flags().StringVar(&branch, "branch", "", "branch id")
	cmd.Flags().StringVar(&from, "from", "", "first day, 2006-01-02")
	cmd.Flags().StringVar(&to, "to", "", "last day inclusive, default one month after --from")
	_ = cmd.MarkFlagRequired("branch")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}
