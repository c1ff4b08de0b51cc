package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

type transitionFunc func(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)

var transitions = map[string]func(*appointment.Service) transitionFunc{
	"confirm":  func(s *appointment.Service) transitionFunc { return s.Confirm },
	"check-in": func(s *appointment.Service) transitionFunc { return s.CheckIn },
	"start":    func(s *appointment.Service) transitionFunc { return s.StartVisit },
	"complete": func(s *appointment.Service) transitionFunc { return s.Complete },
	"no-show":  func(s *appointment.Service) transitionFunc { return s.MarkNoShow },
}

func transitionNames() string {
	names := make([]string, 0, len(transitions))
	for name := range transitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

func bookCmd() *cobra.Command {
	var (
		patient, branch, provider string
		start, end, typ, notes    string
		duration                  int
	)
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book an appointment",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkNotes(notes); err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				in, err := appointmentInput(patient, branch, provider, start, end, duration, a)
				if err != nil {
					return err
				}
				in.Type = appointment.Type(typ)
				in.Notes = notes

				created, err := a.Service.CreateAppointment(ctx, in)
				if err != nil {
					return err
				}
				printAppointment(cmd.OutOrStdout(), created, a.Config.Location)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&patient, "patient", "", "patient id")
	cmd.Flags().StringVar(&branch, "branch", "", "branch id")
	cmd.Flags().StringVar(&provider, "provider", "", "provider id, empty for unassigned")
	cmd.Flags().StringVar(&start, "start", "", "start time")
	cmd.Flags().StringVar(&end, "end", "", "end time, or use --duration")
	cmd.Flags().IntVar(&duration, "duration", 30, "length in minutes when --end is not given")
	cmd.Flags().StringVar(&typ, "type", "", "appointment type, default consultation")
	cmd.Flags().StringVar(&notes, "notes", "", "free text notes")
	_ = cmd.MarkFlagRequired("patient")
	_ = cmd.MarkFlagRequired("branch")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func appointmentInput(patient, branch, provider, start, end string, duration int, a *app.App) (appointment.Appointment, error) {
	var in appointment.Appointment
	var err error
	if in.PatientID, err = parseID("--patient", patient); err != nil {
		return in, err
	}
	if in.BranchID, err = parseID("--branch", branch); err != nil {
		return in, err
	}
	if in.ProviderID, err = parseOptionalID("--provider", provider); err != nil {
		return in, err
	}
	if in.StartTime, err = parseTime(start, a.Config.Location); err != nil {
		return in, err
	}
	in.EndTime, err = resolveEnd(in.StartTime, end, duration, a.Config.Location)
	return in, err
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("ID", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				appt, err := a.Service.GetAppointment(ctx, id)
				if err != nil {
					return err
				}
				if appt == nil {
					return appointment.ErrAppointmentNotFound
				}
				printAppointment(cmd.OutOrStdout(), appt, a.Config.Location)
				if appt.Notes != "" {
					fmt.Fprintln(cmd.OutOrStdout(), "notes:", appt.Notes)
				}
				if appt.CancellationReason != "" {
					fmt.Fprintln(cmd.OutOrStdout(), "cancellation reason:", appt.CancellationReason)
				}
				return nil
			})
		},
	}
}

func rescheduleCmd() *cobra.Command {
	var start, end string
	var duration int
	cmd := &cobra.Command{
		Use:   "reschedule ID",
		Short: "Move an appointment to a new time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("ID", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				newStart, err := parseTime(start, a.Config.Location)
				if err != nil {
					return err
				}
				newEnd, err := resolveEnd(newStart, end, duration, a.Config.Location)
				if err != nil {
					return err
				}
				moved, err := a.Service.Reschedule(ctx, id, newStart, newEnd)
				if err != nil {
					return err
				}
				printAppointment(cmd.OutOrStdout(), moved, a.Config.Location)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "new start time")
	cmd.Flags().StringVar(&end, "end", "", "new end time, or use --duration")
	cmd.Flags().IntVar(&duration, "duration", 30, "length in minutes when --end is not given")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func cancelCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel an appointment and free its slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkNotes(reason); err != nil {
				return err
			}
			id, err := parseID("ID", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				cancelled, err := a.Service.Cancel(ctx, id, reason)
				if err != nil {
					return err
				}
				printAppointment(cmd.OutOrStdout(), cancelled, a.Config.Location)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "cancellation reason")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status ID " + transitionNames(),
		Short: "Move an appointment along its lifecycle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("ID", args[0])
			if err != nil {
				return err
			}
			pick, ok := transitions[args[1]]
			if !ok {
				return fmt.Errorf("unknown action %q, expected one of %s", args[1], transitionNames())
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				updated, err := pick(a.Service)(ctx, id)
				if err != nil {
					return err
				}
				printAppointment(cmd.OutOrStdout(), updated, a.Config.Location)
				return nil
			})
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Remove an appointment permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("ID", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Service.DeleteAppointment(ctx, id); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "deleted", id)
				return nil
			})
		},
	}
}
