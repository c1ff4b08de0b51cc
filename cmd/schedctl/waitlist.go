package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

func waitlistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "waitlist",
		Short: "Manage patients waiting for a freed slot",
	}
	cmd.AddCommand(waitlistAddCmd())
	cmd.AddCommand(waitlistRemoveCmd())
	return cmd
}

func waitlistAddCmd() *cobra.Command {
	var (
		patient, branch, provider, typ, notes string
		duration, priority                    int
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Put a patient on a branch waitlist",
		RunE: func(cmd *cobra.Command, args []string) error {
			patientID, err := parseID("--patient", patient)
			if err != nil {
				return err
			}
			branchID, err := parseID("--branch", branch)
			if err != nil {
				return err
			}
			providerID, err := parseOptionalID("--provider", provider)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				e, err := a.Waitlist.Add(ctx, waitlist.Entry{
					PatientID:       patientID,
					BranchID:        branchID,
					ProviderID:      providerID,
					Type:            appointment.Type(typ),
					DurationMinutes: duration,
					Priority:        priority,
					Notes:           notes,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  waiting  branch=%s  provider=%s  %d min  priority=%d\n",
					e.ID, e.BranchID, providerLabel(e.ProviderID), e.DurationMinutes, e.Priority)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&patient, "patient", "", "patient id")
	cmd.Flags().StringVar(&branch, "branch", "", "branch id")
	cmd.Flags().StringVar(&provider, "provider", "", "only this provider, empty for any")
	cmd.Flags().StringVar(&typ, "type", "", "appointment type to book")
	cmd.Flags().StringVar(&notes, "notes", "", "notes for the booked appointment")
	cmd.Flags().IntVar(&duration, "duration", 30, "minutes needed")
	cmd.Flags().IntVar(&priority, "priority", 0, "higher is promoted first")
	_ = cmd.MarkFlagRequired("patient")
	_ = cmd.MarkFlagRequired("branch")
	return cmd
}

func waitlistRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove ENTRY_ID",
		Short: "Take an entry off the waitlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("ENTRY_ID", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Waitlist.Remove(ctx, id); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "removed", id)
				return nil
			})
		},
	}
}
