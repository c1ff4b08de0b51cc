package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

const outputLayout = "2006-01-02 15:04 MST"

func providerLabel(id *uuid.UUID) string {
	if id == nil {
		return "-"
	}
	return id.String()
}

func printAppointment(w io.Writer, a *appointment.Appointment, loc *time.Location) {
	fmt.Fprintf(w, "%s  %s  %s -> %s  provider=%s  patient=%s  type=%s\n",
		a.ID, a.Status,
		a.StartTime.In(loc).Format(outputLayout), a.EndTime.In(loc).Format("15:04"),
		providerLabel(a.ProviderID), a.PatientID, a.Type,
	)
}

func printAppointments(w io.Writer, appts []appointment.Appointment, loc *time.Location) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTART\tEND\tSTATUS\tTYPE\tPROVIDER\tPATIENT")
	for _, a := range appts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID,
			a.StartTime.In(loc).Format(outputLayout),
			a.EndTime.In(loc).Format("15:04"),
			a.Status, a.Type, providerLabel(a.ProviderID), a.PatientID,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d appointment(s)\n", len(appts))
	return nil
}

func printStatistics(w io.Writer, st *appointment.Statistics) error {
	fmt.Fprintln(w, st.String())

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tCOUNT")
	for _, s := range sortedKeys(st.ByStatus) {
		fmt.Fprintf(tw, "%s\t%d\n", s, st.ByStatus[s])
	}
	fmt.Fprintln(tw, "\t")
	fmt.Fprintln(tw, "TYPE\tCOUNT")
	for _, t := range sortedKeys(st.ByType) {
		fmt.Fprintf(tw, "%s\t%d\n", t, st.ByType[t])
	}
	return tw.Flush()
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
