package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/hours"
	"github.com/hackgods/clinic-scheduling/internal/logger"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

type seedOptions struct {
	branches     int
	providers    int
	patients     int
	appointments int
	waiting      int
	days         int
}

func main() {
	var opts seedOptions
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed branches, operating hours and appointments through the scheduling engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.branches, "branches", 3, "number of branches")
	cmd.Flags().IntVar(&opts.providers, "providers", 4, "providers per branch")
	cmd.Flags().IntVar(&opts.patients, "patients", 300, "number of patients")
	cmd.Flags().IntVar(&opts.appointments, "appointments", 400, "bookings to attempt")
	cmd.Flags().IntVar(&opts.waiting, "waitlist", 20, "waitlist entries to add")
	cmd.Flags().IntVar(&opts.days, "days", 14, "booking horizon in days")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

type branch struct {
	id        uuid.UUID
	name      string
	providers []uuid.UUID
}

func run(ctx context.Context, opts seedOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := app.New(ctx, cfg, log, app.Options{ServiceName: "seed"})
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	if _, err := db.Migrate(ctx, a.Pool, log); err != nil {
		return err
	}

	gofakeit.Seed(0)

	branches, err := seedBranches(ctx, hours.NewPgProvider(a.Pool, cfg.Location, nil), opts, log)
	if err != nil {
		return fmt.Errorf("seed branches: %w", err)
	}

	patients := make([]uuid.UUID, opts.patients)
	for i := range patients {
		patients[i] = uuid.New()
	}

	booked, err := seedAppointments(ctx, a.Service, branches, patients, opts, log)
	if err != nil {
		return fmt.Errorf("seed appointments: %w", err)
	}

	for i := 0; i < opts.waiting; i++ {
		b := branches[gofakeit.Number(0, len(branches)-1)]
		_, err := a.Waitlist.Add(ctx, waitlist.Entry{
			PatientID:       patients[gofakeit.Number(0, len(patients)-1)],
			BranchID:        b.id,
			Type:            randomType(),
			DurationMinutes: 15 * gofakeit.Number(1, 4),
			Priority:        gofakeit.Number(0, 5),
			Notes:           gofakeit.Sentence(6),
		})
		if err != nil {
			return fmt.Errorf("seed waitlist: %w", err)
		}
	}

	for _, b := range branches {
		log.Info("branch seeded", zap.String("name", b.name), zap.Stringer("branch_id", b.id), zap.Int("providers", len(b.providers)))
	}
	log.Info("seed complete", zap.Int("appointments", booked), zap.Int("waitlist", opts.waiting))
	return nil
}

func seedBranches(ctx context.Context, store *hours.PgProvider, opts seedOptions, log *zap.Logger) ([]branch, error) {
	out := make([]branch, 0, opts.branches)
	for i := 0; i < opts.branches; i++ {
		b := branch{id: uuid.New(), name: gofakeit.City() + " Hearing Clinic"}
		for j := 0; j < opts.providers; j++ {
			b.providers = append(b.providers, uuid.New())
		}

		if err := store.ReplaceSchedule(ctx, b.id, randomSchedule()); err != nil {
			return nil, err
		}
		log.Debug("branch hours stored", zap.Stringer("branch_id", b.id))
		out = append(out, b)
	}
	return out, nil
}

func randomSchedule() hours.Schedule {
	open := []string{"08:00", "08:30", "09:00"}[gofakeit.Number(0, 2)]
	closeAt := []string{"16:30", "17:00", "18:00"}[gofakeit.Number(0, 2)]
	day := hours.Day{Open: open, Close: closeAt, Breaks: []hours.Window{{Start: "12:30", End: "13:15"}}}

	weekly := map[string]hours.Day{
		"monday": day, "tuesday": day, "wednesday": day, "thursday": day, "friday": day,
	}
	if gofakeit.Bool() {
		weekly["saturday"] = hours.Day{Open: "09:00", Close: "12:00"}
	}
	return hours.Schedule{Timezone: "UTC", Weekly: weekly}
}

func randomType() appointment.Type {
	types := []appointment.Type{
		appointment.TypeConsultation, appointment.TypeFollowUp, appointment.TypeHearingTest,
		appointment.TypeNewPatient, appointment.TypeTelehealth, appointment.TypeProcedure,
	}
	return types[gofakeit.Number(0, len(types)-1)]
}

// seedAppointments books into free slots, so every appointment is valid against operating hours.
func seedAppointments(ctx context.Context, svc *appointment.Service, branches []branch, patients []uuid.UUID, opts seedOptions, log *zap.Logger) (int, error) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	booked := 0

	for i := 0; i < opts.appointments; i++ {
		b := branches[gofakeit.Number(0, len(branches)-1)]
		provider := b.providers[gofakeit.Number(0, len(b.providers)-1)]
		day := today.AddDate(0, 0, gofakeit.Number(1, opts.days))
		minutes := 15 * gofakeit.Number(1, 4)

		slots, err := svc.GetAvailableSlots(ctx, b.id, &provider, day, minutes)
		if err != nil {
			return booked, err
		}
		if len(slots) == 0 {
			continue
		}
		start := slots[gofakeit.Number(0, len(slots)-1)]

		_, err = svc.CreateAppointment(ctx, appointment.Appointment{
			PatientID:  patients[gofakeit.Number(0, len(patients)-1)],
			BranchID:   b.id,
			ProviderID: &provider,
			StartTime:  start,
			EndTime:    start.Add(time.Duration(minutes) * time.Minute),
			Type:       randomType(),
			Notes:      gofakeit.Sentence(8),
		})
		switch {
		case err == nil:
			booked++
		case errors.Is(err, appointment.ErrSlotConflict), errors.Is(err, appointment.ErrProviderBusy):
		default:
			return booked, err
		}

		if (i+1)%100 == 0 {
			log.Info("appointments seeded", zap.Int("attempted", i+1), zap.Int("booked", booked))
		}
	}
	return booked, nil
}
