package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logger"
)

type SimConfig struct {
	Backend      string
	Duration     time.Duration
	Workers      int
	Providers    int
	Patients     int
	BookingRatio float64
	MoveRatio    float64
	CancelRatio  float64
	ReadRatio    float64
}

// DataPool holds the identities workers draw from and the appointments they created.
type DataPool struct {
	Branch    uuid.UUID
	Day       time.Time
	Providers []uuid.UUID
	Patients  []uuid.UUID

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil:
		atomic.AddInt64(&om.Success, 1)
	case isContention(err):
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func isContention(err error) bool {
	return errors.Is(err, appointment.ErrSlotConflict) ||
		errors.Is(err, appointment.ErrProviderBusy) ||
		errors.Is(err, appointment.ErrWriteConflict) ||
		errors.Is(err, appointment.ErrInvalidTransition)
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	pick := func(pct int) time.Duration {
		idx := len(latencies) * pct / 100
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		return latencies[idx]
	}
	return sum / time.Duration(len(latencies)), pick(50), pick(95), latencies[len(latencies)-1]
}

type Metrics struct {
	Booking    OperationMetrics
	Reschedule OperationMetrics
	Cancel     OperationMetrics
	Slots      OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	svc     *appointment.Service
	log     *zap.Logger
	metrics Metrics
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "simulate:", err)
		os.Exit(1)
	}
}

func run() error {
	baseCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load base config: %w", err)
	}
	log, err := logger.New(baseCfg.LogLevel, baseCfg.LogFormat)
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	log.Info("simulator starting",
		zap.String("backend", cfg.Backend),
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Int("providers", cfg.Providers),
	)

	ctx := context.Background()
	a, err := app.New(ctx, baseCfg, log, app.Options{ServiceName: "simulate", Memory: cfg.Backend == "memory"})
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	if a.Pool != nil {
		if _, err := db.Migrate(ctx, a.Pool, log); err != nil {
			return err
		}
	}

	sim := &Simulator{
		config: cfg,
		pool:   newDataPool(cfg),
		svc:    a.Service,
		log:    log,
	}
	sim.Run()
	sim.PrintReport()

	overlaps, err := sim.Verify(ctx)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if overlaps > 0 {
		return fmt.Errorf("found %d overlapping appointment pairs", overlaps)
	}
	fmt.Println("Verification: no provider has overlapping active appointments")
	return nil
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		Backend:      getEnv("SIM_BACKEND", "memory"),
		Duration:     getDuration("SIM_DURATION", 10*time.Second),
		Workers:      getInt("SIM_WORKERS", 16),
		Providers:    getInt("SIM_PROVIDERS", 4),
		Patients:     getInt("SIM_PATIENTS", 500),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		MoveRatio:    getFloat("SIM_RESCHEDULE_RATIO", 0.2),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.2),
	}

	total := cfg.BookingRatio + cfg.MoveRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.MoveRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Backend != "memory" && cfg.Backend != "postgres" {
		return fmt.Errorf("SIM_BACKEND must be memory or postgres, got %q", cfg.Backend)
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Providers <= 0 || cfg.Patients <= 0 {
		return fmt.Errorf("SIM_PROVIDERS and SIM_PATIENTS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

// newDataPool targets one branch and one weekday, so every worker competes for the same hours.
func newDataPool(cfg SimConfig) *DataPool {
	day := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, 7)
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}

	dp := &DataPool{Branch: uuid.New(), Day: day}
	for i := 0; i < cfg.Providers; i++ {
		dp.Providers = append(dp.Providers, uuid.New())
	}
	for i := 0; i < cfg.Patients; i++ {
		dp.Patients = append(dp.Patients, uuid.New())
	}
	return dp
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()
	s.log.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.MoveRatio:
			s.doReschedule(ctx, rng)
		case r < s.config.BookingRatio+s.config.MoveRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		default:
			s.doSlots(ctx, rng)
		}
	}
}

// randomWindow picks a 15 to 60 minute window on the quarter hour between 09:00 and 17:00.
func (s *Simulator) randomWindow(rng *rand.Rand) (time.Time, time.Time) {
	length := time.Duration(15*(1+rng.Intn(4))) * time.Minute
	quarters := int((8*time.Hour - length) / (15 * time.Minute))
	start := s.pool.Day.Add(9*time.Hour + time.Duration(rng.Intn(quarters+1))*15*time.Minute)
	return start, start.Add(length)
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	provider := s.pool.Providers[rng.Intn(len(s.pool.Providers))]
	start, end := s.randomWindow(rng)

	began := time.Now()
	created, err := s.svc.CreateAppointment(ctx, appointment.Appointment{
		PatientID:  s.pool.Patients[rng.Intn(len(s.pool.Patients))],
		BranchID:   s.pool.Branch,
		ProviderID: &provider,
		StartTime:  start,
		EndTime:    end,
	})
	if ctx.Err() != nil {
		return
	}
	s.metrics.Booking.Record(time.Since(began), err)
	if err == nil {
		s.pool.AddAppointment(created.ID)
	}
}

func (s *Simulator) doReschedule(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	start, end := s.randomWindow(rng)

	began := time.Now()
	_, err := s.svc.Reschedule(ctx, id, start, end)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Reschedule.Record(time.Since(began), err)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	began := time.Now()
	_, err := s.svc.Cancel(ctx, id, "simulated cancellation")
	if ctx.Err() != nil {
		return
	}
	s.metrics.Cancel.Record(time.Since(began), err)
}

func (s *Simulator) doSlots(ctx context.Context, rng *rand.Rand) {
	provider := s.pool.Providers[rng.Intn(len(s.pool.Providers))]

	began := time.Now()
	_, err := s.svc.GetAvailableSlots(ctx, s.pool.Branch, &provider, s.pool.Day, 30)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Slots.Record(time.Since(began), err)
}

// Verify counts pairs of active appointments that overlap for the same provider.
func (s *Simulator) Verify(ctx context.Context) (int, error) {
	overlaps := 0
	for _, provider := range s.pool.Providers {
		appts, err := s.svc.ListByProvider(ctx, provider, s.pool.Day, s.pool.Day.AddDate(0, 0, 1))
		if err != nil {
			return 0, err
		}
		var active []appointment.Appointment
		for _, a := range appts {
			if a.Status != appointment.StatusCancelled {
				active = append(active, a)
			}
		}
		// active is ordered by start; compare each one with the latest-ending predecessor
		for i := 1; i < len(active); i++ {
			reach := active[0]
			for _, prev := range active[1:i] {
				if prev.EndTime.After(reach.EndTime) {
					reach = prev
				}
			}
			cur := active[i]
			if availability.Overlaps(reach.StartTime, reach.EndTime, cur.StartTime, cur.EndTime) {
				s.log.Error("overlap detected",
					zap.Stringer("provider_id", provider),
					zap.Stringer("first", reach.ID),
					zap.Stringer("second", cur.ID),
				)
				overlaps++
			}
		}
	}
	return overlaps, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Backend: %s\n", s.config.Backend)
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d, providers: %d\n", s.config.Workers, s.config.Providers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Reschedule", &s.metrics.Reschedule)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Available slots", &s.metrics.Slots)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}
	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95, max := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n",
		avg.Round(time.Microsecond), p50.Round(time.Microsecond), p95.Round(time.Microsecond), max.Round(time.Microsecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
