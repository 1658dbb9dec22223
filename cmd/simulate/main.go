package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/appointment-reminders/internal/api"
	"github.com/hackgods/appointment-reminders/internal/config"
	"github.com/hackgods/appointment-reminders/internal/db"
	"github.com/hackgods/appointment-reminders/pkg/logging"
)

// SimConfig drives a run of simulated host traffic against the api-server.
type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	CreateRatio  float64
	UpdateRatio  float64
	Appointments int
}

type OperationMetrics struct {
	Total     int64
	Errors    int64
	mu        sync.Mutex
	outcomes  map[string]int64
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, outcome string, failed bool) {
	atomic.AddInt64(&om.Total, 1)
	if failed {
		atomic.AddInt64(&om.Errors, 1)
	}

	om.mu.Lock()
	defer om.mu.Unlock()
	om.latencies = append(om.latencies, latency)
	if outcome != "" {
		if om.outcomes == nil {
			om.outcomes = make(map[string]int64)
		}
		om.outcomes[outcome]++
	}
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	latencies := append([]time.Duration(nil), om.latencies...)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	at := func(pct int) time.Duration {
		return latencies[min(len(latencies)*pct/100, len(latencies)-1)]
	}
	return sum / time.Duration(len(latencies)), at(50), at(95), latencies[len(latencies)-1]
}

type Simulator struct {
	config       SimConfig
	hookSecret   string
	appointments []api.AppointmentPayload
	client       *http.Client
	logger       zerolog.Logger

	created OperationMetrics
	updated OperationMetrics
	listed  OperationMetrics
}

func main() {
	simCfg := SimConfig{}

	cmd := &cobra.Command{
		Use:          "simulate",
		Short:        "Replay appointment lifecycle hooks against a running api-server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), simCfg)
		},
	}
	cmd.Flags().StringVar(&simCfg.APIBaseURL, "api", "http://localhost:8080", "api-server base URL")
	cmd.Flags().DurationVar(&simCfg.Duration, "duration", 30*time.Second, "how long to run")
	cmd.Flags().IntVar(&simCfg.Workers, "workers", 8, "concurrent workers")
	cmd.Flags().Float64Var(&simCfg.CreateRatio, "create-ratio", 0.3, "share of created hooks")
	cmd.Flags().Float64Var(&simCfg.UpdateRatio, "update-ratio", 0.4, "share of updated hooks, the rest lists reminders")
	cmd.Flags().IntVar(&simCfg.Appointments, "appointments", 500, "appointments loaded from postgres")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, simCfg SimConfig) error {
	if simCfg.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if simCfg.CreateRatio < 0 || simCfg.UpdateRatio < 0 || simCfg.CreateRatio+simCfg.UpdateRatio > 1 {
		return fmt.Errorf("create-ratio and update-ratio must be non-negative and sum to at most 1")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.Env).With().Str("service", "simulate").Logger()

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(connCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 4, AppName: "simulate"})
	cancel()
	if err != nil {
		return err
	}
	appointments, err := loadAppointments(ctx, pool, simCfg.Appointments)
	pool.Close()
	if err != nil {
		return fmt.Errorf("load appointments: %w", err)
	}
	if len(appointments) == 0 {
		return fmt.Errorf("no appointments found, run cmd/seed first")
	}
	logger.Info().Int("appointments", len(appointments)).Msg("loaded appointments")

	s := &Simulator{
		config:       simCfg,
		hookSecret:   cfg.HookSecret,
		appointments: appointments,
		client:       &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
	}
	s.Run(ctx)
	s.PrintReport()
	return nil
}

func loadAppointments(ctx context.Context, pool *pgxpool.Pool, limit int) ([]api.AppointmentPayload, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, hospital_id, patient_id, provider_id, appointment_type_id, room_id,
		       starts_at, duration_minutes, status, notes, created_at, updated_at
		FROM appointments
		WHERE starts_at > NOW()
		ORDER BY starts_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.AppointmentPayload
	for rows.Next() {
		var p api.AppointmentPayload
		if err := rows.Scan(&p.ID, &p.HospitalID, &p.PatientID, &p.ProviderID, &p.AppointmentTypeID, &p.RoomID,
			&p.StartsAt, &p.DurationMinutes, &p.Status, &p.Notes, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Simulator) Run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()

	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		appt := s.appointments[rng.Intn(len(s.appointments))]

		switch r := rng.Float64(); {
		case r < s.config.CreateRatio:
			s.postHook(ctx, &s.created, "/hooks/appointments/created", api.AppointmentCreatedRequest{Appointment: appt})
		case r < s.config.CreateRatio+s.config.UpdateRatio:
			// Same state, newer version: the engine should treat it as a no-op.
			current := appt
			current.UpdatedAt = time.Now().UTC()
			s.postHook(ctx, &s.updated, "/hooks/appointments/updated", api.AppointmentUpdatedRequest{Previous: appt, Current: current})
		default:
			s.listReminders(ctx, appt)
		}
	}
}

func (s *Simulator) postHook(ctx context.Context, om *OperationMetrics, path string, body any) {
	buf, err := json.Marshal(body)
	if err != nil {
		om.Record(0, "", true)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, bytes.NewReader(buf))
	if err != nil {
		om.Record(0, "", true)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if s.hookSecret != "" {
		req.Header.Set("X-Hook-Secret", s.hookSecret)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			om.Record(latency, "", true)
		}
		return
	}
	defer resp.Body.Close()

	var hr api.HookResponse
	if resp.StatusCode != http.StatusAccepted || json.NewDecoder(resp.Body).Decode(&hr) != nil {
		om.Record(latency, fmt.Sprintf("http_%d", resp.StatusCode), true)
		return
	}
	om.Record(latency, hr.Outcome, false)
}

func (s *Simulator) listReminders(ctx context.Context, appt api.AppointmentPayload) {
	url := fmt.Sprintf("%s/appointments/%s/reminders", s.config.APIBaseURL, appt.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		s.listed.Record(0, "", true)
		return
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			s.listed.Record(latency, "", true)
		}
		return
	}
	defer resp.Body.Close()

	var rr api.RemindersResponse
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&rr) != nil {
		s.listed.Record(latency, fmt.Sprintf("http_%d", resp.StatusCode), true)
		return
	}
	s.listed.Record(latency, fmt.Sprintf("%d_pending", len(rr.Reminders)), false)
}

func (s *Simulator) PrintReport() {
	fmt.Println()
	fmt.Println("SIMULATION REPORT")
	fmt.Printf("Duration: %s  Workers: %d  Appointments: %d\n\n", s.config.Duration, s.config.Workers, len(s.appointments))

	printOperationReport("Created hooks", &s.created)
	printOperationReport("Updated hooks", &s.updated)
	printOperationReport("Reminder lists", &s.listed)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}
	errs := atomic.LoadInt64(&om.Errors)
	avg, p50, p95, max := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d  Errors: %d (%.1f%%)\n", total, errs, float64(errs)/float64(total)*100)
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond), p95.Round(time.Millisecond), max.Round(time.Millisecond))

	om.mu.Lock()
	keys := make([]string, 0, len(om.outcomes))
	for k := range om.outcomes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s: %d\n", k, om.outcomes[k])
	}
	om.mu.Unlock()
	fmt.Println()
}
