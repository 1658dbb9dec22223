package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/appointment-reminders/internal/appointment"
	"github.com/hackgods/appointment-reminders/internal/config"
	"github.com/hackgods/appointment-reminders/internal/db"
	"github.com/hackgods/appointment-reminders/pkg/logging"
)

type seedOptions struct {
	providers    int
	patients     int
	appointments int
	withinDays   int
}

func main() {
	opts := seedOptions{}

	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Fill the host tables with fake providers, patients and appointments",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.providers, "providers", 20, "number of providers")
	cmd.Flags().IntVar(&opts.patients, "patients", 500, "number of patients")
	cmd.Flags().IntVar(&opts.appointments, "appointments", 1000, "number of appointments")
	cmd.Flags().IntVar(&opts.withinDays, "within-days", 14, "appointments start within this many days")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts seedOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.Env).With().Str("service", "seed").Logger()
	logger.Info().Msg("seed starting")

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(connCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 4, AppName: "seed"})
	cancel()
	if err != nil {
		return err
	}
	defer pool.Close()

	if _, err := db.NewMigrator(pool, db.Migrations()).Up(ctx); err != nil {
		return err
	}

	s := &seeder{pool: pool, logger: logger, faker: gofakeit.New(uint64(time.Now().UnixNano()))}

	providers, err := s.seedProviders(ctx, opts.providers)
	if err != nil {
		return fmt.Errorf("seed providers: %w", err)
	}
	types, rooms, err := s.seedCatalog(ctx)
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	patients, err := s.seedPatients(ctx, opts.patients)
	if err != nil {
		return fmt.Errorf("seed patients: %w", err)
	}
	if err := s.seedAppointments(ctx, opts, providers, types, rooms, patients); err != nil {
		return fmt.Errorf("seed appointments: %w", err)
	}

	logger.Info().Msg("seed complete")
	return nil
}

type seeder struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
	faker  *gofakeit.Faker
}

const batchSize = 500

// inBatches runs fn for indices [0, count) with one transaction per batch.
func (s *seeder) inBatches(ctx context.Context, what string, count int, fn func(tx pgx.Tx, i int) error) error {
	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return err
		}
		for i := offset; i < end; i++ {
			if err := fn(tx, i); err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		s.logger.Info().Str("table", what).Int("done", end).Int("total", count).Msg("seeded batch")
	}
	return nil
}

func (s *seeder) seedProviders(ctx context.Context, count int) ([]uuid.UUID, error) {
	titles := []string{"Dr.", "Dr.", "Dr.", "Nurse", ""}
	ids := make([]uuid.UUID, count)

	err := s.inBatches(ctx, "providers", count, func(tx pgx.Tx, i int) error {
		ids[i] = uuid.New()
		var title *string
		if t := titles[s.faker.Number(0, len(titles)-1)]; t != "" {
			title = &t
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO providers (id, title, first_name, last_name)
			VALUES ($1, $2, $3, $4)
		`, ids[i], title, s.faker.FirstName(), s.faker.LastName())
		return err
	})
	return ids, err
}

func (s *seeder) seedCatalog(ctx context.Context) (types, rooms []uuid.UUID, err error) {
	catalog := []struct {
		name    string
		minutes int
	}{
		{"Consultation", 30},
		{"Follow-up", 15},
		{"Annual Physical", 45},
		{"Vaccination", 10},
		{"Cardiology Review", 40},
		{"Dermatology Check", 20},
	}
	buildings := []string{"North Wing", "South Wing", "Outpatient Center"}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	for _, c := range catalog {
		id := uuid.New()
		if _, err := tx.Exec(ctx, `
			INSERT INTO appointment_types (id, name, duration_minutes) VALUES ($1, $2, $3)
		`, id, c.name, c.minutes); err != nil {
			return nil, nil, err
		}
		types = append(types, id)
	}

	for i := 0; i < 12; i++ {
		id := uuid.New()
		floor := fmt.Sprint(s.faker.Number(1, 5))
		number := fmt.Sprintf("%s%02d", floor, s.faker.Number(1, 40))
		if _, err := tx.Exec(ctx, `
			INSERT INTO rooms (id, name, number, floor, building) VALUES ($1, $2, $3, $4, $5)
		`, id, "Exam Room "+number, number, floor, buildings[i%len(buildings)]); err != nil {
			return nil, nil, err
		}
		rooms = append(rooms, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	s.logger.Info().Int("types", len(types)).Int("rooms", len(rooms)).Msg("catalog seeded")
	return types, rooms, nil
}

func (s *seeder) seedPatients(ctx context.Context, count int) ([]uuid.UUID, error) {
	relationships := []string{"spouse", "parent", "sibling", "child", "friend"}
	channels := []string{"email", "sms"}
	ids := make([]uuid.UUID, count)

	err := s.inBatches(ctx, "patients", count, func(tx pgx.Tx, i int) error {
		ids[i] = uuid.New()

		var userID *uuid.UUID
		if s.faker.Bool() {
			u := uuid.New()
			userID = &u
		}

		notifyEC := s.faker.Number(0, 4) == 0
		var ecTypes, ecChannels []string
		var ecName, ecRel, ecPhone, ecEmail *string
		if notifyEC {
			ecTypes = []string{"appointment_reminder", "appointment_cancellation"}
			ecChannels = []string{channels[s.faker.Number(0, 1)]}
			name, rel := s.faker.Name(), relationships[s.faker.Number(0, len(relationships)-1)]
			phone, email := s.faker.Phone(), s.faker.Email()
			ecName, ecRel, ecPhone, ecEmail = &name, &rel, &phone, &email
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO patients (
				id, user_id, first_name, last_name, email, phone,
				email_notifications, sms_notifications, push_notifications,
				notify_emergency_contact, emergency_contact_notification_types, emergency_contact_channels,
				emergency_contact_name, emergency_contact_relationship, emergency_contact_phone, emergency_contact_email
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		`, ids[i], userID, s.faker.FirstName(), s.faker.LastName(), s.faker.Email(), s.faker.Phone(),
			s.optionalBool(), s.optionalBool(), s.optionalBool(),
			notifyEC, nonNil(ecTypes), nonNil(ecChannels),
			ecName, ecRel, ecPhone, ecEmail)
		return err
	})
	return ids, err
}

func (s *seeder) seedAppointments(ctx context.Context, opts seedOptions, providers, types, rooms, patients []uuid.UUID) error {
	if len(providers) == 0 || len(patients) == 0 {
		return nil
	}
	statuses := []appointment.Status{
		appointment.StatusScheduled, appointment.StatusScheduled, appointment.StatusConfirmed,
		appointment.StatusConfirmed, appointment.StatusCancelled, appointment.StatusCompleted,
	}
	hospitalID := uuid.New()
	horizon := time.Duration(max(opts.withinDays, 1)) * 24 * time.Hour
	now := time.Now().UTC()

	return s.inBatches(ctx, "appointments", opts.appointments, func(tx pgx.Tx, i int) error {
		offset := time.Duration(s.faker.Number(30, int(horizon/time.Minute))) * time.Minute
		start := now.Add(offset).Truncate(15 * time.Minute)

		var roomID *uuid.UUID
		if s.faker.Number(0, 3) > 0 {
			r := rooms[s.faker.Number(0, len(rooms)-1)]
			roomID = &r
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO appointments (
				id, hospital_id, patient_id, provider_id, appointment_type_id, room_id,
				starts_at, duration_minutes, status
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, uuid.New(), hospitalID,
			patients[s.faker.Number(0, len(patients)-1)],
			providers[s.faker.Number(0, len(providers)-1)],
			types[s.faker.Number(0, len(types)-1)],
			roomID, start, []int{15, 30, 45, 60}[s.faker.Number(0, 3)],
			string(statuses[s.faker.Number(0, len(statuses)-1)]))
		return err
	})
}

// optionalBool leaves roughly a third of preferences unset.
func (s *seeder) optionalBool() *bool {
	if s.faker.Number(0, 2) == 0 {
		return nil
	}
	b := s.faker.Number(0, 4) > 0
	return &b
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
