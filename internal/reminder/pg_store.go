package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx pool for testing.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PgStore keeps scheduled reminders in the scheduled_reminders table,
// keyed by (appointment_id, kind, send_at).
type PgStore struct {
	db DB
}

func NewPgStore(db DB) *PgStore {
	return &PgStore{db: db}
}

const reminderColumns = `appointment_id, kind, channels, send_at, snapshot, patient_id, provider_id, created_at`

func (s *PgStore) Replace(ctx context.Context, appointmentID uuid.UUID, entries []ScheduledReminder) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("reminder: begin replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM scheduled_reminders WHERE appointment_id = $1`, appointmentID); err != nil {
		return fmt.Errorf("reminder: purge appointment reminders: %w", err)
	}

	now := time.Now().UTC()
	for i := range entries {
		e := &entries[i]
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		snapshot, err := json.Marshal(e.Snapshot)
		if err != nil {
			return fmt.Errorf("reminder: marshal snapshot: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO scheduled_reminders (`+reminderColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (appointment_id, kind, send_at) DO NOTHING`,
			e.AppointmentID, e.Kind.String(), channelStrings(e.Channels), e.SendAt.UTC(),
			snapshot, e.PatientID, e.ProviderID, e.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("reminder: insert %s: %w", e.Kind, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("reminder: commit replace: %w", err)
	}
	return nil
}

func (s *PgStore) DeleteByAppointment(ctx context.Context, appointmentID uuid.UUID) (int, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM scheduled_reminders WHERE appointment_id = $1`, appointmentID)
	if err != nil {
		return 0, fmt.Errorf("reminder: delete by appointment: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PgStore) ListDue(ctx context.Context, asOf time.Time) ([]ScheduledReminder, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+reminderColumns+`
		FROM scheduled_reminders
		WHERE send_at <= $1
		ORDER BY send_at ASC`, asOf.UTC())
	if err != nil {
		return nil, fmt.Errorf("reminder: list due: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

func (s *PgStore) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]ScheduledReminder, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+reminderColumns+`
		FROM scheduled_reminders
		WHERE appointment_id = $1
		ORDER BY send_at ASC`, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("reminder: list by appointment: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

func (s *PgStore) Delete(ctx context.Context, key Key) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM scheduled_reminders
		WHERE appointment_id = $1 AND kind = $2 AND send_at = $3`,
		key.AppointmentID, key.Kind.String(), key.SendAt.UTC())
	if err != nil {
		return false, fmt.Errorf("reminder: delete: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func channelStrings(cs []Channel) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}

func scanReminders(rows pgx.Rows) ([]ScheduledReminder, error) {
	var result []ScheduledReminder
	for rows.Next() {
		var r ScheduledReminder
		var kind string
		var channels []string
		var snapshot []byte
		err := rows.Scan(
			&r.AppointmentID, &kind, &channels, &r.SendAt,
			&snapshot, &r.PatientID, &r.ProviderID, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("reminder: scan reminder: %w", err)
		}
		if r.Kind, err = ParseKind(kind); err != nil {
			return nil, fmt.Errorf("reminder: scan reminder: %w", err)
		}
		for _, c := range channels {
			r.Channels = append(r.Channels, Channel(c))
		}
		if len(snapshot) > 0 {
			if err := json.Unmarshal(snapshot, &r.Snapshot); err != nil {
				return nil, fmt.Errorf("reminder: decode snapshot: %w", err)
			}
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
