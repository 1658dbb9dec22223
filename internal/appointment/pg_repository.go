package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Querier is the slice of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Repository = (*PgRepository)(nil)

type PgRepository struct {
	pool Querier
}

func NewPgRepository(pool Querier) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `a.id, a.hospital_id, a.patient_id, a.provider_id, a.appointment_type_id, a.room_id,
		       a.starts_at, a.duration_minutes, a.status, a.notes, a.created_at, a.updated_at`

const patientColumns = `p.id, p.user_id, p.first_name, p.last_name, p.email, p.phone,
		       p.email_notifications, p.sms_notifications, p.push_notifications,
		       p.notify_emergency_contact, p.emergency_contact_notification_types, p.emergency_contact_channels,
		       p.emergency_contact_name, p.emergency_contact_relationship,
		       p.emergency_contact_phone, p.emergency_contact_email,
		       p.created_at, p.updated_at`

// Helpers

func appointmentDest(a *Appointment, status *string, minutes *int) []any {
	return []any{
		&a.ID,
		&a.HospitalID,
		&a.PatientID,
		&a.ProviderID,
		&a.AppointmentTypeID,
		&a.RoomID,
		&a.StartsAt,
		minutes,
		status,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	}
}

func patientDest(p *Patient) []any {
	return []any{
		&p.ID,
		&p.UserID,
		&p.FirstName,
		&p.LastName,
		&p.Email,
		&p.Phone,
		&p.EmailNotifications,
		&p.SMSNotifications,
		&p.PushNotifications,
		&p.NotifyEmergencyContact,
		&p.EmergencyContactNotificationTypes,
		&p.EmergencyContactChannels,
		&p.EmergencyContactName,
		&p.EmergencyContactRelationship,
		&p.EmergencyContactPhone,
		&p.EmergencyContactEmail,
		&p.CreatedAt,
		&p.UpdatedAt,
	}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	var minutes int

	if err := row.Scan(appointmentDest(&a, &status, &minutes)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Status = Status(status)
	a.Duration = time.Duration(minutes) * time.Minute
	return &a, nil
}

func scanDetail(row pgx.Row) (*AppointmentDetail, error) {
	var (
		d        AppointmentDetail
		status   string
		minutes  int
		patient  Patient
		provider Provider
		apptType AppointmentType

		roomID     *uuid.UUID
		roomName   *string
		roomNumber *string
		floor      *string
		building   *string
	)

	dest := appointmentDest(&d.Appointment, &status, &minutes)
	dest = append(dest, patientDest(&patient)...)
	dest = append(dest,
		&provider.ID, &provider.Title, &provider.FirstName, &provider.LastName,
		&apptType.ID, &apptType.Name, &apptType.DurationMinutes,
		&roomID, &roomName, &roomNumber, &floor, &building,
	)

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	d.Status = Status(status)
	d.Duration = time.Duration(minutes) * time.Minute
	d.Patient = &patient
	d.Provider = &provider
	d.Type = &apptType
	if roomID != nil {
		d.Room = &Room{
			ID:       *roomID,
			Name:     deref(roomName),
			Number:   deref(roomNumber),
			Floor:    deref(floor),
			Building: deref(building),
		}
	}

	return &d, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Interface methods

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		WHERE a.id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`,
		       `+patientColumns+`,
		       s.id, s.title, s.first_name, s.last_name,
		       t.id, t.name, t.duration_minutes,
		       rm.id, rm.name, rm.number, rm.floor, rm.building
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN providers s ON s.id = a.provider_id
		JOIN appointment_types t ON t.id = a.appointment_type_id
		LEFT JOIN rooms rm ON rm.id = a.room_id
		WHERE a.id = $1
	`, id)
	return scanDetail(row)
}
