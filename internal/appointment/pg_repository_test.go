package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

var detailColumns = []string{
	"id", "hospital_id", "patient_id", "provider_id", "appointment_type_id", "room_id",
	"starts_at", "duration_minutes", "status", "notes", "created_at", "updated_at",
	"p_id", "user_id", "first_name", "last_name", "email", "phone",
	"email_notifications", "sms_notifications", "push_notifications",
	"notify_emergency_contact", "emergency_contact_notification_types", "emergency_contact_channels",
	"emergency_contact_name", "emergency_contact_relationship", "emergency_contact_phone", "emergency_contact_email",
	"p_created_at", "p_updated_at",
	"s_id", "title", "s_first_name", "s_last_name",
	"t_id", "t_name", "t_duration_minutes",
	"rm_id", "rm_name", "rm_number", "rm_floor", "rm_building",
}

func TestGetAppointmentDetail_WithRoom(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)

	apptID, patientID, providerID, typeID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	roomID := uuid.New()
	startsAt := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	now := time.Now()

	rows := pgxmock.NewRows(detailColumns).AddRow(
		apptID, uuid.New(), patientID, providerID, typeID, &roomID,
		startsAt, 45, "confirmed", strPtr("bring referral"), now, now,
		patientID, (*uuid.UUID)(nil), "Ada", "Lovelace", strPtr("ada@example.com"), strPtr("+15550100"),
		boolPtr(true), boolPtr(false), (*bool)(nil),
		true, []string{"appointment_reminder"}, []string{"sms"},
		strPtr("Byron"), strPtr("parent"), strPtr("+15550199"), (*string)(nil),
		now, now,
		providerID, strPtr("Dr."), "Grace", "Hopper",
		typeID, "Consultation", 30,
		&roomID, strPtr("Cardiology Suite"), strPtr("204"), strPtr("2"), (*string)(nil),
	)
	mock.ExpectQuery("JOIN providers s").WithArgs(apptID).WillReturnRows(rows)

	d, err := repo.GetAppointmentDetail(context.Background(), apptID)
	require.NoError(t, err)

	assert.Equal(t, StatusConfirmed, d.Status)
	assert.Equal(t, 45*time.Minute, d.Duration)
	assert.Equal(t, "Ada Lovelace", d.Patient.FullName())
	assert.Equal(t, "Dr. Grace Hopper", d.Provider.DisplayName())
	assert.Equal(t, "Consultation", d.Type.Name)
	require.NotNil(t, d.Room)
	assert.Equal(t, "204", d.Room.Number)
	assert.Equal(t, "", d.Room.Building)
	assert.Nil(t, d.Patient.PushNotifications)
	assert.Equal(t, []string{"appointment_reminder"}, d.Patient.EmergencyContactNotificationTypes)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAppointmentDetail_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	id := uuid.New()

	mock.ExpectQuery("LEFT JOIN rooms rm").WithArgs(id).WillReturnError(pgx.ErrNoRows)

	_, err = repo.GetAppointmentDetail(context.Background(), id)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAppointmentByID_ConvertsStatusAndDuration(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	id := uuid.New()
	now := time.Now()

	rows := pgxmock.NewRows(detailColumns[:12]).AddRow(
		id, uuid.New(), uuid.New(), uuid.New(), uuid.New(), (*uuid.UUID)(nil),
		now.Add(time.Hour), 20, "no_show", (*string)(nil), now, now,
	)
	mock.ExpectQuery("FROM appointments a").WithArgs(id).WillReturnRows(rows)

	a, err := repo.GetAppointmentByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusNoShow, a.Status)
	assert.True(t, a.Status.IsTerminal())
	assert.Equal(t, 20*time.Minute, a.Duration)
	assert.Nil(t, a.RoomID)
}

func TestStatusSets(t *testing.T) {
	assert.True(t, StatusScheduled.IsActive())
	assert.True(t, StatusConfirmed.IsActive())
	assert.False(t, StatusCheckedIn.IsActive())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.False(t, StatusInProgress.IsTerminal())

	now := time.Now()
	a := Appointment{Status: StatusScheduled, StartsAt: now.Add(time.Minute)}
	assert.True(t, a.IsFutureActive(now))
	a.StartsAt = now.Add(-time.Minute)
	assert.False(t, a.IsFutureActive(now))
}
