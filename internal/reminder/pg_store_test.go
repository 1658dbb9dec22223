package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reminderRowColumns = []string{
	"appointment_id", "kind", "channels", "send_at", "snapshot", "patient_id", "provider_id", "created_at",
}

func TestPgStore_ReplaceRunsInOneTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPgStore(mock)
	appt := uuid.New()
	entries := []ScheduledReminder{
		entry(appt, KindReminder24h, testNow.Add(time.Hour)),
		entry(appt, KindReminder2h, testNow.Add(2*time.Hour)),
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM scheduled_reminders").WithArgs(appt).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	for _, e := range entries {
		mock.ExpectExec("INSERT INTO scheduled_reminders").
			WithArgs(appt, e.Kind.String(), []string{"email"}, e.SendAt.UTC(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, store.Replace(context.Background(), appt, entries))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStore_ReplaceRollsBackOnInsertError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPgStore(mock)
	appt := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM scheduled_reminders").WithArgs(appt).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("INSERT INTO scheduled_reminders").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = store.Replace(context.Background(), appt, []ScheduledReminder{entry(appt, KindReminder30m, testNow)})
	assert.ErrorContains(t, err, "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStore_ListDue(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPgStore(mock)
	appt := uuid.New()
	snap, err := json.Marshal(Snapshot{AppointmentID: appt, PatientName: "Ada Lovelace"})
	require.NoError(t, err)

	rows := pgxmock.NewRows(reminderRowColumns).AddRow(
		appt, "reminder_2h", []string{"sms", "push"}, testNow.Add(-time.Minute),
		snap, uuid.New(), uuid.New(), testNow.Add(-time.Hour),
	)
	mock.ExpectQuery("WHERE send_at <= \\$1").WithArgs(testNow).WillReturnRows(rows)

	due, err := store.ListDue(context.Background(), testNow)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, KindReminder2h, due[0].Kind)
	assert.Equal(t, []Channel{ChannelSMS, ChannelPush}, due[0].Channels)
	assert.Equal(t, "Ada Lovelace", due[0].Snapshot.PatientName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStore_ListRejectsUnknownKind(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPgStore(mock)
	appt := uuid.New()

	rows := pgxmock.NewRows(reminderRowColumns).AddRow(
		appt, "reminder_1w", []string{"email"}, testNow, []byte(nil), uuid.New(), uuid.New(), testNow,
	)
	mock.ExpectQuery("WHERE appointment_id = \\$1").WithArgs(appt).WillReturnRows(rows)

	_, err = store.ListByAppointment(context.Background(), appt)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestPgStore_DeleteAndDeleteByAppointment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPgStore(mock)
	appt := uuid.New()
	key := Key{AppointmentID: appt, Kind: KindFollowUp, SendAt: testNow}

	mock.ExpectExec("AND kind = \\$2").WithArgs(appt, "follow_up", testNow).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("DELETE FROM scheduled_reminders").WithArgs(appt).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	ok, err := store.Delete(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := store.DeleteByAppointment(context.Background(), appt)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
