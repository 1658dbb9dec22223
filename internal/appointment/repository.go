package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrAppointmentNotFound = errors.New("appointment not found")

// Repository is read-only: appointments are owned and mutated by the host
// application, the reminder engine only looks at them.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// GetAppointmentDetail loads the appointment with patient, provider,
	// appointment type and the optional room.
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
}
