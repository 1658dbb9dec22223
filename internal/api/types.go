package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/appointment-reminders/internal/appointment"
)

// AppointmentPayload is the appointment state the host posts to the hooks.
type AppointmentPayload struct {
	ID                uuid.UUID  `json:"id"`
	HospitalID        uuid.UUID  `json:"hospital_id"`
	PatientID         uuid.UUID  `json:"patient_id"`
	ProviderID        uuid.UUID  `json:"provider_id"`
	AppointmentTypeID uuid.UUID  `json:"appointment_type_id"`
	RoomID            *uuid.UUID `json:"room_id,omitempty"`
	StartsAt          time.Time  `json:"starts_at"`
	DurationMinutes   int        `json:"duration_minutes"`
	Status            string     `json:"status"`
	Notes             *string    `json:"notes,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (p AppointmentPayload) toModel() (appointment.Appointment, error) {
	if p.ID == uuid.Nil {
		return appointment.Appointment{}, errors.New("id is required")
	}
	if p.StartsAt.IsZero() {
		return appointment.Appointment{}, errors.New("starts_at is required")
	}
	status := appointment.Status(p.Status)
	if !status.Valid() {
		return appointment.Appointment{}, fmt.Errorf("unknown status %q", p.Status)
	}
	return appointment.Appointment{
		ID:                p.ID,
		HospitalID:        p.HospitalID,
		PatientID:         p.PatientID,
		ProviderID:        p.ProviderID,
		AppointmentTypeID: p.AppointmentTypeID,
		RoomID:            p.RoomID,
		StartsAt:          p.StartsAt,
		Duration:          time.Duration(p.DurationMinutes) * time.Minute,
		Status:            status,
		Notes:             p.Notes,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}, nil
}

type AppointmentCreatedRequest struct {
	Appointment AppointmentPayload `json:"appointment"`
}

type AppointmentUpdatedRequest struct {
	Previous AppointmentPayload `json:"previous"`
	Current  AppointmentPayload `json:"current"`
}

type HookResponse struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Outcome       string    `json:"outcome"`
}

type ReminderResponse struct {
	Kind     string    `json:"kind"`
	Channels []string  `json:"channels"`
	SendAt   time.Time `json:"send_at"`
}

type RemindersResponse struct {
	AppointmentID uuid.UUID          `json:"appointment_id"`
	Reminders     []ReminderResponse `json:"reminders"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
