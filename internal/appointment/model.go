package appointment

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusCheckedIn  Status = "checked_in"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCheckedIn, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// IsActive reports whether reminders may exist for an appointment in this status.
func (s Status) IsActive() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

// IsTerminal reports whether the appointment is over for reminder purposes.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

type Patient struct {
	ID        uuid.UUID
	UserID    *uuid.UUID // portal account, target for push
	FirstName string
	LastName  string
	Email     *string
	Phone     *string

	// Channel opt-ins. nil means the patient never set a preference.
	EmailNotifications *bool
	SMSNotifications   *bool
	PushNotifications  *bool

	NotifyEmergencyContact            bool
	EmergencyContactNotificationTypes []string
	EmergencyContactChannels          []string
	EmergencyContactName              *string
	EmergencyContactRelationship      *string
	EmergencyContactPhone             *string
	EmergencyContactEmail             *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

type Provider struct {
	ID        uuid.UUID
	Title     *string
	FirstName string
	LastName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p Provider) DisplayName() string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if p.Title != nil && *p.Title != "" {
		return *p.Title + " " + name
	}
	return name
}

type AppointmentType struct {
	ID              uuid.UUID
	Name            string
	DurationMinutes int
}

type Room struct {
	ID       uuid.UUID
	Name     string
	Number   string
	Floor    string
	Building string
}

type Appointment struct {
	ID                uuid.UUID
	HospitalID        uuid.UUID
	PatientID         uuid.UUID
	ProviderID        uuid.UUID
	AppointmentTypeID uuid.UUID
	RoomID            *uuid.UUID
	StartsAt          time.Time
	Duration          time.Duration
	Status            Status
	Notes             *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsFutureActive is true while the appointment is scheduled or confirmed and
// has not started yet.
func (a Appointment) IsFutureActive(now time.Time) bool {
	return a.Status.IsActive() && a.StartsAt.After(now)
}

// AppointmentDetail is an appointment with every relation the reminder
// engine reads.
type AppointmentDetail struct {
	Appointment
	Patient  *Patient
	Provider *Provider
	Type     *AppointmentType
	Room     *Room
}
