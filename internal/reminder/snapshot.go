package reminder

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/appointment-reminders/internal/appointment"
)

const (
	DefaultVenue = "Main Hospital"

	dateLayout = "Monday, January 2, 2006"
	timeLayout = "3:04 PM"
)

// Snapshot is the flat, channel-agnostic view of an appointment that every
// message template renders from.
type Snapshot struct {
	AppointmentID   uuid.UUID  `json:"appointment_id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	PatientName     string     `json:"patient_name"`
	PatientEmail    string     `json:"patient_email"`
	PatientPhone    string     `json:"patient_phone"`
	PatientUserID   *uuid.UUID `json:"patient_user_id,omitempty"`
	ProviderID      uuid.UUID  `json:"provider_id"`
	ProviderName    string     `json:"provider_name"`
	StartsAt        time.Time  `json:"starts_at"`
	Date            string     `json:"date"`
	Time            string     `json:"time"`
	DateTime        string     `json:"date_time"`
	Location        string     `json:"location"`
	AppointmentType string     `json:"appointment_type"`
	DurationMinutes int        `json:"duration_minutes"`
	Notes           string     `json:"notes"`
	Status          string     `json:"status"`

	// PreviousDateTime is only set on rescheduling notices.
	PreviousDateTime string `json:"previous_date_time,omitempty"`
}

// Projector turns a loaded appointment into a Snapshot.
type Projector struct {
	Location     *time.Location
	DefaultVenue string
}

func NewProjector(loc *time.Location, defaultVenue string) Projector {
	if loc == nil {
		loc = time.UTC
	}
	if defaultVenue == "" {
		defaultVenue = DefaultVenue
	}
	return Projector{Location: loc, DefaultVenue: defaultVenue}
}

// Project never fails: missing relations and optional text become empty strings.
func (p Projector) Project(d *appointment.AppointmentDetail) Snapshot {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}

	local := d.StartsAt.In(loc)
	snap := Snapshot{
		AppointmentID:   d.ID,
		PatientID:       d.PatientID,
		ProviderID:      d.ProviderID,
		StartsAt:        d.StartsAt,
		Date:            local.Format(dateLayout),
		Time:            local.Format(timeLayout),
		Location:        p.location(d.Room),
		DurationMinutes: int(d.Duration / time.Minute),
		Status:          string(d.Status),
	}
	snap.DateTime = fmt.Sprintf("%s at %s", snap.Date, snap.Time)

	if d.Notes != nil {
		snap.Notes = *d.Notes
	}
	if d.Patient != nil {
		snap.PatientName = d.Patient.FullName()
		snap.PatientEmail = strings.TrimSpace(deref(d.Patient.Email))
		snap.PatientPhone = strings.TrimSpace(deref(d.Patient.Phone))
		snap.PatientUserID = d.Patient.UserID
	}
	if d.Provider != nil {
		snap.ProviderName = d.Provider.DisplayName()
	}
	if d.Type != nil {
		snap.AppointmentType = d.Type.Name
		if snap.DurationMinutes == 0 {
			snap.DurationMinutes = d.Type.DurationMinutes
		}
	}

	return snap
}

func (p Projector) location(room *appointment.Room) string {
	venue := p.DefaultVenue
	if venue == "" {
		venue = DefaultVenue
	}
	if room == nil {
		return venue
	}

	var parts []string
	if room.Name != "" {
		parts = append(parts, room.Name)
	}
	if room.Number != "" {
		parts = append(parts, "Room "+room.Number)
	}
	if room.Floor != "" {
		parts = append(parts, "Floor "+room.Floor)
	}
	if room.Building != "" {
		parts = append(parts, room.Building)
	}
	if len(parts) == 0 {
		return venue
	}
	return strings.Join(parts, ", ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
