package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxHookBody = 1 << 20

func appointmentCreatedHandler(trigger LifecycleHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AppointmentCreatedRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxHookBody)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		current, err := req.Appointment.toModel()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment", err.Error())
			return
		}

		// The host may hang up once it has its 202; scheduling still finishes.
		outcome := trigger.OnAppointmentCreated(context.WithoutCancel(r.Context()), current)

		writeJSON(w, http.StatusAccepted, HookResponse{AppointmentID: current.ID, Outcome: string(outcome)})
	}
}

func appointmentUpdatedHandler(trigger LifecycleHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AppointmentUpdatedRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxHookBody)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		previous, err := req.Previous.toModel()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_previous", err.Error())
			return
		}
		current, err := req.Current.toModel()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_current", err.Error())
			return
		}
		if previous.ID != current.ID {
			writeError(w, http.StatusBadRequest, "appointment_mismatch", "previous and current must describe the same appointment")
			return
		}

		outcome := trigger.OnAppointmentUpdated(context.WithoutCancel(r.Context()), previous, current)

		writeJSON(w, http.StatusAccepted, HookResponse{AppointmentID: current.ID, Outcome: string(outcome)})
	}
}

func listRemindersHandler(reminders ReminderLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		entries, err := reminders.ListAppointmentReminders(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := RemindersResponse{AppointmentID: id, Reminders: make([]ReminderResponse, 0, len(entries))}
		for _, e := range entries {
			channels := make([]string, 0, len(e.Channels))
			for _, c := range e.Channels {
				channels = append(channels, string(c))
			}
			resp.Reminders = append(resp.Reminders, ReminderResponse{
				Kind:     e.Kind.String(),
				Channels: channels,
				SendAt:   e.SendAt,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
