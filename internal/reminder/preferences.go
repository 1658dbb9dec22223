package reminder

import (
	"slices"
	"strings"

	"github.com/hackgods/appointment-reminders/internal/appointment"
)

var defaultEmergencyChannels = []Channel{ChannelEmail, ChannelSMS}

type EmergencyContact struct {
	Name         string
	Relationship string
	Phone        string
	Email        string
	Channels     []Channel
}

// Preferences is a patient's resolved notification settings.
type Preferences struct {
	// Channels holds only the channels the patient set explicitly; anything
	// missing is treated as enabled.
	Channels map[Channel]bool

	NotifyEmergencyContact bool
	EmergencyContactTypes  []string
	EmergencyContact       EmergencyContact
}

// ChannelEnabled is permissive: a channel is on unless explicitly disabled.
func (p Preferences) ChannelEnabled(c Channel) bool {
	enabled, ok := p.Channels[c]
	return !ok || enabled
}

// ResolvePreferences reads a patient's notification fields. A nil patient
// gets every channel enabled and no emergency-contact copies.
func ResolvePreferences(p *appointment.Patient) Preferences {
	prefs := Preferences{Channels: map[Channel]bool{}}
	if p == nil {
		return prefs
	}

	if p.EmailNotifications != nil {
		prefs.Channels[ChannelEmail] = *p.EmailNotifications
	}
	if p.SMSNotifications != nil {
		prefs.Channels[ChannelSMS] = *p.SMSNotifications
	}
	if p.PushNotifications != nil {
		prefs.Channels[ChannelPush] = *p.PushNotifications
	}

	prefs.NotifyEmergencyContact = p.NotifyEmergencyContact
	prefs.EmergencyContactTypes = append([]string(nil), p.EmergencyContactNotificationTypes...)
	prefs.EmergencyContact = EmergencyContact{
		Name:         strings.TrimSpace(deref(p.EmergencyContactName)),
		Relationship: strings.TrimSpace(deref(p.EmergencyContactRelationship)),
		Phone:        strings.TrimSpace(deref(p.EmergencyContactPhone)),
		Email:        strings.TrimSpace(deref(p.EmergencyContactEmail)),
	}
	for _, raw := range p.EmergencyContactChannels {
		c := Channel(strings.ToLower(strings.TrimSpace(raw)))
		if c != "" && !slices.Contains(prefs.EmergencyContact.Channels, c) {
			prefs.EmergencyContact.Channels = append(prefs.EmergencyContact.Channels, c)
		}
	}
	if len(prefs.EmergencyContact.Channels) == 0 {
		prefs.EmergencyContact.Channels = append([]Channel(nil), defaultEmergencyChannels...)
	}

	return prefs
}

// FilterChannels keeps the requested channels the patient has not turned
// off, in request order.
func FilterChannels(requested []Channel, prefs Preferences) []Channel {
	out := make([]Channel, 0, len(requested))
	for _, c := range requested {
		if prefs.ChannelEnabled(c) && !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

// ShouldNotifyEmergencyContact requires the opt-in, the kind's tag in the
// allow-list and a contact name.
func ShouldNotifyEmergencyContact(k Kind, prefs Preferences) bool {
	if !prefs.NotifyEmergencyContact {
		return false
	}
	if prefs.EmergencyContact.Name == "" {
		return false
	}
	return slices.Contains(prefs.EmergencyContactTypes, k.Tag())
}
