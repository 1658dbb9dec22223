package reminder

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var ErrUnknownKind = errors.New("unknown reminder kind")

// Kind identifies one notification an appointment can produce.
type Kind uint8

const (
	KindConfirmation Kind = iota
	KindReminder24h
	KindReminder2h
	KindReminder30m
	KindFollowUp
	KindCancellation
	KindRescheduling

	kindCount
)

var kindNames = [kindCount]string{
	KindConfirmation: "confirmation",
	KindReminder24h:  "reminder_24h",
	KindReminder2h:   "reminder_2h",
	KindReminder30m:  "reminder_30m",
	KindFollowUp:     "follow_up",
	KindCancellation: "cancellation",
	KindRescheduling: "rescheduling",
}

// Tags used in a patient's emergency-contact allow-list.
const (
	TagConfirmation = "appointment_confirmation"
	TagReminder     = "appointment_reminder"
	TagFollowUp     = "appointment_follow_up"
	TagCancellation = "appointment_cancellation"
	TagRescheduling = "appointment_rescheduling"
)

var kindTags = [kindCount]string{
	KindConfirmation: TagConfirmation,
	KindReminder24h:  TagReminder,
	KindReminder2h:   TagReminder,
	KindReminder30m:  TagReminder,
	KindFollowUp:     TagFollowUp,
	KindCancellation: TagCancellation,
	KindRescheduling: TagRescheduling,
}

func (k Kind) Valid() bool { return k < kindCount }

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// Tag is the notification-type tag the kind is filed under.
func (k Kind) Tag() string {
	if !k.Valid() {
		return ""
	}
	return kindTags[k]
}

func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(k))
	}
	return []byte(kindNames[k]), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelPush     Channel = "push"
	ChannelWhatsApp Channel = "whatsapp" // reserved, no transport yet
)

// Policy is the static timing and routing rule for one kind.
//
// Offset is relative to the appointment start: positive sends before it,
// negative after it, zero at the moment of scheduling.
type Policy struct {
	Kind     Kind
	Channels []Channel
	Offset   time.Duration
	Active   bool
	Priority int // lower is more urgent

	// EventDriven kinds are sent by lifecycle transitions, never queued by
	// the scheduling pass.
	EventDriven bool
}

// Immediate reports whether the kind fires when it is scheduled.
func (p Policy) Immediate() bool { return p.Offset == 0 }

// SendTime returns when a reminder of this policy is due for an appointment
// starting at start, scheduled at now.
func (p Policy) SendTime(start, now time.Time) time.Time {
	switch {
	case p.Offset == 0:
		return now
	case p.Kind == KindFollowUp:
		after := p.Offset
		if after < 0 {
			after = -after
		}
		return start.Add(after)
	default:
		return start.Add(-p.Offset)
	}
}

var policies = [kindCount]Policy{
	KindConfirmation: {
		Kind:     KindConfirmation,
		Channels: []Channel{ChannelEmail, ChannelSMS},
		Active:   true,
		Priority: 1,
	},
	KindReminder24h: {
		Kind:     KindReminder24h,
		Channels: []Channel{ChannelEmail, ChannelPush},
		Offset:   24 * time.Hour,
		Active:   true,
		Priority: 2,
	},
	KindReminder2h: {
		Kind:     KindReminder2h,
		Channels: []Channel{ChannelSMS, ChannelPush},
		Offset:   2 * time.Hour,
		Active:   true,
		Priority: 1,
	},
	KindReminder30m: {
		Kind:     KindReminder30m,
		Channels: []Channel{ChannelPush},
		Offset:   30 * time.Minute,
		Active:   true,
		Priority: 1,
	},
	KindFollowUp: {
		Kind:     KindFollowUp,
		Channels: []Channel{ChannelEmail},
		Offset:   -24 * time.Hour,
		Active:   true,
		Priority: 3,
	},
	KindCancellation: {
		Kind:        KindCancellation,
		Channels:    []Channel{ChannelEmail, ChannelSMS},
		Active:      true,
		Priority:    1,
		EventDriven: true,
	},
	KindRescheduling: {
		Kind:        KindRescheduling,
		Channels:    []Channel{ChannelEmail, ChannelSMS},
		Active:      true,
		Priority:    1,
		EventDriven: true,
	},
}

// MustPolicy returns the policy for k and panics on an out-of-range kind.
func MustPolicy(k Kind) Policy {
	if !k.Valid() {
		panic(fmt.Sprintf("reminder: no policy for %s", k))
	}
	p := policies[k]
	p.Channels = append([]Channel(nil), p.Channels...)
	return p
}

// Policies lists every policy, most urgent first.
func Policies() []Policy {
	out := make([]Policy, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		out = append(out, MustPolicy(k))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}
