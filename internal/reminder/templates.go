package reminder

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Message is a rendered notification. Title doubles as the email subject.
type Message struct {
	Title string
	Body  string
}

type templateKey struct {
	kind    Kind
	channel Channel
}

type messageTemplate struct {
	title *template.Template
	body  *template.Template
}

// messageData is what templates render against.
type messageData struct {
	Snapshot
	Recipient Recipient
}

type rawTemplate struct {
	title string
	body  string
}

var rawTemplates = map[templateKey]rawTemplate{
	{KindConfirmation, ChannelEmail}: {
		title: "Appointment confirmed: {{.DateTime}}",
		body: `Hello {{.PatientName}},

Your {{.AppointmentType}} appointment with {{.ProviderName}} is confirmed.

Date: {{.Date}}
Time: {{.Time}}
Duration: {{.DurationMinutes}} minutes
Location: {{.Location}}
{{- if .Notes}}
Notes: {{.Notes}}
{{- end}}

Please arrive 15 minutes early.`,
	},
	{KindConfirmation, ChannelSMS}: {
		body: "Confirmed: {{.AppointmentType}} with {{.ProviderName}} on {{.DateTime}} at {{.Location}}.",
	},
	{KindConfirmation, ChannelPush}: {
		title: "Appointment confirmed",
		body:  "{{.AppointmentType}} with {{.ProviderName}} on {{.DateTime}}",
	},

	{KindReminder24h, ChannelEmail}: {
		title: "Reminder: appointment tomorrow at {{.Time}}",
		body: `Hello {{.PatientName}},

This is a reminder of your {{.AppointmentType}} appointment with {{.ProviderName}} tomorrow.

Date: {{.Date}}
Time: {{.Time}}
Location: {{.Location}}

If you need to cancel or reschedule, please contact us as soon as possible.`,
	},
	{KindReminder24h, ChannelSMS}: {
		body: "Reminder: {{.AppointmentType}} with {{.ProviderName}} tomorrow, {{.DateTime}}, {{.Location}}.",
	},
	{KindReminder24h, ChannelPush}: {
		title: "Appointment tomorrow",
		body:  "{{.AppointmentType}} with {{.ProviderName}} at {{.Time}}",
	},

	{KindReminder2h, ChannelEmail}: {
		title: "Your appointment starts in 2 hours",
		body: `Hello {{.PatientName}},

Your {{.AppointmentType}} appointment with {{.ProviderName}} starts at {{.Time}} today.

Location: {{.Location}}`,
	},
	{KindReminder2h, ChannelSMS}: {
		body: "Your appointment with {{.ProviderName}} starts in 2 hours ({{.Time}}) at {{.Location}}.",
	},
	{KindReminder2h, ChannelPush}: {
		title: "Appointment in 2 hours",
		body:  "{{.ProviderName}} at {{.Time}}, {{.Location}}",
	},

	{KindReminder30m, ChannelEmail}: {
		title: "Your appointment starts in 30 minutes",
		body: `Hello {{.PatientName}},

Your appointment with {{.ProviderName}} starts at {{.Time}}. Please make your way to {{.Location}}.`,
	},
	{KindReminder30m, ChannelSMS}: {
		body: "Your appointment with {{.ProviderName}} starts in 30 minutes at {{.Location}}.",
	},
	{KindReminder30m, ChannelPush}: {
		title: "Appointment in 30 minutes",
		body:  "Head to {{.Location}} for your visit with {{.ProviderName}}",
	},

	{KindFollowUp, ChannelEmail}: {
		title: "How was your visit with {{.ProviderName}}?",
		body: `Hello {{.PatientName}},

Thank you for visiting {{.ProviderName}} on {{.Date}}. If you have questions about your care or need a follow-up appointment, reply to this email or call the front desk.`,
	},
	{KindFollowUp, ChannelSMS}: {
		body: "Thanks for visiting {{.ProviderName}} on {{.Date}}. Contact us if you need a follow-up.",
	},
	{KindFollowUp, ChannelPush}: {
		title: "Thanks for your visit",
		body:  "Need a follow-up with {{.ProviderName}}? Book it in the app.",
	},

	{KindCancellation, ChannelEmail}: {
		title: "Appointment cancelled: {{.DateTime}}",
		body: `Hello {{.PatientName}},

Your {{.AppointmentType}} appointment with {{.ProviderName}} on {{.DateTime}} has been cancelled.

Please contact us to book a new time.`,
	},
	{KindCancellation, ChannelSMS}: {
		body: "Your appointment with {{.ProviderName}} on {{.DateTime}} has been cancelled.",
	},
	{KindCancellation, ChannelPush}: {
		title: "Appointment cancelled",
		body:  "{{.ProviderName}}, {{.DateTime}}",
	},

	{KindRescheduling, ChannelEmail}: {
		title: "Appointment moved to {{.DateTime}}",
		body: `Hello {{.PatientName}},

Your {{.AppointmentType}} appointment with {{.ProviderName}} has been rescheduled.
{{- if .PreviousDateTime}}

Previous time: {{.PreviousDateTime}}
{{- end}}
New time: {{.DateTime}}
Location: {{.Location}}`,
	},
	{KindRescheduling, ChannelSMS}: {
		body: "Your appointment with {{.ProviderName}} was moved to {{.DateTime}} at {{.Location}}.",
	},
	{KindRescheduling, ChannelPush}: {
		title: "Appointment rescheduled",
		body:  "Now {{.DateTime}} with {{.ProviderName}}",
	},
}

const emergencyPreamble = `This message is about an appointment for {{.PatientName}}. ` +
	`You are receiving this as their {{if .Recipient.Relationship}}{{.Recipient.Relationship}}{{else}}emergency contact{{end}}.`

var (
	templates         = mustParseTemplates(rawTemplates)
	emergencyTemplate = template.Must(template.New("emergency").Parse(emergencyPreamble))
)

func mustParseTemplates(raw map[templateKey]rawTemplate) map[templateKey]messageTemplate {
	out := make(map[templateKey]messageTemplate, len(raw))
	for key, r := range raw {
		name := key.kind.String() + "/" + string(key.channel)
		out[key] = messageTemplate{
			title: template.Must(template.New(name + "/title").Parse(r.title)),
			body:  template.Must(template.New(name + "/body").Parse(r.body)),
		}
	}
	return out
}

// Render produces the message for a kind on a channel. Emergency-contact
// recipients get the relationship preamble ahead of the body.
func Render(k Kind, c Channel, data messageData) (Message, error) {
	tmpl, ok := templates[templateKey{k, c}]
	if !ok {
		return Message{}, fmt.Errorf("no template for %s/%s", k, c)
	}

	var title, body bytes.Buffer
	if err := tmpl.title.Execute(&title, data); err != nil {
		return Message{}, fmt.Errorf("render %s/%s title: %w", k, c, err)
	}
	if err := tmpl.body.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("render %s/%s body: %w", k, c, err)
	}

	msg := Message{Title: title.String(), Body: strings.TrimSpace(body.String())}
	if data.Recipient.Emergency {
		var pre bytes.Buffer
		if err := emergencyTemplate.Execute(&pre, data); err != nil {
			return Message{}, fmt.Errorf("render emergency preamble: %w", err)
		}
		sep := "\n\n"
		if c != ChannelEmail {
			sep = " "
		}
		msg.Body = pre.String() + sep + msg.Body
	}
	return msg, nil
}
