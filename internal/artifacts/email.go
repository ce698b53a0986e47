package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"

	mail "github.com/wneessen/go-mail"
)

// Mailer delivers clinic emails. Implementations must be safe for
// concurrent use.
type Mailer interface {
	// SendConfirmation delivers the booking confirmation with the ticket
	// PDF and calendar invite attached.
	SendConfirmation(ctx context.Context, t Ticket, pdf []byte, ics string) error

	// SendReminder delivers the day-before reminder.
	SendReminder(ctx context.Context, t Ticket) error
}

// SMTPConfig configures the SMTP mailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether credentials are present.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.Username != "" && c.Password != ""
}

// SMTPMailer sends mail over authenticated SMTP.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer builds a mailer from config. Credentials are verified
// lazily on first send.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) client() (*mail.Client, error) {
	return mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
}

func (m *SMTPMailer) SendConfirmation(ctx context.Context, t Ticket, pdf []byte, ics string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(t.PatientEmail); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(fmt.Sprintf("Appointment Confirmed - Dr. %s on %s", t.DoctorName, t.Date))
	msg.SetBodyString(mail.TypeTextPlain, confirmationBody(t))
	if len(pdf) > 0 {
		msg.AttachReader(fmt.Sprintf("appointment-%d.pdf", t.AppointmentID), bytes.NewReader(pdf))
	}
	if ics != "" {
		msg.AttachReader("appointment.ics", strings.NewReader(ics))
	}

	client, err := m.client()
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send confirmation: %w", err)
	}
	return nil
}

func (m *SMTPMailer) SendReminder(ctx context.Context, t Ticket) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(t.PatientEmail); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(fmt.Sprintf("Reminder: appointment with Dr. %s tomorrow at %s", t.DoctorName, t.Time))
	msg.SetBodyString(mail.TypeTextPlain, reminderBody(t))

	client, err := m.client()
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}
	return nil
}

// LogMailer logs instead of sending. Used when SMTP credentials are not
// configured, and in tests.
type LogMailer struct{}

func (LogMailer) SendConfirmation(_ context.Context, t Ticket, pdf []byte, ics string) error {
	log.Printf("[mail] confirmation to %s (appointment #%d, pdf=%dB, ics=%dB)",
		t.PatientEmail, t.AppointmentID, len(pdf), len(ics))
	return nil
}

func (LogMailer) SendReminder(_ context.Context, t Ticket) error {
	log.Printf("[mail] reminder to %s (appointment #%d on %s %s)",
		t.PatientEmail, t.AppointmentID, t.Date, t.Time)
	return nil
}

func confirmationBody(t Ticket) string {
	return fmt.Sprintf(`Hello %s,

Your appointment is confirmed.

  Doctor: Dr. %s
  Date:   %s
  Time:   %s

Your printable ticket and a calendar invite are attached. Please arrive
15 minutes early and bring a valid photo ID.

CareSwarm Clinic
`, t.PatientName, t.DoctorName, t.Date, t.Time)
}

func reminderBody(t Ticket) string {
	return fmt.Sprintf(`Hello %s,

This is a reminder about your appointment tomorrow.

  Doctor: Dr. %s
  Date:   %s
  Time:   %s

See you then.

CareSwarm Clinic
`, t.PatientName, t.DoctorName, t.Date, t.Time)
}
