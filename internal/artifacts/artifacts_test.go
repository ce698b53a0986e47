package artifacts

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTicket() Ticket {
	return Ticket{
		AppointmentID: 42,
		PatientName:   "Debapriyo Saha",
		PatientEmail:  "debopriyo.saha@gmail.com",
		DoctorName:    "Sarah Smith",
		Specialty:     "Cardiology",
		Date:          "2026-09-15",
		Time:          "10:00",
		Reason:        "Chest pain follow-up",
	}
}

func TestRenderPDF(t *testing.T) {
	data, err := RenderPDF(sampleTicket())
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.True(t, strings.HasPrefix(string(data), "%PDF-"), "output should be a PDF document")
}

func TestRenderICS(t *testing.T) {
	ics, err := RenderICS(sampleTicket())
	require.NoError(t, err)

	assert.Contains(t, ics, "BEGIN:VCALENDAR")
	assert.Contains(t, ics, "DTSTART:20260915T100000")
	assert.Contains(t, ics, "DTEND:20260915T110000")
	assert.Contains(t, ics, "SUMMARY:Appointment with Dr. Sarah Smith")
	assert.Contains(t, ics, "TRIGGER:-PT2H")
	assert.Contains(t, ics, "UID:appointment-42@careswarm.clinic")
	assert.True(t, strings.HasSuffix(ics, "END:VCALENDAR\r\n"))
}

func TestRenderICSBadSlot(t *testing.T) {
	tk := sampleTicket()
	tk.Time = "25:99"
	_, err := RenderICS(tk)
	assert.Error(t, err)
}

func TestGoogleCalendarURL(t *testing.T) {
	u, err := GoogleCalendarURL(sampleTicket())
	require.NoError(t, err)
	assert.Contains(t, u, "calendar.google.com/calendar/render")
	assert.Contains(t, u, "action=TEMPLATE")
	assert.Contains(t, u, "20260915T100000%2F20260915T110000")
}

func TestEscapeICS(t *testing.T) {
	assert.Equal(t, `a\,b\;c\\d\ne`, escapeICS("a,b;c\\d\ne"))
}

func TestLogMailer(t *testing.T) {
	m := LogMailer{}
	require.NoError(t, m.SendConfirmation(context.Background(), sampleTicket(), []byte("%PDF-"), "ics"))
	require.NoError(t, m.SendReminder(context.Background(), sampleTicket()))
}
