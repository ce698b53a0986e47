package artifacts

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const icsTimeLayout = "20060102T150405"

// appointmentWindow parses the slot date and time into a start/end pair.
// Slots are one hour long.
func appointmentWindow(date, tm string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02 15:04", date+" "+tm)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse slot %q %q: %w", date, tm, err)
	}
	return start, start.Add(time.Hour), nil
}

// RenderICS renders an iCalendar invite for the appointment, with a
// reminder alarm two hours before the visit.
func RenderICS(t Ticket) (string, error) {
	start, end, err := appointmentWindow(t.Date, t.Time)
	if err != nil {
		return "", err
	}

	summary := fmt.Sprintf("Appointment with Dr. %s", t.DoctorName)
	description := fmt.Sprintf("Visit at CareSwarm Clinic for %s.", t.PatientName)
	if t.Reason != "" {
		description = fmt.Sprintf("Visit at CareSwarm Clinic for %s. Reason: %s.", t.PatientName, t.Reason)
	}

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//CareSwarm//Clinic//EN",
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		"BEGIN:VEVENT",
		fmt.Sprintf("UID:appointment-%d@careswarm.clinic", t.AppointmentID),
		fmt.Sprintf("DTSTAMP:%s", time.Now().UTC().Format(icsTimeLayout)+"Z"),
		fmt.Sprintf("DTSTART:%s", start.Format(icsTimeLayout)),
		fmt.Sprintf("DTEND:%s", end.Format(icsTimeLayout)),
		fmt.Sprintf("SUMMARY:%s", escapeICS(summary)),
		fmt.Sprintf("DESCRIPTION:%s", escapeICS(description)),
		"LOCATION:CareSwarm Clinic",
		"STATUS:CONFIRMED",
		"BEGIN:VALARM",
		"ACTION:DISPLAY",
		fmt.Sprintf("DESCRIPTION:%s", escapeICS(summary)),
		"TRIGGER:-PT2H",
		"END:VALARM",
		"END:VEVENT",
		"END:VCALENDAR",
	}
	return strings.Join(lines, "\r\n") + "\r\n", nil
}

// GoogleCalendarURL builds a prefilled Google Calendar event link for the
// appointment.
func GoogleCalendarURL(t Ticket) (string, error) {
	start, end, err := appointmentWindow(t.Date, t.Time)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", fmt.Sprintf("Appointment with Dr. %s", t.DoctorName))
	q.Set("dates", start.Format(icsTimeLayout)+"/"+end.Format(icsTimeLayout))
	q.Set("details", fmt.Sprintf("CareSwarm Clinic appointment #%d", t.AppointmentID))
	q.Set("location", "CareSwarm Clinic")
	return "https://calendar.google.com/calendar/render?" + q.Encode(), nil
}

// escapeICS escapes text per RFC 5545 section 3.3.11.
func escapeICS(s string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\n", "\\n",
	)
	return r.Replace(s)
}
