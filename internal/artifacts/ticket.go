// Package artifacts produces the post-booking deliverables: the printable
// PDF ticket, the calendar invite, and the confirmation email.
package artifacts

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// Ticket holds the appointment details rendered into artifacts.
type Ticket struct {
	AppointmentID uint
	PatientName   string
	PatientEmail  string
	DoctorName    string
	Specialty     string
	Date          string // YYYY-MM-DD
	Time          string // HH:MM
	Reason        string
}

// RenderPDF renders the appointment ticket as a one-page PDF.
func RenderPDF(t Ticket) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Appointment Ticket", false)
	pdf.AddPage()

	// Header band.
	pdf.SetFillColor(59, 130, 246)
	pdf.Rect(0, 0, 210, 30, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetXY(10, 9)
	pdf.CellFormat(190, 12, "CareSwarm Clinic", "", 1, "C", false, 0, "")

	pdf.SetTextColor(30, 30, 30)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetXY(10, 40)
	pdf.CellFormat(190, 10, fmt.Sprintf("Appointment Ticket #%d", t.AppointmentID), "", 1, "L", false, 0, "")
	pdf.Line(10, 52, 200, 52)

	row := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(50, 9, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(140, 9, value, "", 1, "L", false, 0, "")
	}

	pdf.SetY(58)
	row("Patient", t.PatientName)
	row("Doctor", "Dr. "+t.DoctorName)
	if t.Specialty != "" {
		row("Specialty", t.Specialty)
	}
	row("Date", t.Date)
	row("Time", t.Time)
	if t.Reason != "" {
		row("Reason", t.Reason)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.SetTextColor(90, 90, 90)
	pdf.MultiCell(190, 6, "Please arrive 15 minutes before your scheduled time and bring a valid photo ID.", "", "L", false)

	pdf.SetY(-25)
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(190, 5, "CareSwarm Clinic - generated automatically, no signature required", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render ticket pdf: %w", err)
	}
	return buf.Bytes(), nil
}
