package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/careswarm/careswarm/internal/artifacts"
	"github.com/careswarm/careswarm/internal/clinic"
	"github.com/careswarm/careswarm/pkg/session"
)

// Deps are the services the clinic tools operate on.
type Deps struct {
	Clinic *clinic.Store
	Mailer artifacts.Mailer

	// BaseURL is the public server address used to build ticket and
	// calendar links, e.g. "http://localhost:8080".
	BaseURL string
}

// RegisterClinicTools adds all domain tools to the registry.
func RegisterClinicTools(r *Registry, deps Deps) error {
	all := []Tool{
		verifyUserTool(deps),
		registerUserTool(deps),
		searchDoctorsTool(deps),
		checkAvailabilityTool(deps),
		bookAppointmentTool(deps),
		cancelAppointmentTool(deps),
		patientRecordsTool(deps),
		billingInfoTool(deps),
	}
	for _, t := range all {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func verifyUserTool(deps Deps) Tool {
	return Tool{
		Name:        "verify_user",
		Description: "Look up a patient by email address and mark the session verified when found.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"email": {"type": "string", "description": "Patient email address"}
			},
			"required": ["email"]
		}`),
		Func: func(ctx context.Context, inv Invocation) (string, error) {
			var args struct {
				Email string `json:"email"`
			}
			if err := json.Unmarshal(inv.Args, &args); err != nil {
				return "", fmt.Errorf("verify_user arguments: %w", err)
			}
			email := strings.TrimSpace(strings.ToLower(args.Email))
			if email == "" {
				return "", errors.New("verify_user requires an email")
			}

			p, err := deps.Clinic.FindPatientByEmail(ctx, email)
			if errors.Is(err, clinic.ErrNotFound) {
				return jsonResult(map[string]any{
					"verified": false,
					"message":  "No patient found with that email. Offer to register them as a new patient.",
				})
			}
			if err != nil {
				return "", err
			}

			inv.Session.State.Verified = true
			inv.Session.State.PatientID = p.ID
			inv.Session.State.PatientName = p.Name
			inv.Session.State.PatientEmail = p.Email
			return jsonResult(map[string]any{
				"verified": true,
				"patient":  map[string]any{"id": p.ID, "name": p.Name, "age": p.Age, "gender": p.Gender},
			})
		},
	}
}

func registerUserTool(deps Deps) Tool {
	return Tool{
		Name:        "register_user",
		Description: "Register a new patient and mark the session verified.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"name":   {"type": "string"},
				"email":  {"type": "string"},
				"age":    {"type": "integer"},
				"gender": {"type": "string"}
			},
			"required": ["name", "email", "age", "gender"]
		}`),
		Func: func(ctx context.Context, inv Invocation) (string, error) {
			var args struct {
				Name   string `json:"name"`
				Email  string `json:"email"`
				Age    int    `json:"age"`
				Gender string `json:"gender"`
			}
			if err := json.Unmarshal(inv.Args, &args); err != nil {
				return "", fmt.Errorf("register_user arguments: %w", err)
			}
			if args.Name == "" || args.Email == "" {
				return "", errors.New("register_user requires name and email")
			}

			p := &clinic.Patient{
				Name:   args.Name,
				Email:  strings.TrimSpace(strings.ToLower(args.Email)),
				Age:    args.Age,
				Gender: args.Gender,
			}
			err := deps.Clinic.RegisterPatient(ctx, p)
			if errors.Is(err, clinic.ErrEmailExists) {
				return jsonResult(map[string]any{
					"registered": false,
					"message":    "A patient with that email already exists. Verify them instead.",
				})
			}
			if err != nil {
				return "", err
			}

			inv.Session.State.Verified = true
			inv.Session.State.PatientID = p.ID
			inv.Session.State.PatientName = p.Name
			inv.Session.State.PatientEmail = p.Email
			return jsonResult(map[string]any{
				"registered": true,
				"patient_id": p.ID,
			})
		},
	}
}

func searchDoctorsTool(deps Deps) Tool {
	return Tool{
		Name:        "search_doctors",
		Description: "List clinic doctors, optionally filtered by specialty.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"specialty": {"type": "string", "description": "Specialty filter, e.g. Cardiology"}
			}
		}`),
		Func: func(ctx context.Context, inv Invocation) (string, error) {
			var args struct {
				Specialty string `json:"specialty"`
			}
			if len(inv.Args) > 0 {
				if err := json.Unmarshal(inv.Args, &args); err != nil {
					return "", fmt.Errorf("search_doctors arguments: %w", err)
				}
			}
			doctors, err := deps.Clinic.SearchDoctors(ctx, args.Specialty)
			if err != nil {
				return "", err
			}
			out := make([]map[string]any, 0, len(doctors))
			for _, d := range doctors {
				out = append(out, map[string]any{"id": d.ID, "name": d.Name, "specialty": d.Specialty})
			}
			return jsonResult(map[string]any{"doctors": out})
		},
	}
}

func checkAvailabilityTool(deps Deps) Tool {
	return Tool{
		Name:        "check_availability",
		Description: "List a doctor's open appointment slots on a given date.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"doctor": {"type": "string", "description": "Doctor id or name"},
				"date":   {"type": "string", "description": "Date in YYYY-MM-DD"}
			},
			"required": ["doctor", "date"]
		}`),
		Func: func(ctx context.Context, inv Invocation) (string, error) {
			var args struct {
				Doctor string `json:"doctor"`
				Date   string `json:"date"`
			}
			if err := json.Unmarshal(inv.Args, &args); err != nil {
				return "", fmt.Errorf("check_availability arguments: %w", err)
			}

			doctor, err := resolveDoctor(ctx, deps, args.Doctor)
			if err != nil {
				return "", err
			}
			if doctor == nil {
				return jsonResult(map[string]any{
					"message": fmt.Sprintf("No doctor matching %q. Use search_doctors to list doctors.", args.Doctor),
				})
			}

			slots, err := deps.Clinic.OpenSlots(ctx, doctor.ID, args.Date)
			if err != nil {
				return "", err
			}
			return jsonResult(map[string]any{
				"doctor":     map[string]any{"id": doctor.ID, "name": doctor.Name},
				"date":       args.Date,
				"open_slots": slots,
			})
		},
	}
}

func bookAppointmentTool(deps Deps) Tool {
	return Tool{
		Name:        "book_appointment",
		Description: "Book an appointment slot for the verified patient.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"doctor": {"type": "string", "description": "Doctor id or name"},
				"date":   {"type": "string", "description": "Date in YYYY-MM-DD"},
				"time":   {"type": "string", "description": "Slot time in HH:MM"},
				"reason": {"type": "string", "description": "Reason for the visit"}
			},
			"required": ["doctor", "date", "time"]
		}`),
		Func: func(ctx context.Context, inv Invocation) (string, error) {
			if !inv.Session.State.Verified {
				return jsonResult(map[string]any{
					"booked":  false,
					"message": "Patient is not verified. Verify or register the patient first.",
				})
			}

			var args struct {
				Doctor string `json:"doctor"`
				Date   string `json:"date"`
				Time   string `json:"time"`
				Reason string `json:"reason"`
			}
			if err := json.Unmarshal(inv.Args, &args); err != nil {
				return "", fmt.Errorf("book_appointment arguments: %w", err)
			}

			doctor, err := resolveDoctor(ctx, deps, args.Doctor)
			if err != nil {
				return "", err
			}
			if doctor == nil {
				return jsonResult(map[string]any{
					"booked":  false,
					"message": fmt.Sprintf("No doctor matching %q.", args.Doctor),
				})
			}

			appt := &clinic.Appointment{
				DoctorID:  doctor.ID,
				PatientID: inv.Session.State.PatientID,
				Date:      args.Date,
				Time:      args.Time,
				Status:    clinic.StatusConfirmed,
				Reason:    args.Reason,
			}
			err = deps.Clinic.BookAppointment(ctx, appt)
			if errors.Is(err, clinic.ErrSlotTaken) {
				slots, slotsErr := deps.Clinic.OpenSlots(ctx, doctor.ID, args.Date)
				if slotsErr != nil {
					slots = nil
				}
				return jsonResult(map[string]any{
					"booked":          false,
					"message":         "That slot was just taken.",
					"remaining_slots": slots,
				})
			}
			if err != nil {
				return "", err
			}

			inv.Session.State.LastAppointmentID = appt.ID
			inv.Session.State.Draft = &session.AppointmentDraft{
				DoctorID:   doctor.ID,
				DoctorName: doctor.Name,
				Date:       args.Date,
				Time:       args.Time,
				Reason:     args.Reason,
			}

			ticket := artifacts.Ticket{
				AppointmentID: appt.ID,
				PatientName:   inv.Session.State.PatientName,
				PatientEmail:  inv.Session.State.PatientEmail,
				DoctorName:    doctor.Name,
				Specialty:     doctor.Specialty,
				Date:          args.Date,
				Time:          args.Time,
				Reason:        args.Reason,
			}
			sendConfirmation(ctx, deps.Mailer, ticket)

			result := map[string]any{
				"booked":         true,
				"appointment_id": appt.ID,
				"doctor":         doctor.Name,
				"date":           args.Date,
				"time":           args.Time,
				"ticket_url":     fmt.Sprintf("%s/tickets/%d", deps.BaseURL, appt.ID),
				"calendar_url":   fmt.Sprintf("%s/calendar/%d", deps.BaseURL, appt.ID),
			}
			if gcal, err := artifacts.GoogleCalendarURL(ticket); err == nil {
				result["google_calendar_url"] = gcal
			}
			return jsonResult(result)
		},
	}
}

func cancelAppointmentTool(deps Deps) Tool {
	return Tool{
		Name:        "cancel_appointment",
		Description: "Cancel an existing appointment by its id.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"appointment_id": {"type": "integer"}
			},
			"required": ["appointment_id"]
		}`),
		Func: func(ctx context.Context, inv Invocation) (string, error) {
			var args struct {
				AppointmentID uint `json:"appointment_id"`
			}
			if err := json.Unmarshal(inv.Args, &args); err != nil {
				return "", fmt.Errorf("cancel_appointment arguments: %w", err)
			}

			err := deps.Clinic.CancelAppointment(ctx, args.AppointmentID)
			if errors.Is(err, clinic.ErrNotFound) {
				return jsonResult(map[string]any{
					"cancelled": false,
					"message":   fmt.Sprintf("No appointment with id %d.", args.AppointmentID),
				})
			}
			if err != nil {
				return "", err
			}
			if inv.Session.State.LastAppointmentID == args.AppointmentID {
				inv.Session.State.LastAppointmentID = 0
				inv.Session.State.Draft = nil
			}
			return jsonResult(map[string]any{"cancelled": true, "appointment_id": args.AppointmentID})
		},
	}
}

func patientRecordsTool(deps Deps) Tool {
	return Tool{
		Name:        "get_patient_records",
		Description: "Fetch the verified patient's medical history.",
		Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
		Func: func(ctx context.Context, inv Invocation) (string, error) {
			if !inv.Session.State.Verified {
				return jsonResult(map[string]any{
					"message": "Patient is not verified. Verify or register the patient first.",
				})
			}
			records, err := deps.Clinic.PatientRecords(ctx, inv.Session.State.PatientID)
			if err != nil {
				return "", err
			}
			out := make([]map[string]any, 0, len(records))
			for _, rec := range records {
				out = append(out, map[string]any{
					"date":         rec.Date,
					"diagnosis":    rec.Diagnosis,
					"prescription": rec.Prescription,
				})
			}
			return jsonResult(map[string]any{
				"patient": inv.Session.State.PatientName,
				"records": out,
			})
		},
	}
}

// visitFee is the flat mock charge per confirmed visit.
const visitFee = 100

func billingInfoTool(deps Deps) Tool {
	return Tool{
		Name:        "get_billing_info",
		Description: "Summarize the verified patient's charges and insurance status.",
		Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
		Func: func(ctx context.Context, inv Invocation) (string, error) {
			if !inv.Session.State.Verified {
				return jsonResult(map[string]any{
					"message": "Patient is not verified. Verify or register the patient first.",
				})
			}
			visits, err := deps.Clinic.VisitCount(ctx, inv.Session.State.PatientID)
			if err != nil {
				return "", err
			}
			return jsonResult(map[string]any{
				"patient":       inv.Session.State.PatientName,
				"visits":        visits,
				"fee_per_visit": fmt.Sprintf("$%d", visitFee),
				"total_due":     fmt.Sprintf("$%d", visits*visitFee),
				"insurance":     "BlueCross (Active)",
			})
		},
	}
}

// resolveDoctor finds a doctor by numeric id or name fragment. A nil
// doctor with nil error means no match.
func resolveDoctor(ctx context.Context, deps Deps, ref string) (*clinic.Doctor, error) {
	ref = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(ref), "Dr."))
	if ref == "" {
		return nil, errors.New("doctor reference is empty")
	}
	doctors, err := deps.Clinic.FindDoctors(ctx, ref)
	if err != nil {
		return nil, err
	}
	if len(doctors) == 0 {
		return nil, nil
	}
	return &doctors[0], nil
}

// sendConfirmation renders the booking artifacts and mails them. Delivery
// failure never fails the booking.
func sendConfirmation(ctx context.Context, mailer artifacts.Mailer, t artifacts.Ticket) {
	if mailer == nil {
		return
	}
	pdf, err := artifacts.RenderPDF(t)
	if err != nil {
		log.Printf("[tools] render ticket pdf for appointment %d: %v", t.AppointmentID, err)
	}
	ics, err := artifacts.RenderICS(t)
	if err != nil {
		log.Printf("[tools] render calendar for appointment %d: %v", t.AppointmentID, err)
	}
	if err := mailer.SendConfirmation(ctx, t, pdf, ics); err != nil {
		log.Printf("[tools] send confirmation for appointment %d: %v", t.AppointmentID, err)
	}
}
