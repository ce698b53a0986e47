// Package reminder sends day-before appointment reminders on a cron
// schedule.
package reminder

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/careswarm/careswarm/internal/artifacts"
	"github.com/careswarm/careswarm/internal/clinic"
)

// DefaultSpec runs the scan every evening at 18:00.
const DefaultSpec = "0 18 * * *"

// Scheduler scans for next-day confirmed appointments and emails each
// patient a reminder.
type Scheduler struct {
	clinic *clinic.Store
	mailer artifacts.Mailer
	spec   string
	cron   *cron.Cron

	// now is overridable in tests.
	now func() time.Time
}

// New builds a scheduler. An empty spec uses DefaultSpec.
func New(clinicStore *clinic.Store, mailer artifacts.Mailer, spec string) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	return &Scheduler{
		clinic: clinicStore,
		mailer: mailer,
		spec:   spec,
		now:    time.Now,
	}
}

// Start registers the cron entry and begins running. The scan itself is
// bounded so a slow SMTP server cannot pile up runs.
func (s *Scheduler) Start() error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		sent, err := s.RunOnce(ctx)
		if err != nil {
			log.Printf("[reminder] scan failed: %v", err)
			return
		}
		log.Printf("[reminder] sent %d reminders", sent)
	})
	if err != nil {
		return fmt.Errorf("schedule reminder scan (%q): %w", s.spec, err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron loop, waiting for an in-flight scan.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// RunOnce scans tomorrow's confirmed appointments and sends one reminder
// per appointment. Individual send failures are logged and skipped so one
// bad address cannot block the rest.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	tomorrow := s.now().AddDate(0, 0, 1).Format("2006-01-02")
	appts, err := s.clinic.AppointmentsOn(ctx, tomorrow)
	if err != nil {
		return 0, fmt.Errorf("list appointments for %s: %w", tomorrow, err)
	}

	sent := 0
	for _, appt := range appts {
		ticket, err := s.ticketFor(ctx, appt)
		if err != nil {
			log.Printf("[reminder] appointment %d: %v", appt.ID, err)
			continue
		}
		if err := s.mailer.SendReminder(ctx, *ticket); err != nil {
			log.Printf("[reminder] appointment %d: send: %v", appt.ID, err)
			continue
		}
		sent++
	}
	return sent, nil
}

func (s *Scheduler) ticketFor(ctx context.Context, appt clinic.Appointment) (*artifacts.Ticket, error) {
	doctor, err := s.clinic.GetDoctor(ctx, appt.DoctorID)
	if err != nil {
		return nil, err
	}
	patient, err := s.clinic.GetPatient(ctx, appt.PatientID)
	if err != nil {
		return nil, err
	}
	return &artifacts.Ticket{
		AppointmentID: appt.ID,
		PatientName:   patient.Name,
		PatientEmail:  patient.Email,
		DoctorName:    doctor.Name,
		Specialty:     doctor.Specialty,
		Date:          appt.Date,
		Time:          appt.Time,
		Reason:        appt.Reason,
	}, nil
}
