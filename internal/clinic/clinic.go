// Package clinic is the relational data layer: doctors, patients,
// availability, appointments, and medical records, backed by SQLite through
// GORM. Record-level correctness (atomic slot booking) lives here, not in the
// router.
package clinic

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Domain errors callers branch on.
var (
	// ErrNotFound is returned when a record doesn't exist.
	ErrNotFound = errors.New("record not found")
	// ErrSlotTaken is returned when an appointment slot is already booked.
	ErrSlotTaken = errors.New("slot already booked")
	// ErrEmailExists is returned when registering an email that is taken.
	ErrEmailExists = errors.New("email already registered")
)

// StandardSlots is the bookable time grid for every doctor.
var StandardSlots = []string{"09:00", "10:00", "11:00", "14:00", "15:00", "16:00"}

// Doctor is a practicing physician.
type Doctor struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"index"`
	Specialty string `gorm:"index"`
	Bio       string
}

// Patient is a registered patient identity.
type Patient struct {
	ID     uint   `gorm:"primaryKey"`
	Name   string `gorm:"index"`
	Email  string `gorm:"uniqueIndex"`
	Age    int
	Gender string
}

// Availability is a doctor's weekly working window.
type Availability struct {
	ID        uint `gorm:"primaryKey"`
	DoctorID  uint `gorm:"index"`
	DayOfWeek string
	StartTime string // HH:MM
	EndTime   string // HH:MM
}

// StatusConfirmed is the only appointment status: cancellation deletes
// the row outright, freeing the slot for rebooking.
const StatusConfirmed = "confirmed"

// Appointment is a booked slot. The composite unique index on
// (doctor_id, date, time) is what makes concurrent double-booking of a slot
// impossible: the second insert fails at the constraint.
type Appointment struct {
	ID        uint   `gorm:"primaryKey"`
	DoctorID  uint   `gorm:"index;uniqueIndex:idx_slot"`
	PatientID uint   `gorm:"index"`
	Date      string `gorm:"uniqueIndex:idx_slot"` // YYYY-MM-DD
	Time      string `gorm:"uniqueIndex:idx_slot"` // HH:MM
	Status    string `gorm:"default:confirmed"`
	Reason    string
	CreatedAt time.Time
}

// MedicalRecord is one diagnosis entry in a patient's history.
type MedicalRecord struct {
	ID           uint `gorm:"primaryKey"`
	PatientID    uint `gorm:"index"`
	Date         string
	Diagnosis    string
	Prescription string
}

// Store wraps the database handle with the clinic's access operations.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the SQLite database at path and migrates
// the schema. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	// SQLite admits a single writer; one pooled connection avoids
	// SQLITE_BUSY under concurrent bookings.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Doctor{}, &Patient{}, &Availability{}, &Appointment{}, &MedicalRecord{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying handle for seeding and tests.
func (s *Store) DB() *gorm.DB { return s.db }

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// FindPatientByEmail looks a patient up by exact email.
func (s *Store) FindPatientByEmail(ctx context.Context, email string) (*Patient, error) {
	var p Patient
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find patient: %w", err)
	}
	return &p, nil
}

// GetPatient retrieves a patient by id.
func (s *Store) GetPatient(ctx context.Context, id uint) (*Patient, error) {
	var p Patient
	err := s.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return &p, nil
}

// RegisterPatient creates a new patient. Returns ErrEmailExists when the
// email is already registered.
func (s *Store) RegisterPatient(ctx context.Context, p *Patient) error {
	err := s.db.WithContext(ctx).Create(p).Error
	if isUniqueViolation(err) {
		return ErrEmailExists
	}
	if err != nil {
		return fmt.Errorf("register patient: %w", err)
	}
	return nil
}

// FindDoctors resolves a doctor reference, which may be a numeric id or a
// name fragment. An empty ref returns all doctors.
func (s *Store) FindDoctors(ctx context.Context, ref string) ([]Doctor, error) {
	q := s.db.WithContext(ctx).Model(&Doctor{})
	if ref != "" {
		if id, err := strconv.Atoi(ref); err == nil {
			q = q.Where("id = ?", id)
		} else {
			q = q.Where("name LIKE ?", "%"+ref+"%")
		}
	}

	var doctors []Doctor
	if err := q.Order("id").Find(&doctors).Error; err != nil {
		return nil, fmt.Errorf("find doctors: %w", err)
	}
	return doctors, nil
}

// SearchDoctors lists doctors, optionally filtered by specialty fragment.
func (s *Store) SearchDoctors(ctx context.Context, specialty string) ([]Doctor, error) {
	q := s.db.WithContext(ctx).Model(&Doctor{})
	if specialty != "" {
		q = q.Where("specialty LIKE ?", "%"+specialty+"%")
	}

	var doctors []Doctor
	if err := q.Order("id").Find(&doctors).Error; err != nil {
		return nil, fmt.Errorf("search doctors: %w", err)
	}
	return doctors, nil
}

// OpenSlots returns the standard slots not yet booked for the doctor on date.
func (s *Store) OpenSlots(ctx context.Context, doctorID uint, date string) ([]string, error) {
	var booked []string
	err := s.db.WithContext(ctx).
		Model(&Appointment{}).
		Where("doctor_id = ? AND date = ? AND status = ?", doctorID, date, StatusConfirmed).
		Pluck("time", &booked).Error
	if err != nil {
		return nil, fmt.Errorf("load booked slots: %w", err)
	}

	taken := make(map[string]bool, len(booked))
	for _, t := range booked {
		taken[t] = true
	}

	open := make([]string, 0, len(StandardSlots))
	for _, slot := range StandardSlots {
		if !taken[slot] {
			open = append(open, slot)
		}
	}
	return open, nil
}

// BookAppointment atomically books a slot. The check-then-insert runs in one
// transaction and the composite unique index backstops it, so two concurrent
// bookings of the same (doctor, date, time) admit exactly one row.
func (s *Store) BookAppointment(ctx context.Context, appt *Appointment) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Appointment
		err := tx.Where("doctor_id = ? AND date = ? AND time = ?",
			appt.DoctorID, appt.Date, appt.Time).First(&existing).Error
		if err == nil {
			return ErrSlotTaken
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		appt.Status = StatusConfirmed
		return tx.Create(appt).Error
	})

	if errors.Is(err, ErrSlotTaken) || isUniqueViolation(err) {
		return ErrSlotTaken
	}
	if err != nil {
		return fmt.Errorf("book appointment: %w", err)
	}
	return nil
}

// GetAppointment retrieves an appointment by id.
func (s *Store) GetAppointment(ctx context.Context, id uint) (*Appointment, error) {
	var a Appointment
	err := s.db.WithContext(ctx).First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return &a, nil
}

// GetDoctor retrieves a doctor by id.
func (s *Store) GetDoctor(ctx context.Context, id uint) (*Doctor, error) {
	var d Doctor
	err := s.db.WithContext(ctx).First(&d, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get doctor: %w", err)
	}
	return &d, nil
}

// CancelAppointment deletes an appointment by id.
func (s *Store) CancelAppointment(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&Appointment{}, id)
	if res.Error != nil {
		return fmt.Errorf("cancel appointment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PatientRecords returns a patient's medical history, oldest first.
func (s *Store) PatientRecords(ctx context.Context, patientID uint) ([]MedicalRecord, error) {
	var records []MedicalRecord
	err := s.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("date").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	return records, nil
}

// VisitCount counts a patient's appointments, used by the billing summary.
func (s *Store) VisitCount(ctx context.Context, patientID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&Appointment{}).
		Where("patient_id = ?", patientID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count visits: %w", err)
	}
	return n, nil
}

// AppointmentsOn returns all confirmed appointments on the given date, used
// by the reminder scheduler.
func (s *Store) AppointmentsOn(ctx context.Context, date string) ([]Appointment, error) {
	var appts []Appointment
	err := s.db.WithContext(ctx).
		Where("date = ? AND status = ?", date, StatusConfirmed).
		Order("time").
		Find(&appts).Error
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	return appts, nil
}

// isUniqueViolation reports whether err is a unique-constraint failure.
// GORM's translated sentinel is checked first; the string match covers
// drivers that don't translate.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
