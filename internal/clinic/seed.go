package clinic

import (
	"context"
	"fmt"
	"log"
)

// Seed populates an empty database with the demo dataset: four doctors,
// three patients, weekday availability, and a few medical records.
// It is a no-op when doctors already exist.
func (s *Store) Seed(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Doctor{}).Count(&count).Error; err != nil {
		return fmt.Errorf("check existing data: %w", err)
	}
	if count > 0 {
		log.Printf("clinic: database already seeded (%d doctors)", count)
		return nil
	}

	doctors := []Doctor{
		{Name: "Sarah Smith", Specialty: "Cardiology", Bio: "Expert in heart health with 15 years of experience."},
		{Name: "Michael Jones", Specialty: "Dermatology", Bio: "Specializes in skin conditions and cosmetic procedures."},
		{Name: "Emily Chen", Specialty: "Pediatrics", Bio: "Caring pediatrician focused on child development."},
		{Name: "David Wilson", Specialty: "General Practice", Bio: "Comprehensive primary care for the whole family."},
	}
	if err := s.db.WithContext(ctx).Create(&doctors).Error; err != nil {
		return fmt.Errorf("seed doctors: %w", err)
	}

	patients := []Patient{
		{Name: "Debapriyo Saha", Email: "debopriyo.saha@gmail.com", Age: 45, Gender: "Male"},
		{Name: "Rohit Agarwal", Email: "rohit.agarwal@gmail.com", Age: 32, Gender: "Male"},
		{Name: "Pratik Dasgupta", Email: "pratik.dasgupta@gmail.com", Age: 60, Gender: "Male"},
	}
	if err := s.db.WithContext(ctx).Create(&patients).Error; err != nil {
		return fmt.Errorf("seed patients: %w", err)
	}

	weekdays := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
	var avail []Availability
	for _, d := range doctors {
		for _, day := range weekdays {
			avail = append(avail, Availability{
				DoctorID:  d.ID,
				DayOfWeek: day,
				StartTime: "09:00",
				EndTime:   "17:00",
			})
		}
	}
	if err := s.db.WithContext(ctx).Create(&avail).Error; err != nil {
		return fmt.Errorf("seed availability: %w", err)
	}

	records := []MedicalRecord{
		{PatientID: patients[0].ID, Date: "2023-10-15", Diagnosis: "Hypertension", Prescription: "Lisinopril 10mg"},
		{PatientID: patients[0].ID, Date: "2024-01-20", Diagnosis: "Regular Checkup", Prescription: "None"},
		{PatientID: patients[1].ID, Date: "2023-11-05", Diagnosis: "Eczema", Prescription: "Hydrocortisone Cream"},
		{PatientID: patients[2].ID, Date: "2023-12-10", Diagnosis: "Type 2 Diabetes", Prescription: "Metformin 500mg"},
	}
	if err := s.db.WithContext(ctx).Create(&records).Error; err != nil {
		return fmt.Errorf("seed records: %w", err)
	}

	log.Printf("clinic: seeded %d doctors, %d patients, %d records",
		len(doctors), len(patients), len(records))
	return nil
}
