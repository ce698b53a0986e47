package clinic

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Seed(context.Background()))
	return store
}

func TestSeedIdempotent(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.Seed(ctx))

	doctors, err := store.FindDoctors(ctx, "")
	require.NoError(t, err)
	assert.Len(t, doctors, 4)
}

func TestFindPatientByEmail(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	p, err := store.FindPatientByEmail(ctx, "rohit.agarwal@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, "Rohit Agarwal", p.Name)
	assert.Equal(t, 32, p.Age)

	_, err = store.FindPatientByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterPatientDuplicateEmail(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	p := &Patient{Name: "New Patient", Email: "new.patient@example.com", Age: 28, Gender: "Female"}
	require.NoError(t, store.RegisterPatient(ctx, p))
	assert.NotZero(t, p.ID)

	dup := &Patient{Name: "Other", Email: "new.patient@example.com", Age: 30, Gender: "Male"}
	assert.ErrorIs(t, store.RegisterPatient(ctx, dup), ErrEmailExists)
}

func TestFindDoctorsByIDAndName(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	byID, err := store.FindDoctors(ctx, "1")
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, "Sarah Smith", byID[0].Name)

	byName, err := store.FindDoctors(ctx, "Chen")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "Pediatrics", byName[0].Specialty)
}

func TestSearchDoctorsBySpecialty(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	docs, err := store.SearchDoctors(ctx, "cardio")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Sarah Smith", docs[0].Name)

	all, err := store.SearchDoctors(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestOpenSlotsShrinkAfterBooking(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	open, err := store.OpenSlots(ctx, 1, "2026-09-07")
	require.NoError(t, err)
	assert.Equal(t, StandardSlots, open)

	appt := &Appointment{DoctorID: 1, PatientID: 1, Date: "2026-09-07", Time: "10:00"}
	require.NoError(t, store.BookAppointment(ctx, appt))

	open, err = store.OpenSlots(ctx, 1, "2026-09-07")
	require.NoError(t, err)
	assert.NotContains(t, open, "10:00")
	assert.Len(t, open, len(StandardSlots)-1)
}

func TestBookAppointmentSlotTaken(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	first := &Appointment{DoctorID: 2, PatientID: 1, Date: "2026-09-08", Time: "09:00"}
	require.NoError(t, store.BookAppointment(ctx, first))
	assert.Equal(t, StatusConfirmed, first.Status)

	second := &Appointment{DoctorID: 2, PatientID: 2, Date: "2026-09-08", Time: "09:00"}
	assert.ErrorIs(t, store.BookAppointment(ctx, second), ErrSlotTaken)

	// A different slot on the same day still books fine.
	third := &Appointment{DoctorID: 2, PatientID: 2, Date: "2026-09-08", Time: "11:00"}
	assert.NoError(t, store.BookAppointment(ctx, third))
}

func TestBookAppointmentConcurrentSameSlot(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			appt := &Appointment{DoctorID: 3, PatientID: uint(i + 1), Date: "2026-09-09", Time: "14:00"}
			errs[i] = store.BookAppointment(ctx, appt)
		}(i)
	}
	wg.Wait()

	var successes, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case assert.ErrorIs(t, err, ErrSlotTaken):
			conflicts++
		}
	}
	assert.Equal(t, 1, successes, "exactly one booking must win")
	assert.Equal(t, attempts-1, conflicts)
}

func TestCancelAppointment(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	appt := &Appointment{DoctorID: 4, PatientID: 1, Date: "2026-09-10", Time: "15:00"}
	require.NoError(t, store.BookAppointment(ctx, appt))

	require.NoError(t, store.CancelAppointment(ctx, appt.ID))
	_, err := store.GetAppointment(ctx, appt.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Cancellation deletes the row, so the slot is bookable again.
	slots, err := store.OpenSlots(ctx, 4, "2026-09-10")
	require.NoError(t, err)
	assert.Contains(t, slots, "15:00")

	assert.ErrorIs(t, store.CancelAppointment(ctx, appt.ID), ErrNotFound)
}

func TestPatientRecordsAndVisits(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	records, err := store.PatientRecords(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Hypertension", records[0].Diagnosis)

	appt := &Appointment{DoctorID: 1, PatientID: 1, Date: "2026-09-11", Time: "09:00"}
	require.NoError(t, store.BookAppointment(ctx, appt))

	n, err := store.VisitCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAppointmentsOn(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	for _, tm := range []string{"10:00", "09:00"} {
		appt := &Appointment{DoctorID: 1, PatientID: 1, Date: "2026-09-12", Time: tm}
		require.NoError(t, store.BookAppointment(ctx, appt))
	}

	appts, err := store.AppointmentsOn(ctx, "2026-09-12")
	require.NoError(t, err)
	require.Len(t, appts, 2)
	assert.Equal(t, "09:00", appts[0].Time, "ordered by time")
}
