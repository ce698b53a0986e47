package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/careswarm/careswarm/agent"
)

// SideState is the typed auxiliary state handlers read and write across
// handoffs. Named optional fields replace the original's open key-value bag
// so invariants are checkable at compile time.
type SideState struct {
	// PatientID is set once the patient's identity is verified or registered.
	PatientID uint `json:"patientId,omitempty"`

	// PatientName and PatientEmail mirror the verified patient record.
	PatientName  string `json:"patientName,omitempty"`
	PatientEmail string `json:"patientEmail,omitempty"`

	// Verified reports whether identity verification has completed for this
	// session. At most one verification per distinct identity per session.
	Verified bool `json:"verified,omitempty"`

	// Draft holds in-progress appointment details gathered across turns.
	Draft *AppointmentDraft `json:"draft,omitempty"`

	// LastAppointmentID is the most recently booked appointment, used for
	// ticket and calendar references.
	LastAppointmentID uint `json:"lastAppointmentId,omitempty"`
}

// AppointmentDraft is a partially gathered appointment request.
type AppointmentDraft struct {
	DoctorID   uint   `json:"doctorId,omitempty"`
	DoctorName string `json:"doctorName,omitempty"`
	Date       string `json:"date,omitempty"` // YYYY-MM-DD
	Time       string `json:"time,omitempty"` // HH:MM
	Reason     string `json:"reason,omitempty"`
}

// Session is one resumable conversation. The router owns all mutation; a
// session value is only ever touched by one turn at a time (the router
// serializes turns per session), so the struct itself carries no lock.
type Session struct {
	// ID is the opaque session identifier returned to the client.
	ID string `json:"id"`

	// Messages is the append-only conversation history.
	Messages []agent.Message `json:"messages"`

	// ActiveHandler is the handler that will receive the next user message.
	// Always one of the four enumerated names; initial value is Triage.
	ActiveHandler agent.HandlerName `json:"activeHandler"`

	// State is the typed side state carried across handoffs.
	State SideState `json:"state"`

	// CreatedAt and UpdatedAt are bookkeeping timestamps.
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// New creates a fresh session with a generated id and Triage active.
func New() *Session {
	now := time.Now().UTC()
	return &Session{
		ID:            uuid.New().String(),
		ActiveHandler: agent.Triage,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Append adds messages to the history and bumps UpdatedAt.
func (s *Session) Append(msgs ...agent.Message) {
	s.Messages = append(s.Messages, msgs...)
	s.UpdatedAt = time.Now().UTC()
}
