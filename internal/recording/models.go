package recording

import "time"

// ContextType indicates whether a recording is tied to a patient
type ContextType string

const (
	// ContextPatient means the recording is attached to a specific patient
	ContextPatient ContextType = "patient"
	// ContextGlobal means the recording is unattached
	ContextGlobal ContextType = "global"
)

// PatientRef identifies a patient for context resolution
type PatientRef struct {
	PatientID   string `json:"patient_id"`
	PatientName string `json:"patient_name"`
}

// NavContext is the short-lived navigation context carried between screens.
// It may or may not embed a patient reference.
type NavContext struct {
	OriginScreen string      `json:"origin_screen"`
	Patient      *PatientRef `json:"patient_context,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
}

// Age returns how old the navigation context is at the given time
func (n *NavContext) Age(now time.Time) time.Duration {
	return now.Sub(n.Timestamp)
}

// Context is the resolved recording context, consumed once at upload time
type Context struct {
	Type        ContextType `json:"type"`
	PatientID   string      `json:"patient_id,omitempty"`
	PatientName string      `json:"patient_name,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// IsPatient reports whether the context is attached to a patient
func (c Context) IsPatient() bool {
	return c.Type == ContextPatient
}

// Take is a finished local recording produced by the capture unit
type Take struct {
	LocalPath  string
	DurationMs int64
}
