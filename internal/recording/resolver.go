package recording

import (
	"time"

	"github.com/snditnz/verbumcare-demo-sub002/pkg/logger"
)

// DefaultFreshnessWindow is how recent a navigation context must be to be
// trusted over the ambient selected-patient state
const DefaultFreshnessWindow = 10 * time.Second

// Resolver determines whether a new recording is attached to a patient or is
// global. Navigation-context recency wins over the currently selected patient,
// since the latter can be stale left-over state from an unrelated screen.
type Resolver struct {
	freshness time.Duration
	logger    *logger.Logger
}

// NewResolver creates a new context resolver
func NewResolver(freshness time.Duration, log *logger.Logger) *Resolver {
	if freshness <= 0 {
		freshness = DefaultFreshnessWindow
	}
	return &Resolver{
		freshness: freshness,
		logger:    log.Named("ctx-resolver"),
	}
}

// Resolve produces exactly one Context from a possibly-stale navigation
// context and the currently selected patient. Priority order, first match
// wins:
//  1. Fresh navigation context with a patient -> that patient
//  2. Fresh navigation context without a patient -> global, even if a patient
//     is currently selected (a global entry point was used deliberately)
//  3. A currently selected patient -> that patient
//  4. Otherwise -> global
func (r *Resolver) Resolve(nav *NavContext, selected *PatientRef, now time.Time) Context {
	if nav != nil && nav.Age(now) < r.freshness {
		if nav.Patient != nil {
			r.logger.Debug("Resolved patient context from navigation",
				logger.String("patient_id", nav.Patient.PatientID),
				logger.Duration("nav_age", nav.Age(now)))
			return Context{
				Type:        ContextPatient,
				PatientID:   nav.Patient.PatientID,
				PatientName: nav.Patient.PatientName,
				Timestamp:   now,
			}
		}

		r.logger.Debug("Resolved global context from patient-agnostic navigation",
			logger.String("origin", nav.OriginScreen),
			logger.Duration("nav_age", nav.Age(now)))
		return Context{Type: ContextGlobal, Timestamp: now}
	}

	// Navigation context absent or stale; fall back to the selected patient
	if selected != nil {
		r.logger.Debug("Resolved patient context from selected patient",
			logger.String("patient_id", selected.PatientID))
		return Context{
			Type:        ContextPatient,
			PatientID:   selected.PatientID,
			PatientName: selected.PatientName,
			Timestamp:   now,
		}
	}

	r.logger.Debug("Resolved global context (no navigation context, no selected patient)")
	return Context{Type: ContextGlobal, Timestamp: now}
}
