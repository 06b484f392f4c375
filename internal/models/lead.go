// internal/models/lead.go
package models

import (
	"strings"
	"time"
)

type LeadStatus string

const (
	StatusNew                  LeadStatus = "new"
	StatusContacted            LeadStatus = "contacted"
	StatusScheduled            LeadStatus = "scheduled"
	StatusConsultationComplete LeadStatus = "consultation-complete"
	StatusTreatmentStarted     LeadStatus = "treatment-started"
	StatusLost                 LeadStatus = "lost"
	StatusDisqualified         LeadStatus = "disqualified"
)

type ContactOutcome string

// Contact outcomes as reported by the call-center backend. An empty value
// means no attempt has been recorded and is read as OutcomeNew.
const (
	OutcomeNew               ContactOutcome = "NEW"
	OutcomeAnswered          ContactOutcome = "ANSWERED"
	OutcomeNoAnswer          ContactOutcome = "NO_ANSWER"
	OutcomeUnreachable       ContactOutcome = "UNREACHABLE"
	OutcomeCallbackRequested ContactOutcome = "CALLBACK_REQUESTED"
	OutcomeScheduled         ContactOutcome = "SCHEDULED"
	OutcomeCompleted         ContactOutcome = "COMPLETED"
	OutcomeNotInterested     ContactOutcome = "NOT_INTERESTED"
)

type Priority string

const (
	PriorityHot    Priority = "hot"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Follow-up reasons set by the consultation-outcome workflow
const (
	ReasonNoAnswer             = "No Answer"
	ReasonNotInterested        = "Not Interested"
	ReasonNoShow               = "No Show"
	ReasonCancelledAppointment = "Cancelled Appointment"
	ReasonCallbackRequested    = "Callback Requested"
	ReasonUnreachable          = "Unreachable"
)

// Lead is a patient intake record as owned by the CRM backend.
type Lead struct {
	ID                string         `json:"id"`
	FirstName         string         `json:"firstName,omitempty"`
	LastName          string         `json:"lastName,omitempty"`
	Email             string         `json:"email,omitempty"`
	Phone             string         `json:"phone,omitempty"`
	Status            LeadStatus     `json:"status"`
	ContactOutcome    ContactOutcome `json:"contactOutcome,omitempty"`
	FollowUpReason    string         `json:"followUpReason,omitempty"`
	Priority          Priority       `json:"priority,omitempty"`
	Source            string         `json:"source,omitempty"`
	ReferringProvider string         `json:"referringProvider,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// EffectiveOutcome returns the contact outcome, reading an absent value as NEW.
func (l Lead) EffectiveOutcome() ContactOutcome {
	if l.ContactOutcome == "" {
		return OutcomeNew
	}
	return l.ContactOutcome
}

// NormalizeStatus folds case, spaces and underscores so that legacy values
// such as "consultation complete" map onto the canonical status. Values that
// do not match a known status are returned unchanged.
func NormalizeStatus(s LeadStatus) LeadStatus {
	folded := strings.ToLower(strings.TrimSpace(string(s)))
	folded = strings.NewReplacer(" ", "-", "_", "-").Replace(folded)

	if isCanonical(LeadStatus(folded)) {
		return LeadStatus(folded)
	}
	return s
}

func (s LeadStatus) IsKnown() bool {
	return isCanonical(NormalizeStatus(s))
}

func isCanonical(s LeadStatus) bool {
	switch s {
	case StatusNew, StatusContacted, StatusScheduled,
		StatusConsultationComplete, StatusTreatmentStarted,
		StatusLost, StatusDisqualified:
		return true
	}
	return false
}
