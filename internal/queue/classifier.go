package queue

import "intake-crm-workers/internal/models"

var (
	completedStatuses = map[models.LeadStatus]bool{
		models.StatusConsultationComplete: true,
		models.StatusTreatmentStarted:     true,
	}

	droppedStatuses = map[models.LeadStatus]bool{
		models.StatusLost:         true,
		models.StatusDisqualified: true,
	}

	activeStatuses = map[models.LeadStatus]bool{
		models.StatusNew:       true,
		models.StatusContacted: true,
		models.StatusScheduled: true,
	}

	contactedOutcomes = map[models.ContactOutcome]bool{
		models.OutcomeAnswered:          true,
		models.OutcomeNoAnswer:          true,
		models.OutcomeUnreachable:       true,
		models.OutcomeCallbackRequested: true,
		models.OutcomeNotInterested:     true,
		models.OutcomeScheduled:         true,
		models.OutcomeCompleted:         true,
	}

	followUpOutcomes = map[models.ContactOutcome]bool{
		models.OutcomeNoAnswer:          true,
		models.OutcomeUnreachable:       true,
		models.OutcomeCallbackRequested: true,
	}

	followUpReasons = map[string]bool{
		models.ReasonNoAnswer:             true,
		models.ReasonNotInterested:        true,
		models.ReasonNoShow:               true,
		models.ReasonCancelledAppointment: true,
	}
)

// IsCompleted reports whether the lead has left the active pipeline through
// a finished consultation or a started treatment.
func IsCompleted(lead models.Lead) bool {
	return completedStatuses[models.NormalizeStatus(lead.Status)]
}

// IsActive reports whether the lead belongs to the active working set. Leads
// with an unrecognized status are not active.
func IsActive(lead models.Lead) bool {
	return activeStatuses[models.NormalizeStatus(lead.Status)]
}

// Classify returns every queue the lead belongs to.
//
// Scheduled leads are only counted in all, scheduled and their priority
// bucket whatever their contact outcome. Completed leads belong to completed
// alone; lost, disqualified and unrecognized statuses belong to nothing.
func Classify(lead models.Lead) Membership {
	status := models.NormalizeStatus(lead.Status)

	switch {
	case completedStatuses[status]:
		return Membership(0).with(Completed)
	case droppedStatuses[status], !activeStatuses[status]:
		return 0
	}

	m := Membership(0).with(All)
	if p, ok := priorityQueue(lead.Priority); ok {
		m = m.with(p)
	}

	if status == models.StatusScheduled {
		return m.with(Scheduled)
	}

	outcome := lead.EffectiveOutcome()
	reason := lead.FollowUpReason

	if status == models.StatusNew && outcome == models.OutcomeNew {
		m = m.with(New)
	}
	if contactedOutcomes[outcome] || status == models.StatusContacted {
		m = m.with(Contacted)
	}
	if followUpOutcomes[outcome] || followUpReasons[reason] {
		m = m.with(FollowUp)
	}
	if outcome == models.OutcomeCallbackRequested || reason == models.ReasonCallbackRequested {
		m = m.with(Callback)
	}
	if outcome == models.OutcomeUnreachable || reason == models.ReasonUnreachable {
		m = m.with(Unreachable)
	}

	return m
}

func priorityQueue(p models.Priority) (ID, bool) {
	switch p {
	case models.PriorityHot:
		return Hot, true
	case models.PriorityMedium:
		return Medium, true
	case models.PriorityLow:
		return Low, true
	default:
		return "", false
	}
}
