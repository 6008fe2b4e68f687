package services

// Admin event types pushed to connected staff dashboards.
const (
	EventLeadSubmitted   = "lead_submitted"
	EventImportCompleted = "import_completed"
	EventPaymentRecorded = "payment_recorded"
	EventSupportHandoff  = "support_handoff"
)

// EventPublisher fans out admin events. Publishing never blocks the caller.
type EventPublisher interface {
	Publish(eventType string, data interface{})
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, interface{}) {}

func publisherOrNop(p EventPublisher) EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}
