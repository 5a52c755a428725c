// Package events defines the event records emitted by contract entry points
// and the stable ASCII attribute keys agents use to recover values from them.
package events

// Attribute keys. These are part of the wire contract with agents and must
// never change.
const (
	// AttrNodeIndex carries the node index assigned by a dealer registration.
	AttrNodeIndex = "node_index"
	// AttrProposalID carries the id of a proposal opened by a submission.
	AttrProposalID = "proposal_id"
)

// Event types, one per emitting entry point.
const (
	TypeDealerRegistered   = "dealer_registered"
	TypeDealingSubmitted   = "dealing_submitted"
	TypeComplaintSubmitted = "complaint_submitted"
	TypeVKShareSubmitted   = "vk_share_submitted"
	TypeMismatchSubmitted  = "vk_mismatch_submitted"
	TypeProposalVoted      = "proposal_voted"
	TypeProposalExecuted   = "proposal_executed"
	TypeEpochAdvanced      = "epoch_advanced"
)

// Attribute is a single key-value pair attached to an event. Payload values
// are opaque to the coordinator core.
type Attribute struct {
	Key   string
	Value string
}

// Event is emitted by a successfully executed contract entry point.
type Event struct {
	Type       string
	Attributes []Attribute
}

// New constructs an event of the given type.
func New(eventType string) Event {
	return Event{Type: eventType}
}

// With returns a copy of the event with the attribute appended.
func (e Event) With(key, value string) Event {
	e.Attributes = append(e.Attributes, Attribute{Key: key, Value: value})
	return e
}

// Find scans the events for the first attribute with the given key.
func Find(evts []Event, key string) (string, bool) {
	for _, evt := range evts {
		for _, attr := range evt.Attributes {
			if attr.Key == key {
				return attr.Value, true
			}
		}
	}
	return "", false
}
