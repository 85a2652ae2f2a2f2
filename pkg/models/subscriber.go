package models

// Capability names the event classes a subscriber handle can receive.
type Capability string

const (
	CapabilitySender  Capability = "sender"  // message-level events (actions, reactions)
	CapabilityThread  Capability = "thread"  // thread replies
	CapabilityMention Capability = "mention" // bot mentions
)

// Subscriber is a registered consumer handle. Channel is a scope filter
// used only by mention subscribers: empty matches every channel, a set
// value matches only an identical channel id.
type Subscriber struct {
	ID         string     `json:"id"`
	Capability Capability `json:"capability"`
	Channel    string     `json:"channel,omitempty"`
}
