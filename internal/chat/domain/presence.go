package domain

// PresenceState lifecycle of a tracked conversation
type PresenceState string

const (
	// PresenceUntracked no record in the engine
	PresenceUntracked PresenceState = "untracked"
	// PresenceActive at least one connected participant
	PresenceActive PresenceState = "active"
	// PresenceDraining nobody connected, deletion timer armed
	PresenceDraining PresenceState = "draining"
	// PresenceDeleting timer fired, cascade delete in flight
	PresenceDeleting PresenceState = "deleting"
)

// PresenceSnapshot point-in-time copy of a presence record
type PresenceSnapshot struct {
	ConversationID string        `json:"conversation_id"`
	State          PresenceState `json:"state"`
	Users          []string      `json:"users"`
}
