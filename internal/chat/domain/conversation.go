package domain

import (
	"errors"
	"time"

	"marketplace_chat_service/pkg"
)

// ErrConversationNotFound conversation does not exist (never created, or already deleted)
var ErrConversationNotFound = errors.New("conversation not found")

// Conversation definition a chat between participants
type Conversation struct {
	ID           string    `bson:"_id" json:"id"`
	Participants []string  `bson:"participants" json:"participants"`
	CreatedBy    string    `bson:"created_by" json:"created_by"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	LastActiveAt time.Time `bson:"last_active_at" json:"last_active_at"`
	// DrainingSince set while nobody is connected and deletion is pending, cleared on rejoin
	DrainingSince *time.Time `bson:"draining_since,omitempty" json:"draining_since,omitempty"`
}

// HasParticipant check userID is in the participant list
func (c *Conversation) HasParticipant(userID string) bool {
	return pkg.Contains(c.Participants, userID)
}

// AddParticipant append userID when absent, report whether it was added
func (c *Conversation) AddParticipant(userID string) bool {
	if userID == "" || c.HasParticipant(userID) {
		return false
	}
	c.Participants = append(c.Participants, userID)
	return true
}

// Clone deep copy, stores hand out clones so callers never alias internal state
func (c *Conversation) Clone() *Conversation {
	cp := *c
	cp.Participants = append([]string(nil), c.Participants...)
	if c.DrainingSince != nil {
		t := *c.DrainingSince
		cp.DrainingSince = &t
	}
	return &cp
}

// NormalizeParticipants creator first, then others de-duplicated in order, blanks dropped
func NormalizeParticipants(creatorID string, others []string) []string {
	seen := map[string]struct{}{creatorID: {}}
	out := []string{creatorID}
	for _, id := range others {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
