package domain

import "time"

// CleanupJob conversation whose deletion has to be retried out of band
type CleanupJob struct {
	ConversationID string    `json:"conversation_id"`
	Attempt        int       `json:"attempt"`
	Reason         string    `json:"reason"`
	EnqueuedAt     time.Time `json:"enqueued_at"`
}
