package domain

import "time"

// Report a participant flagged a conversation; the transcript is frozen at submit time
type Report struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ConversationID string    `gorm:"type:varchar(64);not null;index" json:"conversation_id"`
	ReporterID     string    `gorm:"type:varchar(64);not null;index" json:"reporter_id"`
	Reason         string    `gorm:"type:text" json:"reason,omitempty"`
	DocumentKey    string    `gorm:"type:text;not null" json:"document_key"`
	DocumentSHA256 string    `gorm:"type:char(64);not null" json:"document_sha256"`
	CreatedAt      time.Time `gorm:"not null;index" json:"created_at"`
}

// TableName gorm table
func (Report) TableName() string {
	return "chat_reports"
}

// ReportEvent published for the moderation collaborator
type ReportEvent struct {
	Type           string    `json:"type"`
	ReportID       string    `json:"report_id"`
	ConversationID string    `json:"conversation_id"`
	ReporterID     string    `json:"reporter_id"`
	Reason         string    `json:"reason,omitempty"`
	DocumentKey    string    `json:"document_key"`
	CreatedAt      time.Time `json:"created_at"`
}

// ReportSubmitted event type
const ReportSubmitted = "report.submitted"
