package models

import "time"

// Conversation is the communication channel for an entity pair. Once
// Archived is set, ReadOnly is set as well and neither is ever cleared.
type Conversation struct {
	ID            string `gorm:"primaryKey;size:36"`
	ASideEntityID string `gorm:"size:64;not null;uniqueIndex:idx_conversation_pair,priority:1"`
	BSideEntityID string `gorm:"size:64;not null;uniqueIndex:idx_conversation_pair,priority:2;index"`
	Archived      bool   `gorm:"default:false;index"`
	ReadOnly      bool   `gorm:"default:false"`
	ArchivedAt    *time.Time
	ArchivedBy    string `gorm:"size:64"`
	CreatedAt     time.Time

	Messages []Message `gorm:"foreignKey:ConversationID"`
}

// Message is a single entry in a Conversation.
type Message struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	ConversationID  string `gorm:"size:36;not null;index"`
	SenderAccountID string `gorm:"size:64;not null"`
	Body            string `gorm:"type:text"`
	CreatedAt       time.Time
}
