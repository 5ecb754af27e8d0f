package models

import "time"

// Notification is an in-app notice delivered to an account.
type Notification struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	AccountID string `gorm:"size:64;not null;index"`
	Title     string `gorm:"size:256"`
	Message   string `gorm:"type:text"`
	Kind      string `gorm:"size:32"`
	RelatedID string `gorm:"size:64"`
	Read      bool   `gorm:"default:false;index"`
	CreatedAt time.Time
}
