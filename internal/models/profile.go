package models

import "time"

// Profile is a business entity (brand or event organizer) owned by an account.
type Profile struct {
	ID          string `gorm:"primaryKey;size:64"`
	Role        string `gorm:"size:32;not null;uniqueIndex:idx_profile_account_role,priority:2"`
	AccountID   string `gorm:"size:64;not null;uniqueIndex:idx_profile_account_role,priority:1"`
	DisplayName string `gorm:"size:128"`
	Keywords    string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
