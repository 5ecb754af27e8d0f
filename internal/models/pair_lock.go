package models

import "time"

// PairLock is the row locked FOR UPDATE while reconciling an unordered pair
// of accounts. PairKey is "min|max" of the two account IDs.
type PairLock struct {
	PairKey   string `gorm:"primaryKey;size:160"`
	UpdatedAt time.Time
}

// RolePairConfig records which two profile roles a reconciliation channel
// connects. Seeded from configuration.
type RolePairConfig struct {
	Kind      string `gorm:"primaryKey;size:32"`
	ASideRole string `gorm:"size:32;not null"`
	BSideRole string `gorm:"size:32;not null"`
}
