package models

import (
	"time"

	"gorm.io/datatypes"
)

// MatchStatus is the lifecycle state of a Match.
type MatchStatus string

const (
	MatchPending  MatchStatus = "pending"
	MatchAccepted MatchStatus = "accepted"
	MatchRejected MatchStatus = "rejected"
	MatchInactive MatchStatus = "inactive"
)

// Provenance records where a Match came from.
type Provenance string

const (
	ProvenanceSuggested Provenance = "suggested"
	ProvenanceManual    Provenance = "manual"
	ProvenanceHybrid    Provenance = "hybrid"
)

// Strengthen returns the provenance after a new origin is observed. It
// never weakens: anything combined with a different origin becomes hybrid.
func (p Provenance) Strengthen(origin Provenance) Provenance {
	switch {
	case p == "":
		return origin
	case p == origin:
		return p
	default:
		return ProvenanceHybrid
	}
}

// Match is the confirmed, symmetric pairing of an A-side and a B-side entity.
// There is at most one row per entity pair; withdrawal marks it inactive.
type Match struct {
	ID            string         `gorm:"primaryKey;size:36"`
	ASideEntityID string         `gorm:"size:64;not null;uniqueIndex:idx_match_pair,priority:1"`
	BSideEntityID string         `gorm:"size:64;not null;uniqueIndex:idx_match_pair,priority:2;index"`
	Score         float64        `gorm:"default:0"`
	Reasons       datatypes.JSON `gorm:"type:json"`
	Status        MatchStatus    `gorm:"size:16;not null;default:pending;index"`
	Provenance    Provenance     `gorm:"size:16;not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	AcceptedAt    *time.Time
}
