// Package matches is the registry of confirmed entity pairings.
package matches

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/sponsormatch/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Get loads a match by ID.
func Get(db *gorm.DB, id string) (*models.Match, error) {
	var m models.Match
	if err := db.Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("matches: match %s: %w", id, models.ErrNotFound)
		}
		return nil, persistence("get "+id, err)
	}
	return &m, nil
}

// FindByPair returns the match for an entity pair, or nil when none exists.
func FindByPair(db *gorm.DB, aSideEntityID, bSideEntityID string) (*models.Match, error) {
	var m models.Match
	result := db.Where("a_side_entity_id = ? AND b_side_entity_id = ?", aSideEntityID, bSideEntityID).
		Limit(1).Find(&m)
	if result.Error != nil {
		return nil, persistence("find pair", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &m, nil
}

// UpsertMutual records that the pair became mutual. A missing row is created
// with manual provenance; an existing row is re-activated and its provenance
// strengthened (suggested becomes hybrid). An accepted row whose provenance
// would not change is left untouched. The returned bool reports whether the
// match was not already accepted.
func UpsertMutual(db *gorm.DB, aSideEntityID, bSideEntityID string, now time.Time) (*models.Match, bool, error) {
	m, err := FindByPair(db, aSideEntityID, bSideEntityID)
	if err != nil {
		return nil, false, err
	}
	if m == nil {
		m = &models.Match{
			ID:            uuid.NewString(),
			ASideEntityID: aSideEntityID,
			BSideEntityID: bSideEntityID,
			Reasons:       datatypes.JSON("[]"),
			Status:        models.MatchAccepted,
			Provenance:    models.ProvenanceManual,
			AcceptedAt:    &now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		err := db.Create(m).Error
		if err == nil {
			return m, true, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, false, persistence("create mutual", err)
		}
		// Lost a race with another writer for the same pair; fall through and
		// update the row it created.
		if m, err = FindByPair(db, aSideEntityID, bSideEntityID); err != nil {
			return nil, false, err
		}
		if m == nil {
			return nil, false, fmt.Errorf("matches: pair %s/%s vanished after conflict: %w", aSideEntityID, bSideEntityID, models.ErrPersistence)
		}
	}

	wasAccepted := m.Status == models.MatchAccepted
	provenance := m.Provenance.Strengthen(models.ProvenanceManual)
	if wasAccepted && provenance == m.Provenance {
		return m, false, nil
	}
	updates := map[string]interface{}{
		"status":     models.MatchAccepted,
		"provenance": provenance,
		"updated_at": now,
	}
	if !wasAccepted {
		updates["accepted_at"] = now
	}
	if err := db.Model(&models.Match{}).Where("id = ?", m.ID).Updates(updates).Error; err != nil {
		return nil, false, persistence("upsert mutual "+m.ID, err)
	}
	m.Status = models.MatchAccepted
	m.Provenance = provenance
	if !wasAccepted {
		m.AcceptedAt = &now
	}
	return m, !wasAccepted, nil
}

// Suggest records an algorithmic suggestion for a pair. The score must be
// positive; a zero score is reserved for manual matches. New rows are
// pending with suggested provenance. Existing rows keep their status and
// have score and reasons refreshed; a manual match becomes hybrid.
func Suggest(db *gorm.DB, aSideEntityID, bSideEntityID string, score float64, reasons []string) (*models.Match, error) {
	if aSideEntityID == "" || bSideEntityID == "" {
		return nil, fmt.Errorf("matches: both entities are required: %w", models.ErrInvalidPairing)
	}
	if score <= 0 {
		return nil, fmt.Errorf("matches: suggestion score must be positive, got %v", score)
	}
	if reasons == nil {
		reasons = []string{}
	}
	raw, err := json.Marshal(reasons)
	if err != nil {
		return nil, fmt.Errorf("matches: marshal reasons: %w", err)
	}

	var out *models.Match
	err = db.Transaction(func(tx *gorm.DB) error {
		m, err := FindByPair(tx, aSideEntityID, bSideEntityID)
		if err != nil {
			return err
		}
		if m == nil {
			m = &models.Match{
				ID:            uuid.NewString(),
				ASideEntityID: aSideEntityID,
				BSideEntityID: bSideEntityID,
				Score:         score,
				Reasons:       datatypes.JSON(raw),
				Status:        models.MatchPending,
				Provenance:    models.ProvenanceSuggested,
			}
			if err := tx.Create(m).Error; err != nil {
				return persistence("create suggestion", err)
			}
			out = m
			return nil
		}

		provenance := m.Provenance.Strengthen(models.ProvenanceSuggested)
		if err := tx.Model(&models.Match{}).Where("id = ?", m.ID).Updates(map[string]interface{}{
			"score":      score,
			"reasons":    datatypes.JSON(raw),
			"provenance": provenance,
		}).Error; err != nil {
			return persistence("update suggestion "+m.ID, err)
		}
		m.Score = score
		m.Reasons = datatypes.JSON(raw)
		m.Provenance = provenance
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Deactivate marks the pair's match inactive. Only pending or accepted
// matches change; the returned bool reports whether a row was updated.
func Deactivate(db *gorm.DB, aSideEntityID, bSideEntityID string, now time.Time) (bool, error) {
	result := db.Model(&models.Match{}).
		Where("a_side_entity_id = ? AND b_side_entity_id = ? AND status IN ?",
			aSideEntityID, bSideEntityID, []models.MatchStatus{models.MatchPending, models.MatchAccepted}).
		Updates(map[string]interface{}{
			"status":     models.MatchInactive,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, persistence("deactivate", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// HasAccepted reports whether the pair has an accepted match.
func HasAccepted(db *gorm.DB, aSideEntityID, bSideEntityID string) (bool, error) {
	var n int64
	err := db.Model(&models.Match{}).
		Where("a_side_entity_id = ? AND b_side_entity_id = ? AND status = ?",
			aSideEntityID, bSideEntityID, models.MatchAccepted).
		Count(&n).Error
	if err != nil {
		return false, persistence("has accepted", err)
	}
	return n > 0, nil
}

// ListFor returns matches involving an entity on either side, newest first.
// With no statuses every row is returned.
func ListFor(db *gorm.DB, entityID string, statuses ...models.MatchStatus) ([]models.Match, error) {
	q := db.Where("(a_side_entity_id = ? OR b_side_entity_id = ?)", entityID, entityID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var out []models.Match
	if err := q.Order("updated_at DESC").Find(&out).Error; err != nil {
		return nil, persistence("list for "+entityID, err)
	}
	return out, nil
}

// Reasons decodes a match's reasons column.
func Reasons(m *models.Match) ([]string, error) {
	if len(m.Reasons) == 0 {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(m.Reasons, &out); err != nil {
		return nil, fmt.Errorf("matches: decode reasons for %s: %w", m.ID, err)
	}
	return out, nil
}

func persistence(op string, err error) error {
	return fmt.Errorf("matches: %s: %w: %w", op, models.ErrPersistence, err)
}
