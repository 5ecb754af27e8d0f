// Package identity resolves business-entity profiles to the accounts that
// own them and back.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/sponsormatch/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Resolver maps profiles (A-side/B-side entities) to accounts.
type Resolver interface {
	// Profile returns the entity with the given ID.
	Profile(ctx context.Context, entityID string) (*models.Profile, error)
	// ProfileFor returns the account's profile for a role.
	ProfileFor(ctx context.Context, accountID, role string) (*models.Profile, error)
	// Profiles returns the known entities among ids, keyed by entity ID.
	Profiles(ctx context.Context, entityIDs []string) (map[string]models.Profile, error)
	// ProfilesOf returns every profile owned by an account.
	ProfilesOf(ctx context.Context, accountID string) ([]models.Profile, error)
	// DisplayName returns a human-readable name for an account.
	DisplayName(ctx context.Context, accountID string) (string, error)
}

// Store is a Resolver backed by the profiles table.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Upsert creates or updates a profile keyed by ID. Only the display name and
// keywords of an existing profile change; account and role are fixed once
// created. The stored row is returned.
func (s *Store) Upsert(ctx context.Context, p models.Profile) (*models.Profile, error) {
	if p.ID == "" || p.AccountID == "" || p.Role == "" {
		return nil, fmt.Errorf("identity: id, account and role are required")
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "keywords", "updated_at"}),
	}).Create(&p)
	if result.Error != nil {
		return nil, fmt.Errorf("identity: upsert profile %s: %w: %w", p.ID, models.ErrPersistence, result.Error)
	}
	return s.Profile(ctx, p.ID)
}

// Profile returns the profile with the given entity ID, or ErrNotFound.
func (s *Store) Profile(ctx context.Context, entityID string) (*models.Profile, error) {
	var p models.Profile
	if err := s.db.WithContext(ctx).Where("id = ?", entityID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("identity: profile %s: %w", entityID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("identity: get profile %s: %w: %w", entityID, models.ErrPersistence, err)
	}
	return &p, nil
}

// ProfileFor returns the account's profile for role, or ErrNotFound.
func (s *Store) ProfileFor(ctx context.Context, accountID, role string) (*models.Profile, error) {
	var p models.Profile
	err := s.db.WithContext(ctx).Where("account_id = ? AND role = ?", accountID, role).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("identity: no %s profile for account %s: %w", role, accountID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("identity: profile for %s/%s: %w: %w", accountID, role, models.ErrPersistence, err)
	}
	return &p, nil
}

// Profiles returns the known profiles among entityIDs keyed by ID. Unknown
// IDs are left out.
func (s *Store) Profiles(ctx context.Context, entityIDs []string) (map[string]models.Profile, error) {
	out := make(map[string]models.Profile, len(entityIDs))
	if len(entityIDs) == 0 {
		return out, nil
	}
	var rows []models.Profile
	if err := s.db.WithContext(ctx).Where("id IN ?", entityIDs).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("identity: list profiles: %w: %w", models.ErrPersistence, err)
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}

// ProfilesOf returns every profile the account owns, ordered by role.
func (s *Store) ProfilesOf(ctx context.Context, accountID string) ([]models.Profile, error) {
	var rows []models.Profile
	if err := s.db.WithContext(ctx).Where("account_id = ?", accountID).Order("role").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("identity: profiles of %s: %w: %w", accountID, models.ErrPersistence, err)
	}
	return rows, nil
}

// DisplayName prefers any profile's display name and falls back to the
// account ID itself.
func (s *Store) DisplayName(ctx context.Context, accountID string) (string, error) {
	var p models.Profile
	result := s.db.WithContext(ctx).Where("account_id = ? AND display_name <> ?", accountID, "").
		Order("role").Limit(1).Find(&p)
	if result.Error != nil {
		return "", fmt.Errorf("identity: display name %s: %w: %w", accountID, models.ErrPersistence, result.Error)
	}
	if result.RowsAffected == 0 {
		return accountID, nil
	}
	return p.DisplayName, nil
}
