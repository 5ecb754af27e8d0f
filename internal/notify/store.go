package notify

import (
	"context"
	"fmt"

	"github.com/zulandar/sponsormatch/internal/models"
	"gorm.io/gorm"
)

// Store is the in-app notification inbox sink.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Notify writes n as an unread Notification row.
func (s *Store) Notify(ctx context.Context, n Notification) error {
	if n.AccountID == "" {
		return fmt.Errorf("notify: store: account is required")
	}
	row := models.Notification{
		AccountID: n.AccountID,
		Title:     n.Title,
		Message:   n.Message,
		Kind:      n.Kind,
		RelatedID: n.RelatedID,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("notify: store: %w", err)
	}
	return nil
}

// Inbox returns an account's notifications, newest first. When unreadOnly
// is set, read notifications are skipped.
func (s *Store) Inbox(ctx context.Context, accountID string, unreadOnly bool) ([]models.Notification, error) {
	if accountID == "" {
		return nil, fmt.Errorf("notify: accountID is required")
	}
	q := s.db.WithContext(ctx).Where("account_id = ?", accountID)
	if unreadOnly {
		q = q.Where("`read` = ?", false)
	}
	var out []models.Notification
	if err := q.Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("notify: inbox %s: %w", accountID, err)
	}
	return out, nil
}

// MarkRead marks a notification read. Only the owning account may do so.
func (s *Store) MarkRead(ctx context.Context, accountID string, id uint) error {
	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND account_id = ?", id, accountID).
		Update("read", true)
	if result.Error != nil {
		return fmt.Errorf("notify: mark read %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("notify: notification %d: %w", id, models.ErrNotFound)
	}
	return nil
}
