// Package ledger is the durable record of directed expressions of interest.
//
// Every function takes a *gorm.DB so callers can run it inside their own
// transaction.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/sponsormatch/internal/models"
	"gorm.io/gorm"
)

// InsertOpts holds parameters for inserting a new expression.
type InsertOpts struct {
	Kind          string
	SenderID      string
	SenderRole    string
	ReceiverID    string
	ReceiverRole  string
	ASideEntityID string
	BSideEntityID string
	Status        models.ExpressionStatus // pending (default) or accepted
	Now           time.Time               // defaults to time.Now
}

// ValidTransitions maps each status to the statuses it may move to.
// Rejected and withdrawn are terminal.
var ValidTransitions = map[models.ExpressionStatus][]models.ExpressionStatus{
	models.ExpressionPending:  {models.ExpressionAccepted, models.ExpressionRejected, models.ExpressionWithdrawn},
	models.ExpressionAccepted: {models.ExpressionWithdrawn},
}

// ValidatePairing rejects self-pairing and same-role pairing.
func ValidatePairing(senderID, senderRole, receiverID, receiverRole string) error {
	if senderID == "" || receiverID == "" {
		return fmt.Errorf("ledger: sender and receiver are required: %w", models.ErrInvalidPairing)
	}
	if senderID == receiverID {
		return fmt.Errorf("ledger: sender %s cannot express interest in itself: %w", senderID, models.ErrInvalidPairing)
	}
	if senderRole == "" || receiverRole == "" || senderRole == receiverRole {
		return fmt.Errorf("ledger: roles %q and %q must be distinct: %w", senderRole, receiverRole, models.ErrInvalidPairing)
	}
	return nil
}

// Get loads an expression by ID.
func Get(db *gorm.DB, id string) (*models.Expression, error) {
	var e models.Expression
	if err := db.Where("id = ?", id).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("ledger: expression %s: %w", id, models.ErrNotFound)
		}
		return nil, persistence("get "+id, err)
	}
	return &e, nil
}

// FindActive returns the pending or accepted expression from sender to
// receiver, or nil when there is none.
func FindActive(db *gorm.DB, kind, senderID, receiverID string) (*models.Expression, error) {
	var e models.Expression
	result := db.Where("kind = ? AND sender_id = ? AND receiver_id = ? AND status IN ?",
		kind, senderID, receiverID, models.ActiveStatuses).
		Order("created_at DESC").Limit(1).Find(&e)
	if result.Error != nil {
		return nil, persistence("find active", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &e, nil
}

// FindLatest returns the most recent expression from sender to receiver in
// any status, or nil when the pair has no history.
func FindLatest(db *gorm.DB, kind, senderID, receiverID string) (*models.Expression, error) {
	var e models.Expression
	result := db.Where("kind = ? AND sender_id = ? AND receiver_id = ?", kind, senderID, receiverID).
		Order("created_at DESC").Limit(1).Find(&e)
	if result.Error != nil {
		return nil, persistence("find latest", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &e, nil
}

// Insert records a new expression. It fails with ErrInvalidPairing for
// self or same-role pairs and ErrDuplicateExpression when an active row
// already exists in the same direction.
func Insert(db *gorm.DB, opts InsertOpts) (*models.Expression, error) {
	if err := ValidatePairing(opts.SenderID, opts.SenderRole, opts.ReceiverID, opts.ReceiverRole); err != nil {
		return nil, err
	}
	if opts.Kind == "" {
		return nil, fmt.Errorf("ledger: kind is required")
	}
	status := opts.Status
	if status == "" {
		status = models.ExpressionPending
	}
	if !status.Active() {
		return nil, fmt.Errorf("ledger: cannot insert with status %q: %w", status, models.ErrInvalidTransition)
	}

	existing, err := FindActive(db, opts.Kind, opts.SenderID, opts.ReceiverID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("ledger: %s -> %s already %s (%s): %w",
			opts.SenderID, opts.ReceiverID, existing.Status, existing.ID, models.ErrDuplicateExpression)
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	key := models.ActiveKeyFor(opts.Kind, opts.SenderID, opts.ReceiverID)
	e := models.Expression{
		ID:            uuid.NewString(),
		Kind:          opts.Kind,
		SenderID:      opts.SenderID,
		SenderRole:    opts.SenderRole,
		ReceiverID:    opts.ReceiverID,
		ReceiverRole:  opts.ReceiverRole,
		ASideEntityID: opts.ASideEntityID,
		BSideEntityID: opts.BSideEntityID,
		Status:        status,
		ActiveKey:     &key,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := db.Create(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("ledger: %s -> %s: %w", opts.SenderID, opts.ReceiverID, models.ErrDuplicateExpression)
		}
		return nil, persistence("insert", err)
	}
	return &e, nil
}

// UpdateStatus transitions an expression. Moving to the current status is a
// no-op; anything outside ValidTransitions fails with ErrInvalidTransition.
// The write is guarded on the previous status, so a concurrent transition
// surfaces as ErrInvalidTransition rather than being overwritten. now is
// recorded as the row's updated_at.
func UpdateStatus(db *gorm.DB, id string, to models.ExpressionStatus, now time.Time) (*models.Expression, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("ledger: unknown status %q: %w", to, models.ErrInvalidTransition)
	}
	e, err := Get(db, id)
	if err != nil {
		return nil, err
	}
	if e.Status == to {
		return e, nil
	}
	if !isValidTransition(e.Status, to) {
		return nil, fmt.Errorf("ledger: expression %s: %q -> %q: %w", id, e.Status, to, models.ErrInvalidTransition)
	}

	updates := map[string]interface{}{
		"status":     to,
		"updated_at": now,
	}
	if to.Terminal() {
		updates["active_key"] = nil
	}
	result := db.Model(&models.Expression{}).
		Where("id = ? AND status = ?", id, e.Status).
		Updates(updates)
	if result.Error != nil {
		return nil, persistence("update "+id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("ledger: expression %s changed concurrently: %w", id, models.ErrInvalidTransition)
	}
	return Get(db, id)
}

// isValidTransition checks whether a status transition is allowed.
func isValidTransition(from, to models.ExpressionStatus) bool {
	for _, s := range ValidTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func persistence(op string, err error) error {
	return fmt.Errorf("ledger: %s: %w: %w", op, models.ErrPersistence, err)
}
