package models

import "time"

// ExpressionStatus is the lifecycle state of an Expression.
type ExpressionStatus string

const (
	ExpressionPending   ExpressionStatus = "pending"
	ExpressionAccepted  ExpressionStatus = "accepted"
	ExpressionRejected  ExpressionStatus = "rejected"
	ExpressionWithdrawn ExpressionStatus = "withdrawn"
)

// ActiveStatuses lists the statuses that count toward mutuality and block a
// second expression in the same direction.
var ActiveStatuses = []ExpressionStatus{ExpressionPending, ExpressionAccepted}

// Active reports whether s is pending or accepted.
func (s ExpressionStatus) Active() bool {
	return s == ExpressionPending || s == ExpressionAccepted
}

// Terminal reports whether no further transition is possible from s.
func (s ExpressionStatus) Terminal() bool {
	return s == ExpressionRejected || s == ExpressionWithdrawn
}

// Valid reports whether s is one of the known statuses.
func (s ExpressionStatus) Valid() bool {
	switch s {
	case ExpressionPending, ExpressionAccepted, ExpressionRejected, ExpressionWithdrawn:
		return true
	}
	return false
}

// Expression is a directed signal of interest from a sender account to a
// receiver account. Rows are never deleted.
//
// ActiveKey is non-nil only while the row is pending or accepted; its unique
// index keeps at most one active row per (kind, sender, receiver).
type Expression struct {
	ID            string           `gorm:"primaryKey;size:36"`
	Kind          string           `gorm:"size:32;not null;index:idx_expr_sender,priority:2;index:idx_expr_receiver,priority:2"`
	SenderID      string           `gorm:"size:64;not null;index:idx_expr_sender,priority:1"`
	SenderRole    string           `gorm:"size:32;not null"`
	ReceiverID    string           `gorm:"size:64;not null;index:idx_expr_receiver,priority:1"`
	ReceiverRole  string           `gorm:"size:32;not null"`
	ASideEntityID string           `gorm:"size:64;not null;index"`
	BSideEntityID string           `gorm:"size:64;not null;index"`
	Status        ExpressionStatus `gorm:"size:16;not null;default:pending;index"`
	ActiveKey     *string          `gorm:"size:200;uniqueIndex"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ActiveKeyFor builds the uniqueness key for an active expression.
func ActiveKeyFor(kind, senderID, receiverID string) string {
	return kind + "|" + senderID + "|" + receiverID
}
