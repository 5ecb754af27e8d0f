package ledger

import (
	"github.com/zulandar/sponsormatch/internal/models"
	"gorm.io/gorm"
)

// Counts summarizes one direction of an account's expressions for the
// dashboard tiles.
type Counts struct {
	Pending   int64 `json:"pending"`
	Accepted  int64 `json:"accepted"`
	Rejected  int64 `json:"rejected"`
	Withdrawn int64 `json:"withdrawn"`
	Total     int64 `json:"total"`
}

// Pair is an ordered (sender, receiver) pair of accounts.
type Pair struct {
	SenderID   string
	ReceiverID string
}

// Sent lists expressions sent by an account, newest first. With no statuses
// every row is returned.
func Sent(db *gorm.DB, kind, senderID string, statuses ...models.ExpressionStatus) ([]models.Expression, error) {
	q := db.Where("kind = ? AND sender_id = ?", kind, senderID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var out []models.Expression
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, persistence("list sent", err)
	}
	return out, nil
}

// Received lists expressions received by an account, newest first.
func Received(db *gorm.DB, kind, receiverID string, statuses ...models.ExpressionStatus) ([]models.Expression, error) {
	q := db.Where("kind = ? AND receiver_id = ?", kind, receiverID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var out []models.Expression
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, persistence("list received", err)
	}
	return out, nil
}

// ActiveFromTo returns active expressions sent by senderID to any of
// receiverIDs, in one query.
func ActiveFromTo(db *gorm.DB, kind, senderID string, receiverIDs []string) ([]models.Expression, error) {
	if len(receiverIDs) == 0 {
		return nil, nil
	}
	var out []models.Expression
	err := db.Where("kind = ? AND sender_id = ? AND receiver_id IN ? AND status IN ?",
		kind, senderID, receiverIDs, models.ActiveStatuses).Find(&out).Error
	if err != nil {
		return nil, persistence("active sent batch", err)
	}
	return out, nil
}

// ActiveToFrom returns active expressions received by receiverID from any of
// senderIDs, in one query.
func ActiveToFrom(db *gorm.DB, kind, receiverID string, senderIDs []string) ([]models.Expression, error) {
	if len(senderIDs) == 0 {
		return nil, nil
	}
	var out []models.Expression
	err := db.Where("kind = ? AND receiver_id = ? AND sender_id IN ? AND status IN ?",
		kind, receiverID, senderIDs, models.ActiveStatuses).Find(&out).Error
	if err != nil {
		return nil, persistence("active received batch", err)
	}
	return out, nil
}

// IsMutual reports whether active expressions exist in both directions
// between u and v within kind. It is always computed from the ledger.
func IsMutual(db *gorm.DB, kind, u, v string) (bool, error) {
	if u == v {
		return false, nil
	}
	var n int64
	err := db.Model(&models.Expression{}).
		Where("kind = ? AND status IN ?", kind, models.ActiveStatuses).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", u, v, v, u).
		Distinct("sender_id").Count(&n).Error
	if err != nil {
		return false, persistence("mutuality", err)
	}
	return n == 2, nil
}

// MutualKinds returns the kinds in which u and v are currently mutual.
func MutualKinds(db *gorm.DB, u, v string) ([]string, error) {
	if u == v {
		return nil, nil
	}
	var rows []models.Expression
	err := db.Select("kind", "sender_id").
		Where("status IN ?", models.ActiveStatuses).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", u, v, v, u).
		Find(&rows).Error
	if err != nil {
		return nil, persistence("mutual kinds", err)
	}
	fromU := make(map[string]bool)
	fromV := make(map[string]bool)
	for _, r := range rows {
		if r.SenderID == u {
			fromU[r.Kind] = true
		} else {
			fromV[r.Kind] = true
		}
	}
	var kinds []string
	for k := range fromU {
		if fromV[k] {
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}

// CountsSent aggregates an account's sent expressions by status.
func CountsSent(db *gorm.DB, kind, accountID string) (Counts, error) {
	return countBy(db, kind, "sender_id", accountID)
}

// CountsReceived aggregates an account's received expressions by status.
func CountsReceived(db *gorm.DB, kind, accountID string) (Counts, error) {
	return countBy(db, kind, "receiver_id", accountID)
}

func countBy(db *gorm.DB, kind, column, accountID string) (Counts, error) {
	var rows []struct {
		Status models.ExpressionStatus
		N      int64
	}
	err := db.Model(&models.Expression{}).
		Select("status, COUNT(*) AS n").
		Where("kind = ? AND "+column+" = ?", kind, accountID).
		Group("status").Scan(&rows).Error
	if err != nil {
		return Counts{}, persistence("counts", err)
	}
	var c Counts
	for _, r := range rows {
		switch r.Status {
		case models.ExpressionPending:
			c.Pending = r.N
		case models.ExpressionAccepted:
			c.Accepted = r.N
		case models.ExpressionRejected:
			c.Rejected = r.N
		case models.ExpressionWithdrawn:
			c.Withdrawn = r.N
		}
		c.Total += r.N
	}
	return c, nil
}

// ActivePairs returns each unordered pair of accounts with active
// expressions in both directions, once, with SenderID < ReceiverID.
func ActivePairs(db *gorm.DB, kind string) ([]Pair, error) {
	var out []Pair
	err := db.Table("expressions AS a").
		Select("a.sender_id AS sender_id, a.receiver_id AS receiver_id").
		Joins("JOIN expressions AS b ON b.sender_id = a.receiver_id AND b.receiver_id = a.sender_id AND b.kind = a.kind").
		Where("a.kind = ? AND a.status IN ? AND b.status IN ? AND a.sender_id < a.receiver_id",
			kind, models.ActiveStatuses, models.ActiveStatuses).
		Order("a.sender_id, a.receiver_id").
		Scan(&out).Error
	if err != nil {
		return nil, persistence("active pairs", err)
	}
	return out, nil
}
