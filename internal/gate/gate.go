// Package gate decides whether two parties may talk and owns the
// conversations between them.
package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/sponsormatch/internal/identity"
	"github.com/zulandar/sponsormatch/internal/ledger"
	"github.com/zulandar/sponsormatch/internal/matches"
	"github.com/zulandar/sponsormatch/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Gate guards conversation access for entity pairs.
type Gate struct {
	db  *gorm.DB
	ids identity.Resolver
	now func() time.Time
}

// New creates a Gate.
func New(db *gorm.DB, ids identity.Resolver) *Gate {
	return &Gate{db: db, ids: ids, now: time.Now}
}

// pair holds the accounts behind an entity pair.
type pair struct {
	aSide, bSide models.Profile
}

func (p pair) has(accountID string) bool {
	return accountID != "" && (p.aSide.AccountID == accountID || p.bSide.AccountID == accountID)
}

func (g *Gate) resolve(ctx context.Context, aSideEntityID, bSideEntityID string) (pair, error) {
	profiles, err := g.ids.Profiles(ctx, []string{aSideEntityID, bSideEntityID})
	if err != nil {
		return pair{}, err
	}
	a, ok := profiles[aSideEntityID]
	if !ok {
		return pair{}, fmt.Errorf("gate: entity %s: %w", aSideEntityID, models.ErrNotFound)
	}
	b, ok := profiles[bSideEntityID]
	if !ok {
		return pair{}, fmt.Errorf("gate: entity %s: %w", bSideEntityID, models.ErrNotFound)
	}
	return pair{aSide: a, bSide: b}, nil
}

// CanCommunicate reports whether the pair has an accepted match or the
// accounts behind it are currently mutual in any channel.
func (g *Gate) CanCommunicate(ctx context.Context, aSideEntityID, bSideEntityID string) (bool, error) {
	ok, err := matches.HasAccepted(g.db.WithContext(ctx), aSideEntityID, bSideEntityID)
	if err != nil || ok {
		return ok, err
	}
	p, err := g.resolve(ctx, aSideEntityID, bSideEntityID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	kinds, err := ledger.MutualKinds(g.db.WithContext(ctx), p.aSide.AccountID, p.bSide.AccountID)
	if err != nil {
		return false, err
	}
	return len(kinds) > 0, nil
}

// GetOrCreate returns the pair's conversation, creating it when the pair may
// communicate. An archived conversation is always returned, read-only.
func (g *Gate) GetOrCreate(ctx context.Context, actorID, aSideEntityID, bSideEntityID string) (*models.Conversation, error) {
	p, err := g.resolve(ctx, aSideEntityID, bSideEntityID)
	if err != nil {
		return nil, err
	}
	if !p.has(actorID) {
		return nil, fmt.Errorf("gate: %s is not part of %s/%s: %w", actorID, aSideEntityID, bSideEntityID, models.ErrAccessDenied)
	}

	existing, err := FindByPair(g.db.WithContext(ctx), aSideEntityID, bSideEntityID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Archived {
		return existing, nil
	}

	ok, err := g.CanCommunicate(ctx, aSideEntityID, bSideEntityID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("gate: %s/%s: %w", aSideEntityID, bSideEntityID, models.ErrAccessDenied)
	}
	if existing != nil {
		return existing, nil
	}
	conv, _, err := Ensure(g.db.WithContext(ctx), aSideEntityID, bSideEntityID, g.now())
	return conv, err
}

// SendMessage appends a message to a conversation the actor takes part in.
func (g *Gate) SendMessage(ctx context.Context, actorID, conversationID, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("gate: message body is required")
	}
	conv, err := g.participantConversation(ctx, actorID, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.ReadOnly {
		return nil, fmt.Errorf("gate: conversation %s: %w", conv.ID, models.ErrReadOnlyConversation)
	}
	msg := models.Message{
		ConversationID:  conv.ID,
		SenderAccountID: actorID,
		Body:            body,
		CreatedAt:       g.now(),
	}
	if err := g.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, persistence("send message", err)
	}
	return &msg, nil
}

// Messages returns a conversation's messages, oldest first. Archived
// conversations stay readable.
func (g *Gate) Messages(ctx context.Context, actorID, conversationID string) ([]models.Message, error) {
	conv, err := g.participantConversation(ctx, actorID, conversationID)
	if err != nil {
		return nil, err
	}
	var out []models.Message
	if err := g.db.WithContext(ctx).Where("conversation_id = ?", conv.ID).
		Order("created_at, id").Find(&out).Error; err != nil {
		return nil, persistence("messages "+conv.ID, err)
	}
	return out, nil
}

// ListFor returns the conversations involving any of an account's profiles.
func (g *Gate) ListFor(ctx context.Context, accountID string) ([]models.Conversation, error) {
	profiles, err := g.ids.ProfilesOf(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, nil
	}
	ids := make([]string, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
	}
	var out []models.Conversation
	if err := g.db.WithContext(ctx).
		Where("a_side_entity_id IN ? OR b_side_entity_id IN ?", ids, ids).
		Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, persistence("list for "+accountID, err)
	}
	return out, nil
}

func (g *Gate) participantConversation(ctx context.Context, actorID, conversationID string) (*models.Conversation, error) {
	conv, err := Get(g.db.WithContext(ctx), conversationID)
	if err != nil {
		return nil, err
	}
	p, err := g.resolve(ctx, conv.ASideEntityID, conv.BSideEntityID)
	if err != nil {
		return nil, err
	}
	if !p.has(actorID) {
		return nil, fmt.Errorf("gate: %s is not part of conversation %s: %w", actorID, conv.ID, models.ErrAccessDenied)
	}
	return conv, nil
}

// Get loads a conversation by ID.
func Get(db *gorm.DB, id string) (*models.Conversation, error) {
	var c models.Conversation
	if err := db.Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("gate: conversation %s: %w", id, models.ErrNotFound)
		}
		return nil, persistence("get "+id, err)
	}
	return &c, nil
}

// FindByPair returns the pair's conversation, or nil when none exists.
func FindByPair(db *gorm.DB, aSideEntityID, bSideEntityID string) (*models.Conversation, error) {
	var c models.Conversation
	result := db.Where("a_side_entity_id = ? AND b_side_entity_id = ?", aSideEntityID, bSideEntityID).
		Limit(1).Find(&c)
	if result.Error != nil {
		return nil, persistence("find pair", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &c, nil
}

// Ensure creates the pair's conversation if it does not exist. An existing
// conversation is returned as is, archived or not. The bool reports whether
// a row was created.
func Ensure(db *gorm.DB, aSideEntityID, bSideEntityID string, now time.Time) (*models.Conversation, bool, error) {
	conv := models.Conversation{
		ID:            uuid.NewString(),
		ASideEntityID: aSideEntityID,
		BSideEntityID: bSideEntityID,
		CreatedAt:     now,
	}
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&conv)
	if result.Error != nil {
		return nil, false, persistence("ensure", result.Error)
	}
	if result.RowsAffected == 1 {
		return &conv, true, nil
	}
	existing, err := FindByPair(db, aSideEntityID, bSideEntityID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("gate: conversation %s/%s missing after conflict: %w", aSideEntityID, bSideEntityID, models.ErrPersistence)
	}
	return existing, false, nil
}

// Archive makes the pair's conversation read-only. Archival is one-way; an
// already archived conversation keeps its original archive details. The
// bool reports whether a conversation was archived by this call.
func Archive(db *gorm.DB, aSideEntityID, bSideEntityID, actorID string, now time.Time) (bool, error) {
	result := db.Model(&models.Conversation{}).
		Where("a_side_entity_id = ? AND b_side_entity_id = ? AND archived = ?", aSideEntityID, bSideEntityID, false).
		Updates(map[string]interface{}{
			"archived":    true,
			"read_only":   true,
			"archived_at": now,
			"archived_by": actorID,
		})
	if result.Error != nil {
		return false, persistence("archive", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func persistence(op string, err error) error {
	return fmt.Errorf("gate: %s: %w: %w", op, models.ErrPersistence, err)
}
