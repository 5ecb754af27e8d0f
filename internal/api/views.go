package api

import (
	"time"

	"github.com/zulandar/sponsormatch/internal/matches"
	"github.com/zulandar/sponsormatch/internal/models"
	"github.com/zulandar/sponsormatch/internal/reconcile"
)

type expressionView struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	SenderID      string    `json:"sender_id"`
	SenderRole    string    `json:"sender_role"`
	ReceiverID    string    `json:"receiver_id"`
	ReceiverRole  string    `json:"receiver_role"`
	ASideEntityID string    `json:"a_side_entity_id"`
	BSideEntityID string    `json:"b_side_entity_id"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toExpressionView(x *models.Expression) expressionView {
	return expressionView{
		ID:            x.ID,
		Kind:          x.Kind,
		SenderID:      x.SenderID,
		SenderRole:    x.SenderRole,
		ReceiverID:    x.ReceiverID,
		ReceiverRole:  x.ReceiverRole,
		ASideEntityID: x.ASideEntityID,
		BSideEntityID: x.BSideEntityID,
		Status:        string(x.Status),
		CreatedAt:     x.CreatedAt,
		UpdatedAt:     x.UpdatedAt,
	}
}

func toExpressionViews(xs []models.Expression) []expressionView {
	out := make([]expressionView, len(xs))
	for i := range xs {
		out[i] = toExpressionView(&xs[i])
	}
	return out
}

type matchView struct {
	ID            string     `json:"id"`
	ASideEntityID string     `json:"a_side_entity_id"`
	BSideEntityID string     `json:"b_side_entity_id"`
	Score         float64    `json:"score"`
	Reasons       []string   `json:"reasons"`
	Status        string     `json:"status"`
	Provenance    string     `json:"provenance"`
	AcceptedAt    *time.Time `json:"accepted_at,omitempty"`
}

func toMatchView(m *models.Match) *matchView {
	if m == nil {
		return nil
	}
	reasons, _ := matches.Reasons(m)
	if reasons == nil {
		reasons = []string{}
	}
	return &matchView{
		ID:            m.ID,
		ASideEntityID: m.ASideEntityID,
		BSideEntityID: m.BSideEntityID,
		Score:         m.Score,
		Reasons:       reasons,
		Status:        string(m.Status),
		Provenance:    string(m.Provenance),
		AcceptedAt:    m.AcceptedAt,
	}
}

type conversationView struct {
	ID            string     `json:"id"`
	ASideEntityID string     `json:"a_side_entity_id"`
	BSideEntityID string     `json:"b_side_entity_id"`
	Archived      bool       `json:"archived"`
	ReadOnly      bool       `json:"read_only"`
	ArchivedAt    *time.Time `json:"archived_at,omitempty"`
	ArchivedBy    string     `json:"archived_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toConversationView(c *models.Conversation) *conversationView {
	if c == nil {
		return nil
	}
	return &conversationView{
		ID:            c.ID,
		ASideEntityID: c.ASideEntityID,
		BSideEntityID: c.BSideEntityID,
		Archived:      c.Archived,
		ReadOnly:      c.ReadOnly,
		ArchivedAt:    c.ArchivedAt,
		ArchivedBy:    c.ArchivedBy,
		CreatedAt:     c.CreatedAt,
	}
}

type messageView struct {
	ID        uint      `json:"id"`
	SenderID  string    `json:"sender_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type notificationView struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Kind      string    `json:"kind"`
	RelatedID string    `json:"related_id"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type outcomeView struct {
	Expression   expressionView    `json:"expression"`
	Mutual       bool              `json:"mutual"`
	Match        *matchView        `json:"match,omitempty"`
	Conversation *conversationView `json:"conversation,omitempty"`
}

func toOutcomeView(o *reconcile.Outcome) outcomeView {
	return outcomeView{
		Expression:   toExpressionView(o.Expression),
		Mutual:       o.Mutual,
		Match:        toMatchView(o.Match),
		Conversation: toConversationView(o.Conversation),
	}
}
