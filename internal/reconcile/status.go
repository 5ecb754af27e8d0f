package reconcile

import (
	"context"

	"github.com/zulandar/sponsormatch/internal/ledger"
	"github.com/zulandar/sponsormatch/internal/models"
)

// Status is a viewer's relationship to another profile in one channel.
type Status string

const (
	StatusNone     Status = "none"
	StatusSent     Status = "sent"
	StatusReceived Status = "received"
	StatusMutual   Status = "mutual"
)

// GetStatus returns the viewer's status toward a single profile.
func (e *Engine) GetStatus(ctx context.Context, viewerID, profileID string) (Status, error) {
	all, err := e.BatchStatus(ctx, viewerID, []string{profileID})
	if err != nil {
		return "", err
	}
	return all[profileID], nil
}

// BatchStatus returns the viewer's status toward each profile, keyed by
// profile ID. It costs one identity lookup and two ledger queries no matter
// how many profiles are asked about. Unknown profiles, and the viewer's own,
// are StatusNone.
func (e *Engine) BatchStatus(ctx context.Context, viewerID string, profileIDs []string) (map[string]Status, error) {
	out := make(map[string]Status, len(profileIDs))
	for _, id := range profileIDs {
		out[id] = StatusNone
	}
	if len(profileIDs) == 0 {
		return out, nil
	}

	profiles, err := e.ids.Profiles(ctx, profileIDs)
	if err != nil {
		return nil, err
	}
	accounts := make([]string, 0, len(profiles))
	seen := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		if p.AccountID == viewerID || seen[p.AccountID] {
			continue
		}
		seen[p.AccountID] = true
		accounts = append(accounts, p.AccountID)
	}
	if len(accounts) == 0 {
		return out, nil
	}

	db := e.db.WithContext(ctx)
	sent, err := ledger.ActiveFromTo(db, e.pair.Kind, viewerID, accounts)
	if err != nil {
		return nil, err
	}
	received, err := ledger.ActiveToFrom(db, e.pair.Kind, viewerID, accounts)
	if err != nil {
		return nil, err
	}
	sentTo := make(map[string]bool, len(sent))
	for _, x := range sent {
		sentTo[x.ReceiverID] = true
	}
	receivedFrom := make(map[string]bool, len(received))
	for _, x := range received {
		receivedFrom[x.SenderID] = true
	}

	for id, p := range profiles {
		if p.AccountID == viewerID {
			continue
		}
		out[id] = merge(sentTo[p.AccountID], receivedFrom[p.AccountID])
	}
	return out, nil
}

func merge(sent, received bool) Status {
	switch {
	case sent && received:
		return StatusMutual
	case sent:
		return StatusSent
	case received:
		return StatusReceived
	default:
		return StatusNone
	}
}

// ListSent returns the viewer's sent expressions, optionally filtered.
func (e *Engine) ListSent(ctx context.Context, viewerID string, statuses ...models.ExpressionStatus) ([]models.Expression, error) {
	return ledger.Sent(e.db.WithContext(ctx), e.pair.Kind, viewerID, statuses...)
}

// ListReceived returns the viewer's received expressions, optionally filtered.
func (e *Engine) ListReceived(ctx context.Context, viewerID string, statuses ...models.ExpressionStatus) ([]models.Expression, error) {
	return ledger.Received(e.db.WithContext(ctx), e.pair.Kind, viewerID, statuses...)
}

// ListMutual returns the viewer's active sent expressions whose receiver
// has active interest back.
func (e *Engine) ListMutual(ctx context.Context, viewerID string) ([]models.Expression, error) {
	db := e.db.WithContext(ctx)
	sent, err := ledger.Sent(db, e.pair.Kind, viewerID, models.ActiveStatuses...)
	if err != nil || len(sent) == 0 {
		return nil, err
	}
	receivers := make([]string, len(sent))
	for i, x := range sent {
		receivers[i] = x.ReceiverID
	}
	back, err := ledger.ActiveToFrom(db, e.pair.Kind, viewerID, receivers)
	if err != nil {
		return nil, err
	}
	from := make(map[string]bool, len(back))
	for _, x := range back {
		from[x.SenderID] = true
	}
	var out []models.Expression
	for _, x := range sent {
		if from[x.ReceiverID] {
			out = append(out, x)
		}
	}
	return out, nil
}

// Counts is the dashboard summary for one account.
type Counts struct {
	Sent     ledger.Counts `json:"sent"`
	Received ledger.Counts `json:"received"`
}

// Counts returns the viewer's per-direction totals.
func (e *Engine) Counts(ctx context.Context, viewerID string) (Counts, error) {
	db := e.db.WithContext(ctx)
	sent, err := ledger.CountsSent(db, e.pair.Kind, viewerID)
	if err != nil {
		return Counts{}, err
	}
	received, err := ledger.CountsReceived(db, e.pair.Kind, viewerID)
	if err != nil {
		return Counts{}, err
	}
	return Counts{Sent: sent, Received: received}, nil
}
