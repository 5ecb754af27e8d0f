package reconcile

import (
	"context"
	"time"

	"github.com/zulandar/sponsormatch/internal/gate"
	"github.com/zulandar/sponsormatch/internal/ledger"
	"github.com/zulandar/sponsormatch/internal/matches"
	"github.com/zulandar/sponsormatch/internal/models"
	"gorm.io/gorm"
)

// Sweep repairs pairs that are mutual in the ledger but were never fully
// reconciled: pending expressions are accepted and the match and
// conversation are made to exist. Archived conversations stay archived.
// It returns the number of pairs repaired.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	pairs, err := ledger.ActivePairs(e.db.WithContext(ctx), e.pair.Kind)
	if err != nil {
		return 0, err
	}
	repaired := 0
	for _, pr := range pairs {
		if err := ctx.Err(); err != nil {
			return repaired, err
		}
		fixed, err := e.repair(ctx, pr)
		if err != nil {
			return repaired, err
		}
		if fixed {
			repaired++
		}
	}
	if repaired > 0 {
		e.log.Info("sweep repaired pairs", "repaired", repaired, "checked", len(pairs))
	}
	return repaired, nil
}

func (e *Engine) repair(ctx context.Context, pr ledger.Pair) (bool, error) {
	db := e.db.WithContext(ctx)
	x, err := ledger.FindActive(db, e.pair.Kind, pr.SenderID, pr.ReceiverID)
	if err != nil || x == nil {
		return false, err
	}
	done, err := reconciled(db, e.pair.Kind, x)
	if err != nil || done {
		return false, err
	}
	p, err := e.partiesOf(ctx, x)
	if err != nil {
		return false, err
	}

	var out Outcome
	var fixed, newlyMatched bool
	err = e.withPair(ctx, pr.SenderID, pr.ReceiverID, func(tx *gorm.DB, now time.Time) error {
		fwd, err := ledger.FindActive(tx, e.pair.Kind, pr.SenderID, pr.ReceiverID)
		if err != nil {
			return err
		}
		rev, err := ledger.FindActive(tx, e.pair.Kind, pr.ReceiverID, pr.SenderID)
		if err != nil {
			return err
		}
		if fwd == nil || rev == nil {
			return nil
		}
		for _, x := range []*models.Expression{fwd, rev} {
			if x.Status == models.ExpressionPending {
				if _, err := ledger.UpdateStatus(tx, x.ID, models.ExpressionAccepted, now); err != nil {
					return err
				}
				fixed = true
			}
		}
		m, changed, err := matches.UpsertMutual(tx, p.aSide, p.bSide, now)
		if err != nil {
			return err
		}
		conv, created, err := gate.Ensure(tx, p.aSide, p.bSide, now)
		if err != nil {
			return err
		}
		newlyMatched = changed
		fixed = fixed || changed || created
		out = Outcome{Expression: fwd, Mutual: true, Match: m, Conversation: conv}
		return nil
	})
	if err != nil {
		return false, err
	}
	if newlyMatched {
		e.log.Info("mutual match", "a_side", p.aSide, "b_side", p.bSide, "match", out.Match.ID, "via", "sweep")
		e.dispatch(ctx, e.mutualNotes(p, out.Match)...)
	}
	return fixed, nil
}

// reconciled reports whether the pair behind x needs no repair: neither
// direction is pending, the match is accepted and the conversation exists.
// It only reads, so healthy pairs are never locked or rewritten.
func reconciled(db *gorm.DB, kind string, x *models.Expression) (bool, error) {
	rev, err := ledger.FindActive(db, kind, x.ReceiverID, x.SenderID)
	if err != nil {
		return false, err
	}
	if rev == nil {
		return true, nil
	}
	if x.Status == models.ExpressionPending || rev.Status == models.ExpressionPending {
		return false, nil
	}
	ok, err := matches.HasAccepted(db, x.ASideEntityID, x.BSideEntityID)
	if err != nil || !ok {
		return false, err
	}
	conv, err := gate.FindByPair(db, x.ASideEntityID, x.BSideEntityID)
	if err != nil {
		return false, err
	}
	return conv != nil, nil
}
