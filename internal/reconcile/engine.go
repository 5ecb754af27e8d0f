// Package reconcile runs the expression state machine for one role-pair
// channel: expressing interest, responding, withdrawing, and turning
// reciprocal interest into matches and conversations.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zulandar/sponsormatch/internal/gate"
	"github.com/zulandar/sponsormatch/internal/identity"
	"github.com/zulandar/sponsormatch/internal/ledger"
	"github.com/zulandar/sponsormatch/internal/matches"
	"github.com/zulandar/sponsormatch/internal/models"
	"github.com/zulandar/sponsormatch/internal/notify"
	"gorm.io/gorm"
)

// RolePair names a channel and the two profile roles it reconciles.
type RolePair struct {
	Kind  string
	ASide string
	BSide string
}

// Validate checks that the pair is usable.
func (p RolePair) Validate() error {
	if p.Kind == "" {
		return fmt.Errorf("reconcile: kind is required")
	}
	if p.ASide == "" || p.BSide == "" || p.ASide == p.BSide {
		return fmt.Errorf("reconcile: roles %q and %q must be distinct", p.ASide, p.BSide)
	}
	return nil
}

// Other returns the opposite role, or "" when role is not part of the pair.
func (p RolePair) Other(role string) string {
	switch role {
	case p.ASide:
		return p.BSide
	case p.BSide:
		return p.ASide
	}
	return ""
}

// Decision is a receiver's answer to a pending expression.
type Decision string

const (
	Accept Decision = "accepted"
	Reject Decision = "rejected"
)

// Options configures an Engine.
type Options struct {
	Identity identity.Resolver // required
	Notifier notify.Notifier   // defaults to notify.Nop
	Locker   Locker            // defaults to a new KeyedMutex
	Clock    func() time.Time  // defaults to time.Now
	Logger   *slog.Logger      // defaults to slog.Default
}

// Engine reconciles expressions for one channel.
type Engine struct {
	db     *gorm.DB
	pair   RolePair
	ids    identity.Resolver
	notify notify.Notifier
	locker Locker
	now    func() time.Time
	log    *slog.Logger
}

// New creates an Engine for pair.
func New(db *gorm.DB, pair RolePair, opts Options) (*Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("reconcile: db is required")
	}
	if err := pair.Validate(); err != nil {
		return nil, err
	}
	if opts.Identity == nil {
		return nil, fmt.Errorf("reconcile: identity resolver is required")
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop
	}
	if opts.Locker == nil {
		opts.Locker = NewKeyedMutex()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		db:     db,
		pair:   pair,
		ids:    opts.Identity,
		notify: opts.Notifier,
		locker: opts.Locker,
		now:    opts.Clock,
		log:    opts.Logger.With("kind", pair.Kind),
	}, nil
}

// Kind returns the engine's channel kind.
func (e *Engine) Kind() string { return e.pair.Kind }

// Pair returns the engine's role pair.
func (e *Engine) Pair() RolePair { return e.pair }

// ExpressInput identifies the two accounts and the roles they act in.
type ExpressInput struct {
	SenderID     string
	SenderRole   string
	ReceiverID   string
	ReceiverRole string
}

// Outcome is the result of a state-changing operation.
type Outcome struct {
	Expression   *models.Expression
	Mutual       bool
	Match        *models.Match
	Conversation *models.Conversation
}

// parties is everything resolved about a pair before entering the locked
// section, so the transaction never waits on other queries.
type parties struct {
	senderID, receiverID     string
	senderRole, receiverRole string
	aSide, bSide             string
	senderName, receiverName string
}

func (e *Engine) resolveExpress(ctx context.Context, in ExpressInput) (parties, error) {
	if err := ledger.ValidatePairing(in.SenderID, in.SenderRole, in.ReceiverID, in.ReceiverRole); err != nil {
		return parties{}, err
	}
	if e.pair.Other(in.SenderRole) != in.ReceiverRole {
		return parties{}, fmt.Errorf("reconcile: %s channel connects %s and %s, not %s and %s: %w",
			e.pair.Kind, e.pair.ASide, e.pair.BSide, in.SenderRole, in.ReceiverRole, models.ErrInvalidPairing)
	}
	sender, err := e.ids.ProfileFor(ctx, in.SenderID, in.SenderRole)
	if err != nil {
		return parties{}, fmt.Errorf("reconcile: sender: %w", err)
	}
	receiver, err := e.ids.ProfileFor(ctx, in.ReceiverID, in.ReceiverRole)
	if err != nil {
		return parties{}, fmt.Errorf("reconcile: receiver: %w", err)
	}
	p := parties{
		senderID:     in.SenderID,
		receiverID:   in.ReceiverID,
		senderRole:   in.SenderRole,
		receiverRole: in.ReceiverRole,
		aSide:        sender.ID,
		bSide:        receiver.ID,
	}
	if in.SenderRole == e.pair.BSide {
		p.aSide, p.bSide = receiver.ID, sender.ID
	}
	return p, e.resolveNames(ctx, &p)
}

func (e *Engine) partiesOf(ctx context.Context, x *models.Expression) (parties, error) {
	p := parties{
		senderID:     x.SenderID,
		receiverID:   x.ReceiverID,
		senderRole:   x.SenderRole,
		receiverRole: x.ReceiverRole,
		aSide:        x.ASideEntityID,
		bSide:        x.BSideEntityID,
	}
	return p, e.resolveNames(ctx, &p)
}

func (e *Engine) resolveNames(ctx context.Context, p *parties) error {
	var err error
	if p.senderName, err = e.ids.DisplayName(ctx, p.senderID); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	if p.receiverName, err = e.ids.DisplayName(ctx, p.receiverID); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	return nil
}

// ExpressTo expresses interest from actorID in the profile receiverEntityID.
// The actor acts in whichever role the receiver's role is paired with.
func (e *Engine) ExpressTo(ctx context.Context, actorID, receiverEntityID string) (*Outcome, error) {
	receiver, err := e.ids.Profile(ctx, receiverEntityID)
	if err != nil {
		return nil, fmt.Errorf("reconcile: receiver: %w", err)
	}
	senderRole := e.pair.Other(receiver.Role)
	if senderRole == "" {
		return nil, fmt.Errorf("reconcile: %s is a %s, not part of the %s channel: %w",
			receiverEntityID, receiver.Role, e.pair.Kind, models.ErrInvalidPairing)
	}
	return e.Express(ctx, ExpressInput{
		SenderID:     actorID,
		SenderRole:   senderRole,
		ReceiverID:   receiver.AccountID,
		ReceiverRole: receiver.Role,
	})
}

// Express records interest from sender in receiver. If the receiver already
// has active interest in the sender, both expressions become accepted, the
// match is upserted and the conversation created; otherwise the receiver is
// told about the new interest.
func (e *Engine) Express(ctx context.Context, in ExpressInput) (*Outcome, error) {
	p, err := e.resolveExpress(ctx, in)
	if err != nil {
		return nil, err
	}

	var out Outcome
	err = e.withPair(ctx, p.senderID, p.receiverID, func(tx *gorm.DB, now time.Time) error {
		existing, err := ledger.FindActive(tx, e.pair.Kind, p.senderID, p.receiverID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Status == models.ExpressionAccepted {
				return fmt.Errorf("reconcile: %s -> %s: %w", p.senderID, p.receiverID, models.ErrAlreadyAccepted)
			}
			return fmt.Errorf("reconcile: %s -> %s: %w", p.senderID, p.receiverID, models.ErrAlreadyExpressed)
		}

		reverse, err := ledger.FindActive(tx, e.pair.Kind, p.receiverID, p.senderID)
		if err != nil {
			return err
		}
		status := models.ExpressionPending
		if reverse != nil {
			status = models.ExpressionAccepted
		}
		x, err := ledger.Insert(tx, ledger.InsertOpts{
			Kind:          e.pair.Kind,
			SenderID:      p.senderID,
			SenderRole:    p.senderRole,
			ReceiverID:    p.receiverID,
			ReceiverRole:  p.receiverRole,
			ASideEntityID: p.aSide,
			BSideEntityID: p.bSide,
			Status:        status,
			Now:           now,
		})
		if err != nil {
			return err
		}
		out.Expression = x
		if reverse == nil {
			return nil
		}
		if reverse.Status == models.ExpressionPending {
			if _, err := ledger.UpdateStatus(tx, reverse.ID, models.ExpressionAccepted, now); err != nil {
				return err
			}
		}
		return e.confirm(tx, p, now, &out)
	})
	if err != nil {
		return nil, err
	}

	if out.Mutual {
		e.log.Info("mutual match", "a_side", p.aSide, "b_side", p.bSide, "match", out.Match.ID, "via", "express")
		e.dispatch(ctx, e.mutualNotes(p, out.Match)...)
	} else {
		e.dispatch(ctx, notify.Notification{
			AccountID: p.receiverID,
			Title:     "New " + e.pair.Kind,
			Message:   fmt.Sprintf("%s expressed %s in you", p.senderName, e.pair.Kind),
			Kind:      notify.KindInterestReceived,
			RelatedID: out.Expression.ID,
		})
	}
	return &out, nil
}

// Respond applies the receiver's decision to a pending expression.
func (e *Engine) Respond(ctx context.Context, actorID, expressionID string, decision Decision) (*Outcome, error) {
	switch decision {
	case Accept:
		return e.AcceptAndReciprocate(ctx, actorID, expressionID)
	case Reject:
		x, err := e.Reject(ctx, actorID, expressionID)
		if err != nil {
			return nil, err
		}
		return &Outcome{Expression: x}, nil
	default:
		return nil, fmt.Errorf("reconcile: unknown decision %q: %w", decision, models.ErrInvalidTransition)
	}
}

// AcceptAndReciprocate accepts an expression on the receiver's behalf and
// makes sure the reverse expression exists and is accepted too: a missing
// reverse is created directly as accepted, a pending one is accepted. The
// pair then gets its match and conversation.
//
// Accepting an already accepted expression repairs any missing mirror and
// returns without notifying anyone.
func (e *Engine) AcceptAndReciprocate(ctx context.Context, actorID, expressionID string) (*Outcome, error) {
	x, err := e.load(ctx, expressionID)
	if err != nil {
		return nil, err
	}
	if x.ReceiverID != actorID {
		return nil, fmt.Errorf("reconcile: expression %s: %w", x.ID, models.ErrNotReceiver)
	}
	p, err := e.partiesOf(ctx, x)
	if err != nil {
		return nil, err
	}

	var out Outcome
	var changed bool
	err = e.withPair(ctx, p.senderID, p.receiverID, func(tx *gorm.DB, now time.Time) error {
		cur, err := ledger.Get(tx, x.ID)
		if err != nil {
			return err
		}
		if !cur.Status.Active() {
			return fmt.Errorf("reconcile: expression %s is %s: %w", cur.ID, cur.Status, models.ErrInvalidTransition)
		}
		changed = cur.Status == models.ExpressionPending
		if out.Expression, err = ledger.UpdateStatus(tx, cur.ID, models.ExpressionAccepted, now); err != nil {
			return err
		}

		reverse, err := ledger.FindActive(tx, e.pair.Kind, p.receiverID, p.senderID)
		if err != nil {
			return err
		}
		switch {
		case reverse == nil:
			_, err = ledger.Insert(tx, ledger.InsertOpts{
				Kind:          e.pair.Kind,
				SenderID:      p.receiverID,
				SenderRole:    p.receiverRole,
				ReceiverID:    p.senderID,
				ReceiverRole:  p.senderRole,
				ASideEntityID: p.aSide,
				BSideEntityID: p.bSide,
				Status:        models.ExpressionAccepted,
				Now:           now,
			})
		case reverse.Status == models.ExpressionPending:
			_, err = ledger.UpdateStatus(tx, reverse.ID, models.ExpressionAccepted, now)
		}
		if err != nil {
			return err
		}
		return e.confirm(tx, p, now, &out)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		e.log.Info("mutual match", "a_side", p.aSide, "b_side", p.bSide, "match", out.Match.ID, "via", "respond")
		e.dispatch(ctx, e.mutualNotes(p, out.Match)...)
	}
	return &out, nil
}

// Reject declines a pending expression. Nobody is notified. The sender may
// express again later.
func (e *Engine) Reject(ctx context.Context, actorID, expressionID string) (*models.Expression, error) {
	x, err := e.load(ctx, expressionID)
	if err != nil {
		return nil, err
	}
	if x.ReceiverID != actorID {
		return nil, fmt.Errorf("reconcile: expression %s: %w", x.ID, models.ErrNotReceiver)
	}

	var out *models.Expression
	err = e.withPair(ctx, x.SenderID, x.ReceiverID, func(tx *gorm.DB, now time.Time) error {
		out, err = ledger.UpdateStatus(tx, x.ID, models.ExpressionRejected, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.log.Debug("expression rejected", "expression", x.ID)
	return out, nil
}

// Withdraw retracts the sender's expression. Withdrawing twice is a no-op.
// If the pair was mutual, the match goes inactive and the conversation is
// archived by the actor, unless the accounts are still mutual in another
// channel. The other party's expression is left as is and nobody is
// notified.
func (e *Engine) Withdraw(ctx context.Context, actorID, expressionID string) (*Outcome, error) {
	x, err := e.load(ctx, expressionID)
	if err != nil {
		return nil, err
	}
	if x.SenderID != actorID {
		return nil, fmt.Errorf("reconcile: expression %s: %w", x.ID, models.ErrNotSender)
	}
	if x.Status == models.ExpressionWithdrawn {
		return &Outcome{Expression: x}, nil
	}

	var out Outcome
	var archived bool
	err = e.withPair(ctx, x.SenderID, x.ReceiverID, func(tx *gorm.DB, now time.Time) error {
		cur, err := ledger.Get(tx, x.ID)
		if err != nil {
			return err
		}
		if cur.Status == models.ExpressionWithdrawn {
			out.Expression = cur
			return nil
		}
		wasMutual, err := ledger.IsMutual(tx, e.pair.Kind, cur.SenderID, cur.ReceiverID)
		if err != nil {
			return err
		}
		if out.Expression, err = ledger.UpdateStatus(tx, cur.ID, models.ExpressionWithdrawn, now); err != nil {
			return err
		}
		if !wasMutual {
			return nil
		}
		still, err := ledger.MutualKinds(tx, cur.SenderID, cur.ReceiverID)
		if err != nil {
			return err
		}
		if len(still) > 0 {
			e.log.Info("pair still mutual elsewhere, match kept", "a_side", cur.ASideEntityID, "b_side", cur.BSideEntityID, "kinds", still)
			return nil
		}
		if _, err := matches.Deactivate(tx, cur.ASideEntityID, cur.BSideEntityID, now); err != nil {
			return err
		}
		archived, err = gate.Archive(tx, cur.ASideEntityID, cur.BSideEntityID, actorID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	if archived {
		e.log.Info("match withdrawn, conversation archived",
			"a_side", out.Expression.ASideEntityID, "b_side", out.Expression.BSideEntityID, "by", actorID)
	}
	return &out, nil
}

// IsMutual reports whether u and v have active expressions toward each
// other in this channel. It always reads the ledger.
func (e *Engine) IsMutual(ctx context.Context, u, v string) (bool, error) {
	return ledger.IsMutual(e.db.WithContext(ctx), e.pair.Kind, u, v)
}

// confirm records the pair as matched inside tx. The conversation is
// created when missing and never un-archived.
func (e *Engine) confirm(tx *gorm.DB, p parties, now time.Time, out *Outcome) error {
	m, _, err := matches.UpsertMutual(tx, p.aSide, p.bSide, now)
	if err != nil {
		return err
	}
	conv, _, err := gate.Ensure(tx, p.aSide, p.bSide, now)
	if err != nil {
		return err
	}
	out.Mutual = true
	out.Match = m
	out.Conversation = conv
	return nil
}

// withPair runs fn in a transaction holding the pair's process lock and
// database row lock.
func (e *Engine) withPair(ctx context.Context, u, v string, fn func(tx *gorm.DB, now time.Time) error) error {
	key := PairKey(u, v)
	unlock := e.locker.Lock(key)
	defer unlock()

	now := e.now()
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPair(tx, key, now); err != nil {
			return err
		}
		return fn(tx, now)
	})
}

// load fetches an expression of this engine's kind.
func (e *Engine) load(ctx context.Context, id string) (*models.Expression, error) {
	x, err := ledger.Get(e.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if x.Kind != e.pair.Kind {
		return nil, fmt.Errorf("reconcile: %s expression %s: %w", e.pair.Kind, id, models.ErrNotFound)
	}
	return x, nil
}

func (e *Engine) mutualNotes(p parties, m *models.Match) []notify.Notification {
	return []notify.Notification{
		{
			AccountID: p.senderID,
			Title:     "It's a match!",
			Message:   fmt.Sprintf("You and %s are now connected", p.receiverName),
			Kind:      notify.KindMutualMatch,
			RelatedID: m.ID,
		},
		{
			AccountID: p.receiverID,
			Title:     "It's a match!",
			Message:   fmt.Sprintf("You and %s are now connected", p.senderName),
			Kind:      notify.KindMutualMatch,
			RelatedID: m.ID,
		},
	}
}

// dispatch runs after commit. Failures are logged, never returned.
func (e *Engine) dispatch(ctx context.Context, notes ...notify.Notification) {
	notify.Dispatch(context.WithoutCancel(ctx), e.log, e.notify, notes...)
}

// IsConflict reports whether err is a no-op state conflict the caller can
// show as a message rather than a failure.
func IsConflict(err error) bool {
	return errors.Is(err, models.ErrAlreadyExpressed) || errors.Is(err, models.ErrAlreadyAccepted)
}
