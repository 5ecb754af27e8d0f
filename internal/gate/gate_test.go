package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zulandar/sponsormatch/internal/identity"
	"github.com/zulandar/sponsormatch/internal/ledger"
	"github.com/zulandar/sponsormatch/internal/matches"
	"github.com/zulandar/sponsormatch/internal/models"
	"github.com/zulandar/sponsormatch/internal/testdb"
	"gorm.io/gorm"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// setup returns a gate over brand-1 (acct-a) and org-1 (acct-b), plus an
// unrelated organizer org-2 (acct-c).
func setup(t *testing.T) (*Gate, *gorm.DB) {
	t.Helper()
	db := testdb.Open(t)
	ids := identity.NewStore(db)
	for _, p := range []models.Profile{
		{ID: "brand-1", Role: "brand", AccountID: "acct-a"},
		{ID: "org-1", Role: "organizer", AccountID: "acct-b"},
		{ID: "org-2", Role: "organizer", AccountID: "acct-c"},
	} {
		if _, err := ids.Upsert(context.Background(), p); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	g := New(db, ids)
	g.now = func() time.Time { return now }
	return g, db
}

func express(t *testing.T, db *gorm.DB, sender, senderRole, receiver, receiverRole string) *models.Expression {
	t.Helper()
	e, err := ledger.Insert(db, ledger.InsertOpts{
		Kind:          "interest",
		SenderID:      sender,
		SenderRole:    senderRole,
		ReceiverID:    receiver,
		ReceiverRole:  receiverRole,
		ASideEntityID: "brand-1",
		BSideEntityID: "org-1",
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return e
}

func makeMutual(t *testing.T, db *gorm.DB) {
	t.Helper()
	express(t, db, "acct-a", "brand", "acct-b", "organizer")
	express(t, db, "acct-b", "organizer", "acct-a", "brand")
}

func TestCanCommunicate(t *testing.T) {
	g, db := setup(t)
	ctx := context.Background()

	ok, err := g.CanCommunicate(ctx, "brand-1", "org-1")
	if err != nil || ok {
		t.Fatalf("fresh pair: ok=%v err=%v, want false", ok, err)
	}

	// One direction only is not enough.
	express(t, db, "acct-a", "brand", "acct-b", "organizer")
	if ok, _ := g.CanCommunicate(ctx, "brand-1", "org-1"); ok {
		t.Error("one-way interest should not allow communication")
	}

	express(t, db, "acct-b", "organizer", "acct-a", "brand")
	if ok, _ := g.CanCommunicate(ctx, "brand-1", "org-1"); !ok {
		t.Error("mutual pair should be allowed")
	}

	// Unknown entities are simply not allowed.
	if ok, err := g.CanCommunicate(ctx, "brand-1", "ghost"); ok || err != nil {
		t.Errorf("unknown entity: ok=%v err=%v", ok, err)
	}
}

func TestCanCommunicate_AcceptedMatch(t *testing.T) {
	g, db := setup(t)
	if _, _, err := matches.UpsertMutual(db, "brand-1", "org-2", now); err != nil {
		t.Fatalf("UpsertMutual: %v", err)
	}
	ok, err := g.CanCommunicate(context.Background(), "brand-1", "org-2")
	if err != nil || !ok {
		t.Errorf("accepted match: ok=%v err=%v, want true", ok, err)
	}
}

func TestGetOrCreate(t *testing.T) {
	g, db := setup(t)
	ctx := context.Background()

	_, err := g.GetOrCreate(ctx, "acct-a", "brand-1", "org-1")
	if !errors.Is(err, models.ErrAccessDenied) {
		t.Fatalf("not mutual: err = %v, want ErrAccessDenied", err)
	}

	makeMutual(t, db)
	first, err := g.GetOrCreate(ctx, "acct-a", "brand-1", "org-1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	second, err := g.GetOrCreate(ctx, "acct-b", "brand-1", "org-1")
	if err != nil {
		t.Fatalf("GetOrCreate second: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("conversation IDs differ: %s vs %s", first.ID, second.ID)
	}

	var n int64
	db.Model(&models.Conversation{}).Count(&n)
	if n != 1 {
		t.Errorf("conversation count = %d, want 1", n)
	}

	_, err = g.GetOrCreate(ctx, "acct-c", "brand-1", "org-1")
	if !errors.Is(err, models.ErrAccessDenied) {
		t.Errorf("outsider: err = %v, want ErrAccessDenied", err)
	}
	_, err = g.GetOrCreate(ctx, "acct-a", "brand-1", "ghost")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown entity: err = %v, want ErrNotFound", err)
	}
}

func TestArchivedConversationStaysReadable(t *testing.T) {
	g, db := setup(t)
	ctx := context.Background()
	makeMutual(t, db)

	conv, err := g.GetOrCreate(ctx, "acct-a", "brand-1", "org-1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if _, err := g.SendMessage(ctx, "acct-a", conv.ID, "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	archived, err := Archive(db, "brand-1", "org-1", "acct-a", now)
	if err != nil || !archived {
		t.Fatalf("Archive: archived=%v err=%v", archived, err)
	}

	// Break mutuality entirely; the archived conversation is still returned.
	db.Model(&models.Expression{}).Where("1 = 1").Updates(map[string]interface{}{
		"status": models.ExpressionWithdrawn, "active_key": nil,
	})
	got, err := g.GetOrCreate(ctx, "acct-b", "brand-1", "org-1")
	if err != nil {
		t.Fatalf("GetOrCreate archived: %v", err)
	}
	if !got.Archived || !got.ReadOnly || got.ArchivedBy != "acct-a" {
		t.Errorf("conversation = %+v, want archived read-only by acct-a", got)
	}

	_, err = g.SendMessage(ctx, "acct-b", conv.ID, "still there?")
	if !errors.Is(err, models.ErrReadOnlyConversation) {
		t.Errorf("SendMessage: err = %v, want ErrReadOnlyConversation", err)
	}
	msgs, err := g.Messages(ctx, "acct-b", conv.ID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Body != "hello" {
		t.Errorf("messages = %+v, want the one hello", msgs)
	}

	// Archival is sticky: a second archive does not rewrite who archived it.
	again, err := Archive(db, "brand-1", "org-1", "acct-b", now.Add(time.Hour))
	if err != nil || again {
		t.Errorf("second Archive: archived=%v err=%v, want false", again, err)
	}
}

func TestEnsure_NeverUnarchives(t *testing.T) {
	_, db := setup(t)
	conv, created, err := Ensure(db, "brand-1", "org-1", now)
	if err != nil || !created {
		t.Fatalf("Ensure: created=%v err=%v", created, err)
	}
	if _, err := Archive(db, "brand-1", "org-1", "acct-a", now); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	again, created, err := Ensure(db, "brand-1", "org-1", now)
	if err != nil {
		t.Fatalf("Ensure again: %v", err)
	}
	if created || again.ID != conv.ID || !again.ReadOnly {
		t.Errorf("Ensure again = %+v created=%v, want same archived row", again, created)
	}
}

func TestSendMessage_Validation(t *testing.T) {
	g, db := setup(t)
	ctx := context.Background()
	makeMutual(t, db)
	conv, err := g.GetOrCreate(ctx, "acct-a", "brand-1", "org-1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	if _, err := g.SendMessage(ctx, "acct-a", conv.ID, "   "); err == nil {
		t.Error("expected error for empty body")
	}
	if _, err := g.SendMessage(ctx, "acct-c", conv.ID, "hi"); !errors.Is(err, models.ErrAccessDenied) {
		t.Errorf("outsider send: err = %v, want ErrAccessDenied", err)
	}
	if _, err := g.Messages(ctx, "acct-c", conv.ID); !errors.Is(err, models.ErrAccessDenied) {
		t.Errorf("outsider read: err = %v, want ErrAccessDenied", err)
	}
	if _, err := g.SendMessage(ctx, "acct-a", "missing", "hi"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("missing conversation: err = %v, want ErrNotFound", err)
	}
}

func TestListFor(t *testing.T) {
	g, db := setup(t)
	ctx := context.Background()
	if _, _, err := Ensure(db, "brand-1", "org-1", now); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if _, _, err := Ensure(db, "brand-1", "org-2", now.Add(time.Minute)); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	got, err := g.ListFor(ctx, "acct-a")
	if err != nil {
		t.Fatalf("ListFor: %v", err)
	}
	if len(got) != 2 || got[0].BSideEntityID != "org-2" {
		t.Errorf("ListFor acct-a = %+v, want org-2 first", got)
	}
	got, err = g.ListFor(ctx, "acct-c")
	if err != nil || len(got) != 1 {
		t.Errorf("ListFor acct-c = %+v, %v", got, err)
	}
	got, err = g.ListFor(ctx, "acct-z")
	if err != nil || len(got) != 0 {
		t.Errorf("ListFor unknown = %+v, %v", got, err)
	}
}
