package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/sponsormatch/internal/gate"
	"github.com/zulandar/sponsormatch/internal/identity"
	"github.com/zulandar/sponsormatch/internal/models"
	"github.com/zulandar/sponsormatch/internal/notify"
	"github.com/zulandar/sponsormatch/internal/reconcile"
	"github.com/zulandar/sponsormatch/internal/testdb"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestRouter wires the API over an in-memory database seeded with
// brand-1 (acct-a), org-1 (acct-b) and org-2 (acct-c). Notifications go
// straight to the inbox store.
func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	db := testdb.Open(t)
	ids := identity.NewStore(db)
	for _, p := range []models.Profile{
		{ID: "brand-1", Role: "brand", AccountID: "acct-a", DisplayName: "Acme Drinks"},
		{ID: "org-1", Role: "organizer", AccountID: "acct-b", DisplayName: "City Fest"},
		{ID: "org-2", Role: "organizer", AccountID: "acct-c", DisplayName: "Harbor Run"},
	} {
		if _, err := ids.Upsert(context.Background(), p); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	inbox := notify.NewStore(db)
	reg, err := reconcile.NewRegistry(db, []reconcile.RolePair{
		{Kind: "interest", ASide: "brand", BSide: "organizer"},
		{Kind: "connection", ASide: "brand", BSide: "organizer"},
	}, reconcile.Options{Identity: ids, Notifier: inbox})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	router, err := NewRouter(StartOpts{Engines: reg, Gate: gate.New(db, ids), Inbox: inbox})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return router
}

func do(t *testing.T, router http.Handler, method, path, actor string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(ActorHeader, actor)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestNewRouter_Validation(t *testing.T) {
	if _, err := NewRouter(StartOpts{}); err == nil || !strings.Contains(err.Error(), "engines are required") {
		t.Errorf("err = %v", err)
	}
}

func TestStart_RequiresEngines(t *testing.T) {
	err := Start(context.Background(), StartOpts{})
	if err == nil {
		t.Fatal("expected error for missing engines")
	}
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)
	w := do(t, router, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestActorRequired(t *testing.T) {
	router := newTestRouter(t)
	w := do(t, router, http.MethodGet, "/api/interest/sent", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestUnknownKind(t *testing.T) {
	router := newTestRouter(t)
	w := do(t, router, http.MethodGet, "/api/romance/sent", "acct-a", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestMatchFlow(t *testing.T) {
	router := newTestRouter(t)

	// acct-a expresses interest in org-1.
	w := do(t, router, http.MethodPost, "/api/interest/expressions", "acct-a", gin.H{"receiver_id": "org-1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("express status = %d body = %s", w.Code, w.Body.String())
	}
	var created outcomeView
	decode(t, w, &created)
	if created.Mutual || created.Expression.Status != "pending" {
		t.Errorf("express = %+v, want pending", created)
	}

	// Expressing again is a flagged no-op conflict.
	w = do(t, router, http.MethodPost, "/api/interest/expressions", "acct-a", gin.H{"receiver_id": "org-1"})
	if w.Code != http.StatusConflict {
		t.Fatalf("repeat express status = %d, want 409", w.Code)
	}
	var conflict map[string]interface{}
	decode(t, w, &conflict)
	if conflict["noop"] != true || conflict["code"] != "already_expressed" {
		t.Errorf("conflict body = %v", conflict)
	}

	// The organizer sees a received status and a notification.
	w = do(t, router, http.MethodGet, "/api/interest/status/brand-1", "acct-b", nil)
	var st map[string]string
	decode(t, w, &st)
	if st["status"] != "received" {
		t.Errorf("status = %v, want received", st)
	}
	w = do(t, router, http.MethodGet, "/api/notifications?unread=true", "acct-b", nil)
	var inbox struct {
		Notifications []notificationView `json:"notifications"`
	}
	decode(t, w, &inbox)
	if len(inbox.Notifications) != 1 || inbox.Notifications[0].Kind != notify.KindInterestReceived {
		t.Errorf("inbox = %+v", inbox)
	}

	// Only the receiver may respond.
	path := "/api/interest/expressions/" + created.Expression.ID + "/respond"
	w = do(t, router, http.MethodPost, path, "acct-a", gin.H{"decision": "accepted"})
	if w.Code != http.StatusForbidden {
		t.Errorf("sender respond status = %d, want 403", w.Code)
	}
	w = do(t, router, http.MethodPost, path, "acct-b", gin.H{"decision": "maybe"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad decision status = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodPost, path, "acct-b", gin.H{"decision": "accepted"})
	if w.Code != http.StatusOK {
		t.Fatalf("respond status = %d body = %s", w.Code, w.Body.String())
	}
	var accepted outcomeView
	decode(t, w, &accepted)
	if !accepted.Mutual || accepted.Match == nil || accepted.Match.Provenance != "manual" || accepted.Conversation == nil {
		t.Fatalf("respond = %+v, want manual mutual match with conversation", accepted)
	}
	convID := accepted.Conversation.ID

	w = do(t, router, http.MethodPost, "/api/interest/status/batch", "acct-a", gin.H{"profile_ids": []string{"org-1", "org-2"}})
	var batch struct {
		Statuses map[string]string `json:"statuses"`
	}
	decode(t, w, &batch)
	if batch.Statuses["org-1"] != "mutual" || batch.Statuses["org-2"] != "none" {
		t.Errorf("batch = %v", batch.Statuses)
	}

	// Chat, then withdraw and confirm the conversation is locked.
	w = do(t, router, http.MethodPost, "/api/conversations/"+convID+"/messages", "acct-b", gin.H{"body": "Welcome aboard"})
	if w.Code != http.StatusCreated {
		t.Fatalf("send status = %d body = %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodPost, "/api/interest/expressions/"+created.Expression.ID+"/withdraw", "acct-a", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("withdraw status = %d body = %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodPost, "/api/conversations/"+convID+"/messages", "acct-b", gin.H{"body": "hello?"})
	if w.Code != http.StatusLocked {
		t.Errorf("send after withdraw status = %d, want 423", w.Code)
	}
	w = do(t, router, http.MethodGet, "/api/conversations/"+convID+"/messages", "acct-b", nil)
	var msgs struct {
		Messages []messageView `json:"messages"`
	}
	decode(t, w, &msgs)
	if w.Code != http.StatusOK || len(msgs.Messages) != 1 {
		t.Errorf("read after withdraw = %d %+v", w.Code, msgs)
	}

	// Withdrawing again is fine.
	w = do(t, router, http.MethodPost, "/api/interest/expressions/"+created.Expression.ID+"/withdraw", "acct-a", nil)
	if w.Code != http.StatusOK {
		t.Errorf("second withdraw status = %d, want 200", w.Code)
	}

	w = do(t, router, http.MethodGet, "/api/interest/counts", "acct-a", nil)
	var counts reconcile.Counts
	decode(t, w, &counts)
	if counts.Sent.Withdrawn != 1 || counts.Received.Accepted != 1 {
		t.Errorf("counts = %+v", counts)
	}
}

func TestOpenConversation(t *testing.T) {
	router := newTestRouter(t)
	w := do(t, router, http.MethodPost, "/api/conversations", "acct-a", gin.H{"a_side_entity_id": "brand-1", "b_side_entity_id": "org-2"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	var body map[string]interface{}
	decode(t, w, &body)
	if body["error"] != "mutual match required" {
		t.Errorf("error = %v", body["error"])
	}

	do(t, router, http.MethodPost, "/api/connection/expressions", "acct-a", gin.H{"receiver_id": "org-2"})
	do(t, router, http.MethodPost, "/api/connection/expressions", "acct-c", gin.H{"receiver_id": "brand-1"})

	w = do(t, router, http.MethodPost, "/api/conversations", "acct-c", gin.H{"a_side_entity_id": "brand-1", "b_side_entity_id": "org-2"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodGet, "/api/conversations", "acct-c", nil)
	var list struct {
		Conversations []conversationView `json:"conversations"`
	}
	decode(t, w, &list)
	if len(list.Conversations) != 1 {
		t.Errorf("conversations = %+v", list)
	}
}

func TestInvalidPairing(t *testing.T) {
	router := newTestRouter(t)
	// acct-b only has an organizer profile; org-2 is another organizer.
	w := do(t, router, http.MethodPost, "/api/interest/expressions", "acct-b", gin.H{"receiver_id": "org-2"})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for missing brand profile", w.Code)
	}
	w = do(t, router, http.MethodPost, "/api/interest/expressions", "acct-a", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing receiver status = %d, want 400", w.Code)
	}
	w = do(t, router, http.MethodGet, "/api/interest/sent?status=bogus", "acct-a", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad status filter = %d, want 400", w.Code)
	}
}

func TestMarkRead(t *testing.T) {
	router := newTestRouter(t)
	do(t, router, http.MethodPost, "/api/interest/expressions", "acct-a", gin.H{"receiver_id": "org-1"})

	w := do(t, router, http.MethodGet, "/api/notifications", "acct-b", nil)
	var inbox struct {
		Notifications []notificationView `json:"notifications"`
	}
	decode(t, w, &inbox)
	if len(inbox.Notifications) != 1 {
		t.Fatalf("inbox = %+v", inbox)
	}
	id := inbox.Notifications[0].ID

	w = do(t, router, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", id), "acct-a", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("other account mark read = %d, want 404", w.Code)
	}
	w = do(t, router, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", id), "acct-b", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("mark read = %d, want 204", w.Code)
	}
	w = do(t, router, http.MethodPost, "/api/notifications/abc/read", "acct-b", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad id = %d, want 400", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrInvalidPairing, http.StatusUnprocessableEntity},
		{models.ErrAlreadyExpressed, http.StatusConflict},
		{models.ErrAlreadyAccepted, http.StatusConflict},
		{models.ErrNotFound, http.StatusNotFound},
		{models.ErrAccessDenied, http.StatusForbidden},
		{models.ErrReadOnlyConversation, http.StatusLocked},
		{models.ErrNotSender, http.StatusForbidden},
		{fmt.Errorf("ledger: insert: %w: %w", models.ErrPersistence, errors.New("deadlock")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
