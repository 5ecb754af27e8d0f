package models

import (
	"reflect"
	"strings"
	"testing"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	got := f.Type.String()
	if got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestExpression_Fields(t *testing.T) {
	typ := reflect.TypeOf(Expression{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "size:36")
	assertGormTag(t, typ, "SenderID", "index:idx_expr_sender")
	assertGormTag(t, typ, "ReceiverID", "index:idx_expr_receiver")
	assertGormTag(t, typ, "Status", "default:pending")
	assertGormTag(t, typ, "ActiveKey", "uniqueIndex")
	assertFieldType(t, typ, "ActiveKey", "*string")
	assertFieldType(t, typ, "Status", "models.ExpressionStatus")
}

func TestMatch_Fields(t *testing.T) {
	typ := reflect.TypeOf(Match{})

	assertGormTag(t, typ, "ASideEntityID", "uniqueIndex:idx_match_pair")
	assertGormTag(t, typ, "BSideEntityID", "uniqueIndex:idx_match_pair")
	assertGormTag(t, typ, "Reasons", "type:json")
	assertFieldType(t, typ, "Reasons", "datatypes.JSON")
	assertFieldType(t, typ, "AcceptedAt", "*time.Time")
}

func TestConversation_Fields(t *testing.T) {
	typ := reflect.TypeOf(Conversation{})

	assertGormTag(t, typ, "ASideEntityID", "uniqueIndex:idx_conversation_pair")
	assertGormTag(t, typ, "BSideEntityID", "uniqueIndex:idx_conversation_pair")
	assertGormTag(t, typ, "Messages", "foreignKey:ConversationID")
	assertFieldType(t, typ, "ArchivedAt", "*time.Time")
}

func TestProfile_Fields(t *testing.T) {
	typ := reflect.TypeOf(Profile{})

	assertGormTag(t, typ, "AccountID", "uniqueIndex:idx_profile_account_role")
	assertGormTag(t, typ, "Role", "uniqueIndex:idx_profile_account_role")
}

func TestPairLock_Fields(t *testing.T) {
	assertGormTag(t, reflect.TypeOf(PairLock{}), "PairKey", "primaryKey")
	assertGormTag(t, reflect.TypeOf(RolePairConfig{}), "Kind", "primaryKey")
}

func TestExpressionStatus_Predicates(t *testing.T) {
	tests := []struct {
		status   ExpressionStatus
		active   bool
		terminal bool
	}{
		{ExpressionPending, true, false},
		{ExpressionAccepted, true, false},
		{ExpressionRejected, false, true},
		{ExpressionWithdrawn, false, true},
	}
	for _, tt := range tests {
		if got := tt.status.Active(); got != tt.active {
			t.Errorf("%s.Active() = %v, want %v", tt.status, got, tt.active)
		}
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.terminal)
		}
		if !tt.status.Valid() {
			t.Errorf("%s.Valid() = false", tt.status)
		}
	}
	if ExpressionStatus("maybe").Valid() {
		t.Error("unknown status reported valid")
	}
}

func TestProvenance_Strengthen(t *testing.T) {
	tests := []struct {
		from   Provenance
		origin Provenance
		want   Provenance
	}{
		{"", ProvenanceManual, ProvenanceManual},
		{"", ProvenanceSuggested, ProvenanceSuggested},
		{ProvenanceSuggested, ProvenanceSuggested, ProvenanceSuggested},
		{ProvenanceSuggested, ProvenanceManual, ProvenanceHybrid},
		{ProvenanceManual, ProvenanceSuggested, ProvenanceHybrid},
		{ProvenanceManual, ProvenanceManual, ProvenanceManual},
		{ProvenanceHybrid, ProvenanceManual, ProvenanceHybrid},
		{ProvenanceHybrid, ProvenanceSuggested, ProvenanceHybrid},
	}
	for _, tt := range tests {
		if got := tt.from.Strengthen(tt.origin); got != tt.want {
			t.Errorf("%q.Strengthen(%q) = %q, want %q", tt.from, tt.origin, got, tt.want)
		}
	}
}

func TestActiveKeyFor(t *testing.T) {
	if got := ActiveKeyFor("interest", "acct-1", "acct-2"); got != "interest|acct-1|acct-2" {
		t.Errorf("ActiveKeyFor = %q", got)
	}
}
