package store

import (
	"testing"

	"noticeboard/pkg/models"
)

func openTestStore(t *testing.T) {
	t.Helper()
	if err := Open(t.TempDir()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = Close() })
}

func TestSaveAndGetConversation(t *testing.T) {
	openTestStore(t)

	c := models.Conversation{
		ID:           "u1:u2:p42",
		Participants: []string{"u1", "u2"},
		CreatedTS:    100,
		UpdatedTS:    100,
		DeletedFor:   map[string]bool{},
	}
	if err := SaveConversation(c); err != nil {
		t.Fatalf("SaveConversation: %v", err)
	}
	got, err := GetConversation(c.ID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if got.ID != c.ID || len(got.Participants) != 2 {
		t.Fatalf("unexpected conversation: %+v", got)
	}

	if _, err := GetConversation("u9:u8:p0"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// TestListMessagesOrdering verifies the prefix scan returns messages by
// their client-assigned timestamp, not by insertion order.
func TestListMessagesOrdering(t *testing.T) {
	openTestStore(t)

	conv := "u1:u2:p42"
	for _, m := range []models.Message{
		{ID: "m3", Conversation: conv, Sender: "u1", Text: "third", TS: 3000},
		{ID: "m1", Conversation: conv, Sender: "u1", Text: "first", TS: 1000},
		{ID: "m2", Conversation: conv, Sender: "u2", Text: "second", TS: 2000},
	} {
		if err := SaveMessage(conv, m); err != nil {
			t.Fatalf("SaveMessage %s: %v", m.ID, err)
		}
	}

	msgs, err := ListMessages(conv)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, want := range []string{"m1", "m2", "m3"} {
		if msgs[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, msgs[i].ID)
		}
	}
}

// TestListConversationsSurfacesUndecodable verifies a corrupt document is
// still listed, as a bare record carrying only the id, so validation can
// classify and repair it.
func TestListConversationsSurfacesUndecodable(t *testing.T) {
	openTestStore(t)

	good := models.Conversation{ID: "u1:u2:p42", Participants: []string{"u1", "u2"}, CreatedTS: 1, UpdatedTS: 1}
	if err := SaveConversation(good); err != nil {
		t.Fatalf("SaveConversation: %v", err)
	}
	if err := DBSet([]byte("conv:u3:u4:p7:meta"), []byte("{not json")); err != nil {
		t.Fatalf("DBSet: %v", err)
	}

	convs, err := ListConversations()
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(convs))
	}
	var bare *models.Conversation
	for i := range convs {
		if convs[i].ID == "u3:u4:p7" {
			bare = &convs[i]
		}
	}
	if bare == nil {
		t.Fatalf("undecodable record missing from listing: %+v", convs)
	}
	if len(bare.Participants) != 0 {
		t.Fatalf("bare record should carry only the id: %+v", bare)
	}
}

func TestPurgeConversationIsIdempotent(t *testing.T) {
	openTestStore(t)

	conv := "u1:u2:p42"
	if err := SaveConversation(models.Conversation{ID: conv, Participants: []string{"u1", "u2"}}); err != nil {
		t.Fatalf("SaveConversation: %v", err)
	}
	for i, ts := range []int64{1000, 2000} {
		m := models.Message{ID: string(rune('a' + i)), Conversation: conv, Sender: "u1", Text: "x", TS: ts}
		if err := SaveMessage(conv, m); err != nil {
			t.Fatalf("SaveMessage: %v", err)
		}
	}

	if err := PurgeConversation(conv); err != nil {
		t.Fatalf("PurgeConversation: %v", err)
	}
	if _, err := GetConversation(conv); err != ErrNotFound {
		t.Fatalf("expected document gone, got %v", err)
	}
	msgs, err := ListMessages(conv)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected messages gone, got %d", len(msgs))
	}

	// re-running against an already-purged conversation must succeed
	if err := PurgeConversation(conv); err != nil {
		t.Fatalf("second PurgeConversation: %v", err)
	}
}

// TestPurgeConversationAfterPartialFailure verifies the purge recovers a
// conversation a previous run left half-deleted: document gone, messages
// still on disk.
func TestPurgeConversationAfterPartialFailure(t *testing.T) {
	openTestStore(t)

	conv := "u1:u2:p42"
	if err := SaveConversation(models.Conversation{ID: conv, Participants: []string{"u1", "u2"}}); err != nil {
		t.Fatalf("SaveConversation: %v", err)
	}
	for i, ts := range []int64{1000, 2000} {
		m := models.Message{ID: string(rune('a' + i)), Conversation: conv, Sender: "u1", Text: "x", TS: ts}
		if err := SaveMessage(conv, m); err != nil {
			t.Fatalf("SaveMessage: %v", err)
		}
	}
	convs, err := ListConversations()
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("expected 1 record before the partial delete, got %d", len(convs))
	}

	// drop the document only, stranding the messages
	if err := DeleteConversationDoc(conv); err != nil {
		t.Fatalf("DeleteConversationDoc: %v", err)
	}
	msgs, err := ListMessages(conv)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 orphan messages, got %d", len(msgs))
	}

	// the orphan block is still listed, as a bare record, so the repair
	// path can find it
	convs, err = ListConversations()
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 1 || convs[0].ID != conv || len(convs[0].Participants) != 0 {
		t.Fatalf("expected one bare orphan record, got %+v", convs)
	}

	if err := PurgeConversation(conv); err != nil {
		t.Fatalf("PurgeConversation re-run: %v", err)
	}
	msgs, err = ListMessages(conv)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected orphans removed, got %d", len(msgs))
	}
	convs, err = ListConversations()
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 0 {
		t.Fatalf("expected empty listing after re-run, got %+v", convs)
	}
}

func TestSystemKeys(t *testing.T) {
	openTestStore(t)

	if _, err := GetSys("version"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := SaveSys("version", []byte("1.2.3")); err != nil {
		t.Fatalf("SaveSys: %v", err)
	}
	v, err := GetSys("version")
	if err != nil {
		t.Fatalf("GetSys: %v", err)
	}
	if string(v) != "1.2.3" {
		t.Fatalf("expected 1.2.3, got %q", v)
	}
	if err := DeleteSys("version"); err != nil {
		t.Fatalf("DeleteSys: %v", err)
	}
	if _, err := GetSys("version"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
