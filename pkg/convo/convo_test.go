package convo

import (
	"errors"
	"sync"
	"testing"
	"time"

	"noticeboard/pkg/convkey"
	"noticeboard/pkg/models"
	"noticeboard/pkg/store"
)

func openTestStore(t *testing.T) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
}

func mustKey(t *testing.T, a, b, ctx string) convkey.Key {
	t.Helper()
	k, err := convkey.Resolve(a, b, ctx)
	if err != nil {
		t.Fatalf("Resolve(%s,%s,%s): %v", a, b, ctx, err)
	}
	return k
}

// TestGetOrCreateIsIdempotent verifies a second GetOrCreate returns the
// existing document unchanged instead of resetting it.
func TestGetOrCreateIsIdempotent(t *testing.T) {
	openTestStore(t)
	key := mustKey(t, "u2", "u1", "p42")

	created, err := GetOrCreate(key, time.Unix(0, 1000))
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if created.ID != "u1:u2:p42" {
		t.Fatalf("expected canonical id, got %s", created.ID)
	}

	// mutate the summary, then re-enter through GetOrCreate
	created.LastMessage = "hello"
	created.LastSender = "u1"
	created.UpdatedTS = 2000
	if err := store.SaveConversation(created); err != nil {
		t.Fatalf("SaveConversation: %v", err)
	}

	again, err := GetOrCreate(key, time.Unix(0, 9999))
	if err != nil {
		t.Fatalf("second GetOrCreate: %v", err)
	}
	if again.LastMessage != "hello" || again.CreatedTS != 1000 {
		t.Fatalf("second GetOrCreate changed the document: %+v", again)
	}
}

func TestGetOrCreateConcurrent(t *testing.T) {
	openTestStore(t)
	key := mustKey(t, "u1", "u2", "p42")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := GetOrCreate(key, time.Now()); err != nil {
				t.Errorf("GetOrCreate: %v", err)
			}
		}()
	}
	wg.Wait()

	convs, err := store.ListConversations()
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("expected exactly one document, got %d", len(convs))
	}
}

// TestHiddenMergesWithoutTouchingSummary verifies MarkHidden only flips the
// per-user flag.
func TestHiddenMergesWithoutTouchingSummary(t *testing.T) {
	openTestStore(t)
	key := mustKey(t, "u1", "u2", "p42")
	c, err := GetOrCreate(key, time.Unix(0, 1000))
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	c.LastMessage = "still available?"
	c.LastSender = "u1"
	if err := store.SaveConversation(c); err != nil {
		t.Fatalf("SaveConversation: %v", err)
	}

	if err := MarkHidden(key, "u1"); err != nil {
		t.Fatalf("MarkHidden: %v", err)
	}
	got, err := store.GetConversation(key.String())
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if !got.HiddenFor("u1") || got.HiddenFor("u2") {
		t.Fatalf("expected hidden for u1 only: %+v", got.DeletedFor)
	}
	if got.LastMessage != "still available?" {
		t.Fatalf("MarkHidden touched the summary: %+v", got)
	}

	if err := ClearHidden(key, "u1"); err != nil {
		t.Fatalf("ClearHidden: %v", err)
	}
	got, _ = store.GetConversation(key.String())
	if got.HiddenFor("u1") {
		t.Fatalf("ClearHidden did not clear the flag")
	}
}

func TestValidateClassifiesRecords(t *testing.T) {
	cases := []struct {
		name string
		c    models.Conversation
		ok   bool
	}{
		{"well formed", models.Conversation{ID: "u1:u2:p42", Participants: []string{"u1", "u2"}}, true},
		{"reversed participants", models.Conversation{ID: "u1:u2:p42", Participants: []string{"u2", "u1"}}, true},
		{"undecomposable id", models.Conversation{ID: "u1:u2", Participants: []string{"u1", "u2"}}, false},
		{"missing participants", models.Conversation{ID: "u1:u2:p42"}, false},
		{"one participant", models.Conversation{ID: "u1:u2:p42", Participants: []string{"u1"}}, false},
		{"duplicate participants", models.Conversation{ID: "u1:u2:p42", Participants: []string{"u1", "u1"}}, false},
		{"participants mismatch key", models.Conversation{ID: "u1:u2:p42", Participants: []string{"u1", "u3"}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.c)
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatalf("expected malformed")
				}
				if !errors.Is(err, ErrMalformed) {
					t.Fatalf("expected ErrMalformed, got %v", err)
				}
			}
		})
	}
}

// TestHardDeleteCascades verifies the document and all messages go
// together, for both participants.
func TestHardDeleteCascades(t *testing.T) {
	openTestStore(t)
	key := mustKey(t, "u1", "u2", "p42")
	if _, err := GetOrCreate(key, time.Unix(0, 1000)); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	m := models.Message{ID: "m1", Conversation: key.String(), Sender: "u1", Text: "hi", TS: 1000}
	if err := store.SaveMessage(key.String(), m); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}

	if err := HardDelete(key.String()); err != nil {
		t.Fatalf("HardDelete: %v", err)
	}
	if _, err := store.GetConversation(key.String()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected document gone, got %v", err)
	}
	msgs, err := store.ListMessages(key.String())
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no messages, got %d", len(msgs))
	}
}
