package channel

import (
	"context"
	"errors"
	"testing"
	"time"

	"noticeboard/pkg/convkey"
	"noticeboard/pkg/convo"
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
		t.Fatalf("Resolve: %v", err)
	}
	return k
}

func TestSendRejectsBlankText(t *testing.T) {
	openTestStore(t)
	key := mustKey(t, "u1", "u2", "p42")

	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := Send(key, "u1", text, time.Now()); !errors.Is(err, ErrEmptyText) {
			t.Fatalf("text %q: expected ErrEmptyText, got %v", text, err)
		}
	}
	convs, err := store.ListConversations()
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 0 {
		t.Fatalf("blank send must not create a conversation, got %d", len(convs))
	}
}

func TestSendRejectsNonParticipant(t *testing.T) {
	openTestStore(t)
	key := mustKey(t, "u1", "u2", "p42")
	if _, err := Send(key, "u3", "hi", time.Now()); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
}

// TestSendUpdatesSummary verifies the denormalized conversation fields
// track the latest message.
func TestSendUpdatesSummary(t *testing.T) {
	openTestStore(t)
	key := mustKey(t, "u1", "u2", "p42")

	if _, err := Send(key, "u1", "still available?", time.Unix(0, 1000)); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	if _, err := Send(key, "u2", "yes it is", time.Unix(0, 2000)); err != nil {
		t.Fatalf("second Send: %v", err)
	}

	c, err := store.GetConversation(key.String())
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if c.LastMessage != "yes it is" || c.LastSender != "u2" || c.UpdatedTS != 2000 {
		t.Fatalf("summary not updated: %+v", c)
	}

	msgs, err := store.ListMessages(key.String())
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Text != "still available?" || msgs[1].Text != "yes it is" {
		t.Fatalf("unexpected message log: %+v", msgs)
	}
	if msgs[0].Seen || msgs[1].Seen {
		t.Fatalf("messages must start unseen")
	}
}

// TestSendResurrectsHiddenConversation verifies new activity clears both
// participants' hidden flags.
func TestSendResurrectsHiddenConversation(t *testing.T) {
	openTestStore(t)
	key := mustKey(t, "u1", "u2", "p42")

	if _, err := Send(key, "u1", "hello", time.Unix(0, 1000)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := convo.MarkHidden(key, "u2"); err != nil {
		t.Fatalf("MarkHidden: %v", err)
	}

	if _, err := Send(key, "u1", "are you there?", time.Unix(0, 2000)); err != nil {
		t.Fatalf("Send after hide: %v", err)
	}
	c, err := store.GetConversation(key.String())
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if c.HiddenFor("u1") || c.HiddenFor("u2") {
		t.Fatalf("send must clear hidden flags: %+v", c.DeletedFor)
	}
}

func awaitSnapshot(t *testing.T, ch <-chan []models.Message, want int) []models.Message {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case msgs, ok := <-ch:
			if !ok {
				t.Fatalf("subscription closed before reaching %d messages", want)
			}
			if len(msgs) >= want {
				return msgs
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %d messages", want)
		}
	}
}

// TestSubscribeDeliversOrderedCollections verifies a subscriber gets the
// current state first and then full re-deliveries as messages arrive.
func TestSubscribeDeliversOrderedCollections(t *testing.T) {
	openTestStore(t)
	key := mustKey(t, "u1", "u2", "p42")

	if _, err := Send(key, "u1", "first", time.Unix(0, 1000)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	ch, cancel := Subscribe(context.Background(), key)
	defer cancel()

	initial := awaitSnapshot(t, ch, 1)
	if initial[0].Text != "first" {
		t.Fatalf("initial snapshot wrong: %+v", initial)
	}

	if _, err := Send(key, "u2", "second", time.Unix(0, 2000)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	updated := awaitSnapshot(t, ch, 2)
	if updated[0].Text != "first" || updated[1].Text != "second" {
		t.Fatalf("updated snapshot out of order: %+v", updated)
	}
}

func TestSubscribeCancelStopsDeliveries(t *testing.T) {
	openTestStore(t)
	key := mustKey(t, "u1", "u2", "p42")

	ch, cancel := Subscribe(context.Background(), key)
	awaitClosed := func() {
		deadline := time.After(5 * time.Second)
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					return
				}
			case <-deadline:
				t.Fatalf("channel not closed after cancel")
			}
		}
	}
	cancel()
	cancel() // double cancel is safe
	awaitClosed()
}
