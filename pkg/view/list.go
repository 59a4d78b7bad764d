// Package view holds the two view-models: the conversation list and a
// single open chat. Both are constructed with explicit dependencies so
// independent instances can coexist (and be tested) without ambient state.
package view

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"noticeboard/pkg/convkey"
	"noticeboard/pkg/convo"
	"noticeboard/pkg/directory"
	"noticeboard/pkg/live"
	"noticeboard/pkg/logger"
	"noticeboard/pkg/models"
	"noticeboard/pkg/store"
)

// Fallback labels for dangling references.
const (
	FallbackUserName     = "User"
	FallbackListingTitle = "Item unavailable"
	BundleTitle          = "Multiple items"
)

// DefaultRetention is the conversation retention window; entries whose
// last activity is strictly older are expired and hard-deleted.
const DefaultRetention = 10 * 24 * time.Hour

// Entry is one rendered row of the conversation list.
type Entry struct {
	Key         string `json:"key"`
	PeerID      string `json:"peer_id"`
	PeerName    string `json:"peer_name"`
	Title       string `json:"title"`
	Bundle      bool   `json:"bundle,omitempty"`
	LastMessage string `json:"last_message,omitempty"`
	LastSender  string `json:"last_sender,omitempty"`
	Unread      bool   `json:"unread"`
	UpdatedTS   int64  `json:"updated_ts"`
}

// ListView renders the conversation list for one user.
type ListView struct {
	userID    string
	dir       directory.Lookup
	retention time.Duration
	now       func() time.Time
}

// NewListView builds a list view-model for userID. retention <= 0 selects
// DefaultRetention.
func NewListView(userID string, dir directory.Lookup, retention time.Duration) *ListView {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &ListView{userID: userID, dir: dir, retention: retention, now: time.Now}
}

// SetClock overrides the view's clock; tests use it to probe the expiry
// boundary.
func (v *ListView) SetClock(now func() time.Time) { v.now = now }

// Render computes the visible, time-ordered, de-duplicated list from the
// current store snapshot. Expired and malformed records are scheduled for
// deletion/repair in the background and never rendered, not even while the
// delete is still in flight.
func (v *ListView) Render() ([]Entry, error) {
	convs, err := store.ListConversations()
	if err != nil {
		// retryable: the caller keeps showing its last-known state
		return nil, err
	}
	now := v.now().UTC().UnixNano()
	horizon := now - v.retention.Nanoseconds()

	seen := make(map[string]bool, len(convs))
	entries := make([]Entry, 0, len(convs))
	for _, c := range convs {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true

		activity := c.UpdatedTS
		if activity == 0 {
			activity = c.CreatedTS
		}
		if activity < horizon {
			// lazy expiry sweep: best-effort, idempotent, racing deletes
			// from other clients are fine
			go func(id string) {
				if err := convo.HardDelete(id); err != nil {
					logger.Log.Warn("expiry_delete_failed", zap.String("conversation", id), zap.Error(err))
				}
			}(c.ID)
			continue
		}
		if err := convo.Validate(c); err != nil {
			logger.Log.Warn("conversation_invalid", zap.String("conversation", c.ID), zap.Error(err))
			convo.Repair(c)
			continue
		}
		if !c.HasParticipant(v.userID) {
			continue
		}
		if c.HiddenFor(v.userID) {
			continue
		}
		entries = append(entries, v.entry(c))
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].UpdatedTS != entries[j].UpdatedTS {
			return entries[i].UpdatedTS > entries[j].UpdatedTS
		}
		return entries[i].Key < entries[j].Key
	})
	return entries, nil
}

func (v *ListView) entry(c models.Conversation) Entry {
	e := Entry{
		Key:         c.ID,
		PeerID:      c.Other(v.userID),
		PeerName:    FallbackUserName,
		LastMessage: c.LastMessage,
		LastSender:  c.LastSender,
		// unread is derived, never stored: the last word in the
		// conversation belongs to someone else
		Unread:    c.LastSender != "" && c.LastSender != v.userID,
		UpdatedTS: c.UpdatedTS,
	}
	if u, err := v.dir.User(e.PeerID); err == nil && u.Name != "" {
		e.PeerName = u.Name
	}
	// Validate ran before entry, so the id decomposes
	key, _ := convkey.Decompose(c.ID)
	if key.Bundle() {
		e.Bundle = true
		e.Title = BundleTitle
		return e
	}
	e.Title = FallbackListingTitle
	if l, err := v.dir.Listing(key.Context); err == nil && l.Title != "" {
		e.Title = l.Title
	}
	return e
}

// Subscribe re-renders on every conversation change, starting with the
// current state. Cancel stops all further deliveries and closes the
// channel; callers must cancel before discarding the view (a leaked
// subscription keeps re-rendering into nothing).
func (v *ListView) Subscribe(ctx context.Context) (<-chan []Entry, func()) {
	sig, cancelSig := live.Subscribe(store.TopicConversations)
	out := make(chan []Entry, 1)
	done := make(chan struct{})

	go func() {
		defer close(out)
		deliver := func() bool {
			entries, err := v.Render()
			if err != nil {
				logger.Log.Warn("list_snapshot_failed", zap.String("user", v.userID), zap.Error(err))
				return true
			}
			select {
			case out <- entries:
				return true
			case <-done:
				return false
			case <-ctx.Done():
				return false
			}
		}
		if !deliver() {
			return
		}
		for {
			select {
			case _, ok := <-sig:
				if !ok {
					return
				}
				if !deliver() {
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			cancelSig()
		})
	}
	return out, cancel
}
