package view

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"noticeboard/pkg/channel"
	"noticeboard/pkg/convkey"
	"noticeboard/pkg/directory"
	"noticeboard/pkg/logger"
	"noticeboard/pkg/models"
)

var (
	// ErrBadKey means the conversation id does not parse; the caller
	// navigates back to the list instead of rendering a broken chat.
	ErrBadKey = errors.New("conversation key does not parse")
	// ErrNotParticipant means the viewing user is not part of the key.
	ErrNotParticipant = errors.New("user is not a participant of this conversation")
)

// ChatHeader is the metadata rendered above an open conversation.
type ChatHeader struct {
	Key      string `json:"key"`
	PeerID   string `json:"peer_id"`
	PeerName string `json:"peer_name"`
	Title    string `json:"title"`
	Bundle   bool   `json:"bundle,omitempty"`
	Price    int64  `json:"price,omitempty"`
	Image    string `json:"image,omitempty"`
}

// ChatView binds one open conversation to the message channel. Each open
// chat is its own instance; there is no process-global "current chat".
type ChatView struct {
	key    convkey.Key
	userID string
	dir    directory.Lookup
	now    func() time.Time

	mu      sync.Mutex
	pending string
}

// NewChatView parses the conversation id and builds the view-model.
// pendingDraft, when non-empty, is a message staged before the
// conversation existed (e.g. composed on a bundle-enquiry summary screen);
// it is sent exactly once on first Open.
func NewChatView(id, userID string, dir directory.Lookup, pendingDraft string) (*ChatView, error) {
	key, err := convkey.Decompose(id)
	if err != nil {
		return nil, ErrBadKey
	}
	if !key.Has(userID) {
		return nil, ErrNotParticipant
	}
	return &ChatView{key: key, userID: userID, dir: dir, now: time.Now, pending: pendingDraft}, nil
}

// SetClock overrides the view's clock for tests.
func (cv *ChatView) SetClock(now func() time.Time) { cv.now = now }

// Key returns the bound conversation key.
func (cv *ChatView) Key() convkey.Key { return cv.key }

// Header resolves the display metadata for the open chat. Bundle
// conversations get the synthetic multi-item header; dangling references
// fall back to placeholder labels.
func (cv *ChatView) Header() ChatHeader {
	h := ChatHeader{
		Key:      cv.key.String(),
		PeerID:   cv.key.Other(cv.userID),
		PeerName: FallbackUserName,
	}
	if u, err := cv.dir.User(h.PeerID); err == nil && u.Name != "" {
		h.PeerName = u.Name
	}
	if cv.key.Bundle() {
		h.Bundle = true
		h.Title = BundleTitle
		return h
	}
	h.Title = FallbackListingTitle
	if l, err := cv.dir.Listing(cv.key.Context); err == nil {
		if l.Title != "" {
			h.Title = l.Title
		}
		h.Price = l.Price
		h.Image = l.Image
	}
	return h
}

// Open flushes the staged draft (exactly once, cleared before the send
// settles so a re-render cannot duplicate it) and subscribes to the live
// message collection. The returned cancel must be called when navigating
// away.
func (cv *ChatView) Open(ctx context.Context) (<-chan []models.Message, func()) {
	cv.mu.Lock()
	draft := cv.pending
	cv.pending = ""
	cv.mu.Unlock()
	if draft != "" {
		if _, err := cv.Send(draft); err != nil {
			logger.Log.Error("pending_draft_send_failed", zap.String("conversation", cv.key.String()), zap.Error(err))
		}
	}
	return channel.Subscribe(ctx, cv.key)
}

// Send forwards user input to the message channel. The caller clears its
// input optimistically; durability is confirmed only when the subscription
// echoes the message back.
func (cv *ChatView) Send(text string) (models.Message, error) {
	return channel.Send(cv.key, cv.userID, text, cv.now())
}
