// Package channel appends messages to conversations and maintains the
// denormalized conversation summary. The message log is the source of
// truth; the summary is advisory display data updated last-writer-wins.
package channel

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"noticeboard/pkg/convkey"
	"noticeboard/pkg/convo"
	"noticeboard/pkg/live"
	"noticeboard/pkg/logger"
	"noticeboard/pkg/models"
	"noticeboard/pkg/store"
)

var (
	ErrEmptyText      = errors.New("message text required")
	ErrNotParticipant = errors.New("sender is not a conversation participant")
)

// Send appends a message and then updates the conversation summary. The
// two writes are intentionally not atomic: the list view may briefly show
// a summary behind (or ahead of) the message log, and concurrent senders
// resolve by whichever summary write lands last.
//
// Sending clears deleted_for for both participants, so a conversation one
// side had hidden resurrects on new activity.
func Send(key convkey.Key, senderID, text string, now time.Time) (models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return models.Message{}, ErrEmptyText
	}
	if !key.Has(senderID) {
		return models.Message{}, ErrNotParticipant
	}
	c, err := convo.GetOrCreate(key, now)
	if err != nil {
		return models.Message{}, err
	}

	m := models.Message{
		ID:           uuid.NewString(),
		Conversation: key.String(),
		Sender:       senderID,
		Text:         text,
		TS:           now.UTC().UnixNano(),
		Seen:         false,
	}
	if err := store.SaveMessage(key.String(), m); err != nil {
		return models.Message{}, err
	}

	c.LastMessage = m.Text
	c.LastSender = m.Sender
	c.UpdatedTS = m.TS
	c.DeletedFor = map[string]bool{}
	if err := store.SaveConversation(c); err != nil {
		// the message is durable; the stale summary heals on the next send
		logger.Log.Error("summary_update_failed", zap.String("conversation", c.ID), zap.Error(err))
		return m, err
	}
	return m, nil
}

// Subscribe delivers the full ordered message collection of key on every
// underlying change, starting with the current state. Consumers re-render
// idempotently per delivery. Cancellation (via the returned func or ctx)
// closes the output channel and stops all further deliveries.
func Subscribe(ctx context.Context, key convkey.Key) (<-chan []models.Message, func()) {
	id := key.String()
	sig, cancelSig := live.Subscribe(store.MessageTopic(id))
	out := make(chan []models.Message, 1)
	done := make(chan struct{})

	go func() {
		defer close(out)
		deliver := func() bool {
			msgs, err := store.ListMessages(id)
			if err != nil {
				// transient store failure: keep the last-known state on
				// the consumer side, retry on the next signal
				logger.Log.Warn("message_snapshot_failed", zap.String("conversation", id), zap.Error(err))
				return true
			}
			select {
			case out <- msgs:
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
