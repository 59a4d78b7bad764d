// Package convo owns the conversation document lifecycle: idempotent
// creation, per-participant hiding, cascading hard delete, and detection
// plus repair of malformed records.
package convo

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"noticeboard/pkg/convkey"
	"noticeboard/pkg/logger"
	"noticeboard/pkg/models"
	"noticeboard/pkg/store"
)

// ErrMalformed classifies a stored conversation that fails the structural
// invariants (undecomposable id or wrong participant set).
var ErrMalformed = errors.New("malformed conversation record")

// mu serializes read-modify-write cycles on conversation documents. The
// deterministic key already deduplicates across clients; this guards the
// check-then-create window inside one process.
var mu sync.Mutex

// GetOrCreate returns the conversation for key, creating an empty one when
// absent. An existing document is returned unchanged; repeated calls are
// no-ops on core fields.
func GetOrCreate(key convkey.Key, now time.Time) (models.Conversation, error) {
	mu.Lock()
	defer mu.Unlock()
	c, err := store.GetConversation(key.String())
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return c, fmt.Errorf("load conversation: %w", err)
	}
	ts := now.UTC().UnixNano()
	c = models.Conversation{
		ID:           key.String(),
		Participants: []string{key.A, key.B},
		CreatedTS:    ts,
		UpdatedTS:    ts,
		DeletedFor:   map[string]bool{},
	}
	if err := store.SaveConversation(c); err != nil {
		return c, fmt.Errorf("create conversation: %w", err)
	}
	logger.Log.Info("conversation_created", zap.String("conversation", c.ID))
	return c, nil
}

// MarkHidden merges deleted_for[userID]=true without touching other
// fields. Only that user's list view is affected.
func MarkHidden(key convkey.Key, userID string) error {
	return setHidden(key, userID, true)
}

// ClearHidden removes the user's hidden mark.
func ClearHidden(key convkey.Key, userID string) error {
	return setHidden(key, userID, false)
}

func setHidden(key convkey.Key, userID string, hidden bool) error {
	mu.Lock()
	defer mu.Unlock()
	c, err := store.GetConversation(key.String())
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	if c.DeletedFor == nil {
		c.DeletedFor = map[string]bool{}
	}
	if hidden {
		c.DeletedFor[userID] = true
	} else {
		delete(c.DeletedFor, userID)
	}
	if err := store.SaveConversation(c); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	logger.Log.Info("conversation_hidden_changed", zap.String("conversation", c.ID), zap.String("user", userID), zap.Bool("hidden", hidden))
	return nil
}

// HardDelete removes the conversation and all its messages for both
// participants. Idempotent; safe to re-run after a partial failure.
func HardDelete(id string) error {
	return store.PurgeConversation(id)
}

// Validate classifies a stored conversation record. nil means well formed;
// ErrMalformed (wrapped with the reason) means the record should be
// repaired away.
func Validate(c models.Conversation) error {
	key, err := convkey.Decompose(c.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(c.Participants) != 2 {
		return fmt.Errorf("%w: expected 2 participants, have %d", ErrMalformed, len(c.Participants))
	}
	p0, p1 := c.Participants[0], c.Participants[1]
	if p0 == p1 || p0 == "" || p1 == "" {
		return fmt.Errorf("%w: participants not a distinct pair", ErrMalformed)
	}
	if !(p0 == key.A && p1 == key.B) && !(p0 == key.B && p1 == key.A) {
		return fmt.Errorf("%w: participants do not match key", ErrMalformed)
	}
	return nil
}

// Repair hard-deletes a malformed record in the background. It never
// blocks the caller; failures are logged and the next sweep retries.
func Repair(c models.Conversation) {
	go func(id string) {
		if err := HardDelete(id); err != nil {
			logger.Log.Error("conversation_repair_failed", zap.String("conversation", id), zap.Error(err))
			return
		}
		logger.Log.Warn("malformed_conversation_repaired", zap.String("conversation", id))
	}(c.ID)
}
