package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"noticeboard/pkg/live"
	"noticeboard/pkg/logger"
	"noticeboard/pkg/models"
)

var (
	db     *pebble.DB
	dbPath string
)

// seq breaks ties between messages sharing the same nanosecond timestamp.
var seq uint64

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("record not found")

// TopicConversations is the live topic signalled on any conversation-level
// change; per-conversation message changes signal MessageTopic(id) as well.
const TopicConversations = "conversations"

// MessageTopic returns the live topic for one conversation's messages.
func MessageTopic(convID string) string { return "conv:" + convID }

// Open opens (or creates) the Pebble database at path and keeps a global
// handle for package-level access.
func Open(path string) error {
	var err error
	logger.Log.Info("opening_pebble_db", zap.String("path", path))
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Log.Error("pebble_open_failed", zap.String("path", path), zap.Error(err))
		return err
	}
	dbPath = path
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Log.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool { return db != nil }

func notOpen() error { return fmt.Errorf("pebble not opened; call store.Open first") }

// DBSet writes a raw key/value pair. Tests and repair tooling use it to
// plant records the typed helpers would refuse to produce.
func DBSet(key, value []byte) error {
	if db == nil {
		return notOpen()
	}
	return db.Set(key, value, pebble.Sync)
}

// Conversation documents live under conv:<id>:meta; messages under
// conv:<id>:msg:<padded-ts>-<seq> so a prefix scan yields them in
// timestamp order.

func convMetaKey(id string) []byte { return []byte("conv:" + id + ":meta") }

// SaveConversation writes the conversation document and signals list
// subscribers.
func SaveConversation(c models.Conversation) error {
	if db == nil {
		return notOpen()
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	if err := db.Set(convMetaKey(c.ID), data, pebble.Sync); err != nil {
		logger.Log.Error("save_conversation_failed", zap.String("conversation", c.ID), zap.Error(err))
		return err
	}
	conversationsSaved.Inc()
	logger.Log.Debug("conversation_saved", zap.String("conversation", c.ID))
	live.Notify(TopicConversations)
	return nil
}

// GetConversation loads one conversation document.
func GetConversation(id string) (models.Conversation, error) {
	var c models.Conversation
	if db == nil {
		return c, notOpen()
	}
	v, closer, err := db.Get(convMetaKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return c, ErrNotFound
		}
		return c, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &c); err != nil {
		return c, fmt.Errorf("invalid conversation JSON: %w", err)
	}
	return c, nil
}

// ListConversations returns every stored conversation document. Documents
// that fail to decode are returned as bare records carrying only the id so
// the caller's validation path can classify and repair them.
func ListConversations() ([]models.Conversation, error) {
	if db == nil {
		return nil, notOpen()
	}
	prefix := []byte("conv:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Conversation
	for valid := iter.SeekGE(prefix); valid; {
		k := iter.Key()
		if !bytes.HasPrefix(k, prefix) {
			break
		}
		ks := string(k)
		var id string
		if strings.HasSuffix(ks, ":meta") {
			id = strings.TrimSuffix(strings.TrimPrefix(ks, "conv:"), ":meta")
			var c models.Conversation
			if err := json.Unmarshal(iter.Value(), &c); err != nil {
				logger.Log.Warn("conversation_decode_failed", zap.String("key", ks), zap.Error(err))
				out = append(out, models.Conversation{ID: id})
			} else {
				out = append(out, c)
			}
		} else if i := strings.LastIndex(ks, ":msg:"); i > len("conv:") {
			// orphan message block (document deleted, purge incomplete)
			id = ks[len("conv:"):i]
		} else {
			valid = iter.Next()
			continue
		}
		// jump past the conversation's message block; listing cost stays
		// proportional to the number of conversations, not messages
		valid = iter.SeekGE([]byte("conv:" + id + ":msg;"))
	}
	return out, iter.Error()
}

// DeleteConversationDoc removes the conversation document only. Deleting a
// missing document is a no-op.
func DeleteConversationDoc(id string) error {
	if db == nil {
		return notOpen()
	}
	if err := db.Delete(convMetaKey(id), pebble.Sync); err != nil {
		logger.Log.Error("delete_conversation_failed", zap.String("conversation", id), zap.Error(err))
		return err
	}
	live.Notify(TopicConversations)
	return nil
}

// SaveMessage appends a message under its conversation, keyed by the
// message's client-assigned timestamp so the prefix scan returns createdAt
// order.
func SaveMessage(convID string, m models.Message) error {
	if db == nil {
		return notOpen()
	}
	s := atomic.AddUint64(&seq, 1)
	key := fmt.Sprintf("conv:%s:msg:%020d-%06d", convID, m.TS, s)
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := db.Set([]byte(key), data, pebble.Sync); err != nil {
		logger.Log.Error("save_message_failed", zap.String("conversation", convID), zap.String("key", key), zap.Error(err))
		return err
	}
	messagesSaved.Inc()
	logger.Log.Info("message_saved", zap.String("conversation", convID), zap.String("msg_id", m.ID))
	live.Notify(MessageTopic(convID))
	return nil
}

// ListMessages returns the full ordered message collection for a
// conversation (createdAt ascending). Undecodable entries are skipped.
func ListMessages(convID string) ([]models.Message, error) {
	if db == nil {
		return nil, notOpen()
	}
	prefix := []byte("conv:" + convID + ":msg:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	out := []models.Message{}
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Log.Warn("message_decode_failed", zap.String("key", string(iter.Key())), zap.Error(err))
			continue
		}
		out = append(out, m)
	}
	return out, iter.Error()
}

// PurgeConversation removes a conversation's messages and then its
// document. It is idempotent and safe to re-run against a conversation a
// previous partially-failed purge left behind.
func PurgeConversation(id string) error {
	if db == nil {
		return notOpen()
	}
	prefix := []byte("conv:" + id + ":msg:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	var keys [][]byte
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		keys = append(keys, append([]byte(nil), iter.Key()...))
	}
	if err := iter.Close(); err != nil {
		return err
	}
	// children first, parent last, so a partial failure leaves a record
	// the next purge run still finds
	for _, k := range keys {
		if err := db.Delete(k, pebble.Sync); err != nil {
			logger.Log.Error("purge_message_failed", zap.String("conversation", id), zap.String("key", string(k)), zap.Error(err))
			return err
		}
	}
	if err := db.Delete(convMetaKey(id), pebble.Sync); err != nil {
		logger.Log.Error("purge_conversation_failed", zap.String("conversation", id), zap.Error(err))
		return err
	}
	conversationsPurged.Inc()
	logger.Log.Info("conversation_purged", zap.String("conversation", id), zap.Int("messages", len(keys)))
	live.Notify(TopicConversations)
	live.Notify(MessageTopic(id))
	return nil
}
