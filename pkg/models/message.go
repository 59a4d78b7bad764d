package models

type Message struct {
	ID           string `json:"id"`
	Conversation string `json:"conversation"`
	Sender       string `json:"sender"`
	Text         string `json:"text"`
	// TS is the client-assigned creation timestamp (ns), not authoritative
	// server time; ordering within a conversation is by TS ascending.
	TS int64 `json:"ts"`
	// Seen is set false at creation and never flipped by any read path;
	// unread state in the list view is derived from the conversation
	// summary instead.
	Seen bool `json:"seen"`
}
