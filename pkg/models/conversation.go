package models

// Conversation is the central document: one record per participant pair and
// listing context, addressed by the deterministic key from pkg/convkey.
type Conversation struct {
	ID string `json:"id"`
	// Participants holds exactly two distinct user ids; order is not
	// meaningful (the key is order-independent).
	Participants []string `json:"participants"`
	// LastMessage / LastSender are a denormalized copy of the newest
	// message for list rendering. They may lag the message log briefly;
	// the message collection is the source of truth.
	LastMessage string `json:"last_message,omitempty"`
	LastSender  string `json:"last_sender,omitempty"`
	// Created/Updated timestamps (ns). UpdatedTS orders the list view and
	// drives expiry.
	CreatedTS int64 `json:"created_ts,omitempty"`
	UpdatedTS int64 `json:"updated_ts,omitempty"`
	// DeletedFor marks participants who hid the conversation from their
	// own list. Hiding is per-user; the document stays live for the other
	// participant.
	DeletedFor map[string]bool `json:"deleted_for,omitempty"`
}

// HiddenFor reports whether the given participant soft-deleted their view.
func (c *Conversation) HiddenFor(userID string) bool {
	return c.DeletedFor[userID]
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Other returns the participant that is not userID, or "" when userID is
// not a participant.
func (c *Conversation) Other(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}
