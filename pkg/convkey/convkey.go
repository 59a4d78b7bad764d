// Package convkey derives and parses the canonical conversation key. The
// key is the dedup mechanism: both participants compute the same id without
// coordination, so an upsert by id can never create a duplicate.
package convkey

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// BundleContext is the reserved context token for a multi-item enquiry.
// It is excluded from the listing-id namespace by convention.
const BundleContext = "bundle"

const sep = ":"

// segmentRe constrains every key segment. The separator cannot appear in a
// segment, which keeps Decompose a total left inverse of Resolve.
var segmentRe = regexp.MustCompile(`^[A-Za-z0-9._-]{1,256}$`)

var (
	ErrEmptyParticipant = errors.New("participant id required")
	ErrSameParticipant  = errors.New("participants must be distinct")
	ErrBadSegment       = errors.New("id contains invalid characters")
	ErrMalformed        = errors.New("malformed conversation key")
)

// Key is the decomposed form of a conversation id. A and B are the
// participant pair in canonical (lexicographic) order; Context is a listing
// id or BundleContext.
type Key struct {
	A       string
	B       string
	Context string
}

// Bundle reports whether the key addresses a multi-item enquiry.
func (k Key) Bundle() bool { return k.Context == BundleContext }

// String renders the canonical id: "<a>:<b>:<context>".
func (k Key) String() string {
	return k.A + sep + k.B + sep + k.Context
}

// Has reports whether userID is one of the key's participants.
func (k Key) Has(userID string) bool { return k.A == userID || k.B == userID }

// Other returns the participant that is not userID ("" when userID is not
// part of the key).
func (k Key) Other(userID string) string {
	switch userID {
	case k.A:
		return k.B
	case k.B:
		return k.A
	}
	return ""
}

// Resolve builds the canonical key for a participant pair and context. It
// is order-independent in the pair: Resolve(a, b, c) == Resolve(b, a, c).
func Resolve(a, b, context string) (Key, error) {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return Key{}, ErrEmptyParticipant
	}
	if a == b {
		return Key{}, ErrSameParticipant
	}
	for _, seg := range [...]string{a, b, context} {
		if !segmentRe.MatchString(seg) {
			return Key{}, fmt.Errorf("%w: %q", ErrBadSegment, seg)
		}
	}
	if b < a {
		a, b = b, a
	}
	return Key{A: a, B: b, Context: context}, nil
}

// Decompose parses a conversation id back into its key. Any id that does
// not split into exactly three well-formed segments with the pair in
// canonical order is malformed.
func Decompose(id string) (Key, error) {
	parts := strings.Split(id, sep)
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("%w: %q", ErrMalformed, id)
	}
	for _, seg := range parts {
		if !segmentRe.MatchString(seg) {
			return Key{}, fmt.Errorf("%w: %q", ErrMalformed, id)
		}
	}
	if parts[0] >= parts[1] {
		return Key{}, fmt.Errorf("%w: %q", ErrMalformed, id)
	}
	return Key{A: parts[0], B: parts[1], Context: parts[2]}, nil
}
