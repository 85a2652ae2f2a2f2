package subscription

import (
	"fmt"
	"strings"

	"chatmux/pkg/models"
)

// Namespace partitions the correlation key space by event class.
type Namespace string

const (
	// NamespaceEvents holds message-level subscriptions (actions, reactions).
	NamespaceEvents Namespace = "events"
	// NamespaceReplies holds thread subscriptions keyed by conversation id.
	NamespaceReplies Namespace = "replies"
)

// NamespaceFor returns the index namespace for a classification kind.
// Mention and Ignored do not use the index.
func NamespaceFor(kind models.Kind) (Namespace, bool) {
	switch kind {
	case models.KindAction, models.KindReaction:
		return NamespaceEvents, true
	case models.KindReply:
		return NamespaceReplies, true
	default:
		return "", false
	}
}

// Key is one subscription registration: a subscriber's interest in all
// events correlated to an anchor within a namespace. The string form is
// used only at the storage boundary.
type Key struct {
	Namespace  Namespace
	Anchor     string
	Subscriber string
}

// sep joins key segments in the storage encoding. Anchors and subscriber
// ids never contain it on the platforms this serves.
const sep = "|"

// Encode serializes the key for prefix-range storage.
func (k Key) Encode() string {
	return string(k.Namespace) + sep + k.Anchor + sep + k.Subscriber
}

// Prefix returns the range-scan prefix covering every subscriber
// registered under (namespace, anchor).
func Prefix(ns Namespace, anchor string) string {
	return string(ns) + sep + anchor + sep
}

// DecodeKey parses a stored key back into its segments.
func DecodeKey(s string) (Key, error) {
	parts := strings.SplitN(s, sep, 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Key{}, fmt.Errorf("malformed subscription key %q", s)
	}
	return Key{Namespace: Namespace(parts[0]), Anchor: parts[1], Subscriber: parts[2]}, nil
}
