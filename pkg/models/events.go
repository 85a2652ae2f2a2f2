package models

import "encoding/json"

// Kind is the classification of an inbound activity.
type Kind string

const (
	KindMention  Kind = "mention"
	KindReply    Kind = "reply"
	KindAction   Kind = "action"
	KindReaction Kind = "reaction"
	KindIgnored  Kind = "ignored"
)

// Classified is the output of the activity classifier: the kind, the
// anchor id subscriptions are indexed under (empty for Mention and
// Ignored), the channel scope for mentions, and the source activity.
type Classified struct {
	Kind     Kind
	Anchor   string
	Channel  string
	Activity *Activity
}

// MentionPayload is the normalized event body for bot mentions.
type MentionPayload struct {
	Text           string `json:"text"`
	FromID         string `json:"from_id"`
	FromName       string `json:"from_name,omitempty"`
	ActivityID     string `json:"activity_id"`
	ConversationID string `json:"conversation_id"`
	ChannelID      string `json:"channel_id,omitempty"`
	TS             int64  `json:"ts,omitempty"`
}

// ReplyPayload is the normalized event body for thread replies.
type ReplyPayload struct {
	Text           string       `json:"text"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	FromID         string       `json:"from_id"`
	FromName       string       `json:"from_name,omitempty"`
	ActivityID     string       `json:"activity_id"`
	ConversationID string       `json:"conversation_id"`
	TS             int64        `json:"ts,omitempty"`
}

// ActionPayload is the normalized event body for card/message actions.
type ActionPayload struct {
	ActionID   string          `json:"action_id"`
	ActionData json.RawMessage `json:"action_data,omitempty"`
}

// ReactionPayload is the normalized event body for one reaction change.
type ReactionPayload struct {
	ReactionType string `json:"reaction_type"`
	Action       string `json:"action"` // add | remove
}
