package models

import "encoding/json"

// Activity kinds as received on the platform webhook.
const (
	ActivityMessage            = "message"
	ActivityMessageReaction    = "messageReaction"
	ActivityConversationUpdate = "conversationUpdate"
	ActivityInvoke             = "invoke"
)

// BotIDPrefix is the fixed prefix the platform attaches to bot identities.
const BotIDPrefix = "28:"

// Account identifies a platform user or bot.
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Conversation identifies the conversation an activity belongs to. The id
// may be composite: channel replies carry a ";messageid=<digits>" suffix
// referencing the thread root.
type Conversation struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId,omitempty"`
}

// Entity is a loosely-structured activity annotation. Mentions carry the
// mentioned account.
type Entity struct {
	Type      string   `json:"type"`
	Mentioned *Account `json:"mentioned,omitempty"`
}

// Reaction is a single reaction marker (like, heart, ...).
type Reaction struct {
	Type string `json:"type"`
}

// ChannelData carries channel-specific metadata.
type ChannelData struct {
	Channel struct {
		ID string `json:"id"`
	} `json:"channel"`
	Team struct {
		ID string `json:"id"`
	} `json:"team"`
}

// Attachment is an opaque content attachment on a message activity.
type Attachment struct {
	ContentType string          `json:"contentType,omitempty"`
	ContentURL  string          `json:"contentUrl,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
	Name        string          `json:"name,omitempty"`
}

// Activity is one inbound event from the messaging platform as decoded
// from the webhook body. Fields are best-effort: absent fields decode to
// zero values and classification treats them as missing.
type Activity struct {
	Type             string          `json:"type"`
	ID               string          `json:"id"`
	ReplyToID        string          `json:"replyToId,omitempty"`
	Name             string          `json:"name,omitempty"`
	Text             string          `json:"text,omitempty"`
	Value            json.RawMessage `json:"value,omitempty"`
	Attachments      []Attachment    `json:"attachments,omitempty"`
	From             Account         `json:"from"`
	Recipient        Account         `json:"recipient,omitempty"`
	Conversation     Conversation    `json:"conversation"`
	Entities         []Entity        `json:"entities,omitempty"`
	ReactionsAdded   []Reaction      `json:"reactionsAdded,omitempty"`
	ReactionsRemoved []Reaction      `json:"reactionsRemoved,omitempty"`
	ChannelData      ChannelData     `json:"channelData,omitempty"`
	Timestamp        int64           `json:"timestamp,omitempty"`
}

// ChannelID returns the channel id from the channel metadata, if any.
func (a *Activity) ChannelID() string {
	return a.ChannelData.Channel.ID
}
