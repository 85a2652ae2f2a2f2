// Package classify maps raw inbound activities to their routing kind.
// Classification is pure: no store or registry access happens here.
package classify

import (
	"encoding/json"
	"regexp"
	"strings"

	"chatmux/pkg/models"
)

// ReplyDetector derives the reply-target activity id from an activity
// when the explicit replyToId field is absent. Implementations are
// platform-specific; the default parses the transcript reference out of
// composite conversation ids.
type ReplyDetector interface {
	ReplyTarget(a *models.Activity) (string, bool)
}

// transcript ids embed the thread root as ";messageid=<digits>"
var transcriptRef = regexp.MustCompile(`;messageid=(\d+)`)

// TranscriptReplyDetector is the default ReplyDetector for platforms that
// encode the thread root message id into the conversation id.
type TranscriptReplyDetector struct{}

func (TranscriptReplyDetector) ReplyTarget(a *models.Activity) (string, bool) {
	m := transcriptRef.FindStringSubmatch(a.Conversation.ID)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Classifier classifies inbound activities against a fixed bot identity.
type Classifier struct {
	botID    string
	detector ReplyDetector
}

// New returns a Classifier for the given bot id. A nil detector selects
// the transcript detector.
func New(botID string, detector ReplyDetector) *Classifier {
	if detector == nil {
		detector = TranscriptReplyDetector{}
	}
	return &Classifier{botID: botID, detector: detector}
}

// Classify maps one activity to its kind and anchor. Malformed activities
// classify as Ignored, never as an error.
func (c *Classifier) Classify(a *models.Activity) models.Classified {
	if a == nil {
		return models.Classified{Kind: models.KindIgnored}
	}
	switch a.Type {
	case models.ActivityMessage:
		return c.classifyMessage(a)
	case models.ActivityMessageReaction:
		if a.ReplyToID == "" {
			return models.Classified{Kind: models.KindIgnored, Activity: a}
		}
		return models.Classified{Kind: models.KindReaction, Anchor: a.ReplyToID, Activity: a}
	case models.ActivityInvoke:
		if a.ReplyToID == "" {
			return models.Classified{Kind: models.KindIgnored, Activity: a}
		}
		return models.Classified{Kind: models.KindAction, Anchor: a.ReplyToID, Activity: a}
	default:
		return models.Classified{Kind: models.KindIgnored, Activity: a}
	}
}

func (c *Classifier) classifyMessage(a *models.Activity) models.Classified {
	if c.mentionsBot(a) {
		return models.Classified{Kind: models.KindMention, Channel: a.ChannelID(), Activity: a}
	}

	target := c.replyTarget(a)
	if target == "" {
		return models.Classified{Kind: models.KindIgnored, Activity: a}
	}
	// the bot replying in its own threads must not feed back into dispatch
	if c.isSelf(a.From.ID) {
		return models.Classified{Kind: models.KindIgnored, Activity: a}
	}
	if hasActionPayload(a.Value) {
		return models.Classified{Kind: models.KindAction, Anchor: target, Activity: a}
	}
	// plain replies anchor on the conversation id: thread subscriptions
	// are registered per conversation, not per message
	return models.Classified{Kind: models.KindReply, Anchor: a.Conversation.ID, Activity: a}
}

// replyTarget prefers the explicit reply-target field and falls back to
// the detector. A message referencing itself is not a reply.
func (c *Classifier) replyTarget(a *models.Activity) string {
	if a.ReplyToID != "" && a.ReplyToID != a.ID {
		return a.ReplyToID
	}
	if t, ok := c.detector.ReplyTarget(a); ok && t != a.ID {
		return t
	}
	return ""
}

// mentionsBot reports whether any mention entity references the bot's
// own identity.
func (c *Classifier) mentionsBot(a *models.Activity) bool {
	for _, e := range a.Entities {
		if !strings.EqualFold(e.Type, "mention") || e.Mentioned == nil {
			continue
		}
		if c.isSelf(e.Mentioned.ID) {
			return true
		}
	}
	return false
}

// isSelf matches the bot's numeric id (fixed platform prefix stripped)
// by substring containment against the given identity.
func (c *Classifier) isSelf(id string) bool {
	if c.botID == "" || id == "" {
		return false
	}
	bare := strings.TrimPrefix(c.botID, models.BotIDPrefix)
	if bare == "" {
		return false
	}
	return strings.Contains(id, bare)
}

// hasActionPayload reports whether the activity carries a non-empty
// structured action payload.
func hasActionPayload(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return false
	}
	return len(m) > 0
}
