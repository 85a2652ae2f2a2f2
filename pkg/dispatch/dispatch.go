// Package dispatch orchestrates classification output into deliveries:
// resolve the correlation prefix, look up candidate subscribers, filter
// them against the live registry and fan the normalized payload out.
package dispatch

import (
	"context"
	"errors"

	"chatmux/pkg/emit"
	"chatmux/pkg/logger"
	"chatmux/pkg/models"
	"chatmux/pkg/registry"
	"chatmux/pkg/subscription"
	"chatmux/pkg/telemetry"
)

// Dispatcher routes classified activities. Store and registry errors are
// fatal for the single activity being dispatched; delivery errors are
// collected so one failing subscriber never blocks the others.
type Dispatcher struct {
	index   *subscription.Index
	reg     registry.Registry
	emitter emit.Emitter
}

// New returns a Dispatcher over the given collaborators.
func New(index *subscription.Index, reg registry.Registry, emitter emit.Emitter) *Dispatcher {
	return &Dispatcher{index: index, reg: reg, emitter: emitter}
}

// Dispatch delivers one classified activity. Ignored classifications,
// unregistered anchors, empty live intersections and absent parent
// events are silent no-ops.
func (d *Dispatcher) Dispatch(ctx context.Context, cls models.Classified) error {
	switch cls.Kind {
	case models.KindIgnored:
		return nil
	case models.KindMention:
		return d.dispatchMention(ctx, cls)
	case models.KindReply, models.KindAction, models.KindReaction:
		return d.dispatchCorrelated(ctx, cls)
	default:
		return nil
	}
}

func (d *Dispatcher) dispatchMention(ctx context.Context, cls models.Classified) error {
	a := cls.Activity
	subs, err := d.reg.ListByCapability(models.CapabilityMention)
	if err != nil {
		return err
	}
	payload := models.MentionPayload{
		Text:           a.Text,
		FromID:         a.From.ID,
		FromName:       a.From.Name,
		ActivityID:     a.ID,
		ConversationID: a.Conversation.ID,
		ChannelID:      cls.Channel,
		TS:             a.Timestamp,
	}
	var errs []error
	delivered := 0
	for _, s := range subs {
		// handles with no configured scope match every channel
		if s.Channel != "" && s.Channel != cls.Channel {
			continue
		}
		delivered++
		if err := d.emit(ctx, emit.Event{Subscriber: s.ID, Name: string(models.KindMention), Payload: payload}); err != nil {
			errs = append(errs, err)
		}
	}
	if delivered == 0 {
		logger.Debug("mention_no_subscribers", "channel", cls.Channel)
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) dispatchCorrelated(ctx context.Context, cls models.Classified) error {
	ns, ok := subscription.NamespaceFor(cls.Kind)
	if !ok {
		return nil
	}
	candidates, err := d.index.Lookup(ns, cls.Anchor)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}

	// liveness filter against the registry, fresh on every dispatch:
	// membership can change between registration and delivery
	live, err := d.liveSet(capabilityFor(cls.Kind))
	if err != nil {
		return err
	}
	var targets []string
	for _, id := range candidates {
		if _, ok := live[id]; ok {
			targets = append(targets, id)
		}
	}
	if len(targets) == 0 {
		logger.Debug("dispatch_all_subscribers_stale", "namespace", string(ns), "anchor", cls.Anchor)
		return nil
	}

	parent, ok, err := d.index.ParentEvent(cls.Anchor)
	if err != nil {
		return err
	}
	if !ok {
		logger.Debug("dispatch_no_parent_event", "anchor", cls.Anchor)
		return nil
	}

	var errs []error
	for _, id := range targets {
		for _, ev := range d.buildEvents(cls, id, parent) {
			if err := d.emit(ctx, ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// buildEvents produces the deliveries for one subscriber. Reactions fan
// out to one event per individual change, added list first, then
// removed.
func (d *Dispatcher) buildEvents(cls models.Classified, subscriber, parent string) []emit.Event {
	a := cls.Activity
	switch cls.Kind {
	case models.KindReply:
		return []emit.Event{{
			Subscriber:  subscriber,
			ParentEvent: parent,
			Name:        string(models.KindReply),
			Payload: models.ReplyPayload{
				Text:           a.Text,
				Attachments:    a.Attachments,
				FromID:         a.From.ID,
				FromName:       a.From.Name,
				ActivityID:     a.ID,
				ConversationID: a.Conversation.ID,
				TS:             a.Timestamp,
			},
		}}
	case models.KindAction:
		actionID := a.Name
		if actionID == "" {
			actionID = "submit"
		}
		return []emit.Event{{
			Subscriber:  subscriber,
			ParentEvent: parent,
			Name:        string(models.KindAction),
			Payload:     models.ActionPayload{ActionID: actionID, ActionData: a.Value},
		}}
	case models.KindReaction:
		var out []emit.Event
		for _, r := range a.ReactionsAdded {
			out = append(out, emit.Event{
				Subscriber:  subscriber,
				ParentEvent: parent,
				Name:        string(models.KindReaction),
				Payload:     models.ReactionPayload{ReactionType: r.Type, Action: "add"},
			})
		}
		for _, r := range a.ReactionsRemoved {
			out = append(out, emit.Event{
				Subscriber:  subscriber,
				ParentEvent: parent,
				Name:        string(models.KindReaction),
				Payload:     models.ReactionPayload{ReactionType: r.Type, Action: "remove"},
			})
		}
		return out
	default:
		return nil
	}
}

func (d *Dispatcher) liveSet(cap models.Capability) (map[string]struct{}, error) {
	subs, err := d.reg.ListByCapability(cap)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(subs))
	for _, s := range subs {
		out[s.ID] = struct{}{}
	}
	return out, nil
}

func (d *Dispatcher) emit(ctx context.Context, ev emit.Event) error {
	if err := d.emitter.Emit(ctx, ev); err != nil {
		telemetry.EmitFailures.Inc()
		logger.Error("event_emit_failed", "subscriber", ev.Subscriber, "name", ev.Name, "error", err)
		return err
	}
	telemetry.EventsEmitted.WithLabelValues(ev.Name).Inc()
	return nil
}

// capabilityFor maps a correlated kind to the registry capability whose
// live handles may receive it.
func capabilityFor(kind models.Kind) models.Capability {
	if kind == models.KindReply {
		return models.CapabilityThread
	}
	return models.CapabilitySender
}
