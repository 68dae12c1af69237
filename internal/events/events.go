package events

import (
	"context"

	"github.com/alfredjeanlab/callsheet/internal/model"
)

// Event topic constants
const (
	TopicLeadClaimed   = "callsheet.lead.claimed"
	TopicLeadResumed   = "callsheet.lead.resumed"
	TopicLeadRaceLost  = "callsheet.lead.race_lost"
	TopicLeadSubmitted = "callsheet.lead.submitted"
	TopicLeadReleased  = "callsheet.lead.released"
	TopicWriteFailed   = "callsheet.lead.write_failed"

	// TopicAll matches every callsheet subject.
	TopicAll = "callsheet.>"
)

// TopicFor returns the subject a journal event of the given kind is published on.
func TopicFor(kind model.EventKind) string {
	switch kind {
	case model.EventClaimed:
		return TopicLeadClaimed
	case model.EventResumed:
		return TopicLeadResumed
	case model.EventRaceLost:
		return TopicLeadRaceLost
	case model.EventSubmitted:
		return TopicLeadSubmitted
	case model.EventReleased:
		return TopicLeadReleased
	case model.EventWriteFail:
		return TopicWriteFailed
	}
	return "callsheet.lead." + string(kind)
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers raw event payloads on the returned channel.
	// Call the returned cancel function to unsubscribe and close the channel.
	Subscribe(topic string) (<-chan []byte, func(), error)
	Close() error
}
