package events

import "context"

// Handler processes one delivered message. A returned error is logged by
// the bus; the message is still acknowledged, because per-job failure is
// terminal and redelivery of a poisoned message would only fail again.
type Handler func(ctx context.Context, key string, payload []byte) error

// EventBus defines the interface for durable publish/consume on named
// topics. Delivery to a consumer group is at least once; consumers must
// tolerate duplicates.
type EventBus interface {
	// Publish appends one message to the topic. Fire-and-forget from the
	// caller's perspective: an error means the message was never stored.
	Publish(ctx context.Context, topic, key string, payload []byte) error

	// Subscribe consumes the topic within a consumer group, invoking the
	// handler once per delivery. Blocks until ctx is cancelled.
	Subscribe(ctx context.Context, topic, group string, handler Handler) error
}
