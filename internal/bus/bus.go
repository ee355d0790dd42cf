package bus

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/cskr/pubsub"
)

const defaultCapacity = 128

type Subscription chan any

// MessageBus is the ordered, multi-subscriber notification stream shared by
// the transport, the device session and observers.
type MessageBus interface {
	Publish(topic string, msg any)
	Subscribe(topic string) Subscription
	Unsubscribe(ch Subscription, topics ...string)
	Close()
}

type PubSubBus struct {
	ps     *pubsub.PubSub
	logger *slog.Logger
}

func New(logger *slog.Logger) *PubSubBus {
	if logger == nil {
		logger = slog.Default()
	}

	return &PubSubBus{
		ps:     pubsub.New(defaultCapacity),
		logger: logger,
	}
}

// Publish delivers msg to every subscriber of topic. Messages published from
// one goroutine reach each subscriber in publish order.
func (b *PubSubBus) Publish(topic string, msg any) {
	b.logger.Debug("publish", "topic", topic, "payload_type", payloadType(msg))
	b.ps.Pub(msg, topic)
}

func (b *PubSubBus) Subscribe(topic string) Subscription {
	ch := b.ps.Sub(topic)
	b.logger.Debug("subscribe", "topic", topic)

	return ch
}

func (b *PubSubBus) Unsubscribe(ch Subscription, topics ...string) {
	if len(topics) == 0 {
		b.ps.Unsub(ch)
		b.logger.Debug("unsubscribe", "mode", "all")

		return
	}
	b.ps.Unsub(ch, topics...)
	b.logger.Debug("unsubscribe", "topics", topics)
}

func (b *PubSubBus) Close() {
	b.ps.Shutdown()
}

// Listen subscribes to topic and calls fn for every message of type T until
// ctx is done or the bus is closed. Messages of other types are skipped.
// The returned channel is closed once the listener goroutine exits.
func Listen[T any](ctx context.Context, b MessageBus, topic string, fn func(T)) <-chan struct{} {
	sub := b.Subscribe(topic)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				// Unsub from a separate goroutine: the bus may be blocked
				// delivering into sub, which we no longer read.
				go b.Unsubscribe(sub, topic)
				go func() {
					for range sub {
					}
				}()

				return
			case raw, ok := <-sub:
				if !ok {
					return
				}
				msg, ok := raw.(T)
				if !ok {
					continue
				}
				fn(msg)
			}
		}
	}()

	return done
}

func payloadType(v any) string {
	if v == nil {
		return "<nil>"
	}

	return reflect.TypeOf(v).String()
}
