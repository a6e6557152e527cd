package service

import "context"

const (
	TopicProductEvents = "product_events"
	TopicCartEvents    = "cart_events"
	TopicOrderEvents   = "order_events"
	TopicUserEvents    = "user_events"
)

type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, event map[string]any) error
}

type NopPublisher struct{}

func (NopPublisher) PublishEvent(context.Context, string, string, map[string]any) error { return nil }
