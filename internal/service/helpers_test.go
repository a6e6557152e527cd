package service

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/Skotchmaster/storefront/internal/hash"
	"github.com/Skotchmaster/storefront/internal/models"
)

func init() {
	hash.Cost = bcrypt.MinCost
}

type publishedEvent struct {
	Topic string
	Key   string
	Event map[string]any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, topic, key string, event map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{Topic: topic, Key: key, Event: event})
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Event["type"].(string))
	}
	return out
}

type recordingNotifier struct {
	mu       sync.Mutex
	placed   []string
	statuses []models.OrderStatus
	welcomed []string
	err      error
}

func (n *recordingNotifier) OrderPlaced(_ context.Context, o *models.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.placed = append(n.placed, o.OrderNumber)
	return nil
}

func (n *recordingNotifier) OrderStatusChanged(_ context.Context, o *models.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.statuses = append(n.statuses, o.Status)
	return nil
}

func (n *recordingNotifier) UserRegistered(_ context.Context, u *models.User) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.welcomed = append(n.welcomed, u.Email)
	return nil
}

var errBrokerDown = errors.New("broker down")
