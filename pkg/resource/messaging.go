package resource

import (
	"sync"
	"sync/atomic"

	"github.com/project-ocre/ocre/pkg/event"
	"github.com/project-ocre/ocre/pkg/ocreerr"
	"github.com/project-ocre/ocre/pkg/registry"
)

// MessagingManager implements the ocre_messaging_* capability: modules
// subscribe to string topics, and a Publish duplicates the topic name,
// content type and payload into every subscriber's own memory arena before
// raising its event.MessageEvent — a subscriber only ever sees bytes that
// already live in its own sandbox.
type MessagingManager struct {
	mu          sync.Mutex
	subscribers map[string]map[event.ModuleHandle]struct{}

	nextMessageID atomic.Uint64

	queue    *event.Queue
	registry *registry.Registry
}

// NewMessagingManager returns a messaging manager publishing onto queue.
func NewMessagingManager(queue *event.Queue, reg *registry.Registry) *MessagingManager {
	m := &MessagingManager{
		subscribers: make(map[string]map[event.ModuleHandle]struct{}),
		queue:       queue,
		registry:    reg,
	}
	reg.RegisterCleanupHandler(event.ResourceMessaging, m.cleanup)
	return m
}

// Subscribe registers owner against topic.
func (m *MessagingManager) Subscribe(owner event.ModuleHandle, topic string) error {
	m.mu.Lock()
	subs := m.subscribers[topic]
	if subs == nil {
		subs = make(map[event.ModuleHandle]struct{})
		m.subscribers[topic] = subs
	}
	if _, already := subs[owner]; already {
		m.mu.Unlock()
		return ocreerr.Conflictf("already subscribed to topic %q", topic)
	}
	subs[owner] = struct{}{}
	m.mu.Unlock()

	m.registry.IncResource(owner, event.ResourceMessaging)
	return nil
}

// Unsubscribe removes owner's subscription to topic.
func (m *MessagingManager) Unsubscribe(owner event.ModuleHandle, topic string) error {
	m.mu.Lock()
	subs, ok := m.subscribers[topic]
	if !ok {
		m.mu.Unlock()
		return ocreerr.NotFoundf("not subscribed to topic %q", topic)
	}
	if _, ok := subs[owner]; !ok {
		m.mu.Unlock()
		return ocreerr.NotFoundf("not subscribed to topic %q", topic)
	}
	delete(subs, owner)
	m.mu.Unlock()

	m.registry.DecResource(owner, event.ResourceMessaging)
	return nil
}

// Publish duplicates topic, contentType and payload into every current
// subscriber's memory arena and raises a event.MessageEvent for each.
// Subscribers for whom the memory duplication fails are skipped and logged
// by the caller (Publish itself returns only the hard error, if any).
func (m *MessagingManager) Publish(topic, contentType string, payload []byte) error {
	m.mu.Lock()
	subs := m.subscribers[topic]
	owners := make([]event.ModuleHandle, 0, len(subs))
	for owner := range subs {
		owners = append(owners, owner)
	}
	m.mu.Unlock()

	for _, owner := range owners {
		mc, ok := m.registry.Get(owner)
		if !ok || mc.Memory == nil {
			continue
		}

		topicRef, err := mc.Memory.WriteBytes([]byte(topic))
		if err != nil {
			continue
		}
		contentTypeRef, err := mc.Memory.WriteBytes([]byte(contentType))
		if err != nil {
			continue
		}
		payloadRef, err := mc.Memory.WriteBytes(payload)
		if err != nil {
			continue
		}

		id := m.nextMessageID.Add(1)
		m.queue.Publish(event.NewMessageEvent(owner, id, topicRef, contentTypeRef, payloadRef, uint32(len(payload))))
	}

	return nil
}

// SubscriptionCount returns the total number of active topic subscriptions,
// for metrics reporting.
func (m *MessagingManager) SubscriptionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, subs := range m.subscribers {
		n += len(subs)
	}
	return n
}

func (m *MessagingManager) cleanup(owner event.ModuleHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, subs := range m.subscribers {
		delete(subs, owner)
	}
}
