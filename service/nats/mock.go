package nats

import (
	"context"
	"sync"
)

// MockBus is an in-memory Bus for tests and single-process deployments.
// Events are delivered synchronously to matching subscribers.
type MockBus struct {
	mu              sync.RWMutex
	publishedEvents []*ChangeEvent
	subs            map[int]*mockSubscription
	nextID          int
	publishError    error
	closed          bool
}

type mockSubscription struct {
	bus     *MockBus
	id      int
	pattern string
	handler func(*ChangeEvent)
}

func (s *mockSubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subs, s.id)
	return nil
}

// NewMockBus creates a new in-memory bus.
func NewMockBus() *MockBus {
	return &MockBus{
		publishedEvents: make([]*ChangeEvent, 0),
		subs:            make(map[int]*mockSubscription),
	}
}

// PublishChange records the event and delivers it to matching subscribers.
func (m *MockBus) PublishChange(ctx context.Context, event *ChangeEvent) error {
	m.mu.Lock()
	if m.publishError != nil {
		err := m.publishError
		m.mu.Unlock()
		return err
	}
	m.publishedEvents = append(m.publishedEvents, event)

	subject := ChangeSubject(event.Table, event.WalletAddress)
	var handlers []func(*ChangeEvent)
	for _, s := range m.subs {
		if subjectMatches(s.pattern, subject) {
			handlers = append(handlers, s.handler)
		}
	}
	m.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
	return nil
}

// SubscribeChanges registers handler for subjects matching subject.
func (m *MockBus) SubscribeChanges(subject string, handler func(*ChangeEvent)) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	s := &mockSubscription{bus: m, id: m.nextID, pattern: subject, handler: handler}
	m.subs[s.id] = s
	return s, nil
}

// Close marks the bus as closed.
func (m *MockBus) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetPublishedEvents returns all published events (for testing).
func (m *MockBus) GetPublishedEvents() []*ChangeEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*ChangeEvent, len(m.publishedEvents))
	copy(events, m.publishedEvents)
	return events
}

// SubscriptionCount returns the number of live subscriptions.
func (m *MockBus) SubscriptionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

// SetPublishError configures the bus to fail every publish.
func (m *MockBus) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// IsClosed returns whether the bus has been closed.
func (m *MockBus) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
