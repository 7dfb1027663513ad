package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventPlanStarted      EventType = "plan.started"
	EventCommonPlanned    EventType = "common.planned"
	EventStagePlanned     EventType = "stage.planned"
	EventStageFailed      EventType = "stage.failed"
	EventDeployStageAdded EventType = "deploy-stage.added"
	EventInfraComposed    EventType = "infra-pipeline.composed"
	EventPlanCompleted    EventType = "topology.complete"
	EventPlanFailed       EventType = "topology.failed"
)

// Event represents a planning event
type Event struct {
	ID        string
	PlanID    string
	Type      EventType
	Timestamp time.Time
	Message   string
	Metadata  map[string]string
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Broker fans planning events out to subscribers
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	b.wg.Add(1)
	go b.run()
}

// Stop drains queued events and stops the broker. It is safe to call more
// than once.
func (b *Broker) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
	b.wg.Wait()
}

// DefaultBufferSize is the subscriber buffer used by Subscribe
const DefaultBufferSize = 50

// Subscribe creates a new subscription and returns a channel. Events are
// dropped for a subscriber whose buffer is full.
func (b *Broker) Subscribe() Subscriber {
	return b.SubscribeSize(DefaultBufferSize)
}

// SubscribeSize creates a subscription buffering up to size events
func (b *Broker) SubscribeSize(size int) Subscriber {
	if size < 1 {
		size = DefaultBufferSize
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, size)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription and closes its channel
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes an event to all subscribers. Missing IDs and
// timestamps are filled in.
func (b *Broker) Publish(event *Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	defer b.wg.Done()
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			for {
				select {
				case event := <-b.eventCh:
					b.broadcast(event)
				default:
					return
				}
			}
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
