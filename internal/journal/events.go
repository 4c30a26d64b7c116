package journal

import (
	"context"
	"sync"
	"time"
)

const (
	// EventEntrySaved is published after a daily entry commit.
	EventEntrySaved = "entry-saved"
	// EventHeartbeat keeps idle streams open.
	EventHeartbeat = "heartbeat"

	defaultEventBuffer = 16
)

// EntryEvent describes a change to one day of a user's journal.
type EntryEvent struct {
	UserID     uint      `json:"user_id"`
	EventType  string    `json:"event_type"`
	EntryID    uint      `json:"entry_id,omitempty"`
	Date       string    `json:"date,omitempty"`
	Created    bool      `json:"created,omitempty"`
	MoodScore  int       `json:"mood_score,omitempty"`
	Sentiment  Sentiment `json:"sentiment,omitempty"`
	StreakDays int       `json:"streak_days,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func savedEntryEvent(userID uint, saved SavedEntry, at time.Time) EntryEvent {
	return EntryEvent{
		UserID:     userID,
		EventType:  EventEntrySaved,
		EntryID:    saved.EntryID,
		Date:       saved.Date,
		Created:    saved.Created,
		MoodScore:  saved.MoodScore,
		Sentiment:  saved.Sentiment,
		StreakDays: saved.Stat.StreakDays,
		Timestamp:  at,
	}
}

// Dispatcher fans entry events out to the open streams of each user.
// Publishing never blocks; a full stream drops the event.
type Dispatcher struct {
	mu         sync.RWMutex
	streams    map[uint]map[*Subscription]struct{}
	bufferSize int
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		streams:    make(map[uint]map[*Subscription]struct{}),
		bufferSize: defaultEventBuffer,
	}
}

// Subscription is one open stream of a user's entry events.
type Subscription struct {
	userID uint
	events chan EntryEvent
	done   chan struct{}
	once   sync.Once
	owner  *Dispatcher
}

// Events delivers entry and heartbeat events until the subscription closes.
func (s *Subscription) Events() <-chan EntryEvent {
	return s.events
}

// Done is closed once the subscription is released.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close releases the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.owner != nil {
			s.owner.remove(s)
		}
		close(s.done)
	})
}

func (s *Subscription) offer(event EntryEvent) {
	select {
	case s.events <- event:
	default:
	}
}

// Subscribe opens a stream for the user. A positive heartbeat interleaves
// EventHeartbeat events while the stream is idle. The subscription closes
// when ctx ends or Close is called.
func (d *Dispatcher) Subscribe(ctx context.Context, userID uint, heartbeat time.Duration) *Subscription {
	subscription := &Subscription{
		userID: userID,
		events: make(chan EntryEvent, d.bufferSize),
		done:   make(chan struct{}),
	}
	if userID == 0 {
		close(subscription.events)
		subscription.Close()
		return subscription
	}
	subscription.owner = d
	d.add(subscription)
	go subscription.watch(ctx, heartbeat)
	return subscription
}

func (s *Subscription) watch(ctx context.Context, heartbeat time.Duration) {
	var ticks <-chan time.Time
	if heartbeat > 0 {
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		ticks = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-s.done:
			return
		case tick := <-ticks:
			s.offer(EntryEvent{UserID: s.userID, EventType: EventHeartbeat, Timestamp: tick.UTC()})
		}
	}
}

func (d *Dispatcher) Publish(event EntryEvent) {
	if event.UserID == 0 || event.EventType == "" {
		return
	}
	d.mu.RLock()
	targets := make([]*Subscription, 0, len(d.streams[event.UserID]))
	for subscription := range d.streams[event.UserID] {
		targets = append(targets, subscription)
	}
	d.mu.RUnlock()
	for _, subscription := range targets {
		subscription.offer(event)
	}
}

// SubscriberCount reports the number of open streams for the user.
func (d *Dispatcher) SubscriberCount(userID uint) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.streams[userID])
}

func (d *Dispatcher) add(subscription *Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.streams[subscription.userID]; !ok {
		d.streams[subscription.userID] = make(map[*Subscription]struct{})
	}
	d.streams[subscription.userID][subscription] = struct{}{}
}

func (d *Dispatcher) remove(subscription *Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()
	streams := d.streams[subscription.userID]
	delete(streams, subscription)
	if len(streams) == 0 {
		delete(d.streams, subscription.userID)
	}
}
