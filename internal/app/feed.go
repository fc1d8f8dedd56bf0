package app

import (
	"context"
	"sync"
	"time"

	"knowledgeflow/internal/domain"
)

// FeedRepository abstracts where live progress feeds are tracked (in-memory, Redis, etc).
type FeedRepository interface {
	GetOrCreate(learnerID string) *Feed
	Get(learnerID string) (*Feed, bool)
	DeleteIfEmpty(learnerID string)
}

// ProgressFeeds pushes progress changes to a learner's live subscribers.
type ProgressFeeds struct {
	feeds FeedRepository
	view  *ViewBuilder
	now   func() time.Time
}

func NewProgressFeeds(feeds FeedRepository, view *ViewBuilder) *ProgressFeeds {
	return &ProgressFeeds{feeds: feeds, view: view, now: time.Now}
}

// Subscribe returns a channel whose first message is a snapshot of the
// learner's enrolled-courses view. The caller must invoke the returned cancel
// function to avoid leaks.
func (p *ProgressFeeds) Subscribe(ctx context.Context, learnerID string) (<-chan domain.ProgressEvent, func(), error) {
	courses, err := p.view.BuildView(ctx, learnerID)
	if err != nil {
		return nil, nil, err
	}
	feed := p.feeds.GetOrCreate(learnerID)
	ch, unsubscribe := feed.subscribe(domain.ProgressEvent{
		Type:      domain.EventSnapshot,
		Username:  learnerID,
		Courses:   courses,
		Timestamp: domain.FormatTimestamp(p.now()),
	})
	cancel := func() {
		unsubscribe()
		p.feeds.DeleteIfEmpty(learnerID)
	}
	return ch, cancel, nil
}

// Publish fans a saved progress record out to the learner's subscribers, if any.
func (p *ProgressFeeds) Publish(learnerID, courseID string, record domain.ProgressRecord) {
	feed, ok := p.feeds.Get(learnerID)
	if !ok {
		return
	}
	feed.broadcast(domain.ProgressEvent{
		Type:      domain.EventProgress,
		Username:  learnerID,
		CourseID:  courseID,
		Progress:  &record,
		Timestamp: record.LastUpdated,
	})
}

// Feed is the set of live subscribers for one learner.
type Feed struct {
	learnerID   string
	mu          sync.RWMutex
	subscribers map[chan domain.ProgressEvent]struct{}
}

// NewFeed is exported for infrastructure layers that track feeds.
func NewFeed(learnerID string) *Feed {
	return &Feed{
		learnerID:   learnerID,
		subscribers: make(map[chan domain.ProgressEvent]struct{}),
	}
}

// IsEmpty reports whether the feed has no subscribers.
func (f *Feed) IsEmpty() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers) == 0
}

func (f *Feed) subscribe(initial domain.ProgressEvent) (<-chan domain.ProgressEvent, func()) {
	ch := make(chan domain.ProgressEvent, 8)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	ch <- initial
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

func (f *Feed) broadcast(event domain.ProgressEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- event:
		default:
			// Slow subscriber: drop its oldest pending event.
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}
