package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"knowledgeflow/internal/app"
)

// FeedStore is a Redis-aware implementation of app.FeedRepository.
// Subscribers still live in this process; Redis holds a liveness marker per
// learner with a live feed so operators can see who is connected.
type FeedStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	mu     sync.RWMutex
	feeds  map[string]*app.Feed
}

func NewFeedStore(client redis.UniversalClient, prefix string, ttl time.Duration) *FeedStore {
	return &FeedStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		feeds:  make(map[string]*app.Feed),
	}
}

func (s *FeedStore) GetOrCreate(learnerID string) *app.Feed {
	s.mu.Lock()
	defer s.mu.Unlock()
	if feed, ok := s.feeds[learnerID]; ok {
		return feed
	}
	feed := app.NewFeed(learnerID)
	s.feeds[learnerID] = feed
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(learnerID), "1", s.ttl).Err()
	return feed
}

func (s *FeedStore) Get(learnerID string) (*app.Feed, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	feed, ok := s.feeds[learnerID]
	return feed, ok
}

func (s *FeedStore) DeleteIfEmpty(learnerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	feed, ok := s.feeds[learnerID]
	if !ok || !feed.IsEmpty() {
		return
	}
	delete(s.feeds, learnerID)
	_ = s.client.Del(context.Background(), s.key(learnerID)).Err()
}

func (s *FeedStore) key(learnerID string) string {
	return s.prefix + "feed:" + learnerID
}
