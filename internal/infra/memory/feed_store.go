package memory

import (
	"sync"

	"knowledgeflow/internal/app"
)

// FeedStore is an in-memory implementation of app.FeedRepository.
type FeedStore struct {
	mu    sync.RWMutex
	feeds map[string]*app.Feed
}

func NewFeedStore() *FeedStore {
	return &FeedStore{feeds: make(map[string]*app.Feed)}
}

func (s *FeedStore) GetOrCreate(learnerID string) *app.Feed {
	s.mu.Lock()
	defer s.mu.Unlock()
	if feed, ok := s.feeds[learnerID]; ok {
		return feed
	}
	feed := app.NewFeed(learnerID)
	s.feeds[learnerID] = feed
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
	if feed, ok := s.feeds[learnerID]; ok && feed.IsEmpty() {
		delete(s.feeds, learnerID)
	}
}
