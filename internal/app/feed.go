package app

import (
	"sync"

	"qbank-service/internal/domain"
)

// LeaderboardFeed fans leaderboard snapshots out to live subscribers.
type LeaderboardFeed struct {
	mu          sync.Mutex
	subscribers map[chan []domain.LeaderboardEntry]struct{}
}

func NewLeaderboardFeed() *LeaderboardFeed {
	return &LeaderboardFeed{
		subscribers: make(map[chan []domain.LeaderboardEntry]struct{}),
	}
}

// Subscribe registers a listener and delivers initial as the first message.
// The returned cancel must be called to release the channel.
func (f *LeaderboardFeed) Subscribe(initial []domain.LeaderboardEntry) (<-chan []domain.LeaderboardEntry, func()) {
	ch := make(chan []domain.LeaderboardEntry, 8)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	ch <- initial

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

// Publish pushes a snapshot to every subscriber. A slow subscriber loses
// its stale pending update instead of blocking the publisher.
func (f *LeaderboardFeed) Publish(entries []domain.LeaderboardEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- entries:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- entries
		}
	}
}
