package app

import (
	"sync"

	"lecture-quiz-service/internal/domain"
)

// Broadcaster fans scoreboard snapshots out to per-session subscribers.
// Delivery is best-effort: slow subscribers see the latest snapshot, not
// every intermediate one.
type Broadcaster struct {
	mu     sync.Mutex
	topics map[string]map[chan domain.Scoreboard]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{topics: make(map[string]map[chan domain.Scoreboard]struct{})}
}

// Subscribe registers a channel for one session's scoreboard updates. The
// caller must invoke the returned cancel function to avoid leaks.
func (b *Broadcaster) Subscribe(sessionID string) (<-chan domain.Scoreboard, func()) {
	ch := make(chan domain.Scoreboard, 8)

	b.mu.Lock()
	subs, ok := b.topics[sessionID]
	if !ok {
		subs = make(map[chan domain.Scoreboard]struct{})
		b.topics[sessionID] = subs
	}
	subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if subs, ok := b.topics[sessionID]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(b.topics, sessionID)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish pushes a snapshot to every subscriber of board.SessionID. Stale
// updates are dropped rather than blocking the publisher.
func (b *Broadcaster) Publish(board domain.Scoreboard) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.topics[board.SessionID] {
		select {
		case ch <- board:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- board
		}
	}
}
