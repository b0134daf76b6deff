package app

import (
	"sync"
	"time"

	"github.com/yourusername/media-fetch-go/internal/domain"
)

const subscriberBuffer = 32

// ProgressEvent is one update about a running request
type ProgressEvent struct {
	RequestID   string              `json:"request_id"`
	State       domain.RequestState `json:"state"`
	Title       string              `json:"title,omitempty"`
	Length      string              `json:"length,omitempty"`
	Transferred int64               `json:"transferred"`
	Total       int64               `json:"total"` // 0 when unknown
	FailureKind domain.ErrorKind    `json:"failure_kind,omitempty"`
	Message     string              `json:"message,omitempty"`
	Done        bool                `json:"done"`
	Timestamp   time.Time           `json:"timestamp"`
}

// ProgressFeed fans request events out to subscribers. A feed exists only
// while its request runs: the request opens it and closes it when done.
// Slow subscribers miss intermediate events but always get the final one.
type ProgressFeed struct {
	mu     sync.Mutex
	feeds  map[string]*feed
	nextID int
}

type feed struct {
	last ProgressEvent
	subs map[int]chan ProgressEvent
}

// NewProgressFeed creates an empty feed registry
func NewProgressFeed() *ProgressFeed {
	return &ProgressFeed{feeds: make(map[string]*feed)}
}

// Open starts a feed for a request
func (pf *ProgressFeed) Open(requestID string) {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	if _, ok := pf.feeds[requestID]; !ok {
		pf.feeds[requestID] = &feed{
			last: ProgressEvent{RequestID: requestID, State: domain.StateRequested, Timestamp: time.Now()},
			subs: make(map[int]chan ProgressEvent),
		}
	}
}

// Publish sends an event to every subscriber of its request without blocking
func (pf *ProgressFeed) Publish(event ProgressEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	pf.mu.Lock()
	defer pf.mu.Unlock()

	f, ok := pf.feeds[event.RequestID]
	if !ok {
		return
	}
	f.last = event
	for _, ch := range f.subs {
		send(ch, event)
	}
}

func send(ch chan ProgressEvent, event ProgressEvent) {
	select {
	case ch <- event:
		return
	default:
	}
	if !event.Done {
		return
	}
	// make room for the final event
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- event:
	default:
	}
}

// Subscribe returns a channel of events for a running request, starting with
// the latest known event. ok is false when no feed is open for the request.
func (pf *ProgressFeed) Subscribe(requestID string) (events <-chan ProgressEvent, unsubscribe func(), ok bool) {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	f, exists := pf.feeds[requestID]
	if !exists {
		return nil, func() {}, false
	}

	id := pf.nextID
	pf.nextID++
	ch := make(chan ProgressEvent, subscriberBuffer)
	ch <- f.last
	f.subs[id] = ch

	var once sync.Once
	unsubscribe = func() {
		once.Do(func() {
			pf.mu.Lock()
			defer pf.mu.Unlock()
			if f, ok := pf.feeds[requestID]; ok {
				if c, ok := f.subs[id]; ok {
					delete(f.subs, id)
					close(c)
				}
			}
		})
	}
	return ch, unsubscribe, true
}

// Close ends a request's feed and closes every subscriber channel
func (pf *ProgressFeed) Close(requestID string) {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	f, ok := pf.feeds[requestID]
	if !ok {
		return
	}
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
	delete(pf.feeds, requestID)
}

// Active reports whether a feed is open for the request
func (pf *ProgressFeed) Active(requestID string) bool {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	_, ok := pf.feeds[requestID]
	return ok
}
