// Package progress fans solve progress events out to subscribers.
package progress

import "sync"

// Event types.
const (
	TypeProgress = "solve.progress"
	TypeFinished = "solve.finished"
)

// Event is one progress notification of a solve.
type Event struct {
	Type        string  `json:"type"`
	SolveID     string  `json:"solveId"`
	Generation  int     `json:"generation"`
	BestCost    float64 `json:"bestCost"`
	CurrentCost float64 `json:"currentCost"`
	State       string  `json:"state"`
}

// Broker publishes events by solve id. Publish never blocks: slow subscribers miss events.
type Broker interface {
	Subscribe(solveID string) chan Event
	Unsubscribe(solveID string, ch chan Event)
	Publish(solveID string, evt Event)
}

// Memory is the in-process broker.
type Memory struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{} // solveId -> set of channels
}

func NewMemory() *Memory {
	return &Memory{subs: map[string]map[chan Event]struct{}{}}
}

func (b *Memory) Subscribe(solveID string) chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	if b.subs[solveID] == nil {
		b.subs[solveID] = map[chan Event]struct{}{}
	}
	b.subs[solveID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Memory) Unsubscribe(solveID string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[solveID]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, solveID)
	}
	close(ch)
}

func (b *Memory) Publish(solveID string, evt Event) {
	b.mu.Lock()
	for ch := range b.subs[solveID] {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.Unlock()
}

// Discard drops every event; used when no one listens.
type Discard struct{}

func (Discard) Subscribe(string) chan Event         { return make(chan Event) }
func (Discard) Unsubscribe(_ string, ch chan Event) { close(ch) }
func (Discard) Publish(string, Event)               {}
