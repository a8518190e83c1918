package event

import (
	"cmp"
	"slices"
	"sync"

	"github.com/dshills/hookbus/internal/event/topic"
)

// table stores live subscriptions by id and indexes them by pattern.
// Match results are ordered by subscription creation.
type table struct {
	mu    sync.RWMutex
	byID  map[string]*subscription
	index *topic.Trie[*subscription]
	seq   uint64
}

func newTable() *table {
	return &table{
		byID:  make(map[string]*subscription),
		index: topic.NewTrie[*subscription](),
	}
}

// add assigns the next sequence number and inserts sub.
func (t *table) add(sub *subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	sub.seq = t.seq
	t.byID[sub.id] = sub
	t.index.Insert(topic.Topic(sub.pattern), sub)
}

// remove deletes the subscription with the given id.
func (t *table) remove(id string) (*subscription, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sub, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	delete(t.byID, id)
	t.index.Delete(topic.Topic(sub.pattern), sub)
	return sub, true
}

func (t *table) get(id string) (*subscription, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sub, ok := t.byID[id]
	return sub, ok
}

// match returns the subscriptions whose pattern matches eventType.
func (t *table) match(eventType string) []*subscription {
	t.mu.RLock()
	subs := t.index.Match(topic.Topic(eventType))
	t.mu.RUnlock()
	sortBySeq(subs)
	return subs
}

// all returns every subscription in creation order.
func (t *table) all() []*subscription {
	t.mu.RLock()
	subs := make([]*subscription, 0, len(t.byID))
	for _, s := range t.byID {
		subs = append(subs, s)
	}
	t.mu.RUnlock()
	sortBySeq(subs)
	return subs
}

// clear removes and returns every subscription.
func (t *table) clear() []*subscription {
	t.mu.Lock()
	subs := make([]*subscription, 0, len(t.byID))
	for _, s := range t.byID {
		subs = append(subs, s)
	}
	t.byID = make(map[string]*subscription)
	t.index.Clear()
	t.mu.Unlock()
	sortBySeq(subs)
	return subs
}

func (t *table) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

func sortBySeq(subs []*subscription) {
	slices.SortFunc(subs, func(a, b *subscription) int {
		return cmp.Compare(a.seq, b.seq)
	})
}
