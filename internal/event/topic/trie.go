package topic

import "sync"

// Trie is a thread-safe pattern index. Each pattern (which may contain "*"
// and "**") carries a set of values; Match returns the values of every
// pattern that matches a concrete event type.
//
// Lookup cost is proportional to the number of type segments times the
// number of wildcard branches explored, rather than to the number of stored
// patterns.
type Trie[V comparable] struct {
	mu   sync.RWMutex
	root *trieNode[V]
	size int
}

// trieNode represents a node in the pattern trie.
type trieNode[V comparable] struct {
	children map[string]*trieNode[V]
	// values holds entries for the pattern that terminates at this node.
	values []V
}

func newTrieNode[V comparable]() *trieNode[V] {
	return &trieNode[V]{
		children: make(map[string]*trieNode[V]),
	}
}

// isEmpty returns true if the node has no children and no values.
func (n *trieNode[V]) isEmpty() bool {
	return len(n.children) == 0 && len(n.values) == 0
}

// NewTrie creates a new pattern trie.
func NewTrie[V comparable]() *Trie[V] {
	return &Trie[V]{
		root: newTrieNode[V](),
	}
}

// Insert adds value under pattern.
// Returns false if the pattern is empty or the value is already present.
func (t *Trie[V]) Insert(pattern Topic, value V) bool {
	if pattern == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Zero-value Trie is usable.
	if t.root == nil {
		t.root = newTrieNode[V]()
	}

	node := t.root
	for _, seg := range pattern.Segments() {
		child := node.children[seg]
		if child == nil {
			child = newTrieNode[V]()
			node.children[seg] = child
		}
		node = child
	}

	for _, v := range node.values {
		if v == value {
			return false
		}
	}
	node.values = append(node.values, value)
	t.size++
	return true
}

// pathEntry tracks a node and the key used to reach it during traversal.
type pathEntry[V comparable] struct {
	node *trieNode[V]
	key  string
}

// Delete removes value from pattern and prunes nodes left empty.
// Returns false if the value was not stored under the pattern.
func (t *Trie[V]) Delete(pattern Topic, value V) bool {
	if pattern == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.root == nil {
		return false
	}

	segments := pattern.Segments()
	path := make([]pathEntry[V], 0, len(segments)+1)
	path = append(path, pathEntry[V]{node: t.root})

	node := t.root
	for _, seg := range segments {
		child := node.children[seg]
		if child == nil {
			return false
		}
		path = append(path, pathEntry[V]{node: child, key: seg})
		node = child
	}

	found := false
	for i, v := range node.values {
		if v == value {
			node.values = append(node.values[:i], node.values[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return false
	}
	t.size--

	for i := len(path) - 1; i > 0; i-- {
		if !path[i].node.isEmpty() {
			break
		}
		delete(path[i-1].node.children, path[i].key)
	}
	return true
}

// Contains returns true if value is stored under exactly this pattern.
func (t *Trie[V]) Contains(pattern Topic, value V) bool {
	if pattern == "" {
		return false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.root == nil {
		return false
	}

	node := t.root
	for _, seg := range pattern.Segments() {
		node = node.children[seg]
		if node == nil {
			return false
		}
	}
	for _, v := range node.values {
		if v == value {
			return true
		}
	}
	return false
}

// matchState tracks the state during recursive matching to avoid duplicates.
type matchState[V comparable] struct {
	seen    map[V]struct{}
	matches []V
	visited map[visitKey[V]]struct{}
}

// visitKey memoizes (node, depth) pairs so stacked "**" branches do not
// explode combinatorially.
type visitKey[V comparable] struct {
	node  *trieNode[V]
	depth int
}

// Match returns the values of every pattern matching the concrete eventType.
// Each value appears at most once. The empty type has zero segments and is
// matched only by patterns made entirely of "**".
func (t *Trie[V]) Match(eventType Topic) []V {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.root == nil || t.size == 0 {
		return nil
	}

	state := &matchState[V]{
		seen:    make(map[V]struct{}),
		visited: make(map[visitKey[V]]struct{}),
	}
	t.matchRecursive(t.root, eventType.Segments(), 0, state)
	return state.matches
}

func (t *Trie[V]) matchRecursive(node *trieNode[V], segments []string, depth int, state *matchState[V]) {
	key := visitKey[V]{node: node, depth: depth}
	if _, seen := state.visited[key]; seen {
		return
	}
	state.visited[key] = struct{}{}

	if depth == len(segments) {
		state.add(node.values)
		// ** can match zero additional segments.
		if child := node.children[WildcardMulti]; child != nil {
			t.matchRecursive(child, segments, depth, state)
		}
		return
	}

	if child := node.children[segments[depth]]; child != nil {
		t.matchRecursive(child, segments, depth+1, state)
	}
	if child := node.children[WildcardSingle]; child != nil {
		t.matchRecursive(child, segments, depth+1, state)
	}
	if child := node.children[WildcardMulti]; child != nil {
		for i := depth; i <= len(segments); i++ {
			t.matchRecursive(child, segments, i, state)
		}
	}
}

func (s *matchState[V]) add(values []V) {
	for _, v := range values {
		if _, ok := s.seen[v]; ok {
			continue
		}
		s.seen[v] = struct{}{}
		s.matches = append(s.matches, v)
	}
}

// Patterns returns every pattern that currently has at least one value.
func (t *Trie[V]) Patterns() []Topic {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var patterns []Topic
	collectPatterns(t.root, nil, &patterns)
	return patterns
}

func collectPatterns[V comparable](node *trieNode[V], prefix []string, out *[]Topic) {
	if node == nil {
		return
	}
	if len(node.values) > 0 {
		*out = append(*out, Join(prefix...))
	}
	for seg, child := range node.children {
		collectPatterns(child, append(prefix[:len(prefix):len(prefix)], seg), out)
	}
}

// Size returns the number of stored (pattern, value) entries.
func (t *Trie[V]) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Clear removes everything from the trie.
func (t *Trie[V]) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.root = newTrieNode[V]()
	t.size = 0
}
