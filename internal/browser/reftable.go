package browser

import (
	"strconv"
	"strings"
	"sync"
)

// ElementRef is one entry of the reference table. BackendNodeID is only
// valid for the DOM snapshot that produced it; Label and Hint are for
// display and must never be used for targeting.
type ElementRef struct {
	Token         string `json:"ref"`
	Label         string `json:"label"`
	BackendNodeID int    `json:"-"`
	Hint          string `json:"hint,omitempty"`
}

// RefTable maps short tokens (e1, e2, ...) to element handles. The entry
// list and the counter are always reset together.
type RefTable struct {
	mu      sync.RWMutex
	entries map[string]ElementRef
	order   []string
	counter int
}

// NewRefTable returns an empty table. The first token it assigns is e1.
func NewRefTable() *RefTable {
	return &RefTable{entries: make(map[string]ElementRef)}
}

// Reset clears every entry and restarts numbering.
func (t *RefTable) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
}

func (t *RefTable) resetLocked() {
	t.entries = make(map[string]ElementRef)
	t.order = t.order[:0]
	t.counter = 0
}

func (t *RefTable) addLocked(label string, backendNodeID int, hint string) string {
	t.counter++
	token := "e" + strconv.Itoa(t.counter)
	t.entries[token] = ElementRef{
		Token:         token,
		Label:         label,
		BackendNodeID: backendNodeID,
		Hint:          hint,
	}
	t.order = append(t.order, token)
	return token
}

// rebuild resets the table and repopulates it while holding the write lock,
// so readers see either the previous table or the complete new one.
func (t *RefTable) rebuild(fill func(add func(label string, backendNodeID int, hint string) string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
	fill(t.addLocked)
}

// Lookup resolves a token. "e7" and "@e7" are equivalent.
func (t *RefTable) Lookup(token string) (ElementRef, bool) {
	token = NormalizeRef(token)
	t.mu.RLock()
	defer t.mu.RUnlock()
	ref, ok := t.entries[token]
	return ref, ok
}

// Len returns the number of entries.
func (t *RefTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// IsEmpty reports whether nothing is referenceable.
func (t *RefTable) IsEmpty() bool {
	return t.Len() == 0
}

// Entries returns the entries in assignment order.
func (t *RefTable) Entries() []ElementRef {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]ElementRef, 0, len(t.order))
	for _, token := range t.order {
		out = append(out, t.entries[token])
	}
	return out
}

// NormalizeRef strips surrounding whitespace and a leading '@'.
func NormalizeRef(token string) string {
	return strings.TrimPrefix(strings.TrimSpace(token), "@")
}
