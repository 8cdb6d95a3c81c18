// Package cache provides process-local, content-addressed memoization of
// oracle results. Keys are computed from normalized text, so cosmetic
// variations of the same input share an entry. Entries never expire.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"unicode"

	"github.com/ShayCichocki/taskhunter/internal/scheduler"
)

// Key is the hex sha256 of normalized text.
type Key string

// Normalize lower-cases text, replaces every rune other than letters,
// digits, whitespace, '.' and ',' with a space, and collapses whitespace.
func Normalize(text string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == ',':
			return unicode.ToLower(r)
		default:
			return ' '
		}
	}, text)
	return strings.Join(strings.Fields(mapped), " ")
}

// KeyOf returns the cache key for text.
func KeyOf(text string) Key {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return Key(hex.EncodeToString(sum[:]))
}

// Memo maps normalized text to a value.
type Memo[V any] struct {
	mu      sync.RWMutex
	entries map[Key]V
}

// NewMemo creates an empty Memo.
func NewMemo[V any]() *Memo[V] {
	return &Memo[V]{entries: make(map[Key]V)}
}

// Get returns the value stored for text.
func (m *Memo[V]) Get(text string) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[KeyOf(text)]
	return v, ok
}

// Put stores v for text, replacing any previous value.
func (m *Memo[V]) Put(text string, v V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[KeyOf(text)] = v
}

// Delete removes the entry for text.
func (m *Memo[V]) Delete(text string) {
	m.deleteKey(KeyOf(text))
}

func (m *Memo[V]) deleteKey(k Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, k)
}

// deleteIf removes every entry for which match returns true and reports
// how many were removed.
func (m *Memo[V]) deleteIf(match func(V) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, v := range m.entries {
		if match(v) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of entries.
func (m *Memo[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Reset removes every entry.
func (m *Memo[V]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[Key]V)
}

// DumpCache memoizes dump-processing results. It satisfies
// scheduler.ResultCache.
type DumpCache = Memo[*scheduler.DumpResult]

// NewDumpCache creates an empty DumpCache.
func NewDumpCache() *DumpCache {
	return NewMemo[*scheduler.DumpResult]()
}

var _ scheduler.ResultCache = (*DumpCache)(nil)
