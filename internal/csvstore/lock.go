package csvstore

import (
	"path/filepath"
	"sort"
	"sync"
)

// Locker hands out one mutex per file path. Multi-file locks are taken in
// sorted path order so two callers can never wait on each other.
type Locker struct {
	mu    sync.Mutex
	paths map[string]*sync.Mutex
}

// NewLocker creates an empty Locker.
func NewLocker() *Locker {
	return &Locker{paths: make(map[string]*sync.Mutex)}
}

// Lock acquires the locks for every path and returns the function that releases them.
func (l *Locker) Lock(paths ...string) (unlock func()) {
	keys := make([]string, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		k := key(p)
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	sort.Strings(keys)

	held := make([]*sync.Mutex, 0, len(keys))
	for _, k := range keys {
		m := l.get(k)
		m.Lock()
		held = append(held, m)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func (l *Locker) get(k string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.paths[k]
	if !ok {
		m = &sync.Mutex{}
		l.paths[k] = m
	}
	return m
}

func key(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
