package errors

import (
	"fmt"
	"sort"
	"sync"
)

var (
	errnoRegistry = make(map[int]*Errno)
	registryMu    sync.RWMutex
)

// Register records e in the global registry and returns it.
// Panics if the code is already registered.
func Register(e *Errno) *Errno {
	registryMu.Lock()
	defer registryMu.Unlock()

	if existing, ok := errnoRegistry[e.Code]; ok {
		panic(fmt.Sprintf("errno code %d already registered: %s", e.Code, existing.MessageEN))
	}
	errnoRegistry[e.Code] = e
	return e
}

// Lookup returns the registered Errno for the given code.
func Lookup(code int) (*Errno, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := errnoRegistry[code]
	return e, ok
}

// RegisteredCodes returns all registered codes in ascending order.
func RegisteredCodes() []int {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]int, 0, len(errnoRegistry))
	for code := range errnoRegistry {
		out = append(out, code)
	}
	sort.Ints(out)
	return out
}
