package services

import (
	"sync"

	"detectx-service/internal/models"
)

// History retains the most recent cycle results, newest first.
type History struct {
	mu       sync.RWMutex
	capacity int
	results  []models.CycleResult
}

// NewHistory creates a history bounded to capacity entries (minimum 1)
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{
		capacity: capacity,
		results:  make([]models.CycleResult, 0, capacity),
	}
}

// Push inserts result at the front and evicts the oldest entry beyond capacity.
func (h *History) Push(result models.CycleResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.results = append([]models.CycleResult{result}, h.results...)
	if len(h.results) > h.capacity {
		h.results = h.results[:h.capacity]
	}
}

// Items returns a copy of the retained results, newest first
func (h *History) Items() []models.CycleResult {
	h.mu.RLock()
	defer h.mu.RUnlock()

	items := make([]models.CycleResult, len(h.results))
	copy(items, h.results)
	return items
}

func (h *History) Capacity() int {
	return h.capacity
}
