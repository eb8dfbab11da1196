package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"detectx-service/internal/models"
)

func TestHistoryEvictsOldest(t *testing.T) {
	h := NewHistory(3)
	for _, id := range []string{"a", "b", "c", "d"} {
		h.Push(models.CycleResult{ID: id})
	}

	items := h.Items()
	assert.Len(t, items, 3)
	assert.Equal(t, "d", items[0].ID)
	assert.Equal(t, "b", items[2].ID)
}

func TestHistoryItemsIsCopy(t *testing.T) {
	h := NewHistory(2)
	h.Push(models.CycleResult{ID: "a"})

	items := h.Items()
	items[0].ID = "mutated"
	assert.Equal(t, "a", h.Items()[0].ID)
}

func TestHistoryMinimumCapacity(t *testing.T) {
	h := NewHistory(0)
	h.Push(models.CycleResult{ID: "a"})
	h.Push(models.CycleResult{ID: "b"})
	assert.Equal(t, 1, h.Capacity())
	assert.Equal(t, "b", h.Items()[0].ID)
}
