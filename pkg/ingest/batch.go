package ingest

import (
	"time"

	"github.com/google/uuid"

	"github.com/athulya-anil/axon-ingest/pkg/models"
)

// Split partitions ids into contiguous groups of at most size, preserving order.
// Only the last group may be shorter than size.
func Split(ids []int64, size int) [][]int64 {
	if size < 1 {
		size = 1
	}

	groups := make([][]int64, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		groups = append(groups, append([]int64(nil), ids[start:end]...))
	}
	return groups
}

// Batch builds a pending request for validated ids and the queue entries for
// its chunks. Entries are returned in chunk order and carry the request's
// creation time as their enqueue time.
func Batch(ids []int64, priority models.Priority, now time.Time) (*models.Request, []models.QueueEntry) {
	req := &models.Request{
		ID:        uuid.New().String(),
		Priority:  priority,
		Status:    models.StatusPending,
		CreatedAt: now,
	}

	groups := Split(ids, models.BatchSize)
	entries := make([]models.QueueEntry, 0, len(groups))
	for _, group := range groups {
		chunk := &models.Chunk{
			ID:          uuid.New().String(),
			Identifiers: group,
			Status:      models.StatusPending,
		}
		req.Chunks = append(req.Chunks, chunk)

		entries = append(entries, models.QueueEntry{
			RequestID:   req.ID,
			ChunkID:     chunk.ID,
			Identifiers: append([]int64(nil), group...),
			Priority:    priority,
			EnqueuedAt:  now,
		})
	}

	return req, entries
}
