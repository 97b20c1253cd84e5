package queue

import (
	"container/heap"
	"fmt"
	"sync"

	"github.com/athulya-anil/axon-ingest/pkg/models"
)

// ------------------------------
// Lane entries
// ------------------------------

type item struct {
	entry models.QueueEntry
	seq   uint64
}

// ------------------------------
// Internal heap implementation
// ------------------------------

// entryHeap orders one lane by enqueue time, then by arrival sequence.
type entryHeap []*item

func (eh entryHeap) Len() int { return len(eh) }

func (eh entryHeap) Less(i, j int) bool {
	a, b := eh[i].entry.EnqueuedAt, eh[j].entry.EnqueuedAt
	if a.Equal(b) {
		return eh[i].seq < eh[j].seq
	}
	return a.Before(b)
}

func (eh entryHeap) Swap(i, j int) { eh[i], eh[j] = eh[j], eh[i] }

func (eh *entryHeap) Push(x interface{}) {
	*eh = append(*eh, x.(*item))
}

func (eh *entryHeap) Pop() interface{} {
	old := *eh
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*eh = old[0 : n-1]
	return it
}

// ------------------------------
// Thread-safe lane scheduler
// ------------------------------

// PriorityQueue holds one lane per priority. SelectNext always drains a higher
// lane before looking at a lower one; within a lane entries leave in the order
// they were enqueued.
type PriorityQueue struct {
	mu    sync.Mutex
	lanes []entryHeap
	seq   uint64
}

func NewPriorityQueue() *PriorityQueue {
	pq := &PriorityQueue{
		lanes: make([]entryHeap, len(models.Priorities)),
	}
	for i := range pq.lanes {
		heap.Init(&pq.lanes[i])
	}
	return pq
}

// Enqueue appends entries to their lanes. Entries passed in one call keep
// their relative order. Nothing is enqueued if any entry has an unknown priority.
func (pq *PriorityQueue) Enqueue(entries ...models.QueueEntry) error {
	for _, e := range entries {
		if e.Priority.Rank() < 0 {
			return fmt.Errorf("%w: unknown priority %q for chunk %s", models.ErrInvalidInput, e.Priority, e.ChunkID)
		}
	}

	pq.mu.Lock()
	defer pq.mu.Unlock()

	for _, e := range entries {
		pq.seq++
		heap.Push(&pq.lanes[e.Priority.Rank()], &item{entry: e, seq: pq.seq})
	}
	return nil
}

// SelectNext removes and returns the next entry to dispatch, or false if every lane is empty.
func (pq *PriorityQueue) SelectNext() (models.QueueEntry, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	for i := range pq.lanes {
		if pq.lanes[i].Len() == 0 {
			continue
		}
		it := heap.Pop(&pq.lanes[i]).(*item)
		return it.entry, true
	}
	return models.QueueEntry{}, false
}

// Len returns the number of entries across all lanes.
func (pq *PriorityQueue) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	n := 0
	for i := range pq.lanes {
		n += pq.lanes[i].Len()
	}
	return n
}

// Depths returns the number of waiting entries per lane.
func (pq *PriorityQueue) Depths() map[models.Priority]int {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	out := make(map[models.Priority]int, len(pq.lanes))
	for i, p := range models.Priorities {
		out[p] = pq.lanes[i].Len()
	}
	return out
}
