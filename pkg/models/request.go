package models

import "time"

const (
	// MaxID is the largest identifier accepted in a submission.
	MaxID int64 = 1_000_000_007

	// BatchSize is the number of identifiers carried by one chunk.
	BatchSize = 3

	// DefaultDispatchInterval is the minimum gap between two chunk dispatches.
	DefaultDispatchInterval = 5 * time.Second
)

// Priority selects the intake lane of a request.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// Priorities lists the lanes in the order the scheduler drains them.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// ParsePriority returns the Priority for a token, or false if the token is unknown.
// Tokens are case sensitive.
func ParsePriority(s string) (Priority, bool) {
	for _, p := range Priorities {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// Rank returns 0 for HIGH, 1 for MEDIUM, 2 for LOW and -1 otherwise.
func (p Priority) Rank() int {
	for i, q := range Priorities {
		if p == q {
			return i
		}
	}
	return -1
}

// Chunk is a fixed-size slice of a request's identifiers and the unit of dispatch.
type Chunk struct {
	ID          string     `json:"chunk_id"`
	Identifiers []int64    `json:"ids"`
	Status      Status     `json:"status"`
	Processed   int        `json:"processed"`
	Failed      int        `json:"failed"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Request is one accepted submission and the chunks it was split into.
// Status is derived from the chunks and never assigned directly after creation.
type Request struct {
	ID        string    `json:"request_id"`
	Priority  Priority  `json:"priority"`
	Status    Status    `json:"status"`
	Chunks    []*Chunk  `json:"chunks"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a deep copy that shares no memory with r.
func (r *Request) Clone() *Request {
	out := *r
	out.Chunks = make([]*Chunk, len(r.Chunks))
	for i, c := range r.Chunks {
		out.Chunks[i] = c.clone()
	}
	return &out
}

func (c *Chunk) clone() *Chunk {
	out := *c
	out.Identifiers = append([]int64(nil), c.Identifiers...)
	if c.StartedAt != nil {
		t := *c.StartedAt
		out.StartedAt = &t
	}
	if c.CompletedAt != nil {
		t := *c.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// QueueEntry is the scheduler's view of a chunk awaiting dispatch.
// It references the chunk by (RequestID, ChunkID) and does not own it.
type QueueEntry struct {
	RequestID   string
	ChunkID     string
	Identifiers []int64
	Priority    Priority
	EnqueuedAt  time.Time
}
