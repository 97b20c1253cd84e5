package models

// Status is the lifecycle state shared by chunks and requests.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
)

// CanTransition reports whether a chunk may move from s to next.
// Chunks only ever move pending -> running -> done.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning
	case StatusRunning:
		return next == StatusDone
	default:
		return false
	}
}

// Aggregate derives a request status from the statuses of its chunks.
//
// Rules are evaluated top to bottom:
//   - every chunk done: done
//   - any chunk running: running
//   - every chunk pending: pending
//   - otherwise (some done, some pending, none running): running
//
// An empty list is pending.
func Aggregate(statuses ...Status) Status {
	var pending, running, done int
	for _, s := range statuses {
		switch s {
		case StatusPending:
			pending++
		case StatusRunning:
			running++
		case StatusDone:
			done++
		}
	}

	switch {
	case len(statuses) > 0 && done == len(statuses):
		return StatusDone
	case running > 0:
		return StatusRunning
	case pending == len(statuses):
		return StatusPending
	default:
		return StatusRunning
	}
}

// ChunkStatuses collects the chunk statuses of r in order.
func (r *Request) ChunkStatuses() []Status {
	out := make([]Status, len(r.Chunks))
	for i, c := range r.Chunks {
		out[i] = c.Status
	}
	return out
}
