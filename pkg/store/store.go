// Package store keeps every submitted request and its chunks for the
// lifetime of the process. It is the only source read by status queries.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/athulya-anil/axon-ingest/pkg/models"
)

type chunkKey struct {
	requestID string
	chunkID   string
}

// Store is an in-memory request store. All mutations happen under one lock
// and readers only ever receive copies.
type Store struct {
	mu       sync.RWMutex
	requests map[string]*models.Request
	chunks   map[chunkKey]*models.Chunk
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		requests: make(map[string]*models.Request),
		chunks:   make(map[chunkKey]*models.Chunk),
	}
}

// Create stores a new request together with its chunks.
func (s *Store) Create(req *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[req.ID]; exists {
		return fmt.Errorf("request %s already exists", req.ID)
	}

	stored := req.Clone()
	stored.Status = models.Aggregate(stored.ChunkStatuses()...)
	s.requests[stored.ID] = stored
	for _, c := range stored.Chunks {
		s.chunks[chunkKey{stored.ID, c.ID}] = c
	}
	return nil
}

// Get returns a snapshot of the request with the given id.
func (s *Store) Get(id string) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	return req.Clone(), nil
}

// Delete removes a request and its chunks. Unknown ids are ignored.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return
	}
	for _, c := range req.Chunks {
		delete(s.chunks, chunkKey{id, c.ID})
	}
	delete(s.requests, id)
}

// Len returns the number of stored requests.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.requests)
}

// MarkRunning moves a pending chunk to running and recomputes its request status.
func (s *Store) MarkRunning(requestID, chunkID string, at time.Time) (models.Status, error) {
	return s.transition(requestID, chunkID, models.StatusRunning, func(c *models.Chunk) {
		c.StartedAt = &at
	})
}

// MarkDone moves a running chunk to done and recomputes its request status.
func (s *Store) MarkDone(requestID, chunkID string, at time.Time) (models.Status, error) {
	return s.transition(requestID, chunkID, models.StatusDone, func(c *models.Chunk) {
		c.CompletedAt = &at
	})
}

// RecordResult tallies the outcome of one identifier of a running chunk.
func (s *Store) RecordResult(requestID, chunkID string, failed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chunks[chunkKey{requestID, chunkID}]
	if !ok {
		return fmt.Errorf("%w: chunk %s of request %s", models.ErrNotFound, chunkID, requestID)
	}
	if c.Status != models.StatusRunning {
		return fmt.Errorf("%w: chunk %s is %s, not running", models.ErrInvalidTransition, chunkID, c.Status)
	}

	c.Processed++
	if failed {
		c.Failed++
	}
	return nil
}

func (s *Store) transition(requestID, chunkID string, next models.Status, apply func(*models.Chunk)) (models.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return "", fmt.Errorf("%w: %s", models.ErrNotFound, requestID)
	}
	c, ok := s.chunks[chunkKey{requestID, chunkID}]
	if !ok {
		return "", fmt.Errorf("%w: chunk %s of request %s", models.ErrNotFound, chunkID, requestID)
	}
	if !c.Status.CanTransition(next) {
		return "", fmt.Errorf("%w: chunk %s %s -> %s", models.ErrInvalidTransition, chunkID, c.Status, next)
	}

	c.Status = next
	apply(c)
	req.Status = models.Aggregate(req.ChunkStatuses()...)
	return req.Status, nil
}
