package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athulya-anil/axon-ingest/pkg/ingest"
	"github.com/athulya-anil/axon-ingest/pkg/models"
)

func newRequest(t *testing.T, ids ...int64) *models.Request {
	t.Helper()
	req, _ := ingest.Batch(ids, models.PriorityMedium, time.Now())
	return req
}

func TestStoreCreateAndGet(t *testing.T) {
	s := New()
	req := newRequest(t, 1, 2, 3, 4)

	require.NoError(t, s.Create(req))
	assert.Equal(t, 1, s.Len())

	got, err := s.Get(req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.ID, got.ID)
	assert.Equal(t, models.StatusPending, got.Status)
	require.Len(t, got.Chunks, 2)

	assert.Error(t, s.Create(req), "duplicate request ids are rejected")
}

func TestStoreGetUnknown(t *testing.T) {
	_, err := New().Get("missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStoreSnapshotsAreIsolated(t *testing.T) {
	s := New()
	req := newRequest(t, 1, 2)
	require.NoError(t, s.Create(req))

	// mutating the caller's copy or a snapshot must not leak into the store
	req.Chunks[0].Status = models.StatusDone
	snap, err := s.Get(req.ID)
	require.NoError(t, err)
	snap.Chunks[0].Identifiers[0] = 42

	again, err := s.Get(req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, again.Chunks[0].Status)
	assert.Equal(t, int64(1), again.Chunks[0].Identifiers[0])
}

func TestStoreDelete(t *testing.T) {
	st := New()
	req := newRequest(t, 1, 2, 3, 4)
	require.NoError(t, st.Create(req))

	st.Delete(req.ID)
	st.Delete("unknown")

	_, err := st.Get(req.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, 0, st.Len())

	_, err = st.MarkRunning(req.ID, req.Chunks[0].ID, time.Now())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStoreTransitionsDeriveRequestStatus(t *testing.T) {
	s := New()
	req := newRequest(t, 1, 2, 3, 4, 5)
	require.NoError(t, s.Create(req))
	c1, c2 := req.Chunks[0].ID, req.Chunks[1].ID
	now := time.Now()

	status, err := s.MarkRunning(req.ID, c1, now)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, status)

	require.NoError(t, s.RecordResult(req.ID, c1, false))
	require.NoError(t, s.RecordResult(req.ID, c1, true))

	status, err = s.MarkDone(req.ID, c1, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, status, "done + pending resolves to running")

	got, err := s.Get(req.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Chunks[0].Processed)
	assert.Equal(t, 1, got.Chunks[0].Failed)
	require.NotNil(t, got.Chunks[0].StartedAt)
	require.NotNil(t, got.Chunks[0].CompletedAt)
	assert.Equal(t, models.StatusPending, got.Chunks[1].Status)

	_, err = s.MarkRunning(req.ID, c2, now)
	require.NoError(t, err)
	status, err = s.MarkDone(req.ID, c2, now)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDone, status)
}

func TestStoreRejectsInvalidTransitions(t *testing.T) {
	s := New()
	req := newRequest(t, 1)
	require.NoError(t, s.Create(req))
	c := req.Chunks[0].ID

	_, err := s.MarkDone(req.ID, c, time.Now())
	assert.ErrorIs(t, err, models.ErrInvalidTransition, "running cannot be skipped")
	assert.ErrorIs(t, s.RecordResult(req.ID, c, false), models.ErrInvalidTransition)

	_, err = s.MarkRunning(req.ID, c, time.Now())
	require.NoError(t, err)
	_, err = s.MarkRunning(req.ID, c, time.Now())
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = s.MarkRunning(req.ID, "nope", time.Now())
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = s.MarkRunning("nope", c, time.Now())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStoreConcurrentReadersSeeWholeChunks(t *testing.T) {
	s := New()
	req := newRequest(t, 1, 2, 3)
	require.NoError(t, s.Create(req))
	c := req.Chunks[0].ID

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				got, err := s.Get(req.ID)
				if !assert.NoError(t, err) {
					return
				}
				ch := got.Chunks[0]
				// a chunk that is done always carries both timestamps
				if ch.Status == models.StatusDone {
					assert.NotNil(t, ch.StartedAt)
					assert.NotNil(t, ch.CompletedAt)
					assert.Equal(t, models.StatusDone, got.Status)
				}
			}
		}()
	}

	_, err := s.MarkRunning(req.ID, c, time.Now())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordResult(req.ID, c, false))
	}
	_, err = s.MarkDone(req.ID, c, time.Now())
	require.NoError(t, err)

	close(done)
	wg.Wait()
}
