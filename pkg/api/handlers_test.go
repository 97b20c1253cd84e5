package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athulya-anil/axon-ingest/pkg/models"
	"github.com/athulya-anil/axon-ingest/pkg/processor"
	"github.com/athulya-anil/axon-ingest/pkg/scheduler"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, svc Service, middleware ...gin.HandlerFunc) *gin.Engine {
	t.Helper()
	router := gin.New()
	NewAPI(svc, nil, 10*time.Millisecond).SetupRoutes(router, middleware...)
	return router
}

func newTestService(t *testing.T) *scheduler.Service {
	t.Helper()
	proc := processor.Func(func(context.Context, int64) error { return nil })
	s := scheduler.NewService(proc, scheduler.WithManualDispatch(), scheduler.WithDispatchInterval(0))
	t.Cleanup(s.Close)
	return s
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestIngestAndStatus(t *testing.T) {
	svc := newTestService(t)
	router := newTestRouter(t, svc)

	w := do(router, http.MethodPost, "/ingest", `{"ids":[1,2,3,4,5],"priority":"MEDIUM"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var accepted IngestResponse
	decode(t, w, &accepted)
	require.NotEmpty(t, accepted.RequestID)

	w = do(router, http.MethodGet, "/status/"+accepted.RequestID, "")
	require.Equal(t, http.StatusOK, w.Code)

	var req models.Request
	decode(t, w, &req)
	assert.Equal(t, accepted.RequestID, req.ID)
	assert.Equal(t, models.StatusPending, req.Status)
	require.Len(t, req.Chunks, 2)
	assert.Equal(t, []int64{1, 2, 3}, req.Chunks[0].Identifiers)
	assert.Equal(t, []int64{4, 5}, req.Chunks[1].Identifiers)

	_, err := svc.Tick(context.Background())
	require.NoError(t, err)

	w = do(router, http.MethodGet, "/status/"+accepted.RequestID, "")
	decode(t, w, &req)
	assert.Equal(t, models.StatusRunning, req.Status)
	assert.Equal(t, models.StatusDone, req.Chunks[0].Status)
}

func TestIngestRejectsInvalidInput(t *testing.T) {
	svc := newTestService(t)
	router := newTestRouter(t, svc)

	tests := map[string]string{
		"malformed json":   `{"ids":[1,2`,
		"missing ids":      `{"priority":"HIGH"}`,
		"empty ids":        `{"ids":[],"priority":"HIGH"}`,
		"string id":        `{"ids":["1"],"priority":"HIGH"}`,
		"fractional id":    `{"ids":[1.5],"priority":"HIGH"}`,
		"zero id":          `{"ids":[0],"priority":"HIGH"}`,
		"above max":        `{"ids":[1000000008],"priority":"HIGH"}`,
		"unknown priority": `{"ids":[1],"priority":"URGENT"}`,
		"lowercase":        `{"ids":[1],"priority":"high"}`,
		"missing priority": `{"ids":[1]}`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			w := do(router, http.MethodPost, "/ingest", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

			var resp map[string]string
			decode(t, w, &resp)
			assert.Equal(t, "invalid_input", resp["error"])
			assert.NotEmpty(t, resp["message"])
		})
	}

	assert.Empty(t, svc.QueueDepths()[models.PriorityHigh])
}

func TestIngestAcceptsMaxID(t *testing.T) {
	router := newTestRouter(t, newTestService(t))

	w := do(router, http.MethodPost, "/ingest", `{"ids":[1000000007],"priority":"LOW"}`)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestStatusUnknownRequest(t *testing.T) {
	router := newTestRouter(t, newTestService(t))

	w := do(router, http.MethodGet, "/status/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp map[string]string
	decode(t, w, &resp)
	assert.Equal(t, "not_found", resp["error"])

	w = do(router, http.MethodGet, "/status/nope/events", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type brokenService struct{}

func (brokenService) Submit([]int64, string) (string, error) {
	return "", errors.New("disk on fire")
}
func (brokenService) Status(string) (*models.Request, error) { return nil, errors.New("disk on fire") }
func (brokenService) QueueDepths() map[models.Priority]int   { return nil }

func TestInternalErrorsAreHidden(t *testing.T) {
	router := newTestRouter(t, brokenService{})

	w := do(router, http.MethodPost, "/ingest", `{"ids":[1],"priority":"LOW"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk on fire")
}

func TestHealthReportsLanes(t *testing.T) {
	svc := newTestService(t)
	router := newTestRouter(t, svc)

	_, err := svc.Submit([]int64{1, 2, 3, 4}, "HIGH")
	require.NoError(t, err)
	_, err = svc.Submit([]int64{5}, "LOW")
	require.NoError(t, err)

	w := do(router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status      string         `json:"status"`
		QueueLength int            `json:"queue_length"`
		Lanes       map[string]int `json:"lanes"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 3, resp.QueueLength)
	assert.Equal(t, map[string]int{"HIGH": 2, "MEDIUM": 0, "LOW": 1}, resp.Lanes)
}

func TestWelcomeAndMetrics(t *testing.T) {
	router := newTestRouter(t, newTestService(t))

	w := do(router, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "POST /ingest")

	w = do(router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

// readEvent reads one SSE event and returns its data payload.
func readEvent(t *testing.T, r *bufio.Reader) []byte {
	t.Helper()
	var data []byte
	for {
		line, err := r.ReadBytes('\n')
		require.NoError(t, err)
		line = bytes.TrimRight(line, "\n")
		if len(line) == 0 {
			return data
		}
		if bytes.HasPrefix(line, []byte("data: ")) {
			data = bytes.TrimPrefix(line, []byte("data: "))
		}
	}
}

func TestStatusEventsStreamUntilDone(t *testing.T) {
	svc := newTestService(t)
	srv := httptest.NewServer(newTestRouter(t, svc))
	defer srv.Close()

	id, err := svc.Submit([]int64{1, 2, 3}, "HIGH")
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/status/" + id + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	var first models.Request
	require.NoError(t, json.Unmarshal(readEvent(t, r), &first))
	assert.Equal(t, models.StatusPending, first.Status)

	_, err = svc.Tick(context.Background())
	require.NoError(t, err)

	// the handler ends the stream after the done event
	rest, err := io.ReadAll(r)
	require.NoError(t, err)

	events := strings.Split(strings.TrimSpace(string(rest)), "\n\n")
	last := events[len(events)-1]
	var final models.Request
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.Split(last, "\n")[1], "data: ")), &final))
	assert.Equal(t, models.StatusDone, final.Status)
}
