package worldpop

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
	"github.com/couchcryptid/quake-data-etl/internal/observability"
)

// fakeWorldPop serves the submit and task-status endpoints and counts
// poll requests.
type fakeWorldPop struct {
	srv       *httptest.Server
	pollCount atomic.Int64

	submitHandler http.HandlerFunc
	pollHandler   http.HandlerFunc
}

func newFakeWorldPop(t *testing.T) *fakeWorldPop {
	t.Helper()
	f := &fakeWorldPop{}
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		f.submitHandler(w, r)
	})
	mux.HandleFunc("/tasks/", func(w http.ResponseWriter, r *http.Request) {
		f.pollCount.Add(1)
		f.pollHandler(w, r)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeWorldPop) client(metrics *observability.Metrics) *Client {
	return NewClient(f.srv.URL+"/stats", f.srv.URL+"/tasks/", "wpgpas", 2020,
		5*time.Second, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func submitOK(taskID string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"taskid": taskID})
	}
}

func TestClient_FetchPyramid_Finished(t *testing.T) {
	f := newFakeWorldPop(t)
	f.submitHandler = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "wpgpas", r.URL.Query().Get("dataset"))
		assert.Equal(t, "2020", r.URL.Query().Get("year"))
		assert.Contains(t, r.URL.Query().Get("geojson"), "FeatureCollection")
		_ = json.NewEncoder(w).Encode(map[string]string{"taskid": "task-1"})
	}
	f.pollHandler = func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/task-1"))
		_, _ = w.Write([]byte(`{
			"status": "finished",
			"error": false,
			"data": {"agesexpyramid": [
				{"age": "0 to 4", "male": 50, "female": 50},
				{"age": "5 to 9", "male": 40, "female": 60}
			]}
		}`))
	}

	metrics := observability.NewMetricsForTesting()
	pyramid, err := f.client(metrics).FetchPyramid(context.Background(), 19.4, -155.3, 100)
	require.NoError(t, err)

	require.Len(t, pyramid, 2)
	assert.Equal(t, "0 to 4", pyramid[0].Age)
	assert.InDelta(t, 50.0, pyramid[0].Male, 1e-9)
	assert.EqualValues(t, 1, f.pollCount.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.WorldPopRequests.WithLabelValues("ok")), 1e-9)
}

func TestClient_FetchPyramid_TaskError(t *testing.T) {
	f := newFakeWorldPop(t)
	f.submitHandler = submitOK("task-2")
	f.pollHandler = func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status": "finished", "error": true, "error_message": "raster failure"}`))
	}

	metrics := observability.NewMetricsForTesting()
	pyramid, err := f.client(metrics).FetchPyramid(context.Background(), 19.4, -155.3, 100)
	require.NoError(t, err)

	assert.Empty(t, pyramid)
	assert.EqualValues(t, 1, f.pollCount.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.WorldPopRequests.WithLabelValues("task_error")), 1e-9)
}

func TestClient_FetchPyramid_NoTaskID(t *testing.T) {
	f := newFakeWorldPop(t)
	f.submitHandler = func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}
	f.pollHandler = func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("poll endpoint should not be called without a task id")
	}

	metrics := observability.NewMetricsForTesting()
	pyramid, err := f.client(metrics).FetchPyramid(context.Background(), 19.4, -155.3, 100)
	require.NoError(t, err)

	assert.Empty(t, pyramid)
	assert.EqualValues(t, 0, f.pollCount.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.WorldPopRequests.WithLabelValues("no_task")), 1e-9)
}

func TestClient_FetchPyramid_SubmitFailure(t *testing.T) {
	f := newFakeWorldPop(t)
	f.submitHandler = func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}

	metrics := observability.NewMetricsForTesting()
	pyramid, err := f.client(metrics).FetchPyramid(context.Background(), 19.4, -155.3, 100)
	require.NoError(t, err)

	assert.Empty(t, pyramid)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.WorldPopRequests.WithLabelValues("transport_error")), 1e-9)
}

func TestClient_FetchPyramid_PollTimeout(t *testing.T) {
	f := newFakeWorldPop(t)
	f.submitHandler = submitOK("task-3")
	f.pollHandler = func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status": "created", "error": false}`))
	}

	metrics := observability.NewMetricsForTesting()
	c := f.client(metrics)

	fc := clockwork.NewFakeClock()
	c.SetClock(fc)

	done := make(chan struct{})
	var pyramid []domain.AgeGroupSample
	var fetchErr error
	go func() {
		defer close(done)
		pyramid, fetchErr = c.FetchPyramid(context.Background(), 19.4, -155.3, 100)
	}()

	// Nine sleeps separate the ten poll attempts.
	for i := 0; i < 9; i++ {
		fc.BlockUntil(1)
		fc.Advance(time.Second)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("fetch did not finish after advancing the clock")
	}

	require.NoError(t, fetchErr)
	assert.Empty(t, pyramid)
	assert.EqualValues(t, 10, f.pollCount.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.WorldPopRequests.WithLabelValues("timeout")), 1e-9)
}

func TestClient_FetchPyramid_PollRetriesAfterFailure(t *testing.T) {
	f := newFakeWorldPop(t)
	f.submitHandler = submitOK("task-5")
	f.pollHandler = func(w http.ResponseWriter, _ *http.Request) {
		if f.pollCount.Load() == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{
			"status": "finished",
			"error": false,
			"data": {"agesexpyramid": [{"age": "0 to 4", "male": 50, "female": 50}]}
		}`))
	}

	metrics := observability.NewMetricsForTesting()
	c := f.client(metrics)

	fc := clockwork.NewFakeClock()
	c.SetClock(fc)

	done := make(chan struct{})
	var pyramid []domain.AgeGroupSample
	var fetchErr error
	go func() {
		defer close(done)
		pyramid, fetchErr = c.FetchPyramid(context.Background(), 19.4, -155.3, 100)
	}()

	fc.BlockUntil(1)
	fc.Advance(time.Second)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("fetch did not finish after advancing the clock")
	}

	require.NoError(t, fetchErr)
	require.Len(t, pyramid, 1)
	assert.EqualValues(t, 2, f.pollCount.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.WorldPopRequests.WithLabelValues("ok")), 1e-9)
}

func TestClient_FetchPyramid_PollTransportError(t *testing.T) {
	f := newFakeWorldPop(t)
	f.submitHandler = submitOK("task-6")
	f.pollHandler = func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}

	metrics := observability.NewMetricsForTesting()
	c := f.client(metrics)

	fc := clockwork.NewFakeClock()
	c.SetClock(fc)

	done := make(chan struct{})
	var pyramid []domain.AgeGroupSample
	var fetchErr error
	go func() {
		defer close(done)
		pyramid, fetchErr = c.FetchPyramid(context.Background(), 19.4, -155.3, 100)
	}()

	for i := 0; i < 9; i++ {
		fc.BlockUntil(1)
		fc.Advance(time.Second)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("fetch did not finish after advancing the clock")
	}

	require.NoError(t, fetchErr)
	assert.Empty(t, pyramid)
	assert.EqualValues(t, 10, f.pollCount.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.WorldPopRequests.WithLabelValues("transport_error")), 1e-9)
}

func TestClient_FetchPyramid_InvalidGeometry(t *testing.T) {
	f := newFakeWorldPop(t)
	f.submitHandler = func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("submit endpoint should not be called for invalid geometry")
	}

	_, err := f.client(observability.NewMetricsForTesting()).FetchPyramid(context.Background(), 90, 0, 100)
	require.Error(t, err)
}

func TestClient_FetchPyramid_ContextCanceled(t *testing.T) {
	f := newFakeWorldPop(t)
	f.submitHandler = submitOK("task-4")
	f.pollHandler = func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status": "created", "error": false}`))
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := f.client(observability.NewMetricsForTesting())

	fc := clockwork.NewFakeClock()
	c.SetClock(fc)

	done := make(chan error, 1)
	go func() {
		_, err := c.FetchPyramid(ctx, 19.4, -155.3, 100)
		done <- err
	}()

	// Cancel while the poll loop is waiting between attempts.
	fc.BlockUntil(1)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("fetch did not observe cancellation")
	}
}
