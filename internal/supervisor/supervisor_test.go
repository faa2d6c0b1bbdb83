package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/scoracle-standings/internal/api"
	"github.com/albapepper/scoracle-standings/internal/config"
	"github.com/albapepper/scoracle-standings/internal/provider"
	"github.com/albapepper/scoracle-standings/internal/standings"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.ListenHost = "127.0.0.1"
	cfg.OutputFile = filepath.Join(t.TempDir(), "standings.json")
	cfg.RateLimitEnabled = false
	return cfg
}

// uniformTable returns a table in which every team has the same record, so
// a document mixing two tables is detectable.
func uniformTable(wins int) *provider.Table {
	tbl := &provider.Table{Headers: provider.RequiredColumns}
	for i, team := range []string{"BOS", "NYK", "MIA", "MIL"} {
		tbl.Rows = append(tbl.Rows, []interface{}{"East", team, float64(wins), float64(wins), float64(i)})
	}
	for i, team := range []string{"DEN", "LAL", "GSW", "PHX"} {
		tbl.Rows = append(tbl.Rows, []interface{}{"West", team, float64(wins), float64(wins), float64(i)})
	}
	return tbl
}

func get(t *testing.T, url string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func start(t *testing.T, s *Supervisor) (string, context.CancelFunc, <-chan error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()
	return "http://" + ln.Addr().String() + "/standings.json", cancel, done
}

func stop(t *testing.T, cancel context.CancelFunc, done <-chan error) {
	t.Helper()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}

func TestNotFoundUntilFirstRefresh(t *testing.T) {
	release := make(chan struct{})
	fetcher := provider.FetcherFunc(func(ctx context.Context) (*provider.Table, error) {
		select {
		case <-release:
			return uniformTable(10), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	s, err := New(testConfig(t), fetcher, quietLogger(), nil)
	require.NoError(t, err)
	url, cancel, done := start(t, s)

	code, _ := get(t, url)
	assert.Equal(t, http.StatusNotFound, code)

	close(release)
	require.Eventually(t, func() bool {
		code, _ := get(t, url)
		return code == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	stop(t, cancel, done)
}

func TestReadersNeverSeeMixedDocuments(t *testing.T) {
	var n atomic.Int64
	fetcher := provider.FetcherFunc(func(ctx context.Context) (*provider.Table, error) {
		if n.Add(1)%2 == 0 {
			return uniformTable(20), nil
		}
		return uniformTable(10), nil
	})

	cfg := testConfig(t)
	cfg.UpdateInterval = time.Millisecond
	s, err := New(cfg, fetcher, quietLogger(), nil)
	require.NoError(t, err)
	url, cancel, done := start(t, s)

	seen := map[int]bool{}
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		code, body := get(t, url)
		if code == http.StatusNotFound {
			continue
		}
		require.Equal(t, http.StatusOK, code)

		var doc standings.Document
		require.NoError(t, json.Unmarshal(body, &doc), string(body))
		require.Len(t, doc.East, 4)
		require.Len(t, doc.West, 4)
		wins := doc.East[0].Wins
		for _, rec := range append(doc.East, doc.West...) {
			require.Equal(t, wins, rec.Wins, "document mixes two refreshes")
		}
		seen[wins] = true
	}
	stop(t, cancel, done)

	assert.Greater(t, n.Load(), int64(2), "several refreshes ran")
	assert.NotEmpty(t, seen)
}

func TestRunBindError(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	cfg := testConfig(t)
	cfg.ServerPort = occupied.Addr().(*net.TCPAddr).Port

	var calls atomic.Int32
	fetcher := provider.FetcherFunc(func(ctx context.Context) (*provider.Table, error) {
		calls.Add(1)
		return uniformTable(1), nil
	})
	s, err := New(cfg, fetcher, quietLogger(), nil)
	require.NoError(t, err)

	err = s.Run(context.Background())
	var berr *api.BindError
	require.True(t, errors.As(err, &berr), "got %v", err)
	assert.Equal(t, int32(0), calls.Load(), "no refresh without a listener")
}

func TestSchedulerFailureKeepsServing(t *testing.T) {
	cfg := testConfig(t)
	cfg.RefreshCron = "whenever"
	s, err := New(cfg, provider.FetcherFunc(func(ctx context.Context) (*provider.Table, error) {
		return uniformTable(1), nil
	}), quietLogger(), nil)
	require.NoError(t, err)
	require.NoError(t, s.Store().WriteBytes([]byte(`{"East":[],"West":[]}`)))

	url, cancel, done := start(t, s)

	for i := 0; i < 5; i++ {
		code, body := get(t, url)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, `{"East":[],"West":[]}`, string(body))
		time.Sleep(20 * time.Millisecond)
	}
	select {
	case err := <-done:
		t.Fatalf("supervisor stopped on a scheduler failure: %v", err)
	default:
	}

	stop(t, cancel, done)
}

func TestRunOnceAndOpsHandler(t *testing.T) {
	cfg := testConfig(t)
	cfg.MetricsPort = 9
	s, err := New(cfg, provider.FetcherFunc(func(ctx context.Context) (*provider.Table, error) {
		return uniformTable(30), nil
	}), quietLogger(), nil)
	require.NoError(t, err)
	ops := s.OpsHandler()
	require.NotNil(t, ops)

	rec := httptest.NewRecorder()
	ops.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	c := s.RunOnce(context.Background())
	require.True(t, c.OK(), c.Summary())

	rec = httptest.NewRecorder()
	ops.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	ops.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `standings_refresh_cycles_total{outcome="success"} 1`)
}

func TestOpsDisabledByDefault(t *testing.T) {
	s, err := New(testConfig(t), provider.FetcherFunc(func(ctx context.Context) (*provider.Table, error) {
		return nil, errors.New("unused")
	}), quietLogger(), nil)
	require.NoError(t, err)
	assert.Nil(t, s.OpsHandler())
}
