package cds

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtm0/era5fetch/internal/errs"
)

const payload = "CDF\x01 downloaded data"

type fakeArchive struct {
	mu       sync.Mutex
	polls    int
	final    string
	inputs   map[string]string
	tokens   []string
	failWith int
}

func (a *fakeArchive) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/retrieve/v1/processes/reanalysis-era5-complete/execution", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.tokens = append(a.tokens, r.Header.Get("PRIVATE-TOKEN"))
		if a.failWith != 0 {
			w.WriteHeader(a.failWith)
			io.WriteString(w, `{"title":"Authentication failed","detail":"invalid token"}`)
			return
		}
		assert.Equal(t, http.MethodPost, r.Method)
		var body struct {
			Inputs map[string]string `json:"inputs"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		a.inputs = body.Inputs
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"jobID":"job-1","status":"accepted"}`)
	})
	mux.HandleFunc("/api/retrieve/v1/jobs/job-1", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.tokens = append(a.tokens, r.Header.Get("PRIVATE-TOKEN"))
		a.polls++
		status := StatusRunning
		if a.polls >= 2 {
			status = a.final
		}
		json.NewEncoder(w).Encode(jobStatus{JobID: "job-1", Status: status})
	})
	mux.HandleFunc("/api/retrieve/v1/jobs/job-1/results", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		final := a.final
		a.mu.Unlock()
		if final != StatusSuccessful {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"title":"The job has failed","detail":"MARS returned no data"}`)
			return
		}
		io.WriteString(w, `{"asset":{"value":{"href":"/download/job-1.nc","file:size":20}}}`)
	})
	mux.HandleFunc("/download/job-1.nc", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, payload)
	})
	return mux
}

func newTestClient(t *testing.T, a *fakeArchive) *Client {
	t.Helper()
	srv := httptest.NewServer(a.handler(t))
	t.Cleanup(srv.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := NewClient(logger, Config{URL: srv.URL + "/api", Key: "secret"}, WithPollInterval(time.Millisecond))
	require.NoError(t, err)
	return c
}

func Test_Retrieve(t *testing.T) {
	a := &fakeArchive{final: StatusSuccessful}
	c := newTestClient(t, a)
	target := filepath.Join(t.TempDir(), "out.nc")
	params := map[string]string{"class": "ea", "levelist": "1"}

	require.NoError(t, c.Retrieve(context.Background(), "reanalysis-era5-complete", params, target))

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, payload, string(got))
	assert.Equal(t, params, a.inputs)
	assert.Equal(t, 2, a.polls)
	for _, tok := range a.tokens {
		assert.Equal(t, "secret", tok)
	}
	_, err = os.Stat(target + ".part")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func Test_Retrieve_JobFailed(t *testing.T) {
	a := &fakeArchive{final: StatusFailed}
	c := newTestClient(t, a)
	target := filepath.Join(t.TempDir(), "out.nc")

	err := c.Retrieve(context.Background(), "reanalysis-era5-complete", nil, target)
	var rerr *errs.RemoteError
	require.True(t, errors.As(err, &rerr), "got %v", err)
	assert.Equal(t, "job-1", rerr.Job)
	assert.Equal(t, "The job has failed: MARS returned no data", rerr.Msg)
	_, err = os.Stat(target)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func Test_Retrieve_Unauthorized(t *testing.T) {
	a := &fakeArchive{failWith: http.StatusUnauthorized}
	c := newTestClient(t, a)

	err := c.Retrieve(context.Background(), "reanalysis-era5-complete", nil, filepath.Join(t.TempDir(), "out.nc"))
	var rerr *errs.RemoteError
	require.True(t, errors.As(err, &rerr), "got %v", err)
	assert.Equal(t, http.StatusUnauthorized, rerr.Status)
	assert.Equal(t, "Authentication failed: invalid token", rerr.Msg)
}

func Test_Retrieve_Cancelled(t *testing.T) {
	a := &fakeArchive{final: StatusRunning}
	c := newTestClient(t, a)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.Retrieve(ctx, "reanalysis-era5-complete", nil, filepath.Join(t.TempDir(), "out.nc"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func Test_NewClient(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := NewClient(logger, Config{URL: "ftp://example.com", Key: "k"})
	assert.Error(t, err)
	_, err = NewClient(logger, Config{URL: DefaultURL})
	assert.Error(t, err)
	c, err := NewClient(logger, Config{URL: DefaultURL + "/", Key: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultURL, c.baseURL)
	assert.Equal(t, DefaultPollInterval, c.pollInterval)
}

func Test_LoadConfig(t *testing.T) {
	t.Setenv("CDSAPI_URL", "")
	t.Setenv("CDSAPI_KEY", "")
	path := filepath.Join(t.TempDir(), ".cdsapirc")
	require.NoError(t, os.WriteFile(path, []byte("url: https://example.com/api/\nkey: abc-123\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Config{URL: "https://example.com/api", Key: "abc-123"}, cfg)

	t.Setenv("CDSAPI_KEY", "from-env")
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Key)

	cfg, err = LoadConfig(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Equal(t, Config{URL: DefaultURL, Key: "from-env"}, cfg)

	t.Setenv("CDSAPI_KEY", "")
	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("url: [unterminated\n"), 0o600))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}
