package syncsdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string, mods ...func(*Config)) *Client {
	t.Helper()
	cfg := &Config{
		BaseURL:        url,
		Timeout:        time.Second,
		RetryCount:     2,
		RetryBaseDelay: time.Millisecond,
	}
	for _, mod := range mods {
		mod(cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic("hijack not supported")
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		panic(err)
	}
	conn.Close()
}

func TestNew_Validation(t *testing.T) {
	_, err := New(&Config{})
	assert.ErrorIs(t, err, ErrNoServerURL)

	_, err = New(&Config{BaseURL: "not a url"})
	assert.ErrorIs(t, err, ErrInvalidServerURL)

	_, err = New(&Config{BaseURL: "http://127.0.0.1:1", RetryCount: -1})
	assert.Error(t, err)
}

func TestBackoffDelay_Doubles(t *testing.T) {
	base := 100 * time.Millisecond
	assert.Equal(t, time.Duration(0), backoffDelay(base, 0))
	assert.Equal(t, 100*time.Millisecond, backoffDelay(base, 1))
	assert.Equal(t, 200*time.Millisecond, backoffDelay(base, 2))
	assert.Equal(t, 400*time.Millisecond, backoffDelay(base, 3))
	assert.Equal(t, DefaultMaxRetryDelay, backoffDelay(base, 20))
}

func TestShouldRetry(t *testing.T) {
	assert.False(t, shouldRetry(nil))
	assert.True(t, shouldRetry(errors.New("connection reset by peer")))
	assert.False(t, shouldRetry(ErrResponseTooLarge))
	assert.False(t, shouldRetry(context.Canceled))
}

func TestDo_RetriesNetworkFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			dropConnection(w)
			return
		}
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_GivesUpAfterRetryCount(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		dropConnection(w)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, func(c *Config) { c.RetryCount = 3 })
	_, err := c.Health(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnreachable(err))
	assert.Equal(t, int32(4), calls.Load())
}

func TestDo_TimeoutIsRetriedThenUnreachable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, func(c *Config) {
		c.Timeout = 50 * time.Millisecond
		c.RetryCount = 2
	})

	_, err := c.Health(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnreachable(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_ErrorStatusIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusInternalServerError, APIError{Code: CodeInternalError, Message: "boom"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Health(context.Background())
	require.Error(t, err)
	assert.False(t, IsUnreachable(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "boom", apiErr.Message)
	assert.Equal(t, int32(1), calls.Load())

	resp, err := c.Do(context.Background(), http.MethodGet, "/anything", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.False(t, resp.IsSuccess())
}

func TestDo_ResponseTooLarge(t *testing.T) {
	t.Run("content-length", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Write([]byte(strings.Repeat("x", 4096)))
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL, func(c *Config) { c.MaxResponseBytes = 1024 })
		_, err := c.Do(context.Background(), http.MethodGet, "/big", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrResponseTooLarge)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("chunked", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			for range 8 {
				w.Write([]byte(strings.Repeat("y", 512)))
				w.(http.Flusher).Flush()
			}
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL, func(c *Config) { c.MaxResponseBytes = 1024 })
		_, err := c.Do(context.Background(), http.MethodGet, "/big", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrResponseTooLarge)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestDo_BearerToken(t *testing.T) {
	var auth atomic.Value
	auth.Store("")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", AuthRequired: true})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", auth.Load())

	c = newTestClient(t, srv.URL, func(c *Config) { c.AuthToken = "s3cret" })
	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, health.AuthRequired)
	assert.Equal(t, "Bearer s3cret", auth.Load())
}

func TestAcquireLock(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/projects/proj-1/lock", r.URL.Path)

		client := r.Header.Get(HeaderClientID)
		if client == "A" {
			writeJSON(w, http.StatusOK, LockResponse{Lock: &Lock{ProjectID: "proj-1", ClientID: "A", AcquiredAt: now, ExpiresAt: now.Add(time.Minute)}})
			return
		}
		writeJSON(w, http.StatusConflict, map[string]any{
			"code":  CodeLockHeld,
			"error": "held",
			"lock":  Lock{ProjectID: "proj-1", ClientID: "A", AcquiredAt: now, ExpiresAt: now.Add(time.Minute)},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	lock, err := c.AcquireLock(context.Background(), "proj-1", "A")
	require.NoError(t, err)
	assert.Equal(t, "A", lock.ClientID)
	assert.True(t, lock.ExpiresAt.Equal(now.Add(time.Minute)))

	_, err = c.AcquireLock(context.Background(), "proj-1", "B")
	var held *LockHeldError
	require.ErrorAs(t, err, &held)
	require.NotNil(t, held.Lock)
	assert.Equal(t, "A", held.Lock.ClientID)
	assert.Contains(t, held.Error(), "A")
}

func TestReleaseAndHeartbeat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodDelete && r.URL.Path == "/projects/p/lock":
			writeJSON(w, http.StatusOK, ReleaseResponse{Released: r.Header.Get(HeaderClientID) == "A"})
		case r.Method == http.MethodPost && r.URL.Path == "/projects/p/lock/heartbeat":
			if r.Header.Get(HeaderClientID) != "A" {
				writeJSON(w, http.StatusConflict, APIError{Code: CodeLockNotHeld, Message: "not holder"})
				return
			}
			writeJSON(w, http.StatusOK, LockResponse{Lock: &Lock{ProjectID: "p", ClientID: "A"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	released, err := c.ReleaseLock(ctx, "p", "A")
	require.NoError(t, err)
	assert.True(t, released)

	released, err = c.ReleaseLock(ctx, "p", "B")
	require.NoError(t, err)
	assert.False(t, released)

	lock, err := c.Heartbeat(ctx, "p", "A")
	require.NoError(t, err)
	assert.Equal(t, "A", lock.ClientID)

	_, err = c.Heartbeat(ctx, "p", "B")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, CodeLockNotHeld, apiErr.Code)
}

func TestFiles(t *testing.T) {
	modified := time.Date(2025, 3, 1, 10, 0, 0, 123456789, time.UTC)
	var uploaded atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/projects/p/files":
			writeJSON(w, http.StatusOK, ListFilesResponse{Files: []FileInfo{{Name: "notes.json", ModifiedAt: modified}}})
		case r.Method == http.MethodGet && r.URL.Path == "/projects/p/files/notes.json":
			writeJSON(w, http.StatusOK, FileContent{Name: "notes.json", Content: "{}", ModifiedAt: modified})
		case r.Method == http.MethodGet:
			writeJSON(w, http.StatusNotFound, APIError{Code: CodeFileNotFound, Message: "not found"})
		case r.Method == http.MethodPut:
			var body PutFileRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			uploaded.Store(r.Header.Get(HeaderClientID) + ":" + body.Content)
			writeJSON(w, http.StatusOK, PutFileResponse{Name: "context.md", ModifiedAt: modified})
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	files, err := c.ListFiles(ctx, "p")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, files[0].ModifiedAt.Equal(modified), "nanosecond precision must survive the wire")

	file, err := c.GetFile(ctx, "p", "notes.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", file.Content)

	_, err = c.GetFile(ctx, "p", "missing.md")
	assert.ErrorIs(t, err, ErrFileNotFound)

	put, err := c.PutFile(ctx, "p", "A", "context.md", []byte("# ctx"))
	require.NoError(t, err)
	assert.True(t, put.ModifiedAt.Equal(modified))
	assert.Equal(t, "A:# ctx", uploaded.Load())
}
