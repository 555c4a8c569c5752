package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noopSleep is a sleep function that returns immediately, for fast tests.
func noopSleep(_ context.Context, _ time.Duration) error {
	return nil
}

// newTestClient creates a Client pointing at the given httptest server
// with instant retry sleeps for fast tests.
func newTestClient(t *testing.T, url string) *Client {
	t.Helper()

	c := NewClient(url, http.DefaultClient, StaticToken("test-token"), slog.Default())
	c.sleepFunc = noopSleep

	return c
}

func TestDo(t *testing.T) {
	t.Run("success passes auth and user agent", func(t *testing.T) {
		var gotAuth, gotAgent string

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotAgent = r.Header.Get("User-Agent")
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL)

		resp, err := c.Do(context.Background(), http.MethodGet, "/v1/ping", nil)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, "Bearer test-token", gotAuth)
		assert.Equal(t, userAgent, gotAgent)
	})

	t.Run("server errors retry then classify", func(t *testing.T) {
		var calls atomic.Int32

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL)

		_, err := c.Do(context.Background(), http.MethodGet, "/v1/me", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrServerError)
		assert.Equal(t, int32(maxRetries+1), calls.Load())
	})

	t.Run("4xx does not retry", func(t *testing.T) {
		var calls atomic.Int32

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL)

		_, err := c.Do(context.Background(), http.MethodGet, "/v1/movies/1", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("429 recovers after retry", func(t *testing.T) {
		var calls atomic.Int32

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL)

		resp, err := c.Do(context.Background(), http.MethodGet, "/v1/me", nil)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("missing token fails before the wire", func(t *testing.T) {
		c := NewClient("http://unreachable.invalid", http.DefaultClient, StaticToken(""), slog.Default())
		c.sleepFunc = noopSleep

		_, err := c.Do(context.Background(), http.MethodGet, "/v1/me", nil)
		require.Error(t, err)
	})

	t.Run("api error carries status and request id", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("request-id", "req-123")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte("nope"))
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL)

		_, err := c.Do(context.Background(), http.MethodGet, "/v1/me", nil)
		require.Error(t, err)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
		assert.Equal(t, "req-123", apiErr.RequestID)
		assert.Contains(t, apiErr.Message, "nope")
	})
}

func TestEndpoints(t *testing.T) {
	t.Run("current user", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/me", r.URL.Path)
			_ = json.NewEncoder(w).Encode(User{ID: "user-1", Name: "Toni"})
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL)

		user, err := c.CurrentUser(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "user-1", user.ID)
	})

	t.Run("get movie", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/movies/603", r.URL.Path)
			_ = json.NewEncoder(w).Encode(Movie{ID: 603, Title: "The Matrix"})
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL)

		movie, err := c.GetMovie(context.Background(), 603)
		require.NoError(t, err)
		assert.Equal(t, "The Matrix", movie.Title)
	})

	t.Run("list favorites", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/users/user-1/favorites", r.URL.Path)
			_ = json.NewEncoder(w).Encode(listResponse{Items: []ListItem{
				{Movie: Movie{ID: 1, Title: "Alien"}, AddedAt: 100},
			}})
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL)

		items, err := c.ListFavorites(context.Background(), "user-1")
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, int64(1), items[0].Movie.ID)
	})

	t.Run("add favorite puts the entry", func(t *testing.T) {
		var gotMethod, gotPath string
		var gotItem ListItem

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotPath = r.URL.Path
			_ = json.NewDecoder(r.Body).Decode(&gotItem)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL)

		item := ListItem{Movie: Movie{ID: 42, Title: "Blade Runner"}, AddedAt: 100}
		require.NoError(t, c.AddFavorite(context.Background(), "user-1", item))

		assert.Equal(t, http.MethodPut, gotMethod)
		assert.Equal(t, "/v1/users/user-1/favorites/42", gotPath)
		assert.Equal(t, item, gotItem)
	})

	t.Run("remove tolerates missing entries", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL)

		require.NoError(t, c.RemoveFavorite(context.Background(), "user-1", 42))
		require.NoError(t, c.RemoveWatchlist(context.Background(), "user-1", 42))
	})
}

func TestCalcBackoff(t *testing.T) {
	c := newTestClient(t, "http://example.invalid")

	t.Run("grows exponentially within jitter bounds", func(t *testing.T) {
		for attempt := 0; attempt < 4; attempt++ {
			backoff := c.calcBackoff(attempt)

			base := float64(baseBackoff) * pow(backoffFactor, attempt)
			low := time.Duration(base * (1 - jitterFraction))
			high := time.Duration(base * (1 + jitterFraction))

			assert.GreaterOrEqual(t, backoff, low, "attempt %d", attempt)
			assert.LessOrEqual(t, backoff, high, "attempt %d", attempt)
		}
	})

	t.Run("caps at max backoff plus jitter", func(t *testing.T) {
		backoff := c.calcBackoff(20)
		assert.LessOrEqual(t, backoff, time.Duration(float64(maxBackoff)*(1+jitterFraction)))
	})
}

func pow(base float64, exp int) float64 {
	out := 1.0
	for i := 0; i < exp; i++ {
		out *= base
	}

	return out
}
