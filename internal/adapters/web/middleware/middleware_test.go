package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newLimiter(limit int, window time.Duration) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 10, 5, 0, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(limit, window)
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiter_Allow(t *testing.T) {
	limiter, _ := newLimiter(3, time.Second)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("192.168.1.1"), "request %d", i+1)
	}
	assert.False(t, limiter.Allow("192.168.1.1"))
	assert.True(t, limiter.Allow("192.168.1.2"), "other keys are independent")
}

func TestRateLimiter_WindowExpiration(t *testing.T) {
	limiter, clock := newLimiter(2, 500*time.Millisecond)

	limiter.Allow("192.168.1.1")
	limiter.Allow("192.168.1.1")
	assert.False(t, limiter.Allow("192.168.1.1"))

	clock.advance(600 * time.Millisecond)
	assert.True(t, limiter.Allow("192.168.1.1"))
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter, clock := newLimiter(5, 100*time.Millisecond)

	limiter.Allow("192.168.1.1")
	limiter.Allow("192.168.1.2")
	limiter.Allow("192.168.1.3")
	assert.Len(t, limiter.requests, 3)

	clock.advance(150 * time.Millisecond)
	limiter.Allow("192.168.1.4")
	assert.Len(t, limiter.requests, 1)
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	limiter := NewRateLimiter(10, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 3; j++ {
				limiter.Allow("192.168.1.1")
			}
		}()
	}
	wg.Wait()

	assert.False(t, limiter.Allow("192.168.1.1"))
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter, _ := newLimiter(1, time.Minute)
	h := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/model/fit", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:5000"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:5001"), "keyed by host, not port")
	assert.Equal(t, http.StatusNoContent, call("10.0.0.2:5000"))
}

func TestBasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	h := BasicAuth("admin", string(hash))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name     string
		user     string
		password string
		setAuth  bool
		want     int
	}{
		{"valid", "admin", "s3cret", true, http.StatusOK},
		{"wrong password", "admin", "nope", true, http.StatusUnauthorized},
		{"wrong user", "root", "s3cret", true, http.StatusUnauthorized},
		{"missing header", "", "", false, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
			if tt.setAuth {
				req.SetBasicAuth(tt.user, tt.password)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, realm, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestBasicAuth_Disabled(t *testing.T) {
	h := BasicAuth("", "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
