package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/frontdesk/internal/ports/secondary"
)

func TestConsole_Deliver(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	require.NoError(t, c.Deliver(context.Background(), "room-7", "Good news!"))
	assert.Contains(t, buf.String(), "room-7")
	assert.Contains(t, buf.String(), "Good news!")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Deliver(ctx, "room-7", "late"), context.Canceled)
}

func TestWebhook_Deliver(t *testing.T) {
	var got speakRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	require.NoError(t, NewWebhook(srv.URL).Deliver(context.Background(), "room-7", "Good news!"))
	assert.Equal(t, speakRequest{CallerID: "room-7", Text: "Good news!"}, got)
}

func TestWebhook_DeliverErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "caller hung up", http.StatusGone)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL).Deliver(context.Background(), "room-7", "Good news!")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 410")
	assert.Contains(t, err.Error(), "caller hung up")
}

func TestWebhook_DeliverHonorsDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := NewWebhook(srv.URL).Deliver(ctx, "room-7", "Good news!")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

type flakyChannel struct {
	calls int
	err   error
}

func (f *flakyChannel) Deliver(ctx context.Context, callerID, text string) error {
	f.calls++
	return f.err
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyChannel{err: errors.New("bridge down")}
	b := NewBreaker(inner, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := b.Deliver(ctx, "room-7", "hello")
		require.Error(t, err)
		assert.False(t, errors.Is(err, gobreaker.ErrOpenState))
		assert.False(t, errors.Is(err, secondary.ErrChannelUnavailable), "real failures must not read as refusals")
	}
	assert.Equal(t, "open", b.State())

	err := b.Deliver(ctx, "room-7", "hello")
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState), "got %v", err)
	assert.True(t, errors.Is(err, secondary.ErrChannelUnavailable), "got %v", err)
	assert.Equal(t, 3, inner.calls, "open breaker must not call through")
}

func TestBreaker_PassesSuccess(t *testing.T) {
	inner := &flakyChannel{}
	b := NewBreaker(inner, time.Minute, nil)

	require.NoError(t, b.Deliver(context.Background(), "room-7", "hello"))
	assert.Equal(t, "closed", b.State())
	assert.True(t, strings.EqualFold(b.State(), gobreaker.StateClosed.String()))
}
