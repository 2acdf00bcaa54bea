package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherKeepsPerKeyOrder(t *testing.T) {
	d := NewDispatcher(Options{Workers: 3, QueueSize: 128})

	var (
		mu  sync.Mutex
		got = map[int64][]int{}
	)
	for i := 0; i < 40; i++ {
		for _, key := range []int64{11, 12, 13, -7} {
			i, key := i, key
			require.NoError(t, d.Enqueue(context.Background(), key, "send.text", func() error {
				mu.Lock()
				got[key] = append(got[key], i)
				mu.Unlock()
				return nil
			}))
		}
	}
	d.Close()

	for key, seq := range got {
		require.Len(t, seq, 40, "key %d", key)
		for i := range seq {
			assert.Equal(t, i, seq[i], "key %d out of order", key)
		}
	}
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	calls := 0
	require.NoError(t, d.Enqueue(context.Background(), 1, "send.text", func() error {
		calls++
		if calls < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("refused")}
		}
		return nil
	}))
	d.Close()

	assert.Equal(t, 3, calls)
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcherCountsPermanentFailures(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 5, RetryBackoff: time.Millisecond})
	calls := 0
	require.NoError(t, d.Enqueue(context.Background(), 1, "send.text", func() error {
		calls++
		return errors.New("chat not found")
	}))
	d.Close()

	assert.Equal(t, 1, calls)
	assert.Equal(t, uint64(1), d.ErrorCount())
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	d.Close()
	err := d.Enqueue(context.Background(), 1, "send.text", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestDispatcherReportsFullQueue(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, d.Enqueue(context.Background(), 1, "block", func() error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, d.Enqueue(context.Background(), 1, "queued", func() error { return nil }))

	err := d.Enqueue(context.Background(), 1, "overflow", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
	d.Close()
}

func TestSanitizeErrorMessageRedactsToken(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123:AA-bb_cc/sendMessage": timeout`)
	assert.NotContains(t, sanitizeErrorMessage(err), "123:AA-bb_cc")
}
