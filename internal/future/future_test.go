package future

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteThenAwait(t *testing.T) {
	c := New[string]()
	require.True(t, c.Complete("hello"))

	got, err := c.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestAwaitThenComplete(t *testing.T) {
	c := New[int]()
	done := make(chan struct{})

	var got int
	var err error
	go func() {
		defer close(done)
		got, err = c.Await(context.Background())
	}()

	time.Sleep(10 * time.Millisecond)
	require.True(t, c.Complete(42))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("await did not return after completion")
	}
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestFirstResolutionWins(t *testing.T) {
	c := New[string]()
	require.True(t, c.Complete("first"))
	assert.False(t, c.Complete("second"))
	assert.False(t, c.Fail(errors.New("too late")))

	got, err := c.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	// Repeated awaits observe the cached outcome.
	got, err = c.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", got)
}

func TestFail(t *testing.T) {
	c := New[string]()
	boom := errors.New("boom")
	require.True(t, c.Fail(boom))

	got, err := c.Await(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Empty(t, got)
}

func TestAwaitContextDeadline(t *testing.T) {
	c := New[string]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Await(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	// A late completion must not block the writer even though nobody
	// will read the value anymore.
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Complete("late")
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("late completion blocked")
	}
}

func TestConcurrentResolvers(t *testing.T) {
	c := New[int]()

	var wg sync.WaitGroup
	wins := make(chan int, 10)
	for i := range 10 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if c.Complete(n) {
				wins <- n
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	var winners []int
	for n := range wins {
		winners = append(winners, n)
	}
	require.Len(t, winners, 1)

	got, err := c.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, winners[0], got)
}
