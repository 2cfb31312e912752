package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := newJobQueue()

	require.NoError(t, q.Push(&Job{ID: "a"}))
	require.NoError(t, q.Push(&Job{ID: "b"}))
	assert.Equal(t, 2, q.Size())

	job, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", job.ID)

	job, err = q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", job.ID)
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := newJobQueue()

	got := make(chan *Job, 1)
	go func() {
		job, err := q.Pop(context.Background())
		if err == nil {
			got <- job
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Push(&Job{ID: "late"}))

	select {
	case job := <-got:
		assert.Equal(t, "late", job.ID)
	case <-time.After(time.Second):
		t.Fatal("pop did not wake on push")
	}
}

func TestQueuePopRespectsCancellation(t *testing.T) {
	q := newJobQueue()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueuePopCancellationUnderLoad(t *testing.T) {
	q := newJobQueue()

	// Repeated cancelled pops on an empty queue must neither crash nor
	// leak a waiter holding the queue mutex.
	for i := 0; i < 500; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		_, err := q.Pop(ctx)
		cancel()
		require.ErrorIs(t, err, context.DeadlineExceeded)
	}

	require.NoError(t, q.Push(&Job{ID: "after"}))

	job, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "after", job.ID)
}

func TestQueueClose(t *testing.T) {
	q := newJobQueue()
	q.Close()

	assert.ErrorIs(t, q.Push(&Job{ID: "x"}), ErrQueueClosed)

	_, err := q.Pop(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestManagerTracksJobs(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	job, err := m.Create("books_toscrape", 50, true)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, StatusPending, job.Status)

	loaded, ok := m.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, job.ID, loaded.ID)

	_, ok = m.Get("missing")
	assert.False(t, ok)

	stats := m.GetStats()
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Pending)

	assert.Len(t, m.List(), 1)
}
