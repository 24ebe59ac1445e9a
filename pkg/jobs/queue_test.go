package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mail struct{ To string }

func TestQueueRetriesThenGivesUp(t *testing.T) {
	var calls atomic.Int32
	gaveUp := make(chan Job[mail], 1)
	q := New("notifications", func(context.Context, Job[mail]) error {
		calls.Add(1)
		return errors.New("smtp down")
	}, Config[mail]{
		Workers:    1,
		MaxRetries: 2,
		RetryDelay: 5 * time.Millisecond,
		OnGiveUp:   func(j Job[mail], _ error) { gaveUp <- j },
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Submit(Job[mail]{ID: "n-1", Payload: mail{To: "budi@metrologi.go.id"}}))

	select {
	case job := <-gaveUp:
		assert.Equal(t, "n-1", job.ID)
		assert.Equal(t, 3, job.Attempt)
		assert.Equal(t, "budi@metrologi.go.id", job.Payload.To)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not abandoned")
	}
	assert.Equal(t, int32(3), calls.Load())

	st := q.Stats()
	assert.Equal(t, int64(1), st.Submitted)
	assert.Equal(t, int64(2), st.Retried)
	assert.Equal(t, int64(1), st.Abandoned)
}

func TestQueueCountsSuccess(t *testing.T) {
	done := make(chan struct{})
	q := New("ok", func(context.Context, Job[int]) error {
		close(done)
		return nil
	}, Config[int]{})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Submit(Job[int]{ID: "a", Payload: 1}))
	<-done
	assert.Eventually(t, func() bool { return q.Stats().Succeeded == 1 }, time.Second, 5*time.Millisecond)
}

func TestSubmitRequiresRunningQueue(t *testing.T) {
	q := New("idle", func(context.Context, Job[int]) error { return nil }, Config[int]{})
	assert.ErrorIs(t, q.Submit(Job[int]{ID: "x"}), ErrQueueStopped)

	q.Start(context.Background())
	q.Stop()
	assert.ErrorIs(t, q.Submit(Job[int]{ID: "y"}), ErrQueueStopped)
}

func TestSubmitReportsFullBuffer(t *testing.T) {
	block := make(chan struct{})
	q := New("slow", func(ctx context.Context, _ Job[int]) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	}, Config[int]{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer q.Stop()
	defer close(block)

	var err error
	for i := 0; i < 3 && err == nil; i++ {
		err = q.Submit(Job[int]{ID: "b"})
	}
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	q := New("b", func(context.Context, Job[int]) error { return nil }, Config[int]{RetryDelay: 20 * time.Second})
	assert.Equal(t, 20*time.Second, q.backoff(1))
	assert.Equal(t, 40*time.Second, q.backoff(2))
	assert.Equal(t, maxBackoff, q.backoff(5))
}
