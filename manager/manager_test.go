package manager

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmdeck/swarmdeck/core"
	"github.com/swarmdeck/swarmdeck/executor"
)

func newTestManager(t *testing.T, optFns ...func(o *Options)) *Manager {
	t.Helper()
	return New(optFns...)
}

// spawnOne creates a session with a single pending worker and returns both.
func spawnOne(t *testing.T, m *Manager) (*core.Session, *core.Worker) {
	t.Helper()
	session := m.Create("build the thing", "sonnet")
	workers, err := m.Spawn(context.Background(), session.ID, "subtask")
	require.NoError(t, err)
	require.Len(t, workers, 1)
	return session, workers[0]
}

func TestCreate(t *testing.T) {
	m := newTestManager(t)

	session := m.Create("prompt", "claude-3-opus-20240229")

	assert.NotEmpty(t, session.ID)
	assert.Equal(t, core.ModelOpus, session.Model)
	assert.Equal(t, core.SessionPending, session.Status())
	assert.Empty(t, session.Workers)
	assert.Zero(t, session.TotalCost)
}

func TestCreate_EmptyLabelUsesDefaultModel(t *testing.T) {
	m := newTestManager(t, func(o *Options) { o.DefaultModel = core.ModelHaiku })

	session := m.Create("prompt", "")
	assert.Equal(t, core.ModelHaiku, session.Model)
}

func TestGet_NotFound(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Get("missing")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestSpawn_RegistersWorkersInOrder(t *testing.T) {
	mock := executor.NewMock(nil)
	m := newTestManager(t, func(o *Options) { o.Executor = mock.Bind })
	session := m.Create("prompt", "sonnet")

	workers, err := m.Spawn(context.Background(), session.ID, "first", "second", "third")
	require.NoError(t, err)
	require.Len(t, workers, 3)

	got, err := m.Get(session.ID)
	require.NoError(t, err)
	require.Len(t, got.Workers, 3)
	assert.Equal(t, "first", got.Workers[0].Task)
	assert.Equal(t, "third", got.Workers[2].Task)
	for _, w := range got.Workers {
		assert.Equal(t, core.WorkerPending, w.Status)
		assert.Equal(t, core.ModelSonnet, w.Model)
	}

	// The executor saw the same ids the manager registered.
	spawned := mock.Spawned()
	require.Len(t, spawned, 3)
	assert.Equal(t, got.Workers[0].ID, spawned[0].WorkerID)

	// Every worker has an inbox mailbox from the moment it is spawned.
	known, err := m.Inbox().Workers(session.ID)
	require.NoError(t, err)
	assert.Len(t, known, 3)
}

func TestSpawn_RespectsWorkerLimit(t *testing.T) {
	m := newTestManager(t, func(o *Options) { o.MaxConcurrentWorkers = 2 })
	session := m.Create("prompt", "sonnet")

	workers, err := m.Spawn(context.Background(), session.ID, "a", "b", "c")
	require.Error(t, err)
	assert.Len(t, workers, 2, "workers under the cap still spawn")
}

func TestDeltaStream_BufferIsConcatenation(t *testing.T) {
	m := newTestManager(t)
	_, worker := spawnOne(t, m)

	for _, d := range []string{"alpha ", "beta ", "gamma"} {
		require.NoError(t, m.OnDelta(worker.ID, d))
	}

	got, err := m.Get(worker.SessionID)
	require.NoError(t, err)
	w := got.Worker(worker.ID)
	assert.Equal(t, "alpha beta gamma", w.OutputBuffer)
	assert.Equal(t, core.WorkerRunning, w.Status)
	assert.Equal(t, core.SessionRunning, got.Status())
}

func TestOnComplete_AggregatesTotals(t *testing.T) {
	m := newTestManager(t)
	session := m.Create("prompt", "sonnet")
	workers, err := m.Spawn(context.Background(), session.ID, "a", "b")
	require.NoError(t, err)

	require.NoError(t, m.OnComplete(workers[0].ID, "out-a",
		core.Usage{InputTokens: 1000, OutputTokens: 500}, []string{"a.txt"}))
	require.NoError(t, m.OnComplete(workers[1].ID, "out-b",
		core.Usage{InputTokens: 2000, OutputTokens: 100}, nil))

	got, err := m.Get(session.ID)
	require.NoError(t, err)
	assert.Equal(t, 3000, got.TotalInputTokens)
	assert.Equal(t, 600, got.TotalOutputTokens)
	assert.Equal(t, core.SessionCompleted, got.Status())
	require.NoError(t, got.CheckTotals())

	cost, err := m.Cost(session.ID)
	require.NoError(t, err)
	assert.Equal(t, got.TotalCost, cost)
	assert.Greater(t, cost, 0.0, "default pricing table prices sonnet usage")
}

func TestOnError_SurfacesAsWorkerState(t *testing.T) {
	m := newTestManager(t)
	session, worker := spawnOne(t, m)

	require.NoError(t, m.OnError(worker.ID, "process exited 1"))

	got, err := m.Get(session.ID)
	require.NoError(t, err)
	w := got.Worker(worker.ID)
	assert.Equal(t, core.WorkerFailed, w.Status)
	assert.Equal(t, "process exited 1", w.ErrorMessage)
	assert.Equal(t, core.SessionFailed, got.Status())
}

func TestSink_UnknownWorker(t *testing.T) {
	m := newTestManager(t)

	require.ErrorIs(t, m.OnDelta("nope", "x"), core.ErrNotFound)
	require.ErrorIs(t, m.OnComplete("nope", "x", core.Usage{}, nil), core.ErrNotFound)
	require.ErrorIs(t, m.OnError("nope", "x"), core.ErrNotFound)
}

func TestCancelWorker_IdempotentAndSignalsExecutor(t *testing.T) {
	mock := executor.NewMock(nil)
	m := newTestManager(t, func(o *Options) { o.Executor = mock.Bind })
	session, worker := spawnOne(t, m)

	require.NoError(t, m.CancelWorker(worker.ID))
	require.NoError(t, m.CancelWorker(worker.ID), "second cancel is a no-op success")

	got, err := m.Get(session.ID)
	require.NoError(t, err)
	assert.Equal(t, core.WorkerCancelled, got.Worker(worker.ID).Status)
	assert.Equal(t, core.SessionCancelled, got.Status())

	// The terminate signal is fire-and-forget; wait for it without racing.
	assert.Eventually(t, func() bool {
		terminated := mock.Terminated()
		return len(terminated) == 1 && terminated[0] == worker.ID
	}, testWait, testTick)
}

func TestCancelWorker_NotFound(t *testing.T) {
	m := newTestManager(t)
	require.ErrorIs(t, m.CancelWorker("missing"), core.ErrNotFound)
}

func TestRetryWorker(t *testing.T) {
	mock := executor.NewMock(nil)
	m := newTestManager(t, func(o *Options) { o.Executor = mock.Bind })
	session, worker := spawnOne(t, m)

	// Fail the first attempt with some usage on the books.
	require.NoError(t, m.OnDelta(worker.ID, "partial"))
	require.NoError(t, m.OnError(worker.ID, "transient"))

	retried, err := m.RetryWorker(context.Background(), worker.ID)
	require.NoError(t, err)
	assert.Equal(t, worker.ID, retried.ID, "retry keeps the worker id")
	assert.Equal(t, core.WorkerPending, retried.Status)
	assert.Empty(t, retried.ErrorMessage)

	// The executor received a fresh spawn for the same worker.
	spawned := mock.Spawned()
	require.Len(t, spawned, 2)
	assert.Equal(t, worker.ID, spawned[1].WorkerID)

	// Second attempt completes; totals accumulate and stay consistent.
	require.NoError(t, m.OnComplete(worker.ID, "done", core.Usage{InputTokens: 10, OutputTokens: 5}, nil))
	got, err := m.Get(session.ID)
	require.NoError(t, err)
	require.NoError(t, got.CheckTotals())
	assert.Equal(t, core.SessionCompleted, got.Status())
}

func TestRetryWorker_InvalidStates(t *testing.T) {
	m := newTestManager(t)
	_, worker := spawnOne(t, m)

	// Pending worker: not retryable.
	_, err := m.RetryWorker(context.Background(), worker.ID)
	require.ErrorIs(t, err, core.ErrInvalidState)

	// Completed worker: not retryable.
	require.NoError(t, m.OnComplete(worker.ID, "done", core.Usage{}, nil))
	_, err = m.RetryWorker(context.Background(), worker.ID)
	require.ErrorIs(t, err, core.ErrInvalidState)

	// Cancelled worker: not retryable.
	m2 := newTestManager(t)
	_, w2 := spawnOne(t, m2)
	require.NoError(t, m2.CancelWorker(w2.ID))
	_, err = m2.RetryWorker(context.Background(), w2.ID)
	require.ErrorIs(t, err, core.ErrInvalidState)

	_, err = m.RetryWorker(context.Background(), "missing")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestConflicts(t *testing.T) {
	m := newTestManager(t)
	session := m.Create("prompt", "sonnet")
	workers, err := m.Spawn(context.Background(), session.ID, "w1", "w2", "w3")
	require.NoError(t, err)

	require.NoError(t, m.OnComplete(workers[0].ID, "", core.Usage{}, []string{"a.txt", "b.txt"}))
	require.NoError(t, m.OnComplete(workers[1].ID, "", core.Usage{}, []string{"b.txt"}))
	require.NoError(t, m.OnComplete(workers[2].ID, "", core.Usage{}, []string{"c.txt"}))

	conflicts, err := m.Conflicts(session.ID)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "b.txt", conflicts[0].FilePath)
	assert.ElementsMatch(t, []string{workers[0].ID, workers[1].ID}, conflicts[0].WorkerIDs)

	// Conflict queries never fail for a valid but empty session.
	empty := m.Create("another", "sonnet")
	conflicts, err = m.Conflicts(empty.ID)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestConcurrentCompletionsKeepTotalsConsistent(t *testing.T) {
	m := newTestManager(t)
	session := m.Create("prompt", "haiku")

	const n = 32
	tasks := make([]string, n)
	for i := range tasks {
		tasks[i] = "task"
	}
	workers, err := m.Spawn(context.Background(), session.ID, tasks...)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			assert.NoError(t, m.OnDelta(id, "chunk"))
			assert.NoError(t, m.OnComplete(id, "done", core.Usage{InputTokens: 100, OutputTokens: 10}, nil))
		}(w.ID)
	}
	wg.Wait()

	got, err := m.Get(session.ID)
	require.NoError(t, err)
	assert.Equal(t, n*100, got.TotalInputTokens)
	assert.Equal(t, n*10, got.TotalOutputTokens)
	require.NoError(t, got.CheckTotals())
	assert.Equal(t, core.SessionCompleted, got.Status())
}

func TestList_OrderedSnapshots(t *testing.T) {
	m := newTestManager(t)
	s1 := m.Create("first", "sonnet")
	s2 := m.Create("second", "opus")

	sessions := m.List()
	require.Len(t, sessions, 2)
	ids := []string{sessions[0].ID, sessions[1].ID}
	assert.ElementsMatch(t, []string{s1.ID, s2.ID}, ids)

	// Snapshots reflect later mutations only through fresh reads.
	_, err := m.Spawn(context.Background(), s2.ID, "task")
	require.NoError(t, err)
	assert.Empty(t, sessions[1].Workers, "old snapshot stays frozen")
	fresh, err := m.Get(s2.ID)
	require.NoError(t, err)
	assert.Len(t, fresh.Workers, 1)
}

func TestScriptedExecutorEndToEnd(t *testing.T) {
	script := func(_ context.Context, req core.SpawnRequest, sink core.EventSink) {
		for _, d := range []string{"thinking... ", "done."} {
			if err := sink.OnDelta(req.WorkerID, d); err != nil {
				return
			}
		}
		_ = sink.OnComplete(req.WorkerID, "thinking... done.",
			core.Usage{InputTokens: 42, OutputTokens: 7}, []string{"main.go"})
	}
	mock := executor.NewMock(script)
	m := newTestManager(t, func(o *Options) { o.Executor = mock.Bind })

	session := m.Create("prompt", "sonnet")
	workers, err := m.Spawn(context.Background(), session.ID, "implement feature")
	require.NoError(t, err)
	require.Len(t, workers, 1)
	assert.Equal(t, core.WorkerCompleted, workers[0].Status,
		"synchronous script finishes before Spawn returns its snapshot")

	got, err := m.Get(session.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SessionCompleted, got.Status())
	assert.Equal(t, 42, got.TotalInputTokens)
	assert.Equal(t, "thinking... done.", got.Worker(workers[0].ID).OutputBuffer)
	require.NoError(t, got.CheckTotals())
}
