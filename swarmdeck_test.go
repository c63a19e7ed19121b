package swarmdeck

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmdeck/swarmdeck/core"
	"github.com/swarmdeck/swarmdeck/executor"
)

func echoScript(ctx context.Context, req core.SpawnRequest, sink core.EventSink) {
	_ = sink.OnDelta(req.WorkerID, "echo: ")
	_ = sink.OnDelta(req.WorkerID, req.Task)
	_ = sink.OnComplete(req.WorkerID, "echo: "+req.Task, core.Usage{InputTokens: 10, OutputTokens: 5}, []string{"main.go"})
}

func TestDeck_RunSync(t *testing.T) {
	mock := executor.NewMock(echoScript)
	deck := New(func(o *Options) {
		o.Executor = mock.Bind
	})

	session := deck.CreateSession("build the thing", "sonnet")
	worker, _, err := deck.RunSync(context.Background(), session.ID, "write main.go")
	require.NoError(t, err)

	assert.Equal(t, core.WorkerCompleted, worker.Status)
	assert.Equal(t, "echo: write main.go", worker.OutputBuffer)
	assert.Equal(t, 10, worker.InputTokens)
	assert.Equal(t, 5, worker.OutputTokens)
	assert.Greater(t, worker.CostUSD, 0.0)

	cost, err := deck.Cost(session.ID)
	require.NoError(t, err)
	assert.Equal(t, worker.CostUSD, cost)
}

func TestDeck_DefaultsAndSnapshots(t *testing.T) {
	deck := New()

	s1 := deck.CreateSession("first", "")
	s2 := deck.CreateSession("second", "opus")
	assert.Equal(t, core.ModelSonnet, s1.Model, "empty label falls back to the default tier")
	assert.Equal(t, core.ModelOpus, s2.Model)

	all := deck.Sessions()
	require.Len(t, all, 2)

	_, err := deck.Session("nope")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestDeck_ConflictsAcrossWorkers(t *testing.T) {
	mock := executor.NewMock(func(ctx context.Context, req core.SpawnRequest, sink core.EventSink) {
		_ = sink.OnComplete(req.WorkerID, "done", core.Usage{InputTokens: 1, OutputTokens: 1}, []string{"shared.go", req.Task + ".go"})
	})
	deck := New(func(o *Options) {
		o.Executor = mock.Bind
	})

	session := deck.CreateSession("split work", "haiku")
	_, err := deck.Spawn(context.Background(), session.ID, "alpha", "beta")
	require.NoError(t, err)

	conflicts, err := deck.Conflicts(session.ID)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "shared.go", conflicts[0].FilePath)
	assert.Len(t, conflicts[0].WorkerIDs, 2)
}

func TestDeck_PlanAndInboxFlow(t *testing.T) {
	deck := New()
	session := deck.CreateSession("plan it", "sonnet")
	workers, err := deck.Spawn(context.Background(), session.ID, "task")
	require.NoError(t, err)

	_, err = deck.ProposePlan(session.ID, "1. do\n2. verify")
	require.NoError(t, err)
	require.NoError(t, deck.ApprovePlan(session.ID))

	msgs, err := deck.Inbox().Read(session.ID, workers[0].ID, false)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, core.MessagePlanApproved, msgs[0].Type())
}
