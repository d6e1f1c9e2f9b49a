package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mindweld/forgeflow/pkg/models"
	"github.com/mindweld/forgeflow/pkg/protocol"
	"github.com/mindweld/forgeflow/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFactory registers a canned step behavior under any step name.
type stubFactory struct {
	id  string
	run func(ctx context.Context, input protocol.StepInput) (map[string]any, error)
}

func (f *stubFactory) Create(_ context.Context, _ map[string]any) (protocol.StepExecutor, error) {
	return &stubStep{name: models.StepName(f.id), run: f.run}, nil
}

func (f *stubFactory) ID() string          { return f.id }
func (f *stubFactory) Name() string        { return f.id }
func (f *stubFactory) Description() string { return "stub step" }
func (f *stubFactory) Schema() map[string]any {
	return map[string]any{"type": "object"}
}

type stubStep struct {
	name models.StepName
	run  func(ctx context.Context, input protocol.StepInput) (map[string]any, error)
}

func (s *stubStep) Name() models.StepName { return s.name }

func (s *stubStep) Run(ctx context.Context, input protocol.StepInput) (map[string]any, error) {
	return s.run(ctx, input)
}

func succeedWith(result map[string]any) func(context.Context, protocol.StepInput) (map[string]any, error) {
	return func(_ context.Context, _ protocol.StepInput) (map[string]any, error) {
		return result, nil
	}
}

func failWith(err error) func(context.Context, protocol.StepInput) (map[string]any, error) {
	return func(_ context.Context, _ protocol.StepInput) (map[string]any, error) {
		return nil, err
	}
}

func newTestOrchestrator(t *testing.T, factories ...*stubFactory) *Orchestrator {
	t.Helper()

	r := registry.NewRegistry(slog.Default())
	for _, factory := range factories {
		r.RegisterStep(factory)
	}

	o, err := NewOrchestrator(slog.Default(), r, nil, nil)
	require.NoError(t, err)

	return o
}

func allStepsSucceed(t *testing.T) *Orchestrator {
	t.Helper()

	return newTestOrchestrator(t,
		&stubFactory{id: "research", run: succeedWith(map[string]any{"result": "ok"})},
		&stubFactory{id: "architect", run: succeedWith(map[string]any{"architecture": "layered"})},
		&stubFactory{id: "implement", run: succeedWith(map[string]any{"implementation": "code"})},
		&stubFactory{id: "debug", run: succeedWith(map[string]any{"debug_analysis": "none", "solution": "n/a"})},
		&stubFactory{id: "memory_ingestion", run: succeedWith(map[string]any{"ingested": true})},
	)
}

func TestNewOrchestrator_RequiresRegistry(t *testing.T) {
	_, err := NewOrchestrator(slog.Default(), nil, nil, nil)
	assert.Error(t, err)
}

func TestExecute_ResearchWorkflowCompletes(t *testing.T) {
	o := allStepsSucceed(t)

	state, err := o.Execute(context.Background(), ExecuteRequest{
		WorkflowType:   models.WorkflowTypeResearch,
		InitialRequest: "test",
		UserID:         "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, state.Status)
	assert.Equal(t, []models.StepName{models.StepResearch, models.StepMemoryIngestion}, state.CompletedNodes)
	assert.Empty(t, state.FailedNodes)
	assert.Equal(t, map[string]any{"result": "ok"}, state.Results[models.StepResearch])
	require.NotNil(t, state.StartedAt)
	require.NotNil(t, state.CompletedAt)

	// Terminal executions are evicted from the live registry.
	_, err = o.GetExecutionStatus(state.ExecutionID)
	assert.ErrorIs(t, err, ErrExecutionNotFound)
}

func TestExecute_StopsOnFirstFailure(t *testing.T) {
	o := newTestOrchestrator(t,
		&stubFactory{id: "research", run: succeedWith(map[string]any{"result": "ok"})},
		&stubFactory{id: "architect", run: failWith(errors.New("provider down"))},
		&stubFactory{id: "memory_ingestion", run: succeedWith(map[string]any{"ingested": true})},
	)

	state, err := o.Execute(context.Background(), ExecuteRequest{
		WorkflowType:   models.WorkflowTypeArchitect,
		InitialRequest: "design it",
		UserID:         "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, state.Status)
	assert.Equal(t, []models.StepName{models.StepResearch}, state.CompletedNodes)
	assert.Equal(t, []models.StepName{models.StepArchitect}, state.FailedNodes)

	// The step after the failure never ran.
	assert.NotContains(t, state.Results, models.StepMemoryIngestion)
	assert.NotContains(t, state.CompletedNodes, models.StepMemoryIngestion)

	require.Len(t, state.Errors, 1)
	assert.Equal(t, models.StepArchitect, state.Errors[0].Node)
	assert.Contains(t, state.Errors[0].Error, "provider down")

	// Partial progress is preserved.
	assert.Equal(t, map[string]any{"result": "ok"}, state.Results[models.StepResearch])
}

func TestExecute_FailingFirstStepLeavesRestUnattempted(t *testing.T) {
	o := newTestOrchestrator(t,
		&stubFactory{id: "research", run: failWith(errors.New("boom"))},
		&stubFactory{id: "memory_ingestion", run: succeedWith(map[string]any{"ingested": true})},
	)

	state, err := o.Execute(context.Background(), ExecuteRequest{
		WorkflowType:   models.WorkflowTypeResearch,
		InitialRequest: "test",
		UserID:         "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, state.Status)
	assert.Empty(t, state.CompletedNodes)
	assert.Equal(t, []models.StepName{models.StepResearch}, state.FailedNodes)
	assert.Len(t, state.Errors, 1)
	assert.NotContains(t, state.Results, models.StepMemoryIngestion)
}

func TestExecute_UnknownStepIsSkipped(t *testing.T) {
	// Only memory_ingestion is registered; research is skipped with a warning.
	o := newTestOrchestrator(t,
		&stubFactory{id: "memory_ingestion", run: succeedWith(map[string]any{"ingested": true})},
	)

	state, err := o.Execute(context.Background(), ExecuteRequest{
		WorkflowType:   models.WorkflowTypeResearch,
		InitialRequest: "test",
		UserID:         "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, state.Status)
	assert.Equal(t, []models.StepName{models.StepMemoryIngestion}, state.CompletedNodes)
	assert.NotContains(t, state.Results, models.StepResearch)
}

func TestExecute_UnknownWorkflowTypeFallsBackToResearch(t *testing.T) {
	o := allStepsSucceed(t)

	state, err := o.Execute(context.Background(), ExecuteRequest{
		WorkflowType:   models.WorkflowType("quantum_refactor"),
		InitialRequest: "test",
		UserID:         "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, state.Status)
	assert.Equal(t, []models.StepName{models.StepResearch, models.StepMemoryIngestion}, state.CompletedNodes)
}

func TestExecute_CustomWorkflowUsesExplicitSteps(t *testing.T) {
	o := allStepsSucceed(t)

	state, err := o.Execute(context.Background(), ExecuteRequest{
		WorkflowType:   models.WorkflowTypeCustom,
		InitialRequest: "just debug",
		UserID:         "user-1",
		Steps:          []models.StepName{models.StepDebug},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, state.Status)
	assert.Equal(t, []models.StepName{models.StepDebug}, state.CompletedNodes)
}

func TestExecute_CustomWorkflowWithoutStepsCompletesEmpty(t *testing.T) {
	o := allStepsSucceed(t)

	state, err := o.Execute(context.Background(), ExecuteRequest{
		WorkflowType:   models.WorkflowTypeCustom,
		InitialRequest: "nothing to do",
		UserID:         "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, state.Status)
	assert.Empty(t, state.CompletedNodes)
	assert.Empty(t, state.Artifacts)
}

func TestExecute_ConcurrentExecutionsAreIndependent(t *testing.T) {
	release := make(chan struct{})
	started := make(chan string, 2)

	blockingStep := func(_ context.Context, input protocol.StepInput) (map[string]any, error) {
		started <- input.State.UserID
		<-release

		return map[string]any{"result": "ok"}, nil
	}

	o := newTestOrchestrator(t,
		&stubFactory{id: "research", run: blockingStep},
		&stubFactory{id: "memory_ingestion", run: succeedWith(map[string]any{"ingested": true})},
	)

	var wg sync.WaitGroup

	results := make(map[string]*models.ExecutionState, 2)

	var resultsMu sync.Mutex

	for _, userID := range []string{"user-1", "user-2"} {
		wg.Add(1)

		go func() {
			defer wg.Done()

			state, err := o.Execute(context.Background(), ExecuteRequest{
				WorkflowType:   models.WorkflowTypeResearch,
				InitialRequest: "test",
				UserID:         userID,
			})
			assert.NoError(t, err)

			resultsMu.Lock()
			results[userID] = state
			resultsMu.Unlock()
		}()
	}

	// Wait for both executions to be in flight, then check isolation.
	for range 2 {
		<-started
	}

	user1Active := o.ListActiveExecutions("user-1")
	require.Len(t, user1Active, 1)
	assert.Equal(t, "user-1", user1Active[0].UserID)

	user2Active := o.ListActiveExecutions("user-2")
	require.Len(t, user2Active, 1)

	close(release)
	wg.Wait()

	assert.Equal(t, models.ExecutionStatusCompleted, results["user-1"].Status)
	assert.Equal(t, models.ExecutionStatusCompleted, results["user-2"].Status)
	assert.NotEqual(t, results["user-1"].ExecutionID, results["user-2"].ExecutionID)
}

func TestCancelExecution_UnknownIDReturnsFalse(t *testing.T) {
	o := allStepsSucceed(t)

	assert.False(t, o.CancelExecution(context.Background(), "exec-unknown", "whatever"))
}

func TestCancelExecution_CancelsAndEvicts(t *testing.T) {
	release := make(chan struct{})
	started := make(chan string, 1)

	o := newTestOrchestrator(t,
		&stubFactory{id: "research", run: func(_ context.Context, input protocol.StepInput) (map[string]any, error) {
			started <- input.State.ExecutionID
			<-release

			return map[string]any{"result": "late"}, nil
		}},
		&stubFactory{id: "memory_ingestion", run: succeedWith(map[string]any{"ingested": true})},
	)

	done := make(chan *models.ExecutionState, 1)

	go func() {
		state, err := o.Execute(context.Background(), ExecuteRequest{
			WorkflowType:   models.WorkflowTypeResearch,
			InitialRequest: "test",
			UserID:         "user-1",
		})
		assert.NoError(t, err)
		done <- state
	}()

	executionID := <-started

	require.True(t, o.CancelExecution(context.Background(), executionID, "changed my mind"))

	// The record is gone from the registry; a second cancel finds nothing.
	assert.Empty(t, o.ListActiveExecutions("user-1"))
	assert.False(t, o.CancelExecution(context.Background(), executionID, "again"))

	// Let the in-flight step finish; its late result must be discarded.
	close(release)
	state := <-done

	assert.Equal(t, models.ExecutionStatusCancelled, state.Status)
	assert.Equal(t, "changed my mind", state.Metadata["cancellation_reason"])
	assert.Empty(t, state.CompletedNodes)
	assert.NotContains(t, state.Results, models.StepResearch)

	// memory_ingestion never started.
	assert.NotContains(t, state.Results, models.StepMemoryIngestion)
}

func TestRetryExecution_ResumesFromFailedStep(t *testing.T) {
	var attempts int

	var attemptsMu sync.Mutex

	o := newTestOrchestrator(t,
		&stubFactory{id: "research", run: succeedWith(map[string]any{"result": "ok"})},
		&stubFactory{id: "architect", run: func(_ context.Context, _ protocol.StepInput) (map[string]any, error) {
			attemptsMu.Lock()
			defer attemptsMu.Unlock()

			attempts++
			if attempts == 1 {
				return nil, errors.New("transient provider error")
			}

			return map[string]any{"architecture": "layered"}, nil
		}},
		&stubFactory{id: "memory_ingestion", run: succeedWith(map[string]any{"ingested": true})},
	)

	state, err := o.Execute(context.Background(), ExecuteRequest{
		WorkflowType:   models.WorkflowTypeArchitect,
		InitialRequest: "design it",
		UserID:         "user-1",
	})
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusFailed, state.Status)

	// The failed execution stays registered while retry budget remains.
	_, err = o.GetExecutionStatus(state.ExecutionID)
	require.NoError(t, err)

	retried, err := o.RetryExecution(context.Background(), state.ExecutionID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, retried.Status)
	assert.Equal(t, 1, retried.RetryCount)

	// Research ran once; only the failed tail was re-driven.
	assert.Equal(t, []models.StepName{models.StepResearch, models.StepArchitect, models.StepMemoryIngestion}, retried.CompletedNodes)
	assert.Empty(t, retried.FailedNodes)

	// The first failure stays on the audit ledger.
	assert.Len(t, retried.Errors, 1)
}

func TestRetryExecution_ExhaustsBudgetAndEvicts(t *testing.T) {
	o := newTestOrchestrator(t,
		&stubFactory{id: "research", run: failWith(errors.New("always broken"))},
		&stubFactory{id: "memory_ingestion", run: succeedWith(map[string]any{"ingested": true})},
	)

	state, err := o.Execute(context.Background(), ExecuteRequest{
		WorkflowType:   models.WorkflowTypeResearch,
		InitialRequest: "test",
		UserID:         "user-1",
	})
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusFailed, state.Status)

	for range models.DefaultMaxRetries {
		retried, err := o.RetryExecution(context.Background(), state.ExecutionID)
		require.NoError(t, err)
		assert.Equal(t, models.ExecutionStatusFailed, retried.Status)
	}

	// Budget exhausted: the record has been evicted.
	_, err = o.RetryExecution(context.Background(), state.ExecutionID)
	assert.ErrorIs(t, err, ErrExecutionNotFound)
}

func TestRetryExecution_UnknownID(t *testing.T) {
	o := allStepsSucceed(t)

	_, err := o.RetryExecution(context.Background(), "exec-unknown")
	assert.ErrorIs(t, err, ErrExecutionNotFound)
}

func TestGetExecutionStatus_SnapshotWhileRunning(t *testing.T) {
	release := make(chan struct{})
	started := make(chan string, 1)

	o := newTestOrchestrator(t,
		&stubFactory{id: "research", run: func(_ context.Context, input protocol.StepInput) (map[string]any, error) {
			started <- input.State.ExecutionID
			<-release

			return map[string]any{"result": "ok"}, nil
		}},
		&stubFactory{id: "memory_ingestion", run: succeedWith(map[string]any{"ingested": true})},
	)

	done := make(chan struct{})

	go func() {
		defer close(done)

		_, err := o.Execute(context.Background(), ExecuteRequest{
			WorkflowType:   models.WorkflowTypeResearch,
			InitialRequest: "test",
			UserID:         "user-1",
		})
		assert.NoError(t, err)
	}()

	executionID := <-started

	snapshot, err := o.GetExecutionStatus(executionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, snapshot.Status)
	assert.Equal(t, models.StepResearch, snapshot.CurrentNode)

	close(release)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("execution did not finish")
	}
}
