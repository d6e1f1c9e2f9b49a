package models

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxRetries is the number of times a failed execution may be reopened.
const DefaultMaxRetries = 2

// ExecutionError is one entry in the append-only error ledger of an execution.
type ExecutionError struct {
	Node      StepName  `json:"node"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// AICall records a single round trip to the AI completion provider.
type AICall struct {
	Model        string    `json:"model"`
	Operation    string    `json:"operation"`
	TokensInput  int       `json:"tokens_input"`
	TokensOutput int       `json:"tokens_output"`
	Cost         float64   `json:"cost"`
	Timestamp    time.Time `json:"timestamp"`
}

// TokenCount accumulates input/output token totals for one model.
type TokenCount struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// Artifact is a named side-output published by a step, distinct from its
// primary result.
type Artifact struct {
	Content   any            `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ExecutionState is the record of one pipeline run. It is mutated only
// through its methods; every method takes the internal lock so that a
// cancellation racing a step completion resolves deterministically.
type ExecutionState struct {
	mu sync.Mutex

	WorkflowID     string                `json:"workflow_id"`
	ExecutionID    string                `json:"execution_id"`
	WorkflowType   WorkflowType          `json:"workflow_type"`
	Status         ExecutionStatus       `json:"status"`
	UserID         string                `json:"user_id"`
	ProjectID      string                `json:"project_id,omitempty"`
	InitialRequest string                `json:"initial_request"`
	Context        map[string]any        `json:"context,omitempty"`
	Parameters     map[string]any        `json:"parameters,omitempty"`
	CurrentNode    StepName              `json:"current_node,omitempty"`
	CompletedNodes []StepName            `json:"completed_nodes"`
	FailedNodes    []StepName            `json:"failed_nodes"`
	Results        map[StepName]any      `json:"results"`
	Artifacts      map[string]Artifact   `json:"artifacts,omitempty"`
	Errors         []ExecutionError      `json:"errors"`
	RetryCount     int                   `json:"retry_count"`
	MaxRetries     int                   `json:"max_retries"`
	AICalls        []AICall              `json:"ai_calls"`
	TotalCost      float64               `json:"total_cost"`
	TokenUsage     map[string]TokenCount `json:"token_usage"`
	CreatedAt      time.Time             `json:"created_at"`
	StartedAt      *time.Time            `json:"started_at,omitempty"`
	CompletedAt    *time.Time            `json:"completed_at,omitempty"`
	LastActivity   time.Time             `json:"last_activity"`
	Metadata       map[string]any        `json:"metadata,omitempty"`
}

// NewExecutionState creates a pending execution for the given run request.
func NewExecutionState(workflowType WorkflowType, initialRequest, userID, projectID string, parameters, context map[string]any) *ExecutionState {
	now := time.Now().UTC()

	if parameters == nil {
		parameters = make(map[string]any)
	}

	if context == nil {
		context = make(map[string]any)
	}

	return &ExecutionState{
		WorkflowID:     uuid.New().String(),
		ExecutionID:    "exec-" + uuid.New().String(),
		WorkflowType:   workflowType,
		Status:         ExecutionStatusPending,
		UserID:         userID,
		ProjectID:      projectID,
		InitialRequest: initialRequest,
		Context:        context,
		Parameters:     parameters,
		CompletedNodes: []StepName{},
		FailedNodes:    []StepName{},
		Results:        make(map[StepName]any),
		Artifacts:      make(map[string]Artifact),
		Errors:         []ExecutionError{},
		MaxRetries:     DefaultMaxRetries,
		AICalls:        []AICall{},
		TokenUsage:     make(map[string]TokenCount),
		CreatedAt:      now,
		LastActivity:   now,
		Metadata:       make(map[string]any),
	}
}

// Start transitions a pending execution to running and stamps started_at.
func (e *ExecutionState) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.Status.IsTerminal() {
		return
	}

	now := time.Now().UTC()
	e.Status = ExecutionStatusRunning
	e.StartedAt = &now
	e.LastActivity = now
}

// MarkNodeStarted records that the named step began executing. It reports
// false when the execution is already terminal, in which case the caller
// must not run the step.
func (e *ExecutionState) MarkNodeStarted(name StepName) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.Status.IsTerminal() {
		return false
	}

	e.Status = ExecutionStatusRunning
	e.CurrentNode = name
	e.LastActivity = time.Now().UTC()

	return true
}

// MarkNodeCompleted records a successful step. A step previously in the
// failed set moves to the completed set. Late results arriving after the
// execution reached a terminal status are discarded (reported as false).
// Overall completion is the orchestrator's call, not this method's.
func (e *ExecutionState) MarkNodeCompleted(name StepName, result any) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.Status.IsTerminal() {
		return false
	}

	e.FailedNodes = removeNode(e.FailedNodes, name)
	if !slices.Contains(e.CompletedNodes, name) {
		e.CompletedNodes = append(e.CompletedNodes, name)
	}

	e.Results[name] = result
	e.CurrentNode = ""
	e.LastActivity = time.Now().UTC()

	return true
}

// MarkNodeFailed records a failed step, appends to the error ledger and
// flips the execution to failed. Discarded after a terminal status.
func (e *ExecutionState) MarkNodeFailed(name StepName, stepErr error) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.Status.IsTerminal() {
		return false
	}

	e.CompletedNodes = removeNode(e.CompletedNodes, name)
	if !slices.Contains(e.FailedNodes, name) {
		e.FailedNodes = append(e.FailedNodes, name)
	}

	e.Errors = append(e.Errors, ExecutionError{
		Node:      name,
		Error:     stepErr.Error(),
		Timestamp: time.Now().UTC(),
	})
	e.Status = ExecutionStatusFailed
	e.CurrentNode = ""
	e.LastActivity = time.Now().UTC()

	return true
}

// CanRetry reports whether a failed execution may be reopened.
func (e *ExecutionState) CanRetry() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.Status == ExecutionStatusFailed && e.RetryCount < e.MaxRetries
}

// BeginRetry reopens a failed execution (failed -> running) and consumes one
// retry. It reports false when no retry budget remains or the execution is
// not in the failed state.
func (e *ExecutionState) BeginRetry() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.Status != ExecutionStatusFailed || e.RetryCount >= e.MaxRetries {
		return false
	}

	e.RetryCount++
	e.Status = ExecutionStatusRunning
	e.CompletedAt = nil
	e.LastActivity = time.Now().UTC()

	return true
}

// Finish applies the orchestrator's terminal verdict. The first terminal
// status wins: finishing an already cancelled execution is a no-op.
func (e *ExecutionState) Finish(status ExecutionStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.Status.IsTerminal() {
		return
	}

	now := time.Now().UTC()
	e.Status = status
	e.CurrentNode = ""
	e.CompletedAt = &now
	e.LastActivity = now
}

// Cancel forces the execution into the cancelled state, recording the reason
// in metadata. Unlike Finish it overwrites terminal statuses too, matching
// the cancel-always-wins contract of the cancellation API.
func (e *ExecutionState) Cancel(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	e.Status = ExecutionStatusCancelled
	e.CurrentNode = ""
	e.CompletedAt = &now
	e.LastActivity = now

	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}

	e.Metadata["cancellation_reason"] = reason
}

// RecordAICall appends one provider round trip to the cost ledger and keeps
// the running totals in sync. The ledger is audit data: a call is recorded
// even when its step result is later discarded, because the spend happened.
func (e *ExecutionState) RecordAICall(call AICall) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if call.Timestamp.IsZero() {
		call.Timestamp = time.Now().UTC()
	}

	e.AICalls = append(e.AICalls, call)
	e.TotalCost += call.Cost

	usage := e.TokenUsage[call.Model]
	usage.Input += call.TokensInput
	usage.Output += call.TokensOutput
	e.TokenUsage[call.Model] = usage

	e.LastActivity = time.Now().UTC()
}

// AddArtifact publishes a named side-output of a step.
func (e *ExecutionState) AddArtifact(key string, content any, metadata map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Artifacts[key] = Artifact{
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	e.LastActivity = time.Now().UTC()
}

// Progress returns the completion percentage over attempted steps, or 0 when
// nothing has been attempted yet.
func (e *ExecutionState) Progress() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.progressLocked()
}

func (e *ExecutionState) progressLocked() float64 {
	attempted := len(e.CompletedNodes) + len(e.FailedNodes)
	if attempted == 0 {
		return 0
	}

	return 100 * float64(len(e.CompletedNodes)) / float64(attempted)
}

// CurrentStatus returns the status under the lock.
func (e *ExecutionState) CurrentStatus() ExecutionStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.Status
}

// ResultFor returns the stored result of a completed step.
func (e *ExecutionState) ResultFor(name StepName) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result, ok := e.Results[name]

	return result, ok
}

// PendingSteps returns the tail of the given sequence that has not completed
// yet, preserving order. Used when a failed execution resumes.
func (e *ExecutionState) PendingSteps(sequence []StepName) []StepName {
	e.mu.Lock()
	defer e.mu.Unlock()

	pending := make([]StepName, 0, len(sequence))
	for _, name := range sequence {
		if !slices.Contains(e.CompletedNodes, name) {
			pending = append(pending, name)
		}
	}

	return pending
}

// Snapshot returns a deep copy safe to hand to observers while the owning
// goroutine keeps mutating the live record.
func (e *ExecutionState) Snapshot() *ExecutionState {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot := &ExecutionState{
		WorkflowID:     e.WorkflowID,
		ExecutionID:    e.ExecutionID,
		WorkflowType:   e.WorkflowType,
		Status:         e.Status,
		UserID:         e.UserID,
		ProjectID:      e.ProjectID,
		InitialRequest: e.InitialRequest,
		Context:        copyMap(e.Context),
		Parameters:     copyMap(e.Parameters),
		CurrentNode:    e.CurrentNode,
		CompletedNodes: slices.Clone(e.CompletedNodes),
		FailedNodes:    slices.Clone(e.FailedNodes),
		Results:        make(map[StepName]any, len(e.Results)),
		Artifacts:      make(map[string]Artifact, len(e.Artifacts)),
		Errors:         slices.Clone(e.Errors),
		RetryCount:     e.RetryCount,
		MaxRetries:     e.MaxRetries,
		AICalls:        slices.Clone(e.AICalls),
		TotalCost:      e.TotalCost,
		TokenUsage:     make(map[string]TokenCount, len(e.TokenUsage)),
		CreatedAt:      e.CreatedAt,
		LastActivity:   e.LastActivity,
		Metadata:       copyMap(e.Metadata),
	}

	for name, result := range e.Results {
		snapshot.Results[name] = result
	}

	for key, artifact := range e.Artifacts {
		snapshot.Artifacts[key] = artifact
	}

	for model, usage := range e.TokenUsage {
		snapshot.TokenUsage[model] = usage
	}

	if e.StartedAt != nil {
		startedAt := *e.StartedAt
		snapshot.StartedAt = &startedAt
	}

	if e.CompletedAt != nil {
		completedAt := *e.CompletedAt
		snapshot.CompletedAt = &completedAt
	}

	return snapshot
}

func removeNode(nodes []StepName, name StepName) []StepName {
	return slices.DeleteFunc(nodes, func(n StepName) bool { return n == name })
}

func copyMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}

	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}

	return dst
}
