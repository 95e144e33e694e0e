// Package models defines the shared data contracts for the Concierge
// request-orchestration core: intents, routing decisions, plans, action
// results, and the lifecycle report every request terminates in.
package models

import (
	"time"
)

// ── Execution Modes ─────────────────────────────────────────

// Mode is the assistant execution mode that governs routing.
type Mode string

const (
	ModeOffline  Mode = "offline"
	ModeOnline   Mode = "online"
	ModeHybrid   Mode = "hybrid"
	ModeSafeMode Mode = "safe_mode"
)

// Valid reports whether m is one of the supported execution modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeOffline, ModeOnline, ModeHybrid, ModeSafeMode:
		return true
	}
	return false
}

// ── Result Status ───────────────────────────────────────────

// ResultStatus is the terminal status attached to every structured result.
type ResultStatus string

const (
	StatusSuccess   ResultStatus = "success"
	StatusFailed    ResultStatus = "failed"
	StatusPartial   ResultStatus = "partial"
	StatusCancelled ResultStatus = "cancelled"
	StatusTimeout   ResultStatus = "timeout"
)

// ── Routes ──────────────────────────────────────────────────

// Route is where generation work for a request executes.
type Route string

const (
	RouteLocal Route = "local"
	RouteCloud Route = "cloud"
)

// Decision routing reasons, in priority order of the decision engine.
const (
	ReasonManualOrSafeMode       = "manual_or_safe_mode"
	ReasonCloudCircuitOpen       = "cloud_circuit_open"
	ReasonManualOnlineMode       = "manual_online_mode"
	ReasonSensitiveTask          = "sensitive_task"
	ReasonSimpleTask             = "simple_task"
	ReasonComplexOrLowConfidence = "complex_or_low_confidence"
)

// ── Error Codes ─────────────────────────────────────────────

// Stable error codes surfaced in ErrorInfo. These are part of the external
// contract: callers branch on them, tests pin them.
const (
	CodeAutomationRateLimit = "AUTOMATION_RATE_LIMIT"
	CodeRequestRateLimit    = "REQUEST_RATE_LIMIT"
	CodeNoSteps             = "NO_STEPS"
	CodeNoResponse          = "NO_RESPONSE"
	CodePolicyBlock         = "POLICY_BLOCK"
	CodeExecutionFailure    = "EXECUTION_FAILURE"
	CodeUnsupportedIntent   = "UNSUPPORTED_INTENT"
	CodePluginRateLimit     = "PLUGIN_RATE_LIMIT"
	CodePluginNotFound      = "PLUGIN_NOT_FOUND"
	CodePluginBlocked       = "PLUGIN_BLOCKED"
	CodePluginExecution     = "PLUGIN_EXECUTION"
	CodeStageTimeout        = "STAGE_TIMEOUT"
	CodeCancelled           = "CANCELLED"
	CodeHandleTextFailure   = "HANDLE_TEXT_FAILURE"
)

// ── Intent ──────────────────────────────────────────────────

// IntentResult is the classifier output for one request. It is produced
// once and must not be mutated after it is handed to the next stage.
type IntentResult struct {
	Intent     string                 `json:"intent"`
	Confidence float64                `json:"confidence"`
	Entities   map[string]interface{} `json:"entities,omitempty"`
	RawText    string                 `json:"raw_text"`
}

// ── Decision ────────────────────────────────────────────────

// Decision is the pure output of the decision engine: where to route and why.
type Decision struct {
	Route  Route  `json:"route"`
	Reason string `json:"reason"`
}

// ── Plan ────────────────────────────────────────────────────

// StepType discriminates plan step variants.
type StepType string

const (
	StepResponse StepType = "response"
	StepSystem   StepType = "system"
	StepPlugin   StepType = "plugin"
)

// Step is one executable unit of a plan. The populated fields depend on Type:
// response steps carry Message, system steps carry Intent+Text, plugin steps
// carry Name+Payload.
type Step struct {
	Type    StepType `json:"type"`
	Message string   `json:"message,omitempty"`
	Intent  string   `json:"intent,omitempty"`
	Text    string   `json:"text,omitempty"`
	Name    string   `json:"name,omitempty"`
	Payload string   `json:"payload,omitempty"`
}

// ReasoningResult is a structured plan built once per request and consumed
// exactly once by the executor.
type ReasoningResult struct {
	Status     ResultStatus           `json:"status"`
	Confidence float64                `json:"confidence"`
	PlanName   string                 `json:"plan_name"`
	Steps      []Step                 `json:"steps,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Error      *ErrorInfo             `json:"error,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// ── Results & Reports ───────────────────────────────────────

// ErrorInfo is the structured error payload crossing component boundaries.
// It never carries stacks or process internals.
type ErrorInfo struct {
	Code        string                 `json:"code"`
	Message     string                 `json:"message"`
	Recoverable bool                   `json:"recoverable"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// ActionResult is the executor outcome for one plan. Only the coordinator
// amends it (styling, tone tagging) after the executor returns, before it
// is persisted.
type ActionResult struct {
	Status     ResultStatus           `json:"status"`
	Confidence float64                `json:"confidence"`
	Message    string                 `json:"message"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Error      *ErrorInfo             `json:"error,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// FailedResult builds the canonical failed ActionResult for a stable code.
// Failed results always carry confidence 0.
func FailedResult(code, message string) ActionResult {
	return ActionResult{
		Status:     StatusFailed,
		Confidence: 0,
		Message:    message,
		Error:      &ErrorInfo{Code: code, Message: message, Recoverable: true},
		Timestamp:  time.Now().UTC(),
	}
}

// ExecutionReport aggregates one request lifecycle. Write-once, terminal.
type ExecutionReport struct {
	Status        ResultStatus           `json:"status"`
	Confidence    float64                `json:"confidence"`
	CorrelationID string                 `json:"correlation_id"`
	Route         Route                  `json:"route"`
	Message       string                 `json:"message"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Error         *ErrorInfo             `json:"error,omitempty"`
	StartedAt     time.Time              `json:"started_at"`
	FinishedAt    time.Time              `json:"finished_at"`
}

// DiagnosticReport is the startup self-check output.
type DiagnosticReport struct {
	Status     ResultStatus    `json:"status"`
	Confidence float64         `json:"confidence"`
	Checks     map[string]bool `json:"checks"`
	Timestamp  time.Time       `json:"timestamp"`
}

// ── Circuit ─────────────────────────────────────────────────

// CircuitState is a read-only snapshot of the cloud circuit breaker.
type CircuitState struct {
	IsOpen       bool       `json:"is_open"`
	FailureCount int        `json:"failure_count"`
	OpenedUntil  *time.Time `json:"opened_until,omitempty"`
}

// ── Journal ─────────────────────────────────────────────────

// JournalEntry records one executed automation action. Entries are
// append-only for the process lifetime; deletion is a soft-delete flag.
type JournalEntry struct {
	Action     string                 `json:"action"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	Reversible bool                   `json:"reversible"`
	Deleted    bool                   `json:"deleted"`
	Timestamp  time.Time              `json:"timestamp"`
}

// ── Interactions ────────────────────────────────────────────

// Interaction is one persisted request/result pair.
type Interaction struct {
	ID        string       `json:"id"`
	Text      string       `json:"text"`
	Intent    string       `json:"intent"`
	Result    ActionResult `json:"result"`
	CreatedAt time.Time    `json:"created_at"`
}
