package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gridchat/internal/logger"

	"github.com/qmuntal/stateless"
)

// Handler is one unit of work in a plan. Handlers read fields from the
// context, do their work (usually an LLM call and/or a docs API call) and
// write results back. A returned error means the stage failed; the executor
// records it and keeps going.
type Handler interface {
	Run(ctx context.Context, pc *Context) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, pc *Context) error

func (f HandlerFunc) Run(ctx context.Context, pc *Context) error { return f(ctx, pc) }

// Response is the externally visible outcome of one pipeline run.
type Response struct {
	Text         string `json:"response"`
	AgentUsed    string `json:"agent_used"`
	SQLQuery     string `json:"sql_query,omitempty"`
	DataAnalyzed bool   `json:"data_analyzed"`
	Error        string `json:"error,omitempty"`
}

// FallbackResponse is returned when no stage produced a response and no
// error explains why.
const FallbackResponse = "Sorry, no response could be generated."

// FSM states and triggers for the per-request lifecycle.
type execState stateless.State

var (
	statePrecheck execState = "Precheck"
	stateRunning  execState = "RunningStages"
	stateFinalize execState = "Finalizing"
	stateDone     execState = "Done"
)

type execTrigger stateless.Trigger

var (
	triggerStart          execTrigger = "Start"
	triggerPrecheckPassed execTrigger = "PrecheckPassed"
	triggerPrecheckFailed execTrigger = "PrecheckFailed"
	triggerNextStage      execTrigger = "NextStage"
	triggerStagesDone     execTrigger = "StagesDone"
	triggerFinalized      execTrigger = "Finalized"
)

// Executor drives a plan's ordered stage list against one context. A fresh
// executor is built per request, so the handler set can carry that
// request's credential.
type Executor struct {
	handlers map[StageType]Handler
}

// NewExecutor creates an executor over the given handler set.
func NewExecutor(handlers map[StageType]Handler) *Executor {
	return &Executor{handlers: handlers}
}

// Execute runs every stage of the plan in order against the context and
// builds the final response. A single stage failure never aborts the
// pipeline; a missing credential aborts it before any stage runs.
func (e *Executor) Execute(ctx context.Context, plan Plan, pc *Context) Response {
	start := time.Now()
	log := logger.L.With("request_id", pc.RequestID, "plan", plan.Name)
	log.Info("pipeline started", "stages", len(plan.Stages))

	stageIdx := 0

	fsm := stateless.NewStateMachine(statePrecheck)

	fsm.Configure(statePrecheck).
		PermitReentry(triggerStart).
		OnEntry(func(c context.Context, _ ...any) error {
			if plan.RequiresKey && pc.APIKey == "" {
				pc.SetError("this operation requires a document API key", StageNone)
				return fsm.FireCtx(c, triggerPrecheckFailed)
			}
			return fsm.FireCtx(c, triggerPrecheckPassed)
		}).
		Permit(triggerPrecheckPassed, stateRunning).
		Permit(triggerPrecheckFailed, stateFinalize)

	fsm.Configure(stateRunning).
		PermitReentry(triggerNextStage).
		OnEntry(func(c context.Context, _ ...any) error {
			if stageIdx >= len(plan.Stages) {
				return fsm.FireCtx(c, triggerStagesDone)
			}
			stage := plan.Stages[stageIdx]
			stageIdx++
			e.runStage(c, stage, pc, log)
			return fsm.FireCtx(c, triggerNextStage)
		}).
		Permit(triggerStagesDone, stateFinalize)

	fsm.Configure(stateFinalize).
		OnEntry(func(c context.Context, _ ...any) error {
			e.finalize(pc)
			return fsm.FireCtx(c, triggerFinalized)
		}).
		Permit(triggerFinalized, stateDone)

	if err := fsm.FireCtx(ctx, triggerStart); err != nil {
		log.Error("pipeline state machine error", "error", err)
	}

	log.Info("pipeline finished",
		"agent_used", pc.AgentUsed,
		"has_error", pc.Err() != "",
		"duration", time.Since(start).String(),
		"trace", pc.Trace(),
	)

	return Response{
		Text:         pc.ResponseText,
		AgentUsed:    string(pc.AgentUsed),
		SQLQuery:     pc.Query,
		DataAnalyzed: pc.DataAnalyzed,
		Error:        pc.Err(),
	}
}

// runStage invokes one handler, converting its failure into trace state.
func (e *Executor) runStage(ctx context.Context, stage StageType, pc *Context, log *slog.Logger) {
	handler, ok := e.handlers[stage]
	if !ok {
		log.Warn("no handler registered for stage, skipping", "stage", stage)
		pc.AddTrace(stage, "skipped: no handler registered")
		return
	}

	log.Info("running stage", "stage", stage)
	if err := handler.Run(ctx, pc); err != nil {
		log.Error("stage failed", "stage", stage, "error", err)
		pc.AddTrace(stage, fmt.Sprintf("failed: %v", err))
	}
}

// finalize reconciles the context into its final shape. If an error is
// still pending, no stage produced a substitute response for it, so the
// reply must carry the error rather than silently defaulting.
func (e *Executor) finalize(pc *Context) {
	if pc.HasResponse() {
		return
	}
	if pc.PendingError() {
		pc.ResolveError(fmt.Sprintf("I couldn't complete this request: %s", pc.Err()), StageNone)
		return
	}
	pc.ResponseText = FallbackResponse
	pc.AgentUsed = StageNone
	pc.AddTrace(StageNone, "substituted fallback response")
}
