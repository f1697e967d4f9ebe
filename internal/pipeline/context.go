package pipeline

import (
	"fmt"

	"gridchat/internal/config"
	"gridchat/internal/docs"
	"gridchat/internal/history"
)

// Context is the per-request record threaded through the stage handlers.
// One instance exists per inbound request; handlers mutate it in sequence
// through the methods below, never by writing the bookkeeping fields
// directly, so response text, attribution, error state and trace stay
// consistent.
type Context struct {
	// Inputs, set once at creation.
	UserMessage   string
	Conversation  history.Conversation
	DocumentID    string
	APIKey        string
	RequestID     string
	HistoryConfig config.HistoryConfig

	// Intermediate results, filled progressively by stages.
	Query        string
	QueryResult  *docs.Result
	Analysis     string
	Architecture *docs.StructureAnalysis

	// Final state.
	ResponseText string
	AgentUsed    StageType
	DataAnalyzed bool

	err         string
	errStage    StageType
	errResolved bool

	trace []string
}

// NewContext creates a fresh context for one request.
func NewContext(userMessage string, conv history.Conversation, documentID, apiKey, requestID string, histCfg config.HistoryConfig) *Context {
	return &Context{
		UserMessage:   userMessage,
		Conversation:  conv,
		DocumentID:    documentID,
		APIKey:        apiKey,
		RequestID:     requestID,
		HistoryConfig: histCfg,
		AgentUsed:     StageNone,
	}
}

// SetResponse sets the final response text and the attributing stage. While
// an unresolved error is pending the call is refused: a stage that wants to
// supersede an error must do so explicitly through ResolveError. Reports
// whether the response was applied.
func (c *Context) SetResponse(text string, stage StageType) bool {
	if c.PendingError() {
		c.AddTrace(stage, "response refused: unresolved error pending")
		return false
	}
	c.ResponseText = text
	c.AgentUsed = stage
	c.AddTrace(stage, fmt.Sprintf("set response (%d chars)", len(text)))
	return true
}

// ResolveError sets a response that supersedes the pending error. The error
// stays visible in the final payload but no longer blocks later stages.
func (c *Context) ResolveError(text string, stage StageType) {
	c.errResolved = true
	c.ResponseText = text
	c.AgentUsed = stage
	c.AddTrace(stage, fmt.Sprintf("resolved error from %s (%d chars)", c.errStage, len(text)))
}

// SetError records an error and the stage it came from. Both fields are
// always set together.
func (c *Context) SetError(msg string, stage StageType) {
	c.err = msg
	c.errStage = stage
	c.errResolved = false
	c.AddTrace(stage, "error: "+msg)
}

// Err returns the recorded error message, empty when none was set.
func (c *Context) Err() string { return c.err }

// ErrStage returns the stage that recorded the error.
func (c *Context) ErrStage() StageType { return c.errStage }

// PendingError reports whether an error is set and no later stage has
// produced a substitute response for it.
func (c *Context) PendingError() bool {
	return c.err != "" && !c.errResolved
}

// HasResponse reports whether a stage has set the final response text.
func (c *Context) HasResponse() bool { return c.ResponseText != "" }

// HasQueryResult reports whether the data-query stage has run.
func (c *Context) HasQueryResult() bool { return c.QueryResult != nil }

// HasAnalysis reports whether the analysis stage produced a result.
func (c *Context) HasAnalysis() bool { return c.Analysis != "" }

// AddTrace appends a diagnostics entry. The trace is for logs only and is
// never parsed programmatically.
func (c *Context) AddTrace(stage StageType, note string) {
	c.trace = append(c.trace, fmt.Sprintf("%s: %s", stage, note))
}

// Trace returns a copy of the execution trace.
func (c *Context) Trace() []string {
	out := make([]string, len(c.trace))
	copy(out, c.trace)
	return out
}
