// Package orchestrator ties the router, the agent stages and the pipeline
// executor together. One Orchestrator serves the whole process; the
// document-scoped agents are constructed per request because the document
// API key arrives with each request.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"

	"gridchat/internal/agents"
	"gridchat/internal/config"
	"gridchat/internal/docs"
	"gridchat/internal/history"
	"gridchat/internal/llm"
	"gridchat/internal/logger"
	"gridchat/internal/metrics"
	"gridchat/internal/pipeline"
	"gridchat/internal/store"
)

// HealthStatus reports the result of a health probe, with a per-component
// breakdown alongside the overall status.
type HealthStatus struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
	Detail     string            `json:"detail,omitempty"`
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// AgentInfo describes one routable stage for the introspection endpoint.
type AgentInfo struct {
	Stage       string `json:"stage"`
	Description string `json:"description"`
}

// Orchestrator processes chat requests end to end.
type Orchestrator struct {
	cfg      *config.Config
	client   llm.Client
	router   *agents.Router
	generic  *agents.Generic
	analysis *agents.Analysis
	log      *store.RequestLog
}

// New builds an orchestrator from the loaded configuration. The router and
// the document-independent agents are created once here.
func New(cfg *config.Config, client llm.Client, requestLog *store.RequestLog) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		client:   client,
		router:   agents.NewRouter(client, cfg.LLM.Model),
		generic:  agents.NewGeneric(client, cfg.LLM.Model),
		analysis: agents.NewAnalysis(client, cfg.LLM.AnalysisModel),
		log:      requestLog,
	}
}

// handlers builds the stage handler set for one request. The data-query and
// architecture agents get clients bound to the request's API key.
func (o *Orchestrator) handlers(apiKey string) map[pipeline.StageType]pipeline.Handler {
	h := map[pipeline.StageType]pipeline.Handler{
		pipeline.StageGeneric:  o.generic,
		pipeline.StageAnalysis: o.analysis,
	}
	if apiKey != "" {
		schemas := docs.NewSchemaFetcher(o.cfg.Docs.BaseURL, apiKey)
		runner := docs.NewSQLRunner(o.cfg.Docs.BaseURL, apiKey)
		samples := docs.NewSampleFetcher(o.cfg.Docs.BaseURL, apiKey)
		h[pipeline.StageDataQuery] = agents.NewDataQuery(o.client, o.cfg.LLM.Model, schemas, runner, samples)
		h[pipeline.StageArchitecture] = agents.NewArchitecture(o.client, o.cfg.LLM.Model, schemas, samples)
	}
	return h
}

// ProcessChat routes the conversation to a plan, runs the plan's stages and
// returns the assembled response. It never returns an error to the caller;
// failures become error responses.
func (o *Orchestrator) ProcessChat(ctx context.Context, documentID, apiKey string, conv history.Conversation) pipeline.Response {
	requestID := uuid.NewString()
	log := logger.L.With("request_id", requestID, "document_id", documentID)
	metrics.RequestsTotal.Inc()

	last, ok := conv.LastUserMessage()
	if !ok {
		log.Warn("chat request without a user message")
		metrics.Errors.Inc()
		return pipeline.Response{
			Text:      "I didn't receive a message to respond to.",
			AgentUsed: string(pipeline.StageNone),
			Error:     "no user message in request",
		}
	}

	recent := history.Filter(conv, o.cfg.History, true)
	plan := o.router.Route(ctx, last.Content, recent, requestID)
	metrics.PlanUsage.WithLabelValues(plan.Name).Inc()
	log.Info("plan selected", "plan", plan.Name)

	pc := pipeline.NewContext(last.Content, conv, documentID, apiKey, requestID, o.cfg.History)
	exec := pipeline.NewExecutor(o.handlers(apiKey))
	resp := exec.Execute(ctx, plan, pc)

	if resp.Error != "" {
		metrics.Errors.Inc()
	}
	o.log.Save(store.Record{
		RequestID:  requestID,
		DocumentID: documentID,
		Plan:       plan.Name,
		AgentUsed:  resp.AgentUsed,
		HadError:   resp.Error != "",
	})
	return resp
}

// Health probes the LLM backend with a minimal completion and reports each
// component. The router and agents are in-process, so only the LLM probe
// can degrade the overall status: a slow answer is degraded, a failed one
// unhealthy.
func (o *Orchestrator) Health(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	status := HealthStatus{
		Status: StatusHealthy,
		Components: map[string]string{
			"llm":    "ok",
			"router": "ok",
			"agents": fmt.Sprintf("%d registered", len(o.Agents())),
		},
	}

	start := time.Now()
	_, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.cfg.LLM.Model,
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "ping"}},
		MaxTokens: 5,
	})
	if err != nil {
		status.Status = StatusUnhealthy
		status.Components["llm"] = fmt.Sprintf("error: %v", err)
		status.Detail = fmt.Sprintf("llm probe failed: %v", err)
		return status
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		status.Status = StatusDegraded
		status.Components["llm"] = fmt.Sprintf("slow (%s)", elapsed.Round(time.Millisecond))
		status.Detail = fmt.Sprintf("llm probe took %s", elapsed.Round(time.Millisecond))
	}
	return status
}

// Stats reports aggregate request counts from the store.
func (o *Orchestrator) Stats() store.Stats {
	return o.log.Stats()
}

// Agents lists every stage reachable through some plan, for introspection.
func (o *Orchestrator) Agents() []AgentInfo {
	descriptions := map[pipeline.StageType]string{
		pipeline.StageGeneric:      "general conversation and fallback replies",
		pipeline.StageDataQuery:    "generates and runs read-only SQL against the document",
		pipeline.StageAnalysis:     "interprets query results in plain language",
		pipeline.StageArchitecture: "reviews the document structure and suggests improvements",
	}

	seen := map[pipeline.StageType]bool{}
	var out []AgentInfo
	for _, name := range pipeline.ListPlans() {
		plan, err := pipeline.GetPlan(name)
		if err != nil {
			continue
		}
		for _, stage := range plan.Stages {
			if seen[stage] {
				continue
			}
			seen[stage] = true
			out = append(out, AgentInfo{Stage: string(stage), Description: descriptions[stage]})
		}
	}
	return out
}
