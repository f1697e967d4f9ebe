// Package agents contains the LLM-backed stage handlers and the router.
// Each agent wraps one crafted prompt around the shared chat completion
// client; all of their failures become pipeline context state, never
// errors escaping to the HTTP layer.
package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gridchat/internal/history"
	"gridchat/internal/llm"
	"gridchat/internal/logger"
	"gridchat/internal/pipeline"

	"github.com/sashabaranov/go-openai"
)

// routingHints are the decision heuristics listed per plan in the
// classification prompt.
var routingHints = map[string]string{
	pipeline.PlanGeneric: "General questions, greetings, help, small talk.\n" +
		`   Examples: "Hello", "How does this work?", "Thanks", "What is this widget?"`,
	pipeline.PlanDataQuery: "The user wants to RETRIEVE specific data and have it ANALYZED.\n" +
		`   Examples: "Show me the sales", "How many customers?", "List last month's orders"` + "\n" +
		"   Keywords: show, how many, list, display, extract, results, data",
	pipeline.PlanArchitectureReview: "The user wants ADVICE about the STRUCTURE of their data.\n" +
		`   Examples: "Is my structure good?", "How should I organize my tables?", "Are my relations OK?"` + "\n" +
		"   Keywords: structure, organization, normalization, relations, schema, architecture, advice, review",
}

// Router classifies a user message into an execution plan with one LLM
// call. Routing is never a hard failure point: unknown or malformed
// replies and transport errors all fall back to the generic plan.
type Router struct {
	client llm.Client
	model  string
	prompt string
	log    *slog.Logger
}

// NewRouter builds a router whose classification prompt lists every
// registered plan with its description and decision heuristics.
func NewRouter(client llm.Client, model string) *Router {
	return &Router{
		client: client,
		model:  model,
		prompt: buildRoutingPrompt(),
		log:    logger.With("router"),
	}
}

func buildRoutingPrompt() string {
	var b strings.Builder
	b.WriteString("You are the routing classifier for a spreadsheet-document AI assistant.\n\n")
	b.WriteString("Your job: read the user message and pick the RIGHT execution plan.\n\nAVAILABLE PLANS:\n")
	for _, name := range pipeline.ListPlans() {
		plan, _ := pipeline.GetPlan(name)
		stages := make([]string, 0, len(plan.Stages))
		for _, s := range plan.Stages {
			stages = append(stages, string(s))
		}
		fmt.Fprintf(&b, "- **%s**: %s [%s]\n", name, plan.Description, strings.Join(stages, " -> "))
	}
	b.WriteString("\nDECISION RULES:\n")
	for i, name := range pipeline.ListPlans() {
		fmt.Fprintf(&b, "%d. **%s**: %s\n", i+1, name, routingHints[name])
	}
	b.WriteString("\nIMPORTANT:\n")
	b.WriteString("- Advice about structure -> architecture_review\n")
	b.WriteString("- Specific data wanted -> data_query\n")
	b.WriteString("- General question -> generic\n\n")
	fmt.Fprintf(&b, "Answer with ONLY the plan name: %s", strings.Join(pipeline.ListPlans(), ", "))
	return b.String()
}

// Route picks the execution plan for the message. The returned plan name is
// always registered.
func (r *Router) Route(ctx context.Context, userMessage string, recent history.Conversation, requestID string) pipeline.Plan {
	generic, _ := pipeline.GetPlan(pipeline.PlanGeneric)

	name, err := r.classify(ctx, userMessage, recent)
	if err != nil {
		r.log.Error("intent classification failed, falling back to generic", "request_id", requestID, "error", err)
		return generic
	}

	plan, err := pipeline.GetPlan(name)
	if err != nil {
		r.log.Warn("classifier produced unknown plan, falling back to generic", "request_id", requestID, "plan", name)
		return generic
	}

	r.log.Info("routed message", "request_id", requestID, "plan", plan.Name, "requires_key", plan.RequiresKey)
	return plan
}

func (r *Router) classify(ctx context.Context, userMessage string, recent history.Conversation) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: r.prompt},
	}

	// A short window of recent turns helps disambiguate follow-ups.
	recentMsgs := recent.Recent(3)
	if len(recentMsgs) > 1 {
		var b strings.Builder
		b.WriteString("Recent context:\n")
		for _, m := range recentMsgs[:len(recentMsgs)-1] {
			fmt.Fprintf(&b, "- %s: %.100s\n", m.Role, m.Content)
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: b.String()})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: "Message to route: " + userMessage,
	})

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		Messages:    messages,
		MaxTokens:   20,
		Temperature: 0.1,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty classification response")
	}

	return strings.ToLower(strings.TrimSpace(resp.Choices[0].Message.Content)), nil
}
