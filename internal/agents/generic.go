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

const personaPrompt = `You are an AI assistant embedded in a spreadsheet-document platform.

Your role:
- Answer general questions about the platform and its features
- Help the user understand how to use this assistant
- Make friendly, professional small talk
- Guide the user toward good data-analysis questions

Context: the user works with a document whose data can be analyzed through this assistant.

Instructions:
- Be friendly, helpful and professional
- Be precise and detailed when the question calls for it
- If the user asks about specific data, suggest rephrasing as a data-analysis question
- Never invent data or document-specific facts`

// Generic produces conversational replies and acts as the reconciling
// fallback stage: when an earlier stage left an error pending, it turns
// that error into a stage-aware apology instead of running the persona
// conversation.
type Generic struct {
	client llm.Client
	model  string
	log    *slog.Logger
}

// NewGeneric creates the general-conversation handler.
func NewGeneric(client llm.Client, model string) *Generic {
	return &Generic{client: client, model: model, log: logger.With("generic")}
}

// Run implements pipeline.Handler.
func (g *Generic) Run(ctx context.Context, pc *pipeline.Context) error {
	if pc.PendingError() {
		pc.ResolveError(g.apology(pc), pipeline.StageGeneric)
		return nil
	}
	if pc.HasResponse() {
		pc.AddTrace(pipeline.StageGeneric, "skipped: response already set")
		return nil
	}

	reply, err := g.converse(ctx, pc)
	if err != nil {
		g.log.Error("persona conversation failed", "request_id", pc.RequestID, "error", err)
		pc.SetResponse(keywordFallback(pc.UserMessage), pipeline.StageGeneric)
		return nil
	}

	pc.SetResponse(reply, pipeline.StageGeneric)
	return nil
}

func (g *Generic) converse(ctx context.Context, pc *pipeline.Context) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: personaPrompt},
	}
	filtered := history.Filter(pc.Conversation, pc.HistoryConfig, true)
	messages = append(messages, filtered.PromptMessages(3)...)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: pc.UserMessage,
	})

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		MaxTokens:   800,
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// apology renders a templated message referencing the pending error and the
// stage that produced it.
func (g *Generic) apology(pc *pipeline.Context) string {
	switch pc.ErrStage() {
	case pipeline.StageDataQuery:
		return fmt.Sprintf(`I can't run your query against the document data.

**Problem:** %s

You can try to:
- Check your access permissions for the document
- Rephrase your question differently
- Ask me a general question instead

I'm happy to help with anything else in the meantime!`, pc.Err())

	case pipeline.StageArchitecture:
		return fmt.Sprintf(`I can't analyze the structure of your data.

**Problem:** %s

You can try to:
- Check your access permissions
- Rephrase your question about the data structure
- Ask me something else about the document

How else can I help?`, pc.Err())

	default:
		return fmt.Sprintf(`I ran into a technical difficulty.

**Problem:** %s

Could you:
- Rephrase your question
- Try a different approach
- Ask me something else

I'm here to help!`, pc.Err())
	}
}

// keywordFallback is the canned reply used when the LLM call itself fails.
func keywordFallback(userMessage string) string {
	lower := strings.ToLower(userMessage)

	switch {
	case containsAny(lower, "hello", "hi ", "hey", "bonjour"):
		return "Hello! I'm your document AI assistant. How can I help you today?"
	case containsAny(lower, "help", "how do"):
		return "I can help you analyze your document data! Ask me about your data or request an analysis, " +
			"for example: 'Show me the sales trends' or 'How many users do we have?'"
	case containsAny(lower, "what", "who are"):
		return "I'm an AI assistant embedded in your document. I can analyze your data, generate SQL queries " +
			"and answer general questions. What would you like to know?"
	default:
		return "Sorry, I'm having a temporary technical difficulty. Could you rephrase your question? " +
			"I'm here to help with your document data!"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
