// Package history models the per-request conversation: an ordered list of
// chat messages plus the derived views the agents need (recent windows,
// complete user/assistant pairs, prompt-ready message lists).
package history

import (
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Conversation is the ordered message history for one session. Ordering is
// chronological and significant; the last user message is the one being
// answered.
type Conversation struct {
	Messages []Message
}

// Recent returns the last n messages (all of them when fewer exist).
func (c Conversation) Recent(n int) []Message {
	if n <= 0 || len(c.Messages) <= n {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}

// UserMessages returns only the user-authored messages, in order.
func (c Conversation) UserMessages() []Message {
	var out []Message
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			out = append(out, m)
		}
	}
	return out
}

// LastUserMessage returns the most recent user message, or false when the
// conversation contains none.
func (c Conversation) LastUserMessage() (Message, bool) {
	users := c.UserMessages()
	if len(users) == 0 {
		return Message{}, false
	}
	return users[len(users)-1], true
}

// Pair is one complete user/assistant exchange.
type Pair struct {
	User      Message
	Assistant Message
}

// CompletePairs extracts user messages immediately followed by an assistant
// reply. Orphan messages without a reply are dropped.
func (c Conversation) CompletePairs() []Pair {
	var pairs []Pair
	for i := 0; i < len(c.Messages)-1; {
		if c.Messages[i].Role == RoleUser && c.Messages[i+1].Role == RoleAssistant {
			pairs = append(pairs, Pair{User: c.Messages[i], Assistant: c.Messages[i+1]})
			i += 2
			continue
		}
		i++
	}
	return pairs
}

// PromptMessages renders up to maxPairs recent complete exchanges as chat
// completion messages, ready to splice between a system prompt and the
// current user message.
func (c Conversation) PromptMessages(maxPairs int) []openai.ChatCompletionMessage {
	pairs := c.CompletePairs()
	if maxPairs > 0 && len(pairs) > maxPairs {
		pairs = pairs[len(pairs)-maxPairs:]
	}

	var msgs []openai.ChatCompletionMessage
	for _, p := range pairs {
		msgs = append(msgs,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: p.User.Content},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: p.Assistant.Content},
		)
	}
	return msgs
}

// ContextString renders up to maxPairs recent exchanges as plain text for
// prompts that embed history inline. Each message is truncated to maxChars
// when maxChars > 0.
func (c Conversation) ContextString(maxPairs, maxChars int) string {
	pairs := c.CompletePairs()
	if len(pairs) == 0 {
		return "No prior conversation."
	}
	if maxPairs > 0 && len(pairs) > maxPairs {
		pairs = pairs[len(pairs)-maxPairs:]
	}

	var b strings.Builder
	for _, p := range pairs {
		fmt.Fprintf(&b, "user: %s\n", clip(p.User.Content, maxChars))
		fmt.Fprintf(&b, "assistant: %s\n", clip(p.Assistant.Content, maxChars))
	}
	return strings.TrimRight(b.String(), "\n")
}

func clip(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
