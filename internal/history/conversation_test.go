package history

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func conv(msgs ...Message) Conversation {
	return Conversation{Messages: msgs}
}

func user(content string) Message      { return Message{Role: RoleUser, Content: content} }
func assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }
func system(content string) Message    { return Message{Role: RoleSystem, Content: content} }

func TestRecent(t *testing.T) {
	c := conv(user("a"), assistant("b"), user("c"))

	require.Len(t, c.Recent(2), 2)
	require.Equal(t, "b", c.Recent(2)[0].Content)
	require.Len(t, c.Recent(10), 3)
	require.Len(t, c.Recent(0), 3)
}

func TestLastUserMessage(t *testing.T) {
	c := conv(user("first"), assistant("reply"), user("second"), assistant("another"))

	last, ok := c.LastUserMessage()
	require.True(t, ok)
	require.Equal(t, "second", last.Content)

	_, ok = conv(assistant("only assistant")).LastUserMessage()
	require.False(t, ok)

	_, ok = conv().LastUserMessage()
	require.False(t, ok)
}

func TestCompletePairs_DropsOrphans(t *testing.T) {
	c := conv(
		system("setup"),
		user("q1"), assistant("a1"),
		user("orphan question"),
		user("q2"), assistant("a2"),
		user("pending"),
	)

	pairs := c.CompletePairs()

	require.Len(t, pairs, 2)
	require.Equal(t, "q1", pairs[0].User.Content)
	require.Equal(t, "a2", pairs[1].Assistant.Content)
}

func TestPromptMessages_CapsPairs(t *testing.T) {
	c := conv(user("q1"), assistant("a1"), user("q2"), assistant("a2"), user("q3"), assistant("a3"))

	msgs := c.PromptMessages(2)

	require.Len(t, msgs, 4)
	require.Equal(t, "q2", msgs[0].Content)
	require.Equal(t, "a3", msgs[3].Content)
}

func TestContextString(t *testing.T) {
	require.Equal(t, "No prior conversation.", conv().ContextString(3, 0))
	require.Equal(t, "No prior conversation.", conv(user("unanswered")).ContextString(3, 0))

	c := conv(user("how many orders?"), assistant("You have 42 orders."))
	out := c.ContextString(3, 0)
	require.Equal(t, "user: how many orders?\nassistant: You have 42 orders.", out)
}

func TestContextString_Truncates(t *testing.T) {
	c := conv(user("aaaaaaaaaa"), assistant("bbbbbbbbbb"))

	out := c.ContextString(3, 4)

	require.Contains(t, out, "user: aaaa...")
	require.Contains(t, out, "assistant: bbbb...")
}
