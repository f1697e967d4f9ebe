package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"gridchat/internal/docs"
	"gridchat/internal/pipeline"
)

func linkedSchemas() map[string]docs.TableSchema {
	return map[string]docs.TableSchema{
		"Orders": {TableID: "Orders", Columns: []docs.Column{
			{ID: "Ref", Label: "Customer", Type: "Reference:Customers"},
			{ID: "Total", Label: "Total", Type: "Numeric"},
		}},
		"Customers": {TableID: "Customers", Columns: []docs.Column{
			{ID: "Name", Label: "Name", Type: "Text"},
		}},
	}
}

func TestArchitectureRun_AnalyzesStructure(t *testing.T) {
	m := &mockLLM{queue: []openai.ChatCompletionResponse{completion(
		"- Rename column Total to OrderTotal\n\n- Add a Date column to Orders")}}
	a := NewArchitecture(m, "test-model", &mockSchemas{schemas: linkedSchemas()}, nil)
	pc := testContext("is my structure good?")

	require.NoError(t, a.Run(context.Background(), pc))

	require.Equal(t, "- Rename column Total to OrderTotal\n- Add a Date column to Orders", pc.ResponseText)
	require.Equal(t, pipeline.StageArchitecture, pc.AgentUsed)
	require.True(t, pc.DataAnalyzed)

	require.NotNil(t, pc.Architecture)
	require.Equal(t, 2, pc.Architecture.Metrics.TotalTables)
	require.Equal(t, 3, pc.Architecture.Metrics.TotalColumns)
	require.Equal(t, 1, pc.Architecture.Metrics.TotalRelationships)
	require.Len(t, pc.Architecture.Relationships, 1)
	require.Equal(t, "Customers", pc.Architecture.Relationships[0].ToTable)
}

func TestArchitectureRun_SchemaErrorBecomesStageError(t *testing.T) {
	a := NewArchitecture(&mockLLM{}, "test-model", &mockSchemas{err: errors.New("HTTP 401")}, nil)
	pc := testContext("review my tables")

	require.NoError(t, a.Run(context.Background(), pc))

	require.True(t, pc.PendingError())
	require.Equal(t, pipeline.StageArchitecture, pc.ErrStage())
	require.Contains(t, pc.Err(), "cannot access the document schemas")
}

func TestArchitectureRun_LLMFailureFallsBackToStaticAdvice(t *testing.T) {
	m := &mockLLM{err: errors.New("connection refused")}
	a := NewArchitecture(m, "test-model", &mockSchemas{schemas: linkedSchemas()}, nil)
	pc := testContext("is my structure good?")

	require.NoError(t, a.Run(context.Background(), pc))

	require.Contains(t, pc.ResponseText, "I cannot generate recommendations right now.")
	require.Contains(t, pc.ResponseText, "Your structure contains 2 table(s) and 3 columns.")
	require.True(t, pc.DataAnalyzed)
}

func TestArchitectureRun_PromptCarriesRelations(t *testing.T) {
	m := &mockLLM{queue: []openai.ChatCompletionResponse{completion("- Looks fine")}}
	a := NewArchitecture(m, "test-model", &mockSchemas{schemas: linkedSchemas()}, nil)
	pc := testContext("review")

	require.NoError(t, a.Run(context.Background(), pc))

	require.Len(t, m.reqs, 1)
	prompt := m.reqs[0].Messages[0].Content
	require.Contains(t, prompt, "1 relation(s) detected:")
	require.Contains(t, prompt, "- Orders.Customer -> Customers (one-to-many)")
	require.Contains(t, prompt, "QUESTION: review")
}

func TestSplitRecommendations(t *testing.T) {
	recs := SplitRecommendations("  - one\n\n- two  \n\n\n- three\n")
	require.Equal(t, []string{"- one", "- two", "- three"}, recs)

	require.Empty(t, SplitRecommendations("   \n \n"))
}
