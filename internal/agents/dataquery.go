package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gridchat/internal/docs"
	"gridchat/internal/history"
	"gridchat/internal/llm"
	"gridchat/internal/logger"
	"gridchat/internal/pipeline"

	"github.com/sashabaranov/go-openai"
)

// SchemaSource fetches table schemas for a document.
type SchemaSource interface {
	AllSchemas(ctx context.Context, documentID string) (map[string]docs.TableSchema, error)
}

// QueryRunner validates and executes a read-only query.
type QueryRunner interface {
	Execute(ctx context.Context, documentID, query string) docs.Result
}

// SampleSource fetches example rows per table.
type SampleSource interface {
	AllSamples(ctx context.Context, documentID string, schemas map[string]docs.TableSchema, limit int) map[string]docs.Sample
}

const queryPromptTemplate = `You are a SQL expert generating queries for a spreadsheet-document database.

%s
%s
IMPORTANT INSTRUCTIONS:
1. Generate ONLY SELECT queries (no INSERT, UPDATE, DELETE, DROP)
2. Use exactly the table and column names from the schemas above
3. Use appropriate JOINs when several tables are involved
4. Optimize for performance (LIMIT where appropriate)
5. Handle data types correctly (Text, Numeric, Date, ...)
6. If the question is ambiguous, propose the most likely query

USER QUESTION: %s

CONVERSATION CONTEXT:
%s

Reply with:
1. The SQL query (between ` + "```sql and ```" + `)
2. A brief explanation of what the query does

Expected format:
` + "```sql\nSELECT ...\n```" + `

Explanation: this query retrieves...`

// DataQuery generates a read-only SQL query from the user's question,
// executes it and records the outcome in the context. It is always built
// per request, carrying that request's document API key through its
// collaborators.
type DataQuery struct {
	client  llm.Client
	model   string
	schemas SchemaSource
	runner  QueryRunner
	samples SampleSource
	log     *slog.Logger
}

// NewDataQuery creates the data-query handler. samples may be nil, in which
// case no example rows are added to the prompt.
func NewDataQuery(client llm.Client, model string, schemas SchemaSource, runner QueryRunner, samples SampleSource) *DataQuery {
	return &DataQuery{
		client:  client,
		model:   model,
		schemas: schemas,
		runner:  runner,
		samples: samples,
		log:     logger.With("sql"),
	}
}

// Run implements pipeline.Handler.
func (d *DataQuery) Run(ctx context.Context, pc *pipeline.Context) error {
	schemas, err := d.schemas.AllSchemas(ctx, pc.DocumentID)
	if err != nil {
		pc.SetError(fmt.Sprintf("cannot access the document schemas: %v", err), pipeline.StageDataQuery)
		return nil
	}
	if len(schemas) == 0 {
		pc.SetError("no readable tables found in this document", pipeline.StageDataQuery)
		return nil
	}

	query, err := d.generateQuery(ctx, pc, schemas)
	if err != nil {
		pc.SetError(fmt.Sprintf("query generation failed: %v", err), pipeline.StageDataQuery)
		return nil
	}
	if query == "" {
		pc.SetResponse("I couldn't derive a SQL query for your question. "+
			"Could you rephrase it or be more specific?", pipeline.StageDataQuery)
		return nil
	}

	result := d.runner.Execute(ctx, pc.DocumentID, query)
	pc.Query = query
	pc.QueryResult = &result

	if !result.Success {
		pc.SetError(fmt.Sprintf("the query\n\n```sql\n%s\n```\n\nfailed: %s", query, result.Error), pipeline.StageDataQuery)
		return nil
	}

	pc.DataAnalyzed = true
	pc.AddTrace(pipeline.StageDataQuery, fmt.Sprintf("executed query, got %d rows", result.RowCount))

	if result.RowCount == 0 {
		pc.SetResponse(emptyResultReply(query), pipeline.StageDataQuery)
		return nil
	}

	pc.SetResponse(d.formatSuccess(query, result), pipeline.StageDataQuery)
	return nil
}

func (d *DataQuery) generateQuery(ctx context.Context, pc *pipeline.Context, schemas map[string]docs.TableSchema) (string, error) {
	samplesText := ""
	if d.samples != nil {
		samplesText = docs.FormatSamplesForPrompt(d.samples.AllSamples(ctx, pc.DocumentID, schemas, 5))
	}

	filtered := history.Filter(pc.Conversation, pc.HistoryConfig, true)
	convContext := filtered.ContextString(3, 100)

	prompt := fmt.Sprintf(queryPromptTemplate,
		docs.FormatForPrompt(schemas),
		samplesText,
		pc.UserMessage,
		convContext,
	)

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       d.model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		MaxTokens:   500,
		Temperature: 0.1,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}

	query, ok := docs.ExtractQuery(resp.Choices[0].Message.Content)
	if !ok {
		d.log.Warn("no SQL query extracted from model reply",
			"request_id", pc.RequestID,
			"reply", clipLog(resp.Choices[0].Message.Content, 200))
		return "", nil
	}

	d.log.Info("SQL query generated", "request_id", pc.RequestID, "query_length", len(query))
	return query, nil
}

func (d *DataQuery) formatSuccess(query string, result docs.Result) string {
	plural := ""
	if result.RowCount > 1 {
		plural = "s"
	}
	return strings.Join([]string{
		"Here are the results for your question:",
		"",
		"**Executed query:**",
		"```sql",
		query,
		"```",
		"",
		fmt.Sprintf("**Results (%d row%s):**", result.RowCount, plural),
		"",
		docs.FormatResults(result),
	}, "\n")
}

func emptyResultReply(query string) string {
	return fmt.Sprintf(`I executed this query:

`+"```sql\n%s\n```"+`

**Result:** no rows matched your search criteria.

Suggestions:
- Check that the data exists in your tables
- Try broadening your search
- Rephrase your question with different terms

*An empty result can be perfectly normal for your data.*`, query)
}

func clipLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
