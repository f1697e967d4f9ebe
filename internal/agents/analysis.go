package agents

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"gridchat/internal/docs"
	"gridchat/internal/history"
	"gridchat/internal/llm"
	"gridchat/internal/logger"
	"gridchat/internal/pipeline"

	"github.com/sashabaranov/go-openai"
)

const analysisPromptTemplate = `You are a data analysis assistant. Give a SHORT and DIRECT interpretation of the results.

CONVERSATION HISTORY:
%s

QUESTION: %s

SQL RESULTS:
%s

%s

INSTRUCTION:
Answer in at most 1-2 sentences explaining what this data shows, simply and usefully.
No sections, no elaborate recommendations, just the essence.

Expected format example:
"The average age is 35, which indicates a mostly mid-career adult population."`

const (
	previewRowCap  = 20
	previewCellCap = 30
)

// Analysis interprets a prior query result in one or two sentences. It
// requires the data-query stage to have run; when that stage failed the
// reconciliation is left to the fallback stage.
type Analysis struct {
	client llm.Client
	model  string
	log    *slog.Logger
}

// NewAnalysis creates the result-interpretation handler.
func NewAnalysis(client llm.Client, model string) *Analysis {
	return &Analysis{client: client, model: model, log: logger.With("analysis")}
}

// Run implements pipeline.Handler.
func (a *Analysis) Run(ctx context.Context, pc *pipeline.Context) error {
	if !pc.HasQueryResult() {
		a.log.Warn("analysis requires a query result", "request_id", pc.RequestID)
		pc.AddTrace(pipeline.StageAnalysis, "skipped: no query result")
		return nil
	}
	if pc.PendingError() {
		pc.AddTrace(pipeline.StageAnalysis, "skipped: upstream error pending")
		return nil
	}

	result := *pc.QueryResult
	if !result.Success {
		pc.SetResponse(sqlFailureReply(result.Error), pipeline.StageAnalysis)
		return nil
	}
	if result.RowCount == 0 {
		// The data-query stage already produced the empty-result message;
		// interpretation only runs on actual rows.
		pc.AddTrace(pipeline.StageAnalysis, "skipped: empty result set")
		return nil
	}

	interpretation, err := a.interpret(ctx, pc, result)
	if err != nil {
		a.log.Error("analysis generation failed", "request_id", pc.RequestID, "error", err)
		pc.SetResponse(fmt.Sprintf("I found %d results but cannot analyze them right now.", result.RowCount), pipeline.StageAnalysis)
		return nil
	}

	pc.Analysis = interpretation
	pc.SetResponse(interpretation, pipeline.StageAnalysis)
	pc.AddTrace(pipeline.StageAnalysis, fmt.Sprintf("generated analysis (%d chars)", len(interpretation)))
	return nil
}

func (a *Analysis) interpret(ctx context.Context, pc *pipeline.Context, result docs.Result) (string, error) {
	filtered := history.Filter(pc.Conversation, pc.HistoryConfig, true)

	prompt := fmt.Sprintf(analysisPromptTemplate,
		filtered.ContextString(2, 0),
		pc.UserMessage,
		PreviewTable(result),
		NumericSummary(result),
	)

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		MaxTokens:   100,
		Temperature: 0.1,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// PreviewTable renders the result rows as a markdown table capped at
// previewRowCap rows and previewCellCap characters per cell.
func PreviewTable(result docs.Result) string {
	if !result.Success || len(result.Rows) == 0 {
		return "No data available"
	}

	plural := ""
	if len(result.Rows) > 1 {
		plural = "s"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Data (%d row%s):\n\n", len(result.Rows), plural)

	if len(result.Columns) == 0 {
		fmt.Fprintf(&b, "%v\n", result.Rows[:min(len(result.Rows), previewRowCap)])
		return b.String()
	}

	b.WriteString("| " + strings.Join(result.Columns, " | ") + " |\n")
	seps := make([]string, len(result.Columns))
	for i := range seps {
		seps[i] = "---"
	}
	b.WriteString("| " + strings.Join(seps, " | ") + " |\n")

	for i, row := range result.Rows {
		if i >= previewRowCap {
			break
		}
		cells := make([]string, 0, len(result.Columns))
		for _, col := range result.Columns {
			v := ""
			if raw, ok := row[col]; ok && raw != nil {
				v = fmt.Sprintf("%v", raw)
			}
			if r := []rune(v); len(r) > previewCellCap {
				v = string(r[:previewCellCap-3]) + "..."
			}
			cells = append(cells, v)
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	if len(result.Rows) > previewRowCap {
		fmt.Fprintf(&b, "\n... and %d more rows.\n", len(result.Rows)-previewRowCap)
	}
	return b.String()
}

// NumericSummary computes count/sum/average/min/max per numeric column.
func NumericSummary(result docs.Result) string {
	if !result.Success || len(result.Rows) == 0 {
		return "No numeric data available"
	}

	parts := []string{fmt.Sprintf("Total rows: %d", len(result.Rows))}

	type stats struct {
		count    int
		sum      float64
		min, max float64
	}
	perColumn := make(map[string]*stats)

	for _, col := range result.Columns {
		for _, row := range result.Rows {
			v, ok := asFloat(row[col])
			if !ok {
				continue
			}
			s := perColumn[col]
			if s == nil {
				s = &stats{min: v, max: v}
				perColumn[col] = s
			}
			s.count++
			s.sum += v
			if v < s.min {
				s.min = v
			}
			if v > s.max {
				s.max = v
			}
		}
	}

	if len(perColumn) > 0 {
		parts = append(parts, "\nPer-column statistics:")
		cols := make([]string, 0, len(perColumn))
		for col := range perColumn {
			cols = append(cols, col)
		}
		sort.Strings(cols)
		for _, col := range cols {
			s := perColumn[col]
			parts = append(parts, fmt.Sprintf("- %s: Count=%d, Sum=%.2f, Avg=%.2f, Min=%.2f, Max=%.2f",
				col, s.count, s.sum, s.sum/float64(s.count), s.min, s.max))
		}
	}
	return strings.Join(parts, "\n")
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func sqlFailureReply(errMsg string) string {
	if errMsg == "" {
		errMsg = "unknown SQL error"
	}
	return fmt.Sprintf(`## SQL execution error

The SQL query failed and cannot be analyzed.

**Technical error:** %s

Suggestions:
- Check your access permissions for the data
- Rephrase your question with simpler terms
- Make sure the tables and columns exist
- Contact the administrator if the error persists`, errMsg)
}
