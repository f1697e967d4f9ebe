package agents

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"gridchat/internal/docs"
	"gridchat/internal/llm"
	"gridchat/internal/logger"
	"gridchat/internal/pipeline"

	"github.com/sashabaranov/go-openai"
)

const structurePromptTemplate = `You are a data architecture advisor for a spreadsheet-document platform.

The user has this structure:

%s

%s
%s
QUESTION: %s

Give 3-5 SIMPLE and ACTIONABLE recommendations about how this data is organized.

IMPORTANT:
- Answer DIRECTLY with the recommendations, no introduction
- One recommendation per line, starting with a dash "-"
- At most 1-2 sentences per recommendation
- Be concise, clear and kind

Example:
- Rename column "A" to something more descriptive
- Use appropriate data types (Numeric for age, Date for dates)
- Create Reference relations when you have separate entities`

// Architecture reviews the document's table structure: aggregate metrics,
// detected reference relations and 3-5 LLM-generated recommendations
// returned verbatim, split on non-blank lines.
type Architecture struct {
	client  llm.Client
	model   string
	schemas SchemaSource
	samples SampleSource
	log     *slog.Logger
}

// NewArchitecture creates the structure-review handler. samples may be nil.
func NewArchitecture(client llm.Client, model string, schemas SchemaSource, samples SampleSource) *Architecture {
	return &Architecture{
		client:  client,
		model:   model,
		schemas: schemas,
		samples: samples,
		log:     logger.With("architecture"),
	}
}

// Run implements pipeline.Handler.
func (a *Architecture) Run(ctx context.Context, pc *pipeline.Context) error {
	schemas, err := a.schemas.AllSchemas(ctx, pc.DocumentID)
	if err != nil {
		pc.SetError(fmt.Sprintf("cannot access the document schemas: %v", err), pipeline.StageArchitecture)
		return nil
	}
	if len(schemas) == 0 {
		pc.SetError("no readable tables found in this document", pipeline.StageArchitecture)
		return nil
	}

	metrics := docs.ComputeMetrics(schemas)
	relationships := docs.FindRelationships(schemas)

	recommendations := a.recommend(ctx, pc, schemas, metrics, relationships)

	pc.Architecture = &docs.StructureAnalysis{
		DocumentID:      pc.DocumentID,
		Metrics:         metrics,
		Relationships:   relationships,
		Recommendations: recommendations,
	}
	pc.DataAnalyzed = true
	pc.AddTrace(pipeline.StageArchitecture, fmt.Sprintf("analyzed %d tables", metrics.TotalTables))

	pc.SetResponse(formatRecommendations(recommendations), pipeline.StageArchitecture)
	return nil
}

func (a *Architecture) recommend(
	ctx context.Context,
	pc *pipeline.Context,
	schemas map[string]docs.TableSchema,
	metrics docs.StructureMetrics,
	relationships []docs.Relationship,
) []string {
	samplesText := ""
	if a.samples != nil {
		samplesText = docs.FormatSamplesForPrompt(a.samples.AllSamples(ctx, pc.DocumentID, schemas, 3))
	}

	relSummary := "No relations detected"
	if len(relationships) > 0 {
		relSummary = fmt.Sprintf("%d relation(s) detected:", len(relationships))
		for _, rel := range relationships {
			relSummary += fmt.Sprintf("\n- %s.%s -> %s (%s)", rel.FromTable, rel.Column, rel.ToTable, rel.Kind)
		}
	}

	prompt := fmt.Sprintf(structurePromptTemplate,
		schemaSummary(schemas),
		relSummary,
		samplesText,
		pc.UserMessage,
	)

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		MaxTokens:   500,
		Temperature: 0.3,
	})
	if err != nil {
		a.log.Error("recommendation generation failed", "request_id", pc.RequestID, "error", err)
		return []string{
			"I cannot generate recommendations right now.",
			fmt.Sprintf("Your structure contains %d table(s) and %d columns.", metrics.TotalTables, metrics.TotalColumns),
		}
	}
	if len(resp.Choices) == 0 {
		return []string{"I cannot generate recommendations right now."}
	}

	// The raw reply, split on non-blank lines and returned verbatim.
	return SplitRecommendations(resp.Choices[0].Message.Content)
}

// SplitRecommendations splits an LLM reply into its non-blank lines,
// without any semantic validation of the bullets.
func SplitRecommendations(text string) []string {
	var recs []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			recs = append(recs, line)
		}
	}
	return recs
}

func formatRecommendations(recs []string) string {
	if len(recs) == 0 {
		return "Your structure looks fine for now."
	}
	return strings.Join(recs, "\n")
}

func schemaSummary(schemas map[string]docs.TableSchema) string {
	var lines []string
	for _, tableID := range sortedTableIDs(schemas) {
		schema := schemas[tableID]
		labels := make([]string, 0, 5)
		for i, col := range schema.Columns {
			if i >= 5 {
				break
			}
			labels = append(labels, col.Label)
		}
		suffix := ""
		if len(schema.Columns) > 5 {
			suffix = "..."
		}
		lines = append(lines, fmt.Sprintf("- **%s**: %d columns (%s%s)",
			tableID, len(schema.Columns), strings.Join(labels, ", "), suffix))
	}
	return strings.Join(lines, "\n")
}

func sortedTableIDs(schemas map[string]docs.TableSchema) []string {
	ids := make([]string, 0, len(schemas))
	for id := range schemas {
		ids = append(ids, id)
	}
	// Stable prompt ordering keeps tests deterministic.
	sort.Strings(ids)
	return ids
}
