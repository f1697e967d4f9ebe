package docs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gridchat/internal/logger"
)

// Sample holds a few example rows from one table, used to give the
// generation prompts concrete values for type disambiguation.
type Sample struct {
	TableID string
	Columns []string
	Rows    []map[string]any
}

// SampleFetcher retrieves small row samples from the document service.
type SampleFetcher struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewSampleFetcher creates a SampleFetcher bound to one document API key.
func NewSampleFetcher(baseURL, apiKey string) *SampleFetcher {
	return &SampleFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// TableSample fetches up to limit example rows from one table.
func (f *SampleFetcher) TableSample(ctx context.Context, documentID, tableID string, limit int) (Sample, error) {
	if limit <= 0 {
		limit = 5
	}
	url := fmt.Sprintf("%s/docs/%s/tables/%s/records?limit=%d", f.baseURL, documentID, tableID, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Sample{}, err
	}
	req.Header.Set("Authorization", "Bearer "+f.apiKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return Sample{}, fmt.Errorf("fetch sample for %s: %w", tableID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Sample{}, fmt.Errorf("fetch sample for %s: HTTP %d", tableID, resp.StatusCode)
	}

	var payload struct {
		Records []struct {
			Fields map[string]any `json:"fields"`
		} `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Sample{}, fmt.Errorf("malformed sample response for %s: %w", tableID, err)
	}

	sample := Sample{TableID: tableID}
	for i, rec := range payload.Records {
		if i >= limit {
			break
		}
		sample.Rows = append(sample.Rows, rec.Fields)
	}
	sample.Columns = columnNames(sample.Rows)
	return sample, nil
}

// AllSamples fetches a sample for every table in schemas. Individual table
// failures are logged and skipped; sampling is best effort.
func (f *SampleFetcher) AllSamples(ctx context.Context, documentID string, schemas map[string]TableSchema, limit int) map[string]Sample {
	samples := make(map[string]Sample, len(schemas))
	for _, tableID := range sortedKeys(schemas) {
		sample, err := f.TableSample(ctx, documentID, tableID, limit)
		if err != nil {
			logger.L.Warn("sample fetch failed", "table", tableID, "error", err)
			continue
		}
		samples[tableID] = sample
	}
	return samples
}

// FormatSamplesForPrompt renders samples as compact markdown tables.
func FormatSamplesForPrompt(samples map[string]Sample) string {
	if len(samples) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("# Example rows:\n\n")
	for _, tableID := range sortedKeys(samples) {
		s := samples[tableID]
		if len(s.Rows) == 0 {
			fmt.Fprintf(&b, "**%s**: empty\n\n", tableID)
			continue
		}
		fmt.Fprintf(&b, "**%s** (%d sample rows):\n", tableID, len(s.Rows))
		b.WriteString("| " + strings.Join(s.Columns, " | ") + " |\n")
		b.WriteString("| " + strings.Join(repeat("---", len(s.Columns)), " | ") + " |\n")
		for _, row := range s.Rows {
			cells := make([]string, 0, len(s.Columns))
			for _, col := range s.Columns {
				cells = append(cells, clipCell(fmt.Sprintf("%v", valueOrEmpty(row, col)), 30))
			}
			b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}
