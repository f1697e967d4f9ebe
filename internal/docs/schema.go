// Package docs contains the clients for the external document service:
// schema fetching, read-only SQL execution and row sampling. Every client is
// built per request from that request's API key.
package docs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gridchat/internal/logger"
)

// Column type tags used by the document service that mark a link to
// another table.
const (
	TypeReference     = "Reference"
	TypeReferenceList = "RefList"
)

// Column describes one column of a document table.
type Column struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Type        string `json:"type"`
	Formula     string `json:"formula,omitempty"`
	Description string `json:"description,omitempty"`
}

// IsReference reports whether the column points at rows of another table.
func (c Column) IsReference() bool {
	return c.Type == TypeReference || strings.HasPrefix(c.Type, TypeReference+":") ||
		c.Type == TypeReferenceList || strings.HasPrefix(c.Type, TypeReferenceList+":")
}

// TableSchema is the column layout of one table.
type TableSchema struct {
	TableID string
	Columns []Column
}

// SchemaFetcher retrieves table schemas from the document service.
type SchemaFetcher struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewSchemaFetcher creates a SchemaFetcher bound to one document API key.
func NewSchemaFetcher(baseURL, apiKey string) *SchemaFetcher {
	return &SchemaFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (f *SchemaFetcher) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+f.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("docs API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Tables returns the table IDs of a document.
func (f *SchemaFetcher) Tables(ctx context.Context, documentID string) ([]string, error) {
	var payload struct {
		Tables []struct {
			ID string `json:"id"`
		} `json:"tables"`
	}
	url := fmt.Sprintf("%s/docs/%s/tables", f.baseURL, documentID)
	if err := f.get(ctx, url, &payload); err != nil {
		return nil, fmt.Errorf("fetch tables: %w", err)
	}

	ids := make([]string, 0, len(payload.Tables))
	for _, t := range payload.Tables {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

// TableSchema returns the column layout of one table.
func (f *SchemaFetcher) TableSchema(ctx context.Context, documentID, tableID string) (TableSchema, error) {
	var payload struct {
		Columns []struct {
			ID     string `json:"id"`
			Fields struct {
				Label       string `json:"label"`
				Type        string `json:"type"`
				Formula     string `json:"formula"`
				Description string `json:"description"`
			} `json:"fields"`
		} `json:"columns"`
	}
	url := fmt.Sprintf("%s/docs/%s/tables/%s/columns", f.baseURL, documentID, tableID)
	if err := f.get(ctx, url, &payload); err != nil {
		return TableSchema{}, fmt.Errorf("fetch schema for %s: %w", tableID, err)
	}

	schema := TableSchema{TableID: tableID}
	for _, c := range payload.Columns {
		label := c.Fields.Label
		if label == "" {
			label = c.ID
		}
		colType := c.Fields.Type
		if colType == "" {
			colType = "Text"
		}
		schema.Columns = append(schema.Columns, Column{
			ID:          c.ID,
			Label:       label,
			Type:        colType,
			Formula:     c.Fields.Formula,
			Description: c.Fields.Description,
		})
	}
	return schema, nil
}

// AllSchemas fetches the schema of every table in the document, keyed by
// table ID. Tables whose schema comes back empty are skipped.
func (f *SchemaFetcher) AllSchemas(ctx context.Context, documentID string) (map[string]TableSchema, error) {
	tables, err := f.Tables(ctx, documentID)
	if err != nil {
		return nil, err
	}

	schemas := make(map[string]TableSchema, len(tables))
	for _, tableID := range tables {
		schema, err := f.TableSchema(ctx, documentID, tableID)
		if err != nil {
			logger.L.Warn("skipping table with unreadable schema", "table", tableID, "error", err)
			continue
		}
		if len(schema.Columns) > 0 {
			schemas[tableID] = schema
		}
	}
	return schemas, nil
}

// FormatForPrompt renders schemas as a markdown table per document table,
// the shape the generation prompts expect.
func FormatForPrompt(schemas map[string]TableSchema) string {
	if len(schemas) == 0 {
		return "No tables available in this document."
	}

	var b strings.Builder
	b.WriteString("# Available table schemas:\n\n")
	for _, tableID := range sortedKeys(schemas) {
		schema := schemas[tableID]
		fmt.Fprintf(&b, "## Table: %s\n", tableID)
		b.WriteString("| Column | Type | Description |\n")
		b.WriteString("|--------|------|-------------|\n")
		for _, col := range schema.Columns {
			desc := col.Description
			if desc == "" {
				desc = col.Formula
			}
			if desc == "" {
				desc = "No description"
			}
			fmt.Fprintf(&b, "| %s | %s | %s |\n", col.Label, col.Type, desc)
		}
		b.WriteString("\n")
	}
	return b.String()
}
