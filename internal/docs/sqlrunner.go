package docs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"gridchat/internal/logger"
)

// Result is the tagged outcome of a SQL execution: either rows plus column
// names, or an error description. A failed result carries no rows.
type Result struct {
	Success  bool             `json:"success"`
	Rows     []map[string]any `json:"rows"`
	Columns  []string         `json:"columns"`
	RowCount int              `json:"row_count"`
	Error    string           `json:"error,omitempty"`
}

// Failure builds a failed result with no rows.
func Failure(msg string) Result {
	return Result{Success: false, Error: msg}
}

var forbiddenKeywords = []string{"DROP", "DELETE", "UPDATE", "INSERT", "ALTER", "CREATE", "TRUNCATE"}

// ValidateQuery checks a statement before it goes anywhere near the network:
// only SELECT, no mutation keywords, balanced parentheses.
func ValidateQuery(query string) error {
	clean := strings.ToUpper(strings.TrimSpace(query))

	for _, kw := range forbiddenKeywords {
		if strings.Contains(clean, kw) {
			return fmt.Errorf("forbidden statement: contains keyword %q", kw)
		}
	}
	if !strings.HasPrefix(clean, "SELECT") {
		return fmt.Errorf("only SELECT statements are allowed")
	}
	if strings.Count(clean, "(") != strings.Count(clean, ")") {
		return fmt.Errorf("unbalanced parentheses")
	}
	return nil
}

// SQLRunner executes read-only queries against the document service.
type SQLRunner struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewSQLRunner creates a SQLRunner bound to one document API key.
func NewSQLRunner(baseURL, apiKey string) *SQLRunner {
	return &SQLRunner{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Execute validates and runs a query. Validation failures and remote errors
// both come back as a failed Result rather than a Go error; the pipeline
// treats them as stage state, not exceptions.
func (r *SQLRunner) Execute(ctx context.Context, documentID, query string) Result {
	if err := ValidateQuery(query); err != nil {
		logger.L.Warn("rejected SQL query", "error", err, "query", query)
		return Failure(err.Error())
	}

	endpoint := fmt.Sprintf("%s/docs/%s/sql?q=%s", r.baseURL, documentID, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Failure(err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		logger.L.Error("SQL execution failed", "error", err, "query", query)
		return Failure(fmt.Sprintf("query execution failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		logger.L.Error("SQL execution rejected by docs API", "status", resp.StatusCode, "query", query)
		return Failure(msg)
	}

	var payload struct {
		Records []struct {
			Fields map[string]any `json:"fields"`
		} `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Failure(fmt.Sprintf("malformed SQL response: %v", err))
	}

	result := Result{Success: true, Rows: make([]map[string]any, 0, len(payload.Records))}
	for _, rec := range payload.Records {
		result.Rows = append(result.Rows, rec.Fields)
	}
	result.RowCount = len(result.Rows)
	result.Columns = columnNames(result.Rows)

	logger.L.Info("SQL query executed", "rows", result.RowCount, "columns", len(result.Columns))
	return result
}

// columnNames derives an ordered column list from the first row. The docs
// API returns rows as objects, so order comes from sorting the keys.
func columnNames(rows []map[string]any) []string {
	if len(rows) == 0 {
		return nil
	}
	cols := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

const displayRowCap = 10

// FormatResults renders a result set as a readable markdown table, capped at
// displayRowCap rows with an explicit "N more rows" suffix. The header line
// carries the full row count so the caller can re-derive it.
func FormatResults(res Result) string {
	if !res.Success {
		return fmt.Sprintf("Query failed: %s", orUnknown(res.Error))
	}
	if len(res.Rows) == 0 {
		return "No data matched this query."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Query results (%d rows):\n\n", res.RowCount)

	if len(res.Columns) > 0 {
		b.WriteString("| " + strings.Join(res.Columns, " | ") + " |\n")
		b.WriteString("| " + strings.Join(repeat("---", len(res.Columns)), " | ") + " |\n")

		for i, row := range res.Rows {
			if i >= displayRowCap {
				break
			}
			cells := make([]string, 0, len(res.Columns))
			for _, col := range res.Columns {
				cells = append(cells, clipCell(fmt.Sprintf("%v", valueOrEmpty(row, col)), 50))
			}
			b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		}
		if len(res.Rows) > displayRowCap {
			fmt.Fprintf(&b, "\n... and %d more rows.\n", len(res.Rows)-displayRowCap)
		}
	} else {
		fmt.Fprintf(&b, "%v\n", res.Rows)
	}
	return b.String()
}

func valueOrEmpty(row map[string]any, col string) any {
	if v, ok := row[col]; ok && v != nil {
		return v
	}
	return ""
}

// clipCell truncates on rune boundaries so multi-byte content never turns
// into invalid UTF-8 in display tables or prompts.
func clipCell(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown error"
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
