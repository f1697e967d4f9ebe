package docs

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestValidateQuery(t *testing.T) {
	cases := []struct {
		query   string
		wantErr string
	}{
		{"SELECT * FROM Sales", ""},
		{"  select name from customers  ", ""},
		{"SELECT COUNT(*) FROM Sales WHERE Amount > 10", ""},
		{"DROP TABLE Sales", `contains keyword "DROP"`},
		{"delete from Sales", `contains keyword "DELETE"`},
		{"SELECT 1; UPDATE Sales SET x=1", `contains keyword "UPDATE"`},
		{"WITH t AS (SELECT 1) SELECT * FROM t", "only SELECT statements are allowed"},
		{"SELECT COUNT( FROM Sales", "unbalanced parentheses"},
	}

	for _, tc := range cases {
		err := ValidateQuery(tc.query)
		if tc.wantErr == "" {
			require.NoError(t, err, tc.query)
			continue
		}
		require.Error(t, err, tc.query)
		require.Contains(t, err.Error(), tc.wantErr, tc.query)
	}
}

func TestExecute_RejectedQueryNeverReachesNetwork(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	runner := NewSQLRunner(srv.URL, "key1")
	result := runner.Execute(context.Background(), "doc1", "DROP TABLE Sales")

	require.False(t, result.Success)
	require.Contains(t, result.Error, `contains keyword "DROP"`)
	require.Zero(t, hits)
}

func TestExecute_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/docs/doc1/sql", r.URL.Path)
		require.Equal(t, "SELECT * FROM Sales", r.URL.Query().Get("q"))
		require.Equal(t, "Bearer key1", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"records":[
			{"fields":{"Name":"Alpha","Amount":10}},
			{"fields":{"Name":"Beta","Amount":20}}
		]}`)
	}))
	defer srv.Close()

	runner := NewSQLRunner(srv.URL, "key1")
	result := runner.Execute(context.Background(), "doc1", "SELECT * FROM Sales")

	require.True(t, result.Success)
	require.Equal(t, 2, result.RowCount)
	require.Equal(t, []string{"Amount", "Name"}, result.Columns)
	require.Equal(t, "Alpha", result.Rows[0]["Name"])
}

func TestExecute_HTTPErrorBecomesFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such table: Missing", http.StatusBadRequest)
	}))
	defer srv.Close()

	runner := NewSQLRunner(srv.URL, "key1")
	result := runner.Execute(context.Background(), "doc1", "SELECT * FROM Missing")

	require.False(t, result.Success)
	require.Equal(t, "HTTP 400: no such table: Missing", result.Error)
	require.Empty(t, result.Rows)
}

func TestExecute_UnreachableHostBecomesFailure(t *testing.T) {
	runner := NewSQLRunner("http://127.0.0.1:1", "key1")
	result := runner.Execute(context.Background(), "doc1", "SELECT 1")

	require.False(t, result.Success)
	require.Contains(t, result.Error, "query execution failed")
}

func TestFormatResults_RowCountRoundTrip(t *testing.T) {
	rows := make([]map[string]any, 12)
	for i := range rows {
		rows[i] = map[string]any{"Name": fmt.Sprintf("row%d", i)}
	}
	res := Result{Success: true, Rows: rows, Columns: []string{"Name"}, RowCount: 12}

	out := FormatResults(res)

	require.Contains(t, out, "Query results (12 rows):")
	require.Contains(t, out, "... and 2 more rows.")
	// Shown rows plus the overflow note account for every row.
	shown := strings.Count(out, "| row")
	require.Equal(t, 12, shown+2)
}

func TestFormatResults_Failure(t *testing.T) {
	require.Equal(t, "Query failed: boom", FormatResults(Failure("boom")))
	require.Equal(t, "Query failed: unknown error", FormatResults(Result{}))
}

func TestFormatResults_Empty(t *testing.T) {
	require.Equal(t, "No data matched this query.", FormatResults(Result{Success: true}))
}

func TestFormatResults_ClipsLongCells(t *testing.T) {
	long := strings.Repeat("x", 80)
	res := Result{Success: true, Rows: []map[string]any{{"Name": long}}, Columns: []string{"Name"}, RowCount: 1}

	out := FormatResults(res)

	require.Contains(t, out, strings.Repeat("x", 47)+"...")
	require.NotContains(t, out, strings.Repeat("x", 48))
}

func TestFormatResults_ClipsOnRuneBoundaries(t *testing.T) {
	long := strings.Repeat("é", 60)
	res := Result{Success: true, Rows: []map[string]any{{"Name": long}}, Columns: []string{"Name"}, RowCount: 1}

	out := FormatResults(res)

	require.True(t, utf8.ValidString(out))
	require.Contains(t, out, strings.Repeat("é", 47)+"...")
}
