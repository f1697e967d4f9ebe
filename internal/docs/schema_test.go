package docs

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func docsServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/docs/doc1/tables", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer key1", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"tables":[{"id":"Sales"},{"id":"Empty"},{"id":"Broken"}]}`)
	})
	mux.HandleFunc("/docs/doc1/tables/Sales/columns", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"columns":[
			{"id":"Name","fields":{"label":"Name","type":"Text"}},
			{"id":"Amount","fields":{"label":"","type":""}},
			{"id":"Customer","fields":{"label":"Customer","type":"Reference:Customers","description":"who bought"}}
		]}`)
	})
	mux.HandleFunc("/docs/doc1/tables/Empty/columns", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"columns":[]}`)
	})
	mux.HandleFunc("/docs/doc1/tables/Broken/columns", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	})
	return httptest.NewServer(mux)
}

func TestSchemaFetcher_Tables(t *testing.T) {
	srv := docsServer(t)
	defer srv.Close()

	f := NewSchemaFetcher(srv.URL, "key1")
	tables, err := f.Tables(context.Background(), "doc1")

	require.NoError(t, err)
	require.Equal(t, []string{"Sales", "Empty", "Broken"}, tables)
}

func TestSchemaFetcher_TableSchemaDefaults(t *testing.T) {
	srv := docsServer(t)
	defer srv.Close()

	f := NewSchemaFetcher(srv.URL, "key1")
	schema, err := f.TableSchema(context.Background(), "doc1", "Sales")

	require.NoError(t, err)
	require.Len(t, schema.Columns, 3)
	// Blank label falls back to the column ID, blank type to Text.
	require.Equal(t, "Amount", schema.Columns[1].Label)
	require.Equal(t, "Text", schema.Columns[1].Type)
	require.True(t, schema.Columns[2].IsReference())
}

func TestSchemaFetcher_AllSchemasSkipsUnreadableAndEmpty(t *testing.T) {
	srv := docsServer(t)
	defer srv.Close()

	f := NewSchemaFetcher(srv.URL, "key1")
	schemas, err := f.AllSchemas(context.Background(), "doc1")

	require.NoError(t, err)
	require.Len(t, schemas, 1)
	require.Contains(t, schemas, "Sales")
}

func TestSchemaFetcher_TablesErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewSchemaFetcher(srv.URL, "bad-key")
	_, err := f.AllSchemas(context.Background(), "doc1")

	require.Error(t, err)
	require.Contains(t, err.Error(), "403")
}

func TestFormatForPrompt(t *testing.T) {
	schemas := map[string]TableSchema{
		"Sales": {TableID: "Sales", Columns: []Column{
			{ID: "Name", Label: "Name", Type: "Text"},
			{ID: "Amount", Label: "Amount", Type: "Numeric", Description: "price paid"},
		}},
	}

	out := FormatForPrompt(schemas)

	require.Contains(t, out, "# Available table schemas:")
	require.Contains(t, out, "## Table: Sales")
	require.Contains(t, out, "| Name | Text | No description |")
	require.Contains(t, out, "| Amount | Numeric | price paid |")
}

func TestFormatForPrompt_NoTables(t *testing.T) {
	require.Equal(t, "No tables available in this document.", FormatForPrompt(nil))
}
