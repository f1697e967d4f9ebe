package docs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func reviewSchemas() map[string]TableSchema {
	return map[string]TableSchema{
		"Orders": {TableID: "Orders", Columns: []Column{
			{ID: "Customer", Label: "Customer", Type: "Reference:Customers"},
			{ID: "Tags", Label: "Tags", Type: "RefList"},
			{ID: "Total", Label: "Total", Type: "Numeric"},
		}},
		"Customers": {TableID: "Customers", Columns: []Column{
			{ID: "Name", Label: "Name", Type: "Text"},
		}},
	}
}

func TestComputeMetrics(t *testing.T) {
	m := ComputeMetrics(reviewSchemas())

	require.Equal(t, 2, m.TotalTables)
	require.Equal(t, 4, m.TotalColumns)
	require.InDelta(t, 2.0, m.AvgColumnsPerTable, 0.001)
	require.Equal(t, 2, m.TotalRelationships)
}

func TestComputeMetrics_Empty(t *testing.T) {
	m := ComputeMetrics(nil)

	require.Zero(t, m.TotalTables)
	require.Zero(t, m.AvgColumnsPerTable)
}

func TestFindRelationships(t *testing.T) {
	rels := FindRelationships(reviewSchemas())

	require.Equal(t, []Relationship{
		{FromTable: "Orders", ToTable: "Customers", Kind: OneToMany, Column: "Customer"},
		{FromTable: "Orders", ToTable: "unknown", Kind: ManyToMany, Column: "Tags"},
	}, rels)
}

func TestFindRelationships_RefListWithTarget(t *testing.T) {
	schemas := map[string]TableSchema{
		"Projects": {TableID: "Projects", Columns: []Column{
			{ID: "Members", Label: "Members", Type: "RefList:People"},
		}},
	}

	rels := FindRelationships(schemas)

	require.Len(t, rels, 1)
	require.Equal(t, ManyToMany, rels[0].Kind)
	require.Equal(t, "People", rels[0].ToTable)
}

func TestFindRelationships_None(t *testing.T) {
	schemas := map[string]TableSchema{
		"Notes": {TableID: "Notes", Columns: []Column{{ID: "Text", Label: "Text", Type: "Text"}}},
	}
	require.Empty(t, FindRelationships(schemas))
}
