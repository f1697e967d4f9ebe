package docs

// Structural analysis of a document: aggregate metrics plus the
// reference-column relationships detected between tables. Pure functions
// over fetched schemas; no network.

// RelationshipKind classifies a reference column by cardinality.
type RelationshipKind string

const (
	OneToMany  RelationshipKind = "one-to-many"
	ManyToMany RelationshipKind = "many-to-many"
)

// Relationship is one detected reference column. The docs API does not
// always expose the target table, so ToTable may be "unknown".
type Relationship struct {
	FromTable string           `json:"from_table"`
	ToTable   string           `json:"to_table"`
	Kind      RelationshipKind `json:"kind"`
	Column    string           `json:"column"`
}

// StructureMetrics are simple aggregates over a document's schemas.
type StructureMetrics struct {
	TotalTables        int     `json:"total_tables"`
	TotalColumns       int     `json:"total_columns"`
	AvgColumnsPerTable float64 `json:"avg_columns_per_table"`
	TotalRelationships int     `json:"total_relationships"`
}

// StructureAnalysis is the full result of a structure review.
type StructureAnalysis struct {
	DocumentID      string           `json:"document_id"`
	Metrics         StructureMetrics `json:"metrics"`
	Relationships   []Relationship   `json:"relationships"`
	Recommendations []string         `json:"recommendations"`
}

// ComputeMetrics derives aggregate metrics from schemas.
func ComputeMetrics(schemas map[string]TableSchema) StructureMetrics {
	m := StructureMetrics{TotalTables: len(schemas)}
	for _, schema := range schemas {
		m.TotalColumns += len(schema.Columns)
		for _, col := range schema.Columns {
			if col.IsReference() {
				m.TotalRelationships++
			}
		}
	}
	if m.TotalTables > 0 {
		m.AvgColumnsPerTable = float64(m.TotalColumns) / float64(m.TotalTables)
	}
	return m
}

// FindRelationships detects reference columns across all tables. A
// single-valued Reference column is one-to-many; a RefList column holds
// multiple targets and is classified many-to-many.
func FindRelationships(schemas map[string]TableSchema) []Relationship {
	var rels []Relationship
	for _, tableID := range sortedKeys(schemas) {
		for _, col := range schemas[tableID].Columns {
			switch {
			case hasTypePrefix(col.Type, TypeReferenceList):
				rels = append(rels, Relationship{
					FromTable: tableID,
					ToTable:   referenceTarget(col.Type),
					Kind:      ManyToMany,
					Column:    col.Label,
				})
			case hasTypePrefix(col.Type, TypeReference):
				rels = append(rels, Relationship{
					FromTable: tableID,
					ToTable:   referenceTarget(col.Type),
					Kind:      OneToMany,
					Column:    col.Label,
				})
			}
		}
	}
	return rels
}

func hasTypePrefix(colType, want string) bool {
	return colType == want || len(colType) > len(want) && colType[:len(want)+1] == want+":"
}

// referenceTarget extracts the target table from tags like "Reference:Orders".
func referenceTarget(colType string) string {
	for i := 0; i < len(colType); i++ {
		if colType[i] == ':' {
			return colType[i+1:]
		}
	}
	return "unknown"
}
