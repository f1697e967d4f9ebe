package docs

import (
	"regexp"
	"strings"
)

// Query extraction is a best-effort text heuristic kept behind this one
// function so it can be hardened without touching the pipeline.

var (
	fencedSQLRe = regexp.MustCompile("(?is)```sql\\s*(.*?)\\s*```")
	bareSQLRe   = regexp.MustCompile(`(?is)(SELECT\s+.*?)(?:\n\n|\z)`)
)

// ExtractQuery pulls a SQL statement out of an unstructured LLM reply.
// A fenced ```sql block wins; otherwise the first bare SELECT is taken.
func ExtractQuery(text string) (string, bool) {
	if m := fencedSQLRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := bareSQLRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}
