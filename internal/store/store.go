// Package store persists a one-row-per-request log of chat outcomes in
// SQLite, feeding the /stats endpoint. The database is opened lazily and
// created on first use; if opening or writing fails the store falls back to
// in-memory records so stats keep working for the process lifetime.
// Pipeline state itself is never persisted.
package store

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"gridchat/internal/logger"
)

// Record is one logged chat request outcome.
type Record struct {
	RequestID  string    `json:"request_id"`
	DocumentID string    `json:"document_id"`
	Plan       string    `json:"plan"`
	AgentUsed  string    `json:"agent_used"`
	HadError   bool      `json:"had_error"`
	CreatedAt  time.Time `json:"created_at"`
}

// Stats is the aggregate view served by /stats.
type Stats struct {
	TotalRequests int            `json:"total_requests"`
	PlanUsage     map[string]int `json:"plan_usage"`
	Errors        int            `json:"errors"`
	MostUsedPlan  string         `json:"most_used_plan"`
}

// RequestLog records request outcomes and answers aggregate queries.
type RequestLog struct {
	mu      sync.Mutex
	records []Record // in-memory fallback, always appended

	openOnce sync.Once
	db       *sql.DB
	openErr  error
	path     string
}

// New creates a request log backed by the SQLite file at path. The file is
// not opened until the first Save or Stats call.
func New(path string) *RequestLog {
	return &RequestLog{path: path}
}

func (l *RequestLog) open() {
	l.db, l.openErr = sql.Open("sqlite", "file:"+l.path+"?_busy_timeout=10000")
	if l.openErr != nil {
		logger.L.Warn("sqlite open failed; using in-memory request log", "error", l.openErr)
		return
	}
	if _, err := l.db.Exec(`CREATE TABLE IF NOT EXISTS requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT,
		document_id TEXT,
		plan TEXT,
		agent_used TEXT,
		had_error INTEGER,
		created_at DATETIME
	);`); err != nil {
		l.openErr = err
		logger.L.Warn("sqlite table creation failed; using in-memory request log", "error", err)
		return
	}
	logger.L.Info("request log initialized", "path", l.path)
}

// Save records one request outcome. Failures degrade to memory, never to
// the caller.
func (l *RequestLog) Save(rec Record) {
	l.openOnce.Do(l.open)

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	if l.openErr == nil && l.db != nil {
		_, err := l.db.Exec(
			`INSERT INTO requests (request_id, document_id, plan, agent_used, had_error, created_at) VALUES (?,?,?,?,?,?);`,
			rec.RequestID, rec.DocumentID, rec.Plan, rec.AgentUsed, rec.HadError, rec.CreatedAt,
		)
		if err != nil {
			logger.L.Error("failed to store request record; falling back to memory", "error", err)
		}
	}

	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()
}

// Stats aggregates the logged requests. When the DB is healthy the counts
// come from SQLite (surviving restarts); otherwise from memory.
func (l *RequestLog) Stats() Stats {
	l.openOnce.Do(l.open)

	if l.openErr == nil && l.db != nil {
		if stats, ok := l.dbStats(); ok {
			return stats
		}
	}
	return l.memStats()
}

func (l *RequestLog) dbStats() (Stats, bool) {
	stats := Stats{PlanUsage: map[string]int{}}

	rows, err := l.db.Query(`SELECT plan, COUNT(*), SUM(had_error) FROM requests GROUP BY plan;`)
	if err != nil {
		logger.L.Error("stats query failed; falling back to memory", "error", err)
		return Stats{}, false
	}
	defer rows.Close()

	for rows.Next() {
		var plan string
		var count, errs int
		if err := rows.Scan(&plan, &count, &errs); err != nil {
			return Stats{}, false
		}
		stats.PlanUsage[plan] = count
		stats.TotalRequests += count
		stats.Errors += errs
	}
	if err := rows.Err(); err != nil {
		// A query that dies mid-iteration must not pass off partial
		// counts as healthy.
		logger.L.Error("stats iteration failed; falling back to memory", "error", err)
		return Stats{}, false
	}
	stats.MostUsedPlan = mostUsed(stats.PlanUsage)
	return stats, true
}

func (l *RequestLog) memStats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Stats{PlanUsage: map[string]int{}}
	for _, rec := range l.records {
		stats.TotalRequests++
		stats.PlanUsage[rec.Plan]++
		if rec.HadError {
			stats.Errors++
		}
	}
	stats.MostUsedPlan = mostUsed(stats.PlanUsage)
	return stats
}

func mostUsed(usage map[string]int) string {
	best, bestCount := "none", 0
	for plan, count := range usage {
		if count > bestCount || (count == bestCount && best != "none" && plan < best) {
			best, bestCount = plan, count
		}
	}
	return best
}

// Close releases the underlying database, if one was opened.
func (l *RequestLog) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}
