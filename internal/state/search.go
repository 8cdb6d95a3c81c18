package state

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/ShayCichocki/taskhunter/pkg/models"
)

// SearchHit is a task matched by full-text search together with its bm25
// rank (lower is better, as reported by FTS5).
type SearchHit struct {
	Task models.Task
	Rank float64
}

// SearchTasks performs a full-text search over task content, restricted to
// tasks in the given statuses. Any term of text may match; results are
// ordered by bm25 rank. Text without searchable terms returns no hits.
func SearchTasks(ctx context.Context, q Querier, text string, statuses []models.TaskStatus, limit int) ([]SearchHit, error) {
	match := MatchQuery(text)
	if match == "" || len(statuses) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = -1
	}

	placeholders := make([]string, len(statuses))
	args := []any{match}
	for i, s := range statuses {
		placeholders[i] = "?"
		args = append(args, string(s))
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT t.id, t.content, t.status, t.priority, t.created_at, t.updated_at, t.metadata, bm25(tasks_fts)
		FROM tasks_fts
		JOIN tasks t ON t.id = tasks_fts.rowid
		WHERE tasks_fts MATCH ? AND t.status IN (%s)
		ORDER BY bm25(tasks_fts) ASC, t.id ASC
		LIMIT ?
	`, strings.Join(placeholders, ", "))

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("search tasks", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var hit SearchHit
		t, err := scanTask(rankScanner{row: rows, rank: &hit.Rank})
		if err != nil {
			return nil, storeErr("scan search hit", err)
		}
		hit.Task = *t
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("search tasks", err)
	}
	return hits, nil
}

// MatchQuery turns free text into an FTS5 query that matches any of its
// terms. Every term is quoted so user text cannot inject FTS5 syntax.
func MatchQuery(text string) string {
	seen := make(map[string]bool)
	var terms []string
	for _, term := range Terms(text) {
		if seen[term] {
			continue
		}
		seen[term] = true
		terms = append(terms, `"`+term+`"`)
	}
	return strings.Join(terms, " OR ")
}

// Terms splits text into lower-cased letter/digit runs of at least two
// characters, matching how the FTS5 unicode61 tokenizer sees content.
func Terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			terms = append(terms, f)
		}
	}
	return terms
}

// rankScanner appends the rank column to a task scan.
type rankScanner struct {
	row  rowScanner
	rank *float64
}

func (r rankScanner) Scan(dest ...any) error {
	return r.row.Scan(append(dest, r.rank)...)
}
