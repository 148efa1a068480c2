package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/recall/plugin/ai/vector"
	"github.com/hrygo/recall/store"
)

const contentColumns = `c.id, c.app_id, c.user_id, c.source, c.external_id, c.content_type, c.body, c.link, c.created_ts, c.ingested_ts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContent(row rowScanner, extra ...any) (*store.Content, error) {
	var content store.Content
	dest := []any{
		&content.ID,
		&content.AppID,
		&content.UserID,
		&content.Source,
		&content.ExternalID,
		&content.ContentType,
		&content.Text,
		&content.Link,
		&content.CreatedTs,
		&content.IngestedTs,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &content, nil
}

// UpsertContent inserts or updates a content row keyed by (app_id, source, external_id).
func (d *DB) UpsertContent(ctx context.Context, upsert *store.Content) (*store.Content, error) {
	stmt := `
		INSERT INTO content (app_id, user_id, source, external_id, content_type, body, link, created_ts, ingested_ts)
		VALUES (` + placeholders(9) + `)
		ON CONFLICT (app_id, source, external_id)
		DO UPDATE SET
			user_id = excluded.user_id,
			content_type = excluded.content_type,
			body = excluded.body,
			link = excluded.link,
			created_ts = COALESCE(excluded.created_ts, content.created_ts),
			ingested_ts = excluded.ingested_ts,
			embedding = CASE WHEN content.body = excluded.body THEN content.embedding ELSE NULL END
		RETURNING id, created_ts
	`
	err := d.db.QueryRowContext(ctx, stmt,
		upsert.AppID,
		upsert.UserID,
		string(upsert.Source),
		upsert.ExternalID,
		string(upsert.ContentType),
		upsert.Text,
		upsert.Link,
		upsert.CreatedTs,
		upsert.IngestedTs,
	).Scan(&upsert.ID, &upsert.CreatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert content")
	}
	return upsert, nil
}

// ListContents lists content rows.
func (d *DB) ListContents(ctx context.Context, find *store.FindContent) ([]*store.Content, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "c.id = ?"), append(args, *find.ID)
	}
	if find.AppID != nil {
		where, args = append(where, "c.app_id = ?"), append(args, *find.AppID)
	}
	if find.Source != nil {
		where, args = append(where, "c.source = ?"), append(args, string(*find.Source))
	}
	if find.ExternalID != nil {
		where, args = append(where, "c.external_id = ?"), append(args, *find.ExternalID)
	}

	query := `SELECT ` + contentColumns + ` FROM content c WHERE ` + strings.Join(where, " AND ") + ` ORDER BY c.created_ts DESC NULLS LAST, c.id DESC`
	if find.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", find.Limit)
	}
	return d.queryContents(ctx, query, args...)
}

// ListContentInWindow returns rows whose created_ts falls in the window plus every undated row.
func (d *DB) ListContentInWindow(ctx context.Context, window *store.ListContentWindow) ([]*store.Content, error) {
	where := []string{
		"c.app_id = ?",
		"((c.created_ts BETWEEN ? AND ?) OR c.created_ts IS NULL)",
	}
	args := []any{window.AppID, window.Start.Unix(), window.End.Unix()}
	if cond, condArgs := sourceFilter("c.source", window.Sources); cond != "" {
		where, args = append(where, cond), append(args, condArgs...)
	}
	args = append(args, window.Limit)

	query := `
		SELECT ` + contentColumns + `
		FROM content c
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY c.created_ts DESC NULLS LAST, c.id DESC
		LIMIT ?`
	return d.queryContents(ctx, query, args...)
}

// UpdateContentEmbedding stores the whole-document embedding.
func (d *DB) UpdateContentEmbedding(ctx context.Context, id int64, embedding []float32) error {
	result, err := d.db.ExecContext(ctx, `UPDATE content SET embedding = ? WHERE id = ?`, encodeVector(embedding), id)
	if err != nil {
		return errors.Wrap(err, "failed to update content embedding")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.Errorf("content with id %d not found", id)
	}
	return nil
}

// FindContentsWithoutEmbedding finds non-empty content rows that have no embedding yet.
func (d *DB) FindContentsWithoutEmbedding(ctx context.Context, find *store.FindContentsWithoutEmbedding) ([]*store.Content, error) {
	where, args := []string{"c.embedding IS NULL", "LENGTH(c.body) > 0"}, []any{}
	if find.AppID != nil {
		where, args = append(where, "c.app_id = ?"), append(args, *find.AppID)
	}
	args = append(args, find.Limit)

	query := `
		SELECT ` + contentColumns + `
		FROM content c
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY c.ingested_ts DESC, c.id DESC
		LIMIT ?`
	return d.queryContents(ctx, query, args...)
}

// DeleteContent deletes a content row and its chunks.
func (d *DB) DeleteContent(ctx context.Context, id int64) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM content_chunk WHERE content_id = ?`, id); err != nil {
		return errors.Wrap(err, "failed to delete content chunks")
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM content WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete content")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.Errorf("content with id %d not found", id)
	}
	return errors.Wrap(tx.Commit(), "failed to commit delete")
}

// HybridSearch scores every embedded row of the app in Go with the same formula the
// PostgreSQL driver evaluates in SQL.
func (d *DB) HybridSearch(ctx context.Context, opts *store.HybridSearchOptions) ([]*store.ContentWithScore, error) {
	where, args := []string{"c.app_id = ?", "c.embedding IS NOT NULL"}, []any{opts.AppID}
	if cond, condArgs := sourceFilter("c.source", opts.Sources); cond != "" {
		where, args = append(where, cond), append(args, condArgs...)
	}

	query := `SELECT ` + contentColumns + `, c.embedding FROM content c WHERE ` + strings.Join(where, " AND ")
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hybrid search")
	}
	defer rows.Close()

	results := []*store.ContentWithScore{}
	for rows.Next() {
		var blob []byte
		content, err := scanContent(rows, &blob)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan hybrid search row")
		}
		embedding, err := decodeVector(blob)
		if err != nil {
			return nil, errors.Wrapf(err, "content %d", content.ID)
		}

		tier := vector.KeywordTier(content.Text, opts.Keyword)
		similarity := vector.CosineSimilarity(opts.Vector, embedding)
		if tier == 0 && similarity < opts.MinVectorScore {
			continue
		}
		results = append(results, &store.ContentWithScore{
			Content: content,
			Score:   vector.HybridScore(tier, similarity, opts.KeywordWeight, opts.VectorWeight),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortScored(results)
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// FullTextSearch is a LIKE based search requiring every query word.
// Rows are scored with the keyword tier so scores stay in [0, 1].
func (d *DB) FullTextSearch(ctx context.Context, opts *store.FullTextSearchOptions) ([]*store.ContentWithScore, error) {
	words := strings.Fields(opts.Query)
	if len(words) == 0 {
		return []*store.ContentWithScore{}, nil
	}

	where, args := []string{"c.app_id = ?"}, []any{opts.AppID}
	for _, word := range words {
		where, args = append(where, `c.body LIKE ? ESCAPE '\'`), append(args, "%"+escapeLike(word)+"%")
	}
	if cond, condArgs := sourceFilter("c.source", opts.Sources); cond != "" {
		where, args = append(where, cond), append(args, condArgs...)
	}

	query := `SELECT ` + contentColumns + ` FROM content c WHERE ` + strings.Join(where, " AND ")
	contents, err := d.queryContents(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to full-text search")
	}

	results := make([]*store.ContentWithScore, 0, len(contents))
	for _, content := range contents {
		score := vector.KeywordTier(content.Text, opts.Query)
		if score == 0 {
			// LIKE is ASCII case-insensitive only; a single-word hit still counts as partial.
			score = vector.PartialKeywordScore
		}
		results = append(results, &store.ContentWithScore{Content: content, Score: score})
	}
	sortScored(results)
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// sortScored orders by score desc, then created_ts desc with undated rows last, then id desc.
func sortScored(results []*store.ContentWithScore) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		switch {
		case a.Content.CreatedTs == nil && b.Content.CreatedTs == nil:
		case a.Content.CreatedTs == nil:
			return false
		case b.Content.CreatedTs == nil:
			return true
		case *a.Content.CreatedTs != *b.Content.CreatedTs:
			return *a.Content.CreatedTs > *b.Content.CreatedTs
		}
		return a.Content.ID > b.Content.ID
	})
}

func (d *DB) queryContents(ctx context.Context, query string, args ...any) ([]*store.Content, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list content")
	}
	defer rows.Close()

	list := []*store.Content{}
	for rows.Next() {
		content, err := scanContent(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan content")
		}
		list = append(list, content)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
