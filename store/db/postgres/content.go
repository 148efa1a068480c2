package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

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
// A changed body clears the stored embedding so the backfill runner picks the row up again.
func (d *DB) UpsertContent(ctx context.Context, upsert *store.Content) (*store.Content, error) {
	stmt := `
		INSERT INTO content (app_id, user_id, source, external_id, content_type, body, link, created_ts, ingested_ts)
		VALUES (` + placeholders(9) + `)
		ON CONFLICT (app_id, source, external_id)
		DO UPDATE SET
			user_id = EXCLUDED.user_id,
			content_type = EXCLUDED.content_type,
			body = EXCLUDED.body,
			link = EXCLUDED.link,
			created_ts = COALESCE(EXCLUDED.created_ts, content.created_ts),
			ingested_ts = EXCLUDED.ingested_ts,
			embedding = CASE WHEN content.body = EXCLUDED.body THEN content.embedding ELSE NULL END
		RETURNING id, created_ts
	`
	err := d.db.QueryRowContext(ctx, stmt,
		upsert.AppID,
		upsert.UserID,
		upsert.Source,
		upsert.ExternalID,
		upsert.ContentType,
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
		where, args = append(where, "c.id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.AppID != nil {
		where, args = append(where, "c.app_id = "+placeholder(len(args)+1)), append(args, *find.AppID)
	}
	if find.Source != nil {
		where, args = append(where, "c.source = "+placeholder(len(args)+1)), append(args, *find.Source)
	}
	if find.ExternalID != nil {
		where, args = append(where, "c.external_id = "+placeholder(len(args)+1)), append(args, *find.ExternalID)
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
		"c.app_id = " + placeholder(1),
		"((c.created_ts BETWEEN " + placeholder(2) + " AND " + placeholder(3) + ") OR c.created_ts IS NULL)",
	}
	args := []any{window.AppID, window.Start.Unix(), window.End.Unix()}
	if len(window.Sources) > 0 {
		where, args = append(where, "c.source = ANY("+placeholder(len(args)+1)+")"), append(args, pq.Array(sourceStrings(window.Sources)))
	}
	args = append(args, window.Limit)

	query := `
		SELECT ` + contentColumns + `
		FROM content c
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY c.created_ts DESC NULLS LAST, c.id DESC
		LIMIT ` + placeholder(len(args))

	return d.queryContents(ctx, query, args...)
}

// UpdateContentEmbedding stores the whole-document embedding.
func (d *DB) UpdateContentEmbedding(ctx context.Context, id int64, embedding []float32) error {
	stmt := `UPDATE content SET embedding = ` + placeholder(1) + ` WHERE id = ` + placeholder(2)
	result, err := d.db.ExecContext(ctx, stmt, pgvector.NewVector(embedding), id)
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
		where, args = append(where, "c.app_id = "+placeholder(len(args)+1)), append(args, *find.AppID)
	}
	args = append(args, find.Limit)

	query := `
		SELECT ` + contentColumns + `
		FROM content c
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY c.ingested_ts DESC, c.id DESC
		LIMIT ` + placeholder(len(args))

	return d.queryContents(ctx, query, args...)
}

// DeleteContent deletes a content row. Chunks are removed by ON DELETE CASCADE.
func (d *DB) DeleteContent(ctx context.Context, id int64) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM content WHERE id = `+placeholder(1), id)
	if err != nil {
		return errors.Wrap(err, "failed to delete content")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.Errorf("content with id %d not found", id)
	}
	return nil
}

// HybridSearch scores rows as keyword_tier * keyword_weight + (1 - cosine distance) * vector_weight.
//
// keyword_tier is 1.0 when the whole keyword occurs in the body, 0.8 when every keyword
// word occurs somewhere in the body, and 0 otherwise. Ties sort newest first, undated last.
func (d *DB) HybridSearch(ctx context.Context, opts *store.HybridSearchOptions) ([]*store.ContentWithScore, error) {
	keyword := strings.ToLower(strings.TrimSpace(opts.Keyword))
	words := strings.Fields(keyword)

	args := []any{
		pgvector.NewVector(opts.Vector),
		opts.AppID,
		keyword,
		pq.Array(words),
		opts.KeywordWeight,
		opts.VectorWeight,
		opts.MinVectorScore,
	}
	filter := ""
	if len(opts.Sources) > 0 {
		args = append(args, pq.Array(sourceStrings(opts.Sources)))
		filter = " AND c.source = ANY(" + placeholder(len(args)) + ")"
	}
	args = append(args, opts.Limit)

	query := `
		WITH scored AS (
			SELECT ` + contentColumns + `,
				CASE
					WHEN $3::text <> '' AND position($3::text IN lower(c.body)) > 0 THEN 1.0
					WHEN cardinality($4::text[]) > 1 AND NOT EXISTS (
						SELECT 1 FROM unnest($4::text[]) AS w(word) WHERE position(w.word IN lower(c.body)) = 0
					) THEN 0.8
					ELSE 0.0
				END AS keyword_score,
				1 - (c.embedding <=> $1) AS vector_score
			FROM content c
			WHERE c.app_id = $2
				AND c.embedding IS NOT NULL` + filter + `
		)
		SELECT id, app_id, user_id, source, external_id, content_type, body, link, created_ts, ingested_ts,
			keyword_score * $5 + vector_score * $6 AS score
		FROM scored
		WHERE keyword_score > 0 OR vector_score >= $7
		ORDER BY score DESC, created_ts DESC NULLS LAST, id DESC
		LIMIT ` + placeholder(len(args))

	return d.queryScoredContents(ctx, query, args...)
}

// FullTextSearch ranks rows by ts_rank over the generated tsvector column.
// Rank normalization 32 maps scores into [0, 1).
func (d *DB) FullTextSearch(ctx context.Context, opts *store.FullTextSearchOptions) ([]*store.ContentWithScore, error) {
	args := []any{opts.Query, opts.AppID}
	filter := ""
	if len(opts.Sources) > 0 {
		args = append(args, pq.Array(sourceStrings(opts.Sources)))
		filter = " AND c.source = ANY(" + placeholder(len(args)) + ")"
	}
	args = append(args, opts.Limit)

	query := `
		SELECT ` + contentColumns + `,
			ts_rank(c.tsv, plainto_tsquery('simple', $1), 32) AS score
		FROM content c
		WHERE c.app_id = $2
			AND c.tsv @@ plainto_tsquery('simple', $1)` + filter + `
		ORDER BY score DESC, c.created_ts DESC NULLS LAST, c.id DESC
		LIMIT ` + placeholder(len(args))

	return d.queryScoredContents(ctx, query, args...)
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

func (d *DB) queryScoredContents(ctx context.Context, query string, args ...any) ([]*store.ContentWithScore, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search content")
	}
	defer rows.Close()

	results := []*store.ContentWithScore{}
	for rows.Next() {
		var score float64
		content, err := scanContent(rows, &score)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan search result")
		}
		results = append(results, &store.ContentWithScore{Content: content, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
