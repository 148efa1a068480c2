package postgres

import (
	"context"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/recall/store"
)

// ReplaceContentChunks deletes the existing chunks of a content row and inserts the new set.
func (d *DB) ReplaceContentChunks(ctx context.Context, contentID int64, chunks []*store.ContentChunk) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM content_chunk WHERE content_id = `+placeholder(1), contentID); err != nil {
		return errors.Wrap(err, "failed to delete content chunks")
	}

	stmt := `
		INSERT INTO content_chunk (content_id, app_id, user_id, chunk_index, body, embedding, model, created_ts)
		VALUES (` + placeholders(8) + `)
		RETURNING id
	`
	for _, chunk := range chunks {
		chunk.ContentID = contentID
		err := tx.QueryRowContext(ctx, stmt,
			chunk.ContentID,
			chunk.AppID,
			chunk.UserID,
			chunk.ChunkIndex,
			chunk.Text,
			pgvector.NewVector(chunk.Embedding),
			chunk.Model,
			chunk.CreatedTs,
		).Scan(&chunk.ID)
		if err != nil {
			return errors.Wrapf(err, "failed to insert chunk %d", chunk.ChunkIndex)
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit content chunks")
}

// VectorSearch performs vector similarity search using pgvector.
func (d *DB) VectorSearch(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.ChunkWithScore, error) {
	// The <=> operator computes cosine distance (1 - cosine_similarity),
	// so ordering by distance ascending yields the nearest chunks first.
	where, args := []string{}, []any{pgvector.NewVector(opts.Vector)}
	if opts.AppID != nil {
		where, args = append(where, "ch.app_id = "+placeholder(len(args)+1)), append(args, *opts.AppID)
	}
	if opts.UserID != nil {
		where, args = append(where, "ch.user_id = "+placeholder(len(args)+1)), append(args, *opts.UserID)
	}
	where, args = append(where, "1 - (ch.embedding <=> $1) > "+placeholder(len(args)+1)), append(args, opts.Threshold)
	args = append(args, opts.Limit)

	query := `
		SELECT
			ch.id, ch.content_id, ch.app_id, ch.user_id, ch.chunk_index, ch.body, ch.model, ch.created_ts,
			c.source, c.link,
			1 - (ch.embedding <=> $1) AS score
		FROM content_chunk ch
		INNER JOIN content c ON c.id = ch.content_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY ch.embedding <=> $1
		LIMIT ` + placeholder(len(args))

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}
	defer rows.Close()

	results := []*store.ChunkWithScore{}
	for rows.Next() {
		var chunk store.ContentChunk
		var result store.ChunkWithScore
		err := rows.Scan(
			&chunk.ID,
			&chunk.ContentID,
			&chunk.AppID,
			&chunk.UserID,
			&chunk.ChunkIndex,
			&chunk.Text,
			&chunk.Model,
			&chunk.CreatedTs,
			&result.Source,
			&result.Link,
			&result.Score,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan vector search result")
		}
		result.Chunk = &chunk
		results = append(results, &result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
