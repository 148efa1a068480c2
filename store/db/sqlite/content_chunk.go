package sqlite

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/recall/plugin/ai/vector"
	"github.com/hrygo/recall/store"
)

// ReplaceContentChunks deletes the existing chunks of a content row and inserts the new set.
func (d *DB) ReplaceContentChunks(ctx context.Context, contentID int64, chunks []*store.ContentChunk) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM content_chunk WHERE content_id = ?`, contentID); err != nil {
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
			encodeVector(chunk.Embedding),
			chunk.Model,
			chunk.CreatedTs,
		).Scan(&chunk.ID)
		if err != nil {
			return errors.Wrapf(err, "failed to insert chunk %d", chunk.ChunkIndex)
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit content chunks")
}

// VectorSearch scans the candidate chunks and ranks them by cosine similarity in Go.
func (d *DB) VectorSearch(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.ChunkWithScore, error) {
	where, args := []string{"1 = 1"}, []any{}
	if opts.AppID != nil {
		where, args = append(where, "ch.app_id = ?"), append(args, *opts.AppID)
	}
	if opts.UserID != nil {
		where, args = append(where, "ch.user_id = ?"), append(args, *opts.UserID)
	}

	query := `
		SELECT
			ch.id, ch.content_id, ch.app_id, ch.user_id, ch.chunk_index, ch.body, ch.model, ch.created_ts,
			c.source, c.link, ch.embedding
		FROM content_chunk ch
		INNER JOIN content c ON c.id = ch.content_id
		WHERE ` + strings.Join(where, " AND ")

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}
	defer rows.Close()

	results := []*store.ChunkWithScore{}
	for rows.Next() {
		var chunk store.ContentChunk
		var result store.ChunkWithScore
		var blob []byte
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
			&blob,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan vector search result")
		}
		embedding, err := decodeVector(blob)
		if err != nil {
			return nil, errors.Wrapf(err, "chunk %d", chunk.ID)
		}

		result.Score = vector.CosineSimilarity(opts.Vector, embedding)
		if result.Score <= opts.Threshold {
			continue
		}
		result.Chunk = &chunk
		results = append(results, &result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}
