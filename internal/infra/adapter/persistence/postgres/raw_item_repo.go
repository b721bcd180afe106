package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"threatfeed/internal/domain/entity"
	"threatfeed/internal/repository"
)

// RawItemRepo persists every entry that survives fetch, keyed by its
// content_hash so re-ingesting the same (title, link) pair across cycles is
// a no-op rather than a duplicate row.
type RawItemRepo struct{ db *sql.DB }

func NewRawItemRepo(db *sql.DB) repository.RawItemRepository {
	return &RawItemRepo{db: db}
}

// SaveBatch inserts items in a single statement; rows whose content_hash
// collides with an existing row are silently skipped. Returns how many rows
// were actually inserted so the orchestrator can report per-cycle stats.
func (repo *RawItemRepo) SaveBatch(ctx context.Context, items []entity.RawItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("SaveBatch: BeginTx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
INSERT INTO raw_items
       (uuid, source_id, title, link, summary, content_hash, tags, published_at, fetched_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
ON CONFLICT (content_hash) DO NOTHING`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("SaveBatch: Prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for _, item := range items {
		tags := item.Tags
		if tags == nil {
			tags = []string{}
		}
		res, err := stmt.ExecContext(ctx,
			item.UUID, item.SourceID, item.Title, item.Link,
			item.Summary, item.ContentHash, tags, item.PublishedAt, item.FetchedAt,
		)
		if err != nil {
			return inserted, fmt.Errorf("SaveBatch: Exec: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("SaveBatch: Commit: %w", err)
	}
	return inserted, nil
}

// ExistsByContentHashBatch resolves which of the given content hashes are
// already present, in one round trip (the teacher's ExistsByURLBatch shape,
// generalized to the content-hash key this pipeline dedups on).
func (repo *RawItemRepo) ExistsByContentHashBatch(ctx context.Context, hashes []string) (map[string]bool, error) {
	if len(hashes) == 0 {
		return make(map[string]bool), nil
	}

	const query = `SELECT content_hash FROM raw_items WHERE content_hash = ANY($1)`
	rows, err := repo.db.QueryContext(ctx, query, hashes)
	if err != nil {
		return nil, fmt.Errorf("ExistsByContentHashBatch: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]bool, len(hashes))
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("ExistsByContentHashBatch: Scan: %w", err)
		}
		result[hash] = true
	}
	return result, rows.Err()
}

func (repo *RawItemRepo) Get(ctx context.Context, uuid string) (*entity.RawItem, error) {
	const query = `
SELECT uuid, source_id, title, link, summary, content_hash, tags, published_at, fetched_at, created_at
FROM raw_items
WHERE uuid = $1
LIMIT 1`
	var item entity.RawItem
	err := repo.db.QueryRowContext(ctx, query, uuid).Scan(
		&item.UUID, &item.SourceID, &item.Title, &item.Link,
		&item.Summary, &item.ContentHash, &item.Tags, &item.PublishedAt, &item.FetchedAt, &item.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &item, nil
}
