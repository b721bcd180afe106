package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"threatfeed/internal/domain/entity"
	"threatfeed/internal/repository"
)

type SourceRepo struct{ db *sql.DB }

func NewSourceRepo(db *sql.DB) repository.SourceRepository {
	return &SourceRepo{db: db}
}

func scanSource(rows *sql.Rows) (*entity.Source, error) {
	var source entity.Source
	if err := rows.Scan(
		&source.ID, &source.Name, &source.FeedURL, &source.Country, &source.LastCrawledAt, &source.Active,
	); err != nil {
		return nil, err
	}
	return &source, nil
}

func (repo *SourceRepo) Get(ctx context.Context, id int64) (*entity.Source, error) {
	const query = `
SELECT id, name, feed_url, country, last_crawled_at, active
FROM sources
WHERE id = $1
LIMIT 1`
	var source entity.Source
	err := repo.db.QueryRowContext(ctx, query, id).Scan(
		&source.ID, &source.Name, &source.FeedURL, &source.Country, &source.LastCrawledAt, &source.Active,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &source, nil
}

func (repo *SourceRepo) ListActive(ctx context.Context) ([]*entity.Source, error) {
	const query = `
SELECT id, name, feed_url, country, last_crawled_at, active
FROM sources
WHERE active = TRUE
ORDER BY id ASC`
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ListActive: %w", err)
	}
	defer func() { _ = rows.Close() }()

	activeSources := make([]*entity.Source, 0, 50)
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("ListActive: %w", err)
		}
		activeSources = append(activeSources, source)
	}
	return activeSources, rows.Err()
}

func (repo *SourceRepo) TouchCrawledAt(ctx context.Context, id int64, t time.Time) error {
	const query = `UPDATE sources SET last_crawled_at = $1 WHERE id = $2`
	_, err := repo.db.ExecContext(ctx, query, t, id)
	return err
}
