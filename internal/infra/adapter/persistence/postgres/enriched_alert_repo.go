package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"threatfeed/internal/domain/entity"
	"threatfeed/internal/repository"

	"github.com/pgvector/pgvector-go"
)

// DefaultSearchTimeout bounds the semantic-dedup similarity query so a slow
// index scan cannot stall a pipeline cycle.
const DefaultSearchTimeout = 5 * time.Second

// EnrichedAlertRepo implements EnrichedAlertRepository for PostgreSQL,
// storing the alert's embedding directly on the alerts row (a single table,
// unlike the teacher's separate article_embeddings table) since an
// EnrichedAlert carries exactly one embedding used for one purpose: semantic
// dedup against past alerts.
type EnrichedAlertRepo struct {
	db *sql.DB
}

func NewEnrichedAlertRepo(db *sql.DB) repository.EnrichedAlertRepository {
	return &EnrichedAlertRepo{db: db}
}

func (repo *EnrichedAlertRepo) Save(ctx context.Context, alert *entity.EnrichedAlert) error {
	if alert == nil {
		return fmt.Errorf("Save: alert is nil")
	}
	if !alert.HasLocation() {
		return fmt.Errorf("Save: %w", entity.ErrMissingLocation)
	}
	if !alert.ScoreInRange() {
		return fmt.Errorf("Save: %w", entity.ErrScoreOutOfRange)
	}

	vector := pgvector.NewVector(alert.Embedding)

	const query = `
INSERT INTO alerts
       (uuid, source_id, title, link, summary, tags, lat, lon, country, location_method,
        category, subcategory, threat_label, score, confidence, reasoning, embedding,
        published_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
        $11, $12, $13, $14, $15, $16, $17,
        $18, now(), now())
ON CONFLICT (uuid) DO UPDATE SET
       tags            = EXCLUDED.tags,
       lat             = EXCLUDED.lat,
       lon             = EXCLUDED.lon,
       country         = EXCLUDED.country,
       location_method = EXCLUDED.location_method,
       category        = EXCLUDED.category,
       subcategory     = EXCLUDED.subcategory,
       threat_label    = EXCLUDED.threat_label,
       score           = EXCLUDED.score,
       confidence      = EXCLUDED.confidence,
       reasoning       = EXCLUDED.reasoning,
       embedding       = EXCLUDED.embedding,
       updated_at      = now()
RETURNING created_at, updated_at`

	err := repo.db.QueryRowContext(ctx, query,
		alert.UUID, alert.SourceID, alert.Title, alert.Link, alert.Summary,
		alert.Tags, alert.Lat, alert.Lon, alert.Country, string(alert.LocationMethod),
		alert.Category, alert.Subcategory, alert.ThreatLabel, alert.Score, alert.Confidence, alert.Reasoning, vector,
		alert.PublishedAt,
	).Scan(&alert.CreatedAt, &alert.UpdatedAt)
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}

func (repo *EnrichedAlertRepo) Get(ctx context.Context, uuid string) (*entity.EnrichedAlert, error) {
	const query = `
SELECT uuid, source_id, title, link, summary, tags, lat, lon, country, location_method,
       category, subcategory, threat_label, score, confidence, reasoning, embedding,
       published_at, created_at, updated_at
FROM alerts
WHERE uuid = $1
LIMIT 1`

	var a entity.EnrichedAlert
	var locationMethod string
	var vector pgvector.Vector
	err := repo.db.QueryRowContext(ctx, query, uuid).Scan(
		&a.UUID, &a.SourceID, &a.Title, &a.Link, &a.Summary, &a.Tags,
		&a.Lat, &a.Lon, &a.Country, &locationMethod,
		&a.Category, &a.Subcategory, &a.ThreatLabel, &a.Score, &a.Confidence, &a.Reasoning, &vector,
		&a.PublishedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	a.LocationMethod = entity.LocationMethod(locationMethod)
	a.Embedding = vector.Slice()
	return &a, nil
}

// SearchSimilar finds past alerts whose embedding is within cosine distance
// of the query vector, ordered by similarity descending (teacher's
// cosine-distance `<=>` operator pattern from article_embeddings).
func (repo *EnrichedAlertRepo) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]repository.SimilarAlert, error) {
	searchCtx, cancel := context.WithTimeout(ctx, DefaultSearchTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	vector := pgvector.NewVector(embedding)

	const query = `
SELECT uuid, 1 - (embedding <=> $1) AS similarity
FROM alerts
ORDER BY embedding <=> $1
LIMIT $2`

	rows, err := repo.db.QueryContext(searchCtx, query, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("SearchSimilar: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]repository.SimilarAlert, 0, limit)
	for rows.Next() {
		var r repository.SimilarAlert
		if err := rows.Scan(&r.UUID, &r.Similarity); err != nil {
			return nil, fmt.Errorf("SearchSimilar: Scan: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
