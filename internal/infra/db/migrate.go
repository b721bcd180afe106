package db

import (
	"database/sql"
	_ "embed"
)

//go:embed seeds/sources.sql
var seedSourcesSQL string

// MigrateUp creates the schema this pipeline needs: the feed catalogue
// (sources), the raw ingestion audit trail (raw_items), and the enriched
// alerts table with its embedded pgvector column (alerts). Statements are
// idempotent (IF NOT EXISTS / conditional constraint checks) so MigrateUp is
// safe to run on every startup, matching the teacher's migrate.go.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS sources (
    id              SERIAL PRIMARY KEY,
    name            TEXT NOT NULL,
    feed_url        TEXT NOT NULL UNIQUE,
    country         TEXT,
    last_crawled_at TIMESTAMPTZ,
    active          BOOLEAN DEFAULT TRUE
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS raw_items (
    uuid         CHAR(40) PRIMARY KEY,
    source_id    INTEGER REFERENCES sources(id),
    title        TEXT NOT NULL,
    link         TEXT NOT NULL,
    summary      TEXT,
    content_hash CHAR(32) NOT NULL UNIQUE,
    tags         TEXT[] NOT NULL DEFAULT '{}',
    published_at TIMESTAMPTZ,
    fetched_at   TIMESTAMPTZ,
    created_at   TIMESTAMPTZ DEFAULT now()
)`); err != nil {
		return err
	}

	_, _ = db.Exec(`CREATE EXTENSION IF NOT EXISTS vector`)

	// embedding is fixed at 1536 dims (OpenAI text-embedding-ada-002, the
	// model enrich.OpenAIEmbedder uses); a different provider/model
	// combination would need a separate table.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS alerts (
    uuid            CHAR(40) PRIMARY KEY,
    source_id       INTEGER REFERENCES sources(id),
    title           TEXT NOT NULL,
    link            TEXT NOT NULL,
    summary         TEXT,
    tags            TEXT[] NOT NULL DEFAULT '{}',
    lat             DOUBLE PRECISION,
    lon             DOUBLE PRECISION,
    country         TEXT,
    location_method VARCHAR(20) NOT NULL,
    category        TEXT,
    subcategory     TEXT,
    threat_label    TEXT,
    score           DOUBLE PRECISION NOT NULL,
    confidence      DOUBLE PRECISION NOT NULL,
    reasoning       TEXT,
    embedding       vector(1536),
    published_at    TIMESTAMPTZ,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT chk_alerts_has_location CHECK (
        (lat IS NOT NULL AND lon IS NOT NULL) OR country IS NOT NULL
    )
)`); err != nil {
		return err
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_sources_active ON sources(active) WHERE active = TRUE`,
		`CREATE INDEX IF NOT EXISTS idx_raw_items_source_id ON raw_items(source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_raw_items_published_at ON raw_items(published_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_source_id ON alerts(source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_published_at ON alerts(published_at DESC)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	// IVFFlat vector index for semantic-dedup similarity search; ignored if
	// pgvector isn't available (matches teacher's tolerant-of-missing-extension
	// pattern for ivfflat indexes).
	_, _ = db.Exec(`
CREATE INDEX IF NOT EXISTS idx_alerts_embedding
    ON alerts USING ivfflat (embedding vector_cosine_ops)
    WITH (lists = 100)`)

	if _, err := db.Exec(seedSourcesSQL); err != nil {
		return err
	}

	return nil
}

// MigrateDown drops the pipeline-owned tables. Use with caution: this
// deletes all ingested data.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP INDEX IF EXISTS idx_alerts_embedding`,
		`DROP TABLE IF EXISTS alerts CASCADE`,
		`DROP TABLE IF EXISTS raw_items CASCADE`,
	}
	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	// sources and the vector extension are left in place: sources may still
	// be referenced by operational tooling, and the extension may back other
	// tables.
	return nil
}
