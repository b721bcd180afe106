package postgres_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatfeed/internal/domain/entity"
	pg "threatfeed/internal/infra/adapter/persistence/postgres"
)

func TestEnrichedAlertRepo_Save_RejectsMissingLocation(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := pg.NewEnrichedAlertRepo(db)
	alert := &entity.EnrichedAlert{UUID: "u1", Title: "x"}

	err = repo.Save(context.Background(), alert)
	assert.ErrorIs(t, err, entity.ErrMissingLocation)
}

func TestEnrichedAlertRepo_Save_RejectsScoreOutOfRange(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := pg.NewEnrichedAlertRepo(db)
	alert := &entity.EnrichedAlert{UUID: "u1", Country: "Morocco", Score: 500, Confidence: 0.6}

	err = repo.Save(context.Background(), alert)
	assert.ErrorIs(t, err, entity.ErrScoreOutOfRange)
}

func TestEnrichedAlertRepo_Save_Upsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := pg.NewEnrichedAlertRepo(db)
	country := "Morocco"
	alert := &entity.EnrichedAlert{
		UUID:        "u1",
		Title:       "Checkpoint closed",
		Link:        "https://x/1",
		Country:     country,
		Tags:        []string{"checkpoint"},
		Score:       0.8,
		Confidence:  0.6,
		PublishedAt: time.Now(),
	}

	now := time.Now()
	rows := sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO alerts")).WillReturnRows(rows)

	err = repo.Save(context.Background(), alert)
	require.NoError(t, err)
	assert.Equal(t, now, alert.CreatedAt)
}

func TestEnrichedAlertRepo_Get_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := pg.NewEnrichedAlertRepo(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT uuid, source_id")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	got, err := repo.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}
