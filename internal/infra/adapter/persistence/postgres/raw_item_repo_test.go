package postgres_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatfeed/internal/domain/entity"
	pg "threatfeed/internal/infra/adapter/persistence/postgres"
)

func TestRawItemRepo_SaveBatch_Empty(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := pg.NewRawItemRepo(db)
	n, err := repo.SaveBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRawItemRepo_SaveBatch_SkipsConflicts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := pg.NewRawItemRepo(db)

	items := []entity.RawItem{
		entity.NewRawItem(entity.Entry{SourceID: 1, Title: "A", Link: "https://x/a", PublishedAt: time.Now(), FetchedAt: time.Now()}),
		entity.NewRawItem(entity.Entry{SourceID: 1, Title: "B", Link: "https://x/b", PublishedAt: time.Now(), FetchedAt: time.Now()}),
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO raw_items"))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0)) // conflict -> no rows affected
	mock.ExpectCommit()

	n, err := repo.SaveBatch(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRawItemRepo_ExistsByContentHashBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := pg.NewRawItemRepo(db)

	rows := sqlmock.NewRows([]string{"content_hash"}).AddRow("hash1")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT content_hash FROM raw_items WHERE content_hash = ANY($1)")).
		WillReturnRows(rows)

	result, err := repo.ExistsByContentHashBatch(context.Background(), []string{"hash1", "hash2"})
	require.NoError(t, err)
	assert.True(t, result["hash1"])
	assert.False(t, result["hash2"])
}

func TestRawItemRepo_ExistsByContentHashBatch_Empty(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := pg.NewRawItemRepo(db)
	result, err := repo.ExistsByContentHashBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestRawItemRepo_Get_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := pg.NewRawItemRepo(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT uuid, source_id")).
		WithArgs("missing").
		WillReturnError(sqlmock.ErrCancelled)

	_, err = repo.Get(context.Background(), "missing")
	assert.Error(t, err)
}
