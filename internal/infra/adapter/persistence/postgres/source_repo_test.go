package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatfeed/internal/domain/entity"
	"threatfeed/internal/infra/adapter/persistence/postgres"
)

func row(src *entity.Source) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "feed_url", "country", "last_crawled_at", "active",
	}).AddRow(
		src.ID, src.Name, src.FeedURL, src.Country, src.LastCrawledAt, src.Active,
	)
}

func TestSourceRepo_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	now := time.Now()
	want := &entity.Source{
		ID: 1, Name: "OSINT Feed", FeedURL: "https://example.com/feed",
		Country: "Morocco", LastCrawledAt: &now, Active: true,
	}

	mock.ExpectQuery("SELECT id, name, feed_url").
		WithArgs(int64(1)).
		WillReturnRows(row(want))

	repo := postgres.NewSourceRepo(db)
	got, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.FeedURL, got.FeedURL)
	assert.Equal(t, want.Country, got.Country)
}

func TestSourceRepo_Get_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT id, name, feed_url").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "feed_url", "country", "last_crawled_at", "active"}))

	repo := postgres.NewSourceRepo(db)
	got, err := repo.Get(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSourceRepo_ListActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s1 := &entity.Source{ID: 1, Name: "A", FeedURL: "https://a/feed", Active: true}
	s2 := &entity.Source{ID: 2, Name: "B", FeedURL: "https://b/feed", Active: true}
	rows := sqlmock.NewRows([]string{"id", "name", "feed_url", "country", "last_crawled_at", "active"}).
		AddRow(s1.ID, s1.Name, s1.FeedURL, s1.Country, s1.LastCrawledAt, s1.Active).
		AddRow(s2.ID, s2.Name, s2.FeedURL, s2.Country, s2.LastCrawledAt, s2.Active)

	mock.ExpectQuery("SELECT id, name, feed_url").WillReturnRows(rows)

	repo := postgres.NewSourceRepo(db)
	got, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSourceRepo_TouchCrawledAt(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("UPDATE sources SET last_crawled_at").
		WithArgs(sqlmock.AnyArg(), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := postgres.NewSourceRepo(db)
	err = repo.TouchCrawledAt(context.Background(), 1, time.Now())
	require.NoError(t, err)
}
