package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"github.com/viralforge/socmed/platform/database"
	"github.com/viralforge/socmed/services/search-service/internal/domain"
)

func newMock(t *testing.T) (Repositories, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	db, err := database.FromSQL(sqlDB)
	require.NoError(t, err)
	return NewRepositories(db), mock
}

var emitted = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func sampleDoc() domain.SearchDocument {
	return domain.SearchDocument{PostID: "p1", AuthorID: "u1", Content: "hello world", CreatedAt: emitted, SourceEmittedAt: emitted}
}

func TestApplyUpsertGuardsOnEmittedAt(t *testing.T) {
	repos, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtext($1))`)).
		WithArgs("p1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "search_tombstones" WHERE post_id = $1 AND deleted_at >= $2`)).
		WithArgs("p1", emitted).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO "search_documents" .* ON CONFLICT \("post_id"\) DO UPDATE SET .* WHERE search_documents\.source_emitted_at <= excluded\.source_emitted_at`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := repos.Documents.ApplyUpsert(context.Background(), sampleDoc())
	require.NoError(t, err)
	require.True(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyUpsertSkipsTombstonedPost(t *testing.T) {
	repos, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "search_tombstones"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectCommit()

	applied, err := repos.Documents.ApplyUpsert(context.Background(), sampleDoc())
	require.NoError(t, err)
	require.False(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyUpsertReportsStaleWhenGuardRejects(t *testing.T) {
	repos, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "search_tombstones"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "search_documents"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	applied, err := repos.Documents.ApplyUpsert(context.Background(), sampleDoc())
	require.NoError(t, err)
	require.False(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyDeleteWritesTombstoneThenDeletesOlderRow(t *testing.T) {
	repos, mock := newMock(t)
	tomb := domain.Tombstone{PostID: "p1", DeletedAt: emitted, ExpiresAt: emitted.Add(time.Hour)}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO "search_tombstones" .* ON CONFLICT \("post_id"\) DO UPDATE SET .*GREATEST\(search_tombstones\.deleted_at, excluded\.deleted_at\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "search_documents" WHERE post_id = $1 AND source_emitted_at <= $2`)).
		WithArgs("p1", emitted).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	removed, err := repos.Documents.ApplyDelete(context.Background(), tomb)
	require.NoError(t, err)
	require.True(t, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyDeleteRollsBackOnFailure(t *testing.T) {
	repos, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "search_tombstones"`)).WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	_, err := repos.Documents.ApplyDelete(context.Background(), domain.Tombstone{PostID: "p1", DeletedAt: emitted})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchRanksWithTextSearch(t *testing.T) {
	repos, mock := newMock(t)
	cols := []string{"post_id", "author_id", "content", "created_at", "source_emitted_at", "updated_at", "score"}
	mock.ExpectQuery(`SELECT \*, ts_rank\(to_tsvector\('english', content\), plainto_tsquery\('english', \$1\)\) AS score FROM "search_documents" WHERE to_tsvector\('english', content\) @@ plainto_tsquery\('english', \$2\) ORDER BY score DESC, ?created_at DESC LIMIT`).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("p1", "u1", "hello world", emitted, emitted, emitted, 0.6))

	docs, err := repos.Documents.Search(context.Background(), "hello", 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "p1", docs[0].PostID)
	require.InDelta(t, 0.6, docs[0].Score, 0.0001)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeDeletesExpiredRows(t *testing.T) {
	repos, mock := newMock(t)
	now := emitted.Add(24 * time.Hour)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "search_tombstones" WHERE expires_at <= $1`)).
		WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "search_event_dedup" WHERE expires_at <= $1`)).
		WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 5))

	n, err := repos.Documents.PurgeTombstones(context.Background(), now)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
	n, err = repos.EventDedup.PurgeExpired(context.Background(), now)
	require.NoError(t, err)
	require.EqualValues(t, 5, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsDuplicateHonoursExpiry(t *testing.T) {
	repos, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "search_event_dedup" WHERE event_id = $1 AND expires_at > $2`)).
		WithArgs("e1", emitted).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	dup, err := repos.EventDedup.IsDuplicate(context.Background(), "e1", emitted)
	require.NoError(t, err)
	require.True(t, dup)
	require.NoError(t, mock.ExpectationsWereMet())
}
