package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"github.com/viralforge/socmed/platform/database"
	"github.com/viralforge/socmed/services/media-service/internal/domain"
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

var created = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

var mediaCols = []string{"id", "owner_id", "storage_ref", "mime_type", "original_name", "size_bytes", "created_at"}

func TestCreateInsertsRecord(t *testing.T) {
	repos, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "media_records"`)).WillReturnResult(sqlmock.NewResult(0, 1))

	err := repos.Media.Create(context.Background(), domain.MediaRecord{
		ID: "m1", OwnerID: "u1", StorageRef: "u1/m1.png", MimeType: "image/png", OriginalName: "cat.png", SizeBytes: 10, CreatedAt: created,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMapsMissingRowToNotFound(t *testing.T) {
	repos, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "media_records" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows(mediaCols))

	_, err := repos.Media.Get(context.Background(), "m1")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByOwnerOrdersNewestFirst(t *testing.T) {
	repos, mock := newMock(t)
	mock.ExpectQuery(`SELECT \* FROM "media_records" WHERE owner_id = \$1 ORDER BY created_at DESC, ?id ASC`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(mediaCols).
			AddRow("m2", "u1", "u1/m2.mp4", "video/mp4", "clip.mp4", 20, created.Add(time.Minute)).
			AddRow("m1", "u1", "u1/m1.png", "image/png", "cat.png", 10, created))

	items, err := repos.Media.ListByOwner(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "m2", items[0].ID)
	require.Equal(t, "video/mp4", items[0].MimeType)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetManySkipsQueryForNoIDs(t *testing.T) {
	repos, mock := newMock(t)
	items, err := repos.Media.GetMany(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, items)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteReportsMissingRow(t *testing.T) {
	repos, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "media_records" WHERE id = $1`)).
		WithArgs("m1").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repos.Media.Delete(context.Background(), "m1")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventDedupPurge(t *testing.T) {
	repos, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "media_event_dedup" WHERE expires_at <= $1`)).
		WithArgs(created).WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repos.EventDedup.PurgeExpired(context.Background(), created)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
