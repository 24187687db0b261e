package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"marquee/internal/ledger"
	"marquee/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupMockDB creates a gorm DB backed by sqlmock. Queries are matched as
// regular expressions so expectations can stay loose about column lists.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func recordColumns() []string {
	return []string{
		"id", "requested_at", "requester_id", "requester_name", "poster_id",
		"label_at_request", "title_snapshot", "release_snapshot",
		"status", "archive_reason", "status_changed_at",
	}
}

func TestLedgerRepository_FindActive(t *testing.T) {
	now := time.Now().UTC()

	t.Run("found", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := NewLedgerRepository(gormDB)

		rows := sqlmock.NewRows(recordColumns()).
			AddRow(7, now, "alice@example.com", "Alice A", "poster-1",
				"Arrival", "Arrival", now, "ACTIVE", "", now)
		mock.ExpectQuery(`SELECT .* FROM "request_records" WHERE requester_id = \$1 AND poster_id = \$2 AND status = \$3`).
			WithArgs("alice@example.com", "poster-1", string(models.RequestStatusActive), 1).
			WillReturnRows(rows)

		rec, err := repo.FindActive(context.Background(), "alice@example.com", "poster-1")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, uint(7), rec.ID)
		assert.Equal(t, models.RequestStatusActive, rec.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no active record returns nil without error", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := NewLedgerRepository(gormDB)

		mock.ExpectQuery(`SELECT .* FROM "request_records"`).
			WithArgs("alice@example.com", "poster-9", string(models.RequestStatusActive), 1).
			WillReturnRows(sqlmock.NewRows(recordColumns()))

		rec, err := repo.FindActive(context.Background(), "alice@example.com", "poster-9")
		require.NoError(t, err)
		assert.Nil(t, rec)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error propagates", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := NewLedgerRepository(gormDB)

		mock.ExpectQuery(`SELECT .* FROM "request_records"`).
			WillReturnError(errors.New("connection reset"))

		rec, err := repo.FindActive(context.Background(), "alice@example.com", "poster-1")
		assert.Error(t, err)
		assert.Nil(t, rec)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerRepository_CountActive(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := NewLedgerRepository(gormDB)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "request_records" WHERE requester_id = \$1 AND status = \$2`).
		WithArgs("alice@example.com", string(models.RequestStatusActive)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountActive(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_Append(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := NewLedgerRepository(gormDB)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "request_records"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))
	mock.ExpectCommit()

	rec := &models.RequestRecord{
		RequestedAt:     now,
		RequesterID:     "alice@example.com",
		RequesterName:   "Alice A",
		PosterID:        "poster-1",
		LabelAtRequest:  "Arrival",
		TitleSnapshot:   "Arrival",
		ReleaseSnapshot: now,
		Status:          models.RequestStatusActive,
		StatusChangedAt: now,
	}
	require.NoError(t, repo.Append(context.Background(), rec))
	assert.Equal(t, uint(12), rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_UpdateStatus(t *testing.T) {
	now := time.Now().UTC()

	t.Run("applied when an active record exists", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := NewLedgerRepository(gormDB)

		rows := sqlmock.NewRows(recordColumns()).
			AddRow(4, now, "bob@example.com", "Bob B", "poster-2",
				"Dune", "Dune", now, "ACTIVE", "", now)
		mock.ExpectQuery(`SELECT .* FROM "request_records" WHERE requester_id = \$1 AND poster_id = \$2 AND status = \$3`).
			WithArgs("bob@example.com", "poster-2", string(models.RequestStatusActive), 1).
			WillReturnRows(rows)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "request_records" SET .* WHERE id = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		outcome, err := repo.UpdateStatus(context.Background(), "bob@example.com", "poster-2",
			models.RequestStatusRemoved, "", now)
		require.NoError(t, err)
		assert.Equal(t, ledger.UpdateApplied, outcome)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found when no active record", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := NewLedgerRepository(gormDB)

		mock.ExpectQuery(`SELECT .* FROM "request_records"`).
			WithArgs("bob@example.com", "poster-2", string(models.RequestStatusActive), 1).
			WillReturnRows(sqlmock.NewRows(recordColumns()))

		outcome, err := repo.UpdateStatus(context.Background(), "bob@example.com", "poster-2",
			models.RequestStatusRemoved, "", now)
		require.NoError(t, err)
		assert.Equal(t, ledger.UpdateNotFound, outcome)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerRepository_ActivePosterIDs(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := NewLedgerRepository(gormDB)

	mock.ExpectQuery(`SELECT DISTINCT "poster_id" FROM "request_records" WHERE status = \$1`).
		WithArgs(string(models.RequestStatusActive)).
		WillReturnRows(sqlmock.NewRows([]string{"poster_id"}).
			AddRow("poster-1").
			AddRow("poster-3"))

	ids, err := repo.ActivePosterIDs(context.Background())
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, "poster-1")
	assert.Contains(t, ids, "poster-3")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_ActiveByRequester(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := NewLedgerRepository(gormDB)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(recordColumns()).
		AddRow(1, now.Add(-time.Hour), "carol@example.com", "Carol C", "poster-1",
			"Arrival", "Arrival", now, "ACTIVE", "", now).
		AddRow(2, now, "carol@example.com", "Carol C", "poster-2",
			"Dune", "Dune", now, "ACTIVE", "", now)
	mock.ExpectQuery(`SELECT .* FROM "request_records" WHERE requester_id = \$1 AND status = \$2 ORDER BY requested_at ASC, id ASC`).
		WithArgs("carol@example.com", string(models.RequestStatusActive)).
		WillReturnRows(rows)

	records, err := repo.ActiveByRequester(context.Background(), "carol@example.com")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "poster-1", records[0].PosterID)
	assert.Equal(t, "poster-2", records[1].PosterID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
