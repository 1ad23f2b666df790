package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mselser95/polymarket-lens/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var base = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func points(prices ...float64) []types.PricePoint {
	out := make([]types.PricePoint, len(prices))
	for i, p := range prices {
		out[i] = types.PricePoint{Timestamp: base.Add(time.Duration(i) * time.Hour), Price: p}
	}
	return out
}

func TestValidateMode(t *testing.T) {
	for _, mode := range []string{ModeNone, ModeMemory, ModePostgres} {
		assert.NoError(t, ValidateMode(mode))
	}
	assert.Error(t, ValidateMode("redis"))
}

func TestMemoryArchive_SaveLoad(t *testing.T) {
	archive := NewMemoryArchive(zaptest.NewLogger(t))
	ctx := context.Background()

	require.NoError(t, archive.SavePoints(ctx, "m1", points(0.1, 0.2, 0.3)))
	require.NoError(t, archive.SavePoints(ctx, "m1", []types.PricePoint{{Timestamp: base.Add(time.Hour), Price: 0.25}}))
	require.NoError(t, archive.SavePoints(ctx, "m2", points(0.9)))

	got, err := archive.LoadPoints(ctx, "m1", base.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 0.25, got[0].Price, 1e-9, "later save replaces same timestamp")
	assert.InDelta(t, 0.3, got[1].Price, 1e-9)
	assert.True(t, got[0].Timestamp.Before(got[1].Timestamp))

	got, err = archive.LoadPoints(ctx, "unknown", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.NoError(t, archive.Close())
}

func TestPostgresArchive_EnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS price_history").WillReturnResult(sqlmock.NewResult(0, 0))

	archive := NewPostgresArchiveFromDB(db, zaptest.NewLogger(t))
	require.NoError(t, archive.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresArchive_SavePoints(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	pts := points(0.4, 0.5)
	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO price_history"))
	prep.ExpectExec().WithArgs("m1", pts[0].Timestamp, 0.4).WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs("m1", pts[1].Timestamp, 0.5).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	archive := NewPostgresArchiveFromDB(db, zaptest.NewLogger(t))
	require.NoError(t, archive.SavePoints(context.Background(), "m1", pts))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresArchive_SavePointsRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO price_history"))
	prep.ExpectExec().WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	archive := NewPostgresArchiveFromDB(db, zaptest.NewLogger(t))
	err = archive.SavePoints(context.Background(), "m1", points(0.4))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresArchive_SavePointsEmptyIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	archive := NewPostgresArchiveFromDB(db, zaptest.NewLogger(t))
	require.NoError(t, archive.SavePoints(context.Background(), "m1", nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresArchive_LoadPoints(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	since := base.Add(-time.Hour)
	rows := sqlmock.NewRows([]string{"ts", "price"}).
		AddRow(base, 0.4).
		AddRow(base.Add(time.Hour), 0.5)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT ts, price FROM price_history")).
		WithArgs("m1", since).
		WillReturnRows(rows)

	archive := NewPostgresArchiveFromDB(db, zaptest.NewLogger(t))
	got, err := archive.LoadPoints(context.Background(), "m1", since)
	require.NoError(t, err)
	assert.Equal(t, points(0.4, 0.5), got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresArchive_LoadPointsQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT ts, price").WillReturnError(errors.New("connection reset"))

	archive := NewPostgresArchiveFromDB(db, zaptest.NewLogger(t))
	_, err = archive.LoadPoints(context.Background(), "m1", base)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresArchive_Close(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectClose()
	archive := NewPostgresArchiveFromDB(db, zaptest.NewLogger(t))
	require.NoError(t, archive.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}
