package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExchangeRepository_Record(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC)
	rec := ExchangeRecord{
		MessageID: "wamid-1", ClientID: "33600000001", Platform: "webhook",
		Message: "refund", Response: "OK", Language: "en", Intent: "complaint",
		Strategy: "handoff", Escalated: true, Reason: "urgent keyword", CreatedAt: at,
	}

	mock.ExpectExec("INSERT INTO exchanges").
		WithArgs("wamid-1", "33600000001", "webhook", "refund", "OK", "en", "complaint", "handoff", true, "urgent keyword", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO exchange_daily").
		WithArgs("2025-06-03", 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewExchangeRepository(mock)
	require.NoError(t, repo.Record(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExchangeRepository_RecordError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO exchanges").WillReturnError(errors.New("connection reset"))

	repo := NewExchangeRepository(mock)
	err = repo.Record(context.Background(), ExchangeRecord{CreatedAt: time.Now()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert exchange")
}

func TestExchangeRepository_GetDayUsage(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	day := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("2025-06-03").
		WillReturnRows(pgxmock.NewRows([]string{"messages", "escalations"}).AddRow(12, 3))

	repo := NewExchangeRepository(mock)
	u, err := repo.GetDayUsage(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 12, u.Messages)
	assert.Equal(t, 3, u.Escalations)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExchangeRepository_GetDayUsageMissingRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("2025-06-04").
		WillReturnRows(pgxmock.NewRows([]string{"messages", "escalations"}))

	repo := NewExchangeRepository(mock)
	u, err := repo.GetDayUsage(context.Background(), time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, u.Messages)
}

func TestExchangeRepository_GetUsageHistory(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	d1 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT date, messages, escalations").
		WithArgs("2025-06-01").
		WillReturnRows(pgxmock.NewRows([]string{"date", "messages", "escalations"}).
			AddRow(d1, 4, 0).
			AddRow(d2, 9, 2))

	repo := NewExchangeRepository(mock)
	usage, err := repo.GetUsageHistory(context.Background(), d1)
	require.NoError(t, err)
	require.Len(t, usage, 2)
	assert.Equal(t, 9, usage[1].Messages)
	assert.Equal(t, 2, usage[1].Escalations)
	require.NoError(t, mock.ExpectationsWereMet())
}
