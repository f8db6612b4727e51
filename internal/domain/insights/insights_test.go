package insights

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT category, currency`).
		WithArgs("pedro", from, to).
		WillReturnRows(pgxmock.NewRows([]string{"category", "currency", "sum", "count"}).
			AddRow("food", "KWD", decimal.RequireFromString("42.750"), 12).
			AddRow("coffee", "KWD", decimal.RequireFromString("15.500"), 9))
	mock.ExpectQuery(`SELECT currency`).
		WithArgs("pedro", from, to).
		WillReturnRows(pgxmock.NewRows([]string{"currency", "expense", "income", "count"}).
			AddRow("KWD", decimal.RequireFromString("58.250"), decimal.RequireFromString("1200"), 22))

	repo := NewRepository(mock)
	s, err := repo.Summarize(context.Background(), "pedro", from, to)
	require.NoError(t, err)

	assert.Equal(t, "pedro", s.UserID)
	require.Len(t, s.Categories, 2)
	assert.Equal(t, "food", s.Categories[0].Category)
	assert.True(t, s.Categories[0].Total.Equal(decimal.RequireFromString("42.75")))
	assert.Equal(t, 12, s.Categories[0].Count)

	require.Len(t, s.Currencies, 1)
	assert.Equal(t, "KWD", s.Currencies[0].Currency)
	assert.True(t, s.Currencies[0].Expense.Equal(decimal.RequireFromString("58.25")))
	assert.True(t, s.Currencies[0].Income.Equal(decimal.RequireFromString("1200")))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSummarize_EmptyPeriod(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT category, currency`).
		WithArgs("pedro", from, to).
		WillReturnRows(pgxmock.NewRows([]string{"category", "currency", "sum", "count"}))
	mock.ExpectQuery(`SELECT currency`).
		WithArgs("pedro", from, to).
		WillReturnRows(pgxmock.NewRows([]string{"currency", "expense", "income", "count"}))

	repo := NewRepository(mock)
	s, err := repo.Summarize(context.Background(), "pedro", from, to)
	require.NoError(t, err)
	assert.NotNil(t, s.Categories)
	assert.Empty(t, s.Categories)
	assert.NotNil(t, s.Currencies)
	assert.Empty(t, s.Currencies)
}
