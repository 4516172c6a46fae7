package research

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 1, 15, 4, 5, 0, time.UTC)

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestBoundsAt(t *testing.T) {
	b := BoundsAt(now)
	assert.Equal(t, "2023-03-02", b.Min.Format("2006-01-02"))
	assert.Equal(t, "2024-02-20", b.Max.Format("2006-01-02"))
	assert.Equal(t, "2024-01-21", b.DefaultStart.Format("2006-01-02"))
}

func TestValidateOrder(t *testing.T) {
	b := BoundsAt(now)

	err := Request{Ticker: "  ", Start: date("2024-02-01"), End: date("2024-01-01")}.Validate(b)
	assert.ErrorIs(t, err, ErrEmptyTicker)
	assert.EqualError(t, err, "Please fill the ticket field")

	err = Request{Ticker: "AAPL", Start: date("2024-02-01"), End: date("2024-01-01")}.Validate(b)
	assert.EqualError(t, err, "Start date must be lower than End date")

	err = Request{Ticker: "AAPL", Start: date("2022-01-01"), End: date("2024-01-01")}.Validate(b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutOfRange))
	assert.EqualError(t, err, "Dates must be between 2023-03-02 and 2024-02-20")

	assert.NoError(t, Request{Ticker: "AAPL", Start: date("2024-01-01"), End: date("2024-02-01")}.Validate(b))
	assert.NoError(t, Request{Ticker: "AAPL", Start: date("2024-01-01"), End: date("2024-01-01")}.Validate(b))
}

func TestBoundsInclusive(t *testing.T) {
	b := BoundsAt(now)

	assert.NoError(t, Request{Ticker: "T", Start: b.Min, End: b.Max}.Validate(b))
	assert.ErrorIs(t, Request{Ticker: "T", Start: b.Min.AddDate(0, 0, -1), End: b.Max}.Validate(b), ErrOutOfRange)
	assert.ErrorIs(t, Request{Ticker: "T", Start: b.Min, End: b.Max.AddDate(0, 0, 1)}.Validate(b), ErrOutOfRange)
}

func TestClampAndInputs(t *testing.T) {
	b := BoundsAt(now)
	assert.Equal(t, b.Min, b.Clamp(date("2020-01-01")))
	assert.Equal(t, b.Max, b.Clamp(now))
	assert.Equal(t, date("2024-01-05"), b.Clamp(date("2024-01-05")))

	in := Request{Ticker: " AAPL ", Start: date("2024-01-01"), End: date("2024-02-01")}.Inputs()
	assert.Equal(t, "AAPL", in["ticket"])
	assert.Equal(t, "2024-01-01", in["dt_start"])
	assert.Equal(t, "2024-02-01", in["dt_end"])
}

func TestParseDate(t *testing.T) {
	fallback := date("2024-01-21")
	d, err := ParseDate("", fallback)
	require.NoError(t, err)
	assert.Equal(t, fallback, d)

	d, err = ParseDate("2024-01-02", fallback)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Day())

	_, err = ParseDate("01/02/2024", fallback)
	assert.Error(t, err)
}
