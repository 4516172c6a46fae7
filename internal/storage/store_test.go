package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/StockAnalyzerAI/internal/crew"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "data", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &Run{
		Ticker:     "aapl",
		Start:      "2024-01-21",
		End:        "2024-02-20",
		ReportPath: "/tmp/AAPL.md",
		CreatedAt:  time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		Outputs: []*crew.TaskOutput{
			{Name: "get_stock_price", Agent: "Crew Manager", ExportedOutput: "up"},
			{Name: "write_analyses", Agent: "Crew Manager", ExportedOutput: "newsletter"},
		},
	}
	require.NoError(t, s.Record(ctx, run))
	require.NotEmpty(t, run.ID)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.Ticker)
	assert.Equal(t, StatusDone, got.Status)
	assert.Equal(t, "/tmp/AAPL.md", got.ReportPath)
	assert.True(t, run.CreatedAt.Equal(got.CreatedAt))
	require.Len(t, got.Outputs, 2)
	assert.Equal(t, "get_stock_price", got.Outputs[0].Name)
	assert.Equal(t, "newsletter", got.Outputs[1].ExportedOutput)
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, ticker := range []string{"AAPL", "MSFT", "AAPL"} {
		require.NoError(t, s.Record(ctx, &Run{
			ID:        ticker + string(rune('a'+i)),
			Ticker:    ticker,
			Start:     "2024-01-01",
			End:       "2024-02-01",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, s.Record(ctx, &Run{
		ID: "failed", Ticker: "TSLA", Status: StatusError, Error: "boom",
		CreatedAt: base.Add(5 * time.Hour),
	}))

	all, err := s.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "failed", all[0].ID)
	assert.Equal(t, "boom", all[0].Error)

	aapl, err := s.ListRuns(ctx, "aapl", 1)
	require.NoError(t, err)
	require.Len(t, aapl, 1)
	assert.Equal(t, "AAPLc", aapl[0].ID)
}

func TestRecordRequiresTicker(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.Record(context.Background(), &Run{}))
}
