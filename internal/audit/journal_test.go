package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndRecent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, j.Record(ctx, Entry{SessionID: "s1", Action: "read_page", CreatedAt: base}))
	require.NoError(t, j.Record(ctx, Entry{
		SessionID: "s1",
		Action:    "click",
		Ref:       "e3",
		Label:     `button "Submit"`,
		Outcome:   OutcomeError,
		ErrorKind: "execution",
		Message:   "element has no box model",
		Duration:  1500 * time.Millisecond,
		CreatedAt: base.Add(time.Second),
	}))
	require.NoError(t, j.Record(ctx, Entry{SessionID: "s2", Action: "navigate", URL: "https://example.com", CreatedAt: base.Add(2 * time.Second)}))

	all, err := j.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "navigate", all[0].Action)

	s1, err := j.Recent(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, s1, 2)

	click := s1[0]
	assert.Equal(t, "click", click.Action)
	assert.Equal(t, "e3", click.Ref)
	assert.Equal(t, `button "Submit"`, click.Label)
	assert.Equal(t, OutcomeError, click.Outcome)
	assert.Equal(t, "execution", click.ErrorKind)
	assert.Equal(t, 1500*time.Millisecond, click.Duration)
	assert.NotEmpty(t, click.ID)
	assert.True(t, click.CreatedAt.Equal(base.Add(time.Second)))

	assert.Equal(t, OutcomeOK, s1[1].Outcome, "outcome defaults to ok")
}

func TestRecentLimit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, j.Record(ctx, Entry{SessionID: "s", Action: "scroll"}))
	}
	got, err := j.Recent(ctx, "s", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Record(context.Background(), Entry{SessionID: "s", Action: "back"}))
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()
	got, err := j.Recent(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
