package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()

	l, err := Open(filepath.Join(t.TempDir(), "audit.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRecordAndListByTeam(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, action := range []string{"component.create", "component.update", "export.create"} {
		err := l.Record(ctx, &Entry{
			TeamID:    "team-1",
			UserID:    "user-1",
			Action:    action,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	// Another team's entry must not show up.
	require.NoError(t, l.Record(ctx, &Entry{TeamID: "team-2", UserID: "user-9", Action: "import.apply"}))

	entries, err := l.ListByTeam(ctx, "team-1", 10, nil)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Newest first.
	assert.Equal(t, "export.create", entries[0].Action)
	assert.Equal(t, "component.create", entries[2].Action)
}

func TestListByTeam_CursorPagination(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range 5 {
		err := l.Record(ctx, &Entry{
			TeamID:    "team-1",
			UserID:    "user-1",
			Action:    "component.update",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	first, err := l.ListByTeam(ctx, "team-1", 2, nil)
	require.NoError(t, err)
	require.Len(t, first, 2)

	rest, err := l.ListByTeam(ctx, "team-1", 10, &first[1].CreatedAt)
	require.NoError(t, err)
	require.Len(t, rest, 3)
	assert.True(t, rest[0].CreatedAt.Before(first[1].CreatedAt))
}

func TestListByEntity(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, &Entry{
		TeamID: "team-1", UserID: "user-1",
		Action: "component.update", EntityType: "component", EntityID: "cmp-1",
	}))
	require.NoError(t, l.Record(ctx, &Entry{
		TeamID: "team-1", UserID: "user-1",
		Action: "component.delete", EntityType: "component", EntityID: "cmp-2",
	}))

	entries, err := l.ListByEntity(ctx, "team-1", "component", "cmp-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "component.update", entries[0].Action)
}

func TestRecord_FillsIDAndTimestamp(t *testing.T) {
	l := openTestLog(t)

	entry := &Entry{TeamID: "team-1", UserID: "user-1", Action: "settings.update"}
	require.NoError(t, l.Record(context.Background(), entry))

	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
}
