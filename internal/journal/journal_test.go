package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestInsertMarkRecentRoundTrip(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	first, err := j.Insert(ctx, "set_rates", "", "0xaaa111", "2 tokens @ block 100")
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	require.Equal(t, StatusSubmitted, first.Status)

	time.Sleep(2 * time.Millisecond) // created_at ordering
	second, err := j.Insert(ctx, "withdraw", "0xCCC0000000000000000000000000000000000003", "0xbbb222", "amount=5")
	require.NoError(t, err)

	require.NoError(t, j.MarkStatus(ctx, first.ID, StatusConfirmed, ""))

	recent, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, second.ID, recent[0].ID, "newest first")
	require.Equal(t, StatusConfirmed, recent[1].Status)
	require.Equal(t, "2 tokens @ block 100", recent[1].Detail, "empty detail keeps the old one")

	require.NoError(t, j.MarkStatus(ctx, second.ID, StatusFailed, "reverted"))
	rec, err := j.FindByTxHash(ctx, "0xbbb222")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, StatusFailed, rec.Status)
	require.Equal(t, "reverted", rec.Detail)

	missing, err := j.FindByTxHash(ctx, "0xnothere")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestRecentLimit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := j.Insert(ctx, "enable_trade", "", "0xhash", "")
		require.NoError(t, err)
	}
	recent, err := j.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
}
