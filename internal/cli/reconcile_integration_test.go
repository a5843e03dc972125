package cli

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/potfund-ledger/internal/domain"
	"github.com/josh-kwaku/potfund-ledger/internal/testutil"
)

func TestLoadSnapshot(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	fund := testutil.SeedFund(t, db)
	testutil.SeedMembers(t, db, fund.ID, 2)

	snap, err := loadSnapshot(ctx, db, fund.ID)
	require.NoError(t, err)
	assert.Len(t, snap.Members, 2)
	assert.Nil(t, snap.Cycle)
	assert.Empty(t, checkGroup(snap).Violations)

	_, err = db.Exec(`UPDATE group_funds SET current_balance = 100 WHERE id = $1`, fund.ID)
	require.NoError(t, err)

	snap, err = loadSnapshot(ctx, db, fund.ID)
	require.NoError(t, err)
	assert.Contains(t, checkGroup(snap).Violations, "balance 100 does not match ledger sum 0")

	_, err = loadSnapshot(ctx, db, uuid.New())
	require.ErrorIs(t, err, domain.ErrGroupNotFound)
}
