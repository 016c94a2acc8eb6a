package settlement_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chiptally/settlement-api/internal/config"
	"github.com/chiptally/settlement-api/internal/domain"
	"github.com/chiptally/settlement-api/internal/repository"
	"github.com/chiptally/settlement-api/internal/service/settlement"
	"github.com/chiptally/settlement-api/internal/testutil"
)

func setupService(t *testing.T, db *sql.DB) *settlement.Service {
	t.Helper()
	return settlement.NewService(
		repository.NewSettlementRepository(db),
		&config.Config{
			SettleWaitTimeout:   5 * time.Second,
			SettlePollInterval:  20 * time.Millisecond,
			SettleTakeoverAfter: 30 * time.Second,
		},
	)
}

func TestSettle_HappyPath(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	records := []domain.PlayerRecord{
		testutil.Record(t, "alice", "20.00", "35.00"),
		testutil.Record(t, "bob", "20.00", "10.00"),
		testutil.Record(t, "carol", "20.00", "15.00"),
	}

	st, computed, err := svc.Settle(ctx, "game-1", records)

	require.NoError(t, err)
	assert.True(t, computed)
	assert.Equal(t, domain.SettlementStatusSettled, st.Status)
	assert.NotNil(t, st.SettledAt)

	require.Len(t, st.Payments, 2)
	assert.Equal(t, "bob", st.Payments[0].FromUser)
	assert.Equal(t, "alice", st.Payments[0].ToUser)
	assert.Equal(t, int64(1000), st.Payments[0].Amount)
	assert.Equal(t, "carol", st.Payments[1].FromUser)
	assert.Equal(t, "alice", st.Payments[1].ToUser)
	assert.Equal(t, int64(500), st.Payments[1].Amount)

	for _, p := range st.Payments {
		assert.Equal(t, domain.PaymentStatusPending, p.Status)
		assert.Equal(t, "game-1", p.GameID)
	}

	assert.Equal(t, domain.SettlementStatusSettled, testutil.GetSettlementStatus(t, db, "game-1"))
	assert.Equal(t, 2, testutil.CountPayments(t, db, "game-1"))
}

func TestSettle_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	records := []domain.PlayerRecord{
		testutil.Record(t, "alice", "50.00", "80.00"),
		testutil.Record(t, "bob", "50.00", "20.00"),
	}

	first, computed, err := svc.Settle(ctx, "game-2", records)
	require.NoError(t, err)
	require.True(t, computed)

	second, computed, err := svc.Settle(ctx, "game-2", records)
	require.NoError(t, err)
	assert.False(t, computed, "second call must not recompute")
	assert.Equal(t, first.Payments, second.Payments, "replayed settlement must be identical")
	assert.Equal(t, 1, testutil.CountPayments(t, db, "game-2"), "no duplicate rows")
}

func TestSettle_ConcurrentCallsComputeOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	records := []domain.PlayerRecord{
		testutil.Record(t, "a", "20.00", "40.00"),
		testutil.Record(t, "b", "20.00", "25.00"),
		testutil.Record(t, "c", "20.00", "5.00"),
		testutil.Record(t, "d", "20.00", "10.00"),
	}

	type result struct {
		st       *domain.Settlement
		computed bool
		err      error
	}

	const callers = 4
	var wg sync.WaitGroup
	results := make(chan result, callers)

	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, computed, err := svc.Settle(ctx, "game-3", records)
			results <- result{st, computed, err}
		}()
	}

	wg.Wait()
	close(results)

	var computedCount int
	var settlements []*domain.Settlement
	for r := range results {
		require.NoError(t, r.err)
		if r.computed {
			computedCount++
		}
		settlements = append(settlements, r.st)
	}

	assert.Equal(t, 1, computedCount, "exactly one caller should compute")
	for _, st := range settlements[1:] {
		assert.Equal(t, settlements[0].Payments, st.Payments)
	}
	assert.Equal(t, 3, testutil.CountPayments(t, db, "game-3"), "n-1 payments, written once")
}

func TestSettle_InvalidRecordRevertsAndAllowsRetry(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	_, _, err := svc.Settle(ctx, "game-4", []domain.PlayerRecord{
		testutil.Record(t, "alice", "-5.00", "10.00"),
		testutil.Record(t, "bob", "5.00", "0"),
	})
	require.ErrorIs(t, err, domain.ErrInvalidRecord)

	assert.Equal(t, domain.SettlementStatusUnsettled, testutil.GetSettlementStatus(t, db, "game-4"))
	assert.Equal(t, 0, testutil.CountPayments(t, db, "game-4"), "no partial writes")

	st, computed, err := svc.Settle(ctx, "game-4", []domain.PlayerRecord{
		testutil.Record(t, "alice", "5.00", "10.00"),
		testutil.Record(t, "bob", "5.00", "0"),
	})
	require.NoError(t, err)
	assert.True(t, computed, "corrected retry must settle")
	require.Len(t, st.Payments, 1)
	assert.Equal(t, int64(500), st.Payments[0].Amount)
}

func TestSettle_UnbalancedLedgerReverts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	_, _, err := svc.Settle(ctx, "game-5", []domain.PlayerRecord{
		testutil.Record(t, "alice", "0", "50.00"),
		testutil.Record(t, "bob", "20.00", "0"),
	})
	require.ErrorIs(t, err, domain.ErrUnbalancedLedger)

	assert.Equal(t, domain.SettlementStatusUnsettled, testutil.GetSettlementStatus(t, db, "game-5"))
	assert.Equal(t, 0, testutil.CountPayments(t, db, "game-5"))
}

func TestSettle_AllPlayersBreakEven(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	st, computed, err := svc.Settle(ctx, "game-6", []domain.PlayerRecord{
		testutil.Record(t, "alice", "20.00", "20.00"),
		testutil.Record(t, "bob", "20.00", "20.00"),
	})

	require.NoError(t, err)
	assert.True(t, computed)
	assert.Equal(t, domain.SettlementStatusSettled, st.Status)
	assert.Empty(t, st.Payments)
}

func TestSettle_TakesOverStaleClaim(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	repo := repository.NewSettlementRepository(db)
	require.NoError(t, repo.EnsureGame(ctx, "game-7"))
	testutil.ForceSettlementStatus(t, db, "game-7", domain.SettlementStatusSettling, "10 minutes")

	st, computed, err := svc.Settle(ctx, "game-7", []domain.PlayerRecord{
		testutil.Record(t, "alice", "10.00", "15.00"),
		testutil.Record(t, "bob", "10.00", "5.00"),
	})

	require.NoError(t, err)
	assert.True(t, computed, "stale claim must be reclaimable")
	assert.Equal(t, domain.SettlementStatusSettled, st.Status)
}

func TestMarkPaymentPaid(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	st, _, err := svc.Settle(ctx, "game-8", []domain.PlayerRecord{
		testutil.Record(t, "alice", "10.00", "18.00"),
		testutil.Record(t, "bob", "10.00", "2.00"),
	})
	require.NoError(t, err)
	require.Len(t, st.Payments, 1)
	paymentID := st.Payments[0].ID

	paid, err := svc.MarkPaymentPaid(ctx, paymentID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, paid.Status)
	assert.NotNil(t, paid.PaidAt)
	assert.Equal(t, domain.PaymentStatusPaid, testutil.GetPaymentStatus(t, db, paymentID))

	again, err := svc.MarkPaymentPaid(ctx, paymentID)
	require.NoError(t, err, "re-marking a paid payment is a no-op")
	assert.Equal(t, domain.PaymentStatusPaid, again.Status)

	_, err = svc.MarkPaymentPaid(ctx, uuid.New())
	require.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestGetSettlement_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)

	_, err := svc.GetSettlement(context.Background(), "missing-game")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
