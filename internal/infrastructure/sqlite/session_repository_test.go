package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealbridge/orchestrator/internal/domain/fault"
	"github.com/sealbridge/orchestrator/internal/domain/session"
)

func openTestDB(t *testing.T) *SessionRepository {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "orchestrator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSessionRepository(db)
}

func seedSession(t *testing.T, repo *SessionRepository, deposit string) *session.SealSession {
	t.Helper()
	s := session.New("ethereum", "destwallet", "0xabc", "7", time.Hour)
	s.DepositAddress = deposit
	require.NoError(t, repo.Create(context.Background(), s))
	return s
}

func TestCreateAndGet(t *testing.T) {
	repo := openTestDB(t)
	s := seedSession(t, repo, "dep-1")

	got, err := repo.GetByID(context.Background(), s.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, session.StatusCreated, got.Status)

	byAddr, err := repo.GetByDepositAddress(context.Background(), "dep-1")
	require.NoError(t, err)
	require.NotNil(t, byAddr)
	assert.Equal(t, s.ID, byAddr.ID)

	missing, err := repo.GetByDepositAddress(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDepositAddressUnique(t *testing.T) {
	repo := openTestDB(t)
	seedSession(t, repo, "dep-1")

	dup := session.New("ethereum", "destwallet", "0xabc", "8", time.Hour)
	dup.DepositAddress = "dep-1"
	err := repo.Create(context.Background(), dup)
	require.Error(t, err)
	assert.True(t, fault.IsConflict(err))
	assert.ErrorIs(t, err, session.ErrDuplicateDepositAddress)
}

func TestPaymentSignatureUniqueAcrossSessions(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()
	a := seedSession(t, repo, "dep-a")
	b := seedSession(t, repo, "dep-b")
	for _, s := range []*session.SealSession{a, b} {
		require.NoError(t, repo.AdvanceStatus(ctx, s.ID, session.StatusCreated, session.StatusAwaitingPayment, nil))
	}

	require.NoError(t, repo.BindPaymentSignature(ctx, a.ID, "SIG1", session.StatusAwaitingPayment, session.StatusAwaitingDeposit))

	err := repo.BindPaymentSignature(ctx, b.ID, "SIG1", session.StatusAwaitingPayment, session.StatusAwaitingDeposit)
	require.Error(t, err)
	assert.True(t, fault.IsConflict(err))
	assert.ErrorIs(t, err, session.ErrDuplicatePaymentSignature)

	// The losing session did not move.
	got, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusAwaitingPayment, got.Status)
	assert.Nil(t, got.PaymentTxSignature)
}

func TestAdvanceStatusCompareAndSet(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()
	s := seedSession(t, repo, "dep-1")

	require.NoError(t, repo.AdvanceStatus(ctx, s.ID, session.StatusCreated, session.StatusAwaitingPayment, nil))

	// Stale precondition is rejected, not overwritten.
	err := repo.AdvanceStatus(ctx, s.ID, session.StatusCreated, session.StatusAwaitingPayment, nil)
	require.Error(t, err)
	assert.True(t, fault.IsConflict(err))
	assert.ErrorIs(t, err, session.ErrStaleStatus)

	// Skipping states is rejected before touching the store.
	err = repo.AdvanceStatus(ctx, s.ID, session.StatusAwaitingPayment, session.StatusMinting, nil)
	require.Error(t, err)
	assert.True(t, fault.IsConflict(err))
}

func TestAdvanceStatusUnknownSession(t *testing.T) {
	repo := openTestDB(t)
	ghost := session.New("ethereum", "w", "c", "t", time.Hour)
	err := repo.AdvanceStatus(context.Background(), ghost.ID, session.StatusCreated, session.StatusAwaitingPayment, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestAdvanceStatusAppliesUpdate(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()
	s := seedSession(t, repo, "dep-1")
	require.NoError(t, repo.AdvanceStatus(ctx, s.ID, session.StatusCreated, session.StatusAwaitingPayment, nil))
	require.NoError(t, repo.BindPaymentSignature(ctx, s.ID, "SIG", session.StatusAwaitingPayment, session.StatusAwaitingDeposit))

	uri := "ipfs://meta"
	require.NoError(t, repo.AdvanceStatus(ctx, s.ID, session.StatusAwaitingDeposit, session.StatusDepositDetected,
		&session.Update{MetadataURI: &uri}))

	hash := "deadbeef"
	slot := "slot-1"
	require.NoError(t, repo.AdvanceStatus(ctx, s.ID, session.StatusDepositDetected, session.StatusPreparingMetadata,
		&session.Update{SealHash: &hash}))
	require.NoError(t, repo.AdvanceStatus(ctx, s.ID, session.StatusPreparingMetadata, session.StatusRequestingAttestation,
		&session.Update{PresignSlotID: &slot}))

	got, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "ipfs://meta", got.MetadataURI)
	assert.Equal(t, "deadbeef", got.SealHash)
	require.NotNil(t, got.PresignSlotID)
	assert.Equal(t, "slot-1", *got.PresignSlotID)

	bySeal, err := repo.GetBySealHash(ctx, "deadbeef")
	require.NoError(t, err)
	require.NotNil(t, bySeal)
	assert.Equal(t, s.ID, bySeal.ID)

	// Clearing the slot leaves other fields untouched.
	require.NoError(t, repo.AdvanceStatus(ctx, s.ID, session.StatusRequestingAttestation, session.StatusRequestingAttestation,
		&session.Update{ClearPresignSlot: true}))
	got, err = repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, got.PresignSlotID)
	assert.Equal(t, "deadbeef", got.SealHash)
}

func TestExpireOlderThan(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	fresh := seedSession(t, repo, "dep-fresh")
	require.NoError(t, repo.AdvanceStatus(ctx, fresh.ID, session.StatusCreated, session.StatusAwaitingPayment, nil))

	stale := session.New("ethereum", "w", "c", "t", -time.Minute)
	stale.DepositAddress = "dep-stale"
	require.NoError(t, repo.Create(ctx, stale))
	require.NoError(t, repo.AdvanceStatus(ctx, stale.ID, session.StatusCreated, session.StatusAwaitingPayment, nil))

	n, err := repo.ExpireOlderThan(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := repo.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusExpired, got.Status)

	got, err = repo.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusAwaitingPayment, got.Status)
}

func TestListByStatus(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()
	a := seedSession(t, repo, "dep-a")
	seedSession(t, repo, "dep-b")
	require.NoError(t, repo.AdvanceStatus(ctx, a.ID, session.StatusCreated, session.StatusAwaitingPayment, nil))

	created, err := repo.ListByStatus(ctx, []session.Status{session.StatusCreated}, 10)
	require.NoError(t, err)
	assert.Len(t, created, 1)

	both, err := repo.ListByStatus(ctx, []session.Status{session.StatusCreated, session.StatusAwaitingPayment}, 10)
	require.NoError(t, err)
	assert.Len(t, both, 2)
}
