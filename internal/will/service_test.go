package will_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"hera/internal/contracts"
	"hera/internal/ledger"
	"hera/internal/simledger"
	"hera/internal/will"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	grantor = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob     = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	carol   = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	token   = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	nft     = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	vault   = common.HexToAddress("0x00000000000000000000000000000000000000f1")
)

const day = 24 * time.Hour

var ether = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

type world struct {
	backend *simledger.Backend
	clock   *simledger.Clock
}

func newWorld(opts ...simledger.Option) *world {
	clock := simledger.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	backend := simledger.New(append([]simledger.Option{simledger.WithClock(clock.Now)}, opts...)...)
	backend.Fund(grantor, new(big.Int).Mul(big.NewInt(10), ether))
	return &world{backend: backend, clock: clock}
}

func (w *world) service(addr common.Address) *will.Service {
	return will.NewService(w.backend.Client(addr), will.WithClock(w.clock.Now))
}

func rejectionReason(t *testing.T, err error) string {
	t.Helper()
	var rej *ledger.RejectionError
	require.True(t, errors.As(err, &rej), "expected rejection, got %v", err)
	return rej.Reason()
}

func TestCreateWill(t *testing.T) {
	w := newWorld()
	svc := w.service(grantor)

	out, err := svc.CreateWill(context.Background(), 2*day)
	require.NoError(t, err)
	require.NoError(t, out.RefreshErr)
	require.NotNil(t, out.Will)
	assert.Equal(t, will.StateActive, out.Will.State)
	assert.Equal(t, 2*day, out.Will.HeartbeatInterval)
	assert.Equal(t, w.clock.Now().Unix(), out.Will.LastCheckIn.Unix())
	assert.Equal(t, uint64(0), out.Will.AssetCount)

	_, err = svc.CreateWill(context.Background(), 2*day)
	assert.Equal(t, "Will already exists", rejectionReason(t, err))
}

func TestCreateWillTooShortIsRejectedByLedger(t *testing.T) {
	svc := newWorld().service(grantor)
	_, err := svc.CreateWill(context.Background(), time.Hour)
	assert.Equal(t, "Heartbeat interval too short", rejectionReason(t, err))
}

func TestClaimLifecycle(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	owner := w.service(grantor)
	heir := w.service(bob)

	_, err := owner.CreateWill(ctx, day)
	require.NoError(t, err)
	out, err := owner.DepositEth(ctx, bob, ether)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), out.Will.AssetCount)

	accepted, err := heir.AcceptBeneficiary(ctx, grantor)
	require.NoError(t, err)
	require.Len(t, accepted.Assets, 1)
	assert.True(t, accepted.Assets[0].Accepted)
	assert.False(t, accepted.Assets[0].CanClaim())

	// The deadline itself is still inside the heartbeat.
	w.clock.Advance(day)
	_, err = heir.ClaimAsset(ctx, grantor, 0)
	assert.Equal(t, "Will is not claimable", rejectionReason(t, err))

	w.clock.Advance(time.Second)
	info, err := heir.Projector().LoadWillInfo(ctx, grantor)
	require.NoError(t, err)
	assert.Equal(t, will.StateActive, info.State)
	assert.Equal(t, will.StateClaimable, info.EffectiveState(w.clock.Now()))

	claimed, err := heir.ClaimAsset(ctx, grantor, 0)
	require.NoError(t, err)
	require.NoError(t, claimed.RefreshErr)
	require.Len(t, claimed.Assets, 1)
	assert.True(t, claimed.Assets[0].Asset.Claimed)
	assert.False(t, claimed.Assets[0].Claimable)
	assert.Equal(t, ether, w.backend.Balance(bob))

	var names []string
	for _, ev := range claimed.Receipt.Events {
		names = append(names, ev.Name)
	}
	assert.Contains(t, names, contracts.EventAssetClaimed)
	assert.Contains(t, names, contracts.EventWillCompleted)

	info, err = heir.Projector().LoadWillInfo(ctx, grantor)
	require.NoError(t, err)
	assert.Equal(t, will.StateCompleted, info.State)

	_, err = heir.ClaimAsset(ctx, grantor, 0)
	assert.Equal(t, "Will is not claimable", rejectionReason(t, err))
}

func TestClaimRequiresAcceptance(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	owner := w.service(grantor)
	_, err := owner.CreateWill(ctx, day)
	require.NoError(t, err)
	_, err = owner.DepositEth(ctx, bob, ether)
	require.NoError(t, err)

	w.clock.Advance(day + time.Second)
	_, err = w.service(bob).ClaimAsset(ctx, grantor, 0)
	assert.Equal(t, "Beneficiary has not accepted", rejectionReason(t, err))

	_, err = w.service(carol).ClaimAsset(ctx, grantor, 0)
	assert.Equal(t, "Not the beneficiary", rejectionReason(t, err))

	_, err = w.service(bob).ClaimAsset(ctx, grantor, 7)
	assert.Equal(t, "Invalid asset index", rejectionReason(t, err))
}

func TestRejectedBeneficiaryCannotClaim(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	owner := w.service(grantor)
	heir := w.service(bob)
	_, err := owner.CreateWill(ctx, day)
	require.NoError(t, err)
	_, err = owner.DepositEth(ctx, bob, ether)
	require.NoError(t, err)

	_, err = heir.AcceptBeneficiary(ctx, grantor)
	require.NoError(t, err)
	out, err := heir.RejectBeneficiary(ctx, grantor)
	require.NoError(t, err)
	assert.False(t, out.Assets[0].Accepted)

	w.clock.Advance(2 * day)
	_, err = heir.ClaimAsset(ctx, grantor, 0)
	assert.Equal(t, "Beneficiary has not accepted", rejectionReason(t, err))
}

func TestRespondRequiresAssignment(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	_, err := w.service(grantor).CreateWill(ctx, day)
	require.NoError(t, err)

	_, err = w.service(carol).AcceptBeneficiary(ctx, grantor)
	assert.Equal(t, ledger.KindValidation, ledger.KindOf(err))
}

func TestCheckInResetsDeadline(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	svc := w.service(grantor)
	_, err := svc.CreateWill(ctx, day)
	require.NoError(t, err)

	w.clock.Advance(23 * time.Hour)
	out, err := svc.CheckIn(ctx)
	require.NoError(t, err)
	assert.Equal(t, w.clock.Now().Unix(), out.Will.LastCheckIn.Unix())

	w.clock.Advance(2 * time.Hour)
	assert.Equal(t, will.StateActive, out.Will.EffectiveState(w.clock.Now()))
	assert.False(t, out.Will.Overdue(w.clock.Now()))
}

func TestCheckInWhileOverdueReactivates(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	svc := w.service(grantor)
	_, err := svc.CreateWill(ctx, day)
	require.NoError(t, err)

	w.clock.Advance(3 * day)
	_, err = w.service(bob).UpdateState(ctx, grantor)
	require.NoError(t, err)

	out, err := svc.CheckIn(ctx)
	require.NoError(t, err)
	assert.Equal(t, will.StateActive, out.Will.State)
	assert.Equal(t, w.clock.Now().Unix(), out.Will.LastCheckIn.Unix())
}

func TestCheckInWithoutWill(t *testing.T) {
	_, err := newWorld().service(grantor).CheckIn(context.Background())
	assert.Equal(t, ledger.KindValidation, ledger.KindOf(err))
}

func TestUpdateStatePersistsClaimable(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	_, err := w.service(grantor).CreateWill(ctx, day)
	require.NoError(t, err)

	p := w.service(bob).Projector()
	w.clock.Advance(day + time.Second)
	claimable, err := p.IsClaimable(ctx, grantor)
	require.NoError(t, err)
	assert.True(t, claimable)
	info, err := p.LoadWillInfo(ctx, grantor)
	require.NoError(t, err)
	assert.Equal(t, will.StateActive, info.State)

	out, err := w.service(bob).UpdateState(ctx, grantor)
	require.NoError(t, err)
	assert.Equal(t, will.StateClaimable, out.Will.State)

	_, err = w.service(bob).UpdateState(ctx, carol)
	assert.Equal(t, "Will does not exist", rejectionReason(t, err))
}

func TestModifyHeartbeat(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	svc := w.service(grantor)
	_, err := svc.CreateWill(ctx, 3*day)
	require.NoError(t, err)
	created := w.clock.Now()

	_, err = svc.ModifyHeartbeat(ctx, time.Hour)
	assert.Equal(t, ledger.KindValidation, ledger.KindOf(err))

	w.clock.Advance(10 * time.Hour)
	out, err := svc.ModifyHeartbeat(ctx, 5*day)
	require.NoError(t, err)
	assert.Equal(t, 5*day, out.Will.HeartbeatInterval)
	assert.Equal(t, created.Unix(), out.Will.LastCheckIn.Unix())

	// Shortening restarts the deadline from now.
	w.clock.Advance(10 * time.Hour)
	out, err = svc.ModifyHeartbeat(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, day, out.Will.HeartbeatInterval)
	assert.Equal(t, w.clock.Now().Unix(), out.Will.LastCheckIn.Unix())
}

func TestExtendHeartbeat(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	svc := w.service(grantor)
	_, err := svc.CreateWill(ctx, 2*day)
	require.NoError(t, err)
	created := w.clock.Now()

	_, err = svc.ExtendHeartbeat(ctx, 2*day)
	assert.Equal(t, ledger.KindValidation, ledger.KindOf(err))
	_, err = svc.ExtendHeartbeat(ctx, day)
	assert.Equal(t, ledger.KindValidation, ledger.KindOf(err))

	w.clock.Advance(time.Hour)
	out, err := svc.ExtendHeartbeat(ctx, 4*day)
	require.NoError(t, err)
	assert.Equal(t, 4*day, out.Will.HeartbeatInterval)
	assert.Equal(t, created.Unix(), out.Will.LastCheckIn.Unix())

	w.clock.Advance(5 * day)
	_, err = svc.ExtendHeartbeat(ctx, 8*day)
	assert.Equal(t, ledger.KindValidation, ledger.KindOf(err))
}

func TestEmergencyWithdraw(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	svc := w.service(grantor)
	start := w.backend.Balance(grantor)

	_, err := svc.CreateWill(ctx, day)
	require.NoError(t, err)
	_, err = svc.DepositEth(ctx, bob, ether)
	require.NoError(t, err)
	_, err = svc.DepositEth(ctx, carol, ether)
	require.NoError(t, err)
	assert.Equal(t, new(big.Int).Sub(start, new(big.Int).Mul(big.NewInt(2), ether)), w.backend.Balance(grantor))

	out, err := svc.EmergencyWithdraw(ctx)
	require.NoError(t, err)
	assert.Equal(t, will.StateCompleted, out.Will.State)
	assert.Equal(t, start, w.backend.Balance(grantor))

	_, err = svc.CheckIn(ctx)
	assert.Equal(t, ledger.KindValidation, ledger.KindOf(err))
	_, err = svc.EmergencyWithdraw(ctx)
	assert.Equal(t, ledger.KindValidation, ledger.KindOf(err))
	_, err = svc.DepositEth(ctx, bob, ether)
	assert.Equal(t, "Will is not active", rejectionReason(t, err))

	heir := w.service(bob)
	_, err = heir.AcceptBeneficiary(ctx, grantor)
	require.NoError(t, err)
	w.clock.Advance(2 * day)
	_, err = heir.ClaimAsset(ctx, grantor, 0)
	assert.Equal(t, "Will is not claimable", rejectionReason(t, err))
	assert.Equal(t, 0, w.backend.Balance(bob).Sign())

	assets, err := heir.Projector().LoadBeneficiaryAssets(ctx, grantor, bob)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.False(t, assets[0].Claimable)
	assert.Nil(t, assets[0].TimeUntilClaimable)
}

func TestCompletedWillHasNoCountdown(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	svc := w.service(grantor)
	_, err := svc.CreateWill(ctx, 3*day)
	require.NoError(t, err)
	_, err = svc.DepositEth(ctx, bob, ether)
	require.NoError(t, err)
	_, err = svc.EmergencyWithdraw(ctx)
	require.NoError(t, err)

	// The deadline is still days away but nothing is left to wait for.
	assets, err := w.service(bob).Projector().LoadBeneficiaryAssets(ctx, grantor, bob)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Nil(t, assets[0].TimeUntilClaimable)
	assert.False(t, assets[0].CanClaim())
}

func TestSameAssetCannotBeClaimedTwice(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	owner := w.service(grantor)
	heir := w.service(bob)
	_, err := owner.CreateWill(ctx, day)
	require.NoError(t, err)
	_, err = owner.DepositEth(ctx, bob, ether)
	require.NoError(t, err)
	_, err = owner.DepositEth(ctx, bob, ether)
	require.NoError(t, err)
	_, err = heir.AcceptBeneficiary(ctx, grantor)
	require.NoError(t, err)
	w.clock.Advance(day + time.Second)

	_, err = heir.ClaimAsset(ctx, grantor, 0)
	require.NoError(t, err)
	_, err = heir.ClaimAsset(ctx, grantor, 0)
	assert.Equal(t, "Asset already claimed", rejectionReason(t, err))
	assert.Equal(t, ether, w.backend.Balance(bob))

	info, err := heir.Projector().LoadWillInfo(ctx, grantor)
	require.NoError(t, err)
	assert.Equal(t, will.StateClaimable, info.State)

	out, err := heir.ClaimAsset(ctx, grantor, 1)
	require.NoError(t, err)
	for _, a := range out.Assets {
		assert.True(t, a.Asset.Claimed)
	}
	info, err = heir.Projector().LoadWillInfo(ctx, grantor)
	require.NoError(t, err)
	assert.Equal(t, will.StateCompleted, info.State)
}

func TestRepeatedReadsAgree(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	svc := w.service(grantor)
	_, err := svc.CreateWill(ctx, day)
	require.NoError(t, err)
	_, err = svc.DepositEth(ctx, bob, ether)
	require.NoError(t, err)

	p := w.service(bob).Projector()
	first, err := p.LoadWillInfo(ctx, grantor)
	require.NoError(t, err)
	second, err := p.LoadWillInfo(ctx, grantor)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	firstAssets, err := p.LoadBeneficiaryAssets(ctx, grantor, bob)
	require.NoError(t, err)
	secondAssets, err := p.LoadBeneficiaryAssets(ctx, grantor, bob)
	require.NoError(t, err)
	assert.Equal(t, firstAssets, secondAssets)
}

// shortReader answers every read with no outputs.
type shortReader struct{}

func (shortReader) Ready() error { return nil }

func (shortReader) Read(context.Context, string, ...interface{}) ([]interface{}, error) {
	return []interface{}{}, nil
}

func TestShortReadsAreMalformedNotPanics(t *testing.T) {
	p := will.NewProjector(shortReader{}, nil)
	ctx := context.Background()

	checks := map[string]func() error{
		"indices":  func() error { _, err := p.BeneficiaryIndices(ctx, grantor, bob); return err },
		"count":    func() error { _, err := p.AssetCount(ctx, grantor); return err },
		"accepted": func() error { _, err := p.HasAccepted(ctx, grantor, bob); return err },
		"paused":   func() error { _, err := p.Paused(ctx); return err },
		"owner":    func() error { _, err := p.Owner(ctx); return err },
		"info":     func() error { _, err := p.LoadWillInfo(ctx, grantor); return err },
		"asset":    func() error { _, err := p.Asset(ctx, grantor, 0); return err },
		"listing":  func() error { _, err := p.LoadBeneficiaryAssets(ctx, grantor, bob); return err },
	}
	for name, call := range checks {
		t.Run(name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() { err = call() })
			var readErr *ledger.ReadError
			assert.True(t, errors.As(err, &readErr), "got %v", err)
		})
	}
}

func TestEmergencyWithdrawAfterDeadlineIsRefused(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	svc := w.service(grantor)
	_, err := svc.CreateWill(ctx, day)
	require.NoError(t, err)

	w.clock.Advance(day + time.Second)
	_, err = svc.EmergencyWithdraw(ctx)
	assert.Equal(t, ledger.KindValidation, ledger.KindOf(err))
}

func TestTokenDeposits(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	svc := w.service(grantor)
	_, err := svc.CreateWill(ctx, day)
	require.NoError(t, err)

	w.backend.MintERC20(token, grantor, big.NewInt(1000))
	_, err = svc.DepositERC20(ctx, token, big.NewInt(400), carol)
	assert.Equal(t, contracts.ErrNameSafeERC20FailedOperation, rejectionReason(t, err))

	w.backend.ApproveERC20(token, grantor, big.NewInt(400))
	_, err = svc.DepositERC20(ctx, token, big.NewInt(400), carol)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(600), w.backend.ERC20Balance(token, grantor))
	assert.Equal(t, big.NewInt(400), w.backend.ERC20Balance(token, w.backend.Address()))

	id := big.NewInt(42)
	w.backend.MintERC721(nft, id, grantor)
	_, err = svc.DepositERC721(ctx, nft, id, bob)
	assert.Equal(t, ledger.KindRejection, ledger.KindOf(err))

	w.backend.ApproveERC721(nft, grantor)
	out, err := svc.DepositERC721(ctx, nft, id, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), out.Will.AssetCount)
	assert.Equal(t, w.backend.Address(), w.backend.OwnerOf(nft, id))

	a, err := svc.Projector().Asset(ctx, grantor, 1)
	require.NoError(t, err)
	assert.Equal(t, will.NonFungibleToken, a.Type)
	assert.Equal(t, nft, a.Token)
	assert.Equal(t, int64(42), a.TokenID.Int64())
	assert.Equal(t, bob, a.Beneficiary)
}

func TestBeneficiaryListing(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	svc := w.service(grantor)
	_, err := svc.CreateWill(ctx, day)
	require.NoError(t, err)
	for _, b := range []common.Address{bob, carol, bob, bob} {
		_, err = svc.DepositEth(ctx, b, big.NewInt(1000))
		require.NoError(t, err)
	}

	p := w.service(bob).Projector()
	assets, err := p.LoadBeneficiaryAssets(ctx, grantor, bob)
	require.NoError(t, err)
	require.Len(t, assets, 3)
	assert.Equal(t, []uint64{0, 2, 3}, []uint64{assets[0].Index, assets[1].Index, assets[2].Index})
	for _, a := range assets {
		assert.Equal(t, grantor, a.Grantor)
		assert.Equal(t, bob, a.Asset.Beneficiary)
		assert.False(t, a.Accepted)
		assert.False(t, a.Claimable)
		require.NotNil(t, a.TimeUntilClaimable)
		assert.Equal(t, day, *a.TimeUntilClaimable)
	}

	none, err := p.LoadBeneficiaryAssets(ctx, grantor, vault)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = w.service(bob).AcceptBeneficiary(ctx, grantor)
	require.NoError(t, err)
	w.clock.Advance(day + time.Second)
	assets, err = p.LoadBeneficiaryAssets(ctx, grantor, bob)
	require.NoError(t, err)
	for _, a := range assets {
		assert.True(t, a.Claimable)
		assert.True(t, a.Accepted)
		assert.Nil(t, a.TimeUntilClaimable)
		assert.True(t, a.CanClaim())
	}
}

func TestListingAbortsOnReadFailure(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	_, err := w.service(grantor).CreateWill(ctx, day)
	require.NoError(t, err)

	p := will.NewProjector(&failingReader{Reader: w.backend.Client(bob), failOp: contracts.OpGetAsset}, w.clock.Now)
	_, err = w.service(grantor).DepositEth(ctx, bob, big.NewInt(1))
	require.NoError(t, err)

	assets, err := p.LoadBeneficiaryAssets(ctx, grantor, bob)
	assert.Nil(t, assets)
	assert.Equal(t, ledger.KindConnectivity, ledger.KindOf(err))
}

func TestRemoveAndReassign(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	svc := w.service(grantor)
	_, err := svc.CreateWill(ctx, day)
	require.NoError(t, err)
	_, err = svc.DepositEth(ctx, bob, ether)
	require.NoError(t, err)
	_, err = svc.DepositEth(ctx, bob, ether)
	require.NoError(t, err)

	out, err := svc.RemoveAsset(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), out.Will.AssetCount, "slots are never compacted")
	removed, err := svc.Projector().Asset(ctx, grantor, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, removed.Amount.Sign())

	_, err = svc.RemoveAsset(ctx, 0)
	assert.Equal(t, "Asset removed", rejectionReason(t, err))

	_, err = svc.UpdateBeneficiary(ctx, 1, carol)
	require.NoError(t, err)
	indices, err := svc.Projector().BeneficiaryIndices(ctx, grantor, carol)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, indices)
	indices, err = svc.Projector().BeneficiaryIndices(ctx, grantor, bob)
	require.NoError(t, err)
	assert.Empty(t, indices)

	_, err = svc.UpdateBeneficiary(ctx, 1, grantor)
	assert.Equal(t, "Invalid beneficiary", rejectionReason(t, err))
}

func TestContractBeneficiaryNeedsApproval(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	svc := w.service(grantor)
	w.backend.MarkContract(vault)

	_, err := svc.ApproveContractBeneficiary(ctx, vault)
	assert.Equal(t, ledger.KindValidation, ledger.KindOf(err), "no will yet")

	_, err = svc.CreateWill(ctx, day)
	require.NoError(t, err)
	_, err = svc.DepositEth(ctx, vault, ether)
	assert.Equal(t, "Contract beneficiary not approved", rejectionReason(t, err))

	out, err := svc.ApproveContractBeneficiary(ctx, vault)
	require.NoError(t, err)
	assert.Equal(t, contracts.EventContractBeneficiaryApproved, out.Receipt.Events[0].Name)
	ok, err := svc.Projector().IsApprovedBeneficiary(ctx, grantor, vault)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.DepositEth(ctx, vault, ether)
	require.NoError(t, err)

	_, err = svc.RevokeContractBeneficiary(ctx, vault)
	require.NoError(t, err)
	ok, err = svc.Projector().IsApprovedBeneficiary(ctx, grantor, vault)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPauseIsOwnerOnly(t *testing.T) {
	w := newWorld(simledger.WithOwner(carol))
	ctx := context.Background()
	admin := w.service(carol)

	_, err := w.service(grantor).Pause(ctx)
	assert.Equal(t, contracts.ErrNameOwnableUnauthorizedAccount, rejectionReason(t, err))

	_, err = admin.Pause(ctx)
	require.NoError(t, err)
	paused, err := admin.Projector().Paused(ctx)
	require.NoError(t, err)
	assert.True(t, paused)

	_, err = w.service(grantor).CreateWill(ctx, day)
	assert.Equal(t, contracts.ErrNameEnforcedPause, rejectionReason(t, err))
	_, err = admin.Pause(ctx)
	assert.Equal(t, contracts.ErrNameEnforcedPause, rejectionReason(t, err))

	_, err = admin.Unpause(ctx)
	require.NoError(t, err)
	_, err = admin.Unpause(ctx)
	assert.Equal(t, contracts.ErrNameExpectedPause, rejectionReason(t, err))

	_, err = w.service(grantor).CreateWill(ctx, day)
	require.NoError(t, err)

	owner, err := admin.Projector().Owner(ctx)
	require.NoError(t, err)
	assert.Equal(t, carol, owner)
}

func TestNotReadyProjections(t *testing.T) {
	w := newWorld()
	svc := will.NewService(w.backend.Client(common.Address{}))
	ctx := context.Background()

	info, err := svc.Projector().LoadWillInfo(ctx, grantor)
	assert.NoError(t, err)
	assert.Nil(t, info)
	assets, err := svc.Projector().LoadBeneficiaryAssets(ctx, grantor, bob)
	assert.NoError(t, err)
	assert.Nil(t, assets)

	_, err = svc.CreateWill(ctx, day)
	assert.ErrorIs(t, err, ledger.ErrNotReady)
	_, err = svc.Signer()
	assert.ErrorIs(t, err, ledger.ErrNotReady)
}

func TestUnreachableLedgerIsNotAnEmptyWill(t *testing.T) {
	w := newWorld()
	p := w.service(bob).Projector()
	ctx := context.Background()

	info, err := p.LoadWillInfo(ctx, grantor)
	require.NoError(t, err)
	assert.Equal(t, will.StateInactive, info.State)
	assert.False(t, info.Exists())

	w.backend.SetOffline(true)
	info, err = p.LoadWillInfo(ctx, grantor)
	assert.Nil(t, info)
	var readErr *ledger.ReadError
	assert.True(t, errors.As(err, &readErr))
	assert.Nil(t, p.LoadWillInfoOrEmpty(ctx, grantor))
}

// failingReader fails reads of one operation, or of every operation once
// armed.
type failingReader struct {
	will.Reader
	failOp string
	armed  bool
}

func (f *failingReader) Read(ctx context.Context, op string, args ...interface{}) ([]interface{}, error) {
	if f.armed || op == f.failOp {
		return nil, &ledger.ReadError{Op: op, Err: errors.New("connection reset")}
	}
	return f.Reader.Read(ctx, op, args...)
}

// flakyLedger arms its reader after the first confirmed write.
type flakyLedger struct {
	*failingReader
	client *ledger.Client
}

func (f *flakyLedger) Signer() (common.Address, error) { return f.client.Signer() }

func (f *flakyLedger) Write(ctx context.Context, op string, value *big.Int, args ...interface{}) (*ledger.Receipt, error) {
	r, err := f.client.Write(ctx, op, value, args...)
	if err == nil {
		f.armed = true
	}
	return r, err
}

func TestRefreshFailureKeepsConfirmedReceipt(t *testing.T) {
	w := newWorld()
	client := w.backend.Client(grantor)
	svc := will.NewService(&flakyLedger{failingReader: &failingReader{Reader: client}, client: client})

	out, err := svc.CreateWill(context.Background(), day)
	require.NoError(t, err)
	require.NotNil(t, out.Receipt)
	assert.Nil(t, out.Will)
	assert.Equal(t, ledger.KindConnectivity, ledger.KindOf(out.RefreshErr))

	info, err := w.service(bob).Projector().LoadWillInfo(context.Background(), grantor)
	require.NoError(t, err)
	assert.Equal(t, will.StateActive, info.State)
}

func TestLocalValidationSkipsLedger(t *testing.T) {
	w := newWorld()
	svc := w.service(grantor)
	ctx := context.Background()
	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)

	cases := []struct {
		name string
		call func() error
	}{
		{"zero interval", func() error { _, err := svc.CreateWill(ctx, 0); return err }},
		{"fractional interval", func() error { _, err := svc.CreateWill(ctx, 1500*time.Millisecond); return err }},
		{"zero beneficiary", func() error { _, err := svc.DepositEth(ctx, common.Address{}, ether); return err }},
		{"zero amount", func() error { _, err := svc.DepositEth(ctx, bob, big.NewInt(0)); return err }},
		{"negative amount", func() error { _, err := svc.DepositEth(ctx, bob, big.NewInt(-1)); return err }},
		{"nil amount", func() error { _, err := svc.DepositERC20(ctx, token, nil, bob); return err }},
		{"amount overflow", func() error { _, err := svc.DepositERC20(ctx, token, tooBig, bob); return err }},
		{"zero token", func() error { _, err := svc.DepositERC721(ctx, common.Address{}, big.NewInt(1), bob); return err }},
		{"zero grantor", func() error { _, err := svc.ClaimAsset(ctx, common.Address{}, 0); return err }},
		{"reassign to nobody", func() error { _, err := svc.UpdateBeneficiary(ctx, 0, common.Address{}); return err }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var verr *ledger.ValidationError
			assert.True(t, errors.As(tc.call(), &verr))
		})
	}
}
