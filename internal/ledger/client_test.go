package ledger_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"hera/internal/contracts"
	"hera/internal/ledger"
	"hera/internal/simledger"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

func day() *big.Int { return big.NewInt(86400) }

func TestWriteReturnsReceiptWithEvents(t *testing.T) {
	backend := simledger.New()
	c := backend.Client(alice)

	r, err := c.Write(context.Background(), contracts.OpCreateWill, nil, day())
	require.NoError(t, err)
	assert.Equal(t, contracts.OpCreateWill, r.Op)
	assert.Equal(t, alice, r.Signer)
	assert.Equal(t, uint64(1), r.BlockNumber)
	require.Len(t, r.Events, 1)
	assert.Equal(t, contracts.EventWillCreated, r.Events[0].Name)
	assert.Equal(t, alice, r.Events[0].Fields["grantor"])
	assert.Equal(t, r.TxHash, r.Events[0].TxHash)

	out, err := c.Read(context.Background(), contracts.OpGetWillInfo, alice)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), out[2])
}

func TestNotReadyWithoutSigner(t *testing.T) {
	backend := simledger.New()
	c := backend.Client(common.Address{})

	assert.ErrorIs(t, c.Ready(), ledger.ErrNotReady)
	_, err := c.Signer()
	assert.ErrorIs(t, err, ledger.ErrNotReady)

	_, err = c.Write(context.Background(), contracts.OpCheckIn, nil)
	assert.ErrorIs(t, err, ledger.ErrNotReady)
	assert.Equal(t, ledger.KindConnectivity, ledger.KindOf(err))

	// Views do not need a signer.
	_, err = c.Read(context.Background(), contracts.OpPaused)
	assert.NoError(t, err)
}

func TestWrongNetworkIsNotReady(t *testing.T) {
	backend := simledger.New()
	c := backend.Client(common.Address{}).Bind(backend.Wallet(alice).OnNetwork(big.NewInt(1)))

	err := c.Ready()
	require.ErrorIs(t, err, ledger.ErrWrongNetwork)

	_, err = c.Write(context.Background(), contracts.OpCreateWill, nil, day())
	assert.ErrorIs(t, err, ledger.ErrWrongNetwork)
}

func TestReadFailureIsReadError(t *testing.T) {
	backend := simledger.New()
	c := backend.Client(alice)
	backend.SetOffline(true)

	_, err := c.Read(context.Background(), contracts.OpGetWillInfo, alice)
	var readErr *ledger.ReadError
	require.True(t, errors.As(err, &readErr))
	assert.Equal(t, contracts.OpGetWillInfo, readErr.Op)
	assert.ErrorIs(t, err, simledger.ErrUnavailable)
	assert.Equal(t, ledger.KindConnectivity, ledger.KindOf(err))
}

func TestSubmitFailureIsConnectivity(t *testing.T) {
	backend := simledger.New()
	c := backend.Client(alice)
	backend.SetOffline(true)

	_, err := c.Write(context.Background(), contracts.OpCreateWill, nil, day())
	var conn *ledger.ConnectivityError
	require.True(t, errors.As(err, &conn))
	assert.Equal(t, ledger.KindConnectivity, ledger.KindOf(err))
}

func TestRevertIsRejectionWithReason(t *testing.T) {
	backend := simledger.New()
	c := backend.Client(alice)

	_, err := c.Write(context.Background(), contracts.OpCheckIn, nil)
	var rej *ledger.RejectionError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "Will does not exist", rej.Reason())
	assert.Equal(t, common.Hash{}, rej.TxHash)
	assert.Equal(t, ledger.KindRejection, ledger.KindOf(err))
}

func TestCustomErrorRejection(t *testing.T) {
	backend := simledger.New(simledger.WithOwner(bob))
	c := backend.Client(alice)

	_, err := c.Write(context.Background(), contracts.OpPause, nil)
	var rej *ledger.RejectionError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, contracts.ErrNameOwnableUnauthorizedAccount, rej.Reason())
	assert.Equal(t, []interface{}{alice}, rej.Revert.Args)
}

func TestUnderfundedSubmitIsRejected(t *testing.T) {
	backend := simledger.New()
	c := backend.Client(alice)
	_, err := c.Write(context.Background(), contracts.OpCreateWill, nil, day())
	require.NoError(t, err)

	_, err = c.Write(context.Background(), contracts.OpDepositEth, big.NewInt(5), bob)
	assert.Equal(t, ledger.KindRejection, ledger.KindOf(err))
}

func TestStalledInclusionIsDurabilityError(t *testing.T) {
	backend := simledger.New()
	c := backend.Client(alice, ledger.WithWriteTimeout(30*time.Millisecond))
	backend.SetStalled(true)

	_, err := c.Write(context.Background(), contracts.OpCreateWill, nil, day())
	var dur *ledger.DurabilityError
	require.True(t, errors.As(err, &dur))
	assert.NotEqual(t, common.Hash{}, dur.TxHash)
	assert.Equal(t, ledger.KindDurability, ledger.KindOf(err))

	// The transition was accepted; it shows up once inclusion resumes.
	backend.SetStalled(false)
	out, err := c.Read(context.Background(), contracts.OpGetWillInfo, alice)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), out[2])
}

func TestLocalValidation(t *testing.T) {
	backend := simledger.New()
	c := backend.Client(alice)
	ctx := context.Background()

	_, err := c.Write(ctx, contracts.OpGetWillInfo, nil, alice)
	assert.Equal(t, ledger.KindValidation, ledger.KindOf(err))

	_, err = c.Read(ctx, contracts.OpCheckIn)
	assert.Equal(t, ledger.KindValidation, ledger.KindOf(err))

	_, err = c.Write(ctx, contracts.OpCheckIn, big.NewInt(1))
	assert.Equal(t, ledger.KindValidation, ledger.KindOf(err))

	_, err = c.Write(ctx, contracts.OpDepositEth, big.NewInt(-1), bob)
	assert.Equal(t, ledger.KindValidation, ledger.KindOf(err))

	_, err = c.Write(ctx, contracts.OpCreateWill, nil)
	assert.Equal(t, ledger.KindValidation, ledger.KindOf(err))

	_, err = c.Write(ctx, "mint", nil)
	assert.ErrorIs(t, err, contracts.ErrUnknownOperation)
}

func TestPing(t *testing.T) {
	backend := simledger.New()
	c := backend.Client(alice)
	require.NoError(t, c.Ping(context.Background()))

	backend.SetOffline(true)
	assert.Error(t, c.Ping(context.Background()))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ledger.KindUnknown, ledger.KindOf(nil))
	assert.Equal(t, ledger.KindUnknown, ledger.KindOf(errors.New("boom")))
	assert.Equal(t, ledger.KindDurability, ledger.KindOf(context.DeadlineExceeded))
	assert.Equal(t, ledger.KindValidation, ledger.KindOf(ledger.Invalid("amount", "must be positive")))
	assert.Equal(t, "rejected", ledger.KindRejection.String())
}

type scriptedReceipts struct {
	misses int
	calls  int
}

func (s *scriptedReceipts) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	s.calls++
	if s.calls <= s.misses {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

func TestWaitForReceiptPollsUntilMined(t *testing.T) {
	src := &scriptedReceipts{misses: 2}
	r, err := ledger.WaitForReceipt(context.Background(), src, common.Hash{1}, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, r.Status)
	assert.Equal(t, 3, src.calls)
}

func TestWaitForReceiptHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := ledger.WaitForReceipt(ctx, &scriptedReceipts{misses: 1 << 30}, common.Hash{1}, time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
