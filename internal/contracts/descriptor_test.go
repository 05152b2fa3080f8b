package contracts

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	grantor     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	beneficiary = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

func TestLoadDescribesEveryOperation(t *testing.T) {
	d, err := Load()
	require.NoError(t, err)

	writes := []string{
		OpCreateWill, OpDepositEth, OpDepositERC20, OpDepositERC721, OpCheckIn,
		OpAcceptBeneficiary, OpRejectBeneficiary, OpClaimAsset,
		OpApproveContractBeneficiary, OpRevokeContractBeneficiary,
		OpModifyHeartbeat, OpExtendHeartbeat, OpEmergencyWithdraw,
		OpRemoveAsset, OpUpdateBeneficiary, OpUpdateState, OpPause, OpUnpause,
	}
	for _, name := range writes {
		op, err := d.Operation(name)
		require.NoError(t, err, name)
		assert.True(t, op.Mutates(), name)
	}

	reads := []string{
		OpGetWillInfo, OpGetAsset, OpGetAssetCount, OpGetBeneficiaryAssets,
		OpHasBeneficiaryAccepted, OpIsApprovedBeneficiary, OpIsClaimable, OpOwner, OpPaused,
	}
	for _, name := range reads {
		op, err := d.Operation(name)
		require.NoError(t, err, name)
		assert.False(t, op.Mutates(), name)
	}

	deposit, _ := d.Operation(OpDepositEth)
	assert.True(t, deposit.Payable())
	checkIn, _ := d.Operation(OpCheckIn)
	assert.False(t, checkIn.Payable())

	claim, _ := d.Operation(OpClaimAsset)
	assert.Equal(t, "claimAsset(address,uint256)", claim.Signature())

	assert.Contains(t, d.Events(), EventWillCreated)
	assert.Contains(t, d.Errors(), ErrNameEnforcedPause)
}

func TestUnknownOperation(t *testing.T) {
	d := MustLoad()
	_, err := d.Operation("selfDestruct")
	assert.True(t, errors.Is(err, ErrUnknownOperation))

	_, err = d.Pack("selfDestruct")
	assert.True(t, errors.Is(err, ErrUnknownOperation))
}

func TestPackValidatesShape(t *testing.T) {
	d := MustLoad()

	_, err := d.Pack(OpClaimAsset, grantor)
	var shape *ShapeError
	require.True(t, errors.As(err, &shape))
	assert.Contains(t, shape.Reason, "expected 2 arguments, got 1")

	_, err = d.Pack(OpClaimAsset, grantor, (*big.Int)(nil))
	require.True(t, errors.As(err, &shape))

	_, err = d.Pack(OpClaimAsset, "0xnot", big.NewInt(1))
	require.True(t, errors.As(err, &shape))
}

func TestPackDecodeCallRoundTrip(t *testing.T) {
	d := MustLoad()

	data, err := d.Pack(OpClaimAsset, grantor, big.NewInt(3))
	require.NoError(t, err)

	op, args, err := d.DecodeCall(data)
	require.NoError(t, err)
	assert.Equal(t, OpClaimAsset, op.Name)
	assert.Equal(t, op.Selector[:], data[:4])
	assert.Equal(t, grantor, args[0])
	assert.Equal(t, int64(3), args[1].(*big.Int).Int64())

	_, _, err = d.DecodeCall([]byte{1, 2})
	assert.Error(t, err)
}

func TestViewOutputs(t *testing.T) {
	d := MustLoad()

	raw, err := d.PackOutputs(OpGetWillInfo, big.NewInt(100), big.NewInt(86400), uint8(1), big.NewInt(2))
	require.NoError(t, err)
	out, err := d.Unpack(OpGetWillInfo, raw)
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, uint8(1), out[2])
}

func TestDecodeRevert(t *testing.T) {
	d := MustLoad()

	r := d.DecodeRevert(EncodeReason("Will is not claimable"))
	assert.Equal(t, "Error", r.Name)
	assert.Equal(t, "Will is not claimable", r.Reason)
	assert.Equal(t, "Will is not claimable", r.String())

	data, err := d.EncodeError(ErrNameOwnableUnauthorizedAccount, grantor)
	require.NoError(t, err)
	r = d.DecodeRevert(data)
	assert.Equal(t, ErrNameOwnableUnauthorizedAccount, r.Name)
	require.Len(t, r.Args, 1)
	assert.Equal(t, grantor, r.Args[0])

	data, err = d.EncodeError(ErrNameEnforcedPause)
	require.NoError(t, err)
	assert.Equal(t, "EnforcedPause", d.DecodeRevert(data).String())

	r = d.DecodeRevert([]byte{0xde, 0xad, 0xbe, 0xef, 0x01})
	assert.Empty(t, r.Name)
	assert.Contains(t, r.String(), "execution reverted")

	var nilRevert *Revert
	assert.Equal(t, "execution reverted", nilRevert.String())
}

func TestLogRoundTrip(t *testing.T) {
	d := MustLoad()
	contract := common.HexToAddress("0x68eCEac93e1d8AB3c9082D1d7b4f7A768200F129")

	l, err := d.EncodeLog(EventAssetDeposited, contract,
		grantor, uint8(0), common.Address{}, big.NewInt(0), big.NewInt(5), beneficiary)
	require.NoError(t, err)
	require.Len(t, l.Topics, 3)

	ev, err := d.DecodeLog(l)
	require.NoError(t, err)
	assert.Equal(t, EventAssetDeposited, ev.Name)
	assert.Equal(t, grantor, ev.Fields["grantor"])
	assert.Equal(t, beneficiary, ev.Fields["beneficiary"])
	assert.Equal(t, int64(5), ev.Fields["amount"].(*big.Int).Int64())

	done, err := d.EncodeLog(EventWillCompleted, contract, grantor)
	require.NoError(t, err)
	ev, err = d.DecodeLog(done)
	require.NoError(t, err)
	assert.Equal(t, grantor, ev.Fields["grantor"])

	_, err = d.EncodeLog(EventCheckIn, contract, grantor)
	assert.Error(t, err)
}
