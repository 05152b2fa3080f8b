package will

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"time"

	"hera/internal/contracts"
	"hera/internal/ledger"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

const defaultFanout = 8

// Reader is the read half of the ledger client.
type Reader interface {
	Ready() error
	Read(ctx context.Context, op string, args ...interface{}) ([]interface{}, error)
}

// Projector derives will snapshots from ledger reads. Every call builds a
// fresh snapshot; nothing is cached between calls.
type Projector struct {
	ledger Reader
	now    func() time.Time
	fanout int
}

func NewProjector(r Reader, now func() time.Time) *Projector {
	if now == nil {
		now = time.Now
	}
	return &Projector{ledger: r, now: now, fanout: defaultFanout}
}

// LoadWillInfo returns the grantor's will. It returns nil, nil while no
// signer is connected. Read failures come back as *ledger.ReadError so the
// caller can tell "no will" (State INACTIVE) from "ledger unreachable".
func (p *Projector) LoadWillInfo(ctx context.Context, grantor common.Address) (*WillInfo, error) {
	if p.ledger.Ready() != nil {
		return nil, nil
	}
	if err := requireAddress("grantor", grantor); err != nil {
		return nil, err
	}
	return p.readWillInfo(ctx, grantor)
}

// LoadWillInfoOrEmpty folds every failure into the empty projection.
func (p *Projector) LoadWillInfoOrEmpty(ctx context.Context, grantor common.Address) *WillInfo {
	info, err := p.LoadWillInfo(ctx, grantor)
	if err != nil {
		return nil
	}
	return info
}

func (p *Projector) readWillInfo(ctx context.Context, grantor common.Address) (*WillInfo, error) {
	out, err := p.ledger.Read(ctx, contracts.OpGetWillInfo, grantor)
	if err != nil {
		return nil, err
	}
	if err := requireOutputs(contracts.OpGetWillInfo, out, 4); err != nil {
		return nil, err
	}
	last, err := asUint64(contracts.OpGetWillInfo, out[0])
	if err != nil {
		return nil, err
	}
	interval, err := asUint64(contracts.OpGetWillInfo, out[1])
	if err != nil {
		return nil, err
	}
	code, ok := out[2].(uint8)
	if !ok {
		return nil, malformed(contracts.OpGetWillInfo, "state is %T", out[2])
	}
	state, err := stateFromCode(code)
	if err != nil {
		return nil, &ledger.ReadError{Op: contracts.OpGetWillInfo, Err: err}
	}
	count, err := asUint64(contracts.OpGetWillInfo, out[3])
	if err != nil {
		return nil, err
	}
	if last > math.MaxInt64 || interval > uint64(math.MaxInt64/int64(time.Second)) {
		return nil, malformed(contracts.OpGetWillInfo, "timestamps out of range")
	}
	return &WillInfo{
		Grantor:           grantor,
		LastCheckIn:       time.Unix(int64(last), 0).UTC(),
		HeartbeatInterval: time.Duration(interval) * time.Second,
		State:             state,
		AssetCount:        count,
	}, nil
}

// LoadBeneficiaryAssets lists the assets grantor assigned to beneficiary.
// Grantor-level facts are read once and the asset records are fetched
// concurrently; the first failure aborts the whole listing.
func (p *Projector) LoadBeneficiaryAssets(ctx context.Context, grantor, beneficiary common.Address) ([]BeneficiaryAsset, error) {
	if p.ledger.Ready() != nil {
		return nil, nil
	}
	if err := requireAddress("grantor", grantor); err != nil {
		return nil, err
	}
	if err := requireAddress("beneficiary", beneficiary); err != nil {
		return nil, err
	}

	indices, err := p.BeneficiaryIndices(ctx, grantor, beneficiary)
	if err != nil {
		return nil, err
	}
	if len(indices) == 0 {
		return []BeneficiaryAsset{}, nil
	}

	var (
		accepted  bool
		claimable bool
		info      *WillInfo
		assets    = make([]Asset, len(indices))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.fanout)
	g.Go(func() (err error) {
		accepted, err = p.HasAccepted(gctx, grantor, beneficiary)
		return err
	})
	g.Go(func() (err error) {
		claimable, err = p.IsClaimable(gctx, grantor)
		return err
	})
	g.Go(func() (err error) {
		info, err = p.readWillInfo(gctx, grantor)
		return err
	})
	for i, index := range indices {
		i, index := i, index
		g.Go(func() error {
			a, err := p.Asset(gctx, grantor, index)
			if err != nil {
				return err
			}
			assets[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var remaining *time.Duration
	if secs := info.Deadline().Unix() - p.now().Unix(); secs > 0 && info.State == StateActive {
		d := time.Duration(secs) * time.Second
		remaining = &d
	}

	out := make([]BeneficiaryAsset, len(indices))
	for i, index := range indices {
		out[i] = BeneficiaryAsset{
			Grantor:            grantor,
			Index:              index,
			Asset:              assets[i],
			Claimable:          claimable && !assets[i].Claimed,
			TimeUntilClaimable: remaining,
			Accepted:           accepted,
		}
	}
	return out, nil
}

// BeneficiaryIndices returns the asset slots assigned to beneficiary.
func (p *Projector) BeneficiaryIndices(ctx context.Context, grantor, beneficiary common.Address) ([]uint64, error) {
	out, err := p.ledger.Read(ctx, contracts.OpGetBeneficiaryAssets, grantor, beneficiary)
	if err != nil {
		return nil, err
	}
	if err := requireOutputs(contracts.OpGetBeneficiaryAssets, out, 1); err != nil {
		return nil, err
	}
	raw, ok := out[0].([]*big.Int)
	if !ok {
		return nil, malformed(contracts.OpGetBeneficiaryAssets, "indices are %T", out[0])
	}
	indices := make([]uint64, len(raw))
	for i, v := range raw {
		if indices[i], err = asUint64(contracts.OpGetBeneficiaryAssets, v); err != nil {
			return nil, err
		}
	}
	return indices, nil
}

func (p *Projector) Asset(ctx context.Context, grantor common.Address, index uint64) (Asset, error) {
	out, err := p.ledger.Read(ctx, contracts.OpGetAsset, grantor, new(big.Int).SetUint64(index))
	if err != nil {
		return Asset{}, err
	}
	if err := requireOutputs(contracts.OpGetAsset, out, 6); err != nil {
		return Asset{}, err
	}
	kind, ok1 := out[0].(uint8)
	token, ok2 := out[1].(common.Address)
	tokenID, ok3 := out[2].(*big.Int)
	amount, ok4 := out[3].(*big.Int)
	beneficiary, ok5 := out[4].(common.Address)
	claimed, ok6 := out[5].(bool)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) {
		return Asset{}, malformed(contracts.OpGetAsset, "unexpected output types")
	}
	if kind > uint8(NonFungibleToken) {
		return Asset{}, malformed(contracts.OpGetAsset, "unknown asset type %d", kind)
	}
	return Asset{
		Type:        AssetType(kind),
		Token:       token,
		TokenID:     tokenID,
		Amount:      amount,
		Beneficiary: beneficiary,
		Claimed:     claimed,
	}, nil
}

func (p *Projector) AssetCount(ctx context.Context, grantor common.Address) (uint64, error) {
	out, err := p.ledger.Read(ctx, contracts.OpGetAssetCount, grantor)
	if err != nil {
		return 0, err
	}
	if err := requireOutputs(contracts.OpGetAssetCount, out, 1); err != nil {
		return 0, err
	}
	return asUint64(contracts.OpGetAssetCount, out[0])
}

func (p *Projector) HasAccepted(ctx context.Context, grantor, beneficiary common.Address) (bool, error) {
	return p.readBool(ctx, contracts.OpHasBeneficiaryAccepted, grantor, beneficiary)
}

func (p *Projector) IsApprovedBeneficiary(ctx context.Context, grantor, beneficiary common.Address) (bool, error) {
	return p.readBool(ctx, contracts.OpIsApprovedBeneficiary, grantor, beneficiary)
}

// IsClaimable is time-derived on the ledger and may turn true before the
// stored state does.
func (p *Projector) IsClaimable(ctx context.Context, grantor common.Address) (bool, error) {
	return p.readBool(ctx, contracts.OpIsClaimable, grantor)
}

func (p *Projector) Paused(ctx context.Context) (bool, error) {
	return p.readBool(ctx, contracts.OpPaused)
}

func (p *Projector) Owner(ctx context.Context) (common.Address, error) {
	out, err := p.ledger.Read(ctx, contracts.OpOwner)
	if err != nil {
		return common.Address{}, err
	}
	if err := requireOutputs(contracts.OpOwner, out, 1); err != nil {
		return common.Address{}, err
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, malformed(contracts.OpOwner, "owner is %T", out[0])
	}
	return addr, nil
}

func (p *Projector) readBool(ctx context.Context, op string, args ...interface{}) (bool, error) {
	out, err := p.ledger.Read(ctx, op, args...)
	if err != nil {
		return false, err
	}
	if err := requireOutputs(op, out, 1); err != nil {
		return false, err
	}
	v, ok := out[0].(bool)
	if !ok {
		return false, malformed(op, "result is %T", out[0])
	}
	return v, nil
}

func asUint64(op string, v interface{}) (uint64, error) {
	b, ok := v.(*big.Int)
	if !ok || b == nil {
		return 0, malformed(op, "expected uint256, got %T", v)
	}
	if !b.IsUint64() {
		return 0, malformed(op, "value %s out of range", b)
	}
	return b.Uint64(), nil
}

func requireOutputs(op string, out []interface{}, n int) error {
	if len(out) != n {
		return malformed(op, "expected %d outputs, got %d", n, len(out))
	}
	return nil
}

func malformed(op, format string, args ...interface{}) error {
	return &ledger.ReadError{Op: op, Err: fmt.Errorf(format, args...)}
}
