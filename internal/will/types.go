package will

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MinHeartbeat is the shortest heartbeat a grantor may configure.
const MinHeartbeat = 24 * time.Hour

// State is the will lifecycle state as stored on the ledger.
type State uint8

const (
	StateInactive State = iota
	StateActive
	StateClaimable
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "INACTIVE"
	case StateActive:
		return "ACTIVE"
	case StateClaimable:
		return "CLAIMABLE"
	case StateCompleted:
		return "COMPLETED"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func stateFromCode(code uint8) (State, error) {
	if code > uint8(StateCompleted) {
		return 0, fmt.Errorf("unknown will state code %d", code)
	}
	return State(code), nil
}

// AssetType is the kind of custodied asset.
type AssetType uint8

const (
	NativeCoin AssetType = iota
	FungibleToken
	NonFungibleToken
)

func (t AssetType) String() string {
	switch t {
	case NativeCoin:
		return "NATIVE_COIN"
	case FungibleToken:
		return "FUNGIBLE_TOKEN"
	case NonFungibleToken:
		return "NON_FUNGIBLE_TOKEN"
	}
	return fmt.Sprintf("AssetType(%d)", uint8(t))
}

func (t AssetType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Asset is one slot of a will. Slots are never compacted.
type Asset struct {
	Type        AssetType
	Token       common.Address
	TokenID     *big.Int
	Amount      *big.Int
	Beneficiary common.Address
	Claimed     bool
}

// WillInfo is the projection of a grantor's will.
type WillInfo struct {
	Grantor           common.Address
	LastCheckIn       time.Time
	HeartbeatInterval time.Duration
	State             State
	AssetCount        uint64
}

// Exists reports whether the will was ever created.
func (w *WillInfo) Exists() bool {
	return w != nil && w.State != StateInactive
}

// Deadline is the last instant a check-in keeps the will active.
func (w *WillInfo) Deadline() time.Time {
	return w.LastCheckIn.Add(w.HeartbeatInterval)
}

// Overdue mirrors the ledger rule now > lastCheckIn + heartbeatInterval.
func (w *WillInfo) Overdue(now time.Time) bool {
	return now.Unix() > w.Deadline().Unix()
}

// EffectiveState is the state the ledger will settle on at now. The stored
// state may still read ACTIVE after the deadline until a recompute lands.
func (w *WillInfo) EffectiveState(now time.Time) State {
	if w.State == StateActive && w.Overdue(now) {
		return StateClaimable
	}
	return w.State
}

// BeneficiaryAsset is one asset as seen by its beneficiary.
type BeneficiaryAsset struct {
	Grantor   common.Address
	Index     uint64
	Asset     Asset
	Claimable bool
	// TimeUntilClaimable is nil once the deadline has passed or the will
	// is no longer active.
	TimeUntilClaimable *time.Duration
	Accepted           bool
}

// CanClaim reports whether a claim by the beneficiary should succeed.
func (b BeneficiaryAsset) CanClaim() bool {
	return b.Claimable && b.Accepted
}
