package will

import (
	"math/big"
	"strings"
	"time"

	"hera/internal/ledger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ParseAddress parses a hex account identifier.
func ParseAddress(field, s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return common.Address{}, ledger.Invalid(field, "is required")
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, ledger.Invalid(field, "%q is not an address", s)
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return common.Address{}, ledger.Invalid(field, "must not be the zero address")
	}
	return addr, nil
}

// ParseAmount parses a base-10 quantity in base units.
func ParseAmount(field, s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ledger.Invalid(field, "is required")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, ledger.Invalid(field, "%q is not a base-10 integer", s)
	}
	if err := requireUint256(field, v); err != nil {
		return nil, err
	}
	return v, nil
}

func requireAddress(field string, a common.Address) error {
	if a == (common.Address{}) {
		return ledger.Invalid(field, "is required")
	}
	return nil
}

func requireUint256(field string, v *big.Int) error {
	if v == nil {
		return ledger.Invalid(field, "is required")
	}
	if v.Sign() < 0 {
		return ledger.Invalid(field, "must not be negative")
	}
	if _, overflow := uint256.FromBig(v); overflow {
		return ledger.Invalid(field, "exceeds uint256")
	}
	return nil
}

func requirePositive(field string, v *big.Int) error {
	if err := requireUint256(field, v); err != nil {
		return err
	}
	if v.Sign() == 0 {
		return ledger.Invalid(field, "must be greater than zero")
	}
	return nil
}

// intervalSeconds converts d to whole positive seconds.
func intervalSeconds(field string, d time.Duration) (*big.Int, error) {
	if d <= 0 {
		return nil, ledger.Invalid(field, "must be positive")
	}
	if d%time.Second != 0 {
		return nil, ledger.Invalid(field, "must be a whole number of seconds")
	}
	return big.NewInt(int64(d / time.Second)), nil
}
