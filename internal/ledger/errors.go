package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hera/internal/contracts"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	ErrNotReady     = errors.New("signer not connected")
	ErrWrongNetwork = errors.New("signer is connected to the wrong network")
)

// Kind classifies failures surfaced by the ledger layer.
type Kind int

const (
	KindUnknown Kind = iota
	KindConnectivity
	KindValidation
	KindRejection
	KindDurability
)

func (k Kind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindValidation:
		return "validation"
	case KindRejection:
		return "rejected"
	case KindDurability:
		return "durability"
	default:
		return "unknown"
	}
}

// ValidationError is raised before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ReadError wraps any failure of a view call.
type ReadError struct {
	Op  string
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Op, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// RejectionError carries the ledger's structured refusal. TxHash is zero
// when the transition was refused before inclusion.
type RejectionError struct {
	Op     string
	TxHash common.Hash
	Revert *contracts.Revert
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s rejected by ledger: %s", e.Op, e.Revert.String())
}

// Reason is the ledger's reason string or custom error name.
func (e *RejectionError) Reason() string {
	if e.Revert == nil {
		return ""
	}
	if e.Revert.Name != "" && e.Revert.Name != "Error" {
		return e.Revert.Name
	}
	return e.Revert.Reason
}

// ConnectivityError is a transport failure while submitting.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s: ledger unavailable: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// DurabilityError means the transition was submitted but inclusion was not
// confirmed in time. The effect may still land.
type DurabilityError struct {
	Op     string
	TxHash common.Hash
	Err    error
}

func (e *DurabilityError) Error() string {
	return fmt.Sprintf("%s: inclusion of %s not confirmed: %v", e.Op, e.TxHash.Hex(), e.Err)
}

func (e *DurabilityError) Unwrap() error { return e.Err }

// KindOf maps an error onto the failure taxonomy.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var (
		validation *ValidationError
		shape      *contracts.ShapeError
		rejection  *RejectionError
		durability *DurabilityError
		conn       *ConnectivityError
		read       *ReadError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &shape), errors.Is(err, contracts.ErrUnknownOperation):
		return KindValidation
	case errors.As(err, &rejection):
		return KindRejection
	case errors.As(err, &durability):
		return KindDurability
	case errors.Is(err, ErrNotReady), errors.Is(err, ErrWrongNetwork), errors.As(err, &conn), errors.As(err, &read):
		return KindConnectivity
	case errors.Is(err, context.DeadlineExceeded):
		return KindDurability
	}
	return KindUnknown
}

// revertData extracts the revert payload a node attached to a JSON-RPC error.
func revertData(err error) ([]byte, bool) {
	var de rpc.DataError
	if !errors.As(err, &de) {
		return nil, false
	}
	switch v := de.ErrorData().(type) {
	case string:
		b, decErr := hexutil.Decode(v)
		return b, decErr == nil
	case []byte:
		return v, true
	}
	return nil, false
}

// asRejection turns node errors into a RejectionError when the node
// answered with a refusal rather than failing to answer. Outside of
// submission only errors carrying revert data count as refusals.
func asRejection(desc *contracts.Descriptor, op string, txHash common.Hash, err error, submitting bool) (*RejectionError, bool) {
	var existing *RejectionError
	if errors.As(err, &existing) {
		return existing, true
	}
	if data, ok := revertData(err); ok {
		return &RejectionError{Op: op, TxHash: txHash, Revert: desc.DecodeRevert(data)}, true
	}
	if !submitting {
		return nil, false
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) || strings.Contains(err.Error(), "execution reverted") {
		return &RejectionError{Op: op, TxHash: txHash, Revert: &contracts.Revert{Reason: err.Error(), Name: "Error"}}, true
	}
	return nil, false
}
