package contracts

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Mutability mirrors the ABI stateMutability field.
type Mutability string

const (
	View       Mutability = "view"
	Pure       Mutability = "pure"
	NonPayable Mutability = "nonpayable"
	Payable    Mutability = "payable"
)

// Operation names exposed by DigitalWillFactory.
const (
	OpCreateWill                 = "createWill"
	OpDepositEth                 = "depositEth"
	OpDepositERC20               = "depositERC20"
	OpDepositERC721              = "depositERC721"
	OpCheckIn                    = "checkIn"
	OpAcceptBeneficiary          = "acceptBeneficiary"
	OpRejectBeneficiary          = "rejectBeneficiary"
	OpClaimAsset                 = "claimAsset"
	OpApproveContractBeneficiary = "approveContractBeneficiary"
	OpRevokeContractBeneficiary  = "revokeContractBeneficiary"
	OpModifyHeartbeat            = "modifyHeartbeat"
	OpExtendHeartbeat            = "extendHeartbeat"
	OpEmergencyWithdraw          = "emergencyWithdraw"
	OpRemoveAsset                = "removeAsset"
	OpUpdateBeneficiary          = "updateBeneficiary"
	OpUpdateState                = "updateState"
	OpPause                      = "pause"
	OpUnpause                    = "unpause"

	OpGetWillInfo            = "getWillInfo"
	OpGetAsset               = "getAsset"
	OpGetAssetCount          = "getAssetCount"
	OpGetBeneficiaryAssets   = "getBeneficiaryAssets"
	OpHasBeneficiaryAccepted = "hasBeneficiaryAccepted"
	OpIsApprovedBeneficiary  = "isApprovedBeneficiary"
	OpIsClaimable            = "isClaimable"
	OpOwner                  = "owner"
	OpPaused                 = "paused"
)

// Event names emitted by DigitalWillFactory.
const (
	EventWillCreated                 = "WillCreated"
	EventAssetDeposited              = "AssetDeposited"
	EventAssetRemoved                = "AssetRemoved"
	EventAssetClaimed                = "AssetClaimed"
	EventCheckIn                     = "CheckIn"
	EventBeneficiaryAccepted         = "BeneficiaryAccepted"
	EventBeneficiaryRejected         = "BeneficiaryRejected"
	EventBeneficiaryUpdated          = "BeneficiaryUpdated"
	EventContractBeneficiaryApproved = "ContractBeneficiaryApproved"
	EventContractBeneficiaryRevoked  = "ContractBeneficiaryRevoked"
	EventHeartbeatModified           = "HeartbeatModified"
	EventHeartbeatExtended           = "HeartbeatExtended"
	EventEmergencyWithdraw           = "EmergencyWithdraw"
	EventStateUpdated                = "StateUpdated"
	EventWillCompleted               = "WillCompleted"
	EventPaused                      = "Paused"
	EventUnpaused                    = "Unpaused"
)

// Custom errors declared by DigitalWillFactory.
const (
	ErrNameEnforcedPause              = "EnforcedPause"
	ErrNameExpectedPause              = "ExpectedPause"
	ErrNameOwnableUnauthorizedAccount = "OwnableUnauthorizedAccount"
	ErrNameReentrancyGuard            = "ReentrancyGuardReentrantCall"
	ErrNameSafeERC20FailedOperation   = "SafeERC20FailedOperation"
)

// ErrUnknownOperation is returned for names the ABI does not declare.
var ErrUnknownOperation = errors.New("unknown contract operation")

var (
	stringType, _  = abi.NewType("string", "", nil)
	uint256Type, _ = abi.NewType("uint256", "", nil)

	reasonArgs     = abi.Arguments{{Type: stringType}}
	panicArgs      = abi.Arguments{{Type: uint256Type}}
	reasonSelector = crypto.Keccak256([]byte("Error(string)"))[:4]
	panicSelector  = crypto.Keccak256([]byte("Panic(uint256)"))[:4]
)

// Operation describes one callable contract function.
type Operation struct {
	Name       string
	Inputs     abi.Arguments
	Outputs    abi.Arguments
	Mutability Mutability
	Selector   [4]byte
}

// Mutates reports whether the operation needs a signed transaction.
func (o Operation) Mutates() bool {
	return o.Mutability != View && o.Mutability != Pure
}

func (o Operation) Payable() bool {
	return o.Mutability == Payable
}

// Signature renders the canonical name(type,...) form.
func (o Operation) Signature() string {
	parts := make([]string, len(o.Inputs))
	for i, in := range o.Inputs {
		parts[i] = in.Type.String()
	}
	return fmt.Sprintf("%s(%s)", o.Name, strings.Join(parts, ","))
}

// ShapeError reports arguments that do not match an operation's inputs.
type ShapeError struct {
	Op     string
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: invalid arguments: %s", e.Op, e.Reason)
}

// Revert is a decoded revert payload.
type Revert struct {
	// Name is the custom error name, "Error" for require messages or
	// "Panic" for compiler panics. Empty when the payload was not recognised.
	Name   string
	Args   []interface{}
	Reason string
	Data   []byte
}

func (r *Revert) String() string {
	switch {
	case r == nil:
		return "execution reverted"
	case r.Name == "Error":
		return r.Reason
	case r.Name == "Panic":
		return "panic: " + r.Reason
	case r.Name != "":
		if len(r.Args) == 0 {
			return r.Name
		}
		args := make([]string, len(r.Args))
		for i, a := range r.Args {
			args[i] = fmt.Sprint(a)
		}
		return fmt.Sprintf("%s(%s)", r.Name, strings.Join(args, ", "))
	case len(r.Data) > 0:
		return fmt.Sprintf("execution reverted (0x%x)", r.Data)
	default:
		return "execution reverted"
	}
}

// Event is a decoded contract log.
type Event struct {
	Name     string
	Fields   map[string]interface{}
	TxHash   common.Hash
	LogIndex uint
}

// Descriptor is the typed view of the contract ABI that every call site
// validates against.
type Descriptor struct {
	abi abi.ABI
	ops map[string]Operation
}

var (
	loadOnce sync.Once
	loaded   *Descriptor
	loadErr  error
)

// Load returns the shared descriptor for DigitalWillFactory.
func Load() (*Descriptor, error) {
	loadOnce.Do(func() {
		loaded, loadErr = Parse(DigitalWillFactoryABI)
	})
	return loaded, loadErr
}

// MustLoad is Load for package initialisation paths.
func MustLoad() *Descriptor {
	d, err := Load()
	if err != nil {
		panic(fmt.Sprintf("contracts: %v", err))
	}
	return d
}

// Parse builds a descriptor from a JSON ABI.
func Parse(raw string) (*Descriptor, error) {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	ops := make(map[string]Operation, len(parsed.Methods))
	for name, m := range parsed.Methods {
		var sel [4]byte
		copy(sel[:], m.ID)
		ops[name] = Operation{
			Name:       name,
			Inputs:     m.Inputs,
			Outputs:    m.Outputs,
			Mutability: Mutability(m.StateMutability),
			Selector:   sel,
		}
	}
	return &Descriptor{abi: parsed, ops: ops}, nil
}

func (d *Descriptor) ABI() abi.ABI {
	return d.abi
}

// Operation looks up an operation by name.
func (d *Descriptor) Operation(name string) (Operation, error) {
	op, ok := d.ops[name]
	if !ok {
		return Operation{}, fmt.Errorf("%w: %s", ErrUnknownOperation, name)
	}
	return op, nil
}

// Operations lists every operation sorted by name.
func (d *Descriptor) Operations() []Operation {
	out := make([]Operation, 0, len(d.ops))
	for _, op := range d.ops {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (d *Descriptor) Events() []string {
	return sortedKeys(d.abi.Events)
}

func (d *Descriptor) Errors() []string {
	return sortedKeys(d.abi.Errors)
}

// Pack validates args against the operation inputs and returns calldata.
func (d *Descriptor) Pack(name string, args ...interface{}) ([]byte, error) {
	op, err := d.Operation(name)
	if err != nil {
		return nil, err
	}
	if len(args) != len(op.Inputs) {
		return nil, &ShapeError{
			Op:     op.Signature(),
			Reason: fmt.Sprintf("expected %d arguments, got %d", len(op.Inputs), len(args)),
		}
	}
	for i, a := range args {
		if a == nil {
			return nil, &ShapeError{Op: op.Signature(), Reason: fmt.Sprintf("argument %d is nil", i)}
		}
		if b, ok := a.(*big.Int); ok && b == nil {
			return nil, &ShapeError{Op: op.Signature(), Reason: fmt.Sprintf("argument %d is nil", i)}
		}
	}
	data, err := d.abi.Pack(name, args...)
	if err != nil {
		return nil, &ShapeError{Op: op.Signature(), Reason: err.Error()}
	}
	return data, nil
}

// Unpack decodes the return data of a view call.
func (d *Descriptor) Unpack(name string, data []byte) ([]interface{}, error) {
	if _, err := d.Operation(name); err != nil {
		return nil, err
	}
	out, err := d.abi.Unpack(name, data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", name, err)
	}
	return out, nil
}

// DecodeCall resolves calldata back to its operation and arguments.
func (d *Descriptor) DecodeCall(data []byte) (Operation, []interface{}, error) {
	if len(data) < 4 {
		return Operation{}, nil, fmt.Errorf("calldata too short: %d bytes", len(data))
	}
	m, err := d.abi.MethodById(data[:4])
	if err != nil {
		return Operation{}, nil, fmt.Errorf("%w: selector 0x%x", ErrUnknownOperation, data[:4])
	}
	args, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return Operation{}, nil, fmt.Errorf("decode %s args: %w", m.Name, err)
	}
	return d.ops[m.Name], args, nil
}

// PackOutputs encodes return values for an operation.
func (d *Descriptor) PackOutputs(name string, values ...interface{}) ([]byte, error) {
	op, err := d.Operation(name)
	if err != nil {
		return nil, err
	}
	return op.Outputs.Pack(values...)
}

// EncodeError encodes a custom error declared in the ABI.
func (d *Descriptor) EncodeError(name string, args ...interface{}) ([]byte, error) {
	e, ok := d.abi.Errors[name]
	if !ok {
		return nil, fmt.Errorf("unknown contract error %s", name)
	}
	packed, err := e.Inputs.Pack(args...)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	out := make([]byte, 0, 4+len(packed))
	out = append(out, e.ID[:4]...)
	return append(out, packed...), nil
}

// EncodeReason encodes a require message as Error(string).
func EncodeReason(reason string) []byte {
	packed, _ := reasonArgs.Pack(reason)
	out := make([]byte, 0, 4+len(packed))
	out = append(out, reasonSelector...)
	return append(out, packed...)
}

// DecodeRevert maps revert data to a Revert. It never fails; unrecognised
// payloads come back with only Data set.
func (d *Descriptor) DecodeRevert(data []byte) *Revert {
	r := &Revert{Data: data}
	if len(data) < 4 {
		return r
	}
	sel, body := data[:4], data[4:]
	switch {
	case bytes.Equal(sel, reasonSelector):
		if vals, err := reasonArgs.Unpack(body); err == nil && len(vals) == 1 {
			r.Name = "Error"
			r.Reason, _ = vals[0].(string)
		}
		return r
	case bytes.Equal(sel, panicSelector):
		if vals, err := panicArgs.Unpack(body); err == nil && len(vals) == 1 {
			r.Name = "Panic"
			r.Reason = fmt.Sprintf("0x%x", vals[0])
		}
		return r
	}
	for name, e := range d.abi.Errors {
		if !bytes.Equal(sel, e.ID[:4]) {
			continue
		}
		args, err := e.Inputs.Unpack(body)
		if err != nil {
			return r
		}
		r.Name = name
		r.Args = args
		r.Reason = name
		return r
	}
	return r
}

// EncodeLog builds a log for the named event. fields follow the declared
// input order, indexed and non-indexed interleaved as in the ABI.
func (d *Descriptor) EncodeLog(name string, contract common.Address, fields ...interface{}) (*types.Log, error) {
	ev, ok := d.abi.Events[name]
	if !ok {
		return nil, fmt.Errorf("unknown contract event %s", name)
	}
	if len(fields) != len(ev.Inputs) {
		return nil, fmt.Errorf("event %s: expected %d fields, got %d", name, len(ev.Inputs), len(fields))
	}
	topics := []common.Hash{ev.ID}
	var plain []interface{}
	for i, in := range ev.Inputs {
		if !in.Indexed {
			plain = append(plain, fields[i])
			continue
		}
		t, err := abi.MakeTopics([]interface{}{fields[i]})
		if err != nil {
			return nil, fmt.Errorf("event %s topic %s: %w", name, in.Name, err)
		}
		topics = append(topics, t[0][0])
	}
	data, err := ev.Inputs.NonIndexed().Pack(plain...)
	if err != nil {
		return nil, fmt.Errorf("event %s data: %w", name, err)
	}
	return &types.Log{Address: contract, Topics: topics, Data: data}, nil
}

// DecodeLog decodes a receipt log emitted by the contract.
func (d *Descriptor) DecodeLog(l *types.Log) (Event, error) {
	if l == nil || len(l.Topics) == 0 {
		return Event{}, errors.New("log has no topics")
	}
	ev, err := d.abi.EventByID(l.Topics[0])
	if err != nil {
		return Event{}, fmt.Errorf("unknown event topic %s", l.Topics[0].Hex())
	}
	fields := make(map[string]interface{}, len(ev.Inputs))
	if len(ev.Inputs.NonIndexed()) > 0 {
		if err := ev.Inputs.UnpackIntoMap(fields, l.Data); err != nil {
			return Event{}, fmt.Errorf("decode %s data: %w", ev.Name, err)
		}
	}
	var indexed abi.Arguments
	for _, in := range ev.Inputs {
		if in.Indexed {
			indexed = append(indexed, in)
		}
	}
	if err := abi.ParseTopicsIntoMap(fields, indexed, l.Topics[1:]); err != nil {
		return Event{}, fmt.Errorf("decode %s topics: %w", ev.Name, err)
	}
	return Event{Name: ev.Name, Fields: fields, TxHash: l.TxHash, LogIndex: l.Index}, nil
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
