package will

import (
	"context"
	"io"
	"log"
	"math/big"
	"time"

	"hera/internal/contracts"
	"hera/internal/ledger"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger is what the lifecycle operations need from the ledger client.
type Ledger interface {
	Reader
	Signer() (common.Address, error)
	Write(ctx context.Context, op string, value *big.Int, args ...interface{}) (*ledger.Receipt, error)
}

// Outcome is the result of a confirmed write. RefreshErr is set when the
// write landed but the follow-up projection could not be read.
type Outcome struct {
	Receipt    *ledger.Receipt
	Will       *WillInfo
	Assets     []BeneficiaryAsset
	RefreshErr error
}

// Service runs lifecycle operations for the connected signer.
type Service struct {
	ledger    Ledger
	projector *Projector
	now       func() time.Time
	logger    *log.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(l Ledger, opts ...Option) *Service {
	s := &Service{
		ledger: l,
		now:    time.Now,
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.projector = NewProjector(l, s.now)
	return s
}

func (s *Service) Projector() *Projector { return s.projector }

// Signer is the account operations are submitted as.
func (s *Service) Signer() (common.Address, error) { return s.ledger.Signer() }

// Ping checks the ledger transport when the ledger supports it.
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.ledger.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// CreateWill activates a will for the signer.
func (s *Service) CreateWill(ctx context.Context, interval time.Duration) (*Outcome, error) {
	secs, err := intervalSeconds("heartbeatInterval", interval)
	if err != nil {
		return nil, err
	}
	return s.grantorWrite(ctx, contracts.OpCreateWill, nil, secs)
}

func (s *Service) DepositEth(ctx context.Context, beneficiary common.Address, amountWei *big.Int) (*Outcome, error) {
	if err := requireAddress("beneficiary", beneficiary); err != nil {
		return nil, err
	}
	if err := requirePositive("amount", amountWei); err != nil {
		return nil, err
	}
	return s.grantorWrite(ctx, contracts.OpDepositEth, amountWei, beneficiary)
}

// DepositERC20 expects the signer to have approved the will contract as a
// spender of at least amount beforehand.
func (s *Service) DepositERC20(ctx context.Context, token common.Address, amount *big.Int, beneficiary common.Address) (*Outcome, error) {
	if err := requireAddress("token", token); err != nil {
		return nil, err
	}
	if err := requireAddress("beneficiary", beneficiary); err != nil {
		return nil, err
	}
	if err := requirePositive("amount", amount); err != nil {
		return nil, err
	}
	return s.grantorWrite(ctx, contracts.OpDepositERC20, nil, token, amount, beneficiary)
}

// DepositERC721 expects a prior transfer approval for tokenID.
func (s *Service) DepositERC721(ctx context.Context, token common.Address, tokenID *big.Int, beneficiary common.Address) (*Outcome, error) {
	if err := requireAddress("token", token); err != nil {
		return nil, err
	}
	if err := requireAddress("beneficiary", beneficiary); err != nil {
		return nil, err
	}
	if err := requireUint256("tokenId", tokenID); err != nil {
		return nil, err
	}
	return s.grantorWrite(ctx, contracts.OpDepositERC721, nil, token, tokenID, beneficiary)
}

// CheckIn resets the deadline. Allowed from ACTIVE and CLAIMABLE.
func (s *Service) CheckIn(ctx context.Context) (*Outcome, error) {
	if _, err := s.requireOwnWill(ctx, StateActive, StateClaimable); err != nil {
		return nil, err
	}
	return s.grantorWrite(ctx, contracts.OpCheckIn, nil)
}

// ModifyHeartbeat sets a new interval. Shortening it restarts the deadline
// from now.
func (s *Service) ModifyHeartbeat(ctx context.Context, interval time.Duration) (*Outcome, error) {
	secs, err := intervalSeconds("heartbeatInterval", interval)
	if err != nil {
		return nil, err
	}
	if interval < MinHeartbeat {
		return nil, ledger.Invalid("heartbeatInterval", "must be at least %s", MinHeartbeat)
	}
	if _, err := s.requireOwnWill(ctx, StateActive); err != nil {
		return nil, err
	}
	return s.grantorWrite(ctx, contracts.OpModifyHeartbeat, nil, secs)
}

// ExtendHeartbeat lengthens the interval without touching the deadline base.
func (s *Service) ExtendHeartbeat(ctx context.Context, interval time.Duration) (*Outcome, error) {
	secs, err := intervalSeconds("heartbeatInterval", interval)
	if err != nil {
		return nil, err
	}
	info, err := s.requireOwnWill(ctx, StateActive)
	if err != nil {
		return nil, err
	}
	if interval <= info.HeartbeatInterval {
		return nil, ledger.Invalid("heartbeatInterval", "must exceed the current %s", info.HeartbeatInterval)
	}
	return s.grantorWrite(ctx, contracts.OpExtendHeartbeat, nil, secs)
}

// EmergencyWithdraw returns every unclaimed asset and completes the will.
func (s *Service) EmergencyWithdraw(ctx context.Context) (*Outcome, error) {
	if _, err := s.requireOwnWill(ctx, StateActive); err != nil {
		return nil, err
	}
	return s.grantorWrite(ctx, contracts.OpEmergencyWithdraw, nil)
}

func (s *Service) RemoveAsset(ctx context.Context, index uint64) (*Outcome, error) {
	return s.grantorWrite(ctx, contracts.OpRemoveAsset, nil, new(big.Int).SetUint64(index))
}

func (s *Service) UpdateBeneficiary(ctx context.Context, index uint64, beneficiary common.Address) (*Outcome, error) {
	if err := requireAddress("beneficiary", beneficiary); err != nil {
		return nil, err
	}
	return s.grantorWrite(ctx, contracts.OpUpdateBeneficiary, nil, new(big.Int).SetUint64(index), beneficiary)
}

// ApproveContractBeneficiary allow-lists a contract account as beneficiary.
func (s *Service) ApproveContractBeneficiary(ctx context.Context, beneficiary common.Address) (*Outcome, error) {
	return s.contractBeneficiary(ctx, contracts.OpApproveContractBeneficiary, beneficiary)
}

func (s *Service) RevokeContractBeneficiary(ctx context.Context, beneficiary common.Address) (*Outcome, error) {
	return s.contractBeneficiary(ctx, contracts.OpRevokeContractBeneficiary, beneficiary)
}

func (s *Service) contractBeneficiary(ctx context.Context, op string, beneficiary common.Address) (*Outcome, error) {
	if err := requireAddress("beneficiary", beneficiary); err != nil {
		return nil, err
	}
	if _, err := s.requireOwnWill(ctx, StateActive, StateClaimable); err != nil {
		return nil, err
	}
	receipt, err := s.write(ctx, op, nil, beneficiary)
	if err != nil {
		return nil, err
	}
	return &Outcome{Receipt: receipt}, nil
}

// AcceptBeneficiary records the signer's acceptance of grantor's bequest.
func (s *Service) AcceptBeneficiary(ctx context.Context, grantor common.Address) (*Outcome, error) {
	return s.respond(ctx, contracts.OpAcceptBeneficiary, grantor)
}

func (s *Service) RejectBeneficiary(ctx context.Context, grantor common.Address) (*Outcome, error) {
	return s.respond(ctx, contracts.OpRejectBeneficiary, grantor)
}

func (s *Service) respond(ctx context.Context, op string, grantor common.Address) (*Outcome, error) {
	if err := requireAddress("grantor", grantor); err != nil {
		return nil, err
	}
	signer, err := s.ledger.Signer()
	if err != nil {
		return nil, err
	}
	indices, err := s.projector.BeneficiaryIndices(ctx, grantor, signer)
	if err != nil {
		return nil, err
	}
	if len(indices) == 0 {
		return nil, ledger.Invalid("grantor", "%s has not named %s on any asset", grantor.Hex(), signer.Hex())
	}
	return s.beneficiaryWrite(ctx, op, grantor, grantor)
}

// ClaimAsset claims a slot of grantor's will for the signer. Eligibility is
// decided by the ledger at inclusion time.
func (s *Service) ClaimAsset(ctx context.Context, grantor common.Address, index uint64) (*Outcome, error) {
	if err := requireAddress("grantor", grantor); err != nil {
		return nil, err
	}
	return s.beneficiaryWrite(ctx, contracts.OpClaimAsset, grantor, grantor, new(big.Int).SetUint64(index))
}

// UpdateState asks the ledger to recompute grantor's stored state.
func (s *Service) UpdateState(ctx context.Context, grantor common.Address) (*Outcome, error) {
	if err := requireAddress("grantor", grantor); err != nil {
		return nil, err
	}
	receipt, err := s.write(ctx, contracts.OpUpdateState, nil, grantor)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Receipt: receipt}
	out.Will, out.RefreshErr = s.projector.LoadWillInfo(ctx, grantor)
	s.logRefresh(contracts.OpUpdateState, out.RefreshErr)
	return out, nil
}

// Pause and Unpause are reserved to the contract owner.
func (s *Service) Pause(ctx context.Context) (*Outcome, error) {
	receipt, err := s.write(ctx, contracts.OpPause, nil)
	if err != nil {
		return nil, err
	}
	return &Outcome{Receipt: receipt}, nil
}

func (s *Service) Unpause(ctx context.Context) (*Outcome, error) {
	receipt, err := s.write(ctx, contracts.OpUnpause, nil)
	if err != nil {
		return nil, err
	}
	return &Outcome{Receipt: receipt}, nil
}

// requireOwnWill loads the signer's will and checks its effective state.
func (s *Service) requireOwnWill(ctx context.Context, allowed ...State) (*WillInfo, error) {
	signer, err := s.ledger.Signer()
	if err != nil {
		return nil, err
	}
	info, err := s.projector.LoadWillInfo(ctx, signer)
	if err != nil {
		return nil, err
	}
	if !info.Exists() {
		return nil, ledger.Invalid("will", "%s has no will", signer.Hex())
	}
	state := info.EffectiveState(s.now())
	for _, a := range allowed {
		if state == a {
			return info, nil
		}
	}
	return nil, ledger.Invalid("will", "operation not allowed while %s", state)
}

func (s *Service) grantorWrite(ctx context.Context, op string, value *big.Int, args ...interface{}) (*Outcome, error) {
	receipt, err := s.write(ctx, op, value, args...)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Receipt: receipt}
	out.Will, out.RefreshErr = s.projector.LoadWillInfo(ctx, receipt.Signer)
	s.logRefresh(op, out.RefreshErr)
	return out, nil
}

func (s *Service) beneficiaryWrite(ctx context.Context, op string, grantor common.Address, args ...interface{}) (*Outcome, error) {
	receipt, err := s.write(ctx, op, nil, args...)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Receipt: receipt}
	out.Assets, out.RefreshErr = s.projector.LoadBeneficiaryAssets(ctx, grantor, receipt.Signer)
	s.logRefresh(op, out.RefreshErr)
	return out, nil
}

func (s *Service) write(ctx context.Context, op string, value *big.Int, args ...interface{}) (*ledger.Receipt, error) {
	receipt, err := s.ledger.Write(ctx, op, value, args...)
	if err != nil {
		s.logger.Printf("%s failed (%s): %v", op, ledger.KindOf(err), err)
		return nil, err
	}
	s.logger.Printf("%s confirmed signer=%s tx=%s block=%d", op, receipt.Signer.Hex(), receipt.TxHash.Hex(), receipt.BlockNumber)
	return receipt, nil
}

func (s *Service) logRefresh(op string, err error) {
	if err != nil {
		s.logger.Printf("%s: refresh after confirmed write failed: %v", op, err)
	}
}
