package server

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"hera/internal/ledger"
	"hera/internal/will"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
)

type heartbeatRequest struct {
	HeartbeatIntervalSeconds int64 `json:"heartbeatIntervalSeconds"`
}

type depositEthRequest struct {
	Beneficiary string `json:"beneficiary"`
	AmountWei   string `json:"amountWei"`
}

type depositERC20Request struct {
	Token       string `json:"token"`
	Amount      string `json:"amount"`
	Beneficiary string `json:"beneficiary"`
}

type depositERC721Request struct {
	Token       string `json:"token"`
	TokenID     string `json:"tokenId"`
	Beneficiary string `json:"beneficiary"`
}

type beneficiaryRequest struct {
	Beneficiary string `json:"beneficiary"`
}

// decodeBody reads a JSON body. An empty body decodes to the zero value.
func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return ledger.Invalid("body", "invalid json payload: %v", err)
	}
	return nil
}

func pathAddress(r *http.Request, name string) (common.Address, error) {
	return will.ParseAddress(name, mux.Vars(r)[name])
}

func pathIndex(r *http.Request) (uint64, error) {
	raw := mux.Vars(r)["index"]
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, ledger.Invalid("index", "%q is not an asset index", raw)
	}
	return v, nil
}

// seconds converts a wire interval to a Duration, refusing values that
// would overflow it.
func seconds(v int64) (time.Duration, error) {
	if v > math.MaxInt64/int64(time.Second) {
		return 0, ledger.Invalid("heartbeatInterval", "%d seconds is too large", v)
	}
	return time.Duration(v) * time.Second, nil
}

func (s *Server) createWill(r *http.Request) (*will.Outcome, error) {
	var req heartbeatRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	interval, err := seconds(req.HeartbeatIntervalSeconds)
	if err != nil {
		return nil, err
	}
	return s.svc.CreateWill(r.Context(), interval)
}

func (s *Server) depositEth(r *http.Request) (*will.Outcome, error) {
	var req depositEthRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	beneficiary, err := will.ParseAddress("beneficiary", req.Beneficiary)
	if err != nil {
		return nil, err
	}
	amount, err := will.ParseAmount("amountWei", req.AmountWei)
	if err != nil {
		return nil, err
	}
	return s.svc.DepositEth(r.Context(), beneficiary, amount)
}

func (s *Server) depositERC20(r *http.Request) (*will.Outcome, error) {
	var req depositERC20Request
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	token, err := will.ParseAddress("token", req.Token)
	if err != nil {
		return nil, err
	}
	amount, err := will.ParseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	beneficiary, err := will.ParseAddress("beneficiary", req.Beneficiary)
	if err != nil {
		return nil, err
	}
	return s.svc.DepositERC20(r.Context(), token, amount, beneficiary)
}

func (s *Server) depositERC721(r *http.Request) (*will.Outcome, error) {
	var req depositERC721Request
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	token, err := will.ParseAddress("token", req.Token)
	if err != nil {
		return nil, err
	}
	tokenID, err := will.ParseAmount("tokenId", req.TokenID)
	if err != nil {
		return nil, err
	}
	beneficiary, err := will.ParseAddress("beneficiary", req.Beneficiary)
	if err != nil {
		return nil, err
	}
	return s.svc.DepositERC721(r.Context(), token, tokenID, beneficiary)
}

func (s *Server) checkIn(r *http.Request) (*will.Outcome, error) {
	return s.svc.CheckIn(r.Context())
}

func (s *Server) modifyHeartbeat(r *http.Request) (*will.Outcome, error) {
	var req heartbeatRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	interval, err := seconds(req.HeartbeatIntervalSeconds)
	if err != nil {
		return nil, err
	}
	return s.svc.ModifyHeartbeat(r.Context(), interval)
}

func (s *Server) extendHeartbeat(r *http.Request) (*will.Outcome, error) {
	var req heartbeatRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	interval, err := seconds(req.HeartbeatIntervalSeconds)
	if err != nil {
		return nil, err
	}
	return s.svc.ExtendHeartbeat(r.Context(), interval)
}

func (s *Server) emergencyWithdraw(r *http.Request) (*will.Outcome, error) {
	return s.svc.EmergencyWithdraw(r.Context())
}

func (s *Server) removeAsset(r *http.Request) (*will.Outcome, error) {
	index, err := pathIndex(r)
	if err != nil {
		return nil, err
	}
	return s.svc.RemoveAsset(r.Context(), index)
}

func (s *Server) updateBeneficiary(r *http.Request) (*will.Outcome, error) {
	index, err := pathIndex(r)
	if err != nil {
		return nil, err
	}
	var req beneficiaryRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	beneficiary, err := will.ParseAddress("beneficiary", req.Beneficiary)
	if err != nil {
		return nil, err
	}
	return s.svc.UpdateBeneficiary(r.Context(), index, beneficiary)
}

func (s *Server) approveContractBeneficiary(r *http.Request) (*will.Outcome, error) {
	beneficiary, err := pathAddress(r, "beneficiary")
	if err != nil {
		return nil, err
	}
	return s.svc.ApproveContractBeneficiary(r.Context(), beneficiary)
}

func (s *Server) revokeContractBeneficiary(r *http.Request) (*will.Outcome, error) {
	beneficiary, err := pathAddress(r, "beneficiary")
	if err != nil {
		return nil, err
	}
	return s.svc.RevokeContractBeneficiary(r.Context(), beneficiary)
}

func (s *Server) acceptBeneficiary(r *http.Request) (*will.Outcome, error) {
	grantor, err := pathAddress(r, "grantor")
	if err != nil {
		return nil, err
	}
	return s.svc.AcceptBeneficiary(r.Context(), grantor)
}

func (s *Server) rejectBeneficiary(r *http.Request) (*will.Outcome, error) {
	grantor, err := pathAddress(r, "grantor")
	if err != nil {
		return nil, err
	}
	return s.svc.RejectBeneficiary(r.Context(), grantor)
}

func (s *Server) updateState(r *http.Request) (*will.Outcome, error) {
	grantor, err := pathAddress(r, "grantor")
	if err != nil {
		return nil, err
	}
	return s.svc.UpdateState(r.Context(), grantor)
}

func (s *Server) claimAsset(r *http.Request) (*will.Outcome, error) {
	grantor, err := pathAddress(r, "grantor")
	if err != nil {
		return nil, err
	}
	index, err := pathIndex(r)
	if err != nil {
		return nil, err
	}
	return s.svc.ClaimAsset(r.Context(), grantor, index)
}

func (s *Server) pause(r *http.Request) (*will.Outcome, error) {
	return s.svc.Pause(r.Context())
}

func (s *Server) unpause(r *http.Request) (*will.Outcome, error) {
	return s.svc.Unpause(r.Context())
}

// Read endpoints.

func (s *Server) handleGetWill(w http.ResponseWriter, r *http.Request) {
	grantor, err := pathAddress(r, "grantor")
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	info, err := s.svc.Projector().LoadWillInfo(r.Context(), grantor)
	if err != nil {
		s.metrics.incRead("will", "failed")
		writeLedgerError(w, r, err)
		return
	}
	if info == nil {
		s.metrics.incRead("will", "not_ready")
		writeLedgerError(w, r, ledger.ErrNotReady)
		return
	}
	s.metrics.incRead("will", "ok")
	writeJSON(w, http.StatusOK, newWillResponse(info, s.now()))
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	grantor, err := pathAddress(r, "grantor")
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	index, err := pathIndex(r)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	p := s.svc.Projector()
	count, err := p.AssetCount(r.Context(), grantor)
	if err != nil {
		s.metrics.incRead("asset", "failed")
		writeLedgerError(w, r, err)
		return
	}
	if index >= count {
		writeError(w, r, http.StatusNotFound, "not_found", "no asset at index "+strconv.FormatUint(index, 10))
		return
	}
	a, err := p.Asset(r.Context(), grantor, index)
	if err != nil {
		s.metrics.incRead("asset", "failed")
		writeLedgerError(w, r, err)
		return
	}
	s.metrics.incRead("asset", "ok")
	writeJSON(w, http.StatusOK, newAssetResponse(index, a))
}

func (s *Server) handleBeneficiaryAssets(w http.ResponseWriter, r *http.Request) {
	grantor, err := pathAddress(r, "grantor")
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	beneficiary, err := pathAddress(r, "beneficiary")
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	assets, err := s.svc.Projector().LoadBeneficiaryAssets(r.Context(), grantor, beneficiary)
	if err != nil {
		s.metrics.incRead("beneficiary_assets", "failed")
		writeLedgerError(w, r, err)
		return
	}
	if assets == nil {
		s.metrics.incRead("beneficiary_assets", "not_ready")
		writeLedgerError(w, r, ledger.ErrNotReady)
		return
	}
	s.metrics.incRead("beneficiary_assets", "ok")
	writeJSON(w, http.StatusOK, struct {
		Assets []beneficiaryAssetResponse `json:"assets"`
	}{newBeneficiaryAssets(assets)})
}

func (s *Server) handleApproval(w http.ResponseWriter, r *http.Request) {
	grantor, err := pathAddress(r, "grantor")
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	beneficiary, err := pathAddress(r, "beneficiary")
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	p := s.svc.Projector()
	approved, err := p.IsApprovedBeneficiary(r.Context(), grantor, beneficiary)
	if err != nil {
		s.metrics.incRead("approval", "failed")
		writeLedgerError(w, r, err)
		return
	}
	accepted, err := p.HasAccepted(r.Context(), grantor, beneficiary)
	if err != nil {
		s.metrics.incRead("approval", "failed")
		writeLedgerError(w, r, err)
		return
	}
	s.metrics.incRead("approval", "ok")
	writeJSON(w, http.StatusOK, struct {
		Grantor          string `json:"grantor"`
		Beneficiary      string `json:"beneficiary"`
		ContractApproved bool   `json:"contractApproved"`
		Accepted         bool   `json:"accepted"`
	}{grantor.Hex(), beneficiary.Hex(), approved, accepted})
}

func (s *Server) handleContract(w http.ResponseWriter, r *http.Request) {
	p := s.svc.Projector()
	owner, err := p.Owner(r.Context())
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	paused, err := p.Paused(r.Context())
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	resp := struct {
		ChainID int64  `json:"chainId"`
		Address string `json:"address"`
		Owner   string `json:"owner"`
		Paused  bool   `json:"paused"`
		Signer  string `json:"signer,omitempty"`
	}{
		ChainID: s.cfg.Chain.ChainID,
		Address: s.cfg.Chain.ContractAddress,
		Owner:   owner.Hex(),
		Paused:  paused,
	}
	if signer, err := s.svc.Signer(); err == nil {
		resp.Signer = signer.Hex()
	}
	writeJSON(w, http.StatusOK, resp)
}
