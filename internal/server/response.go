package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"hera/internal/contracts"
	"hera/internal/ledger"
	"hera/internal/will"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// errorResponse is the envelope every failure is written in.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id"`
	Reason  string `json:"reason,omitempty"`
	TxHash  string `json:"tx_hash,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message, TraceID: requestID(r)})
}

// writeLedgerError maps the ledger failure taxonomy onto HTTP.
func writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{Message: err.Error(), TraceID: requestID(r)}
	status := http.StatusInternalServerError
	resp.Code = "internal"

	switch ledger.KindOf(err) {
	case ledger.KindValidation:
		status, resp.Code = http.StatusBadRequest, "validation_failed"
	case ledger.KindRejection:
		status, resp.Code = http.StatusConflict, "rejected"
		var rej *ledger.RejectionError
		if errors.As(err, &rej) {
			resp.Reason = rej.Reason()
			if rej.TxHash != (common.Hash{}) {
				resp.TxHash = rej.TxHash.Hex()
			}
		}
	case ledger.KindConnectivity:
		status, resp.Code = http.StatusServiceUnavailable, "ledger_unavailable"
		if errors.Is(err, ledger.ErrNotReady) || errors.Is(err, ledger.ErrWrongNetwork) {
			resp.Code = "signer_not_ready"
		}
	case ledger.KindDurability:
		status, resp.Code = http.StatusGatewayTimeout, "not_confirmed"
		var dur *ledger.DurabilityError
		if errors.As(err, &dur) {
			resp.TxHash = dur.TxHash.Hex()
		}
	}
	writeJSON(w, status, resp)
}

func outcomeLabel(err error) string {
	if err == nil {
		return "confirmed"
	}
	return ledger.KindOf(err).String()
}

type willResponse struct {
	Grantor                  string `json:"grantor"`
	State                    string `json:"state"`
	EffectiveState           string `json:"effectiveState"`
	LastCheckIn              int64  `json:"lastCheckIn"`
	HeartbeatIntervalSeconds int64  `json:"heartbeatIntervalSeconds"`
	Deadline                 int64  `json:"deadline"`
	AssetCount               uint64 `json:"assetCount"`
}

func newWillResponse(info *will.WillInfo, now time.Time) *willResponse {
	if info == nil {
		return nil
	}
	return &willResponse{
		Grantor:                  info.Grantor.Hex(),
		State:                    info.State.String(),
		EffectiveState:           info.EffectiveState(now).String(),
		LastCheckIn:              info.LastCheckIn.Unix(),
		HeartbeatIntervalSeconds: int64(info.HeartbeatInterval / time.Second),
		Deadline:                 info.Deadline().Unix(),
		AssetCount:               info.AssetCount,
	}
}

type assetResponse struct {
	Index       uint64 `json:"index"`
	Type        string `json:"type"`
	Token       string `json:"token"`
	TokenID     string `json:"tokenId"`
	Amount      string `json:"amount"`
	Beneficiary string `json:"beneficiary"`
	Claimed     bool   `json:"claimed"`
}

func newAssetResponse(index uint64, a will.Asset) assetResponse {
	return assetResponse{
		Index:       index,
		Type:        a.Type.String(),
		Token:       a.Token.Hex(),
		TokenID:     bigString(a.TokenID),
		Amount:      bigString(a.Amount),
		Beneficiary: a.Beneficiary.Hex(),
		Claimed:     a.Claimed,
	}
}

type beneficiaryAssetResponse struct {
	Grantor string `json:"grantor"`
	assetResponse
	Claimable                 bool   `json:"claimable"`
	Accepted                  bool   `json:"accepted"`
	CanClaim                  bool   `json:"canClaim"`
	TimeUntilClaimableSeconds *int64 `json:"timeUntilClaimableSeconds"`
}

func newBeneficiaryAssets(in []will.BeneficiaryAsset) []beneficiaryAssetResponse {
	if in == nil {
		return nil
	}
	out := make([]beneficiaryAssetResponse, len(in))
	for i, b := range in {
		out[i] = beneficiaryAssetResponse{
			Grantor:       b.Grantor.Hex(),
			assetResponse: newAssetResponse(b.Index, b.Asset),
			Claimable:     b.Claimable,
			Accepted:      b.Accepted,
			CanClaim:      b.CanClaim(),
		}
		if b.TimeUntilClaimable != nil {
			secs := int64(*b.TimeUntilClaimable / time.Second)
			out[i].TimeUntilClaimableSeconds = &secs
		}
	}
	return out
}

type eventResponse struct {
	Name     string                 `json:"name"`
	LogIndex uint                   `json:"logIndex"`
	Fields   map[string]interface{} `json:"fields"`
}

type receiptResponse struct {
	Operation   string          `json:"operation"`
	TxHash      string          `json:"txHash"`
	BlockNumber uint64          `json:"blockNumber"`
	GasUsed     uint64          `json:"gasUsed"`
	Signer      string          `json:"signer"`
	Events      []eventResponse `json:"events"`
}

func newReceiptResponse(r *ledger.Receipt) *receiptResponse {
	if r == nil {
		return nil
	}
	out := &receiptResponse{
		Operation:   r.Op,
		TxHash:      r.TxHash.Hex(),
		BlockNumber: r.BlockNumber,
		GasUsed:     r.GasUsed,
		Signer:      r.Signer.Hex(),
		Events:      make([]eventResponse, 0, len(r.Events)),
	}
	for _, ev := range r.Events {
		out.Events = append(out.Events, newEventResponse(ev))
	}
	return out
}

func newEventResponse(ev contracts.Event) eventResponse {
	fields := make(map[string]interface{}, len(ev.Fields))
	for k, v := range ev.Fields {
		fields[k] = jsonValue(v)
	}
	return eventResponse{Name: ev.Name, LogIndex: ev.LogIndex, Fields: fields}
}

// jsonValue keeps quantities exact by rendering them as decimal strings.
func jsonValue(v interface{}) interface{} {
	switch x := v.(type) {
	case *big.Int:
		return bigString(x)
	case common.Address:
		return x.Hex()
	case common.Hash:
		return x.Hex()
	case [32]byte:
		return common.Hash(x).Hex()
	case []byte:
		return hexutil.Encode(x)
	case uint8, uint16, uint32, uint64, int64, bool, string:
		return x
	}
	return fmt.Sprint(v)
}

func bigString(b *big.Int) string {
	if b == nil {
		return "0"
	}
	return b.String()
}

type outcomeResponse struct {
	Receipt      *receiptResponse           `json:"receipt"`
	Will         *willResponse              `json:"will,omitempty"`
	Assets       []beneficiaryAssetResponse `json:"assets,omitempty"`
	RefreshError string                     `json:"refreshError,omitempty"`
}

func newOutcomeResponse(out *will.Outcome, now time.Time) outcomeResponse {
	resp := outcomeResponse{
		Receipt: newReceiptResponse(out.Receipt),
		Will:    newWillResponse(out.Will, now),
		Assets:  newBeneficiaryAssets(out.Assets),
	}
	if out.RefreshErr != nil {
		resp.RefreshError = out.RefreshErr.Error()
	}
	return resp
}
