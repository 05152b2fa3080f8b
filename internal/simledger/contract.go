package simledger

import (
	"fmt"
	"math/big"

	"hera/internal/contracts"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// MinHeartbeat is the shortest interval the contract accepts, in seconds.
const MinHeartbeat = 86400

const (
	stateInactive uint8 = iota
	stateActive
	stateClaimable
	stateCompleted
)

const (
	assetNative uint8 = iota
	assetFungible
	assetNonFungible
)

type acceptance uint8

const (
	acceptancePending acceptance = iota
	acceptanceAccepted
	acceptanceRejected
)

type asset struct {
	kind        uint8
	token       common.Address
	tokenID     *big.Int
	amount      *big.Int
	beneficiary common.Address
	claimed     bool
	removed     bool
}

type will struct {
	lastCheckIn uint64
	interval    uint64
	state       uint8
	assets      []*asset
	acceptance  map[common.Address]acceptance
	approved    map[common.Address]bool
}

func (w *will) overdue(now uint64) bool {
	return now > w.lastCheckIn+w.interval
}

// effective is the state a recompute at now would store.
func (w *will) effective(now uint64) uint8 {
	if w.state == stateActive && w.overdue(now) {
		return stateClaimable
	}
	return w.state
}

func (w *will) indicesFor(b common.Address) []*big.Int {
	out := []*big.Int{}
	for i, a := range w.assets {
		if !a.removed && a.beneficiary == b {
			out = append(out, new(big.Int).SetUint64(uint64(i)))
		}
	}
	return out
}

type nftKey struct {
	token common.Address
	id    string
}

type tokenKey struct {
	token common.Address
	owner common.Address
}

// chainState is everything a transaction may touch. Transactions run on a
// clone and the clone replaces the live state only on success.
type chainState struct {
	paused      bool
	wills       map[common.Address]*will
	eth         map[common.Address]*big.Int
	erc20       map[tokenKey]*big.Int
	allowance   map[tokenKey]*big.Int
	nftOwner    map[nftKey]common.Address
	nftApproved map[tokenKey]bool
	code        map[common.Address]bool
}

func newChainState() *chainState {
	return &chainState{
		wills:       make(map[common.Address]*will),
		eth:         make(map[common.Address]*big.Int),
		erc20:       make(map[tokenKey]*big.Int),
		allowance:   make(map[tokenKey]*big.Int),
		nftOwner:    make(map[nftKey]common.Address),
		nftApproved: make(map[tokenKey]bool),
		code:        make(map[common.Address]bool),
	}
}

func (s *chainState) clone() *chainState {
	cp := newChainState()
	cp.paused = s.paused
	for k, w := range s.wills {
		nw := &will{
			lastCheckIn: w.lastCheckIn,
			interval:    w.interval,
			state:       w.state,
			acceptance:  make(map[common.Address]acceptance, len(w.acceptance)),
			approved:    make(map[common.Address]bool, len(w.approved)),
		}
		for _, a := range w.assets {
			ac := *a
			ac.tokenID = new(big.Int).Set(a.tokenID)
			ac.amount = new(big.Int).Set(a.amount)
			nw.assets = append(nw.assets, &ac)
		}
		for b, v := range w.acceptance {
			nw.acceptance[b] = v
		}
		for b, v := range w.approved {
			nw.approved[b] = v
		}
		cp.wills[k] = nw
	}
	for k, v := range s.eth {
		cp.eth[k] = new(big.Int).Set(v)
	}
	for k, v := range s.erc20 {
		cp.erc20[k] = new(big.Int).Set(v)
	}
	for k, v := range s.allowance {
		cp.allowance[k] = new(big.Int).Set(v)
	}
	for k, v := range s.nftOwner {
		cp.nftOwner[k] = v
	}
	for k, v := range s.nftApproved {
		cp.nftApproved[k] = v
	}
	for k, v := range s.code {
		cp.code[k] = v
	}
	return cp
}

func (s *chainState) balance(m map[tokenKey]*big.Int, k tokenKey) *big.Int {
	if v, ok := m[k]; ok {
		return v
	}
	return new(big.Int)
}

func (s *chainState) ethBalance(addr common.Address) *big.Int {
	if v, ok := s.eth[addr]; ok {
		return v
	}
	return new(big.Int)
}

// txn is one contract invocation.
type txn struct {
	desc     *contracts.Descriptor
	contract common.Address
	owner    common.Address
	from     common.Address
	value    *big.Int
	now      uint64
	st       *chainState
	logs     []*types.Log
}

func (t *txn) revert(reason string) error {
	return &revertError{data: contracts.EncodeReason(reason)}
}

func (t *txn) fail(name string, args ...interface{}) error {
	data, err := t.desc.EncodeError(name, args...)
	if err != nil {
		return t.revert(err.Error())
	}
	return &revertError{data: data}
}

func (t *txn) emit(name string, fields ...interface{}) {
	l, err := t.desc.EncodeLog(name, t.contract, fields...)
	if err != nil {
		panic(fmt.Sprintf("simledger: %v", err))
	}
	t.logs = append(t.logs, l)
}

func bigU(v uint64) *big.Int { return new(big.Int).SetUint64(v) }

func (t *txn) setState(grantor common.Address, w *will, s uint8) {
	if w.state == s {
		return
	}
	w.state = s
	t.emit(contracts.EventStateUpdated, grantor, s, t.from)
}

func (t *txn) transferEth(from, to common.Address, amount *big.Int) {
	t.st.eth[from] = new(big.Int).Sub(t.st.ethBalance(from), amount)
	t.st.eth[to] = new(big.Int).Add(t.st.ethBalance(to), amount)
}

func (t *txn) transferERC20(token, from, to common.Address, amount *big.Int) {
	fk, tk := tokenKey{token, from}, tokenKey{token, to}
	t.st.erc20[fk] = new(big.Int).Sub(t.st.balance(t.st.erc20, fk), amount)
	t.st.erc20[tk] = new(big.Int).Add(t.st.balance(t.st.erc20, tk), amount)
}

// release moves a custodied asset out of the contract.
func (t *txn) release(a *asset, to common.Address) {
	switch a.kind {
	case assetNative:
		t.transferEth(t.contract, to, a.amount)
	case assetFungible:
		t.transferERC20(a.token, t.contract, to, a.amount)
	case assetNonFungible:
		t.st.nftOwner[nftKey{a.token, a.tokenID.String()}] = to
	}
}

func (t *txn) run(op string, args []interface{}) error {
	if t.value.Sign() > 0 {
		if op != contracts.OpDepositEth {
			return t.revert("non-payable function")
		}
		if t.st.ethBalance(t.from).Cmp(t.value) < 0 {
			return &fundsError{}
		}
	}
	switch op {
	case contracts.OpPause:
		return t.pause(true)
	case contracts.OpUnpause:
		return t.pause(false)
	case contracts.OpUpdateState:
		return t.updateState(args[0].(common.Address))
	}
	if t.st.paused {
		return t.fail(contracts.ErrNameEnforcedPause)
	}

	switch op {
	case contracts.OpCreateWill:
		return t.createWill(args[0].(*big.Int))
	case contracts.OpDepositEth:
		return t.deposit(assetNative, common.Address{}, new(big.Int), t.value, args[0].(common.Address))
	case contracts.OpDepositERC20:
		return t.deposit(assetFungible, args[0].(common.Address), new(big.Int), args[1].(*big.Int), args[2].(common.Address))
	case contracts.OpDepositERC721:
		return t.deposit(assetNonFungible, args[0].(common.Address), args[1].(*big.Int), new(big.Int), args[2].(common.Address))
	case contracts.OpCheckIn:
		return t.checkIn()
	case contracts.OpAcceptBeneficiary:
		return t.respond(args[0].(common.Address), acceptanceAccepted)
	case contracts.OpRejectBeneficiary:
		return t.respond(args[0].(common.Address), acceptanceRejected)
	case contracts.OpClaimAsset:
		return t.claim(args[0].(common.Address), args[1].(*big.Int))
	case contracts.OpApproveContractBeneficiary:
		return t.approveContract(args[0].(common.Address), true)
	case contracts.OpRevokeContractBeneficiary:
		return t.approveContract(args[0].(common.Address), false)
	case contracts.OpModifyHeartbeat:
		return t.modifyHeartbeat(args[0].(*big.Int))
	case contracts.OpExtendHeartbeat:
		return t.extendHeartbeat(args[0].(*big.Int))
	case contracts.OpEmergencyWithdraw:
		return t.emergencyWithdraw()
	case contracts.OpRemoveAsset:
		return t.removeAsset(args[0].(*big.Int))
	case contracts.OpUpdateBeneficiary:
		return t.updateBeneficiary(args[0].(*big.Int), args[1].(common.Address))
	}
	return t.revert("unsupported operation " + op)
}

func (t *txn) pause(on bool) error {
	if t.from != t.owner {
		return t.fail(contracts.ErrNameOwnableUnauthorizedAccount, t.from)
	}
	if on && t.st.paused {
		return t.fail(contracts.ErrNameEnforcedPause)
	}
	if !on && !t.st.paused {
		return t.fail(contracts.ErrNameExpectedPause)
	}
	t.st.paused = on
	if on {
		t.emit(contracts.EventPaused, t.from)
	} else {
		t.emit(contracts.EventUnpaused, t.from)
	}
	return nil
}

// activeWill returns the caller's will if it is active and not overdue.
func (t *txn) activeWill() (*will, error) {
	w, ok := t.st.wills[t.from]
	if !ok || w.state == stateInactive {
		return nil, t.revert("Will does not exist")
	}
	if w.effective(t.now) != stateActive {
		return nil, t.revert("Will is not active")
	}
	return w, nil
}

func (t *txn) createWill(interval *big.Int) error {
	if w, ok := t.st.wills[t.from]; ok && w.state != stateInactive {
		return t.revert("Will already exists")
	}
	if !interval.IsUint64() || interval.Uint64() < MinHeartbeat {
		return t.revert("Heartbeat interval too short")
	}
	t.st.wills[t.from] = &will{
		lastCheckIn: t.now,
		interval:    interval.Uint64(),
		state:       stateActive,
		acceptance:  make(map[common.Address]acceptance),
		approved:    make(map[common.Address]bool),
	}
	t.emit(contracts.EventWillCreated, t.from, interval)
	return nil
}

func (t *txn) checkBeneficiary(w *will, b common.Address) error {
	if b == (common.Address{}) || b == t.from {
		return t.revert("Invalid beneficiary")
	}
	if t.st.code[b] && !w.approved[b] {
		return t.revert("Contract beneficiary not approved")
	}
	return nil
}

func (t *txn) deposit(kind uint8, token common.Address, tokenID, amount *big.Int, beneficiary common.Address) error {
	w, err := t.activeWill()
	if err != nil {
		return err
	}
	if err := t.checkBeneficiary(w, beneficiary); err != nil {
		return err
	}
	switch kind {
	case assetNative:
		if amount.Sign() <= 0 {
			return t.revert("Amount must be greater than 0")
		}
		t.transferEth(t.from, t.contract, amount)
	case assetFungible:
		if token == (common.Address{}) {
			return t.revert("Invalid token address")
		}
		if amount.Sign() <= 0 {
			return t.revert("Amount must be greater than 0")
		}
		k := tokenKey{token, t.from}
		if t.st.balance(t.st.allowance, k).Cmp(amount) < 0 || t.st.balance(t.st.erc20, k).Cmp(amount) < 0 {
			return t.fail(contracts.ErrNameSafeERC20FailedOperation, token)
		}
		t.st.allowance[k] = new(big.Int).Sub(t.st.allowance[k], amount)
		t.transferERC20(token, t.from, t.contract, amount)
	case assetNonFungible:
		if token == (common.Address{}) {
			return t.revert("Invalid token address")
		}
		nk := nftKey{token, tokenID.String()}
		if t.st.nftOwner[nk] != t.from || !t.st.nftApproved[tokenKey{token, t.from}] {
			return t.revert("ERC721: caller is not token owner or approved")
		}
		t.st.nftOwner[nk] = t.contract
	}
	w.assets = append(w.assets, &asset{
		kind:        kind,
		token:       token,
		tokenID:     new(big.Int).Set(tokenID),
		amount:      new(big.Int).Set(amount),
		beneficiary: beneficiary,
	})
	t.emit(contracts.EventAssetDeposited, t.from, kind, token, tokenID, amount, beneficiary)
	return nil
}

func (t *txn) checkIn() error {
	w, ok := t.st.wills[t.from]
	if !ok || w.state == stateInactive {
		return t.revert("Will does not exist")
	}
	if w.state != stateActive && w.state != stateClaimable {
		return t.revert("Cannot check in")
	}
	w.lastCheckIn = t.now
	t.setState(t.from, w, stateActive)
	t.emit(contracts.EventCheckIn, t.from, bigU(t.now))
	return nil
}

func (t *txn) updateState(grantor common.Address) error {
	w, ok := t.st.wills[grantor]
	if !ok || w.state == stateInactive {
		return t.revert("Will does not exist")
	}
	t.setState(grantor, w, w.effective(t.now))
	return nil
}

func (t *txn) respond(grantor common.Address, a acceptance) error {
	w, ok := t.st.wills[grantor]
	if !ok || w.state == stateInactive {
		return t.revert("Will does not exist")
	}
	if len(w.indicesFor(t.from)) == 0 {
		return t.revert("Not a beneficiary")
	}
	w.acceptance[t.from] = a
	if a == acceptanceAccepted {
		t.emit(contracts.EventBeneficiaryAccepted, grantor, t.from)
	} else {
		t.emit(contracts.EventBeneficiaryRejected, grantor, t.from)
	}
	return nil
}

func (t *txn) claim(grantor common.Address, index *big.Int) error {
	w, ok := t.st.wills[grantor]
	if !ok || w.state == stateInactive {
		return t.revert("Will does not exist")
	}
	t.setState(grantor, w, w.effective(t.now))
	if w.state != stateClaimable {
		return t.revert("Will is not claimable")
	}
	if !index.IsUint64() || index.Uint64() >= uint64(len(w.assets)) {
		return t.revert("Invalid asset index")
	}
	a := w.assets[index.Uint64()]
	switch {
	case a.removed:
		return t.revert("Asset removed")
	case a.claimed:
		return t.revert("Asset already claimed")
	case a.beneficiary != t.from:
		return t.revert("Not the beneficiary")
	case w.acceptance[t.from] != acceptanceAccepted:
		return t.revert("Beneficiary has not accepted")
	}
	a.claimed = true
	t.release(a, t.from)
	t.emit(contracts.EventAssetClaimed, grantor, t.from, index, a.kind, a.token, a.tokenID, a.amount)

	for _, other := range w.assets {
		if !other.removed && !other.claimed {
			return nil
		}
	}
	t.setState(grantor, w, stateCompleted)
	t.emit(contracts.EventWillCompleted, grantor)
	return nil
}

func (t *txn) approveContract(beneficiary common.Address, approved bool) error {
	w, ok := t.st.wills[t.from]
	if !ok || w.state == stateInactive {
		return t.revert("Will does not exist")
	}
	if w.state == stateCompleted {
		return t.revert("Will is completed")
	}
	if beneficiary == (common.Address{}) {
		return t.revert("Invalid beneficiary")
	}
	w.approved[beneficiary] = approved
	if approved {
		t.emit(contracts.EventContractBeneficiaryApproved, t.from, beneficiary)
	} else {
		t.emit(contracts.EventContractBeneficiaryRevoked, t.from, beneficiary)
	}
	return nil
}

func (t *txn) modifyHeartbeat(interval *big.Int) error {
	w, err := t.activeWill()
	if err != nil {
		return err
	}
	if !interval.IsUint64() || interval.Uint64() < MinHeartbeat {
		return t.revert("Heartbeat interval too short")
	}
	old := w.interval
	w.interval = interval.Uint64()
	if w.interval < old {
		w.lastCheckIn = t.now
	}
	t.emit(contracts.EventHeartbeatModified, t.from, bigU(old), interval)
	return nil
}

func (t *txn) extendHeartbeat(interval *big.Int) error {
	w, err := t.activeWill()
	if err != nil {
		return err
	}
	if !interval.IsUint64() || interval.Uint64() <= w.interval {
		return t.revert("New interval must be greater")
	}
	w.interval = interval.Uint64()
	t.emit(contracts.EventHeartbeatExtended, t.from, interval)
	return nil
}

func (t *txn) emergencyWithdraw() error {
	w, err := t.activeWill()
	if err != nil {
		return err
	}
	returned := uint64(0)
	for _, a := range w.assets {
		if a.removed || a.claimed {
			continue
		}
		t.release(a, t.from)
		returned++
	}
	t.emit(contracts.EventEmergencyWithdraw, t.from, bigU(returned))
	t.setState(t.from, w, stateCompleted)
	t.emit(contracts.EventWillCompleted, t.from)
	return nil
}

func (t *txn) liveAsset(w *will, index *big.Int) (*asset, error) {
	if !index.IsUint64() || index.Uint64() >= uint64(len(w.assets)) {
		return nil, t.revert("Invalid asset index")
	}
	a := w.assets[index.Uint64()]
	if a.removed {
		return nil, t.revert("Asset removed")
	}
	if a.claimed {
		return nil, t.revert("Asset already claimed")
	}
	return a, nil
}

func (t *txn) removeAsset(index *big.Int) error {
	w, err := t.activeWill()
	if err != nil {
		return err
	}
	a, err := t.liveAsset(w, index)
	if err != nil {
		return err
	}
	t.release(a, t.from)
	t.emit(contracts.EventAssetRemoved, t.from, index, a.kind, a.token, a.tokenID, a.amount)
	a.removed = true
	a.amount = new(big.Int)
	return nil
}

func (t *txn) updateBeneficiary(index *big.Int, beneficiary common.Address) error {
	w, err := t.activeWill()
	if err != nil {
		return err
	}
	a, err := t.liveAsset(w, index)
	if err != nil {
		return err
	}
	if err := t.checkBeneficiary(w, beneficiary); err != nil {
		return err
	}
	old := a.beneficiary
	a.beneficiary = beneficiary
	t.emit(contracts.EventBeneficiaryUpdated, t.from, index, old, beneficiary)
	return nil
}

// view answers read-only operations.
func (b *Backend) view(_ common.Address, op string, args []interface{}) ([]interface{}, error) {
	st := b.state
	now := uint64(b.now().Unix())
	willOf := func(g common.Address) *will {
		if w, ok := st.wills[g]; ok {
			return w
		}
		return &will{acceptance: map[common.Address]acceptance{}, approved: map[common.Address]bool{}}
	}

	switch op {
	case contracts.OpGetWillInfo:
		w := willOf(args[0].(common.Address))
		return []interface{}{bigU(w.lastCheckIn), bigU(w.interval), w.state, bigU(uint64(len(w.assets)))}, nil
	case contracts.OpGetAssetCount:
		return []interface{}{bigU(uint64(len(willOf(args[0].(common.Address)).assets)))}, nil
	case contracts.OpGetAsset:
		w := willOf(args[0].(common.Address))
		idx := args[1].(*big.Int)
		if !idx.IsUint64() || idx.Uint64() >= uint64(len(w.assets)) {
			return nil, &revertError{data: contracts.EncodeReason("Invalid asset index")}
		}
		a := w.assets[idx.Uint64()]
		return []interface{}{a.kind, a.token, a.tokenID, a.amount, a.beneficiary, a.claimed}, nil
	case contracts.OpGetBeneficiaryAssets:
		return []interface{}{willOf(args[0].(common.Address)).indicesFor(args[1].(common.Address))}, nil
	case contracts.OpHasBeneficiaryAccepted:
		w := willOf(args[0].(common.Address))
		return []interface{}{w.acceptance[args[1].(common.Address)] == acceptanceAccepted}, nil
	case contracts.OpIsApprovedBeneficiary:
		return []interface{}{willOf(args[0].(common.Address)).approved[args[1].(common.Address)]}, nil
	case contracts.OpIsClaimable:
		return []interface{}{willOf(args[0].(common.Address)).effective(now) == stateClaimable}, nil
	case contracts.OpOwner:
		return []interface{}{b.owner}, nil
	case contracts.OpPaused:
		return []interface{}{st.paused}, nil
	}
	return nil, &revertError{data: contracts.EncodeReason("unsupported view " + op)}
}

// fundsError is the node-level refusal for an underfunded sender.
type fundsError struct{}

func (e *fundsError) Error() string  { return "insufficient funds for gas * price + value" }
func (e *fundsError) ErrorCode() int { return -32000 }
