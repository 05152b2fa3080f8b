package simledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Fund credits addr with wei.
func (b *Backend) Fund(addr common.Address, wei *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.eth[addr] = new(big.Int).Add(b.state.ethBalance(addr), wei)
}

// Balance returns the native balance of addr.
func (b *Backend) Balance(addr common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.state.ethBalance(addr))
}

// MintERC20 credits owner with amount of token.
func (b *Backend) MintERC20(token, owner common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := tokenKey{token, owner}
	b.state.erc20[k] = new(big.Int).Add(b.state.balance(b.state.erc20, k), amount)
}

// ApproveERC20 sets the allowance owner grants the will contract.
func (b *Backend) ApproveERC20(token, owner common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.allowance[tokenKey{token, owner}] = new(big.Int).Set(amount)
}

func (b *Backend) ERC20Balance(token, owner common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.state.balance(b.state.erc20, tokenKey{token, owner}))
}

// MintERC721 assigns token id to owner.
func (b *Backend) MintERC721(token common.Address, id *big.Int, owner common.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.nftOwner[nftKey{token, id.String()}] = owner
}

// ApproveERC721 lets the will contract move every token of owner.
func (b *Backend) ApproveERC721(token, owner common.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.nftApproved[tokenKey{token, owner}] = true
}

func (b *Backend) OwnerOf(token common.Address, id *big.Int) common.Address {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.nftOwner[nftKey{token, id.String()}]
}

// MarkContract flags addr as holding code.
func (b *Backend) MarkContract(addr common.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.code[addr] = true
}
