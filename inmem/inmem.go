// Package inmem provides in-process implementations of the exchange's
// collaborator ledgers: an ERC-721-like asset ledger, an ERC-20-like
// token ledger, and a native currency ledger. They mirror the approval
// and allowance semantics of the on-chain token contracts the engine is
// designed to drive, and back the unit tests, examples, and demo
// servers.
package inmem

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type tokenKey struct {
	collection common.Address
	tokenID    string
}

func makeTokenKey(collection common.Address, tokenID *big.Int) tokenKey {
	id := "0"
	if tokenID != nil {
		id = tokenID.String()
	}
	return tokenKey{collection: collection, tokenID: id}
}

type approvalKey struct {
	collection common.Address
	owner      common.Address
	operator   common.Address
}

// NFTLedger is an in-memory ERC-721-like ledger. All transfers are
// performed by the bound operator (the exchange) and require the current
// holder's approval-for-all.
type NFTLedger struct {
	mu        sync.RWMutex
	operator  common.Address
	owners    map[tokenKey]common.Address
	approvals map[approvalKey]bool
	nextID    map[common.Address]uint64
}

// NewNFTLedger returns an empty asset ledger whose transfers are
// authorized against the given operator address.
func NewNFTLedger(operator common.Address) *NFTLedger {
	return &NFTLedger{
		operator:  operator,
		owners:    make(map[tokenKey]common.Address),
		approvals: make(map[approvalKey]bool),
		nextID:    make(map[common.Address]uint64),
	}
}

// Mint assigns the next sequential token id (starting at 1) in a
// collection to an owner and returns it.
func (l *NFTLedger) Mint(collection, to common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID[collection]++
	tokenID := new(big.Int).SetUint64(l.nextID[collection])
	l.owners[makeTokenKey(collection, tokenID)] = to
	return tokenID
}

// SetApprovalForAll records an owner's blanket approval of an operator
// for a collection.
func (l *NFTLedger) SetApprovalForAll(collection, owner, operator common.Address, approved bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.approvals[approvalKey{collection: collection, owner: owner, operator: operator}] = approved
}

// OwnerOf returns the current holder of a token.
func (l *NFTLedger) OwnerOf(_ context.Context, collection common.Address, tokenID *big.Int) (common.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	owner, ok := l.owners[makeTokenKey(collection, tokenID)]
	if !ok {
		return common.Address{}, fmt.Errorf("nft %s/%s does not exist", collection.Hex(), tokenID)
	}
	return owner, nil
}

// IsApprovedForAll reports whether owner has approved operator for the
// collection.
func (l *NFTLedger) IsApprovedForAll(_ context.Context, collection, owner, operator common.Address) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.approvals[approvalKey{collection: collection, owner: owner, operator: operator}], nil
}

// TransferFrom moves a token. It fails if from is not the holder, or if
// the holder has not approved the bound operator.
func (l *NFTLedger) TransferFrom(_ context.Context, collection, from, to common.Address, tokenID *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := makeTokenKey(collection, tokenID)
	owner, ok := l.owners[k]
	if !ok {
		return fmt.Errorf("nft %s/%s does not exist", collection.Hex(), tokenID)
	}
	if owner != from {
		return fmt.Errorf("transfer from %s: not the owner of %s/%s", from.Hex(), collection.Hex(), tokenID)
	}
	if from != l.operator && !l.approvals[approvalKey{collection: collection, owner: from, operator: l.operator}] {
		return fmt.Errorf("operator %s not approved by %s", l.operator.Hex(), from.Hex())
	}

	l.owners[k] = to
	return nil
}

type accountKey struct {
	token   common.Address
	account common.Address
}

type allowanceKey struct {
	token   common.Address
	owner   common.Address
	spender common.Address
}

// ERC20Ledger is an in-memory fungible-token ledger with allowance
// semantics. Pulls from third parties spend the allowance they granted
// to the bound operator (the exchange); transfers out of the operator's
// own balance need no allowance.
type ERC20Ledger struct {
	mu         sync.RWMutex
	operator   common.Address
	balances   map[accountKey]*big.Int
	allowances map[allowanceKey]*big.Int
}

// NewERC20Ledger returns an empty token ledger bound to an operator.
func NewERC20Ledger(operator common.Address) *ERC20Ledger {
	return &ERC20Ledger{
		operator:   operator,
		balances:   make(map[accountKey]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
	}
}

// Mint credits an account with token units.
func (l *ERC20Ledger) Mint(token, to common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(token, to, amount)
}

// Approve sets the allowance an owner grants a spender.
func (l *ERC20Ledger) Approve(token, owner, spender common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[allowanceKey{token: token, owner: owner, spender: spender}] = new(big.Int).Set(amount)
}

// Allowance returns the remaining allowance an owner has granted a
// spender.
func (l *ERC20Ledger) Allowance(token, owner, spender common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if a, ok := l.allowances[allowanceKey{token: token, owner: owner, spender: spender}]; ok {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

// BalanceOf returns an account's token balance.
func (l *ERC20Ledger) BalanceOf(_ context.Context, token, account common.Address) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if b, ok := l.balances[accountKey{token: token, account: account}]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

// TransferFrom moves token units between accounts. Third-party pulls
// require sufficient allowance granted to the bound operator.
func (l *ERC20Ledger) TransferFrom(_ context.Context, token, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if from != l.operator {
		ak := allowanceKey{token: token, owner: from, spender: l.operator}
		allowance := l.allowances[ak]
		if allowance == nil || allowance.Cmp(amount) < 0 {
			return fmt.Errorf("allowance of %s for %s too low", from.Hex(), l.operator.Hex())
		}
		l.allowances[ak] = new(big.Int).Sub(allowance, amount)
	}

	bk := accountKey{token: token, account: from}
	balance := l.balances[bk]
	if balance == nil || balance.Cmp(amount) < 0 {
		return fmt.Errorf("balance of %s too low", from.Hex())
	}
	l.balances[bk] = new(big.Int).Sub(balance, amount)
	l.credit(token, to, amount)
	return nil
}

func (l *ERC20Ledger) credit(token, to common.Address, amount *big.Int) {
	k := accountKey{token: token, account: to}
	if b, ok := l.balances[k]; ok {
		l.balances[k] = new(big.Int).Add(b, amount)
	} else {
		l.balances[k] = new(big.Int).Set(amount)
	}
}

// NativeBalances is an in-memory native-currency ledger.
type NativeBalances struct {
	mu       sync.RWMutex
	balances map[common.Address]*big.Int
}

// NewNativeBalances returns an empty native ledger.
func NewNativeBalances() *NativeBalances {
	return &NativeBalances{balances: make(map[common.Address]*big.Int)}
}

// Fund credits an account with native currency units.
func (b *NativeBalances) Fund(account common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.creditLocked(account, amount)
}

// BalanceOf returns an account's native balance.
func (b *NativeBalances) BalanceOf(account common.Address) *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if bal, ok := b.balances[account]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// Withdraw takes amount from an account. Fails on insufficient balance.
func (b *NativeBalances) Withdraw(_ context.Context, from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	balance := b.balances[from]
	if balance == nil || balance.Cmp(amount) < 0 {
		return fmt.Errorf("native balance of %s too low", from.Hex())
	}
	b.balances[from] = new(big.Int).Sub(balance, amount)
	return nil
}

// Deposit credits an account with amount.
func (b *NativeBalances) Deposit(_ context.Context, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.creditLocked(to, amount)
	return nil
}

func (b *NativeBalances) creditLocked(account common.Address, amount *big.Int) {
	if bal, ok := b.balances[account]; ok {
		b.balances[account] = new(big.Int).Add(bal, amount)
	} else {
		b.balances[account] = new(big.Int).Set(amount)
	}
}
