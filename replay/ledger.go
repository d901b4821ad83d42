// Package replay tracks consumed (signer, nonce) pairs. A nonce, once
// consumed by a settlement or an explicit cancellation, permanently
// blocks reuse by that signer across all order kinds.
package replay

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	dcvx "github.com/dcentralverse/dcvx-go"
)

type key struct {
	signer common.Address
	nonce  string
}

func makeKey(signer common.Address, nonce *big.Int) key {
	n := "0"
	if nonce != nil {
		n = nonce.String()
	}
	return key{signer: signer, nonce: n}
}

// Ledger is the replay-protection store. Flags are set and never
// cleared, except by Release during settlement rollback. Safe for
// concurrent use.
type Ledger struct {
	mu   sync.RWMutex
	used map[key]bool
}

// NewLedger returns an empty replay ledger.
func NewLedger() *Ledger {
	return &Ledger{used: make(map[key]bool)}
}

// IsUsed reports whether the (signer, nonce) pair has been consumed.
func (l *Ledger) IsUsed(signer common.Address, nonce *big.Int) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.used[makeKey(signer, nonce)]
}

// Consume marks the pair as used. It fails with dcvx.ErrNonceUsed if the
// pair was already consumed.
func (l *Ledger) Consume(signer common.Address, nonce *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := makeKey(signer, nonce)
	if l.used[k] {
		return fmt.Errorf("%w: signer %s nonce %s", dcvx.ErrNonceUsed, signer.Hex(), k.nonce)
	}
	l.used[k] = true
	return nil
}

// Cancel pre-emptively invalidates a nonce on behalf of its signer. It
// shares the nonce namespace with Consume: a cancelled nonce can never
// settle any order kind.
func (l *Ledger) Cancel(signer common.Address, nonce *big.Int) error {
	return l.Consume(signer, nonce)
}

// Release clears a consumed pair. Only the settlement engine calls this,
// while rolling back a failed settlement that already consumed the nonce.
func (l *Ledger) Release(signer common.Address, nonce *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.used, makeKey(signer, nonce))
}
