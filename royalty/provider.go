// Package royalty implements the per-collection, per-token royalty
// registry consulted by every settlement. Token writes are restricted to
// the configured exchange address; caps and the exchange binding are
// owner-controlled.
package royalty

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	dcvx "github.com/dcentralverse/dcvx-go"
)

// DefaultLimitBp is the royalty cap applied to collections without an
// explicit limit: 10000 bp, the full price.
const DefaultLimitBp = dcvx.BasisPointsDenominator

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

// Provider is the royalty registry. Safe for concurrent use.
type Provider struct {
	mu        sync.RWMutex
	owner     common.Address
	exchange  common.Address
	royalties map[tokenKey]dcvx.TokenRoyalty
	limits    map[common.Address]uint64
	events    dcvx.EventEmitter
}

// Option configures a Provider.
type Option func(*Provider)

// WithExchangeAddress sets the initial authorized exchange caller.
func WithExchangeAddress(exchange common.Address) Option {
	return func(p *Provider) { p.exchange = exchange }
}

// WithEvents sets the event emitter for registry writes.
func WithEvents(events dcvx.EventEmitter) Option {
	return func(p *Provider) { p.events = events }
}

// NewProvider returns a registry owned by the given principal.
func NewProvider(owner common.Address, opts ...Option) *Provider {
	p := &Provider{
		owner:     owner,
		royalties: make(map[tokenKey]dcvx.TokenRoyalty),
		limits:    make(map[common.Address]uint64),
		events:    dcvx.NopEmitter{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Owner returns the owning principal.
func (p *Provider) Owner() common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.owner
}

// ExchangeAddress returns the single caller authorized for token writes.
func (p *Provider) ExchangeAddress() common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exchange
}

// SetExchangeAddress updates the authorized exchange caller. Owner-only.
func (p *Provider) SetExchangeAddress(caller, exchange common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.owner {
		return dcvx.ErrNotOwner
	}
	p.exchange = exchange
	return nil
}

// SetRoyaltiesLimitForCollection overwrites the royalty cap for a
// collection. Owner-only; the cap itself may not exceed 10000 bp.
func (p *Provider) SetRoyaltiesLimitForCollection(caller, collection common.Address, limitBp uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.owner {
		return dcvx.ErrNotOwner
	}
	if limitBp > dcvx.BasisPointsDenominator {
		return fmt.Errorf("%w: limit %d bp exceeds %d", dcvx.ErrFeeOverTheLimit, limitBp, dcvx.BasisPointsDenominator)
	}

	p.limits[collection] = limitBp
	p.events.Emit(dcvx.NewRoyaltiesLimitForCollection{Collection: collection, LimitBp: limitBp})
	return nil
}

// SetRoyaltiesForToken stores or overwrites the royalty entry for a
// token. Only the configured exchange address may call it; the recipient
// must be non-zero and the percentage within the collection's limit.
func (p *Provider) SetRoyaltiesForToken(caller, collection common.Address, tokenID *big.Int, recipient common.Address, percentageBp uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.exchange {
		return fmt.Errorf("%w: %s is not the exchange", dcvx.ErrInvalidCaller, caller.Hex())
	}
	if recipient == (common.Address{}) {
		return fmt.Errorf("%w: zero royalty recipient", dcvx.ErrInvalidAddress)
	}
	if limit := p.limitLocked(collection); percentageBp > limit {
		return fmt.Errorf("%w: %d bp exceeds collection limit %d", dcvx.ErrFeeOverTheLimit, percentageBp, limit)
	}

	p.royalties[makeTokenKey(collection, tokenID)] = dcvx.TokenRoyalty{
		Recipient:    recipient,
		PercentageBp: percentageBp,
	}
	p.events.Emit(dcvx.RoyaltiesSetForToken{
		Collection:   collection,
		TokenID:      tokenID,
		Recipient:    recipient,
		PercentageBp: percentageBp,
	})
	return nil
}

// RestoreRoyaltiesForToken puts a token entry back to a previous state.
// Only the settlement engine calls this, while rolling back a failed
// settlement that already persisted an asserted royalty. No event is
// emitted: the write being undone never happened.
func (p *Provider) RestoreRoyaltiesForToken(collection common.Address, tokenID *big.Int, previous dcvx.TokenRoyalty, existed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	k := makeTokenKey(collection, tokenID)
	if existed {
		p.royalties[k] = previous
	} else {
		delete(p.royalties, k)
	}
}

// RoyaltyForToken returns the stored entry for a token, if any.
func (p *Provider) RoyaltyForToken(collection common.Address, tokenID *big.Int) (dcvx.TokenRoyalty, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	entry, ok := p.royalties[makeTokenKey(collection, tokenID)]
	return entry, ok
}

// RoyaltiesLimitForCollection returns the effective cap for a collection.
func (p *Provider) RoyaltiesLimitForCollection(collection common.Address) uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.limitLocked(collection)
}

// CalculateRoyaltiesAndGetRecipient returns the royalty recipient and
// amount for a settlement at the given price: floor(price * bp / 10000).
// Returns the zero address and 0 for tokens without an entry.
func (p *Provider) CalculateRoyaltiesAndGetRecipient(collection common.Address, tokenID *big.Int, salePrice *big.Int) (common.Address, *big.Int) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entry, ok := p.royalties[makeTokenKey(collection, tokenID)]
	if !ok {
		return common.Address{}, new(big.Int)
	}
	return entry.Recipient, dcvx.SplitAmount(salePrice, entry.PercentageBp)
}

func (p *Provider) limitLocked(collection common.Address) uint64 {
	if limit, ok := p.limits[collection]; ok {
		return limit
	}
	return DefaultLimitBp
}
