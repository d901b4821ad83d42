// Package exchange implements the settlement engine: it verifies signed
// orders, enforces replay protection and royalty limits, computes fee
// splits, and moves assets and currency atomically.
//
// Every settlement runs under a single lock and either fully commits or
// rolls back: the engine journals each state mutation and completed
// transfer and reverts them all if a later step fails. Collaborator
// implementations must not call back into the engine from transfer
// hooks.
package exchange

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	dcvx "github.com/dcentralverse/dcvx-go"
	"github.com/dcentralverse/dcvx-go/eip712"
	"github.com/dcentralverse/dcvx-go/replay"
)

// Exchange is the order-authorization and settlement engine.
type Exchange struct {
	mu sync.Mutex

	address common.Address
	owner   common.Address
	chainID *big.Int

	cfg       dcvx.Config
	verifier  *eip712.Verifier
	nonces    *replay.Ledger
	royalties RoyaltyRegistry
	assets    AssetLedger
	tokens    TokenLedger
	native    NativeLedger
	events    dcvx.EventEmitter
	now       func() time.Time
}

// Option configures an Exchange.
type Option func(*Exchange) error

// WithAddress sets the engine's own identity: the verifying-contract
// address of the signing domain and the caller identity for royalty
// registry writes.
func WithAddress(address common.Address) Option {
	return func(e *Exchange) error {
		e.address = address
		return nil
	}
}

// WithOwner sets the principal allowed to update configuration.
func WithOwner(owner common.Address) Option {
	return func(e *Exchange) error {
		e.owner = owner
		return nil
	}
}

// WithChainID binds the signing domain to a chain.
func WithChainID(chainID *big.Int) Option {
	return func(e *Exchange) error {
		e.chainID = chainID
		return nil
	}
}

// WithConfig sets the initial configuration.
func WithConfig(cfg dcvx.Config) Option {
	return func(e *Exchange) error {
		e.cfg = cfg
		return nil
	}
}

// WithRoyaltyRegistry sets the royalty provider collaborator.
func WithRoyaltyRegistry(registry RoyaltyRegistry) Option {
	return func(e *Exchange) error {
		e.royalties = registry
		return nil
	}
}

// WithAssetLedger sets the NFT collaborator.
func WithAssetLedger(assets AssetLedger) Option {
	return func(e *Exchange) error {
		e.assets = assets
		return nil
	}
}

// WithTokenLedger sets the ERC-20 collaborator used for offers.
func WithTokenLedger(tokens TokenLedger) Option {
	return func(e *Exchange) error {
		e.tokens = tokens
		return nil
	}
}

// WithNativeLedger sets the native-currency collaborator used for sales.
func WithNativeLedger(native NativeLedger) Option {
	return func(e *Exchange) error {
		e.native = native
		return nil
	}
}

// WithEvents sets the event emitter.
func WithEvents(events dcvx.EventEmitter) Option {
	return func(e *Exchange) error {
		e.events = events
		return nil
	}
}

// WithReplayLedger sets the replay ledger, sharing it across engines if
// needed. Defaults to a fresh ledger.
func WithReplayLedger(ledger *replay.Ledger) Option {
	return func(e *Exchange) error {
		e.nonces = ledger
		return nil
	}
}

// WithClock overrides the time source used for offer expiry.
func WithClock(now func() time.Time) Option {
	return func(e *Exchange) error {
		e.now = now
		return nil
	}
}

// New creates a settlement engine with the given options.
func New(opts ...Option) (*Exchange, error) {
	e := &Exchange{
		nonces: replay.NewLedger(),
		events: dcvx.NopEmitter{},
		now:    time.Now,
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	// Validation
	if e.address == (common.Address{}) {
		return nil, errors.New("exchange: address is required")
	}
	if e.owner == (common.Address{}) {
		return nil, errors.New("exchange: owner is required")
	}
	if e.chainID == nil {
		return nil, errors.New("exchange: chain id is required")
	}
	if e.royalties == nil {
		return nil, errors.New("exchange: royalty registry is required")
	}
	if e.assets == nil {
		return nil, errors.New("exchange: asset ledger is required")
	}
	if e.tokens == nil {
		return nil, errors.New("exchange: token ledger is required")
	}
	if e.native == nil {
		return nil, errors.New("exchange: native ledger is required")
	}

	e.verifier = eip712.NewVerifier(e.chainID, e.address)
	return e, nil
}

// Address returns the engine's identity address.
func (e *Exchange) Address() common.Address {
	return e.address
}

// Owner returns the owning principal.
func (e *Exchange) Owner() common.Address {
	return e.owner
}

// ChainID returns the chain the signing domain is bound to.
func (e *Exchange) ChainID() *big.Int {
	return new(big.Int).Set(e.chainID)
}

// Verifier returns the typed-data verifier bound to this deployment.
func (e *Exchange) Verifier() *eip712.Verifier {
	return e.verifier
}

// Config returns the current configuration.
func (e *Exchange) Config() dcvx.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// UpdateConfiguration atomically overwrites all five configuration
// fields. Owner-only.
func (e *Exchange) UpdateConfiguration(caller common.Address, cfg dcvx.Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.owner {
		return dcvx.ErrNotOwner
	}
	e.cfg = cfg
	return nil
}

// CancelNonce pre-emptively invalidates one of the caller's own nonces.
// The cancelled nonce blocks later settlement of any order kind signed
// with it.
func (e *Exchange) CancelNonce(caller common.Address, nonce *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.nonces.Cancel(caller, nonce); err != nil {
		return err
	}
	e.events.Emit(dcvx.NonceUsed{Signer: caller, Nonce: nonce})
	return nil
}

// IsNonceUsed reports whether a (signer, nonce) pair has been consumed.
func (e *Exchange) IsNonceUsed(signer common.Address, nonce *big.Int) bool {
	return e.nonces.IsUsed(signer, nonce)
}

// journal collects undo actions for one settlement. On failure the
// actions run in reverse order, restoring every mutation and completed
// transfer.
type journal struct {
	undos []func()
}

func (j *journal) add(undo func()) {
	j.undos = append(j.undos, undo)
}

func (j *journal) revert() {
	for i := len(j.undos) - 1; i >= 0; i-- {
		j.undos[i]()
	}
}

// splits holds the computed distribution of one settlement's price.
type splits struct {
	platformFee      *big.Int
	royaltyAmount    *big.Int
	royaltyRecipient common.Address
	remainder        *big.Int
}

// computeSplits derives the fee distribution for a price. The platform
// and royalty percentages are capped independently, so their combined
// cut can exceed the price; that settlement fails rather than paying a
// negative remainder.
func (e *Exchange) computeSplits(price *big.Int, royaltyRecipient common.Address, royaltyAmount *big.Int) (splits, error) {
	platformFee := dcvx.SplitAmount(price, e.cfg.PlatformPercentageBp)
	if royaltyAmount == nil {
		royaltyAmount = new(big.Int)
	}

	remainder := new(big.Int).Sub(price, platformFee)
	remainder.Sub(remainder, royaltyAmount)
	if remainder.Sign() < 0 {
		return splits{}, fmt.Errorf("%w: platform fee plus royalty exceeds price", dcvx.ErrFeeOverTheLimit)
	}

	return splits{
		platformFee:      platformFee,
		royaltyAmount:    royaltyAmount,
		royaltyRecipient: royaltyRecipient,
		remainder:        remainder,
	}, nil
}

func bigOrZero(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x
}
