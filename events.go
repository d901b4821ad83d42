package dcvx

import (
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Event is a settlement or registry record emitted on successful state
// transitions. Each concrete event mirrors one record of the exchange's
// public surface.
type Event interface {
	// EventName returns the stable record name, e.g. "SaleSuccess".
	EventName() string
}

// EventEmitter receives events as they are emitted. Emitters must not
// call back into the component emitting the event.
type EventEmitter interface {
	Emit(event Event)
}

// SaleSuccess records a settled sale.
type SaleSuccess struct {
	Collection  common.Address `json:"collection"`
	TokenID     *big.Int       `json:"tokenId"`
	Seller      common.Address `json:"seller"`
	Buyer       common.Address `json:"buyer"`
	Price       *big.Int       `json:"price"`
	PlatformFee *big.Int       `json:"platformFee"`
}

func (SaleSuccess) EventName() string { return "SaleSuccess" }

// OfferAccepted records a settled offer.
type OfferAccepted struct {
	Collection  common.Address `json:"collection"`
	TokenID     *big.Int       `json:"tokenId"`
	Bidder      common.Address `json:"bidder"`
	Seller      common.Address `json:"seller"`
	Price       *big.Int       `json:"price"`
	PlatformFee *big.Int       `json:"platformFee"`
}

func (OfferAccepted) EventName() string { return "OfferAccepted" }

// NonceUsed records an explicit nonce cancellation.
type NonceUsed struct {
	Signer common.Address `json:"signer"`
	Nonce  *big.Int       `json:"nonce"`
}

func (NonceUsed) EventName() string { return "NonceUsed" }

// RoyaltiesSetForToken records a royalty entry write.
type RoyaltiesSetForToken struct {
	Collection   common.Address `json:"collection"`
	TokenID      *big.Int       `json:"tokenId"`
	Recipient    common.Address `json:"recipient"`
	PercentageBp uint64         `json:"percentageBp"`
}

func (RoyaltiesSetForToken) EventName() string { return "RoyaltiesSetForToken" }

// NewRoyaltiesLimitForCollection records a collection royalty cap update.
type NewRoyaltiesLimitForCollection struct {
	Collection common.Address `json:"collection"`
	LimitBp    uint64         `json:"limitBp"`
}

func (NewRoyaltiesLimitForCollection) EventName() string {
	return "NewRoyaltiesLimitForCollection"
}

// MemorySink collects emitted events in order. Safe for concurrent use.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink returns an empty event collector.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Emit implements EventEmitter.
func (s *MemorySink) Emit(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// Events returns a copy of all events emitted so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Last returns the most recent event, or nil if none were emitted.
func (s *MemorySink) Last() Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return nil
	}
	return s.events[len(s.events)-1]
}

// SlogEmitter logs every event through a structured logger.
type SlogEmitter struct {
	Logger *slog.Logger
}

// Emit implements EventEmitter.
func (e *SlogEmitter) Emit(event Event) {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("exchange event", "name", event.EventName(), "event", event)
}

// NopEmitter discards all events.
type NopEmitter struct{}

// Emit implements EventEmitter.
func (NopEmitter) Emit(Event) {}
