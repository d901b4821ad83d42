// Package http exposes the settlement engine over a JSON HTTP API. The
// transport trusts the declared caller address; deployments sit behind
// their own authentication layer.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	dcvx "github.com/dcentralverse/dcvx-go"
	"github.com/dcentralverse/dcvx-go/exchange"
	"github.com/dcentralverse/dcvx-go/royalty"
	"github.com/dcentralverse/dcvx-go/validation"
)

// Server wraps one settlement engine and its royalty registry.
type Server struct {
	exchange  *exchange.Exchange
	royalties *royalty.Provider
	logger    *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates an API server for an engine and its registry.
func NewServer(ex *exchange.Exchange, royalties *royalty.Provider, opts ...ServerOption) *Server {
	s := &Server{
		exchange:  ex,
		royalties: royalties,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the chi router serving the exchange API.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/v1/orders/sale", s.handleBuyFromSale)
	r.Post("/v1/orders/sale-with-royalty", s.handleBuyFromSaleWithRoyalty)
	r.Post("/v1/orders/offer/accept", s.handleAcceptOffer)
	r.Post("/v1/nonces/cancel", s.handleCancelNonce)
	r.Get("/v1/nonces/{signer}/{nonce}", s.handleNonceStatus)
	r.Get("/v1/config", s.handleConfig)
	r.Post("/v1/config", s.handleUpdateConfiguration)
	r.Get("/v1/royalties/{collection}/{tokenID}", s.handleRoyaltyQuote)
	r.Post("/v1/royalties/token", s.handleSetRoyaltiesForToken)
	r.Post("/v1/royalties/limit", s.handleSetRoyaltiesLimit)
	r.Post("/v1/royalties/exchange-address", s.handleSetExchangeAddress)

	return r
}

// SettleRequest submits a signed order for settlement.
type SettleRequest struct {
	// Caller is the account settling the order: the buyer for sales, the
	// accepting NFT holder for offers.
	Caller common.Address `json:"caller"`

	// Value is the supplied native currency for sale settlement, in
	// atomic units. Ignored for offers.
	Value *big.Int `json:"value,omitempty"`

	// Order is the signed order envelope.
	Order dcvx.SignedOrder `json:"order"`
}

// SettleResponse reports a completed settlement.
type SettleResponse struct {
	Success bool           `json:"success"`
	Kind    dcvx.OrderKind `json:"kind"`
}

// ErrorResponse carries a machine-matchable failure signal.
type ErrorResponse struct {
	// Code is the stable failure signal name, e.g. "NonceUsed".
	Code string `json:"code"`

	// Error is the human-readable cause.
	Error string `json:"error"`
}

func (s *Server) handleBuyFromSale(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSettleRequest(w, r, dcvx.OrderKindSale)
	if !ok {
		return
	}

	err := s.exchange.BuyFromSale(r.Context(), req.Caller, req.Value, req.Order.Signature, *req.Order.Sale)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, SettleResponse{Success: true, Kind: dcvx.OrderKindSale})
}

func (s *Server) handleBuyFromSaleWithRoyalty(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSettleRequest(w, r, dcvx.OrderKindSaleWithRoyalty)
	if !ok {
		return
	}

	err := s.exchange.BuyFromSaleWithRoyalty(r.Context(), req.Caller, req.Value,
		req.Order.Signature, req.Order.RoyaltySignature, *req.Order.SaleWithRoyalty)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, SettleResponse{Success: true, Kind: dcvx.OrderKindSaleWithRoyalty})
}

func (s *Server) handleAcceptOffer(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSettleRequest(w, r, dcvx.OrderKindOffer)
	if !ok {
		return
	}

	err := s.exchange.AcceptOffer(r.Context(), req.Caller, req.Order.Signature, *req.Order.Offer)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, SettleResponse{Success: true, Kind: dcvx.OrderKindOffer})
}

// CancelNonceRequest invalidates one of the caller's own nonces.
type CancelNonceRequest struct {
	Caller common.Address `json:"caller"`
	Nonce  *big.Int       `json:"nonce"`
}

func (s *Server) handleCancelNonce(w http.ResponseWriter, r *http.Request) {
	var req CancelNonceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "malformed request body")
		return
	}
	if req.Nonce == nil {
		s.writeBadRequest(w, "missing nonce")
		return
	}

	if err := s.exchange.CancelNonce(req.Caller, req.Nonce); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// NonceStatusResponse reports whether a (signer, nonce) pair is spent.
type NonceStatusResponse struct {
	Signer common.Address `json:"signer"`
	Nonce  *big.Int       `json:"nonce"`
	Used   bool           `json:"used"`
}

func (s *Server) handleNonceStatus(w http.ResponseWriter, r *http.Request) {
	signerHex := chi.URLParam(r, "signer")
	if err := validation.ValidateAddress(signerHex); err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}
	nonce, ok := new(big.Int).SetString(chi.URLParam(r, "nonce"), 10)
	if !ok {
		s.writeBadRequest(w, "malformed nonce")
		return
	}

	signer := common.HexToAddress(signerHex)
	s.writeJSON(w, http.StatusOK, NonceStatusResponse{
		Signer: signer,
		Nonce:  nonce,
		Used:   s.exchange.IsNonceUsed(signer, nonce),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.exchange.Config())
}

// UpdateConfigurationRequest overwrites the engine configuration.
// Owner-only.
type UpdateConfigurationRequest struct {
	Caller common.Address `json:"caller"`
	Config dcvx.Config    `json:"config"`
}

func (s *Server) handleUpdateConfiguration(w http.ResponseWriter, r *http.Request) {
	var req UpdateConfigurationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "malformed request body")
		return
	}

	if err := s.exchange.UpdateConfiguration(req.Caller, req.Config); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// RoyaltyQuoteResponse is the royalty split for a token at a price.
type RoyaltyQuoteResponse struct {
	Recipient common.Address `json:"recipient"`
	Amount    *big.Int       `json:"amount"`
}

func (s *Server) handleRoyaltyQuote(w http.ResponseWriter, r *http.Request) {
	collectionHex := chi.URLParam(r, "collection")
	if err := validation.ValidateAddress(collectionHex); err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}
	tokenID, ok := new(big.Int).SetString(chi.URLParam(r, "tokenID"), 10)
	if !ok {
		s.writeBadRequest(w, "malformed token id")
		return
	}
	priceStr := r.URL.Query().Get("price")
	if err := validation.ValidateAmount(priceStr); err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}
	price, _ := new(big.Int).SetString(priceStr, 10)

	recipient, amount := s.royalties.CalculateRoyaltiesAndGetRecipient(common.HexToAddress(collectionHex), tokenID, price)
	s.writeJSON(w, http.StatusOK, RoyaltyQuoteResponse{Recipient: recipient, Amount: amount})
}

// SetRoyaltiesForTokenRequest writes a token royalty entry. The caller
// must be the configured exchange address.
type SetRoyaltiesForTokenRequest struct {
	Caller       common.Address `json:"caller"`
	Collection   common.Address `json:"collection"`
	TokenID      *big.Int       `json:"tokenId"`
	Recipient    common.Address `json:"recipient"`
	PercentageBp uint64         `json:"percentageBp"`
}

func (s *Server) handleSetRoyaltiesForToken(w http.ResponseWriter, r *http.Request) {
	var req SetRoyaltiesForTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "malformed request body")
		return
	}

	err := s.royalties.SetRoyaltiesForToken(req.Caller, req.Collection, req.TokenID, req.Recipient, req.PercentageBp)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// SetRoyaltiesLimitRequest overwrites a collection royalty cap.
// Owner-only.
type SetRoyaltiesLimitRequest struct {
	Caller     common.Address `json:"caller"`
	Collection common.Address `json:"collection"`
	LimitBp    uint64         `json:"limitBp"`
}

func (s *Server) handleSetRoyaltiesLimit(w http.ResponseWriter, r *http.Request) {
	var req SetRoyaltiesLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "malformed request body")
		return
	}

	if err := s.royalties.SetRoyaltiesLimitForCollection(req.Caller, req.Collection, req.LimitBp); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// SetExchangeAddressRequest rebinds the registry's authorized exchange
// caller. Owner-only.
type SetExchangeAddressRequest struct {
	Caller   common.Address `json:"caller"`
	Exchange common.Address `json:"exchange"`
}

func (s *Server) handleSetExchangeAddress(w http.ResponseWriter, r *http.Request) {
	var req SetExchangeAddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "malformed request body")
		return
	}

	if err := s.royalties.SetExchangeAddress(req.Caller, req.Exchange); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) decodeSettleRequest(w http.ResponseWriter, r *http.Request, kind dcvx.OrderKind) (SettleRequest, bool) {
	var req SettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "malformed request body")
		return req, false
	}
	if req.Order.Kind != kind {
		s.writeBadRequest(w, "order kind does not match endpoint")
		return req, false
	}
	if err := validation.ValidateSignedOrder(req.Order); err != nil {
		s.writeBadRequest(w, err.Error())
		return req, false
	}
	return req, true
}

// ErrorCode maps a settlement error to its stable signal name.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, dcvx.ErrInvalidSignature):
		return "InvalidSignature"
	case errors.Is(err, dcvx.ErrNonceUsed):
		return "NonceUsed"
	case errors.Is(err, dcvx.ErrOfferExpired):
		return "OfferExpired"
	case errors.Is(err, dcvx.ErrInvalidCaller):
		return "InvalidCaller"
	case errors.Is(err, dcvx.ErrNotOwner):
		return "Ownable"
	case errors.Is(err, dcvx.ErrUnsufficientCurrencySupplied):
		return "UnsufficientCurrencySupplied"
	case errors.Is(err, dcvx.ErrFeeOverTheLimit):
		return "FeeOverTheLimit"
	case errors.Is(err, dcvx.ErrInvalidAddress):
		return "InvalidAddress"
	case errors.Is(err, dcvx.ErrUnauthorizedRoyaltyChange):
		return "UnauthorizedRoyaltyChange"
	case errors.Is(err, dcvx.ErrInvalidOrder):
		return "InvalidOrder"
	default:
		return "TransferFailed"
	}
}

// StatusForError maps a settlement error to an HTTP status code.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, dcvx.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, dcvx.ErrInvalidCaller),
		errors.Is(err, dcvx.ErrNotOwner),
		errors.Is(err, dcvx.ErrUnauthorizedRoyaltyChange):
		return http.StatusForbidden
	case errors.Is(err, dcvx.ErrNonceUsed):
		return http.StatusConflict
	case errors.Is(err, dcvx.ErrOfferExpired):
		return http.StatusGone
	case errors.Is(err, dcvx.ErrUnsufficientCurrencySupplied):
		return http.StatusPaymentRequired
	case errors.Is(err, dcvx.ErrFeeOverTheLimit),
		errors.Is(err, dcvx.ErrInvalidAddress),
		errors.Is(err, dcvx.ErrInvalidOrder):
		return http.StatusUnprocessableEntity
	default:
		// Collaborator-boundary failures (allowance, ownership, approval)
		// propagate opaquely.
		return http.StatusBadGateway
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := ErrorCode(err)
	status := StatusForError(err)
	s.logger.Warn("settlement rejected",
		"code", code,
		"status", status,
		"path", r.URL.Path,
		"error", err,
	)
	s.writeJSON(w, status, ErrorResponse{Code: code, Error: err.Error()})
}

func (s *Server) writeBadRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: "BadRequest", Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
