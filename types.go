// Package dcvx defines the shared data model for the Dcentralverse
// exchange: signed order payloads, royalty records, exchange
// configuration, and the error and event taxonomy used across the
// settlement engine and its transports.
package dcvx

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BasisPointsDenominator is the denominator for every percentage field.
// 250 bp = 2.5%.
const BasisPointsDenominator = 10000

// OrderKind tags the three order shapes a signer can authorize.
type OrderKind string

const (
	OrderKindSale            OrderKind = "sale"
	OrderKindSaleWithRoyalty OrderKind = "saleWithRoyalty"
	OrderKindOffer           OrderKind = "offer"
)

// SaleOrder is a seller-signed intent to sell an NFT for a fixed price
// in native currency. Any caller other than the seller can settle it by
// supplying at least Price.
type SaleOrder struct {
	// Seller is the current NFT holder and the expected signer.
	Seller common.Address `json:"seller"`

	// OrderNonce disambiguates orders from the same signer. One-time use,
	// shared across all order kinds.
	OrderNonce *big.Int `json:"orderNonce"`

	// NFTContract is the collection address of the asset being sold.
	NFTContract common.Address `json:"nftContract"`

	// TokenID identifies the token within the collection.
	TokenID *big.Int `json:"tokenId"`

	// Price is the sale price in native currency atomic units.
	Price *big.Int `json:"price"`
}

// SaleWithRoyaltyOrder is a SaleOrder that additionally asserts royalty
// terms for the token. The asserted terms must pay the seller themself
// and must be co-signed by the platform's royalties signer.
type SaleWithRoyaltyOrder struct {
	Seller      common.Address `json:"seller"`
	OrderNonce  *big.Int       `json:"orderNonce"`
	NFTContract common.Address `json:"nftContract"`
	TokenID     *big.Int       `json:"tokenId"`
	Price       *big.Int       `json:"price"`

	// RoyaltyRecipient receives the asserted royalty on this and every
	// future settlement of the token. Must equal Seller.
	RoyaltyRecipient common.Address `json:"royaltyRecipient"`

	// RoyaltyPercentage is the asserted royalty in basis points, bounded
	// by the collection's royalty limit.
	RoyaltyPercentage *big.Int `json:"royaltyPercentage"`
}

// Sale returns the plain-sale view of the order, used for the checks and
// fee math shared with SaleOrder settlement.
func (o SaleWithRoyaltyOrder) Sale() SaleOrder {
	return SaleOrder{
		Seller:      o.Seller,
		OrderNonce:  o.OrderNonce,
		NFTContract: o.NFTContract,
		TokenID:     o.TokenID,
		Price:       o.Price,
	}
}

// RoyaltyParameters returns the royalty tuple the platform's royalties
// signer must co-sign for this order.
func (o SaleWithRoyaltyOrder) RoyaltyParameters() RoyaltyParameters {
	return RoyaltyParameters{
		NFTContract:       o.NFTContract,
		TokenID:           o.TokenID,
		RoyaltyRecipient:  o.RoyaltyRecipient,
		RoyaltyPercentage: o.RoyaltyPercentage,
	}
}

// OfferOrder is a bidder-signed intent to buy an NFT for a fixed price in
// the configured ERC-20 payment token. The NFT holder settles it by
// accepting before ExpiresAt.
type OfferOrder struct {
	// Bidder is the offer maker and the expected signer. Payment is pulled
	// from the bidder's token allowance at settlement time.
	Bidder common.Address `json:"bidder"`

	OrderNonce  *big.Int       `json:"orderNonce"`
	NFTContract common.Address `json:"nftContract"`
	TokenID     *big.Int       `json:"tokenId"`

	// Price is the offered amount in payment-token atomic units.
	Price *big.Int `json:"price"`

	// ExpiresAt is the Unix timestamp after which the offer is void.
	ExpiresAt *big.Int `json:"expiresAt"`
}

// RoyaltyParameters is the typed payload the royalties signer co-signs to
// authorize an on-the-fly royalty assignment.
type RoyaltyParameters struct {
	NFTContract       common.Address `json:"nftContract"`
	TokenID           *big.Int       `json:"tokenId"`
	RoyaltyRecipient  common.Address `json:"royaltyRecipient"`
	RoyaltyPercentage *big.Int       `json:"royaltyPercentage"`
}

// TokenRoyalty is a stored royalty entry for a single token.
type TokenRoyalty struct {
	// Recipient receives the royalty cut of every settlement.
	Recipient common.Address `json:"recipient"`

	// PercentageBp is the royalty share in basis points.
	PercentageBp uint64 `json:"percentageBp"`
}

// Config is the owner-controlled mutable configuration read by every
// settlement. UpdateConfiguration overwrites all five fields atomically.
type Config struct {
	// RoyaltiesProvider is the address identity of the royalty registry.
	RoyaltiesProvider common.Address `json:"royaltiesProvider"`

	// RoyaltiesSigner is the address authorized to co-sign on-the-fly
	// royalty assignments (RoyaltyParameters payloads).
	RoyaltiesSigner common.Address `json:"royaltiesSigner"`

	// PaymentToken is the ERC-20 token used to settle offers. Sales settle
	// in native currency and ignore it.
	PaymentToken common.Address `json:"paymentToken"`

	// FeeRecipient receives the platform fee cut of every settlement.
	FeeRecipient common.Address `json:"feeRecipient"`

	// PlatformPercentageBp is the platform fee in basis points.
	PlatformPercentageBp uint64 `json:"platformPercentageBp"`
}

// SplitAmount applies a basis-point percentage to an amount, truncating
// toward zero: floor(amount * bp / 10000).
func SplitAmount(amount *big.Int, bp uint64) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	cut := new(big.Int).Mul(amount, new(big.Int).SetUint64(bp))
	return cut.Div(cut, big.NewInt(BasisPointsDenominator))
}
