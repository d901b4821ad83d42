package dcvx

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SignedOrder is the transport envelope for a signed order: the order
// kind, exactly one order payload, and its signature(s). It is what
// clients submit to the HTTP API and MCP tools.
type SignedOrder struct {
	Kind OrderKind `json:"kind"`

	Sale            *SaleOrder            `json:"sale,omitempty"`
	SaleWithRoyalty *SaleWithRoyaltyOrder `json:"saleWithRoyalty,omitempty"`
	Offer           *OfferOrder           `json:"offer,omitempty"`

	// Signature is the order signer's signature (seller or bidder).
	Signature hexutil.Bytes `json:"signature"`

	// RoyaltySignature is the royalties signer's co-signature, required
	// only for the saleWithRoyalty kind.
	RoyaltySignature hexutil.Bytes `json:"royaltySignature,omitempty"`
}

// Validate checks that the envelope carries exactly the payload and
// signatures its kind requires.
func (o SignedOrder) Validate() error {
	if len(o.Signature) == 0 {
		return fmt.Errorf("signed order: missing signature")
	}

	switch o.Kind {
	case OrderKindSale:
		if o.Sale == nil {
			return fmt.Errorf("signed order: missing sale payload")
		}
	case OrderKindSaleWithRoyalty:
		if o.SaleWithRoyalty == nil {
			return fmt.Errorf("signed order: missing saleWithRoyalty payload")
		}
		if len(o.RoyaltySignature) == 0 {
			return fmt.Errorf("signed order: missing royalty co-signature")
		}
	case OrderKindOffer:
		if o.Offer == nil {
			return fmt.Errorf("signed order: missing offer payload")
		}
	default:
		return fmt.Errorf("signed order: unknown kind %q", o.Kind)
	}
	return nil
}
