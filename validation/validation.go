// Package validation validates order fields arriving over transports
// before they reach the settlement engine.
package validation

import (
	"fmt"
	"math/big"
	"regexp"

	dcvx "github.com/dcentralverse/dcvx-go"
)

// evmAddressRegex matches Ethereum-style addresses (0x followed by 40 hex chars)
var evmAddressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// ValidateAddress validates an EVM address string.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if !evmAddressRegex.MatchString(address) {
		return fmt.Errorf("invalid address format: %s (expected 0x followed by 40 hex characters)", address)
	}
	return nil
}

// ValidateAmount validates that an amount string is a valid non-negative
// integer in atomic units.
func ValidateAmount(amount string) error {
	if amount == "" {
		return fmt.Errorf("amount cannot be empty")
	}

	amt, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return fmt.Errorf("invalid amount format: %s", amount)
	}

	if amt.Sign() < 0 {
		return fmt.Errorf("amount must not be negative, got: %s", amount)
	}

	return nil
}

// ValidateBasisPoints validates that a percentage is expressible in
// basis points, i.e. within [0, 10000].
func ValidateBasisPoints(bp uint64) error {
	if bp > dcvx.BasisPointsDenominator {
		return fmt.Errorf("percentage %d bp exceeds %d", bp, dcvx.BasisPointsDenominator)
	}
	return nil
}

// ValidateSignedOrder performs structural validation of a signed-order
// envelope: the envelope shape itself plus the numeric fields of the
// carried payload.
func ValidateSignedOrder(order dcvx.SignedOrder) error {
	if err := order.Validate(); err != nil {
		return err
	}

	switch order.Kind {
	case dcvx.OrderKindSale:
		return validatePricedOrder(order.Sale.OrderNonce, order.Sale.Price)
	case dcvx.OrderKindSaleWithRoyalty:
		o := order.SaleWithRoyalty
		if err := validatePricedOrder(o.OrderNonce, o.Price); err != nil {
			return err
		}
		bp := o.RoyaltyPercentage
		if bp == nil || !bp.IsUint64() {
			return fmt.Errorf("invalid royalty percentage")
		}
		return ValidateBasisPoints(bp.Uint64())
	case dcvx.OrderKindOffer:
		o := order.Offer
		if err := validatePricedOrder(o.OrderNonce, o.Price); err != nil {
			return err
		}
		if o.ExpiresAt == nil || o.ExpiresAt.Sign() <= 0 {
			return fmt.Errorf("invalid expiry timestamp")
		}
		return nil
	}
	return nil
}

func validatePricedOrder(nonce, price *big.Int) error {
	if nonce == nil || nonce.Sign() < 0 {
		return fmt.Errorf("invalid order nonce")
	}
	if price == nil || price.Sign() < 0 {
		return fmt.Errorf("invalid price")
	}
	return nil
}
