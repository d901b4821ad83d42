package exchange

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	dcvx "github.com/dcentralverse/dcvx-go"
)

// AcceptOffer settles a bidder-signed offer. The caller is the NFT
// holder accepting the bid; payment moves in the configured ERC-20
// payment token, pulled from the bidder's pre-existing allowance. On
// success the NFT moves from the caller to the bidder and the price is
// split between the caller, the platform fee recipient, and the royalty
// recipient.
func (e *Exchange) AcceptOffer(ctx context.Context, caller common.Address, signature []byte, order dcvx.OfferOrder) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	price := bigOrZero(order.Price)

	if caller == order.Bidder {
		return fmt.Errorf("%w: bidder cannot accept own offer", dcvx.ErrInvalidCaller)
	}
	if order.ExpiresAt == nil {
		return fmt.Errorf("%w: offer has no expiry timestamp", dcvx.ErrInvalidOrder)
	}
	now := big.NewInt(e.now().Unix())
	if now.Cmp(order.ExpiresAt) > 0 {
		return fmt.Errorf("%w: expired at %s", dcvx.ErrOfferExpired, order.ExpiresAt)
	}
	if err := e.verifier.VerifyOffer(order, signature); err != nil {
		return err
	}

	j := &journal{}
	if err := e.consumeNonce(j, order.Bidder, order.OrderNonce); err != nil {
		return err
	}

	royaltyRecipient, royaltyAmount := e.royalties.CalculateRoyaltiesAndGetRecipient(order.NFTContract, order.TokenID, price)
	sp, err := e.computeSplits(price, royaltyRecipient, royaltyAmount)
	if err != nil {
		j.revert()
		return err
	}

	if err := e.settleOfferTransfers(ctx, j, caller, order, sp, price); err != nil {
		j.revert()
		return err
	}

	e.events.Emit(dcvx.OfferAccepted{
		Collection:  order.NFTContract,
		TokenID:     order.TokenID,
		Bidder:      order.Bidder,
		Seller:      caller,
		Price:       price,
		PlatformFee: sp.platformFee,
	})
	return nil
}

// settleOfferTransfers pulls the full price from the bidder into engine
// custody, moves the NFT, then disburses the splits. The single pull
// keeps the settlement all-or-nothing: a short allowance fails before
// anything else has moved, and custody disbursements cannot be blocked
// by third-party approvals.
func (e *Exchange) settleOfferTransfers(ctx context.Context, j *journal, caller common.Address, order dcvx.OfferOrder, sp splits, price *big.Int) error {
	token := e.cfg.PaymentToken

	if price.Sign() > 0 {
		if err := e.tokens.TransferFrom(ctx, token, order.Bidder, e.address, price); err != nil {
			return fmt.Errorf("payment transfer: %w", err)
		}
		j.add(func() { _ = e.tokens.TransferFrom(ctx, token, e.address, order.Bidder, price) })
	}

	if err := e.assets.TransferFrom(ctx, order.NFTContract, caller, order.Bidder, order.TokenID); err != nil {
		return fmt.Errorf("asset transfer: %w", err)
	}
	j.add(func() { _ = e.assets.TransferFrom(ctx, order.NFTContract, order.Bidder, caller, order.TokenID) })

	if err := e.payoutToken(ctx, j, token, e.cfg.FeeRecipient, sp.platformFee); err != nil {
		return err
	}
	if sp.royaltyRecipient != (common.Address{}) {
		if err := e.payoutToken(ctx, j, token, sp.royaltyRecipient, sp.royaltyAmount); err != nil {
			return err
		}
	}
	return e.payoutToken(ctx, j, token, caller, sp.remainder)
}

func (e *Exchange) payoutToken(ctx context.Context, j *journal, token, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if err := e.tokens.TransferFrom(ctx, token, e.address, to, amount); err != nil {
		return fmt.Errorf("payment transfer: %w", err)
	}
	j.add(func() { _ = e.tokens.TransferFrom(ctx, token, to, e.address, amount) })
	return nil
}
