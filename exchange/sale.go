package exchange

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	dcvx "github.com/dcentralverse/dcvx-go"
)

// BuyFromSale settles a seller-signed sale order. The caller supplies
// value native currency units, of which at least order.Price is
// required; any excess is refunded. On success the NFT moves from the
// seller to the caller and the price is split between seller, platform
// fee recipient, and royalty recipient.
func (e *Exchange) BuyFromSale(ctx context.Context, caller common.Address, value *big.Int, signature []byte, order dcvx.SaleOrder) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	price := bigOrZero(order.Price)
	value = bigOrZero(value)

	if caller == order.Seller {
		return fmt.Errorf("%w: seller cannot buy own sale", dcvx.ErrInvalidCaller)
	}
	if value.Cmp(price) < 0 {
		return fmt.Errorf("%w: supplied %s, price %s", dcvx.ErrUnsufficientCurrencySupplied, value, price)
	}
	if err := e.verifier.VerifySale(order, signature); err != nil {
		return err
	}

	j := &journal{}
	if err := e.consumeNonce(j, order.Seller, order.OrderNonce); err != nil {
		return err
	}

	royaltyRecipient, royaltyAmount := e.royalties.CalculateRoyaltiesAndGetRecipient(order.NFTContract, order.TokenID, price)
	sp, err := e.computeSplits(price, royaltyRecipient, royaltyAmount)
	if err != nil {
		j.revert()
		return err
	}

	if err := e.settleSaleTransfers(ctx, j, caller, order, sp, value); err != nil {
		j.revert()
		return err
	}

	e.events.Emit(dcvx.SaleSuccess{
		Collection:  order.NFTContract,
		TokenID:     order.TokenID,
		Seller:      order.Seller,
		Buyer:       caller,
		Price:       price,
		PlatformFee: sp.platformFee,
	})
	return nil
}

// BuyFromSaleWithRoyalty settles a sale whose royalty terms are asserted
// by the order itself rather than pre-stored. The seller may only assert
// royalties payable to themself, and the platform's royalties signer
// must co-attest the royalty tuple. The asserted royalty is persisted
// into the registry before the transfers and governs this and every
// later settlement of the token.
func (e *Exchange) BuyFromSaleWithRoyalty(ctx context.Context, caller common.Address, value *big.Int, sellerSignature, royaltySignature []byte, order dcvx.SaleWithRoyaltyOrder) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	price := bigOrZero(order.Price)
	value = bigOrZero(value)

	if caller == order.Seller {
		return fmt.Errorf("%w: seller cannot buy own sale", dcvx.ErrInvalidCaller)
	}
	if value.Cmp(price) < 0 {
		return fmt.Errorf("%w: supplied %s, price %s", dcvx.ErrUnsufficientCurrencySupplied, value, price)
	}
	if err := e.verifier.VerifySaleWithRoyalty(order, sellerSignature); err != nil {
		return err
	}
	if order.RoyaltyRecipient != order.Seller {
		return fmt.Errorf("%w: royalty recipient %s is not the seller",
			dcvx.ErrUnauthorizedRoyaltyChange, order.RoyaltyRecipient.Hex())
	}
	if err := e.verifier.VerifyRoyaltyParameters(order.RoyaltyParameters(), royaltySignature, e.cfg.RoyaltiesSigner); err != nil {
		return err
	}

	royaltyBp := bigOrZero(order.RoyaltyPercentage)
	if !royaltyBp.IsUint64() {
		return fmt.Errorf("%w: royalty percentage out of range", dcvx.ErrFeeOverTheLimit)
	}

	j := &journal{}
	if err := e.consumeNonce(j, order.Seller, order.OrderNonce); err != nil {
		return err
	}

	// Persist the asserted royalty before any external call. The registry
	// enforces the collection limit and the non-zero recipient.
	previous, existed := e.royalties.RoyaltyForToken(order.NFTContract, order.TokenID)
	if err := e.royalties.SetRoyaltiesForToken(e.address, order.NFTContract, order.TokenID, order.RoyaltyRecipient, royaltyBp.Uint64()); err != nil {
		j.revert()
		return err
	}
	j.add(func() {
		e.royalties.RestoreRoyaltiesForToken(order.NFTContract, order.TokenID, previous, existed)
	})

	royaltyAmount := dcvx.SplitAmount(price, royaltyBp.Uint64())
	sp, err := e.computeSplits(price, order.RoyaltyRecipient, royaltyAmount)
	if err != nil {
		j.revert()
		return err
	}

	if err := e.settleSaleTransfers(ctx, j, caller, order.Sale(), sp, value); err != nil {
		j.revert()
		return err
	}

	e.events.Emit(dcvx.SaleSuccess{
		Collection:  order.NFTContract,
		TokenID:     order.TokenID,
		Seller:      order.Seller,
		Buyer:       caller,
		Price:       price,
		PlatformFee: sp.platformFee,
	})
	return nil
}

func (e *Exchange) consumeNonce(j *journal, signer common.Address, nonce *big.Int) error {
	if err := e.nonces.Consume(signer, nonce); err != nil {
		return err
	}
	j.add(func() { e.nonces.Release(signer, nonce) })
	return nil
}

// settleSaleTransfers escrows the caller's supplied value, moves the
// NFT, and disburses the splits plus any refund. Each completed step is
// journaled so the caller can revert on failure.
func (e *Exchange) settleSaleTransfers(ctx context.Context, j *journal, caller common.Address, order dcvx.SaleOrder, sp splits, value *big.Int) error {
	if err := e.native.Withdraw(ctx, caller, value); err != nil {
		return fmt.Errorf("native withdraw: %w", err)
	}
	j.add(func() { _ = e.native.Deposit(ctx, caller, value) })

	if err := e.assets.TransferFrom(ctx, order.NFTContract, order.Seller, caller, order.TokenID); err != nil {
		return fmt.Errorf("asset transfer: %w", err)
	}
	j.add(func() { _ = e.assets.TransferFrom(ctx, order.NFTContract, caller, order.Seller, order.TokenID) })

	if err := e.payoutNative(ctx, j, e.cfg.FeeRecipient, sp.platformFee); err != nil {
		return err
	}
	if sp.royaltyRecipient != (common.Address{}) {
		if err := e.payoutNative(ctx, j, sp.royaltyRecipient, sp.royaltyAmount); err != nil {
			return err
		}
	}
	if err := e.payoutNative(ctx, j, order.Seller, sp.remainder); err != nil {
		return err
	}

	refund := new(big.Int).Sub(value, bigOrZero(order.Price))
	return e.payoutNative(ctx, j, caller, refund)
}

func (e *Exchange) payoutNative(ctx context.Context, j *journal, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if err := e.native.Deposit(ctx, to, amount); err != nil {
		return fmt.Errorf("native deposit: %w", err)
	}
	j.add(func() { _ = e.native.Withdraw(ctx, to, amount) })
	return nil
}
