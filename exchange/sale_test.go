package exchange

import (
	"context"
	"errors"
	"math/big"
	"testing"

	dcvx "github.com/dcentralverse/dcvx-go"
)

func saleOrder(f *fixture, nonce int64, tokenID, price *big.Int) dcvx.SaleOrder {
	return dcvx.SaleOrder{
		Seller:      f.seller.Address(),
		OrderNonce:  big.NewInt(nonce),
		NFTContract: collection,
		TokenID:     tokenID,
		Price:       price,
	}
}

func TestBuyFromSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tokenID := f.mintToSeller()
	f.native.Fund(f.buyer.Address(), oneEther)

	order := saleOrder(f, 1, tokenID, oneEther)
	sig, err := f.seller.SignSale(order)
	if err != nil {
		t.Fatalf("SignSale() error = %v", err)
	}

	if err := f.ex.BuyFromSale(ctx, f.buyer.Address(), oneEther, sig, order); err != nil {
		t.Fatalf("BuyFromSale() error = %v", err)
	}

	newOwner, err := f.nfts.OwnerOf(ctx, collection, tokenID)
	if err != nil {
		t.Fatalf("OwnerOf() error = %v", err)
	}
	if newOwner != f.buyer.Address() {
		t.Errorf("token owner = %s, want buyer", newOwner.Hex())
	}

	assertBalance(t, f.native.BalanceOf(f.seller.Address()), "975000000000000000", "seller")
	assertBalance(t, f.native.BalanceOf(feeRecipient), "25000000000000000", "fee recipient")
	assertBalance(t, f.native.BalanceOf(f.buyer.Address()), "0", "buyer")

	if !f.ex.IsNonceUsed(f.seller.Address(), order.OrderNonce) {
		t.Error("settled nonce reported unused")
	}

	event, ok := f.events.Last().(dcvx.SaleSuccess)
	if !ok {
		t.Fatalf("last event = %T, want SaleSuccess", f.events.Last())
	}
	if event.Buyer != f.buyer.Address() || event.Seller != f.seller.Address() ||
		event.Price.Cmp(oneEther) != 0 || event.PlatformFee.String() != "25000000000000000" {
		t.Errorf("event payload = %+v", event)
	}
}

func TestBuyFromSalePaysStoredRoyalty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tokenID := f.mintToSeller()
	f.native.Fund(f.buyer.Address(), oneEther)

	artist := newSigner(t).Address()
	if err := f.royalties.SetRoyaltiesForToken(exchangeAddr, collection, tokenID, artist, 500); err != nil {
		t.Fatalf("SetRoyaltiesForToken() error = %v", err)
	}

	order := saleOrder(f, 1, tokenID, oneEther)
	sig, _ := f.seller.SignSale(order)

	if err := f.ex.BuyFromSale(ctx, f.buyer.Address(), oneEther, sig, order); err != nil {
		t.Fatalf("BuyFromSale() error = %v", err)
	}

	assertBalance(t, f.native.BalanceOf(f.seller.Address()), "925000000000000000", "seller")
	assertBalance(t, f.native.BalanceOf(feeRecipient), "25000000000000000", "fee recipient")
	assertBalance(t, f.native.BalanceOf(artist), "50000000000000000", "artist")
}

func TestBuyFromSaleRefundsExcess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tokenID := f.mintToSeller()
	supplied := wei("1500000000000000000")
	f.native.Fund(f.buyer.Address(), supplied)

	order := saleOrder(f, 1, tokenID, oneEther)
	sig, _ := f.seller.SignSale(order)

	if err := f.ex.BuyFromSale(ctx, f.buyer.Address(), supplied, sig, order); err != nil {
		t.Fatalf("BuyFromSale() error = %v", err)
	}

	// Only the price leaves the buyer.
	assertBalance(t, f.native.BalanceOf(f.buyer.Address()), "500000000000000000", "buyer")
	assertBalance(t, f.native.BalanceOf(f.seller.Address()), "975000000000000000", "seller")
}

func TestBuyFromSaleRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("seller buying own sale", func(t *testing.T) {
		f := newFixture(t)
		order := saleOrder(f, 1, f.mintToSeller(), oneEther)
		sig, _ := f.seller.SignSale(order)

		err := f.ex.BuyFromSale(ctx, f.seller.Address(), oneEther, sig, order)
		if !errors.Is(err, dcvx.ErrInvalidCaller) {
			t.Errorf("error = %v, want ErrInvalidCaller", err)
		}
	})

	t.Run("insufficient value", func(t *testing.T) {
		f := newFixture(t)
		order := saleOrder(f, 1, f.mintToSeller(), oneEther)
		sig, _ := f.seller.SignSale(order)
		f.native.Fund(f.buyer.Address(), oneEther)

		short := wei("999999999999999999")
		err := f.ex.BuyFromSale(ctx, f.buyer.Address(), short, sig, order)
		if !errors.Is(err, dcvx.ErrUnsufficientCurrencySupplied) {
			t.Errorf("error = %v, want ErrUnsufficientCurrencySupplied", err)
		}
	})

	t.Run("signature from wrong key", func(t *testing.T) {
		f := newFixture(t)
		order := saleOrder(f, 1, f.mintToSeller(), oneEther)
		sig, _ := f.buyer.SignSale(order)
		f.native.Fund(f.buyer.Address(), oneEther)

		err := f.ex.BuyFromSale(ctx, f.buyer.Address(), oneEther, sig, order)
		if !errors.Is(err, dcvx.ErrInvalidSignature) {
			t.Errorf("error = %v, want ErrInvalidSignature", err)
		}
	})

	t.Run("cancelled nonce", func(t *testing.T) {
		f := newFixture(t)
		order := saleOrder(f, 1, f.mintToSeller(), oneEther)
		sig, _ := f.seller.SignSale(order)
		f.native.Fund(f.buyer.Address(), oneEther)

		if err := f.ex.CancelNonce(f.seller.Address(), order.OrderNonce); err != nil {
			t.Fatalf("CancelNonce() error = %v", err)
		}
		err := f.ex.BuyFromSale(ctx, f.buyer.Address(), oneEther, sig, order)
		if !errors.Is(err, dcvx.ErrNonceUsed) {
			t.Errorf("error = %v, want ErrNonceUsed", err)
		}
	})

	t.Run("nonce already spent by another kind", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()

		// Settle a sale with nonce 1, then try an offer from the same
		// signer reusing nonce 1.
		tokenID := f.mintToSeller()
		f.native.Fund(f.buyer.Address(), oneEther)
		order := saleOrder(f, 1, tokenID, oneEther)
		sig, _ := f.seller.SignSale(order)
		if err := f.ex.BuyFromSale(ctx, f.buyer.Address(), oneEther, sig, order); err != nil {
			t.Fatalf("BuyFromSale() error = %v", err)
		}

		offer := dcvx.OfferOrder{
			Bidder:      f.seller.Address(),
			OrderNonce:  big.NewInt(1),
			NFTContract: collection,
			TokenID:     tokenID,
			Price:       oneEther,
			ExpiresAt:   big.NewInt(1900000000),
		}
		offerSig, _ := f.seller.SignOffer(offer)
		f.tokens.Mint(paymentToken, f.seller.Address(), oneEther)
		f.tokens.Approve(paymentToken, f.seller.Address(), exchangeAddr, oneEther)

		err := f.ex.AcceptOffer(ctx, f.buyer.Address(), offerSig, offer)
		if !errors.Is(err, dcvx.ErrNonceUsed) {
			t.Errorf("error = %v, want ErrNonceUsed", err)
		}
	})
}

func TestBuyFromSaleCombinedFeesExceedPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tokenID := f.mintToSeller()
	f.native.Fund(f.buyer.Address(), oneEther)

	// 9800 bp platform fee plus a 500 bp royalty overruns the price.
	cfg := f.ex.Config()
	cfg.PlatformPercentageBp = 9800
	if err := f.ex.UpdateConfiguration(ownerAddr, cfg); err != nil {
		t.Fatalf("UpdateConfiguration() error = %v", err)
	}
	artist := newSigner(t).Address()
	if err := f.royalties.SetRoyaltiesForToken(exchangeAddr, collection, tokenID, artist, 500); err != nil {
		t.Fatalf("SetRoyaltiesForToken() error = %v", err)
	}

	order := saleOrder(f, 1, tokenID, oneEther)
	sig, _ := f.seller.SignSale(order)

	err := f.ex.BuyFromSale(ctx, f.buyer.Address(), oneEther, sig, order)
	if !errors.Is(err, dcvx.ErrFeeOverTheLimit) {
		t.Fatalf("error = %v, want ErrFeeOverTheLimit", err)
	}
	if f.ex.IsNonceUsed(f.seller.Address(), order.OrderNonce) {
		t.Error("nonce consumed by failed settlement")
	}
}

func TestBuyFromSaleRollbackOnFailedTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Mint without approving the engine, so the asset transfer fails
	// after the buyer's value has been escrowed.
	tokenID := f.nfts.Mint(collection, f.seller.Address())
	f.native.Fund(f.buyer.Address(), oneEther)

	order := saleOrder(f, 1, tokenID, oneEther)
	sig, _ := f.seller.SignSale(order)

	err := f.ex.BuyFromSale(ctx, f.buyer.Address(), oneEther, sig, order)
	if err == nil {
		t.Fatal("BuyFromSale() succeeded without approval")
	}

	if f.ex.IsNonceUsed(f.seller.Address(), order.OrderNonce) {
		t.Error("nonce still consumed after rollback")
	}
	assertBalance(t, f.native.BalanceOf(f.buyer.Address()), oneEther.String(), "buyer")
	assertBalance(t, f.native.BalanceOf(f.seller.Address()), "0", "seller")
	owner, _ := f.nfts.OwnerOf(ctx, collection, tokenID)
	if owner != f.seller.Address() {
		t.Errorf("token owner = %s, want seller", owner.Hex())
	}
	if f.events.Last() != nil {
		t.Errorf("event emitted for failed settlement: %+v", f.events.Last())
	}
}

func saleWithRoyaltyOrder(f *fixture, nonce int64, tokenID, price *big.Int, bp int64) dcvx.SaleWithRoyaltyOrder {
	return dcvx.SaleWithRoyaltyOrder{
		Seller:            f.seller.Address(),
		OrderNonce:        big.NewInt(nonce),
		NFTContract:       collection,
		TokenID:           tokenID,
		Price:             price,
		RoyaltyRecipient:  f.seller.Address(),
		RoyaltyPercentage: big.NewInt(bp),
	}
}

func TestBuyFromSaleWithRoyalty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tokenID := f.mintToSeller()
	f.native.Fund(f.buyer.Address(), oneEther)

	order := saleWithRoyaltyOrder(f, 1, tokenID, oneEther, 500)
	sellerSig, err := f.seller.SignSaleWithRoyalty(order)
	if err != nil {
		t.Fatalf("SignSaleWithRoyalty() error = %v", err)
	}
	royaltySig, err := f.royaltySigner.SignRoyaltyParameters(order.RoyaltyParameters())
	if err != nil {
		t.Fatalf("SignRoyaltyParameters() error = %v", err)
	}

	if err := f.ex.BuyFromSaleWithRoyalty(ctx, f.buyer.Address(), oneEther, sellerSig, royaltySig, order); err != nil {
		t.Fatalf("BuyFromSaleWithRoyalty() error = %v", err)
	}

	// The seller is the royalty recipient: remainder plus royalty.
	assertBalance(t, f.native.BalanceOf(f.seller.Address()), "975000000000000000", "seller")
	assertBalance(t, f.native.BalanceOf(feeRecipient), "25000000000000000", "fee recipient")

	// The asserted royalty is persisted for future settlements.
	entry, ok := f.royalties.RoyaltyForToken(collection, tokenID)
	if !ok {
		t.Fatal("royalty not persisted")
	}
	if entry.Recipient != f.seller.Address() || entry.PercentageBp != 500 {
		t.Errorf("persisted entry = %+v", entry)
	}
}

func TestBuyFromSaleWithRoyaltyRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("recipient is not the seller", func(t *testing.T) {
		f := newFixture(t)
		order := saleWithRoyaltyOrder(f, 1, f.mintToSeller(), oneEther, 500)
		order.RoyaltyRecipient = newSigner(t).Address()
		sellerSig, _ := f.seller.SignSaleWithRoyalty(order)
		royaltySig, _ := f.royaltySigner.SignRoyaltyParameters(order.RoyaltyParameters())
		f.native.Fund(f.buyer.Address(), oneEther)

		err := f.ex.BuyFromSaleWithRoyalty(ctx, f.buyer.Address(), oneEther, sellerSig, royaltySig, order)
		if !errors.Is(err, dcvx.ErrUnauthorizedRoyaltyChange) {
			t.Errorf("error = %v, want ErrUnauthorizedRoyaltyChange", err)
		}
	})

	t.Run("royalty co-signature from wrong key", func(t *testing.T) {
		f := newFixture(t)
		order := saleWithRoyaltyOrder(f, 1, f.mintToSeller(), oneEther, 500)
		sellerSig, _ := f.seller.SignSaleWithRoyalty(order)
		forged, _ := f.buyer.SignRoyaltyParameters(order.RoyaltyParameters())
		f.native.Fund(f.buyer.Address(), oneEther)

		err := f.ex.BuyFromSaleWithRoyalty(ctx, f.buyer.Address(), oneEther, sellerSig, forged, order)
		if !errors.Is(err, dcvx.ErrInvalidSignature) {
			t.Errorf("error = %v, want ErrInvalidSignature", err)
		}
	})

	t.Run("royalty above collection limit releases nonce", func(t *testing.T) {
		f := newFixture(t)
		tokenID := f.mintToSeller()
		if err := f.royalties.SetRoyaltiesLimitForCollection(ownerAddr, collection, 500); err != nil {
			t.Fatalf("SetRoyaltiesLimitForCollection() error = %v", err)
		}

		order := saleWithRoyaltyOrder(f, 1, tokenID, oneEther, 501)
		sellerSig, _ := f.seller.SignSaleWithRoyalty(order)
		royaltySig, _ := f.royaltySigner.SignRoyaltyParameters(order.RoyaltyParameters())
		f.native.Fund(f.buyer.Address(), oneEther)

		err := f.ex.BuyFromSaleWithRoyalty(ctx, f.buyer.Address(), oneEther, sellerSig, royaltySig, order)
		if !errors.Is(err, dcvx.ErrFeeOverTheLimit) {
			t.Fatalf("error = %v, want ErrFeeOverTheLimit", err)
		}
		if f.ex.IsNonceUsed(f.seller.Address(), order.OrderNonce) {
			t.Error("nonce still consumed after rejected royalty write")
		}
		if _, ok := f.royalties.RoyaltyForToken(collection, tokenID); ok {
			t.Error("rejected royalty left an entry")
		}
	})

	t.Run("rollback removes persisted royalty", func(t *testing.T) {
		f := newFixture(t)
		// No approval, so the asset transfer fails after the royalty
		// write and nonce consumption.
		tokenID := f.nfts.Mint(collection, f.seller.Address())
		f.native.Fund(f.buyer.Address(), oneEther)

		order := saleWithRoyaltyOrder(f, 1, tokenID, oneEther, 500)
		sellerSig, _ := f.seller.SignSaleWithRoyalty(order)
		royaltySig, _ := f.royaltySigner.SignRoyaltyParameters(order.RoyaltyParameters())

		err := f.ex.BuyFromSaleWithRoyalty(ctx, f.buyer.Address(), oneEther, sellerSig, royaltySig, order)
		if err == nil {
			t.Fatal("settlement succeeded without approval")
		}
		if _, ok := f.royalties.RoyaltyForToken(collection, tokenID); ok {
			t.Error("royalty entry survived rollback")
		}
		if f.ex.IsNonceUsed(f.seller.Address(), order.OrderNonce) {
			t.Error("nonce still consumed after rollback")
		}
		assertBalance(t, f.native.BalanceOf(f.buyer.Address()), oneEther.String(), "buyer")
	})
}
