package exchange

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	dcvx "github.com/dcentralverse/dcvx-go"
)

// AssetLedger is the NFT collaborator boundary. Transfers are performed
// with the exchange as operator and fail unless the current holder has
// approved the exchange for the collection.
type AssetLedger interface {
	// TransferFrom moves a token between holders.
	TransferFrom(ctx context.Context, collection, from, to common.Address, tokenID *big.Int) error
}

// TokenLedger is the ERC-20-like collaborator boundary used for offer
// settlement. Pulls from third parties require a pre-existing allowance
// for the exchange; failures propagate opaquely from the currency layer.
type TokenLedger interface {
	// TransferFrom moves amount token units between accounts, spending the
	// exchange's allowance when from is a third party.
	TransferFrom(ctx context.Context, token, from, to common.Address, amount *big.Int) error
}

// NativeLedger is the native-currency boundary used for sale settlement.
// The engine escrows the caller's supplied value via Withdraw and pays
// recipients via Deposit.
type NativeLedger interface {
	// Withdraw takes amount from an account into engine custody.
	Withdraw(ctx context.Context, from common.Address, amount *big.Int) error

	// Deposit pays amount from engine custody to an account.
	Deposit(ctx context.Context, to common.Address, amount *big.Int) error
}

// RoyaltyRegistry is the royalty provider boundary consulted and, in the
// SaleWithRoyalty flow, written by the engine. *royalty.Provider
// satisfies it.
type RoyaltyRegistry interface {
	CalculateRoyaltiesAndGetRecipient(collection common.Address, tokenID, salePrice *big.Int) (common.Address, *big.Int)
	SetRoyaltiesForToken(caller, collection common.Address, tokenID *big.Int, recipient common.Address, percentageBp uint64) error
	RoyaltyForToken(collection common.Address, tokenID *big.Int) (dcvx.TokenRoyalty, bool)
	RestoreRoyaltiesForToken(collection common.Address, tokenID *big.Int, previous dcvx.TokenRoyalty, existed bool)
}
