package dcvx

import "errors"

// Settlement failure taxonomy. Every failure is terminal for its call
// and surfaced as one of these sentinels so callers can branch on cause
// with errors.Is.

var (
	// ErrInvalidCaller indicates a self-trade attempt, or a restricted
	// registry write from anyone other than the configured exchange.
	ErrInvalidCaller = errors.New("invalid caller")

	// ErrNotOwner indicates an admin-only operation from a non-owner.
	ErrNotOwner = errors.New("caller is not the owner")

	// ErrNonceUsed indicates the (signer, nonce) pair was already consumed
	// by a settlement or an explicit cancellation.
	ErrNonceUsed = errors.New("nonce used")

	// ErrOfferExpired indicates the offer's expiry timestamp has passed.
	ErrOfferExpired = errors.New("offer expired")

	// ErrInvalidSignature indicates the recovered signer does not match
	// the expected address, or the signature bytes are malformed.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrUnsufficientCurrencySupplied indicates the supplied native value
	// is below the order price.
	ErrUnsufficientCurrencySupplied = errors.New("unsufficient currency supplied")

	// ErrFeeOverTheLimit indicates a royalty or platform percentage above
	// its cap, or a combined fee split exceeding the full price.
	ErrFeeOverTheLimit = errors.New("fee over the limit")

	// ErrInvalidAddress indicates a zero-address recipient.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrUnauthorizedRoyaltyChange indicates a seller asserting royalty
	// terms payable to someone other than themself.
	ErrUnauthorizedRoyaltyChange = errors.New("unauthorized royalty change")

	// ErrInvalidOrder indicates a structurally incomplete order reaching
	// the engine, such as an offer with no expiry timestamp. Transports
	// reject these during envelope validation, before settlement.
	ErrInvalidOrder = errors.New("invalid order")
)
