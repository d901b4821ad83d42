// Package eip712 implements the typed-structured-data signing domain of
// the Dcentralverse exchange. It reconstructs the domain-separated digest
// for the four message shapes (Sale, SaleWithRoyalty, Offer,
// RoyaltyParameters) and recovers or produces signatures over them.
//
// The hashing is byte-for-byte compatible with the standard EIP-712
// algorithm, so signatures produced by any off-chain tooling against the
// same domain validate identically here.
package eip712

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	dcvx "github.com/dcentralverse/dcvx-go"
)

// Domain parameters fixed for every deployment of the exchange.
const (
	DomainName    = "Dcentralverse Exchange"
	DomainVersion = "1"

	saltSource = "Dcentralverse Exchange Salt"
)

// SignatureLength is the expected length of a compact ECDSA signature
// with a recovery id (r ∥ s ∥ v).
const SignatureLength = 65

// Primary type names of the four signable message shapes.
const (
	TypeSale              = "Sale"
	TypeSaleWithRoyalty   = "SaleWithRoyalty"
	TypeOffer             = "Offer"
	TypeRoyaltyParameters = "RoyaltyParameters"
)

// DomainSalt returns keccak256 of the fixed salt literal.
func DomainSalt() common.Hash {
	return crypto.Keccak256Hash([]byte(saltSource))
}

// messageTypes declares the canonical field names and types of every
// signable shape. Order matters: the type hash is derived from it.
var messageTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
		{Name: "salt", Type: "bytes32"},
	},
	TypeSale: []apitypes.Type{
		{Name: "orderNonce", Type: "uint256"},
		{Name: "nftContract", Type: "address"},
		{Name: "tokenId", Type: "uint256"},
		{Name: "price", Type: "uint256"},
	},
	TypeSaleWithRoyalty: []apitypes.Type{
		{Name: "orderNonce", Type: "uint256"},
		{Name: "nftContract", Type: "address"},
		{Name: "tokenId", Type: "uint256"},
		{Name: "price", Type: "uint256"},
		{Name: "royaltyRecipient", Type: "address"},
		{Name: "royaltyPercentage", Type: "uint256"},
	},
	TypeOffer: []apitypes.Type{
		{Name: "orderNonce", Type: "uint256"},
		{Name: "nftContract", Type: "address"},
		{Name: "tokenId", Type: "uint256"},
		{Name: "price", Type: "uint256"},
		{Name: "expiresAt", Type: "uint256"},
	},
	TypeRoyaltyParameters: []apitypes.Type{
		{Name: "nftContract", Type: "address"},
		{Name: "tokenId", Type: "uint256"},
		{Name: "royaltyRecipient", Type: "address"},
		{Name: "royaltyPercentage", Type: "uint256"},
	},
}

// Domain binds signatures to one exchange deployment: chain id plus the
// engine's own address as the verifying contract.
type Domain struct {
	ChainID           *big.Int
	VerifyingContract common.Address
}

func (d Domain) typedData(primaryType string, message apitypes.TypedDataMessage) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       messageTypes,
		PrimaryType: primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              DomainName,
			Version:           DomainVersion,
			ChainId:           (*math.HexOrDecimal256)(d.ChainID),
			VerifyingContract: d.VerifyingContract.Hex(),
			Salt:              DomainSalt().Hex(),
		},
		Message: message,
	}
}

// Digest computes keccak256(0x1901 ∥ domainSeparator ∥ hashStruct(message))
// for a message of the given primary type.
func Digest(domain Domain, primaryType string, message apitypes.TypedDataMessage) ([]byte, error) {
	td := domain.typedData(primaryType, message)

	domainSeparator, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	messageHash, err := td.HashStruct(primaryType, td.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	rawData := append([]byte{0x19, 0x01}, append(domainSeparator, messageHash...)...)
	return crypto.Keccak256(rawData), nil
}

// Sign produces a 65-byte signature (v adjusted to 27/28) over the typed
// message digest.
func Sign(privateKey *ecdsa.PrivateKey, domain Domain, primaryType string, message apitypes.TypedDataMessage) ([]byte, error) {
	digest, err := Digest(domain, primaryType, message)
	if err != nil {
		return nil, err
	}

	signature, err := crypto.Sign(digest, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}

	signature[64] += 27
	return signature, nil
}

// Recover returns the address that signed the typed message. It fails
// with dcvx.ErrInvalidSignature on malformed signature bytes, a failed
// recovery, or a zero recovered address.
func Recover(domain Domain, primaryType string, message apitypes.TypedDataMessage, signature []byte) (common.Address, error) {
	if len(signature) != SignatureLength {
		return common.Address{}, fmt.Errorf("%w: expected %d signature bytes, got %d",
			dcvx.ErrInvalidSignature, SignatureLength, len(signature))
	}

	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] != 0 && sig[64] != 1 {
		return common.Address{}, fmt.Errorf("%w: invalid recovery id", dcvx.ErrInvalidSignature)
	}

	digest, err := Digest(domain, primaryType, message)
	if err != nil {
		return common.Address{}, err
	}

	pubKey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", dcvx.ErrInvalidSignature, err)
	}

	signer := crypto.PubkeyToAddress(*pubKey)
	if signer == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: zero recovered address", dcvx.ErrInvalidSignature)
	}
	return signer, nil
}

// Verifier validates order signatures against one exchange deployment's
// domain. It is stateless and safe for concurrent use.
type Verifier struct {
	domain Domain
}

// NewVerifier returns a verifier bound to the given chain id and
// verifying-contract (exchange) address.
func NewVerifier(chainID *big.Int, verifyingContract common.Address) *Verifier {
	return &Verifier{domain: Domain{ChainID: chainID, VerifyingContract: verifyingContract}}
}

// Domain returns the bound signing domain.
func (v *Verifier) Domain() Domain {
	return v.domain
}

// Verify recovers the signer of a typed message and compares it to the
// expected address, returning dcvx.ErrInvalidSignature on mismatch.
func (v *Verifier) Verify(primaryType string, message apitypes.TypedDataMessage, signature []byte, expected common.Address) error {
	signer, err := Recover(v.domain, primaryType, message, signature)
	if err != nil {
		return err
	}
	if signer != expected {
		return fmt.Errorf("%w: recovered %s, expected %s",
			dcvx.ErrInvalidSignature, signer.Hex(), expected.Hex())
	}
	return nil
}

// VerifySale validates a Sale signature against the order's seller.
func (v *Verifier) VerifySale(order dcvx.SaleOrder, signature []byte) error {
	return v.Verify(TypeSale, SaleMessage(order), signature, order.Seller)
}

// VerifySaleWithRoyalty validates a SaleWithRoyalty signature against the
// order's seller.
func (v *Verifier) VerifySaleWithRoyalty(order dcvx.SaleWithRoyaltyOrder, signature []byte) error {
	return v.Verify(TypeSaleWithRoyalty, SaleWithRoyaltyMessage(order), signature, order.Seller)
}

// VerifyOffer validates an Offer signature against the order's bidder.
func (v *Verifier) VerifyOffer(order dcvx.OfferOrder, signature []byte) error {
	return v.Verify(TypeOffer, OfferMessage(order), signature, order.Bidder)
}

// VerifyRoyaltyParameters validates a RoyaltyParameters co-signature
// against the configured royalties signer.
func (v *Verifier) VerifyRoyaltyParameters(params dcvx.RoyaltyParameters, signature []byte, royaltiesSigner common.Address) error {
	return v.Verify(TypeRoyaltyParameters, RoyaltyParametersMessage(params), signature, royaltiesSigner)
}

// SaleMessage encodes a sale order as a typed-data message.
func SaleMessage(o dcvx.SaleOrder) apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"orderNonce":  (*math.HexOrDecimal256)(o.OrderNonce),
		"nftContract": o.NFTContract.Hex(),
		"tokenId":     (*math.HexOrDecimal256)(o.TokenID),
		"price":       (*math.HexOrDecimal256)(o.Price),
	}
}

// SaleWithRoyaltyMessage encodes a sale-with-royalty order as a
// typed-data message.
func SaleWithRoyaltyMessage(o dcvx.SaleWithRoyaltyOrder) apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"orderNonce":        (*math.HexOrDecimal256)(o.OrderNonce),
		"nftContract":       o.NFTContract.Hex(),
		"tokenId":           (*math.HexOrDecimal256)(o.TokenID),
		"price":             (*math.HexOrDecimal256)(o.Price),
		"royaltyRecipient":  o.RoyaltyRecipient.Hex(),
		"royaltyPercentage": (*math.HexOrDecimal256)(o.RoyaltyPercentage),
	}
}

// OfferMessage encodes an offer order as a typed-data message.
func OfferMessage(o dcvx.OfferOrder) apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"orderNonce":  (*math.HexOrDecimal256)(o.OrderNonce),
		"nftContract": o.NFTContract.Hex(),
		"tokenId":     (*math.HexOrDecimal256)(o.TokenID),
		"price":       (*math.HexOrDecimal256)(o.Price),
		"expiresAt":   (*math.HexOrDecimal256)(o.ExpiresAt),
	}
}

// RoyaltyParametersMessage encodes a royalty tuple as a typed-data
// message.
func RoyaltyParametersMessage(p dcvx.RoyaltyParameters) apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"nftContract":       p.NFTContract.Hex(),
		"tokenId":           (*math.HexOrDecimal256)(p.TokenID),
		"royaltyRecipient":  p.RoyaltyRecipient.Hex(),
		"royaltyPercentage": (*math.HexOrDecimal256)(p.RoyaltyPercentage),
	}
}
