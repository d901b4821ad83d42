// Package evm provides the client-side order signer: it holds an ECDSA
// key and produces typed-data signatures for the four order shapes the
// exchange settles. Keys can be supplied raw, from an encrypted
// keystore file, or derived from a BIP-39 mnemonic.
package evm

import (
	"crypto/ecdsa"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	dcvx "github.com/dcentralverse/dcvx-go"
	"github.com/dcentralverse/dcvx-go/eip712"
)

var (
	// ErrInvalidKey indicates a missing or malformed private key.
	ErrInvalidKey = errors.New("invalid private key")

	// ErrInvalidKeystore indicates an unreadable or undecryptable keystore file.
	ErrInvalidKeystore = errors.New("invalid keystore")

	// ErrInvalidMnemonic indicates an invalid BIP-39 mnemonic phrase.
	ErrInvalidMnemonic = errors.New("invalid mnemonic")

	// ErrInvalidDomain indicates an unbound or incomplete signing domain.
	ErrInvalidDomain = errors.New("invalid signing domain")
)

// Signer signs exchange orders for one address against one exchange
// deployment's typed-data domain.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	domain     eip712.Domain
}

// SignerOption configures a Signer.
type SignerOption func(*Signer) error

// NewSigner creates a new order signer with the given options.
func NewSigner(opts ...SignerOption) (*Signer, error) {
	s := &Signer{}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	// Validation
	if s.privateKey == nil {
		return nil, ErrInvalidKey
	}
	if s.domain.ChainID == nil || s.domain.VerifyingContract == (common.Address{}) {
		return nil, ErrInvalidDomain
	}

	s.address = crypto.PubkeyToAddress(s.privateKey.PublicKey)
	return s, nil
}

// WithPrivateKey sets the private key from a hex string.
func WithPrivateKey(hexKey string) SignerOption {
	return func(s *Signer) error {
		hexKey = strings.TrimPrefix(hexKey, "0x")

		privateKey, err := crypto.HexToECDSA(hexKey)
		if err != nil {
			return ErrInvalidKey
		}

		s.privateKey = privateKey
		return nil
	}
}

// WithGeneratedKey sets a freshly generated private key. Intended for
// tests and local demos.
func WithGeneratedKey() SignerOption {
	return func(s *Signer) error {
		privateKey, err := crypto.GenerateKey()
		if err != nil {
			return ErrInvalidKey
		}

		s.privateKey = privateKey
		return nil
	}
}

// WithDomain binds the signer to an exchange deployment: its chain id
// and the engine's verifying-contract address.
func WithDomain(chainID *big.Int, exchange common.Address) SignerOption {
	return func(s *Signer) error {
		s.domain = eip712.Domain{ChainID: chainID, VerifyingContract: exchange}
		return nil
	}
}

// Address returns the signer's address.
func (s *Signer) Address() common.Address {
	return s.address
}

// Domain returns the bound signing domain.
func (s *Signer) Domain() eip712.Domain {
	return s.domain
}

// SignSale signs a sale order.
func (s *Signer) SignSale(order dcvx.SaleOrder) ([]byte, error) {
	return eip712.Sign(s.privateKey, s.domain, eip712.TypeSale, eip712.SaleMessage(order))
}

// SignSaleWithRoyalty signs a sale-with-royalty order.
func (s *Signer) SignSaleWithRoyalty(order dcvx.SaleWithRoyaltyOrder) ([]byte, error) {
	return eip712.Sign(s.privateKey, s.domain, eip712.TypeSaleWithRoyalty, eip712.SaleWithRoyaltyMessage(order))
}

// SignOffer signs an offer order.
func (s *Signer) SignOffer(order dcvx.OfferOrder) ([]byte, error) {
	return eip712.Sign(s.privateKey, s.domain, eip712.TypeOffer, eip712.OfferMessage(order))
}

// SignRoyaltyParameters signs a royalty tuple. Only the platform's
// configured royalties signer produces signatures the engine accepts.
func (s *Signer) SignRoyaltyParameters(params dcvx.RoyaltyParameters) ([]byte, error) {
	return eip712.Sign(s.privateKey, s.domain, eip712.TypeRoyaltyParameters, eip712.RoyaltyParametersMessage(params))
}
