package eip712

import (
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	dcvx "github.com/dcentralverse/dcvx-go"
)

var (
	testChainID  = big.NewInt(31337)
	testExchange = common.HexToAddress("0x00000000000000000000000000000000000000E1")
)

type keyPair struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func newTestKey(t *testing.T) *keyPair {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return &keyPair{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

func TestSignAndRecoverSale(t *testing.T) {
	signer := newTestKey(t)
	domain := Domain{ChainID: testChainID, VerifyingContract: testExchange}

	order := dcvx.SaleOrder{
		Seller:      signer.address,
		OrderNonce:  big.NewInt(1),
		NFTContract: common.HexToAddress("0x00000000000000000000000000000000000000C1"),
		TokenID:     big.NewInt(42),
		Price:       big.NewInt(1e18),
	}

	sig, err := Sign(signer.key, domain, TypeSale, SaleMessage(order))
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if len(sig) != SignatureLength {
		t.Fatalf("signature length = %d, want %d", len(sig), SignatureLength)
	}
	if sig[64] != 27 && sig[64] != 28 {
		t.Errorf("recovery byte = %d, want 27 or 28", sig[64])
	}

	recovered, err := Recover(domain, TypeSale, SaleMessage(order), sig)
	if err != nil {
		t.Fatalf("Recover() error = %v", err)
	}
	if recovered != signer.address {
		t.Errorf("recovered %s, want %s", recovered.Hex(), signer.address.Hex())
	}
}

func TestVerifierRoundTrip(t *testing.T) {
	signer := newTestKey(t)
	royaltySigner := newTestKey(t)
	v := NewVerifier(testChainID, testExchange)
	domain := v.Domain()

	collection := common.HexToAddress("0x00000000000000000000000000000000000000C1")

	t.Run("sale", func(t *testing.T) {
		order := dcvx.SaleOrder{
			Seller:      signer.address,
			OrderNonce:  big.NewInt(1),
			NFTContract: collection,
			TokenID:     big.NewInt(1),
			Price:       big.NewInt(1e18),
		}
		sig, err := Sign(signer.key, domain, TypeSale, SaleMessage(order))
		if err != nil {
			t.Fatalf("Sign() error = %v", err)
		}
		if err := v.VerifySale(order, sig); err != nil {
			t.Errorf("VerifySale() error = %v", err)
		}
	})

	t.Run("sale with royalty", func(t *testing.T) {
		order := dcvx.SaleWithRoyaltyOrder{
			Seller:            signer.address,
			OrderNonce:        big.NewInt(2),
			NFTContract:       collection,
			TokenID:           big.NewInt(1),
			Price:             big.NewInt(1e18),
			RoyaltyRecipient:  signer.address,
			RoyaltyPercentage: big.NewInt(500),
		}
		sig, err := Sign(signer.key, domain, TypeSaleWithRoyalty, SaleWithRoyaltyMessage(order))
		if err != nil {
			t.Fatalf("Sign() error = %v", err)
		}
		if err := v.VerifySaleWithRoyalty(order, sig); err != nil {
			t.Errorf("VerifySaleWithRoyalty() error = %v", err)
		}
	})

	t.Run("offer", func(t *testing.T) {
		order := dcvx.OfferOrder{
			Bidder:      signer.address,
			OrderNonce:  big.NewInt(3),
			NFTContract: collection,
			TokenID:     big.NewInt(1),
			Price:       big.NewInt(1e18),
			ExpiresAt:   big.NewInt(1900000000),
		}
		sig, err := Sign(signer.key, domain, TypeOffer, OfferMessage(order))
		if err != nil {
			t.Fatalf("Sign() error = %v", err)
		}
		if err := v.VerifyOffer(order, sig); err != nil {
			t.Errorf("VerifyOffer() error = %v", err)
		}
	})

	t.Run("royalty parameters", func(t *testing.T) {
		params := dcvx.RoyaltyParameters{
			NFTContract:       collection,
			TokenID:           big.NewInt(1),
			RoyaltyRecipient:  signer.address,
			RoyaltyPercentage: big.NewInt(500),
		}
		sig, err := Sign(royaltySigner.key, domain, TypeRoyaltyParameters, RoyaltyParametersMessage(params))
		if err != nil {
			t.Fatalf("Sign() error = %v", err)
		}
		if err := v.VerifyRoyaltyParameters(params, sig, royaltySigner.address); err != nil {
			t.Errorf("VerifyRoyaltyParameters() error = %v", err)
		}
		if err := v.VerifyRoyaltyParameters(params, sig, signer.address); !errors.Is(err, dcvx.ErrInvalidSignature) {
			t.Errorf("wrong expected signer: error = %v, want ErrInvalidSignature", err)
		}
	})
}

func TestVerifyTamperedOrder(t *testing.T) {
	signer := newTestKey(t)
	v := NewVerifier(testChainID, testExchange)

	order := dcvx.SaleOrder{
		Seller:      signer.address,
		OrderNonce:  big.NewInt(1),
		NFTContract: common.HexToAddress("0x00000000000000000000000000000000000000C1"),
		TokenID:     big.NewInt(1),
		Price:       big.NewInt(1e18),
	}
	sig, err := Sign(signer.key, v.Domain(), TypeSale, SaleMessage(order))
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	tampered := order
	tampered.Price = big.NewInt(1)
	if err := v.VerifySale(tampered, sig); !errors.Is(err, dcvx.ErrInvalidSignature) {
		t.Errorf("tampered price: error = %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyDomainMismatch(t *testing.T) {
	signer := newTestKey(t)

	order := dcvx.SaleOrder{
		Seller:      signer.address,
		OrderNonce:  big.NewInt(1),
		NFTContract: common.HexToAddress("0x00000000000000000000000000000000000000C1"),
		TokenID:     big.NewInt(1),
		Price:       big.NewInt(1e18),
	}
	sig, err := Sign(signer.key, Domain{ChainID: big.NewInt(1), VerifyingContract: testExchange}, TypeSale, SaleMessage(order))
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	wrongChain := NewVerifier(testChainID, testExchange)
	if err := wrongChain.VerifySale(order, sig); !errors.Is(err, dcvx.ErrInvalidSignature) {
		t.Errorf("wrong chain id: error = %v, want ErrInvalidSignature", err)
	}

	wrongContract := NewVerifier(big.NewInt(1), common.HexToAddress("0x00000000000000000000000000000000000000E2"))
	if err := wrongContract.VerifySale(order, sig); !errors.Is(err, dcvx.ErrInvalidSignature) {
		t.Errorf("wrong verifying contract: error = %v, want ErrInvalidSignature", err)
	}
}

func TestRecoverMalformedSignature(t *testing.T) {
	domain := Domain{ChainID: testChainID, VerifyingContract: testExchange}
	order := dcvx.SaleOrder{
		Seller:      common.HexToAddress("0x0000000000000000000000000000000000000001"),
		OrderNonce:  big.NewInt(1),
		NFTContract: common.HexToAddress("0x00000000000000000000000000000000000000C1"),
		TokenID:     big.NewInt(1),
		Price:       big.NewInt(1e18),
	}

	tests := []struct {
		name string
		sig  []byte
	}{
		{name: "empty", sig: nil},
		{name: "too short", sig: make([]byte, 64)},
		{name: "too long", sig: make([]byte, 66)},
		{name: "bad recovery id", sig: append(make([]byte, 64), 99)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Recover(domain, TypeSale, SaleMessage(order), tt.sig)
			if !errors.Is(err, dcvx.ErrInvalidSignature) {
				t.Errorf("Recover() error = %v, want ErrInvalidSignature", err)
			}
		})
	}
}

func TestDomainSaltIsStable(t *testing.T) {
	want := crypto.Keccak256Hash([]byte("Dcentralverse Exchange Salt"))
	if DomainSalt() != want {
		t.Errorf("DomainSalt() = %s, want %s", DomainSalt().Hex(), want.Hex())
	}
}
