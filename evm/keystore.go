package evm

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

// WithKeystore loads a private key from an encrypted geth keystore file.
func WithKeystore(keystorePath, password string) SignerOption {
	return func(s *Signer) error {
		data, err := os.ReadFile(keystorePath)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidKeystore, err)
		}

		var keyJSON struct {
			Crypto keystore.CryptoJSON `json:"crypto"`
		}
		if err := json.Unmarshal(data, &keyJSON); err != nil {
			return fmt.Errorf("%w: invalid JSON format", ErrInvalidKeystore)
		}

		privateKeyBytes, err := keystore.DecryptDataV3(keyJSON.Crypto, password)
		if err != nil {
			return fmt.Errorf("%w: decryption failed", ErrInvalidKeystore)
		}

		privateKey, err := crypto.ToECDSA(privateKeyBytes)
		if err != nil {
			return fmt.Errorf("%w: invalid private key", ErrInvalidKeystore)
		}

		s.privateKey = privateKey
		return nil
	}
}

// WithMnemonic derives the signing key from a BIP-39 mnemonic phrase,
// following the standard Ethereum derivation path
// m/44'/60'/0'/0/{accountIndex}.
func WithMnemonic(mnemonic string, accountIndex uint32) SignerOption {
	return func(s *Signer) error {
		if !bip39.IsMnemonicValid(mnemonic) {
			return ErrInvalidMnemonic
		}

		seed := bip39.NewSeed(mnemonic, "")
		privateKey, err := deriveAccountKey(seed, accountIndex)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
		}

		s.privateKey = privateKey
		return nil
	}
}

// deriveAccountKey walks the BIP-44 Ethereum path from a seed to the
// requested account index.
func deriveAccountKey(seed []byte, index uint32) (*ecdsa.PrivateKey, error) {
	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, err
	}

	// m/44'/60'/0'/0/{index}
	path := []uint32{
		bip32.FirstHardenedChild + 44,
		bip32.FirstHardenedChild + 60,
		bip32.FirstHardenedChild + 0,
		0,
		index,
	}
	for _, child := range path {
		if key, err = key.NewChildKey(child); err != nil {
			return nil, err
		}
	}

	return crypto.ToECDSA(key.Key)
}
