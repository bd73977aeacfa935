package types

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
)

// Account is a signing credential for mutating reserve operations.
// The private key never leaves the struct; transactions are signed through
// SignTx.
type Account struct {
	Address common.Address

	key *ecdsa.PrivateKey
}

// NewAccount builds an account from a hex-encoded private key, with or
// without the 0x prefix.
func NewAccount(privateKeyHex string) (*Account, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if raw == "" {
		return nil, fmt.Errorf("account: private key is required")
	}
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("account: invalid private key: %w", err)
	}
	return NewAccountFromKey(key), nil
}

// NewAccountFromKey wraps an already-parsed ECDSA key.
func NewAccountFromKey(key *ecdsa.PrivateKey) *Account {
	return &Account{
		Address: crypto.PubkeyToAddress(key.PublicKey),
		key:     key,
	}
}

// DeriveKey derives the private key for a BIP-39 mnemonic at the standard
// Ethereum path m/44'/60'/0'/0/<index>.
func DeriveKey(mnemonic string, index uint32) (*ecdsa.PrivateKey, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if mnemonic == "" {
		return nil, fmt.Errorf("account: mnemonic is required")
	}
	w, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("account: invalid mnemonic: %w", err)
	}
	path, err := hdwallet.ParseDerivationPath(fmt.Sprintf("m/44'/60'/0'/0/%d", index))
	if err != nil {
		return nil, fmt.Errorf("account: invalid derivation path: %w", err)
	}
	acct, err := w.Derive(path, false)
	if err != nil {
		return nil, fmt.Errorf("account: derive failed: %w", err)
	}
	key, err := w.PrivateKey(acct)
	if err != nil {
		return nil, fmt.Errorf("account: private key failed: %w", err)
	}
	return key, nil
}

// AccountFromMnemonic derives an account from a BIP-39 mnemonic.
func AccountFromMnemonic(mnemonic string, index uint32) (*Account, error) {
	key, err := DeriveKey(mnemonic, index)
	if err != nil {
		return nil, err
	}
	return NewAccountFromKey(key), nil
}

// SignTx signs tx with the account key under the given signer.
func (a *Account) SignTx(tx *ethtypes.Transaction, signer ethtypes.Signer) (*ethtypes.Transaction, error) {
	if a == nil || a.key == nil {
		return nil, fmt.Errorf("account: no key loaded")
	}
	return ethtypes.SignTx(tx, signer, a.key)
}
