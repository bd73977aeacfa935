// Package operator resolves the signing account the daemons and CLIs use
// for mutating reserve operations.
package operator

import (
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/reservebot/goreserve/pkg/config"
	"github.com/reservebot/goreserve/pkg/keystore"
	"github.com/reservebot/goreserve/reserve/types"
)

const (
	// EnvKey short-circuits the keystore with a raw hex private key.
	EnvKey = "RESERVE_OPERATOR_KEY"
	// EnvKeystoreKey decrypts the Badger keystore (hex or base64, 32 bytes).
	EnvKeystoreKey = "RESERVE_KEYSTORE_KEY"
)

// Load resolves the operator account: RESERVE_OPERATOR_KEY wins, otherwise
// the configured entry in the Badger keystore. An account is required.
func Load(cfg *config.Config) (*types.Account, error) {
	acct, err := LoadOptional(cfg)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, errors.Errorf("operator: no key found: set %s or provision %q in %s",
			EnvKey, cfg.OperatorName, cfg.KeystorePath)
	}
	return acct, nil
}

// LoadOptional is Load for callers that can run without a signing key; it
// returns (nil, nil) when no key is configured anywhere.
func LoadOptional(cfg *config.Config) (*types.Account, error) {
	if raw := strings.TrimSpace(os.Getenv(EnvKey)); raw != "" {
		acct, err := types.NewAccount(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "operator: %s", EnvKey)
		}
		return acct, nil
	}

	if _, err := os.Stat(cfg.KeystorePath); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "operator: stat keystore")
	}

	encKey, err := keystore.ParseKey(os.Getenv(EnvKeystoreKey))
	if err != nil {
		return nil, errors.Wrapf(err, "operator: %s", EnvKeystoreKey)
	}
	store, err := keystore.Open(keystore.OpenOptions{
		Path:          cfg.KeystorePath,
		EncryptionKey: encKey,
		ReadOnly:      true,
	})
	if err != nil {
		return nil, err
	}
	defer store.Close()

	keyHex, found, err := store.GetOperatorKey(cfg.OperatorName)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	acct, err := types.NewAccount(keyHex)
	if err != nil {
		return nil, errors.Wrapf(err, "operator: stored key for %q", cfg.OperatorName)
	}
	return acct, nil
}
