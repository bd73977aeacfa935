// operator-init provisions an operator signing key into the Badger keystore.
// It accepts either a BIP-39 mnemonic (derived at m/44'/60'/0'/0/<index>) or
// a raw hex private key on stdin; the key never appears in argv.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"

	"github.com/reservebot/goreserve/internal/operator"
	"github.com/reservebot/goreserve/pkg/keystore"
	"github.com/reservebot/goreserve/reserve/types"
)

func main() {
	_ = godotenv.Load()

	var (
		path   = flag.String("keystore", getenv("RESERVE_KEYSTORE_PATH", "data/keystore.badger"), "keystore directory")
		name   = flag.String("name", getenv("RESERVE_OPERATOR_NAME", "default"), "operator name")
		index  = flag.Uint("index", 0, "derivation index when a mnemonic is given")
		rawKey = flag.Bool("raw", false, "treat input as a hex private key instead of a mnemonic")
		force  = flag.Bool("force", false, "overwrite an existing entry")
	)
	flag.Parse()

	encKey, err := keystore.ParseKey(os.Getenv(operator.EnvKeystoreKey))
	if err != nil {
		fatal(fmt.Errorf("%s: %w", operator.EnvKeystoreKey, err))
	}
	if encKey == nil {
		fmt.Fprintf(os.Stderr, "warning: %s not set, keystore will be unencrypted\n", operator.EnvKeystoreKey)
	}

	if *rawKey {
		fmt.Fprintln(os.Stderr, "paste the hex private key and press enter:")
	} else {
		fmt.Fprintln(os.Stderr, "paste the mnemonic (12/15/18/21/24 words) and press enter:")
	}
	input := readLine()
	if input == "" {
		fatal(errors.New("empty input"))
	}

	var acct *types.Account
	var keyHex string
	if *rawKey {
		acct, err = types.NewAccount(input)
		if err != nil {
			fatal(err)
		}
		keyHex = strings.TrimPrefix(strings.TrimSpace(input), "0x")
	} else {
		acct, err = types.AccountFromMnemonic(input, uint32(*index))
		if err != nil {
			fatal(err)
		}
		key, err := exportHex(input, uint32(*index))
		if err != nil {
			fatal(err)
		}
		keyHex = key
	}

	store, err := keystore.Open(keystore.OpenOptions{Path: *path, EncryptionKey: encKey})
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	if _, exists, err := store.GetOperatorKey(*name); err != nil {
		fatal(err)
	} else if exists && !*force {
		fatal(fmt.Errorf("operator %q already exists (use -force to overwrite)", *name))
	}

	if err := store.SetOperatorKey(*name, keyHex); err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stderr, "stored operator %q with address %s\n", *name, acct.Address.Hex())
}

// exportHex re-derives the private key bytes for storage. Deriving twice
// keeps types.Account free of a key-export method.
func exportHex(mnemonic string, index uint32) (string, error) {
	key, err := types.DeriveKey(mnemonic, index)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", crypto.FromECDSA(key)), nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func readLine() string {
	br := bufio.NewReader(os.Stdin)
	s, _ := br.ReadString('\n')
	return strings.TrimSpace(s)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}
