// Package keystore holds operator private keys in a Badger KV store,
// encrypted at rest when a 32-byte key is supplied.
package keystore

import (
	"encoding/base64"
	"encoding/hex"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

// operatorPrefix namespaces operator key entries inside the store.
const operatorPrefix = "operator."

// Store wraps Badger. Encryption comes from Badger's own value-log and key
// registry options, not from this wrapper.
type Store struct {
	db *badger.DB
}

type OpenOptions struct {
	Path          string
	EncryptionKey []byte // 32 bytes; nil opens unencrypted (not recommended)
	ReadOnly      bool
}

func Open(opts OpenOptions) (*Store, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("keystore: path is required")
	}
	bopts := badger.DefaultOptions(opts.Path).
		WithLogger(nil).
		WithReadOnly(opts.ReadOnly)
	if len(opts.EncryptionKey) > 0 {
		// Badger requires an index cache for encrypted workloads.
		bopts = bopts.
			WithEncryptionKey(opts.EncryptionKey).
			WithIndexCacheSize(100 << 20)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, errors.Wrap(err, "keystore: open")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SetOperatorKey stores the hex private key for a named operator.
func (s *Store) SetOperatorKey(name, privateKeyHex string) error {
	return s.set(operatorPrefix+name, privateKeyHex)
}

// GetOperatorKey loads the hex private key for a named operator; found is
// false when the operator was never provisioned.
func (s *Store) GetOperatorKey(name string) (string, bool, error) {
	return s.get(operatorPrefix + name)
}

// DeleteOperatorKey removes a named operator key.
func (s *Store) DeleteOperatorKey(name string) error {
	if s == nil || s.db == nil {
		return errors.New("keystore: not opened")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(operatorPrefix + strings.TrimSpace(name)))
	})
}

func (s *Store) set(key, val string) error {
	if s == nil || s.db == nil {
		return errors.New("keystore: not opened")
	}
	k := []byte(strings.TrimSpace(key))
	if len(k) == 0 {
		return errors.New("keystore: key is empty")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, []byte(val))
	})
}

func (s *Store) get(key string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, errors.New("keystore: not opened")
	}
	k := []byte(strings.TrimSpace(key))
	if len(k) == 0 {
		return "", false, errors.New("keystore: key is empty")
	}
	var out string
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			out = string(val)
			return nil
		})
	})
	if err != nil {
		return "", false, errors.Wrap(err, "keystore: get")
	}
	return out, found, nil
}

// ParseKey decodes a 32-byte encryption key from hex (with or without 0x)
// or base64. Empty input returns nil, meaning no encryption.
func ParseKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	rawHex := strings.TrimPrefix(raw, "0x")
	if b, err := hex.DecodeString(rawHex); err == nil {
		if len(b) != 32 {
			return nil, errors.Errorf("decoded key length must be 32, got %d", len(b))
		}
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
		if len(b) != 32 {
			return nil, errors.Errorf("decoded key length must be 32, got %d", len(b))
		}
		return b, nil
	}
	return nil, errors.New("key must be base64(32 bytes) or hex(32 bytes)")
}
