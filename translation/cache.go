package translation

import (
	"polyglot-chat/contract"
	"polyglot-chat/errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var _ contract.TranslationCache = (*BadgerCache)(nil)

// BadgerCache keeps recent translations in an in-memory BadgerDB.
// Every entry expires after ttl, nothing survives a restart.
type BadgerCache struct {
	db  *badger.DB
	ttl time.Duration
}

func OpenBadgerCache(ttl time.Duration) (*BadgerCache, error) {
	options := badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(options)
	if err != nil {
		return nil, err
	}
	return NewBadgerCache(db, ttl), nil
}

func NewBadgerCache(db *badger.DB, ttl time.Duration) *BadgerCache {
	return &BadgerCache{db: db, ttl: ttl}
}

func (c *BadgerCache) Get(key string) (string, bool, error) {
	var value wrapperspb.StringValue
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return proto.Unmarshal(val, &value)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value.GetValue(), true, nil
}

func (c *BadgerCache) Set(key, value string) error {
	bytes, err := proto.Marshal(wrapperspb.String(value))
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), bytes).WithTTL(c.ttl))
	})
}

// DB exposes the underlying store for the debug inspector.
func (c *BadgerCache) DB() *badger.DB {
	return c.db
}

func (c *BadgerCache) Close() error {
	return c.db.Close()
}
