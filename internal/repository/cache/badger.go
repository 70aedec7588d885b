package cache

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/jaennil/guide_helper/backend/hips/internal/tile"
	"github.com/jaennil/guide_helper/backend/hips/pkg/logger"
)

type BadgerCache struct {
	db *badger.DB
}

func NewBadgerCache(path string, l logger.Logger) (*BadgerCache, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = logger.Printf{Logger: l}
	opts.ValueLogFileSize = 1024 * 1024 * 100
	opts.SyncWrites = false

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger cache: %w", err)
	}

	l.Info("badger cache initialized", "path", path)

	return &BadgerCache{db: db}, nil
}

var (
	_ Store  = (*BadgerCache)(nil)
	_ Lister = (*BadgerCache)(nil)
)

func (c *BadgerCache) Get(k tile.Key) ([]byte, bool, error) {
	var data []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyFor(k)))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("badger get error: %w", err)
	}

	return data, true, nil
}

func (c *BadgerCache) Set(k tile.Key, v []byte) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyFor(k)), v)
	})
	if err != nil {
		return fmt.Errorf("badger set error: %w", err)
	}
	return nil
}

func (c *BadgerCache) Keys(survey string) ([]tile.Key, error) {
	prefix := []byte("tile:" + survey + ":")
	keys := make([]tile.Key, 0)

	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k, err := parseKey(string(it.Item().KeyCopy(nil)))
			if err != nil {
				return err
			}
			keys = append(keys, k)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger scan error: %w", err)
	}
	return keys, nil
}

func (c *BadgerCache) Close() error {
	return c.db.Close()
}
