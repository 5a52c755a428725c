package operation

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/quorumsafe/dkg-coordinator/storage"
)

// errStopIteration is returned by a handle function to end a traversal early
// without surfacing an error, e.g. once a page is full.
var errStopIteration = errors.New("stop iteration")

// insert encodes the given entity and stores it under the provided key. It
// errors with storage.ErrAlreadyExists if the key is already populated.
func insert(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {

		_, err := tx.Get(key)
		if err == nil {
			return storage.ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("could not check key: %w", err)
		}

		val, err := encodeEntity(entity)
		if err != nil {
			return err
		}

		err = tx.Set(key, val)
		if err != nil {
			return fmt.Errorf("could not store data: %w", err)
		}

		return nil
	}
}

// update encodes the given entity and replaces the value under the provided
// key. It errors with storage.ErrNotFound if the key does not exist yet.
func update(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {

		_, err := tx.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("could not check key: %w", err)
		}

		val, err := encodeEntity(entity)
		if err != nil {
			return err
		}

		err = tx.Set(key, val)
		if err != nil {
			return fmt.Errorf("could not replace data: %w", err)
		}

		return nil
	}
}

// upsert encodes the given entity and stores it under the provided key,
// regardless of whether the key already exists.
func upsert(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {

		val, err := encodeEntity(entity)
		if err != nil {
			return err
		}

		err = tx.Set(key, val)
		if err != nil {
			return fmt.Errorf("could not upsert data: %w", err)
		}

		return nil
	}
}

// retrieve decodes the value under the given key into the given entity, which
// must be a pointer of the correct type. It errors with storage.ErrNotFound
// if the key does not exist.
func retrieve(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {

		item, err := tx.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("could not load data: %w", err)
		}

		err = item.Value(func(val []byte) error {
			return decodeValue(val, entity)
		})
		if err != nil {
			return fmt.Errorf("could not load value: %w", err)
		}

		return nil
	}
}

// exists checks whether the given key is populated.
func exists(key []byte, out *bool) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			*out = false
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not check existence: %w", err)
		}
		*out = true
		return nil
	}
}

// checkFunc is called for each key during traversal to decide whether the
// value should be loaded; it may also capture the key for the caller, e.g.
// as a pagination cursor.
type checkFunc func(key []byte) bool

// createFunc returns a pointer to a fresh entity to decode the next value
// into.
type createFunc func() interface{}

// handleFunc processes the decoded entity. Returning errStopIteration ends
// the traversal cleanly.
type handleFunc func() error

// iterationFunc initializes the three traversal callbacks for each step.
type iterationFunc func() (checkFunc, createFunc, handleFunc)

// traverse iterates, in lexicographic key order, over all keys that share the
// given prefix, starting at the first key strictly greater than the provided
// start key (pass nil to start at the beginning of the namespace).
func traverse(prefix []byte, start []byte, iteration iterationFunc) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		if len(prefix) == 0 {
			return fmt.Errorf("prefix must not be empty")
		}

		options := badger.DefaultIteratorOptions
		options.Prefix = prefix

		it := tx.NewIterator(options)
		defer it.Close()

		seek := prefix
		if len(start) > 0 {
			// the 0x00 suffix positions the iterator just past the cursor
			seek = append(append([]byte{}, start...), 0x00)
		}

		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {

			item := it.Item()
			key := item.KeyCopy(nil)

			check, create, handle := iteration()
			if !check(key) {
				continue
			}

			err := item.Value(func(val []byte) error {
				entity := create()
				return decodeValue(val, entity)
			})
			if err != nil {
				return fmt.Errorf("could not process value: %w", err)
			}

			err = handle()
			if errors.Is(err, errStopIteration) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("could not handle entity: %w", err)
			}
		}

		return nil
	}
}

// hasPrefix is a checkFunc helper for full-namespace traversals.
func hasPrefix(prefix []byte) checkFunc {
	return func(key []byte) bool {
		return bytes.HasPrefix(key, prefix)
	}
}
