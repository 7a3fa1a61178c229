package kv

import (
	"context"
	"errors"
)

var (
	// ErrKeyNotFound is the error returned when the key requested is not found.
	ErrKeyNotFound = errors.New("key not found")
	// ErrTxNotWritable is the error returned when an mutable operation is called during
	// a non-writable transaction.
	ErrTxNotWritable = errors.New("transaction is not writable")
	// ErrStoreClosed is returned when a store is used after Close or Drop.
	ErrStoreClosed = errors.New("store is closed")
)

// IsNotFound returns a boolean indicating whether the error is known to report that a key was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

// Connector hands out named sessions against a key value backend.
// Opening a name that does not exist yet creates it.
type Connector interface {
	Open(ctx context.Context, name string) (Store, error)
}

// Store is an interface for a generic key value store. It is modeled after
// the boltdb database struct.
type Store interface {
	// View opens up a transaction that will not write to any data. Implementing interfaces
	// should take care to ensure that all view transactions do not mutate any data.
	View(ctx context.Context, fn func(Tx) error) error
	// Update opens up a transaction that will mutate data.
	Update(ctx context.Context, fn func(Tx) error) error
	// DeleteBucket removes a bucket and every key within it. Deleting a
	// bucket that does not exist is not an error.
	DeleteBucket(ctx context.Context, b []byte) error
	// Drop removes the whole session from the backend and closes the store.
	Drop(ctx context.Context) error
	// Close releases the store. Data stays available to a later Open of the
	// same name.
	Close() error
}

// Tx is a transaction in the store.
type Tx interface {
	// Bucket returns the named bucket, creating it in writable transactions.
	Bucket(b []byte) (Bucket, error)
	Context() context.Context
	WithContext(ctx context.Context)
}

// Bucket is the abstraction used to perform get/put/delete/get-many operations
// in a key value store.
type Bucket interface {
	Get(key []byte) ([]byte, error)
	Cursor() (Cursor, error)
	// Put should error if the transaction it was called in is not writable.
	Put(key, value []byte) error
	// Delete should error if the transaction it was called in is not writable.
	Delete(key []byte) error
}

// Cursor is an abstraction for iterating/ranging through data. Keys are
// returned in byte-wise ascending order.
type Cursor interface {
	Seek(prefix []byte) (k []byte, v []byte)
	First() (k []byte, v []byte)
	Last() (k []byte, v []byte)
	Next() (k []byte, v []byte)
	Prev() (k []byte, v []byte)
}
