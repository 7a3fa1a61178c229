package kv

import (
	"bytes"
	"sort"
)

// Pair is a struct for key value pairs.
type Pair struct {
	Key   []byte
	Value []byte
}

// StaticCursor implements the Cursor interface for a slice of
// static key value pairs.
type StaticCursor struct {
	idx   int
	pairs []Pair
}

// NewStaticCursor returns an instance of a StaticCursor. It
// destructively sorts the provided pairs to be in key ascending order.
func NewStaticCursor(pairs []Pair) *StaticCursor {
	sort.Slice(pairs, func(i, j int) bool {
		return bytes.Compare(pairs[i].Key, pairs[j].Key) < 0
	})
	return &StaticCursor{
		pairs: pairs,
	}
}

// Seek searches the slice for the first key with the provided prefix.
func (c *StaticCursor) Seek(prefix []byte) ([]byte, []byte) {
	i := sort.Search(len(c.pairs), func(i int) bool {
		return bytes.Compare(c.pairs[i].Key, prefix) >= 0
	})
	c.idx = i
	if i >= len(c.pairs) || !bytes.HasPrefix(c.pairs[i].Key, prefix) {
		return nil, nil
	}
	return c.getValueAtIndex(0)
}

func (c *StaticCursor) getValueAtIndex(delta int) ([]byte, []byte) {
	idx := c.idx + delta
	if idx < 0 {
		return nil, nil
	}

	if idx >= len(c.pairs) {
		return nil, nil
	}

	c.idx = idx

	pair := c.pairs[c.idx]

	return pair.Key, pair.Value
}

// First retrieves the first element in the cursor.
func (c *StaticCursor) First() ([]byte, []byte) {
	c.idx = 0
	return c.getValueAtIndex(0)
}

// Last retrieves the last element in the cursor.
func (c *StaticCursor) Last() ([]byte, []byte) {
	c.idx = len(c.pairs) - 1
	return c.getValueAtIndex(0)
}

// Next retrieves the next entry in the cursor.
func (c *StaticCursor) Next() ([]byte, []byte) {
	return c.getValueAtIndex(1)
}

// Prev retrieves the previous entry in the cursor.
func (c *StaticCursor) Prev() ([]byte, []byte) {
	return c.getValueAtIndex(-1)
}
