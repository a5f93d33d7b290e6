/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */

// Package hashmap implements a Robin Hood open-addressed hash table
// with linear probing, backward-shift deletion and incremental
// two-table rehashing. Keys are byte strings of up to 65535 bytes and
// are borrowed: the map aliases the caller's slice, so the caller must
// keep the bytes alive and unmodified for the lifetime of the entry.
package hashmap

import (
	"bytes"
	"crypto/rand"
	"errors"
)

var (
	ErrNotFound = errors.New("key not found")
	ErrExists   = errors.New("key already exists")
)

const (
	MinBits = 1
	MaxBits = 32

	hashmapMagic = 0x484d6170 // "HMap"

	// The two tables exist so that a resize can be spread out over
	// subsequent operations instead of stalling on a full rehash.
	numTables = 2

	maxKeySize = 65535
)

type node[V any] struct {
	key     []byte
	value   V
	hashval uint32
	psl     uint32
}

type table[V any] struct {
	bits  uint8
	mask  uint32
	nodes []node[V]
}

// Map maps borrowed byte-string keys to values of type V. It is not
// internally synchronized; callers that share a Map across goroutines
// must supply their own locking.
type Map[V any] struct {
	magic         uint32
	caseSensitive bool
	hindex        uint8
	hiter         int // rehashing cursor into the source table
	count         uint32
	hashKey       [16]byte
	tables        [numTables]*table[V]
}

type options struct {
	caseInsensitive bool
	zeroSeed        bool
}

type Option func(*options)

// CaseInsensitive makes key comparison and hashing fold ASCII case, so
// that keys differing only in letter case are considered equal.
func CaseInsensitive() Option {
	return func(o *options) { o.caseInsensitive = true }
}

func tableSize(bits uint8) int {
	return 1 << bits
}

// The load thresholds use the same shifted approximations as the
// fixed-point originals: n*1024ths, accurate to within a percent.
func approx90(x int) uint32 { return uint32((uint64(x) * 921) >> 10) }
func approx40(x int) uint32 { return uint32((uint64(x) * 409) >> 10) }
func approx20(x int) uint32 { return uint32((uint64(x) * 205) >> 10) }

// New creates a map with 2^bits slots. bits must be in [MinBits,
// MaxBits].
func New[V any](bits uint8, opts ...Option) *Map[V] {
	if bits < MinBits || bits > MaxBits {
		panic("hashmap: bits out of range")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	m := &Map[V]{
		magic:         hashmapMagic,
		caseSensitive: !o.caseInsensitive,
		hashKey:       [16]byte{0, 1},
	}
	if !o.zeroSeed {
		if _, err := rand.Read(m.hashKey[:]); err != nil {
			panic("hashmap: no entropy for hash seed: " + err.Error())
		}
	}

	m.createTable(0, bits)

	return m
}

func (m *Map[V]) valid() {
	if m == nil || m.magic != hashmapMagic {
		panic("hashmap: invalid map handle")
	}
}

func checkKey(key []byte) {
	if key == nil {
		panic("hashmap: nil key")
	}
	if len(key) > maxKeySize {
		panic("hashmap: key larger than 65535 bytes")
	}
}

func (m *Map[V]) createTable(idx uint8, bits uint8) {
	if m.tables[idx] != nil {
		panic("hashmap: table slot already in use")
	}
	m.tables[idx] = &table[V]{
		bits:  bits,
		mask:  uint32(uint64(1)<<bits - 1),
		nodes: make([]node[V], tableSize(bits)),
	}
}

func (m *Map[V]) freeTable(idx uint8, cleanup bool) {
	if cleanup {
		for i := range m.tables[idx].nodes {
			if m.tables[idx].nodes[i].key != nil {
				m.tables[idx].nodes[i] = node[V]{}
				m.count--
			}
		}
	}
	m.tables[idx] = nil
}

// Destroy invalidates the map and releases both tables. The map must
// not be used afterwards.
func (m *Map[V]) Destroy() {
	m.valid()
	m.magic = 0
	for i := uint8(0); i < numTables; i++ {
		if m.tables[i] != nil {
			m.freeTable(i, true)
		}
	}
	if m.count != 0 {
		panic("hashmap: entry count inconsistent at destroy")
	}
}

func nextTable(idx uint8) uint8 {
	if idx == 0 {
		return 1
	}
	return 0
}

func (m *Map[V]) rehashing() bool {
	return m.tables[nextTable(m.hindex)] != nil
}

// tryNextTable reports whether a miss in table idx should fall through
// to the other table.
func (m *Map[V]) tryNextTable(idx uint8) bool {
	return idx == m.hindex && m.rehashing()
}

// hashBits extracts the top bits of the hash value. The seed keys the
// low bits poorly, so the home slot comes from the high end.
func hashBits(hashval uint32, bits uint8) uint32 {
	return hashval >> (32 - bits)
}

// Hash returns the keyed 32-bit hash of key for this map instance. For
// case-insensitive maps the key is ASCII-folded while hashing, so
// casefold-equal keys share a hash.
func (m *Map[V]) Hash(key []byte) uint32 {
	m.valid()
	return halfSipHash24(m.hashKey, key, !m.caseSensitive)
}

func (m *Map[V]) matches(n *node[V], hashval uint32, key []byte) bool {
	if n.hashval != hashval || len(n.key) != len(key) {
		return false
	}
	if m.caseSensitive {
		return bytes.Equal(n.key, key)
	}
	return asciiLowerEqual(n.key, key)
}

// findNode locates key starting in table *idxp, falling through to the
// other table while a rehash is in progress. On success it returns the
// node, its probe distance and the table it lives in.
func (m *Map[V]) findNode(hashval uint32, key []byte, idxp *uint8) (*node[V], uint32) {
	idx := *idxp

nexttable:
	psl := uint32(0)
	t := m.tables[idx]
	hash := hashBits(hashval, t.bits)

	for {
		pos := (hash + psl) & t.mask
		n := &t.nodes[pos]

		if n.key == nil || psl > n.psl {
			break
		}
		if m.matches(n, hashval, key) {
			*idxp = idx
			return n, psl
		}
		psl++
	}
	if m.tryNextTable(idx) {
		idx = nextTable(idx)
		goto nexttable
	}

	return nil, 0
}

// Find returns the value stored under key, or ErrNotFound.
func (m *Map[V]) Find(key []byte) (V, error) {
	m.valid()
	checkKey(key)
	return m.findHashed(m.Hash(key), key)
}

// FindHashed is Find with a precomputed hash value, as returned by
// Hash for this map instance.
func (m *Map[V]) FindHashed(hashval uint32, key []byte) (V, error) {
	m.valid()
	checkKey(key)
	return m.findHashed(hashval, key)
}

func (m *Map[V]) findHashed(hashval uint32, key []byte) (V, error) {
	idx := m.hindex
	n, _ := m.findNode(hashval, key, &idx)
	if n == nil {
		var zero V
		return zero, ErrNotFound
	}
	return n.value, nil
}

// deleteNode clears the slot holding entry and restores the Robin Hood
// invariant by shifting the probe chain backward until an empty slot
// or a node already at its home position.
func (m *Map[V]) deleteNode(entry *node[V], hashval, psl uint32, idx uint8) {
	t := m.tables[idx]

	m.count--

	pos := hashBits(hashval, t.bits) + psl
	for {
		pos = (pos + 1) & t.mask
		n := &t.nodes[pos]
		if n.key == nil || n.psl == 0 {
			break
		}
		n.psl--
		*entry = *n
		entry = n
	}

	*entry = node[V]{}
}

// rehashOne migrates one slot from the source table into the active
// table; when the source is exhausted it is released.
func (m *Map[V]) rehashOne() {
	oldidx := nextTable(m.hindex)
	old := m.tables[oldidx]

	for m.hiter < len(old.nodes) && old.nodes[m.hiter].key == nil {
		m.hiter++
	}

	if m.hiter == len(old.nodes) {
		m.freeTable(oldidx, false)
		m.hiter = 0
		return
	}

	n := old.nodes[m.hiter]

	m.deleteNode(&old.nodes[m.hiter], n.hashval, n.psl, oldidx)

	if err := m.addToTable(n.hashval, n.key, n.value, m.hindex); err != nil {
		panic("hashmap: duplicate key during rehash")
	}

	// hiter stays put: the backward shift above may have refilled
	// the same source slot.
}

func (m *Map[V]) growBits() uint8 {
	newbits := uint32(m.tables[m.hindex].bits) + 1

	for newbits < MaxBits && m.count > approx40(tableSize(uint8(newbits))) {
		newbits++
	}
	if newbits > MaxBits {
		newbits = MaxBits
	}
	return uint8(newbits)
}

func (m *Map[V]) shrinkBits() uint8 {
	newbits := m.tables[m.hindex].bits - 1
	if newbits <= MinBits {
		newbits = MinBits
	}
	return newbits
}

func (m *Map[V]) startGrow() {
	if m.rehashing() {
		panic("hashmap: rehash already in progress")
	}
	oldidx := m.hindex
	newbits := m.growBits()
	if newbits > m.tables[oldidx].bits {
		newidx := nextTable(oldidx)
		m.createTable(newidx, newbits)
		m.hindex = newidx
	}
}

func (m *Map[V]) startShrink() {
	if m.rehashing() {
		panic("hashmap: rehash already in progress")
	}
	oldidx := m.hindex
	newbits := m.shrinkBits()
	if newbits < m.tables[oldidx].bits {
		newidx := nextTable(oldidx)
		m.createTable(newidx, newbits)
		m.hindex = newidx
	}
}

func (m *Map[V]) overThreshold() bool {
	bits := m.tables[m.hindex].bits
	if bits == MaxBits {
		return false
	}
	return m.count > approx90(tableSize(bits))
}

func (m *Map[V]) underThreshold() bool {
	bits := m.tables[m.hindex].bits
	if bits == MinBits {
		return false
	}
	return m.count < approx20(tableSize(bits))
}

// addToTable inserts into a single table using displacement: the
// candidate node swaps places with any richer occupant it meets along
// its probe path.
func (m *Map[V]) addToTable(hashval uint32, key []byte, value V, idx uint8) error {
	t := m.tables[idx]
	hash := hashBits(hashval, t.bits)

	cand := node[V]{
		key:     key,
		value:   value,
		hashval: hashval,
	}

	psl := uint32(0)
	var cur *node[V]
	for {
		pos := (hash + psl) & t.mask
		cur = &t.nodes[pos]

		if cur.key == nil {
			break
		}
		if m.matches(cur, hashval, key) {
			return ErrExists
		}
		if cand.psl > cur.psl {
			*cur, cand = cand, *cur
		}
		cand.psl++
		psl++
	}

	m.count++
	*cur = cand

	return nil
}

// Add inserts key with value. ErrExists is returned, and the stored
// value left untouched, when an equal key is already present. The key
// slice is retained by the map.
func (m *Map[V]) Add(key []byte, value V) error {
	m.valid()
	checkKey(key)
	return m.addHashed(m.Hash(key), key, value)
}

// AddHashed is Add with a precomputed hash value.
func (m *Map[V]) AddHashed(hashval uint32, key []byte, value V) error {
	m.valid()
	checkKey(key)
	return m.addHashed(hashval, key, value)
}

func (m *Map[V]) addHashed(hashval uint32, key []byte, value V) error {
	if m.rehashing() {
		m.rehashOne()
	} else if m.overThreshold() {
		m.startGrow()
		m.rehashOne()
	}

	if m.rehashing() {
		// The key may still live in the source table.
		fidx := nextTable(m.hindex)
		if n, _ := m.findNode(hashval, key, &fidx); n != nil {
			return ErrExists
		}
	}

	return m.addToTable(hashval, key, value, m.hindex)
}

// Delete removes key from the map, or returns ErrNotFound.
func (m *Map[V]) Delete(key []byte) error {
	m.valid()
	checkKey(key)
	return m.deleteHashed(m.Hash(key), key)
}

// DeleteHashed is Delete with a precomputed hash value.
func (m *Map[V]) DeleteHashed(hashval uint32, key []byte) error {
	m.valid()
	checkKey(key)
	return m.deleteHashed(hashval, key)
}

func (m *Map[V]) deleteHashed(hashval uint32, key []byte) error {
	if m.rehashing() {
		m.rehashOne()
	} else if m.underThreshold() {
		m.startShrink()
		m.rehashOne()
	}

	idx := m.hindex
	n, psl := m.findNode(hashval, key, &idx)
	if n == nil {
		return ErrNotFound
	}
	m.deleteNode(n, hashval, psl, idx)
	return nil
}

// Count returns the number of live entries.
func (m *Map[V]) Count() uint32 {
	m.valid()
	return m.count
}
