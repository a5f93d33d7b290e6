/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */

package hashmap

import (
	"fmt"
	"testing"
)

func newTestMap[V any](bits uint8, opts ...Option) *Map[V] {
	opts = append(opts, func(o *options) { o.zeroSeed = true })
	return New[V](bits, opts...)
}

// checkInvariants verifies the structural invariants: stored PSLs
// match the distance from the home slot, the entry count matches the
// number of occupied slots, and no key occurs in both tables.
func checkInvariants[V any](t *testing.T, m *Map[V]) {
	t.Helper()

	var occupied uint32
	seen := map[string]int{}

	for idx := uint8(0); idx < numTables; idx++ {
		tbl := m.tables[idx]
		if tbl == nil {
			continue
		}
		for p, n := range tbl.nodes {
			if n.key == nil {
				continue
			}
			occupied++
			seen[string(n.key)]++
			home := hashBits(n.hashval, tbl.bits)
			want := (uint32(p) - home) & tbl.mask
			if n.psl != want {
				t.Fatalf("table %d slot %d: psl = %d, want %d", idx, p, n.psl, want)
			}
		}
	}

	if occupied != m.count {
		t.Fatalf("count = %d, occupied slots = %d", m.count, occupied)
	}
	for k, c := range seen {
		if c != 1 {
			t.Fatalf("key %q present in %d slots", k, c)
		}
	}
}

func TestBasic(t *testing.T) {
	m := newTestMap[int](4)

	for i := 0; i < 26; i++ {
		key := []byte{byte('a' + i)}
		if err := m.Add(key, i); err != nil {
			t.Fatalf("Add(%q): %v", key, err)
		}
	}
	if m.Count() != 26 {
		t.Errorf("Count() = %d, want 26", m.Count())
	}
	for i := 0; i < 26; i++ {
		key := []byte{byte('a' + i)}
		v, err := m.Find(key)
		if err != nil {
			t.Fatalf("Find(%q): %v", key, err)
		}
		if v != i {
			t.Errorf("Find(%q) = %d, want %d", key, v, i)
		}
	}

	if err := m.Delete([]byte("m")); err != nil {
		t.Fatalf("Delete(m): %v", err)
	}
	if _, err := m.Find([]byte("m")); err != ErrNotFound {
		t.Errorf("Find(m) after delete: %v, want ErrNotFound", err)
	}
	if m.Count() != 25 {
		t.Errorf("Count() = %d, want 25", m.Count())
	}
	checkInvariants(t, m)
}

func TestAddExisting(t *testing.T) {
	m := newTestMap[string](2)

	if err := m.Add([]byte("key"), "first"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := m.Add([]byte("key"), "second"); err != ErrExists {
		t.Fatalf("duplicate Add: %v, want ErrExists", err)
	}
	v, err := m.Find([]byte("key"))
	if err != nil || v != "first" {
		t.Errorf("Find = %q, %v; want first, nil", v, err)
	}
}

func TestGrowth(t *testing.T) {
	m := newTestMap[int](2)

	keys := make([][]byte, 100)
	prev := uint32(0)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("k%d", i))
		if err := m.Add(keys[i], i); err != nil {
			t.Fatalf("Add(k%d): %v", i, err)
		}
		if m.Count() != prev+1 {
			t.Fatalf("Count() = %d after %d inserts", m.Count(), i+1)
		}
		prev = m.Count()
		checkInvariants(t, m)
	}

	for i, key := range keys {
		v, err := m.Find(key)
		if err != nil || v != i {
			t.Fatalf("Find(k%d) = %d, %v", i, v, err)
		}
	}

	if bits := m.tables[m.hindex].bits; bits < 8 {
		t.Errorf("active table bits = %d, want >= 8", bits)
	}
}

func TestRobinHood(t *testing.T) {
	m := newTestMap[int](3)

	// Force every key to the same home slot by supplying the hash.
	const hashval = 0
	keys := make([][]byte, 7)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("x%d", i))
		if err := m.AddHashed(hashval, keys[i], i); err != nil {
			t.Fatalf("AddHashed(x%d): %v", i, err)
		}
	}

	tbl := m.tables[m.hindex]
	home := hashBits(hashval, tbl.bits)
	for d := uint32(0); d < 7; d++ {
		n := &tbl.nodes[(home+d)&tbl.mask]
		if n.key == nil || n.psl != d {
			t.Fatalf("slot at distance %d: psl = %d, want %d", d, n.psl, d)
		}
	}

	if err := m.DeleteHashed(hashval, keys[0]); err != nil {
		t.Fatalf("DeleteHashed(x0): %v", err)
	}

	n := &tbl.nodes[home&tbl.mask]
	if string(n.key) != "x1" || n.psl != 0 {
		t.Errorf("home slot after delete: key %q psl %d, want x1 psl 0", n.key, n.psl)
	}
	checkInvariants(t, m)
}

func TestRoundTrip(t *testing.T) {
	m := newTestMap[string](4)

	if err := m.Add([]byte("alpha"), "one"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	v, err := m.Find([]byte("alpha"))
	if err != nil || v != "one" {
		t.Fatalf("Find = %q, %v", v, err)
	}
	if err := m.Delete([]byte("alpha")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Find([]byte("alpha")); err != ErrNotFound {
		t.Errorf("Find after delete: %v, want ErrNotFound", err)
	}
}

func TestShrink(t *testing.T) {
	m := newTestMap[int](2)

	keys := make([][]byte, 300)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("key-%d", i))
		if err := m.Add(keys[i], i); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	for i := 10; i < 300; i++ {
		if err := m.Delete(keys[i]); err != nil {
			t.Fatalf("Delete(%d): %v", i, err)
		}
		checkInvariants(t, m)
	}

	// Drive any in-flight rehash to completion.
	for i := 0; i < 10; i++ {
		if err := m.Add(keys[10], -1); err != ErrExists && err != nil {
			t.Fatalf("Add churn: %v", err)
		}
		m.Delete(keys[10])
		m.Add(keys[10], 10)
	}

	if bits := m.tables[m.hindex].bits; bits >= 10 {
		t.Errorf("active table bits = %d after shrinking to 10 entries", bits)
	}
	for i := 0; i < 10; i++ {
		if _, err := m.Find(keys[i]); err != nil {
			t.Errorf("Find(%d) after shrink: %v", i, err)
		}
	}
	checkInvariants(t, m)
}

func TestCaseInsensitive(t *testing.T) {
	m := newTestMap[int](4, CaseInsensitive())

	if m.Hash([]byte("Foo")) != m.Hash([]byte("fOO")) {
		t.Errorf("casefold-equal keys hash differently")
	}
	if err := m.Add([]byte("Foo"), 1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := m.Find([]byte("fOO")); err != nil {
		t.Errorf("Find(fOO): %v", err)
	}
	if err := m.Add([]byte("FOO"), 2); err != ErrExists {
		t.Errorf("Add(FOO): %v, want ErrExists", err)
	}

	cs := newTestMap[int](4)
	if err := cs.Add([]byte("Foo"), 1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := cs.Find([]byte("fOO")); err != ErrNotFound {
		t.Errorf("case-sensitive Find(fOO): %v, want ErrNotFound", err)
	}
}

func TestBorrowedKeys(t *testing.T) {
	m := newTestMap[int](4)

	key := []byte("borrowed")
	if err := m.Add(key, 7); err != nil {
		t.Fatalf("Add: %v", err)
	}

	it := m.Iterate()
	if err := it.First(); err != nil {
		t.Fatalf("First: %v", err)
	}
	ck := it.CurrentKey()
	if &ck[0] != &key[0] {
		t.Errorf("stored key is a copy; the map is expected to borrow the caller's bytes")
	}
}

func TestPrecomputedHash(t *testing.T) {
	m := newTestMap[int](4)

	key := []byte("hashed")
	h := m.Hash(key)
	if err := m.AddHashed(h, key, 42); err != nil {
		t.Fatalf("AddHashed: %v", err)
	}
	if v, err := m.FindHashed(h, key); err != nil || v != 42 {
		t.Fatalf("FindHashed = %d, %v", v, err)
	}
	if err := m.DeleteHashed(h, key); err != nil {
		t.Fatalf("DeleteHashed: %v", err)
	}
}

func TestContractViolations(t *testing.T) {
	mustPanic := func(name string, f func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Errorf("%s: expected panic", name)
			}
		}()
		f()
	}

	mustPanic("bits=0", func() { New[int](0) })
	mustPanic("bits=33", func() { New[int](33) })

	m := newTestMap[int](2)
	mustPanic("nil key", func() { m.Add(nil, 0) })
	mustPanic("oversized key", func() { m.Add(make([]byte, maxKeySize+1), 0) })

	m.Destroy()
	mustPanic("use after destroy", func() { m.Count() })
}
