// Package symbols resolves target addresses against the named ranges an
// image manifest declares.
package symbols

import (
	"fmt"
	"sort"
)

// Symbol names one contiguous address range.
type Symbol struct {
	Name string `json:"name"`
	Addr uint64 `json:"addr"`
	Size uint64 `json:"size"`
}

// Table is an address-sorted symbol table.
type Table struct {
	syms []Symbol
}

// Build copies syms into a lookup table sorted by address.
func Build(syms []Symbol) *Table {
	t := &Table{syms: make([]Symbol, len(syms))}
	copy(t.syms, syms)
	sort.Slice(t.syms, func(i, j int) bool { return t.syms[i].Addr < t.syms[j].Addr })
	return t
}

// Symbols returns the table contents in address order.
func (t *Table) Symbols() []Symbol { return t.syms }

// Lookup resolves addr to the symbol whose range contains it, plus the
// offset into that range. A zero-size symbol matches only its exact
// address.
func (t *Table) Lookup(addr uint64) (Symbol, uint64, bool) {
	i := sort.Search(len(t.syms), func(i int) bool { return t.syms[i].Addr > addr })
	if i == 0 {
		return Symbol{}, 0, false
	}
	s := t.syms[i-1]
	if addr == s.Addr {
		return s, 0, true
	}
	if addr < s.Addr+s.Size {
		return s, addr - s.Addr, true
	}
	return Symbol{}, 0, false
}

// Addr resolves a symbol by name.
func (t *Table) Addr(name string) (uint64, bool) {
	for _, s := range t.syms {
		if s.Name == name {
			return s.Addr, true
		}
	}
	return 0, false
}

// Name renders addr for display: "name" or "name+offset" inside a known
// range, bare hex otherwise.
func (t *Table) Name(addr uint64) string {
	s, off, ok := t.Lookup(addr)
	if !ok {
		return fmt.Sprintf("%#x", addr)
	}
	if off == 0 {
		return s.Name
	}
	return fmt.Sprintf("%s+%#x", s.Name, off)
}
