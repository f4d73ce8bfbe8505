// Package symbols tracks every named record of a generated C unit and
// renders the unit in two passes so references always resolve against the
// complete set of definitions.
package symbols

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrDuplicateSymbol is returned when a name is added twice.
var ErrDuplicateSymbol = errors.New("duplicate symbol")

// Symbol is one C declaration: Type Name Suffix, e.g. "SVECTOR", "cube_mesh", "[]".
type Symbol struct {
	Type   string
	Name   string
	Suffix string
}

// Sym is shorthand for a Symbol without suffix.
func Sym(typ, name string) Symbol {
	return Symbol{Type: typ, Name: name}
}

// Array is shorthand for a Symbol with an array suffix of unknown size.
func Array(typ, name string) Symbol {
	return Symbol{Type: typ, Name: name, Suffix: "[]"}
}

// Decl returns the declarator text, without storage class or semicolon.
func (s Symbol) Decl() string {
	return s.Type + " " + s.Name + s.Suffix
}

// Table is an insertion-ordered set of symbols keyed by name.
type Table struct {
	syms  []Symbol
	index map[string]int
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{index: make(map[string]int)}
}

// Add appends a symbol. Names must be unique.
func (t *Table) Add(s Symbol) error {
	if _, ok := t.index[s.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSymbol, s.Name)
	}
	t.index[s.Name] = len(t.syms)
	t.syms = append(t.syms, s)
	return nil
}

// Has reports whether name is in the table.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Index returns the insertion position of name, or -1.
func (t *Table) Index(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Lookup returns the symbol with the given name.
func (t *Table) Lookup(name string) (Symbol, bool) {
	i, ok := t.index[name]
	if !ok {
		return Symbol{}, false
	}
	return t.syms[i], true
}

// Len returns the number of symbols.
func (t *Table) Len() int {
	return len(t.syms)
}

// All returns the symbols in insertion order.
func (t *Table) All() []Symbol {
	return append([]Symbol(nil), t.syms...)
}

// WriteHeader writes a forward-declaration header: the includes followed by
// one extern line per symbol.
func (t *Table) WriteHeader(w io.Writer, includes ...string) error {
	var b strings.Builder
	b.WriteString("#pragma once\n")
	for _, inc := range includes {
		fmt.Fprintf(&b, "#include \"%s\"\n", inc)
	}
	b.WriteString("\n")
	for _, s := range t.syms {
		fmt.Fprintf(&b, "extern %s;\n", s.Decl())
	}
	_, err := io.WriteString(w, b.String())
	return err
}
