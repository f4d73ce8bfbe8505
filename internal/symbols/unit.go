package symbols

import (
	"fmt"
	"io"
	"strings"
)

// RenderFunc produces the C text of one definition.
type RenderFunc func(r *Resolver) string

type def struct {
	sym    Symbol
	render RenderFunc
}

// Unit collects the definitions of one C file. Definitions are registered
// first; Render then resolves every reference against the complete table.
type Unit struct {
	table      *Table
	defs       []def
	links      map[string]string
	forward    map[string]bool
	unresolved []string
}

// NewUnit returns an empty unit.
func NewUnit() *Unit {
	return &Unit{
		table: NewTable(),
		links: make(map[string]string),
	}
}

// Table returns the unit's symbol table.
func (u *Unit) Table() *Table {
	return u.table
}

// Define registers a definition, in output order.
func (u *Unit) Define(sym Symbol, render RenderFunc) error {
	if err := u.table.Add(sym); err != nil {
		return err
	}
	u.defs = append(u.defs, def{sym: sym, render: render})
	return nil
}

// Extern registers a symbol provided by the linker (e.g. embedded binary
// data). It is declared in place but not defined.
func (u *Unit) Extern(sym Symbol) error {
	return u.Define(sym, func(*Resolver) string {
		return "extern " + sym.Decl() + ";\n"
	})
}

// Link records a pending backlink: references to key resolve to target.
// Links may be added at any time before Render.
func (u *Unit) Link(key, target string) {
	u.links[key] = target
}

// Unresolved returns the references that rendered as null in the last Render.
func (u *Unit) Unresolved() []string {
	return append([]string(nil), u.unresolved...)
}

// Render writes preamble, the forward declarations of every symbol that is
// referenced before its definition, then all definitions in order.
func (u *Unit) Render(w io.Writer, preamble string) error {
	u.forward = make(map[string]bool)
	u.unresolved = nil

	bodies := make([]string, len(u.defs))
	for i, d := range u.defs {
		bodies[i] = d.render(&Resolver{unit: u, pos: i})
	}

	var b strings.Builder
	b.WriteString(preamble)
	fwd := 0
	for _, s := range u.table.syms {
		if u.forward[s.Name] {
			fmt.Fprintf(&b, "%s;\n", s.Decl())
			fwd++
		}
	}
	if fwd > 0 {
		b.WriteString("\n")
	}
	for _, body := range bodies {
		b.WriteString(body)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Resolver turns symbol names into C expressions while a definition renders.
type Resolver struct {
	unit *Unit
	pos  int
}

func (r *Resolver) resolve(name string) bool {
	i := r.unit.table.Index(name)
	if i < 0 {
		r.unit.unresolved = append(r.unit.unresolved, name)
		return false
	}
	if i > r.pos {
		r.unit.forward[name] = true
	}
	return true
}

// Addr returns "&name", or "0" when name is not defined in the unit.
func (r *Resolver) Addr(name string) string {
	if !r.resolve(name) {
		return "0"
	}
	return "&" + name
}

// Member returns "&name<sel>" (e.g. sel ".samples[2]"), or "0".
func (r *Resolver) Member(name, sel string) string {
	if !r.resolve(name) {
		return "0"
	}
	return "&" + name + sel
}

// Ref returns name itself (arrays decay to pointers), or "0".
func (r *Resolver) Ref(name string) string {
	if !r.resolve(name) {
		return "0"
	}
	return name
}

// Link returns the address of a pending backlink target, or "0" when the
// link was never recorded.
func (r *Resolver) Link(key string) string {
	target, ok := r.unit.links[key]
	if !ok {
		return "0"
	}
	return r.Addr(target)
}
