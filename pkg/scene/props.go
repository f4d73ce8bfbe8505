package scene

import "fmt"

// Props holds named custom properties. Only booleans and numbers are
// supported; JSON numbers decode as float64.
type Props map[string]any

// Kind is the type of a known property.
type Kind int

// Property kinds.
const (
	KindBool Kind = iota
	KindInt
)

// PropDef describes one known property.
type PropDef struct {
	Name    string
	Kind    Kind
	Default float64
}

// MeshFlags lists the mesh datablock properties, in record order.
var MeshFlags = []PropDef{
	{"isAnim", KindBool, 0},
	{"isProp", KindBool, 0},
	{"isRigidBody", KindBool, 0},
	{"isStaticBody", KindBool, 0},
	{"isRound", KindBool, 0},
	{"isPrism", KindBool, 0},
	{"isActor", KindBool, 0},
	{"isLevel", KindBool, 0},
	{"isWall", KindBool, 0},
	{"isBG", KindBool, 0},
	{"isSprite", KindBool, 0},
	{"isPortal", KindBool, 0},
	{"isLerp", KindBool, 0},
	{"mass", KindInt, 10},
	{"restitution", KindInt, 0},
}

// check rejects values other than bool and number.
func (p Props) check() error {
	for name, v := range p {
		switch v.(type) {
		case bool, float64, int:
		default:
			return fmt.Errorf("%w: %s has type %T", ErrUnsupportedProperty, name, v)
		}
	}
	return nil
}

// Has reports whether the property is set.
func (p Props) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// Bool returns the truthiness of a property; missing is false.
func (p Props) Bool(name string) bool {
	switch v := p[name].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	}
	return false
}

// Float returns a numeric property or def when missing.
func (p Props) Float(name string, def float64) float64 {
	switch v := p[name].(type) {
	case bool:
		if v {
			return 1
		}
		return 0
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// Int returns a numeric property truncated toward zero, or def.
func (p Props) Int(name string, def int) int {
	if !p.Has(name) {
		return def
	}
	return int(p.Float(name, float64(def)))
}

// Flags returns the integer value of every def, with defaults applied.
// Booleans read as 0 or 1 whatever number they were stored as.
func (p Props) Flags(defs []PropDef) map[string]int {
	out := make(map[string]int, len(defs))
	for _, d := range defs {
		switch {
		case d.Kind == KindBool && p.Has(d.Name):
			if p.Bool(d.Name) {
				out[d.Name] = 1
			} else {
				out[d.Name] = 0
			}
		default:
			out[d.Name] = p.Int(d.Name, int(d.Default))
		}
	}
	return out
}
