package partition

import (
	"github.com/Faultbox/psxexport/pkg/scene"
)

// Item is one mesh taking part in the partition.
type Item struct {
	Name   string
	Bounds Rect
	Level  bool
	Rigid  bool
	Portal bool
}

// ItemOf builds an Item from a mesh object and its datablock flags.
func ItemOf(o *scene.Object) Item {
	return Item{
		Name:   o.Name,
		Bounds: Bounds(o),
		Level:  o.Data.Bool("isLevel"),
		Rigid:  o.Data.Bool("isRigidBody"),
		Portal: o.Data.Bool("isPortal"),
	}
}

// Edge links a node to a sibling on one of its sides.
type Edge struct {
	Side Side
	Node int
}

// Node is a level plane with its neighbours and the objects on it.
type Node struct {
	Index    int
	Plane    Item
	Siblings []Edge
	Statics  []string
	Rigid    []string
}

// Graph is the node arena. Edges refer to nodes by index, so cycles need no
// pointers.
type Graph struct {
	Nodes []Node
	Root  int // -1 without planes

	owner     map[string]int
	contained map[string]bool
}

var sidePairs = [...][2]Side{{North, South}, {South, North}, {West, East}, {East, West}}

// Build partitions items. The actor is never listed as a static object;
// the plane containing it becomes the root.
func Build(items []Item, actor string) *Graph {
	g := &Graph{Root: -1, owner: make(map[string]int), contained: make(map[string]bool)}

	var objects []Item
	for _, it := range items {
		switch {
		case it.Portal:
		case it.Level:
			g.Nodes = append(g.Nodes, Node{Index: len(g.Nodes), Plane: it})
		default:
			objects = append(objects, it)
		}
	}

	for i := range g.Nodes {
		n := &g.Nodes[i]
		for _, o := range objects {
			rel := Classify(n.Plane.Bounds, o.Bounds)
			if rel == None {
				continue
			}
			switch {
			case o.Name == actor:
				if rel == Contained && g.Root < 0 {
					g.Root = i
				}
			case o.Rigid:
				n.Rigid = append(n.Rigid, o.Name)
				g.setOwner(o.Name, i, rel)
			default:
				n.Statics = append(n.Statics, o.Name)
			}
		}
	}
	if g.Root < 0 && len(g.Nodes) > 0 {
		g.Root = 0
	}

	for i := range g.Nodes {
		n := &g.Nodes[i]
		for j := range g.Nodes {
			if i == j {
				continue
			}
			other := g.Nodes[j].Plane.Bounds
			for _, sp := range sidePairs {
				a := SepLine(n.Plane.Bounds, sp[0])
				b := SepLine(other, sp[1])
				if ClassifyLine(a, b) != Connected || Classify(n.Plane.Bounds, other) == None {
					continue
				}
				n.addSibling(Edge{Side: sp[0], Node: j})
			}
		}
	}
	return g
}

// setOwner keeps the first containing plane, else the first overlapping one.
func (g *Graph) setOwner(name string, node int, rel Relation) {
	_, ok := g.owner[name]
	if !ok || (rel == Contained && !g.contained[name]) {
		g.owner[name] = node
		g.contained[name] = rel == Contained
	}
}

func (n *Node) addSibling(e Edge) {
	for _, s := range n.Siblings {
		if s == e {
			return
		}
	}
	n.Siblings = append(n.Siblings, e)
}

// Owner returns the node owning a rigid body.
func (g *Graph) Owner(name string) (int, bool) {
	i, ok := g.owner[name]
	return i, ok
}

// RootNode returns the starting node, or nil.
func (g *Graph) RootNode() *Node {
	if g.Root < 0 {
		return nil
	}
	return &g.Nodes[g.Root]
}

// Find returns the node for a plane name.
func (g *Graph) Find(plane string) (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].Plane.Name == plane {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}
