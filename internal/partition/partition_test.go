package partition

import (
	"testing"

	"github.com/Faultbox/psxexport/pkg/math"
	"github.com/Faultbox/psxexport/pkg/scene"
)

func TestClassify(t *testing.T) {
	plane := Rect{0, 0, 10, 10}
	tests := []struct {
		name string
		obj  Rect
		want Relation
	}{
		{"inside", Rect{2, 2, 4, 4}, Contained},
		{"same", Rect{0, 0, 10, 10}, Contained},
		{"west", Rect{-2, 2, 2, 4}, OverlapW},
		{"east", Rect{8, 2, 12, 4}, OverlapE},
		{"north", Rect{2, 8, 4, 12}, OverlapN},
		{"south", Rect{2, -2, 4, 2}, OverlapS},
		{"touching east edge", Rect{10, 2, 12, 4}, OverlapE},
		{"outside", Rect{20, 20, 22, 22}, None},
		{"bigger", Rect{-1, -1, 11, 11}, OverlapW},
	}
	for _, tt := range tests {
		if got := Classify(plane, tt.obj); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestClassifyLine(t *testing.T) {
	line := Line{0, 0, 0, 10} // pointing +Y
	tests := []struct {
		name string
		seg  Line
		want LineSide
	}{
		{"front", Line{1, 0, 2, 5}, Front},
		{"back", Line{-1, 0, -2, 5}, Back},
		{"on line", Line{0, 2, 0, 8}, Connected},
		{"across", Line{-1, 5, 1, 5}, Intersect},
		{"front touching", Line{0, 5, 1, 5}, Front},
		{"back touching", Line{-1, 5, 0, 5}, Back},
		{"rounding noise", Line{0.00000001, 0, 0, 3}, Connected},
	}
	for _, tt := range tests {
		if got := ClassifyLine(line, tt.seg); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestSepLine(t *testing.T) {
	r := Rect{1, 2, 3, 4}
	tests := []struct {
		side Side
		want Line
	}{
		{North, Line{1, 4, 3, 4}},
		{South, Line{1, 2, 3, 2}},
		{West, Line{1, 2, 1, 4}},
		{East, Line{3, 2, 3, 4}},
	}
	for _, tt := range tests {
		if got := SepLine(r, tt.side); got != tt.want {
			t.Errorf("SepLine %v: expected %v, got %v", tt.side, tt.want, got)
		}
		if tt.side.Opposite().Opposite() != tt.side {
			t.Errorf("Opposite is not an involution for %v", tt.side)
		}
	}
}

func twoPlanes() []Item {
	return []Item{
		{Name: "Floor", Bounds: Rect{0, 0, 10, 10}, Level: true},
		{Name: "Hall", Bounds: Rect{10, 0, 20, 10}, Level: true},
		{Name: "Far", Bounds: Rect{40, 40, 50, 50}, Level: true},
		{Name: "Actor", Bounds: Rect{12, 2, 13, 3}, Rigid: true},
		{Name: "Crate", Bounds: Rect{2, 2, 3, 3}},
		{Name: "Beam", Bounds: Rect{9, 4, 11, 5}},
		{Name: "Ball", Bounds: Rect{9, 6, 11, 7}, Rigid: true},
		{Name: "Door", Bounds: Rect{10, 0, 10, 10}, Portal: true},
	}
}

func TestBuild(t *testing.T) {
	g := Build(twoPlanes(), "Actor")

	if len(g.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(g.Nodes))
	}
	if g.Root != 1 {
		t.Errorf("expected root Hall (1), got %d", g.Root)
	}

	floor, hall := g.Nodes[0], g.Nodes[1]
	if len(floor.Statics) != 2 || floor.Statics[0] != "Crate" || floor.Statics[1] != "Beam" {
		t.Errorf("unexpected Floor statics %v", floor.Statics)
	}
	if len(hall.Statics) != 1 || hall.Statics[0] != "Beam" {
		t.Errorf("unexpected Hall statics %v", hall.Statics)
	}
	for _, n := range g.Nodes {
		for _, s := range n.Statics {
			if s == "Actor" || s == "Door" || s == "Ball" {
				t.Errorf("%s must not be static on %s", s, n.Plane.Name)
			}
		}
	}
	if len(floor.Rigid) != 1 || len(hall.Rigid) != 1 {
		t.Errorf("expected Ball on both planes, got %v and %v", floor.Rigid, hall.Rigid)
	}
	if owner, ok := g.Owner("Ball"); !ok || owner != 0 {
		t.Errorf("expected Ball owned by Floor, got %d %v", owner, ok)
	}

	if len(floor.Siblings) != 1 || floor.Siblings[0] != (Edge{Side: East, Node: 1}) {
		t.Errorf("unexpected Floor siblings %v", floor.Siblings)
	}
	if len(g.Nodes[2].Siblings) != 0 {
		t.Errorf("expected Far isolated, got %v", g.Nodes[2].Siblings)
	}
}

func TestSiblingSymmetry(t *testing.T) {
	items := []Item{
		{Name: "A", Bounds: Rect{0, 0, 10, 10}, Level: true},
		{Name: "B", Bounds: Rect{10, 0, 20, 10}, Level: true},
		{Name: "C", Bounds: Rect{0, 10, 10, 20}, Level: true},
		{Name: "D", Bounds: Rect{0, -10, 10, 0}, Level: true},
		{Name: "E", Bounds: Rect{-10, 0, 0, 10}, Level: true},
	}
	g := Build(items, "")
	for _, n := range g.Nodes {
		for _, e := range n.Siblings {
			found := false
			for _, back := range g.Nodes[e.Node].Siblings {
				if back.Node == n.Index && back.Side == e.Side.Opposite() {
					found = true
				}
			}
			if !found {
				t.Errorf("%s -> %s on %v has no reverse edge", n.Plane.Name, g.Nodes[e.Node].Plane.Name, e.Side)
			}
		}
	}
	if len(g.Nodes[0].Siblings) != 4 {
		t.Errorf("expected A to have 4 siblings, got %v", g.Nodes[0].Siblings)
	}
	if g.Root != 0 {
		t.Errorf("expected first plane as root, got %d", g.Root)
	}
}

func TestBuildEmpty(t *testing.T) {
	g := Build(nil, "Actor")
	if g.Root != -1 || g.RootNode() != nil {
		t.Errorf("expected no root, got %d", g.Root)
	}
}

func TestItemOf(t *testing.T) {
	o := &scene.Object{
		Name:     "Floor",
		Type:     scene.TypeMesh,
		Location: math.Vec3{X: 5},
		Scale:    math.Vec3{X: 2, Y: 1, Z: 1},
		Data:     scene.Props{"isLevel": true},
		Mesh: &scene.Mesh{
			Vertices: []math.Vec3{{X: -1, Y: -1}, {X: 1, Y: 1}},
		},
	}
	it := ItemOf(o)
	if !it.Level || it.Rigid {
		t.Errorf("unexpected flags %+v", it)
	}
	want := Rect{3, -1, 7, 1}
	if it.Bounds != want {
		t.Errorf("expected %v, got %v", want, it.Bounds)
	}
}
