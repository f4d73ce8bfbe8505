package emit

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Faultbox/psxexport/internal/anim"
	"github.com/Faultbox/psxexport/internal/geometry"
	"github.com/Faultbox/psxexport/internal/partition"
	"github.com/Faultbox/psxexport/internal/sound"
	"github.com/Faultbox/psxexport/internal/symbols"
	"github.com/Faultbox/psxexport/internal/visibility"
	"github.com/Faultbox/psxexport/internal/vram"
	"github.com/Faultbox/psxexport/pkg/math"
)

// Header includes written at the top of every level header.
var headerIncludes = []string{"../" + TypesFile, "../include/defines.h"}

// Camera is one exported camera with its resolved view.
type Camera struct {
	Name       string
	Position   [3]int
	Rotation   [3]int
	Background bool // a background TIM exists for this camera
	Angle      visibility.Angle
}

// Light is one row of the light matrix and one column of the color matrix.
type Light struct {
	Direction [3]int
	Color     [3]int
}

// Level is everything that goes into one levelN.c.
type Level struct {
	Number        int
	Scale         float64
	Horizon       [3]int
	Ambient       [3]int
	Cameras       []Camera
	DefaultCamera string
	CamPath       [][3]int
	Lights        []Light
	Meshes        []*geometry.Record
	Textures      map[string]vram.Placement // keyed by texture prefix
	Anims         map[string]*anim.Set      // keyed by object name
	Graph         *partition.Graph

	Actor     string
	LevelMesh string
	Prop      string

	VAG    []sound.Sample
	XA     [][]*sound.Emitter
	Sounds []*sound.Emitter
}

// Prefix returns the symbol prefix, e.g. "level0".
func (l *Level) Prefix() string {
	return fmt.Sprintf("level%d", l.Number)
}

// Files describes a written level.
type Files struct {
	C, H       string
	Symbols    int
	Unresolved []string
}

// WriteFiles renders the level into dir/levels/levelN.{c,h}.
func (l *Level) WriteFiles(dir string) (*Files, error) {
	levels := filepath.Join(dir, "levels")
	if err := os.MkdirAll(levels, 0755); err != nil {
		return nil, err
	}
	out := &Files{
		C: filepath.Join(levels, l.Prefix()+".c"),
		H: filepath.Join(levels, l.Prefix()+".h"),
	}

	var c, h strings.Builder
	u, err := l.Render(&c, &h)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(out.C, []byte(c.String()), 0644); err != nil {
		return nil, err
	}
	if err := os.WriteFile(out.H, []byte(h.String()), 0644); err != nil {
		return nil, err
	}
	out.Symbols = u.Table().Len()
	out.Unresolved = u.Unresolved()
	return out, nil
}

// Render writes the body to c and the extern header to h.
func (l *Level) Render(c, h io.Writer) (*symbols.Unit, error) {
	u, err := l.Build()
	if err != nil {
		return nil, err
	}
	if err := u.Render(c, fmt.Sprintf("#include \"%s.h\"\n\n", l.Prefix())); err != nil {
		return nil, err
	}
	if err := u.Table().WriteHeader(h, headerIncludes...); err != nil {
		return nil, err
	}
	return u, nil
}

// Build registers every record of the level in output order.
func (l *Level) Build() (*symbols.Unit, error) {
	b := &builder{l: l, u: symbols.NewUnit(), p: l.Prefix(), ids: map[string]string{}, taken: map[string]bool{}}
	b.links()
	steps := []func() error{
		b.world,
		b.cameras,
		b.anims,
		b.camPath,
		b.lights,
		b.meshes,
		b.meshList,
		b.angles,
		b.nodes,
		b.pointers,
		b.sounds,
		b.level,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return b.u, nil
}

type builder struct {
	l *Level
	u *symbols.Unit
	p string

	ids   map[string]string // object name -> identifier fragment
	taken map[string]bool
}

// ident returns the cleaned identifier of an object name. Names that clean
// to a fragment already in use, like "A.B" after "A_B", get a "_N" suffix.
func (b *builder) ident(obj string) string {
	if id, ok := b.ids[obj]; ok {
		return id
	}
	base := symbols.CleanName(obj)
	id := base
	for i := 1; b.taken[id]; i++ {
		id = fmt.Sprintf("%s_%d", base, i)
	}
	b.ids[obj] = id
	b.taken[id] = true
	return id
}

func (b *builder) mesh(obj string) string     { return b.p + "_mesh" + b.ident(obj) }
func (b *builder) model(obj string) string    { return b.p + "_model" + b.ident(obj) }
func (b *builder) node(plane string) string   { return b.p + "_node" + b.ident(plane) }
func (b *builder) camPos(cam string) string   { return b.p + "_camPos_" + b.ident(cam) }
func (b *builder) camAngle(cam string) string { return b.p + "_camAngle_" + b.ident(cam) }

// define registers sym with an initializer rendered at output time.
func (b *builder) define(sym symbols.Symbol, init func(r *symbols.Resolver) string) error {
	return b.u.Define(sym, func(r *symbols.Resolver) string {
		return sym.Decl() + " = " + init(r) + ";\n\n"
	})
}

// addr is Resolver.Addr for references that may legitimately be absent.
func (b *builder) addr(r *symbols.Resolver, name string) string {
	if name == "" || !b.u.Table().Has(name) {
		return "0"
	}
	return r.Addr(name)
}

func (b *builder) unique(name string) string {
	if !b.u.Table().Has(name) {
		return name
	}
	for i := 1; ; i++ {
		n := fmt.Sprintf("%s_%d", name, i)
		if !b.u.Table().Has(n) {
			return n
		}
	}
}

// links records the owning node of every rigid body.
func (b *builder) links() {
	g := b.l.Graph
	if g == nil {
		return
	}
	for _, n := range g.Nodes {
		for _, name := range n.Rigid {
			if idx, ok := g.Owner(name); ok {
				b.u.Link(nodeKey(name), b.node(g.Nodes[idx].Plane.Name))
			}
		}
	}
}

func nodeKey(obj string) string {
	return "node:" + obj
}

func vec(v [3]int) string {
	return fmt.Sprintf("{ %d,%d,%d,0 }", v[0], v[1], v[2])
}

// block renders "{\n<indent>a,\n<indent>b\n<outdent>}".
func block(items []string, depth int) string {
	if len(items) == 0 {
		items = []string{"0"}
	}
	in := strings.Repeat("\t", depth)
	out := strings.Repeat("\t", depth-1)
	return "{\n" + in + strings.Join(items, ",\n"+in) + "\n" + out + "}"
}

func (b *builder) world() error {
	l := b.l
	err := b.define(symbols.Sym("CVECTOR", b.p+"_BGc"), func(*symbols.Resolver) string {
		return fmt.Sprintf("{ %d, %d, %d, 0 }", l.Horizon[0], l.Horizon[1], l.Horizon[2])
	})
	if err != nil {
		return err
	}
	return b.define(symbols.Sym("VECTOR", b.p+"_BKc"), func(*symbols.Resolver) string {
		return fmt.Sprintf("{ %d, %d, %d, 0 }", l.Ambient[0], l.Ambient[1], l.Ambient[2])
	})
}

func (b *builder) cameras() error {
	for _, c := range b.l.Cameras {
		c := c
		err := b.define(symbols.Sym("CAMPOS", b.camPos(c.Name)), func(*symbols.Resolver) string {
			return block([]string{vec(c.Position), vec(c.Rotation)}, 1)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) anims() error {
	for _, rec := range b.l.Meshes {
		set := b.l.Anims[rec.Object]
		if set == nil || len(set.Clips) == 0 {
			continue
		}
		var strips []string
		for _, clip := range set.Clips {
			name := b.unique(b.model(rec.Object) + "_anim_" + symbols.CleanName(clip.Name))
			if err := b.u.Define(symbols.Sym("VANIM", name), vanim(name, clip)); err != nil {
				return err
			}
			strips = append(strips, name)
		}
		tracks := b.model(rec.Object) + "_anims"
		err := b.define(symbols.Sym("MESH_ANIMS_TRACKS", tracks), func(r *symbols.Resolver) string {
			refs := make([]string, len(strips))
			for i, s := range strips {
				refs[i] = r.Addr(s)
			}
			return fmt.Sprintf("{\n\t%d,\n\t%s\n}", len(refs), block(refs, 2))
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func vanim(name string, c *anim.Clip) symbols.RenderFunc {
	return func(*symbols.Resolver) string {
		var s strings.Builder
		fmt.Fprintf(&s, "VANIM %s = {\n", name)
		fmt.Fprintf(&s, "\t%d, // frames\n", c.Frames)
		fmt.Fprintf(&s, "\t%d, // vertices\n", c.Verts)
		fmt.Fprintf(&s, "\t%d, // cursor\n", c.Cursor)
		fmt.Fprintf(&s, "\t%d, // lerp cursor\n", c.LerpCursor)
		fmt.Fprintf(&s, "\t%d, // loop\n", c.Loop)
		fmt.Fprintf(&s, "\t%d, // direction\n", c.Dir)
		fmt.Fprintf(&s, "\t%d, // ping pong\n", c.PingPong)
		lerp := 0
		if c.Interpolate {
			lerp = 1
		}
		fmt.Fprintf(&s, "\t%d, // interpolate\n", lerp)
		s.WriteString("\t{\n")
		if len(c.Data) == 0 {
			s.WriteString("\t\t{ 0 }\n")
		}
		for i, v := range c.Data {
			if c.Verts > 0 && i%c.Verts == 0 {
				fmt.Fprintf(&s, "\t\t// frame %d\n", i/c.Verts)
			}
			fmt.Fprintf(&s, "\t\t{ %d,%d,%d }", v[0], v[1], v[2])
			if i < len(c.Data)-1 {
				s.WriteString(",")
			}
			s.WriteString("\n")
		}
		s.WriteString("\t}\n};\n\n")
		return s.String()
	}
}

func (b *builder) camPath() error {
	pts := b.l.CamPath
	return b.define(symbols.Sym("CAMPATH", b.p+"_camPath"), func(*symbols.Resolver) string {
		items := make([]string, len(pts))
		for i, pt := range pts {
			items[i] = vec(pt)
		}
		return fmt.Sprintf("{\n\t%d,\n\t0,\n\t0,\n\t%s\n}", len(pts), block(items, 2))
	})
}

// MaxLights is the number of light sources the target can use.
const MaxLights = 3

func (b *builder) lights() error {
	var lights [MaxLights]Light
	n := copy(lights[:], b.l.Lights)

	err := b.u.Define(symbols.Sym("MATRIX", b.p+"_lgtmat"), func(*symbols.Resolver) string {
		var s strings.Builder
		fmt.Fprintf(&s, "MATRIX %s_lgtmat = {\n", b.p)
		for i, lt := range lights {
			d := lt.Direction
			fmt.Fprintf(&s, "\t%d, %d, %d", d[0], d[1], d[2])
			if i < MaxLights-1 {
				s.WriteString(",")
			}
			if i < n {
				fmt.Fprintf(&s, " // L%d", i+1)
			}
			s.WriteString("\n")
		}
		s.WriteString("\t};\n\n")
		return s.String()
	})
	if err != nil {
		return err
	}

	return b.u.Define(symbols.Sym("MATRIX", b.p+"_cmat"), func(*symbols.Resolver) string {
		var s strings.Builder
		fmt.Fprintf(&s, "MATRIX %s_cmat = {\n", b.p)
		s.WriteString("//   L1   L2   L3\n")
		for ch, label := range []string{"R", "G", "B"} {
			sep := ","
			if ch == 2 {
				sep = " "
			}
			fmt.Fprintf(&s, "\t%d, %d, %d%s // %s\n",
				lights[0].Color[ch], lights[1].Color[ch], lights[2].Color[ch], sep, label)
		}
		s.WriteString("\t};\n\n")
		return s.String()
	})
}

func (b *builder) meshes() error {
	for _, rec := range b.l.Meshes {
		if err := b.meshRecord(rec); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) meshRecord(rec *geometry.Record) error {
	model := b.model(rec.Object)

	verts := make([]string, len(rec.Vertices))
	for i, v := range rec.Vertices {
		verts[i] = vec(v)
	}
	if err := b.define(symbols.Array("SVECTOR", model+"_mesh"), static(block(verts, 1))); err != nil {
		return err
	}

	normals := make([]string, len(rec.Normals))
	for i, n := range rec.Normals {
		normals[i] = fmt.Sprintf("%d,%d,%d, 0", n[0], n[1], n[2])
	}
	if err := b.define(symbols.Array("SVECTOR", model+"_normal"), static(block(normals, 1))); err != nil {
		return err
	}

	if rec.UVs != nil {
		uvs := make([]string, len(rec.UVs))
		for i, uv := range rec.UVs {
			uvs[i] = fmt.Sprintf("%d,%d, 0, 0", uv[0], uv[1])
		}
		if err := b.define(symbols.Array("SVECTOR", model+"_uv"), static(block(uvs, 1))); err != nil {
			return err
		}
	}

	colors := make([]string, len(rec.Colors))
	for i, c := range rec.Colors {
		colors[i] = fmt.Sprintf("%d, %d, %d, 0", c[0], c[1], c[2])
	}
	if err := b.define(symbols.Array("CVECTOR", model+"_color"), static(block(colors, 1))); err != nil {
		return err
	}

	prims := make([]string, len(rec.Prims))
	for i, p := range rec.Prims {
		o := p.Order
		prims[i] = fmt.Sprintf("{ { %d,%d,%d,%d }, %d }", o[0], o[1], o[2], o[3], p.Code)
	}
	if err := b.define(symbols.Array("PRIM", model+"_index"), static(block(prims, 1))); err != nil {
		return err
	}

	err := b.define(symbols.Sym("BODY", model+"_body"), static(fmt.Sprintf(
		"{\n\t{0, 0, 0, 0},\n\t%d,%d,%d, 0,\n\t%d,%d,%d, 0,\n\t%d,\n\tONE/%d,\n\t%d,%d,%d, 0,\n\t%d,%d,%d, 0,\n\t%d\n\t}",
		rec.Position[0], rec.Position[1], rec.Position[2],
		rec.Rotation[0], rec.Rotation[1], rec.Rotation[2],
		rec.Mass, rec.Mass,
		rec.Min[0], rec.Min[1], rec.Min[2],
		rec.Max[0], rec.Max[1], rec.Max[2],
		rec.Restitution,
	)))
	if err != nil {
		return err
	}

	hasUV := rec.UVs != nil
	err = b.define(symbols.Sym("TMESH", model), func(r *symbols.Resolver) string {
		uv := "0"
		if hasUV {
			uv = r.Ref(model + "_uv")
		}
		return fmt.Sprintf("{\n\t%s,\n\t%s,\n\t%s,\n\t%s,\n\t%d\n}",
			r.Ref(model+"_mesh"), r.Ref(model+"_normal"), uv, r.Ref(model+"_color"), len(rec.Prims))
	})
	if err != nil {
		return err
	}

	tim, timData, err := b.texture(rec)
	if err != nil {
		return err
	}

	tracks := b.model(rec.Object) + "_anims"
	return b.define(symbols.Sym("MESH", b.mesh(rec.Object)), func(r *symbols.Resolver) string {
		var s strings.Builder
		fmt.Fprintf(&s, "{\n\t%d,\n", len(rec.Vertices))
		fmt.Fprintf(&s, "\t%s,\n", r.Addr(model))
		fmt.Fprintf(&s, "\t%s,\n", r.Ref(model+"_index"))
		if tim != "" {
			fmt.Fprintf(&s, "\t%s,\n\t%s,\n", r.Addr(tim), r.Ref(timData))
		} else {
			s.WriteString("\t0,\n\t0,\n")
		}
		s.WriteString("\t{0}, // matrix\n")
		fmt.Fprintf(&s, "\t%s, // position\n", vec(rec.Position))
		fmt.Fprintf(&s, "\t%s, // rotation\n", vec(rec.Rotation))
		for _, f := range geometry.FlagOrder {
			fmt.Fprintf(&s, "\t%d, // %s\n", rec.Flags.Int(f.Flag), f.Name)
		}
		s.WriteString("\t0, // p\n\t0, // otz\n")
		fmt.Fprintf(&s, "\t%s,\n", r.Addr(model+"_body"))
		fmt.Fprintf(&s, "\t%s, // anim tracks\n", b.addr(r, tracks))
		s.WriteString("\t0, // current anim\n")
		fmt.Fprintf(&s, "\t%s, // node\n", r.Link(nodeKey(rec.Object)))
		s.WriteString("\t{0} // screen position\n}")
		return s.String()
	})
}

// texture declares the TIM symbols of rec's texture once per prefix and
// returns the TIM_IMAGE and data names, or empty names when the texture
// was not placed in VRAM.
func (b *builder) texture(rec *geometry.Record) (string, string, error) {
	if rec.Texture == nil {
		return "", "", nil
	}
	prefix := symbols.TexturePrefix(rec.Texture.Name)
	pl, ok := b.l.Textures[prefix]
	if !ok {
		return "", "", nil
	}
	image := b.p + "_tim_" + prefix
	start := "_binary_TIM_" + prefix + "_tim_start"
	if b.u.Table().Has(image) {
		return image, start, nil
	}
	if err := b.timExterns("_binary_TIM_" + prefix); err != nil {
		return "", "", err
	}
	err := b.u.Define(symbols.Sym("TIM_IMAGE", image), func(*symbols.Resolver) string {
		return fmt.Sprintf("TIM_IMAGE %s; // %dbpp at %d,%d, CLUT at %d,%d\n\n",
			image, pl.BPP, pl.X, pl.Y, pl.CLUTX, pl.CLUTY)
	})
	return image, start, err
}

func (b *builder) timExterns(stem string) error {
	for _, sym := range []symbols.Symbol{
		symbols.Array("unsigned long", stem+"_tim_start"),
		symbols.Array("unsigned long", stem+"_tim_end"),
		symbols.Sym("unsigned long", stem+"_tim_length"),
	} {
		if err := b.u.Extern(sym); err != nil {
			return err
		}
	}
	return nil
}

func static(init string) func(*symbols.Resolver) string {
	return func(*symbols.Resolver) string { return init }
}

func (b *builder) meshList() error {
	names := make([]string, len(b.l.Meshes))
	for i, rec := range b.l.Meshes {
		names[i] = b.mesh(rec.Object)
	}
	size := len(names)
	if size == 0 {
		size = 1
	}
	sym := symbols.Symbol{Type: "MESH *", Name: b.p + "_meshes", Suffix: fmt.Sprintf("[%d]", size)}
	err := b.define(sym, func(r *symbols.Resolver) string {
		refs := make([]string, len(names))
		for i, n := range names {
			refs[i] = r.Addr(n)
		}
		return block(refs, 1)
	})
	if err != nil {
		return err
	}
	return b.define(symbols.Sym("int", b.p+"_meshes_length"), static(fmt.Sprint(len(names))))
}

func quad(q *visibility.Quad) string {
	items := make([]string, 4)
	for i := range items {
		if q == nil {
			items[i] = "{ 0, 0, 0, 0 }"
			continue
		}
		items[i] = fmt.Sprintf("{ %d, %d, %d, 0 }", q[i][0], q[i][1], q[i][2])
	}
	return block(items, 2)
}

func (b *builder) angles() error {
	var names []string
	for _, c := range b.l.Cameras {
		c := c
		bg := ""
		if c.Background {
			stem := "_binary_TIM_bg_" + symbols.CleanName(c.Name)
			if err := b.timExterns(stem); err != nil {
				return err
			}
			bg = b.p + "_tim_bg_" + symbols.CleanName(c.Name)
			if err := b.u.Define(symbols.Sym("TIM_IMAGE", bg), func(*symbols.Resolver) string {
				return "TIM_IMAGE " + bg + ";\n\n"
			}); err != nil {
				return err
			}
		}

		name := b.camAngle(c.Name)
		names = append(names, name)
		err := b.define(symbols.Sym("CAMANGLE", name), func(r *symbols.Resolver) string {
			var s strings.Builder
			fmt.Fprintf(&s, "{\n\t%s,\n", r.Addr(b.camPos(c.Name)))
			if bg != "" {
				fmt.Fprintf(&s, "\t%s,\n\t%s,\n", r.Addr(bg), r.Ref("_binary_TIM_bg_"+symbols.CleanName(c.Name)+"_tim_start"))
			} else {
				s.WriteString("\t0,\n\t0,\n")
			}
			s.WriteString("\t// quads NW, NE, SE, SW\n")
			for i := range c.Angle.Quads {
				var q *visibility.Quad
				if c.Angle.Portals[i] != nil {
					q = &c.Angle.Quads[i]
				}
				fmt.Fprintf(&s, "\t%s,\n", quad(q))
			}
			refs := make([]string, len(c.Angle.Visible))
			for i, o := range c.Angle.Visible {
				refs[i] = r.Addr(b.mesh(o.Name))
			}
			fmt.Fprintf(&s, "\t%d,\n\t%s\n}", len(refs), block(refs, 2))
			return s.String()
		})
		if err != nil {
			return err
		}
	}

	size := len(names)
	if size == 0 {
		size = 1
	}
	sym := symbols.Symbol{Type: "CAMANGLE *", Name: b.p + "_camAngles", Suffix: fmt.Sprintf("[%d]", size)}
	return b.define(sym, func(r *symbols.Resolver) string {
		refs := make([]string, len(names))
		for i, n := range names {
			refs[i] = r.Addr(n)
		}
		return block(refs, 1)
	})
}

func (b *builder) children(name string, objs []string) error {
	return b.define(symbols.Sym("CHILDREN", name), func(r *symbols.Resolver) string {
		refs := make([]string, len(objs))
		for i, o := range objs {
			refs[i] = r.Addr(b.mesh(o))
		}
		return fmt.Sprintf("{\n\t%d,\n\t%s\n}", len(refs), block(refs, 2))
	})
}

func (b *builder) nodes() error {
	g := b.l.Graph
	if g == nil {
		return nil
	}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		node := b.node(n.Plane.Name)

		err := b.define(symbols.Sym("SIBLINGS", node+"_siblings"), func(r *symbols.Resolver) string {
			refs := make([]string, len(n.Siblings))
			for i, e := range n.Siblings {
				refs[i] = r.Addr(b.node(g.Nodes[e.Node].Plane.Name))
			}
			return fmt.Sprintf("{\n\t%d,\n\t%s\n}", len(refs), block(refs, 2))
		})
		if err != nil {
			return err
		}
		if err := b.children(node+"_objects", n.Statics); err != nil {
			return err
		}
		if err := b.children(node+"_rigidbodies", n.Rigid); err != nil {
			return err
		}
		err = b.define(symbols.Sym("NODE", node), func(r *symbols.Resolver) string {
			return fmt.Sprintf("{\n\t%s,\n\t%s,\n\t%s,\n\t%s\n}",
				r.Addr(b.mesh(n.Plane.Name)), r.Addr(node+"_siblings"),
				r.Addr(node+"_objects"), r.Addr(node+"_rigidbodies"))
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) rootNode() string {
	if g := b.l.Graph; g != nil {
		if root := g.RootNode(); root != nil {
			return b.node(root.Plane.Name)
		}
	}
	return ""
}

func (b *builder) pointers() error {
	meshPtr := func(name, obj string) error {
		return b.define(symbols.Sym("MESH *", b.p+name), func(r *symbols.Resolver) string {
			if obj == "" {
				return "0"
			}
			return r.Addr(b.mesh(obj))
		})
	}
	if err := meshPtr("_actorPtr", b.l.Actor); err != nil {
		return err
	}
	if err := meshPtr("_levelPtr", b.l.LevelMesh); err != nil {
		return err
	}
	if err := meshPtr("_propPtr", b.l.Prop); err != nil {
		return err
	}
	err := b.define(symbols.Sym("CAMANGLE *", b.p+"_camPtr"), func(r *symbols.Resolver) string {
		if b.l.DefaultCamera == "" {
			return "0"
		}
		return r.Addr(b.camAngle(b.l.DefaultCamera))
	})
	if err != nil {
		return err
	}
	root := b.rootNode()
	return b.define(symbols.Sym("NODE *", b.p+"_curNode"), func(r *symbols.Resolver) string {
		return b.addr(r, root)
	})
}

func (b *builder) sounds() error {
	if len(b.l.VAG) > 0 {
		if err := b.vagBank(); err != nil {
			return err
		}
	}
	if len(b.l.XA) > 0 {
		if err := b.xaFiles(); err != nil {
			return err
		}
	}
	if len(b.l.Sounds) == 0 {
		return nil
	}

	var objs []string
	for _, e := range b.l.Sounds {
		e := e
		name := b.unique(b.p + "_" + symbols.CleanName(e.Object))
		objs = append(objs, name)
		err := b.define(symbols.Sym("SOUND_OBJECT", name), func(r *symbols.Resolver) string {
			vol := e.Volumes()
			vag, xa := "0", "0"
			switch {
			case e.XA && e.Size >= 0 && e.Index >= 0:
				xa = r.Member(fmt.Sprintf("%s_XABank_%d", b.p, e.File), fmt.Sprintf(".samples[%d]", e.Index))
			case !e.XA && e.Index >= 0:
				vag = r.Member(b.p+"_VAGBank", fmt.Sprintf(".samples[%d]", e.Index))
			}
			parent := "0"
			if e.Parent != "" {
				parent = r.Addr(b.mesh(e.Parent))
			}
			return fmt.Sprintf("{\n\t%s,\n\t%d, %d, %d, %d,\n\t%s,\n\t%s,\n\t%s\n}",
				vec(math.Remap(e.Location, b.l.Scale)), vol[0], vol[1], vol[2], vol[3], vag, xa, parent)
		})
		if err != nil {
			return err
		}
	}
	return b.define(symbols.Sym("LEVEL_SOUNDS", b.p+"_sounds"), func(r *symbols.Resolver) string {
		refs := make([]string, len(objs))
		for i, o := range objs {
			refs[i] = r.Addr(o)
		}
		return fmt.Sprintf("{\n\t%d,\n\t%s\n}", len(refs), block(refs, 2))
	})
}

func (b *builder) vagBank() error {
	for _, s := range b.l.VAG {
		stem := "_binary_VAG_" + s.Name + "_vag_start"
		if b.u.Table().Has(stem) {
			continue
		}
		if err := b.u.Extern(symbols.Sym("u_char", stem)); err != nil {
			return err
		}
	}
	bank := b.l.VAG
	return b.define(symbols.Sym("VAGbank", b.p+"_VAGBank"), func(r *symbols.Resolver) string {
		items := make([]string, len(bank))
		for i, s := range bank {
			items[i] = fmt.Sprintf("{ %s, SPU_%02dCH, 0 }", r.Addr("_binary_VAG_"+s.Name+"_vag_start"), s.Voice)
		}
		return fmt.Sprintf("{\n\t%d,\n\t%s\n}", len(items), block(items, 2))
	})
}

func (b *builder) xaFiles() error {
	var banks []string
	for i, emitters := range b.l.XA {
		i, emitters := i, emitters
		name := fmt.Sprintf("%s_XABank_%d", b.p, i)
		banks = append(banks, name)
		err := b.define(symbols.Sym("XAbank", name), func(*symbols.Resolver) string {
			items := make([]string, len(emitters))
			for j, e := range emitters {
				items[j] = fmt.Sprintf("{ %d, %d, %d, %d, 0, %d * XA_CHANNELS, -1 }",
					e.Index, e.Size, e.File, e.Channel, e.End)
			}
			return fmt.Sprintf("{\n\t\"\\\\INTER_%d.XA;1\",\n\t%d,\n\t0,\n\t%s\n}", i, len(items), block(items, 2))
		})
		if err != nil {
			return err
		}
	}
	return b.define(symbols.Sym("XAfiles", b.p+"_XAFiles"), func(r *symbols.Resolver) string {
		refs := make([]string, len(banks))
		for i, n := range banks {
			refs[i] = r.Addr(n)
		}
		return fmt.Sprintf("{\n\t%d,\n\t%s\n}", len(refs), block(refs, 2))
	})
}

func (b *builder) level() error {
	l := b.l
	root := b.rootNode()
	return b.define(symbols.Sym("LEVEL", b.p), func(r *symbols.Resolver) string {
		fields := []string{
			r.Addr(b.p + "_BGc"),
			r.Addr(b.p + "_BKc"),
			r.Addr(b.p + "_cmat"),
			r.Addr(b.p + "_lgtmat"),
			r.Ref(b.p + "_meshes"),
			r.Addr(b.p + "_meshes_length"),
			b.objAddr(r, l.Actor, b.mesh),
			b.objAddr(r, l.LevelMesh, b.mesh),
			b.objAddr(r, l.Prop, b.mesh),
			b.objAddr(r, l.DefaultCamera, b.camAngle),
			r.Addr(b.p + "_camPath"),
			r.Ref(b.p + "_camAngles"),
			b.addr(r, root),
			b.addr(r, b.p+"_sounds"),
			b.addr(r, b.p+"_VAGBank"),
			b.addr(r, b.p+"_XAFiles"),
		}
		return block(fields, 1)
	})
}

func (b *builder) objAddr(r *symbols.Resolver, obj string, name func(string) string) string {
	if obj == "" {
		return "0"
	}
	return r.Addr(name(obj))
}
