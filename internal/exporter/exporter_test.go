package exporter

import (
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/Faultbox/psxexport/internal/config"
	"github.com/Faultbox/psxexport/pkg/math"
	"github.com/Faultbox/psxexport/pkg/scene"
)

// fakeRunner stands in for the external tools. img2tim writes a TIM header
// for the requested placement, shifted by offset; psxavenc writes an XA
// file of four sectors.
type fakeRunner struct {
	calls  []string
	offset int
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	f.calls = append(f.calls, name)
	switch name {
	case "img2tim":
		return f.tim(args)
	case "psxavenc":
		out := args[len(args)-1]
		return os.WriteFile(out, make([]byte, 4*2336), 0o644)
	}
	return nil
}

func (f *fakeRunner) tim(args []string) error {
	var bpp, x, y, cx, cy int
	var out string
	for i := 0; i < len(args)-1; i++ {
		switch args[i] {
		case "-bpp":
			bpp, _ = strconv.Atoi(args[i+1])
		case "-org":
			x, _ = strconv.Atoi(args[i+1])
			y, _ = strconv.Atoi(args[i+2])
		case "-plt":
			cx, _ = strconv.Atoi(args[i+1])
			cy, _ = strconv.Atoi(args[i+2])
		case "-o":
			out = args[i+1]
		}
	}
	return os.WriteFile(out, timHeader(bpp, x+f.offset, y, cx, cy), 0o644)
}

func (f *fakeRunner) called(name string) bool {
	for _, c := range f.calls {
		if c == name {
			return true
		}
	}
	return false
}

// timHeader builds a TIM with a CLUT and an empty 64x64 image.
func timHeader(bpp, x, y, cx, cy int) []byte {
	mode := uint32(1)
	if bpp == 4 {
		mode = 0
	}
	var buf []byte
	u32 := func(v uint32) { buf = binary.LittleEndian.AppendUint32(buf, v) }
	u16 := func(v int) { buf = binary.LittleEndian.AppendUint16(buf, uint16(v)) }

	u32(0x10)
	u32(mode | 8)
	u32(12)
	u16(cx)
	u16(cy)
	u16(0)
	u16(1)
	u32(12)
	u16(x)
	u16(y)
	u16(0)
	u16(64)
	return buf
}

func quad(name string, x1, y1, x2, y2, z float64, data scene.Props) *scene.Object {
	return &scene.Object{
		Name: name,
		Type: scene.TypeMesh,
		Data: data,
		Mesh: &scene.Mesh{
			Vertices: []math.Vec3{
				{X: x1, Y: y1, Z: z}, {X: x2, Y: y1, Z: z},
				{X: x2, Y: y2, Z: z}, {X: x1, Y: y2, Z: z},
			},
			Polygons: [][]int{{0, 1, 2, 3}},
		},
	}
}

func camera(name string) *scene.Object {
	return &scene.Object{
		Name:     name,
		Type:     scene.TypeCamera,
		Location: math.Vec3{X: 5, Y: -10, Z: 5},
		Rotation: math.Vec3{X: 1.2},
		Camera:   &scene.Camera{},
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Export.ReducePalette = false
	return cfg
}

func export(t *testing.T, cfg *config.Config, runner *fakeRunner, dir string, objs ...*scene.Object) (*Report, string) {
	t.Helper()
	s := scene.New("test")
	for _, o := range objs {
		s.Add(o)
	}
	if err := s.Link(); err != nil {
		t.Fatalf("Link: %v", err)
	}
	c, err := NewContext(cfg, s, dir, runner)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	rep, err := Export(context.Background(), c)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "levels", "level0.c"))
	if err != nil {
		t.Fatalf("reading level: %v", err)
	}
	return rep, string(data)
}

// section returns the definition starting at prefix, up to its closing "};".
func section(c, prefix string) string {
	i := strings.Index(c, prefix)
	if i < 0 {
		return ""
	}
	end := strings.Index(c[i:], "};")
	if end < 0 {
		return c[i:]
	}
	return c[i : i+end+2]
}

func TestExportOnePlane(t *testing.T) {
	dir := t.TempDir()
	rep, c := export(t, testConfig(), &fakeRunner{}, dir,
		quad("Floor", 0, 0, 10, 10, 0, scene.Props{"isLevel": true}),
		quad("Actor", 4, 4, 5, 5, 0.5, scene.Props{"isActor": true}),
		quad("Crate", 2, 2, 3, 3, 0.5, scene.Props{"isProp": true}),
		camera("Cam"),
	)

	for _, f := range []string{"custom_types.h", "levels/level0.h", "levels/level0.c"} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Errorf("expected %s to be written: %v", f, err)
		}
	}
	if len(rep.Unresolved) != 0 {
		t.Errorf("expected no unresolved symbols, got %v", rep.Unresolved)
	}
	if rep.Level != "level0" {
		t.Errorf("expected level0, got %s", rep.Level)
	}
	if rep.Bytes == 0 {
		t.Error("expected a non-zero output size")
	}

	if sib := section(c, "SIBLINGS level0_nodeFloor_siblings"); !strings.Contains(sib, "\t0,\n") {
		t.Errorf("expected no siblings:\n%s", sib)
	}
	if objs := section(c, "CHILDREN level0_nodeFloor_objects"); !strings.Contains(objs, "\t1,\n\t{\n\t\t&level0_meshCrate\n\t}") {
		t.Errorf("expected the prop as the only child:\n%s", objs)
	}
	for _, want := range []string{
		"MESH * level0_actorPtr = &level0_meshActor;",
		"MESH * level0_levelPtr = &level0_meshFloor;",
		"MESH * level0_propPtr = &level0_meshCrate;",
		"CAMANGLE * level0_camPtr = &level0_camAngle_Cam;",
		"NODE * level0_curNode = &level0_nodeFloor;",
	} {
		if !strings.Contains(c, want) {
			t.Errorf("expected %q", want)
		}
	}
	if level := section(c, "LEVEL level0 ="); !strings.HasSuffix(strings.TrimSpace(level), "\t0,\n\t0,\n\t0\n};") {
		t.Errorf("expected null sound fields:\n%s", level)
	}
}

func TestExportTwoPlanes(t *testing.T) {
	_, c := export(t, testConfig(), &fakeRunner{}, t.TempDir(),
		quad("Floor", 0, 0, 10, 10, 0, scene.Props{"isLevel": true}),
		quad("Hall", 10, 0, 20, 10, 0, scene.Props{"isLevel": true}),
		quad("Actor", 14, 4, 15, 5, 0.5, scene.Props{"isActor": true}),
	)

	tests := []struct {
		node, sibling string
	}{
		{"Floor", "Hall"},
		{"Hall", "Floor"},
	}
	for _, tt := range tests {
		sib := section(c, "SIBLINGS level0_node"+tt.node+"_siblings")
		want := "\t1,\n\t{\n\t\t&level0_node" + tt.sibling + "\n\t}"
		if !strings.Contains(sib, want) {
			t.Errorf("expected %s to have sibling %s:\n%s", tt.node, tt.sibling, sib)
		}
	}
	if !strings.Contains(c, "NODE * level0_curNode = &level0_nodeHall;") {
		t.Error("expected the actor's plane as current node")
	}
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
}

func texturedWall() *scene.Object {
	wall := quad("Wall", 0, 0, 1, 1, 0, nil)
	wall.Mesh.UVs = []math.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	wall.Mesh.Texture = &scene.Texture{Name: "brick-wall.png"}
	return wall
}

func TestExportTexture(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "TEX", "brick-wall.png"), 64, 64)

	runner := &fakeRunner{}
	rep, c := export(t, testConfig(), runner, dir, texturedWall())

	if rep.Textures != 1 {
		t.Errorf("expected 1 texture, got %d", rep.Textures)
	}
	if rep.Warnings != nil {
		t.Errorf("expected no warnings, got %v", rep.Warnings)
	}
	if !runner.called("img2tim") {
		t.Error("expected img2tim to run")
	}
	if _, err := os.Stat(filepath.Join(dir, DefaultTIMDir, "brick_wall.tim")); err != nil {
		t.Errorf("expected TIM output: %v", err)
	}
	if !strings.Contains(c, "TIM_IMAGE level0_tim_brick_wall; // 8bpp at 320,0, CLUT at 0,480") {
		t.Errorf("expected TIM image record in:\n%s", c)
	}
}

func TestExportTIMMismatchWarns(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "TEX", "brick-wall.png"), 64, 64)

	rep, _ := export(t, testConfig(), &fakeRunner{offset: 64}, dir, texturedWall())
	if !errors.Is(rep.Warnings, ErrTIMMismatch) {
		t.Errorf("expected ErrTIMMismatch warning, got %v", rep.Warnings)
	}
}

func TestExportMissingTextureWarns(t *testing.T) {
	rep, c := export(t, testConfig(), &fakeRunner{}, t.TempDir(), texturedWall())
	if !errors.Is(rep.Warnings, ErrTextureMissing) {
		t.Errorf("expected ErrTextureMissing warning, got %v", rep.Warnings)
	}
	if rep.Textures != 0 {
		t.Errorf("expected no textures, got %d", rep.Textures)
	}
	if strings.Contains(c, "TIM_IMAGE") {
		t.Error("expected no TIM records")
	}
}

func TestExportSounds(t *testing.T) {
	dir := t.TempDir()
	iso := "<iso_project>\n\t\t\t<dummy sectors=\"1024\"/>\n</iso_project>\n"
	if err := os.WriteFile(filepath.Join(dir, "isoconfig.xml"), []byte(iso), 0o644); err != nil {
		t.Fatal(err)
	}
	speaker := func(name, sound string, xa bool) *scene.Object {
		return &scene.Object{
			Name:    name,
			Type:    scene.TypeSpeaker,
			Data:    scene.Props{"isXA": xa},
			Speaker: &scene.Speaker{Sound: sound, Volume: 1, VolumeMax: 1},
		}
	}

	runner := &fakeRunner{}
	rep, c := export(t, testConfig(), runner, dir,
		speaker("Step", "sfx/step.ogg", false),
		speaker("Music", "music/theme.ogg", true),
	)
	if rep.Warnings != nil {
		t.Errorf("expected no warnings, got %v", rep.Warnings)
	}
	for _, tool := range []string{"wav2vag", "psxavenc", "xainterleave"} {
		if !runner.called(tool) {
			t.Errorf("expected %s to run", tool)
		}
	}
	for _, want := range []string{"VAGbank level0_VAGBank", "XAbank level0_XABank_0", "LEVEL_SOUNDS level0_sounds"} {
		if !strings.Contains(c, want) {
			t.Errorf("expected %q", want)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "isoconfig.xml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "INTER_0.XA") {
		t.Errorf("expected ISO config entry, got:\n%s", data)
	}
}

func TestNewContextFolderOverride(t *testing.T) {
	cfg := testConfig()
	out := t.TempDir()
	cfg.Export.Folder = out

	src := t.TempDir()
	c, err := NewContext(cfg, scene.New("x"), src, &fakeRunner{})
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if c.Dir != out {
		t.Errorf("expected export folder %s, got %s", out, c.Dir)
	}
	if c.Source != src {
		t.Errorf("expected source folder %s, got %s", src, c.Source)
	}
	if c.RunID == "" {
		t.Error("expected a run id")
	}
}

func TestNewContextInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Export.VideoMode = "secam"
	if _, err := NewContext(cfg, scene.New("x"), t.TempDir(), &fakeRunner{}); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}
