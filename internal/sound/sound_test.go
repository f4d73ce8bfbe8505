package sound

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/multierr"

	"github.com/Faultbox/psxexport/pkg/math"
	"github.com/Faultbox/psxexport/pkg/scene"
)

// fakeConverter writes output files of a fixed size, except for sources
// listed in skip.
type fakeConverter struct {
	size        int
	skip        map[string]bool
	interleaved []string
	err         error
}

func (f *fakeConverter) write(src, dst string) error {
	if f.err != nil {
		return f.err
	}
	if f.skip[src] {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, make([]byte, f.size), 0o644)
}

func (f *fakeConverter) XA(_ context.Context, src, dst string, _, _ int) error {
	return f.write(src, dst)
}

func (f *fakeConverter) VAG(_ context.Context, src, dst string) error {
	return f.write(src, dst)
}

func (f *fakeConverter) Interleave(_ context.Context, mode int, manifest, out string) error {
	f.interleaved = append(f.interleaved, manifest)
	return nil
}

func speaker(name, sound string, xa bool) *scene.Object {
	return &scene.Object{
		Name:     name,
		Type:     scene.TypeSpeaker,
		Location: math.Vec3{X: 1, Y: 2, Z: 3},
		Data:     scene.Props{"isXA": xa},
		Speaker:  &scene.Speaker{Sound: sound, Volume: 1, VolumeMin: 0, VolumeMax: 1},
	}
}

func TestXAChannels(t *testing.T) {
	dir := t.TempDir()
	conv := &fakeConverter{size: 2336 * 11}
	b := NewBuilder(conv, Options{Dir: dir, XAMode: 1}, nil)

	for i := 0; i < 10; i++ {
		name := "track" + string(rune('a'+i))
		if err := b.Add(context.Background(), speaker(name, "snd/"+name+".wav", true)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	em := b.Emitters()
	for i, e := range em {
		wantFile, wantChannel := i/8, i%8
		if e.File != wantFile || e.Channel != wantChannel {
			t.Errorf("emitter %d: expected file %d channel %d, got %d %d", i, wantFile, wantChannel, e.File, e.Channel)
		}
		if e.Size != 2336*11 || e.End != 10 {
			t.Errorf("emitter %d: expected size %d end 10, got %d %d", i, 2336*11, e.Size, e.End)
		}
	}

	banks := b.XABanks()
	if len(banks) != 2 || len(banks[0]) != 8 || len(banks[1]) != 2 {
		t.Fatalf("unexpected bank sizes %d", len(banks))
	}
	if banks[1][1].Index != 1 {
		t.Errorf("expected per-bank index 1, got %d", banks[1][1].Index)
	}
}

func TestXASectorSize(t *testing.T) {
	if SectorSize(0) != 2352 || SectorSize(1) != 2336 {
		t.Errorf("unexpected sector sizes %d %d", SectorSize(0), SectorSize(1))
	}
	conv := &fakeConverter{size: 2352 * 4}
	b := NewBuilder(conv, Options{Dir: t.TempDir(), XAMode: 0}, nil)
	if err := b.Add(context.Background(), speaker("A", "a.wav", true)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if e := b.Emitters()[0]; e.End != 3 {
		t.Errorf("expected end 3, got %d", e.End)
	}
}

func TestMissingXAOutput(t *testing.T) {
	conv := &fakeConverter{size: 100, skip: map[string]bool{"gone.wav": true}}
	b := NewBuilder(conv, Options{Dir: t.TempDir(), XAMode: 1}, nil)
	if err := b.Add(context.Background(), speaker("Gone", "gone.wav", true)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	e := b.Emitters()[0]
	if e.Size != -1 || e.End != -1 {
		t.Errorf("expected size and end -1, got %d %d", e.Size, e.End)
	}
	if len(b.XABanks()) != 0 {
		t.Error("expected unresolved sound left out of banks")
	}
	if !errors.Is(b.Warnings(), ErrMissingOutput) {
		t.Errorf("expected ErrMissingOutput warning, got %v", b.Warnings())
	}
}

func TestVAGBank(t *testing.T) {
	conv := &fakeConverter{size: 64}
	b := NewBuilder(conv, Options{Dir: t.TempDir()}, nil)
	ctx := context.Background()

	_ = b.Add(ctx, speaker("Bell1", "sfx/bell.wav", false))
	_ = b.Add(ctx, speaker("Bell2", "other/bell.wav", false))
	for i := 0; i < MaxVoices; i++ {
		_ = b.Add(ctx, speaker("S"+string(rune('A'+i)), "sfx/s"+string(rune('a'+i))+".wav", false))
	}

	bank := b.VAGBank()
	if len(bank) != MaxVoices {
		t.Fatalf("expected %d samples, got %d", MaxVoices, len(bank))
	}
	em := b.Emitters()
	if em[0].Index != 0 || em[1].Index != 0 {
		t.Errorf("expected both bells on voice 0, got %d %d", em[0].Index, em[1].Index)
	}
	if last := em[len(em)-1]; last.Index != -1 {
		t.Errorf("expected last sound without voice, got %d", last.Index)
	}
	if bank[0].Name != "bell" {
		t.Errorf("expected sample name bell, got %s", bank[0].Name)
	}

	errs := multierr.Errors(b.Warnings())
	if len(errs) != 1 || !errors.Is(errs[0], ErrNoVoice) {
		t.Errorf("expected one ErrNoVoice warning, got %v", errs)
	}
}

func TestConverterErrorIsFatal(t *testing.T) {
	boom := errors.New("tool missing")
	b := NewBuilder(&fakeConverter{err: boom}, Options{Dir: t.TempDir()}, nil)
	if err := b.Add(context.Background(), speaker("A", "a.wav", false)); !errors.Is(err, boom) {
		t.Errorf("expected converter error, got %v", err)
	}
}

func TestParent(t *testing.T) {
	s := scene.New("snd")
	box := &scene.Object{Name: "Radio", Type: scene.TypeMesh, Mesh: &scene.Mesh{}}
	spk := speaker("Music", "music.wav", false)
	spk.Parent = "Radio"
	s.Add(box)
	s.Add(spk)
	if err := s.Link(); err != nil {
		t.Fatalf("Link: %v", err)
	}
	b := NewBuilder(&fakeConverter{size: 1}, Options{Dir: t.TempDir()}, nil)
	if err := b.Add(context.Background(), spk); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if p := b.Emitters()[0].Parent; p != "Radio" {
		t.Errorf("expected parent Radio, got %q", p)
	}
}

func TestVolumes(t *testing.T) {
	e := &Emitter{Volume: 1, VolumeMin: 0, VolumeMax: 0.5}
	v := e.Volumes()
	if v != [4]int{0x3FFF, 0x3FFF, 0, 8191} {
		t.Errorf("unexpected volumes %v", v)
	}
}

func TestManifests(t *testing.T) {
	dir := t.TempDir()
	conv := &fakeConverter{size: 2336}
	b := NewBuilder(conv, Options{Dir: dir, XAMode: 1}, nil)
	_ = b.Add(context.Background(), speaker("A", "a.wav", true))
	_ = b.Add(context.Background(), speaker("B", "b.wav", true))

	paths, err := b.WriteManifests(b.XABanks())
	if err != nil {
		t.Fatalf("WriteManifests: %v", err)
	}
	if len(paths) != 1 || filepath.Base(paths[0]) != "inter_0.txt" {
		t.Fatalf("unexpected manifests %v", paths)
	}
	data, _ := os.ReadFile(paths[0])
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 8 {
		t.Fatalf("expected 8 lines, got %d", len(lines))
	}
	want0 := "1 xa " + filepath.Join(dir, "XA", "a.xa") + " 0 0"
	if lines[0] != want0 {
		t.Errorf("expected %q, got %q", want0, lines[0])
	}
	if lines[1] != "1 xa "+filepath.Join(dir, "XA", "b.xa")+" 0 1" {
		t.Errorf("unexpected line %q", lines[1])
	}
	for _, l := range lines[2:] {
		if l != "1 null" {
			t.Errorf("expected padding, got %q", l)
		}
	}

	if err := b.Interleave(context.Background(), paths); err != nil {
		t.Fatalf("Interleave: %v", err)
	}
	if len(conv.interleaved) != 1 {
		t.Errorf("expected one interleave run, got %d", len(conv.interleaved))
	}
}

func TestUpdateISOConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "isoconfig.xml")
	orig := "<iso>\n\t\t<directory_tree>\n\t\t\t<dummy sectors=\"1024\"/>\n\t\t</directory_tree>\n</iso>\n"
	if err := os.WriteFile(path, []byte(orig), 0o644); err != nil {
		t.Fatal(err)
	}

	b := NewBuilder(&fakeConverter{}, Options{Dir: "out"}, nil)
	entry := b.ISOEntry(0)
	if !strings.Contains(entry, `name="INTER_0.XA" type="xa"`) {
		t.Errorf("unexpected entry %q", entry)
	}

	for i := 0; i < 2; i++ {
		ok, err := UpdateISOConfig(path, []string{entry})
		if err != nil || !ok {
			t.Fatalf("UpdateISOConfig: %v %v", ok, err)
		}
	}
	data, _ := os.ReadFile(path)
	s := string(data)
	if strings.Count(s, "INTER_0.XA") != 1 {
		t.Errorf("expected entry once, got:\n%s", s)
	}
	if strings.Index(s, "INTER_0.XA") > strings.Index(s, "<dummy sectors") {
		t.Errorf("expected entry above dummy sectors:\n%s", s)
	}

	ok, err := UpdateISOConfig(filepath.Join(dir, "missing.xml"), []string{entry})
	if ok || err != nil {
		t.Errorf("expected missing config to be skipped, got %v %v", ok, err)
	}
}
