// Package sound assigns speakers to the SPU sample bank (VAG) or to
// interleaved streaming files (XA) and converts their sources.
package sound

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/psxexport/internal/symbols"
	"github.com/Faultbox/psxexport/pkg/math"
	"github.com/Faultbox/psxexport/pkg/scene"
)

// Limits of the target's sound hardware.
const (
	MaxVoices     = 24
	XAChannels    = 8
	SectorXA      = 2336 // mode 1
	SectorXARaw   = 2352 // mode 0
	VolumeScale   = 0x3FFF
	DefaultXADir  = "XA"
	DefaultVAGDir = "VAG"
)

// Warnings collected while building banks.
var (
	ErrNoVoice       = errors.New("no SPU voice left")
	ErrMissingOutput = errors.New("converted sound file not found")
)

// Converter is the external sound conversion service.
type Converter interface {
	XA(ctx context.Context, src, dst string, file, channel int) error
	VAG(ctx context.Context, src, dst string) error
	Interleave(ctx context.Context, mode int, manifest, out string) error
}

// Emitter is one speaker of the scene.
type Emitter struct {
	Object    string
	Name      string // sound file name
	Source    string
	Converted string
	Parent    string // parent mesh object, if any
	Location  math.Vec3
	Volume    float64
	VolumeMin float64
	VolumeMax float64
	XA        bool

	// Index is the slot in the VAG bank or in the XA bank of File; -1 when
	// the sound did not make it into a bank.
	Index   int
	File    int
	Channel int
	Size    int64
	End     int
}

// Volumes returns left, right, min and max volume in SPU units.
func (e *Emitter) Volumes() [4]int {
	v := int(e.Volume * VolumeScale)
	return [4]int{v, v, int(e.VolumeMin * VolumeScale), int(e.VolumeMax * VolumeScale)}
}

// Sample is one entry of the VAG bank.
type Sample struct {
	Name      string // symbol stem of the embedded VAG data
	Converted string
	Voice     int
}

// Options controls the builder.
type Options struct {
	Dir       string // export folder; XA/ and VAG/ are created below it
	SourceDir string // base of relative sound paths
	XAMode    int
}

// Builder collects emitters in scene order.
type Builder struct {
	conv Converter
	opts Options
	log  *zap.Logger

	emitters []*Emitter
	file     int
	channel  int
	warnings error
}

// NewBuilder returns an empty builder.
func NewBuilder(conv Converter, opts Options, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{conv: conv, opts: opts, log: log}
}

// SectorSize returns the XA sector size for the mode.
func SectorSize(mode int) int {
	if mode == 1 {
		return SectorXA
	}
	return SectorXARaw
}

// Add converts the sound of a speaker object and records it.
func (b *Builder) Add(ctx context.Context, o *scene.Object) error {
	if o.Speaker == nil {
		return fmt.Errorf("%s is not a speaker", o.Name)
	}
	e := &Emitter{
		Object:    o.Name,
		Name:      filepath.Base(o.Speaker.Sound),
		Source:    b.source(o.Speaker.Sound),
		Location:  o.Location,
		Volume:    o.Speaker.Volume,
		VolumeMin: o.Speaker.VolumeMin,
		VolumeMax: o.Speaker.VolumeMax,
		XA:        o.Data.Bool("isXA"),
		Index:     -1,
		File:      -1,
		Channel:   -1,
		Size:      -1,
		End:       -1,
	}
	if p := o.ParentObject(); p != nil && p.Type == scene.TypeMesh {
		e.Parent = p.Name
	}
	stem := symbols.BaseName(e.Name)

	if e.XA {
		if b.channel > XAChannels-1 {
			b.file++
			b.channel = 0
		}
		e.File, e.Channel = b.file, b.channel
		b.channel++
		e.Converted = filepath.Join(b.opts.Dir, DefaultXADir, stem+".xa")
		if err := b.conv.XA(ctx, e.Source, e.Converted, e.File, e.Channel); err != nil {
			return err
		}
		if fi, err := os.Stat(e.Converted); err == nil {
			e.Size = fi.Size()
			e.End = int(float64(e.Size)/float64(SectorSize(b.opts.XAMode)) - 1)
		} else {
			b.warn(fmt.Errorf("%w: %s", ErrMissingOutput, e.Converted))
		}
	} else {
		e.Converted = filepath.Join(b.opts.Dir, DefaultVAGDir, stem+".vag")
		if err := b.conv.VAG(ctx, e.Source, e.Converted); err != nil {
			return err
		}
	}

	b.log.Debug("sound added",
		zap.String("object", e.Object),
		zap.Bool("xa", e.XA),
		zap.String("converted", e.Converted))
	b.emitters = append(b.emitters, e)
	return nil
}

func (b *Builder) source(path string) string {
	if b.opts.SourceDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(b.opts.SourceDir, path)
}

func (b *Builder) warn(err error) {
	b.log.Warn("sound", zap.Error(err))
	b.warnings = multierr.Append(b.warnings, err)
}

// Emitters returns every emitter in scene order.
func (b *Builder) Emitters() []*Emitter {
	return b.emitters
}

// VAGBank assigns SPU voices to the distinct VAG samples, in emission
// order. Emitters sharing a converted file share a voice. Samples beyond
// the voice count are dropped with a warning.
func (b *Builder) VAGBank() []Sample {
	var bank []Sample
	seen := make(map[string]int)
	for _, e := range b.emitters {
		if e.XA {
			continue
		}
		if i, ok := seen[e.Converted]; ok {
			e.Index = i
			continue
		}
		if len(bank) == MaxVoices {
			seen[e.Converted] = -1
			b.warn(fmt.Errorf("%w: %s", ErrNoVoice, e.Object))
			continue
		}
		seen[e.Converted] = len(bank)
		e.Index = len(bank)
		bank = append(bank, Sample{
			Name:      symbols.CleanName(symbols.BaseName(e.Name)),
			Converted: e.Converted,
			Voice:     len(bank),
		})
	}
	return bank
}

// XABanks groups the resolved XA emitters by file. Indices are per bank,
// in emission order.
func (b *Builder) XABanks() [][]*Emitter {
	var banks [][]*Emitter
	for _, e := range b.emitters {
		if !e.XA || e.Size < 0 {
			continue
		}
		for len(banks) <= e.File {
			banks = append(banks, nil)
		}
		e.Index = len(banks[e.File])
		banks[e.File] = append(banks[e.File], e)
	}
	return banks
}

// Warnings returns the accumulated non-fatal problems.
func (b *Builder) Warnings() error {
	return b.warnings
}
