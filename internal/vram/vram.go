// Package vram places textures and their palettes in the 1024x512 frame
// buffer, to the right of the display area.
package vram

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by Allocate. Both are warnings: the texture is skipped.
var (
	ErrVRAMFull = errors.New("VRAM is full")
	ErrCLUTFull = errors.New("no CLUT slot left")
)

// Frame buffer layout.
const (
	Width       = 1024
	CellWidth   = 64
	StartX      = 320
	SecondRowY  = 256
	SecondRowX  = 960 // exclusive limit on the second row
	CLUTStartY  = 480
	TPageCells  = 21
	CLUTSlots   = 32
	DefaultBPP  = 8
	LowColorBPP = 4
)

// VideoMode is the display resolution.
type VideoMode struct {
	Name          string
	Width, Height int
}

// Video modes.
var (
	NTSC = VideoMode{"ntsc", 320, 240}
	PAL  = VideoMode{"pal", 320, 256}
)

// ParseVideoMode returns the mode for "ntsc" or "pal".
func ParseVideoMode(name string) (VideoMode, error) {
	switch strings.ToLower(name) {
	case "ntsc", "":
		return NTSC, nil
	case "pal":
		return PAL, nil
	}
	return VideoMode{}, fmt.Errorf("unknown video mode %q", name)
}

// Placement is where a texture and its CLUT land.
type Placement struct {
	Path         string
	BPP          int
	X, Y         int
	CLUTX, CLUTY int
}

// Allocator hands out texture pages left to right on row 0, then once on
// row 256. Nothing is ever freed.
type Allocator struct {
	Mode VideoMode
	BPP  int

	cursor   int
	y        int
	free     int
	clutY    int
	clutFree int
	used     map[int]int
}

// NewAllocator returns an allocator in its initial state.
func NewAllocator(mode VideoMode, bpp int) *Allocator {
	a := &Allocator{Mode: mode, BPP: bpp}
	a.Reset()
	return a
}

// Reset returns to the initial state.
func (a *Allocator) Reset() {
	a.cursor = StartX
	a.y = 0
	a.free = TPageCells
	a.clutY = CLUTStartY
	a.clutFree = CLUTSlots
	a.used = map[int]int{0: 0, SecondRowY: 0}
}

// Cells returns the number of 64-pixel cells a texture of widthPx needs.
func (a *Allocator) Cells(widthPx int) int {
	shift := 1
	if a.BPP == LowColorBPP {
		shift = 2
	}
	w := widthPx >> shift
	return (w + CellWidth - 1) / CellWidth
}

// Allocate reserves space for a texture of widthPx pixels.
func (a *Allocator) Allocate(path string, widthPx int) (Placement, error) {
	if a.clutFree == 0 {
		return Placement{}, fmt.Errorf("%w: %s", ErrCLUTFull, path)
	}
	cells := a.Cells(widthPx)
	span := cells * CellWidth

	fits := a.y == 0 && a.cursor+span < Width && a.free-cells > 0
	if !fits && a.y == 0 {
		a.y = SecondRowY
		a.cursor = StartX
	}
	if !fits {
		fits = a.cursor+span < SecondRowX && a.free-cells > 1
	}
	if !fits {
		return Placement{}, fmt.Errorf("%w: %s needs %d cells", ErrVRAMFull, path, cells)
	}

	p := Placement{
		Path:  path,
		BPP:   a.BPP,
		X:     a.cursor,
		Y:     a.y,
		CLUTX: 0,
		CLUTY: a.clutY,
	}
	a.cursor += span
	a.free -= cells
	a.used[a.y] += cells
	a.clutY++
	a.clutFree--
	return p, nil
}

// RowCells returns the cells used on row y.
func (a *Allocator) RowCells(y int) int {
	return a.used[y]
}

// CLUTFree returns the remaining CLUT slots.
func (a *Allocator) CLUTFree() int {
	return a.clutFree
}

// FreeCells returns the remaining texture page cells.
func (a *Allocator) FreeCells() int {
	return a.free
}
