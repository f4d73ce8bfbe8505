package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// TIM format errors.
var (
	ErrInvalidTIMMagic = errors.New("invalid TIM magic: expected 0x10")
	ErrUnsupportedTIM  = errors.New("unsupported TIM pixel mode")
	ErrTruncatedTIM    = errors.New("truncated TIM data")
)

// TIMMode is the pixel mode stored in the low bits of the TIM flags.
type TIMMode uint32

// Pixel modes.
const (
	TIM4Bit  TIMMode = 0 // 4-bit CLUT
	TIM8Bit  TIMMode = 1 // 8-bit CLUT
	TIM16Bit TIMMode = 2 // 15-bit direct
	TIM24Bit TIMMode = 3 // 24-bit direct
	TIMMixed TIMMode = 4
)

const (
	timMagic   = 0x10
	timModeBit = 0x7
	timCLUTBit = 0x8
)

// BPP returns bits per pixel.
func (m TIMMode) BPP() int {
	switch m {
	case TIM4Bit:
		return 4
	case TIM8Bit:
		return 8
	case TIM16Bit:
		return 16
	case TIM24Bit:
		return 24
	default:
		return 0
	}
}

// String returns a short mode name.
func (m TIMMode) String() string {
	switch m {
	case TIM4Bit:
		return "4bpp"
	case TIM8Bit:
		return "8bpp"
	case TIM16Bit:
		return "16bpp"
	case TIM24Bit:
		return "24bpp"
	case TIMMixed:
		return "mixed"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(m))
	}
}

// TIMRect is a VRAM rectangle. W is in 16-bit VRAM units.
type TIMRect struct {
	X, Y, W, H uint16
}

// TIM is a parsed TIM header. Pixel and CLUT data are not kept.
type TIM struct {
	Mode    TIMMode
	HasCLUT bool
	CLUT    TIMRect // valid if HasCLUT
	Image   TIMRect
}

// Colors returns the number of CLUT entries.
func (t *TIM) Colors() int {
	if !t.HasCLUT {
		return 0
	}
	return int(t.CLUT.W) * int(t.CLUT.H)
}

// PixelWidth returns the image width in pixels.
func (t *TIM) PixelWidth() int {
	w := int(t.Image.W)
	switch t.Mode {
	case TIM4Bit:
		return w * 4
	case TIM8Bit:
		return w * 2
	case TIM24Bit:
		return w * 2 / 3
	default:
		return w
	}
}

// ParseTIM parses a TIM image header from raw bytes.
func ParseTIM(data []byte) (*TIM, error) {
	if len(data) < 8 {
		return nil, ErrTruncatedTIM
	}

	r := bytes.NewReader(data)
	var magic, flags uint32
	binary.Read(r, binary.LittleEndian, &magic)
	binary.Read(r, binary.LittleEndian, &flags)
	if magic&0xFF != timMagic {
		return nil, ErrInvalidTIMMagic
	}

	tim := &TIM{
		Mode:    TIMMode(flags & timModeBit),
		HasCLUT: flags&timCLUTBit != 0,
	}
	if tim.Mode > TIMMixed {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedTIM, tim.Mode)
	}

	if tim.HasCLUT {
		rect, size, err := readTIMBlock(r)
		if err != nil {
			return nil, fmt.Errorf("clut block: %w", err)
		}
		tim.CLUT = rect
		if _, err := r.Seek(int64(size)-12, io.SeekCurrent); err != nil {
			return nil, fmt.Errorf("%w: skipping clut", ErrTruncatedTIM)
		}
	}

	rect, _, err := readTIMBlock(r)
	if err != nil {
		return nil, fmt.Errorf("image block: %w", err)
	}
	tim.Image = rect
	return tim, nil
}

// readTIMBlock reads a block header: length, then the VRAM rectangle.
func readTIMBlock(r *bytes.Reader) (TIMRect, uint32, error) {
	var size uint32
	var rect TIMRect
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return rect, 0, ErrTruncatedTIM
	}
	if err := binary.Read(r, binary.LittleEndian, &rect); err != nil {
		return rect, 0, ErrTruncatedTIM
	}
	if size < 12 || int64(size)-12 > int64(r.Len()) {
		return rect, 0, fmt.Errorf("%w: block length %d", ErrTruncatedTIM, size)
	}
	return rect, size, nil
}

// ParseTIMFile parses a TIM file from disk.
func ParseTIMFile(path string) (*TIM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading TIM file: %w", err)
	}
	return ParseTIM(data)
}
