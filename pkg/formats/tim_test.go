package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// createTestTIM builds a TIM with an optional CLUT and a w*h (VRAM units) image.
func createTestTIM(mode TIMMode, clut bool, x, y, w, h uint16, cx, cy, colors uint16) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(0x10))
	flags := uint32(mode)
	if clut {
		flags |= 0x8
	}
	binary.Write(buf, binary.LittleEndian, flags)

	if clut {
		binary.Write(buf, binary.LittleEndian, uint32(12+int(colors)*2))
		binary.Write(buf, binary.LittleEndian, TIMRect{X: cx, Y: cy, W: colors, H: 1})
		buf.Write(make([]byte, int(colors)*2))
	}

	binary.Write(buf, binary.LittleEndian, uint32(12+int(w)*int(h)*2))
	binary.Write(buf, binary.LittleEndian, TIMRect{X: x, Y: y, W: w, H: h})
	buf.Write(make([]byte, int(w)*int(h)*2))
	return buf.Bytes()
}

func TestParseTIM_8Bit(t *testing.T) {
	data := createTestTIM(TIM8Bit, true, 320, 0, 32, 64, 0, 480, 256)

	tim, err := ParseTIM(data)
	if err != nil {
		t.Fatalf("ParseTIM failed: %v", err)
	}
	if tim.Mode != TIM8Bit || tim.Mode.BPP() != 8 {
		t.Errorf("expected 8bpp, got %s", tim.Mode)
	}
	if !tim.HasCLUT || tim.CLUT.Y != 480 || tim.Colors() != 256 {
		t.Errorf("unexpected CLUT %+v", tim.CLUT)
	}
	if tim.Image.X != 320 || tim.Image.Y != 0 {
		t.Errorf("expected image at 320,0, got %d,%d", tim.Image.X, tim.Image.Y)
	}
	if tim.PixelWidth() != 64 {
		t.Errorf("expected 64 pixels wide, got %d", tim.PixelWidth())
	}
}

func TestParseTIM_4BitAndDirect(t *testing.T) {
	tim, err := ParseTIM(createTestTIM(TIM4Bit, true, 384, 256, 16, 64, 0, 481, 16))
	if err != nil {
		t.Fatalf("ParseTIM failed: %v", err)
	}
	if tim.PixelWidth() != 64 {
		t.Errorf("expected 64 pixels wide, got %d", tim.PixelWidth())
	}
	if tim.Colors() != 16 {
		t.Errorf("expected 16 colors, got %d", tim.Colors())
	}

	tim, err = ParseTIM(createTestTIM(TIM16Bit, false, 640, 0, 320, 240, 0, 0, 0))
	if err != nil {
		t.Fatalf("ParseTIM failed: %v", err)
	}
	if tim.HasCLUT || tim.Colors() != 0 {
		t.Error("expected no CLUT for direct color")
	}
	if tim.PixelWidth() != 320 {
		t.Errorf("expected 320 pixels wide, got %d", tim.PixelWidth())
	}
}

func TestParseTIM_Errors(t *testing.T) {
	if _, err := ParseTIM([]byte{0x10}); !errors.Is(err, ErrTruncatedTIM) {
		t.Errorf("expected ErrTruncatedTIM, got %v", err)
	}

	bad := createTestTIM(TIM8Bit, false, 0, 0, 1, 1, 0, 0, 0)
	bad[0] = 0x11
	if _, err := ParseTIM(bad); !errors.Is(err, ErrInvalidTIMMagic) {
		t.Errorf("expected ErrInvalidTIMMagic, got %v", err)
	}

	mode := createTestTIM(TIM8Bit, false, 0, 0, 1, 1, 0, 0, 0)
	mode[4] = 0x7
	if _, err := ParseTIM(mode); !errors.Is(err, ErrUnsupportedTIM) {
		t.Errorf("expected ErrUnsupportedTIM, got %v", err)
	}

	cut := createTestTIM(TIM8Bit, true, 0, 0, 4, 4, 0, 480, 256)
	if _, err := ParseTIM(cut[:len(cut)-8]); !errors.Is(err, ErrTruncatedTIM) {
		t.Errorf("expected ErrTruncatedTIM, got %v", err)
	}
}

func TestParseTIMFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brick.tim")
	if err := os.WriteFile(path, createTestTIM(TIM8Bit, true, 320, 0, 32, 32, 0, 480, 256), 0644); err != nil {
		t.Fatal(err)
	}
	tim, err := ParseTIMFile(path)
	if err != nil {
		t.Fatalf("ParseTIMFile failed: %v", err)
	}
	if tim.Image.X != 320 {
		t.Errorf("expected X 320, got %d", tim.Image.X)
	}

	if _, err := ParseTIMFile(filepath.Join(t.TempDir(), "missing.tim")); err == nil {
		t.Error("expected error for missing file")
	}
}
