package convert

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

// DefaultSampleRate is the rate both sound encoders expect.
const DefaultSampleRate = beep.SampleRate(44100)

// PCMFormat is the target of PreparePCM.
type PCMFormat struct {
	SampleRate beep.SampleRate
	Channels   int  // 1 or 2
	Raw        bool // headerless s16le instead of WAV
}

// PreparePCM decodes a WAV file, resamples it and writes 16-bit PCM.
func PreparePCM(src, dst string, f PCMFormat) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	streamer, format, err := wav.Decode(in)
	if err != nil {
		return fmt.Errorf("decode wav: %w", err)
	}
	defer streamer.Close()

	var s beep.Streamer = streamer
	if format.SampleRate != f.SampleRate {
		s = beep.Resample(4, format.SampleRate, f.SampleRate, streamer)
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if !f.Raw {
		return wav.Encode(out, s, beep.Format{
			SampleRate:  f.SampleRate,
			NumChannels: f.Channels,
			Precision:   2,
		})
	}
	w := bufio.NewWriter(out)
	if err := writeRaw(w, s, f.Channels); err != nil {
		return err
	}
	return w.Flush()
}

// writeRaw writes little-endian signed 16-bit samples. Mono output averages
// both channels.
func writeRaw(w *bufio.Writer, s beep.Streamer, channels int) error {
	buf := make([][2]float64, 512)
	var b [2]byte
	put := func(v float64) error {
		binary.LittleEndian.PutUint16(b[:], uint16(toInt16(v)))
		_, err := w.Write(b[:])
		return err
	}
	for {
		n, ok := s.Stream(buf)
		for _, smp := range buf[:n] {
			if channels == 1 {
				if err := put((smp[0] + smp[1]) / 2); err != nil {
					return err
				}
				continue
			}
			if err := put(smp[0]); err != nil {
				return err
			}
			if err := put(smp[1]); err != nil {
				return err
			}
		}
		if !ok {
			return nil
		}
	}
}

func toInt16(v float64) int16 {
	switch {
	case v >= 1:
		return 32767
	case v <= -1:
		return -32768
	}
	return int16(v * 32767)
}
