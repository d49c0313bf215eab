package audio

import (
	"math"
	"testing"
)

func TestEncodeFrame_FullScaleRoundTrip(t *testing.T) {
	t.Parallel()

	pcm := EncodeFrame([]float32{1.0})
	s := int16(pcm[0]) | int16(pcm[1])<<8
	if s != 32767 {
		t.Fatalf("encoded full-scale sample = %d, want 32767", s)
	}

	back := DecodeFrame(pcm)
	want := float32(32767) / 32768
	if back[0] != want {
		t.Fatalf("decoded sample = %v, want %v", back[0], want)
	}
}

func TestEncodeFrame_ClampsOutOfRange(t *testing.T) {
	t.Parallel()

	pcm := EncodeFrame([]float32{2.5, -3.0})
	hi := int16(pcm[0]) | int16(pcm[1])<<8
	lo := int16(pcm[2]) | int16(pcm[3])<<8
	if hi != 32767 {
		t.Fatalf("clamped high sample = %d, want 32767", hi)
	}
	if lo != -32768 {
		t.Fatalf("clamped low sample = %d, want -32768", lo)
	}
}

func TestEncodeDecode_WithinOneLSB(t *testing.T) {
	t.Parallel()

	in := []float32{0, 0.5, -0.5, 0.25, -1.0, 0.99997}
	out := DecodeFrame(EncodeFrame(in))
	if len(out) != len(in) {
		t.Fatalf("decoded %d samples, want %d", len(out), len(in))
	}
	const lsb = 1.0 / 32768
	for i := range in {
		if d := math.Abs(float64(out[i] - in[i])); d > lsb {
			t.Fatalf("sample %d: round-trip error %v exceeds one LSB", i, d)
		}
	}
}

func TestDecodeFrame_IgnoresTrailingOddByte(t *testing.T) {
	t.Parallel()

	out := DecodeFrame([]byte{0x00, 0x40, 0x7f})
	if len(out) != 1 {
		t.Fatalf("decoded %d samples, want 1", len(out))
	}
}

func TestDownsample_HalvesRate(t *testing.T) {
	t.Parallel()

	src := make([]float32, 320)
	for i := range src {
		src[i] = float32(i) / float32(len(src))
	}
	out := Downsample(src, 32000, 16000)
	if len(out) != 160 {
		t.Fatalf("downsampled length = %d, want 160", len(out))
	}
	// Linear interpolation preserves a linear ramp.
	if got, want := out[80], src[160]; math.Abs(float64(got-want)) > 1e-4 {
		t.Fatalf("midpoint = %v, want %v", got, want)
	}
}

func TestDownsample_SameRatePassthrough(t *testing.T) {
	t.Parallel()

	src := []float32{0.1, 0.2, 0.3}
	out := Downsample(src, 16000, 16000)
	if len(out) != len(src) {
		t.Fatalf("passthrough length = %d, want %d", len(out), len(src))
	}
}
