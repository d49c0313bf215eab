// Package audio holds the PCM plumbing shared by capture, the live session,
// and playback: 16-bit quantization, base64 wire framing, resampling, and the
// gapless playback scheduler.
package audio

import "encoding/base64"

const (
	// CaptureRateHz is the sample rate of outbound microphone audio.
	CaptureRateHz = 16000
	// PlaybackRateHz is the sample rate of inbound model audio.
	PlaybackRateHz = 24000

	// FrameSamples is the fixed outbound framing granularity. Larger frames
	// mean fewer websocket messages but more capture-to-send latency.
	FrameSamples = 4096

	bytesPerSample = 2
)

// CaptureMIME and PlaybackMIME tag wire frames with their PCM format.
const (
	CaptureMIME  = "audio/pcm;rate=16000"
	PlaybackMIME = "audio/pcm;rate=24000"
)

// EncodeFrame quantizes float samples in [-1, 1] to signed 16-bit
// little-endian PCM. Out-of-range samples are clamped. A full-scale 1.0
// maps to 32767, so decoding it back yields 32767/32768.
func EncodeFrame(samples []float32) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, f := range samples {
		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		var s int16
		if f < 0 {
			s = int16(f * 32768)
		} else {
			s = int16(f * 32767)
		}
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// DecodeFrame converts signed 16-bit little-endian PCM back to float
// samples in [-1, 1). A trailing odd byte is ignored.
func DecodeFrame(pcm []byte) []float32 {
	n := len(pcm) / bytesPerSample
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = float32(s) / 32768
	}
	return out
}

// EncodeBase64 is the wire form of a raw PCM payload.
func EncodeBase64(pcm []byte) string {
	return base64.StdEncoding.EncodeToString(pcm)
}

// DecodeBase64PCM decodes a base64 wire payload to raw PCM bytes.
func DecodeBase64PCM(data string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(data)
}

// Downsample resamples mono float samples from fromHz to toHz by linear
// interpolation. It returns src unchanged when the rates already match;
// upsampling is not supported and also returns src unchanged.
func Downsample(src []float32, fromHz, toHz int) []float32 {
	if fromHz <= 0 || toHz <= 0 || fromHz <= toHz || len(src) == 0 {
		return src
	}
	ratio := float64(fromHz) / float64(toHz)
	n := int(float64(len(src)) / ratio)
	if n == 0 {
		return nil
	}
	out := make([]float32, n)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(src)-1 {
			out[i] = src[len(src)-1]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = src[j]*(1-frac) + src[j+1]*frac
	}
	return out
}
